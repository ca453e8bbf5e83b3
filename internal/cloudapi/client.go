// Package cloudapi is the contract with the upstream control plane.
//
// The engine only needs two paginated list primitives plus a connectivity
// probe. Real deployments talk to a REST control plane (HTTPClient); tests
// and the demo profile use the in-memory Fake. Both return the same typed
// CallError so the discoverer and the scanner can classify failures without
// knowing which transport produced them.
package cloudapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentic-research/fleetcache/api"
)

// CompartmentPage is one page of a compartment listing.
// NextPageToken is empty on the last page.
type CompartmentPage struct {
	Items         []api.Compartment
	NextPageToken string
}

// ResourcePage is one page of a resource listing.
type ResourcePage struct {
	Items         []api.Resource
	NextPageToken string
}

// Client is the upstream control-plane surface the engine depends on.
// All calls are rate-limited upstream: 429 and 5xx responses are retryable,
// 403 means the caller cannot see the target, 404 means it is gone.
type Client interface {
	// Ping performs a lightweight connectivity probe.
	Ping(ctx context.Context) error
	// ListCompartments lists the direct children of parentID.
	ListCompartments(ctx context.Context, parentID, pageToken string) (CompartmentPage, error)
	// ListResources lists resources of one kind inside one compartment in one region.
	ListResources(ctx context.Context, region, compartmentID string, kind api.ResourceKind, pageToken string) (ResourcePage, error)
}

// CallError is a failed control-plane call with its upstream status code.
type CallError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

// IsThrottled reports whether err is an upstream rate-limit response.
func IsThrottled(err error) bool {
	var ce *CallError
	return errors.As(err, &ce) && ce.StatusCode == 429
}

// IsTransient reports whether err is worth retrying: throttling or a 5xx.
func IsTransient(err error) bool {
	var ce *CallError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.StatusCode == 429 || ce.StatusCode >= 500
}

// IsPermissionDenied reports whether the caller lacks permission on the target.
func IsPermissionDenied(err error) bool {
	var ce *CallError
	return errors.As(err, &ce) && ce.StatusCode == 403
}

// IsNotFound reports whether the target no longer exists upstream.
func IsNotFound(err error) bool {
	var ce *CallError
	return errors.As(err, &ce) && ce.StatusCode == 404
}
