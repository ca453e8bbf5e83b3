// Package discover enumerates the compartment tree under a tenancy root.
package discover

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agentic-research/fleetcache/api"
	"github.com/agentic-research/fleetcache/internal/cloudapi"
)

// Stats reports discovery partial failures.
type Stats struct {
	// SkippedSubtrees counts compartments whose children could not be
	// enumerated; the subtree under each is absent from the result.
	SkippedSubtrees int
	// PermissionDenied counts the subset of skipped subtrees the caller
	// cannot see. Expected condition; no Errors entry is recorded.
	PermissionDenied int
	Errors           []string
}

// Discoverer walks the compartment hierarchy breadth-first.
type Discoverer struct {
	Client cloudapi.Client
	Log    *slog.Logger
}

// Discover lists every ACTIVE compartment reachable from tenancyID,
// including a synthetic node for the tenancy root itself. Discovery order
// carries no meaning.
//
// A failure listing the root is fatal. A failure on any other compartment
// skips that subtree, records it in stats, and keeps going.
func (d *Discoverer) Discover(ctx context.Context, tenancyID string) ([]api.Compartment, Stats, error) {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	var stats Stats
	root := api.Compartment{ID: tenancyID, Name: "root", State: api.StateActive}
	nodes := []api.Compartment{root}

	queue := []string{tenancyID}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		parent := queue[0]
		queue = queue[1:]

		children, err := d.listChildren(ctx, parent)
		if err != nil {
			if parent == tenancyID {
				return nil, stats, fmt.Errorf("list root compartments: %w", err)
			}
			if ctx.Err() != nil {
				return nil, stats, ctx.Err()
			}
			if cloudapi.IsPermissionDenied(err) {
				stats.SkippedSubtrees++
				stats.PermissionDenied++
				log.Info("compartment subtree not visible", "compartment", parent)
				continue
			}
			stats.SkippedSubtrees++
			stats.Errors = append(stats.Errors, fmt.Sprintf("compartment %s: %v", parent, err))
			log.Warn("skipping compartment subtree", "compartment", parent, "err", err)
			continue
		}

		for _, c := range children {
			// Non-ACTIVE compartments are discarded outright; their
			// subtrees are unreachable by definition.
			if c.State != api.StateActive {
				continue
			}
			nodes = append(nodes, c)
			queue = append(queue, c.ID)
		}
	}

	return nodes, stats, nil
}

// listChildren pages through all direct children of parent.
func (d *Discoverer) listChildren(ctx context.Context, parent string) ([]api.Compartment, error) {
	var out []api.Compartment
	token := ""
	for {
		page, err := d.Client.ListCompartments(ctx, parent, token)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.NextPageToken == "" {
			return out, nil
		}
		token = page.NextPageToken
	}
}
