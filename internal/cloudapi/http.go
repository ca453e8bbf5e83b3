package cloudapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agentic-research/fleetcache/api"
)

// HTTPClient talks to a REST control plane. The endpoint is a template with
// a {region} placeholder, e.g. "https://inventory.{region}.example.com/v1".
// Compartment listings and the probe go to the home region; resource
// listings go to the region named in the call.
type HTTPClient struct {
	endpoint   string
	homeRegion string
	hc         *http.Client
}

// NewHTTPClient builds a client. hc may be nil, in which case a client with
// a 30s overall timeout is used; per-call deadlines come from the context.
func NewHTTPClient(endpoint, homeRegion string, hc *http.Client) *HTTPClient {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{endpoint: endpoint, homeRegion: homeRegion, hc: hc}
}

func (c *HTTPClient) base(region string) string {
	return strings.ReplaceAll(c.endpoint, "{region}", region)
}

// Ping implements Client.
func (c *HTTPClient) Ping(ctx context.Context) error {
	var out struct{}
	return c.get(ctx, "Ping", c.base(c.homeRegion)+"/health", nil, &out)
}

// ListCompartments implements Client.
func (c *HTTPClient) ListCompartments(ctx context.Context, parentID, pageToken string) (CompartmentPage, error) {
	q := url.Values{}
	q.Set("parent", parentID)
	if pageToken != "" {
		q.Set("page", pageToken)
	}
	var out struct {
		Items         []api.Compartment `json:"items"`
		NextPageToken string            `json:"next_page_token"`
	}
	err := c.get(ctx, "ListCompartments", c.base(c.homeRegion)+"/compartments", q, &out)
	if err != nil {
		return CompartmentPage{}, err
	}
	return CompartmentPage{Items: out.Items, NextPageToken: out.NextPageToken}, nil
}

// ListResources implements Client.
func (c *HTTPClient) ListResources(ctx context.Context, region, compartmentID string, kind api.ResourceKind, pageToken string) (ResourcePage, error) {
	q := url.Values{}
	q.Set("compartment", compartmentID)
	q.Set("kind", string(kind))
	if pageToken != "" {
		q.Set("page", pageToken)
	}
	var out struct {
		Items         []api.Resource `json:"items"`
		NextPageToken string         `json:"next_page_token"`
	}
	err := c.get(ctx, "ListResources", c.base(region)+"/resources", q, &out)
	if err != nil {
		return ResourcePage{}, err
	}
	return ResourcePage{Items: out.Items, NextPageToken: out.NextPageToken}, nil
}

func (c *HTTPClient) get(ctx context.Context, op, rawURL string, q url.Values, out any) error {
	u := rawURL
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &CallError{Op: op, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

var _ Client = (*HTTPClient)(nil)
