package cloudapi

import (
	"context"
	"strconv"
	"sync"

	"github.com/agentic-research/fleetcache/api"
)

// UnitKey identifies one (region, compartment, kind) scan unit.
type UnitKey struct {
	Region        string
	CompartmentID string
	Kind          api.ResourceKind
}

// Fake is an in-memory Client with scriptable failures. It backs the demo
// profile and every pipeline test: units can be throttled N times, failed
// permanently, or permission-denied, and listings page like the real thing.
type Fake struct {
	mu       sync.Mutex
	pageSize int

	children  map[string][]api.Compartment
	resources map[UnitKey][]api.Resource

	pingErr     error
	subtreeErr  map[string]*CallError // compartment ID -> ListCompartments failure
	denied      map[string]bool       // compartment ID -> 403 on resource lists
	failedUnits map[UnitKey]bool      // permanent 500
	throttles   map[UnitKey]int       // remaining 429s before success

	calls int

	// hold, when non-nil, blocks ListCompartments until the channel is
	// closed. Lets tests pin a build in the RUNNING state.
	hold chan struct{}
}

// NewFake returns an empty fake with a small page size so listings
// actually exercise the pagination paths.
func NewFake() *Fake {
	return &Fake{
		pageSize:    2,
		children:    make(map[string][]api.Compartment),
		resources:   make(map[UnitKey][]api.Resource),
		subtreeErr:  make(map[string]*CallError),
		denied:      make(map[string]bool),
		failedUnits: make(map[UnitKey]bool),
		throttles:   make(map[UnitKey]int),
	}
}

// SetPageSize overrides the listing page size.
func (f *Fake) SetPageSize(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageSize = n
}

// AddCompartment registers a compartment under its parent.
func (f *Fake) AddCompartment(c api.Compartment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.children[c.ParentID] = append(f.children[c.ParentID], c)
}

// AddResource registers a resource for the unit derived from its fields.
func (f *Fake) AddResource(r api.Resource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := UnitKey{Region: r.Region, CompartmentID: r.CompartmentID, Kind: r.Kind}
	f.resources[k] = append(f.resources[k], r)
}

// SetPingError makes Ping fail.
func (f *Fake) SetPingError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingErr = err
}

// FailSubtree makes ListCompartments fail for the given parent.
func (f *Fake) FailSubtree(compartmentID string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subtreeErr[compartmentID] = &CallError{Op: "ListCompartments", StatusCode: status, Message: "scripted failure"}
}

// DenyCompartment makes every resource list in the compartment return 403.
func (f *Fake) DenyCompartment(compartmentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.denied[compartmentID] = true
}

// FailUnit makes one scan unit fail permanently with a 500.
func (f *Fake) FailUnit(k UnitKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failedUnits[k] = true
}

// ThrottleUnit makes the next n calls for the unit return 429.
func (f *Fake) ThrottleUnit(k UnitKey, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.throttles[k] = n
}

// Hold returns a release func; until it is called, ListCompartments blocks.
func (f *Fake) Hold() func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hold = make(chan struct{})
	ch := f.hold
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Calls returns the total number of list calls made so far.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Ping implements Client.
func (f *Fake) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

// ListCompartments implements Client.
func (f *Fake) ListCompartments(ctx context.Context, parentID, pageToken string) (CompartmentPage, error) {
	f.mu.Lock()
	hold := f.hold
	f.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return CompartmentPage{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if ce, ok := f.subtreeErr[parentID]; ok {
		return CompartmentPage{}, ce
	}

	items, token, err := page(f.children[parentID], pageToken, f.pageSize)
	if err != nil {
		return CompartmentPage{}, err
	}
	return CompartmentPage{Items: items, NextPageToken: token}, nil
}

// ListResources implements Client.
func (f *Fake) ListResources(ctx context.Context, region, compartmentID string, kind api.ResourceKind, pageToken string) (ResourcePage, error) {
	if err := ctx.Err(); err != nil {
		return ResourcePage{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.denied[compartmentID] {
		return ResourcePage{}, &CallError{Op: "ListResources", StatusCode: 403, Message: "not authorized"}
	}

	k := UnitKey{Region: region, CompartmentID: compartmentID, Kind: kind}
	if f.throttles[k] > 0 {
		f.throttles[k]--
		return ResourcePage{}, &CallError{Op: "ListResources", StatusCode: 429, Message: "too many requests"}
	}
	if f.failedUnits[k] {
		return ResourcePage{}, &CallError{Op: "ListResources", StatusCode: 500, Message: "internal error"}
	}

	items, token, err := page(f.resources[k], pageToken, f.pageSize)
	if err != nil {
		return ResourcePage{}, err
	}
	return ResourcePage{Items: items, NextPageToken: token}, nil
}

// page slices items at the offset encoded in token, returning the next token
// or "" when the listing is exhausted.
func page[T any](items []T, token string, size int) ([]T, string, error) {
	offset := 0
	if token != "" {
		n, err := strconv.Atoi(token)
		if err != nil {
			return nil, "", &CallError{Op: "page", StatusCode: 400, Message: "bad page token"}
		}
		offset = n
	}
	if offset >= len(items) {
		return nil, "", nil
	}
	end := offset + size
	next := ""
	if end >= len(items) {
		end = len(items)
	} else {
		next = strconv.Itoa(end)
	}
	out := make([]T, end-offset)
	copy(out, items[offset:end])
	return out, next, nil
}

var _ Client = (*Fake)(nil)
