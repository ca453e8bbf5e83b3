// Package profile resolves named credential scopes to a verified tenancy
// identity. The credential format itself lives outside the engine; all the
// engine needs from a profile is a stable (tenancy, home region, regions)
// tuple and a working control-plane connection.
package profile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrNotFound means the profile name is unknown.
	ErrNotFound = errors.New("profile not found")
	// ErrInvalid means the profile exists but is unusable: missing fields
	// or an unreachable control plane.
	ErrInvalid = errors.New("profile invalid")
)

// Profile is a resolved credential scope.
type Profile struct {
	Name       string
	TenancyID  string
	HomeRegion string
	Regions    []string
	Endpoint   string
}

// ProbeFunc checks that the control plane is reachable for a profile.
type ProbeFunc func(ctx context.Context, p Profile) error

// Resolver maps profile names to resolved profiles, probing connectivity
// once per process and caching the result.
type Resolver struct {
	profiles map[string]Profile
	probe    ProbeFunc

	mu     sync.Mutex
	probed map[string]error
}

// NewResolver builds a resolver over a fixed profile set. probe may be nil
// to skip connectivity checks (used by read-only query paths).
func NewResolver(profiles []Profile, probe ProbeFunc) *Resolver {
	m := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		m[p.Name] = p
	}
	return &Resolver{profiles: m, probe: probe, probed: make(map[string]error)}
}

// Names returns all known profile names, sorted.
func (r *Resolver) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for n := range r.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the profile for name.
// ErrNotFound for unknown names; ErrInvalid (wrapping the cause) for
// malformed profiles or a failed connectivity probe.
func (r *Resolver) Resolve(ctx context.Context, name string) (Profile, error) {
	p, ok := r.profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if p.TenancyID == "" {
		return Profile{}, fmt.Errorf("%w: %q has no tenancy", ErrInvalid, name)
	}
	if p.HomeRegion == "" {
		return Profile{}, fmt.Errorf("%w: %q has no home region", ErrInvalid, name)
	}
	if len(p.Regions) == 0 {
		p.Regions = []string{p.HomeRegion}
	}

	if r.probe != nil {
		if err := r.probeOnce(ctx, p); err != nil {
			return Profile{}, fmt.Errorf("%w: %q: %v", ErrInvalid, name, err)
		}
	}
	return p, nil
}

// probeOnce runs the connectivity probe at most once per profile name.
// A failed probe is cached too: a broken profile stays broken until the
// process restarts with fixed credentials.
func (r *Resolver) probeOnce(ctx context.Context, p Profile) error {
	r.mu.Lock()
	err, done := r.probed[p.Name]
	r.mu.Unlock()
	if done {
		return err
	}

	err = r.probe(ctx, p)

	r.mu.Lock()
	r.probed[p.Name] = err
	r.mu.Unlock()
	return err
}
