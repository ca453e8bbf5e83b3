// Package query is the read-only API over the in-memory snapshot index.
// Every operation here answers from the index alone; none of them can
// block on the network.
package query

import (
	"errors"
	"fmt"
	"time"

	"github.com/agentic-research/fleetcache/api"
	"github.com/agentic-research/fleetcache/internal/store"
)

var (
	// ErrProfileNotCached means no snapshot has ever been built for the
	// profile. Recoverable: start a build and retry.
	ErrProfileNotCached = errors.New("profile not cached: run a build first")
	// ErrCompartmentNotFound means the name or ID matched nothing in the
	// profile's snapshot.
	ErrCompartmentNotFound = errors.New("compartment not found")
)

// Summary is a fleet-wide rollup for one profile.
type Summary struct {
	Profile        string                   `json:"profile"`
	TenancyID      string                   `json:"tenancy_id"`
	Regions        []string                 `json:"regions"`
	TotalResources int                      `json:"total_resources"`
	ByKind         map[api.ResourceKind]int `json:"by_kind"`
	ByCompartment  map[string]int           `json:"by_compartment"`
	BuiltAt        time.Time                `json:"built_at"`
	SnapshotAge    time.Duration            `json:"snapshot_age"`
	Stats          api.BuildStats           `json:"stats"`
}

// Service answers inventory queries for any cached profile.
type Service struct {
	store *store.Store
}

// NewService creates a query service over the store.
func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

func (s *Service) index(profileName string) (*store.Index, error) {
	ix, err := s.store.Index(profileName)
	if err != nil {
		if errors.Is(err, store.ErrNoSnapshot) {
			return nil, fmt.Errorf("%w: %q", ErrProfileNotCached, profileName)
		}
		return nil, err
	}
	return ix, nil
}

// FleetSummary returns resource totals grouped by compartment and kind,
// plus the snapshot's age and build statistics.
func (s *Service) FleetSummary(profileName string) (Summary, error) {
	ix, err := s.index(profileName)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Profile:        profileName,
		TenancyID:      ix.TenancyID(),
		Regions:        ix.Regions(),
		TotalResources: ix.TotalResources(),
		ByKind:         ix.CountsByKind(),
		ByCompartment:  ix.CountsByCompartment(),
		BuiltAt:        ix.BuiltAt(),
		SnapshotAge:    time.Since(ix.BuiltAt()),
		Stats:          ix.Stats(),
	}, nil
}

// Search returns records whose display name contains pattern,
// case-insensitively. An empty pattern returns all records.
func (s *Service) Search(profileName, pattern string) ([]api.Resource, error) {
	ix, err := s.index(profileName)
	if err != nil {
		return nil, err
	}
	return ix.Search(pattern), nil
}

// ByCompartment returns every record owned transitively by the compartment
// subtree rooted at nameOrID (exact ID, or case-insensitive display name).
func (s *Service) ByCompartment(profileName, nameOrID string) ([]api.Resource, error) {
	ix, err := s.index(profileName)
	if err != nil {
		return nil, err
	}
	c, ok := ix.CompartmentByNameOrID(nameOrID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCompartmentNotFound, nameOrID)
	}
	return ix.ResourcesIn(ix.Subtree(c.ID)), nil
}

// ListCompartments returns all retained compartment nodes for the
// profile's current snapshot.
func (s *Service) ListCompartments(profileName string) ([]api.Compartment, error) {
	ix, err := s.index(profileName)
	if err != nil {
		return nil, err
	}
	return ix.Compartments(), nil
}
