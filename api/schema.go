// Package api defines the wire schema for persisted cache snapshots.
//
// A snapshot is written as self-describing JSON (field names preserved) so
// that readers built against a newer or older schema can ignore fields they
// do not know about. Nothing in this package touches the network or the
// filesystem; it is the serialization contract and nothing else.
package api

import "time"

// SchemaVersion is stamped into every snapshot at build time.
const SchemaVersion = "v1"

// ResourceKind selects the interpretation of a resource's Attributes set.
type ResourceKind string

const (
	KindDatabase         ResourceKind = "database"
	KindHost             ResourceKind = "host"
	KindEngineeredSystem ResourceKind = "engineered-system"
)

// Kinds lists every resource kind a scan enumerates.
var Kinds = []ResourceKind{KindDatabase, KindHost, KindEngineeredSystem}

// Compartment lifecycle states as reported by the control plane.
// Only ACTIVE compartments are retained in a snapshot.
const (
	StateActive  = "ACTIVE"
	StateDeleted = "DELETED"
)

// Compartment is one node of the tenancy's compartment tree.
// ParentID is empty for the tenancy root.
type Compartment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
	State    string `json:"state"`
}

// Resource is a single database, host, or engineered-system entry.
// Attributes carries the kind-specific fields (database edition, host CPU
// count, ...) passed through from the control plane unmodified.
type Resource struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	CompartmentID string            `json:"compartment_id"`
	Kind          ResourceKind      `json:"kind"`
	Region        string            `json:"region"`
	Status        string            `json:"status"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// BuildStats records what a build skipped or dropped, so operators can see
// exactly how complete a snapshot is.
type BuildStats struct {
	CompartmentsScanned int `json:"compartments_scanned"`
	ResourcesFound      int `json:"resources_found"`
	SkippedSubtrees     int `json:"skipped_subtrees"`
	PermissionDenied    int `json:"permission_denied"`
	UnitsTotal          int `json:"units_total"`
	FailedUnits         int `json:"failed_units"`
	IntegrityDrops      int `json:"integrity_drops"`
	// Errors holds one human-readable line per partial failure.
	Errors []string `json:"errors,omitempty"`
}

// Snapshot is the immutable point-in-time inventory for one profile.
// Invariant: every Resource.CompartmentID references an entry in
// Compartments. The assembler enforces this before a snapshot is persisted.
type Snapshot struct {
	Version      string        `json:"version"`
	Profile      string        `json:"profile"`
	TenancyID    string        `json:"tenancy_id"`
	HomeRegion   string        `json:"home_region"`
	Regions      []string      `json:"regions"`
	BuiltAt      time.Time     `json:"built_at"`
	Compartments []Compartment `json:"compartments"`
	Resources    []Resource    `json:"resources"`
	Stats        BuildStats    `json:"stats"`
}

// Age returns how old the snapshot is at now.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.BuiltAt)
}
