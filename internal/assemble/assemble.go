// Package assemble merges discovery and scan output into one snapshot.
package assemble

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/agentic-research/fleetcache/api"
	"github.com/agentic-research/fleetcache/internal/discover"
	"github.com/agentic-research/fleetcache/internal/profile"
	"github.com/agentic-research/fleetcache/internal/scan"
)

// Input is everything a finished build produced.
type Input struct {
	Profile      profile.Profile
	Compartments []api.Compartment
	Resources    []api.Resource
	Discovery    discover.Stats
	Scan         scan.Stats
	// Now stamps the snapshot; zero means time.Now().
	Now time.Time
	Log *slog.Logger
}

// Assemble deduplicates records, enforces referential integrity, and
// produces the final snapshot.
//
// Duplicate resource IDs should not happen (a resource lives in exactly one
// region), but two region scans racing a live migration can both report it;
// the later record wins. A record whose compartment is absent from the
// discovered set (deleted between discovery and scan) is dropped and
// counted, never persisted.
func Assemble(in Input) *api.Snapshot {
	log := in.Log
	if log == nil {
		log = slog.Default()
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	known := make(map[string]struct{}, len(in.Compartments))
	for _, c := range in.Compartments {
		known[c.ID] = struct{}{}
	}

	drops := 0
	byID := make(map[string]int, len(in.Resources))
	kept := make([]api.Resource, 0, len(in.Resources))
	for _, r := range in.Resources {
		if _, ok := known[r.CompartmentID]; !ok {
			drops++
			log.Warn("dropping resource with unknown compartment",
				"resource", r.ID, "compartment", r.CompartmentID)
			continue
		}
		if i, dup := byID[r.ID]; dup {
			kept[i] = r // last write wins
			continue
		}
		byID[r.ID] = len(kept)
		kept = append(kept, r)
	}

	stats := api.BuildStats{
		CompartmentsScanned: len(in.Compartments),
		ResourcesFound:      len(kept),
		SkippedSubtrees:     in.Discovery.SkippedSubtrees,
		PermissionDenied:    in.Scan.PermissionDenied + in.Discovery.PermissionDenied,
		UnitsTotal:          in.Scan.UnitsTotal,
		FailedUnits:         in.Scan.FailedUnits,
		IntegrityDrops:      drops,
	}
	stats.Errors = append(stats.Errors, in.Discovery.Errors...)
	stats.Errors = append(stats.Errors, in.Scan.Errors...)
	if drops > 0 {
		stats.Errors = append(stats.Errors, fmt.Sprintf("%d resources dropped for unknown compartments", drops))
	}

	return &api.Snapshot{
		Version:      api.SchemaVersion,
		Profile:      in.Profile.Name,
		TenancyID:    in.Profile.TenancyID,
		HomeRegion:   in.Profile.HomeRegion,
		Regions:      in.Profile.Regions,
		BuiltAt:      now,
		Compartments: in.Compartments,
		Resources:    kept,
		Stats:        stats,
	}
}
