package assemble

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/agentic-research/fleetcache/api"
	"github.com/agentic-research/fleetcache/internal/discover"
	"github.com/agentic-research/fleetcache/internal/profile"
	"github.com/agentic-research/fleetcache/internal/scan"
)

var testProfile = profile.Profile{
	Name:       "test",
	TenancyID:  "tenancy.test",
	HomeRegion: "r1",
	Regions:    []string{"r1"},
}

func comps() []api.Compartment {
	return []api.Compartment{
		{ID: "tenancy.test", Name: "root", State: api.StateActive},
		{ID: "cmp.prod", Name: "prod", ParentID: "tenancy.test", State: api.StateActive},
	}
}

func TestAssemble_DropsOrphanRecords(t *testing.T) {
	snap := Assemble(Input{
		Profile:      testProfile,
		Compartments: comps(),
		Resources: []api.Resource{
			{ID: "db1", Name: "orders", CompartmentID: "cmp.prod", Kind: api.KindDatabase},
			{ID: "db2", Name: "ghost", CompartmentID: "cmp.deleted", Kind: api.KindDatabase},
		},
	})

	assert.Len(t, snap.Resources, 1)
	assert.Equal(t, "db1", snap.Resources[0].ID)
	assert.Equal(t, 1, snap.Stats.IntegrityDrops)
	assert.NotEmpty(t, snap.Stats.Errors)
}

func TestAssemble_DeduplicatesLastWriteWins(t *testing.T) {
	snap := Assemble(Input{
		Profile:      testProfile,
		Compartments: comps(),
		Resources: []api.Resource{
			{ID: "db1", Name: "orders-old", CompartmentID: "cmp.prod", Kind: api.KindDatabase, Region: "r1"},
			{ID: "db1", Name: "orders-new", CompartmentID: "cmp.prod", Kind: api.KindDatabase, Region: "r2"},
		},
	})

	assert.Len(t, snap.Resources, 1)
	assert.Equal(t, "orders-new", snap.Resources[0].Name)
	assert.Equal(t, 1, snap.Stats.ResourcesFound)
}

func TestAssemble_MergesStatsAndStampsTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := Assemble(Input{
		Profile:      testProfile,
		Compartments: comps(),
		Resources:    []api.Resource{{ID: "db1", CompartmentID: "cmp.prod", Kind: api.KindDatabase}},
		Discovery:    discover.Stats{SkippedSubtrees: 2, Errors: []string{"compartment x: boom"}},
		Scan:         scan.Stats{UnitsTotal: 9, FailedUnits: 1, PermissionDenied: 3, Errors: []string{"unit y: boom"}},
		Now:          now,
	})

	assert.Equal(t, api.SchemaVersion, snap.Version)
	assert.Equal(t, now, snap.BuiltAt)
	assert.Equal(t, 2, snap.Stats.CompartmentsScanned)
	assert.Equal(t, 2, snap.Stats.SkippedSubtrees)
	assert.Equal(t, 1, snap.Stats.FailedUnits)
	assert.Equal(t, 3, snap.Stats.PermissionDenied)
	assert.Equal(t, 9, snap.Stats.UnitsTotal)
	assert.Len(t, snap.Stats.Errors, 2)
}
