package discover

import (
	"context"
	"errors"
	"testing"

	"github.com/agentic-research/fleetcache/api"
	"github.com/agentic-research/fleetcache/internal/cloudapi"
)

const tenancy = "tenancy.test"

func seedTree(f *cloudapi.Fake) {
	f.AddCompartment(api.Compartment{ID: "cmp.prod", Name: "prod", ParentID: tenancy, State: api.StateActive})
	f.AddCompartment(api.Compartment{ID: "cmp.dev", Name: "dev", ParentID: tenancy, State: api.StateActive})
	f.AddCompartment(api.Compartment{ID: "cmp.prod.a", Name: "prod-a", ParentID: "cmp.prod", State: api.StateActive})
	f.AddCompartment(api.Compartment{ID: "cmp.old", Name: "old", ParentID: tenancy, State: api.StateDeleted})
}

func TestDiscover_WalksTreeAndFiltersInactive(t *testing.T) {
	f := cloudapi.NewFake()
	seedTree(f)

	nodes, stats, err := (&Discoverer{Client: f}).Discover(context.Background(), tenancy)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if stats.SkippedSubtrees != 0 {
		t.Errorf("SkippedSubtrees = %d, want 0", stats.SkippedSubtrees)
	}

	got := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		got[n.ID] = true
	}
	for _, want := range []string{tenancy, "cmp.prod", "cmp.dev", "cmp.prod.a"} {
		if !got[want] {
			t.Errorf("missing compartment %s", want)
		}
	}
	if got["cmp.old"] {
		t.Error("DELETED compartment should be discarded")
	}
	if len(nodes) != 4 {
		t.Errorf("nodes = %d, want 4", len(nodes))
	}
}

func TestDiscover_PagesThroughLevels(t *testing.T) {
	f := cloudapi.NewFake()
	f.SetPageSize(1) // force a page per child
	seedTree(f)

	nodes, _, err := (&Discoverer{Client: f}).Discover(context.Background(), tenancy)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(nodes) != 4 {
		t.Errorf("nodes = %d, want 4 (pagination must not truncate)", len(nodes))
	}
}

func TestDiscover_SubtreeFailureIsPartial(t *testing.T) {
	f := cloudapi.NewFake()
	seedTree(f)
	f.FailSubtree("cmp.prod", 500)

	nodes, stats, err := (&Discoverer{Client: f}).Discover(context.Background(), tenancy)
	if err != nil {
		t.Fatalf("Discover should tolerate a subtree failure: %v", err)
	}
	if stats.SkippedSubtrees != 1 {
		t.Errorf("SkippedSubtrees = %d, want 1", stats.SkippedSubtrees)
	}
	if len(stats.Errors) != 1 {
		t.Errorf("Errors = %d, want 1", len(stats.Errors))
	}

	// cmp.prod itself was discovered; only its children are missing.
	got := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		got[n.ID] = true
	}
	if !got["cmp.prod"] || !got["cmp.dev"] {
		t.Error("siblings of the failed subtree must survive")
	}
	if got["cmp.prod.a"] {
		t.Error("children of the failed subtree must be skipped")
	}
}

func TestDiscover_DeniedSubtreeCountedSeparately(t *testing.T) {
	f := cloudapi.NewFake()
	seedTree(f)
	f.FailSubtree("cmp.prod", 403)

	nodes, stats, err := (&Discoverer{Client: f}).Discover(context.Background(), tenancy)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if stats.PermissionDenied != 1 {
		t.Errorf("PermissionDenied = %d, want 1", stats.PermissionDenied)
	}
	if stats.SkippedSubtrees != 1 {
		t.Errorf("SkippedSubtrees = %d, want 1 (a denied subtree is still skipped)", stats.SkippedSubtrees)
	}
	if len(stats.Errors) != 0 {
		t.Errorf("Errors = %v, want none for a denied subtree", stats.Errors)
	}

	got := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		got[n.ID] = true
	}
	if !got["cmp.prod"] || got["cmp.prod.a"] {
		t.Error("denied subtree keeps its root node but loses its children")
	}
}

func TestDiscover_RootFailureIsFatal(t *testing.T) {
	f := cloudapi.NewFake()
	seedTree(f)
	f.FailSubtree(tenancy, 500)

	_, _, err := (&Discoverer{Client: f}).Discover(context.Background(), tenancy)
	if err == nil {
		t.Fatal("root listing failure must abort the run")
	}
	var ce *cloudapi.CallError
	if !errors.As(err, &ce) {
		t.Errorf("err = %v, want wrapped CallError", err)
	}
}

func TestDiscover_Cancellation(t *testing.T) {
	f := cloudapi.NewFake()
	seedTree(f)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := (&Discoverer{Client: f}).Discover(ctx, tenancy)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
