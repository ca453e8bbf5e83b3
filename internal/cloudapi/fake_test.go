package cloudapi

import (
	"context"
	"testing"

	"github.com/agentic-research/fleetcache/api"
)

func TestFake_ListCompartmentsPages(t *testing.T) {
	f := NewFake()
	f.SetPageSize(2)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		f.AddCompartment(api.Compartment{ID: id, ParentID: "root", State: api.StateActive})
	}

	ctx := context.Background()
	var all []api.Compartment
	token := ""
	pages := 0
	for {
		page, err := f.ListCompartments(ctx, "root", token)
		if err != nil {
			t.Fatalf("ListCompartments: %v", err)
		}
		pages++
		all = append(all, page.Items...)
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}
	if len(all) != 5 {
		t.Errorf("items = %d, want 5", len(all))
	}
	if pages != 3 {
		t.Errorf("pages = %d, want 3", pages)
	}
}

func TestFake_ThrottleThenSucceed(t *testing.T) {
	f := NewFake()
	k := UnitKey{Region: "r1", CompartmentID: "c1", Kind: api.KindDatabase}
	f.AddResource(api.Resource{ID: "db1", CompartmentID: "c1", Region: "r1", Kind: api.KindDatabase})
	f.ThrottleUnit(k, 2)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := f.ListResources(ctx, "r1", "c1", api.KindDatabase, "")
		if !IsThrottled(err) {
			t.Fatalf("call %d: err = %v, want throttled", i, err)
		}
	}
	page, err := f.ListResources(ctx, "r1", "c1", api.KindDatabase, "")
	if err != nil {
		t.Fatalf("third call: %v", err)
	}
	if len(page.Items) != 1 {
		t.Errorf("items = %d, want 1", len(page.Items))
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		status                          int
		throttled, transient, denied    bool
	}{
		{429, true, true, false},
		{500, false, true, false},
		{503, false, true, false},
		{403, false, false, true},
		{404, false, false, false},
		{400, false, false, false},
	}
	for _, c := range cases {
		err := &CallError{Op: "test", StatusCode: c.status}
		if got := IsThrottled(err); got != c.throttled {
			t.Errorf("IsThrottled(%d) = %v, want %v", c.status, got, c.throttled)
		}
		if got := IsTransient(err); got != c.transient {
			t.Errorf("IsTransient(%d) = %v, want %v", c.status, got, c.transient)
		}
		if got := IsPermissionDenied(err); got != c.denied {
			t.Errorf("IsPermissionDenied(%d) = %v, want %v", c.status, got, c.denied)
		}
	}
	if IsTransient(context.Canceled) {
		t.Error("context.Canceled should not be transient")
	}
}
