package store

import (
	"errors"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
)

func TestStore_SaveLoadRoundtrip(t *testing.T) {
	fs := memfs.New()
	st := New(fs, nil)
	want := fixtureSnapshot()

	if err := st.Save("test", want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A second store over the same filesystem simulates a fresh process.
	st2 := New(fs, nil)
	got, err := st2.Load("test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.TenancyID != want.TenancyID {
		t.Errorf("TenancyID = %q, want %q", got.TenancyID, want.TenancyID)
	}
	if len(got.Resources) != len(want.Resources) {
		t.Errorf("Resources = %d, want %d", len(got.Resources), len(want.Resources))
	}
	if len(got.Compartments) != len(want.Compartments) {
		t.Errorf("Compartments = %d, want %d", len(got.Compartments), len(want.Compartments))
	}
	if got.Stats.CompartmentsScanned != want.Stats.CompartmentsScanned {
		t.Errorf("Stats roundtrip mismatch: %+v", got.Stats)
	}
}

func TestStore_LoadMissingIsTyped(t *testing.T) {
	st := New(memfs.New(), nil)
	_, err := st.Load("nope")
	if !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("err = %v, want ErrNoSnapshot", err)
	}
	if _, err := st.Index("nope"); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("Index err = %v, want ErrNoSnapshot", err)
	}
}

func TestStore_SaveReplacesAtomically(t *testing.T) {
	fs := memfs.New()
	st := New(fs, nil)

	first := fixtureSnapshot()
	if err := st.Save("test", first); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second := fixtureSnapshot()
	second.Resources = second.Resources[:1]
	if err := st.Save("test", second); err != nil {
		t.Fatalf("Save replace: %v", err)
	}

	got, err := New(fs, nil).Load("test")
	if err != nil {
		t.Fatalf("Load after replace: %v", err)
	}
	if len(got.Resources) != 1 {
		t.Errorf("Resources = %d, want 1 (new snapshot)", len(got.Resources))
	}
}

func TestStore_CrashedWriteLeavesPreviousSnapshotIntact(t *testing.T) {
	fs := memfs.New()
	st := New(fs, nil)

	if err := st.Save("test", fixtureSnapshot()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Simulate a crash mid-write: a truncated temp file abandoned beside
	// the good snapshot. Loading must ignore it entirely.
	if err := util.WriteFile(fs, "test.snapshot-4242", []byte(`{"version":"v1","profi`), 0o644); err != nil {
		t.Fatalf("write crash artifact: %v", err)
	}

	got, err := New(fs, nil).Load("test")
	if err != nil {
		t.Fatalf("Load after simulated crash: %v", err)
	}
	if len(got.Resources) != 3 {
		t.Errorf("Resources = %d, want 3 (previous snapshot intact)", len(got.Resources))
	}
}

func TestStore_IndexIsHotSwappedOnSave(t *testing.T) {
	st := New(memfs.New(), nil)

	if err := st.Save("test", fixtureSnapshot()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	before, err := st.Index("test")
	if err != nil {
		t.Fatalf("Index: %v", err)
	}

	smaller := fixtureSnapshot()
	smaller.Resources = smaller.Resources[:1]
	if err := st.Save("test", smaller); err != nil {
		t.Fatalf("Save: %v", err)
	}
	after, err := st.Index("test")
	if err != nil {
		t.Fatalf("Index: %v", err)
	}

	// The old index keeps answering from the old snapshot; the new one
	// answers from the new. Readers never see a mix.
	if before.TotalResources() != 3 {
		t.Errorf("old index = %d resources, want 3", before.TotalResources())
	}
	if after.TotalResources() != 1 {
		t.Errorf("new index = %d resources, want 1", after.TotalResources())
	}
}

func TestStore_Has(t *testing.T) {
	fs := memfs.New()
	st := New(fs, nil)
	if st.Has("test") {
		t.Error("Has should be false before any save")
	}
	if err := st.Save("test", fixtureSnapshot()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !st.Has("test") {
		t.Error("Has should be true after save")
	}
}
