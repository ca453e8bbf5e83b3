package store

import (
	"sort"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/fleetcache/api"
)

// Index is the in-memory projection of one snapshot: O(1) resource lookup,
// per-compartment grouping, the compartment tree, and a trigram bitmap
// index over display names for substring search.
//
// An Index is immutable after construction. The store swaps whole indexes
// on save/load; nothing ever mutates one in place.
type Index struct {
	profile    string
	tenancyID  string
	homeRegion string
	regions    []string
	builtAt    time.Time
	stats      api.BuildStats

	resources  []api.Resource
	lowerNames []string // aligned with resources
	byID       map[string]int
	byComp     map[string][]int

	compartments []api.Compartment
	compByID     map[string]api.Compartment
	compByName   map[string]string // lowercased name -> ID, first wins
	children     map[string][]string

	trigrams map[string]*roaring.Bitmap
}

// NewIndex builds an index from a snapshot.
func NewIndex(snap *api.Snapshot) *Index {
	ix := &Index{
		profile:      snap.Profile,
		tenancyID:    snap.TenancyID,
		homeRegion:   snap.HomeRegion,
		regions:      snap.Regions,
		builtAt:      snap.BuiltAt,
		stats:        snap.Stats,
		resources:    snap.Resources,
		lowerNames:   make([]string, len(snap.Resources)),
		byID:         make(map[string]int, len(snap.Resources)),
		byComp:       make(map[string][]int),
		compartments: snap.Compartments,
		compByID:     make(map[string]api.Compartment, len(snap.Compartments)),
		compByName:   make(map[string]string, len(snap.Compartments)),
		children:     make(map[string][]string),
		trigrams:     make(map[string]*roaring.Bitmap),
	}

	for _, c := range snap.Compartments {
		ix.compByID[c.ID] = c
		lower := strings.ToLower(c.Name)
		if _, ok := ix.compByName[lower]; !ok {
			ix.compByName[lower] = c.ID
		}
		if c.ParentID != "" {
			ix.children[c.ParentID] = append(ix.children[c.ParentID], c.ID)
		}
	}

	for i, r := range snap.Resources {
		ix.byID[r.ID] = i
		ix.byComp[r.CompartmentID] = append(ix.byComp[r.CompartmentID], i)
		lower := strings.ToLower(r.Name)
		ix.lowerNames[i] = lower
		for _, tri := range trigrams(lower) {
			bm, ok := ix.trigrams[tri]
			if !ok {
				bm = roaring.New()
				ix.trigrams[tri] = bm
			}
			bm.Add(uint32(i))
		}
	}

	return ix
}

// trigrams returns every 3-rune window of s.
func trigrams(s string) []string {
	runes := []rune(s)
	if len(runes) < 3 {
		return nil
	}
	out := make([]string, 0, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		out = append(out, string(runes[i:i+3]))
	}
	return out
}

// Profile returns the owning profile name.
func (ix *Index) Profile() string { return ix.profile }

// TenancyID returns the snapshot's tenancy.
func (ix *Index) TenancyID() string { return ix.tenancyID }

// Regions returns the subscribed regions of the snapshot.
func (ix *Index) Regions() []string { return ix.regions }

// BuiltAt returns the snapshot build completion time.
func (ix *Index) BuiltAt() time.Time { return ix.builtAt }

// Stats returns the snapshot build statistics.
func (ix *Index) Stats() api.BuildStats { return ix.stats }

// TotalResources returns the number of indexed resource records.
func (ix *Index) TotalResources() int { return len(ix.resources) }

// Resource looks up a record by identifier.
func (ix *Index) Resource(id string) (api.Resource, bool) {
	i, ok := ix.byID[id]
	if !ok {
		return api.Resource{}, false
	}
	return ix.resources[i], true
}

// Resources returns all records, in snapshot order.
func (ix *Index) Resources() []api.Resource {
	out := make([]api.Resource, len(ix.resources))
	copy(out, ix.resources)
	return out
}

// Compartments returns all retained compartment nodes.
func (ix *Index) Compartments() []api.Compartment {
	out := make([]api.Compartment, len(ix.compartments))
	copy(out, ix.compartments)
	return out
}

// CompartmentByNameOrID resolves q as an exact ID first, then as a
// case-insensitive display name.
func (ix *Index) CompartmentByNameOrID(q string) (api.Compartment, bool) {
	if c, ok := ix.compByID[q]; ok {
		return c, true
	}
	if id, ok := ix.compByName[strings.ToLower(q)]; ok {
		return ix.compByID[id], true
	}
	return api.Compartment{}, false
}

// Subtree returns the IDs of rootID and every descendant compartment.
func (ix *Index) Subtree(rootID string) []string {
	out := []string{rootID}
	queue := []string{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range ix.children[id] {
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}

// ResourcesIn returns every record owned by any of the given compartments.
func (ix *Index) ResourcesIn(compartmentIDs []string) []api.Resource {
	var out []api.Resource
	for _, id := range compartmentIDs {
		for _, i := range ix.byComp[id] {
			out = append(out, ix.resources[i])
		}
	}
	return out
}

// Search returns records whose display name contains pattern,
// case-insensitively. An empty pattern returns everything.
//
// Patterns of 3+ runes intersect trigram bitmaps and verify candidates;
// shorter patterns fall back to a linear scan over the in-memory names.
func (ix *Index) Search(pattern string) []api.Resource {
	if pattern == "" {
		return ix.Resources()
	}
	lower := strings.ToLower(pattern)

	tris := trigrams(lower)
	if len(tris) == 0 {
		var out []api.Resource
		for i, name := range ix.lowerNames {
			if strings.Contains(name, lower) {
				out = append(out, ix.resources[i])
			}
		}
		return out
	}

	bms := make([]*roaring.Bitmap, 0, len(tris))
	for _, tri := range tris {
		bm, ok := ix.trigrams[tri]
		if !ok {
			return nil
		}
		bms = append(bms, bm)
	}
	candidates := roaring.FastAnd(bms...)

	var out []api.Resource
	it := candidates.Iterator()
	for it.HasNext() {
		i := it.Next()
		if strings.Contains(ix.lowerNames[i], lower) {
			out = append(out, ix.resources[i])
		}
	}
	return out
}

// CountsByKind groups record counts by resource kind.
func (ix *Index) CountsByKind() map[api.ResourceKind]int {
	out := make(map[api.ResourceKind]int)
	for _, r := range ix.resources {
		out[r.Kind]++
	}
	return out
}

// CountsByCompartment groups record counts by compartment display name.
// Compartments with no records are omitted.
func (ix *Index) CountsByCompartment() map[string]int {
	out := make(map[string]int)
	for compID, idxs := range ix.byComp {
		name := compID
		if c, ok := ix.compByID[compID]; ok {
			name = c.Name
		}
		out[name] += len(idxs)
	}
	return out
}

// SortedCompartmentNames returns compartment display names in sorted order.
// Convenience for deterministic CLI output.
func (ix *Index) SortedCompartmentNames() []string {
	names := make([]string, 0, len(ix.compartments))
	for _, c := range ix.compartments {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}
