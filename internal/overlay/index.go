package overlay

import "opsmap/internal/domain"

// Index is a direction-agnostic lookup from endpoint pairs to scored edges
type Index struct {
	edges map[EdgeKey]domain.ScoredEdge
}

// BuildIndex indexes every scored edge under both endpoint orderings.
//
// When the input holds both A→B and B→A as separate entries, the later one
// in iteration order wins for both orderings. This is last-write-wins, not
// a merge and not an error.
func BuildIndex(edges []domain.ScoredEdge) *Index {
	idx := &Index{edges: make(map[EdgeKey]domain.ScoredEdge, 2*len(edges))}
	for _, e := range edges {
		idx.edges[Key(e.Source, e.Target)] = e
		idx.edges[Key(e.Target, e.Source)] = e
	}
	return idx
}

// Lookup resolves the scored edge between two endpoints in either order.
// Endpoints may be bare ids or objects exposing an id.
func (i *Index) Lookup(a, b any) (domain.ScoredEdge, bool) {
	if i == nil || len(i.edges) == 0 {
		return domain.ScoredEdge{}, false
	}
	e, ok := i.edges[Key(EndpointID(a), EndpointID(b))]
	return e, ok
}

// Len returns the number of stored keys (two per distinct unordered pair)
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.edges)
}
