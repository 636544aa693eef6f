package search

import (
	"strings"
	"sync"

	"opsmap/internal/domain"
)

// MaxMatches caps the number of results returned for a query
const MaxMatches = 8

// Query returns the ids of up to MaxMatches nodes whose id contains text,
// case-insensitively. Results follow node order. A blank query matches nothing.
func Query(text string, nodes []domain.RenderNode) []string {
	q := strings.ToLower(strings.TrimSpace(text))
	if q == "" {
		return []string{}
	}

	matches := make([]string, 0, MaxMatches)
	for _, n := range nodes {
		if strings.Contains(strings.ToLower(n.ID), q) {
			matches = append(matches, n.ID)
			if len(matches) == MaxMatches {
				break
			}
		}
	}
	return matches
}

// Key is a keyboard action on the search box
type Key string

const (
	KeyEnter  Key = "Enter"
	KeyEscape Key = "Escape"
)

// State is a snapshot of the search box
type State struct {
	Query    string   `json:"query"`
	Matches  []string `json:"matches"`
	Selected string   `json:"selected,omitempty"`
}

// Index holds the search state of one view
type Index struct {
	mu       sync.RWMutex
	nodes    []domain.RenderNode
	present  map[string]struct{}
	query    string
	matches  []string
	selected string
}

// NewIndex creates an empty index
func NewIndex() *Index {
	return &Index{
		present: make(map[string]struct{}),
		matches: []string{},
	}
}

// SetNodes replaces the node set. Matches are recomputed and the selection is
// dropped when the selected node is no longer present.
func (i *Index) SetNodes(nodes []domain.RenderNode) {
	present := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		present[n.ID] = struct{}{}
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.nodes = nodes
	i.present = present
	if _, ok := present[i.selected]; !ok {
		i.selected = ""
	}
	i.matches = Query(i.query, nodes)
}

// SetQuery updates the query text and returns the new matches
func (i *Index) SetQuery(text string) []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.query = text
	i.matches = Query(text, i.nodes)
	return append([]string(nil), i.matches...)
}

// Select marks a node as selected. Unknown ids are ignored.
func (i *Index) Select(id string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.present[id]; !ok {
		return false
	}
	i.selected = id
	return true
}

// Commit handles Enter: the first match, if any, becomes the selection.
// It returns the id to focus.
func (i *Index) Commit() (string, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.matches) == 0 {
		return "", false
	}
	i.selected = i.matches[0]
	return i.selected, true
}

// Cancel handles Escape: the query is cleared, the selection is kept
func (i *Index) Cancel() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.query = ""
	i.matches = []string{}
}

// Clear resets both the query and the selection
func (i *Index) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.query = ""
	i.matches = []string{}
	i.selected = ""
}

// HandleKey dispatches a keyboard action. For Enter it returns the id to
// focus; other keys return false.
func (i *Index) HandleKey(k Key) (string, bool) {
	switch k {
	case KeyEnter:
		return i.Commit()
	case KeyEscape:
		i.Cancel()
	}
	return "", false
}

// IsMatch reports whether id is among the current matches
func (i *Index) IsMatch(id string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	for _, m := range i.matches {
		if m == id {
			return true
		}
	}
	return false
}

// MatchSet returns the current matches as a set
func (i *Index) MatchSet() map[string]bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	set := make(map[string]bool, len(i.matches))
	for _, m := range i.matches {
		set[m] = true
	}
	return set
}

// Selected returns the selected node id, "" when none
func (i *Index) Selected() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.selected
}

// State returns a copy of the current state
func (i *Index) State() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return State{
		Query:    i.query,
		Matches:  append([]string{}, i.matches...),
		Selected: i.selected,
	}
}
