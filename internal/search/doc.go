// Package search implements incremental node search.
//
// Query is a pure function over the node set. Index owns the per-view search
// state (query text, derived matches, selected node) and keeps it consistent
// across data refreshes.
package search
