// Package overlay maps optimization output onto rendered links.
//
// Index is a direction-agnostic lookup from an endpoint pair to the scored
// edge of the active solution. Every scored edge is stored under both
// orderings of its endpoints, so a rendered link resolves regardless of which
// side the layout engine reports as source. Endpoints may be given as bare
// identifiers or as objects exposing an identifier.
//
// Overlay composes the index with a threshold-based color function and the
// summary aggregation shown next to the map. It is rebuilt whenever the
// active solution changes.
package overlay
