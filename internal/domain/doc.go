// Package domain defines the core domain types for the opsmap operational
// network visualization system.
//
// This package contains the entities exchanged with the external providers
// and the render-ready view of them.
//
// # Topology
//
// Node represents a facility or station (source, sink, ghost/transfer, other)
// with an optional demand. Edge represents a link between two nodes with an
// optional length and capacity. Unknown fields received from providers are
// kept in an open attribute bag and written back unchanged.
//
// Network is one topology snapshot. Snapshots are replaced wholesale on each
// fetch; there is no incremental patching.
//
// # Solutions
//
// ScoredEdge carries the per-edge flow, capacity, delay and congestion that
// the optimization provider computed for a given weighting. Solution groups
// the scored edges of one objective, and ParetoResponse holds the
// delay-optimal and congestion-optimal endpoints.
//
// # Render Model
//
// Normalize converts raw nodes and edges into RenderNode and RenderLink
// values, dropping any edge whose endpoint is not part of the node set.
//
// # Design Principles
//
// - No database or transport dependencies
// - Pure functions for derived views
// - Positions are owned by the layout engine, never by domain values
package domain
