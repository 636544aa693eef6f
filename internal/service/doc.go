// Package service implements the operations map behind the HTTP handlers
// and the CLI.
//
// # Services
//
// OperationsService owns the loaded network snapshot, the Pareto endpoints
// returned by the optimizer and the metric overlay for the selected mode.
// It guards recomputation so that only one optimizer request is in flight,
// records every run in the repository and exports results as CSV.
//
// SettingsService holds the optimization settings (weights, scales,
// scenario), applies presets and, when auto-recompute is on, reruns the
// optimizer after a trailing debounce.
//
// ViewService hosts interactive map views. Each view owns a layout engine
// and a view.Controller; the service pushes network refreshes to every open
// view and discards them for views that were closed.
//
// # Event System
//
// All services publish events via EventBus for real-time updates to connected
// clients via Server-Sent Events (SSE).
package service
