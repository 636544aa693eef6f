// Package handler implements the HTTP API of the operations map.
//
// # Handlers
//
// OperationsHandler serves the network snapshot, the optimizer results and
// the overlay derived from them: status, topology summary, dispatch table,
// mode switching, uploads and CSV downloads.
//
// SettingsHandler serves the optimization controls and presets.
//
// ViewHandler hosts interactive map views. Each view has REST commands, a
// PNG frame endpoint and a websocket that carries commands and pushes view
// snapshots.
//
// Middleware provides panic recovery, CORS and request logging.
//
// # Response Format
//
// Success responses return JSON with 200 or 201. Error responses return
// JSON with {error, details}.
package handler
