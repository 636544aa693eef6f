// Package view owns the state of one interactive network view.
//
// A Controller ties together the layout engine, the search index, the
// renderer and the Stabilizer, which decides when the camera fits the
// freshly loaded graph. Timers go through a Scheduler so the fit protocol can
// be driven deterministically in tests.
package view
