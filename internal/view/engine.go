package view

import (
	"errors"
	"time"

	"opsmap/internal/domain"
	"opsmap/internal/overlay"
)

// ErrNotReady is returned by camera actions before the engine has any
// positioned data
var ErrNotReady = errors.New("layout engine not ready")

// Engine is the force simulation behind a view.
//
// Positions are owned by the engine. Everything else reads them through
// Positions and never writes them back.
type Engine interface {
	// SetData replaces the simulated graph, reheats the simulation and
	// returns the generation of the new dataset
	SetData(nodes []domain.RenderNode, links []domain.RenderLink) uint64
	// OnSettle registers the callback fired when the simulation cools down.
	// It receives the generation of the dataset that settled.
	OnSettle(fn func(gen uint64))
	// Warmup runs ticks before the first frame is drawn
	Warmup(ticks int)
	Positions() map[string]domain.Position
	// Links returns the simulated links with endpoints resolved to bodies
	Links() []overlay.Link
	SetViewport(width, height float64)
	// CenterAndFit pans to the center of the node bounds then zooms so every
	// node fits the viewport
	CenterAndFit(d time.Duration) error
	CenterAt(p domain.Position, d time.Duration) error
	Zoom(k float64, d time.Duration) error
	Camera() domain.Camera
}

// Timer is a pending scheduled call
type Timer interface {
	Stop() bool
}

// Scheduler runs functions after a delay
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// RealScheduler schedules on the runtime timer
var RealScheduler Scheduler = realScheduler{}
