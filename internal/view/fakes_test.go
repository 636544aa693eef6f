package view

import (
	"sync"
	"time"

	"opsmap/internal/domain"
	"opsmap/internal/overlay"
)

type fakeTimer struct {
	d       time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{d: d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// Fire runs every pending timer
func (s *fakeScheduler) Fire() int {
	s.mu.Lock()
	pending := make([]*fakeTimer, 0, len(s.timers))
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			pending = append(pending, t)
		}
	}
	s.mu.Unlock()
	for _, t := range pending {
		t.fn()
	}
	return len(pending)
}

func (s *fakeScheduler) Pending() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Duration
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.d)
		}
	}
	return out
}

type cameraCall struct {
	op string
	d  time.Duration
	p  domain.Position
	k  float64
}

type fakeEngine struct {
	mu        sync.Mutex
	nodes     []domain.RenderNode
	links     []domain.RenderLink
	positions map[string]domain.Position
	gen       uint64
	settle    func(gen uint64)
	// onSetData runs inside SetData before the new dataset is installed
	onSetData func()
	warmups   []int
	calls     []cameraCall
	fitErr    error
	fitPanic  bool
	width     float64
	height    float64
	camera    domain.Camera
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		positions: make(map[string]domain.Position),
		camera:    domain.DefaultCamera(),
	}
}

func (e *fakeEngine) SetData(nodes []domain.RenderNode, links []domain.RenderLink) uint64 {
	if e.onSetData != nil {
		e.onSetData()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nodes = nodes
	e.links = links
	e.gen++
	return e.gen
}

func (e *fakeEngine) OnSettle(fn func(gen uint64)) { e.settle = fn }

// Settle signals that the current dataset cooled down
func (e *fakeEngine) Settle() { e.settle(e.generation()) }

func (e *fakeEngine) generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen
}

func (e *fakeEngine) Warmup(ticks int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.warmups = append(e.warmups, ticks)
}

func (e *fakeEngine) Positions() map[string]domain.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]domain.Position, len(e.positions))
	for k, v := range e.positions {
		out[k] = v
	}
	return out
}

func (e *fakeEngine) Links() []overlay.Link {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]overlay.Link, len(e.links))
	for i, l := range e.links {
		out[i] = l
	}
	return out
}

func (e *fakeEngine) SetViewport(width, height float64) {
	e.width, e.height = width, height
}

func (e *fakeEngine) CenterAndFit(d time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fitPanic {
		panic("graph handle is nil")
	}
	e.calls = append(e.calls, cameraCall{op: "fit", d: d})
	return e.fitErr
}

func (e *fakeEngine) CenterAt(p domain.Position, d time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, cameraCall{op: "center", d: d, p: p})
	return nil
}

func (e *fakeEngine) Zoom(k float64, d time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, cameraCall{op: "zoom", d: d, k: k})
	return nil
}

func (e *fakeEngine) Camera() domain.Camera { return e.camera }

func (e *fakeEngine) Calls() []cameraCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]cameraCall(nil), e.calls...)
}

func (e *fakeEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = nil
}

func (e *fakeEngine) fits(d time.Duration) int {
	n := 0
	for _, c := range e.Calls() {
		if c.op == "fit" && c.d == d {
			n++
		}
	}
	return n
}
