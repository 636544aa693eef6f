package layout

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"opsmap/internal/domain"
	"opsmap/internal/overlay"
	"opsmap/internal/view"
)

// Config holds simulation and camera parameters
type Config struct {
	AlphaMin       float64
	AlphaDecay     float64
	VelocityDecay  float64
	ChargeStrength float64
	LinkDistance   float64
	// Cooldown stops the simulation this long after SetData even if alpha
	// is still above AlphaMin
	Cooldown     time.Duration
	TickInterval time.Duration
	FitPadding   float64
	MinZoom      float64
	MaxZoom      float64
}

// DefaultConfig mirrors the usual d3-force defaults with a 1.2s cooldown
func DefaultConfig() Config {
	return Config{
		AlphaMin:       0.001,
		AlphaDecay:     1 - math.Pow(0.001, 1.0/300),
		VelocityDecay:  0.4,
		ChargeStrength: -30,
		LinkDistance:   30,
		Cooldown:       1200 * time.Millisecond,
		TickInterval:   16 * time.Millisecond,
		FitPadding:     80,
		MinZoom:        0.01,
		MaxZoom:        8,
	}
}

// Option configures an Engine
type Option func(*Engine)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSeed fixes the jitter source
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.rng = rand.New(rand.NewSource(seed)) }
}

// Engine is a force-directed layout simulation with a camera
type Engine struct {
	mu  sync.Mutex
	cfg Config
	now func() time.Time
	rng *rand.Rand

	bodies []*Body
	byID   map[string]*Body
	links  []*Link

	alpha    float64
	started  time.Time
	running  bool
	gen      uint64
	onSettle func(gen uint64)

	width  float64
	height float64
	camera cameraState
}

var _ view.Engine = (*Engine)(nil)

// New creates an engine with no data
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		now:    time.Now,
		rng:    rand.New(rand.NewSource(1)),
		byID:   make(map[string]*Body),
		camera: cameraState{cam: domain.DefaultCamera()},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetData replaces the graph and reheats the simulation. Bodies whose id
// survives keep their position; new bodies are placed on a phyllotaxis
// spiral. Links with an unknown endpoint are ignored. The returned
// generation is passed to the settle callback for this dataset.
func (e *Engine) SetData(nodes []domain.RenderNode, links []domain.RenderLink) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	bodies := make([]*Body, 0, len(nodes))
	byID := make(map[string]*Body, len(nodes))
	for i, n := range nodes {
		if _, dup := byID[n.ID]; dup {
			continue
		}
		b := &Body{Node: n}
		if prev, ok := e.byID[n.ID]; ok {
			b.X, b.Y = prev.X, prev.Y
		} else {
			b.X, b.Y = phyllotaxis(i)
		}
		bodies = append(bodies, b)
		byID[n.ID] = b
	}

	resolved := make([]*Link, 0, len(links))
	count := make(map[*Body]int, len(bodies))
	for _, l := range links {
		s, t := byID[l.Source], byID[l.Target]
		if s == nil || t == nil {
			continue
		}
		count[s]++
		count[t]++
		resolved = append(resolved, &Link{Data: l, Source: s, Target: t})
	}
	for _, l := range resolved {
		cs, ct := float64(count[l.Source]), float64(count[l.Target])
		l.strength = 1 / math.Min(cs, ct)
		l.bias = cs / (cs + ct)
	}

	e.bodies = bodies
	e.byID = byID
	e.links = resolved
	e.alpha = 1
	e.started = e.now()
	e.running = len(bodies) > 0
	e.gen++
	return e.gen
}

// OnSettle registers the callback fired once per SetData when the
// simulation cools down. It is called without the engine lock held, so a
// newer SetData may already have replaced the dataset named by gen.
func (e *Engine) OnSettle(fn func(gen uint64)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onSettle = fn
}

// Warmup advances the simulation without checking for settle
func (e *Engine) Warmup(ticks int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := 0; i < ticks && len(e.bodies) > 0; i++ {
		e.step()
	}
}

// Tick advances the simulation by one step and fires the settle callback
// when alpha drops below AlphaMin or the cooldown has elapsed. It reports
// whether the simulation is still running.
func (e *Engine) Tick() bool {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return false
	}
	e.step()
	settled := e.alpha < e.cfg.AlphaMin || e.now().Sub(e.started) >= e.cfg.Cooldown
	if settled {
		e.running = false
	}
	cb, gen := e.onSettle, e.gen
	e.mu.Unlock()

	if settled && cb != nil {
		cb(gen)
	}
	return !settled
}

// Running reports whether the simulation has not yet settled
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Alpha returns the current simulation energy
func (e *Engine) Alpha() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.alpha
}

// Run ticks the simulation until ctx is done
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

func (e *Engine) jiggle() float64 {
	return (e.rng.Float64() - 0.5) * 1e-6
}

// step applies one round of forces. Caller holds the lock.
func (e *Engine) step() {
	e.alpha += (0 - e.alpha) * e.cfg.AlphaDecay
	alpha := e.alpha

	for _, l := range e.links {
		s, t := l.Source, l.Target
		x := t.X + t.VX - s.X - s.VX
		y := t.Y + t.VY - s.Y - s.VY
		if x == 0 {
			x = e.jiggle()
		}
		if y == 0 {
			y = e.jiggle()
		}
		d := math.Sqrt(x*x + y*y)
		k := (d - e.cfg.LinkDistance) / d * alpha * l.strength
		x *= k
		y *= k
		t.VX -= x * l.bias
		t.VY -= y * l.bias
		s.VX += x * (1 - l.bias)
		s.VY += y * (1 - l.bias)
	}

	for i, a := range e.bodies {
		for _, b := range e.bodies[i+1:] {
			x := b.X - a.X
			y := b.Y - a.Y
			if x == 0 {
				x = e.jiggle()
			}
			if y == 0 {
				y = e.jiggle()
			}
			l := x*x + y*y
			if l < 1 {
				l = math.Sqrt(l)
			}
			w := e.cfg.ChargeStrength * alpha / l
			a.VX += x * w
			a.VY += y * w
			b.VX -= x * w
			b.VY -= y * w
		}
	}

	var sx, sy float64
	for _, b := range e.bodies {
		sx += b.X
		sy += b.Y
	}
	n := float64(len(e.bodies))
	sx, sy = sx/n, sy/n
	keep := 1 - e.cfg.VelocityDecay
	for _, b := range e.bodies {
		b.X -= sx
		b.Y -= sy
		b.VX *= keep
		b.VY *= keep
		b.X += b.VX
		b.Y += b.VY
	}
}

// Positions returns a copy of every body position
func (e *Engine) Positions() map[string]domain.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]domain.Position, len(e.bodies))
	for _, b := range e.bodies {
		out[b.Node.ID] = b.Position()
	}
	return out
}

// Links returns the simulated links
func (e *Engine) Links() []overlay.Link {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]overlay.Link, len(e.links))
	for i, l := range e.links {
		out[i] = l
	}
	return out
}

// SetViewport records the viewport size used for fitting
func (e *Engine) SetViewport(width, height float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.width = width
	e.height = height
}

// CenterAndFit recenters the camera and zooms so every body fits inside the
// viewport minus FitPadding on each side
func (e *Engine) CenterAndFit(d time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.bodies) == 0 || e.width <= 0 || e.height <= 0 {
		return view.ErrNotReady
	}
	positions := make(map[string]domain.Position, len(e.bodies))
	for _, b := range e.bodies {
		positions[b.Node.ID] = b.Position()
	}
	bounds, ok := domain.BoundsOf(positions)
	if !ok {
		return view.ErrNotReady
	}

	now := e.now()
	e.camera.panTo(bounds.Center(), now, d)

	availW := math.Max(e.width-2*e.cfg.FitPadding, 1)
	availH := math.Max(e.height-2*e.cfg.FitPadding, 1)
	k := math.Min(availW/math.Max(bounds.Width(), 1e-12), availH/math.Max(bounds.Height(), 1e-12))
	e.camera.zoomTo(e.clampZoom(k), now, d)
	return nil
}

// CenterAt pans the camera onto p
func (e *Engine) CenterAt(p domain.Position, d time.Duration) error {
	if !p.IsFinite() {
		return fmt.Errorf("invalid camera target (%v, %v)", p.X, p.Y)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.camera.panTo(p, e.now(), d)
	return nil
}

// Zoom changes the zoom factor, clamped to [MinZoom, MaxZoom]
func (e *Engine) Zoom(k float64, d time.Duration) error {
	if k <= 0 || math.IsNaN(k) || math.IsInf(k, 0) {
		return fmt.Errorf("invalid zoom %v", k)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.camera.zoomTo(e.clampZoom(k), e.now(), d)
	return nil
}

// Camera returns the camera at the current time
func (e *Engine) Camera() domain.Camera {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.camera.current(e.now())
}

func (e *Engine) clampZoom(k float64) float64 {
	return math.Max(e.cfg.MinZoom, math.Min(e.cfg.MaxZoom, k))
}
