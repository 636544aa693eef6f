package view

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"opsmap/internal/domain"
	"opsmap/internal/render"
	"opsmap/internal/search"
)

// ErrNoViewport is returned when rendering before the viewport size is known
var ErrNoViewport = errors.New("viewport size unknown")

// Config holds per-view settings
type Config struct {
	WarmupTicks   int
	Stabilizer    StabilizerConfig
	FocusDuration time.Duration
	FocusZoom     float64
}

// DefaultConfig returns the settings of the operations map
func DefaultConfig() Config {
	return Config{
		WarmupTicks:   50,
		Stabilizer:    DefaultStabilizerConfig(),
		FocusDuration: 650 * time.Millisecond,
		FocusZoom:     3,
	}
}

// ViewState is the viewport as last observed from the client
type ViewState struct {
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	HasFitOnce bool    `json:"has_fit_once"`
}

// Snapshot is a read-only copy of a view's state
type Snapshot struct {
	View      ViewState                  `json:"view"`
	Phase     Phase                      `json:"phase"`
	Search    search.State               `json:"search"`
	Camera    domain.Camera              `json:"camera"`
	Nodes     int                        `json:"nodes"`
	Links     int                        `json:"links"`
	Positions map[string]domain.Position `json:"positions,omitempty"`
}

// Option configures a Controller
type Option func(*Controller)

// WithScheduler replaces the runtime timer, mainly for tests
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) { c.sched = s }
}

// WithNodeColor sets the node color function
func WithNodeColor(fn render.NodeColorFunc) Option {
	return func(c *Controller) { c.renderer.NodeColor = fn }
}

// WithLinkColor sets the link color function
func WithLinkColor(fn render.LinkColorFunc) Option {
	return func(c *Controller) { c.renderer.LinkColor = fn }
}

// Controller owns the state of one view: viewport, search, stabilization,
// the engine handle and the color functions
type Controller struct {
	mu       sync.Mutex
	cfg      Config
	engine   Engine
	sched    Scheduler
	stab     *Stabilizer
	search   *search.Index
	renderer *render.Renderer

	width  float64
	height float64
	nodes  []domain.RenderNode
	links  []domain.RenderLink
	closed bool

	// dataMu orders SetData against settle callbacks. gen is the engine
	// generation of the displayed dataset, zero while it is being replaced.
	dataMu sync.Mutex
	gen    uint64
}

// NewController creates a controller around an engine
func NewController(engine Engine, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		cfg:      cfg,
		engine:   engine,
		sched:    RealScheduler,
		search:   search.NewIndex(),
		renderer: render.NewRenderer(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.stab = NewStabilizer(engine, c.sched, cfg.Stabilizer)
	engine.OnSettle(c.settled)
	return c
}

// settled forwards a settle signal to the stabilizer when it belongs to the
// displayed dataset
func (c *Controller) settled(gen uint64) {
	c.dataMu.Lock()
	defer c.dataMu.Unlock()
	if c.Closed() || gen == 0 || gen != c.gen {
		return
	}
	c.stab.Settle()
}

// SetData replaces the displayed graph. Data arriving after Close is
// discarded and false is returned.
func (c *Controller) SetData(nodes []domain.RenderNode, links []domain.RenderLink) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.nodes = nodes
	c.links = links
	c.mu.Unlock()

	c.search.SetNodes(nodes)

	c.dataMu.Lock()
	c.gen = 0
	c.stab.Observe(len(nodes), len(links))
	c.gen = c.engine.SetData(nodes, links)
	c.dataMu.Unlock()

	// The engine reheats on every SetData
	c.engine.Warmup(c.cfg.WarmupTicks)
	return true
}

// SetGraph is SetData for a normalized graph
func (c *Controller) SetGraph(g domain.RenderGraph) bool {
	return c.SetData(g.Nodes, g.Links)
}

// SetLinkColor swaps the link color function
func (c *Controller) SetLinkColor(fn render.LinkColorFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderer.LinkColor = fn
}

// SetNodeColor swaps the node color function
func (c *Controller) SetNodeColor(fn render.NodeColorFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderer.NodeColor = fn
}

// Resize records the viewport size measured by the client. A settle fit
// that was skipped because the size was unknown runs now.
func (c *Controller) Resize(width, height float64) {
	c.mu.Lock()
	c.width = width
	c.height = height
	c.mu.Unlock()
	c.engine.SetViewport(width, height)
	if width > 0 && height > 0 {
		c.stab.Resume()
	}
}

// SetQuery updates the search text and returns the matches
func (c *Controller) SetQuery(text string) []string {
	return c.search.SetQuery(text)
}

// Key handles a search box key. Enter focuses the first match.
func (c *Controller) Key(k search.Key) search.State {
	if id, ok := c.search.HandleKey(k); ok {
		c.Focus(id)
	}
	return c.search.State()
}

// Pick selects a node and focuses it. Unknown ids are ignored.
func (c *Controller) Pick(id string) bool {
	if !c.search.Select(id) {
		return false
	}
	c.Focus(id)
	return true
}

// Focus moves the camera onto a node, or fits the whole graph when the node
// has not been placed yet
func (c *Controller) Focus(id string) {
	d := c.cfg.FocusDuration
	p, ok := c.engine.Positions()[id]
	if !ok || !p.IsFinite() {
		c.camera("focus fit", func() error { return c.engine.CenterAndFit(d) })
		return
	}
	c.camera("focus", func() error {
		if err := c.engine.CenterAt(p, d); err != nil {
			return err
		}
		return c.engine.Zoom(c.cfg.FocusZoom, d)
	})
}

// Click selects the node under a screen point
func (c *Controller) Click(x, y float64) (string, bool) {
	id, ok := c.renderer.HitTest(c.frame(), x, y)
	if !ok {
		return "", false
	}
	return id, c.Pick(id)
}

// ResetView clears search and selection and fits the graph
func (c *Controller) ResetView() {
	c.search.Clear()
	d := c.cfg.FocusDuration
	c.camera("reset", func() error { return c.engine.CenterAndFit(d) })
}

// Frame draws one frame onto the canvas
func (c *Controller) Frame(canvas render.Canvas) {
	c.mu.Lock()
	hasNodes := len(c.nodes) > 0
	width := c.width
	renderer := *c.renderer
	c.mu.Unlock()

	c.stab.PreRender(hasNodes, width)
	renderer.Draw(canvas, c.frame())
}

// RenderPNG draws one frame at the observed viewport size and encodes it
func (c *Controller) RenderPNG(w io.Writer) error {
	c.mu.Lock()
	width, height := c.width, c.height
	c.mu.Unlock()
	if width <= 0 || height <= 0 {
		return ErrNoViewport
	}

	raster := render.NewRaster(int(width), int(height))
	c.Frame(raster)
	if err := raster.EncodePNG(w); err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	return nil
}

// Snapshot returns the current state of the view
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	s := Snapshot{
		View:  ViewState{Width: c.width, Height: c.height},
		Nodes: len(c.nodes),
		Links: len(c.links),
	}
	c.mu.Unlock()

	s.Phase = c.stab.Phase()
	s.View.HasFitOnce = s.Phase == PhaseFitted
	s.Search = c.search.State()
	s.Camera = c.engine.Camera()
	s.Positions = c.engine.Positions()
	return s
}

// Close tears the view down; pending timers are cancelled
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.stab.Stop()
}

// Closed reports whether Close has been called
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Controller) frame() render.Frame {
	c.mu.Lock()
	f := render.Frame{
		Width:  c.width,
		Height: c.height,
		Nodes:  c.nodes,
	}
	c.mu.Unlock()

	f.Links = c.engine.Links()
	f.Positions = c.engine.Positions()
	f.Camera = c.engine.Camera()
	f.Selected = c.search.Selected()
	f.Matches = c.search.MatchSet()
	return f
}

func (c *Controller) camera(action string, fn func() error) {
	if err := safeCamera(fn); err != nil && !errors.Is(err, ErrNotReady) {
		log.Printf("Camera %s skipped: %v", action, err)
	}
}

// safeCamera runs a camera action, turning a panic into an error
func safeCamera(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("camera action panicked: %v", r)
		}
	}()
	return fn()
}
