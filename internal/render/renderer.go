package render

import (
	"math"
	"sort"

	"opsmap/internal/domain"
	"opsmap/internal/overlay"
)

// Canvas is a drawing surface in screen coordinates
type Canvas interface {
	Fill(color string)
	Line(x1, y1, x2, y2, width float64, color string)
	Disc(x, y, r float64, color string)
	Ring(x, y, r, width float64, color string)
	Text(x, y float64, s, color string)
}

// NodeColorFunc colors a node
type NodeColorFunc func(n domain.RenderNode) string

// LinkColorFunc colors a link
type LinkColorFunc func(l overlay.Link) string

// Style holds the default look of a frame. Sizes in world units scale with
// the camera zoom; stroke widths are screen pixels.
type Style struct {
	Background    string  `json:"background" yaml:"background"`
	NodeColor     string  `json:"node_color" yaml:"node_color"`
	LinkColor     string  `json:"link_color" yaml:"link_color"`
	LabelColor    string  `json:"label_color" yaml:"label_color"`
	SelectedColor string  `json:"selected_color" yaml:"selected_color"`
	MatchColor    string  `json:"match_color" yaml:"match_color"`
	NodeRadius    float64 `json:"node_radius" yaml:"node_radius"`
	RingRadius    float64 `json:"ring_radius" yaml:"ring_radius"`
	RingWidth     float64 `json:"ring_width" yaml:"ring_width"`
	LinkWidth     float64 `json:"link_width" yaml:"link_width"`
	// LabelOffset places labels relative to the node center, in world units
	LabelOffset domain.Position `json:"label_offset" yaml:"label_offset"`
}

// DefaultStyle returns the neutral palette
func DefaultStyle() Style {
	return Style{
		Background:    "#ffffff",
		NodeColor:     "#111827",
		LinkColor:     "#cbd5e1",
		LabelColor:    "#334155",
		SelectedColor: "#16a34a",
		MatchColor:    "rgba(22,163,74,0.45)",
		NodeRadius:    5,
		RingRadius:    7.5,
		RingWidth:     2,
		LinkWidth:     1.2,
		LabelOffset:   domain.Position{X: 6, Y: 3},
	}
}

// Frame is everything needed to draw one frame
type Frame struct {
	Width     float64
	Height    float64
	Camera    domain.Camera
	Nodes     []domain.RenderNode
	Links     []overlay.Link
	Positions map[string]domain.Position
	Selected  string
	Matches   map[string]bool
}

// Renderer draws frames. Nil color functions fall back to the style.
type Renderer struct {
	NodeColor NodeColorFunc
	LinkColor LinkColorFunc
	Style     Style
}

// NewRenderer creates a renderer with the default style
func NewRenderer() *Renderer {
	return &Renderer{Style: DefaultStyle()}
}

func (r *Renderer) nodeColor(n domain.RenderNode) string {
	if r.NodeColor != nil {
		if c := r.NodeColor(n); c != "" {
			return c
		}
	}
	return r.Style.NodeColor
}

func (r *Renderer) linkColor(l overlay.Link) string {
	if r.LinkColor != nil {
		if c := r.LinkColor(l); c != "" {
			return c
		}
	}
	return r.Style.LinkColor
}

type segment struct {
	a, b  domain.Position
	color string
}

// Draw renders the frame. Nodes without a position and links with an
// unplaced endpoint are skipped.
func (r *Renderer) Draw(c Canvas, f Frame) {
	c.Fill(r.Style.Background)
	zoom := f.Camera.Zoom
	if zoom <= 0 {
		zoom = 1
	}

	segments := make([]segment, 0, len(f.Links))
	for _, l := range f.Links {
		s, t := l.Endpoints()
		ps, ok := r.screen(f, overlay.EndpointID(s))
		if !ok {
			continue
		}
		pt, ok := r.screen(f, overlay.EndpointID(t))
		if !ok {
			continue
		}
		segments = append(segments, segment{a: ps, b: pt, color: r.linkColor(l)})
	}
	// Grouping by color lets raster canvases batch strokes
	sort.SliceStable(segments, func(i, j int) bool { return segments[i].color < segments[j].color })
	for _, s := range segments {
		c.Line(s.a.X, s.a.Y, s.b.X, s.b.Y, r.Style.LinkWidth, s.color)
	}

	for _, n := range f.Nodes {
		p, ok := r.screen(f, n.ID)
		if !ok {
			continue
		}
		c.Disc(p.X, p.Y, r.Style.NodeRadius*zoom, r.nodeColor(n))

		switch {
		case f.Selected != "" && n.ID == f.Selected:
			c.Ring(p.X, p.Y, r.Style.RingRadius*zoom, r.Style.RingWidth, r.Style.SelectedColor)
		case f.Matches[n.ID]:
			c.Ring(p.X, p.Y, r.Style.RingRadius*zoom, r.Style.RingWidth, r.Style.MatchColor)
		}
	}

	for _, n := range f.Nodes {
		p, ok := r.screen(f, n.ID)
		if !ok {
			continue
		}
		c.Text(p.X+r.Style.LabelOffset.X*zoom, p.Y+r.Style.LabelOffset.Y*zoom, n.Label, r.Style.LabelColor)
	}
}

// HitTest returns the node under the screen point, nearest first
func (r *Renderer) HitTest(f Frame, x, y float64) (string, bool) {
	zoom := f.Camera.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	reach := math.Max(r.Style.NodeRadius*zoom, 4)

	best := ""
	bestDist := math.Inf(1)
	for _, n := range f.Nodes {
		p, ok := r.screen(f, n.ID)
		if !ok {
			continue
		}
		d := math.Hypot(p.X-x, p.Y-y)
		if d <= reach && d < bestDist {
			best = n.ID
			bestDist = d
		}
	}
	return best, best != ""
}

func (r *Renderer) screen(f Frame, id string) (domain.Position, bool) {
	p, ok := f.Positions[id]
	if !ok || !p.IsFinite() {
		return domain.Position{}, false
	}
	cam := f.Camera
	if cam.Zoom <= 0 {
		cam.Zoom = 1
	}
	return cam.ToScreen(p, f.Width, f.Height), true
}
