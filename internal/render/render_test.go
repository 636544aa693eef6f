package render

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsmap/internal/domain"
	"opsmap/internal/overlay"
)

type call struct {
	kind  string
	x, y  float64
	r     float64
	color string
	text  string
}

type recorder struct {
	calls []call
}

func (c *recorder) Fill(color string) { c.calls = append(c.calls, call{kind: "fill", color: color}) }
func (c *recorder) Line(x1, y1, x2, y2, width float64, color string) {
	c.calls = append(c.calls, call{kind: "line", x: x1, y: y1, r: width, color: color})
}
func (c *recorder) Disc(x, y, r float64, color string) {
	c.calls = append(c.calls, call{kind: "disc", x: x, y: y, r: r, color: color})
}
func (c *recorder) Ring(x, y, r, width float64, color string) {
	c.calls = append(c.calls, call{kind: "ring", x: x, y: y, r: r, color: color})
}
func (c *recorder) Text(x, y float64, s, color string) {
	c.calls = append(c.calls, call{kind: "text", x: x, y: y, text: s, color: color})
}

func (c *recorder) of(kind string) []call {
	var out []call
	for _, cl := range c.calls {
		if cl.kind == kind {
			out = append(out, cl)
		}
	}
	return out
}

func testFrame() Frame {
	return Frame{
		Width:  800,
		Height: 600,
		Camera: domain.DefaultCamera(),
		Nodes: []domain.RenderNode{
			{ID: "A", Label: "A", Type: domain.NodeTypeSource},
			{ID: "B", Label: "B", Type: domain.NodeTypeSink},
			{ID: "C", Label: "C"},
		},
		Links: []overlay.Link{
			domain.RenderLink{Source: "A", Target: "B"},
			domain.RenderLink{Source: "B", Target: "C"},
		},
		Positions: map[string]domain.Position{
			"A": {X: 0, Y: 0},
			"B": {X: 100, Y: 0},
		},
	}
}

func TestDrawDefaults(t *testing.T) {
	c := &recorder{}
	NewRenderer().Draw(c, testFrame())

	require.NotEmpty(t, c.calls)
	assert.Equal(t, "fill", c.calls[0].kind)

	lines := c.of("line")
	require.Len(t, lines, 1, "link to an unplaced node is skipped")
	assert.Equal(t, "#cbd5e1", lines[0].color)
	assert.Equal(t, 1.2, lines[0].r)

	discs := c.of("disc")
	require.Len(t, discs, 2)
	assert.Equal(t, call{kind: "disc", x: 400, y: 300, r: 5, color: "#111827"}, discs[0])
	assert.Equal(t, 500.0, discs[1].x)

	assert.Empty(t, c.of("ring"))
	texts := c.of("text")
	require.Len(t, texts, 2)
	assert.Equal(t, "#334155", texts[0].color)
	assert.Equal(t, 406.0, texts[0].x)
}

func TestDrawRings(t *testing.T) {
	f := testFrame()
	f.Selected = "A"
	f.Matches = map[string]bool{"A": true, "B": true}
	f.Camera.Zoom = 2

	c := &recorder{}
	NewRenderer().Draw(c, f)

	rings := c.of("ring")
	require.Len(t, rings, 2)
	assert.Equal(t, "#16a34a", rings[0].color, "selection wins over match")
	assert.Equal(t, 15.0, rings[0].r)
	assert.Equal(t, "rgba(22,163,74,0.45)", rings[1].color)
}

func TestDrawColorFunctions(t *testing.T) {
	r := NewRenderer()
	r.NodeColor = TypeColor
	var seen []string
	r.LinkColor = func(l overlay.Link) string {
		s, t := l.Endpoints()
		seen = append(seen, fmt.Sprintf("%v %v", s, t))
		return "#dc2626"
	}

	c := &recorder{}
	r.Draw(c, testFrame())

	assert.Equal(t, []string{"A B", "B C"}, seen)
	assert.Equal(t, "#dc2626", c.of("line")[0].color)
	discs := c.of("disc")
	assert.Equal(t, ColorSource, discs[0].color)
	assert.Equal(t, ColorSink, discs[1].color)
}

func TestHitTest(t *testing.T) {
	r := NewRenderer()
	f := testFrame()

	id, ok := r.HitTest(f, 402, 301)
	require.True(t, ok)
	assert.Equal(t, "A", id)

	_, ok = r.HitTest(f, 450, 300)
	assert.False(t, ok)

	f.Camera.Zoom = 4
	id, ok = r.HitTest(f, 418, 300)
	require.True(t, ok)
	assert.Equal(t, "A", id)
}

func TestTypeColor(t *testing.T) {
	assert.Equal(t, ColorSource, TypeColor(domain.RenderNode{Type: domain.NodeTypeSource}))
	assert.Equal(t, ColorGhost, TypeColor(domain.RenderNode{Type: domain.NodeTypeGhost}))
	assert.Equal(t, ColorOther, TypeColor(domain.RenderNode{Type: "depot"}))
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{in: "#dc2626", want: color.NRGBA{R: 0xdc, G: 0x26, B: 0x26, A: 0xff}},
		{in: "#fff", want: color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}},
		{in: "rgba(22, 163, 74, 0.45)", want: color.NRGBA{R: 22, G: 163, B: 74, A: 115}},
		{in: "rgb(1,2,3)", want: color.NRGBA{R: 1, G: 2, B: 3, A: 0xff}},
		{in: "#12345", wantErr: true},
		{in: "rgba(300,0,0,1)", wantErr: true},
		{in: "tomato", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRasterDrawsFrame(t *testing.T) {
	raster := NewRaster(200, 100)
	f := Frame{
		Width:     200,
		Height:    100,
		Camera:    domain.Camera{Zoom: 2},
		Nodes:     []domain.RenderNode{{ID: "A", Label: "A"}},
		Positions: map[string]domain.Position{"A": {}},
	}
	NewRenderer().Draw(raster, f)

	img := raster.Image()
	assert.Equal(t, color.RGBA{R: 0x11, G: 0x18, B: 0x27, A: 0xff}, img.RGBAAt(100, 50))
	assert.Equal(t, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, img.RGBAAt(5, 5))

	var buf bytes.Buffer
	require.NoError(t, raster.EncodePNG(&buf))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 200, decoded.Bounds().Dx())
}
