package render

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

type shape func(z *vector.Rasterizer)

type rasterOp struct {
	color  color.NRGBA
	shape  shape
	text   string
	x, y   float64
	isText bool
}

// Raster is a Canvas backed by an RGBA image.
//
// Shapes are queued and rasterized on Flush; consecutive shapes of the same
// color share one rasterizer pass.
type Raster struct {
	img  *image.RGBA
	z    vector.Rasterizer
	ops  []rasterOp
	face font.Face
}

// NewRaster creates a canvas of the given size
func NewRaster(width, height int) *Raster {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return &Raster{
		img:  image.NewRGBA(image.Rect(0, 0, width, height)),
		face: basicfont.Face7x13,
	}
}

func (r *Raster) bounds() (float64, float64) {
	b := r.img.Bounds()
	return float64(b.Dx()), float64(b.Dy())
}

// visible reports whether a box around (x, y) intersects the canvas
func (r *Raster) visible(x, y, reach float64) bool {
	w, h := r.bounds()
	return x+reach >= 0 && y+reach >= 0 && x-reach <= w && y-reach <= h
}

func (r *Raster) push(c string, s shape) {
	col, err := ParseColor(c)
	if err != nil || col.A == 0 {
		return
	}
	r.ops = append(r.ops, rasterOp{color: col, shape: s})
}

// Fill paints the whole canvas, dropping anything queued before it
func (r *Raster) Fill(c string) {
	col, err := ParseColor(c)
	if err != nil {
		return
	}
	r.ops = r.ops[:0]
	draw.Draw(r.img, r.img.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
}

// Line queues a stroke of the given pixel width
func (r *Raster) Line(x1, y1, x2, y2, width float64, c string) {
	dx, dy := x2-x1, y2-y1
	length := math.Hypot(dx, dy)
	if length == 0 || width <= 0 {
		return
	}
	if !r.visible((x1+x2)/2, (y1+y2)/2, length/2+width) {
		return
	}
	nx, ny := -dy/length*width/2, dx/length*width/2
	r.push(c, func(z *vector.Rasterizer) {
		z.MoveTo(float32(x1+nx), float32(y1+ny))
		z.LineTo(float32(x2+nx), float32(y2+ny))
		z.LineTo(float32(x2-nx), float32(y2-ny))
		z.LineTo(float32(x1-nx), float32(y1-ny))
		z.ClosePath()
	})
}

// Disc queues a filled circle
func (r *Raster) Disc(x, y, radius float64, c string) {
	if radius <= 0 || !r.visible(x, y, radius) {
		return
	}
	r.push(c, func(z *vector.Rasterizer) { circle(z, x, y, radius, false) })
}

// Ring queues a circle outline of the given pixel width
func (r *Raster) Ring(x, y, radius, width float64, c string) {
	if radius <= 0 || width <= 0 || !r.visible(x, y, radius+width) {
		return
	}
	outer := radius + width/2
	inner := math.Max(radius-width/2, 0)
	r.push(c, func(z *vector.Rasterizer) {
		circle(z, x, y, outer, false)
		if inner > 0 {
			circle(z, x, y, inner, true)
		}
	})
}

// Text queues a label with its baseline at (x, y)
func (r *Raster) Text(x, y float64, s, c string) {
	if s == "" {
		return
	}
	col, err := ParseColor(c)
	if err != nil {
		return
	}
	r.ops = append(r.ops, rasterOp{color: col, text: s, x: x, y: y, isText: true})
}

// circle adds a polygonal circle; reversed winding cuts a hole
func circle(z *vector.Rasterizer, cx, cy, radius float64, reverse bool) {
	n := int(radius*1.5) + 12
	if n > 64 {
		n = 64
	}
	for i := 0; i <= n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		if reverse {
			a = -a
		}
		px := float32(cx + radius*math.Cos(a))
		py := float32(cy + radius*math.Sin(a))
		if i == 0 {
			z.MoveTo(px, py)
			continue
		}
		z.LineTo(px, py)
	}
	z.ClosePath()
}

// Flush rasterizes all queued operations in order
func (r *Raster) Flush() {
	w, h := r.img.Bounds().Dx(), r.img.Bounds().Dy()
	for i := 0; i < len(r.ops); {
		op := r.ops[i]
		if op.isText {
			d := &font.Drawer{
				Dst:  r.img,
				Src:  image.NewUniform(op.color),
				Face: r.face,
				Dot:  fixed.P(int(op.x), int(op.y)),
			}
			d.DrawString(op.text)
			i++
			continue
		}

		r.z.Reset(w, h)
		j := i
		for ; j < len(r.ops) && !r.ops[j].isText && r.ops[j].color == op.color; j++ {
			r.ops[j].shape(&r.z)
		}
		r.z.Draw(r.img, r.img.Bounds(), image.NewUniform(op.color), image.Point{})
		i = j
	}
	r.ops = r.ops[:0]
}

// Image flushes and returns the underlying image
func (r *Raster) Image() *image.RGBA {
	r.Flush()
	return r.img
}

// EncodePNG flushes and writes the canvas as PNG
func (r *Raster) EncodePNG(w io.Writer) error {
	return png.Encode(w, r.Image())
}
