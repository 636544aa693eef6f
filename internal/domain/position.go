package domain

import "math"

// Position is a 2D point assigned to a node by the layout engine
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// IsFinite reports whether both coordinates are usable for camera targeting
func (p Position) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Bounds is an axis-aligned bounding box
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// BoundsOf returns the bounding box of the positions and false when empty
func BoundsOf(positions map[string]Position) (Bounds, bool) {
	var b Bounds
	first := true
	for _, p := range positions {
		if !p.IsFinite() {
			continue
		}
		if first {
			b = Bounds{MinX: p.X, MinY: p.Y, MaxX: p.X, MaxY: p.Y}
			first = false
			continue
		}
		b.MinX = math.Min(b.MinX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	return b, !first
}

// Center returns the center of the box
func (b Bounds) Center() Position {
	return Position{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2}
}

// Width returns the horizontal extent
func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

// Height returns the vertical extent
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// Camera is the viewport transform: the world point shown at the center of
// the screen and the zoom factor
type Camera struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// DefaultCamera looks at the origin at zoom 1
func DefaultCamera() Camera {
	return Camera{Zoom: 1}
}

// ToScreen maps a world point to screen coordinates for a viewport
func (c Camera) ToScreen(p Position, width, height float64) Position {
	return Position{
		X: (p.X-c.X)*c.Zoom + width/2,
		Y: (p.Y-c.Y)*c.Zoom + height/2,
	}
}

// ToWorld maps screen coordinates back to a world point
func (c Camera) ToWorld(p Position, width, height float64) Position {
	if c.Zoom == 0 {
		return Position{X: c.X, Y: c.Y}
	}
	return Position{
		X: (p.X-width/2)/c.Zoom + c.X,
		Y: (p.Y-height/2)/c.Zoom + c.Y,
	}
}
