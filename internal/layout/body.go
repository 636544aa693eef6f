package layout

import (
	"math"

	"opsmap/internal/domain"
)

// Body is a simulated node
type Body struct {
	Node   domain.RenderNode
	X, Y   float64
	VX, VY float64
}

// EndpointID returns the node id
func (b *Body) EndpointID() string {
	return b.Node.ID
}

// Position returns the current position
func (b *Body) Position() domain.Position {
	return domain.Position{X: b.X, Y: b.Y}
}

// Link is a simulated link whose endpoints are resolved to bodies
type Link struct {
	Data   domain.RenderLink
	Source *Body
	Target *Body

	strength float64
	bias     float64
}

// Endpoints returns the resolved bodies
func (l *Link) Endpoints() (any, any) {
	return l.Source, l.Target
}

const (
	initialRadius = 10
	initialAngle  = math.Pi * (3 - 2.23606797749979) // golden angle
)

// phyllotaxis returns the initial position of the i-th body
func phyllotaxis(i int) (float64, float64) {
	r := initialRadius * math.Sqrt(0.5+float64(i))
	a := float64(i) * initialAngle
	return r * math.Cos(a), r * math.Sin(a)
}
