package layout

import (
	"time"

	"opsmap/internal/domain"
)

// tween interpolates a pair of values over time with quadratic ease-out
type tween struct {
	fromA, fromB float64
	toA, toB     float64
	start        time.Time
	d            time.Duration
}

func (t *tween) at(now time.Time) (a, b float64, done bool) {
	if t.d <= 0 {
		return t.toA, t.toB, true
	}
	p := float64(now.Sub(t.start)) / float64(t.d)
	if p >= 1 {
		return t.toA, t.toB, true
	}
	if p < 0 {
		p = 0
	}
	e := p * (2 - p)
	return t.fromA + (t.toA-t.fromA)*e, t.fromB + (t.toB-t.fromB)*e, false
}

// cameraState is the camera plus its running transitions
type cameraState struct {
	cam  domain.Camera
	pan  *tween
	zoom *tween
}

// current advances finished transitions and returns the camera at now
func (c *cameraState) current(now time.Time) domain.Camera {
	if c.pan != nil {
		x, y, done := c.pan.at(now)
		c.cam.X, c.cam.Y = x, y
		if done {
			c.pan = nil
		}
	}
	if c.zoom != nil {
		k, _, done := c.zoom.at(now)
		c.cam.Zoom = k
		if done {
			c.zoom = nil
		}
	}
	return c.cam
}

func (c *cameraState) panTo(p domain.Position, now time.Time, d time.Duration) {
	cur := c.current(now)
	if d <= 0 {
		c.cam.X, c.cam.Y = p.X, p.Y
		c.pan = nil
		return
	}
	c.pan = &tween{fromA: cur.X, fromB: cur.Y, toA: p.X, toB: p.Y, start: now, d: d}
}

func (c *cameraState) zoomTo(k float64, now time.Time, d time.Duration) {
	cur := c.current(now)
	if d <= 0 {
		c.cam.Zoom = k
		c.zoom = nil
		return
	}
	c.zoom = &tween{fromA: cur.Zoom, toA: k, start: now, d: d}
}
