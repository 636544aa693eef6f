package render

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"opsmap/internal/domain"
)

// Topology palette by node type bucket
const (
	ColorSource = "#2563eb"
	ColorSink   = "#111827"
	ColorGhost  = "#64748b"
	ColorOther  = "#0f172a"
)

// TypeColor colors a node by its type bucket
func TypeColor(n domain.RenderNode) string {
	switch n.Type.Bucket() {
	case domain.NodeTypeSource:
		return ColorSource
	case domain.NodeTypeSink:
		return ColorSink
	case domain.NodeTypeGhost:
		return ColorGhost
	default:
		return ColorOther
	}
}

// ParseColor parses "#rgb", "#rrggbb", "rgb(r,g,b)" and "rgba(r,g,b,a)"
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(strings.ToLower(s))

	if strings.HasPrefix(s, "#") {
		hex := s[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) != 6 {
			return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
		}
		return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
	}

	var args string
	switch {
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		args = s[5 : len(s)-1]
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		args = s[4 : len(s)-1]
	default:
		return color.NRGBA{}, fmt.Errorf("unsupported color %q", s)
	}

	parts := strings.Split(args, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	var c [3]uint8
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || v < 0 || v > 255 {
			return color.NRGBA{}, fmt.Errorf("invalid color component in %q", s)
		}
		c[i] = uint8(v)
	}
	alpha := 1.0
	if len(parts) == 4 {
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || a < 0 || a > 1 {
			return color.NRGBA{}, fmt.Errorf("invalid alpha in %q", s)
		}
		alpha = a
	}
	return color.NRGBA{R: c[0], G: c[1], B: c[2], A: uint8(alpha*255 + 0.5)}, nil
}
