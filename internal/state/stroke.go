package state

import (
	"fmt"
	"image/color"
	"strings"
	"time"
)

type Point struct{ X, Y float32 }

// Tool selects the rendering policy for a stroke. Exactly one tool is
// active at a time; the choice is baked into each stroke when it begins.
type Tool string

const (
	ToolBrush  Tool = "brush"
	ToolNeon   Tool = "neon"
	ToolEraser Tool = "eraser"
)

// StrokeStyle is resolved once when a stroke begins and applied unchanged
// to every segment of that stroke. Later tool or color changes never leak
// into a stroke that is already in progress.
type StrokeStyle struct {
	Color color.RGBA
	Width float32
	Glow  bool // neon halo around each segment
}

// Stroke is one continuous pointer-down-to-pointer-up gesture. Points are
// appended in temporal order and never reordered; finished strokes are
// immutable.
type Stroke struct {
	ID     string
	Tool   Tool
	Points []Point
	Color  color.RGBA
	Width  float32
	Time   time.Time
}

// ParseHexColor decodes a "#rrggbb" string into an opaque RGBA color.
func ParseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(s)
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s[1:], "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
}

// HexColor renders a color in the "#rrggbb" form used by palettes.
func HexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
