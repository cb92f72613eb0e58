package state

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
)

// DefaultBackground is the deep night-sky backdrop strokes are drawn onto.
var DefaultBackground = color.RGBA{R: 0x0b, G: 0x0d, B: 0x1a, A: 0xff}

const (
	minStrokeWidth = 1.0
	glowRadius     = 8.0  // extra halo radius for neon strokes, in pixels
	glowAlpha      = 0.30 // peak opacity of the halo
)

// Raster owns the pixel surface that strokes are composited onto. It is the
// only component that mutates pixels; everything else goes through Snapshot.
type Raster struct {
	mu      sync.RWMutex
	img     *image.RGBA
	bg      color.RGBA
	strokes []Stroke
	cur     *Stroke
	style   StrokeStyle
}

func NewRaster(width, height int, bg color.RGBA) *Raster {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	r := &Raster{bg: bg}
	r.img = image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(r.img, r.img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	return r
}

// BeginStroke starts a new stroke at p. The tool's rendering policy is
// resolved here, before any segment is drawn: brush and eraser paint opaque
// segments (the eraser in the background color, since the surface has no
// alpha channel of interest), neon adds a soft halo in the stroke's own
// color. Non-positive widths are clamped.
func (r *Raster) BeginStroke(p Point, tool Tool, c color.RGBA, width float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if width < minStrokeWidth {
		width = minStrokeWidth
	}

	style := StrokeStyle{Color: c, Width: width}
	switch tool {
	case ToolEraser:
		style.Color = r.bg
	case ToolNeon:
		style.Glow = true
	}

	if r.cur != nil {
		// Stray down event without a matching up; finalize the old stroke.
		r.strokes = append(r.strokes, *r.cur)
	}
	r.cur = &Stroke{
		ID:     uuid.NewString(),
		Tool:   tool,
		Points: []Point{p},
		Color:  style.Color,
		Width:  width,
		Time:   time.Now(),
	}
	r.style = style
	r.stampSegment(p, p, style)
}

// ExtendStroke appends p to the in-progress stroke and immediately renders
// the segment from the previous point. A move event with no active stroke
// (mouse re-entering mid-drag, etc.) is a no-op.
func (r *Raster) ExtendStroke(p Point) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cur == nil {
		return
	}
	prev := r.cur.Points[len(r.cur.Points)-1]
	r.cur.Points = append(r.cur.Points, p)
	r.stampSegment(prev, p, r.style)
}

// EndStroke finalizes the in-progress stroke. Idempotent.
func (r *Raster) EndStroke() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cur == nil {
		return
	}
	r.strokes = append(r.strokes, *r.cur)
	r.cur = nil
}

// Clear resets the whole surface to the background color and drops the
// stroke history. Irreversible; confirmation is the caller's problem.
func (r *Raster) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	draw.Draw(r.img, r.img.Bounds(), image.NewUniform(r.bg), image.Point{}, draw.Src)
	r.strokes = nil
	r.cur = nil
}

// Resize reallocates the surface to the new viewport size and redraws the
// previous content at the origin. Shrinking clips; that is expected.
func (r *Raster) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if width < 1 || height < 1 {
		return
	}
	b := r.img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return
	}
	next := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(next, next.Bounds(), image.NewUniform(r.bg), image.Point{}, draw.Src)
	keep := image.Rect(0, 0, min(width, b.Dx()), min(height, b.Dy()))
	draw.Draw(next, keep, r.img, image.Point{}, draw.Src)
	r.img = next
}

// Snapshot encodes the current pixel content, in-progress strokes included,
// as a base64 PNG data URI.
func (r *Raster) Snapshot() (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.img == nil {
		return "", fmt.Errorf("raster not initialized")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, r.img); err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ScaledPNG encodes the surface as PNG, downscaled so that neither side
// exceeds maxDim. Used to keep AI request payloads small.
func (r *Raster) ScaledPNG(maxDim int) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src := r.img
	b := src.Bounds()
	if maxDim > 0 && (b.Dx() > maxDim || b.Dy() > maxDim) {
		scale := float64(maxDim) / float64(max(b.Dx(), b.Dy()))
		w := max(1, int(float64(b.Dx())*scale))
		h := max(1, int(float64(b.Dy())*scale))
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.BiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
		src = dst
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return nil, fmt.Errorf("encode scaled snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Image exposes the backing image for display. The pointer changes on
// Resize, so callers must re-fetch it after layout changes.
func (r *Raster) Image() image.Image {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.img
}

// Size returns the current surface dimensions in pixels.
func (r *Raster) Size() (int, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b := r.img.Bounds()
	return b.Dx(), b.Dy()
}

// Strokes returns a copy of the finished stroke history.
func (r *Raster) Strokes() []Stroke {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Stroke, len(r.strokes))
	copy(out, r.strokes)
	return out
}

// Background returns the backdrop color.
func (r *Raster) Background() color.RGBA {
	return r.bg
}

// DecodeDataURI extracts the raw image bytes from a base64 data URI as
// produced by Snapshot.
func DecodeDataURI(uri string) ([]byte, error) {
	idx := strings.Index(uri, ",")
	if !strings.HasPrefix(uri, "data:") || idx < 0 {
		return nil, fmt.Errorf("not a data URI")
	}
	data, err := base64.StdEncoding.DecodeString(uri[idx+1:])
	if err != nil {
		return nil, fmt.Errorf("decode data URI: %w", err)
	}
	return data, nil
}

// stampSegment paints the line from a to b by stamping discs at sub-pixel
// intervals. Caller holds the lock.
func (r *Raster) stampSegment(a, b Point, style StrokeStyle) {
	dx := b.X - a.X
	dy := b.Y - a.Y
	dist := float32(math.Hypot(float64(dx), float64(dy)))
	steps := int(dist) + 1

	if style.Glow {
		halo := style.Width/2 + glowRadius
		for i := 0; i <= steps; i++ {
			t := float32(i) / float32(steps)
			r.stampHalo(a.X+dx*t, a.Y+dy*t, halo, style.Color)
		}
	}
	rad := style.Width / 2
	if rad < 0.5 {
		rad = 0.5
	}
	for i := 0; i <= steps; i++ {
		t := float32(i) / float32(steps)
		r.stampDot(a.X+dx*t, a.Y+dy*t, rad, style.Color)
	}
}

func (r *Raster) stampDot(cx, cy, rad float32, c color.RGBA) {
	b := r.img.Bounds()
	x0 := max(b.Min.X, int(cx-rad-1))
	x1 := min(b.Max.X-1, int(cx+rad+1))
	y0 := max(b.Min.Y, int(cy-rad-1))
	y1 := min(b.Max.Y-1, int(cy+rad+1))
	r2 := rad * rad
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			ddx := float32(x) + 0.5 - cx
			ddy := float32(y) + 0.5 - cy
			if ddx*ddx+ddy*ddy <= r2 {
				r.img.SetRGBA(x, y, c)
			}
		}
	}
}

// stampHalo blends a translucent disc with alpha falling off toward the rim.
func (r *Raster) stampHalo(cx, cy, rad float32, c color.RGBA) {
	b := r.img.Bounds()
	x0 := max(b.Min.X, int(cx-rad-1))
	x1 := min(b.Max.X-1, int(cx+rad+1))
	y0 := max(b.Min.Y, int(cy-rad-1))
	y1 := min(b.Max.Y-1, int(cy+rad+1))
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			ddx := float32(x) + 0.5 - cx
			ddy := float32(y) + 0.5 - cy
			d := float32(math.Hypot(float64(ddx), float64(ddy)))
			if d > rad {
				continue
			}
			alpha := (1 - d/rad) * glowAlpha
			blendRGBA(r.img, x, y, c, alpha)
		}
	}
}

func blendRGBA(img *image.RGBA, x, y int, c color.RGBA, alpha float32) {
	if alpha <= 0 {
		return
	}
	dst := img.RGBAAt(x, y)
	inv := 1 - alpha
	img.SetRGBA(x, y, color.RGBA{
		R: uint8(float32(c.R)*alpha + float32(dst.R)*inv),
		G: uint8(float32(c.G)*alpha + float32(dst.G)*inv),
		B: uint8(float32(c.B)*alpha + float32(dst.B)*inv),
		A: 0xff,
	})
}
