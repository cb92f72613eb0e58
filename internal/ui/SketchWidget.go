package ui

import (
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"NebulaSketch/internal/state"
)

// SketchWidget turns pointer gestures into strokes on the raster engine and
// displays the engine's pixels. It holds the current input mode (tool,
// color, width); everything baked into a stroke is recorded by the engine
// when the stroke begins.
type SketchWidget struct {
	widget.BaseWidget
	engine *state.Raster

	mu      sync.RWMutex
	tool    state.Tool
	color   color.RGBA
	width   float32
	locked  bool
	drawing bool
}

var _ fyne.Widget = (*SketchWidget)(nil)
var _ fyne.Draggable = (*SketchWidget)(nil)
var _ desktop.Mouseable = (*SketchWidget)(nil)

func NewSketchWidget(engine *state.Raster) *SketchWidget {
	w := &SketchWidget{
		engine: engine,
		tool:   state.ToolBrush,
		color:  color.RGBA{R: 0xf4, G: 0xf4, B: 0xf8, A: 0xff},
		width:  4.0,
	}
	w.ExtendBaseWidget(w)
	return w
}

// Engine exposes the raster for export wiring.
func (w *SketchWidget) Engine() *state.Raster { return w.engine }

func (w *SketchWidget) SetTool(t state.Tool) {
	w.mu.Lock()
	w.tool = t
	w.mu.Unlock()
}

func (w *SketchWidget) Tool() state.Tool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tool
}

// SetBrushColor sets the active color and, if the eraser was selected,
// switches back to the brush so the pick is immediately visible. This is
// the write-back target for palette selections.
func (w *SketchWidget) SetBrushColor(c color.RGBA) {
	w.mu.Lock()
	w.color = c
	if w.tool == state.ToolEraser {
		w.tool = state.ToolBrush
	}
	w.mu.Unlock()
}

func (w *SketchWidget) BrushColor() color.RGBA {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.color
}

func (w *SketchWidget) SetStrokeWidth(width float32) {
	w.mu.Lock()
	w.width = width
	w.mu.Unlock()
}

// SetLocked drops all drawing input while the session is analyzing, so the
// pixels that were snapshotted stay the pixels that were analyzed.
func (w *SketchWidget) SetLocked(locked bool) {
	w.mu.Lock()
	w.locked = locked
	if locked && w.drawing {
		w.drawing = false
		w.engine.EndStroke()
	}
	w.mu.Unlock()
}

// Snapshot implements the session.Canvas export contract.
func (w *SketchWidget) Snapshot() (string, error) {
	return w.engine.Snapshot()
}

// Clear wipes the surface. Confirmation happens before this is called.
func (w *SketchWidget) Clear() {
	w.engine.Clear()
	w.Refresh()
}

func (w *SketchWidget) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	w.mu.Lock()
	if w.locked {
		w.mu.Unlock()
		return
	}
	w.drawing = true
	tool, col, width := w.tool, w.color, w.width
	w.mu.Unlock()

	w.engine.BeginStroke(state.Point{X: e.Position.X, Y: e.Position.Y}, tool, col, width)
	w.Refresh()
}

func (w *SketchWidget) MouseUp(e *desktop.MouseEvent) {
	w.finishStroke()
}

func (w *SketchWidget) Dragged(e *fyne.DragEvent) {
	w.mu.RLock()
	active := w.drawing && !w.locked
	w.mu.RUnlock()
	if !active {
		return
	}
	w.engine.ExtendStroke(state.Point{X: e.Position.X, Y: e.Position.Y})
	w.Refresh()
}

func (w *SketchWidget) DragEnd() {
	w.finishStroke()
}

func (w *SketchWidget) finishStroke() {
	w.mu.Lock()
	wasDrawing := w.drawing
	w.drawing = false
	w.mu.Unlock()
	if wasDrawing {
		w.engine.EndStroke()
		w.Refresh()
	}
}

func (w *SketchWidget) MouseIn(*desktop.MouseEvent)    {}
func (w *SketchWidget) MouseOut()                      {}
func (w *SketchWidget) MouseMoved(*desktop.MouseEvent) {}

func (w *SketchWidget) CreateRenderer() fyne.WidgetRenderer {
	img := canvas.NewImageFromImage(w.engine.Image())
	img.FillMode = canvas.ImageFillStretch
	img.ScaleMode = canvas.ImageScalePixels
	return &sketchRenderer{widget: w, img: img}
}

type sketchRenderer struct {
	widget *SketchWidget
	img    *canvas.Image
}

// Layout tracks the viewport: the engine resizes (preserving content at the
// origin) whenever the widget does.
func (r *sketchRenderer) Layout(size fyne.Size) {
	r.widget.engine.Resize(int(size.Width), int(size.Height))
	r.img.Image = r.widget.engine.Image()
	r.img.Resize(size)
}

func (r *sketchRenderer) MinSize() fyne.Size {
	return fyne.NewSize(300, 300)
}

func (r *sketchRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.img}
}

func (r *sketchRenderer) Refresh() {
	r.img.Image = r.widget.engine.Image()
	r.img.Refresh()
}

func (r *sketchRenderer) Destroy() {}
