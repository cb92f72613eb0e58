package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"NebulaSketch/internal/state"
)

// --- Custom Widget for Color Swatches ---
type colorSwatch struct {
	widget.BaseWidget
	Color    color.RGBA
	OnTapped func(color.RGBA)
}

func newColorSwatch(c color.RGBA, tapped func(color.RGBA)) *colorSwatch {
	s := &colorSwatch{Color: c, OnTapped: tapped}
	s.ExtendBaseWidget(s)
	return s
}

func (s *colorSwatch) CreateRenderer() fyne.WidgetRenderer {
	rect := canvas.NewRectangle(s.Color)
	rect.SetMinSize(fyne.NewSize(32, 32))

	border := canvas.NewRectangle(color.Transparent)
	border.StrokeColor = color.Gray{Y: 150}
	border.StrokeWidth = 1

	return widget.NewSimpleRenderer(container.NewStack(rect, border))
}

func (s *colorSwatch) Tapped(_ *fyne.PointEvent) {
	if s.OnTapped != nil {
		s.OnTapped(s.Color)
	}
}

var swatchColors = []string{
	"#f4f4f8", // starlight
	"#7c3aed", // violet
	"#38bdf8", // cyan
	"#f472b6", // magenta
	"#fbbf24", // amber
	"#34d399", // mint
}

// NewToolbar builds the tool strip: the three tools, the color swatches,
// and the stroke width slider.
func NewToolbar(sketch *SketchWidget) fyne.CanvasObject {
	tb := widget.NewToolbar(
		widget.NewToolbarAction(theme.DocumentCreateIcon(), func() {
			sketch.SetTool(state.ToolBrush)
		}), // Brush
		widget.NewToolbarAction(theme.ColorPaletteIcon(), func() {
			sketch.SetTool(state.ToolNeon)
		}), // Neon
		widget.NewToolbarAction(theme.DeleteIcon(), func() {
			sketch.SetTool(state.ToolEraser)
		}), // Eraser
	)

	onColorTapped := func(c color.RGBA) {
		sketch.SetBrushColor(c)
	}
	colorBox := container.NewHBox()
	for _, hex := range swatchColors {
		c, err := state.ParseHexColor(hex)
		if err != nil {
			continue
		}
		colorBox.Add(newColorSwatch(c, onColorTapped))
	}

	widthSlider := widget.NewSlider(1.0, 24.0)
	widthSlider.SetValue(4.0)
	widthSlider.OnChanged = func(val float64) {
		sketch.SetStrokeWidth(float32(val))
	}
	sliderContainer := container.New(layout.NewGridWrapLayout(fyne.NewSize(150, 35)), widthSlider)

	return container.NewHBox(
		widget.NewLabel("Tool:"),
		tb,
		widget.NewSeparator(),
		widget.NewLabel("Color:"),
		colorBox,
		widget.NewSeparator(),
		widget.NewLabel("Size:"),
		sliderContainer,
		layout.NewSpacer(),
	)
}
