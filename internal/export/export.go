package export

import (
	"fmt"
	"os"

	"github.com/jung-kurt/gofpdf"

	"NebulaSketch/internal/state"
)

// Fixed filenames for the one-click exports.
const (
	DefaultPNGName = "nebula-sketch.png"
	DefaultPDFName = "nebula-sketch.pdf"
)

// WritePNG saves a snapshot data URI as a PNG file. The snapshot is already
// encoded image data, so no further processing happens here.
func WritePNG(path, snapshot string) error {
	data, err := state.DecodeDataURI(snapshot)
	if err != nil {
		return fmt.Errorf("export png: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export png: %w", err)
	}
	return nil
}

// WritePDF renders the finished stroke history onto an A4 page, scaled to
// fit, keeping each stroke's color and width. In-progress strokes are not
// part of the history and are not exported.
func WritePDF(path string, strokes []state.Stroke, width, height int) error {
	if width < 1 || height < 1 {
		return fmt.Errorf("export pdf: invalid surface size %dx%d", width, height)
	}
	const pageW, pageH = 210.0, 297.0 // A4 in mm
	scale := pageW / float64(width)
	if s := pageH / float64(height); s < scale {
		scale = s
	}

	p := gofpdf.New("P", "mm", "A4", "")
	p.AddPage()
	for _, st := range strokes {
		p.SetDrawColor(int(st.Color.R), int(st.Color.G), int(st.Color.B))
		lw := float64(st.Width) * scale
		if lw < 0.2 {
			lw = 0.2
		}
		p.SetLineWidth(lw)
		if len(st.Points) == 1 {
			pt := st.Points[0]
			p.Circle(float64(pt.X)*scale, float64(pt.Y)*scale, lw/2, "D")
			continue
		}
		for i := 1; i < len(st.Points); i++ {
			p.Line(
				float64(st.Points[i-1].X)*scale, float64(st.Points[i-1].Y)*scale,
				float64(st.Points[i].X)*scale, float64(st.Points[i].Y)*scale,
			)
		}
	}
	if err := p.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("export pdf: %w", err)
	}
	return nil
}
