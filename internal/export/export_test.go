package export

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NebulaSketch/internal/state"
)

func TestWritePNGRoundTrip(t *testing.T) {
	r := state.NewRaster(120, 80, state.DefaultBackground)
	r.BeginStroke(state.Point{X: 10, Y: 10}, state.ToolBrush, color.RGBA{R: 0xff, A: 0xff}, 5)
	r.ExtendStroke(state.Point{X: 60, Y: 40})
	r.EndStroke()

	snap, err := r.Snapshot()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.png")
	require.NoError(t, WritePNG(path, snap))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want, err := state.DecodeDataURI(snap)
	require.NoError(t, err)
	assert.Equal(t, want, data, "the snapshot bytes are written verbatim")
}

func TestWritePNGRejectsBadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.png")
	err := WritePNG(path, "definitely not a data uri")
	require.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "no file on failure")
}

func TestWritePDFProducesDocument(t *testing.T) {
	strokes := []state.Stroke{
		{
			Tool:   state.ToolBrush,
			Color:  color.RGBA{R: 0x7c, G: 0x3a, B: 0xed, A: 0xff},
			Width:  6,
			Points: []state.Point{{X: 10, Y: 10}, {X: 200, Y: 150}, {X: 380, Y: 60}},
		},
		{
			Tool:   state.ToolBrush,
			Color:  color.RGBA{R: 0xff, A: 0xff},
			Width:  2,
			Points: []state.Point{{X: 50, Y: 50}}, // dot
		},
	}

	path := filepath.Join(t.TempDir(), "out.pdf")
	require.NoError(t, WritePDF(path, strokes, 400, 300))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 4)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestWritePDFRejectsInvalidSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pdf")
	assert.Error(t, WritePDF(path, nil, 0, 300))
	assert.Error(t, WritePDF(path, nil, 400, -1))
}
