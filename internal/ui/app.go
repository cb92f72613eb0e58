package ui

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"NebulaSketch/internal/ai"
	"NebulaSketch/internal/config"
	"NebulaSketch/internal/export"
	"NebulaSketch/internal/session"
	"NebulaSketch/internal/state"
)

// RunStudio assembles the window and blocks until the app exits.
func RunStudio(cfg *config.Config, client *ai.Client) {
	a := app.New()
	win := a.NewWindow("Nebula Sketch")
	win.Resize(fyne.NewSize(1100, 780))

	engine := state.NewRaster(1100, 640, state.DefaultBackground)
	sketch := NewSketchWidget(engine)
	auth := NewBillingAuthorizer(win, client, client.Ready())
	ctrl := session.New(aiCanvas{sketch: sketch, maxDim: config.DefaultSnapshotDim}, client, client, auth)

	status := widget.NewLabel("Ready")
	if !client.Ready() {
		status.SetText("Set GEMINI_API_KEY or authorize a key to enable critiques")
	}

	// --- Result panel ---
	critiqueLbl := wrappedLabel()
	suggestionLbl := wrappedLabel()
	backstoryLbl := wrappedLabel()
	paletteBox := container.NewHBox()
	artImage := canvas.NewImageFromImage(nil)
	artImage.FillMode = canvas.ImageFillContain
	artImage.SetMinSize(fyne.NewSize(360, 240))
	artImage.Hide()

	closeBtn := widget.NewButtonWithIcon("Back to drawing", theme.NavigateBackIcon(), func() {
		ctrl.Dismiss()
	})
	resultCard := widget.NewCard("Critique", "", container.NewVBox(
		critiqueLbl,
		widget.NewLabelWithStyle("Try next", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		suggestionLbl,
		widget.NewLabelWithStyle("Backstory", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		backstoryLbl,
		widget.NewLabelWithStyle("Suggested palette (tap to paint with it)", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		paletteBox,
		artImage,
		closeBtn,
	))
	overlay := container.NewCenter(container.NewPadded(resultCard))
	overlay.Hide()

	showResult := func(fb *ai.Feedback, img *ai.StylizedImage) {
		critiqueLbl.SetText(fb.Critique)
		suggestionLbl.SetText(fb.Suggestion)
		backstoryLbl.SetText(fb.Backstory)

		paletteBox.RemoveAll()
		for i, hex := range fb.Palette {
			c, err := state.ParseHexColor(hex)
			if err != nil {
				continue
			}
			idx := i
			paletteBox.Add(newColorSwatch(c, func(_ color.RGBA) {
				if err := ctrl.SelectPaletteColor(idx); err != nil {
					slog.Warn("palette selection failed", "error", err)
				}
			}))
		}
		paletteBox.Refresh()

		if img != nil {
			decoded, _, err := image.Decode(bytes.NewReader(img.Data))
			if err != nil {
				slog.Warn("stylized image could not be decoded for display", "error", err)
				artImage.Hide()
			} else {
				artImage.Image = decoded
				artImage.Show()
				artImage.Refresh()
			}
		} else {
			artImage.Hide()
		}
		overlay.Show()
	}

	// --- Session wiring ---
	ctrl.OnPhase = func(p session.Phase) {
		fyne.Do(func() {
			switch p {
			case session.PhaseAnalyzing:
				sketch.SetLocked(true)
				status.SetText("Analyzing your sketch…")
			case session.PhaseViewingResult:
				status.SetText("Critique ready")
			case session.PhaseDrawing:
				sketch.SetLocked(false)
				overlay.Hide()
				status.SetText("Ready")
			}
		})
	}
	ctrl.OnResult = func(fb *ai.Feedback, img *ai.StylizedImage) {
		fyne.Do(func() { showResult(fb, img) })
	}
	ctrl.OnError = func(msg string) {
		fyne.Do(func() { dialog.ShowInformation("Critique failed", msg, win) })
	}

	requestCritique := func(mode session.Mode) {
		go func() {
			err := ctrl.RequestAnalysis(context.Background(), mode)
			if err != nil && !errors.Is(err, session.ErrBusy) && !errors.Is(err, session.ErrNotAuthorized) {
				slog.Warn("critique request ended with error", "mode", mode, "error", err)
			}
		}()
	}

	// --- Action bar ---
	actionBar := container.NewHBox(
		widget.NewButtonWithIcon("Critique", theme.SearchIcon(), func() {
			requestCritique(session.ModeBasic)
		}),
		widget.NewButtonWithIcon("Pro Critique", theme.MediaPhotoIcon(), func() {
			requestCritique(session.ModePro)
		}),
		widget.NewSeparator(),
		widget.NewButtonWithIcon("Clear", theme.ContentClearIcon(), func() {
			dialog.ShowConfirm("Clear sketch?", "This wipes the whole canvas and cannot be undone.", func(ok bool) {
				if !ok {
					return
				}
				sketch.Clear()
				status.SetText("Canvas cleared")
			}, win)
		}),
		widget.NewButtonWithIcon("Export PNG", theme.DownloadIcon(), func() {
			snap, err := sketch.Snapshot()
			if err != nil {
				dialog.ShowError(err, win)
				return
			}
			if err := export.WritePNG(export.DefaultPNGName, snap); err != nil {
				dialog.ShowError(err, win)
				return
			}
			status.SetText("Saved " + export.DefaultPNGName)
		}),
		widget.NewButtonWithIcon("Export PDF", theme.DocumentIcon(), func() {
			w, h := engine.Size()
			if err := export.WritePDF(export.DefaultPDFName, engine.Strokes(), w, h); err != nil {
				dialog.ShowError(err, win)
				return
			}
			status.SetText("Saved " + export.DefaultPDFName)
		}),
		widget.NewSeparator(),
		status,
	)

	content := container.NewBorder(
		NewToolbar(sketch),
		actionBar,
		nil, nil,
		container.NewStack(sketch, overlay),
	)
	win.SetContent(content)
	win.SetCloseIntercept(func() {
		ctrl.Reset()
		a.Quit()
	})
	win.ShowAndRun()
}

func wrappedLabel() *widget.Label {
	l := widget.NewLabel("")
	l.Wrapping = fyne.TextWrapWord
	return l
}

// aiCanvas is the sketch widget seen through the session's eyes: snapshots
// are downscaled before they leave the machine, while the file exports keep
// the full-resolution surface.
type aiCanvas struct {
	sketch *SketchWidget
	maxDim int
}

func (c aiCanvas) Snapshot() (string, error) {
	data, err := c.sketch.Engine().ScaledPNG(c.maxDim)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (c aiCanvas) SetBrushColor(col color.RGBA) {
	c.sketch.SetBrushColor(col)
}
