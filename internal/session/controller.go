package session

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"NebulaSketch/internal/ai"
	"NebulaSketch/internal/state"
)

// Phase is the application state. Exactly one is active at a time; there is
// no error phase, failures return control to Drawing.
type Phase int

const (
	PhaseDrawing Phase = iota
	PhaseAnalyzing
	PhaseViewingResult
)

func (p Phase) String() string {
	switch p {
	case PhaseDrawing:
		return "drawing"
	case PhaseAnalyzing:
		return "analyzing"
	case PhaseViewingResult:
		return "viewing"
	default:
		return "unknown"
	}
}

// Mode is the critique tier.
type Mode string

const (
	ModeBasic Mode = "basic"
	ModePro   Mode = "pro" // adds the stylized rendering, gated on authorization
)

// Canvas is the slice of the drawing surface the controller is allowed to
// touch: the snapshot export and the palette write-back. Never the pixels.
type Canvas interface {
	Snapshot() (string, error)
	SetBrushColor(c color.RGBA)
}

// Analyzer is the structured-critique collaborator.
type Analyzer interface {
	Analyze(ctx context.Context, snapshot, instruction string) (*ai.Feedback, error)
}

// Stylizer is the image-rendering collaborator.
type Stylizer interface {
	Stylize(ctx context.Context, prompt, snapshot string) (*ai.StylizedImage, error)
}

// Authorizer wraps the external billing-credential flow. RequestAuthorization
// blocks until the external dialog closes; HasAuthorization is re-queried
// afterwards rather than assumed.
type Authorizer interface {
	HasAuthorization() bool
	RequestAuthorization(ctx context.Context) error
	Invalidate()
}

var (
	// ErrBusy rejects a critique request while one is already running.
	ErrBusy = errors.New("session: analysis already in progress")

	// ErrNotAuthorized means a pro request was abandoned because the
	// authorization flow completed without granting access. Not a failure
	// to surface; the user simply closed the dialog.
	ErrNotAuthorized = errors.New("session: pro tier not authorized")
)

const (
	msgAuthRejected = "Your AI credential was rejected. Re-authorize billing to keep using critiques."
	msgGenericFail  = "The critique could not be completed. Please try again."
)

// Controller sequences drawing, the two-stage AI pipeline, and result
// presentation. All callbacks fire synchronously on the goroutine running
// RequestAnalysis; the UI layer is responsible for hopping threads.
type Controller struct {
	mu       sync.Mutex
	phase    Phase
	token    string // stale-result guard; bumped whenever pending work is voided
	feedback *ai.Feedback
	image    *ai.StylizedImage

	canvas   Canvas
	analyzer Analyzer
	stylizer Stylizer
	auth     Authorizer

	OnPhase  func(Phase)
	OnResult func(*ai.Feedback, *ai.StylizedImage)
	OnError  func(msg string)
}

func New(canvas Canvas, analyzer Analyzer, stylizer Stylizer, auth Authorizer) *Controller {
	return &Controller{
		phase:    PhaseDrawing,
		token:    uuid.NewString(),
		canvas:   canvas,
		analyzer: analyzer,
		stylizer: stylizer,
		auth:     auth,
	}
}

// Phase returns the current application phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Feedback returns the current critique, nil if none has succeeded yet.
func (c *Controller) Feedback() *ai.Feedback {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.feedback
}

// Image returns the current stylized rendering, nil after basic-tier runs.
func (c *Controller) Image() *ai.StylizedImage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.image
}

// RequestAnalysis runs the full critique pipeline and blocks until it
// finishes; callers run it off the UI thread. For an unauthorized pro
// request the external authorization flow is invoked first and the request
// is abandoned if access is still not granted afterwards — the one policy,
// applied at the one entry point.
//
// Both stages must succeed before anything is stored: a pro request that got
// a critique but no image is a total failure, never a silent basic result.
func (c *Controller) RequestAnalysis(ctx context.Context, mode Mode) error {
	if c.Phase() != PhaseDrawing {
		return ErrBusy
	}

	if mode == ModePro && !c.auth.HasAuthorization() {
		slog.Info("pro critique requested without authorization, opening billing flow")
		if err := c.auth.RequestAuthorization(ctx); err != nil {
			return fmt.Errorf("authorization flow: %w", err)
		}
		if !c.auth.HasAuthorization() {
			return ErrNotAuthorized
		}
	}

	c.mu.Lock()
	if c.phase != PhaseDrawing {
		c.mu.Unlock()
		return ErrBusy
	}
	c.phase = PhaseAnalyzing
	token := uuid.NewString()
	c.token = token
	c.mu.Unlock()
	c.emitPhase(PhaseAnalyzing)

	fb, img, err := c.runPipeline(ctx, mode)

	c.mu.Lock()
	if c.token != token {
		// The session moved on while this request was in flight; a late
		// result must not overwrite newer state.
		c.mu.Unlock()
		slog.Info("discarding result of superseded request", "mode", mode)
		return nil
	}
	if err != nil {
		c.phase = PhaseDrawing
		c.mu.Unlock()
		c.emitPhase(PhaseDrawing)
		c.fail(mode, err)
		return err
	}
	c.feedback = fb
	c.image = img // nil for basic: stale pro images never survive a basic run
	c.phase = PhaseViewingResult
	c.mu.Unlock()

	c.emitPhase(PhaseViewingResult)
	if c.OnResult != nil {
		c.OnResult(fb, img)
	}
	return nil
}

// runPipeline executes snapshot → analyze → (pro only) stylize. Sequential:
// the stylization consumes the analysis narrative, so it never starts early.
func (c *Controller) runPipeline(ctx context.Context, mode Mode) (*ai.Feedback, *ai.StylizedImage, error) {
	snapshot, err := c.canvas.Snapshot()
	if err != nil {
		return nil, nil, fmt.Errorf("export snapshot: %w", err)
	}

	slog.Info("analysis started", "mode", mode)
	fb, err := c.analyzer.Analyze(ctx, snapshot, ai.Instruction)
	if err != nil {
		return nil, nil, fmt.Errorf("analysis: %w", err)
	}

	if mode != ModePro {
		return fb, nil, nil
	}
	img, err := c.stylizer.Stylize(ctx, fb.Backstory, snapshot)
	if err != nil {
		return nil, nil, fmt.Errorf("stylization: %w", err)
	}
	return fb, img, nil
}

// Dismiss returns from result viewing to drawing. The raster is untouched.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	if c.phase != PhaseViewingResult {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseDrawing
	c.token = uuid.NewString()
	c.mu.Unlock()
	c.emitPhase(PhaseDrawing)
}

// Reset forces the session back to Drawing and voids any in-flight request,
// whose eventual result will be discarded by the token guard. Used when the
// user navigates away mid-request.
func (c *Controller) Reset() {
	c.mu.Lock()
	changed := c.phase != PhaseDrawing
	c.phase = PhaseDrawing
	c.token = uuid.NewString()
	c.mu.Unlock()
	if changed {
		c.emitPhase(PhaseDrawing)
	}
}

// SelectPaletteColor feeds palette entry i of the current critique back into
// the drawing surface as the active brush color. This is the only place
// result data flows back into drawing state.
func (c *Controller) SelectPaletteColor(i int) error {
	c.mu.Lock()
	fb := c.feedback
	c.mu.Unlock()

	if fb == nil {
		return errors.New("session: no critique to pick a color from")
	}
	if i < 0 || i >= len(fb.Palette) {
		return fmt.Errorf("session: palette index %d out of range", i)
	}
	col, err := state.ParseHexColor(fb.Palette[i])
	if err != nil {
		return err
	}
	c.canvas.SetBrushColor(col)
	return nil
}

func (c *Controller) fail(mode Mode, err error) {
	if ai.IsAuthError(err) {
		slog.Warn("critique failed: credential rejected", "mode", mode, "error", err)
		c.auth.Invalidate()
		c.emitError(msgAuthRejected)
		return
	}
	slog.Warn("critique failed", "mode", mode, "error", err)
	c.emitError(msgGenericFail)
}

func (c *Controller) emitPhase(p Phase) {
	if c.OnPhase != nil {
		c.OnPhase(p)
	}
}

func (c *Controller) emitError(msg string) {
	if c.OnError != nil {
		c.OnError(msg)
	}
}
