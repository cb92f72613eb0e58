package session

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NebulaSketch/internal/ai"
)

// --- substitutable collaborators ---

type stubCanvas struct {
	mu       sync.Mutex
	snapshot string
	color    color.RGBA
}

func (s *stubCanvas) Snapshot() (string, error) { return s.snapshot, nil }

func (s *stubCanvas) SetBrushColor(c color.RGBA) {
	s.mu.Lock()
	s.color = c
	s.mu.Unlock()
}

func (s *stubCanvas) brushColor() color.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.color
}

type stubAnalyzer struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, snapshot, instruction string) (*ai.Feedback, error)
}

func (s *stubAnalyzer) Analyze(ctx context.Context, snapshot, instruction string) (*ai.Feedback, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.fn(ctx, snapshot, instruction)
}

func (s *stubAnalyzer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubStylizer struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, prompt, snapshot string) (*ai.StylizedImage, error)
}

func (s *stubStylizer) Stylize(ctx context.Context, prompt, snapshot string) (*ai.StylizedImage, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.fn(ctx, prompt, snapshot)
}

func (s *stubStylizer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubAuth struct {
	mu             sync.Mutex
	authorized     bool
	grantOnRequest bool
	requests       int
	invalidations  int
}

func (s *stubAuth) HasAuthorization() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authorized
}

func (s *stubAuth) RequestAuthorization(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	if s.grantOnRequest {
		s.authorized = true
	}
	return nil
}

func (s *stubAuth) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidations++
	s.authorized = false
}

func testFeedback() *ai.Feedback {
	return &ai.Feedback{
		Critique:   "C",
		Suggestion: "S",
		Palette:    []string{"#111111", "#222222", "#333333", "#444444"},
		Backstory:  "B",
	}
}

type fixture struct {
	canvas   *stubCanvas
	analyzer *stubAnalyzer
	stylizer *stubStylizer
	auth     *stubAuth
	ctrl     *Controller
	errors   []string
	results  int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		canvas: &stubCanvas{snapshot: "data:image/png;base64,AAAA"},
		analyzer: &stubAnalyzer{fn: func(_ context.Context, _, _ string) (*ai.Feedback, error) {
			return testFeedback(), nil
		}},
		stylizer: &stubStylizer{fn: func(_ context.Context, _, _ string) (*ai.StylizedImage, error) {
			return &ai.StylizedImage{Data: []byte("img"), MIMEType: "image/png"}, nil
		}},
		auth: &stubAuth{authorized: true},
	}
	f.ctrl = New(f.canvas, f.analyzer, f.stylizer, f.auth)
	var mu sync.Mutex
	f.ctrl.OnError = func(msg string) {
		mu.Lock()
		f.errors = append(f.errors, msg)
		mu.Unlock()
	}
	f.ctrl.OnResult = func(*ai.Feedback, *ai.StylizedImage) {
		mu.Lock()
		f.results++
		mu.Unlock()
	}
	return f
}

func TestBasicCritiqueNeverStylizes(t *testing.T) {
	f := newFixture(t)

	var gotSnapshot, gotInstruction string
	f.analyzer.fn = func(_ context.Context, snapshot, instruction string) (*ai.Feedback, error) {
		gotSnapshot, gotInstruction = snapshot, instruction
		return testFeedback(), nil
	}

	err := f.ctrl.RequestAnalysis(context.Background(), ModeBasic)
	require.NoError(t, err)

	assert.Equal(t, PhaseViewingResult, f.ctrl.Phase())
	assert.Equal(t, testFeedback(), f.ctrl.Feedback())
	assert.Nil(t, f.ctrl.Image(), "basic tier stores no image")
	assert.Equal(t, 0, f.stylizer.callCount(), "stylization must not run for basic")
	assert.Equal(t, f.canvas.snapshot, gotSnapshot)
	assert.Equal(t, ai.Instruction, gotInstruction)
	assert.Equal(t, 1, f.results)
	assert.Empty(t, f.errors)
}

func TestProCritiqueStoresImage(t *testing.T) {
	f := newFixture(t)

	var styledWith, styledFrom string
	f.stylizer.fn = func(_ context.Context, prompt, snapshot string) (*ai.StylizedImage, error) {
		styledWith, styledFrom = prompt, snapshot
		return &ai.StylizedImage{Data: []byte("art"), MIMEType: "image/png"}, nil
	}

	err := f.ctrl.RequestAnalysis(context.Background(), ModePro)
	require.NoError(t, err)

	assert.Equal(t, PhaseViewingResult, f.ctrl.Phase())
	require.NotNil(t, f.ctrl.Image())
	assert.Equal(t, []byte("art"), f.ctrl.Image().Data)
	assert.Equal(t, "B", styledWith, "stylization consumes the analysis narrative")
	assert.Equal(t, f.canvas.snapshot, styledFrom, "stylization is grounded in the original snapshot")
}

func TestBasicRunClearsEarlierProImage(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ctrl.RequestAnalysis(context.Background(), ModePro))
	require.NotNil(t, f.ctrl.Image())
	f.ctrl.Dismiss()

	require.NoError(t, f.ctrl.RequestAnalysis(context.Background(), ModeBasic))
	assert.Nil(t, f.ctrl.Image(), "a basic result must never show a stale pro image")
}

func TestProUnauthorizedRunsFlowThenAbandons(t *testing.T) {
	f := newFixture(t)
	f.auth.authorized = false
	f.auth.grantOnRequest = false

	err := f.ctrl.RequestAnalysis(context.Background(), ModePro)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.Equal(t, 1, f.auth.requests, "the external flow runs first")
	assert.Equal(t, 0, f.analyzer.callCount(), "no analysis without authorization")
	assert.Equal(t, PhaseDrawing, f.ctrl.Phase())
	assert.Empty(t, f.errors, "closing the dialog is not an error")
}

func TestProUnauthorizedProceedsOnceGranted(t *testing.T) {
	f := newFixture(t)
	f.auth.authorized = false
	f.auth.grantOnRequest = true

	err := f.ctrl.RequestAnalysis(context.Background(), ModePro)
	require.NoError(t, err)
	assert.Equal(t, 1, f.auth.requests)
	assert.Equal(t, 1, f.analyzer.callCount())
	assert.Equal(t, PhaseViewingResult, f.ctrl.Phase())
}

func TestProStylizationFailureIsTotal(t *testing.T) {
	f := newFixture(t)
	f.stylizer.fn = func(_ context.Context, _, _ string) (*ai.StylizedImage, error) {
		return nil, errors.New("image backend down")
	}

	err := f.ctrl.RequestAnalysis(context.Background(), ModePro)
	require.Error(t, err)

	assert.Equal(t, PhaseDrawing, f.ctrl.Phase())
	assert.Nil(t, f.ctrl.Feedback(), "the successful analysis stage must not be kept")
	assert.Nil(t, f.ctrl.Image())
	assert.Equal(t, 0, f.results)
	require.Len(t, f.errors, 1, "exactly one notification")
	assert.Equal(t, msgGenericFail, f.errors[0])
}

func TestAuthFailureResetsAuthorization(t *testing.T) {
	f := newFixture(t)
	f.analyzer.fn = func(_ context.Context, _, _ string) (*ai.Feedback, error) {
		return nil, fmt.Errorf("backend: %w", ai.ErrUnauthorized)
	}

	err := f.ctrl.RequestAnalysis(context.Background(), ModeBasic)
	require.Error(t, err)

	assert.Equal(t, PhaseDrawing, f.ctrl.Phase())
	assert.Equal(t, 1, f.auth.invalidations)
	require.Len(t, f.errors, 1)
	assert.Equal(t, msgAuthRejected, f.errors[0], "auth failures get a distinct message")
}

func TestPaletteSelectionSetsBrushColor(t *testing.T) {
	f := newFixture(t)
	f.analyzer.fn = func(_ context.Context, _, _ string) (*ai.Feedback, error) {
		fb := testFeedback()
		fb.Palette = []string{"#7c3aed", "#222222", "#333333", "#444444"}
		return fb, nil
	}
	require.NoError(t, f.ctrl.RequestAnalysis(context.Background(), ModeBasic))

	require.NoError(t, f.ctrl.SelectPaletteColor(0))
	assert.Equal(t, color.RGBA{R: 0x7c, G: 0x3a, B: 0xed, A: 0xff}, f.canvas.brushColor())

	assert.Error(t, f.ctrl.SelectPaletteColor(4), "index out of range")
	assert.Error(t, f.ctrl.SelectPaletteColor(-1))
}

func TestPaletteSelectionWithoutResult(t *testing.T) {
	f := newFixture(t)
	assert.Error(t, f.ctrl.SelectPaletteColor(0))
}

func TestDismissReturnsToDrawingKeepingResult(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.RequestAnalysis(context.Background(), ModeBasic))

	f.ctrl.Dismiss()
	assert.Equal(t, PhaseDrawing, f.ctrl.Phase())
	assert.NotNil(t, f.ctrl.Feedback(), "dismissing keeps the last result for palette picks")

	f.ctrl.Dismiss() // no-op outside ViewingResult
	assert.Equal(t, PhaseDrawing, f.ctrl.Phase())
}

func TestConcurrentRequestIsRejected(t *testing.T) {
	f := newFixture(t)
	started := make(chan struct{})
	release := make(chan struct{})
	f.analyzer.fn = func(_ context.Context, _, _ string) (*ai.Feedback, error) {
		close(started)
		<-release
		return testFeedback(), nil
	}

	done := make(chan error, 1)
	go func() { done <- f.ctrl.RequestAnalysis(context.Background(), ModeBasic) }()
	<-started

	err := f.ctrl.RequestAnalysis(context.Background(), ModeBasic)
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, PhaseViewingResult, f.ctrl.Phase())
}

func TestResetDiscardsLateResult(t *testing.T) {
	f := newFixture(t)
	started := make(chan struct{})
	release := make(chan struct{})
	f.analyzer.fn = func(_ context.Context, _, _ string) (*ai.Feedback, error) {
		close(started)
		<-release
		return testFeedback(), nil
	}

	done := make(chan error, 1)
	go func() { done <- f.ctrl.RequestAnalysis(context.Background(), ModeBasic) }()
	<-started

	f.ctrl.Reset()
	close(release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("request did not finish")
	}

	assert.Equal(t, PhaseDrawing, f.ctrl.Phase())
	assert.Nil(t, f.ctrl.Feedback(), "a superseded response must not overwrite state")
	assert.Equal(t, 0, f.results)
}
