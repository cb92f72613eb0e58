package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"NebulaSketch/internal/config"
	"NebulaSketch/internal/state"
)

// Client talks to the Gemini API for both stages of the critique pipeline:
// structured analysis of a sketch and stylized re-rendering. A single client
// is shared by both because they share the credential.
type Client struct {
	mu         sync.RWMutex
	genai      *genai.Client
	model      string
	imageModel string
	timeout    time.Duration
	limiter    *rate.Limiter
	cache      *cache.Cache
}

// NewClient builds an unconfigured client. Analyze and Stylize fail with
// ErrUnauthorized until Configure installs a working API key.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		model:      cfg.Model,
		imageModel: cfg.ImageModel,
		timeout:    cfg.RequestTimeout,
		limiter:    rate.NewLimiter(rate.Every(cfg.RateInterval), 2),
		cache:      cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
	}
}

// Configure installs or replaces the API key, rebuilding the backend client.
func (c *Client) Configure(ctx context.Context, apiKey string) error {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("create gemini client: %w", err)
	}
	c.mu.Lock()
	c.genai = gc
	c.mu.Unlock()
	c.cache.Flush()
	slog.Info("gemini client configured", "model", c.model, "image_model", c.imageModel)
	return nil
}

// Ready reports whether a credential has been installed.
func (c *Client) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.genai != nil
}

func (c *Client) backend() *genai.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.genai
}

// Analyze sends the snapshot plus the instruction prompt and decodes the
// structured critique. Identical snapshots are served from the cache so an
// unchanged sketch is never billed twice.
func (c *Client) Analyze(ctx context.Context, snapshot, instruction string) (*Feedback, error) {
	gc := c.backend()
	if gc == nil {
		return nil, fmt.Errorf("%w: no API key configured", ErrUnauthorized)
	}

	key := cacheKey("analyze", snapshot, instruction)
	if v, ok := c.cache.Get(key); ok {
		fb := v.(Feedback)
		slog.Debug("analysis served from cache")
		return &fb, nil
	}

	data, err := state.DecodeDataURI(snapshot)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	parts := []*genai.Part{
		genai.NewPartFromBytes(data, "image/png"),
		genai.NewPartFromText(instruction),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	start := time.Now()
	resp, err := gc.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, classify(err)
	}
	slog.Info("analysis complete", "model", c.model, "took", time.Since(start).Round(time.Millisecond))

	fb, err := ParseFeedback(resp.Text())
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, *fb, cache.DefaultExpiration)
	return fb, nil
}

// Stylize asks the image model for a finished rendering of the sketch,
// grounded in the original snapshot when one is provided. A response with no
// inline image data is a failure, not an empty success.
func (c *Client) Stylize(ctx context.Context, prompt, snapshot string) (*StylizedImage, error) {
	gc := c.backend()
	if gc == nil {
		return nil, fmt.Errorf("%w: no API key configured", ErrUnauthorized)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	parts := []*genai.Part{
		genai.NewPartFromText("Reimagine this rough sketch as a finished, polished artwork. " +
			"Stay faithful to the original composition. Mood and story: " + prompt),
	}
	if snapshot != "" {
		data, err := state.DecodeDataURI(snapshot)
		if err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		parts = append(parts, genai.NewPartFromBytes(data, "image/png"))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	start := time.Now()
	resp, err := gc.Models.GenerateContent(ctx, c.imageModel, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		return nil, classify(err)
	}
	slog.Info("stylization complete", "model", c.imageModel, "took", time.Since(start).Round(time.Millisecond))

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return &StylizedImage{
					Data:     part.InlineData.Data,
					MIMEType: part.InlineData.MIMEType,
				}, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: response carried no image data", ErrMalformed)
}

// classify maps backend failures onto the error taxonomy: credential
// rejections become ErrUnauthorized, everything else stays as-is.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden {
			return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
		}
		return err
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "api key") {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return err
}

func cacheKey(kind, snapshot, prompt string) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte(snapshot))
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}
