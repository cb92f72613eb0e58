package ai

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Instruction is the fixed prompt sent with every analysis request,
// regardless of tier.
const Instruction = `You are a warm, encouraging art mentor reviewing a freehand sketch. ` +
	`Reply with a single JSON object and nothing else, using these keys: ` +
	`"critique" (two honest but kind sentences about the sketch), ` +
	`"suggestion" (one concrete improvement the artist could try next), ` +
	`"palette" (an array of exactly 4 hex color strings in #rrggbb form that would suit the piece), ` +
	`"backstory" (a short imaginative narrative, three sentences at most, about the world the sketch belongs to).`

// PaletteSize is the number of colors every critique must carry.
const PaletteSize = 4

var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Feedback is the structured critique returned by the analysis call.
// Immutable once decoded; a session holds at most one current instance.
type Feedback struct {
	Critique   string   `json:"critique"`
	Suggestion string   `json:"suggestion"`
	Palette    []string `json:"palette"`
	Backstory  string   `json:"backstory"`
}

// StylizedImage is the pro-tier rendering of the sketch.
type StylizedImage struct {
	Data     []byte
	MIMEType string
}

// DataURI encodes the image for direct display or download.
func (s *StylizedImage) DataURI() string {
	mime := s.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(s.Data)
}

// ParseFeedback decodes a model response into a Feedback, failing closed:
// a missing or malformed field rejects the whole response rather than
// producing a partially populated result.
func ParseFeedback(raw string) (*Feedback, error) {
	body := extractJSON(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrMalformed)
	}
	var fb Feedback
	if err := json.Unmarshal([]byte(body), &fb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := fb.validate(); err != nil {
		return nil, err
	}
	return &fb, nil
}

func (fb *Feedback) validate() error {
	if strings.TrimSpace(fb.Critique) == "" {
		return fmt.Errorf("%w: missing critique", ErrMalformed)
	}
	if strings.TrimSpace(fb.Suggestion) == "" {
		return fmt.Errorf("%w: missing suggestion", ErrMalformed)
	}
	if strings.TrimSpace(fb.Backstory) == "" {
		return fmt.Errorf("%w: missing backstory", ErrMalformed)
	}
	if len(fb.Palette) != PaletteSize {
		return fmt.Errorf("%w: palette has %d entries, want %d", ErrMalformed, len(fb.Palette), PaletteSize)
	}
	for _, c := range fb.Palette {
		if !hexColorPattern.MatchString(c) {
			return fmt.Errorf("%w: palette entry %q is not #rrggbb", ErrMalformed, c)
		}
	}
	return nil
}

// extractJSON tolerates responses wrapped in markdown fences or prose and
// pulls out the outermost JSON object.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if m := regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```").FindStringSubmatch(raw); len(m) >= 2 {
		raw = strings.TrimSpace(m[1])
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
