package config

import (
	"time"

	"github.com/shouni/go-utils/envutil"
)

const (
	DefaultModel          = "gemini-2.5-flash"
	DefaultImageModel     = "gemini-2.5-flash-image-preview"
	DefaultRequestTimeout = 90 * time.Second
	DefaultRateInterval   = 3 * time.Second // minimum spacing between AI calls
	DefaultCacheTTL       = 10 * time.Minute
	DefaultSnapshotDim    = 1024 // max snapshot side sent to the AI backend
)

// Config holds the environment-driven settings for the studio.
type Config struct {
	APIKey         string
	Model          string
	ImageModel     string
	RequestTimeout time.Duration
	RateInterval   time.Duration
	CacheTTL       time.Duration
}

// Load reads the configuration from the environment, falling back to
// defaults for anything unset.
func Load() *Config {
	return &Config{
		APIKey:         envutil.GetEnv("GEMINI_API_KEY", ""),
		Model:          envutil.GetEnv("NEBULA_MODEL", DefaultModel),
		ImageModel:     envutil.GetEnv("NEBULA_IMAGE_MODEL", DefaultImageModel),
		RequestTimeout: durationEnv("NEBULA_REQUEST_TIMEOUT", DefaultRequestTimeout),
		RateInterval:   durationEnv("NEBULA_RATE_INTERVAL", DefaultRateInterval),
		CacheTTL:       durationEnv("NEBULA_CACHE_TTL", DefaultCacheTTL),
	}
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
