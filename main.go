package main

import (
	"context"
	"log/slog"
	"os"

	"NebulaSketch/internal/ai"
	"NebulaSketch/internal/config"
	"NebulaSketch/internal/ui"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	client := ai.NewClient(cfg)
	if cfg.APIKey != "" {
		if err := client.Configure(context.Background(), cfg.APIKey); err != nil {
			slog.Error("could not configure the AI client from the environment", "error", err)
		}
	} else {
		slog.Warn("GEMINI_API_KEY not set; critiques stay disabled until a key is authorized")
	}

	ui.RunStudio(cfg, client)
}
