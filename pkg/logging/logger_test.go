package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		enable slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"warn level", "warn", slog.LevelWarn},
		{"default info", "", slog.LevelInfo},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level, "json")
			if !logger.Enabled(ctx, tt.enable) {
				t.Fatalf("expected level %s to be enabled", tt.enable)
			}
		})
	}
}

func TestTextFormat(t *testing.T) {
	logger := New("info", "text")
	logger.Info("text handler works", "key", "value")
}

func TestDefaultLogger(t *testing.T) {
	logger := Default()
	logger.Info("test message", "key", "value")
}

func TestWithCarriesAttrs(t *testing.T) {
	logger := Default().With("component", "queue")
	if logger == nil || logger.Logger == nil {
		t.Fatal("With returned nil logger")
	}
	logger.Info("attributed message")
}
