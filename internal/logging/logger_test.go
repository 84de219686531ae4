package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/services"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Format = "json"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	logger.Info("hello", logging.String("key", "value"))

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "reelforge.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"key":"value"`) {
		t.Fatalf("expected structured attribute in log output, got %q", data)
	}
}

func TestWithContextAddsRunFields(t *testing.T) {
	ctx := services.WithRunID(context.Background(), "run-42")
	ctx = services.WithStep(ctx, "assemble")

	fields := logging.ContextFields(ctx)
	keys := make(map[string]string, len(fields))
	for _, f := range fields {
		keys[f.Key] = f.Value.String()
	}
	if keys[logging.FieldRunID] != "run-42" {
		t.Fatalf("missing run id field: %v", keys)
	}
	if keys[logging.FieldStep] != "assemble" {
		t.Fatalf("missing step field: %v", keys)
	}
}

func TestNopLoggerIsSafe(t *testing.T) {
	logger := logging.NewNop()
	logger.Info("discarded")
	logger = logging.NewComponentLogger(nil, "engine")
	logger.Error("also discarded", logging.Error(nil))
	logger = logging.WithContext(context.Background(), nil)
	logger.Debug("still fine")
}
