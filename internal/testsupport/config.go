package testsupport

import (
	"path/filepath"
	"testing"

	"reelforge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It enables mock generation, shrinks engine timings, and applies any
// provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.AssetsDir = filepath.Join(base, "assets")
	cfgVal.Paths.RunsDir = filepath.Join(base, "runs")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Services.MockGeneration = true
	cfgVal.Engine.RetryBackoffMS = 1
	cfgVal.Engine.ParallelDispatch = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithSegments shapes the pipeline section so a run plans exactly count
// segments.
func WithSegments(count int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.TargetDurationSec = count * 8
		b.cfg.Pipeline.MaxSegmentSec = 8
		b.cfg.Pipeline.MaxSegments = count
	}
}

// WithParallelDispatch enables the bounded-parallel engine backend.
func WithParallelDispatch(maxConcurrency int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.ParallelDispatch = true
		b.cfg.Engine.MaxConcurrency = maxConcurrency
	}
}

// WithMaxAttempts overrides the retry budget.
func WithMaxAttempts(attempts int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.MaxAttempts = attempts
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.AssetsDir)
}
