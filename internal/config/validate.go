package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateServices(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.FPS <= 0 {
		return errors.New("pipeline.fps must be positive")
	}
	if c.Pipeline.TargetDurationSec <= 0 {
		return errors.New("pipeline.target_duration_sec must be positive")
	}
	if c.Pipeline.MaxSegmentSec < 1 {
		return errors.New("pipeline.max_segment_sec must be at least 1")
	}
	if c.Pipeline.MaxSegments <= 0 {
		return errors.New("pipeline.max_segments must be positive")
	}
	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.MaxAttempts <= 0 {
		return errors.New("engine.max_attempts must be positive")
	}
	if c.Engine.MaxReworkRounds < 0 {
		return errors.New("engine.max_rework_rounds must not be negative")
	}
	if c.Engine.RetryBackoffMS < 0 {
		return errors.New("engine.retry_backoff_ms must not be negative")
	}
	if c.Engine.MaxConcurrency <= 0 {
		return errors.New("engine.max_concurrency must be positive")
	}
	if c.Engine.StepTimeoutSec <= 0 {
		return errors.New("engine.step_timeout_sec must be positive")
	}
	return nil
}

func (c *Config) validateServices() error {
	if c.Services.MockGeneration {
		return nil
	}
	missing := ""
	switch {
	case c.Services.Qwen.APIKey == "":
		missing = "services.qwen.api_key"
	case c.Services.DeepSeek.APIKey == "":
		missing = "services.deepseek.api_key"
	case c.Services.Jimeng.APIKey == "":
		missing = "services.jimeng.api_key"
	}
	if missing != "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/reelforge/config.toml"
		}
		return fmt.Errorf("%s is required when services.mock_generation is false. Set the matching env var or edit %s (create with 'reelforge config init')", missing, defaultPath)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
