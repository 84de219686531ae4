package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServices()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.AssetsDir) == "" {
		c.Paths.AssetsDir = defaultAssetsDir
	}
	if c.Paths.AssetsDir, err = expandPath(c.Paths.AssetsDir); err != nil {
		return fmt.Errorf("paths.assets_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.RunsDir) == "" {
		c.Paths.RunsDir = defaultRunsDir
	}
	if c.Paths.RunsDir, err = expandPath(c.Paths.RunsDir); err != nil {
		return fmt.Errorf("paths.runs_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServices() {
	if c.Services.Qwen.APIKey == "" {
		if value, ok := os.LookupEnv("QWEN_API_KEY"); ok {
			c.Services.Qwen.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Services.DeepSeek.APIKey == "" {
		if value, ok := os.LookupEnv("DEEPSEEK_API_KEY"); ok {
			c.Services.DeepSeek.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Services.Jimeng.APIKey == "" {
		if value, ok := os.LookupEnv("JIMENG_API_KEY"); ok {
			c.Services.Jimeng.APIKey = strings.TrimSpace(value)
		}
	}

	c.Services.Qwen.BaseURL = strings.TrimSpace(c.Services.Qwen.BaseURL)
	if c.Services.Qwen.BaseURL == "" {
		c.Services.Qwen.BaseURL = defaultQwenBaseURL
	}
	if strings.TrimSpace(c.Services.Qwen.Model) == "" {
		c.Services.Qwen.Model = defaultQwenModel
	}
	if c.Services.Qwen.TimeoutSeconds <= 0 {
		c.Services.Qwen.TimeoutSeconds = defaultServiceTimeoutSec
	}

	c.Services.DeepSeek.BaseURL = strings.TrimSpace(c.Services.DeepSeek.BaseURL)
	if c.Services.DeepSeek.BaseURL == "" {
		c.Services.DeepSeek.BaseURL = defaultDeepSeekBaseURL
	}
	if strings.TrimSpace(c.Services.DeepSeek.Model) == "" {
		c.Services.DeepSeek.Model = defaultDeepSeekModel
	}
	if c.Services.DeepSeek.TimeoutSeconds <= 0 {
		c.Services.DeepSeek.TimeoutSeconds = defaultServiceTimeoutSec
	}

	c.Services.Jimeng.BaseURL = strings.TrimSpace(c.Services.Jimeng.BaseURL)
	if c.Services.Jimeng.BaseURL == "" {
		c.Services.Jimeng.BaseURL = defaultJimengBaseURL
	}
	if c.Services.Jimeng.TimeoutSeconds <= 0 {
		c.Services.Jimeng.TimeoutSeconds = defaultServiceTimeoutSec
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
