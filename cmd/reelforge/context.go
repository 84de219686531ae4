package main

import (
	"path/filepath"
	"strings"
	"sync"

	"log/slog"

	"github.com/spf13/cobra"

	"reelforge/internal/artifact"
	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/pipeline"
	"reelforge/internal/runs"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// resources bundles the stores a command needs for one invocation.
type resources struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *artifact.Store
	registry *runs.Store
}

func (c *commandContext) openResources() (*resources, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := artifact.NewStore(filepath.Join(cfg.Paths.RunsDir, "artifacts"), logger)
	if err != nil {
		return nil, nil, err
	}
	registry, err := runs.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { registry.Close() }
	return &resources{cfg: cfg, logger: logger, store: store, registry: registry}, cleanup, nil
}

func (r *resources) pipeline() *pipeline.Pipeline {
	return pipeline.New(r.cfg, r.store, r.registry, r.logger)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
