package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"torrentrss/internal/config"
)

type commandContext struct {
	configFlag *string
	levelFlag  *string
	formatFlag *string

	once       sync.Once
	config     *config.Config
	configPath string
	exists     bool
	err        error
}

func newCommandContext(configFlag, levelFlag, formatFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		levelFlag:  levelFlag,
		formatFlag: formatFlag,
	}
}

// ensureConfig loads and caches the configuration once per invocation.
// Logging flags override the file's logging block so `-l debug` works
// without editing the config.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.once.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolvedPath, exists, err := config.Load(path)
		if err != nil {
			c.err = err
			return
		}
		if c.levelFlag != nil && strings.TrimSpace(*c.levelFlag) != "" {
			cfg.Logging.Level = strings.TrimSpace(*c.levelFlag)
		}
		if c.formatFlag != nil && strings.TrimSpace(*c.formatFlag) != "" {
			cfg.Logging.Format = strings.TrimSpace(*c.formatFlag)
		}
		// Only materialize directories for a real configuration; a missing
		// file fails requireConfigFile before they would be used.
		if exists {
			if err := cfg.EnsureDirectories(); err != nil {
				c.err = err
				return
			}
		}
		c.config = cfg
		c.configPath = resolvedPath
		c.exists = exists
	})
	return c.config, c.err
}

// requireConfigFile is ensureConfig plus the demand that the file actually
// exists. Commands that poll feeds have nothing to do with bare defaults.
func (c *commandContext) requireConfigFile() (*config.Config, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !c.exists {
		return nil, fmt.Errorf("no configuration file found at %s; create one with `torrentrss config init`", c.configPath)
	}
	return cfg, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
