package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeApp()
	c.normalizeDev()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	return c.normalizeJournal()
}

func (c *Config) normalizeApp() {
	c.App.Name = strings.TrimSpace(c.App.Name)
	if c.App.Name == "" {
		c.App.Name = defaultAppName
	}
	if c.App.ChunkSize <= 0 {
		c.App.ChunkSize = defaultChunkSize
	}
	c.App.FaultPolicy = strings.ToLower(strings.TrimSpace(c.App.FaultPolicy))
	if c.App.FaultPolicy == "" {
		c.App.FaultPolicy = defaultFaultPolicy
	}
}

func (c *Config) normalizeDev() {
	c.Dev.Bind = strings.TrimSpace(c.Dev.Bind)
	if value, ok := os.LookupEnv("UNITGO_DEV_BIND"); ok && strings.TrimSpace(value) != "" {
		c.Dev.Bind = strings.TrimSpace(value)
	}
	if c.Dev.Bind == "" {
		c.Dev.Bind = defaultDevBind
	}
	c.Dev.APIToken = strings.TrimSpace(c.Dev.APIToken)
	if value, ok := os.LookupEnv("UNITGO_DEV_TOKEN"); ok && strings.TrimSpace(value) != "" {
		c.Dev.APIToken = strings.TrimSpace(value)
	}
	if c.Dev.QueueDepth <= 0 {
		c.Dev.QueueDepth = defaultQueueDepth
	}
	if c.Dev.RequestTimeout <= 0 {
		c.Dev.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "json":
	default:
		c.Logging.Format = "console"
	}
	if value, ok := os.LookupEnv("UNITGO_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	if len(c.Logging.ComponentLevels) > 0 {
		levels := make(map[string]string, len(c.Logging.ComponentLevels))
		for component, level := range c.Logging.ComponentLevels {
			component = strings.ToLower(strings.TrimSpace(component))
			if component == "" {
				continue
			}
			levels[component] = strings.ToLower(strings.TrimSpace(level))
		}
		c.Logging.ComponentLevels = levels
	}
}

func (c *Config) normalizeJournal() error {
	var err error
	if strings.TrimSpace(c.Journal.Path) == "" {
		c.Journal.Path = defaultJournalPath
	}
	if c.Journal.Path, err = expandPath(c.Journal.Path); err != nil {
		return fmt.Errorf("journal.path: %w", err)
	}
	if c.Journal.RetentionDays < 0 {
		c.Journal.RetentionDays = 0
	}
	return nil
}
