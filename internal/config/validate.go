package config

import (
	"errors"
	"fmt"
	"net"
	"slices"
)

var (
	validFaultPolicies = []string{"repanic", "return"}
	validLogLevels     = []string{"debug", "info", "warn", "warning", "error"}
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateApp(); err != nil {
		return err
	}
	if err := c.validateDev(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateApp() error {
	if c.App.Threads <= 0 {
		return errors.New("app.threads must be positive")
	}
	if !slices.Contains(validFaultPolicies, c.App.FaultPolicy) {
		return fmt.Errorf("app.fault_policy must be one of %v, got %q", validFaultPolicies, c.App.FaultPolicy)
	}
	return nil
}

func (c *Config) validateDev() error {
	if err := ensurePositiveMap(map[string]int{
		"dev.shm_size_kib":     c.Dev.ShmSizeKiB,
		"dev.chunk_kib":        c.Dev.ChunkKiB,
		"dev.handshake_rounds": c.Dev.HandshakeRounds,
	}); err != nil {
		return err
	}
	if c.Dev.ChunkKiB > c.Dev.ShmSizeKiB {
		return errors.New("dev.chunk_kib must not exceed dev.shm_size_kib")
	}
	if c.Dev.MaxBodyBytes < 0 {
		return errors.New("dev.max_body_bytes must be >= 0")
	}
	if c.Dev.MaxBodyBytes > int64(c.ShmSize()) {
		return errors.New("dev.max_body_bytes must fit in the shared memory segment")
	}
	if _, _, err := net.SplitHostPort(c.Dev.Bind); err != nil {
		return fmt.Errorf("dev.bind: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !slices.Contains(validLogLevels, c.Logging.Level) {
		return fmt.Errorf("logging.level must be one of %v, got %q", validLogLevels, c.Logging.Level)
	}
	for component, level := range c.Logging.ComponentLevels {
		if !slices.Contains(validLogLevels, level) {
			return fmt.Errorf("logging.component_levels.%s: unknown level %q", component, level)
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
