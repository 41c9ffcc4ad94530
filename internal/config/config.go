package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// App configures the unit contexts an application process runs.
type App struct {
	Name        string `toml:"name"`
	Threads     int    `toml:"threads"`
	ChunkSize   int    `toml:"chunk_size"`
	FaultPolicy string `toml:"fault_policy"`
}

// Dev configures the in-process loopback daemon and its HTTP front.
type Dev struct {
	Bind            string `toml:"bind"`
	ShmSizeKiB      int    `toml:"shm_size_kib"`
	ChunkKiB        int    `toml:"chunk_kib"`
	HandshakeRounds int    `toml:"handshake_rounds"`
	QueueDepth      int    `toml:"queue_depth"`
	MaxBodyBytes    int64  `toml:"max_body_bytes"`
	RequestTimeout  int    `toml:"request_timeout"`
	// APIToken, when set, is required as a bearer token on /_unitgo/ endpoints.
	APIToken        string `toml:"api_token"`
}

// Paths contains state and log directories.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format          string            `toml:"format"`
	Level           string            `toml:"level"`
	RetentionDays   int               `toml:"retention_days"`
	ComponentLevels map[string]string `toml:"component_levels"`
}

// Journal configures the dev daemon's request journal.
type Journal struct {
	Enabled       bool   `toml:"enabled"`
	Path          string `toml:"path"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for unitgo.
//
// Configuration sections by subsystem:
//   - App: context names, worker threads, response chunk size, fault policy
//   - Dev: loopback daemon sizing and the dev HTTP bind address
//   - Paths: state (lock, control socket) and log directories
//   - Logging: log format, level, retention and per-component levels
//   - Journal: SQLite request journal for the dev daemon
type Config struct {
	App     App     `toml:"app"`
	Dev     Dev     `toml:"dev"`
	Paths   Paths   `toml:"paths"`
	Logging Logging `toml:"logging"`
	Journal Journal `toml:"journal"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/unitgo/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("unitgo.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Journal.Enabled {
		if err := os.MkdirAll(filepath.Dir(c.Journal.Path), 0o755); err != nil {
			return fmt.Errorf("create journal directory: %w", err)
		}
	}
	return nil
}

// LockPath is the single-instance lock of the dev daemon.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "unitgo.lock")
}

// SocketPath is the dev daemon control socket.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "unitgo.sock")
}

// ShmSize returns the loopback segment size in bytes.
func (c *Config) ShmSize() int {
	return c.Dev.ShmSizeKiB << 10
}

// ChunkSize returns the loopback chunk size in bytes.
func (c *Config) ChunkSize() int {
	return c.Dev.ChunkKiB << 10
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
