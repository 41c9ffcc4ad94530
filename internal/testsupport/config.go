package testsupport

import (
	"path/filepath"
	"testing"

	"unitgo/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Journal.Path = filepath.Join(base, "state", "journal.db")
	cfgVal.Dev.Bind = "127.0.0.1:0"
	cfgVal.Dev.ShmSizeKiB = 512
	cfgVal.Dev.ChunkKiB = 4
	cfgVal.Dev.MaxBodyBytes = 64 << 10
	cfgVal.App.FaultPolicy = "return"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithThreads sets the number of unit contexts the daemon runs.
func WithThreads(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.App.Threads = n
	}
}

// WithoutJournal disables the request journal.
func WithoutJournal() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Journal.Enabled = false
	}
}

// WithHandshakeRounds sets the loopback ready handshake length.
func WithHandshakeRounds(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Dev.HandshakeRounds = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
