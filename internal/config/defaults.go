package config

const (
	defaultAppName          = "unitgo"
	defaultThreads          = 1
	defaultChunkSize        = 16 << 10
	defaultFaultPolicy      = "repanic"
	defaultDevBind          = "127.0.0.1:7488"
	defaultShmSizeKiB       = 4 << 10
	defaultChunkKiB         = 16
	defaultHandshakeRounds  = 1
	defaultQueueDepth       = 64
	defaultMaxBodyBytes     = 1 << 20
	defaultRequestTimeout   = 30
	defaultStateDir         = "~/.local/share/unitgo"
	defaultLogDir           = "~/.local/share/unitgo/logs"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 14
	defaultJournalPath      = "~/.local/share/unitgo/journal.db"
	defaultJournalRetention = 7
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		App: App{
			Name:        defaultAppName,
			Threads:     defaultThreads,
			ChunkSize:   defaultChunkSize,
			FaultPolicy: defaultFaultPolicy,
		},
		Dev: Dev{
			Bind:            defaultDevBind,
			ShmSizeKiB:      defaultShmSizeKiB,
			ChunkKiB:        defaultChunkKiB,
			HandshakeRounds: defaultHandshakeRounds,
			QueueDepth:      defaultQueueDepth,
			MaxBodyBytes:    defaultMaxBodyBytes,
			RequestTimeout:  defaultRequestTimeout,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Journal: Journal{
			Enabled:       true,
			Path:          defaultJournalPath,
			RetentionDays: defaultJournalRetention,
		},
	}
}
