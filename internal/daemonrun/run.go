package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"unitgo/internal/config"
	"unitgo/internal/daemon"
	"unitgo/internal/ipc"
	"unitgo/internal/journal"
	"unitgo/internal/logging"
	"unitgo/internal/preflight"
	"unitgo/unit"
)

// streamCapacity is the number of log events the hub keeps for tailing.
const streamCapacity = 4096

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Diagnostic adds a debug-level JSON log under <log_dir>/debug.
	Diagnostic bool
	// App replaces the built-in demo application.
	App unit.Handler
}

// Run starts the unitgo dev daemon and blocks until a signal arrives, the
// daemon is stopped over the control socket, or its contexts exit.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("unitgo-%s.log", runID))
	logHub := logging.NewStreamHub(streamCapacity)

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	sessionID := uuid.NewString()
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		ComponentLevels:  cfg.Logging.ComponentLevels,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
		Hub:              logHub,
		SessionID:        sessionID,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	debugDir := filepath.Join(cfg.Paths.LogDir, "debug")
	if opts.Diagnostic {
		logger = attachDiagnosticLog(logger, debugDir, runID, sessionID)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.LogFileName, err)
	}
	logging.PruneLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "unitgo-*.log", Keep: []string{logPath}},
		logging.RetentionTarget{Dir: debugDir, Pattern: "unitgo-*.log"},
	)

	pidPath := PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	for _, check := range preflight.Failed(preflight.RunAll(signalCtx, cfg, preflight.Options{})) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", check.Name),
			logging.String("detail", check.Detail),
			logging.String(logging.FieldImpact, "daemon start may fail"))
	}

	store, err := openJournal(signalCtx, cfg, logger)
	if err != nil {
		logger.Error("open request journal", logging.Error(err))
		return err
	}

	daemonOpts := []daemon.Option{daemon.WithLogPath(logPath), daemon.WithLogStream(logHub)}
	if opts.App != nil {
		daemonOpts = append(daemonOpts, daemon.WithApp(opts.App))
	}
	d, err := daemon.New(cfg, store, logger, daemonOpts...)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the dev bind address and that no other dev daemon holds the lock"))
		return err
	}

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	waitErr := d.Wait(signalCtx)
	if errors.Is(waitErr, context.Canceled) {
		waitErr = nil
	}
	logger.Info("unitgo dev daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	if dropped := logging.DiagnosticFailures(logger); dropped > 0 {
		logging.WarnWithContext(logger, "diagnostic log is missing records", "diagnostic_log_incomplete",
			logging.Int64("dropped", dropped),
			logging.String(logging.FieldImpact, "debug log cannot be used to replay this run"))
	}
	return waitErr
}

// PIDPath is where Run records the daemon process id.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.StateDir, "unitgo.pid")
}

func attachDiagnosticLog(logger *slog.Logger, debugDir, runID, sessionID string) *slog.Logger {
	if err := os.MkdirAll(debugDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to create debug log directory: %v\n", err)
		return logger
	}
	debugLogPath := filepath.Join(debugDir, fmt.Sprintf("unitgo-%s.log", runID))
	debugLogger, err := logging.New(logging.Options{
		Level:            "debug",
		Format:           "json",
		OutputPaths:      []string{debugLogPath},
		ErrorOutputPaths: []string{debugLogPath},
		Development:      true,
		SessionID:        sessionID,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to initialize debug logger: %v\n", err)
		return logger
	}
	logger = logging.TeeDiagnostics(logger, debugLogger.Handler())
	if err := ensureCurrentLogPointer(debugDir, debugLogPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update debug/%s link: %v\n", logging.LogFileName, err)
	}
	logger.Info("diagnostic mode enabled",
		logging.String(logging.FieldEventType, "diagnostic_mode_enabled"),
		logging.String(logging.FieldSessionID, sessionID),
		logging.String("debug_log_path", debugLogPath),
	)
	return logger
}

// openJournal opens the request journal and drops rows past retention. It
// returns a nil store when the journal is disabled.
func openJournal(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*journal.Store, error) {
	if !cfg.Journal.Enabled {
		logger.Info("request journal disabled")
		return nil, nil
	}
	store, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return nil, err
	}
	if cfg.Journal.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -cfg.Journal.RetentionDays)
		pruned, err := store.Prune(ctx, cutoff)
		if err != nil {
			logging.WarnWithContext(logger, "journal prune failed", "journal_prune_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "old requests stay in the journal"))
		} else if pruned > 0 {
			logger.Info("pruned request journal",
				logging.Int64("removed", pruned),
				logging.Int("retention_days", cfg.Journal.RetentionDays))
		}
	}
	return store, nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logging.LogFileName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
