package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// diagnosticTee copies every record the diagnostic handler accepts into the
// per-run debug log. The primary handler owns the returned error; a failing
// debug log is reported once on the primary and otherwise ignored so a full
// disk never breaks request logging.
type diagnosticTee struct {
	primary slog.Handler
	diag    slog.Handler
	state   *teeState
}

type teeState struct {
	reported atomic.Bool
	failures atomic.Int64
}

func (h *diagnosticTee) Enabled(ctx context.Context, level slog.Level) bool {
	return h.primary.Enabled(ctx, level) || h.diag.Enabled(ctx, level)
}

func (h *diagnosticTee) Handle(ctx context.Context, record slog.Record) error {
	if h.diag.Enabled(ctx, record.Level) {
		if err := h.diag.Handle(ctx, record.Clone()); err != nil {
			h.diagFailed(ctx, err)
		}
	}
	if !h.primary.Enabled(ctx, record.Level) {
		return nil
	}
	return h.primary.Handle(ctx, record)
}

func (h *diagnosticTee) diagFailed(ctx context.Context, err error) {
	h.state.failures.Add(1)
	if !h.state.reported.CompareAndSwap(false, true) {
		return
	}
	rec := slog.NewRecord(time.Now(), slog.LevelWarn, "diagnostic log write failed", 0)
	rec.AddAttrs(
		slog.String(FieldEventType, "diagnostic_log_failed"),
		Error(err),
		slog.String(FieldImpact, "debug log is incomplete for this run"),
		slog.String(FieldErrorHint, "check free space under paths.log_dir/debug"),
	)
	if h.primary.Enabled(ctx, slog.LevelWarn) {
		_ = h.primary.Handle(ctx, rec)
	}
}

func (h *diagnosticTee) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &diagnosticTee{primary: h.primary.WithAttrs(attrs), diag: h.diag.WithAttrs(attrs), state: h.state}
}

func (h *diagnosticTee) WithGroup(name string) slog.Handler {
	return &diagnosticTee{primary: h.primary.WithGroup(name), diag: h.diag.WithGroup(name), state: h.state}
}

// TeeDiagnostics returns a logger that writes to logger and also to diag,
// the handler behind the --diagnostic debug log.
func TeeDiagnostics(logger *slog.Logger, diag slog.Handler) *slog.Logger {
	switch {
	case diag == nil:
		if logger == nil {
			return NewNop()
		}
		return logger
	case logger == nil:
		return slog.New(diag)
	}
	return slog.New(&diagnosticTee{primary: logger.Handler(), diag: diag, state: &teeState{}})
}

// DiagnosticFailures reports how many records the debug log of logger failed
// to store. It is zero for loggers without a diagnostic tee.
func DiagnosticFailures(logger *slog.Logger) int64 {
	if logger == nil {
		return 0
	}
	if h, ok := logger.Handler().(*diagnosticTee); ok {
		return h.state.failures.Load()
	}
	return 0
}
