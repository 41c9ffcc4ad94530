package logging

import (
	"context"
	"log/slog"
	"strings"
)

// componentLevelHandler applies logging.component_levels. The minimum for a
// record comes from the component bound through With (NewComponentLogger);
// untagged loggers keep the default. The wrapped handler must already accept
// the most verbose level in the table.
type componentLevelHandler struct {
	next   slog.Handler
	levels map[string]slog.Level
	level  slog.Level
}

func newComponentLevelHandler(next slog.Handler, def slog.Level, levels map[string]slog.Level) slog.Handler {
	if next == nil {
		return NoopHandler{}
	}
	return &componentLevelHandler{next: next, levels: levels, level: def}
}

func (h *componentLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level && h.next.Enabled(ctx, level)
}

func (h *componentLevelHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.level {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *componentLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	level := h.level
	for _, attr := range attrs {
		if attr.Key != FieldComponent {
			continue
		}
		if l, ok := h.levels[attrString(attr.Value)]; ok {
			level = l
		}
	}
	return &componentLevelHandler{next: h.next.WithAttrs(attrs), levels: h.levels, level: level}
}

func (h *componentLevelHandler) WithGroup(name string) slog.Handler {
	return &componentLevelHandler{next: h.next.WithGroup(name), levels: h.levels, level: h.level}
}

// parseComponentLevels converts the config table, dropping empty entries.
func parseComponentLevels(raw map[string]string) map[string]slog.Level {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]slog.Level, len(raw))
	for component, level := range raw {
		component = strings.TrimSpace(component)
		if component == "" || strings.TrimSpace(level) == "" {
			continue
		}
		out[component] = ParseLevel(level)
	}
	return out
}

// floorLevel is the most verbose of def and every component level.
func floorLevel(def slog.Level, levels map[string]slog.Level) slog.Level {
	floor := def
	for _, l := range levels {
		floor = min(floor, l)
	}
	return floor
}

// WithComponentLevels wraps logger so component loggers derived from it obey
// levels. It can only make output quieter than logger already is; use
// Options.ComponentLevels to let a component log below the global level.
func WithComponentLevels(logger *slog.Logger, levels map[string]string) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	parsed := parseComponentLevels(levels)
	if len(parsed) == 0 {
		return logger
	}
	if h, ok := logger.Handler().(*componentLevelHandler); ok {
		merged := make(map[string]slog.Level, len(h.levels)+len(parsed))
		for k, v := range h.levels {
			merged[k] = v
		}
		for k, v := range parsed {
			merged[k] = v
		}
		return slog.New(&componentLevelHandler{next: h.next, levels: merged, level: h.level})
	}
	return slog.New(newComponentLevelHandler(logger.Handler(), slog.LevelDebug-4, parsed))
}
