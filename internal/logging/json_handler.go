package logging

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// newJSONHandler renames the slog builtins to ts/level/msg so journal tooling
// can read both the daemon log and request rows with the same keys.
func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	opts := slog.HandlerOptions{
		Level:     lvl,
		AddSource: addSource,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				attr.Key = "ts"
				if attr.Value.Kind() == slog.KindTime {
					attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339Nano))
				}
			case slog.LevelKey:
				attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
			case slog.SourceKey:
				if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
					attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
				return attr
			}
			if attr.Value.Kind() == slog.KindAny {
				switch x := attr.Value.Any().(type) {
				case error:
				case []byte:
					attr.Value = slog.StringValue(bodyPreview(x))
				case fmt.Stringer:
					attr.Value = slog.StringValue(x.String())
				}
			}
			return attr
		},
	}
	return slog.NewJSONHandler(w, &opts)
}
