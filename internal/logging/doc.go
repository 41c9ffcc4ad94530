// Package logging builds the slog loggers used by unitgo.
//
// Console and JSON output share one value rendering: completion codes and
// other enums print by name and bodies print as short previews. Records are
// stamped with the daemon session and, when logged through the *Context
// methods, the dev server request id. Component loggers obey the per-component
// levels from config, and a diagnostic run tees everything into a debug log.
//
// The unit and loopback packages only depend on the attr helpers and field
// keys; the handlers, the stream hub and retention are wired by the dev daemon.
package logging
