package nxt

import "strconv"

// Status is a completion code exchanged with the daemon.
type Status int

const (
	OK        Status = 0
	Error     Status = 1
	Again     Status = 2
	Cancelled Status = 3
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case Error:
		return "error"
	case Again:
		return "again"
	case Cancelled:
		return "cancelled"
	default:
		return "status(" + strconv.Itoa(int(s)) + ")"
	}
}

// LogLevel mirrors the daemon's request log severities.
type LogLevel int

const (
	LogAlert LogLevel = iota
	LogError
	LogWarn
	LogNotice
	LogInfo
	LogDebug
)

func (l LogLevel) String() string {
	switch l {
	case LogAlert:
		return "alert"
	case LogError:
		return "error"
	case LogWarn:
		return "warn"
	case LogNotice:
		return "notice"
	case LogInfo:
		return "info"
	case LogDebug:
		return "debug"
	default:
		return "level(" + strconv.Itoa(int(l)) + ")"
	}
}
