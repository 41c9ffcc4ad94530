package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"unitgo/internal/ipc"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 16
	statusIndent     = "  "
)

// renderStatus lays out the daemon, context registry and journal sections.
func renderStatus(status *ipc.StatusResponse, colorize bool) []string {
	var lines []string
	lines = append(lines, renderSectionHeader("Dev Daemon", colorize)...)
	if status.Running {
		lines = append(lines,
			renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize),
			renderStatusLine("Listening", statusInfo, "http://"+status.Bind, colorize),
		)
		if status.StartedAt != "" {
			lines = append(lines, renderStatusLine("Started", statusInfo, status.StartedAt, colorize))
		}
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "Not running", colorize))
	}
	lines = append(lines, renderStatusLine("Threads", statusInfo, fmt.Sprintf("%d (fault policy %s)", status.Threads, status.FaultPolicy), colorize))
	if status.LogPath != "" {
		lines = append(lines, renderStatusLine("Log", statusInfo, status.LogPath, colorize))
	}

	if status.Running {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Contexts", colorize)...)
		reg := status.Registry
		kind := statusOK
		detail := fmt.Sprintf("%s, %d secondary", reg.State, reg.Secondaries)
		switch {
		case reg.Poisoned:
			kind = statusError
			detail += ", initialization failed"
		case reg.State != "initialized":
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine("Registry", kind, detail, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Request Journal", colorize)...)
	j := status.Journal
	switch {
	case j.Error != "":
		lines = append(lines, renderStatusLine("Journal", statusError, j.Error, colorize))
	case j.Path == "":
		lines = append(lines, renderStatusLine("Journal", statusInfo, "Disabled", colorize))
	default:
		lines = append(lines,
			renderStatusLine("Journal", statusOK, j.Path, colorize),
			renderStatusLine("Requests", statusInfo, fmt.Sprintf("%d total", j.Total), colorize),
		)
		failedKind := statusOK
		if j.Failed > 0 {
			failedKind = statusWarn
		}
		lines = append(lines, renderStatusLine("Failed", failedKind, fmt.Sprintf("%d (fallback %d)", j.Failed, j.Fallbacks), colorize))
	}
	return lines
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
