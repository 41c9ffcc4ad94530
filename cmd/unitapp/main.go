package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"unitgo/internal/daemonctl"
	"unitgo/unit"
)

// Exit codes beyond 1 let scripts tell a missing daemon from a failed app.
const (
	exitFailure     = 1
	exitNoDaemon    = 3
	exitInit        = 4
	exitSoftware    = 70
	exitInterrupted = 130
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	err := cmd.Execute()
	code, hint := classifyExit(err)
	if err != nil && code != exitInterrupted {
		fmt.Fprintln(stderr, err)
		if hint != "" {
			fmt.Fprintln(stderr, "hint:", hint)
		}
	}
	return code
}

func classifyExit(err error) (int, string) {
	var initErr *unit.InitError
	switch {
	case err == nil:
		return 0, ""
	case errors.Is(err, context.Canceled):
		return exitInterrupted, ""
	case errors.Is(err, daemonctl.ErrDaemonNotRunning):
		return exitNoDaemon, "start one with `unitapp dev`"
	case errors.As(err, &initErr):
		return exitInit, "`unitapp serve` must be started by the application server; use `unitapp dev` locally"
	case errors.Is(err, unit.ErrRegistryPoisoned):
		return exitSoftware, "a handler panicked while contexts were starting or closing; the log has the stack"
	default:
		return exitFailure, ""
	}
}
