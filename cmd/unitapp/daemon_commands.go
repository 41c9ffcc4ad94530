package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"unitgo/internal/daemonctl"
	"unitgo/internal/preflight"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the dev daemon (terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := daemonctl.StopAndTerminate(cfg, 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Dev daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			} else {
				fmt.Fprintln(stdout, "Stopping unit contexts...")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Killed dev daemon process (pid %d)\n", result.PID)
			}
			fmt.Fprintln(stdout, "Dev daemon stopped")
			return nil
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show dev daemon, context and journal status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			status, err := daemonctl.BuildStatusSnapshot(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, status)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			for _, line := range renderStatus(status, colorize) {
				fmt.Fprintln(stdout, line)
			}
			if !status.Running {
				fmt.Fprintln(stdout)
				for _, line := range renderSectionHeader("System Checks", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, check := range preflight.RunAll(cmd.Context(), cfg, preflight.Options{}) {
					kind := statusOK
					if !check.Passed {
						kind = statusError
					}
					fmt.Fprintln(stdout, renderStatusLine(check.Name, kind, check.Detail, colorize))
				}
				return nil
			}

			fmt.Fprintln(stdout)
			for _, line := range renderSectionHeader("Loopback Calls", colorize) {
				fmt.Fprintln(stdout, line)
			}
			lb := status.Loopback
			rows := [][]string{
				{"init", strconv.Itoa(lb.Inits)},
				{"ctx_alloc", strconv.Itoa(lb.CtxAllocs)},
				{"run", strconv.Itoa(lb.Runs)},
				{"run_once", strconv.Itoa(lb.RunOnces)},
				{"done", strconv.Itoa(lb.Dones)},
				{"live contexts", strconv.Itoa(lb.LiveContexts)},
				{"dispatched", strconv.Itoa(lb.Dispatched)},
				{"completed", strconv.Itoa(lb.Completed)},
				{"chunks in use", strconv.Itoa(lb.ChunksInUse)},
			}
			fmt.Fprintln(stdout, renderTable([]string{"Counter", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")

	return []*cobra.Command{stopCmd, statusCmd}
}
