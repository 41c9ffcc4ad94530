package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"unitgo/internal/daemonctl"
	"unitgo/internal/daemonrun"
)

func newDevCommand(ctx *commandContext) *cobra.Command {
	var diagnostic bool
	var development bool
	var detach bool

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Run the demo application behind the loopback dev daemon",
		Long: "Run the demo application on unit contexts backed by the in-process loopback daemon.\n" +
			"Requests to the configured dev bind address are dispatched to the contexts, journaled\n" +
			"and logged. Use --detach to start the daemon in the background.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if detach {
				return launchDetached(cmd, ctx, diagnostic)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    ctx.resolvedLogLevel(cfg),
				Development: development,
				Diagnostic:  diagnostic,
			})
		},
	}
	cmd.Flags().BoolVar(&diagnostic, "diagnostic", false, "Enable diagnostic mode with separate DEBUG logs")
	cmd.Flags().BoolVar(&development, "development", false, "Include source locations in log output")
	cmd.Flags().BoolVarP(&detach, "detach", "d", false, "Start the dev daemon in the background and return")
	return cmd
}

func launchDetached(cmd *cobra.Command, ctx *commandContext, diagnostic bool) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	stdout := cmd.OutOrStdout()
	opts := daemonctl.LaunchOptions{
		ConfigPath: ctx.configPath(),
		LogLevel:   ctx.resolvedLogLevel(nil),
		Diagnostic: diagnostic,
	}
	result, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, opts, 10*time.Second)
	if err != nil {
		return err
	}
	switch result.State {
	case daemonctl.StartStateStarted:
		fmt.Fprintf(stdout, "Dev daemon started (pid %d) on http://%s\n", result.PID, result.Bind)
	case daemonctl.StartStateAlreadyRunning:
		fmt.Fprintf(stdout, "Dev daemon already running (pid %d) on http://%s\n", result.PID, result.Bind)
	}
	return nil
}
