package main

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"unitgo/internal/api"
	"unitgo/internal/logs"
	"unitgo/internal/logstream"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var opts logstream.Options

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display dev daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var tail logstream.TailClient
			bind := cfg.Dev.Bind
			if client, dialErr := ctx.dialClient(); dialErr == nil {
				defer client.Close()
				tail = client
				// The configured bind may use port 0.
				if status, statusErr := client.Status(); statusErr == nil && status.Bind != "" {
					bind = status.Bind
				}
			}
			apiClient, err := logs.NewStreamClient(bind, cfg.Dev.APIToken)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printed, err := logstream.Stream(cmd.Context(), apiClient, tail, opts,
				func(evt api.LogEvent) { fmt.Fprintln(out, formatLogEvent(evt)) },
				func(line string) { fmt.Fprintln(out, line) },
			)
			if errors.Is(err, logs.ErrAPIUnavailable) && tail == nil && !errors.Is(err, logstream.ErrFiltersRequireAPI) {
				return wrapDialError(syscall.ENOENT, ctx.socketPath())
			}
			if err != nil {
				return err
			}
			if !printed && !opts.Follow {
				fmt.Fprintln(out, "No log entries available")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&opts.Lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	cmd.Flags().StringVar(&opts.Filters.Component, "component", "", "Only show events from this component")
	cmd.Flags().StringVar(&opts.Filters.Context, "context", "", "Only show events from this unit context")
	cmd.Flags().StringVar(&opts.Filters.RequestID, "request", "", "Only show events for this request id")
	return cmd
}

func formatLogEvent(evt api.LogEvent) string {
	level := strings.ToUpper(strings.TrimSpace(evt.Level))
	if level == "" {
		level = "INFO"
	}
	parts := []string{evt.Timestamp, level}
	if component := strings.TrimSpace(evt.Component); component != "" {
		parts = append(parts, "["+component+"]")
	}
	if subject := logSubject(evt.Context, evt.RequestID); subject != "" {
		parts = append(parts, subject)
	}
	line := strings.Join(parts, " ")
	if message := strings.TrimSpace(evt.Message); message != "" {
		line += " - " + message
	}
	if len(evt.Fields) == 0 {
		return line
	}
	var b strings.Builder
	b.WriteString(line)
	for _, key := range slices.Sorted(maps.Keys(evt.Fields)) {
		b.WriteString("\n    - ")
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(evt.Fields[key])
	}
	return b.String()
}

func logSubject(unitCtx, requestID string) string {
	unitCtx = strings.TrimSpace(unitCtx)
	requestID = strings.TrimSpace(requestID)
	switch {
	case unitCtx != "" && requestID != "":
		return unitCtx + " #" + requestID
	case requestID != "":
		return "#" + requestID
	default:
		return unitCtx
	}
}
