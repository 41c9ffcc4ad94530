package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"unitgo/internal/daemon"
	"unitgo/internal/logging"
	"unitgo/unit"
	"unitgo/unit/unithttp"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var threads int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo application through the NGINX Unit router",
		Long: "Serve the demo application on unit contexts connected to the NGINX Unit router.\n" +
			"The process must be started by Unit and built with -tags libunit.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			policy, err := unit.ParseFaultPolicy(cfg.App.FaultPolicy)
			if err != nil {
				return err
			}
			if threads <= 0 {
				threads = cfg.App.Threads
			}

			// Unit captures stderr into its own log.
			logger, err := logging.New(logging.Options{
				Level:            ctx.resolvedLogLevel(cfg),
				Format:           cfg.Logging.Format,
				ComponentLevels:  cfg.Logging.ComponentLevels,
				OutputPaths:      []string{"stderr"},
				ErrorOutputPaths: []string{"stderr"},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			app := unithttp.Handler(daemon.DemoApp())
			app.ChunkSize = cfg.App.ChunkSize
			logger.Info("serving application",
				logging.String(logging.FieldContext, cfg.App.Name),
				logging.Int("threads", threads),
				logging.Kind("fault_policy", policy))

			return unit.RunThreads(threads,
				func(c *unit.Context) error {
					c.SetHandler(app)
					return nil
				},
				unit.WithName(cfg.App.Name),
				unit.WithFaultPolicy(policy),
				unit.WithLogger(logger),
			)
		},
	}
	cmd.Flags().IntVarP(&threads, "threads", "t", 0, "Number of unit contexts (defaults to app.threads)")
	return cmd
}
