package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"torrentrss/internal/logging"
	"torrentrss/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var every time.Duration
	var cronExpr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run polling passes on a schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.requireConfigFile()
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger, _, err := logging.RunLogger(cfg, time.Now())
			if err != nil {
				return err
			}
			logging.RemoveOldLogFiles(logger, cfg.Paths.LogDir, cfg.Logging.RetentionCount)

			svc := watch.New(cfg, ctx.configPath, logger, watch.Options{
				Every: every,
				Cron:  cronExpr,
			})
			return svc.Run(signalCtx)
		},
	}

	cmd.Flags().DurationVar(&every, "every", watch.DefaultInterval, "Interval between passes")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression overriding --every")

	return cmd
}
