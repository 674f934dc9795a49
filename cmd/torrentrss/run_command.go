package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"torrentrss/internal/logging"
	"torrentrss/internal/runner"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute one polling pass over all configured feeds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeRun(cmd, ctx)
		},
	}
}

// executeRun performs a single pass. Per-feed and per-entry failures are
// logged and counted without failing the command; only configuration
// problems and lost write-backs produce a non-zero exit.
func executeRun(cmd *cobra.Command, ctx *commandContext) error {
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

	r := runner.New(cfg, ctx.configPath, logger)
	defer r.Close()

	_, err = r.Run(signalCtx)
	return err
}
