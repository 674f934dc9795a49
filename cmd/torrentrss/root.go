package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"torrentrss/internal/config"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var levelFlag string
	var formatFlag string
	var printSchemaFlag bool

	ctx := newCommandContext(&configFlag, &levelFlag, &formatFlag)

	rootCmd := &cobra.Command{
		Use:           "torrentrss",
		Short:         "Poll RSS feeds for torrent releases and act on new episodes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if printSchemaFlag || shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if printSchemaFlag {
				fmt.Fprintln(cmd.OutOrStdout(), config.Schema())
				return nil
			}
			return executeRun(cmd, ctx)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVarP(&levelFlag, "logging-level", "l", "", "Logging level (disable, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "log-format", "", "Log format (console, json)")
	rootCmd.Flags().BoolVar(&printSchemaFlag, "print-config-schema", false, "Print the configuration schema and exit")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newDoctorCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
