package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"torrentrss/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	group := &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage the configuration file",
	}
	group.AddCommand(
		newConfigInitCommand(),
		newConfigValidateCommand(ctx),
		newConfigSchemaCommand(),
		newConfigPathCommand(ctx),
	)
	return group
}

func newConfigInitCommand() *cobra.Command {
	var opts struct {
		path      string
		overwrite bool
	}

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveInitTarget(opts.path)
			if err != nil {
				return err
			}
			if err := writeSampleConfig(target, opts.overwrite); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to add feeds and subscriptions before running torrentrss.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.path, "path", "p", "", "Destination for the sample file")
	cmd.Flags().BoolVar(&opts.overwrite, "overwrite", false, "Replace an existing configuration file")
	return cmd
}

// resolveInitTarget picks the sample destination: an explicit path wins,
// otherwise the default configuration location.
func resolveInitTarget(raw string) (string, error) {
	if raw = strings.TrimSpace(raw); raw == "" {
		return config.DefaultConfigPath()
	}
	return config.ExpandPath(raw)
}

func writeSampleConfig(target string, overwrite bool) error {
	if !overwrite {
		switch _, err := os.Stat(target); {
		case err == nil:
			return fmt.Errorf("%s already exists; pass --overwrite to replace it", target)
		case !os.IsNotExist(err):
			return fmt.Errorf("check config path: %w", err)
		}
	}
	if err := config.CreateSample(target); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate the configuration file against the schema",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var flagPath string
			if ctx.configFlag != nil {
				flagPath = strings.TrimSpace(*ctx.configFlag)
			}
			cfg, path, exists, err := config.Load(flagPath)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("no configuration file found at %s", path)
			}

			subscriptions := 0
			for _, f := range cfg.Feeds {
				subscriptions += len(f.Subscriptions)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			fmt.Fprintf(out, "Feeds: %d (subscriptions: %d)\n", len(cfg.Feeds), subscriptions)
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "schema",
		Short:       "Print the configuration JSON Schema",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.Schema())
			return nil
		},
	}
}

func newConfigPathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the resolved configuration file path",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var flagPath string
			if ctx.configFlag != nil {
				flagPath = strings.TrimSpace(*ctx.configFlag)
			}
			if flagPath == "" {
				flagPath = strings.TrimSpace(os.Getenv("TORRENTRSS_CONFIG"))
			}
			if flagPath != "" {
				expanded, err := config.ExpandPath(flagPath)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), expanded)
				return nil
			}
			defaultPath, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), defaultPath)
			return nil
		},
	}
}
