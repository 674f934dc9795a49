package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"torrentrss/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the torrentrss version",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "torrentrss %s\n", version.Version)
			return nil
		},
	}
}
