package main

import (
	"github.com/spf13/cobra"

	"github.com/antonijn/controlpanel/internal/config"
)

func newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "config",
		Short:       "Print the default configuration file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write(config.DefaultTOML())
			return err
		},
	}
}
