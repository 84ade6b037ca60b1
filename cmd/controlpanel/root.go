package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "controlpanel",
		Short:         "Organ console to MIDI bridge",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["skipConfigLoad"] == "true" {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runBridge(cmd.Context(), cfg, ctx.debug, cmd.ErrOrStderr())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path")
	flags.StringVar(&ctx.ttyFlag, "tty", "", "Console serial device (overrides serial.device)")
	flags.StringVar(&ctx.midiName, "midi-name", "", "Name of the virtual MIDI port (overrides midi.port_name)")
	flags.BoolVar(&ctx.debug, "debug", false, "Log at debug level with source locations")

	rootCmd.AddCommand(newLayoutCommand(ctx))
	rootCmd.AddCommand(newPortsCommand(ctx))
	rootCmd.AddCommand(newFrameCommand(ctx))
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}
