package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/antonijn/controlpanel/internal/logging"
	"github.com/antonijn/controlpanel/internal/midiout"
	"github.com/antonijn/controlpanel/internal/serialport"
)

func newPortsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial devices and MIDI outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			serials, err := serialport.ListPorts()
			if err != nil {
				return err
			}
			serialReport := newReport("Serial devices",
				column{title: "Device"},
				column{title: "USB id"},
				column{title: "Product"},
				column{title: "Serial number"},
			)
			for _, p := range serials {
				usb := ""
				if p.USB {
					usb = p.VID + ":" + p.PID
				}
				serialReport.add(p.Name, usb, p.Product, p.Serial)
			}
			fmt.Fprintln(out, serialReport)

			rt, err := midiout.NewRTMidi(midiout.PortConfig{Name: cfg.MIDI.PortName}, logging.NewNop())
			if err != nil {
				return err
			}
			defer rt.Close()
			names, err := rt.Outputs()
			if err != nil {
				return err
			}
			midiReport := newReport("MIDI outputs", column{title: "Port"})
			for _, n := range names {
				midiReport.add(n)
			}
			fmt.Fprintln(out, midiReport)
			return nil
		},
	}
}
