package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/antonijn/controlpanel/internal/registration"
)

func newLayoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "layout",
		Short: "Show the console layout and the MIDI it maps to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			l := cfg.Console.Layout()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, stopReport(l))
			if len(l.Couplers) > 0 {
				fmt.Fprintln(out, couplerReport(l))
			}
			fmt.Fprintf(out, "general pistons: %d, divisional pistons: %d, instruments: %d\n",
				l.GeneralPistons, l.DivisionalPistons, l.Instruments)
			return nil
		},
	}
}

func stopReport(l registration.Layout) *report {
	r := newReport("Stops",
		column{title: "Division", merge: true},
		column{title: "Stop"},
		column{title: "Id", numeric: true},
		column{title: "Channel", numeric: true},
		column{title: "CC", numeric: true},
	)
	for _, d := range l.Divisions {
		r.group()
		r.add(d.Name, "(expression)", "", channel(d.Channel), strconv.Itoa(int(d.ExpressionCC)))
		for _, s := range d.Stops {
			r.add(d.Name, s.Name, strconv.Itoa(s.ID), channel(d.Channel), strconv.Itoa(int(s.CC)))
		}
	}
	return r
}

func couplerReport(l registration.Layout) *report {
	r := newReport("Couplers",
		column{title: "Coupler"},
		column{title: "Id", numeric: true},
		column{title: "Destination"},
		column{title: "Channel", numeric: true},
		column{title: "CC", numeric: true},
	)
	for _, c := range l.Couplers {
		dest := strconv.Itoa(int(c.Division))
		if d, ok := l.Division(c.Division); ok {
			dest = d.Name
		}
		r.add(c.Name, strconv.Itoa(c.ID), dest, channel(c.Channel), strconv.Itoa(int(c.CC)))
	}
	return r
}

// channel shows a 0-based channel the way the configuration writes it.
func channel(ch uint8) string { return strconv.Itoa(int(ch) + 1) }
