package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/antonijn/controlpanel/internal/frame"
	"github.com/antonijn/controlpanel/internal/registration"
)

const frameKinds = `Kinds and their arguments:

  stop DIVISION STOP STATE        STATE: 0 off, 1 on, 2 flip
  coupler COUPLER STATE
  piston BANK PISTON [store]      BANK: 0 general, otherwise a division
  expression DIVISION VALUE
  setting ID VALUE                ID may be hex (0x04)
  heartbeat`

func newFrameCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "frame KIND ARGS...",
		Short: "Print the bytes the console sends for an event",
		Long:  frameKinds,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			f, err := parseFrame(args)
			if err != nil {
				return err
			}
			data := f.EncodeWith(byte(cfg.Serial.SOF0), byte(cfg.Serial.SOF1))
			fmt.Fprintln(cmd.OutOrStdout(), hexBytes(data))
			return nil
		},
	}
}

func parseFrame(args []string) (frame.Frame, error) {
	kind, rest := strings.ToLower(args[0]), args[1:]
	if kind == "heartbeat" {
		if len(rest) != 0 {
			return frame.Frame{}, fmt.Errorf("heartbeat takes no arguments")
		}
		return frame.Heartbeat(), nil
	}

	var ev registration.ControlEvent
	var want int
	switch kind {
	case "stop":
		ev.Kind, want = registration.StopToggle, 3
	case "coupler":
		ev.Kind, want = registration.CouplerToggle, 2
	case "piston":
		ev.Kind, want = registration.PistonPress, 2
		if len(rest) == 3 && strings.EqualFold(rest[2], "store") {
			ev.Mode = registration.Store
			rest = rest[:2]
		}
	case "expression":
		ev.Kind, want = registration.ExpressionChange, 2
	case "setting":
		ev.Kind, want = registration.SettingChange, 2
	default:
		return frame.Frame{}, fmt.Errorf("unknown frame kind %q", args[0])
	}
	if len(rest) != want {
		return frame.Frame{}, fmt.Errorf("%s takes %d arguments, got %d", kind, want, len(rest))
	}

	nums := make([]int, len(rest))
	for i, a := range rest {
		n, err := strconv.ParseInt(a, 0, 32)
		if err != nil {
			return frame.Frame{}, fmt.Errorf("argument %q: %w", a, err)
		}
		nums[i] = int(n)
	}

	switch ev.Kind {
	case registration.StopToggle:
		if err := divisionArg(nums[0]); err != nil {
			return frame.Frame{}, err
		}
		ev.Division, ev.ID, ev.Value = registration.DivisionID(nums[0]), nums[1], nums[2]
	case registration.CouplerToggle, registration.SettingChange:
		ev.ID, ev.Value = nums[0], nums[1]
	case registration.PistonPress:
		if err := divisionArg(nums[0]); err != nil {
			return frame.Frame{}, err
		}
		ev.Division, ev.ID = registration.DivisionID(nums[0]), nums[1]
	case registration.ExpressionChange:
		if err := divisionArg(nums[0]); err != nil {
			return frame.Frame{}, err
		}
		ev.Division, ev.Value = registration.DivisionID(nums[0]), nums[1]
	}
	return frame.EventFrame(ev)
}

func divisionArg(n int) error {
	if n < 0 || n > 0xFF {
		return fmt.Errorf("division %d does not fit a byte", n)
	}
	return nil
}

func hexBytes(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, " ")
}
