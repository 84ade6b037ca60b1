package midiout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/antonijn/controlpanel/internal/logging"
)

// ExcludedPatterns are virtual/system ports that are never picked as target.
var ExcludedPatterns = []string{"Midi Through", "Through Port", "Dummy"}

// PortConfig selects the MIDI port the bridge talks to.
type PortConfig struct {
	// Name of the virtual port the bridge creates.
	Name string
	// Virtual creates a port the engine connects to; otherwise the bridge
	// connects to an existing port whose name contains Target.
	Virtual bool
	Target  string
}

// RTMidi opens MIDI ports through the rtmidi driver (ALSA on Linux).
type RTMidi struct {
	drv    *rtmididrv.Driver
	cfg    PortConfig
	logger *slog.Logger
}

// NewRTMidi initialises the rtmidi driver. Call Close when done.
func NewRTMidi(cfg PortConfig, logger *slog.Logger) (*RTMidi, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	return &RTMidi{
		drv:    drv,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "rtmidi"),
	}, nil
}

// Close shuts down the rtmidi driver and every port it opened.
func (r *RTMidi) Close() {
	r.drv.Close()
}

// Opener returns the Opener the emitter uses to (re)acquire its sink.
func (r *RTMidi) Opener() Opener {
	return func(ctx context.Context) (Sink, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := r.openOut()
		if err != nil {
			return nil, err
		}
		return &portSink{out: out}, nil
	}
}

// OpenIn opens the port the engine's replies arrive on: a virtual input of
// the same name, or the existing input matching Target.
func (r *RTMidi) OpenIn() (drivers.In, error) {
	if r.cfg.Virtual {
		in, err := r.drv.OpenVirtualIn(r.cfg.Name)
		if err != nil {
			return nil, fmt.Errorf("open virtual in %q: %w", r.cfg.Name, err)
		}
		return in, nil
	}
	ins, err := r.drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("list inputs: %w", err)
	}
	for _, in := range ins {
		name := in.String()
		if excluded(name) || !containsCI(name, r.cfg.Target) {
			continue
		}
		if err := in.Open(); err != nil {
			return nil, fmt.Errorf("open %q: %w", name, err)
		}
		r.logger.Info("midi input connected", slog.String(logging.FieldDevice, name))
		return in, nil
	}
	return nil, fmt.Errorf("input matching %q not found", r.cfg.Target)
}

// Outputs lists output port names, leaving out system ports.
func (r *RTMidi) Outputs() ([]string, error) {
	outs, err := r.drv.Outs()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, out := range outs {
		name := out.String()
		if excluded(name) {
			r.logger.Debug("midi output excluded", slog.String(logging.FieldDevice, name))
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func (r *RTMidi) openOut() (drivers.Out, error) {
	if r.cfg.Virtual {
		out, err := r.drv.OpenVirtualOut(r.cfg.Name)
		if err != nil {
			return nil, fmt.Errorf("open virtual out %q: %w", r.cfg.Name, err)
		}
		r.logger.Info("virtual midi output created", slog.String(logging.FieldDevice, r.cfg.Name))
		return out, nil
	}

	outs, err := r.drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("list outputs: %w", err)
	}
	var found drivers.Out
	for _, out := range outs {
		name := out.String()
		if excluded(name) {
			continue
		}
		if containsCI(name, r.cfg.Target) {
			found = out
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("output matching %q not found", r.cfg.Target)
	}
	if err := found.Open(); err != nil {
		return nil, fmt.Errorf("open %q: %w", found.String(), err)
	}
	r.logger.Info("midi output connected", slog.String(logging.FieldDevice, found.String()))
	return found, nil
}

// portSink adapts a driver output port to Sink.
type portSink struct {
	out drivers.Out
}

func (s *portSink) Send(msg midi.Message) error {
	return s.out.Send(msg.Bytes())
}

func (s *portSink) Close() error {
	return s.out.Close()
}

func excluded(name string) bool {
	for _, pat := range ExcludedPatterns {
		if containsCI(name, pat) {
			return true
		}
	}
	return false
}

func containsCI(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
