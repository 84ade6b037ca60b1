package main

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/antonijn/controlpanel/internal/bridge"
	"github.com/antonijn/controlpanel/internal/capture"
	"github.com/antonijn/controlpanel/internal/config"
	"github.com/antonijn/controlpanel/internal/faults"
	"github.com/antonijn/controlpanel/internal/frame"
	"github.com/antonijn/controlpanel/internal/logging"
	"github.com/antonijn/controlpanel/internal/midiout"
	"github.com/antonijn/controlpanel/internal/registration"
	"github.com/antonijn/controlpanel/internal/serialport"
)

// runBridge opens both ends and processes console events until ctx is
// cancelled or a device fails.
func runBridge(ctx context.Context, cfg *config.Config, debug bool, logOut io.Writer) error {
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Debug:  debug,
		Output: logOut,
	})
	if err != nil {
		return &configError{err: err}
	}
	logger, _ = logging.WithRunID(logger)
	logger.Info("control panel starting",
		slog.String("tty", cfg.Serial.Device),
		slog.String("midi_port", cfg.MIDI.PortName),
	)

	presets, err := cfg.Console.ResolvePresets()
	if err != nil {
		return &configError{err: err}
	}
	machine, err := registration.NewMachine(cfg.Console.Layout(), presets, logger)
	if err != nil {
		return &configError{err: err}
	}

	rt, err := midiout.NewRTMidi(midiout.PortConfig{
		Name:    cfg.MIDI.PortName,
		Virtual: cfg.MIDI.Virtual,
		Target:  cfg.MIDI.Target,
	}, logger)
	if err != nil {
		return deviceFault("midi", "init", err)
	}
	defer rt.Close()

	open := rt.Opener()
	var rec *capture.Recorder
	if cfg.MIDI.CapturePath != "" {
		rec = capture.NewRecorder(cfg.MIDI.CapturePath, logger)
		open = rec.Wrap(open)
		defer func() {
			if werr := rec.WriteFile(); werr != nil {
				logger.Warn("midi journal not written", logging.Error(werr))
			}
		}()
	}

	emitter := midiout.NewEmitter(open,
		midiout.WithRetry(cfg.MIDI.SendAttempts, cfg.MIDI.BackoffInitial(), cfg.MIDI.BackoffMax()),
		midiout.WithLogger(logger),
	)
	if err := emitter.Open(ctx); err != nil {
		return stopErr(ctx, err)
	}
	defer emitter.Close()

	var ready *midiout.ReadyWatcher
	if cfg.MIDI.WaitReady {
		in, err := rt.OpenIn()
		if err != nil {
			return deviceFault("midi", "open input", err)
		}
		ready = midiout.NewReadyWatcher(cfg.MIDI.ReadyTimeout(), logger)
		if err := ready.Listen(in); err != nil {
			return deviceFault("midi", "listen", err)
		}
		defer ready.Close()
	}

	port, err := serialport.Open(ctx, serialport.Config{
		Device:        cfg.Serial.Device,
		Baud:          cfg.Serial.Baud,
		ReadTimeout:   cfg.Serial.ReadTimeout(),
		AppearTimeout: cfg.Serial.AppearTimeout(),
		LockDir:       cfg.Serial.LockDir,
	}, logger)
	if err != nil {
		return stopErr(ctx, err)
	}
	defer port.Close()

	dec := frame.NewDecoder(port,
		frame.WithMarkers(byte(cfg.Serial.SOF0), byte(cfg.Serial.SOF1)),
		frame.WithMaxPayload(cfg.Serial.MaxPayload),
		frame.WithLogger(logger),
	)

	opts := bridge.Options{Logger: logger}
	if ready != nil {
		opts.Ready = ready
		opts.Flush = func() error {
			if err := port.ResetInputBuffer(); err != nil {
				return err
			}
			dec.Reset()
			return nil
		}
	}

	err = bridge.New(dec, machine, emitter, opts).Run(ctx)
	stats := dec.Stats()
	logger.Info("decoder totals",
		slog.Int("frames", stats.Frames),
		slog.Int("events", stats.Events),
		slog.Int("discarded_bytes", stats.DiscardedBytes),
		slog.Int("unknown_opcodes", stats.UnknownOpcodes),
		slog.Int("midi_sent", emitter.Sent()),
	)
	return err
}

func deviceFault(component, op string, err error) error {
	return faults.Wrap(faults.ErrDevice, component, op, "", err)
}

// stopErr reports an interrupted startup as a clean stop.
func stopErr(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}
