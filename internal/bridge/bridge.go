// Package bridge runs the console-to-engine pipeline: decode a control
// event, apply it to the registration, send the resulting MIDI.
package bridge

import (
	"context"
	"errors"
	"log/slog"

	"github.com/antonijn/controlpanel/internal/faults"
	"github.com/antonijn/controlpanel/internal/logging"
	"github.com/antonijn/controlpanel/internal/registration"
)

// EventSource yields control events. frame.Decoder implements it.
type EventSource interface {
	Next(ctx context.Context) (registration.ControlEvent, error)
}

// DeltaSink delivers deltas to the engine. midiout.Emitter implements it.
type DeltaSink interface {
	Send(ctx context.Context, deltas []registration.Delta) error
}

// Readiness reports when the engine has finished loading an instrument.
// midiout.ReadyWatcher implements it.
type Readiness interface {
	Reset()
	Wait(ctx context.Context) error
}

// Options configures a Bridge.
type Options struct {
	Logger *slog.Logger
	// Ready, when set, is waited on at startup and after every instrument
	// change.
	Ready Readiness
	// Flush drops console input gathered while waiting for the engine.
	Flush func() error
}

// Stats counts what a run has processed.
type Stats struct {
	Events   int
	Rejected int
	Deltas   int
}

// Bridge processes one event at a time: an event is fully applied and its
// MIDI delivered before the next is read.
type Bridge struct {
	src     EventSource
	machine *registration.Machine
	sink    DeltaSink
	ready   Readiness
	flush   func() error
	logger  *slog.Logger
	stats   Stats
}

// New wires the pipeline.
func New(src EventSource, machine *registration.Machine, sink DeltaSink, opts Options) *Bridge {
	return &Bridge{
		src:     src,
		machine: machine,
		sink:    sink,
		ready:   opts.Ready,
		flush:   opts.Flush,
		logger:  logging.NewComponentLogger(opts.Logger, "bridge"),
	}
}

// Run processes events until ctx is cancelled, which returns nil, or a
// device fault occurs, which is returned. Protocol and validation faults are
// logged and skipped.
func (b *Bridge) Run(ctx context.Context) error {
	b.logger.Info("bridge started")
	defer func() {
		b.logger.Info("bridge stopped",
			slog.Int("events", b.stats.Events),
			slog.Int("rejected", b.stats.Rejected),
			slog.Int("deltas", b.stats.Deltas),
		)
	}()

	if b.ready != nil {
		if err := b.awaitEngine(ctx); err != nil {
			return stopped(ctx, err)
		}
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		ev, err := b.src.Next(ctx)
		if err != nil {
			if cancelled(ctx, err) {
				return nil
			}
			logging.Fault(b.logger, "reading console failed", err)
			if faults.IsFatal(err) {
				return err
			}
			continue
		}
		if err := b.handle(ctx, ev); err != nil {
			return stopped(ctx, err)
		}
	}
}

// Stats returns the counters of the current run.
func (b *Bridge) Stats() Stats { return b.stats }

func (b *Bridge) handle(ctx context.Context, ev registration.ControlEvent) error {
	b.stats.Events++
	deltas, err := b.machine.Apply(ev)
	if err != nil {
		b.stats.Rejected++
		logging.Fault(b.logger, "control event rejected", err, slog.String("event", ev.String()))
		if faults.IsFatal(err) {
			return err
		}
		return nil
	}
	if len(deltas) == 0 {
		b.logger.Debug("event changed nothing", slog.String("event", ev.String()))
		return nil
	}

	reload := b.ready != nil && changesInstrument(deltas)
	if reload {
		b.ready.Reset()
	}

	// A batch already started is finished even if shutdown was requested.
	if err := b.sink.Send(context.WithoutCancel(ctx), deltas); err != nil {
		logging.Fault(b.logger, "sending to voice engine failed", err)
		return err
	}
	b.stats.Deltas += len(deltas)
	b.logger.Debug("event applied", slog.String("event", ev.String()), slog.Int("deltas", len(deltas)))

	if reload {
		return b.awaitEngine(ctx)
	}
	return nil
}

func (b *Bridge) awaitEngine(ctx context.Context) error {
	if err := b.ready.Wait(ctx); err != nil {
		if !cancelled(ctx, err) {
			logging.Fault(b.logger, "voice engine did not become ready", err)
		}
		return err
	}
	if b.flush != nil {
		if err := b.flush(); err != nil {
			logging.Fault(b.logger, "flushing console input failed", err)
			return err
		}
	}
	return nil
}

func changesInstrument(deltas []registration.Delta) bool {
	for _, d := range deltas {
		if d.Target == registration.TargetSetting && registration.SettingID(d.ID) == registration.SettingInstrument {
			return true
		}
	}
	return false
}

func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

// stopped turns a cancellation into a clean stop.
func stopped(ctx context.Context, err error) error {
	if cancelled(ctx, err) {
		return nil
	}
	return err
}
