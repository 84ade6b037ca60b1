// Package midiout owns the outbound MIDI connection to the voice engine and
// turns registration deltas into MIDI messages on it.
package midiout

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"gitlab.com/gomidi/midi/v2"

	"github.com/antonijn/controlpanel/internal/faults"
	"github.com/antonijn/controlpanel/internal/logging"
	"github.com/antonijn/controlpanel/internal/registration"
)

const (
	DefaultAttempts       = 5
	DefaultInitialBackoff = 200 * time.Millisecond
	DefaultMaxBackoff     = 2 * time.Second
)

// Sink is an open MIDI output.
type Sink interface {
	Send(msg midi.Message) error
	Close() error
}

// Opener acquires a Sink. It is called once at startup and again every time
// the sink fails.
type Opener func(ctx context.Context) (Sink, error)

// Emitter delivers deltas to the sink in wire order. A failed message is
// retried on a freshly acquired sink; messages already delivered are never
// sent twice.
//
// MIDI has no transactions: if the process dies halfway through a batch the
// engine stays out of step until the affected stops are touched again.
type Emitter struct {
	open     Opener
	sink     Sink
	attempts int
	initial  time.Duration
	maxWait  time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *slog.Logger
	sent     int
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithRetry sets how many times a failed sink is reacquired and the backoff
// between attempts, doubling from initial up to maxWait.
func WithRetry(attempts int, initial, maxWait time.Duration) Option {
	return func(e *Emitter) {
		if attempts > 0 {
			e.attempts = attempts
		}
		if initial > 0 {
			e.initial = initial
		}
		if maxWait > 0 {
			e.maxWait = maxWait
		}
	}
}

// WithLogger sets the emitter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Emitter) { e.logger = logging.NewComponentLogger(logger, "emitter") }
}

// NewEmitter returns an emitter that acquires its sink through open.
func NewEmitter(open Opener, opts ...Option) *Emitter {
	e := &Emitter{
		open:     open,
		attempts: DefaultAttempts,
		initial:  DefaultInitialBackoff,
		maxWait:  DefaultMaxBackoff,
		sleep:    sleepContext,
		logger:   logging.NewComponentLogger(nil, "emitter"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open acquires the sink, retrying within the same budget as a failed send.
func (e *Emitter) Open(ctx context.Context) error {
	if e.sink != nil {
		return nil
	}
	var lastErr error
	for attempt := 0; attempt <= e.attempts; attempt++ {
		if attempt > 0 {
			if err := e.sleep(ctx, e.backoff(attempt)); err != nil {
				return err
			}
		}
		sink, err := e.open(ctx)
		if err == nil {
			e.sink = sink
			e.logger.Info("midi sink opened", slog.Int("attempt", attempt+1))
			return nil
		}
		lastErr = err
		e.logger.Warn("midi sink open failed", slog.Int("attempt", attempt+1), logging.Error(err))
	}
	return faults.Wrap(faults.ErrDevice, "emitter", "open",
		fmt.Sprintf("MIDI sink unavailable after %d attempts", e.attempts+1), lastErr)
}

// Send delivers the messages for deltas sorted by division, target and id.
func (e *Emitter) Send(ctx context.Context, deltas []registration.Delta) error {
	if len(deltas) == 0 {
		return nil
	}
	ordered := slices.Clone(deltas)
	registration.SortDeltas(ordered)
	for _, d := range ordered {
		if err := e.deliver(ctx, Message(d)); err != nil {
			return err
		}
		e.logger.Debug("midi sent", slog.String("delta", d.String()))
	}
	return nil
}

// Sent returns the number of messages delivered so far.
func (e *Emitter) Sent() int { return e.sent }

// Close releases the sink.
func (e *Emitter) Close() error {
	if e.sink == nil {
		return nil
	}
	err := e.sink.Close()
	e.sink = nil
	return err
}

func (e *Emitter) deliver(ctx context.Context, msg midi.Message) error {
	var lastErr error
	if e.sink != nil {
		lastErr = e.sink.Send(msg)
		if lastErr == nil {
			e.sent++
			return nil
		}
	}

	for attempt := 1; attempt <= e.attempts; attempt++ {
		if lastErr == nil {
			e.logger.Info("midi sink not open; reacquiring",
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", e.attempts),
			)
		} else {
			e.logger.Warn("midi send failed; reacquiring sink",
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", e.attempts),
				logging.Error(lastErr),
			)
		}
		e.dropSink()
		if err := e.sleep(ctx, e.backoff(attempt)); err != nil {
			return err
		}
		sink, err := e.open(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		e.sink = sink
		if err := sink.Send(msg); err != nil {
			lastErr = err
			continue
		}
		e.sent++
		e.logger.Info("midi sink recovered", slog.Int("attempt", attempt))
		return nil
	}
	e.dropSink()
	return faults.Wrap(faults.ErrDevice, "emitter", "send",
		fmt.Sprintf("MIDI sink unavailable after %d attempts", e.attempts), lastErr)
}

func (e *Emitter) dropSink() {
	if e.sink == nil {
		return
	}
	if err := e.sink.Close(); err != nil {
		e.logger.Debug("closing failed sink", logging.Error(err))
	}
	e.sink = nil
}

func (e *Emitter) backoff(attempt int) time.Duration {
	d := e.initial
	for i := 1; i < attempt && d < e.maxWait; i++ {
		d *= 2
	}
	return min(d, e.maxWait)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
