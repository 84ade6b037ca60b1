package midiout

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/antonijn/controlpanel/internal/faults"
	"github.com/antonijn/controlpanel/internal/logging"
	"github.com/antonijn/controlpanel/internal/registration"
)

// ReadyWatcher listens for the voice engine announcing that it has finished
// loading an instrument.
type ReadyWatcher struct {
	ready   chan struct{}
	timeout time.Duration
	stop    func()
	logger  *slog.Logger
}

// NewReadyWatcher returns a watcher that is not yet listening; feed it with
// Listen. A zero timeout waits forever.
func NewReadyWatcher(timeout time.Duration, logger *slog.Logger) *ReadyWatcher {
	return &ReadyWatcher{
		ready:   make(chan struct{}, 1),
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "ready"),
	}
}

// Listen starts receiving from in. SysEx must be enabled for the engine's
// announcement to come through.
func (w *ReadyWatcher) Listen(in drivers.In) error {
	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		w.handle(msg)
	}, midi.UseSysEx(), midi.HandleError(func(err error) {
		w.logger.Warn("midi listener error", logging.Error(err))
	}))
	if err != nil {
		return fmt.Errorf("listen %q: %w", in.String(), err)
	}
	w.stop = stop
	return nil
}

// Reset forgets an announcement that has not been waited for yet.
func (w *ReadyWatcher) Reset() {
	select {
	case <-w.ready:
	default:
	}
}

// Wait blocks until the engine reports ready.
func (w *ReadyWatcher) Wait(ctx context.Context) error {
	w.logger.Info("waiting for voice engine")
	var timeout <-chan time.Time
	if w.timeout > 0 {
		t := time.NewTimer(w.timeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case <-w.ready:
		w.logger.Info("voice engine ready")
		return nil
	case <-timeout:
		return faults.Wrap(faults.ErrDevice, "ready", "wait",
			fmt.Sprintf("voice engine not ready after %s", w.timeout), nil)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops listening.
func (w *ReadyWatcher) Close() {
	if w.stop != nil {
		w.stop()
		w.stop = nil
	}
}

func (w *ReadyWatcher) handle(msg midi.Message) {
	if !IsReady(msg) {
		return
	}
	select {
	case w.ready <- struct{}{}:
	default:
	}
}

var readyPayload = func() []byte {
	var data []byte
	SettingSysEx(registration.EngineReady, 0).GetSysEx(&data)
	return data
}()

// IsReady reports whether msg is the engine's ready announcement.
func IsReady(msg midi.Message) bool {
	var data []byte
	if !msg.GetSysEx(&data) {
		return false
	}
	return bytes.Equal(data, readyPayload)
}
