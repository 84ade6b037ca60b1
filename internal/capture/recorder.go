// Package capture journals the MIDI traffic sent to the voice engine as a
// Standard MIDI File, so a session can be replayed or inspected later.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/antonijn/controlpanel/internal/logging"
	"github.com/antonijn/controlpanel/internal/midiout"
)

const (
	resolution = smf.MetricTicks(960)
	tempoBPM   = 120.0
)

type entry struct {
	at  time.Duration
	msg midi.Message
}

// Recorder keeps every message delivered through a wrapped sink.
type Recorder struct {
	path   string
	now    func() time.Time
	start  time.Time
	logger *slog.Logger

	mu      sync.Mutex
	entries []entry
}

// NewRecorder returns a recorder that writes to path. Offsets are measured
// from the moment it is created.
func NewRecorder(path string, logger *slog.Logger) *Recorder {
	r := &Recorder{
		path:   path,
		now:    time.Now,
		logger: logging.NewComponentLogger(logger, "capture"),
	}
	r.start = r.now()
	return r
}

// Wrap returns an opener whose sinks record each message they deliver.
// Failed sends are not recorded.
func (r *Recorder) Wrap(open midiout.Opener) midiout.Opener {
	return func(ctx context.Context) (midiout.Sink, error) {
		sink, err := open(ctx)
		if err != nil {
			return nil, err
		}
		return &recordingSink{Sink: sink, rec: r}, nil
	}
}

// Record appends msg at the current offset.
func (r *Recorder) Record(msg midi.Message) {
	at := r.now().Sub(r.start)
	r.mu.Lock()
	r.entries = append(r.entries, entry{at: at, msg: msg})
	r.mu.Unlock()
}

// Len returns the number of recorded messages.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// SMF builds a single-track file of everything recorded so far.
func (r *Recorder) SMF() (*smf.SMF, error) {
	r.mu.Lock()
	entries := append([]entry(nil), r.entries...)
	r.mu.Unlock()

	var track smf.Track
	track.Add(0, smf.MetaTrackSequenceName("control panel"))
	track.Add(0, smf.MetaTempo(tempoBPM))

	var last uint32
	for _, e := range entries {
		ticks := resolution.Ticks(tempoBPM, e.at)
		if ticks < last {
			ticks = last
		}
		track.Add(ticks-last, e.msg)
		last = ticks
	}
	track.Close(0)

	s := smf.New()
	s.TimeFormat = resolution
	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("capture: add track: %w", err)
	}
	return s, nil
}

// WriteFile writes the journal to the recorder's path.
func (r *Recorder) WriteFile() error {
	s, err := r.SMF()
	if err != nil {
		return err
	}
	if err := s.WriteFile(r.path); err != nil {
		return fmt.Errorf("capture: write %s: %w", r.path, err)
	}
	r.logger.Info("midi journal written",
		slog.String("path", r.path),
		slog.Int("messages", r.Len()),
	)
	return nil
}

type recordingSink struct {
	midiout.Sink
	rec *Recorder
}

func (s *recordingSink) Send(msg midi.Message) error {
	if err := s.Sink.Send(msg); err != nil {
		return err
	}
	s.rec.Record(msg)
	return nil
}
