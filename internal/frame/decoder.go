package frame

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"

	"github.com/antonijn/controlpanel/internal/faults"
	"github.com/antonijn/controlpanel/internal/logging"
	"github.com/antonijn/controlpanel/internal/registration"
)

// Stats counts what the decoder has seen since it was created.
type Stats struct {
	Frames         int
	Events         int
	DiscardedBytes int
	UnknownOpcodes int
}

// Decoder turns the console byte stream into control events. It buffers only
// what it needs to find the next frame boundary.
//
// A read returning (0, nil), which is what a serial port with a read timeout
// does when the console is silent, is the point where Next notices context
// cancellation.
type Decoder struct {
	r          io.Reader
	sof0, sof1 byte
	maxPayload int
	logger     *slog.Logger

	buf     []byte
	readBuf []byte
	err     error
	drained bool

	discarding int
	reason     string
	stats      Stats
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithMarkers sets the two start-of-frame bytes.
func WithMarkers(sof0, sof1 byte) Option {
	return func(d *Decoder) { d.sof0, d.sof1 = sof0, sof1 }
}

// WithMaxPayload bounds the payload length a frame header may announce.
func WithMaxPayload(n int) Option {
	return func(d *Decoder) {
		if n > 0 && n < 255 {
			d.maxPayload = n
		}
	}
}

// WithLogger sets the logger for protocol diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Decoder) { d.logger = logging.NewComponentLogger(logger, "decoder") }
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	d := &Decoder{
		r:          r,
		sof0:       DefaultSOF0,
		sof1:       DefaultSOF1,
		maxPayload: DefaultMaxPayload,
		readBuf:    make([]byte, 256),
		logger:     logging.NewComponentLogger(nil, "decoder"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Next returns the next control event. Once the stream has ended every call
// returns the same device fault; frames that were complete before the end are
// still delivered first, a trailing partial frame never is.
func (d *Decoder) Next(ctx context.Context) (registration.ControlEvent, error) {
	for {
		if ev, ok := d.parse(); ok {
			return ev, nil
		}
		if d.err != nil {
			if d.skipStalled() {
				continue
			}
			d.drain()
			return registration.ControlEvent{}, d.err
		}
		if err := ctx.Err(); err != nil {
			return registration.ControlEvent{}, err
		}

		n, err := d.r.Read(d.readBuf)
		if n > 0 {
			d.buf = append(d.buf, d.readBuf[:n]...)
		}
		if err != nil {
			msg := "serial read failed"
			if errors.Is(err, io.EOF) {
				msg = "serial stream closed"
			}
			d.err = faults.Wrap(faults.ErrDevice, "decoder", "read", msg, err)
		}
		if n == 0 && err == nil {
			d.skipStalled()
		}
	}
}

// Events ranges over Next until the stream ends or ctx is cancelled. The
// final pair carries the terminating error. Ranging again resumes where the
// previous loop stopped.
func (d *Decoder) Events(ctx context.Context) iter.Seq2[registration.ControlEvent, error] {
	return func(yield func(registration.ControlEvent, error) bool) {
		for {
			ev, err := d.Next(ctx)
			if err != nil {
				yield(ev, err)
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// Reset drops buffered bytes, including a partial frame. It is used after the
// serial input has been flushed, so the dropped bytes are not reported.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.discarding = 0
	d.reason = ""
}

// Stats returns a copy of the decoder counters.
func (d *Decoder) Stats() Stats { return d.stats }

// parse consumes buffered bytes until it has a complete event or needs more
// input.
func (d *Decoder) parse() (registration.ControlEvent, bool) {
	for {
		i := bytes.Index(d.buf, []byte{d.sof0, d.sof1})
		if i < 0 {
			keep := 0
			if n := len(d.buf); n > 0 && d.buf[n-1] == d.sof0 {
				keep = 1
			}
			d.discard(len(d.buf)-keep, "no start marker")
			return registration.ControlEvent{}, false
		}
		if i > 0 {
			d.discard(i, "no start marker")
		}
		if len(d.buf) < 3 {
			return registration.ControlEvent{}, false
		}

		length := int(d.buf[2])
		if length < 1 || length-1 > d.maxPayload {
			d.discard(1, "bad frame length")
			continue
		}
		total := 3 + length + 1
		if len(d.buf) < total {
			return registration.ControlEvent{}, false
		}

		cmd := d.buf[3]
		payload := d.buf[4 : 3+length]
		if Checksum(byte(length), cmd, payload) != d.buf[3+length] {
			d.discard(1, "checksum mismatch")
			continue
		}
		want, known := payloadLen[cmd]
		if known && want != len(payload) {
			d.discard(1, "payload length does not match opcode")
			continue
		}

		d.flushDiscard()
		d.stats.Frames++
		var ev registration.ControlEvent
		if known && cmd != OpHeartbeat {
			ev = decodeEvent(cmd, payload)
		}
		d.buf = d.buf[total:]

		switch {
		case !known:
			d.stats.UnknownOpcodes++
			logging.Fault(d.logger, "dropping frame with unknown opcode",
				faults.Wrap(faults.ErrProtocol, "decoder", "parse", "unknown opcode", nil),
				slog.Int("opcode", int(cmd)),
				slog.Int("payload_bytes", len(payload)),
			)
		case cmd == OpHeartbeat:
			d.logger.Debug("console heartbeat")
		default:
			d.stats.Events++
			d.logger.Debug("event decoded", slog.String("event", ev.String()))
			return ev, true
		}
	}
}

// skipStalled drops the start marker of a pending partial frame when the
// input has gone quiet and a complete, valid frame already sits behind it.
// Line noise that happens to look like a header would otherwise hold that
// frame back until the console sends more bytes.
func (d *Decoder) skipStalled() bool {
	if len(d.buf) < 2 || d.buf[0] != d.sof0 || d.buf[1] != d.sof1 {
		return false
	}
	marker := []byte{d.sof0, d.sof1}
	for off := 1; off < len(d.buf); {
		j := bytes.Index(d.buf[off:], marker)
		if j < 0 {
			return false
		}
		if d.validAt(off + j) {
			d.discard(1, "stalled header")
			return true
		}
		off += j + 1
	}
	return false
}

// validAt reports whether a complete frame with a good checksum starts at i.
func (d *Decoder) validAt(i int) bool {
	rest := d.buf[i:]
	if len(rest) < 3 {
		return false
	}
	length := int(rest[2])
	if length < 1 || length-1 > d.maxPayload || len(rest) < 3+length+1 {
		return false
	}
	return Checksum(byte(length), rest[3], rest[4:3+length]) == rest[3+length]
}

func (d *Decoder) discard(n int, reason string) {
	if n <= 0 {
		return
	}
	d.buf = d.buf[n:]
	d.discarding += n
	d.stats.DiscardedBytes += n
	if d.reason == "" {
		d.reason = reason
	}
}

// flushDiscard reports one protocol fault per run of discarded bytes.
func (d *Decoder) flushDiscard() {
	if d.discarding == 0 {
		return
	}
	logging.Fault(d.logger, "console sent malformed bytes; resynchronized",
		faults.Wrap(faults.ErrProtocol, "decoder", "resync", d.reason, nil),
		slog.Int("discarded_bytes", d.discarding),
	)
	d.discarding = 0
	d.reason = ""
}

// drain reports what is left in the buffer once the stream has ended.
func (d *Decoder) drain() {
	if d.drained {
		return
	}
	d.drained = true
	if n := len(d.buf); n > 0 {
		d.discard(n, "truncated frame at end of stream")
	}
	d.flushDiscard()
	d.buf = nil
}
