package bridge

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"

	"github.com/antonijn/controlpanel/internal/faults"
	"github.com/antonijn/controlpanel/internal/frame"
	"github.com/antonijn/controlpanel/internal/midiout"
	"github.com/antonijn/controlpanel/internal/registration"
)

const (
	great registration.DivisionID = 1
	swell registration.DivisionID = 2
)

func testLayout() registration.Layout {
	return registration.Layout{
		Divisions: []registration.Division{
			{ID: great, Name: "Great", Channel: 0, ExpressionCC: 11, Stops: []registration.Stop{
				{ID: 1, Name: "Principal 8", CC: 20},
				{ID: 2, Name: "Octave 4", CC: 21},
			}},
			{ID: swell, Name: "Swell", Channel: 1, ExpressionCC: 11, Stops: []registration.Stop{
				{ID: 1, Name: "Gedackt 8", CC: 20},
			}},
		},
		Couplers: []registration.Coupler{
			{ID: 1, Name: "Swell to Great", Division: great, Channel: 0, CC: 60},
		},
		GeneralPistons:    2,
		DivisionalPistons: 2,
		ExpressionDefault: 100,
		Instruments:       3,
	}
}

type recordingSink struct {
	fail error
	sent []midi.Message
}

func (s *recordingSink) Send(msg midi.Message) error {
	if s.fail != nil {
		return s.fail
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func stream(t *testing.T, events ...registration.ControlEvent) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, ev := range events {
		f, err := frame.EventFrame(ev)
		require.NoError(t, err)
		buf.Write(f.Encode())
	}
	return buf.Bytes()
}

func stopOn(div registration.DivisionID, id int) registration.ControlEvent {
	return registration.ControlEvent{Kind: registration.StopToggle, Division: div, ID: id, Value: registration.On}
}

type harness struct {
	bridge *Bridge
	sink   *recordingSink
}

func newHarness(t *testing.T, input []byte, opts Options) *harness {
	t.Helper()
	m, err := registration.NewMachine(testLayout(), nil, nil)
	require.NoError(t, err)
	sink := &recordingSink{}
	em := midiout.NewEmitter(func(context.Context) (midiout.Sink, error) { return sink, nil },
		midiout.WithRetry(1, time.Millisecond, time.Millisecond))
	dec := frame.NewDecoder(bytes.NewReader(input))
	return &harness{bridge: New(dec, m, em, opts), sink: sink}
}

func TestStopPressReachesEngine(t *testing.T) {
	h := newHarness(t, stream(t, stopOn(great, 1)), Options{})

	err := h.bridge.Run(context.Background())

	assert.ErrorIs(t, err, faults.ErrDevice, "end of stream is a device fault")
	assert.Equal(t, []midi.Message{midi.ControlChange(0, 20, 127)}, h.sink.sent)
}

func TestValidationFaultsDoNotStopTheLoop(t *testing.T) {
	input := stream(t,
		stopOn(great, 9),
		stopOn(swell, 1),
		registration.ControlEvent{Kind: registration.PistonPress, Division: 0, ID: 7},
		registration.ControlEvent{Kind: registration.CouplerToggle, ID: 1, Value: registration.Flip},
	)
	h := newHarness(t, input, Options{})

	err := h.bridge.Run(context.Background())

	assert.ErrorIs(t, err, faults.ErrDevice)
	assert.Equal(t, []midi.Message{
		midi.ControlChange(1, 20, 127),
		midi.ControlChange(0, 60, 127),
	}, h.sink.sent)
	assert.Equal(t, Stats{Events: 4, Rejected: 2, Deltas: 2}, h.bridge.Stats())
}

func TestGarbageBetweenFramesIsSkipped(t *testing.T) {
	var input []byte
	input = append(input, 0x00, 0xAA, 0x13, 0x55)
	input = append(input, stream(t, stopOn(great, 1))...)
	input = append(input, 0xAA, 0x55, 0x04, 0x01)
	input = append(input, stream(t, stopOn(great, 2))...)
	h := newHarness(t, input, Options{})

	_ = h.bridge.Run(context.Background())

	assert.Equal(t, []midi.Message{
		midi.ControlChange(0, 20, 127),
		midi.ControlChange(0, 21, 127),
	}, h.sink.sent)
}

func TestGeneralRecallSendsOrderedBatch(t *testing.T) {
	store := registration.ControlEvent{Kind: registration.PistonPress, Division: 0, ID: 1, Mode: registration.Store}
	recall := registration.ControlEvent{Kind: registration.PistonPress, Division: 0, ID: 1, Mode: registration.Recall}
	input := stream(t,
		stopOn(swell, 1), stopOn(great, 2),
		store,
		registration.ControlEvent{Kind: registration.StopToggle, Division: swell, ID: 1, Value: registration.Off},
		registration.ControlEvent{Kind: registration.StopToggle, Division: great, ID: 2, Value: registration.Off},
		stopOn(great, 1),
		recall,
	)
	h := newHarness(t, input, Options{})

	_ = h.bridge.Run(context.Background())

	require.Len(t, h.sink.sent, 8)
	assert.Equal(t, []midi.Message{
		midi.ControlChange(0, 20, 0),
		midi.ControlChange(0, 21, 127),
		midi.ControlChange(1, 20, 127),
	}, h.sink.sent[5:])
}

func TestSinkFailureEndsRun(t *testing.T) {
	h := newHarness(t, stream(t, stopOn(great, 1), stopOn(great, 2)), Options{})
	h.sink.fail = errors.New("ALSA: broken pipe")

	err := h.bridge.Run(context.Background())

	assert.ErrorIs(t, err, faults.ErrDevice)
	assert.Equal(t, 1, h.bridge.Stats().Events, "nothing is read after a device fault")
}

// timeoutReader hands out its data then behaves like an idle serial port,
// cancelling the run on its first empty read.
type timeoutReader struct {
	data   []byte
	cancel context.CancelFunc
}

func (r *timeoutReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		r.cancel()
		return 0, nil
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestCancellationStopsCleanly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m, err := registration.NewMachine(testLayout(), nil, nil)
	require.NoError(t, err)
	sink := &recordingSink{}
	em := midiout.NewEmitter(func(context.Context) (midiout.Sink, error) { return sink, nil })
	dec := frame.NewDecoder(&timeoutReader{data: stream(t, stopOn(great, 1)), cancel: cancel})

	err = New(dec, m, em, Options{}).Run(ctx)

	assert.NoError(t, err)
	assert.Len(t, sink.sent, 1)
}

type fakeReady struct {
	resets int
	waits  int
	err    error
}

func (r *fakeReady) Reset() { r.resets++ }

func (r *fakeReady) Wait(context.Context) error {
	r.waits++
	return r.err
}

func TestInstrumentChangeWaitsForEngineAndFlushes(t *testing.T) {
	ready := &fakeReady{}
	flushes := 0
	input := stream(t,
		registration.ControlEvent{Kind: registration.SettingChange, ID: int(registration.SettingInstrument), Value: 2},
		registration.ControlEvent{Kind: registration.SettingChange, ID: int(registration.SettingTranspose), Value: 1},
	)
	h := newHarness(t, input, Options{Ready: ready, Flush: func() error { flushes++; return nil }})

	_ = h.bridge.Run(context.Background())

	assert.Equal(t, 1, ready.resets)
	assert.Equal(t, 2, ready.waits, "startup and instrument change")
	assert.Equal(t, 2, flushes)
	assert.Equal(t, []midi.Message{
		midiout.SettingSysEx(registration.SettingInstrument, 2),
		midiout.SettingSysEx(registration.SettingTranspose, 1),
	}, h.sink.sent)
}

func TestEngineNeverReadyIsFatal(t *testing.T) {
	ready := &fakeReady{err: faults.Wrap(faults.ErrDevice, "ready", "wait", "timed out", nil)}
	h := newHarness(t, stream(t, stopOn(great, 1)), Options{Ready: ready})

	err := h.bridge.Run(context.Background())

	assert.ErrorIs(t, err, faults.ErrDevice)
	assert.Empty(t, h.sink.sent)
}
