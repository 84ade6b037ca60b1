// Package frame implements the serial framing spoken by the console
// microcontroller: a decoder for the event stream it sends and an encoder
// for the same format.
package frame

import (
	"fmt"

	"github.com/antonijn/controlpanel/internal/registration"
)

const (
	DefaultSOF0       = 0xAA
	DefaultSOF1       = 0x55
	DefaultMaxPayload = 16
)

// Opcodes sent by the console.
const (
	OpStop       byte = 0x01
	OpCoupler    byte = 0x02
	OpPiston     byte = 0x03
	OpExpression byte = 0x04
	OpSetting    byte = 0x05
	OpHeartbeat  byte = 0x7F
)

// payloadLen is the fixed payload size of every known opcode.
var payloadLen = map[byte]int{
	OpStop:       3,
	OpCoupler:    2,
	OpPiston:     3,
	OpExpression: 2,
	OpSetting:    4,
	OpHeartbeat:  0,
}

// Frame is one command with its payload.
type Frame struct {
	Cmd     byte
	Payload []byte
}

// Encode builds the on-wire representation with the default start markers:
//
//	[SOF0][SOF1][LEN][CMD][payload...][CKS]
func (f Frame) Encode() []byte {
	return f.EncodeWith(DefaultSOF0, DefaultSOF1)
}

// EncodeWith builds the on-wire representation with the given start markers.
func (f Frame) EncodeWith(sof0, sof1 byte) []byte {
	length := byte(len(f.Payload) + 1) // +1 for CMD byte
	out := make([]byte, 0, len(f.Payload)+5)
	out = append(out, sof0, sof1, length, f.Cmd)
	out = append(out, f.Payload...)
	out = append(out, Checksum(length, f.Cmd, f.Payload))
	return out
}

// Checksum is the XOR of the length, command and payload bytes.
func Checksum(length, cmd byte, payload []byte) byte {
	cks := length ^ cmd
	for _, b := range payload {
		cks ^= b
	}
	return cks
}

// EventFrame returns the frame the console sends for ev.
func EventFrame(ev registration.ControlEvent) (Frame, error) {
	switch ev.Kind {
	case registration.StopToggle:
		if err := fitsByte("stop", ev.ID, ev.Value); err != nil {
			return Frame{}, err
		}
		return Frame{Cmd: OpStop, Payload: []byte{byte(ev.Division), byte(ev.ID), byte(ev.Value)}}, nil
	case registration.CouplerToggle:
		if err := fitsByte("coupler", ev.ID, ev.Value); err != nil {
			return Frame{}, err
		}
		return Frame{Cmd: OpCoupler, Payload: []byte{byte(ev.ID), byte(ev.Value)}}, nil
	case registration.PistonPress:
		if err := fitsByte("piston", ev.ID); err != nil {
			return Frame{}, err
		}
		return Frame{Cmd: OpPiston, Payload: []byte{byte(ev.Division), byte(ev.ID), byte(ev.Mode)}}, nil
	case registration.ExpressionChange:
		if err := fitsByte("expression", ev.Value); err != nil {
			return Frame{}, err
		}
		return Frame{Cmd: OpExpression, Payload: []byte{byte(ev.Division), byte(ev.Value)}}, nil
	case registration.SettingChange:
		if ev.ID < 0 || ev.ID > 0xFFFF {
			return Frame{}, fmt.Errorf("setting id %d does not fit 16 bits", ev.ID)
		}
		if ev.Value < -0x8000 || ev.Value > 0x7FFF {
			return Frame{}, fmt.Errorf("setting value %d does not fit 16 bits", ev.Value)
		}
		v := uint16(int16(ev.Value))
		return Frame{Cmd: OpSetting, Payload: []byte{
			byte(ev.ID >> 8), byte(ev.ID), byte(v >> 8), byte(v),
		}}, nil
	}
	return Frame{}, fmt.Errorf("no frame for event kind %s", ev.Kind)
}

// Heartbeat returns the keep-alive frame the console firmware emits.
func Heartbeat() Frame { return Frame{Cmd: OpHeartbeat} }

func decodeEvent(cmd byte, p []byte) registration.ControlEvent {
	switch cmd {
	case OpStop:
		return registration.ControlEvent{
			Kind:     registration.StopToggle,
			Division: registration.DivisionID(p[0]),
			ID:       int(p[1]),
			Value:    int(p[2]),
		}
	case OpCoupler:
		return registration.ControlEvent{
			Kind:  registration.CouplerToggle,
			ID:    int(p[0]),
			Value: int(p[1]),
		}
	case OpPiston:
		return registration.ControlEvent{
			Kind:     registration.PistonPress,
			Division: registration.DivisionID(p[0]),
			ID:       int(p[1]),
			Mode:     registration.PistonMode(p[2]),
		}
	case OpExpression:
		return registration.ControlEvent{
			Kind:     registration.ExpressionChange,
			Division: registration.DivisionID(p[0]),
			Value:    int(p[1]),
		}
	default: // OpSetting
		return registration.ControlEvent{
			Kind:  registration.SettingChange,
			ID:    int(p[0])<<8 | int(p[1]),
			Value: int(int16(uint16(p[2])<<8 | uint16(p[3]))),
		}
	}
}

func fitsByte(what string, values ...int) error {
	for _, v := range values {
		if v < 0 || v > 0xFF {
			return fmt.Errorf("%s: value %d does not fit a byte", what, v)
		}
	}
	return nil
}
