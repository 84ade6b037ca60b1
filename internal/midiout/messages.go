package midiout

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"

	"github.com/antonijn/controlpanel/internal/registration"
)

// sysexPrefix opens every panel setting message the voice engine accepts.
const sysexPrefix = "JOHANNUSANTONIJN"

// Message translates one delta into the MIDI message that carries it.
func Message(d registration.Delta) midi.Message {
	switch d.Target {
	case registration.TargetStop, registration.TargetCoupler:
		var value uint8
		if d.On {
			value = 127
		}
		return midi.ControlChange(d.Channel, d.CC, value)
	case registration.TargetExpression:
		return midi.ControlChange(d.Channel, d.CC, uint8(min(max(d.Value, 0), 127)))
	default:
		return SettingSysEx(registration.SettingID(d.ID), d.Value)
	}
}

// SettingSysEx builds the SysEx message for a panel setting: the prefix
// followed by the setting id and value as four lowercase hex digits each.
// Negative values are sent in two's complement.
func SettingSysEx(id registration.SettingID, value int) midi.Message {
	if value < 0 {
		value += 0x10000
	}
	data := fmt.Sprintf("%s%04x%04x", sysexPrefix, uint16(id), uint16(value))
	return midi.SysEx([]byte(data))
}
