package registration

import "sort"

// SettingID is the 16-bit panel setting number. The numbers are shared with
// the voice engine's SysEx protocol.
type SettingID uint16

const (
	SettingTranspose        SettingID = 0x01
	SettingTemperament      SettingID = 0x02
	SettingTuning           SettingID = 0x03
	SettingInstrument       SettingID = 0x04
	SettingMetronomeBPM     SettingID = 0x05
	SettingMetronomeMeasure SettingID = 0x06

	// Sent by the engine, never by the console.
	EngineReady     SettingID = 0x100
	EngineGain      SettingID = 0x101
	EnginePolyphony SettingID = 0x102

	CommandStartRecording SettingID = 0x141
	CommandStopRecording  SettingID = 0x142
	CommandStartMetronome SettingID = 0x143
	CommandStopMetronome  SettingID = 0x144
)

// SettingSpec describes one setting the console may change.
type SettingSpec struct {
	ID      SettingID
	Name    string
	Min     int
	Max     int
	Default int
	// Command settings carry no value and are forwarded on every press.
	Command bool
	// Reloaded by the engine whenever the instrument changes.
	PerInstrument bool
}

// Settings returns the settings table for a console offering the given
// number of instruments.
func Settings(instruments int) []SettingSpec {
	if instruments < 1 {
		instruments = 1
	}
	specs := []SettingSpec{
		{ID: SettingTranspose, Name: "Transpose", Min: -11, Max: 11, Default: 0},
		{ID: SettingTemperament, Name: "Temperament", Min: 0, Max: 8, Default: 1, PerInstrument: true},
		{ID: SettingInstrument, Name: "Instrument", Min: 0, Max: instruments - 1, Default: 0},
		{ID: SettingMetronomeBPM, Name: "Metron. BPM", Min: 1, Max: 500, Default: 80, PerInstrument: true},
		{ID: SettingMetronomeMeasure, Name: "Metron. div.", Min: 0, Max: 32, Default: 4, PerInstrument: true},
		{ID: CommandStartRecording, Name: "Start recording", Command: true},
		{ID: CommandStopRecording, Name: "Stop recording", Command: true},
		{ID: CommandStartMetronome, Name: "Start metronome", Command: true},
		{ID: CommandStopMetronome, Name: "Stop metronome", Command: true},
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })
	return specs
}
