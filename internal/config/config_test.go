package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antonijn/controlpanel/internal/config"
	"github.com/antonijn/controlpanel/internal/registration"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "controlpanel.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadWithoutPathUsesEmbeddedDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Device)
	assert.Equal(t, 100*time.Millisecond, cfg.Serial.ReadTimeout())
	assert.Equal(t, 0xAA, cfg.Serial.SOF0)
	assert.Equal(t, 0x55, cfg.Serial.SOF1)
	assert.Equal(t, "Control Panel", cfg.MIDI.PortName)
	assert.True(t, cfg.MIDI.Virtual)
	assert.Equal(t, 5, cfg.MIDI.SendAttempts)
	assert.Equal(t, 2*time.Second, cfg.MIDI.BackoffMax())
	assert.Equal(t, "auto", cfg.Logging.Format)
	assert.Len(t, cfg.Console.Divisions, 3)
}

func TestDefaultLayoutIsZeroBasedAndCouplersFollowDestination(t *testing.T) {
	l := config.Default().Console.Layout()

	great, ok := l.Division(1)
	require.True(t, ok)
	assert.Equal(t, "Great", great.Name)
	assert.Equal(t, uint8(0), great.Channel)

	greatToPedal, ok := l.Coupler(2)
	require.True(t, ok)
	assert.Equal(t, registration.DivisionID(3), greatToPedal.Division)
	assert.Equal(t, uint8(2), greatToPedal.Channel)
	assert.Equal(t, uint8(60), greatToPedal.CC)
}

func TestDefaultPresetsResolve(t *testing.T) {
	presets, err := config.Default().Console.ResolvePresets()
	require.NoError(t, err)
	require.Len(t, presets, 3)

	assert.Equal(t, registration.Console, presets[0].Bank)
	assert.Contains(t, presets[0].Stops, registration.StopKey{Division: 1, Stop: 2})
	assert.Equal(t, []int{2}, presets[0].Couplers)
	assert.Equal(t, registration.DivisionID(2), presets[2].Bank)
}

func TestUserFileOverridesScalarsAndKeepsSampleConsole(t *testing.T) {
	path := writeConfig(t, `
[serial]
device = "/dev/ttyUSB3"
baud = 57600

[midi]
capture_path = "/tmp/session.mid"

[logging]
level = "debug"
format = "json"
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB3", cfg.Serial.Device)
	assert.Equal(t, 57600, cfg.Serial.Baud)
	assert.Equal(t, 100, cfg.Serial.ReadTimeoutMS, "unset keys keep defaults")
	assert.Equal(t, "/tmp/session.mid", cfg.MIDI.CapturePath)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, config.Default().Console, cfg.Console)
}

func TestConsoleScalarsWithoutDivisionsKeepSampleOrgan(t *testing.T) {
	path := writeConfig(t, `
[console]
instruments = 2
general_pistons = 3
expression_default = 100
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	sample := config.Default().Console
	assert.Equal(t, 2, cfg.Console.Instruments)
	assert.Equal(t, 3, cfg.Console.GeneralPistons)
	assert.Equal(t, 100, cfg.Console.ExpressionDefault)
	assert.Equal(t, sample.DivisionalPistons, cfg.Console.DivisionalPistons, "unset scalars keep defaults")
	assert.Equal(t, sample.Divisions, cfg.Console.Divisions)
	assert.Equal(t, sample.Couplers, cfg.Console.Couplers)
	assert.Equal(t, sample.Presets, cfg.Console.Presets)
}

func TestConsolePresetsOverSampleDivisions(t *testing.T) {
	path := writeConfig(t, `
[[console.presets]]
bank = "Great"
piston = 1
stops = ["Great/Trumpet 8"]
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Console.Presets, 1)
	assert.Equal(t, "Great", cfg.Console.Presets[0].Bank)
	assert.Equal(t, config.Default().Console.Divisions, cfg.Console.Divisions)
}

func TestUserConsoleReplacesSample(t *testing.T) {
	path := writeConfig(t, `
[console]
expression_default = 90
general_pistons = 2
divisional_pistons = 0
instruments = 1

[[console.divisions]]
id = 7
name = "Choir"
channel = 5
expression_cc = 7
stops = [{ id = 1, name = "Dulciana 8", cc = 30 }]

[[console.presets]]
bank = "general"
piston = 1
stops = ["choir/dulciana 8"]
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	l := cfg.Console.Layout()
	require.Len(t, l.Divisions, 1)
	assert.Equal(t, registration.DivisionID(7), l.Divisions[0].ID)
	assert.Equal(t, uint8(4), l.Divisions[0].Channel)
	assert.Empty(t, l.Couplers)

	presets, err := cfg.Console.ResolvePresets()
	require.NoError(t, err)
	assert.Equal(t, []registration.StopKey{{Division: 7, Stop: 1}}, presets[0].Stops)
}

func TestDefaultTOMLParses(t *testing.T) {
	var cfg config.Config
	require.NoError(t, toml.Unmarshal(config.DefaultTOML(), &cfg))
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadRejectsInvalidFiles(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		want     string
	}{
		{"unknown key", "[serial]\nspeed = 9600\n", "parse config"},
		{"equal markers", "[serial]\nsof0 = 0x55\nsof1 = 0x55\n", "must differ"},
		{"marker not a byte", "[serial]\nsof0 = 300\n", "must be bytes"},
		{"bad log format", "[logging]\nformat = \"xml\"\n", "logging.format"},
		{"no target", "[midi]\nvirtual = false\n", "midi.target"},
		{"backoff inverted", "[midi]\nbackoff_initial_ms = 5000\nbackoff_max_ms = 100\n", "backoff"},
		{"channel out of range", `
[console]
instruments = 1
[[console.divisions]]
id = 1
name = "Great"
channel = 17
`, "channel must be 1-16"},
		{"cc out of range", `
[console]
instruments = 1
[[console.divisions]]
id = 1
name = "Great"
channel = 1
stops = [{ id = 1, name = "Principal 8", cc = 128 }]
`, "cc must be 0-127"},
		{"duplicate stop", `
[console]
instruments = 1
[[console.divisions]]
id = 1
name = "Great"
channel = 1
stops = [{ id = 1, name = "A", cc = 1 }, { id = 1, name = "B", cc = 2 }]
`, "defined twice"},
		{"two stops on one control change", `
[console]
instruments = 1
[[console.divisions]]
id = 1
name = "Great"
channel = 1
expression_cc = 11
stops = [{ id = 1, name = "Principal 8", cc = 20 }, { id = 2, name = "Octave 4", cc = 20 }]
`, "channel 1 cc 20 already used by stop Great/Principal 8"},
		{"stop on expression control change", `
[console]
instruments = 1
[[console.divisions]]
id = 1
name = "Great"
channel = 1
expression_cc = 20
stops = [{ id = 1, name = "Principal 8", cc = 20 }]
`, "already used by expression of Great"},
		{"coupler on a stop of its destination", `
[console]
instruments = 1
[[console.divisions]]
id = 1
name = "Great"
channel = 1
expression_cc = 11
stops = [{ id = 1, name = "Principal 8", cc = 20 }]
[[console.couplers]]
id = 1
name = "Swell to Great"
division = "Great"
cc = 20
`, "coupler Swell to Great: channel 1 cc 20"},
		{"stop id beyond a byte", `
[console]
instruments = 1
[[console.divisions]]
id = 1
name = "Great"
channel = 1
expression_cc = 11
stops = [{ id = 300, name = "Principal 8", cc = 20 }]
`, "id must be 0-255"},
		{"coupler id beyond a byte", `
[console]
instruments = 1
[[console.divisions]]
id = 1
name = "Great"
channel = 1
expression_cc = 11
[[console.couplers]]
id = 256
name = "Swell to Great"
division = "Great"
cc = 60
`, "id must be 0-255"},
		{"coupler to unknown division", `
[console]
instruments = 1
[[console.divisions]]
id = 1
name = "Great"
channel = 1
[[console.couplers]]
id = 1
name = "Swell to Great"
division = "Solo"
cc = 60
`, "unknown division"},
		{"preset with unknown stop", `
[console]
instruments = 1
general_pistons = 1
[[console.divisions]]
id = 1
name = "Great"
channel = 1
[[console.presets]]
bank = "general"
piston = 1
stops = ["Great/Tuba 8"]
`, "unknown stop"},
		{"preset piston out of range", `
[console]
instruments = 1
general_pistons = 1
[[console.divisions]]
id = 1
name = "Great"
channel = 1
stops = [{ id = 1, name = "Principal 8", cc = 20 }]
[[console.presets]]
bank = "general"
piston = 5
stops = ["Great/Principal 8"]
`, "piston"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.contents))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateAfterFlagOverride(t *testing.T) {
	cfg := config.Default()
	cfg.MIDI.PortName = " "
	assert.Error(t, cfg.Validate())
}
