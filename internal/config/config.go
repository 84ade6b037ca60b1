package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed default_config.toml
var defaultConfig []byte

// Serial configures the console link.
type Serial struct {
	Device          string `toml:"device"`
	Baud            int    `toml:"baud"`
	ReadTimeoutMS   int    `toml:"read_timeout_ms"`
	AppearTimeoutMS int    `toml:"appear_timeout_ms"`
	LockDir         string `toml:"lock_dir"`
	SOF0            int    `toml:"sof0"`
	SOF1            int    `toml:"sof1"`
	MaxPayload      int    `toml:"max_payload"`
}

// MIDI configures the connection to the voice engine.
type MIDI struct {
	PortName         string `toml:"port_name"`
	Virtual          bool   `toml:"virtual"`
	Target           string `toml:"target"`
	SendAttempts     int    `toml:"send_attempts"`
	BackoffInitialMS int    `toml:"backoff_initial_ms"`
	BackoffMaxMS     int    `toml:"backoff_max_ms"`
	WaitReady        bool   `toml:"wait_ready"`
	ReadyTimeoutMS   int    `toml:"ready_timeout_ms"`
	CapturePath      string `toml:"capture_path"`
}

// Logging configures log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Stop is one stop of a division.
type Stop struct {
	ID   int    `toml:"id"`
	Name string `toml:"name"`
	CC   int    `toml:"cc"`
}

// Division is a manual or the pedal. Channel is 1-16.
type Division struct {
	ID           int    `toml:"id"`
	Name         string `toml:"name"`
	Channel      int    `toml:"channel"`
	ExpressionCC int    `toml:"expression_cc"`
	Stops        []Stop `toml:"stops"`
}

// Coupler names its destination division.
type Coupler struct {
	ID       int    `toml:"id"`
	Name     string `toml:"name"`
	Division string `toml:"division"`
	CC       int    `toml:"cc"`
}

// Preset preloads a piston. Bank is "general" or a division name.
type Preset struct {
	Bank     string   `toml:"bank"`
	Piston   int      `toml:"piston"`
	Stops    []string `toml:"stops"`
	Couplers []string `toml:"couplers"`
}

// Console describes the organ.
type Console struct {
	ExpressionDefault int        `toml:"expression_default"`
	GeneralPistons    int        `toml:"general_pistons"`
	DivisionalPistons int        `toml:"divisional_pistons"`
	Instruments       int        `toml:"instruments"`
	Divisions         []Division `toml:"divisions"`
	Couplers          []Coupler  `toml:"couplers"`
	Presets           []Preset   `toml:"presets"`
}

// Config is the complete configuration.
type Config struct {
	Serial  Serial  `toml:"serial"`
	MIDI    MIDI    `toml:"midi"`
	Logging Logging `toml:"logging"`
	Console Console `toml:"console"`
}

// Default returns the embedded configuration.
func Default() Config {
	cfg, err := decode(defaultConfig, builtin())
	if err != nil {
		panic(fmt.Sprintf("config: embedded default: %v", err))
	}
	return cfg
}

// DefaultTOML returns the embedded configuration file.
func DefaultTOML() []byte {
	return bytes.Clone(defaultConfig)
}

// Load reads path over the defaults and validates the result. An empty path
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		sample := cfg.Console
		base := cfg
		base.Console.Divisions = nil
		base.Console.Couplers = nil
		base.Console.Presets = nil
		cfg, err = decode(data, base)
		if err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg.Console.useSample(sample)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// useSample fills in the sample organ when the file describes no divisions.
// Scalars from the file are kept, and so are couplers or presets it gives
// for the sample divisions.
func (c *Console) useSample(sample Console) {
	if len(c.Divisions) > 0 {
		return
	}
	c.Divisions = sample.Divisions
	if len(c.Couplers) == 0 {
		c.Couplers = sample.Couplers
	}
	if len(c.Presets) == 0 {
		c.Presets = sample.Presets
	}
}

func decode(data []byte, into Config) (Config, error) {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&into); err != nil {
		return Config{}, err
	}
	return into, nil
}

// builtin holds the values used when a file leaves a key out.
func builtin() Config {
	return Config{
		Serial: Serial{
			Device:        defaultDevice,
			Baud:          defaultBaud,
			ReadTimeoutMS: defaultReadTimeoutMS,
			SOF0:          defaultSOF0,
			SOF1:          defaultSOF1,
			MaxPayload:    defaultMaxPayload,
		},
		MIDI: MIDI{
			PortName:         defaultPortName,
			Virtual:          true,
			SendAttempts:     defaultSendAttempts,
			BackoffInitialMS: defaultBackoffInitialMS,
			BackoffMaxMS:     defaultBackoffMaxMS,
			ReadyTimeoutMS:   defaultReadyTimeoutMS,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

// ReadTimeout is the serial read timeout.
func (s Serial) ReadTimeout() time.Duration { return ms(s.ReadTimeoutMS) }

// AppearTimeout is how long to wait for the device node.
func (s Serial) AppearTimeout() time.Duration { return ms(s.AppearTimeoutMS) }

func (m MIDI) BackoffInitial() time.Duration { return ms(m.BackoffInitialMS) }
func (m MIDI) BackoffMax() time.Duration     { return ms(m.BackoffMaxMS) }
func (m MIDI) ReadyTimeout() time.Duration   { return ms(m.ReadyTimeoutMS) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
