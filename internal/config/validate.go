package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/antonijn/controlpanel/internal/registration"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSerial(); err != nil {
		return err
	}
	if err := c.validateMIDI(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateConsole()
}

func (c *Config) validateSerial() error {
	s := c.Serial
	if strings.TrimSpace(s.Device) == "" {
		return errors.New("serial.device must be set")
	}
	if s.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", s.Baud)
	}
	if s.ReadTimeoutMS <= 0 {
		return errors.New("serial.read_timeout_ms must be positive")
	}
	if s.AppearTimeoutMS < 0 {
		return errors.New("serial.appear_timeout_ms must not be negative")
	}
	if !isByte(s.SOF0) || !isByte(s.SOF1) {
		return errors.New("serial.sof0 and serial.sof1 must be bytes")
	}
	if s.SOF0 == s.SOF1 {
		return errors.New("serial.sof0 and serial.sof1 must differ")
	}
	if s.MaxPayload < 4 || s.MaxPayload > 254 {
		return fmt.Errorf("serial.max_payload must be between 4 and 254, got %d", s.MaxPayload)
	}
	return nil
}

func (c *Config) validateMIDI() error {
	m := c.MIDI
	if m.Virtual && strings.TrimSpace(m.PortName) == "" {
		return errors.New("midi.port_name must be set for a virtual port")
	}
	if !m.Virtual && strings.TrimSpace(m.Target) == "" {
		return errors.New("midi.target must be set when midi.virtual is false")
	}
	if m.SendAttempts < 1 {
		return errors.New("midi.send_attempts must be at least 1")
	}
	if m.BackoffInitialMS <= 0 || m.BackoffMaxMS < m.BackoffInitialMS {
		return errors.New("midi.backoff_initial_ms must be positive and not above midi.backoff_max_ms")
	}
	if m.ReadyTimeoutMS < 0 {
		return errors.New("midi.ready_timeout_ms must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Format) {
	case "", "auto", "text", "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be auto, text or json", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not a level", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateConsole() error {
	con := c.Console
	if con.Instruments < 1 {
		return errors.New("console.instruments must be at least 1")
	}
	names := make(map[string]bool, len(con.Divisions))
	targets := ccTargets{}
	for _, d := range con.Divisions {
		if d.ID < 1 || d.ID > 255 {
			return fmt.Errorf("division %q: id must be 1-255, got %d", d.Name, d.ID)
		}
		if d.Channel < 1 || d.Channel > 16 {
			return fmt.Errorf("division %q: channel must be 1-16, got %d", d.Name, d.Channel)
		}
		if !isCC(d.ExpressionCC) {
			return fmt.Errorf("division %q: expression_cc must be 0-127, got %d", d.Name, d.ExpressionCC)
		}
		key := strings.ToLower(d.Name)
		if names[key] {
			return fmt.Errorf("division name %q used twice", d.Name)
		}
		names[key] = true
		if err := targets.claim(d.Channel, d.ExpressionCC, fmt.Sprintf("expression of %s", d.Name)); err != nil {
			return err
		}
		for _, s := range d.Stops {
			if !isByte(s.ID) {
				return fmt.Errorf("stop %s/%s: id must be 0-255, got %d", d.Name, s.Name, s.ID)
			}
			if !isCC(s.CC) {
				return fmt.Errorf("stop %s/%s: cc must be 0-127, got %d", d.Name, s.Name, s.CC)
			}
			if err := targets.claim(d.Channel, s.CC, fmt.Sprintf("stop %s/%s", d.Name, s.Name)); err != nil {
				return err
			}
		}
	}
	for _, cp := range con.Couplers {
		if !isByte(cp.ID) {
			return fmt.Errorf("coupler %q: id must be 0-255, got %d", cp.Name, cp.ID)
		}
		dest, ok := con.division(cp.Division)
		if !ok {
			return fmt.Errorf("coupler %q: unknown division %q", cp.Name, cp.Division)
		}
		if !isCC(cp.CC) {
			return fmt.Errorf("coupler %q: cc must be 0-127, got %d", cp.Name, cp.CC)
		}
		if err := targets.claim(dest.Channel, cp.CC, fmt.Sprintf("coupler %s", cp.Name)); err != nil {
			return err
		}
	}
	if err := con.Layout().Validate(); err != nil {
		return fmt.Errorf("console: %w", err)
	}
	presets, err := con.ResolvePresets()
	if err != nil {
		return err
	}
	if _, err := registration.NewMachine(con.Layout(), presets, nil); err != nil {
		return fmt.Errorf("console presets: %w", err)
	}
	return nil
}

// ccTargets maps a (channel, cc) pair to what already sends on it. The engine
// tells controls apart only by that pair.
type ccTargets map[[2]int]string

func (t ccTargets) claim(channel, cc int, what string) error {
	key := [2]int{channel, cc}
	if prev, ok := t[key]; ok {
		return fmt.Errorf("%s: channel %d cc %d already used by %s", what, channel, cc, prev)
	}
	t[key] = what
	return nil
}

func isByte(v int) bool { return v >= 0 && v <= 0xFF }

func isCC(v int) bool { return v >= 0 && v <= 127 }
