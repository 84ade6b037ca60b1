package main

import (
	"strings"
	"sync"

	"github.com/antonijn/controlpanel/internal/config"
)

// commandContext carries the persistent flags and the configuration they
// resolve to.
type commandContext struct {
	configFlag string
	ttyFlag    string
	midiName   string
	debug      bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

// ensureConfig loads the configuration once and applies flag overrides.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.configErr = &configError{err: err}
			return
		}
		if tty := strings.TrimSpace(c.ttyFlag); tty != "" {
			cfg.Serial.Device = tty
		}
		if name := strings.TrimSpace(c.midiName); name != "" {
			cfg.MIDI.PortName = name
		}
		if c.debug {
			cfg.Logging.Level = "debug"
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = &configError{err: err}
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}
