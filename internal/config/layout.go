package config

import (
	"fmt"
	"strings"

	"github.com/antonijn/controlpanel/internal/registration"
)

// GeneralBank is the preset bank name of the general pistons.
const GeneralBank = "general"

// Layout converts the console section, with channels made 0-based.
func (c Console) Layout() registration.Layout {
	l := registration.Layout{
		GeneralPistons:    c.GeneralPistons,
		DivisionalPistons: c.DivisionalPistons,
		ExpressionDefault: c.ExpressionDefault,
		Instruments:       c.Instruments,
	}
	for _, d := range c.Divisions {
		div := registration.Division{
			ID:           registration.DivisionID(d.ID),
			Name:         d.Name,
			Channel:      uint8(d.Channel - 1),
			ExpressionCC: uint8(d.ExpressionCC),
		}
		for _, s := range d.Stops {
			div.Stops = append(div.Stops, registration.Stop{ID: s.ID, Name: s.Name, CC: uint8(s.CC)})
		}
		l.Divisions = append(l.Divisions, div)
	}
	for _, cp := range c.Couplers {
		dest, _ := c.division(cp.Division)
		l.Couplers = append(l.Couplers, registration.Coupler{
			ID:       cp.ID,
			Name:     cp.Name,
			Division: registration.DivisionID(dest.ID),
			Channel:  uint8(dest.Channel - 1),
			CC:       uint8(cp.CC),
		})
	}
	return l
}

// ResolvePresets turns named presets into registration presets.
func (c Console) ResolvePresets() ([]registration.Preset, error) {
	presets := make([]registration.Preset, 0, len(c.Presets))
	for i, p := range c.Presets {
		out := registration.Preset{Piston: p.Piston}
		if !strings.EqualFold(p.Bank, GeneralBank) {
			d, ok := c.division(p.Bank)
			if !ok {
				return nil, fmt.Errorf("console.presets[%d]: unknown bank %q", i, p.Bank)
			}
			out.Bank = registration.DivisionID(d.ID)
		}
		for _, name := range p.Stops {
			key, err := c.stopKey(name)
			if err != nil {
				return nil, fmt.Errorf("console.presets[%d]: %w", i, err)
			}
			out.Stops = append(out.Stops, key)
		}
		for _, name := range p.Couplers {
			id, ok := c.couplerID(name)
			if !ok {
				return nil, fmt.Errorf("console.presets[%d]: unknown coupler %q", i, name)
			}
			out.Couplers = append(out.Couplers, id)
		}
		presets = append(presets, out)
	}
	return presets, nil
}

func (c Console) division(name string) (Division, bool) {
	for _, d := range c.Divisions {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return Division{}, false
}

// stopKey resolves "Division/Stop".
func (c Console) stopKey(name string) (registration.StopKey, error) {
	divName, stopName, ok := strings.Cut(name, "/")
	if !ok {
		return registration.StopKey{}, fmt.Errorf("stop %q is not of the form Division/Stop", name)
	}
	d, ok := c.division(strings.TrimSpace(divName))
	if !ok {
		return registration.StopKey{}, fmt.Errorf("stop %q: unknown division", name)
	}
	for _, s := range d.Stops {
		if strings.EqualFold(s.Name, strings.TrimSpace(stopName)) {
			return registration.StopKey{Division: registration.DivisionID(d.ID), Stop: s.ID}, nil
		}
	}
	return registration.StopKey{}, fmt.Errorf("stop %q: unknown stop", name)
}

func (c Console) couplerID(name string) (int, bool) {
	for _, cp := range c.Couplers {
		if strings.EqualFold(cp.Name, name) {
			return cp.ID, true
		}
	}
	return 0, false
}
