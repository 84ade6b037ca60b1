// Package registration owns the logical state of the organ console and turns
// decoded console events into the MIDI changes the voice engine needs.
//
// A Machine is not safe for concurrent use. The bridge applies events one at
// a time in arrival order, which is what keeps replay deterministic.
package registration

import (
	"fmt"
	"log/slog"

	"github.com/antonijn/controlpanel/internal/faults"
	"github.com/antonijn/controlpanel/internal/logging"
)

// Machine is the registration state machine.
type Machine struct {
	layout   Layout
	settings map[SettingID]SettingSpec
	state    State
	memory   map[PistonKey]Combination
	logger   *slog.Logger
}

// NewMachine builds a machine in its initial state: every stop and coupler
// off, expression pedals at the layout default, settings at their defaults
// and combination memory filled from presets.
func NewMachine(layout Layout, presets []Preset, logger *slog.Logger) (*Machine, error) {
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	specs := Settings(layout.Instruments)
	m := &Machine{
		layout:   layout,
		settings: make(map[SettingID]SettingSpec, len(specs)),
		state:    newState(layout, specs),
		memory:   make(map[PistonKey]Combination),
		logger:   logging.NewComponentLogger(logger, "registration"),
	}
	for _, spec := range specs {
		m.settings[spec.ID] = spec
	}
	for _, p := range presets {
		if err := m.loadPreset(p); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Layout returns the console layout the machine was built with.
func (m *Machine) Layout() Layout { return m.layout }

// Snapshot returns a copy of the current registration.
func (m *Machine) Snapshot() State { return m.state.Clone() }

// Combination returns a copy of the combination stored in a slot.
func (m *Machine) Combination(bank DivisionID, piston int) (Combination, bool) {
	c, ok := m.memory[PistonKey{Bank: bank, Piston: piston}]
	if !ok {
		return Combination{}, false
	}
	return cloneCombination(c), true
}

// Apply applies one event and returns the changes it caused, sorted in wire
// order. A rejected event returns a validation fault and leaves the state
// untouched.
func (m *Machine) Apply(ev ControlEvent) ([]Delta, error) {
	var (
		deltas []Delta
		err    error
	)
	switch ev.Kind {
	case StopToggle:
		deltas, err = m.applyStop(ev)
	case CouplerToggle:
		deltas, err = m.applyCoupler(ev)
	case PistonPress:
		deltas, err = m.applyPiston(ev)
	case ExpressionChange:
		deltas, err = m.applyExpression(ev)
	case SettingChange:
		deltas, err = m.applySetting(ev)
	default:
		err = invalid("apply", "unsupported event kind %s", ev.Kind)
	}
	if err != nil {
		return nil, err
	}
	SortDeltas(deltas)
	return deltas, nil
}

func (m *Machine) applyStop(ev ControlEvent) ([]Delta, error) {
	key := StopKey{Division: ev.Division, Stop: ev.ID}
	stop, ok := m.layout.Stop(key)
	if !ok {
		return nil, invalid("stop", "unknown stop %s", key)
	}
	cur := m.state.Stops[key]
	next, err := toggle(cur, ev.Value)
	if err != nil {
		return nil, err
	}
	if next == cur {
		return nil, nil
	}
	m.state.Stops[key] = next
	div, _ := m.layout.Division(key.Division)
	return []Delta{m.stopDelta(div, stop, next)}, nil
}

func (m *Machine) applyCoupler(ev ControlEvent) ([]Delta, error) {
	c, ok := m.layout.Coupler(ev.ID)
	if !ok {
		return nil, invalid("coupler", "unknown coupler %d", ev.ID)
	}
	cur := m.state.Couplers[c.ID]
	next, err := toggle(cur, ev.Value)
	if err != nil {
		return nil, err
	}
	if next == cur {
		return nil, nil
	}
	m.state.Couplers[c.ID] = next
	return []Delta{couplerDelta(c, next)}, nil
}

func (m *Machine) applyPiston(ev ControlEvent) ([]Delta, error) {
	key := PistonKey{Bank: ev.Division, Piston: ev.ID}
	if err := m.checkPiston(key); err != nil {
		return nil, err
	}
	if ev.Mode != Recall && ev.Mode != Store {
		return nil, invalid("piston", "unknown piston mode %d", ev.Mode)
	}

	if ev.Mode == Store {
		m.memory[key] = m.capture(key.Bank)
		m.logger.Info("combination stored",
			slog.Int("bank", int(key.Bank)),
			slog.Int("piston", key.Piston),
			slog.Int("active_stops", len(m.state.ActiveStops())),
		)
		return nil, nil
	}

	// Build the whole next state first and swap it in, so a recall is never
	// observable half applied.
	comb := m.memory[key]
	next := m.state.Clone()
	for _, k := range m.layout.StopKeys(key.Bank) {
		next.Stops[k] = comb.Stops[k]
	}
	if key.Bank == Console {
		for _, id := range m.layout.CouplerIDs() {
			next.Couplers[id] = comb.Couplers[id]
		}
	}
	deltas := m.diff(m.state, next, key.Bank)
	m.state = next

	m.logger.Debug("combination recalled",
		slog.Int("bank", int(key.Bank)),
		slog.Int("piston", key.Piston),
		slog.Int("changes", len(deltas)),
	)
	return deltas, nil
}

func (m *Machine) applyExpression(ev ControlEvent) ([]Delta, error) {
	div, ok := m.layout.Division(ev.Division)
	if !ok {
		return nil, invalid("expression", "unknown division %d", ev.Division)
	}
	value := m.clamp("expression", ev.Value, 0, 127, slog.Int("division", int(div.ID)))
	if m.state.Expression[div.ID] == value {
		return nil, nil
	}
	m.state.Expression[div.ID] = value
	return []Delta{{
		Target:   TargetExpression,
		Division: div.ID,
		ID:       int(div.ID),
		Value:    value,
		Channel:  div.Channel,
		CC:       div.ExpressionCC,
	}}, nil
}

func (m *Machine) applySetting(ev ControlEvent) ([]Delta, error) {
	id := SettingID(ev.ID)
	spec, ok := m.settings[id]
	if !ok {
		return nil, invalid("setting", "unknown setting %#04x", ev.ID)
	}
	if spec.Command {
		return []Delta{{Target: TargetSetting, Division: Console, ID: int(id)}}, nil
	}

	value := m.clamp("setting", ev.Value, spec.Min, spec.Max, slog.String("setting", spec.Name))
	if m.state.Settings[id] == value {
		return nil, nil
	}
	m.state.Settings[id] = value

	if id == SettingInstrument {
		// The engine reloads these with the instrument; mirror that here
		// without telling it.
		for _, s := range m.settings {
			if s.PerInstrument {
				m.state.Settings[s.ID] = s.Default
			}
		}
	}
	return []Delta{{Target: TargetSetting, Division: Console, ID: int(id), Value: value}}, nil
}

func (m *Machine) checkPiston(key PistonKey) error {
	count := m.layout.GeneralPistons
	if key.Bank != Console {
		if _, ok := m.layout.Division(key.Bank); !ok {
			return invalid("piston", "unknown piston bank %d", key.Bank)
		}
		count = m.layout.DivisionalPistons
	}
	if key.Piston < 1 || key.Piston > count {
		return invalid("piston", "unknown piston %d/%d", key.Bank, key.Piston)
	}
	return nil
}

// capture snapshots the part of the current state a piston in bank covers.
func (m *Machine) capture(bank DivisionID) Combination {
	c := Combination{Stops: make(map[StopKey]bool)}
	for _, k := range m.layout.StopKeys(bank) {
		if m.state.Stops[k] {
			c.Stops[k] = true
		}
	}
	if bank == Console {
		c.Couplers = make(map[int]bool)
		for id, on := range m.state.Couplers {
			if on {
				c.Couplers[id] = true
			}
		}
	}
	return c
}

func (m *Machine) diff(prev, next State, bank DivisionID) []Delta {
	var deltas []Delta
	for _, k := range m.layout.StopKeys(bank) {
		if prev.Stops[k] == next.Stops[k] {
			continue
		}
		div, _ := m.layout.Division(k.Division)
		stop, _ := m.layout.Stop(k)
		deltas = append(deltas, m.stopDelta(div, stop, next.Stops[k]))
	}
	if bank == Console {
		for _, id := range m.layout.CouplerIDs() {
			if prev.Couplers[id] == next.Couplers[id] {
				continue
			}
			c, _ := m.layout.Coupler(id)
			deltas = append(deltas, couplerDelta(c, next.Couplers[id]))
		}
	}
	return deltas
}

func (m *Machine) loadPreset(p Preset) error {
	key := PistonKey{Bank: p.Bank, Piston: p.Piston}
	if err := m.checkPiston(key); err != nil {
		return fmt.Errorf("preset %d/%d: %w", p.Bank, p.Piston, err)
	}
	c := Combination{Stops: make(map[StopKey]bool, len(p.Stops))}
	for _, k := range p.Stops {
		if _, ok := m.layout.Stop(k); !ok {
			return fmt.Errorf("preset %d/%d: unknown stop %s", p.Bank, p.Piston, k)
		}
		if p.Bank != Console && k.Division != p.Bank {
			return fmt.Errorf("preset %d/%d: stop %s outside the piston's division", p.Bank, p.Piston, k)
		}
		c.Stops[k] = true
	}
	if len(p.Couplers) > 0 {
		if p.Bank != Console {
			return fmt.Errorf("preset %d/%d: divisional pistons cannot hold couplers", p.Bank, p.Piston)
		}
		c.Couplers = make(map[int]bool, len(p.Couplers))
		for _, id := range p.Couplers {
			if _, ok := m.layout.Coupler(id); !ok {
				return fmt.Errorf("preset %d/%d: unknown coupler %d", p.Bank, p.Piston, id)
			}
			c.Couplers[id] = true
		}
	}
	m.memory[key] = c
	return nil
}

func (m *Machine) stopDelta(div Division, stop Stop, on bool) Delta {
	return Delta{
		Target:   TargetStop,
		Division: div.ID,
		ID:       stop.ID,
		On:       on,
		Channel:  div.Channel,
		CC:       stop.CC,
	}
}

func couplerDelta(c Coupler, on bool) Delta {
	return Delta{
		Target:   TargetCoupler,
		Division: c.Division,
		ID:       c.ID,
		On:       on,
		Channel:  c.Channel,
		CC:       c.CC,
	}
}

// clamp limits v to [lo, hi], logging a validation diagnostic when the
// console sent something outside the range.
func (m *Machine) clamp(what string, v, lo, hi int, attrs ...any) int {
	clamped := min(max(v, lo), hi)
	if clamped != v {
		args := append([]any{slog.Int("value", v), slog.Int("clamped", clamped)}, attrs...)
		logging.Fault(m.logger, what+" value out of range", invalid(what, "value %d outside [%d,%d]", v, lo, hi), args...)
	}
	return clamped
}

func toggle(cur bool, value int) (bool, error) {
	switch value {
	case Off:
		return false, nil
	case On:
		return true, nil
	case Flip:
		return !cur, nil
	}
	return cur, invalid("toggle", "toggle value %d is not off, on or flip", value)
}

func cloneCombination(c Combination) Combination {
	out := Combination{Stops: make(map[StopKey]bool, len(c.Stops))}
	for k, v := range c.Stops {
		out.Stops[k] = v
	}
	if c.Couplers != nil {
		out.Couplers = make(map[int]bool, len(c.Couplers))
		for k, v := range c.Couplers {
			out.Couplers[k] = v
		}
	}
	return out
}

func invalid(op, format string, args ...any) error {
	return faults.Wrap(faults.ErrValidation, "registration", op, fmt.Sprintf(format, args...), nil)
}
