package registration

import "sort"

// State is the logical registration of the console. Every stop, coupler,
// division and setting of the layout has an entry from construction on;
// entries are never added afterwards.
type State struct {
	Stops      map[StopKey]bool
	Couplers   map[int]bool
	Expression map[DivisionID]int
	Settings   map[SettingID]int
}

func newState(l Layout, settings []SettingSpec) State {
	s := State{
		Stops:      make(map[StopKey]bool),
		Couplers:   make(map[int]bool, len(l.Couplers)),
		Expression: make(map[DivisionID]int, len(l.Divisions)),
		Settings:   make(map[SettingID]int, len(settings)),
	}
	for _, k := range l.StopKeys(Console) {
		s.Stops[k] = false
	}
	for _, c := range l.Couplers {
		s.Couplers[c.ID] = false
	}
	for _, d := range l.Divisions {
		s.Expression[d.ID] = l.ExpressionDefault
	}
	for _, spec := range settings {
		if !spec.Command {
			s.Settings[spec.ID] = spec.Default
		}
	}
	return s
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	c := State{
		Stops:      make(map[StopKey]bool, len(s.Stops)),
		Couplers:   make(map[int]bool, len(s.Couplers)),
		Expression: make(map[DivisionID]int, len(s.Expression)),
		Settings:   make(map[SettingID]int, len(s.Settings)),
	}
	for k, v := range s.Stops {
		c.Stops[k] = v
	}
	for k, v := range s.Couplers {
		c.Couplers[k] = v
	}
	for k, v := range s.Expression {
		c.Expression[k] = v
	}
	for k, v := range s.Settings {
		c.Settings[k] = v
	}
	return c
}

// ActiveStops lists the drawn stops ordered by division then stop.
func (s State) ActiveStops() []StopKey {
	var keys []StopKey
	for k, on := range s.Stops {
		if on {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Division != keys[j].Division {
			return keys[i].Division < keys[j].Division
		}
		return keys[i].Stop < keys[j].Stop
	})
	return keys
}

// Combination is the part of a State a piston recalls: the stops of its
// scope and, for general pistons, the couplers.
type Combination struct {
	Stops    map[StopKey]bool
	Couplers map[int]bool
}

// PistonKey addresses one combination slot. Bank is Console for general
// pistons and the division id for divisional pistons.
type PistonKey struct {
	Bank   DivisionID
	Piston int
}

// Preset pre-populates a combination slot at startup.
type Preset struct {
	Bank     DivisionID
	Piston   int
	Stops    []StopKey
	Couplers []int
}
