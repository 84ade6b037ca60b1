package registration

import (
	"fmt"
	"sort"
)

// Target is the kind of entity a Delta changes. The order of the constants is
// the tie-break order within a division.
type Target uint8

const (
	TargetStop Target = iota
	TargetCoupler
	TargetExpression
	TargetSetting
)

func (t Target) String() string {
	switch t {
	case TargetStop:
		return "stop"
	case TargetCoupler:
		return "coupler"
	case TargetExpression:
		return "expression"
	case TargetSetting:
		return "setting"
	}
	return fmt.Sprintf("target(%d)", uint8(t))
}

// Delta is one change the voice engine has to be told about. Channel and CC
// are resolved from the layout; settings travel as SysEx and leave them zero.
type Delta struct {
	Target   Target
	Division DivisionID
	ID       int
	On       bool
	Value    int
	Channel  uint8
	CC       uint8
}

func (d Delta) String() string {
	switch d.Target {
	case TargetStop, TargetCoupler:
		state := "off"
		if d.On {
			state = "on"
		}
		return fmt.Sprintf("%s %d/%d %s", d.Target, d.Division, d.ID, state)
	}
	return fmt.Sprintf("%s %d/%d=%d", d.Target, d.Division, d.ID, d.Value)
}

// SortDeltas orders deltas by division, then target, then id, so the same
// set of changes always produces the same wire sequence.
func SortDeltas(deltas []Delta) {
	sort.SliceStable(deltas, func(i, j int) bool {
		a, b := deltas[i], deltas[j]
		if a.Division != b.Division {
			return a.Division < b.Division
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.ID < b.ID
	})
}
