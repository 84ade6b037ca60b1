package registration

import "fmt"

// DivisionID is the wire identifier of a keyboard or pedal division.
type DivisionID uint8

// Console addresses console-wide entities: general pistons and panel
// settings.
const Console DivisionID = 0

// EventKind identifies the hardware action carried by a ControlEvent.
type EventKind uint8

const (
	StopToggle EventKind = iota + 1
	CouplerToggle
	PistonPress
	ExpressionChange
	SettingChange
)

func (k EventKind) String() string {
	switch k {
	case StopToggle:
		return "stop"
	case CouplerToggle:
		return "coupler"
	case PistonPress:
		return "piston"
	case ExpressionChange:
		return "expression"
	case SettingChange:
		return "setting"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Toggle values carried by stop and coupler events.
const (
	Off  = 0
	On   = 1
	Flip = 2
)

// PistonMode distinguishes recalling a combination from storing one.
type PistonMode uint8

const (
	Recall PistonMode = iota
	Store
)

func (m PistonMode) String() string {
	if m == Store {
		return "store"
	}
	return "recall"
}

// ControlEvent is one decoded console action. It is a plain value and is
// never modified after decoding.
//
// For pistons Division is the bank: Console for general pistons, otherwise
// the division a divisional piston belongs to.
type ControlEvent struct {
	Kind     EventKind
	Division DivisionID
	ID       int
	Value    int
	Mode     PistonMode
}

func (e ControlEvent) String() string {
	switch e.Kind {
	case PistonPress:
		return fmt.Sprintf("%s %d/%d %s", e.Kind, e.Division, e.ID, e.Mode)
	case CouplerToggle, SettingChange:
		return fmt.Sprintf("%s %d=%d", e.Kind, e.ID, e.Value)
	case ExpressionChange:
		return fmt.Sprintf("%s %d=%d", e.Kind, e.Division, e.Value)
	}
	return fmt.Sprintf("%s %d/%d=%d", e.Kind, e.Division, e.ID, e.Value)
}
