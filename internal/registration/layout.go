package registration

import (
	"errors"
	"fmt"
	"sort"
)

// Stop is one voice selector of a division.
type Stop struct {
	ID   int
	Name string
	CC   uint8
}

// Division is a keyboard or the pedal, with its own MIDI channel (0-15).
type Division struct {
	ID           DivisionID
	Name         string
	Channel      uint8
	ExpressionCC uint8
	Stops        []Stop
}

// Coupler links a source division to Division, the destination whose
// channel carries its control change.
type Coupler struct {
	ID       int
	Name     string
	Division DivisionID
	Channel  uint8
	CC       uint8
}

// Layout is the fixed description of the console. It is loaded once at
// startup and never changes afterwards.
type Layout struct {
	Divisions         []Division
	Couplers          []Coupler
	GeneralPistons    int
	DivisionalPistons int
	ExpressionDefault int
	Instruments       int
}

// StopKey addresses a stop across the whole console.
type StopKey struct {
	Division DivisionID
	Stop     int
}

func (k StopKey) String() string { return fmt.Sprintf("%d/%d", k.Division, k.Stop) }

// Division returns the division with the given id.
func (l Layout) Division(id DivisionID) (Division, bool) {
	for _, d := range l.Divisions {
		if d.ID == id {
			return d, true
		}
	}
	return Division{}, false
}

// Stop returns the stop addressed by key.
func (l Layout) Stop(key StopKey) (Stop, bool) {
	d, ok := l.Division(key.Division)
	if !ok {
		return Stop{}, false
	}
	for _, s := range d.Stops {
		if s.ID == key.Stop {
			return s, true
		}
	}
	return Stop{}, false
}

// Coupler returns the coupler with the given id.
func (l Layout) Coupler(id int) (Coupler, bool) {
	for _, c := range l.Couplers {
		if c.ID == id {
			return c, true
		}
	}
	return Coupler{}, false
}

// StopKeys lists every stop of the console (or of one division when div is
// not Console) ordered by division then stop id.
func (l Layout) StopKeys(div DivisionID) []StopKey {
	var keys []StopKey
	for _, d := range l.Divisions {
		if div != Console && d.ID != div {
			continue
		}
		for _, s := range d.Stops {
			keys = append(keys, StopKey{Division: d.ID, Stop: s.ID})
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

// CouplerIDs lists every coupler id in ascending order.
func (l Layout) CouplerIDs() []int {
	ids := make([]int, 0, len(l.Couplers))
	for _, c := range l.Couplers {
		ids = append(ids, c.ID)
	}
	sort.Ints(ids)
	return ids
}

// Validate checks the identifiers of the layout for uniqueness.
func (l Layout) Validate() error {
	if len(l.Divisions) == 0 {
		return errors.New("layout has no divisions")
	}
	divs := make(map[DivisionID]bool, len(l.Divisions))
	for _, d := range l.Divisions {
		if d.ID == Console {
			return fmt.Errorf("division %q: id 0 is reserved", d.Name)
		}
		if divs[d.ID] {
			return fmt.Errorf("division %d defined twice", d.ID)
		}
		divs[d.ID] = true
		if d.Channel > 15 {
			return fmt.Errorf("division %q: channel %d out of range", d.Name, d.Channel)
		}
		stops := make(map[int]bool, len(d.Stops))
		for _, s := range d.Stops {
			if stops[s.ID] {
				return fmt.Errorf("division %q: stop %d defined twice", d.Name, s.ID)
			}
			stops[s.ID] = true
			if s.CC > 127 {
				return fmt.Errorf("stop %q: cc %d out of range", s.Name, s.CC)
			}
		}
	}
	couplers := make(map[int]bool, len(l.Couplers))
	for _, c := range l.Couplers {
		if couplers[c.ID] {
			return fmt.Errorf("coupler %d defined twice", c.ID)
		}
		couplers[c.ID] = true
		if !divs[c.Division] {
			return fmt.Errorf("coupler %q: unknown division %d", c.Name, c.Division)
		}
	}
	if l.GeneralPistons < 0 || l.DivisionalPistons < 0 {
		return errors.New("piston counts must not be negative")
	}
	if l.ExpressionDefault < 0 || l.ExpressionDefault > 127 {
		return fmt.Errorf("expression default %d out of range", l.ExpressionDefault)
	}
	return nil
}
