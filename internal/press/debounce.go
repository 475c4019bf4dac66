// Package press detects pressed keys by differencing a frame against the
// reference keyboard and stabilises the raw detections with a per-key
// debounce state machine.
package press

// Phase is the debounce phase of a single key.
type Phase int

const (
	Unpressed Phase = iota
	PendingPress
	Pressed
	PendingRelease
)

var phaseNames = [...]string{"unpressed", "pending_press", "pressed", "pending_release"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// State is the debounce state of one key. Remaining counts the further
// frames of evidence needed before a pending phase completes.
type State struct {
	Phase     Phase
	Remaining int
}

// Down reports whether the key counts as pressed in this state.
func (s State) Down() bool {
	return s.Phase == Pressed || s.Phase == PendingRelease
}

// Step advances s by one frame. The frame that starts a pending phase counts
// as the first frame of evidence, so a stickiness of n flips the state on the
// n-th consecutive frame. A stickiness of 1 or less flips immediately.
func Step(s State, active bool, stickiness int) State {
	switch s.Phase {
	case Unpressed:
		if !active {
			return State{Phase: Unpressed}
		}
		if stickiness <= 1 {
			return State{Phase: Pressed}
		}
		return State{Phase: PendingPress, Remaining: stickiness - 1}

	case PendingPress:
		if !active {
			return State{Phase: Unpressed}
		}
		if s.Remaining <= 1 {
			return State{Phase: Pressed}
		}
		return State{Phase: PendingPress, Remaining: s.Remaining - 1}

	case Pressed:
		if active {
			return State{Phase: Pressed}
		}
		if stickiness <= 1 {
			return State{Phase: Unpressed}
		}
		return State{Phase: PendingRelease, Remaining: stickiness - 1}

	case PendingRelease:
		if active {
			return State{Phase: Pressed}
		}
		if s.Remaining <= 1 {
			return State{Phase: Unpressed}
		}
		return State{Phase: PendingRelease, Remaining: s.Remaining - 1}
	}
	return State{Phase: Unpressed}
}

// Debouncer applies Step to every key it has seen. Keys in the Unpressed
// phase are not stored. A Debouncer is not safe for concurrent use and must
// be fed frames in temporal order.
type Debouncer[K comparable] struct {
	stickiness int
	states     map[K]State
	// tracked holds the keys of states in the order they were first seen.
	tracked []K
}

// NewDebouncer creates a Debouncer with the given stickiness in frames.
func NewDebouncer[K comparable](stickiness int) *Debouncer[K] {
	return &Debouncer[K]{
		stickiness: stickiness,
		states:     make(map[K]State),
	}
}

// Transition records a key entering or leaving the pressed set.
type Transition[K comparable] struct {
	Key     K
	Pressed bool
}

// Update feeds one frame of raw detections and returns the keys whose
// pressed state changed. Active keys come first in the order given,
// followed by inactive keys in the order they were first seen.
func (d *Debouncer[K]) Update(active []K) []Transition[K] {
	isActive := make(map[K]bool, len(active))
	var order, fresh []K
	for _, k := range active {
		if isActive[k] {
			continue
		}
		isActive[k] = true
		order = append(order, k)
		if _, ok := d.states[k]; !ok {
			fresh = append(fresh, k)
		}
	}
	for _, k := range d.tracked {
		if !isActive[k] {
			order = append(order, k)
		}
	}

	var changes []Transition[K]
	for _, k := range order {
		prev := d.states[k]
		next := Step(prev, isActive[k], d.stickiness)
		if next.Phase == Unpressed {
			delete(d.states, k)
		} else {
			d.states[k] = next
		}
		if prev.Down() != next.Down() {
			changes = append(changes, Transition[K]{Key: k, Pressed: next.Down()})
		}
	}

	tracked := make([]K, 0, len(d.states))
	for _, k := range append(d.tracked, fresh...) {
		if _, ok := d.states[k]; ok {
			tracked = append(tracked, k)
		}
	}
	d.tracked = tracked
	return changes
}

// Pressed returns the keys currently considered pressed, in the order they
// were first seen.
func (d *Debouncer[K]) Pressed() []K {
	var out []K
	for _, k := range d.tracked {
		if d.states[k].Down() {
			out = append(out, k)
		}
	}
	return out
}

// IsPressed reports whether k is currently considered pressed.
func (d *Debouncer[K]) IsPressed(k K) bool {
	return d.states[k].Down()
}

// State returns the debounce state of k.
func (d *Debouncer[K]) State(k K) State {
	return d.states[k]
}

// Tracked returns the number of keys not in the Unpressed phase.
func (d *Debouncer[K]) Tracked() int {
	return len(d.states)
}

// Reset returns every key to Unpressed.
func (d *Debouncer[K]) Reset() {
	d.states = make(map[K]State)
	d.tracked = nil
}
