package media

import "fmt"

// State is the processing state of an element.
type State int

const (
	// Null is the initial state, no resources are allocated.
	Null State = iota
	// Ready means resources are allocated but pads are inactive.
	Ready
	// Paused means pads are active and the element accepts buffers.
	Paused
	// Playing means source tasks are running.
	Playing
)

func (s State) String() string {
	switch s {
	case Null:
		return "null"
	case Ready:
		return "ready"
	case Paused:
		return "paused"
	case Playing:
		return "playing"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Transition is a change between two adjacent states.
type Transition struct {
	From State
	To   State
}

// Upward returns true if transition moves towards Playing.
func (t Transition) Upward() bool {
	return t.To > t.From
}

func (t Transition) String() string {
	return fmt.Sprintf("%v->%v", t.From, t.To)
}

// transitions returns all adjacent steps needed to get from one state
// to another.
func transitions(from, to State) []Transition {
	var steps []Transition
	for from != to {
		next := from + 1
		if to < from {
			next = from - 1
		}
		steps = append(steps, Transition{From: from, To: next})
		from = next
	}
	return steps
}
