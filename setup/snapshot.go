package setup

import (
	"golang.org/x/exp/slices"

	"github.com/buzztrax/core/media"
)

// MachineState describes a machine in the setup.
type MachineState struct {
	ID       string
	Kind     string
	FanIn    int
	FanOut   int
	Adder    bool
	Spreader bool
}

// WireState describes a wire in the setup. From and To are names of
// linked elements, Adapters are factory names of inserted adapters.
type WireState struct {
	Src      string
	Dst      string
	Linked   bool
	From     string
	To       string
	Adapters []string
}

// Snapshot is a comparable description of the topology.
type Snapshot struct {
	State    media.State
	Machines []MachineState
	Wires    []WireState
}

// Snapshot returns current topology.
func (s *Setup) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{State: s.bin.State()}
	for _, m := range s.machines {
		snap.Machines = append(snap.Machines, MachineState{
			ID:       m.ID(),
			Kind:     m.Kind().String(),
			FanIn:    m.FanIn(),
			FanOut:   m.FanOut(),
			Adder:    m.HasActiveAdder(),
			Spreader: m.HasActiveSpreader(),
		})
	}
	for _, w := range s.wires {
		ws := WireState{
			Src:      w.Src().ID(),
			Dst:      w.Dst().ID(),
			Linked:   w.Linked(),
			Adapters: w.Adapters(),
		}
		if from, to := w.Endpoints(); from != nil && to != nil {
			ws.From, ws.To = from.Name(), to.Name()
		}
		snap.Wires = append(snap.Wires, ws)
	}
	return snap
}

// Equal returns true if snapshots describe the same topology.
func (s Snapshot) Equal(other Snapshot) bool {
	return s.State == other.State &&
		slices.Equal(s.Machines, other.Machines) &&
		slices.EqualFunc(s.Wires, other.Wires, func(a, b WireState) bool {
			return a.Src == b.Src &&
				a.Dst == b.Dst &&
				a.Linked == b.Linked &&
				a.From == b.From &&
				a.To == b.To &&
				slices.Equal(a.Adapters, b.Adapters)
		})
}
