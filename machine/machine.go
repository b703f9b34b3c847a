// Package machine wraps a processing unit into a graph node. Machine
// grows an adder when it gets more than one input and a spreader when
// it gets more than one output.
package machine

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/buzztrax/core/media"
)

var (
	// ErrActivation is returned when adder or spreader can't be linked
	// to the unit.
	ErrActivation = errors.New("fan adapter activation failed")
	// ErrNoPads is returned when unit has neither src nor sink pads.
	ErrNoPads = errors.New("unit has no pads")
)

// Kind of the machine resolved from the unit's pads.
type Kind int

const (
	// Source machines only produce audio.
	Source Kind = iota
	// Processor machines consume and produce audio.
	Processor
	// Sink machines only consume audio.
	Sink
)

func (k Kind) String() string {
	switch k {
	case Source:
		return "source"
	case Processor:
		return "processor"
	case Sink:
		return "sink"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Machine is one processing unit in the graph.
type Machine struct {
	id   string
	kind Kind
	unit media.Element
	bin  *media.Bin

	mu             sync.Mutex
	adder          media.Element
	spreader       media.Element
	pinnedAdder    bool
	pinnedSpreader bool
	fanIn          int
	fanOut         int
}

// Option configures the machine.
type Option func(*Machine) error

// WithAdder activates adder at construction. Pinned adder is never
// deactivated.
func WithAdder() Option {
	return func(m *Machine) error {
		m.pinnedAdder = true
		return m.ActivateAdder()
	}
}

// WithSpreader activates spreader at construction. Pinned spreader is
// never deactivated.
func WithSpreader() Option {
	return func(m *Machine) error {
		m.pinnedSpreader = true
		return m.ActivateSpreader()
	}
}

// WithParams sets initial parameter values of the unit.
func WithParams(params map[string]float64) Option {
	return func(m *Machine) error {
		for name, value := range params {
			if err := m.unit.SetParam(name, value); err != nil {
				return err
			}
		}
		return nil
	}
}

// New creates a machine around the unit. Unit is added to the machine's
// bin.
func New(id string, unit media.Element, options ...Option) (*Machine, error) {
	src, sink := len(media.SrcPads(unit)) > 0, len(media.SinkPads(unit)) > 0
	m := Machine{
		id:   id,
		unit: unit,
		bin:  media.NewBin(id),
	}
	switch {
	case src && sink:
		m.kind = Processor
	case src:
		m.kind = Source
	case sink:
		m.kind = Sink
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoPads, unit.Name())
	}
	if err := m.bin.Add(unit); err != nil {
		return nil, err
	}
	for _, option := range options {
		if err := option(&m); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

// ID of the machine.
func (m *Machine) ID() string {
	return m.id
}

// Kind of the machine.
func (m *Machine) Kind() Kind {
	return m.kind
}

// Unit returns the processing element.
func (m *Machine) Unit() media.Element {
	return m.unit
}

// Bin contains unit, adder and spreader.
func (m *Machine) Bin() *media.Bin {
	return m.bin
}

func (m *Machine) String() string {
	return m.id
}

// ActivateAdder creates an adder and links it to the unit. The unit's
// sink pad must be free. Does nothing if adder is already active.
func (m *Machine) ActivateAdder() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.adder != nil {
		return nil
	}
	adder := media.NewAdder(m.id + " adder")
	if err := m.activate(adder, adder, m.unit); err != nil {
		return err
	}
	m.adder = adder
	return nil
}

// ActivateSpreader creates a spreader and links the unit to it. The
// unit's src pad must be free. Does nothing if spreader is already
// active.
func (m *Machine) ActivateSpreader() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.spreader != nil {
		return nil
	}
	spreader := media.NewTee(m.id + " spreader")
	if err := m.activate(spreader, m.unit, spreader); err != nil {
		return err
	}
	m.spreader = spreader
	return nil
}

// activate adds the fan element to the bin in locked state and links it.
func (m *Machine) activate(el, src, dst media.Element) error {
	el.SetLockedState(true)
	if err := m.bin.Add(el); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrActivation, m.id, err)
	}
	if err := media.Link(src, dst); err != nil {
		return multierr.Append(
			fmt.Errorf("%w: %s: %v", ErrActivation, m.id, err),
			m.bin.Remove(el),
		)
	}
	return nil
}

// DeactivateAdder unlinks and removes the adder. It's used to roll back
// a failed activation, pinned adder is kept.
func (m *Machine) DeactivateAdder() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.adder == nil || m.pinnedAdder {
		return nil
	}
	if err := m.deactivate(m.adder, m.adder, m.unit); err != nil {
		return err
	}
	m.adder = nil
	return nil
}

// DeactivateSpreader unlinks and removes the spreader. It's used to roll
// back a failed activation, pinned spreader is kept.
func (m *Machine) DeactivateSpreader() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.spreader == nil || m.pinnedSpreader {
		return nil
	}
	if err := m.deactivate(m.spreader, m.unit, m.spreader); err != nil {
		return err
	}
	m.spreader = nil
	return nil
}

func (m *Machine) deactivate(el, src, dst media.Element) error {
	media.Unlink(src, dst)
	if err := el.SetState(media.Null); err != nil {
		return err
	}
	return m.bin.Remove(el)
}

// HasActiveAdder returns true if adder is active.
func (m *Machine) HasActiveAdder() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adder != nil
}

// HasActiveSpreader returns true if spreader is active.
func (m *Machine) HasActiveSpreader() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spreader != nil
}

// EffectiveSource returns the element outgoing wires link from.
func (m *Machine) EffectiveSource() media.Element {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.spreader != nil {
		return m.spreader
	}
	return m.unit
}

// EffectiveSink returns the element incoming wires link to.
func (m *Machine) EffectiveSink() media.Element {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.adder != nil {
		return m.adder
	}
	return m.unit
}

// SyncFanState unlocks adder and spreader that carry at least one link
// and syncs their state with the machine's bin.
func (m *Machine) SyncFanState() error {
	m.mu.Lock()
	fans := []struct {
		el  media.Element
		dir media.Direction
	}{
		{el: m.adder, dir: media.Sink},
		{el: m.spreader, dir: media.Src},
	}
	m.mu.Unlock()
	for _, fan := range fans {
		if fan.el == nil || !fan.el.LockedState() || !hasLinks(fan.el, fan.dir) {
			continue
		}
		fan.el.SetLockedState(false)
		if err := fan.el.SyncStateWithParent(); err != nil {
			return err
		}
	}
	return nil
}

func hasLinks(el media.Element, dir media.Direction) bool {
	for _, p := range el.Pads() {
		if p.Direction() == dir && p.IsLinked() {
			return true
		}
	}
	return false
}

// FanIn returns number of incoming wires.
func (m *Machine) FanIn() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fanIn
}

// FanOut returns number of outgoing wires.
func (m *Machine) FanOut() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fanOut
}

// AddFanIn changes the number of incoming wires.
func (m *Machine) AddFanIn(delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fanIn += delta
}

// AddFanOut changes the number of outgoing wires.
func (m *Machine) AddFanOut(delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fanOut += delta
}

// Params returns controllable parameters of the unit.
func (m *Machine) Params() []media.Param {
	return m.unit.Params()
}

// Param returns current value of unit's parameter.
func (m *Machine) Param(name string) (float64, error) {
	return m.unit.Param(name)
}

// SetParam changes unit's parameter. Change is applied by the streaming
// goroutine if machine is playing.
func (m *Machine) SetParam(name string, value float64) error {
	return m.unit.SetParam(name, value)
}
