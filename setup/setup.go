// Package setup owns machines and wires of one song. Every topology edit
// runs the relink protocol: data flow into the edited region is blocked,
// links are changed and the flow is resumed.
package setup

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/exp/slices"

	"github.com/buzztrax/core/log"
	"github.com/buzztrax/core/machine"
	"github.com/buzztrax/core/media"
	"github.com/buzztrax/core/wire"
)

// DefaultBlockTimeout bounds the wait for block confirmation.
const DefaultBlockTimeout = 2 * time.Second

var (
	// ErrDuplicateMachine is returned when machine is already added.
	ErrDuplicateMachine = errors.New("machine already exists")
	// ErrDuplicateWire is returned when machines are already connected
	// in any direction or when machine is connected to itself.
	ErrDuplicateWire = errors.New("duplicate or cyclic wire")
	// ErrMachineNotFound is returned when machine is not in the setup.
	ErrMachineNotFound = errors.New("machine not found")
	// ErrWireNotFound is returned when wire is not in the setup.
	ErrWireNotFound = errors.New("wire not found")
	// ErrMachineInUse is returned when removed machine still has wires.
	ErrMachineInUse = errors.New("machine has wires")
	// ErrBlockTimeout is returned when data flow wasn't blocked in time.
	ErrBlockTimeout = errors.New("block confirmation timeout")
	// ErrClosed is returned when setup is used after close.
	ErrClosed = errors.New("setup is closed")
)

// EventKind identifies topology change.
type EventKind int

const (
	// MachineAdded is sent when machine is added.
	MachineAdded EventKind = iota
	// MachineRemoved is sent when machine is removed.
	MachineRemoved
	// WireAdded is sent when wire is added.
	WireAdded
	// WireRemoved is sent when wire is removed.
	WireRemoved
)

func (k EventKind) String() string {
	switch k {
	case MachineAdded:
		return "machine-added"
	case MachineRemoved:
		return "machine-removed"
	case WireAdded:
		return "wire-added"
	case WireRemoved:
		return "wire-removed"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event describes a topology change. Only one of Machine and Wire is set.
type Event struct {
	Kind    EventKind
	Machine *machine.Machine
	Wire    *wire.Wire
}

// Handler receives topology changes. Handlers are called after the edit
// is done and must not edit the setup.
type Handler func(Event)

// Setup is the registry of machines and wires.
type Setup struct {
	bin          *media.Bin
	logger       log.Logger
	blockTimeout time.Duration
	observer     Observer

	// serializes topology edits.
	edit sync.Mutex

	mu       sync.RWMutex
	machines []*machine.Machine
	wires    []*wire.Wire
	handlers []Handler
	closed   bool
}

// Option configures the setup.
type Option func(*Setup) error

// WithLogger sets logger of the setup.
func WithLogger(logger log.Logger) Option {
	return func(s *Setup) error {
		s.logger = logger
		return nil
	}
}

// WithBlockTimeout sets the bound for block confirmation.
func WithBlockTimeout(d time.Duration) Option {
	return func(s *Setup) error {
		if d <= 0 {
			return fmt.Errorf("invalid block timeout: %v", d)
		}
		s.blockTimeout = d
		return nil
	}
}

// WithObserver sets the function that receives relink progress.
func WithObserver(o Observer) Option {
	return func(s *Setup) error {
		s.observer = o
		return nil
	}
}

// New creates a setup. Machines and wires are added into provided bin.
func New(bin *media.Bin, options ...Option) (*Setup, error) {
	s := Setup{
		bin:          bin,
		logger:       log.GetLogger(),
		blockTimeout: DefaultBlockTimeout,
	}
	for _, option := range options {
		if err := option(&s); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// Bin returns the bin that contains machines and wires.
func (s *Setup) Bin() *media.Bin {
	return s.bin
}

// Subscribe adds topology change handler.
func (s *Setup) Subscribe(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

func (s *Setup) notify(e Event) {
	s.mu.RLock()
	handlers := slices.Clone(s.handlers)
	s.mu.RUnlock()
	for _, h := range handlers {
		h(e)
	}
}

// Machines returns a copy of machines in insertion order.
func (s *Setup) Machines() []*machine.Machine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.machines)
}

// Wires returns a copy of wires in insertion order.
func (s *Setup) Wires() []*wire.Wire {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.wires)
}

// Machine returns machine by id.
func (s *Setup) Machine(id string) (*machine.Machine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.machineByID(id)
}

func (s *Setup) machineByID(id string) (*machine.Machine, bool) {
	i := slices.IndexFunc(s.machines, func(m *machine.Machine) bool { return m.ID() == id })
	if i < 0 {
		return nil, false
	}
	return s.machines[i], true
}

// MachineAt returns machine by insertion index.
func (s *Setup) MachineAt(i int) (*machine.Machine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.machines) {
		return nil, false
	}
	return s.machines[i], true
}

// MachinesByKind returns machines of the kind.
func (s *Setup) MachinesByKind(kind machine.Kind) []*machine.Machine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*machine.Machine
	for _, m := range s.machines {
		if m.Kind() == kind {
			result = append(result, m)
		}
	}
	return result
}

// WiresBySource returns wires going out of the machine.
func (s *Setup) WiresBySource(m *machine.Machine) []*wire.Wire {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wiresBy(func(w *wire.Wire) bool { return w.Src() == m })
}

// WiresByDest returns wires coming into the machine.
func (s *Setup) WiresByDest(m *machine.Machine) []*wire.Wire {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wiresBy(func(w *wire.Wire) bool { return w.Dst() == m })
}

func (s *Setup) wiresBy(match func(*wire.Wire) bool) []*wire.Wire {
	var result []*wire.Wire
	for _, w := range s.wires {
		if match(w) {
			result = append(result, w)
		}
	}
	return result
}

// Wire returns the wire between two machines.
func (s *Setup) Wire(src, dst *machine.Machine) (*wire.Wire, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wireBetween(src, dst)
}

func (s *Setup) wireBetween(src, dst *machine.Machine) (*wire.Wire, bool) {
	i := slices.IndexFunc(s.wires, func(w *wire.Wire) bool { return w.Src() == src && w.Dst() == dst })
	if i < 0 {
		return nil, false
	}
	return s.wires[i], true
}

// UniqueID returns base if no machine has it as id. Otherwise suffixes
// "base 00", "base 01", ... are probed.
func (s *Setup) UniqueID(base string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.machineByID(base); !ok {
		return base
	}
	for i := 0; ; i++ {
		id := fmt.Sprintf("%s %02d", base, i)
		if _, ok := s.machineByID(id); !ok {
			return id
		}
	}
}

// AddMachine adds machine to the setup and syncs its state with the
// setup's bin.
func (s *Setup) AddMachine(m *machine.Machine) error {
	s.edit.Lock()
	defer s.edit.Unlock()
	if err := s.checkClosed(); err != nil {
		return err
	}
	if _, ok := s.Machine(m.ID()); ok {
		return fmt.Errorf("%w: %s", ErrDuplicateMachine, m.ID())
	}
	o := s.newOp(InsertMachine, m.ID())
	err := o.run(plan{
		edit: func() error {
			if err := s.bin.Add(m.Bin()); err != nil {
				return err
			}
			o.undo(func() error { return s.detach(m.Bin()) })
			s.registerMachine(m)
			o.undo(func() error { s.unregisterMachine(m); return nil })
			return nil
		},
		sync: func() error {
			return m.Bin().SyncStateWithParent()
		},
	})
	if err != nil {
		return err
	}
	s.notify(Event{Kind: MachineAdded, Machine: m})
	return nil
}

// RemoveMachine removes machine without wires from the setup.
func (s *Setup) RemoveMachine(m *machine.Machine) error {
	s.edit.Lock()
	defer s.edit.Unlock()
	if err := s.checkClosed(); err != nil {
		return err
	}
	if !s.hasMachine(m) {
		return fmt.Errorf("%w: %s", ErrMachineNotFound, m.ID())
	}
	if len(s.WiresBySource(m)) > 0 || len(s.WiresByDest(m)) > 0 {
		return fmt.Errorf("%w: %s", ErrMachineInUse, m.ID())
	}
	o := s.newOp(RemoveMachine, m.ID())
	err := o.run(plan{
		edit: func() error {
			s.unregisterMachine(m)
			o.undo(func() error { s.registerMachine(m); return nil })
			if err := s.detach(m.Bin()); err != nil {
				return err
			}
			o.undo(func() error { return s.attach(m.Bin()) })
			return nil
		},
	})
	if err != nil {
		return err
	}
	s.notify(Event{Kind: MachineRemoved, Machine: m})
	return nil
}

// Connect creates a wire between two machines and adds it to the setup.
func (s *Setup) Connect(src, dst *machine.Machine) (*wire.Wire, error) {
	w := wire.New(src, dst)
	if err := s.AddWire(w); err != nil {
		return nil, err
	}
	return w, nil
}

// AddWire links the wire and adds it to the setup. If source machine
// already has outgoing wires, its spreader is activated. If destination
// machine already has incoming wires, its adder is activated. Affected
// wires are relinked against new effective endpoints.
func (s *Setup) AddWire(w *wire.Wire) error {
	s.edit.Lock()
	defer s.edit.Unlock()
	if err := s.checkClosed(); err != nil {
		return err
	}
	src, dst := w.Src(), w.Dst()
	if err := s.checkWire(src, dst); err != nil {
		return err
	}
	o := s.newOp(InsertWire, w.String())

	var relinked []*wire.Wire
	needSpreader := !src.HasActiveSpreader() && len(s.WiresBySource(src)) > 0
	needAdder := !dst.HasActiveAdder() && len(s.WiresByDest(dst)) > 0
	err := o.run(plan{
		block: s.upstreamSources(src, dst),
		unlink: func() error {
			if needSpreader {
				relinked = append(relinked, s.WiresBySource(src)...)
			}
			if needAdder {
				relinked = append(relinked, s.WiresByDest(dst)...)
			}
			for _, rw := range relinked {
				if err := o.unlinkWire(rw); err != nil {
					return err
				}
			}
			return nil
		},
		edit: func() error {
			if needSpreader {
				if err := src.ActivateSpreader(); err != nil {
					return err
				}
				o.undo(src.DeactivateSpreader)
				o.logger.WithField("machine", src.ID()).Debug("spreader activated")
			}
			if needAdder {
				if err := dst.ActivateAdder(); err != nil {
					return err
				}
				o.undo(dst.DeactivateAdder)
				o.logger.WithField("machine", dst.ID()).Debug("adder activated")
			}
			if err := s.attach(w.Bin()); err != nil {
				return err
			}
			o.undo(func() error { return s.detach(w.Bin()) })
			return nil
		},
		relink: func() error {
			for _, rw := range relinked {
				if err := o.linkWire(rw); err != nil {
					return err
				}
			}
			if err := o.linkWire(w); err != nil {
				return err
			}
			s.registerWire(w)
			o.undo(func() error { s.unregisterWire(w); return nil })
			return nil
		},
		sync: func() error {
			return multierr.Combine(
				src.SyncFanState(),
				dst.SyncFanState(),
				syncWires(append(relinked, w)),
			)
		},
	})
	if err != nil {
		return err
	}
	s.notify(Event{Kind: WireAdded, Wire: w})
	return nil
}

// RemoveWire unlinks the wire and removes it from the setup. Adder and
// spreader of the machines stay active.
func (s *Setup) RemoveWire(w *wire.Wire) error {
	s.edit.Lock()
	defer s.edit.Unlock()
	if err := s.checkClosed(); err != nil {
		return err
	}
	if !s.hasWire(w) {
		return fmt.Errorf("%w: %v", ErrWireNotFound, w)
	}
	o := s.newOp(RemoveWire, w.String())
	err := o.run(plan{
		block: s.upstreamSources(w.Src()),
		unlink: func() error {
			return o.unlinkWire(w)
		},
		edit: func() error {
			s.unregisterWire(w)
			o.undo(func() error { s.registerWire(w); return nil })
			if err := s.detach(w.Bin()); err != nil {
				return err
			}
			o.undo(func() error { return s.attach(w.Bin()) })
			return nil
		},
	})
	if err != nil {
		return err
	}
	s.notify(Event{Kind: WireRemoved, Wire: w})
	return nil
}

// Close unlinks all wires and removes all machines. Setup can't be used
// after close.
func (s *Setup) Close() error {
	s.edit.Lock()
	defer s.edit.Unlock()
	if err := s.checkClosed(); err != nil {
		return err
	}
	var err error
	for _, w := range s.Wires() {
		err = multierr.Append(err, w.Unlink())
		err = multierr.Append(err, s.detach(w.Bin()))
		s.unregisterWire(w)
	}
	for _, m := range s.Machines() {
		err = multierr.Append(err, s.detach(m.Bin()))
		s.unregisterMachine(m)
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}

func (s *Setup) checkClosed() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *Setup) checkWire(src, dst *machine.Machine) error {
	if src == dst {
		return fmt.Errorf("%w: %s to itself", ErrDuplicateWire, src.ID())
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range []*machine.Machine{src, dst} {
		if !slices.Contains(s.machines, m) {
			return fmt.Errorf("%w: %s", ErrMachineNotFound, m.ID())
		}
	}
	if _, ok := s.wireBetween(src, dst); ok {
		return fmt.Errorf("%w: %s -> %s", ErrDuplicateWire, src.ID(), dst.ID())
	}
	if _, ok := s.wireBetween(dst, src); ok {
		return fmt.Errorf("%w: %s -> %s exists", ErrDuplicateWire, dst.ID(), src.ID())
	}
	return nil
}

func (s *Setup) hasMachine(m *machine.Machine) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.machines, m)
}

func (s *Setup) hasWire(w *wire.Wire) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.wires, w)
}

func (s *Setup) registerMachine(m *machine.Machine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machines = append(s.machines, m)
}

func (s *Setup) unregisterMachine(m *machine.Machine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.Index(s.machines, m); i >= 0 {
		s.machines = slices.Delete(s.machines, i, i+1)
	}
}

func (s *Setup) registerWire(w *wire.Wire) {
	s.mu.Lock()
	s.wires = append(s.wires, w)
	s.mu.Unlock()
	w.Src().AddFanOut(1)
	w.Dst().AddFanIn(1)
}

func (s *Setup) unregisterWire(w *wire.Wire) {
	s.mu.Lock()
	i := slices.Index(s.wires, w)
	if i >= 0 {
		s.wires = slices.Delete(s.wires, i, i+1)
	}
	s.mu.Unlock()
	if i >= 0 {
		w.Src().AddFanOut(-1)
		w.Dst().AddFanIn(-1)
	}
}

// attach adds the bin to the setup's bin. State is synced later.
func (s *Setup) attach(bin *media.Bin) error {
	return s.bin.Add(bin)
}

// detach stops the bin and removes it from the setup's bin.
func (s *Setup) detach(bin *media.Bin) error {
	if err := bin.SetState(media.Null); err != nil {
		return err
	}
	return s.bin.Remove(bin)
}

// upstreamSources returns source machines that feed provided machines,
// including the machines themselves.
func (s *Setup) upstreamSources(machines ...*machine.Machine) []*machine.Machine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		result  []*machine.Machine
		visited = make(map[*machine.Machine]bool)
		walk    func(*machine.Machine)
	)
	walk = func(m *machine.Machine) {
		if visited[m] {
			return
		}
		visited[m] = true
		if m.Kind() == machine.Source {
			result = append(result, m)
		}
		for _, w := range s.wiresBy(func(w *wire.Wire) bool { return w.Dst() == m }) {
			walk(w.Src())
		}
	}
	for _, m := range machines {
		walk(m)
	}
	return result
}

func syncWires(wires []*wire.Wire) error {
	var err error
	for _, w := range wires {
		err = multierr.Append(err, w.Bin().SyncStateWithParent())
		err = multierr.Append(err, w.SyncState())
	}
	return err
}
