// Package media is an in-process element runtime. Elements own pads,
// pads are linked into a graph and buffers are pushed from source tasks
// through chain functions down to sinks. Bins group elements and
// change their states together.
package media

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/xid"
	"golang.org/x/exp/slices"

	"github.com/buzztrax/core/mutable"
)

var (
	// ErrStateChange is returned when element fails to change state.
	ErrStateChange = errors.New("state change failed")
	// ErrUnknownParam is returned when element has no such parameter.
	ErrUnknownParam = errors.New("unknown parameter")
	// ErrParamRange is returned when parameter value is out of range.
	ErrParamRange = errors.New("parameter value out of range")
)

// Element is a processing unit with pads.
type Element interface {
	Name() string
	Factory() string
	Klass() string
	Pads() []*Pad
	Pad(name string) *Pad
	State() State
	SetState(State) error
	LockedState() bool
	SetLockedState(bool)
	SyncStateWithParent() error
	Parent() *Bin
	Params() []Param
	Param(name string) (float64, error)
	SetParam(name string, value float64) error
	PostError(error)
	base() *Base
}

// StateChanger is implemented by elements that allocate resources or
// run tasks in certain states.
type StateChanger interface {
	ChangeState(Transition) error
}

// Requester is implemented by elements with request pads.
type Requester interface {
	RequestPad(Direction) (*Pad, error)
	ReleasePad(*Pad)
}

// Param describes a controllable element parameter.
type Param struct {
	Name    string
	Min     float64
	Max     float64
	Default float64
}

// Base implements common element behaviour. Elements embed it and call
// Init in their constructors.
type Base struct {
	self    Element
	name    string
	factory string
	klass   string
	ctx     mutable.Context
	inbox   mutable.Inbox
	// serializes state changes.
	stateMu sync.Mutex

	mu     sync.Mutex
	state  State
	locked bool
	parent *Bin
	pads   []*Pad
	params []Param
	values map[string]float64
}

// Init sets element identity. If name is empty, unique name is generated.
func (b *Base) Init(self Element, name, factory, klass string) {
	if name == "" {
		name = fmt.Sprintf("%s-%s", factory, xid.New())
	}
	b.self = self
	b.name = name
	b.factory = factory
	b.klass = klass
	b.ctx = mutable.Mutable()
	b.values = make(map[string]float64)
}

func (b *Base) base() *Base {
	return b
}

// Name of the element.
func (b *Base) Name() string {
	return b.name
}

// Factory returns the name of the factory element was made with.
func (b *Base) Factory() string {
	return b.factory
}

// Klass returns element classification, e.g. Sink/Audio.
func (b *Base) Klass() string {
	return b.klass
}

func (b *Base) String() string {
	return b.name
}

// AddPad adds a pad to the element. Pad is activated if element is
// already in Paused or Playing state.
func (b *Base) AddPad(p *Pad) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p.parent = b.self
	b.pads = append(b.pads, p)
	if b.state >= Paused {
		p.SetActive(true)
	}
}

// RemovePad removes a pad from the element and deactivates it.
func (b *Base) RemovePad(p *Pad) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := slices.Index(b.pads, p); i >= 0 {
		b.pads = slices.Delete(b.pads, i, i+1)
	}
	p.SetActive(false)
}

// Pads returns a copy of element's pads.
func (b *Base) Pads() []*Pad {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.pads)
}

// Pad returns pad by name or nil.
func (b *Base) Pad(name string) *Pad {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.pads {
		if p.name == name {
			return p
		}
	}
	return nil
}

// State returns current state.
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// LockedState returns true if parent bin doesn't change element's state.
func (b *Base) LockedState() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

// SetLockedState locks or unlocks the element's state.
func (b *Base) SetLockedState(locked bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.locked = locked
}

// Parent returns the bin that contains element.
func (b *Base) Parent() *Bin {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.parent
}

func (b *Base) setParent(parent *Bin) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parent = parent
}

// SyncStateWithParent changes element state to the parent's one.
func (b *Base) SyncStateWithParent() error {
	parent := b.Parent()
	if parent == nil {
		return nil
	}
	return b.self.SetState(parent.State())
}

// SetState changes element state going through all intermediate states.
func (b *Base) SetState(target State) error {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	for _, t := range transitions(b.State(), target) {
		if err := b.change(t); err != nil {
			return err
		}
	}
	return nil
}

func (b *Base) change(t Transition) error {
	if t.From == Ready && t.To == Paused {
		b.activatePads(true)
	}
	if sc, ok := b.self.(StateChanger); ok {
		if err := sc.ChangeState(t); err != nil {
			return fmt.Errorf("%w: %s %v: %v", ErrStateChange, b.name, t, err)
		}
	}
	if t.From == Paused && t.To == Ready {
		b.activatePads(false)
	}
	b.setState(t.To)
	if t.From == Playing {
		return b.ApplyParams()
	}
	return nil
}

func (b *Base) setState(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = s
}

func (b *Base) activatePads(active bool) {
	for _, p := range b.Pads() {
		p.SetActive(active)
	}
}

// PostError sends error to the bus of the top-level bin.
func (b *Base) PostError(err error) {
	var top *Bin
	if bin, ok := b.self.(*Bin); ok {
		top = bin
	}
	for parent := b.Parent(); parent != nil; parent = parent.Parent() {
		top = parent
	}
	if top == nil {
		return
	}
	top.bus.post(fmt.Errorf("%s: %w", b.name, err))
}

// AddParam declares a controllable parameter.
func (b *Base) AddParam(p Param) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.params = append(b.params, p)
	b.values[p.Name] = p.Default
}

// Params returns declared parameters.
func (b *Base) Params() []Param {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.params)
}

// Param returns current parameter value.
func (b *Base) Param(name string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s", ErrUnknownParam, b.name, name)
	}
	return v, nil
}

// SetParam changes parameter value. While element is playing the change
// is applied by the streaming goroutine before the next buffer.
func (b *Base) SetParam(name string, value float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := slices.IndexFunc(b.params, func(p Param) bool { return p.Name == name })
	if i < 0 {
		return fmt.Errorf("%w: %s.%s", ErrUnknownParam, b.name, name)
	}
	if p := b.params[i]; value < p.Min || value > p.Max {
		return fmt.Errorf("%w: %s.%s=%v not in [%v, %v]", ErrParamRange, b.name, name, value, p.Min, p.Max)
	}
	if b.state != Playing {
		b.values[name] = value
		return nil
	}
	b.inbox.Put(b.ctx.Mutate(func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.values[name] = value
		return nil
	}))
	return nil
}

// ApplyParams applies pending parameter changes. Called by the streaming
// goroutine between buffers.
func (b *Base) ApplyParams() error {
	return b.inbox.Take().ApplyTo(b.ctx)
}

// value returns parameter value without error check.
func (b *Base) value(name string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.values[name]
}

// SrcPads returns element's src pads.
func SrcPads(el Element) []*Pad {
	return padsOf(el, Src)
}

// SinkPads returns element's sink pads.
func SinkPads(el Element) []*Pad {
	return padsOf(el, Sink)
}

func padsOf(el Element, dir Direction) []*Pad {
	var pads []*Pad
	for _, p := range el.Pads() {
		if p.dir == dir {
			pads = append(pads, p)
		}
	}
	return pads
}
