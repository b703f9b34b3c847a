package media

import (
	"errors"
	"fmt"

	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrHasParent is returned when element added to a bin already has one.
	ErrHasParent = errors.New("element already has a parent")
	// ErrNotChild is returned when removed element is not a child of the bin.
	ErrNotChild = errors.New("element is not a child")
)

// Bin is an element that contains other elements and changes their
// states together. Bins have no pads: children are linked directly.
type Bin struct {
	Base
	children []Element
	bus      *Bus
}

// NewBin creates a new empty bin.
func NewBin(name string) *Bin {
	b := Bin{
		bus: newBus(),
	}
	b.Init(&b, name, "bin", "Generic/Bin")
	return &b
}

// Bus returns the bus of the bin. Only buses of top-level bins receive
// messages.
func (b *Bin) Bus() *Bus {
	return b.bus
}

// Add elements to the bin.
func (b *Bin) Add(elements ...Element) error {
	for _, el := range elements {
		if el.Parent() != nil {
			return fmt.Errorf("%w: %s", ErrHasParent, el.Name())
		}
		el.base().setParent(b)
		b.mu.Lock()
		b.children = append(b.children, el)
		b.mu.Unlock()
	}
	return nil
}

// Remove elements from the bin. Element state is not changed.
func (b *Bin) Remove(elements ...Element) error {
	for _, el := range elements {
		b.mu.Lock()
		i := slices.Index(b.children, el)
		if i < 0 {
			b.mu.Unlock()
			return fmt.Errorf("%w: %s of %s", ErrNotChild, el.Name(), b.name)
		}
		b.children = slices.Delete(b.children, i, i+1)
		b.mu.Unlock()
		el.base().setParent(nil)
	}
	return nil
}

// Children returns a copy of bin's children.
func (b *Bin) Children() []Element {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.children)
}

// Contains returns true if element is a child of the bin.
func (b *Bin) Contains(el Element) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Contains(b.children, el)
}

// SetState changes the state of bin and its unlocked children. Upward
// transitions start with sinks, downward ones start with sources.
// Children of the same kind change state concurrently.
func (b *Bin) SetState(target State) error {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	for _, t := range transitions(b.State(), target) {
		if err := b.changeChildren(t); err != nil {
			return err
		}
		b.setState(t.To)
	}
	return nil
}

func (b *Bin) changeChildren(t Transition) error {
	for _, group := range groupByKind(b.Children(), t.Upward()) {
		var g errgroup.Group
		for _, child := range group {
			if child.LockedState() {
				continue
			}
			child := child
			g.Go(func() error {
				return child.SetState(t.To)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

type elementKind int

const (
	sinkKind elementKind = iota
	filterKind
	sourceKind
)

// kindOf classifies element by its pads. Bin is classified by its first
// child.
func kindOf(el Element) elementKind {
	if bin, ok := el.(*Bin); ok {
		children := bin.Children()
		if len(children) == 0 {
			return filterKind
		}
		return kindOf(children[0])
	}
	var src, sink bool
	for _, p := range el.Pads() {
		switch p.dir {
		case Src:
			src = true
		case Sink:
			sink = true
		}
	}
	switch {
	case src && !sink:
		return sourceKind
	case sink && !src:
		return sinkKind
	}
	return filterKind
}

// groupByKind returns sinks, filters, sources for upward changes and
// reversed order for downward changes.
func groupByKind(elements []Element, upward bool) [][]Element {
	groups := make([][]Element, 3)
	for _, el := range elements {
		k := kindOf(el)
		groups[k] = append(groups[k], el)
	}
	if !upward {
		groups[0], groups[2] = groups[2], groups[0]
	}
	return groups
}

// Bus delivers errors posted by elements of the top-level bin. Only the
// first error is kept until it's received.
type Bus struct {
	errc chan error
}

func newBus() *Bus {
	return &Bus{
		errc: make(chan error, 1),
	}
}

// Errors returns channel of posted errors.
func (b *Bus) Errors() <-chan error {
	return b.errc
}

func (b *Bus) post(err error) {
	select {
	case b.errc <- err:
	default:
	}
}
