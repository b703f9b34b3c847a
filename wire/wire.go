// Package wire links machines. When machines can't be linked directly,
// wire inserts converter elements between them.
package wire

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/buzztrax/core/machine"
	"github.com/buzztrax/core/media"
)

// ErrLinkIncompatible is returned when no adapter combination can link
// the machines.
var ErrLinkIncompatible = errors.New("machines can't be linked")

// Adapter factories.
const (
	Converter = "audioconvert"
	Scaler    = "audioresample"
)

// chains are adapter combinations in the order they are tried.
var chains = [][]string{
	nil,
	{Converter},
	{Scaler},
	{Converter, Scaler},
	{Scaler, Converter},
}

// Wire is a directed connection between two machines.
type Wire struct {
	src *machine.Machine
	dst *machine.Machine
	bin *media.Bin

	mu       sync.Mutex
	linked   bool
	from     media.Element
	to       media.Element
	adapters []media.Element
}

// New creates a new unlinked wire.
func New(src, dst *machine.Machine) *Wire {
	return &Wire{
		src: src,
		dst: dst,
		bin: media.NewBin(fmt.Sprintf("%s -> %s", src.ID(), dst.ID())),
	}
}

// Src returns source machine.
func (w *Wire) Src() *machine.Machine {
	return w.src
}

// Dst returns destination machine.
func (w *Wire) Dst() *machine.Machine {
	return w.dst
}

// Bin contains adapters of the wire.
func (w *Wire) Bin() *media.Bin {
	return w.bin
}

func (w *Wire) String() string {
	return w.bin.Name()
}

// Linked returns true if wire is linked.
func (w *Wire) Linked() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.linked
}

// Endpoints returns machine elements the wire is linked to.
func (w *Wire) Endpoints() (from, to media.Element) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.from, w.to
}

// Slots returns elements linked to the machines at each end: the
// endpoints themselves if link is direct, otherwise the first and the
// last adapters.
func (w *Wire) Slots() (src, dst media.Element) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.adapters) == 0 {
		return w.from, w.to
	}
	return w.adapters[0], w.adapters[len(w.adapters)-1]
}

// Adapters returns factory names of inserted adapters.
func (w *Wire) Adapters() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var names []string
	for _, a := range w.adapters {
		names = append(names, a.Factory())
	}
	return names
}

// Link links effective endpoints of the machines. Adapter combinations
// are tried until one succeeds. Adapters of failed attempts are removed.
func (w *Wire) Link() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.linked {
		return nil
	}
	from, to := w.src.EffectiveSource(), w.dst.EffectiveSink()
	var errs error
	for _, chain := range chains {
		adapters, err := w.try(from, to, chain)
		if err == nil {
			w.linked = true
			w.from, w.to = from, to
			w.adapters = adapters
			return nil
		}
		errs = multierr.Append(errs, err)
	}
	return fmt.Errorf("%w: %v: %w", ErrLinkIncompatible, w, errs)
}

func (w *Wire) try(from, to media.Element, factories []string) ([]media.Element, error) {
	adapters := make([]media.Element, 0, len(factories))
	for _, f := range factories {
		a, err := media.Make(f, fmt.Sprintf("%v %s", w, f))
		if err != nil {
			return nil, multierr.Append(err, w.remove(adapters))
		}
		if err := w.bin.Add(a); err != nil {
			return nil, multierr.Append(err, w.remove(adapters))
		}
		adapters = append(adapters, a)
	}
	elements := append(append([]media.Element{from}, adapters...), to)
	for i := 0; i < len(elements)-1; i++ {
		if err := media.Link(elements[i], elements[i+1]); err != nil {
			for j := i - 1; j >= 0; j-- {
				media.Unlink(elements[j], elements[j+1])
			}
			return nil, multierr.Append(err, w.remove(adapters))
		}
	}
	return adapters, nil
}

// remove adapters from the bin.
func (w *Wire) remove(adapters []media.Element) error {
	var err error
	for _, a := range adapters {
		err = multierr.Append(err, a.SetState(media.Null))
		err = multierr.Append(err, w.bin.Remove(a))
	}
	return err
}

// Unlink removes links and adapters. Unlinking an unlinked wire does
// nothing.
func (w *Wire) Unlink() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.linked {
		return nil
	}
	elements := append(append([]media.Element{w.from}, w.adapters...), w.to)
	for i := 0; i < len(elements)-1; i++ {
		media.Unlink(elements[i], elements[i+1])
	}
	err := w.remove(w.adapters)
	w.linked = false
	w.from, w.to = nil, nil
	w.adapters = nil
	return err
}

// Reconnect unlinks the wire and links it again against current
// effective endpoints.
func (w *Wire) Reconnect() error {
	if err := w.Unlink(); err != nil {
		return err
	}
	return w.Link()
}

// SyncState syncs adapters with the state of the wire's bin.
func (w *Wire) SyncState() error {
	w.mu.Lock()
	adapters := append([]media.Element(nil), w.adapters...)
	w.mu.Unlock()
	for _, a := range adapters {
		if err := a.SyncStateWithParent(); err != nil {
			return err
		}
	}
	return nil
}
