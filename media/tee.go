package media

import (
	"errors"
	"fmt"
	"sync"
)

// Tee pushes every buffer into all its src pads.
type Tee struct {
	Base
	sink *Pad

	mu         sync.Mutex
	padCounter int
}

// NewTee creates a new tee with no src pads.
func NewTee(name string) *Tee {
	t := Tee{}
	t.Init(&t, name, "tee", KlassGeneric)
	t.sink = NewSinkPad("sink", Audio(Range{}, Range{}), t.chain)
	t.AddPad(t.sink)
	return &t
}

// RequestPad creates a new src pad.
func (t *Tee) RequestPad(dir Direction) (*Pad, error) {
	if dir != Src {
		return nil, fmt.Errorf("%w: %s has no request %v pads", ErrNoFreePad, t.name, dir)
	}
	t.mu.Lock()
	name := fmt.Sprintf("src_%d", t.padCounter)
	t.padCounter++
	t.mu.Unlock()
	p := NewSrcPad(name, Audio(Range{}, Range{}))
	p.request = true
	t.AddPad(p)
	return p, nil
}

// ReleasePad removes a src pad.
func (t *Tee) ReleasePad(p *Pad) {
	t.RemovePad(p)
}

// chain succeeds if at least one src pad accepted the buffer.
func (t *Tee) chain(_ *Pad, b Buffer) error {
	err := ErrNotLinked
	for _, p := range SrcPads(t) {
		perr := p.Push(b)
		switch {
		case perr == nil:
			err = nil
		case errors.Is(perr, ErrNotLinked):
		case err != nil:
			err = perr
		}
	}
	return err
}
