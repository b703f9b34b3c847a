package media

import (
	"fmt"
	"sync"

	"github.com/buzztrax/core/signal"
)

// Adder mixes buffers of all its sink pads. A mix is pushed when every
// linked sink pad delivered a buffer, or when a pad delivers a second
// buffer before the others. Missing inputs are silent in that mix.
type Adder struct {
	Base
	src *Pad

	collect    sync.Mutex
	pending    map[*Pad]Buffer
	padCounter int
	// serializes pushes from different upstream goroutines.
	push sync.Mutex
}

// NewAdder creates a new adder with no sink pads.
func NewAdder(name string) *Adder {
	a := Adder{
		pending: make(map[*Pad]Buffer),
	}
	a.Init(&a, name, "adder", KlassGeneric)
	a.src = NewSrcPad("src", Audio(Range{}, Range{}))
	a.AddPad(a.src)
	return &a
}

// RequestPad creates a new sink pad.
func (a *Adder) RequestPad(dir Direction) (*Pad, error) {
	if dir != Sink {
		return nil, fmt.Errorf("%w: %s has no request %v pads", ErrNoFreePad, a.name, dir)
	}
	a.collect.Lock()
	name := fmt.Sprintf("sink_%d", a.padCounter)
	a.padCounter++
	a.collect.Unlock()
	p := NewSinkPad(name, Audio(Range{}, Range{}), a.chain)
	p.request = true
	a.AddPad(p)
	return p, nil
}

// ReleasePad removes a sink pad.
func (a *Adder) ReleasePad(p *Pad) {
	a.RemovePad(p)
	a.collect.Lock()
	delete(a.pending, p)
	a.collect.Unlock()
}

// QueryCaps requires all sink pads to have the same format.
func (a *Adder) QueryCaps(p *Pad, q *Query) (Caps, bool) {
	caps, ok := q.Proxy(a, p)
	if !ok || p.dir == Src {
		return caps, ok
	}
	for _, sp := range SinkPads(a) {
		if sp == p {
			continue
		}
		c, ok := q.Peer(sp)
		if !ok {
			return Caps{}, false
		}
		if caps, ok = caps.Intersect(c); !ok {
			return Caps{}, false
		}
	}
	return caps, true
}

func (a *Adder) chain(p *Pad, b Buffer) error {
	if err := a.ApplyParams(); err != nil {
		return err
	}
	a.collect.Lock()
	var out []Buffer
	if _, ok := a.pending[p]; ok {
		out = append(out, a.mix())
	}
	a.pending[p] = b
	if len(a.pending) >= a.linkedInputs() {
		out = append(out, a.mix())
	}
	a.collect.Unlock()

	a.push.Lock()
	defer a.push.Unlock()
	for _, mixed := range out {
		if err := a.src.Push(mixed); err != nil {
			return err
		}
	}
	return nil
}

// mix pending buffers and reset them. Must be called with collect lock.
func (a *Adder) mix() Buffer {
	buffers := make([]signal.Float64, 0, len(a.pending))
	var rate int
	for p, b := range a.pending {
		buffers = append(buffers, b.Signal)
		rate = b.SampleRate
		delete(a.pending, p)
	}
	return Buffer{Signal: signal.Mix(buffers...), SampleRate: rate}
}

func (a *Adder) linkedInputs() int {
	var n int
	for _, p := range SinkPads(a) {
		if p.IsLinked() {
			n++
		}
	}
	return n
}
