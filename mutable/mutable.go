// Package mutable allows the control goroutine to change components that
// are owned by a streaming goroutine. Changes are wrapped into mutations
// and applied by the owner between two buffers.
package mutable

import (
	"sync"

	"github.com/rs/xid"
)

// zero value for context is immutable.
var immutable = Context{}

type (
	// Context can be embedded to make structure behaviour mutable.
	Context xid.ID

	// Mutation is mutator function associated with a certain mutable context.
	Mutation struct {
		Context
		mutator MutatorFunc
	}

	// Mutations is a set of Mutations mapped their Mutables.
	Mutations map[Context][]MutatorFunc

	// MutatorFunc mutates the object.
	MutatorFunc func() error

	// Inbox collects mutations until the owning goroutine takes them.
	Inbox struct {
		mu      sync.Mutex
		pending Mutations
	}
)

// Mutable returns new mutable context.
func Mutable() Context {
	return Context(xid.New())
}

// Immutable returns immutable context.
func Immutable() Context {
	return immutable
}

// Mutate associates provided mutator with mutable and return mutation.
func (c Context) Mutate(m MutatorFunc) Mutation {
	if c == immutable {
		panic("mutate immutable")
	}
	return Mutation{
		Context: c,
		mutator: m,
	}
}

// IsMutable returns true if object is mutable.
func (c Context) IsMutable() bool {
	return c != immutable
}

func (c Context) String() string {
	return xid.ID(c).String()
}

// Apply mutator function.
func (m Mutation) Apply() error {
	return m.mutator()
}

// Put mutation to the set of Mutations.
func (ms Mutations) Put(m Mutation) Mutations {
	if m.Context == immutable {
		return ms
	}
	if ms == nil {
		return map[Context][]MutatorFunc{m.Context: {m.mutator}}
	}
	ms[m.Context] = append(ms[m.Context], m.mutator)
	return ms
}

// ApplyTo consumes Mutations defined for consumer in this set. The first
// failed mutator stops the application and its error is returned.
func (ms Mutations) ApplyTo(id Context) error {
	if ms == nil || id == immutable {
		return nil
	}
	fns, ok := ms[id]
	if !ok {
		return nil
	}
	delete(ms, id)
	for _, fn := range fns {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

// Append mutation set to another set.
func (ms Mutations) Append(source Mutations) Mutations {
	if ms == nil {
		ms = make(map[Context][]MutatorFunc)
	}
	for id, fns := range source {
		ms[id] = append(ms[id], fns...)
	}
	return ms
}

// Detach mutations for provided context.
func (ms Mutations) Detach(id Context) Mutations {
	if ms == nil {
		return nil
	}
	if v, ok := ms[id]; ok {
		d := map[Context][]MutatorFunc{id: v}
		delete(ms, id)
		return d
	}
	return nil
}

// Put adds mutations to the inbox. Safe for concurrent use.
func (in *Inbox) Put(mutations ...Mutation) {
	in.mu.Lock()
	defer in.mu.Unlock()
	for _, m := range mutations {
		in.pending = in.pending.Put(m)
	}
}

// Take returns all pending mutations and leaves the inbox empty.
func (in *Inbox) Take() Mutations {
	in.mu.Lock()
	defer in.mu.Unlock()
	ms := in.pending
	in.pending = nil
	return ms
}
