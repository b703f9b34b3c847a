// Package mock provides mocks of media elements with configurable caps
// and allows to execute integration tests.
package mock

import (
	"sync"

	"github.com/buzztrax/core/media"
)

// Source mocks a source element. It has no streaming task, buffers are
// pushed with Push.
type Source struct {
	media.Base
	Hooks
	counter
	src *media.Pad
}

// NewSource creates a source with provided src pad caps.
func NewSource(name string, caps media.Caps) *Source {
	m := Source{}
	m.Init(&m, name, "mocksrc", media.KlassAudioSource)
	m.src = media.NewSrcPad("src", caps)
	m.AddPad(m.src)
	return &m
}

// Push sends the buffer downstream.
func (m *Source) Push(b media.Buffer) error {
	if err := m.src.Push(b); err != nil {
		return err
	}
	m.advance(b.Signal.Size())
	return nil
}

// ChangeState implements media.StateChanger.
func (m *Source) ChangeState(t media.Transition) error {
	return m.change(t)
}

// Processor mocks an effect element that passes buffers through.
type Processor struct {
	media.Base
	Hooks
	counter
	ErrorOnCall error
	src         *media.Pad
}

// NewProcessor creates a processor with provided caps on both pads.
func NewProcessor(name string, caps media.Caps) *Processor {
	m := Processor{}
	m.Init(&m, name, "mockfx", media.KlassEffect)
	m.AddPad(media.NewSinkPad("sink", caps, m.chain))
	m.src = media.NewSrcPad("src", caps)
	m.AddPad(m.src)
	return &m
}

func (m *Processor) chain(_ *media.Pad, b media.Buffer) error {
	if m.ErrorOnCall != nil {
		return m.ErrorOnCall
	}
	m.advance(b.Signal.Size())
	return m.src.Push(b)
}

// ChangeState implements media.StateChanger.
func (m *Processor) ChangeState(t media.Transition) error {
	return m.change(t)
}

// Sink mocks a sink element.
type Sink struct {
	media.Base
	Hooks
	counter
	ErrorOnCall error
}

// NewSink creates a sink with provided sink pad caps.
func NewSink(name string, caps media.Caps) *Sink {
	m := Sink{}
	m.Init(&m, name, "mocksink", media.KlassAudioSink)
	m.AddPad(media.NewSinkPad("sink", caps, m.chain))
	return &m
}

func (m *Sink) chain(_ *media.Pad, b media.Buffer) error {
	if m.ErrorOnCall != nil {
		return m.ErrorOnCall
	}
	m.advance(b.Signal.Size())
	return nil
}

// ChangeState implements media.StateChanger.
func (m *Sink) ChangeState(t media.Transition) error {
	return m.change(t)
}

// RegisterSink registers a factory of mock sinks.
func RegisterSink(factory, klass string, rank int, caps media.Caps) {
	media.Register(factory, klass, rank, func(name string) media.Element {
		return NewSink(name, caps)
	})
}

// Hooks allows to mock state changes.
type Hooks struct {
	mu          sync.Mutex
	transitions []media.Transition

	ErrorOnChange error
}

func (h *Hooks) change(t media.Transition) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ErrorOnChange != nil {
		return h.ErrorOnChange
	}
	h.transitions = append(h.transitions, t)
	return nil
}

// Transitions returns successful state changes.
func (h *Hooks) Transitions() []media.Transition {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]media.Transition(nil), h.transitions...)
}

type counter struct {
	mu       sync.Mutex
	messages int
	samples  int
}

// Count returns message and samples metrics.
func (c *counter) Count() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages, c.samples
}

// advance counter's metrics.
func (c *counter) advance(size int) {
	c.mu.Lock()
	c.messages++
	c.samples += size
	c.mu.Unlock()
}
