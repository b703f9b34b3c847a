package media

import (
	"sync"
	"sync/atomic"

	"github.com/go-audio/audio"

	"github.com/buzztrax/core/metric"
)

// FakeSink consumes buffers and counts them.
type FakeSink struct {
	Base
	sink    *Pad
	buffers atomic.Int64
	samples atomic.Int64

	mu     sync.Mutex
	format audio.Format
	meter  metric.MeasureFunc
}

// NewFakeSink creates a new sink that accepts any audio.
func NewFakeSink(name string) *FakeSink {
	return NewFakeSinkWithCaps(name, Audio(Range{}, Range{}))
}

// NewFakeSinkWithCaps creates a new sink that accepts only given caps.
func NewFakeSinkWithCaps(name string, caps Caps) *FakeSink {
	s := FakeSink{}
	s.Init(&s, name, "fakesink", "Sink")
	s.sink = NewSinkPad("sink", caps, s.chain)
	s.AddPad(s.sink)
	return &s
}

// Buffers returns number of received buffers.
func (s *FakeSink) Buffers() int64 {
	return s.buffers.Load()
}

// Samples returns number of received samples per channel.
func (s *FakeSink) Samples() int64 {
	return s.samples.Load()
}

// Format returns format of the last received buffer.
func (s *FakeSink) Format() audio.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

func (s *FakeSink) chain(_ *Pad, b Buffer) error {
	size := int64(b.Signal.Size())
	s.mu.Lock()
	s.format = b.Format()
	if s.meter == nil {
		s.meter = metric.Meter(s.factory, b.SampleRate)
	}
	s.meter(size)
	s.mu.Unlock()
	s.buffers.Add(1)
	s.samples.Add(size)
	return nil
}
