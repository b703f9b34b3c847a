// Package portaudio provides portaudiosink element that plays audio
// with the default output device.
package portaudio

import (
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/buzztrax/core/media"
	"github.com/buzztrax/core/signal"
)

// Factory is the name of the portaudio sink factory.
const Factory = "portaudiosink"

func init() {
	media.Register(Factory, media.KlassAudioSink, media.RankPrimary, func(name string) media.Element {
		return NewSink(name)
	})
}

// Sink represents portaudio sink which allows to play audio using default
// device. Stream is opened with the format of the first buffer.
type Sink struct {
	media.Base
	sink *media.Pad

	mu          sync.Mutex
	stream      *portaudio.Stream
	buf         []float32
	pending     []float32
	numChannels int
}

// NewSink returns new initialized sink.
func NewSink(name string) *Sink {
	s := Sink{}
	s.Init(&s, name, Factory, media.KlassAudioSink)
	s.sink = media.NewSinkPad("sink", media.Audio(media.Between(8000, 192000), media.Between(1, 2)), s.chain)
	s.AddPad(s.sink)
	return &s
}

// ChangeState initializes and terminates portaudio.
func (s *Sink) ChangeState(t media.Transition) error {
	switch {
	case t.From == media.Null && t.To == media.Ready:
		return portaudio.Initialize()
	case t.From == media.Paused && t.To == media.Ready:
		return s.closeStream()
	case t.From == media.Ready && t.To == media.Null:
		return portaudio.Terminate()
	}
	return nil
}

func (s *Sink) closeStream() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	err := s.stream.Stop()
	if cerr := s.stream.Close(); err == nil {
		err = cerr
	}
	s.stream, s.buf, s.pending = nil, nil, nil
	return err
}

// chain writes the buffer of data to portaudio stream. Data is written
// in chunks of the stream buffer size.
func (s *Sink) chain(_ *media.Pad, b media.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		s.numChannels = b.Signal.NumChannels()
		s.buf = make([]float32, b.Signal.Size()*s.numChannels)
		stream, err := portaudio.OpenDefaultStream(0, s.numChannels, float64(b.SampleRate), b.Signal.Size(), &s.buf)
		if err != nil {
			return err
		}
		if err := stream.Start(); err != nil {
			stream.Close()
			return err
		}
		s.stream = stream
	}
	s.pending = append(s.pending, interleave(b.Signal.Remap(s.numChannels))...)
	for len(s.pending) >= len(s.buf) {
		copy(s.buf, s.pending)
		s.pending = s.pending[len(s.buf):]
		if err := s.stream.Write(); err != nil {
			return err
		}
	}
	return nil
}

func interleave(floats signal.Float64) []float32 {
	result := make([]float32, floats.Size()*floats.NumChannels())
	floats.AsInterFloat32(result)
	return result
}
