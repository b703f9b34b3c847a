// Package wav provides wavsink element that records audio into wav file.
package wav

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/buzztrax/core/media"
	"github.com/buzztrax/core/signal"
)

// Factory is the name of the wav sink factory.
const Factory = "wavsink"

var (
	// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
	ErrUnsupportedBitDepth = errors.New("only 16 and 32 bit depth is supported")
	// ErrFormatChanged is returned when buffer format differs from the
	// format of the file.
	ErrFormatChanged = errors.New("format changed while recording")
	// ErrNoLocation is returned when sink has no file location.
	ErrNoLocation = errors.New("location is not set")
)

const pcmFormat = 1

func init() {
	media.Register(Factory, media.KlassFileSink, media.RankSecondary, func(name string) media.Element {
		return NewSink(name)
	})
}

// Sink saves audio to wav file. File is created with the first buffer
// and finalized when sink goes back to Ready state.
type Sink struct {
	media.Base
	sink *media.Pad

	mu       sync.Mutex
	location string
	bitDepth signal.BitDepth
	file     *os.File
	encoder  *wav.Encoder
	ib       *audio.IntBuffer
}

// NewSink creates new wav sink with 16 bit depth.
func NewSink(name string) *Sink {
	s := Sink{
		bitDepth: signal.BitDepth16,
	}
	s.Init(&s, name, Factory, media.KlassFileSink)
	s.sink = media.NewSinkPad("sink", media.Audio(media.Range{}, media.Between(1, 8)), s.chain)
	s.AddPad(s.sink)
	return &s
}

// SetLocation sets path of the output file.
func (s *Sink) SetLocation(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = path
}

// SetBitDepth sets bit depth of the output file.
func (s *Sink) SetBitDepth(bitDepth signal.BitDepth) error {
	if bitDepth != signal.BitDepth16 && bitDepth != signal.BitDepth32 {
		return ErrUnsupportedBitDepth
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bitDepth = bitDepth
	return nil
}

// ChangeState finalizes the file when stream stops.
func (s *Sink) ChangeState(t media.Transition) error {
	switch {
	case t.From == media.Null && t.To == media.Ready:
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.location == "" {
			return ErrNoLocation
		}
	case t.From == media.Paused && t.To == media.Ready:
		return s.flush()
	}
	return nil
}

func (s *Sink) flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.encoder == nil {
		return nil
	}
	err := s.encoder.Close()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	s.encoder, s.file, s.ib = nil, nil, nil
	return err
}

func (s *Sink) chain(_ *media.Pad, b media.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	format := b.Format()
	if s.encoder == nil {
		f, err := os.Create(s.location)
		if err != nil {
			return err
		}
		s.file = f
		s.encoder = wav.NewEncoder(f, format.SampleRate, int(s.bitDepth), format.NumChannels, pcmFormat)
		s.ib = &audio.IntBuffer{
			Format:         &format,
			SourceBitDepth: int(s.bitDepth),
		}
	}
	if *s.ib.Format != format {
		return fmt.Errorf("%w: %v to %v", ErrFormatChanged, *s.ib.Format, format)
	}
	s.ib.Data = b.Signal.AsInterInt(s.bitDepth)
	return s.encoder.Write(s.ib)
}
