// Package mp3 provides lamesink element that encodes audio into mp3 file.
package mp3

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/viert/lame"

	"github.com/buzztrax/core/media"
	"github.com/buzztrax/core/signal"
)

// Factory is the name of the mp3 sink factory.
const Factory = "lamesink"

const (
	// DefaultBitRate is used if bit rate is not set.
	DefaultBitRate = 192
	// DefaultQuality is used if quality is not set.
	DefaultQuality = 2
)

var (
	// ErrFormatChanged is returned when buffer format differs from the
	// format of the encoder.
	ErrFormatChanged = errors.New("format changed while recording")
	// ErrNoLocation is returned when sink has no file location.
	ErrNoLocation = errors.New("location is not set")
)

func init() {
	media.Register(Factory, media.KlassFileSink, media.RankSecondary, func(name string) media.Element {
		return NewSink(name)
	})
}

// Sink allows to send data to mp3 files.
type Sink struct {
	media.Base
	sink *media.Pad

	mu       sync.Mutex
	location string
	bitRate  int
	quality  int
	format   audio.Format
	f        *os.File
	wr       *lame.LameWriter
}

// NewSink creates new mp3 sink.
func NewSink(name string) *Sink {
	s := Sink{
		bitRate: DefaultBitRate,
		quality: DefaultQuality,
	}
	s.Init(&s, name, Factory, media.KlassFileSink)
	s.sink = media.NewSinkPad("sink", media.Audio(media.Between(8000, 48000), media.Between(1, 2)), s.chain)
	s.AddPad(s.sink)
	return &s
}

// SetLocation sets path of the output file.
func (s *Sink) SetLocation(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = path
}

// SetBitRate sets encoder bit rate in kbps.
func (s *Sink) SetBitRate(bitRate int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bitRate = bitRate
}

// SetQuality sets encoder quality, 0 is the best and 9 is the worst.
func (s *Sink) SetQuality(quality int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quality = quality
}

// ChangeState flushes the encoder when stream stops.
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
	if s.wr == nil {
		return nil
	}
	err := s.wr.Close()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	s.wr, s.f = nil, nil
	return err
}

func (s *Sink) chain(_ *media.Pad, b media.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	format := b.Format()
	if s.wr == nil {
		f, err := os.Create(s.location)
		if err != nil {
			return err
		}
		s.f = f
		s.format = format
		s.wr = lame.NewWriter(f)
		s.wr.Encoder.SetBitrate(s.bitRate)
		s.wr.Encoder.SetQuality(s.quality)
		s.wr.Encoder.SetNumChannels(format.NumChannels)
		s.wr.Encoder.SetInSamplerate(format.SampleRate)
		s.wr.Encoder.SetMode(lame.JOINT_STEREO)
		s.wr.Encoder.SetVBR(lame.VBR_RH)
		s.wr.Encoder.InitParams()
	}
	if s.format != format {
		return fmt.Errorf("%w: %v to %v", ErrFormatChanged, s.format, format)
	}
	buf := new(bytes.Buffer)
	ints := b.Signal.AsInterInt(signal.BitDepth16)
	for i := range ints {
		if err := binary.Write(buf, binary.LittleEndian, int16(ints[i])); err != nil {
			return err
		}
	}
	_, err := s.wr.Write(buf.Bytes())
	return err
}
