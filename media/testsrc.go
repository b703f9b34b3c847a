package media

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/mattetti/audio/generator"

	"github.com/buzztrax/core/metric"
	"github.com/buzztrax/core/signal"
)

// DefaultBufferSize is the number of samples per channel in buffers
// produced by sources.
const DefaultBufferSize = 512

// TestSrc produces a sine tone. In live mode buffers are produced at the
// pace of the sample rate.
type TestSrc struct {
	Base
	src        *Pad
	task       Task
	bufferSize int
	preferred  audio.Format
	live       bool
	dropped    atomic.Int64
	buffers    atomic.Int64
}

// NewTestSrc creates a new sine source.
func NewTestSrc(name string) *TestSrc {
	s := TestSrc{
		bufferSize: DefaultBufferSize,
		preferred: audio.Format{
			SampleRate:  DefaultSampleRate,
			NumChannels: DefaultChannels,
		},
		live: true,
	}
	s.Init(&s, name, "audiotestsrc", KlassAudioSource)
	s.src = NewSrcPad("src", Audio(Between(8000, 192000), Between(1, 8)))
	s.AddPad(s.src)
	s.AddParam(Param{Name: "freq", Min: 0, Max: 20000, Default: 440})
	s.AddParam(Param{Name: "volume", Min: 0, Max: 1, Default: 0.8})
	return &s
}

// SetBufferSize sets number of samples per buffer. Takes effect on the
// next start.
func (s *TestSrc) SetBufferSize(size int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bufferSize = size
}

// SetFormat sets preferred output format.
func (s *TestSrc) SetFormat(f audio.Format) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferred = f
}

// SetLive enables or disables real-time pacing.
func (s *TestSrc) SetLive(live bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = live
}

// Dropped returns the number of buffers that couldn't be delivered.
func (s *TestSrc) Dropped() int64 {
	return s.dropped.Load()
}

// Buffers returns the number of delivered buffers.
func (s *TestSrc) Buffers() int64 {
	return s.buffers.Load()
}

// ChangeState starts and stops the streaming task.
func (s *TestSrc) ChangeState(t Transition) error {
	switch {
	case t.From == Paused && t.To == Playing:
		s.task.Start(s.loop)
	case t.From == Playing && t.To == Paused:
		// flushing releases the task if it's parked on a blocked pad.
		s.task.Stop(func() { s.src.SetActive(false) })
		s.src.SetActive(true)
	}
	return nil
}

func (s *TestSrc) loop(ctx context.Context) {
	s.mu.Lock()
	size, preferred, live := s.bufferSize, s.preferred, s.live
	s.mu.Unlock()

	format := s.negotiate(preferred)
	meter := metric.Meter(s.factory, format.SampleRate)
	osc := generator.NewOsc(generator.WaveSine, s.value("freq"), format.SampleRate)
	var tick <-chan time.Time
	if live {
		ticker := time.NewTicker(signal.DurationOf(format.SampleRate, int64(size)))
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		if live {
			select {
			case <-ctx.Done():
				return
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return
		}
		if err := s.ApplyParams(); err != nil {
			s.PostError(err)
			return
		}
		if f := s.negotiate(preferred); f != format {
			format = f
			osc = generator.NewOsc(generator.WaveSine, s.value("freq"), format.SampleRate)
		}
		osc.SetFreq(s.value("freq"))
		osc.Amplitude = s.value("volume")
		buf := signal.EmptyFloat64(format.NumChannels, size)
		for i := 0; i < size; i++ {
			v := osc.Sample()
			for c := range buf {
				buf[c][i] = v
			}
		}
		err := s.src.Push(Buffer{Signal: buf, SampleRate: format.SampleRate})
		switch {
		case err == nil:
			s.buffers.Add(1)
			meter(int64(size))
		case ctx.Err() != nil:
			return
		case errors.Is(err, ErrNotLinked), errors.Is(err, ErrFlushing):
			s.dropped.Add(1)
			metric.Drop(s.factory)
		default:
			s.PostError(err)
			return
		}
	}
}

// negotiate returns the format closest to preferred one that downstream
// accepts.
func (s *TestSrc) negotiate(preferred audio.Format) audio.Format {
	caps, ok := s.src.PeerCaps()
	if !ok {
		return preferred
	}
	if caps, ok = caps.Intersect(s.src.template); !ok {
		return preferred
	}
	return caps.Fixate(preferred)
}
