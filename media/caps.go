package media

import (
	"fmt"

	"github.com/go-audio/audio"
)

const (
	// AudioRaw is the media type of non-interleaved float audio.
	AudioRaw = "audio/x-raw-float"
	// DefaultSampleRate is used when caps don't restrict the rate.
	DefaultSampleRate = 44100
	// DefaultChannels is used when caps don't restrict channels.
	DefaultChannels = 2
)

// Range is an inclusive range of integer values. Zero value accepts
// any value.
type Range struct {
	Min int
	Max int
}

// Fixed returns a range with a single value.
func Fixed(v int) Range {
	return Range{Min: v, Max: v}
}

// Between returns a range of values.
func Between(min, max int) Range {
	return Range{Min: min, Max: max}
}

// Any returns true if range doesn't restrict values.
func (r Range) Any() bool {
	return r.Min == 0 && r.Max == 0
}

// Contains checks if value is in range.
func (r Range) Contains(v int) bool {
	return r.Any() || (v >= r.Min && v <= r.Max)
}

// Intersect returns common part of two ranges. False is returned if
// ranges don't overlap.
func (r Range) Intersect(o Range) (Range, bool) {
	switch {
	case r.Any():
		return o, true
	case o.Any():
		return r, true
	}
	result := Range{Min: r.Min, Max: r.Max}
	if o.Min > result.Min {
		result.Min = o.Min
	}
	if o.Max < result.Max {
		result.Max = o.Max
	}
	if result.Min > result.Max {
		return Range{}, false
	}
	return result, true
}

// fixate picks the value closest to preferred.
func (r Range) fixate(preferred int) int {
	switch {
	case r.Any(), r.Contains(preferred):
		return preferred
	case preferred < r.Min:
		return r.Min
	}
	return r.Max
}

func (r Range) String() string {
	switch {
	case r.Any():
		return "any"
	case r.Min == r.Max:
		return fmt.Sprintf("%d", r.Min)
	}
	return fmt.Sprintf("[%d, %d]", r.Min, r.Max)
}

// Caps describe the media a pad can handle. Empty media type accepts any
// media.
type Caps struct {
	MediaType string
	Rate      Range
	Channels  Range
}

// Any caps don't restrict anything.
var Any = Caps{}

// Audio returns raw audio caps.
func Audio(rate, channels Range) Caps {
	return Caps{
		MediaType: AudioRaw,
		Rate:      rate,
		Channels:  channels,
	}
}

// Intersect returns caps acceptable by both sides. False is returned if
// caps are incompatible.
func (c Caps) Intersect(o Caps) (Caps, bool) {
	result := c
	switch {
	case c.MediaType == "":
		result.MediaType = o.MediaType
	case o.MediaType != "" && o.MediaType != c.MediaType:
		return Caps{}, false
	}
	var ok bool
	if result.Rate, ok = c.Rate.Intersect(o.Rate); !ok {
		return Caps{}, false
	}
	if result.Channels, ok = c.Channels.Intersect(o.Channels); !ok {
		return Caps{}, false
	}
	return result, true
}

// Accepts returns true if format satisfies the caps.
func (c Caps) Accepts(f audio.Format) bool {
	return c.Rate.Contains(f.SampleRate) && c.Channels.Contains(f.NumChannels)
}

// Fixate returns the format closest to preferred one.
func (c Caps) Fixate(preferred audio.Format) audio.Format {
	if preferred.SampleRate == 0 {
		preferred.SampleRate = DefaultSampleRate
	}
	if preferred.NumChannels == 0 {
		preferred.NumChannels = DefaultChannels
	}
	return audio.Format{
		SampleRate:  c.Rate.fixate(preferred.SampleRate),
		NumChannels: c.Channels.fixate(preferred.NumChannels),
	}
}

func (c Caps) String() string {
	mediaType := c.MediaType
	if mediaType == "" {
		mediaType = "any"
	}
	return fmt.Sprintf("%s, rate=%v, channels=%v", mediaType, c.Rate, c.Channels)
}
