package media

// Convert remaps channels to the layout accepted downstream.
type Convert struct {
	Base
	sink *Pad
	src  *Pad
}

// NewConvert creates a new channel converter.
func NewConvert(name string) *Convert {
	c := Convert{}
	c.Init(&c, name, "audioconvert", KlassConverter)
	c.sink = NewSinkPad("sink", Audio(Range{}, Range{}), c.chain)
	c.src = NewSrcPad("src", Audio(Range{}, Range{}))
	c.AddPad(c.sink)
	c.AddPad(c.src)
	return &c
}

// QueryCaps frees channels of the other side.
func (c *Convert) QueryCaps(p *Pad, q *Query) (Caps, bool) {
	caps, ok := q.Proxy(c, p)
	caps.Channels = Range{}
	return caps, ok
}

func (c *Convert) chain(_ *Pad, b Buffer) error {
	caps, ok := c.src.PeerCaps()
	if !ok {
		return ErrNoFormat
	}
	numChannels := caps.Channels.fixate(b.Signal.NumChannels())
	return c.src.Push(Buffer{
		Signal:     b.Signal.Remap(numChannels),
		SampleRate: b.SampleRate,
	})
}

// Resample converts sample rate to the one accepted downstream.
type Resample struct {
	Base
	sink *Pad
	src  *Pad
}

// NewResample creates a new sample rate converter.
func NewResample(name string) *Resample {
	r := Resample{}
	r.Init(&r, name, "audioresample", KlassConverter)
	r.sink = NewSinkPad("sink", Audio(Range{}, Range{}), r.chain)
	r.src = NewSrcPad("src", Audio(Range{}, Range{}))
	r.AddPad(r.sink)
	r.AddPad(r.src)
	return &r
}

// QueryCaps frees sample rate of the other side.
func (r *Resample) QueryCaps(p *Pad, q *Query) (Caps, bool) {
	caps, ok := q.Proxy(r, p)
	caps.Rate = Range{}
	return caps, ok
}

func (r *Resample) chain(_ *Pad, b Buffer) error {
	caps, ok := r.src.PeerCaps()
	if !ok {
		return ErrNoFormat
	}
	rate := caps.Rate.fixate(b.SampleRate)
	return r.src.Push(Buffer{
		Signal:     b.Signal.Resample(b.SampleRate, rate),
		SampleRate: rate,
	})
}
