package media

// Volume scales the signal.
type Volume struct {
	Base
	sink *Pad
	src  *Pad
}

// NewVolume creates a new volume element.
func NewVolume(name string) *Volume {
	v := Volume{}
	v.Init(&v, name, "volume", KlassEffect)
	v.sink = NewSinkPad("sink", Audio(Range{}, Range{}), v.chain)
	v.src = NewSrcPad("src", Audio(Range{}, Range{}))
	v.AddPad(v.sink)
	v.AddPad(v.src)
	v.AddParam(Param{Name: "volume", Min: 0, Max: 4, Default: 1})
	return &v
}

func (v *Volume) chain(_ *Pad, b Buffer) error {
	if err := v.ApplyParams(); err != nil {
		return err
	}
	out := b.Signal.Copy()
	out.Scale(v.value("volume"))
	return v.src.Push(Buffer{Signal: out, SampleRate: b.SampleRate})
}
