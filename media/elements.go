package media

func init() {
	Register("audiotestsrc", KlassAudioSource, RankNone, func(name string) Element { return NewTestSrc(name) })
	Register("volume", KlassEffect, RankNone, func(name string) Element { return NewVolume(name) })
	Register("audioconvert", KlassConverter, RankNone, func(name string) Element { return NewConvert(name) })
	Register("audioresample", KlassConverter, RankNone, func(name string) Element { return NewResample(name) })
	Register("adder", KlassGeneric, RankNone, func(name string) Element { return NewAdder(name) })
	Register("tee", KlassGeneric, RankNone, func(name string) Element { return NewTee(name) })
	Register("fakesink", "Sink", RankNone, func(name string) Element { return NewFakeSink(name) })
}
