package wire_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buzztrax/core/machine"
	"github.com/buzztrax/core/media"
	"github.com/buzztrax/core/mock"
	"github.com/buzztrax/core/wire"
)

var (
	mono     = media.Audio(media.Fixed(44100), media.Fixed(1))
	stereo   = media.Audio(media.Fixed(44100), media.Fixed(2))
	lowRate  = media.Audio(media.Fixed(22050), media.Fixed(2))
	lowMono  = media.Audio(media.Fixed(22050), media.Fixed(1))
	midiCaps = media.Caps{MediaType: "audio/x-midi"}
)

func newMachine(t *testing.T, id string, unit media.Element) *machine.Machine {
	t.Helper()
	m, err := machine.New(id, unit)
	require.NoError(t, err)
	return m
}

func TestLinkAlgorithm(t *testing.T) {
	tests := []struct {
		description string
		src         media.Caps
		dst         media.Caps
		adapters    []string
	}{
		{
			description: "direct",
			src:         stereo,
			dst:         stereo,
		},
		{
			description: "converter",
			src:         mono,
			dst:         stereo,
			adapters:    []string{wire.Converter},
		},
		{
			description: "scaler",
			src:         lowRate,
			dst:         stereo,
			adapters:    []string{wire.Scaler},
		},
		{
			description: "converter and scaler",
			src:         lowMono,
			dst:         stereo,
			adapters:    []string{wire.Converter, wire.Scaler},
		},
	}
	for _, test := range tests {
		src := newMachine(t, "src", mock.NewSource("", test.src))
		dst := newMachine(t, "dst", mock.NewSink("", test.dst))
		w := wire.New(src, dst)
		require.NoError(t, w.Link(), test.description)
		assert.True(t, w.Linked(), test.description)
		assert.Equal(t, test.adapters, w.Adapters(), test.description)

		from, to := w.Endpoints()
		assert.Equal(t, src.Unit(), from, test.description)
		assert.Equal(t, dst.Unit(), to, test.description)
		srcSlot, dstSlot := w.Slots()
		if len(test.adapters) == 0 {
			assert.Equal(t, src.Unit(), srcSlot, test.description)
			assert.Equal(t, dst.Unit(), dstSlot, test.description)
			assert.True(t, media.Linked(src.Unit(), dst.Unit()), test.description)
		} else {
			assert.Equal(t, test.adapters[0], srcSlot.Factory(), test.description)
			assert.Equal(t, test.adapters[len(test.adapters)-1], dstSlot.Factory(), test.description)
		}
		assert.Len(t, w.Bin().Children(), len(test.adapters), test.description)
	}
}

func TestConverterSlots(t *testing.T) {
	src := newMachine(t, "src", mock.NewSource("", mono))
	dst := newMachine(t, "dst", mock.NewSink("", stereo))
	w := wire.New(src, dst)
	require.NoError(t, w.Link())
	srcSlot, dstSlot := w.Slots()
	assert.Equal(t, srcSlot, dstSlot)
	assert.Equal(t, wire.Converter, srcSlot.Factory())
	assert.NotContains(t, w.Adapters(), wire.Scaler)
}

func TestLinkIncompatible(t *testing.T) {
	src := newMachine(t, "src", mock.NewSource("", midiCaps))
	dst := newMachine(t, "dst", mock.NewSink("", stereo))
	w := wire.New(src, dst)
	assert.ErrorIs(t, w.Link(), wire.ErrLinkIncompatible)
	assert.False(t, w.Linked())
	assert.Empty(t, w.Bin().Children())
	assert.Empty(t, w.Adapters())
	assert.False(t, src.Unit().Pad("src").IsLinked())
	assert.False(t, dst.Unit().Pad("sink").IsLinked())
}

func TestUnlinkIdempotent(t *testing.T) {
	src := newMachine(t, "src", mock.NewSource("", mono))
	dst := newMachine(t, "dst", mock.NewSink("", stereo))
	w := wire.New(src, dst)
	require.NoError(t, w.Link())

	require.NoError(t, w.Unlink())
	assert.False(t, w.Linked())
	assert.Empty(t, w.Bin().Children())
	assert.False(t, src.Unit().Pad("src").IsLinked())

	require.NoError(t, w.Unlink())
	assert.False(t, w.Linked())
	assert.Empty(t, w.Bin().Children())
	from, to := w.Endpoints()
	assert.Nil(t, from)
	assert.Nil(t, to)

	// wire can be linked again.
	require.NoError(t, w.Link())
	assert.Equal(t, []string{wire.Converter}, w.Adapters())
}

func TestReconnect(t *testing.T) {
	src := newMachine(t, "src", mock.NewSource("", stereo))
	fx := newMachine(t, "fx", mock.NewProcessor("", stereo))
	w := wire.New(src, fx)
	require.NoError(t, w.Link())
	_, to := w.Endpoints()
	assert.Equal(t, fx.Unit(), to)

	require.NoError(t, w.Unlink())
	require.NoError(t, fx.ActivateAdder())
	require.NoError(t, w.Reconnect())
	_, to = w.Endpoints()
	assert.Equal(t, fx.EffectiveSink(), to)
	assert.NotEqual(t, fx.Unit(), to)
	assert.True(t, media.Linked(src.Unit(), fx.EffectiveSink()))
}

func TestSyncState(t *testing.T) {
	src := newMachine(t, "src", mock.NewSource("", mono))
	dst := newMachine(t, "dst", mock.NewSink("", stereo))
	w := wire.New(src, dst)
	pipeline := media.NewBin("")
	require.NoError(t, pipeline.Add(src.Bin(), dst.Bin(), w.Bin()))
	require.NoError(t, pipeline.SetState(media.Paused))

	require.NoError(t, w.Link())
	adapter, _ := w.Slots()
	assert.Equal(t, media.Null, adapter.State())
	require.NoError(t, w.SyncState())
	assert.Equal(t, media.Paused, adapter.State())
	require.NoError(t, pipeline.SetState(media.Null))
}

func TestLinkCleanupError(t *testing.T) {
	converter, ok := media.Lookup(wire.Converter)
	require.True(t, ok)
	defer media.Register(converter.Name, converter.Klass, converter.Rank, converter.New)

	errStop := errors.New("adapter can't stop")
	media.Register(wire.Converter, media.KlassConverter, media.RankPrimary, func(name string) media.Element {
		p := mock.NewProcessor(name, stereo)
		_ = p.SetState(media.Ready)
		p.ErrorOnChange = errStop
		return p
	})

	src := newMachine(t, "src", mock.NewSource("", midiCaps))
	dst := newMachine(t, "dst", mock.NewSink("", stereo))
	w := wire.New(src, dst)
	err := w.Link()
	assert.ErrorIs(t, err, wire.ErrLinkIncompatible)
	assert.ErrorIs(t, err, media.ErrStateChange)
	assert.Contains(t, err.Error(), errStop.Error())
	assert.False(t, w.Linked())
	assert.Empty(t, w.Bin().Children())
}
