package wav_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buzztrax/core/media"
	mwav "github.com/buzztrax/core/media/wav"
	"github.com/buzztrax/core/signal"
)

func TestSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	sink := mwav.NewSink("")
	sink.SetLocation(path)
	src := media.NewSrcPad("src", media.Any)
	require.NoError(t, media.LinkPads(src, sink.Pad("sink")))
	src.SetActive(true)
	require.NoError(t, sink.SetState(media.Paused))

	buf := media.Buffer{
		Signal:     signal.Float64{{0.5, -0.5, 0.25, 0}, {0.5, -0.5, 0.25, 0}},
		SampleRate: 22050,
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, src.Push(buf))
	}
	mono := media.Buffer{Signal: signal.Float64{{0}}, SampleRate: 22050}
	assert.ErrorIs(t, src.Push(mono), mwav.ErrFormatChanged)
	require.NoError(t, sink.SetState(media.Null))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	d := wav.NewDecoder(f)
	require.True(t, d.IsValidFile())
	pcm, err := d.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, &audio.Format{NumChannels: 2, SampleRate: 22050}, pcm.Format)
	assert.Len(t, pcm.Data, 80)
}

func TestSinkErrors(t *testing.T) {
	sink := mwav.NewSink("")
	assert.ErrorIs(t, sink.SetBitDepth(signal.BitDepth8), mwav.ErrUnsupportedBitDepth)
	assert.ErrorIs(t, sink.SetState(media.Ready), mwav.ErrNoLocation)

	el, err := media.Make(mwav.Factory, "rec")
	require.NoError(t, err)
	assert.Equal(t, media.KlassFileSink, el.Klass())
}
