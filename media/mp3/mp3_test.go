package mp3_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buzztrax/core/media"
	"github.com/buzztrax/core/media/mp3"
	"github.com/buzztrax/core/signal"
)

func TestSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mp3")
	sink := mp3.NewSink("")
	sink.SetLocation(path)
	sink.SetBitRate(128)
	src := media.NewSrcPad("src", media.Any)
	require.NoError(t, media.LinkPads(src, sink.Pad("sink")))
	src.SetActive(true)
	require.NoError(t, sink.SetState(media.Paused))

	buf := media.Buffer{
		Signal:     signal.EmptyFloat64(2, 1152),
		SampleRate: 44100,
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, src.Push(buf))
	}
	require.NoError(t, sink.SetState(media.Null))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestSinkWithoutLocation(t *testing.T) {
	sink := mp3.NewSink("")
	assert.ErrorIs(t, sink.SetState(media.Ready), mp3.ErrNoLocation)
	assert.Equal(t, media.Null, sink.State())
}
