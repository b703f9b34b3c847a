package mock_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buzztrax/core/media"
	"github.com/buzztrax/core/mock"
	"github.com/buzztrax/core/signal"
)

func TestElements(t *testing.T) {
	caps := media.Audio(media.Fixed(44100), media.Fixed(2))
	src := mock.NewSource("src", caps)
	fx := mock.NewProcessor("fx", caps)
	sink := mock.NewSink("sink", caps)
	bin := media.NewBin("")
	require.NoError(t, bin.Add(src, fx, sink))
	require.NoError(t, media.Link(src, fx))
	require.NoError(t, media.Link(fx, sink))
	require.NoError(t, bin.SetState(media.Paused))

	tests := []struct {
		numChannels int
		bufferSize  int
		messages    int
		samples     int
	}{
		{numChannels: 2, bufferSize: 10, messages: 1, samples: 10},
		{numChannels: 2, bufferSize: 100, messages: 2, samples: 110},
	}
	for _, test := range tests {
		b := media.Buffer{Signal: signal.EmptyFloat64(test.numChannels, test.bufferSize), SampleRate: 44100}
		require.NoError(t, src.Push(b))
		messages, samples := sink.Count()
		assert.Equal(t, test.messages, messages)
		assert.Equal(t, test.samples, samples)
	}
	assert.Equal(t, []media.Transition{{From: media.Null, To: media.Ready}, {From: media.Ready, To: media.Paused}}, fx.Transitions())

	fx.ErrorOnCall = errors.New("fx failed")
	assert.Error(t, src.Push(media.Buffer{Signal: signal.EmptyFloat64(2, 1), SampleRate: 44100}))
	require.NoError(t, bin.SetState(media.Null))
}

func TestErrorOnChange(t *testing.T) {
	sink := mock.NewSink("sink", media.Any)
	sink.ErrorOnChange = errors.New("no device")
	assert.ErrorIs(t, sink.SetState(media.Ready), media.ErrStateChange)
	assert.Empty(t, sink.Transitions())
}
