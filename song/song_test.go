package song_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/buzztrax/core/log"
	"github.com/buzztrax/core/machine"
	"github.com/buzztrax/core/media"
	"github.com/buzztrax/core/mock"
	"github.com/buzztrax/core/settings"
	"github.com/buzztrax/core/song"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newSong(t *testing.T) *song.Song {
	t.Helper()
	cfg := settings.Default()
	cfg.AudioSink = "fakesink"
	cfg.BufferSize = 128
	s, err := song.New("test", song.WithSettings(cfg), song.WithLogger(log.Silent()))
	require.NoError(t, err)
	return s
}

func output(t *testing.T, s *song.Song) *media.FakeSink {
	t.Helper()
	for _, el := range s.Sink().Elements() {
		if fs, ok := el.(*media.FakeSink); ok {
			return fs
		}
	}
	require.Fail(t, "master has no fakesink")
	return nil
}

func TestStates(t *testing.T) {
	s := newSong(t)
	assert.Equal(t, machine.Sink, s.Master().Kind())
	_, err := s.AddMachine("gen", "audiotestsrc", nil)
	require.NoError(t, err)
	_, err = s.Connect("gen", song.MasterID)
	require.NoError(t, err)

	// stopped
	assert.ErrorIs(t, song.Wait(s.Pause()), song.ErrInvalidState)
	assert.ErrorIs(t, song.Wait(s.Resume()), song.ErrInvalidState)
	assert.ErrorIs(t, song.Wait(s.Stop()), song.ErrInvalidState)

	playc := s.Play()
	assert.ErrorIs(t, song.Wait(s.Play()), song.ErrInvalidState)
	assert.ErrorIs(t, song.Wait(s.Resume()), song.ErrInvalidState)
	assert.NoError(t, song.Wait(s.Pause()))
	assert.NoError(t, song.Wait(playc))
	assert.Equal(t, media.Paused, s.Pipeline().State())

	resumec := s.Resume()
	assert.NoError(t, song.Wait(s.Pause()))
	assert.NoError(t, song.Wait(resumec))
	assert.NoError(t, song.Wait(s.Stop()))
	assert.Equal(t, media.Null, s.Pipeline().State())

	assert.NoError(t, song.Wait(s.Close()))
	assert.ErrorIs(t, song.Wait(s.Play()), song.ErrClosed)
}

func TestPlayback(t *testing.T) {
	s := newSong(t)
	_, err := s.AddMachine("", "audiotestsrc", map[string]float64{"freq": 220})
	require.NoError(t, err)
	gen, ok := s.Setup().Machine("audiotestsrc")
	require.True(t, ok)
	v, err := gen.Param("freq")
	require.NoError(t, err)
	assert.Equal(t, 220.0, v)
	_, err = s.Connect("audiotestsrc", song.MasterID)
	require.NoError(t, err)
	_, err = s.Connect("audiotestsrc", "nosuch")
	assert.Error(t, err)

	playc := s.Play()
	out := output(t, s)
	assert.Eventually(t, func() bool { return out.Buffers() > 5 }, 2*time.Second, time.Millisecond)
	assert.NoError(t, song.Wait(s.Stop()))
	assert.NoError(t, song.Wait(playc))
	assert.NoError(t, song.Wait(s.Close()))
}

func TestPlaybackError(t *testing.T) {
	s := newSong(t)
	gen, err := s.AddMachine("gen", "audiotestsrc", nil)
	require.NoError(t, err)
	proc := mock.NewProcessor("fx", media.Any)
	proc.ErrorOnCall = errors.New("fx failed")
	fx, err := machine.New("fx", proc)
	require.NoError(t, err)
	require.NoError(t, s.Setup().AddMachine(fx))
	_, err = s.Setup().Connect(gen, fx)
	require.NoError(t, err)
	_, err = s.Setup().Connect(fx, s.Master())
	require.NoError(t, err)

	err = song.Wait(s.Play())
	assert.ErrorIs(t, err, proc.ErrorOnCall)
	assert.Equal(t, media.Null, s.Pipeline().State())

	// song can be played again.
	proc.ErrorOnCall = nil
	playc := s.Play()
	assert.Eventually(t, func() bool { return output(t, s).Buffers() > 0 }, 2*time.Second, time.Millisecond)
	assert.NoError(t, song.Wait(s.Stop()))
	assert.NoError(t, song.Wait(playc))
	assert.NoError(t, song.Wait(s.Close()))
}
