package settings_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buzztrax/core/settings"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
audiosink: audioconvert ! portaudiosink
record:
  format: mp3
  location: out.mp3
block-timeout: 500ms
`), 0o644))

	s, err := settings.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "audioconvert ! portaudiosink", s.AudioSink)
	assert.Equal(t, settings.FormatMp3, s.Record.Format)
	assert.Equal(t, "out.mp3", s.Record.Location)
	assert.Equal(t, 500*time.Millisecond, s.BlockTimeout)
	assert.Equal(t, 512, s.BufferSize)
}

func TestLoadMissing(t *testing.T) {
	s, err := settings.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, settings.Default(), s)
}

func TestEnv(t *testing.T) {
	t.Setenv(settings.AudioSinkEnv, "fakesink")
	t.Setenv(settings.SystemAudioSinkEnv, "portaudiosink")
	s, err := settings.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "fakesink", s.AudioSink)
	assert.Equal(t, "portaudiosink", s.SystemAudioSink)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		description string
		mutate      func(*settings.Settings)
	}{
		{description: "timeout", mutate: func(s *settings.Settings) { s.BlockTimeout = 0 }},
		{description: "buffer size", mutate: func(s *settings.Settings) { s.BufferSize = -1 }},
		{description: "sample rate", mutate: func(s *settings.Settings) { s.SampleRate = 0 }},
		{description: "channels", mutate: func(s *settings.Settings) { s.Channels = 0 }},
		{description: "format", mutate: func(s *settings.Settings) { s.Record.Format = "ogg" }},
	}
	for _, test := range tests {
		s := settings.Default()
		test.mutate(&s)
		assert.ErrorIs(t, s.Validate(), settings.ErrInvalid, test.description)
	}
	assert.NoError(t, settings.Default().Validate())
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s := settings.Default()
	s.AudioSink = "portaudiosink"
	require.NoError(t, s.Save(path))
	loaded, err := settings.Load(path)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}
