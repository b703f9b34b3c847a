// Package settings holds buzztrax configuration. Settings are read from
// a YAML file and can be overridden with environment variables.
package settings

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"gopkg.in/yaml.v2"
)

const (
	// AudioSinkEnv overrides the user audio sink.
	AudioSinkEnv = "BUZZTRAX_AUDIOSINK"
	// SystemAudioSinkEnv overrides the system audio sink.
	SystemAudioSinkEnv = "BUZZTRAX_SYSTEM_AUDIOSINK"
)

// Record formats.
const (
	FormatWav = "wav"
	FormatMp3 = "mp3"
)

// ErrInvalid is returned when settings fail validation.
var ErrInvalid = errors.New("invalid settings")

// Settings of the application.
type Settings struct {
	// AudioSink is the user-selected audio sink. It can be a factory name
	// or a pipeline description like "audioconvert ! portaudiosink".
	AudioSink string `yaml:"audiosink"`
	// SystemAudioSink is used when AudioSink is empty.
	SystemAudioSink string        `yaml:"system-audiosink"`
	Record          Record        `yaml:"record"`
	BlockTimeout    time.Duration `yaml:"block-timeout"`
	BufferSize      int           `yaml:"buffer-size"`
	SampleRate      int           `yaml:"sample-rate"`
	Channels        int           `yaml:"channels"`
}

// Record configures recording.
type Record struct {
	Format   string `yaml:"format"`
	Location string `yaml:"location"`
	BitDepth int    `yaml:"bit-depth"`
	BitRate  int    `yaml:"bit-rate"`
}

// Default returns default settings.
func Default() Settings {
	return Settings{
		Record: Record{
			Format:   FormatWav,
			BitDepth: 16,
			BitRate:  192,
		},
		BlockTimeout: 2 * time.Second,
		BufferSize:   512,
		SampleRate:   44100,
		Channels:     2,
	}
}

// Load reads settings from the file. Missing file results in default
// settings. Environment overrides are applied last.
func Load(path string) (Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Settings{}, err
	default:
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	s.ApplyEnv()
	return s, s.Validate()
}

// Save writes settings to the file.
func (s Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Format returns preferred format of generated audio.
func (s Settings) Format() audio.Format {
	return audio.Format{
		SampleRate:  s.SampleRate,
		NumChannels: s.Channels,
	}
}

// ApplyEnv overrides sink names with environment variables.
func (s *Settings) ApplyEnv() {
	if v, ok := os.LookupEnv(AudioSinkEnv); ok {
		s.AudioSink = v
	}
	if v, ok := os.LookupEnv(SystemAudioSinkEnv); ok {
		s.SystemAudioSink = v
	}
}

// Validate checks settings values.
func (s Settings) Validate() error {
	switch {
	case s.BlockTimeout <= 0:
		return fmt.Errorf("%w: block timeout %v", ErrInvalid, s.BlockTimeout)
	case s.BufferSize <= 0:
		return fmt.Errorf("%w: buffer size %d", ErrInvalid, s.BufferSize)
	case s.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalid, s.SampleRate)
	case s.Channels <= 0:
		return fmt.Errorf("%w: channels %d", ErrInvalid, s.Channels)
	case s.Record.Format != FormatWav && s.Record.Format != FormatMp3:
		return fmt.Errorf("%w: record format %q", ErrInvalid, s.Record.Format)
	}
	return nil
}
