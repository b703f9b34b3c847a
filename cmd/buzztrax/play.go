package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/buzztrax/core/log"
	"github.com/buzztrax/core/settings"
	"github.com/buzztrax/core/sink"
	"github.com/buzztrax/core/song"
	"github.com/buzztrax/core/songio"
)

// playCommand plays a song or records it to a file.
type playCommand struct {
	record   bool
	settings string
	song     string
	out      string
	format   string
	duration time.Duration
}

func (cmd *playCommand) Name() string {
	if cmd.record {
		return "record"
	}
	return "play"
}

func (cmd *playCommand) Help() string {
	if cmd.record {
		return "Record a song to a file"
	}
	return "Play a song"
}

func (cmd *playCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.settings, "settings", "buzztrax.yaml", "settings file")
	fs.StringVar(&cmd.song, "song", "", "song file to play (required)")
	fs.DurationVar(&cmd.duration, "duration", 10*time.Second, "playback duration")
	if cmd.record {
		fs.StringVar(&cmd.out, "out", "", "output file (required)")
		fs.StringVar(&cmd.format, "format", settings.FormatWav, "output format: wav or mp3")
	}
}

func (cmd *playCommand) Validate() error {
	var message string
	if cmd.song == "" {
		message = message + "Missing -song required flag\n"
	}
	if cmd.record && cmd.out == "" {
		message = message + "Missing -out required flag\n"
	}
	if cmd.duration <= 0 {
		message = message + "Duration must be positive\n"
	}
	if message != "" {
		return fmt.Errorf("%s", message)
	}
	return nil
}

func (cmd *playCommand) Run() error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	cfg, err := settings.Load(cmd.settings)
	if err != nil {
		return err
	}
	mode := sink.Play
	if cmd.record {
		mode = sink.Record
		cfg.Record.Location = cmd.out
		cfg.Record.Format = cmd.format
	}
	s, err := song.New(cmd.song,
		song.WithSettings(cfg),
		song.WithMode(mode),
		song.WithLogger(log.GetLogger()),
	)
	if err != nil {
		return err
	}
	if err := cmd.play(s); err != nil {
		return multiClose(err, s)
	}
	return song.Wait(s.Close())
}

func (cmd *playCommand) play(s *song.Song) error {
	f, err := os.Open(cmd.song)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := songio.Load(f, s); err != nil {
		return err
	}
	fmt.Printf("%s %s for %v\n", cmd.Name(), cmd.song, cmd.duration)
	playc := s.Play()
	select {
	case err, ok := <-playc:
		if ok && err != nil {
			return err
		}
		return nil
	case <-time.After(cmd.duration):
	}
	if err := song.Wait(s.Stop()); err != nil {
		return err
	}
	return song.Wait(playc)
}

// multiClose closes the song after failure and reports both errors.
func multiClose(err error, s *song.Song) error {
	if cerr := song.Wait(s.Close()); cerr != nil {
		return fmt.Errorf("%w (close: %v)", err, cerr)
	}
	return err
}
