package main

import (
	"flag"
	"fmt"

	"github.com/buzztrax/core/media"
	"github.com/buzztrax/core/settings"
	"github.com/buzztrax/core/sink"
)

type sinksCommand struct {
	settings string
}

func (cmd *sinksCommand) Name() string {
	return "sinks"
}

func (cmd *sinksCommand) Help() string {
	return "Show available audio sinks ordered by rank"
}

func (cmd *sinksCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.settings, "settings", "buzztrax.yaml", "settings file")
}

func (cmd *sinksCommand) Run() error {
	cfg, err := settings.Load(cmd.settings)
	if err != nil {
		return err
	}
	selected, err := sink.AudioSink(cfg)
	if err != nil {
		return err
	}
	fmt.Println("Audio sinks:")
	for _, f := range media.Factories(media.KlassAudioSink) {
		mark := " "
		if f.Name == selected {
			mark = "*"
		}
		fmt.Printf(" %s %-16s rank %d\n", mark, f.Name, f.Rank)
	}
	fmt.Println("File sinks:")
	for _, f := range media.Factories(media.KlassFileSink) {
		fmt.Printf("   %-16s rank %d\n", f.Name, f.Rank)
	}
	return nil
}
