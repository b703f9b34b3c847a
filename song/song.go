// Package song ties the pipeline, the setup and the master sink
// together and controls playback.
//
// Playback is controlled by a state machine running on its own
// goroutine. Every control method returns a feedback channel. It
// receives an error if the request failed and it's closed when the
// requested state is reached. Feedback of Play and Resume stays open
// while the song plays and receives the playback error if any.
package song

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/buzztrax/core/log"
	"github.com/buzztrax/core/machine"
	"github.com/buzztrax/core/media"
	"github.com/buzztrax/core/settings"
	"github.com/buzztrax/core/setup"
	"github.com/buzztrax/core/sink"
	"github.com/buzztrax/core/wire"
)

// MasterID is the id of the master sink machine.
const MasterID = "master"

// Song is a setup with the master sink and the playback control.
type Song struct {
	name     string
	logger   log.Logger
	settings settings.Settings
	mode     sink.Mode
	observer setup.Observer

	pipeline *media.Bin
	setup    *setup.Setup
	master   *machine.Machine
	out      *sink.Bin

	events chan event
	done   chan struct{}
}

// Option configures the song.
type Option func(*Song) error

// WithLogger sets logger of the song.
func WithLogger(logger log.Logger) Option {
	return func(s *Song) error {
		s.logger = logger
		return nil
	}
}

// WithSettings sets settings of the song.
func WithSettings(cfg settings.Settings) Option {
	return func(s *Song) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		s.settings = cfg
		return nil
	}
}

// WithMode sets initial mode of the master sink.
func WithMode(m sink.Mode) Option {
	return func(s *Song) error {
		s.mode = m
		return nil
	}
}

// WithObserver sets observer of topology edits.
func WithObserver(o setup.Observer) Option {
	return func(s *Song) error {
		s.observer = o
		return nil
	}
}

// New creates a stopped song with the master machine.
func New(name string, options ...Option) (*Song, error) {
	s := Song{
		name:     name,
		logger:   log.GetLogger(),
		settings: settings.Default(),
		mode:     sink.Play,
		events:   make(chan event),
		done:     make(chan struct{}),
	}
	for _, option := range options {
		if err := option(&s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.WithField("song", name)
	s.pipeline = media.NewBin(name)

	var err error
	if s.out, err = sink.New(
		MasterID+" sink",
		sink.WithMode(s.mode),
		sink.WithSettings(s.settings),
		sink.WithLogger(s.logger),
	); err != nil {
		return nil, fmt.Errorf("master sink: %w", err)
	}
	if s.master, err = machine.New(MasterID, s.out); err != nil {
		return nil, err
	}
	setupOptions := []setup.Option{
		setup.WithLogger(s.logger),
		setup.WithBlockTimeout(s.settings.BlockTimeout),
	}
	if s.observer != nil {
		setupOptions = append(setupOptions, setup.WithObserver(s.observer))
	}
	if s.setup, err = setup.New(s.pipeline, setupOptions...); err != nil {
		return nil, err
	}
	if err := s.setup.AddMachine(s.master); err != nil {
		return nil, err
	}
	go s.loop()
	return &s, nil
}

// Name of the song.
func (s *Song) Name() string {
	return s.name
}

// Setup returns machines and wires of the song.
func (s *Song) Setup() *setup.Setup {
	return s.setup
}

// Master returns the master sink machine.
func (s *Song) Master() *machine.Machine {
	return s.master
}

// Sink returns the master sink element.
func (s *Song) Sink() *sink.Bin {
	return s.out
}

// Pipeline returns the top-level bin.
func (s *Song) Pipeline() *media.Bin {
	return s.pipeline
}

// Settings returns settings of the song.
func (s *Song) Settings() settings.Settings {
	return s.settings
}

// AddMachine creates an element with the factory and adds it to the
// setup as a machine. Empty id is replaced with a unique one based on the
// factory name.
func (s *Song) AddMachine(id, factory string, params map[string]float64) (*machine.Machine, error) {
	if id == "" {
		id = s.setup.UniqueID(factory)
	}
	el, err := media.Make(factory, id)
	if err != nil {
		return nil, err
	}
	if src, ok := el.(*media.TestSrc); ok {
		src.SetBufferSize(s.settings.BufferSize)
		src.SetFormat(s.settings.Format())
	}
	m, err := machine.New(id, el, machine.WithParams(params))
	if err != nil {
		return nil, err
	}
	if err := s.setup.AddMachine(m); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"machine": id, "factory": factory}).Debug("machine added")
	return m, nil
}

// Connect wires machines by ids.
func (s *Song) Connect(src, dst string) (*wire.Wire, error) {
	from, ok := s.setup.Machine(src)
	if !ok {
		return nil, fmt.Errorf("%w: %s", setup.ErrMachineNotFound, src)
	}
	to, ok := s.setup.Machine(dst)
	if !ok {
		return nil, fmt.Errorf("%w: %s", setup.ErrMachineNotFound, dst)
	}
	return s.setup.Connect(from, to)
}

// SetMode changes the mode of the master sink.
func (s *Song) SetMode(m sink.Mode) error {
	return s.out.SetMode(m)
}

// Play starts playback.
func (s *Song) Play() <-chan error {
	return s.send(play{make(errs, 1)})
}

// Pause pauses playback.
func (s *Song) Pause() <-chan error {
	return s.send(pause{make(errs, 1)})
}

// Resume resumes paused playback.
func (s *Song) Resume() <-chan error {
	return s.send(resume{make(errs, 1)})
}

// Stop stops playback.
func (s *Song) Stop() <-chan error {
	return s.send(stop{make(errs, 1)})
}

// Close stops playback and releases machines and wires. Song can't be
// used after close.
func (s *Song) Close() <-chan error {
	return s.send(quit{make(errs, 1)})
}

func (s *Song) send(e event) <-chan error {
	select {
	case s.events <- e:
	case <-s.done:
		e.feedback().send(ErrClosed)
	}
	return e.feedback()
}

// Wait for state transition or first error to occur.
func Wait(d <-chan error) error {
	for err := range d {
		if err != nil {
			return err
		}
	}
	return nil
}
