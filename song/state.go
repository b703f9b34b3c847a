package song

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/buzztrax/core/media"
)

var (
	// ErrInvalidState is returned if song method cannot be executed at
	// this moment.
	ErrInvalidState = errors.New("invalid state")
	// ErrClosed is returned when song is closed.
	ErrClosed = errors.New("song is closed")
)

type stateType uint

const (
	stopped stateType = iota + 1
	playing
	paused
	closed
)

func (s stateType) String() string {
	switch s {
	case stopped:
		return "state.Stopped"
	case playing:
		return "state.Playing"
	case paused:
		return "state.Paused"
	case closed:
		return "state.Closed"
	default:
		return "state.Unknown"
	}
}

type state struct {
	stateType
	events <-chan event
	// errors of the pipeline, listened only in active states.
	errors <-chan error
}

type (
	// event triggers the state change.
	//
	// target identifies which state is expected after event is sent.
	// Feedback of the event is closed when the target is reached.
	event interface {
		target() stateType
		feedback() errs
		fmt.Stringer
	}

	// errs is a wrapper for error channels. It's used to return errors
	// of state transition or error occurred after the transition.
	errs chan error
)

type (
	play   struct{ errs }
	pause  struct{ errs }
	resume struct{ errs }
	stop   struct{ errs }
	quit   struct{ errs }
)

func (f errs) feedback() errs {
	return f
}

// dismiss closes feedback channel.
func (f errs) dismiss() errs {
	if f != nil {
		close(f)
	}
	return nil
}

// send pushes error into feedback and closes it.
func (f errs) send(err error) {
	f.post(err)
	close(f)
}

// post pushes error into feedback if it has no error yet.
func (f errs) post(err error) {
	if f == nil {
		return
	}
	select {
	case f <- err:
	default:
	}
}

// target of play is stopped: its feedback is open while song plays.
func (play) target() stateType {
	return stopped
}

func (play) String() string {
	return "event.Play"
}

func (pause) target() stateType {
	return paused
}

func (pause) String() string {
	return "event.Pause"
}

func (resume) target() stateType {
	return stopped
}

func (resume) String() string {
	return "event.Resume"
}

func (stop) target() stateType {
	return stopped
}

func (stop) String() string {
	return "event.Stop"
}

func (quit) target() stateType {
	return closed
}

func (quit) String() string {
	return "event.Close"
}

func (s *Song) stopped() state {
	return state{
		stateType: stopped,
		events:    s.events,
	}
}

func (s *Song) active(t stateType) state {
	return state{
		stateType: t,
		events:    s.events,
		errors:    s.pipeline.Bus().Errors(),
	}
}

// loop listens until closed state is reached.
func (s *Song) loop() {
	var (
		st = s.stopped()
		t  stateType
		f  errs
	)
	for st.stateType != closed {
		st, t, f = s.listen(st, t, f)
	}
	f.dismiss()
	close(s.done)
}

// listen handles events and pipeline errors of the state. It returns
// when state is changed.
func (s *Song) listen(st state, t stateType, f errs) (state, stateType, errs) {
	if st.stateType == t {
		f = f.dismiss()
		t = 0
	}
	for {
		var (
			next = st
			err  error
		)
		select {
		case e := <-st.events:
			next, err = s.transition(st, e)
			if next.stateType == st.stateType {
				s.logger.WithError(err).Debugf("%v rejected in %v", e, st.stateType)
				e.feedback().send(err)
				continue
			}
			s.logger.Debugf("%v: %v -> %v", e, st.stateType, next.stateType)
			f.dismiss()
			f, t = e.feedback(), e.target()
			if err != nil {
				f.post(err)
			}
		case err := <-st.errors:
			s.logger.WithError(err).Warn("playback failed")
			next = s.stopped()
			if serr := s.pipeline.SetState(media.Null); serr != nil {
				s.logger.WithError(serr).Error("stop after failure")
			}
			f.post(err)
		}
		if next.stateType != st.stateType {
			return next, t, f
		}
	}
}

func (s *Song) transition(st state, e event) (state, error) {
	switch st.stateType {
	case stopped:
		switch e.(type) {
		case quit:
			return state{stateType: closed}, s.setup.Close()
		case play:
			s.drainErrors()
			if err := s.pipeline.SetState(media.Playing); err != nil {
				return st, multierr.Combine(err, s.pipeline.SetState(media.Null))
			}
			return s.active(playing), nil
		}
	case playing:
		switch e.(type) {
		case quit:
			return state{stateType: closed}, multierr.Combine(s.pipeline.SetState(media.Null), s.setup.Close())
		case stop:
			return s.stopped(), s.pipeline.SetState(media.Null)
		case pause:
			return s.active(paused), s.pipeline.SetState(media.Paused)
		}
	case paused:
		switch e.(type) {
		case quit:
			return state{stateType: closed}, multierr.Combine(s.pipeline.SetState(media.Null), s.setup.Close())
		case stop:
			return s.stopped(), s.pipeline.SetState(media.Null)
		case resume:
			return s.active(playing), s.pipeline.SetState(media.Playing)
		}
	}
	return st, ErrInvalidState
}

// drainErrors drops errors left from previous playback.
func (s *Song) drainErrors() {
	select {
	case <-s.pipeline.Bus().Errors():
	default:
	}
}
