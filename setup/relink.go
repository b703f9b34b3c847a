package setup

import (
	"fmt"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/buzztrax/core/log"
	"github.com/buzztrax/core/machine"
	"github.com/buzztrax/core/media"
	"github.com/buzztrax/core/wire"
)

// Kind of topology edit.
type Kind int

const (
	// InsertMachine adds a machine.
	InsertMachine Kind = iota
	// RemoveMachine removes a machine.
	RemoveMachine
	// InsertWire adds a wire.
	InsertWire
	// RemoveWire removes a wire.
	RemoveWire
)

func (k Kind) String() string {
	switch k {
	case InsertMachine:
		return "insert-machine"
	case RemoveMachine:
		return "remove-machine"
	case InsertWire:
		return "insert-wire"
	case RemoveWire:
		return "remove-wire"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Step of the relink protocol.
type Step int

const (
	// Idle is the initial step.
	Idle Step = iota
	// BlockingSource is reached when data flow into the edit is blocked.
	BlockingSource
	// Unlinked is reached when links touching the edit are removed.
	Unlinked
	// StructuralEdit is reached when elements are added or removed.
	StructuralEdit
	// Relinked is reached when new links are established.
	Relinked
	// StateSynced is reached when new elements follow container state.
	StateSynced
	// Unblocked is reached when data flow is resumed.
	Unblocked
	// Aborted is reached when any step failed.
	Aborted
)

var stepNames = [...]string{
	Idle:           "idle",
	BlockingSource: "blocking-source",
	Unlinked:       "unlinked",
	StructuralEdit: "structural-edit",
	Relinked:       "relinked",
	StateSynced:    "state-synced",
	Unblocked:      "unblocked",
	Aborted:        "aborted",
}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// Report describes relink progress. Err is set only for Aborted step.
type Report struct {
	ID     xid.ID
	Kind   Kind
	Target string
	Step   Step
	Err    error
}

// Observer receives relink progress. It's called on the editing
// goroutine and must not edit the setup.
type Observer func(Report)

// plan holds the functions executed by relink steps. Nil functions are
// skipped.
type plan struct {
	// source machines to block.
	block  []*machine.Machine
	unlink func() error
	edit   func() error
	relink func() error
	sync   func() error
}

// op is a single topology edit. Every successful change registers its
// inverse on the undo stack.
type op struct {
	s       *Setup
	id      xid.ID
	kind    Kind
	target  string
	logger  log.Logger
	before  Snapshot
	undos   []func() error
	blocked []*media.Pad
}

func (s *Setup) newOp(kind Kind, target string) *op {
	id := xid.New()
	return &op{
		s:      s,
		id:     id,
		kind:   kind,
		target: target,
		logger: s.logger.WithFields(logrus.Fields{
			"op":     id.String(),
			"kind":   kind.String(),
			"target": target,
		}),
	}
}

func (o *op) run(p plan) error {
	o.before = o.s.Snapshot()
	o.report(Idle, nil)
	steps := []struct {
		step Step
		fn   func() error
	}{
		{step: BlockingSource, fn: func() error { return o.block(p.block) }},
		{step: Unlinked, fn: p.unlink},
		{step: StructuralEdit, fn: p.edit},
		{step: Relinked, fn: p.relink},
		{step: StateSynced, fn: p.sync},
	}
	for _, st := range steps {
		if st.fn != nil {
			if err := st.fn(); err != nil {
				return o.abort(st.step, err)
			}
		}
		o.report(st.step, nil)
	}
	o.unblock()
	o.report(Unblocked, nil)
	return nil
}

// undo registers the inverse of a completed change.
func (o *op) undo(fn func() error) {
	o.undos = append(o.undos, fn)
}

// block blocks src pads of the machines' units and waits until no buffer
// is in flight through them. Nothing is blocked if the setup's bin isn't
// playing.
func (o *op) block(machines []*machine.Machine) error {
	if o.s.bin.State() != media.Playing {
		return nil
	}
	var pending []<-chan struct{}
	for _, m := range machines {
		for _, p := range media.SrcPads(m.Unit()) {
			pending = append(pending, p.Block())
			o.blocked = append(o.blocked, p)
		}
	}
	timer := time.NewTimer(o.s.blockTimeout)
	defer timer.Stop()
	for _, idle := range pending {
		select {
		case <-idle:
		case <-timer.C:
			return fmt.Errorf("%w: %v", ErrBlockTimeout, o.s.blockTimeout)
		}
	}
	o.logger.Debugf("blocked %d pads", len(o.blocked))
	return nil
}

func (o *op) unblock() {
	for _, p := range o.blocked {
		p.Unblock()
	}
	o.blocked = nil
}

// unlinkWire unlinks the wire and registers its relink.
func (o *op) unlinkWire(w *wire.Wire) error {
	if err := w.Unlink(); err != nil {
		return err
	}
	o.undo(func() error {
		if err := w.Link(); err != nil {
			return err
		}
		return w.SyncState()
	})
	return nil
}

// linkWire links the wire and registers its unlink.
func (o *op) linkWire(w *wire.Wire) error {
	if err := w.Link(); err != nil {
		return err
	}
	o.undo(w.Unlink)
	return nil
}

// abort rolls back completed changes in reverse order and resumes data
// flow. The returned error wraps the step error.
func (o *op) abort(step Step, cause error) error {
	err := fmt.Errorf("%v %s failed at %v: %w", o.kind, o.target, step, cause)
	o.logger.WithError(cause).Warnf("aborted at %v", step)
	o.logger.Debugf("topology before edit:\n%s", dump.Sdump(o.before))

	var rollback error
	for i := len(o.undos) - 1; i >= 0; i-- {
		rollback = multierr.Append(rollback, o.undos[i]())
	}
	o.undos = nil
	o.unblock()

	after := o.s.Snapshot()
	if rollback != nil || !o.before.Equal(after) {
		o.logger.WithError(rollback).Errorf("rollback incomplete:\n%s", diff(o.before, after))
		err = multierr.Append(err, rollback)
	}
	o.report(Aborted, err)
	return err
}

func (o *op) report(step Step, err error) {
	o.logger.Debugf("step %v", step)
	if o.s.observer != nil {
		o.s.observer(Report{
			ID:     o.id,
			Kind:   o.kind,
			Target: o.target,
			Step:   step,
			Err:    err,
		})
	}
}

var dump = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// diff returns unified diff of two snapshot dumps.
func diff(before, after Snapshot) string {
	d, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(dump.Sdump(before)),
		B:        difflib.SplitLines(dump.Sdump(after)),
		FromFile: "before",
		ToFile:   "after",
		Context:  2,
	})
	if err != nil {
		return err.Error()
	}
	return d
}
