// Package sink provides the terminal element of a song. It plays,
// records or does both. Changing the mode rebuilds only the internal
// chain of the sink.
package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/buzztrax/core/log"
	"github.com/buzztrax/core/media"
	"github.com/buzztrax/core/settings"
	"github.com/buzztrax/core/signal"
)

// Mode of the sink.
type Mode int

const (
	// Play sends audio to the audio sink.
	Play Mode = iota
	// Record writes audio to the file.
	Record
	// Both plays and records.
	Both
)

var (
	// ErrNoSink is returned when no audio sink is available.
	ErrNoSink = errors.New("no audio sink available")
	// ErrUnknownMode is returned when mode can't be parsed.
	ErrUnknownMode = errors.New("unknown sink mode")
	// ErrNoLocation is returned when recording has no location.
	ErrNoLocation = errors.New("record location not set")
)

var modeNames = map[Mode]string{
	Play:   "play",
	Record: "record",
	Both:   "both",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode returns mode by name.
func ParseMode(name string) (Mode, error) {
	for m, n := range modeNames {
		if n == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, name)
}

// file sink factories by record format.
var fileSinks = map[string]string{
	settings.FormatWav: "wavsink",
	settings.FormatMp3: "lamesink",
}

// AudioSink returns factory name of the audio sink. User setting wins
// over the system one, blank settings are skipped. If setting is a
// pipeline description, the element of the last stage is used. Without
// settings the audio sink with the highest rank is picked.
func AudioSink(s settings.Settings) (string, error) {
	for _, setting := range []string{s.AudioSink, s.SystemAudioSink} {
		if name := sinkElement(setting); name != "" {
			return name, nil
		}
	}
	factories := media.Factories(media.KlassAudioSink)
	if len(factories) == 0 {
		return "", ErrNoSink
	}
	return factories[0].Name, nil
}

// sinkElement returns the element name of the last pipeline stage
// without properties. Empty string means the setting is absent.
func sinkElement(setting string) string {
	stages := strings.Split(setting, "!")
	fields := strings.Fields(strings.TrimSpace(stages[len(stages)-1]))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Bin is the sink element. Buffers received on its sink pad are pushed
// into the internal chain of the current mode.
type Bin struct {
	media.Base
	logger   log.Logger
	settings settings.Settings
	sink     *media.Pad
	// entry feeds the internal chain.
	entry   *media.Pad
	inner   *media.Bin
	forward media.Task

	// guards mode and the internal chain.
	mu   sync.RWMutex
	mode Mode
}

// Option configures the sink.
type Option func(*Bin) error

// WithMode sets initial mode.
func WithMode(m Mode) Option {
	return func(b *Bin) error {
		if _, ok := modeNames[m]; !ok {
			return fmt.Errorf("%w: %v", ErrUnknownMode, m)
		}
		b.mode = m
		return nil
	}
}

// WithSettings sets settings used to resolve sinks.
func WithSettings(s settings.Settings) Option {
	return func(b *Bin) error {
		b.settings = s
		return nil
	}
}

// WithLogger sets logger of the sink.
func WithLogger(logger log.Logger) Option {
	return func(b *Bin) error {
		b.logger = logger
		return nil
	}
}

// New creates the sink and builds its chain.
func New(name string, options ...Option) (*Bin, error) {
	b := Bin{
		logger:   log.GetLogger(),
		settings: settings.Default(),
		mode:     Play,
	}
	b.Init(&b, name, "sinkbin", "Sink/Bin")
	for _, option := range options {
		if err := option(&b); err != nil {
			return nil, err
		}
	}
	b.sink = media.NewSinkPad("sink", media.Audio(media.Range{}, media.Range{}), b.chain)
	b.AddPad(b.sink)
	b.entry = media.NewSrcPad("entry", media.Audio(media.Range{}, media.Range{}))
	b.inner = media.NewBin(b.Name() + " chain")
	if err := b.build(b.mode); err != nil {
		return nil, err
	}
	return &b, nil
}

// Mode returns current mode.
func (b *Bin) Mode() Mode {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mode
}

// Elements returns elements of the internal chain.
func (b *Bin) Elements() []media.Element {
	return b.inner.Children()
}

// SetMode rebuilds the internal chain for the mode. Data flow through
// the sink waits until the new chain is ready. If the new chain can't be
// built, the previous one is restored.
func (b *Bin) SetMode(m Mode) error {
	if _, ok := modeNames[m]; !ok {
		return fmt.Errorf("%w: %v", ErrUnknownMode, m)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if m == b.mode {
		return nil
	}
	if err := b.teardown(); err != nil {
		return err
	}
	if err := b.build(m); err != nil {
		b.logger.WithError(err).Warnf("%s: restore %v mode", b.Name(), b.mode)
		return multierr.Append(err, b.build(b.mode))
	}
	b.logger.Debugf("%s: %v -> %v", b.Name(), b.mode, m)
	b.mode = m
	return nil
}

// QueryCaps returns caps accepted by the internal chain.
func (b *Bin) QueryCaps(p *media.Pad, q *media.Query) (media.Caps, bool) {
	return q.Peer(b.entry)
}

// ChangeState drives the internal chain. It goes up before the sink and
// goes down after it.
func (b *Bin) ChangeState(t media.Transition) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if t.Upward() {
		if err := b.inner.SetState(t.To); err != nil {
			return err
		}
	}
	switch {
	case t.From == media.Ready && t.To == media.Paused:
		b.entry.SetActive(true)
	case t.From == media.Paused && t.To == media.Ready:
		b.entry.SetActive(false)
	case t.From == media.Paused && t.To == media.Playing:
		b.forward.Start(b.forwardErrors)
	case t.From == media.Playing && t.To == media.Paused:
		b.forward.Stop(nil)
	}
	if !t.Upward() {
		return b.inner.SetState(t.To)
	}
	return nil
}

func (b *Bin) chain(_ *media.Pad, buf media.Buffer) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.entry.Push(buf)
}

// forwardErrors posts errors of the internal chain to the bus of the
// sink's pipeline.
func (b *Bin) forwardErrors(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-b.inner.Bus().Errors():
			b.PostError(err)
		}
	}
}

// build creates the chain for the mode, links it to the entry pad and
// syncs it with the state of the sink. Must be called with write lock.
func (b *Bin) build(m Mode) (err error) {
	defer func() {
		if err != nil {
			err = multierr.Append(err, b.teardown())
		}
	}()
	var branches [][]media.Element
	if m == Play || m == Both {
		branch, err := b.playBranch()
		if err != nil {
			return err
		}
		branches = append(branches, branch)
	}
	if m == Record || m == Both {
		branch, err := b.recordBranch()
		if err != nil {
			return err
		}
		branches = append(branches, branch)
	}
	head := branches[0][0]
	if len(branches) > 1 {
		tee := media.NewTee(b.Name() + " tee")
		if err := b.inner.Add(tee); err != nil {
			return err
		}
		head = tee
	}
	for _, branch := range branches {
		if err := b.inner.Add(branch...); err != nil {
			return err
		}
		if head != branch[0] {
			if err := media.Link(head, branch[0]); err != nil {
				return err
			}
		}
		for i := 0; i < len(branch)-1; i++ {
			if err := media.Link(branch[i], branch[i+1]); err != nil {
				return err
			}
		}
	}
	if err := media.LinkPads(b.entry, media.SinkPads(head)[0]); err != nil {
		return err
	}
	for _, el := range b.inner.Children() {
		if err := el.SyncStateWithParent(); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bin) playBranch() ([]media.Element, error) {
	factory, err := AudioSink(b.settings)
	if err != nil {
		return nil, err
	}
	out, err := media.Make(factory, b.Name()+" "+factory)
	if err != nil {
		return nil, err
	}
	return b.branch("play", out), nil
}

func (b *Bin) recordBranch() ([]media.Element, error) {
	rec := b.settings.Record
	if rec.Location == "" {
		return nil, ErrNoLocation
	}
	factory, ok := fileSinks[rec.Format]
	if !ok {
		return nil, fmt.Errorf("%w: record format %q", settings.ErrInvalid, rec.Format)
	}
	out, err := media.Make(factory, b.Name()+" "+factory)
	if err != nil {
		return nil, err
	}
	if s, ok := out.(interface{ SetLocation(string) }); ok {
		s.SetLocation(rec.Location)
	}
	if s, ok := out.(interface {
		SetBitDepth(signal.BitDepth) error
	}); ok && rec.BitDepth != 0 {
		if err := s.SetBitDepth(signal.BitDepth(rec.BitDepth)); err != nil {
			return nil, err
		}
	}
	if s, ok := out.(interface{ SetBitRate(int) }); ok && rec.BitRate != 0 {
		s.SetBitRate(rec.BitRate)
	}
	return b.branch("record", out), nil
}

// branch returns converters followed by the sink.
func (b *Bin) branch(name string, out media.Element) []media.Element {
	prefix := b.Name() + " " + name
	return []media.Element{
		media.NewConvert(prefix + " convert"),
		media.NewResample(prefix + " resample"),
		out,
	}
}

// teardown unlinks and removes all elements of the chain.
func (b *Bin) teardown() error {
	if peer := b.entry.Peer(); peer != nil {
		media.UnlinkPads(b.entry, peer)
	}
	children := b.inner.Children()
	for _, el := range children {
		for _, p := range media.SrcPads(el) {
			if peer := p.Peer(); peer != nil {
				media.Unlink(el, peer.Parent())
			}
		}
	}
	var err error
	for _, el := range children {
		err = multierr.Append(err, el.SetState(media.Null))
		err = multierr.Append(err, b.inner.Remove(el))
	}
	return err
}
