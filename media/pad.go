package media

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-audio/audio"

	"github.com/buzztrax/core/signal"
)

var (
	// ErrNotLinked is returned when buffer is pushed into unlinked pad.
	ErrNotLinked = errors.New("pad is not linked")
	// ErrFlushing is returned when buffer is pushed into inactive pad.
	ErrFlushing = errors.New("pad is flushing")
	// ErrWasLinked is returned when linking a pad that already has a peer.
	ErrWasLinked = errors.New("pad was already linked")
	// ErrWrongDirection is returned when pads of the same direction are linked.
	ErrWrongDirection = errors.New("pads have wrong direction")
	// ErrNoFormat is returned when pads have no common caps.
	ErrNoFormat = errors.New("pads have no common format")
)

// Direction of the pad.
type Direction int

const (
	// Src pads produce buffers.
	Src Direction = iota
	// Sink pads consume buffers.
	Sink
)

func (d Direction) String() string {
	if d == Src {
		return "src"
	}
	return "sink"
}

func (d Direction) opposite() Direction {
	if d == Src {
		return Sink
	}
	return Src
}

// Buffer is a block of audio passed between pads.
type Buffer struct {
	Signal     signal.Float64
	SampleRate int
}

// Format returns audio format of the buffer.
func (b Buffer) Format() audio.Format {
	return audio.Format{
		SampleRate:  b.SampleRate,
		NumChannels: b.Signal.NumChannels(),
	}
}

// ChainFunc processes buffers received by the sink pad.
type ChainFunc func(*Pad, Buffer) error

// Pad is a connection point of an element. Src pad pushes buffers into
// its peer and the peer's chain function is executed on the pushing
// goroutine.
type Pad struct {
	name     string
	dir      Direction
	template Caps
	request  bool
	chain    ChainFunc
	parent   Element

	mu       sync.Mutex
	peer     *Pad
	flushing bool
	inFlight bool
	blocked  bool
	// idle is closed when the in-flight buffer leaves a blocked pad.
	idle chan struct{}
	// resume is closed when pad is unblocked or set flushing.
	resume chan struct{}
}

// NewSrcPad creates a new src pad.
func NewSrcPad(name string, template Caps) *Pad {
	return &Pad{
		name:     name,
		dir:      Src,
		template: template,
		flushing: true,
	}
}

// NewSinkPad creates a new sink pad with a chain function.
func NewSinkPad(name string, template Caps, chain ChainFunc) *Pad {
	return &Pad{
		name:     name,
		dir:      Sink,
		template: template,
		chain:    chain,
		flushing: true,
	}
}

// Name of the pad.
func (p *Pad) Name() string {
	return p.name
}

// Direction of the pad.
func (p *Pad) Direction() Direction {
	return p.dir
}

// Template returns caps the pad was created with.
func (p *Pad) Template() Caps {
	return p.template
}

// Request returns true if pad was requested from the element.
func (p *Pad) Request() bool {
	return p.request
}

// Parent returns the element pad belongs to.
func (p *Pad) Parent() Element {
	return p.parent
}

// Peer returns linked pad or nil.
func (p *Pad) Peer() *Pad {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peer
}

// IsLinked returns true if pad has a peer.
func (p *Pad) IsLinked() bool {
	return p.Peer() != nil
}

func (p *Pad) String() string {
	if p.parent == nil {
		return p.name
	}
	return fmt.Sprintf("%s:%s", p.parent.Name(), p.name)
}

// SetActive activates or deactivates the pad. Inactive pad is flushing:
// pushes fail with ErrFlushing and parked pushes are released.
func (p *Pad) SetActive(active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushing = !active
	if !active && p.blocked {
		close(p.resume)
		p.resume = make(chan struct{})
	}
}

// Push sends buffer to the peer pad. Chain function of the peer is
// executed on the calling goroutine. If pad is blocked, push parks
// until pad is unblocked or deactivated.
func (p *Pad) Push(b Buffer) error {
	p.mu.Lock()
	for p.blocked && !p.flushing {
		resume := p.resume
		p.mu.Unlock()
		<-resume
		p.mu.Lock()
	}
	if p.flushing {
		p.mu.Unlock()
		return ErrFlushing
	}
	peer := p.peer
	if peer == nil {
		p.mu.Unlock()
		return ErrNotLinked
	}
	p.inFlight = true
	p.mu.Unlock()

	err := peer.receive(b)

	p.mu.Lock()
	p.inFlight = false
	if p.idle != nil {
		close(p.idle)
		p.idle = nil
	}
	p.mu.Unlock()
	return err
}

func (p *Pad) receive(b Buffer) error {
	p.mu.Lock()
	flushing, chain := p.flushing, p.chain
	p.mu.Unlock()
	if flushing {
		return ErrFlushing
	}
	if chain == nil {
		return fmt.Errorf("%v has no chain function", p)
	}
	return chain(p, b)
}

// Block stops data flow through the pad. Returned channel is closed once
// no buffer is in flight through the pad. If a push is in progress, the
// pushing goroutine closes the channel when the push returns. Following
// pushes park until Unblock is called.
func (p *Pad) Block() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.blocked {
		p.blocked = true
		p.resume = make(chan struct{})
	}
	if p.idle != nil {
		return p.idle
	}
	idle := make(chan struct{})
	if p.inFlight {
		p.idle = idle
	} else {
		close(idle)
	}
	return idle
}

// Unblock resumes data flow through the pad.
func (p *Pad) Unblock() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.blocked {
		return
	}
	p.blocked = false
	close(p.resume)
	p.resume = nil
	if p.idle != nil {
		close(p.idle)
		p.idle = nil
	}
}

// Blocked returns true if pad is blocked.
func (p *Pad) Blocked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.blocked
}

// Caps returns what pad can currently handle: what a src pad can produce
// or what a sink pad can accept, given everything linked around it.
func (p *Pad) Caps() (Caps, bool) {
	return p.query(newQuery())
}

// PeerCaps returns caps of the peer pad. Unlinked pad returns Any caps.
func (p *Pad) PeerCaps() (Caps, bool) {
	return newQuery().Peer(p)
}

func (p *Pad) query(q *Query) (Caps, bool) {
	if q.visited[p] {
		return p.template, true
	}
	q.visited[p] = true
	el := p.parent
	if el == nil {
		return p.template, true
	}
	var (
		c  Caps
		ok bool
	)
	if cq, is := el.(CapsQuerier); is {
		c, ok = cq.QueryCaps(p, q)
	} else {
		c, ok = q.Proxy(el, p)
	}
	if !ok {
		return Caps{}, false
	}
	return p.template.Intersect(c)
}

// link two pads. Src pad lock is always taken before the sink pad lock.
func link(src, sink *Pad) error {
	if src.dir != Src || sink.dir != Sink {
		return fmt.Errorf("%w: %v and %v", ErrWrongDirection, src, sink)
	}
	src.mu.Lock()
	defer src.mu.Unlock()
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if src.peer != nil || sink.peer != nil {
		return fmt.Errorf("%w: %v or %v", ErrWasLinked, src, sink)
	}
	src.peer = sink
	sink.peer = src
	return nil
}

// unlink two pads. False is returned if pads were not linked together.
func unlink(src, sink *Pad) bool {
	src.mu.Lock()
	defer src.mu.Unlock()
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if src.peer != sink || sink.peer != src {
		return false
	}
	src.peer = nil
	sink.peer = nil
	return true
}

// CapsQuerier is implemented by elements that transform caps between
// their pads.
type CapsQuerier interface {
	QueryCaps(*Pad, *Query) (Caps, bool)
}

// Query is a caps query walking through linked elements. It remembers
// visited pads to cut cycles.
type Query struct {
	visited map[*Pad]bool
}

func newQuery() *Query {
	return &Query{visited: make(map[*Pad]bool)}
}

// Peer returns caps of the pad's peer. Unlinked pad doesn't restrict
// caps.
func (q *Query) Peer(p *Pad) (Caps, bool) {
	peer := p.Peer()
	if peer == nil {
		return Any, true
	}
	return peer.query(q)
}

// Proxy returns intersection of peer caps of all pads on the other side
// of the element.
func (q *Query) Proxy(el Element, p *Pad) (Caps, bool) {
	result := Any
	for _, op := range el.Pads() {
		if op.dir != p.dir.opposite() {
			continue
		}
		c, ok := q.Peer(op)
		if !ok {
			return Caps{}, false
		}
		if result, ok = result.Intersect(c); !ok {
			return Caps{}, false
		}
	}
	return result, true
}
