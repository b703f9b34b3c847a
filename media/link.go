package media

import (
	"errors"
	"fmt"
)

// ErrNoFreePad is returned when element has no pad available to link.
var ErrNoFreePad = errors.New("no free pad")

// Link connects free pads of two elements. Request pads are used when
// no always pads are free. Pads are linked only if their caps intersect.
func Link(src, dst Element) error {
	srcPad, srcRequested, err := freePad(src, Src)
	if err != nil {
		return err
	}
	dstPad, dstRequested, err := freePad(dst, Sink)
	if err != nil {
		if srcRequested {
			release(srcPad)
		}
		return err
	}
	if err = LinkPads(srcPad, dstPad); err != nil {
		if srcRequested {
			release(srcPad)
		}
		if dstRequested {
			release(dstPad)
		}
		return err
	}
	return nil
}

// LinkPads connects two pads if their caps intersect.
func LinkPads(src, sink *Pad) error {
	if src.IsLinked() || sink.IsLinked() {
		return fmt.Errorf("%w: %v or %v", ErrWasLinked, src, sink)
	}
	srcCaps, ok := src.Caps()
	if !ok {
		return fmt.Errorf("%w: %v has no caps", ErrNoFormat, src)
	}
	sinkCaps, ok := sink.Caps()
	if !ok {
		return fmt.Errorf("%w: %v has no caps", ErrNoFormat, sink)
	}
	if _, ok := srcCaps.Intersect(sinkCaps); !ok {
		return fmt.Errorf("%w: %v (%v) and %v (%v)", ErrNoFormat, src, srcCaps, sink, sinkCaps)
	}
	return link(src, sink)
}

// UnlinkPads disconnects two pads. False is returned if pads were not
// linked together.
func UnlinkPads(src, sink *Pad) bool {
	return unlink(src, sink)
}

// Unlink disconnects pads linking src element to dst element. Request
// pads are released. False is returned if elements were not linked.
func Unlink(src, dst Element) bool {
	for _, p := range SrcPads(src) {
		peer := p.Peer()
		if peer == nil || peer.Parent() != dst {
			continue
		}
		if !unlink(p, peer) {
			return false
		}
		release(p)
		release(peer)
		return true
	}
	return false
}

// Linked returns true if src element is linked to dst element.
func Linked(src, dst Element) bool {
	for _, p := range SrcPads(src) {
		if peer := p.Peer(); peer != nil && peer.Parent() == dst {
			return true
		}
	}
	return false
}

func freePad(el Element, dir Direction) (*Pad, bool, error) {
	for _, p := range padsOf(el, dir) {
		if !p.request && !p.IsLinked() {
			return p, false, nil
		}
	}
	if r, ok := el.(Requester); ok {
		p, err := r.RequestPad(dir)
		if err != nil {
			return nil, false, err
		}
		return p, true, nil
	}
	return nil, false, fmt.Errorf("%w: %s %v", ErrNoFreePad, el.Name(), dir)
}

func release(p *Pad) {
	if !p.request {
		return
	}
	if r, ok := p.parent.(Requester); ok {
		r.ReleasePad(p)
	}
}
