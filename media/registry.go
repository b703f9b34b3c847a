package media

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/exp/slices"
)

// ErrUnknownFactory is returned when element factory is not registered.
var ErrUnknownFactory = errors.New("unknown element factory")

// Ranks of element factories. Factory with the highest rank is preferred
// when elements are picked automatically.
const (
	RankNone      = 0
	RankMarginal  = 64
	RankSecondary = 128
	RankPrimary   = 256
)

// Well-known klass values.
const (
	KlassAudioSource = "Source/Audio"
	KlassEffect      = "Filter/Effect/Audio"
	KlassConverter   = "Filter/Converter/Audio"
	KlassAudioSink   = "Sink/Audio"
	KlassFileSink    = "Sink/File"
	KlassGeneric     = "Generic"
)

// NewFunc creates a new element with the given name.
type NewFunc func(name string) Element

// Factory describes a registered element type.
type Factory struct {
	Name  string
	Klass string
	Rank  int
	New   NewFunc
}

var registry = struct {
	sync.RWMutex
	factories []Factory
}{}

// Register adds element factory. Registering the same name again
// replaces the factory.
func Register(name, klass string, rank int, fn NewFunc) {
	registry.Lock()
	defer registry.Unlock()
	f := Factory{Name: name, Klass: klass, Rank: rank, New: fn}
	if i := slices.IndexFunc(registry.factories, func(f Factory) bool { return f.Name == name }); i >= 0 {
		registry.factories[i] = f
		return
	}
	registry.factories = append(registry.factories, f)
}

// Lookup returns factory by name.
func Lookup(name string) (Factory, bool) {
	registry.RLock()
	defer registry.RUnlock()
	i := slices.IndexFunc(registry.factories, func(f Factory) bool { return f.Name == name })
	if i < 0 {
		return Factory{}, false
	}
	return registry.factories[i], true
}

// Make creates a new element with the named factory.
func Make(factory, name string) (Element, error) {
	f, ok := Lookup(factory)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFactory, factory)
	}
	return f.New(name), nil
}

// Factories returns factories with the klass containing all given
// substrings, ordered by rank from the highest.
func Factories(klass string) []Factory {
	registry.RLock()
	var result []Factory
	for _, f := range registry.factories {
		if klassMatches(f.Klass, klass) {
			result = append(result, f)
		}
	}
	registry.RUnlock()
	slices.SortStableFunc(result, func(a, b Factory) bool {
		return a.Rank > b.Rank
	})
	return result
}

func klassMatches(klass, filter string) bool {
	for _, part := range strings.Split(filter, "/") {
		if !strings.Contains(klass, part) {
			return false
		}
	}
	return true
}
