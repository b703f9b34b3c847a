// Package metric exposes expvar counters for element kinds.
package metric

import (
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/buzztrax/core/signal"
)

const elementsLabel = "buzztrax.elements"

const (
	// BufferCounter measures number of buffers.
	BufferCounter = "Buffers"
	// SampleCounter measures number of samples.
	SampleCounter = "Samples"
	// DropCounter measures number of buffers that could not be delivered.
	DropCounter = "Dropped"
	// LatencyCounter measures latency between processing calls.
	LatencyCounter = "Latency"
	// DurationCounter counts what's the duration of signal.
	DurationCounter = "Duration"
	// ElementCounter counts number of metered elements.
	ElementCounter = "Elements"
)

var (
	elements = metrics{
		m: make(map[string]metric),
	}

	counters = []string{
		BufferCounter,
		SampleCounter,
		DropCounter,
		LatencyCounter,
		DurationCounter,
		ElementCounter,
	}
)

// Get metrics values for provided element kind.
func Get(kind string) map[string]string {
	m := make(map[string]string)
	for _, counter := range counters {
		v := expvar.Get(key(kind, counter))
		if v != nil {
			m[counter] = v.String()
		}
	}
	return m
}

// GetAll returns counters for all measured element kinds.
func GetAll() map[string]map[string]string {
	m := make(map[string]map[string]string)
	elements.Lock()
	defer elements.Unlock()
	for kind := range elements.m {
		m[kind] = Get(kind)
	}
	return m
}

// MeasureFunc captures metrics when buffer is processed.
type MeasureFunc func(samples int64)

// Meter creates new meter closure to capture element counters.
func Meter(kind string, sampleRate int) MeasureFunc {
	metric := elements.get(kind)
	metric.elements.Add(1)
	calledAt := time.Now()
	var (
		bufferSize     int64
		bufferDuration time.Duration
	)
	return func(s int64) {
		metric.latency.set(time.Since(calledAt))
		metric.buffers.Add(1)
		metric.samples.Add(s)
		// recalculate buffer duration only when buffer size has changed
		if bufferSize != s {
			bufferSize = s
			bufferDuration = signal.DurationOf(sampleRate, s)
		}
		metric.duration.add(bufferDuration)
		calledAt = time.Now()
	}
}

// Drop counts a buffer of the element kind that was not delivered.
func Drop(kind string) {
	elements.get(kind).dropped.Add(1)
}

type metrics struct {
	sync.Mutex
	m map[string]metric
}

func (m *metrics) get(kind string) metric {
	m.Lock()
	defer m.Unlock()
	if metric, ok := m.m[kind]; ok {
		return metric
	}
	metric := newMetric(kind)
	m.m[kind] = metric
	return metric
}

type metric struct {
	elements *expvar.Int
	buffers  *expvar.Int
	samples  *expvar.Int
	dropped  *expvar.Int
	latency  *duration
	duration *duration
}

func newMetric(kind string) metric {
	m := metric{
		elements: expvar.NewInt(key(kind, ElementCounter)),
		buffers:  expvar.NewInt(key(kind, BufferCounter)),
		samples:  expvar.NewInt(key(kind, SampleCounter)),
		dropped:  expvar.NewInt(key(kind, DropCounter)),
		latency:  &duration{},
		duration: &duration{},
	}
	expvar.Publish(key(kind, LatencyCounter), m.latency)
	expvar.Publish(key(kind, DurationCounter), m.duration)
	return m
}

func key(kind, counter string) string {
	return fmt.Sprintf("%s.%s.%s", elementsLabel, kind, counter)
}

// duration allows to format time.Duration metric values.
type duration struct {
	d int64
}

func (v *duration) String() string {
	return fmt.Sprintf("%q", time.Duration(atomic.LoadInt64(&v.d)))
}

func (v *duration) add(delta time.Duration) {
	atomic.AddInt64(&v.d, int64(delta))
}

func (v *duration) set(value time.Duration) {
	atomic.StoreInt64(&v.d, int64(value))
}
