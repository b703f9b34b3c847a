package metric_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/buzztrax/core/metric"
)

func TestMeter(t *testing.T) {
	sampleRate := 44100
	var tests = []struct {
		kind               string
		routines           int
		buffers            int
		bufferSize         int64
		expectedSamples    string
		expectedBuffers    string
		expectedComponents string
	}{
		{
			kind:               "metric-test-a",
			routines:           2,
			buffers:            10,
			bufferSize:         100,
			expectedSamples:    "2000",
			expectedBuffers:    "20",
			expectedComponents: "2",
		},
		{
			kind:               "metric-test-b",
			routines:           4,
			buffers:            5,
			bufferSize:         10,
			expectedSamples:    "200",
			expectedBuffers:    "20",
			expectedComponents: "4",
		},
	}
	// function to test meter.
	testFn := func(fn metric.MeasureFunc, wg *sync.WaitGroup, buffers int, bufferSize int64) {
		for i := 0; i < buffers; i++ {
			fn(bufferSize)
		}
		wg.Done()
	}

	for _, c := range tests {
		wg := &sync.WaitGroup{}
		wg.Add(c.routines)
		for i := 0; i < c.routines; i++ {
			go testFn(metric.Meter(c.kind, sampleRate), wg, c.buffers, c.bufferSize)
		}
		// check if no data race.
		wg.Wait()
		values := metric.Get(c.kind)
		assert.Equal(t, c.expectedSamples, values[metric.SampleCounter])
		assert.Equal(t, c.expectedBuffers, values[metric.BufferCounter])
		assert.Equal(t, c.expectedComponents, values[metric.ElementCounter])
		assert.Equal(t, "0", values[metric.DropCounter])
	}
	all := metric.GetAll()
	assert.Contains(t, all, "metric-test-a")
}

func TestDrop(t *testing.T) {
	metric.Drop("metric-test-drop")
	metric.Drop("metric-test-drop")
	assert.Equal(t, "2", metric.Get("metric-test-drop")[metric.DropCounter])
}
