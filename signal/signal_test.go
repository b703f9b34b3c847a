package signal_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/buzztrax/core/signal"
)

func TestInterIntsAsFloat64(t *testing.T) {
	tests := []struct {
		ints        []int
		numChannels int
		bitDepth    signal.BitDepth
		expected    [][]float64
	}{
		{
			ints:        []int{1, 2, 1, 2, 1, 2, 1, 2},
			numChannels: 2,
			expected: [][]float64{
				{1, 1, 1, 1},
				{2, 2, 2, 2},
			},
		},
		{
			ints:        []int{1, 2, 1, 2, 1},
			numChannels: 2,
			expected: [][]float64{
				{1, 1, 1},
				{2, 2, 0},
			},
		},
		{
			ints:        []int{math.MaxInt16, math.MaxInt16 * 2},
			numChannels: 2,
			expected: [][]float64{
				{1},
				{2},
			},
			bitDepth: signal.BitDepth16,
		},
		{
			ints:     nil,
			expected: nil,
		},
	}

	for _, test := range tests {
		ints := signal.InterInt{
			Data:        test.ints,
			NumChannels: test.numChannels,
			BitDepth:    test.bitDepth,
		}
		result := ints.AsFloat64()
		assert.Equal(t, len(test.expected), len(result))
		for i := range test.expected {
			for j, val := range test.expected[i] {
				assert.Equal(t, val, result[i][j])
			}
		}
	}
}

func TestFloat64AsInterInt(t *testing.T) {
	floats := signal.Float64{
		{0.5, 1, 2},
		{-0.5, -1, -2},
	}
	ints := floats.AsInterInt(signal.BitDepth16)
	m := math.MaxInt16 - 1
	assert.Equal(t, []int{m / 2, -m / 2, m, -m, m, -m}, ints)
	assert.Nil(t, signal.Float64(nil).AsInterInt(signal.BitDepth16))
}

func TestRemap(t *testing.T) {
	tests := []struct {
		description string
		in          signal.Float64
		channels    int
		expected    signal.Float64
	}{
		{
			description: "mono to stereo",
			in:          signal.Float64{{1, 2}},
			channels:    2,
			expected:    signal.Float64{{1, 2}, {1, 2}},
		},
		{
			description: "stereo to mono",
			in:          signal.Float64{{1, 2}, {3, 4}},
			channels:    1,
			expected:    signal.Float64{{2, 3}},
		},
		{
			description: "same layout",
			in:          signal.Float64{{1}, {2}},
			channels:    2,
			expected:    signal.Float64{{1}, {2}},
		},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, test.in.Remap(test.channels), test.description)
	}
}

func TestResample(t *testing.T) {
	in := signal.Float64{{0, 1, 2, 3}}
	out := in.Resample(22050, 44100)
	assert.Equal(t, 8, out.Size())
	assert.Equal(t, 0.0, out[0][0])
	assert.Equal(t, 0.5, out[0][1])
	assert.Equal(t, 1.0, out[0][2])

	down := in.Resample(44100, 22050)
	assert.Equal(t, 2, down.Size())
	assert.Equal(t, signal.Float64{{0, 2}}, down)

	assert.Equal(t, in, in.Resample(44100, 44100))
}

func TestMix(t *testing.T) {
	a := signal.Float64{{0.1, 0.2}, {0.3, 0.4}}
	b := signal.Float64{{0.1}, {0.1}}
	mixed := signal.Mix(a, b)
	assert.InDelta(t, 0.2, mixed[0][0], 1e-9)
	assert.InDelta(t, 0.2, mixed[0][1], 1e-9)
	assert.InDelta(t, 0.4, mixed[1][0], 1e-9)
	assert.InDelta(t, 0.4, mixed[1][1], 1e-9)
	assert.Nil(t, signal.Mix())
}

func TestDurationOf(t *testing.T) {
	assert.Equal(t, "1s", signal.DurationOf(44100, 44100).String())
}
