// Package signal provides an API to manipulate digital signals. It allows to:
// 	- convert non-interleaved float data to interleaved ints and back
// 	- remap channels and resample buffers
// 	- mix several buffers into one
package signal

import (
	"math"
	"time"
)

// Float64 is a non-interleaved float64 signal.
type Float64 [][]float64

const (
	// BitDepth8 is 8 bit depth.
	BitDepth8 = BitDepth(8)
	// BitDepth16 is 16 bit depth.
	BitDepth16 = BitDepth(16)
	// BitDepth32 is 32 bit depth.
	BitDepth32 = BitDepth(32)
)

// InterInt is an interleaved int signal.
type InterInt struct {
	Data        []int
	NumChannels int
	BitDepth
}

// BitDepth contains values required for int-to-float and backward conversion.
type BitDepth int

// divider is used when int to float conversion is done.
func (bitDepth BitDepth) divider() int {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8
	case BitDepth16:
		return math.MaxInt16
	case BitDepth32:
		return math.MaxInt32
	default:
		return 1
	}
}

// multiplier is used when float to int conversion is done.
func (bitDepth BitDepth) multiplier() int {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8 - 1
	case BitDepth16:
		return math.MaxInt16 - 1
	case BitDepth32:
		return math.MaxInt32 - 1
	default:
		return 1
	}
}

// DurationOf returns time duration of passed samples for this sample rate.
func DurationOf(sampleRate int, samples int64) time.Duration {
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// AsFloat64 converts interleaved int signal to float64.
func (ints InterInt) AsFloat64() Float64 {
	if ints.Data == nil || ints.NumChannels == 0 {
		return nil
	}
	floats := make([][]float64, ints.NumChannels)
	bufSize := int(math.Ceil(float64(len(ints.Data)) / float64(ints.NumChannels)))
	divider := float64(ints.BitDepth.divider())

	for i := range floats {
		floats[i] = make([]float64, bufSize)
		pos := 0
		for j := i; j < len(ints.Data); j = j + ints.NumChannels {
			floats[i][pos] = float64(ints.Data[j]) / divider
			pos++
		}
	}
	return floats
}

// AsInterInt converts float64 signal to interleaved int. Samples are
// clipped to [-1, 1] before conversion.
func (floats Float64) AsInterInt(bitDepth BitDepth) []int {
	var numChannels int
	if numChannels = len(floats); numChannels == 0 {
		return nil
	}
	multiplier := float64(bitDepth.multiplier())
	ints := make([]int, len(floats[0])*numChannels)
	for j := range floats {
		for i := range floats[j] {
			ints[i*numChannels+j] = int(clip(floats[j][i]) * multiplier)
		}
	}
	return ints
}

// AsInterFloat32 converts float64 signal to interleaved float32 into dst.
// dst must hold at least Size()*NumChannels() values.
func (floats Float64) AsInterFloat32(dst []float32) {
	numChannels := len(floats)
	for j := range floats {
		for i := range floats[j] {
			dst[i*numChannels+j] = float32(clip(floats[j][i]))
		}
	}
}

// EmptyFloat64 returns an empty buffer of specified dimensions.
func EmptyFloat64(numChannels int, bufferSize int) Float64 {
	result := make([][]float64, numChannels)
	for i := range result {
		result[i] = make([]float64, bufferSize)
	}
	return result
}

// NumChannels returns number of channels in this sample slice
func (floats Float64) NumChannels() int {
	return len(floats)
}

// Size returns number of samples in single block in this sample slice
func (floats Float64) Size() int {
	if floats.NumChannels() == 0 {
		return 0
	}
	return len(floats[0])
}

// Copy returns a deep copy of the buffer.
func (floats Float64) Copy() Float64 {
	if floats == nil {
		return nil
	}
	result := make([][]float64, len(floats))
	for i := range floats {
		result[i] = append(make([]float64, 0, len(floats[i])), floats[i]...)
	}
	return result
}

// Remap returns the signal with numChannels channels. Downmix averages all
// source channels, upmix of mono duplicates it and other upmixes repeat
// source channels cyclically.
func (floats Float64) Remap(numChannels int) Float64 {
	in := floats.NumChannels()
	if in == numChannels || in == 0 || numChannels <= 0 {
		return floats
	}
	size := floats.Size()
	result := EmptyFloat64(numChannels, size)
	if numChannels < in {
		for i := 0; i < size; i++ {
			var sum float64
			for c := 0; c < in; c++ {
				sum += floats[c][i]
			}
			for c := 0; c < numChannels; c++ {
				result[c][i] = sum / float64(in)
			}
		}
		return result
	}
	for c := 0; c < numChannels; c++ {
		copy(result[c], floats[c%in])
	}
	return result
}

// Resample converts the signal from one sample rate to another with
// linear interpolation.
func (floats Float64) Resample(from, to int) Float64 {
	if from == to || from <= 0 || to <= 0 || floats.Size() == 0 {
		return floats
	}
	size := floats.Size()
	outSize := int(math.Round(float64(size) * float64(to) / float64(from)))
	if outSize == 0 {
		outSize = 1
	}
	ratio := float64(from) / float64(to)
	result := EmptyFloat64(floats.NumChannels(), outSize)
	for c := range floats {
		for i := 0; i < outSize; i++ {
			pos := float64(i) * ratio
			idx := int(pos)
			if idx >= size-1 {
				result[c][i] = floats[c][size-1]
				continue
			}
			frac := pos - float64(idx)
			result[c][i] = floats[c][idx]*(1-frac) + floats[c][idx+1]*frac
		}
	}
	return result
}

// Mix sums buffers sample by sample. Buffers may differ in size, the
// result has the size of the longest. Channel count is taken from the
// first buffer.
func Mix(buffers ...Float64) Float64 {
	if len(buffers) == 0 {
		return nil
	}
	var size int
	for _, b := range buffers {
		if s := b.Size(); s > size {
			size = s
		}
	}
	result := EmptyFloat64(buffers[0].NumChannels(), size)
	for _, b := range buffers {
		for c := range result {
			if c >= len(b) {
				continue
			}
			for i := range b[c] {
				result[c][i] += b[c][i]
			}
		}
	}
	return result
}

// Scale multiplies every sample by gain in place.
func (floats Float64) Scale(gain float64) {
	for c := range floats {
		for i := range floats[c] {
			floats[c][i] *= gain
		}
	}
}

func clip(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}
