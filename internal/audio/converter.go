package audio

import (
	"math"
)

// bytesToSamples converts 16-bit signed little-endian PCM to integers.
// An odd trailing byte is ignored.
func bytesToSamples(pcmData []byte) []int16 {
	samples := make([]int16, len(pcmData)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int16(pcmData[i*2]) | int16(pcmData[i*2+1])<<8
	}
	return samples
}

// samplesToBytes converts integers to 16-bit signed little-endian PCM
func samplesToBytes(samples []int16) []byte {
	pcmData := make([]byte, len(samples)*2)
	for i, sample := range samples {
		pcmData[i*2] = byte(sample)
		pcmData[i*2+1] = byte(sample >> 8)
	}
	return pcmData
}

// floatToPCM16 converts a normalized sample back to int16, clipping to range
func floatToPCM16(v float32) int16 {
	scaled := math.Round(float64(v) * pcm16Scale)
	if scaled > math.MaxInt16 {
		return math.MaxInt16
	}
	if scaled < math.MinInt16 {
		return math.MinInt16
	}
	return int16(scaled)
}

// EncodePCM16 converts a decoded buffer back to interleaved 16-bit
// little-endian PCM, for outputs that consume raw bytes
func EncodePCM16(b *Buffer) []byte {
	interleaved := b.Interleaved()
	samples := make([]int16, len(interleaved))
	for i, v := range interleaved {
		samples[i] = floatToPCM16(v)
	}
	return samplesToBytes(samples)
}

// CalculateRMS calculates the root mean square (RMS) of normalized samples
// Useful for detecting audio levels and silence
func CalculateRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// Peak returns the largest absolute sample value across all channels
func (b *Buffer) Peak() float64 {
	peak := 0.0
	for _, data := range b.Channels {
		for _, sample := range data {
			if abs := math.Abs(float64(sample)); abs > peak {
				peak = abs
			}
		}
	}
	return peak
}

// RMS returns the RMS level across all channels
func (b *Buffer) RMS() float64 {
	return CalculateRMS(b.Interleaved())
}

// IsSilent reports whether the buffer is empty or its RMS level is below threshold
func (b *Buffer) IsSilent(threshold float64) bool {
	if b.Frames() == 0 {
		return true
	}
	return b.RMS() < threshold
}
