package audio

import (
	"encoding/base64"
	"fmt"
	"time"
)

// Contract of the synthesis service: PCM16 little-endian, mono, 24kHz
const (
	DefaultSampleRate = 24000
	DefaultChannels   = 1
)

// pcm16Scale maps int16 samples onto [-1, 1)
const pcm16Scale = 32768.0

// Buffer is decoded audio: one slice of normalized samples per channel
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// NumChannels returns the number of channels in the buffer
func (b *Buffer) NumChannels() int {
	return len(b.Channels)
}

// Frames returns the number of samples per channel
func (b *Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playback length of the buffer
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Interleaved returns the samples in frame order (f0c0, f0c1, f1c0, ...)
func (b *Buffer) Interleaved() []float32 {
	channels := b.NumChannels()
	frames := b.Frames()
	out := make([]float32, frames*channels)
	for c, data := range b.Channels {
		for f := 0; f < frames; f++ {
			out[f*channels+c] = data[f]
		}
	}
	return out
}

// Decode base64-decodes a synthesis payload and converts it with DecodePCM16.
// Only malformed base64 is reported; sample content is never validated.
func Decode(payload string, sampleRate, numChannels int) (*Buffer, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 audio payload: %w", err)
	}
	return DecodePCM16(raw, sampleRate, numChannels), nil
}

// DecodePCM16 reinterprets raw bytes as interleaved 16-bit little-endian
// samples and splits them into normalized per-channel slices.
// A trailing partial frame is dropped.
func DecodePCM16(raw []byte, sampleRate, numChannels int) *Buffer {
	if numChannels < 1 {
		numChannels = 1
	}

	samples := bytesToSamples(raw)
	frames := len(samples) / numChannels

	channels := make([][]float32, numChannels)
	for c := range channels {
		data := make([]float32, frames)
		for f := 0; f < frames; f++ {
			data[f] = float32(float64(samples[f*numChannels+c]) / pcm16Scale)
		}
		channels[c] = data
	}

	return &Buffer{
		SampleRate: sampleRate,
		Channels:   channels,
	}
}
