package tts

import "context"

// SynthesisRequest is a single remote synthesis call
type SynthesisRequest struct {
	Markup string // speech markup document
	Voice  string // prebuilt voice id, e.g. "kore"
}

// Payload is the audio returned by the synthesis service.
// For Gemini TTS this is PCM16 little-endian, mono, 24kHz.
type Payload struct {
	Data     []byte
	MIMEType string
}

// Synthesizer defines the interface for a text-to-speech backend
type Synthesizer interface {
	// Synthesize issues one synthesis request and returns the audio payload
	Synthesize(ctx context.Context, req SynthesisRequest) (*Payload, error)

	// Name identifies the backend in logs and health checks
	Name() string
}
