package sampler

import (
	"errors"
	"fmt"

	"github.com/lexiqai/voice-sampler/internal/markup"
	"github.com/lexiqai/voice-sampler/internal/playback"
	"github.com/lexiqai/voice-sampler/internal/tts"
)

// Command is one user action on the sampler page
type Command interface {
	command()
}

type (
	// SetText replaces the text box contents
	SetText struct{ Text string }

	// InsertTag replaces the selection [Start, End) with the tag padded by
	// spaces. Offsets count characters (runes).
	InsertTag struct {
		Tag   string
		Start int
		End   int
	}

	SelectVoice struct{ Voice string }
	SetPitch    struct{ Semitones float64 }
	SetRate     struct{ Rate float64 }
	SetEmphasis struct{ Emphasis markup.Emphasis }
	SetStyle    struct{ Style markup.Style }
	SetPauses   struct{ Enabled bool }

	// ApplyForm applies several field commands as one update: either all of
	// them take effect or, on the first invalid one, none do
	ApplyForm struct{ Commands []Command }

	// Submit builds, synthesizes and plays the current form
	Submit struct{ RequestID string }

	// Stop silences the current playback and discards any in-flight result
	Stop struct{}
)

func (SetText) command()     {}
func (InsertTag) command()   {}
func (SelectVoice) command() {}
func (SetPitch) command()    {}
func (SetRate) command()     {}
func (SetEmphasis) command() {}
func (SetStyle) command()    {}
func (SetPauses) command()   {}
func (ApplyForm) command()   {}
func (Submit) command()      {}
func (Stop) command()        {}

// Result is the form after a command plus any command-specific output
type Result struct {
	Form FormState `json:"form"`

	// Cursor is the caret position after InsertTag
	Cursor int `json:"cursor,omitempty"`

	// Sample is set by Submit
	Sample *Sample `json:"sample,omitempty"`
}

// Sample describes one completed Submit
type Sample struct {
	RequestID string  `json:"request_id"`
	Markup    string  `json:"markup"`
	Voice     string  `json:"voice"`
	Frames    int     `json:"frames"`
	Duration  float64 `json:"duration_seconds"`
	HandleID  string  `json:"handle_id,omitempty"`
	// Played is false when a Stop arrived while the request was in flight
	Played bool `json:"played"`
}

var (
	// ErrEmptyInput is returned by Submit when the text is blank
	ErrEmptyInput = errors.New("text is empty")

	// ErrBusy is returned by Submit while another request is in flight
	ErrBusy = errors.New("a sample is already being generated")

	// ErrInvalidParameter is returned for out-of-range or unknown form values
	ErrInvalidParameter = errors.New("invalid parameter")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

// UserMessage turns an error into the single line shown on the page
func UserMessage(err error) string {
	var transportErr *tts.TransportError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyInput):
		return "Please enter some text to sample."
	case errors.Is(err, ErrBusy):
		return "A sample is already being generated."
	case errors.Is(err, ErrInvalidParameter):
		return err.Error()
	case errors.Is(err, playback.ErrUnsupportedPlatform):
		return "Audio output is not supported on this host."
	case errors.Is(err, tts.ErrNoAudioData):
		return "Failed to generate audio. No audio data received from the API."
	case errors.As(err, &transportErr):
		return "Failed to generate audio. " + transportErr.Message
	default:
		return "Failed to generate audio. " + err.Error()
	}
}

// outcome labels a Submit result for metrics
func outcome(err error) string {
	var transportErr *tts.TransportError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, playback.ErrUnsupportedPlatform):
		return "unsupported"
	case errors.Is(err, tts.ErrNoAudioData):
		return "no_audio"
	case errors.As(err, &transportErr):
		return "transport_error"
	default:
		return "error"
	}
}
