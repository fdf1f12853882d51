package tts

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoAudioData is returned when the service answers without an audio payload
var ErrNoAudioData = errors.New("no audio data received from the API")

// TransportError is a failed synthesis call (network, auth, quota, service error).
// Message is the best human-readable reason that could be extracted.
type TransportError struct {
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	return e.Message
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err, extracting an embedded service message when present
func NewTransportError(err error) *TransportError {
	if err == nil {
		return nil
	}
	return &TransportError{Message: ExtractErrorMessage(err.Error()), Err: err}
}

var embeddedJSON = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractErrorMessage returns the "message" of a JSON error object embedded
// in raw, e.g. `got status 400: {"error":{"message":"API key not valid"}}`.
// It falls back to raw when there is no object or it carries no message.
func ExtractErrorMessage(raw string) string {
	match := embeddedJSON.FindString(raw)
	if match == "" {
		return raw
	}

	var body struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(match), &body); err != nil {
		return raw
	}

	if body.Error != nil && strings.TrimSpace(body.Error.Message) != "" {
		return body.Error.Message
	}
	if strings.TrimSpace(body.Message) != "" {
		return body.Message
	}
	return raw
}
