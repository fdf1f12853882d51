package tts

import (
	"errors"
	"testing"
)

func TestExtractErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "nested error message",
			raw:  `[400 Bad Request] {"error":{"code":400,"message":"Invalid voice name","status":"INVALID_ARGUMENT"}}`,
			want: "Invalid voice name",
		},
		{
			name: "top level message",
			raw:  `upstream said {"message":"model overloaded"}`,
			want: "model overloaded",
		},
		{
			name: "no json",
			raw:  "dial tcp: connection refused",
			want: "dial tcp: connection refused",
		},
		{
			name: "invalid json",
			raw:  "bad {not json}",
			want: "bad {not json}",
		},
		{
			name: "json without message",
			raw:  `failed {"error":{"code":500}}`,
			want: `failed {"error":{"code":500}}`,
		},
		{
			name: "multi-line json",
			raw:  "failed: {\n  \"error\": {\n    \"message\": \"quota\"\n  }\n}",
			want: "quota",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractErrorMessage(tt.raw); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestNewTransportError(t *testing.T) {
	if NewTransportError(nil) != nil {
		t.Error("Expected nil for nil error")
	}

	cause := errors.New(`status 403: {"error":{"message":"permission denied"}}`)
	terr := NewTransportError(cause)
	if terr.Error() != "permission denied" {
		t.Errorf("Expected 'permission denied', got '%s'", terr.Error())
	}
	if !errors.Is(terr, cause) {
		t.Error("Expected TransportError to unwrap to its cause")
	}
}

func TestVoices(t *testing.T) {
	if len(Voices()) != 10 {
		t.Fatalf("Expected 10 voices, got %d", len(Voices()))
	}
	if !IsVoice(DefaultVoice) {
		t.Errorf("Expected default voice %q to be listed", DefaultVoice)
	}
	if IsVoice("Kore") || IsVoice("alloy") {
		t.Error("Expected unknown voice ids to be rejected")
	}
}
