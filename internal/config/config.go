package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Supported values for GEMINI_BACKEND
const (
	BackendGemini = "gemini"
	BackendVertex = "vertex"
)

// Supported values for PLAYBACK_OUTPUT
const (
	OutputStream  = "stream"
	OutputExec    = "exec"
	OutputDiscard = "discard"
)

// Config holds all configuration for the voice sampler service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Gemini TTS configuration
	GeminiAPIKey     string `envconfig:"GEMINI_API_KEY" default:""`
	GeminiBackend    string `envconfig:"GEMINI_BACKEND" default:"gemini"` // gemini, vertex
	GoogleProject    string `envconfig:"GOOGLE_CLOUD_PROJECT" default:""`
	GoogleLocation   string `envconfig:"GOOGLE_CLOUD_LOCATION" default:"global"`
	GeminiTTSModel   string `envconfig:"GEMINI_TTS_MODEL" default:"gemini-2.5-flash-preview-tts"`
	SynthesisTimeout int    `envconfig:"SYNTHESIS_TIMEOUT" default:"60"` // seconds

	// Audio contract of the synthesis service (PCM16, little-endian)
	AudioSampleRate  int     `envconfig:"AUDIO_SAMPLE_RATE" default:"24000"`
	AudioChannels    int     `envconfig:"AUDIO_CHANNELS" default:"1"`
	SilenceThreshold float64 `envconfig:"SILENCE_THRESHOLD" default:"0.001"` // RMS below which a payload is logged as silent

	// Playback configuration
	PlaybackOutput string `envconfig:"PLAYBACK_OUTPUT" default:"stream"` // stream, exec, discard
	PlayerCommand  string `envconfig:"PLAYER_COMMAND"` // defaults to DefaultPlayerCommand for the audio format

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file (or ENV_FILE) if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load(GetEnv("ENV_FILE", ".env"))

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field requirements that struct tags cannot express
func (c *Config) Validate() error {
	c.GeminiBackend = strings.ToLower(strings.TrimSpace(c.GeminiBackend))
	switch c.GeminiBackend {
	case BackendGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
	case BackendVertex:
		if c.GoogleProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for the vertex backend")
		}
	default:
		return fmt.Errorf("unsupported GEMINI_BACKEND %q", c.GeminiBackend)
	}

	c.PlaybackOutput = strings.ToLower(strings.TrimSpace(c.PlaybackOutput))
	switch c.PlaybackOutput {
	case OutputStream, OutputExec, OutputDiscard:
	default:
		return fmt.Errorf("unsupported PLAYBACK_OUTPUT %q", c.PlaybackOutput)
	}

	if c.AudioSampleRate <= 0 {
		return fmt.Errorf("AUDIO_SAMPLE_RATE must be positive, got %d", c.AudioSampleRate)
	}
	if c.AudioChannels <= 0 {
		return fmt.Errorf("AUDIO_CHANNELS must be positive, got %d", c.AudioChannels)
	}

	c.PlayerCommand = strings.TrimSpace(c.PlayerCommand)
	if c.PlayerCommand == "" {
		c.PlayerCommand = DefaultPlayerCommand(c.AudioSampleRate, c.AudioChannels)
	}

	return nil
}

// DefaultPlayerCommand is an ffplay invocation reading raw s16le PCM of the
// given format from stdin
func DefaultPlayerCommand(sampleRate, channels int) string {
	return fmt.Sprintf("ffplay -autoexit -nodisp -loglevel quiet -f s16le -ar %d -ac %d -i -", sampleRate, channels)
}

// SynthesisTimeoutDuration returns the per-request synthesis deadline
func (c *Config) SynthesisTimeoutDuration() time.Duration {
	return time.Duration(c.SynthesisTimeout) * time.Second
}

// CircuitBreakerResetDuration returns how long the breaker stays open
func (c *Config) CircuitBreakerResetDuration() time.Duration {
	return time.Duration(c.CircuitBreakerResetTimeout) * time.Second
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
