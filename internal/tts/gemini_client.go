package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/lexiqai/voice-sampler/internal/config"
	"github.com/lexiqai/voice-sampler/internal/observability"
	"github.com/lexiqai/voice-sampler/internal/resilience"
)

// contentGenerator is the slice of the genai Models API the client needs
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient implements Synthesizer using Gemini's speech generation models
type GeminiClient struct {
	models         contentGenerator
	model          string
	circuitBreaker *resilience.CircuitBreaker
	logger         zerolog.Logger
}

// NewGeminiClient creates a genai client for the configured backend
func NewGeminiClient(ctx context.Context, cfg *config.Config) (*GeminiClient, error) {
	cc := &genai.ClientConfig{}
	switch cfg.GeminiBackend {
	case config.BackendVertex:
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.GoogleProject
		cc.Location = cfg.GoogleLocation
	default:
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = cfg.GeminiAPIKey
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	breaker := resilience.NewCircuitBreaker("gemini", cfg.CircuitBreakerMaxFailures, cfg.CircuitBreakerResetDuration())
	return newGeminiClient(client.Models, cfg.GeminiTTSModel, breaker), nil
}

func newGeminiClient(models contentGenerator, model string, breaker *resilience.CircuitBreaker) *GeminiClient {
	logger := observability.ForComponent("tts").With().Str("model", model).Logger()
	breaker.OnStateChange(func(name string, from, to resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(to))
		logger.Warn().
			Str("breaker", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Circuit breaker state changed")
	})

	return &GeminiClient{
		models:         models,
		model:          model,
		circuitBreaker: breaker,
		logger:         logger,
	}
}

// Name identifies the backend
func (c *GeminiClient) Name() string {
	return "gemini"
}

// BreakerHealth returns an error with the breaker's failure stats while it is open
func (c *GeminiClient) BreakerHealth() error {
	state, requests, failures, rate := c.circuitBreaker.GetStats()
	if state != resilience.StateOpen {
		return nil
	}
	return fmt.Errorf("circuit breaker %s: %d of %d requests failed (%.1f%%)", state, failures, requests, rate)
}

// Synthesize sends the markup as a single text part, asking for audio only
// in the requested prebuilt voice, and returns the first inline audio part.
func (c *GeminiClient) Synthesize(ctx context.Context, req SynthesisRequest) (*Payload, error) {
	genConfig := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: req.Voice,
				},
			},
		},
	}

	var resp *genai.GenerateContentResponse
	err := c.circuitBreaker.Call(ctx, func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.models.GenerateContent(ctx, c.model, genai.Text(req.Markup), genConfig)
		return callErr
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			observability.IncrementCircuitBreakerFailures(c.circuitBreaker.Name())
			return nil, &TransportError{
				Message: "The synthesis service is temporarily unavailable. Please try again shortly.",
				Err:     err,
			}
		}
		terr := &TransportError{Message: apiErrorMessage(err), Err: err}
		c.logger.Error().Err(err).Str("voice", req.Voice).Str("reason", terr.Message).Msg("Synthesis request failed")
		return nil, terr
	}

	payload := firstInlineAudio(resp)
	if payload == nil {
		c.logger.Warn().Str("voice", req.Voice).Msg("Synthesis response carried no audio")
		return nil, ErrNoAudioData
	}

	c.logger.Debug().
		Str("voice", req.Voice).
		Int("bytes", len(payload.Data)).
		Str("mime_type", payload.MIMEType).
		Msg("Synthesis response received")

	return payload, nil
}

// firstInlineAudio returns the inline data of the first part of the first candidate
func firstInlineAudio(resp *genai.GenerateContentResponse) *Payload {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil
	}
	part := candidate.Content.Parts[0]
	if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
		return nil
	}
	return &Payload{
		Data:     part.InlineData.Data,
		MIMEType: part.InlineData.MIMEType,
	}
}

// apiErrorMessage prefers the structured message of a genai.APIError and
// otherwise falls back to the JSON embedded in the error text
func apiErrorMessage(err error) string {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil && strings.TrimSpace(apiErrPtr.Message) != "" {
		return apiErrPtr.Message
	}
	return ExtractErrorMessage(err.Error())
}
