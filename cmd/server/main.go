package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexiqai/voice-sampler/internal/api"
	"github.com/lexiqai/voice-sampler/internal/config"
	"github.com/lexiqai/voice-sampler/internal/observability"
	"github.com/lexiqai/voice-sampler/internal/playback"
	"github.com/lexiqai/voice-sampler/internal/sampler"
	"github.com/lexiqai/voice-sampler/internal/tts"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("backend", cfg.GeminiBackend).
		Str("model", cfg.GeminiTTSModel).
		Str("playback_output", cfg.PlaybackOutput).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Voice Sampler Service starting")

	ctx := context.Background()

	synthesizer, err := tts.NewGeminiClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create synthesis client")
	}

	// Create HTTP server
	mux := http.NewServeMux()

	// Audio output
	var factory playback.OutputFactory
	switch cfg.PlaybackOutput {
	case config.OutputExec:
		factory = playback.NewExecOutputFactory(cfg.PlayerCommand, logger)
	case config.OutputDiscard:
		factory = playback.NewDiscardOutputFactory()
	default:
		stream := playback.NewStreamOutput(logger)
		factory = stream.Factory()
		mux.Handle("/streams/playback", stream)
	}
	controller := playback.NewController(factory, logger)

	session := sampler.NewSession(cfg, synthesizer, controller, logger)
	api.NewHandler(session, logger).Register(mux)

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness endpoint; no synthesis call is made to avoid API costs
	geminiCheck := func(ctx context.Context) (bool, error) {
		if err := synthesizer.BreakerHealth(); err != nil {
			return false, err
		}
		return true, nil
	}
	playbackCheck := func(ctx context.Context) (bool, error) {
		if err := controller.Ready(); err != nil {
			return false, err
		}
		return true, nil
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"gemini":   geminiCheck,
		"playback": playbackCheck,
	}))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Synthesis can take a while; the write timeout covers the whole call
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.SynthesisTimeoutDuration() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("http://localhost:%s/api/sample", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := controller.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close audio output")
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
