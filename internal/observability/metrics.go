package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sample (play action) metrics
	samplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_sampler_samples_total",
		Help: "Total number of sample requests by outcome",
	}, []string{"outcome"})

	sampleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_sampler_sample_duration_seconds",
		Help:    "End-to-end duration of a sample request in seconds",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})

	// Synthesis metrics
	synthesisRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_sampler_synthesis_requests_total",
		Help: "Total number of synthesis requests",
	}, []string{"status"})

	synthesisLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_sampler_synthesis_latency_seconds",
		Help:    "Synthesis round-trip latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// Audio metrics
	decodedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_sampler_decoded_frames_total",
		Help: "Total audio frames decoded from synthesis payloads",
	})

	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_sampler_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" (payload) or "out" (output)

	// Playback metrics
	playbackActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voice_sampler_playback_active",
		Help: "Whether a playback handle is currently active (0 or 1)",
	})

	playbackPreemptions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_sampler_playback_preemptions_total",
		Help: "Total playbacks stopped because a newer one started",
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_sampler_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voice_sampler_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_sampler_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// RequestMetrics tracks metrics for a single sample request
type RequestMetrics struct {
	requestID          string
	startTime          time.Time
	synthesisStartTime time.Time
	mu                 sync.Mutex
}

// NewRequestMetrics creates a new metrics tracker for a sample request
func NewRequestMetrics(requestID string) *RequestMetrics {
	return &RequestMetrics{
		requestID: requestID,
		startTime: time.Now(),
	}
}

// RecordSampleEnd records the outcome of the whole request
func (m *RequestMetrics) RecordSampleEnd(outcome string) {
	samplesTotal.WithLabelValues(outcome).Inc()
	sampleDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordSynthesisStart records the start of the remote synthesis call
func (m *RequestMetrics) RecordSynthesisStart() {
	m.mu.Lock()
	m.synthesisStartTime = time.Now()
	m.mu.Unlock()
}

// RecordSynthesisEnd records the end of the remote synthesis call
func (m *RequestMetrics) RecordSynthesisEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.synthesisStartTime.IsZero() {
		synthesisLatency.Observe(time.Since(m.synthesisStartTime).Seconds())
	}

	status := "success"
	if !success {
		status = "error"
	}
	synthesisRequests.WithLabelValues(status).Inc()
}

// RecordDecoded records a decoded payload
func (m *RequestMetrics) RecordDecoded(payloadBytes, frames int) {
	audioBytesProcessed.WithLabelValues("in").Add(float64(payloadBytes))
	decodedFrames.Add(float64(frames))
}

// RecordError records an error
func (m *RequestMetrics) RecordError(errorType, component string) {
	RecordError(errorType, component)
}

// RecordError records an error outside of a request scope
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioOut records bytes written to an audio output
func RecordAudioOut(bytes int) {
	audioBytesProcessed.WithLabelValues("out").Add(float64(bytes))
}

// SetPlaybackActive updates the active playback gauge
func SetPlaybackActive(active bool) {
	if active {
		playbackActive.Set(1)
		return
	}
	playbackActive.Set(0)
}

// IncrementPlaybackPreemptions counts a playback stopped by a newer one
func IncrementPlaybackPreemptions() {
	playbackPreemptions.Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
