package sampler

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-sampler/internal/audio"
	"github.com/lexiqai/voice-sampler/internal/config"
	"github.com/lexiqai/voice-sampler/internal/markup"
	"github.com/lexiqai/voice-sampler/internal/observability"
	"github.com/lexiqai/voice-sampler/internal/playback"
	"github.com/lexiqai/voice-sampler/internal/tts"
)

// Player is the playback side of a session. *playback.Controller implements it.
type Player interface {
	Ready() error
	Play(ctx context.Context, buf *audio.Buffer) (playback.Handle, error)
	StopCurrent() error
}

// Session holds one sampler form and runs its commands
type Session struct {
	// Collaborators
	synthesizer tts.Synthesizer
	player      Player

	// Audio contract of the synthesis service
	sampleRate int
	channels   int

	synthesisTimeout time.Duration
	silenceThreshold float64

	// State management
	mu         sync.Mutex
	form       FormState
	generation uint64

	logger zerolog.Logger
}

// NewSession creates a session starting from DefaultForm
func NewSession(cfg *config.Config, synthesizer tts.Synthesizer, player Player, logger zerolog.Logger) *Session {
	sampleRate := cfg.AudioSampleRate
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}
	channels := cfg.AudioChannels
	if channels <= 0 {
		channels = audio.DefaultChannels
	}

	return &Session{
		synthesizer:      synthesizer,
		player:           player,
		sampleRate:       sampleRate,
		channels:         channels,
		synthesisTimeout: cfg.SynthesisTimeoutDuration(),
		silenceThreshold: cfg.SilenceThreshold,
		form:             DefaultForm(),
		logger:           logger.With().Str("component", "sampler").Logger(),
	}
}

// Form returns a snapshot of the form
func (s *Session) Form() FormState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

// Handle runs one command and returns the resulting form
func (s *Session) Handle(ctx context.Context, cmd Command) (Result, error) {
	switch c := cmd.(type) {
	case Submit:
		return s.submit(ctx, c)
	case Stop:
		return s.stop()
	case InsertTag:
		return s.insertTag(c)
	default:
		return s.update(cmd)
	}
}

// update applies a field command, or every command of an ApplyForm, to a
// copy of the form and commits it only when all of them are valid
func (s *Session) update(cmd Command) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	form := s.form
	commands := []Command{cmd}
	if batch, ok := cmd.(ApplyForm); ok {
		commands = batch.Commands
	}
	for _, c := range commands {
		if err := applyField(&form, c); err != nil {
			return Result{Form: s.form}, err
		}
	}

	s.form = form
	return Result{Form: s.form}, nil
}

func applyField(form *FormState, cmd Command) error {
	switch c := cmd.(type) {
	case SetText:
		form.Text = c.Text
	case SelectVoice:
		if !tts.IsVoice(c.Voice) {
			return invalid("unknown voice %q", c.Voice)
		}
		form.Voice = c.Voice
	case SetPitch:
		if !inRange(c.Semitones, MinPitch, MaxPitch) {
			return invalid("pitch %v outside [%v, %v]", c.Semitones, MinPitch, MaxPitch)
		}
		form.PitchSemitones = c.Semitones
	case SetRate:
		if !inRange(c.Rate, MinRate, MaxRate) {
			return invalid("speaking rate %v outside [%v, %v]", c.Rate, MinRate, MaxRate)
		}
		form.SpeakingRate = c.Rate
	case SetEmphasis:
		e, err := markup.ParseEmphasis(string(c.Emphasis))
		if err != nil {
			return invalid("%v", err)
		}
		form.Emphasis = e
	case SetStyle:
		st, err := markup.ParseStyle(string(c.Style))
		if err != nil {
			return invalid("%v", err)
		}
		form.Style = st
	case SetPauses:
		form.AddPauses = c.Enabled
	default:
		return fmt.Errorf("unsupported form command %T", cmd)
	}
	return nil
}

// inRange rejects NaN, which compares false against both bounds
func inRange(v, min, max float64) bool {
	return !math.IsNaN(v) && v >= min && v <= max
}

func (s *Session) insertTag(c InsertTag) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !IsQuickTag(c.Tag) {
		return Result{Form: s.form}, invalid("unknown tag %q", c.Tag)
	}

	runes := []rune(s.form.Text)
	if c.Start < 0 || c.End < c.Start || c.End > len(runes) {
		return Result{Form: s.form}, invalid("selection [%d, %d) outside text of length %d", c.Start, c.End, len(runes))
	}

	s.form.Text = string(runes[:c.Start]) + " " + c.Tag + " " + string(runes[c.End:])

	return Result{
		Form:   s.form,
		Cursor: c.Start + utf8.RuneCountInString(c.Tag) + 2,
	}, nil
}

// stop silences playback and advances the generation so an in-flight
// Submit completes without playing
func (s *Session) stop() (Result, error) {
	s.mu.Lock()
	s.generation++
	form := s.form
	s.mu.Unlock()

	if err := s.player.StopCurrent(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to stop playback")
	}
	s.logger.Debug().Msg("Playback stopped")

	return Result{Form: form}, nil
}

func (s *Session) submit(ctx context.Context, c Submit) (result Result, err error) {
	requestID := c.RequestID
	if requestID == "" {
		requestID = observability.NewCorrelationID()
	}
	logger := s.logger.With().Str("request_id", requestID).Logger()
	metrics := observability.NewRequestMetrics(requestID)

	s.mu.Lock()
	if strings.TrimSpace(s.form.Text) == "" {
		s.form.Error = UserMessage(ErrEmptyInput)
		form := s.form
		s.mu.Unlock()
		metrics.RecordSampleEnd(outcome(ErrEmptyInput))
		return Result{Form: form}, ErrEmptyInput
	}
	if s.form.Busy {
		form := s.form
		s.mu.Unlock()
		metrics.RecordSampleEnd(outcome(ErrBusy))
		return Result{Form: form}, ErrBusy
	}
	s.form.Busy = true
	s.form.Error = ""
	s.generation++
	generation := s.generation
	form := s.form
	s.mu.Unlock()

	// Busy is cleared on every path
	defer func() {
		s.mu.Lock()
		s.form.Busy = false
		if err != nil {
			s.form.Error = UserMessage(err)
		}
		result.Form = s.form
		s.mu.Unlock()

		metrics.RecordSampleEnd(outcome(err))
		if err != nil {
			logger.Error().Err(err).Msg("Sample failed")
		}
	}()

	// Pressing play silences whatever is playing
	if err := s.player.StopCurrent(); err != nil {
		logger.Warn().Err(err).Msg("Failed to stop previous playback")
	}
	if err := s.player.Ready(); err != nil {
		metrics.RecordError("unsupported_platform", "playback")
		return Result{}, err
	}

	doc := markup.Build(form.MarkupParams())
	logger.Debug().
		Str("voice", form.Voice).
		Float64("pitch", form.PitchSemitones).
		Float64("rate", form.SpeakingRate).
		Str("markup", doc).
		Msg("Requesting synthesis")

	synthCtx := ctx
	if s.synthesisTimeout > 0 {
		var cancel context.CancelFunc
		synthCtx, cancel = context.WithTimeout(ctx, s.synthesisTimeout)
		defer cancel()
	}

	metrics.RecordSynthesisStart()
	payload, err := s.synthesizer.Synthesize(synthCtx, tts.SynthesisRequest{Markup: doc, Voice: form.Voice})
	metrics.RecordSynthesisEnd(err == nil)
	if err != nil {
		metrics.RecordError("synthesis", "tts")
		return Result{}, err
	}

	buf := audio.DecodePCM16(payload.Data, s.sampleRate, s.channels)
	metrics.RecordDecoded(len(payload.Data), buf.Frames())
	if buf.Frames() == 0 {
		metrics.RecordError("empty_payload", "audio")
		return Result{}, tts.ErrNoAudioData
	}
	if buf.IsSilent(s.silenceThreshold) {
		logger.Warn().Float64("rms", buf.RMS()).Msg("Synthesized audio is silent")
	}

	sample := &Sample{
		RequestID: requestID,
		Markup:    doc,
		Voice:     form.Voice,
		Frames:    buf.Frames(),
		Duration:  buf.Duration().Seconds(),
	}

	// The generation check and Play happen under the lock so a Stop cannot
	// slip in between them
	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		logger.Info().Msg("Discarding stale sample")
		return Result{Sample: sample}, nil
	}
	handle, err := s.player.Play(ctx, buf)
	s.mu.Unlock()
	if err != nil {
		metrics.RecordError("play", "playback")
		return Result{}, err
	}

	sample.HandleID = handle.ID()
	sample.Played = true

	logger.Info().
		Str("voice", form.Voice).
		Int("frames", sample.Frames).
		Float64("duration_seconds", sample.Duration).
		Str("handle_id", handle.ID()).
		Msg("Sample playing")

	return Result{Sample: sample}, nil
}
