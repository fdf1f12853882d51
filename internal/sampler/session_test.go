package sampler

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-sampler/internal/audio"
	"github.com/lexiqai/voice-sampler/internal/config"
	"github.com/lexiqai/voice-sampler/internal/markup"
	"github.com/lexiqai/voice-sampler/internal/playback"
	"github.com/lexiqai/voice-sampler/internal/tts"
)

type fakeSynthesizer struct {
	mu       sync.Mutex
	requests []tts.SynthesisRequest
	fn       func(ctx context.Context, req tts.SynthesisRequest) (*tts.Payload, error)
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, req tts.SynthesisRequest) (*tts.Payload, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.fn(ctx, req)
}

func (f *fakeSynthesizer) Name() string { return "fake" }

func (f *fakeSynthesizer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeHandle struct {
	id   string
	done chan struct{}
}

func (h *fakeHandle) ID() string            { return h.id }
func (h *fakeHandle) Stop() error           { return nil }
func (h *fakeHandle) Done() <-chan struct{} { return h.done }

type fakePlayer struct {
	mu       sync.Mutex
	readyErr error
	playErr  error
	played   []*audio.Buffer
	stops    int
}

func (p *fakePlayer) Ready() error { return p.readyErr }

func (p *fakePlayer) Play(ctx context.Context, buf *audio.Buffer) (playback.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playErr != nil {
		return nil, p.playErr
	}
	p.played = append(p.played, buf)
	return &fakeHandle{id: uuid.New().String(), done: make(chan struct{})}, nil
}

func (p *fakePlayer) StopCurrent() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	return nil
}

func (p *fakePlayer) playCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.played)
}

func pcm(samples ...int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

func returning(data []byte) func(context.Context, tts.SynthesisRequest) (*tts.Payload, error) {
	return func(context.Context, tts.SynthesisRequest) (*tts.Payload, error) {
		return &tts.Payload{Data: data, MIMEType: "audio/L16;codec=pcm;rate=24000"}, nil
	}
}

func newTestSession(synth *fakeSynthesizer, player *fakePlayer) *Session {
	cfg := &config.Config{
		AudioSampleRate:  24000,
		AudioChannels:    1,
		SynthesisTimeout: 5,
		SilenceThreshold: 0.001,
	}
	return NewSession(cfg, synth, player, zerolog.Nop())
}

func TestSession_DefaultForm(t *testing.T) {
	s := newTestSession(&fakeSynthesizer{}, &fakePlayer{})
	form := s.Form()

	if form.Text != DefaultText {
		t.Errorf("Expected default text, got %q", form.Text)
	}
	if form.Voice != "kore" {
		t.Errorf("Expected voice kore, got %s", form.Voice)
	}
	if form.PitchSemitones != 0 || form.SpeakingRate != 1.0 {
		t.Errorf("Expected pitch 0 rate 1, got %v %v", form.PitchSemitones, form.SpeakingRate)
	}
	if form.Emphasis != markup.EmphasisNone || form.Style != markup.StyleNone || form.AddPauses {
		t.Errorf("Expected no emphasis, style or pauses, got %+v", form)
	}
}

func TestSession_SubmitPlaysDecodedAudio(t *testing.T) {
	synth := &fakeSynthesizer{fn: returning(pcm(16384, -16384, 8192))}
	player := &fakePlayer{}
	s := newTestSession(synth, player)

	ctx := context.Background()
	s.Handle(ctx, SetText{Text: "Hello"})

	result, err := s.Handle(ctx, Submit{RequestID: "req-1"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	want := `<speak><prosody rate="1" pitch="0st">Hello</prosody></speak>`
	if synth.requests[0].Markup != want {
		t.Errorf("Expected markup %s, got %s", want, synth.requests[0].Markup)
	}
	if synth.requests[0].Voice != "kore" {
		t.Errorf("Expected voice kore, got %s", synth.requests[0].Voice)
	}

	if player.playCount() != 1 {
		t.Fatalf("Expected 1 playback, got %d", player.playCount())
	}
	buf := player.played[0]
	if buf.SampleRate != 24000 || buf.NumChannels() != 1 || buf.Frames() != 3 {
		t.Errorf("Expected 24000Hz mono 3 frames, got %d %d %d", buf.SampleRate, buf.NumChannels(), buf.Frames())
	}
	if buf.Channels[0][0] != 0.5 || buf.Channels[0][1] != -0.5 {
		t.Errorf("Expected samples 0.5 and -0.5, got %v", buf.Channels[0][:2])
	}

	if result.Sample == nil || !result.Sample.Played {
		t.Fatalf("Expected played sample, got %+v", result.Sample)
	}
	if result.Sample.RequestID != "req-1" || result.Sample.Frames != 3 {
		t.Errorf("Expected request req-1 with 3 frames, got %+v", result.Sample)
	}
	if result.Form.Busy {
		t.Error("Expected busy cleared after success")
	}
	if result.Form.Error != "" {
		t.Errorf("Expected no error message, got %q", result.Form.Error)
	}
}

func TestSession_SubmitEmptyText(t *testing.T) {
	synth := &fakeSynthesizer{fn: returning(pcm(1))}
	s := newTestSession(synth, &fakePlayer{})

	s.Handle(context.Background(), SetText{Text: "   \n\t"})
	result, err := s.Handle(context.Background(), Submit{})

	if !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Expected ErrEmptyInput, got %v", err)
	}
	if result.Form.Error != "Please enter some text to sample." {
		t.Errorf("Expected empty input message, got %q", result.Form.Error)
	}
	if synth.calls() != 0 {
		t.Errorf("Expected no synthesis call, got %d", synth.calls())
	}
}

func TestSession_SubmitTransportError(t *testing.T) {
	synth := &fakeSynthesizer{fn: func(context.Context, tts.SynthesisRequest) (*tts.Payload, error) {
		return nil, tts.NewTransportError(errors.New(`Error 400: {"error":{"code":400,"message":"API key not valid."}}`))
	}}
	player := &fakePlayer{}
	s := newTestSession(synth, player)

	result, err := s.Handle(context.Background(), Submit{})
	var transportErr *tts.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Expected TransportError, got %v", err)
	}
	if result.Form.Error != "Failed to generate audio. API key not valid." {
		t.Errorf("Expected extracted message, got %q", result.Form.Error)
	}
	if result.Form.Busy || s.Form().Busy {
		t.Error("Expected busy cleared after failure")
	}
	if player.playCount() != 0 {
		t.Errorf("Expected no playback, got %d", player.playCount())
	}
}

func TestSession_SubmitNoAudio(t *testing.T) {
	synth := &fakeSynthesizer{fn: func(context.Context, tts.SynthesisRequest) (*tts.Payload, error) {
		return nil, tts.ErrNoAudioData
	}}
	s := newTestSession(synth, &fakePlayer{})

	result, err := s.Handle(context.Background(), Submit{})
	if !errors.Is(err, tts.ErrNoAudioData) {
		t.Errorf("Expected ErrNoAudioData, got %v", err)
	}
	if result.Form.Error != "Failed to generate audio. No audio data received from the API." {
		t.Errorf("Expected no audio message, got %q", result.Form.Error)
	}
}

func TestSession_SubmitEmptyPayload(t *testing.T) {
	// a single dangling byte decodes to zero frames
	synth := &fakeSynthesizer{fn: returning([]byte{0x01})}
	s := newTestSession(synth, &fakePlayer{})

	if _, err := s.Handle(context.Background(), Submit{}); !errors.Is(err, tts.ErrNoAudioData) {
		t.Errorf("Expected ErrNoAudioData, got %v", err)
	}
}

func TestSession_SubmitUnsupportedPlatform(t *testing.T) {
	synth := &fakeSynthesizer{fn: returning(pcm(1))}
	player := &fakePlayer{readyErr: playback.ErrUnsupportedPlatform}
	s := newTestSession(synth, player)

	result, err := s.Handle(context.Background(), Submit{})
	if !errors.Is(err, playback.ErrUnsupportedPlatform) {
		t.Errorf("Expected ErrUnsupportedPlatform, got %v", err)
	}
	if result.Form.Error != "Audio output is not supported on this host." {
		t.Errorf("Expected unsupported message, got %q", result.Form.Error)
	}
	if synth.calls() != 0 {
		t.Errorf("Expected no synthesis call, got %d", synth.calls())
	}
	if result.Form.Busy {
		t.Error("Expected busy cleared")
	}
}

func TestSession_SubmitWhileBusy(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	synth := &fakeSynthesizer{fn: func(ctx context.Context, req tts.SynthesisRequest) (*tts.Payload, error) {
		close(entered)
		<-release
		return &tts.Payload{Data: pcm(100, 200)}, nil
	}}
	player := &fakePlayer{}
	s := newTestSession(synth, player)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Handle(context.Background(), Submit{})
		errCh <- err
	}()
	<-entered

	if !s.Form().Busy {
		t.Error("Expected busy while request in flight")
	}
	if _, err := s.Handle(context.Background(), Submit{}); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}

	close(release)
	if err := <-errCh; err != nil {
		t.Errorf("Expected first submit to succeed, got %v", err)
	}
	if synth.calls() != 1 {
		t.Errorf("Expected 1 synthesis call, got %d", synth.calls())
	}
	if s.Form().Busy {
		t.Error("Expected busy cleared")
	}
}

func TestSession_StopDiscardsInFlightResult(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	synth := &fakeSynthesizer{fn: func(ctx context.Context, req tts.SynthesisRequest) (*tts.Payload, error) {
		close(entered)
		<-release
		return &tts.Payload{Data: pcm(100, 200)}, nil
	}}
	player := &fakePlayer{}
	s := newTestSession(synth, player)

	resultCh := make(chan Result, 1)
	go func() {
		result, _ := s.Handle(context.Background(), Submit{})
		resultCh <- result
	}()
	<-entered

	if _, err := s.Handle(context.Background(), Stop{}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	close(release)

	result := <-resultCh
	if player.playCount() != 0 {
		t.Errorf("Expected stale sample not played, got %d playbacks", player.playCount())
	}
	if result.Sample == nil || result.Sample.Played {
		t.Errorf("Expected unplayed sample, got %+v", result.Sample)
	}
	if result.Form.Busy {
		t.Error("Expected busy cleared")
	}
}

func TestSession_SubmitStopsCurrentPlayback(t *testing.T) {
	player := &fakePlayer{}
	s := newTestSession(&fakeSynthesizer{fn: returning(pcm(1, 2))}, player)

	s.Handle(context.Background(), Submit{})
	s.Handle(context.Background(), Submit{})

	if player.stops != 2 {
		t.Errorf("Expected playback stopped on each submit, got %d", player.stops)
	}
	if player.playCount() != 2 {
		t.Errorf("Expected 2 playbacks, got %d", player.playCount())
	}
}

func TestSession_SubmitUsesFormParameters(t *testing.T) {
	synth := &fakeSynthesizer{fn: returning(pcm(1))}
	s := newTestSession(synth, &fakePlayer{})
	ctx := context.Background()

	commands := []Command{
		SetText{Text: "Hi. Bye!"},
		SelectVoice{Voice: "puck"},
		SetPitch{Semitones: -2.5},
		SetRate{Rate: 1.25},
		SetEmphasis{Emphasis: markup.EmphasisStrong},
		SetStyle{Style: markup.StyleRobotic},
		SetPauses{Enabled: true},
	}
	for _, cmd := range commands {
		if _, err := s.Handle(ctx, cmd); err != nil {
			t.Fatalf("Expected %T to succeed, got %v", cmd, err)
		}
	}

	if _, err := s.Handle(ctx, Submit{}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	req := synth.requests[0]
	if req.Voice != "puck" {
		t.Errorf("Expected voice puck, got %s", req.Voice)
	}
	want := markup.Build(markup.Params{
		Text:           "Hi. Bye!",
		Style:          markup.StyleRobotic,
		Emphasis:       markup.EmphasisStrong,
		AddPauses:      true,
		PitchSemitones: -2.5,
		SpeakingRate:   1.25,
	})
	if req.Markup != want {
		t.Errorf("Expected markup %s, got %s", want, req.Markup)
	}
	if !strings.HasPrefix(req.Markup, `<speak><prosody rate="1.25" pitch="-2.5st"><emphasis level="strong">[robotic]Hi.`) {
		t.Errorf("Unexpected markup %s", req.Markup)
	}
}

func TestSession_Validation(t *testing.T) {
	s := newTestSession(&fakeSynthesizer{}, &fakePlayer{})

	tests := []struct {
		name string
		cmd  Command
	}{
		{"pitch too low", SetPitch{Semitones: -20.1}},
		{"pitch too high", SetPitch{Semitones: 20.5}},
		{"rate too low", SetRate{Rate: 0.2}},
		{"rate too high", SetRate{Rate: 4.05}},
		{"pitch not a number", SetPitch{Semitones: math.NaN()}},
		{"rate not a number", SetRate{Rate: math.NaN()}},
		{"unknown voice", SelectVoice{Voice: "nova"}},
		{"unknown emphasis", SetEmphasis{Emphasis: "loud"}},
		{"unknown style", SetStyle{Style: "pirate"}},
		{"unknown tag", InsertTag{Tag: "[cough]"}},
		{"selection out of range", InsertTag{Tag: "[sigh]", Start: 0, End: 1000}},
		{"inverted selection", InsertTag{Tag: "[sigh]", Start: 5, End: 2}},
	}

	before := s.Form()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Handle(context.Background(), tt.cmd); !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("Expected ErrInvalidParameter, got %v", err)
			}
		})
	}
	if s.Form() != before {
		t.Errorf("Expected form unchanged, got %+v", s.Form())
	}

	// boundaries are accepted
	for _, cmd := range []Command{SetPitch{Semitones: -20}, SetPitch{Semitones: 20}, SetRate{Rate: 0.25}, SetRate{Rate: 4}} {
		if _, err := s.Handle(context.Background(), cmd); err != nil {
			t.Errorf("Expected %+v accepted, got %v", cmd, err)
		}
	}
}

func TestSession_ApplyForm(t *testing.T) {
	s := newTestSession(&fakeSynthesizer{}, &fakePlayer{})
	ctx := context.Background()

	result, err := s.Handle(ctx, ApplyForm{Commands: []Command{
		SetText{Text: "Hello"},
		SelectVoice{Voice: "leda"},
		SetRate{Rate: 1.5},
	}})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Form.Text != "Hello" || result.Form.Voice != "leda" || result.Form.SpeakingRate != 1.5 {
		t.Errorf("Expected every field applied, got %+v", result.Form)
	}
}

func TestSession_ApplyFormRejectsWhole(t *testing.T) {
	s := newTestSession(&fakeSynthesizer{}, &fakePlayer{})
	ctx := context.Background()
	s.Handle(ctx, SetText{Text: "Original"})
	before := s.Form()

	tests := []struct {
		name     string
		commands []Command
	}{
		{"invalid voice after text", []Command{SetText{Text: "Mutated"}, SelectVoice{Voice: "alloy"}}},
		{"invalid pitch after text", []Command{SetText{Text: "Second"}, SetPitch{Semitones: 99}}},
		{"non-field command", []Command{SetText{Text: "Third"}, Submit{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.Handle(ctx, ApplyForm{Commands: tt.commands})
			if err == nil {
				t.Fatal("Expected error")
			}
			if result.Form != before {
				t.Errorf("Expected returned form unchanged, got %+v", result.Form)
			}
			if s.Form() != before {
				t.Errorf("Expected form unchanged, got %+v", s.Form())
			}
		})
	}
}

func TestSession_InsertTag(t *testing.T) {
	s := newTestSession(&fakeSynthesizer{}, &fakePlayer{})
	ctx := context.Background()

	s.Handle(ctx, SetText{Text: "Well that was fun"})

	// replace "that" with the tag
	result, err := s.Handle(ctx, InsertTag{Tag: "[sigh]", Start: 5, End: 9})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Form.Text != "Well  [sigh]  was fun" {
		t.Errorf("Expected tag in place of selection, got %q", result.Form.Text)
	}
	if result.Cursor != 5+len("[sigh]")+2 {
		t.Errorf("Expected cursor %d, got %d", 5+len("[sigh]")+2, result.Cursor)
	}

	// collapsed selection at the end appends
	s.Handle(ctx, SetText{Text: "Héllo"})
	result, _ = s.Handle(ctx, InsertTag{Tag: "[uhm]", Start: 5, End: 5})
	if result.Form.Text != "Héllo [uhm] " {
		t.Errorf("Expected appended tag, got %q", result.Form.Text)
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrEmptyInput, "Please enter some text to sample."},
		{playback.ErrUnsupportedPlatform, "Audio output is not supported on this host."},
		{tts.ErrNoAudioData, "Failed to generate audio. No audio data received from the API."},
		{&tts.TransportError{Message: "quota exceeded"}, "Failed to generate audio. quota exceeded"},
		{errors.New("boom"), "Failed to generate audio. boom"},
	}

	for _, tt := range tests {
		if got := UserMessage(tt.err); got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}
}

func TestPageOptions(t *testing.T) {
	opts := PageOptions()

	if len(opts.Voices) != 10 {
		t.Errorf("Expected 10 voices, got %d", len(opts.Voices))
	}
	if len(opts.Emphases) != 4 || len(opts.Styles) != 6 {
		t.Errorf("Expected 4 emphases and 6 styles, got %d and %d", len(opts.Emphases), len(opts.Styles))
	}
	if len(opts.QuickTags) != 3 {
		t.Errorf("Expected 3 quick tags, got %d", len(opts.QuickTags))
	}
	if opts.Pitch.Min != -20 || opts.Pitch.Max != 20 || opts.Rate.Min != 0.25 || opts.Rate.Max != 4 {
		t.Errorf("Unexpected slider ranges %+v %+v", opts.Pitch, opts.Rate)
	}
}
