// Package sampler holds the sampler form state and turns form commands into
// markup, synthesis, decoding and playback.
package sampler

import (
	"github.com/lexiqai/voice-sampler/internal/markup"
	"github.com/lexiqai/voice-sampler/internal/tts"
)

// DefaultText is the sample sentence a new session starts with
const DefaultText = "Hello! This is a sample of my voice. You can adjust my pitch and speaking rate to see how I sound."

const (
	MinPitch  = -20.0
	MaxPitch  = 20.0
	PitchStep = 0.1

	MinRate  = 0.25
	MaxRate  = 4.0
	RateStep = 0.05

	DefaultPitch = 0.0
	DefaultRate  = 1.0
)

var quickTags = []string{"[sigh]", "[laughing]", "[uhm]"}

// QuickTags returns the tags the page offers as insert buttons
func QuickTags() []string {
	return append([]string(nil), quickTags...)
}

// IsQuickTag reports whether tag is one of the insertable tags
func IsQuickTag(tag string) bool {
	for _, t := range quickTags {
		if t == tag {
			return true
		}
	}
	return false
}

// FormState is everything the sampler page shows
type FormState struct {
	Text           string          `json:"text"`
	Voice          string          `json:"voice"`
	PitchSemitones float64         `json:"pitch"`
	SpeakingRate   float64         `json:"rate"`
	Emphasis       markup.Emphasis `json:"emphasis"`
	Style          markup.Style    `json:"style"`
	AddPauses      bool            `json:"add_pauses"`

	Busy  bool   `json:"busy"`
	Error string `json:"error,omitempty"`
}

// DefaultForm returns the state every session starts from
func DefaultForm() FormState {
	return FormState{
		Text:           DefaultText,
		Voice:          tts.DefaultVoice,
		PitchSemitones: DefaultPitch,
		SpeakingRate:   DefaultRate,
		Emphasis:       markup.EmphasisNone,
		Style:          markup.StyleNone,
		AddPauses:      false,
	}
}

// MarkupParams returns the markup builder inputs for the form
func (f FormState) MarkupParams() markup.Params {
	return markup.Params{
		Text:           f.Text,
		Style:          f.Style,
		Emphasis:       f.Emphasis,
		AddPauses:      f.AddPauses,
		PitchSemitones: f.PitchSemitones,
		SpeakingRate:   f.SpeakingRate,
	}
}

// Range describes a slider
type Range struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Step    float64 `json:"step"`
	Default float64 `json:"default"`
}

// Choice is one entry of a dropdown
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Options describes the controls of the sampler page
type Options struct {
	Voices    []tts.Voice `json:"voices"`
	Emphases  []Choice    `json:"emphases"`
	Styles    []Choice    `json:"styles"`
	QuickTags []string    `json:"quick_tags"`
	Pitch     Range       `json:"pitch"`
	Rate      Range       `json:"rate"`
	Defaults  FormState   `json:"defaults"`
}

// PageOptions returns the controls and their defaults
func PageOptions() Options {
	opts := Options{
		Voices:    tts.Voices(),
		QuickTags: QuickTags(),
		Pitch:     Range{Min: MinPitch, Max: MaxPitch, Step: PitchStep, Default: DefaultPitch},
		Rate:      Range{Min: MinRate, Max: MaxRate, Step: RateStep, Default: DefaultRate},
		Defaults:  DefaultForm(),
	}
	for _, e := range markup.Emphases() {
		opts.Emphases = append(opts.Emphases, Choice{Value: string(e), Label: e.Label()})
	}
	for _, s := range markup.Styles() {
		opts.Styles = append(opts.Styles, Choice{Value: string(s), Label: s.Label()})
	}
	return opts
}
