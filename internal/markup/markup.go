// Package markup turns sampler form values into the speech markup document
// sent to the synthesis service.
package markup

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PauseMarker is inserted after sentence-terminal punctuation when pauses are enabled
const PauseMarker = `<break time="400ms"/>`

// Emphasis is the vocal stress level applied to the whole text
type Emphasis string

const (
	EmphasisNone     Emphasis = "none"
	EmphasisModerate Emphasis = "moderate"
	EmphasisStrong   Emphasis = "strong"
	EmphasisReduced  Emphasis = "reduced"
)

// Style is a bracketed delivery directive prefixed to the text
type Style string

const (
	StyleNone          Style = "none"
	StyleSarcasm       Style = "sarcasm"
	StyleRobotic       Style = "robotic"
	StyleShouting      Style = "shouting"
	StyleWhispering    Style = "whispering"
	StyleExtremelyFast Style = "extremely_fast"
)

var (
	emphases = []Emphasis{EmphasisNone, EmphasisModerate, EmphasisStrong, EmphasisReduced}
	styles   = []Style{StyleNone, StyleSarcasm, StyleRobotic, StyleShouting, StyleWhispering, StyleExtremelyFast}

	// \s in RE2 is ASCII only; Unicode spaces after the mark are folded too
	sentenceEnd = regexp.MustCompile(`([.?!])[\s\p{Zs}\v\x{FEFF}\x{2028}\x{2029}]*`)
)

// Emphases returns the supported emphasis levels in display order
func Emphases() []Emphasis {
	return append([]Emphasis(nil), emphases...)
}

// Styles returns the supported style modifiers in display order
func Styles() []Style {
	return append([]Style(nil), styles...)
}

// ParseEmphasis validates an emphasis level name
func ParseEmphasis(s string) (Emphasis, error) {
	for _, e := range emphases {
		if string(e) == s {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown emphasis level %q", s)
}

// ParseStyle validates a style modifier name
func ParseStyle(s string) (Style, error) {
	for _, st := range styles {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown style modifier %q", s)
}

// Label returns the display name, e.g. "Moderate"
func (e Emphasis) Label() string {
	return titleWords(string(e))
}

// Label returns the display name, e.g. "Extremely Fast"
func (s Style) Label() string {
	return titleWords(string(s))
}

// Directive returns the bracketed prefix for the style, or "" for none
func (s Style) Directive() string {
	if s == StyleNone || s == "" {
		return ""
	}
	return "[" + strings.ReplaceAll(string(s), "_", " ") + "]"
}

// Params are the inputs of a single markup build
type Params struct {
	Text           string
	Style          Style
	Emphasis       Emphasis
	AddPauses      bool
	PitchSemitones float64
	SpeakingRate   float64
}

// Build produces the speech markup document for p. It has no side effects.
func Build(p Params) string {
	body := p.Style.Directive() + p.Text
	body = Escape(body)

	if p.AddPauses {
		body = sentenceEnd.ReplaceAllString(body, "${1} "+PauseMarker+" ")
	}

	if p.Emphasis != EmphasisNone && p.Emphasis != "" {
		body = `<emphasis level="` + string(p.Emphasis) + `">` + body + `</emphasis>`
	}

	var b strings.Builder
	b.WriteString(`<speak><prosody rate="`)
	b.WriteString(formatNumber(p.SpeakingRate))
	b.WriteString(`" pitch="`)
	b.WriteString(formatNumber(p.PitchSemitones))
	b.WriteString(`st">`)
	b.WriteString(body)
	b.WriteString(`</prosody></speak>`)
	return b.String()
}

// Escape replaces markup-significant characters. Ampersands go first so the
// entities produced for angle brackets are not escaped again.
func Escape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// formatNumber renders the shortest decimal form: 1.0 -> "1", 1.25 -> "1.25"
func formatNumber(v float64) string {
	if v == 0 {
		// avoid "-0"
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func titleWords(s string) string {
	words := strings.Split(s, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
