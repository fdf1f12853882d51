package tts

// Voice is a prebuilt synthesis voice
type Voice struct {
	ID    string `json:"value"`
	Label string `json:"label"`
}

// DefaultVoice is selected when a session starts
const DefaultVoice = "kore"

var voices = []Voice{
	{ID: "zephyr", Label: "Zephyr (Male)"},
	{ID: "kore", Label: "Kore (Female)"},
	{ID: "puck", Label: "Puck (Male)"},
	{ID: "charon", Label: "Charon (Male)"},
	{ID: "fenrir", Label: "Fenrir (Male)"},
	{ID: "umbriel", Label: "Umbriel (Male)"},
	{ID: "erinome", Label: "Erinome (Female)"},
	{ID: "leda", Label: "Leda (Female)"},
	{ID: "autonoe", Label: "Autonoe (Female)"},
	{ID: "gacrux", Label: "Gacrux (Male)"},
}

// Voices returns the prebuilt voices in display order
func Voices() []Voice {
	return append([]Voice(nil), voices...)
}

// IsVoice reports whether id names a prebuilt voice
func IsVoice(id string) bool {
	for _, v := range voices {
		if v.ID == id {
			return true
		}
	}
	return false
}
