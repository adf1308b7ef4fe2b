package domain

import "strings"

// LanguageTag names the natural language of a text, e.g. "english" or "spanish".
type LanguageTag string

const (
	// CanonicalLanguage is the language every answer is rendered in.
	CanonicalLanguage LanguageTag = "english"
	// LanguageUnknown is recorded when detection yields nothing usable.
	LanguageUnknown LanguageTag = "unknown"
	// LanguageAuto asks for detection instead of trusting a caller hint.
	LanguageAuto = "auto"
)

// IsCanonical reports whether the tag names the canonical language, ignoring case.
func (t LanguageTag) IsCanonical() bool {
	return strings.EqualFold(string(t), string(CanonicalLanguage))
}

func (t LanguageTag) String() string { return string(t) }
