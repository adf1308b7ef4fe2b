package domain

import "strings"

// Query is a single question as received from a caller.
type Query struct {
	Text      string
	Language  string // explicit tag, "auto" or empty
	SessionID string // optional; enables conversation memory
}

// NeedsDetection reports whether the language must be detected rather than taken from the hint.
func (q Query) NeedsDetection() bool {
	return q.Language == "" || q.Language == LanguageAuto
}

// Validate rejects queries that carry no text.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return ErrInvalidQuery
	}
	return nil
}

// QueryResult is returned to the caller verbatim.
type QueryResult struct {
	OriginalQuery    string           `json:"original_query"`
	DetectedLanguage LanguageTag      `json:"detected_language"`
	TranslatedQuery  string           `json:"translated_query"`
	Answer           string           `json:"answer"`
	Sources          []map[string]any `json:"sources"`
}
