// Package langdetect detects the language of a query locally, without a network call.
package langdetect

import (
	"context"
	"strings"

	"github.com/abadojack/whatlanggo"

	"github.com/kailas-cloud/polyqa/internal/domain"
)

// Detector wraps whatlanggo trigram detection.
type Detector struct {
	minConfidence float64
}

// New creates a detector. Results below minConfidence are reported as unknown;
// 0 accepts every detection whatlanggo makes.
func New(minConfidence float64) *Detector {
	return &Detector{minConfidence: minConfidence}
}

// DetectLanguage returns a lower-case English language name, or "unknown".
func (d *Detector) DetectLanguage(_ context.Context, text string) (domain.LanguageTag, error) {
	if strings.TrimSpace(text) == "" {
		return domain.LanguageUnknown, nil
	}

	info := whatlanggo.Detect(text)
	if info.Lang < 0 || info.Confidence < d.minConfidence {
		return domain.LanguageUnknown, nil
	}

	name := strings.ToLower(info.Lang.String())
	if name == "" {
		return domain.LanguageUnknown, nil
	}
	return domain.LanguageTag(name), nil
}

var knownLanguages = func() map[domain.LanguageTag]struct{} {
	m := make(map[domain.LanguageTag]struct{}, len(whatlanggo.Langs))
	for _, name := range whatlanggo.Langs {
		m[domain.LanguageTag(strings.ToLower(name))] = struct{}{}
	}
	return m
}()

// IsKnown reports whether tag is one of the language names the local model can produce.
func IsKnown(tag domain.LanguageTag) bool {
	_, ok := knownLanguages[tag]
	return ok
}
