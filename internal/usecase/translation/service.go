package translation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/polyqa/internal/domain"
	"github.com/kailas-cloud/polyqa/internal/logger"
	"github.com/kailas-cloud/polyqa/internal/metrics"
)

// otherLanguage labels detections outside the known set in metrics.
const otherLanguage = "other"

// Service pairs a language detector with a translator.
// The detector is swappable (local trigram model or LLM); translation always goes to the LLM.
type Service struct {
	detector     Detector
	detectorName string
	translator   TextTranslator
	known        func(domain.LanguageTag) bool
}

// New creates a translation service. detectorName labels metrics ("local" or "llm").
func New(detector Detector, detectorName string, translator TextTranslator) *Service {
	return &Service{detector: detector, detectorName: detectorName, translator: translator}
}

// WithKnownLanguages bounds the language metric label: detections for which known
// returns false are counted as "other". Without it only english and unknown keep their name.
func (s *Service) WithKnownLanguages(known func(domain.LanguageTag) bool) *Service {
	s.known = known
	return s
}

// DetectLanguage returns a normalized lower-case tag. Detection that yields nothing
// comes back as domain.LanguageUnknown rather than an error.
func (s *Service) DetectLanguage(ctx context.Context, text string) (domain.LanguageTag, error) {
	tag, err := s.detector.DetectLanguage(ctx, text)
	if err != nil {
		metrics.TranslationRequestsTotal.WithLabelValues("detect", s.detectorName, "error").Inc()
		return "", fmt.Errorf("%s detector: %w", s.detectorName, err)
	}
	metrics.TranslationRequestsTotal.WithLabelValues("detect", s.detectorName, "success").Inc()

	tag = normalize(tag)
	metrics.DetectedLanguagesTotal.WithLabelValues(s.languageLabel(tag)).Inc()

	logger.FromContext(ctx).Debug("Language detected",
		zap.String("detector", s.detectorName),
		zap.String("language", tag.String()),
	)
	return tag, nil
}

// TranslateToEnglish delegates to the translator.
func (s *Service) TranslateToEnglish(ctx context.Context, text string) (string, error) {
	out, err := s.translator.TranslateToEnglish(ctx, text)
	if err != nil {
		metrics.TranslationRequestsTotal.WithLabelValues("translate", "llm", "error").Inc()
		return "", fmt.Errorf("translate: %w", err)
	}
	metrics.TranslationRequestsTotal.WithLabelValues("translate", "llm", "success").Inc()
	return out, nil
}

func (s *Service) languageLabel(tag domain.LanguageTag) string {
	if tag == domain.LanguageUnknown || tag == domain.CanonicalLanguage {
		return tag.String()
	}
	if s.known != nil && s.known(tag) {
		return tag.String()
	}
	return otherLanguage
}

func normalize(tag domain.LanguageTag) domain.LanguageTag {
	s := strings.ToLower(strings.TrimSpace(tag.String()))
	if s == "" {
		return domain.LanguageUnknown
	}
	return domain.LanguageTag(s)
}
