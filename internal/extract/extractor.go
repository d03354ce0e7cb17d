package extract

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/smokycigga/e-2-pi-3/internal/storage"
)

// DefaultMinLength is the shortest trimmed span kept as a candidate.
const DefaultMinLength = 50

// Extractor turns page text into question candidates.
type Extractor struct {
	matchers  []Matcher
	minLength int
	logger    *slog.Logger
}

// NewExtractor creates an extractor using DefaultMatchers.
func NewExtractor(logger *slog.Logger) *Extractor {
	return NewExtractorWith(DefaultMatchers(), DefaultMinLength, logger)
}

// NewExtractorWith creates an extractor with custom matchers and threshold.
func NewExtractorWith(matchers []Matcher, minLength int, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		matchers:  matchers,
		minLength: minLength,
		logger:    logger,
	}
}

// Extract applies every matcher in order and keeps spans of at least the
// minimum length. Spans found by more than one matcher are returned once
// per matcher; no de-duplication happens here.
func (e *Extractor) Extract(text string, page int, document string, subject storage.Subject) []storage.QuestionCandidate {
	var out []storage.QuestionCandidate

	for rule, m := range e.matchers {
		spans, err := m.Match(text)
		if err != nil {
			// Keep whatever matched before the failure.
			e.logger.Warn("Matcher failed", "matcher", m.Name(), "document", document, "page", page, "error", err)
		}
		for _, span := range spans {
			span = strings.TrimSpace(span)
			if utf8.RuneCountInString(span) < e.minLength {
				continue
			}
			out = append(out, storage.QuestionCandidate{
				ID:             uuid.NewString(),
				Text:           span,
				Page:           page,
				SourceDocument: document,
				Subject:        subject,
				WordCount:      len(strings.Fields(span)),
				ExtractionRule: rule,
			})
		}
	}

	return out
}
