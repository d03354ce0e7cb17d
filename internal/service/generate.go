package service

import (
	"context"
	"strings"

	"github.com/smokycigga/e-2-pi-3/internal/apperrors"
	"github.com/smokycigga/e-2-pi-3/internal/mcq"
	"github.com/smokycigga/e-2-pi-3/internal/storage"
)

// GenerateRequest asks for MCQs on a subject, optionally steered by topics.
// Only the first topic is used as the search query.
type GenerateRequest struct {
	Subject string   `json:"subject"`
	Count   int      `json:"count"`
	Topics  []string `json:"topics"`
}

// GeneratedQuestion is one MCQ ready for a client.
type GeneratedQuestion struct {
	Question       string          `json:"question"`
	Options        []string        `json:"options"`
	Answer         string          `json:"answer"`
	Subject        storage.Subject `json:"subject"`
	SourceText     string          `json:"source_text"`
	Page           int             `json:"page"`
	SourceDocument string          `json:"source_document"`
	ImageData      string          `json:"image_data,omitempty"`
	ImageCaption   string          `json:"image_caption,omitempty"`
}

// GenerateResponse carries the generated questions and store totals.
type GenerateResponse struct {
	Questions          []GeneratedQuestion `json:"questions"`
	Subject            storage.Subject     `json:"subject"`
	Count              int                 `json:"count"`
	TotalQuestionsInDB int                 `json:"total_questions_in_db"`
	TotalImagesInDB    int                 `json:"total_images_in_db"`
}

// GenerateQuestions retrieves a candidate pool of PoolFactor*count and
// synthesizes up to count MCQs from it, in retrieval order. A count of
// zero selects the default; larger counts are capped.
func (s *Service) GenerateQuestions(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	count := req.Count
	switch {
	case count < 0:
		return nil, apperrors.Invalid("count must not be negative, got %d", count)
	case count == 0:
		count = s.opts.DefaultCount
	case count > s.opts.MaxCount:
		count = s.opts.MaxCount
	}

	subject := storage.ParseSubject(req.Subject)
	topic := ""
	if len(req.Topics) > 0 {
		topic = strings.TrimSpace(req.Topics[0])
	}

	pool, err := s.Retrieve(ctx, subject, topic, count*s.opts.PoolFactor)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Generating questions", "subject", subject, "topic", topic, "count", count, "pool", len(pool))

	generated, err := s.SynthesizeBatch(ctx, pool, count)
	if err != nil {
		return nil, err
	}

	stats := s.store.Stats()
	resp := &GenerateResponse{
		Questions:          make([]GeneratedQuestion, 0, len(generated)),
		Subject:            subject,
		TotalQuestionsInDB: stats.TotalQuestions,
		TotalImagesInDB:    stats.TotalImages,
	}
	for _, g := range generated {
		resp.Questions = append(resp.Questions, toGeneratedQuestion(g))
	}
	resp.Count = len(resp.Questions)
	return resp, nil
}

func toGeneratedQuestion(g mcq.Generated) GeneratedQuestion {
	subject := g.Source.Subject
	if subject == "" {
		subject = storage.SubjectUnknown
	}
	q := GeneratedQuestion{
		Question:       g.MCQ.Question,
		Options:        g.MCQ.Options,
		Answer:         g.MCQ.Answer,
		Subject:        subject,
		SourceText:     preview(g.Source.Text, sourcePreview),
		Page:           g.Source.Page,
		SourceDocument: g.Source.SourceDocument,
	}
	if g.Image != nil {
		q.ImageData = g.Image.DataURI
		q.ImageCaption = g.Image.Caption
	}
	return q
}

// preview is the first n runes of s followed by "...".
func preview(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r) + "..."
}
