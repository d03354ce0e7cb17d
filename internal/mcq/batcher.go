package mcq

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/smokycigga/e-2-pi-3/internal/content"
	"github.com/smokycigga/e-2-pi-3/internal/metrics"
	"github.com/smokycigga/e-2-pi-3/internal/storage"
)

// DefaultCallDelay is the minimum spacing between two model calls.
const DefaultCallDelay = 2 * time.Second

// ImageLookup resolves the image associated with a question.
type ImageLookup interface {
	FindAssociatedImage(questionID string) (storage.ImageRecord, bool)
}

// ImageRef is an associated image inlined for the client.
type ImageRef struct {
	ID      string `json:"id"`
	Caption string `json:"caption"`
	DataURI string `json:"data_uri"`
}

// Generated is one synthesized question with the candidate it came from.
type Generated struct {
	MCQ    MCQ
	Source storage.QuestionCandidate
	Image  *ImageRef
}

// Batcher runs synthesis over a ranked candidate list. Calls never overlap,
// across batches too, and at least the call delay passes between the end
// of one call and the start of the next.
type Batcher struct {
	synth     *Synthesizer
	images    ImageLookup
	content   *content.Store
	callDelay time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu       sync.Mutex
	lastDone time.Time // end of the previous call; guarded by mu
}

// NewBatcher creates a batcher. A callDelay of zero disables pacing.
func NewBatcher(synth *Synthesizer, images ImageLookup, store *content.Store, callDelay time.Duration, m *metrics.Metrics, logger *slog.Logger) *Batcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Batcher{
		synth:     synth,
		images:    images,
		content:   store,
		callDelay: callDelay,
		metrics:   m,
		logger:    logger,
	}
}

// SynthesizeBatch walks candidates in order until count MCQs are produced
// or the candidates run out. A candidate that fails is skipped. Only
// cancellation of ctx is returned as an error, together with the
// questions produced so far.
func (b *Batcher) SynthesizeBatch(ctx context.Context, candidates []storage.QuestionCandidate, count int) ([]Generated, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Generated
	for i, q := range candidates {
		if len(out) >= count {
			break
		}
		if !b.synth.Eligible(q) {
			b.metrics.Synthesis(metrics.OutcomeTooShort)
			continue
		}

		if err := b.pause(ctx); err != nil {
			return out, err
		}

		b.logger.Debug("Synthesizing question", "candidate", i+1, "of", len(candidates), "question_id", q.ID)
		m, err := b.synth.Synthesize(ctx, q)
		b.lastDone = time.Now()
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			if errors.Is(err, ErrCandidateTooShort) {
				b.metrics.Synthesis(metrics.OutcomeTooShort)
				continue
			}
			b.metrics.Synthesis(metrics.OutcomeFailed)
			b.logger.Warn("Failed to synthesize question", "question_id", q.ID, "error", err)
			continue
		}

		b.metrics.Synthesis(metrics.OutcomeGenerated)
		out = append(out, Generated{
			MCQ:    *m,
			Source: q,
			Image:  b.image(q.ID),
		})
	}

	b.logger.Info("Synthesized questions", "requested", count, "candidates", len(candidates), "generated", len(out))
	return out, nil
}

// pause blocks until the call delay has passed since the previous call
// finished. The first call of the process does not wait.
func (b *Batcher) pause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.callDelay <= 0 || b.lastDone.IsZero() {
		return nil
	}
	wait := b.callDelay - time.Since(b.lastDone)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// image inlines the first associated image. A missing file only drops the image.
func (b *Batcher) image(questionID string) *ImageRef {
	if b.images == nil || b.content == nil {
		return nil
	}
	img, ok := b.images.FindAssociatedImage(questionID)
	if !ok {
		return nil
	}
	uri, err := b.content.DataURI(img.Path)
	if err != nil {
		b.logger.Warn("Associated image unavailable", "question_id", questionID, "image_id", img.ID, "error", err)
		return nil
	}
	return &ImageRef{ID: img.ID, Caption: img.Caption, DataURI: uri}
}
