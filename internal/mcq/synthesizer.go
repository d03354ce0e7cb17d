package mcq

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/smokycigga/e-2-pi-3/internal/llm"
	"github.com/smokycigga/e-2-pi-3/internal/retry"
	"github.com/smokycigga/e-2-pi-3/internal/storage"
)

const (
	DefaultMinTextLength    = 30
	DefaultMaxAttempts      = 3
	DefaultRateLimitBackoff = 5 * time.Second
	DefaultTransientBackoff = 2 * time.Second
)

// DefaultPolicy waits 5s times the attempt number after a rate limit and
// 2s after any other retryable failure, for at most three attempts.
func DefaultPolicy() retry.Policy {
	return retry.Linear(DefaultMaxAttempts, DefaultRateLimitBackoff, DefaultTransientBackoff)
}

// SynthesizerConfig tunes a Synthesizer. Zero values select the defaults.
type SynthesizerConfig struct {
	MinTextLength int
	PromptChars   int
	Policy        retry.Policy
}

// Synthesizer produces one MCQ per candidate.
type Synthesizer struct {
	completer     llm.Completer
	minTextLength int
	promptChars   int
	policy        retry.Policy
	logger        *slog.Logger
}

// NewSynthesizer creates a synthesizer backed by completer.
func NewSynthesizer(completer llm.Completer, cfg SynthesizerConfig, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = DefaultMinTextLength
	}
	if cfg.PromptChars <= 0 {
		cfg.PromptChars = DefaultPromptChars
	}
	if cfg.Policy.MaxAttempts <= 0 {
		cfg.Policy = DefaultPolicy()
	}
	return &Synthesizer{
		completer:     completer,
		minTextLength: cfg.MinTextLength,
		promptChars:   cfg.PromptChars,
		policy:        cfg.Policy,
		logger:        logger,
	}
}

// Eligible reports whether q is long enough to be sent to the model.
func (s *Synthesizer) Eligible(q storage.QuestionCandidate) bool {
	return utf8.RuneCountInString(strings.TrimSpace(q.Text)) >= s.minTextLength
}

// Synthesize asks the model for an MCQ based on q. Rate limits are retried
// with a growing delay and other call errors with a flat one; any other
// non-200 status, a timeout, an empty reply or an unparsable reply ends
// the attempt immediately.
func (s *Synthesizer) Synthesize(ctx context.Context, q storage.QuestionCandidate) (*MCQ, error) {
	if !s.Eligible(q) {
		return nil, ErrCandidateTooShort
	}

	prompt := BuildPrompt(q, s.promptChars)

	var result *MCQ
	err := retry.Do(ctx, s.policy, s.logger, func(ctx context.Context, attempt int) error {
		reply, err := s.completer.Complete(ctx, prompt)
		if err != nil {
			return classify(ctx, err)
		}
		m, err := Parse(reply)
		if err != nil {
			s.logger.Debug("Rejected model reply", "question_id", q.ID, "attempt", attempt, "error", err)
			return err
		}
		result = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func classify(ctx context.Context, err error) error {
	var se *llm.StatusError
	switch {
	case errors.As(err, &se):
		if se.RateLimited() {
			return retry.Retryable(retry.RateLimited, err)
		}
		return err
	case errors.Is(err, llm.ErrEmptyReply), ctx.Err() != nil:
		return err
	default:
		return retry.Retryable(retry.Transient, err)
	}
}
