package mcq

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smokycigga/e-2-pi-3/internal/llm"
	"github.com/smokycigga/e-2-pi-3/internal/retry"
	"github.com/smokycigga/e-2-pi-3/internal/storage"
)

type step struct {
	reply string
	err   error
}

// scriptedCompleter replays steps in order and repeats the last one.
type scriptedCompleter struct {
	mu      sync.Mutex
	steps   []step
	calls   int
	prompts []string
}

func (c *scriptedCompleter) Complete(_ context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	s := c.steps[min(c.calls, len(c.steps)-1)]
	c.calls++
	return s.reply, s.err
}

type delayCall struct {
	kind    retry.Kind
	attempt int
}

// recordingPolicy never sleeps and records what it was asked to wait for.
func recordingPolicy(calls *[]delayCall) retry.Policy {
	return retry.Policy{
		MaxAttempts: DefaultMaxAttempts,
		Delay: func(kind retry.Kind, attempt int) time.Duration {
			*calls = append(*calls, delayCall{kind, attempt})
			return 0
		},
	}
}

var candidate = storage.QuestionCandidate{
	ID:      "q1",
	Subject: storage.SubjectPhysics,
	Text:    "1. A ball is dropped from rest from the top of a tower; find its speed.",
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 5*time.Second, p.Delay(retry.RateLimited, 1))
	assert.Equal(t, 10*time.Second, p.Delay(retry.RateLimited, 2))
	assert.Equal(t, 2*time.Second, p.Delay(retry.Transient, 1))
	assert.Equal(t, 2*time.Second, p.Delay(retry.Transient, 2))
}

func TestSynthesize_Success(t *testing.T) {
	c := &scriptedCompleter{steps: []step{{reply: validReply}}}
	s := NewSynthesizer(c, SynthesizerConfig{}, nil)

	m, err := s.Synthesize(context.Background(), candidate)
	require.NoError(t, err)
	assert.Equal(t, "B", m.Answer)
	require.Len(t, c.prompts, 1)
	assert.Contains(t, c.prompts[0], candidate.Text)
}

func TestSynthesize_RetryClassification(t *testing.T) {
	rateLimited := &llm.StatusError{StatusCode: http.StatusTooManyRequests, Err: errors.New("slow down")}
	serverError := &llm.StatusError{StatusCode: http.StatusInternalServerError, Err: errors.New("boom")}
	timeout := &llm.StatusError{StatusCode: http.StatusGatewayTimeout, Err: context.DeadlineExceeded}
	connReset := errors.New("connection reset")

	tests := []struct {
		name      string
		steps     []step
		wantCalls int
		wantErr   error
		wantDelay []delayCall
	}{
		{
			name:      "rate limited until budget is spent",
			steps:     []step{{err: rateLimited}},
			wantCalls: 3,
			wantErr:   rateLimited,
			wantDelay: []delayCall{{retry.RateLimited, 1}, {retry.RateLimited, 2}},
		},
		{
			name:      "rate limited then success",
			steps:     []step{{err: rateLimited}, {reply: validReply}},
			wantCalls: 2,
			wantDelay: []delayCall{{retry.RateLimited, 1}},
		},
		{
			name:      "transient error then success",
			steps:     []step{{err: connReset}, {err: connReset}, {reply: validReply}},
			wantCalls: 3,
			wantDelay: []delayCall{{retry.Transient, 1}, {retry.Transient, 2}},
		},
		{
			name:      "other status abandons",
			steps:     []step{{err: serverError}, {reply: validReply}},
			wantCalls: 1,
			wantErr:   serverError,
		},
		{
			name:      "timeout abandons",
			steps:     []step{{err: timeout}, {reply: validReply}},
			wantCalls: 1,
			wantErr:   context.DeadlineExceeded,
		},
		{
			name:      "empty reply abandons",
			steps:     []step{{err: llm.ErrEmptyReply}, {reply: validReply}},
			wantCalls: 1,
			wantErr:   llm.ErrEmptyReply,
		},
		{
			name:      "unparsable reply abandons",
			steps:     []step{{reply: "Sorry, I cannot help."}, {reply: validReply}},
			wantCalls: 1,
			wantErr:   ErrInvalidReply,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var delays []delayCall
			c := &scriptedCompleter{steps: tt.steps}
			s := NewSynthesizer(c, SynthesizerConfig{Policy: recordingPolicy(&delays)}, nil)

			m, err := s.Synthesize(context.Background(), candidate)
			assert.Equal(t, tt.wantCalls, c.calls)
			assert.Equal(t, tt.wantDelay, delays)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, m)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "B", m.Answer)
		})
	}
}

func TestSynthesize_TooShort(t *testing.T) {
	c := &scriptedCompleter{steps: []step{{reply: validReply}}}
	s := NewSynthesizer(c, SynthesizerConfig{}, nil)

	q := candidate
	q.Text = "   " + strings.Repeat("x", 29) + "   "
	_, err := s.Synthesize(context.Background(), q)
	assert.ErrorIs(t, err, ErrCandidateTooShort)
	assert.Equal(t, 0, c.calls)

	q.Text = strings.Repeat("x", 30)
	_, err = s.Synthesize(context.Background(), q)
	assert.NoError(t, err)
	assert.Equal(t, 1, c.calls)
}
