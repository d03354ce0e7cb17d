// Package llm talks to the chat completion service that writes
// multiple-choice questions.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrEmptyReply is returned when the service answers without any content.
var ErrEmptyReply = errors.New("empty completion")

// Completer sends one prompt as a single user message and returns the reply text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// StatusError is a completed HTTP exchange that did not return 200. A
// request that runs past its deadline is reported as 504.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion failed with status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// RateLimited reports whether the service asked the caller to slow down.
func (e *StatusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}
