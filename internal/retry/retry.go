// Package retry runs an operation under a bounded attempt budget with
// delays that depend on how the previous attempt failed.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Kind classifies a retryable failure.
type Kind int

const (
	// Transient covers connection errors and other unexpected failures.
	Transient Kind = iota
	// RateLimited covers upstream rate-limit responses.
	RateLimited
)

func (k Kind) String() string {
	switch k {
	case RateLimited:
		return "rate_limited"
	default:
		return "transient"
	}
}

// Policy bounds the number of attempts and picks the delay before the next
// attempt from the kind of failure and the 1-based number of the attempt
// that just failed.
type Policy struct {
	MaxAttempts int
	Delay       func(kind Kind, attempt int) time.Duration
}

// Linear returns a policy that waits rateLimitStep*attempt after a rate
// limit and a flat transientDelay after any other retryable failure.
func Linear(maxAttempts int, rateLimitStep, transientDelay time.Duration) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		Delay: func(kind Kind, attempt int) time.Duration {
			if kind == RateLimited {
				return rateLimitStep * time.Duration(attempt)
			}
			return transientDelay
		},
	}
}

// Error marks a failure as retryable.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Retryable wraps err so Do tries again after the policy's delay for kind.
func Retryable(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// policyBackOff adapts a Policy to backoff.BackOff.
type policyBackOff struct {
	policy  Policy
	attempt int
	last    Kind
}

func (b *policyBackOff) NextBackOff() time.Duration {
	if b.attempt >= b.policy.MaxAttempts {
		return backoff.Stop
	}
	if b.policy.Delay == nil {
		return 0
	}
	return b.policy.Delay(b.last, b.attempt)
}

func (b *policyBackOff) Reset() { b.attempt = 0 }

// Do calls op until it succeeds, returns an error not wrapped by
// Retryable, the attempt budget is spent, or ctx is done. op receives the
// 1-based attempt number. The returned error is the last failure.
func Do(ctx context.Context, p Policy, logger *slog.Logger, op func(ctx context.Context, attempt int) error) error {
	if logger == nil {
		logger = slog.Default()
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	b := &policyBackOff{policy: p}

	operation := func() error {
		b.attempt++
		err := op(ctx, b.attempt)
		if err == nil {
			return nil
		}
		var re *Error
		if errors.As(err, &re) {
			b.last = re.Kind
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		logger.Debug("Retrying", "attempt", b.attempt, "wait", wait, "error", err)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify)
	if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		return fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	var re *Error
	if errors.As(err, &re) {
		return fmt.Errorf("after %d attempts: %w", b.attempt, re.Err)
	}
	return err
}
