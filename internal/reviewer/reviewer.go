// Package reviewer adapts an external AI model into the review workflow:
// it builds the review prompt, calls the backend with bounded retries, and
// validates the structured response.
package reviewer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/qacheck/qacheck/internal/models"
	"github.com/qacheck/qacheck/internal/selector"
)

// Reviewer reviews one problem and proposes edits.
type Reviewer interface {
	Review(ctx context.Context, pc *selector.ProblemContext) (*models.ReviewResult, error)
}

// ErrorKind classifies a review failure for retry decisions and reporting.
type ErrorKind string

const (
	ErrAPI             ErrorKind = "api_error"
	ErrRateLimit       ErrorKind = "rate_limit"
	ErrTimeout         ErrorKind = "timeout"
	ErrInvalidResponse ErrorKind = "invalid_response"
	ErrUnknown         ErrorKind = "unknown"
)

// Error wraps a backend failure with its classification.
type Error struct {
	Kind      ErrorKind
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("review failed (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// classify maps an error onto a Kind and retryability. Transport-level
// failures retry; a response we could not parse will not get better by
// asking again with the same prompt.
func classify(err error) *Error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate") && strings.Contains(msg, "limit"),
		strings.Contains(msg, "429"):
		return &Error{Kind: ErrRateLimit, Retryable: true, Err: err}
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"),
		errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: ErrTimeout, Retryable: true, Err: err}
	case strings.Contains(msg, "parse"), strings.Contains(msg, "unmarshal"),
		strings.Contains(msg, "invalid response"):
		return &Error{Kind: ErrInvalidResponse, Retryable: false, Err: err}
	case strings.Contains(msg, "connection"), strings.Contains(msg, "server"),
		strings.Contains(msg, "500"), strings.Contains(msg, "502"), strings.Contains(msg, "503"):
		return &Error{Kind: ErrAPI, Retryable: true, Err: err}
	default:
		return &Error{Kind: ErrUnknown, Retryable: true, Err: err}
	}
}

// RetryConfig bounds the retry loop around backend calls.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig returns the stock retry policy: 3 retries, 1s base
// delay, 30s cap.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// runWithRetry invokes call until it succeeds, the error is not retryable,
// or the retry budget is spent. The failure message counts the attempts
// actually made, not the budget.
func runWithRetry(ctx context.Context, cfg RetryConfig, name string, call func() (*models.ReviewResult, error)) (*models.ReviewResult, error) {
	var lastErr *Error
	attempts := 0
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		attempts++
		result, err := call()
		if err == nil {
			return result, nil
		}
		var reviewErr *Error
		if errors.As(err, &reviewErr) {
			lastErr = reviewErr
		} else {
			lastErr = classify(err)
		}
		if !lastErr.Retryable {
			break
		}
		if attempt < cfg.MaxRetries {
			if err := sleepCtx(ctx, backoffDelay(attempt, cfg)); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("review %s after %d attempt(s): %w", name, attempts, lastErr)
}

// backoffDelay computes the exponential backoff for a 0-indexed attempt,
// with ±25% jitter, capped at MaxDelay.
func backoffDelay(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.BaseDelay) * pow2(attempt)
	jitter := delay * 0.25 * (2*rand.Float64() - 1)
	delay += jitter
	if max := float64(cfg.MaxDelay); delay > max {
		delay = max
	}
	return time.Duration(delay)
}

func pow2(n int) float64 {
	out := 1.0
	for i := 0; i < n; i++ {
		out *= 2
	}
	return out
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
