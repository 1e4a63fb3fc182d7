package chat

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strings"
	"sync/atomic"
	"time"
)

// RetryConfig controls the retry middleware's backoff schedule (spec §4.6):
// exponential backoff between MinBackoff and MaxBackoff for up to MaxAttempts
// on HTTP 429/500/502/503/504, connection errors, and timeouts.
type RetryConfig struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryConfig matches spec §4.6's design-level numbers: 1s-10s
// backoff, 3 attempts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, MinBackoff: time.Second, MaxBackoff: 10 * time.Second}
}

type retryingBackend struct {
	inner Backend
	cfg   RetryConfig
}

func (r *retryingBackend) Name() string { return r.inner.Name() }

func (r *retryingBackend) Complete(ctx context.Context, messages []Message, opts CompletionOptions) (AssistantMessage, error) {
	var lastErr error
	attempts := r.cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		msg, err := r.inner.Complete(ctx, messages, opts)
		if err == nil {
			return msg, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == attempts-1 {
			return AssistantMessage{}, err
		}
		if waitErr := r.wait(ctx, attempt); waitErr != nil {
			return AssistantMessage{}, waitErr
		}
	}
	return AssistantMessage{}, lastErr
}

func (r *retryingBackend) Stream(ctx context.Context, messages []Message, opts CompletionOptions, onDelta func(StreamDelta) error) error {
	var lastErr error
	attempts := r.cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		err := r.inner.Stream(ctx, messages, opts, onDelta)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == attempts-1 {
			return err
		}
		if waitErr := r.wait(ctx, attempt); waitErr != nil {
			return waitErr
		}
	}
	return lastErr
}

func (r *retryingBackend) wait(ctx context.Context, attempt int) error {
	backoff := r.cfg.MinBackoff * time.Duration(1<<uint(attempt))
	if backoff > r.cfg.MaxBackoff {
		backoff = r.cfg.MaxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(backoff) / 4 + 1))
	select {
	case <-time.After(backoff + jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RetryableError lets a Backend implementation flag a failure as
// retryable/non-retryable explicitly, instead of leaving the middleware to
// pattern-match an opaque error string.
type RetryableError struct {
	Retryable bool
	Err       error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// QuotaExceededError signals that a backend rejected the request because a
// billing limit or free-tier quota was hit, rather than a transient
// availability problem. Spec §7 treats this as non-retryable: retrying a
// quota error just burns the same limit three more times for no benefit, so
// it must never be retried by this middleware or re-attempted by the Judge.
type QuotaExceededError struct {
	Err error
}

func (e *QuotaExceededError) Error() string { return e.Err.Error() }
func (e *QuotaExceededError) Unwrap() error { return e.Err }

// IsQuotaExceeded reports whether err (or something it wraps) is a
// QuotaExceededError.
func IsQuotaExceeded(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}

func isRetryable(err error) bool {
	var qe *QuotaExceededError
	if errors.As(err, &qe) {
		return false
	}
	var re *RetryableError
	if errors.As(err, &re) {
		return re.Retryable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, code := range []string{"429", "500", "502", "503", "504"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return strings.Contains(msg, "connection reset") || strings.Contains(msg, "timeout")
}

// tokenTrackingBackend accumulates Usage across calls so no backend has to
// implement its own bookkeeping. chat.Client does not expose TotalUsage,
// and the orchestrator does not report these totals.
type tokenTrackingBackend struct {
	inner            Backend
	promptTokens     int64
	completionTokens int64
}

func (t *tokenTrackingBackend) Name() string { return t.inner.Name() }

func (t *tokenTrackingBackend) Complete(ctx context.Context, messages []Message, opts CompletionOptions) (AssistantMessage, error) {
	msg, err := t.inner.Complete(ctx, messages, opts)
	if err == nil {
		atomic.AddInt64(&t.promptTokens, int64(msg.Usage.PromptTokens))
		atomic.AddInt64(&t.completionTokens, int64(msg.Usage.CompletionTokens))
	}
	return msg, err
}

func (t *tokenTrackingBackend) Stream(ctx context.Context, messages []Message, opts CompletionOptions, onDelta func(StreamDelta) error) error {
	return t.inner.Stream(ctx, messages, opts, func(d StreamDelta) error {
		if d.Usage != nil {
			atomic.AddInt64(&t.promptTokens, int64(d.Usage.PromptTokens))
			atomic.AddInt64(&t.completionTokens, int64(d.Usage.CompletionTokens))
		}
		return onDelta(d)
	})
}

// TotalUsage reports cumulative tokens seen since construction.
func (t *tokenTrackingBackend) TotalUsage() Usage {
	return Usage{
		PromptTokens:     int(atomic.LoadInt64(&t.promptTokens)),
		CompletionTokens: int(atomic.LoadInt64(&t.completionTokens)),
		TotalTokens:      int(atomic.LoadInt64(&t.promptTokens) + atomic.LoadInt64(&t.completionTokens)),
	}
}
