package domain

import (
	"errors"
	"fmt"
	"time"
)

// InvalidPromptError means the prompt cannot be sent to the model at all.
type InvalidPromptError struct {
	Reason string
}

func (e *InvalidPromptError) Error() string {
	return "completion: invalid prompt: " + e.Reason
}

// UpstreamError is a transient completion failure. Retryable.
type UpstreamError struct {
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("completion: %s unavailable: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// UpstreamRejectedError is a completion refusal (content policy, bad
// credentials). Retrying gives the same answer.
type UpstreamRejectedError struct {
	Provider string
	Code     int
	Err      error
}

func (e *UpstreamRejectedError) Error() string {
	return fmt.Sprintf("completion: %s rejected request (%d): %v", e.Provider, e.Code, e.Err)
}

func (e *UpstreamRejectedError) Unwrap() error { return e.Err }

// RateLimitedError is returned by the platform when a quota is exhausted.
// RetryAfter is zero when the platform gave no hint.
type RateLimitedError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("platform: rate limited, retry after %s: %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("platform: rate limited: %v", e.Err)
}

func (e *RateLimitedError) Unwrap() error { return e.Err }

// ForbiddenError is a permanent platform refusal, e.g. duplicate content.
type ForbiddenError struct {
	Code   int
	Reason string
}

func (e *ForbiddenError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("platform: forbidden (%d): %s", e.Code, e.Reason)
	}
	return "platform: forbidden: " + e.Reason
}

// TransientNetworkError wraps a failed platform call that may succeed later.
type TransientNetworkError struct {
	Op  string
	Err error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("platform: %s: %v", e.Op, e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// SubscriptionProtocolError ends a streaming subscription. It is never
// retried by the stream itself.
type SubscriptionProtocolError struct {
	Code    string
	Message string
}

func (e *SubscriptionProtocolError) Error() string {
	return fmt.Sprintf("stream: protocol error %s: %s", e.Code, e.Message)
}

// IsRetryable reports whether err belongs to a retryable class.
func IsRetryable(err error) bool {
	var (
		upstream  *UpstreamError
		transient *TransientNetworkError
		limited   *RateLimitedError
	)
	return errors.As(err, &upstream) || errors.As(err, &transient) || errors.As(err, &limited)
}

// RetryAfter extracts the wait hint from a RateLimitedError in err's chain.
func RetryAfter(err error) (time.Duration, bool) {
	var limited *RateLimitedError
	if !errors.As(err, &limited) {
		return 0, false
	}
	return limited.RetryAfter, true
}
