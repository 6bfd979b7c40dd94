package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/aws/smithy-go"
	"github.com/picklr-io/resolvr/internal/merge"
	"github.com/picklr-io/resolvr/internal/resolver"
	"github.com/picklr-io/resolvr/internal/spec"
)

// DefaultTimeout bounds the resolution of one spec, retries included.
const DefaultTimeout = 2 * time.Minute

// DefaultRetryMax is the default maximum number of retries.
const DefaultRetryMax = 3

// RetryPolicy defines retry behavior for retryable resolution failures.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries: DefaultRetryMax,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// WithTimeout wraps a context with a per-spec timeout.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// RetryWithBackoff runs fn until it succeeds, shouldRetry rejects the
// error, or the retries are used up. Waits use exponential backoff with
// full jitter.
func RetryWithBackoff(ctx context.Context, policy *RetryPolicy, fn func() error, shouldRetry func(error) bool) error {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !shouldRetry(lastErr) {
			return lastErr
		}
		if attempt < policy.MaxRetries {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", errors.Join(ctx.Err(), lastErr))
			case <-time.After(calculateBackoff(attempt, policy.BaseDelay, policy.MaxDelay)):
			}
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", policy.MaxRetries, lastErr)
}

func calculateBackoff(attempt int, base, max time.Duration) time.Duration {
	backoff := float64(base) * math.Pow(2, float64(attempt))
	if backoff > float64(max) {
		backoff = float64(max)
	}
	return time.Duration(rand.Float64() * backoff)
}

// retryableCodes are AWS API error codes that clear up on their own.
var retryableCodes = map[string]bool{
	"Throttling":                             true,
	"ThrottlingException":                    true,
	"ThrottledException":                     true,
	"RequestLimitExceeded":                   true,
	"RequestThrottled":                       true,
	"ProvisionedThroughputExceededException": true,
	"TooManyRequestsException":               true,
	"ServiceUnavailable":                     true,
	"InternalError":                          true,
	"InternalFailure":                        true,
}

// IsRetryable classifies a resolution error. Missing images are retried
// because builds catch up; AWS throttling and transient network failures
// are retried. Validation, policy and dispatch errors never are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var (
		invalid     *spec.SpecInvalidError
		missing     *merge.MissingRequiredFieldError
		unsatisfied *resolver.NoImageSatisfiesConstraintsError
		unsupported *resolver.UnsupportedResolverInvocationError
		noCert      *resolver.CertificateNotFoundError
	)
	switch {
	case errors.As(err, &invalid), errors.As(err, &missing), errors.As(err, &unsatisfied),
		errors.As(err, &unsupported), errors.As(err, &noCert):
		return false
	}

	var notFound *resolver.NoImageFoundForRegionsError
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return retryableCodes[apiErr.ErrorCode()]
	}
	return IsTransientError(err)
}

// IsTransientError checks an error message for common throttling and
// network failure patterns.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"throttl",
		"rate exceed",
		"too many requests",
		"request limit",
		"service unavailable",
		"internal server error",
		"connection reset",
		"connection refused",
		"tls handshake",
		"i/o timeout",
		"temporary failure",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
