package policy

import (
	"fmt"
	"time"
)

// Profile selects which policies the composer assembles around a call.
type Profile int

const (
	ProfileNone Profile = iota
	ProfileDefaultRetry
	ProfileDefaultCircuitBreaker
	ProfileDefaultRetryAndCircuitBreaker
	ProfileIdempotentRetry
)

func (p Profile) String() string {
	switch p {
	case ProfileNone:
		return "none"
	case ProfileDefaultRetry:
		return "retry"
	case ProfileDefaultCircuitBreaker:
		return "circuit_breaker"
	case ProfileDefaultRetryAndCircuitBreaker:
		return "retry_circuit_breaker"
	case ProfileIdempotentRetry:
		return "idempotent_retry"
	default:
		return "unknown"
	}
}

// ParseProfile parses the configuration spelling of a profile.
func ParseProfile(s string) (Profile, error) {
	switch s {
	case "", "none":
		return ProfileNone, nil
	case "retry":
		return ProfileDefaultRetry, nil
	case "circuit_breaker":
		return ProfileDefaultCircuitBreaker, nil
	case "retry_circuit_breaker":
		return ProfileDefaultRetryAndCircuitBreaker, nil
	case "idempotent_retry":
		return ProfileIdempotentRetry, nil
	default:
		return ProfileNone, fmt.Errorf("unknown resilience profile %q", s)
	}
}

// Options are passed per call. Idempotent=false suppresses retries for
// the plain retry profiles even when the profile requests them, so a
// non-idempotent statement can never execute twice.
type Options struct {
	Profile    Profile
	Idempotent bool
}

// RetryDecision is the outcome of a retry classifier.
type RetryDecision int

const (
	Retryable RetryDecision = iota
	Fatal
)

// BreakerDecision is the outcome of a breaker classifier.
type BreakerDecision int

const (
	CountsAsFailure BreakerDecision = iota
	Ignored
)

// RetrySpec declares a retry policy. Backoff for retry n (1-indexed)
// is InitialDelay * BackoffFactor^(n-1).
type RetrySpec struct {
	MaxRetries    int
	InitialDelay  time.Duration
	BackoffFactor float64
	Classify      func(error) RetryDecision
}

// BreakerSpec declares a circuit breaker policy. The breaker state
// itself lives in a shared breaker cell, not in the policy.
type BreakerSpec struct {
	FailureThreshold int
	BreakDuration    time.Duration
	Classify         func(error) BreakerDecision
}

// DefaultRetrySpec is the conservative retry budget.
func DefaultRetrySpec() RetrySpec {
	return RetrySpec{
		MaxRetries:    2,
		InitialDelay:  100 * time.Millisecond,
		BackoffFactor: 2.0,
		Classify:      ClassifyForRetry,
	}
}

// IdempotentRetrySpec is the permissive budget for operations the
// caller has affirmed to be idempotent.
func IdempotentRetrySpec() RetrySpec {
	return RetrySpec{
		MaxRetries:    5,
		InitialDelay:  100 * time.Millisecond,
		BackoffFactor: 2.0,
		Classify:      ClassifyForRetry,
	}
}

// DefaultBreakerSpec is the default circuit breaker configuration.
func DefaultBreakerSpec() BreakerSpec {
	return BreakerSpec{
		FailureThreshold: 5,
		BreakDuration:    30 * time.Second,
		Classify:         ClassifyForBreaker,
	}
}
