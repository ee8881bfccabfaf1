package policy

import (
	"math"
	"time"
)

// RetryPolicy is a stateless retry description built from a RetrySpec.
type RetryPolicy struct {
	spec RetrySpec
}

// BuildRetry normalizes a spec into a usable retry policy.
func BuildRetry(spec RetrySpec) RetryPolicy {
	if spec.MaxRetries < 0 {
		spec.MaxRetries = 0
	}
	if spec.InitialDelay <= 0 {
		spec.InitialDelay = 100 * time.Millisecond
	}
	if spec.BackoffFactor < 1.0 {
		spec.BackoffFactor = 1.0
	}
	if spec.Classify == nil {
		spec.Classify = ClassifyForRetry
	}
	return RetryPolicy{spec: spec}
}

// MaxAttempts is the total attempt budget including the first call.
func (p RetryPolicy) MaxAttempts() int {
	return p.spec.MaxRetries + 1
}

// Delay returns the backoff before retry n (1-indexed):
// InitialDelay * BackoffFactor^(n-1).
func (p RetryPolicy) Delay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	d := float64(p.spec.InitialDelay) * math.Pow(p.spec.BackoffFactor, float64(retry-1))
	return time.Duration(d)
}

// Retryable reports whether err is worth another attempt.
func (p RetryPolicy) Retryable(err error) bool {
	return p.spec.Classify(err) == Retryable
}

// CircuitBreakerPolicy is a stateless breaker description. The shared
// state it drives lives in a breaker cell keyed by operation.
type CircuitBreakerPolicy struct {
	spec BreakerSpec
}

// BuildCircuitBreaker normalizes a spec into a usable breaker policy.
func BuildCircuitBreaker(spec BreakerSpec) CircuitBreakerPolicy {
	if spec.FailureThreshold < 1 {
		spec.FailureThreshold = 1
	}
	if spec.BreakDuration <= 0 {
		spec.BreakDuration = 30 * time.Second
	}
	if spec.Classify == nil {
		spec.Classify = ClassifyForBreaker
	}
	return CircuitBreakerPolicy{spec: spec}
}

// Threshold is the consecutive counted failures that trip the breaker.
func (p CircuitBreakerPolicy) Threshold() int {
	return p.spec.FailureThreshold
}

// BreakDuration is how long the breaker stays open before probing.
func (p CircuitBreakerPolicy) BreakDuration() time.Duration {
	return p.spec.BreakDuration
}

// Counts reports whether err counts toward the failure threshold.
func (p CircuitBreakerPolicy) Counts(err error) bool {
	return p.spec.Classify(err) == CountsAsFailure
}
