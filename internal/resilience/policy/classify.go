package policy

import (
	"context"
	"errors"

	"github.com/vietddude/cqlguard/internal/core/domain"
)

// ClassifyForRetry is the Cassandra-aware retry classifier: only
// timeouts and "no host available" are worth another attempt, anything
// else propagates immediately.
func ClassifyForRetry(err error) RetryDecision {
	switch domain.KindOf(err) {
	case domain.KindTimeout, domain.KindNoHostAvailable:
		return Retryable
	default:
		return Fatal
	}
}

// ClassifyForBreaker is the Cassandra-aware breaker classifier. Syntax
// errors indicate a caller bug, not cluster unhealthiness, and must not
// trip the breaker. Caller-initiated cancellation says nothing about
// the cluster either.
func ClassifyForBreaker(err error) BreakerDecision {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Ignored
	}
	if domain.KindOf(err) == domain.KindSyntax {
		return Ignored
	}
	return CountsAsFailure
}
