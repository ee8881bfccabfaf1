package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a database error for the resilience policies.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindTimeout
	KindNoHostAvailable
	KindAuthFailure
	KindSyntax
	KindInvalidQuery
	KindOverloaded
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindNoHostAvailable:
		return "no_host_available"
	case KindAuthFailure:
		return "auth_failure"
	case KindSyntax:
		return "syntax"
	case KindInvalidQuery:
		return "invalid_query"
	case KindOverloaded:
		return "overloaded"
	default:
		return "unknown"
	}
}

// DBError wraps a driver error together with its classified kind.
type DBError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *DBError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *DBError) Unwrap() error {
	return e.Err
}

// KindOf returns the classified kind of err, or KindUnknown when err
// carries no classification.
func KindOf(err error) ErrorKind {
	var dbErr *DBError
	if errors.As(err, &dbErr) {
		return dbErr.Kind
	}
	return KindUnknown
}

// CircuitOpenError is returned when the circuit breaker rejects a call
// before the underlying operation is attempted.
type CircuitOpenError struct {
	OperationKey string
	RetryAfter   time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for %s (retry after %s)", e.OperationKey, e.RetryAfter)
}

// IsCircuitOpen reports whether err is a circuit-open rejection.
func IsCircuitOpen(err error) bool {
	var coErr *CircuitOpenError
	return errors.As(err, &coErr)
}
