package cassandra

import (
	"context"
	"errors"

	"github.com/gocql/gocql"

	"github.com/vietddude/cqlguard/internal/core/domain"
)

// translateError maps a gocql error onto the domain taxonomy so the
// resilience classifiers never have to know the driver. Context errors
// pass through untouched: caller-initiated cancellation must stay
// distinguishable from a cluster timeout.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &domain.DBError{Kind: classify(err), Op: op, Err: err}
}

func classify(err error) domain.ErrorKind {
	switch {
	case errors.Is(err, gocql.ErrNoConnections):
		return domain.KindNoHostAvailable
	case errors.Is(err, gocql.ErrTimeoutNoResponse), errors.Is(err, gocql.ErrConnectionClosed):
		return domain.KindTimeout
	}

	var req gocql.RequestError
	if errors.As(err, &req) {
		switch req.Code() {
		case gocql.ErrCodeSyntax:
			return domain.KindSyntax
		case gocql.ErrCodeCredentials, gocql.ErrCodeUnauthorized:
			return domain.KindAuthFailure
		case gocql.ErrCodeInvalid, gocql.ErrCodeAlreadyExists, gocql.ErrCodeUnprepared:
			return domain.KindInvalidQuery
		case gocql.ErrCodeReadTimeout, gocql.ErrCodeWriteTimeout:
			return domain.KindTimeout
		case gocql.ErrCodeUnavailable, gocql.ErrCodeBootstrapping:
			return domain.KindNoHostAvailable
		case gocql.ErrCodeOverloaded:
			return domain.KindOverloaded
		}
	}
	return domain.KindUnknown
}
