// Package executor runs database operations under composed retry and
// circuit-breaker policies.
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/cqlguard/internal/core/domain"
	"github.com/vietddude/cqlguard/internal/resilience/breaker"
	"github.com/vietddude/cqlguard/internal/resilience/policy"
)

// Operation is a caller-supplied database call. The executor may invoke
// it more than once when the options attest idempotence, so the closure
// must be safe to re-run.
type Operation func(ctx context.Context) error

// Executor wraps operations with the composite policy for their
// operation key and surfaces classified outcomes.
type Executor struct {
	composer *policy.Composer
	observer domain.Observer
	defaults policy.Options

	mu    sync.Mutex
	cache map[compositeKey]policy.Composite

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

type compositeKey struct {
	operation  string
	profile    policy.Profile
	idempotent bool
}

// New builds an executor. A nil observer disables lifecycle events.
func New(composer *policy.Composer, observer domain.Observer, defaults policy.Options) *Executor {
	if observer == nil {
		observer = domain.NopObserver{}
	}
	return &Executor{
		composer: composer,
		observer: observer,
		defaults: defaults,
		cache:    make(map[compositeKey]policy.Composite),
		sleep:    sleepCtx,
		now:      time.Now,
	}
}

// Defaults returns the configured default options.
func (e *Executor) Defaults() policy.Options {
	return e.defaults
}

// Composer exposes the policy composer, mainly so callers can reach
// the shared breaker registry for reporting.
func (e *Executor) Composer() *policy.Composer {
	return e.composer
}

// Execute runs op under the composite policy for (opts, operationKey).
// When the breaker for the key is open the call fails fast with a
// CircuitOpenError and op is never invoked. The breaker observes only
// the final outcome of the retry sequence, never individual attempts.
func (e *Executor) Execute(ctx context.Context, operationKey string, opts policy.Options, op Operation) error {
	cp := e.composite(operationKey, opts)

	var admitted breaker.Decision
	if cp.Breaker != nil {
		admitted = cp.Breaker.Admit()
		if !admitted.Proceed {
			return &domain.CircuitOpenError{OperationKey: operationKey, RetryAfter: admitted.RetryAfter}
		}
	}

	err := e.runAttempts(ctx, operationKey, cp.Retry, op)

	if cp.Breaker != nil {
		tr := cp.Breaker.Record(admitted.Gen, err)
		if tr.Opened {
			e.emit(domain.EventBreakerOpened, operationKey, 0, err)
		}
		if tr.Reset {
			e.emit(domain.EventBreakerReset, operationKey, 0, nil)
		}
	}
	return err
}

// ExecuteDefault runs op with the executor's configured default options.
func (e *Executor) ExecuteDefault(ctx context.Context, operationKey string, op Operation) error {
	return e.Execute(ctx, operationKey, e.defaults, op)
}

// Run executes a value-returning operation under the executor's
// policies.
func Run[T any](ctx context.Context, e *Executor, operationKey string, opts policy.Options, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := e.Execute(ctx, operationKey, opts, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (e *Executor) runAttempts(ctx context.Context, key string, retry *policy.RetryPolicy, op Operation) error {
	attempts := 1
	if retry != nil {
		attempts = retry.MaxAttempts()
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		e.emit(domain.EventAttemptStarted, key, attempt, nil)
		err = op(ctx)
		if err == nil {
			e.emit(domain.EventAttemptSucceeded, key, attempt, nil)
			return nil
		}
		e.emit(domain.EventAttemptFailed, key, attempt, err)

		if retry == nil || attempt == attempts || !retry.Retryable(err) {
			return err
		}
		if werr := e.sleep(ctx, retry.Delay(attempt)); werr != nil {
			// Cancellation aborts the wait and the retry loop; it is
			// surfaced as the context error, distinct from a timeout.
			return werr
		}
	}
	return err
}

// composite returns the cached composite policy for the key, building
// it on first use. First writer wins so the same key can never see two
// divergent composites.
func (e *Executor) composite(key string, opts policy.Options) policy.Composite {
	ck := compositeKey{operation: key, profile: opts.Profile, idempotent: opts.Idempotent}

	e.mu.Lock()
	defer e.mu.Unlock()

	if cp, ok := e.cache[ck]; ok {
		return cp
	}
	cp := e.composer.Compose(opts, key)
	e.cache[ck] = cp
	return cp
}

// emit delivers an event best-effort; a misbehaving observer must never
// affect the executor outcome.
func (e *Executor) emit(kind domain.EventKind, key string, attempt int, err error) {
	defer func() { _ = recover() }()
	e.observer.Observe(domain.Event{
		Kind:         kind,
		OperationKey: key,
		Attempt:      attempt,
		Timestamp:    e.now(),
		Err:          err,
	})
}

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
