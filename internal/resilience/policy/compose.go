package policy

import (
	"github.com/vietddude/cqlguard/internal/resilience/breaker"
)

// Composite is the ordered combination applied to one logical call:
// the breaker gate wraps the whole retry sequence, so internal retries
// never count individually toward the failure threshold. Nil fields
// mean the concern does not apply.
type Composite struct {
	Retry   *RetryPolicy
	Breaker *breaker.Breaker
}

// ComposerConfig overrides the built-in policy specs. A nil section
// keeps the package default; a non-nil section replaces it entirely,
// so an explicit zero-retry budget is honored rather than defaulted.
type ComposerConfig struct {
	Retry           *RetrySpec
	IdempotentRetry *RetrySpec
	Breaker         *BreakerSpec
}

// Composer assembles composites from a profile and the shared breaker
// registry.
type Composer struct {
	registry *breaker.Registry
	retry    RetryPolicy
	idem     RetryPolicy
	brk      CircuitBreakerPolicy
}

// NewComposer builds a composer over reg. reg must not be nil; all
// composites for the same operation key share its breaker cells.
func NewComposer(reg *breaker.Registry, cfg ComposerConfig) *Composer {
	retrySpec := DefaultRetrySpec()
	if cfg.Retry != nil {
		retrySpec = *cfg.Retry
	}
	idemSpec := IdempotentRetrySpec()
	if cfg.IdempotentRetry != nil {
		idemSpec = *cfg.IdempotentRetry
	}
	brkSpec := DefaultBreakerSpec()
	if cfg.Breaker != nil {
		brkSpec = *cfg.Breaker
	}
	return &Composer{
		registry: reg,
		retry:    BuildRetry(retrySpec),
		idem:     BuildRetry(idemSpec),
		brk:      BuildCircuitBreaker(brkSpec),
	}
}

// Registry exposes the shared breaker cells for reporting.
func (c *Composer) Registry() *breaker.Registry {
	return c.registry
}

// Compose selects and orders policies for one call. Composing a plain
// retry profile with Idempotent=false does not fail: the retry budget
// silently degrades to zero so the operation runs exactly once. The
// IdempotentRetry profile is itself the idempotence assertion and
// ignores the flag.
func (c *Composer) Compose(opts Options, operationKey string) Composite {
	switch opts.Profile {
	case ProfileDefaultRetry:
		return Composite{Retry: c.retryFor(opts)}
	case ProfileDefaultCircuitBreaker:
		return Composite{Breaker: c.breakerFor(operationKey)}
	case ProfileDefaultRetryAndCircuitBreaker:
		return Composite{
			Retry:   c.retryFor(opts),
			Breaker: c.breakerFor(operationKey),
		}
	case ProfileIdempotentRetry:
		p := c.idem
		return Composite{Retry: &p}
	default:
		return Composite{}
	}
}

func (c *Composer) retryFor(opts Options) *RetryPolicy {
	p := c.retry
	if !opts.Idempotent {
		degraded := p.spec
		degraded.MaxRetries = 0
		p = BuildRetry(degraded)
	}
	return &p
}

func (c *Composer) breakerFor(key string) *breaker.Breaker {
	return c.registry.Get(key, func() *breaker.Breaker {
		return breaker.New(c.brk.Threshold(), c.brk.BreakDuration(), c.brk.Counts)
	})
}
