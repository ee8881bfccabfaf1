package breaker

import (
	"sync"
	"time"
)

// State is the circuit breaker state.
type State int

const (
	StateClosed   State = iota // Normal operation; calls pass through.
	StateOpen                  // Tripped; calls are rejected immediately.
	StateHalfOpen              // Probing; a single call tests recovery.
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Decision is the outcome of Admit. Gen identifies the breaker
// generation the call was admitted under and must be passed back to
// Record unchanged.
type Decision struct {
	Proceed    bool
	RetryAfter time.Duration // remaining open window when rejected
	Gen        uint64
}

// Transition reports a state change caused by Record.
type Transition struct {
	Opened bool
	Reset  bool
}

// Breaker is the shared per-operation circuit breaker state machine.
// Valid transitions: Closed->Open (threshold reached), Open->HalfOpen
// (break elapsed, on next Admit), HalfOpen->Closed (probe succeeded),
// HalfOpen->Open (probe failed). Exactly one probe is admitted while
// half-open; every Admit/Record runs under a single mutex so concurrent
// callers can never race a transition.
//
// gen increments on every transition. Record discards outcomes whose
// admission generation is stale, so a slow call admitted while Closed
// can never resolve a half-open window it was not the probe for.
type Breaker struct {
	threshold int
	breakFor  time.Duration
	counts    func(error) bool

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
	gen      uint64
	now      func() time.Time
}

// Snapshot is a point-in-time view of a breaker for reporting.
type Snapshot struct {
	State               State
	ConsecutiveFailures int
	OpenedAt            time.Time
}

// New creates a closed breaker. counts decides whether an error is a
// counted failure; nil counts every error.
func New(threshold int, breakFor time.Duration, counts func(error) bool) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	if breakFor <= 0 {
		breakFor = 30 * time.Second
	}
	if counts == nil {
		counts = func(err error) bool { return err != nil }
	}
	return &Breaker{
		threshold: threshold,
		breakFor:  breakFor,
		counts:    counts,
		now:       time.Now,
	}
}

// Admit decides whether a call may proceed. A rejected call must not be
// followed by Record; an admitted call must always be.
func (b *Breaker) Admit() Decision {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		elapsed := b.now().Sub(b.openedAt)
		if elapsed < b.breakFor {
			return Decision{RetryAfter: b.breakFor - elapsed}
		}
		// Break elapsed: this caller becomes the half-open probe.
		b.state = StateHalfOpen
		b.probing = true
		b.gen++
		return Decision{Proceed: true, Gen: b.gen}
	case StateHalfOpen:
		if b.probing {
			// Probe in flight; losers are rejected, never queued.
			return Decision{}
		}
		b.probing = true
		return Decision{Proceed: true, Gen: b.gen}
	default:
		return Decision{Proceed: true, Gen: b.gen}
	}
}

// Record feeds the final outcome of an admitted call back into the
// state machine. gen is the admission generation from the Decision; an
// outcome recorded after a later transition is stale and discarded, so
// only the probe itself can resolve a half-open window.
func (b *Breaker) Record(gen uint64, err error) Transition {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen {
		// Admitted before a transition; its outcome no longer applies.
		return Transition{}
	}

	failure := err != nil && b.counts(err)

	switch b.state {
	case StateHalfOpen:
		// Only the probe holds the current generation.
		b.probing = false
		if failure {
			b.state = StateOpen
			b.openedAt = b.now()
			b.gen++
			return Transition{Opened: true}
		}
		if err != nil {
			// The probe ended without evidence either way (e.g. the
			// caller cancelled). Release the slot for the next probe;
			// the circuit stays half-open.
			return Transition{}
		}
		b.state = StateClosed
		b.failures = 0
		b.gen++
		return Transition{Reset: true}
	case StateOpen:
		return Transition{}
	default:
		if !failure {
			b.failures = 0
			return Transition{}
		}
		b.failures++
		if b.failures >= b.threshold {
			b.state = StateOpen
			b.openedAt = b.now()
			b.gen++
			return Transition{Opened: true}
		}
		return Transition{}
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns a copy of the breaker state for reporting.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		State:               b.state,
		ConsecutiveFailures: b.failures,
		OpenedAt:            b.openedAt,
	}
}
