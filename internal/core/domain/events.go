package domain

import "time"

// EventKind identifies an executor lifecycle event.
type EventKind int

const (
	EventAttemptStarted EventKind = iota
	EventAttemptSucceeded
	EventAttemptFailed
	EventBreakerOpened
	EventBreakerReset
)

func (k EventKind) String() string {
	switch k {
	case EventAttemptStarted:
		return "attempt_started"
	case EventAttemptSucceeded:
		return "attempt_succeeded"
	case EventAttemptFailed:
		return "attempt_failed"
	case EventBreakerOpened:
		return "breaker_opened"
	case EventBreakerReset:
		return "breaker_reset"
	default:
		return "unknown"
	}
}

// Event is a structured executor lifecycle signal. Delivery is
// best-effort; observers must never influence the executed operation.
type Event struct {
	Kind         EventKind
	OperationKey string
	Attempt      int
	Timestamp    time.Time
	Err          error
}

// Observer receives executor lifecycle events.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(ev Event) {
	f(ev)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) Observe(Event) {}
