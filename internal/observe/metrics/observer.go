package metrics

import "github.com/vietddude/cqlguard/internal/core/domain"

// Observer feeds executor lifecycle events into the Prometheus
// collectors. It is the telemetry seam: the executor itself carries no
// metrics logic.
type Observer struct{}

func NewObserver() *Observer {
	return &Observer{}
}

func (o *Observer) Observe(ev domain.Event) {
	switch ev.Kind {
	case domain.EventAttemptSucceeded:
		AttemptsTotal.WithLabelValues(ev.OperationKey, "success").Inc()
	case domain.EventAttemptFailed:
		AttemptsTotal.WithLabelValues(ev.OperationKey, "failure").Inc()
	case domain.EventBreakerOpened:
		BreakerTransitionsTotal.WithLabelValues(ev.OperationKey, "open").Inc()
		BreakerOpen.WithLabelValues(ev.OperationKey).Set(1)
	case domain.EventBreakerReset:
		BreakerTransitionsTotal.WithLabelValues(ev.OperationKey, "closed").Inc()
		BreakerOpen.WithLabelValues(ev.OperationKey).Set(0)
	}
}
