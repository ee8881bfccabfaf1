package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/cqlguard/internal/core/domain"
	"github.com/vietddude/cqlguard/internal/resilience/breaker"
	"github.com/vietddude/cqlguard/internal/resilience/policy"
)

func timeoutErr() error {
	return &domain.DBError{Kind: domain.KindTimeout, Op: "exec", Err: errors.New("read timeout")}
}

func syntaxErr() error {
	return &domain.DBError{Kind: domain.KindSyntax, Op: "exec", Err: errors.New("line 1: no viable alternative")}
}

// recorder collects observer events for assertions.
type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Observe(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []domain.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func newTestExecutor(obs domain.Observer) *Executor {
	composer := policy.NewComposer(breaker.NewRegistry(), policy.ComposerConfig{
		Retry:           &policy.RetrySpec{MaxRetries: 2, InitialDelay: time.Millisecond, BackoffFactor: 1.0},
		IdempotentRetry: &policy.RetrySpec{MaxRetries: 4, InitialDelay: time.Millisecond, BackoffFactor: 1.0},
		Breaker:         &policy.BreakerSpec{FailureThreshold: 2, BreakDuration: time.Minute},
	})
	return New(composer, obs, policy.Options{})
}

func TestExecute_AttemptCounts(t *testing.T) {
	tests := []struct {
		name  string
		opts  policy.Options
		calls int
	}{
		{"none", policy.Options{Profile: policy.ProfileNone}, 1},
		{"retry non-idempotent runs exactly once", policy.Options{Profile: policy.ProfileDefaultRetry}, 1},
		{"retry idempotent exhausts budget", policy.Options{Profile: policy.ProfileDefaultRetry, Idempotent: true}, 3},
		{"breaker only", policy.Options{Profile: policy.ProfileDefaultCircuitBreaker}, 1},
		{"retry and breaker non-idempotent", policy.Options{Profile: policy.ProfileDefaultRetryAndCircuitBreaker}, 1},
		{"idempotent retry ignores the flag", policy.Options{Profile: policy.ProfileIdempotentRetry}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestExecutor(nil)
			calls := 0
			err := e.Execute(context.Background(), "ops.read", tt.opts, func(ctx context.Context) error {
				calls++
				return timeoutErr()
			})
			if err == nil {
				t.Fatal("Execute returned nil for an always-failing operation")
			}
			if calls != tt.calls {
				t.Errorf("operation invoked %d times, want %d", calls, tt.calls)
			}
		})
	}
}

func TestExecute_SuccessStopsRetry(t *testing.T) {
	e := newTestExecutor(nil)
	calls := 0
	err := e.Execute(context.Background(), "ops.read",
		policy.Options{Profile: policy.ProfileDefaultRetry, Idempotent: true},
		func(ctx context.Context) error {
			calls++
			if calls == 1 {
				return timeoutErr()
			}
			return nil
		})
	if err != nil {
		t.Fatalf("Execute = %v, want nil", err)
	}
	if calls != 2 {
		t.Errorf("operation invoked %d times, want 2", calls)
	}
}

func TestExecute_FatalNotRetried(t *testing.T) {
	e := newTestExecutor(nil)
	calls := 0
	err := e.Execute(context.Background(), "ops.read",
		policy.Options{Profile: policy.ProfileIdempotentRetry},
		func(ctx context.Context) error {
			calls++
			return syntaxErr()
		})
	if domain.KindOf(err) != domain.KindSyntax {
		t.Fatalf("Execute = %v, want the syntax error", err)
	}
	if calls != 1 {
		t.Errorf("fatal error retried: %d invocations", calls)
	}
}

func TestExecute_CircuitOpenFastFail(t *testing.T) {
	e := newTestExecutor(nil)
	opts := policy.Options{Profile: policy.ProfileDefaultCircuitBreaker}

	for i := 0; i < 2; i++ {
		_ = e.Execute(context.Background(), "ops.read", opts, func(ctx context.Context) error {
			return timeoutErr()
		})
	}

	calls := 0
	err := e.Execute(context.Background(), "ops.read", opts, func(ctx context.Context) error {
		calls++
		return nil
	})
	if !domain.IsCircuitOpen(err) {
		t.Fatalf("Execute = %v, want CircuitOpenError", err)
	}
	if calls != 0 {
		t.Error("operation was invoked despite open circuit")
	}
	var coErr *domain.CircuitOpenError
	if errors.As(err, &coErr) && coErr.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive remaining window", coErr.RetryAfter)
	}
}

func TestExecute_BreakerSeesSequenceOutcomeOnce(t *testing.T) {
	e := newTestExecutor(nil)

	// One logical call with 2 internal retries: the breaker (threshold 2)
	// must count a single failure, not three.
	err := e.Execute(context.Background(), "ops.read",
		policy.Options{Profile: policy.ProfileDefaultRetryAndCircuitBreaker, Idempotent: true},
		func(ctx context.Context) error {
			return timeoutErr()
		})
	if domain.IsCircuitOpen(err) {
		t.Fatal("circuit opened by a single logical call")
	}

	snap := e.Composer().Registry().Snapshot()["ops.read"]
	if snap.ConsecutiveFailures != 1 {
		t.Errorf("breaker failures = %d after one retry sequence, want 1", snap.ConsecutiveFailures)
	}
	if snap.State != breaker.StateClosed {
		t.Errorf("breaker state = %v, want closed", snap.State)
	}
}

func TestExecute_SyntaxErrorDoesNotTrip(t *testing.T) {
	e := newTestExecutor(nil)
	opts := policy.Options{Profile: policy.ProfileDefaultCircuitBreaker}

	for i := 0; i < 5; i++ {
		_ = e.Execute(context.Background(), "ops.read", opts, func(ctx context.Context) error {
			return syntaxErr()
		})
	}

	snap := e.Composer().Registry().Snapshot()["ops.read"]
	if snap.ConsecutiveFailures != 0 || snap.State != breaker.StateClosed {
		t.Errorf("syntax errors moved the breaker: %+v", snap)
	}
}

func TestExecute_CancellationAbortsBackoff(t *testing.T) {
	composer := policy.NewComposer(breaker.NewRegistry(), policy.ComposerConfig{
		Retry: &policy.RetrySpec{MaxRetries: 3, InitialDelay: time.Hour, BackoffFactor: 1.0},
	})
	e := New(composer, nil, policy.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	start := time.Now()
	err := e.Execute(ctx, "ops.read",
		policy.Options{Profile: policy.ProfileDefaultRetry, Idempotent: true},
		func(ctx context.Context) error {
			calls++
			cancel()
			return timeoutErr()
		})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("operation invoked %d times after cancellation, want 1", calls)
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation did not abort the backoff wait")
	}
}

func TestExecute_CancelledProbeLeavesBreakerUnresolved(t *testing.T) {
	rec := &recorder{}
	composer := policy.NewComposer(breaker.NewRegistry(), policy.ComposerConfig{
		Breaker: &policy.BreakerSpec{FailureThreshold: 1, BreakDuration: time.Millisecond},
	})
	e := New(composer, rec, policy.Options{})
	opts := policy.Options{Profile: policy.ProfileDefaultCircuitBreaker}

	_ = e.Execute(context.Background(), "ops.read", opts, func(ctx context.Context) error {
		return timeoutErr()
	})
	time.Sleep(10 * time.Millisecond)

	// The probe is aborted by cancellation; that says nothing about the
	// cluster and must not close the circuit.
	_ = e.Execute(context.Background(), "ops.read", opts, func(ctx context.Context) error {
		return context.Canceled
	})

	for _, k := range rec.kinds() {
		if k == domain.EventBreakerReset {
			t.Fatal("cancelled probe emitted breaker_reset")
		}
	}
	snap := e.Composer().Registry().Snapshot()["ops.read"]
	if snap.State != breaker.StateHalfOpen {
		t.Errorf("breaker state after cancelled probe = %v, want half_open", snap.State)
	}

	// The next call is the replacement probe; its success closes.
	err := e.Execute(context.Background(), "ops.read", opts, func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("replacement probe failed: %v", err)
	}
	snap = e.Composer().Registry().Snapshot()["ops.read"]
	if snap.State != breaker.StateClosed {
		t.Errorf("breaker state after successful probe = %v, want closed", snap.State)
	}
}

func TestExecute_ObserverEvents(t *testing.T) {
	rec := &recorder{}
	e := newTestExecutor(rec)

	calls := 0
	err := e.Execute(context.Background(), "ops.read",
		policy.Options{Profile: policy.ProfileDefaultRetry, Idempotent: true},
		func(ctx context.Context) error {
			calls++
			if calls == 1 {
				return timeoutErr()
			}
			return nil
		})
	if err != nil {
		t.Fatalf("Execute = %v, want nil", err)
	}

	want := []domain.EventKind{
		domain.EventAttemptStarted,
		domain.EventAttemptFailed,
		domain.EventAttemptStarted,
		domain.EventAttemptSucceeded,
	}
	got := rec.kinds()
	if len(got) != len(want) {
		t.Fatalf("event kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestExecute_BreakerEventsEmitted(t *testing.T) {
	rec := &recorder{}
	e := newTestExecutor(rec)
	opts := policy.Options{Profile: policy.ProfileDefaultCircuitBreaker}

	for i := 0; i < 2; i++ {
		_ = e.Execute(context.Background(), "ops.read", opts, func(ctx context.Context) error {
			return timeoutErr()
		})
	}

	opened := false
	for _, k := range rec.kinds() {
		if k == domain.EventBreakerOpened {
			opened = true
		}
	}
	if !opened {
		t.Error("no breaker_opened event after the breaker tripped")
	}
}

func TestExecute_PanickingObserverIsContained(t *testing.T) {
	e := newTestExecutor(domain.ObserverFunc(func(domain.Event) {
		panic("observer bug")
	}))

	err := e.Execute(context.Background(), "ops.read",
		policy.Options{Profile: policy.ProfileNone},
		func(ctx context.Context) error { return nil })
	if err != nil {
		t.Errorf("observer failure affected the outcome: %v", err)
	}
}

func TestRun_ReturnsValue(t *testing.T) {
	e := newTestExecutor(nil)

	rows, err := Run(context.Background(), e, "ops.read",
		policy.Options{Profile: policy.ProfileDefaultRetry, Idempotent: true},
		func(ctx context.Context) ([]string, error) {
			return []string{"a", "b"}, nil
		})
	if err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}
	if len(rows) != 2 {
		t.Errorf("rows = %v, want 2 entries", rows)
	}
}
