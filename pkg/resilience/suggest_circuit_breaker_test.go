package resilience

import (
	"errors"
	"testing"
	"time"
)

func newTestBreaker() *CircuitBreaker {
	return NewCircuitBreaker(&CircuitBreakerConfig{
		Name:               "test",
		FailureThreshold:   3,
		SuccessThreshold:   2,
		Timeout:            50 * time.Millisecond,
		MaxHalfOpenRequest: 1,
	})
}

var errUpstream = errors.New("upstream failed")

func fail() error    { return errUpstream }
func succeed() error { return nil }

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := newTestBreaker()

	for i := 0; i < 3; i++ {
		if err := cb.Execute(fail); !errors.Is(err, errUpstream) {
			t.Fatalf("call %d: expected upstream error, got %v", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	if err := cb.Execute(succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("open breaker should reject immediately, got %v", err)
	}
}

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	cb := newTestBreaker()

	// Successes reset the failure count in closed state.
	cb.Execute(fail)
	cb.Execute(fail)
	cb.Execute(succeed)
	cb.Execute(fail)
	cb.Execute(fail)

	if cb.State() != StateClosed {
		t.Errorf("interleaved successes should keep the breaker closed, got %v", cb.State())
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	cb := newTestBreaker()

	for i := 0; i < 3; i++ {
		cb.Execute(fail)
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	time.Sleep(60 * time.Millisecond)

	if err := cb.Execute(succeed); err != nil {
		t.Fatalf("probe after timeout should pass through, got %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open", cb.State())
	}
	if err := cb.Execute(succeed); err != nil {
		t.Fatalf("second probe should pass through, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("enough successes should close the breaker, got %v", cb.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := newTestBreaker()

	for i := 0; i < 3; i++ {
		cb.Execute(fail)
	}
	time.Sleep(60 * time.Millisecond)

	if err := cb.Execute(fail); !errors.Is(err, errUpstream) {
		t.Fatalf("probe should pass through, got %v", err)
	}
	if cb.State() != StateOpen {
		t.Errorf("failed probe should reopen the breaker, got %v", cb.State())
	}
}

func TestBreakerReset(t *testing.T) {
	cb := newTestBreaker()

	for i := 0; i < 3; i++ {
		cb.Execute(fail)
	}
	cb.Reset()

	if cb.State() != StateClosed {
		t.Fatalf("state after reset = %v, want closed", cb.State())
	}
	if err := cb.Execute(succeed); err != nil {
		t.Errorf("call after reset should pass through, got %v", err)
	}
}

func TestBreakerStateChangeCallback(t *testing.T) {
	cb := newTestBreaker()

	var transitions []string
	cb.OnStateChange(func(name string, from, to CircuitState) {
		transitions = append(transitions, from.String()+">"+to.String())
	})

	for i := 0; i < 3; i++ {
		cb.Execute(fail)
	}
	if len(transitions) != 1 || transitions[0] != "closed>open" {
		t.Errorf("transitions = %v, want [closed>open]", transitions)
	}
}

func TestBreakerStats(t *testing.T) {
	cb := newTestBreaker()
	cb.Execute(fail)

	stats := cb.Stats()
	if stats.Name != "test" {
		t.Errorf("name = %q", stats.Name)
	}
	if stats.State != "closed" {
		t.Errorf("state = %q", stats.State)
	}
	if stats.Failures != 1 {
		t.Errorf("failures = %d, want 1", stats.Failures)
	}
	if stats.LastFailure.IsZero() {
		t.Errorf("last failure timestamp not recorded")
	}
}
