package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("backend down")

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker("cache", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
		OnStateChange:    func(_ string, to State) { transitions = append(transitions, to) },
	})

	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return errBackend }); !errors.Is(err, errBackend) {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %v, want open", cb.GetState())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("fn ran while circuit open")
	}
	if len(transitions) != 1 || transitions[0] != StateOpen {
		t.Errorf("transitions = %v, want [open]", transitions)
	}

	cb.Reset()
	if cb.GetState() != StateClosed {
		t.Errorf("state after reset = %v", cb.GetState())
	}
}

func TestCircuitBreakerHalfOpenRecovers(t *testing.T) {
	cb := NewCircuitBreaker("cache", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Millisecond,
	})
	_ = cb.Execute(func() error { return errBackend })
	time.Sleep(20 * time.Millisecond)

	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("state = %v, want closed", cb.GetState())
	}
}

func TestCircuitBreakerIgnoresNonFailures(t *testing.T) {
	errMiss := errors.New("miss")
	cb := NewCircuitBreaker("cache", CircuitBreakerConfig{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return err != nil && !errors.Is(err, errMiss) },
	})
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errMiss })
	}
	if cb.GetState() != StateClosed {
		t.Errorf("state = %v, want closed", cb.GetState())
	}
}

func TestRetryEventuallySucceeds(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), "connect", RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}, func() error {
		attempts++
		if attempts < 3 {
			return errBackend
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryStopsOnPermanent(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), "seed", RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}, func() error {
		attempts++
		return Permanent(errBackend)
	})
	if !errors.Is(err, errBackend) {
		t.Errorf("err = %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetryExhausted(t *testing.T) {
	err := Retry(context.Background(), "connect", RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}, func() error {
		return errBackend
	})
	if !errors.Is(err, errBackend) {
		t.Errorf("err = %v, want wrapped errBackend", err)
	}
}

func TestCallWithTimeout(t *testing.T) {
	v, err := CallWithTimeout(context.Background(), time.Second, "fast", func(ctx context.Context) (int, error) {
		return 7, nil
	})
	if err != nil || v != 7 {
		t.Fatalf("got (%d, %v)", v, err)
	}

	_, err = CallWithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		time.Sleep(5 * time.Millisecond)
		return 1, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestWithTimeoutNoLimit(t *testing.T) {
	err := WithTimeout(context.Background(), 0, "unbounded", func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			t.Error("unexpected deadline")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
