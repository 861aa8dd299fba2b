package payrecon_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aulatech/payrecon/pkg/payrecon"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	ctx := context.Background()
	cb := payrecon.NewCircuitBreaker(3, time.Minute, nil)
	failing := func() error { return errors.New("boom") }

	for i := 0; i < 3; i++ {
		if cb.State() != payrecon.StateClosed {
			t.Fatalf("breaker opened after %d failures, threshold is 3", i)
		}
		if err := cb.Execute(ctx, failing); err == nil {
			t.Fatal("Execute should propagate the call error")
		}
	}

	if cb.State() != payrecon.StateOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}
	if err := cb.Execute(ctx, failing); err != payrecon.ErrCircuitOpen {
		t.Fatalf("open breaker returned %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	ctx := context.Background()
	cb := payrecon.NewCircuitBreaker(3, time.Minute, nil)
	failing := func() error { return errors.New("boom") }
	ok := func() error { return nil }

	cb.Execute(ctx, failing)
	cb.Execute(ctx, failing)
	cb.Execute(ctx, ok)
	cb.Execute(ctx, failing)
	cb.Execute(ctx, failing)

	if cb.State() != payrecon.StateClosed {
		t.Fatalf("state = %s, a success must reset the failure count", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	ctx := context.Background()

	var transitions []payrecon.CircuitBreakerState
	cb := payrecon.NewCircuitBreaker(1, 10*time.Millisecond, func(state payrecon.CircuitBreakerState) {
		transitions = append(transitions, state)
	})

	cb.Execute(ctx, func() error { return errors.New("boom") })
	if cb.State() != payrecon.StateOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}

	time.Sleep(15 * time.Millisecond)
	if cb.State() != payrecon.StateHalfOpen {
		t.Fatalf("state = %s, want half_open after reset timeout", cb.State())
	}

	// The probe succeeds and closes the circuit.
	if err := cb.Execute(ctx, func() error { return nil }); err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if cb.State() != payrecon.StateClosed {
		t.Fatalf("state = %s, want closed after successful probe", cb.State())
	}

	want := []payrecon.CircuitBreakerState{payrecon.StateOpen, payrecon.StateClosed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", transitions, want)
		}
	}
}

func TestBreakerGateway_FailsFastWhenOpen(t *testing.T) {
	ctx := context.Background()

	inner := &fakeGateway{err: errors.New("gateway down")}
	gateway := payrecon.NewBreakerGateway(inner, payrecon.NewCircuitBreaker(2, time.Minute, nil))

	for i := 0; i < 2; i++ {
		if _, err := gateway.GetPayment(ctx, "123"); err == nil {
			t.Fatal("expected fetch error")
		}
	}

	_, err := gateway.GetPayment(ctx, "123")
	if err != payrecon.ErrCircuitOpen {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if inner.calls.Load() != 2 {
		t.Fatalf("inner gateway called %d times, want 2 (open circuit must not call through)", inner.calls.Load())
	}
}
