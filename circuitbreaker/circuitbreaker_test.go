package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream down")

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := New(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, func() error { return errUpstream }); !errors.Is(err, errUpstream) {
			t.Fatalf("call %d: got %v, want upstream error", i, err)
		}
	}

	if cb.State() != StateOpen {
		t.Fatalf("breaker state = %v, want open", cb.State())
	}
	if err := cb.Execute(ctx, func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("open breaker let a call through: %v", err)
	}
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cb := New(1, 10*time.Millisecond)
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errUpstream })
	if cb.State() != StateOpen {
		t.Fatal("breaker should open after the first failure with threshold 1")
	}

	time.Sleep(20 * time.Millisecond)

	if err := cb.Execute(ctx, func() error { return nil }); err != nil {
		t.Fatalf("probe after cooldown should run: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("successful probe should close the breaker, state = %v", cb.State())
	}
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb := New(1, 10*time.Millisecond)
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errUpstream })
	time.Sleep(20 * time.Millisecond)
	_ = cb.Execute(ctx, func() error { return errUpstream })

	if cb.State() != StateOpen {
		t.Errorf("failed probe should reopen the breaker, state = %v", cb.State())
	}
}
