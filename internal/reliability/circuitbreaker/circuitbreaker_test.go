package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb := New(3, 1, time.Minute)

	for i := 0; i < 3; i++ {
		if err := cb.Do(func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("attempt %d: expected underlying error, got %v", i+1, err)
		}
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("expected open state after threshold failures")
	}
	if err := cb.Do(func() error { return nil }); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected fast-fail while open, got %v", err)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := New(3, 1, time.Minute)

	cb.Do(func() error { return errBoom })
	cb.Do(func() error { return errBoom })
	cb.Do(func() error { return nil })
	cb.Do(func() error { return errBoom })
	cb.Do(func() error { return errBoom })

	if cb.GetState() != StateClosed {
		t.Fatalf("expected closed state, non-consecutive failures must not trip")
	}
}

func TestHalfOpenRecovery(t *testing.T) {
	cb := New(1, 2, 10*time.Millisecond)

	cb.Do(func() error { return errBoom })
	if cb.GetState() != StateOpen {
		t.Fatalf("expected open state")
	}

	time.Sleep(20 * time.Millisecond)

	// First probe transitions to half-open
	if err := cb.Do(func() error { return nil }); err != nil {
		t.Fatalf("expected probe to run, got %v", err)
	}
	if cb.GetState() != StateHalfOpen {
		t.Fatalf("expected half-open after one success, need two to close")
	}
	if err := cb.Do(func() error { return nil }); err != nil {
		t.Fatalf("expected second probe to run, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("expected closed after success threshold")
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := New(1, 2, 10*time.Millisecond)

	cb.Do(func() error { return errBoom })
	time.Sleep(20 * time.Millisecond)

	if err := cb.Do(func() error { return errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("expected probe to run, got %v", err)
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("expected reopen after half-open failure")
	}
}

func TestOnStateChange(t *testing.T) {
	cb := New(1, 1, time.Minute)
	var transitions [][2]State
	cb.OnStateChange(func(from, to State) {
		transitions = append(transitions, [2]State{from, to})
	})

	cb.Do(func() error { return errBoom })
	if len(transitions) != 1 || transitions[0] != [2]State{StateClosed, StateOpen} {
		t.Fatalf("unexpected transitions: %v", transitions)
	}
}
