package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunSucceedsAfterTransientFailures(t *testing.T) {
	p := New(5, time.Millisecond, 10*time.Millisecond)
	calls := 0
	got, err := Run(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRunExhaustsAndReturnsLastError(t *testing.T) {
	p := New(3, time.Millisecond, 5*time.Millisecond)
	calls := 0
	_, err := Run(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("boom")
	})
	if err == nil {
		t.Fatalf("expected error after exhaustion")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRunAbortsImmediatelyOnCancellation(t *testing.T) {
	p := New(5, time.Millisecond, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := Run(ctx, p, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("should not matter")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("calls = %d, want 0 (should abort before calling fn)", calls)
	}
}
