package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

var fastBackoff = Backoff{MaxTries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}

func TestRetryWithBackoff_SuccessImmediate(t *testing.T) {
	result, err := RetryWithBackoff(context.Background(), fastBackoff, func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result != 42 {
		t.Fatalf("expected 42, got %d", result)
	}
}

func TestRetryWithBackoff_SuccessAfterRetries(t *testing.T) {
	calls := 0
	result, err := RetryWithBackoff(context.Background(), fastBackoff, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 99, nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result != 99 || calls != 3 {
		t.Fatalf("expected 99 after 3 calls, got %d after %d", result, calls)
	}
}

func TestRetryWithBackoff_PersistentFailure(t *testing.T) {
	calls := 0
	_, err := RetryWithBackoff(context.Background(), fastBackoff, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("persistent")
	})
	if err == nil || err.Error() != "persistent" {
		t.Fatalf("expected persistent error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryWithBackoff_PermanentStops(t *testing.T) {
	sentinel := errors.New("bad input")
	calls := 0
	err := RetryErrWithBackoff(context.Background(), fastBackoff, func(context.Context) error {
		calls++
		return Permanent(sentinel)
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
	if IsPermanent(err) {
		t.Fatal("expected permanent wrapper to be removed")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryErrWithBackoff(ctx, fastBackoff, func(context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected 0 calls, got %d", calls)
	}
}

func TestRetryWithBackoff_MaxTriesZero(t *testing.T) {
	calls := 0
	_ = RetryErrWithBackoff(context.Background(), Backoff{}, func(context.Context) error {
		calls++
		return errors.New("fail")
	})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{InitialDelay: 100 * time.Millisecond, MaxDelay: 350 * time.Millisecond, Multiplier: 2}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 350 * time.Millisecond},
		{10, 350 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Fatalf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffDelay_JitterBounds(t *testing.T) {
	b := Backoff{InitialDelay: 100 * time.Millisecond, Multiplier: 2, Jitter: 0.5}
	for i := 0; i < 100; i++ {
		got := b.Delay(1)
		if got < 50*time.Millisecond || got > 150*time.Millisecond {
			t.Fatalf("jittered delay %v out of bounds", got)
		}
	}
}
