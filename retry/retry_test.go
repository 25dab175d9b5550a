package retry

import (
	"context"
	"testing"
	"time"

	apperrors "panelcatalog/server/errors"
)

func fastConfig() Config {
	return Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2.0}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return nil
	}, fastConfig())
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_RetriesTransient(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return apperrors.NewTransientStoreError("db locked", nil)
		}
		return nil
	}, fastConfig())
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return apperrors.NewTransientStoreError("db locked", nil)
	}, fastConfig())
	if err == nil {
		t.Fatal("Do returned nil after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want exactly MaxAttempts", calls)
	}
}

func TestDo_ValidationNotRetried(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return apperrors.NewValidationError("bad input", nil)
	}, fastConfig())
	if err == nil {
		t.Fatal("Do swallowed a validation error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1: validation errors must not be retried", calls)
	}
}

func TestDo_InvariantNotRetried(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return apperrors.NewInvariantViolation("cycle detected", nil)
	}, fastConfig())
	if err == nil || calls != 1 {
		t.Errorf("err = %v, calls = %d, want immediate failure", err, calls)
	}
}

func TestDo_CancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, func() error {
		calls++
		cancel()
		return apperrors.NewTransientStoreError("db locked", nil)
	}, fastConfig())
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_ZeroConfigUsesDefaults(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return nil
	}, Config{})
	if err != nil || calls != 1 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}
