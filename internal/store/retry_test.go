package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffFactor: 2}
}

func TestRetryBusy_RetriesLockErrors(t *testing.T) {
	calls := 0
	err := retryBusy(context.Background(), fastRetry(), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("insert: %w", sqlite3.Error{Code: sqlite3.ErrBusy})
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retryBusy: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryBusy_GivesUp(t *testing.T) {
	calls := 0
	err := retryBusy(context.Background(), fastRetry(), func() error {
		calls++
		return sqlite3.Error{Code: sqlite3.ErrLocked}
	})
	if !isBusy(err) {
		t.Errorf("expected lock error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryBusy_OtherErrorsNotRetried(t *testing.T) {
	boom := errors.New("constraint failed")
	calls := 0
	err := retryBusy(context.Background(), fastRetry(), func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}

func TestRetryBusy_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retryBusy(ctx, fastRetry(), func() error {
		return sqlite3.Error{Code: sqlite3.ErrBusy}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
