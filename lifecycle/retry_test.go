package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/mnemo-dev/mnemo/store"
)

func TestRetryWriteRecoversFromTransientFailure(t *testing.T) {
	calls := 0
	err := retryWrite(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retryWrite() = %v, want nil", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetryWriteGivesUpAfterBudget(t *testing.T) {
	calls := 0
	wantErr := errors.New("disk full")
	err := retryWrite(context.Background(), func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("retryWrite() = %v, want %v", err, wantErr)
	}
	if calls != writeAttempts {
		t.Errorf("calls = %d, want %d", calls, writeAttempts)
	}
}

func TestRetryWriteNotFoundIsPermanent(t *testing.T) {
	calls := 0
	err := retryWrite(context.Background(), func() error {
		calls++
		return store.ErrNotFound
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("retryWrite() = %v, want ErrNotFound", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryWriteStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retryWrite(ctx, func() error {
		calls++
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("retryWrite() = nil, want error after cancel")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
