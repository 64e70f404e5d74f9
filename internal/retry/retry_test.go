package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/QuanCamile/RemindKanban/internal/retry"
)

func TestSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := retry.DoWith(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if calls != 1 {
		t.Fatalf("calls=%d, want 1", calls)
	}
}

func TestRetriesThenSucceeds(t *testing.T) {
	calls := 0
	err := retry.DoWith(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if calls != 3 {
		t.Fatalf("calls=%d, want 3", calls)
	}
}

func TestSurfacesLastError(t *testing.T) {
	calls := 0
	last := errors.New("still broken")
	err := retry.DoWith(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return last
	})
	if !errors.Is(err, last) {
		t.Fatalf("err=%v, want %v", err, last)
	}
	if calls != 3 {
		t.Fatalf("calls=%d, want 3", calls)
	}
}

func TestCanceledContextStopsWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retry.DoWith(ctx, 3, time.Minute, func() error {
		calls++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("calls=%d, want 1", calls)
	}
}
