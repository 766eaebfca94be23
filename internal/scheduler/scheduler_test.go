package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunInvokesTicksUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())

	var count int32
	err := s.Run(ctx, func(ctx context.Context, cycle time.Time) error {
		if atomic.AddInt32(&count, 1) >= 2 {
			cancel()
		}
		return nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if atomic.LoadInt32(&count) < 2 {
		t.Fatalf("expected at least 2 ticks, got %d", count)
	}
}

func TestRunContinuesPastTickError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())

	var count int32
	_ = s.Run(ctx, func(ctx context.Context, cycle time.Time) error {
		if atomic.AddInt32(&count, 1) >= 2 {
			cancel()
		}
		return errors.New("cycle failed")
	})

	if atomic.LoadInt32(&count) < 2 {
		t.Fatal("a failed cycle must not stop the loop")
	}
}

func TestNewRejectsBadInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on non-positive interval")
		}
	}()
	New(Options{}, zerolog.Nop())
}
