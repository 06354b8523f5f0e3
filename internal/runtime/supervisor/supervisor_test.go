package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"joinerbot/pkg/logx"
)

func TestGoRecoversPanic(t *testing.T) {
	s := New(context.Background(), WithLogger(logx.Nop()))
	s.Go("boomer", func(ctx context.Context) error {
		panic("boom")
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err == nil {
		t.Fatalf("panic not surfaced as error")
	}
}

func TestCancelOnError(t *testing.T) {
	s := New(context.Background(), WithLogger(logx.Nop()), WithCancelOnError(true))
	s.Go("failer", func(ctx context.Context) error {
		return errors.New("broken")
	})

	select {
	case <-s.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("context not cancelled after error")
	}
	if s.Err() == nil {
		t.Fatalf("first error not recorded")
	}
}

func TestContextCanceledIsCleanExit(t *testing.T) {
	s := New(context.Background(), WithLogger(logx.Nop()))
	s.Go("runner", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("clean shutdown returned %v", err)
	}
}

func TestGoRestartRetriesUntilSuccess(t *testing.T) {
	s := New(context.Background(), WithLogger(logx.Nop()))
	var runs atomic.Int32
	s.GoRestart("flaky", func(ctx context.Context) error {
		if runs.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got := runs.Load(); got != 3 {
		t.Fatalf("ran %d times, want 3", got)
	}
}

func TestWaitHonorsDeadline(t *testing.T) {
	s := New(context.Background(), WithLogger(logx.Nop()))
	s.Go("stuck", func(ctx context.Context) error {
		select {} // never exits
	})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
