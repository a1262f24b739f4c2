package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSpawner_RunsAndWaits(t *testing.T) {
	s := NewSpawner(time.Second)
	var n atomic.Int32
	for i := 0; i < 5; i++ {
		s.Go("count", func(ctx context.Context) error {
			n.Add(1)
			return nil
		})
	}
	s.Go("fails", func(ctx context.Context) error { return errors.New("upstream down") })
	s.Go("panics", func(ctx context.Context) error { panic("boom") })

	if err := s.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if got := n.Load(); got != 5 {
		t.Errorf("tasks run = %d, want 5", got)
	}
}

func TestSpawner_TaskContextHasDeadline(t *testing.T) {
	s := NewSpawner(20 * time.Millisecond)
	errCh := make(chan error, 1)
	s.Go("slow", func(ctx context.Context) error {
		<-ctx.Done()
		errCh <- ctx.Err()
		return ctx.Err()
	})
	if err := <-errCh; !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("task ctx error = %v, want deadline exceeded", err)
	}
}

func TestSpawner_WaitHonoursContext(t *testing.T) {
	s := NewSpawner(time.Minute)
	release := make(chan struct{})
	defer close(release)
	s.Go("blocked", func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}
