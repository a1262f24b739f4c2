// Package tasks runs detached background work that must not hold up a
// response, and waits for it on shutdown.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Spawner starts fire-and-forget tasks. Failures and panics are logged,
// never propagated.
type Spawner struct {
	wg      sync.WaitGroup
	timeout time.Duration
}

// NewSpawner returns a spawner whose tasks are cancelled after timeout.
func NewSpawner(timeout time.Duration) *Spawner {
	return &Spawner{timeout: timeout}
}

// Go runs fn in the background. The task gets its own context so it
// outlives the request that started it.
func (s *Spawner) Go(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Background task panicked.", "task", name, "panic", fmt.Sprint(r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			slog.Error("Background task failed.", "task", name, "error", err)
		}
	}()
}

// Wait blocks until every started task has returned or ctx is done.
func (s *Spawner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
