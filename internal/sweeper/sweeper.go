// Package sweeper deletes stale contracts so personal data is not retained
// beyond the retention window.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/contractsigning/internal/models"
	"github.com/Lllllllleong/contractsigning/internal/storage"
	"golang.org/x/sync/errgroup"
)

// Directories swept on every run.
var Directories = []string{"unsigned", "signed"}

// Report is the outcome of a sweep.
type Report struct {
	Results      []models.CleanupResult
	DeletedCount int
}

// Sweeper removes objects older than a retention window.
type Sweeper struct {
	store     storage.Store
	retention time.Duration
	dirs      []string
}

// New returns a sweeper over Directories. A zero retention deletes everything.
func New(store storage.Store, retention time.Duration) *Sweeper {
	return &Sweeper{store: store, retention: retention, dirs: Directories}
}

// Sweep deletes every object under the swept directories last modified at
// or before now minus the retention. A missing or empty directory counts zero.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (*Report, error) {
	cutoff := now.Add(-s.retention)
	results := make([]models.CleanupResult, len(s.dirs))

	eg, gctx := errgroup.WithContext(ctx)
	for i, dir := range s.dirs {
		eg.Go(func() error {
			n, err := s.sweepDir(gctx, dir, cutoff)
			results[i] = models.CleanupResult{Directory: dir, DeletedCount: n}
			if err != nil {
				return fmt.Errorf("%s: %w", dir, err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("cleanup failed: %w", err)
	}

	report := &Report{Results: results}
	for _, r := range results {
		report.DeletedCount += r.DeletedCount
	}
	return report, nil
}

func (s *Sweeper) sweepDir(ctx context.Context, dir string, cutoff time.Time) (int, error) {
	objects, err := s.store.List(ctx, dir+"/")
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, obj := range objects {
		if obj.Updated.After(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, obj.Key); err != nil {
			// Finalize may retire an unsigned document concurrently.
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return deleted, err
		}
		deleted++
	}
	if deleted > 0 {
		slog.Info("Swept directory.", "directory", dir, "deletedCount", deleted)
	}
	return deleted, nil
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("Periodic cleanup started.", "interval", interval.String(), "retention", s.retention.String())
	for {
		select {
		case now := <-ticker.C:
			report, err := s.Sweep(ctx, now)
			if err != nil {
				slog.Error("Periodic cleanup failed.", "error", err)
				continue
			}
			slog.Info("Periodic cleanup finished.", "deletedCount", report.DeletedCount)
		case <-ctx.Done():
			slog.Info("Periodic cleanup stopped.")
			return
		}
	}
}
