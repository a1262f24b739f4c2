package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/Lllllllleong/contractsigning/internal/models"
)

// CleanupFunction removes contracts past the retention window.
type CleanupFunction struct {
	sweeper Sweeper
	now     func() time.Time
}

func NewCleanup(s Sweeper) *CleanupFunction {
	return &CleanupFunction{sweeper: s, now: time.Now}
}

func (f *CleanupFunction) Process(ctx context.Context) (*models.CleanupResponse, error) {
	report, err := f.sweeper.Sweep(ctx, f.now())
	if err != nil {
		slog.Error("Cleanup failed", "error", err)
		return nil, err
	}
	slog.Info("Cleanup finished.", "deletedCount", report.DeletedCount)
	return &models.CleanupResponse{Success: true, DeletedCount: report.DeletedCount, Results: report.Results}, nil
}
