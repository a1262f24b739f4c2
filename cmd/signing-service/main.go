package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/contractsigning/internal/app"
	"github.com/Lllllllleong/contractsigning/internal/config"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// shutdownTimeout bounds how long SIGTERM waits for background deliveries.
const shutdownTimeout = 30 * time.Second

var (
	instance *app.App
	once     sync.Once
	initErr  error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleSigning", handleSigning)
	functions.CloudEvent("SweepOnSchedule", sweepOnSchedule)
}

func setup() (*app.App, error) {
	once.Do(func() {
		var cfg *config.Config
		cfg, initErr = config.Load("")
		if initErr != nil {
			return
		}
		instance, initErr = app.New(context.Background(), cfg)
	})
	return instance, initErr
}

// handleSigning serves the whole HTTP surface.
func handleSigning(w http.ResponseWriter, r *http.Request) {
	a, err := setup()
	if err != nil {
		slog.Error("Critical: signing service initialization failed", "error", err)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	a.Handler.ServeHTTP(w, r)
}

// sweepOnSchedule runs the cleanup when Cloud Scheduler publishes a tick.
func sweepOnSchedule(ctx context.Context, e cloudevents.Event) error {
	a, err := setup()
	if err != nil {
		slog.Error("Critical: signing service initialization failed", "error", err)
		return err
	}
	res, err := a.Cleanup.Process(ctx)
	if err != nil {
		return err
	}
	slog.Info("Scheduled cleanup finished.", "eventId", e.ID(), "source", e.Source(), "deletedCount", res.DeletedCount)
	return nil
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	a, err := setup()
	if err != nil {
		slog.Error("Failed to initialize signing service", "error", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if interval := a.Config.Cleanup.Interval; interval > 0 {
		go a.Sweeper.Run(ctx, interval)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- funcframework.Start(port)
	}()

	select {
	case err := <-errCh:
		slog.Error("funcframework.Start failed", "error", err)
		os.Exit(1)
	case <-ctx.Done():
	}

	// funcframework owns its listener, so only the detached tasks are drained.
	slog.Info("Shutting down.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Shutdown was not clean.", "error", err)
	}
}
