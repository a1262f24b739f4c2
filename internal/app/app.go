// Package app builds the signing service from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/Lllllllleong/contractsigning/internal/config"
	"github.com/Lllllllleong/contractsigning/internal/convert"
	"github.com/Lllllllleong/contractsigning/internal/gcp"
	"github.com/Lllllllleong/contractsigning/internal/handlers"
	"github.com/Lllllllleong/contractsigning/internal/intake"
	"github.com/Lllllllleong/contractsigning/internal/lifecycle"
	"github.com/Lllllllleong/contractsigning/internal/notify"
	"github.com/Lllllllleong/contractsigning/internal/outbound"
	"github.com/Lllllllleong/contractsigning/internal/services"
	"github.com/Lllllllleong/contractsigning/internal/stamper"
	"github.com/Lllllllleong/contractsigning/internal/storage"
	"github.com/Lllllllleong/contractsigning/internal/sweeper"
	"github.com/Lllllllleong/contractsigning/internal/tasks"
	"github.com/Lllllllleong/contractsigning/internal/template"
	"github.com/redis/go-redis/v9"
)

// App holds the wired service.
type App struct {
	Config  *config.Config
	Handler http.Handler
	Cleanup *services.CleanupFunction
	Sweeper *sweeper.Sweeper
	Spawner *tasks.Spawner

	closers []io.Closer
}

// New wires every component selected by cfg. Call Close when done.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone: %w", err)
	}

	store, err := a.newStore(ctx)
	if err != nil {
		return nil, err
	}
	meta, err := a.newMetadata(ctx, store)
	if err != nil {
		return nil, err
	}
	locker := a.newLocker()

	st, err := stamper.New(cfg.Stamp)
	if err != nil {
		return nil, fmt.Errorf("failed to create stamper: %w", err)
	}
	autoSig, err := os.ReadFile(cfg.Assets.AutoSignaturePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read institutional signature: %w", err)
	}
	renderer, err := template.Load(cfg.Assets.TemplatePath)
	if err != nil {
		return nil, err
	}
	page, err := os.ReadFile(cfg.Assets.SigningPagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing page: %w", err)
	}

	manager := lifecycle.NewManager(store, meta, locker, st, autoSig, loc)

	client := outbound.New(cfg.OutboundTimeout)
	messenger := notify.NewEvolutionMessenger(client, cfg.Messaging.URL, cfg.Messaging.Instance,
		cfg.Messaging.APIKey, cfg.Messaging.CountryPrefix, cfg.Messaging.DelayMillis)
	deliverer, err := a.newDeliverer(ctx, messenger)
	if err != nil {
		return nil, err
	}

	a.Spawner = tasks.NewSpawner(cfg.OutboundTimeout)
	enroll := services.NewEnroll(services.EnrollDeps{
		Renderer:   renderer,
		Converter:  convert.NewCloudConvert(outbound.New(cfg.Convert.Timeout), cfg.Convert.APIKey, cfg.Convert.BaseURL, cfg.Convert.SyncBaseURL),
		Documents:  manager,
		Messenger:  messenger,
		Intake:     intake.NewForwarder(client, cfg.Intake.URL, cfg.Intake.BusinessUnitID, cfg.Intake.ItemServiceID),
		Spawner:    a.Spawner,
		SigningURL: cfg.SigningURL,
		Location:   loc,
	})
	a.Sweeper = sweeper.New(store, cfg.Cleanup.Retention)
	a.Cleanup = services.NewCleanup(a.Sweeper)

	deps := handlers.Deps{
		Enroll:        enroll,
		Signing:       services.NewSigning(manager, deliverer),
		Cleanup:       a.Cleanup,
		SigningPage:   page,
		CronSecret:    cfg.CronSecret,
		AllowedOrigin: cfg.AllowedOrigin,
	}
	if cfg.Storage.Backend == "local" {
		deps.Files = store
	}
	a.Handler = handlers.NewRouter(deps)

	slog.Info("Signing service initialized.",
		"storage", cfg.Storage.Backend,
		"metadata", cfg.Metadata.Backend,
		"lock", cfg.Lock.Backend,
		"delivery", cfg.Delivery.Backend,
	)
	return a, nil
}

// NewSweeper builds only the blob store and a sweeper over it, for callers
// that clean up without serving requests. The returned func closes the store.
func NewSweeper(ctx context.Context, cfg *config.Config) (*sweeper.Sweeper, func() error, error) {
	a := &App{Config: cfg}
	store, err := a.newStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return sweeper.New(store, cfg.Cleanup.Retention), a.Close, nil
}

func (a *App) newStore(ctx context.Context) (storage.Store, error) {
	cfg := a.Config.Storage
	if cfg.Backend == "gcs" {
		client, err := gcp.NewStorageClient(ctx)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client)
		return storage.NewGCS(client, cfg.Bucket, cfg.SignedURLTTL), nil
	}
	return storage.NewLocal(cfg.LocalDir, a.Config.PublicBaseURL)
}

func (a *App) newMetadata(ctx context.Context, store storage.Store) (lifecycle.MetadataStore, error) {
	cfg := a.Config.Metadata
	if cfg.Backend == "firestore" {
		client, err := gcp.NewFirestoreClient(ctx, a.Config.ProjectID, cfg.DatabaseID)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client)
		return lifecycle.NewFirestoreStore(client, cfg.Collection), nil
	}
	return lifecycle.NewSidecarStore(store), nil
}

func (a *App) newLocker() lifecycle.Locker {
	cfg := a.Config.Lock
	if cfg.Backend == "redis" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.Password, DB: cfg.DB})
		a.closers = append(a.closers, client)
		return lifecycle.NewRedisLocker(client, cfg.TTL)
	}
	return lifecycle.NewMemoryLocker()
}

func (a *App) newDeliverer(ctx context.Context, messenger notify.Messenger) (notify.Deliverer, error) {
	cfg := a.Config
	if cfg.Delivery.Backend == "workflow" {
		client, err := gcp.NewExecutionsClient(ctx)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client)
		return notify.NewWorkflowDeliverer(client, gcp.WorkflowParent(cfg.ProjectID, cfg.Delivery.WorkflowLocation, cfg.Delivery.WorkflowID)), nil
	}
	var mailer notify.Mailer
	if cfg.Email.Host != "" {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
		})
	}
	return notify.NewDirectDeliverer(messenger, mailer), nil
}

// Shutdown waits for background tasks started by requests, then closes the
// clients. Tasks still running when ctx is done are abandoned.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.Spawner.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("background tasks did not finish: %w", err))
	}
	if err := a.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close releases every client opened by New. Calling it again is a no-op.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
