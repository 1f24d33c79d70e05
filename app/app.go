package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Black-And-White-Club/photoseason/app/eventbus"
	"github.com/Black-And-White-Club/photoseason/app/modules/ranking"
	rankingdb "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/repositories"
	"github.com/Black-And-White-Club/photoseason/config"
	"github.com/Black-And-White-Club/photoseason/database"
	"github.com/Black-And-White-Club/photoseason/db/bundb"
	"github.com/Black-And-White-Club/photoseason/pkg/observability"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"
)

// App wires the store, job queue, trigger bus and HTTP API around the
// ranking module.
type App struct {
	Config          *config.Config
	Observability   *observability.Observability
	Firestore       *firestore.Client
	Repository      rankingdb.Repository
	DB              *bun.DB
	EventBus        *eventbus.EventBus
	WatermillRouter *message.Router
	HTTPRouter      chi.Router
	RankingModule   *ranking.Module
}

// NewRepository opens the configured store. The Firestore client is nil for
// the memory store; callers close it when non-nil.
func NewRepository(ctx context.Context, cfg *config.Config, obs *observability.Observability) (rankingdb.Repository, *firestore.Client, error) {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		obs.Logger.WarnContext(ctx, "Using in-memory store; results are lost on exit")
		return rankingdb.NewMemoryRepository(), nil, nil
	case config.StoreFirestore:
		client, err := database.NewFirestoreClient(ctx, cfg.Firestore, obs.Logger)
		if err != nil {
			return nil, nil, err
		}
		return rankingdb.NewFirestoreRepository(client), client, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// NewApp initializes the application with the necessary services and configuration.
func NewApp(ctx context.Context, cfg *config.Config, obs *observability.Observability) (*App, error) {
	app := &App{Config: cfg, Observability: obs}
	logger := obs.Logger

	repo, client, err := NewRepository(ctx, cfg, obs)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	app.Repository = repo
	app.Firestore = client

	if cfg.Postgres.DSN != "" {
		app.DB, err = bundb.Open(ctx, cfg.Postgres)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to open job database: %w", err)
		}
	} else {
		logger.WarnContext(ctx, "No postgres DSN configured; job queue, schedules and triggers are disabled")
	}

	if cfg.NATS.URL != "" && app.DB != nil {
		app.EventBus, err = eventbus.NewEventBus(cfg.NATS, logger)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to create event bus: %w", err)
		}
		app.WatermillRouter, err = message.NewRouter(message.RouterConfig{}, app.EventBus.Logger)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to create Watermill router: %w", err)
		}
	}

	app.HTTPRouter = newHTTPRouter(app)

	app.RankingModule, err = ranking.NewRankingModule(ctx, cfg, obs, repo, app.DB, app.EventBus, app.WatermillRouter, app.HTTPRouter)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize ranking module: %w", err)
	}

	return app, nil
}

// HealthCheck reports whether the job queue is reachable.
func (app *App) HealthCheck(ctx context.Context) error {
	if app.RankingModule == nil {
		return errors.New("ranking module not initialized")
	}
	return app.RankingModule.HealthCheck(ctx)
}

// Close releases every resource NewApp opened.
func (app *App) Close() error {
	var errs []error
	if app.RankingModule != nil {
		errs = append(errs, app.RankingModule.Close())
	}
	if app.WatermillRouter != nil {
		errs = append(errs, app.WatermillRouter.Close())
	}
	if app.EventBus != nil {
		errs = append(errs, app.EventBus.Close())
	}
	if app.DB != nil {
		errs = append(errs, app.DB.Close())
	}
	if app.Firestore != nil {
		errs = append(errs, app.Firestore.Close())
	}
	if app.Observability != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		errs = append(errs, app.Observability.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
