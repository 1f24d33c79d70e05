package ranking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/photoseason/app/eventbus"
	rankingservice "github.com/Black-And-White-Club/photoseason/app/modules/ranking/application"
	rankinghandlers "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/handlers"
	rankinghttp "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/httpapi"
	rankingjwt "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/jwt"
	rankingqueue "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/queue"
	rankingdb "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/repositories"
	rankingrouter "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/router"
	"github.com/Black-And-White-Club/photoseason/config"
	"github.com/Black-And-White-Club/photoseason/pkg/observability"
	"github.com/Black-And-White-Club/photoseason/pkg/observability/attr"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"
	"golang.org/x/time/rate"
)

// queueStopTimeout bounds how long Close waits for a running job.
const queueStopTimeout = 30 * time.Second

// Module represents the ranking module.
type Module struct {
	RankingService rankingservice.Service
	Queue          rankingqueue.QueueService
	TriggerRouter  *rankingrouter.TriggerRouter
	config         *config.Config
	cancelFunc     context.CancelFunc
	logger         *slog.Logger
}

// NewService builds the ranking service from configuration.
func NewService(cfg *config.Config, obs *observability.Observability, repo rankingdb.Repository) (*rankingservice.RankingService, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	opts := []rankingservice.Option{
		rankingservice.WithLocation(loc),
		rankingservice.WithBatchLimit(cfg.Store.BatchLimit),
	}
	if cfg.Store.WriteRate > 0 {
		opts = append(opts, rankingservice.WithWriteLimiter(rate.NewLimiter(rate.Limit(cfg.Store.WriteRate), cfg.Store.WriteBurst)))
	}

	return rankingservice.NewRankingService(repo, obs.Logger, obs.Metrics, obs.Tracer, opts...), nil
}

// NewRankingModule creates the ranking module. bunDB enables the River job
// queue, bus and router enable NATS triggers, and httpRouter enables the HTTP
// API. Each may be nil.
func NewRankingModule(
	ctx context.Context,
	cfg *config.Config,
	obs *observability.Observability,
	repo rankingdb.Repository,
	bunDB *bun.DB,
	bus *eventbus.EventBus,
	router *message.Router,
	httpRouter chi.Router,
) (*Module, error) {
	logger := obs.Logger
	logger.InfoContext(ctx, "Initializing ranking module")

	service, err := NewService(cfg, obs, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to create ranking service: %w", err)
	}

	module := &Module{
		RankingService: service,
		config:         cfg,
		logger:         logger,
	}

	if bunDB != nil {
		queue, err := rankingqueue.NewService(ctx, bunDB, logger, cfg, obs.Metrics, service)
		if err != nil {
			return nil, fmt.Errorf("failed to create ranking queue: %w", err)
		}
		module.Queue = queue
	}

	if bus != nil && router != nil {
		if module.Queue == nil {
			return nil, fmt.Errorf("job triggers require the postgres job queue")
		}
		handlers := rankinghandlers.NewTriggerHandlers(module.Queue, logger, obs.Tracer)
		triggerRouter := rankingrouter.NewTriggerRouter(logger, router, bus.Subscriber, bus.Publisher, cfg.NATS.TopicPrefix, obs.Registry)
		if err := triggerRouter.Configure(ctx, handlers); err != nil {
			module.closeQueue()
			return nil, fmt.Errorf("failed to configure trigger router: %w", err)
		}
		module.TriggerRouter = triggerRouter
	}

	if httpRouter != nil {
		var jobs rankinghttp.JobQueue
		if module.Queue != nil {
			jobs = module.Queue
		}
		handlers := rankinghttp.NewHandlers(service, jobs, logger)
		limits := rankinghttp.NewRouteLimits(
			rankinghttp.Limit{Rate: rate.Limit(cfg.HTTP.RateLimit), Burst: cfg.HTTP.RateBurst},
			rankinghttp.Limit{Rate: rate.Limit(cfg.HTTP.AdminRateLimit), Burst: cfg.HTTP.AdminRateBurst},
		)
		rankinghttp.RegisterRoutes(httpRouter, handlers, rankingjwt.NewProvider(cfg.JWT.Secret), limits)
	}

	return module, nil
}

// Run starts the job queue workers and blocks until ctx is done. A queue
// that fails to start ends Run with the error.
func (m *Module) Run(ctx context.Context) error {
	m.logger.InfoContext(ctx, "Starting ranking module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if m.Queue != nil {
		if err := m.Queue.Start(ctx); err != nil {
			m.logger.ErrorContext(ctx, "Failed to start ranking queue", attr.Error(err))
			return fmt.Errorf("failed to start ranking queue: %w", err)
		}
	}

	<-ctx.Done()
	m.logger.InfoContext(ctx, "Ranking module goroutine stopped")
	return nil
}

// HealthCheck reports whether the job queue can reach its database.
func (m *Module) HealthCheck(ctx context.Context) error {
	if m.Queue == nil {
		return nil
	}
	return m.Queue.HealthCheck(ctx)
}

// Close stops the ranking module and cleans up resources.
func (m *Module) Close() error {
	m.logger.Info("Stopping ranking module")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	var err error
	if m.Queue != nil {
		ctx, cancel := context.WithTimeout(context.Background(), queueStopTimeout)
		defer cancel()
		if stopErr := m.Queue.Stop(ctx); stopErr != nil {
			err = fmt.Errorf("error stopping ranking queue: %w", stopErr)
		}
		m.closeQueue()
	}

	m.logger.Info("Ranking module stopped")
	return err
}

func (m *Module) closeQueue() {
	if m.Queue != nil {
		m.Queue.Close()
	}
}
