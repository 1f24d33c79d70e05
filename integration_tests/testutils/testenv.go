package testutils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	rankingmetrics "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/metrics"
	rankingqueue "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/queue"
	"github.com/Black-And-White-Club/photoseason/config"
	"github.com/Black-And-White-Club/photoseason/db/bundb"
	"github.com/Black-And-White-Club/photoseason/integration_tests/containers"
	"github.com/Black-And-White-Club/photoseason/pkg/observability"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/nats"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace/noop"
)

// TestEnvironment holds the containers and connections shared by integration tests.
type TestEnvironment struct {
	Ctx           context.Context
	CancelContext context.CancelFunc
	PgContainer   *postgres.PostgresContainer
	NatsContainer *nats.NATSContainer
	Pool          *pgxpool.Pool
	DB            *bun.DB
	Config        *config.Config
}

// NewTestEnvironment starts Postgres and NATS and applies River's schema.
func NewTestEnvironment() (*TestEnvironment, error) {
	ctx, cancel := context.WithCancel(context.Background())
	env := &TestEnvironment{Ctx: ctx, CancelContext: cancel}

	if err := env.setup(ctx); err != nil {
		env.Cleanup()
		return nil, err
	}
	return env, nil
}

func (env *TestEnvironment) setup(ctx context.Context) error {
	pgContainer, dsn, err := containers.SetupPostgresContainer(ctx)
	if err != nil {
		return fmt.Errorf("failed to setup postgres container: %w", err)
	}
	env.PgContainer = pgContainer

	natsContainer, natsURL, err := containers.SetupNatsContainer(ctx)
	if err != nil {
		return fmt.Errorf("failed to setup nats container: %w", err)
	}
	env.NatsContainer = natsContainer

	env.Config = &config.Config{
		Postgres: config.PostgresConfig{DSN: dsn},
		NATS:     config.NATSConfig{URL: natsURL, TopicPrefix: config.DefaultTopicPrefix},
		Store:    config.StoreConfig{Driver: config.StoreMemory, BatchLimit: config.DefaultMaxBatchMutations, WriteBurst: 1},
		Schedule: config.ScheduleConfig{
			Disabled:            true,
			Timezone:            "UTC",
			JobTimeout:          time.Minute,
			RankingMaxAttempts:  3,
			RolloverMaxAttempts: 1,
		},
		HTTP: config.HTTPConfig{RateLimit: 100, RateBurst: 100, AdminRateLimit: 100, AdminRateBurst: 100},
	}

	env.Pool, err = pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := rankingqueue.Migrate(ctx, env.Pool, Logger()); err != nil {
		return err
	}

	env.DB, err = bundb.Open(ctx, env.Config.Postgres)
	return err
}

// ResetJobs clears River's job table between tests.
func (env *TestEnvironment) ResetJobs(ctx context.Context) error {
	_, err := env.Pool.Exec(ctx, "TRUNCATE river_job")
	return err
}

// Cleanup closes connections and terminates the containers.
func (env *TestEnvironment) Cleanup() {
	if env.DB != nil {
		_ = env.DB.Close()
	}
	if env.Pool != nil {
		env.Pool.Close()
	}
	if env.NatsContainer != nil {
		_ = testcontainers.TerminateContainer(env.NatsContainer)
	}
	if env.PgContainer != nil {
		_ = testcontainers.TerminateContainer(env.PgContainer)
	}
	env.CancelContext()
}

// Logger discards output so test logs stay readable.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Observability returns a quiet observability stack with a private registry.
func Observability() *observability.Observability {
	reg := prometheus.NewRegistry()
	return &observability.Observability{
		Logger:   Logger(),
		Tracer:   noop.NewTracerProvider().Tracer("integration"),
		Registry: reg,
		Metrics:  rankingmetrics.NewPrometheusMetrics(reg),
	}
}
