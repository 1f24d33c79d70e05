package rankingqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	rankingservice "github.com/Black-And-White-Club/photoseason/app/modules/ranking/application"
	rankingmetrics "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/metrics"
	"github.com/Black-And-White-Club/photoseason/config"
	"github.com/Black-And-White-Club/photoseason/pkg/observability/attr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/riverqueue/river/rivertype"
	"github.com/uptrace/bun"
)

// QueueService interface defines the contract for ranking job scheduling
type QueueService interface {
	// Enqueue queues a job of the given kind. A zero at runs it as soon as a
	// worker is free; the rollover treats at as its current time.
	Enqueue(ctx context.Context, kind rankingservice.JobKind, at time.Time) (*JobInfo, error)
	// ListJobs returns the most recent ranking jobs, newest first.
	ListJobs(ctx context.Context, limit int) ([]JobInfo, error)
	// HealthCheck verifies the queue service is healthy
	HealthCheck(ctx context.Context) error
	// Start starts the workers and the periodic schedules
	Start(ctx context.Context) error
	// Stop waits for running jobs and stops the workers
	Stop(ctx context.Context) error
	// Close releases the database pool
	Close()
}

// Ensure Service implements QueueService
var _ QueueService = (*Service)(nil)

// Service handles ranking job scheduling using River
type Service struct {
	client      *river.Client[pgx.Tx]
	pool        *pgxpool.Pool
	logger      *slog.Logger
	db          *bun.DB
	metrics     rankingmetrics.QueueMetrics
	schedule    config.ScheduleConfig
	hasWorkers  bool
	periodicJob int
}

// NewService creates a River-backed queue service. With a nil runner the
// client can only insert and inspect jobs; with a runner it also works them
// and, unless schedules are disabled, enqueues the periodic ranking jobs.
func NewService(
	ctx context.Context,
	bunDB *bun.DB,
	logger *slog.Logger,
	cfg *config.Config,
	metrics rankingmetrics.QueueMetrics,
	runner JobRunner,
) (*Service, error) {
	ctxLogger := logger.With(
		attr.String("operation", "new_ranking_queue_service"),
		attr.String("component", "river_queue"),
	)

	start := time.Now()
	metrics.RecordOperationAttempt(ctx, "initialize_service", "river")

	ctxLogger.Info("Initializing ranking queue service")

	fail := func(msg string, err error) (*Service, error) {
		ctxLogger.Error(msg, attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, err
	}

	// River requires pgx, not database/sql
	poolConfig, err := pgxpool.ParseConfig(cfg.Postgres.DSN)
	if err != nil {
		return fail("Failed to parse DSN for River", fmt.Errorf("failed to parse DSN: %w", err))
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fail("Failed to create pgx pool for River", fmt.Errorf("failed to create pgx pool: %w", err))
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fail("Failed to ping database for River", fmt.Errorf("failed to ping database: %w", err))
	}

	riverConfig := &river.Config{
		Logger:     logger.With(attr.String("component", "river")),
		JobTimeout: cfg.Schedule.JobTimeout,
	}

	service := &Service{
		pool:     pool,
		logger:   ctxLogger,
		db:       bunDB,
		metrics:  metrics,
		schedule: cfg.Schedule,
	}

	if runner != nil {
		workers := river.NewWorkers()
		registerWorkers(workers, runner, logger)

		// one worker keeps ranking jobs from overlapping
		riverConfig.Queues = map[string]river.QueueConfig{
			QueueName: {MaxWorkers: 1},
		}
		riverConfig.Workers = workers
		service.hasWorkers = true

		if !cfg.Schedule.Disabled {
			loc, err := cfg.Location()
			if err != nil {
				pool.Close()
				return fail("Invalid schedule timezone", err)
			}
			periodic, err := service.periodicJobs(loc)
			if err != nil {
				pool.Close()
				return fail("Invalid periodic schedule", err)
			}
			riverConfig.PeriodicJobs = periodic
			service.periodicJob = len(periodic)
		}
	}

	riverClient, err := river.NewClient(riverpgxv5.New(pool), riverConfig)
	if err != nil {
		pool.Close()
		return fail("Failed to create River client", fmt.Errorf("failed to create River client: %w", err))
	}
	service.client = riverClient

	metrics.RecordOperationSuccess(ctx, "initialize_service", "river")
	metrics.RecordOperationDuration(ctx, "initialize_service", "river", time.Since(start))

	ctxLogger.Info("Ranking queue service initialized successfully",
		attr.Bool("workers", service.hasWorkers),
		attr.Int("periodic_jobs", service.periodicJob),
	)
	return service, nil
}

// periodicJobs builds the recurring ranking jobs from the schedule config.
func (s *Service) periodicJobs(loc *time.Location) ([]*river.PeriodicJob, error) {
	specs := []struct {
		kind rankingservice.JobKind
		spec string
	}{
		{rankingservice.JobRankingCycle, s.schedule.RankingCycle},
		{rankingservice.JobBuildGlobalLeaderboard, s.schedule.GlobalLeaderboard},
		{rankingservice.JobSeasonRollover, s.schedule.Rollover},
	}

	jobs := make([]*river.PeriodicJob, 0, len(specs))
	for _, sp := range specs {
		schedule, err := ParseSchedule(sp.spec, loc)
		if err != nil {
			return nil, fmt.Errorf("schedule for %s: %w", sp.kind, err)
		}
		args, err := argsFor(sp.kind)
		if err != nil {
			return nil, err
		}
		kind := sp.kind
		jobs = append(jobs, river.NewPeriodicJob(
			schedule,
			func() (river.JobArgs, *river.InsertOpts) { return args, s.insertOpts(kind) },
			&river.PeriodicJobOpts{RunOnStart: false},
		))
		s.logger.Info("Registered periodic ranking job",
			attr.Job(sp.kind.String()),
			attr.String("schedule", sp.spec),
			attr.String("timezone", loc.String()),
		)
	}
	return jobs, nil
}

// insertOpts returns the queue and retry policy for a job kind. The rollover
// is not idempotent, so it is attempted once unless configured otherwise.
func (s *Service) insertOpts(kind rankingservice.JobKind) *river.InsertOpts {
	attempts := s.schedule.RankingMaxAttempts
	if kind == rankingservice.JobSeasonRollover {
		attempts = s.schedule.RolloverMaxAttempts
	}
	return &river.InsertOpts{
		Queue:       QueueName,
		MaxAttempts: max(attempts, 1),
	}
}

// Start starts the River queue service
func (s *Service) Start(ctx context.Context) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "start_service", "river")

	s.logger.Info("Starting ranking queue service")

	if err := s.client.Start(ctx); err != nil {
		s.logger.Error("Failed to start River client", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "start_service", "river")
		return fmt.Errorf("failed to start River client: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "start_service", "river")
	s.metrics.RecordOperationDuration(ctx, "start_service", "river", time.Since(start))

	s.logger.Info("Ranking queue service started successfully")
	return nil
}

// Stop stops the River queue service
func (s *Service) Stop(ctx context.Context) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "stop_service", "river")

	s.logger.Info("Stopping ranking queue service")

	if s.hasWorkers {
		if err := s.client.Stop(ctx); err != nil {
			s.logger.Error("Failed to stop River client", attr.Error(err))
			s.metrics.RecordOperationFailure(ctx, "stop_service", "river")
			return fmt.Errorf("failed to stop River client: %w", err)
		}
	}

	s.metrics.RecordOperationSuccess(ctx, "stop_service", "river")
	s.metrics.RecordOperationDuration(ctx, "stop_service", "river", time.Since(start))

	s.logger.Info("Ranking queue service stopped successfully")
	return nil
}

// Close releases the River connection pool.
func (s *Service) Close() {
	s.pool.Close()
}

// Enqueue queues a ranking job. Duplicate requests for the same kind within
// one minute collapse into the first.
func (s *Service) Enqueue(ctx context.Context, kind rankingservice.JobKind, at time.Time) (*JobInfo, error) {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "enqueue_job", "river")

	ctxLogger := s.logger.With(
		attr.Job(kind.String()),
		attr.String("operation", "enqueue_job"),
	)

	args, err := argsFor(kind)
	if err != nil {
		s.metrics.RecordOperationFailure(ctx, "enqueue_job", "river")
		return nil, err
	}

	opts := s.insertOpts(kind)
	if !at.IsZero() {
		opts.ScheduledAt = at
	}
	opts.UniqueOpts = river.UniqueOpts{
		ByArgs:   true,
		ByPeriod: time.Minute,
	}

	jobResult, err := s.client.Insert(ctx, args, opts)
	if err != nil {
		ctxLogger.Error("Failed to enqueue ranking job", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "enqueue_job", "river")
		return nil, fmt.Errorf("failed to enqueue %s job: %w", kind, err)
	}

	s.metrics.RecordOperationSuccess(ctx, "enqueue_job", "river")
	s.metrics.RecordOperationDuration(ctx, "enqueue_job", "river", time.Since(start))

	ctxLogger.Info("Ranking job enqueued",
		attr.Int64("job_id", jobResult.Job.ID),
		attr.Time("scheduled_at", jobResult.Job.ScheduledAt),
		attr.Bool("duplicate", jobResult.UniqueSkippedAsDuplicate),
	)

	info := jobInfoFromRow(jobResult.Job)
	return &info, nil
}

// riverJobRow is the slice of river_job the listing reads.
type riverJobRow struct {
	ID          int64      `bun:"id"`
	Kind        string     `bun:"kind"`
	State       string     `bun:"state"`
	ScheduledAt *time.Time `bun:"scheduled_at"`
	CreatedAt   time.Time  `bun:"created_at"`
	Attempt     int16      `bun:"attempt"`
	MaxAttempts int16      `bun:"max_attempts"`
	ErrorCount  int        `bun:"error_count"`
}

// ListJobs returns the most recent ranking jobs, newest first.
func (s *Service) ListJobs(ctx context.Context, limit int) ([]JobInfo, error) {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "list_jobs", "river")

	if limit <= 0 || limit > 500 {
		limit = 50
	}

	kinds := make([]string, 0, len(rankingservice.JobKinds()))
	for _, k := range rankingservice.JobKinds() {
		kinds = append(kinds, k.String())
	}

	var jobs []riverJobRow
	err := s.db.NewSelect().
		Table("river_job").
		Column("id", "kind", "state", "scheduled_at", "created_at", "attempt", "max_attempts").
		ColumnExpr("coalesce(array_length(errors, 1), 0) AS error_count").
		Where("kind IN (?)", bun.In(kinds)).
		Order("id DESC").
		Limit(limit).
		Scan(ctx, &jobs)
	if err != nil {
		s.logger.Error("Failed to query ranking jobs", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "list_jobs", "river")
		return nil, fmt.Errorf("failed to query ranking jobs: %w", err)
	}

	result := make([]JobInfo, len(jobs))
	for i, job := range jobs {
		scheduledAt := ""
		if job.ScheduledAt != nil {
			scheduledAt = job.ScheduledAt.Format(time.RFC3339)
		}
		result[i] = JobInfo{
			ID:          job.ID,
			Kind:        job.Kind,
			State:       job.State,
			ScheduledAt: scheduledAt,
			CreatedAt:   job.CreatedAt.Format(time.RFC3339),
			Attempt:     int(job.Attempt),
			MaxAttempts: int(job.MaxAttempts),
			Errors:      job.ErrorCount,
		}
	}

	s.metrics.RecordOperationSuccess(ctx, "list_jobs", "river")
	s.metrics.RecordOperationDuration(ctx, "list_jobs", "river", time.Since(start))

	s.logger.Debug("Retrieved ranking jobs", attr.Int("job_count", len(result)))
	return result, nil
}

// HealthCheck verifies the queue service is healthy
func (s *Service) HealthCheck(ctx context.Context) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "health_check", "river")

	if s.client == nil {
		s.metrics.RecordOperationFailure(ctx, "health_check", "river")
		return fmt.Errorf("river client is nil")
	}

	var count int
	err := s.db.NewSelect().
		Table("river_job").
		ColumnExpr("COUNT(*)").
		Where("queue = ?", QueueName).
		Scan(ctx, &count)
	if err != nil {
		s.logger.Error("Queue service health check failed", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "health_check", "river")
		return fmt.Errorf("queue service health check failed: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "health_check", "river")
	s.metrics.RecordOperationDuration(ctx, "health_check", "river", time.Since(start))

	s.logger.Debug("Queue service health check passed", attr.Int("total_jobs", count))
	return nil
}

// Migrate brings River's schema up to date.
func (s *Service) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.pool, s.logger)
}

// Migrate applies River's schema migrations on pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), &rivermigrate.Config{Logger: logger})
	if err != nil {
		return fmt.Errorf("failed to create River migrator: %w", err)
	}

	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("failed to migrate River schema: %w", err)
	}

	for _, v := range res.Versions {
		logger.Info("Applied River migration", attr.Int("version", v.Version))
	}
	return nil
}

func jobInfoFromRow(row *rivertype.JobRow) JobInfo {
	return JobInfo{
		ID:          row.ID,
		Kind:        row.Kind,
		State:       string(row.State),
		ScheduledAt: row.ScheduledAt.Format(time.RFC3339),
		CreatedAt:   row.CreatedAt.Format(time.RFC3339),
		Attempt:     row.Attempt,
		MaxAttempts: row.MaxAttempts,
		Errors:      len(row.Errors),
	}
}
