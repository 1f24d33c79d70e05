package rankingservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	rankingdomain "github.com/Black-And-White-Club/photoseason/app/modules/ranking/domain"
	rankingmetrics "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/metrics"
	rankingdb "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/repositories"
	"github.com/Black-And-White-Club/photoseason/pkg/observability/attr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// RankingService implements the Service interface.
type RankingService struct {
	repo       rankingdb.Repository
	logger     *slog.Logger
	metrics    rankingmetrics.RankingMetrics
	tracer     trace.Tracer
	clock      Clock
	scoreFn    rankingdomain.ScoreFunc
	location   *time.Location
	batchLimit int
	writes     *rate.Limiter
}

// Option customises a RankingService.
type Option func(*RankingService)

// WithClock replaces the wall clock used for timestamps.
func WithClock(c Clock) Option {
	return func(s *RankingService) { s.clock = c }
}

// WithScoreFunc replaces the default scoring function.
func WithScoreFunc(fn rankingdomain.ScoreFunc) Option {
	return func(s *RankingService) { s.scoreFn = fn }
}

// WithLocation sets the civil timezone season boundaries are computed in.
func WithLocation(loc *time.Location) Option {
	return func(s *RankingService) { s.location = loc }
}

// WithBatchLimit caps the writes per atomic batch. Values outside
// 1..MaxBatchMutations fall back to MaxBatchMutations.
func WithBatchLimit(n int) Option {
	return func(s *RankingService) { s.batchLimit = n }
}

// WithWriteLimiter throttles store commits.
func WithWriteLimiter(l *rate.Limiter) Option {
	return func(s *RankingService) { s.writes = l }
}

// NewRankingService creates a new RankingService.
func NewRankingService(
	repo rankingdb.Repository,
	logger *slog.Logger,
	metrics rankingmetrics.RankingMetrics,
	tracer trace.Tracer,
	opts ...Option,
) *RankingService {
	s := &RankingService{
		repo:       repo,
		logger:     logger,
		metrics:    metrics,
		tracer:     tracer,
		clock:      systemClock{},
		scoreFn:    rankingdomain.Score,
		location:   time.UTC,
		batchLimit: rankingdb.MaxBatchMutations,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.batchLimit < 1 || s.batchLimit > rankingdb.MaxBatchMutations {
		s.batchLimit = rankingdb.MaxBatchMutations
	}
	return s
}

// loggable results add their own fields to the completion log line.
type loggable interface {
	logAttrs() []any
}

// withTelemetry wraps a job with tracing, metrics, and panic recovery.
func withTelemetry[T any](
	s *RankingService,
	ctx context.Context,
	job JobKind,
	op func(ctx context.Context) (T, error),
) (result T, err error) {
	ctx, span := s.tracer.Start(ctx, "ranking."+job.String(), trace.WithAttributes(
		attribute.String("job", job.String()),
	))
	defer span.End()

	s.metrics.RecordJobAttempt(ctx, job.String())

	startTime := time.Now()
	defer func() {
		s.metrics.RecordJobDuration(ctx, job.String(), time.Since(startTime))
	}()

	s.logger.InfoContext(ctx, job.String()+" triggered",
		attr.Job(job.String()),
		attr.ExtractCorrelationID(ctx),
	)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", job, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.Job(job.String()),
				attr.ExtractCorrelationID(ctx),
				attr.Error(err),
			)
			s.metrics.RecordJobFailure(ctx, job.String())
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	result, err = op(ctx)

	if isCancellation(err) {
		s.logger.WarnContext(ctx, "Job canceled",
			attr.Job(job.String()),
			attr.ExtractCorrelationID(ctx),
			attr.Error(err),
		)
		s.metrics.RecordJobSkipped(ctx, job.String(), "canceled")
		span.SetStatus(codes.Error, "canceled")
		return result, fmt.Errorf("%s: %w", job, err)
	}
	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", job, err)
		s.logger.ErrorContext(ctx, "Job failed with error",
			attr.Job(job.String()),
			attr.ExtractCorrelationID(ctx),
			attr.Error(wrappedErr),
		)
		s.metrics.RecordJobFailure(ctx, job.String())
		span.RecordError(wrappedErr)
		span.SetStatus(codes.Error, wrappedErr.Error())
		return result, wrappedErr
	}

	fields := []any{attr.Job(job.String()), attr.ExtractCorrelationID(ctx)}
	if l, ok := any(result).(loggable); ok {
		fields = append(fields, l.logAttrs()...)
	}
	s.logger.InfoContext(ctx, job.String()+" completed", fields...)
	s.metrics.RecordJobSuccess(ctx, job.String())

	return result, nil
}

// isCancellation reports whether err came from the job's context ending
// rather than from the store.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// activeSeason resolves the current season or returns ErrNoActiveSeason.
func (s *RankingService) activeSeason(ctx context.Context) (*rankingdb.Season, error) {
	season, err := s.repo.GetCurrentSeason(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve active season: %w", err)
	}
	if season == nil {
		return nil, ErrNoActiveSeason
	}
	return season, nil
}

// skipNoActiveSeason marks stats as a no-op run.
func (s *RankingService) skipNoActiveSeason(ctx context.Context, stats *RunStats) {
	stats.NoActiveSeason = true
	s.logger.WarnContext(ctx, "No active season; skipping run",
		attr.Job(stats.Job.String()),
		attr.ExtractCorrelationID(ctx),
	)
	s.metrics.RecordJobSkipped(ctx, stats.Job.String(), "no_active_season")
}

// entityFailed logs and counts a failure isolated to one post, region, or user.
func (s *RankingService) entityFailed(ctx context.Context, stats *RunStats, kind EntityKind, id string, err error) {
	entityErr := &EntityError{Kind: kind, ID: id, Err: err}
	stats.Failures++
	s.logger.ErrorContext(ctx, "Skipping entity after failure",
		attr.Job(stats.Job.String()),
		attr.String("entity_kind", string(kind)),
		attr.String("entity_id", id),
		attr.ExtractCorrelationID(ctx),
		attr.Error(entityErr),
	)
	s.metrics.RecordEntityFailure(ctx, stats.Job.String(), string(kind))
}

// waitForWrite blocks until the write limiter admits another commit.
func (s *RankingService) waitForWrite(ctx context.Context) error {
	if s.writes == nil {
		return nil
	}
	return s.writes.Wait(ctx)
}

func (s *RankingService) score(likes int) int {
	return max(0, s.scoreFn(likes))
}

// commitBatches commits items in bounded chunks, throttled and counted.
func commitBatches[T any](
	s *RankingService,
	ctx context.Context,
	stats *RunStats,
	items []T,
	commit func(ctx context.Context, chunk []T) error,
) error {
	batches, err := commitInChunks(ctx, items, s.batchLimit, func(ctx context.Context, chunk []T) error {
		if err := s.waitForWrite(ctx); err != nil {
			return err
		}
		if err := commit(ctx, chunk); err != nil {
			return err
		}
		stats.Written += len(chunk)
		s.metrics.RecordBatchCommit(ctx, stats.Job.String(), len(chunk))
		return nil
	})
	stats.Batches = batches
	return err
}
