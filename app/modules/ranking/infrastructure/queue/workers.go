package rankingqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	rankingservice "github.com/Black-And-White-Club/photoseason/app/modules/ranking/application"
	"github.com/Black-And-White-Club/photoseason/pkg/observability/attr"
	"github.com/riverqueue/river"
)

// JobRunner is the part of the ranking service the workers drive.
type JobRunner interface {
	RunJob(ctx context.Context, kind rankingservice.JobKind, now time.Time) error
}

// JobWorker runs one ranking job kind. The job's scheduled time is passed to
// the service as the rollover instant.
type JobWorker[T river.JobArgs] struct {
	river.WorkerDefaults[T]
	runner JobRunner
	logger *slog.Logger
}

// NewJobWorker creates a worker for job args type T.
func NewJobWorker[T river.JobArgs](runner JobRunner, logger *slog.Logger) *JobWorker[T] {
	return &JobWorker[T]{runner: runner, logger: logger}
}

// Work runs the job.
func (w *JobWorker[T]) Work(ctx context.Context, job *river.Job[T]) error {
	kind := rankingservice.JobKind(job.Kind)
	ctx = attr.WithCorrelationID(ctx, fmt.Sprintf("river-%d", job.ID))

	w.logger.InfoContext(ctx, "Running queued ranking job",
		attr.Job(kind.String()),
		attr.Int64("job_id", job.ID),
		attr.Int("attempt", job.Attempt),
		attr.Time("scheduled_at", job.ScheduledAt),
		attr.ExtractCorrelationID(ctx),
	)

	if err := w.runner.RunJob(ctx, kind, job.ScheduledAt); err != nil {
		return fmt.Errorf("run %s: %w", kind, err)
	}
	return nil
}

// registerWorkers adds a worker for every job kind.
func registerWorkers(workers *river.Workers, runner JobRunner, logger *slog.Logger) {
	river.AddWorker(workers, NewJobWorker[RecalculateScoresJob](runner, logger))
	river.AddWorker(workers, NewJobWorker[BuildRegionLeaderboardsJob](runner, logger))
	river.AddWorker(workers, NewJobWorker[BuildGlobalLeaderboardJob](runner, logger))
	river.AddWorker(workers, NewJobWorker[RankingCycleJob](runner, logger))
	river.AddWorker(workers, NewJobWorker[SeasonRolloverJob](runner, logger))
}
