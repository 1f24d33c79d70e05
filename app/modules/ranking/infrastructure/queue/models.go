package rankingqueue

import (
	"fmt"

	rankingservice "github.com/Black-And-White-Club/photoseason/app/modules/ranking/application"
	"github.com/riverqueue/river"
)

// QueueName is the River queue every ranking job runs on.
const QueueName = "ranking"

// Job args carry nothing but their kind. The run time comes from the job row.

// RecalculateScoresJob recounts likes and rescores the active season.
type RecalculateScoresJob struct{}

// Kind returns the job type identifier for River
func (RecalculateScoresJob) Kind() string { return string(rankingservice.JobRecalculateScores) }

// BuildRegionLeaderboardsJob refreshes every region leader.
type BuildRegionLeaderboardsJob struct{}

// Kind returns the job type identifier for River
func (BuildRegionLeaderboardsJob) Kind() string {
	return string(rankingservice.JobBuildRegionLeaderboards)
}

// BuildGlobalLeaderboardJob refreshes user season ranks.
type BuildGlobalLeaderboardJob struct{}

// Kind returns the job type identifier for River
func (BuildGlobalLeaderboardJob) Kind() string {
	return string(rankingservice.JobBuildGlobalLeaderboard)
}

// RankingCycleJob runs the three ranking jobs in order.
type RankingCycleJob struct{}

// Kind returns the job type identifier for River
func (RankingCycleJob) Kind() string { return string(rankingservice.JobRankingCycle) }

// SeasonRolloverJob closes the current season and opens the one containing
// the job's scheduled time.
type SeasonRolloverJob struct{}

// Kind returns the job type identifier for River
func (SeasonRolloverJob) Kind() string { return string(rankingservice.JobSeasonRollover) }

// argsFor returns the River args for a job kind.
func argsFor(kind rankingservice.JobKind) (river.JobArgs, error) {
	switch kind {
	case rankingservice.JobRecalculateScores:
		return RecalculateScoresJob{}, nil
	case rankingservice.JobBuildRegionLeaderboards:
		return BuildRegionLeaderboardsJob{}, nil
	case rankingservice.JobBuildGlobalLeaderboard:
		return BuildGlobalLeaderboardJob{}, nil
	case rankingservice.JobRankingCycle:
		return RankingCycleJob{}, nil
	case rankingservice.JobSeasonRollover:
		return SeasonRolloverJob{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", rankingservice.ErrUnknownJob, kind)
	}
}

// JobInfo represents information about a queued job (for debugging/monitoring)
type JobInfo struct {
	ID          int64  `json:"id"`
	Kind        string `json:"kind"`
	State       string `json:"state"`
	ScheduledAt string `json:"scheduled_at"`
	CreatedAt   string `json:"created_at"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
	Errors      int    `json:"errors,omitempty"`
}
