package rankingservice

import (
	"fmt"
	"time"

	rankingdomain "github.com/Black-And-White-Club/photoseason/app/modules/ranking/domain"
	rankingdb "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/repositories"
	"github.com/Black-And-White-Club/photoseason/pkg/observability/attr"
)

// JobKind identifies a runnable job.
type JobKind string

const (
	JobRecalculateScores       JobKind = "recalculate_scores"
	JobBuildRegionLeaderboards JobKind = "build_region_leaderboards"
	JobBuildGlobalLeaderboard  JobKind = "build_global_leaderboard"
	JobRankingCycle            JobKind = "ranking_cycle"
	JobSeasonRollover          JobKind = "season_rollover"
)

func (k JobKind) String() string { return string(k) }

// JobKinds lists every runnable job.
func JobKinds() []JobKind {
	return []JobKind{
		JobRecalculateScores,
		JobBuildRegionLeaderboards,
		JobBuildGlobalLeaderboard,
		JobRankingCycle,
		JobSeasonRollover,
	}
}

// ParseJobKind validates a job kind name.
func ParseJobKind(name string) (JobKind, error) {
	for _, k := range JobKinds() {
		if string(k) == name {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownJob, name)
}

// RunStats summarises one job run.
type RunStats struct {
	Job            JobKind                `json:"job"`
	SeasonID       rankingdomain.SeasonID `json:"season_id,omitempty"`
	NoActiveSeason bool                   `json:"no_active_season,omitempty"`
	Processed      int                    `json:"processed"`
	Written        int                    `json:"written"`
	Skipped        int                    `json:"skipped"`
	Failures       int                    `json:"failures"`
	Batches        int                    `json:"batches"`
	StartedAt      time.Time              `json:"started_at"`
	Duration       time.Duration          `json:"duration"`
}

func newRunStats(job JobKind) RunStats {
	return RunStats{Job: job, StartedAt: time.Now()}
}

func (s *RunStats) finish() {
	s.Duration = time.Since(s.StartedAt)
}

func (s RunStats) logAttrs() []any {
	return []any{
		attr.SeasonID("season_id", s.SeasonID),
		attr.Bool("no_active_season", s.NoActiveSeason),
		attr.Int("processed", s.Processed),
		attr.Int("written", s.Written),
		attr.Int("skipped", s.Skipped),
		attr.Int("failures", s.Failures),
		attr.Int("batches", s.Batches),
		attr.Duration("duration", s.Duration),
	}
}

// RolloverResult summarises a season rollover.
type RolloverResult struct {
	RunStats
	ClosedSeasonID rankingdomain.SeasonID `json:"closed_season_id,omitempty"`
	OpenedSeason   *rankingdb.Season      `json:"opened_season,omitempty"`
	// Grants holds the experience awarded per user from the closed season.
	Grants map[string]int `json:"grants,omitempty"`
}

func (r RolloverResult) logAttrs() []any {
	opened := ""
	if r.OpenedSeason != nil {
		opened = r.OpenedSeason.ID.String()
	}
	return append(r.RunStats.logAttrs(),
		attr.SeasonID("closed_season_id", r.ClosedSeasonID),
		attr.String("opened_season_id", opened),
		attr.Int("users_granted", r.Written),
	)
}

// CycleResult summarises a ranking cycle: one RunStats per stage that ran.
type CycleResult struct {
	Stages       []RunStats `json:"stages"`
	StoppedEarly bool       `json:"stopped_early"`
}

func (c CycleResult) logAttrs() []any {
	stages := make([]string, 0, len(c.Stages))
	for _, st := range c.Stages {
		stages = append(stages, st.Job.String())
	}
	return []any{
		attr.Any("stages", stages),
		attr.Bool("stopped_early", c.StoppedEarly),
	}
}

// ExperienceRank is one row of the all-time experience leaderboard.
type ExperienceRank struct {
	Rank       int    `json:"rank"`
	UserID     string `json:"user_id"`
	Experience int    `json:"experience"`
	Level      int    `json:"level"`
}

// ProgressView is a user's experience with level breakdown.
type ProgressView struct {
	UserID string `json:"user_id"`
	rankingdomain.Progress
}
