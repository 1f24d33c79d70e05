package rankingservice

import (
	"context"
	"time"
)

// RunRankingCycle runs score recalculation, then region leaderboards, then the
// global leaderboard. A stage that finds no active season ends the cycle
// quietly; a stage that fails ends it with that error.
func (s *RankingService) RunRankingCycle(ctx context.Context) (CycleResult, error) {
	return withTelemetry(s, ctx, JobRankingCycle, func(ctx context.Context) (CycleResult, error) {
		stages := []func(context.Context) (RunStats, error){
			s.RecalculateScores,
			s.BuildRegionLeaderboards,
			s.BuildGlobalLeaderboard,
		}

		var result CycleResult
		for _, stage := range stages {
			stats, err := stage(ctx)
			result.Stages = append(result.Stages, stats)
			if err != nil {
				result.StoppedEarly = true
				return result, err
			}
			if stats.NoActiveSeason {
				result.StoppedEarly = true
				break
			}
		}
		return result, nil
	})
}

// RunJob runs a job by kind, discarding its summary. The rollover uses now,
// or the service clock when now is zero.
func (s *RankingService) RunJob(ctx context.Context, kind JobKind, now time.Time) error {
	var err error
	switch kind {
	case JobRecalculateScores:
		_, err = s.RecalculateScores(ctx)
	case JobBuildRegionLeaderboards:
		_, err = s.BuildRegionLeaderboards(ctx)
	case JobBuildGlobalLeaderboard:
		_, err = s.BuildGlobalLeaderboard(ctx)
	case JobRankingCycle:
		_, err = s.RunRankingCycle(ctx)
	case JobSeasonRollover:
		if now.IsZero() {
			now = s.clock.Now()
		}
		_, err = s.RolloverSeason(ctx, now)
	default:
		return ErrUnknownJob
	}
	return err
}
