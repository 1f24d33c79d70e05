package rankingservice

import (
	"context"
	"time"

	rankingdomain "github.com/Black-And-White-Club/photoseason/app/modules/ranking/domain"
	rankingdb "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/repositories"
)

// Service runs the ranking jobs and serves their results.
type Service interface {
	// RecalculateScores recounts likes and rescores every post of the active season.
	RecalculateScores(ctx context.Context) (RunStats, error)
	// BuildRegionLeaderboards records the top post of each region in the active season.
	BuildRegionLeaderboards(ctx context.Context) (RunStats, error)
	// BuildGlobalLeaderboard ranks users by total likes in the active season.
	BuildGlobalLeaderboard(ctx context.Context) (RunStats, error)
	// RunRankingCycle runs the three ranking jobs in dependency order.
	RunRankingCycle(ctx context.Context) (CycleResult, error)
	// RolloverSeason closes the current season, grants experience, and opens
	// the season containing now.
	RolloverSeason(ctx context.Context, now time.Time) (RolloverResult, error)
	// RunJob runs one job by kind. A zero now means the service clock.
	RunJob(ctx context.Context, kind JobKind, now time.Time) error

	GetCurrentSeason(ctx context.Context) (*rankingdb.Season, error)
	GetRegionTops(ctx context.Context, seasonID rankingdomain.SeasonID) ([]rankingdb.RegionTop, error)
	GetSeasonRank(ctx context.Context, userID string, seasonID rankingdomain.SeasonID) (*rankingdb.SeasonRank, error)
	GetUserProgress(ctx context.Context, userID string) (*ProgressView, error)
	GetTopUsers(ctx context.Context, limit int) ([]ExperienceRank, error)
}

var _ Service = (*RankingService)(nil)
