package rankingservice

import (
	"context"
	"errors"

	rankingdomain "github.com/Black-And-White-Club/photoseason/app/modules/ranking/domain"
	rankingdb "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/repositories"
)

// GetCurrentSeason returns the current season or ErrNoActiveSeason.
func (s *RankingService) GetCurrentSeason(ctx context.Context) (*rankingdb.Season, error) {
	return s.activeSeason(ctx)
}

// GetRegionTops returns the recorded region leaders of a season.
func (s *RankingService) GetRegionTops(ctx context.Context, seasonID rankingdomain.SeasonID) ([]rankingdb.RegionTop, error) {
	return s.repo.ListRegionTops(ctx, seasonID)
}

// GetSeasonRank returns a user's global rank for a season.
func (s *RankingService) GetSeasonRank(ctx context.Context, userID string, seasonID rankingdomain.SeasonID) (*rankingdb.SeasonRank, error) {
	return s.repo.GetSeasonRank(ctx, userID, seasonID)
}

// GetUserProgress returns a user's experience with its level breakdown. A
// user who has never been granted experience is at level 1 with none.
func (s *RankingService) GetUserProgress(ctx context.Context, userID string) (*ProgressView, error) {
	experience := 0
	progress, err := s.repo.GetUserProgress(ctx, userID)
	switch {
	case errors.Is(err, rankingdb.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		experience = progress.Experience
	}
	return &ProgressView{
		UserID:   userID,
		Progress: rankingdomain.ExperienceProgress(experience),
	}, nil
}

// MaxTopUsers caps the experience leaderboard.
const MaxTopUsers = 500

// GetTopUsers returns the users with the most experience, ranked 1..n. The
// level is derived from experience so stale stored levels never leak.
func (s *RankingService) GetTopUsers(ctx context.Context, limit int) ([]ExperienceRank, error) {
	if limit < 1 || limit > MaxTopUsers {
		limit = MaxTopUsers
	}
	users, err := s.repo.TopUsersByExperience(ctx, limit)
	if err != nil {
		return nil, err
	}
	ranks := make([]ExperienceRank, len(users))
	for i, u := range users {
		ranks[i] = ExperienceRank{
			Rank:       i + 1,
			UserID:     u.UserID,
			Experience: u.Experience,
			Level:      rankingdomain.LevelForExperience(u.Experience),
		}
	}
	return ranks, nil
}
