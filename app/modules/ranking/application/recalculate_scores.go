package rankingservice

import (
	"context"
	"errors"
	"fmt"

	rankingdb "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/repositories"
)

// RecalculateScores counts the likes of every post in the active season and
// rewrites likesCount and score. A post whose count fails is skipped; a failed
// chunk commit aborts the run.
func (s *RankingService) RecalculateScores(ctx context.Context) (RunStats, error) {
	return withTelemetry(s, ctx, JobRecalculateScores, func(ctx context.Context) (stats RunStats, err error) {
		stats = newRunStats(JobRecalculateScores)
		defer stats.finish()

		season, err := s.activeSeason(ctx)
		if errors.Is(err, ErrNoActiveSeason) {
			s.skipNoActiveSeason(ctx, &stats)
			return stats, nil
		}
		if err != nil {
			return stats, err
		}
		stats.SeasonID = season.ID

		posts, err := s.repo.ListSeasonPosts(ctx, season.ID, rankingdb.OrderUnspecified)
		if err != nil {
			return stats, fmt.Errorf("list posts for season %s: %w", season.ID, err)
		}

		updates := make([]rankingdb.PostScore, 0, len(posts))
		for _, post := range posts {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			stats.Processed++

			likes, err := s.repo.CountLikes(ctx, post.ID)
			if err != nil {
				s.entityFailed(ctx, &stats, EntityPost, post.ID, fmt.Errorf("count likes: %w", err))
				continue
			}
			updates = append(updates, rankingdb.PostScore{
				PostID:     post.ID,
				LikesCount: likes,
				Score:      s.score(likes),
			})
		}

		if err := commitBatches(s, ctx, &stats, updates, s.repo.CommitPostScores); err != nil {
			return stats, err
		}
		return stats, nil
	})
}
