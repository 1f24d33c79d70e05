package rankingservice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	rankingdomain "github.com/Black-And-White-Club/photoseason/app/modules/ranking/domain"
	rankingdb "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/repositories"
)

// BuildGlobalLeaderboard sums likes per user over the active season and writes
// row-number ranks 1..N. A failed chunk commit aborts the run.
func (s *RankingService) BuildGlobalLeaderboard(ctx context.Context) (RunStats, error) {
	return withTelemetry(s, ctx, JobBuildGlobalLeaderboard, func(ctx context.Context) (stats RunStats, err error) {
		stats = newRunStats(JobBuildGlobalLeaderboard)
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

		posts, err := s.repo.ListSeasonPosts(ctx, season.ID, rankingdb.OrderByLikesDesc)
		if err != nil {
			return stats, fmt.Errorf("list posts for season %s: %w", season.ID, err)
		}
		stats.Processed = len(posts)

		ranks, skipped := rankUsers(season.ID, posts, s.clock.Now())
		stats.Skipped = skipped

		if err := commitBatches(s, ctx, &stats, ranks, s.repo.CommitSeasonRanks); err != nil {
			return stats, err
		}
		return stats, nil
	})
}

// rankUsers totals likes per user and assigns ranks by descending total. Equal
// totals keep the order in which their users first appear in posts. Posts
// without an owner are counted as skipped.
func rankUsers(seasonID rankingdomain.SeasonID, posts []rankingdb.Post, now time.Time) ([]rankingdb.SeasonRank, int) {
	type userTotal struct {
		userID string
		likes  int
	}

	index := make(map[string]int)
	var totals []userTotal
	skipped := 0
	for _, p := range posts {
		if p.UserID == "" {
			skipped++
			continue
		}
		i, ok := index[p.UserID]
		if !ok {
			i = len(totals)
			index[p.UserID] = i
			totals = append(totals, userTotal{userID: p.UserID})
		}
		totals[i].likes += p.LikesCount
	}

	sort.SliceStable(totals, func(i, j int) bool { return totals[i].likes > totals[j].likes })

	ranks := make([]rankingdb.SeasonRank, len(totals))
	for i, t := range totals {
		ranks[i] = rankingdb.SeasonRank{
			UserID:       t.userID,
			SeasonID:     seasonID,
			Rank:         i + 1,
			AllLikeCount: t.likes,
			UpdatedAt:    now,
		}
	}
	return ranks, skipped
}
