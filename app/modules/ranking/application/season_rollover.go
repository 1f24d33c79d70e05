package rankingservice

import (
	"context"
	"fmt"
	"sort"
	"time"

	rankingdomain "github.com/Black-And-White-Club/photoseason/app/modules/ranking/domain"
	rankingdb "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/repositories"
	"github.com/Black-And-White-Club/photoseason/pkg/observability/attr"
)

// RolloverSeason closes the current season, grants experience from its regional
// rankings, and opens the season containing now. Each step commits on its own;
// a failing step returns without undoing earlier ones. A failed grant for one
// user is logged and does not stop the others or the season opening.
func (s *RankingService) RolloverSeason(ctx context.Context, now time.Time) (RolloverResult, error) {
	return withTelemetry(s, ctx, JobSeasonRollover, func(ctx context.Context) (result RolloverResult, err error) {
		result.RunStats = newRunStats(JobSeasonRollover)
		defer result.finish()

		current, err := s.repo.GetCurrentSeason(ctx)
		if err != nil {
			return result, fmt.Errorf("locate current season: %w", err)
		}
		if current == nil {
			s.logger.WarnContext(ctx, "No current season to close; opening without grants",
				attr.ExtractCorrelationID(ctx),
			)
		} else {
			if err := s.repo.CloseSeason(ctx, current.ID); err != nil {
				return result, fmt.Errorf("close season %s: %w", current.ID, err)
			}
			result.ClosedSeasonID = current.ID
			s.logger.InfoContext(ctx, "Closed season",
				attr.SeasonID("season_id", current.ID),
				attr.ExtractCorrelationID(ctx),
			)
		}

		if result.ClosedSeasonID != "" {
			posts, err := s.repo.ListSeasonPosts(ctx, result.ClosedSeasonID, rankingdb.OrderUnspecified)
			if err != nil {
				return result, fmt.Errorf("list posts for closed season %s: %w", result.ClosedSeasonID, err)
			}
			result.Processed = len(posts)
			result.Grants = ExperienceGrants(posts)
			s.applyGrants(ctx, &result)
		}

		ym := rankingdomain.YearMonthOf(now, s.location)
		start, end := rankingdomain.MonthBounds(ym, s.location)
		next := &rankingdb.Season{
			ID:        ym.SeasonID(),
			IsCurrent: true,
			StartDate: start,
			EndDate:   end,
			CreatedAt: now,
		}
		if err := s.repo.OpenSeason(ctx, next); err != nil {
			return result, fmt.Errorf("open season %s: %w", next.ID, err)
		}
		result.OpenedSeason = next
		result.SeasonID = next.ID

		return result, nil
	})
}

// applyGrants credits every non-zero award, one transaction per user.
func (s *RankingService) applyGrants(ctx context.Context, result *RolloverResult) {
	userIDs := make([]string, 0, len(result.Grants))
	for userID := range result.Grants {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	for _, userID := range userIDs {
		award := result.Grants[userID]
		if award == 0 {
			continue
		}
		progress, err := s.repo.GrantExperience(ctx, userID, award, rankingdomain.LevelForExperience)
		if err != nil {
			s.entityFailed(ctx, &result.RunStats, EntityUser, userID, fmt.Errorf("grant %d experience: %w", award, err))
			continue
		}
		result.Written++
		s.metrics.RecordExperienceGranted(ctx, award)
		s.logger.DebugContext(ctx, "Granted season experience",
			attr.String("user_id", userID),
			attr.Int("award", award),
			attr.Int("experience", progress.Experience),
			attr.Int("level", progress.Level),
		)
	}
}

// ExperienceGrants computes the season-close award per user. Within each region
// posts are ordered by likes, descending, and earn the rank award for their
// position plus one point per like. Posts without a region earn only the like
// points.
func ExperienceGrants(posts []rankingdb.Post) map[string]int {
	byRegion := make(map[string][]rankingdb.Post)
	var regions []string
	for _, p := range posts {
		if _, ok := byRegion[p.RegionID]; !ok {
			regions = append(regions, p.RegionID)
		}
		byRegion[p.RegionID] = append(byRegion[p.RegionID], p)
	}

	grants := make(map[string]int)
	for _, regionID := range regions {
		group := byRegion[regionID]
		sort.SliceStable(group, func(i, j int) bool { return group[i].LikesCount > group[j].LikesCount })

		for pos, p := range group {
			if p.UserID == "" {
				continue
			}
			award := max(0, p.LikesCount)
			if regionID != "" {
				award += rankingdomain.RankAward(pos)
			}
			grants[p.UserID] += award
		}
	}
	return grants
}
