package rankingservice

import (
	"context"
	"errors"
	"fmt"

	rankingdb "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/repositories"
	"github.com/Black-And-White-Club/photoseason/pkg/observability/attr"
)

// BuildRegionLeaderboards upserts the top scoring post of every region that has
// posts in the active season. Regions that fail are logged and skipped.
func (s *RankingService) BuildRegionLeaderboards(ctx context.Context) (RunStats, error) {
	return withTelemetry(s, ctx, JobBuildRegionLeaderboards, func(ctx context.Context) (stats RunStats, err error) {
		stats = newRunStats(JobBuildRegionLeaderboards)
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

		for _, regionID := range distinctRegions(posts) {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			stats.Processed++

			top, err := s.repo.TopRegionPost(ctx, season.ID, regionID)
			if errors.Is(err, rankingdb.ErrNotFound) {
				s.logger.WarnContext(ctx, "Region has no posts; leaving region top untouched",
					attr.SeasonID("season_id", season.ID),
					attr.String("region_id", regionID),
				)
				stats.Skipped++
				continue
			}
			if err != nil {
				s.entityFailed(ctx, &stats, EntityRegion, regionID, fmt.Errorf("query top post: %w", err))
				continue
			}

			if err := s.waitForWrite(ctx); err != nil {
				return stats, err
			}
			regionTop := &rankingdb.RegionTop{
				PostID:     top.ID,
				UserID:     top.UserID,
				RegionID:   regionID,
				ImageURL:   top.ImageURL,
				LikesCount: top.LikesCount,
				Score:      top.Score,
				UpdatedAt:  s.clock.Now(),
			}
			if err := s.repo.UpsertRegionTop(ctx, season.ID, regionTop); err != nil {
				s.entityFailed(ctx, &stats, EntityRegion, regionID, fmt.Errorf("upsert region top: %w", err))
				continue
			}
			stats.Written++
		}
		return stats, nil
	})
}

// distinctRegions returns the non-empty region ids of posts in first-seen order.
func distinctRegions(posts []rankingdb.Post) []string {
	seen := make(map[string]struct{})
	var regions []string
	for _, p := range posts {
		if p.RegionID == "" {
			continue
		}
		if _, ok := seen[p.RegionID]; ok {
			continue
		}
		seen[p.RegionID] = struct{}{}
		regions = append(regions, p.RegionID)
	}
	return regions
}
