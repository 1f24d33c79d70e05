package rankingdb

import (
	"context"

	rankingdomain "github.com/Black-And-White-Club/photoseason/app/modules/ranking/domain"
)

// Repository defines the contract for ranking persistence.
// All methods are context-aware for cancellation and timeout propagation.
//
// Error semantics:
//   - ErrNotFound: Document does not exist or a query matched nothing
//   - ErrBatchTooLarge: A batch write carries more than MaxBatchMutations writes
//   - Other errors: Infrastructure failures (RPC, permission, contention)
type Repository interface {
	// GetCurrentSeason returns the season flagged isCurrent.
	// Returns (nil, nil) when no season is current.
	GetCurrentSeason(ctx context.Context) (*Season, error)

	// GetSeason returns the season with the given id.
	GetSeason(ctx context.Context, seasonID rankingdomain.SeasonID) (*Season, error)

	// CloseSeason flips isCurrent to false on a single season.
	CloseSeason(ctx context.Context, seasonID rankingdomain.SeasonID) error

	// OpenSeason writes season as the only current season. Any other season still
	// flagged current is closed in the same transaction.
	OpenSeason(ctx context.Context, season *Season) error

	// ListSeasonPosts returns every post of a season in the requested order.
	ListSeasonPosts(ctx context.Context, seasonID rankingdomain.SeasonID, order PostOrder) ([]Post, error)

	// TopRegionPost returns the highest scoring post of a region in a season.
	// Returns ErrNotFound when the region has no posts.
	TopRegionPost(ctx context.Context, seasonID rankingdomain.SeasonID, regionID string) (*Post, error)

	// CountLikes counts the like markers of a post without fetching them.
	CountLikes(ctx context.Context, postID string) (int, error)

	// CommitPostScores writes likesCount and score onto each post as one atomic batch.
	CommitPostScores(ctx context.Context, scores []PostScore) error

	// UpsertRegionTop fully overwrites the region's leader for a season.
	UpsertRegionTop(ctx context.Context, seasonID rankingdomain.SeasonID, top *RegionTop) error

	// ListRegionTops returns every region leader recorded for a season.
	ListRegionTops(ctx context.Context, seasonID rankingdomain.SeasonID) ([]RegionTop, error)

	// CommitSeasonRanks fully overwrites each user's rank document as one atomic batch.
	CommitSeasonRanks(ctx context.Context, ranks []SeasonRank) error

	// GetSeasonRank returns a user's rank for a season.
	// Returns ErrNotFound when the user has no rank for that season.
	GetSeasonRank(ctx context.Context, userID string, seasonID rankingdomain.SeasonID) (*SeasonRank, error)

	// GrantExperience adds delta to a user's experience and recomputes the level in
	// one read-modify-write transaction, retried by the store on contention.
	GrantExperience(ctx context.Context, userID string, delta int, level LevelFunc) (*UserProgress, error)

	// GetUserProgress returns a user's experience and level.
	// Returns ErrNotFound when the user document does not exist.
	GetUserProgress(ctx context.Context, userID string) (*UserProgress, error)

	// TopUsersByExperience returns up to limit users ordered by experience,
	// highest first. Users without an experience field are not listed.
	TopUsersByExperience(ctx context.Context, limit int) ([]UserProgress, error)
}
