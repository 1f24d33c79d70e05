package rankingservice

import (
	"context"
	"strconv"
	"sync"
	"time"

	rankingdomain "github.com/Black-And-White-Club/photoseason/app/modules/ranking/domain"
	rankingdb "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/repositories"
)

// ------------------------
// Fake Ranking Repo
// ------------------------

// FakeRankingRepository wraps a MemoryRepository and lets tests override any
// method. Unset overrides fall through to the in-memory store.
type FakeRankingRepository struct {
	*rankingdb.MemoryRepository

	mu    sync.Mutex
	trace []string

	GetCurrentSeasonFunc  func(ctx context.Context) (*rankingdb.Season, error)
	CloseSeasonFunc       func(ctx context.Context, seasonID rankingdomain.SeasonID) error
	OpenSeasonFunc        func(ctx context.Context, season *rankingdb.Season) error
	ListSeasonPostsFunc   func(ctx context.Context, seasonID rankingdomain.SeasonID, order rankingdb.PostOrder) ([]rankingdb.Post, error)
	TopRegionPostFunc     func(ctx context.Context, seasonID rankingdomain.SeasonID, regionID string) (*rankingdb.Post, error)
	CountLikesFunc        func(ctx context.Context, postID string) (int, error)
	CommitPostScoresFunc  func(ctx context.Context, scores []rankingdb.PostScore) error
	UpsertRegionTopFunc   func(ctx context.Context, seasonID rankingdomain.SeasonID, top *rankingdb.RegionTop) error
	CommitSeasonRanksFunc func(ctx context.Context, ranks []rankingdb.SeasonRank) error
	GrantExperienceFunc   func(ctx context.Context, userID string, delta int, level rankingdb.LevelFunc) (*rankingdb.UserProgress, error)
	GetUserProgressFunc   func(ctx context.Context, userID string) (*rankingdb.UserProgress, error)
	TopUsersFunc          func(ctx context.Context, limit int) ([]rankingdb.UserProgress, error)
}

var _ rankingdb.Repository = (*FakeRankingRepository)(nil)

// NewFakeRankingRepository initializes a fake backed by an empty memory store.
func NewFakeRankingRepository() *FakeRankingRepository {
	return &FakeRankingRepository{
		MemoryRepository: rankingdb.NewMemoryRepository(),
		trace:            []string{},
	}
}

// Trace returns the sequence of method calls made to the fake.
func (f *FakeRankingRepository) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeRankingRepository) record(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, step)
}

// --- Repository Interface Implementation ---

func (f *FakeRankingRepository) GetCurrentSeason(ctx context.Context) (*rankingdb.Season, error) {
	f.record("GetCurrentSeason")
	if f.GetCurrentSeasonFunc != nil {
		return f.GetCurrentSeasonFunc(ctx)
	}
	return f.MemoryRepository.GetCurrentSeason(ctx)
}

func (f *FakeRankingRepository) CloseSeason(ctx context.Context, seasonID rankingdomain.SeasonID) error {
	f.record("CloseSeason")
	if f.CloseSeasonFunc != nil {
		return f.CloseSeasonFunc(ctx, seasonID)
	}
	return f.MemoryRepository.CloseSeason(ctx, seasonID)
}

func (f *FakeRankingRepository) OpenSeason(ctx context.Context, season *rankingdb.Season) error {
	f.record("OpenSeason")
	if f.OpenSeasonFunc != nil {
		return f.OpenSeasonFunc(ctx, season)
	}
	return f.MemoryRepository.OpenSeason(ctx, season)
}

func (f *FakeRankingRepository) ListSeasonPosts(ctx context.Context, seasonID rankingdomain.SeasonID, order rankingdb.PostOrder) ([]rankingdb.Post, error) {
	f.record("ListSeasonPosts")
	if f.ListSeasonPostsFunc != nil {
		return f.ListSeasonPostsFunc(ctx, seasonID, order)
	}
	return f.MemoryRepository.ListSeasonPosts(ctx, seasonID, order)
}

func (f *FakeRankingRepository) TopRegionPost(ctx context.Context, seasonID rankingdomain.SeasonID, regionID string) (*rankingdb.Post, error) {
	f.record("TopRegionPost")
	if f.TopRegionPostFunc != nil {
		return f.TopRegionPostFunc(ctx, seasonID, regionID)
	}
	return f.MemoryRepository.TopRegionPost(ctx, seasonID, regionID)
}

func (f *FakeRankingRepository) CountLikes(ctx context.Context, postID string) (int, error) {
	f.record("CountLikes")
	if f.CountLikesFunc != nil {
		return f.CountLikesFunc(ctx, postID)
	}
	return f.MemoryRepository.CountLikes(ctx, postID)
}

func (f *FakeRankingRepository) CommitPostScores(ctx context.Context, scores []rankingdb.PostScore) error {
	f.record("CommitPostScores")
	if f.CommitPostScoresFunc != nil {
		return f.CommitPostScoresFunc(ctx, scores)
	}
	return f.MemoryRepository.CommitPostScores(ctx, scores)
}

func (f *FakeRankingRepository) UpsertRegionTop(ctx context.Context, seasonID rankingdomain.SeasonID, top *rankingdb.RegionTop) error {
	f.record("UpsertRegionTop")
	if f.UpsertRegionTopFunc != nil {
		return f.UpsertRegionTopFunc(ctx, seasonID, top)
	}
	return f.MemoryRepository.UpsertRegionTop(ctx, seasonID, top)
}

func (f *FakeRankingRepository) CommitSeasonRanks(ctx context.Context, ranks []rankingdb.SeasonRank) error {
	f.record("CommitSeasonRanks")
	if f.CommitSeasonRanksFunc != nil {
		return f.CommitSeasonRanksFunc(ctx, ranks)
	}
	return f.MemoryRepository.CommitSeasonRanks(ctx, ranks)
}

func (f *FakeRankingRepository) GrantExperience(ctx context.Context, userID string, delta int, level rankingdb.LevelFunc) (*rankingdb.UserProgress, error) {
	f.record("GrantExperience")
	if f.GrantExperienceFunc != nil {
		return f.GrantExperienceFunc(ctx, userID, delta, level)
	}
	return f.MemoryRepository.GrantExperience(ctx, userID, delta, level)
}

func (f *FakeRankingRepository) GetUserProgress(ctx context.Context, userID string) (*rankingdb.UserProgress, error) {
	f.record("GetUserProgress")
	if f.GetUserProgressFunc != nil {
		return f.GetUserProgressFunc(ctx, userID)
	}
	return f.MemoryRepository.GetUserProgress(ctx, userID)
}

func (f *FakeRankingRepository) TopUsersByExperience(ctx context.Context, limit int) ([]rankingdb.UserProgress, error) {
	f.record("TopUsersByExperience")
	if f.TopUsersFunc != nil {
		return f.TopUsersFunc(ctx, limit)
	}
	return f.MemoryRepository.TopUsersByExperience(ctx, limit)
}

// ------------------------
// Fixtures
// ------------------------

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

func currentSeason(id rankingdomain.SeasonID) rankingdb.Season {
	ym, _ := rankingdomain.ParseSeasonID(id.String())
	start, end := rankingdomain.MonthBounds(ym, time.UTC)
	return rankingdb.Season{ID: id, IsCurrent: true, StartDate: start, EndDate: end, CreatedAt: start}
}

// seedLikes adds n distinct likes to a post.
func seedLikes(repo *rankingdb.MemoryRepository, postID string, n int) {
	for i := 0; i < n; i++ {
		repo.AddLike(postID, postID+"-liker-"+strconv.Itoa(i))
	}
}
