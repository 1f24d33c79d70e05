package rankingdb

import (
	"context"
	"fmt"
	"sort"
	"sync"

	rankingdomain "github.com/Black-And-White-Club/photoseason/app/modules/ranking/domain"
)

// MemoryRepository is an in-process Repository used for local runs and tests.
// Posts keep their insertion order, which stands in for the store's default
// result ordering.
type MemoryRepository struct {
	mu sync.Mutex

	seasons     map[rankingdomain.SeasonID]Season
	posts       []Post
	likes       map[string]map[string]struct{}
	regionTops  map[rankingdomain.SeasonID]map[string]RegionTop
	seasonRanks map[string]map[rankingdomain.SeasonID]SeasonRank
	users       map[string]UserProgress

	batchSizes []int
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		seasons:     make(map[rankingdomain.SeasonID]Season),
		likes:       make(map[string]map[string]struct{}),
		regionTops:  make(map[rankingdomain.SeasonID]map[string]RegionTop),
		seasonRanks: make(map[string]map[rankingdomain.SeasonID]SeasonRank),
		users:       make(map[string]UserProgress),
	}
}

// PutSeason stores a season as is.
func (m *MemoryRepository) PutSeason(season Season) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seasons[season.ID] = season
}

// AddPost appends a post. Posts with an existing id are replaced in place.
func (m *MemoryRepository) AddPost(post Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.posts {
		if m.posts[i].ID == post.ID {
			m.posts[i] = post
			return
		}
	}
	m.posts = append(m.posts, post)
}

// AddLike records that userID liked postID.
func (m *MemoryRepository) AddLike(postID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.likes[postID] == nil {
		m.likes[postID] = make(map[string]struct{})
	}
	m.likes[postID][userID] = struct{}{}
}

// PutUser stores a user's progress as is.
func (m *MemoryRepository) PutUser(user UserProgress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.UserID] = user
}

// Post returns a copy of a stored post.
func (m *MemoryRepository) Post(postID string) (Post, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.posts {
		if p.ID == postID {
			return p, true
		}
	}
	return Post{}, false
}

// Seasons returns every stored season ordered by id.
func (m *MemoryRepository) Seasons() []Season {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Season, 0, len(m.seasons))
	for _, s := range m.seasons {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// BatchSizes returns the size of every committed batch in commit order.
func (m *MemoryRepository) BatchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.batchSizes...)
}

func (m *MemoryRepository) GetCurrentSeason(ctx context.Context) (*Season, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]rankingdomain.SeasonID, 0, len(m.seasons))
	for id, s := range m.seasons {
		if s.IsCurrent {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	s := m.seasons[ids[0]]
	return &s, nil
}

func (m *MemoryRepository) GetSeason(ctx context.Context, seasonID rankingdomain.SeasonID) (*Season, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.seasons[seasonID]
	if !ok {
		return nil, fmt.Errorf("rankingdb.GetSeason: %w", ErrNotFound)
	}
	return &s, nil
}

func (m *MemoryRepository) CloseSeason(ctx context.Context, seasonID rankingdomain.SeasonID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.seasons[seasonID]
	if !ok {
		return fmt.Errorf("rankingdb.CloseSeason: %w", ErrNotFound)
	}
	s.IsCurrent = false
	m.seasons[seasonID] = s
	return nil
}

func (m *MemoryRepository) OpenSeason(ctx context.Context, season *Season) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.seasons {
		if s.IsCurrent && id != season.ID {
			s.IsCurrent = false
			m.seasons[id] = s
		}
	}
	opened := *season
	opened.IsCurrent = true
	m.seasons[opened.ID] = opened
	return nil
}

func (m *MemoryRepository) ListSeasonPosts(ctx context.Context, seasonID rankingdomain.SeasonID, order PostOrder) ([]Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	posts := m.seasonPostsLocked(seasonID, "")
	switch order {
	case OrderByLikesDesc:
		sort.SliceStable(posts, func(i, j int) bool { return posts[i].LikesCount > posts[j].LikesCount })
	case OrderByScoreDesc:
		sort.SliceStable(posts, func(i, j int) bool { return posts[i].Score > posts[j].Score })
	}
	return posts, nil
}

func (m *MemoryRepository) TopRegionPost(ctx context.Context, seasonID rankingdomain.SeasonID, regionID string) (*Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	posts := m.seasonPostsLocked(seasonID, regionID)
	if len(posts) == 0 {
		return nil, fmt.Errorf("rankingdb.TopRegionPost: region %q: %w", regionID, ErrNotFound)
	}
	sort.SliceStable(posts, func(i, j int) bool { return posts[i].Score > posts[j].Score })
	return &posts[0], nil
}

func (m *MemoryRepository) CountLikes(ctx context.Context, postID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.likes[postID]), nil
}

// CommitPostScores applies every update or none; a missing post fails the batch.
func (m *MemoryRepository) CommitPostScores(ctx context.Context, scores []PostScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(scores) > MaxBatchMutations {
		return fmt.Errorf("rankingdb.CommitPostScores: %d writes: %w", len(scores), ErrBatchTooLarge)
	}
	if len(scores) == 0 {
		return nil
	}

	index := make(map[string]int, len(m.posts))
	for i, p := range m.posts {
		index[p.ID] = i
	}
	for _, s := range scores {
		if _, ok := index[s.PostID]; !ok {
			return fmt.Errorf("rankingdb.CommitPostScores: post %q: %w", s.PostID, ErrNotFound)
		}
	}
	for _, s := range scores {
		p := &m.posts[index[s.PostID]]
		p.LikesCount = s.LikesCount
		p.Score = s.Score
	}
	m.batchSizes = append(m.batchSizes, len(scores))
	return nil
}

func (m *MemoryRepository) UpsertRegionTop(ctx context.Context, seasonID rankingdomain.SeasonID, top *RegionTop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.regionTops[seasonID] == nil {
		m.regionTops[seasonID] = make(map[string]RegionTop)
	}
	m.regionTops[seasonID][top.RegionID] = *top
	return nil
}

func (m *MemoryRepository) ListRegionTops(ctx context.Context, seasonID rankingdomain.SeasonID) ([]RegionTop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tops := make([]RegionTop, 0, len(m.regionTops[seasonID]))
	for _, top := range m.regionTops[seasonID] {
		tops = append(tops, top)
	}
	sort.Slice(tops, func(i, j int) bool { return tops[i].RegionID < tops[j].RegionID })
	return tops, nil
}

func (m *MemoryRepository) CommitSeasonRanks(ctx context.Context, ranks []SeasonRank) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(ranks) > MaxBatchMutations {
		return fmt.Errorf("rankingdb.CommitSeasonRanks: %d writes: %w", len(ranks), ErrBatchTooLarge)
	}
	if len(ranks) == 0 {
		return nil
	}
	for _, r := range ranks {
		if m.seasonRanks[r.UserID] == nil {
			m.seasonRanks[r.UserID] = make(map[rankingdomain.SeasonID]SeasonRank)
		}
		m.seasonRanks[r.UserID][r.SeasonID] = r
	}
	m.batchSizes = append(m.batchSizes, len(ranks))
	return nil
}

func (m *MemoryRepository) GetSeasonRank(ctx context.Context, userID string, seasonID rankingdomain.SeasonID) (*SeasonRank, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.seasonRanks[userID][seasonID]
	if !ok {
		return nil, fmt.Errorf("rankingdb.GetSeasonRank: %w", ErrNotFound)
	}
	return &r, nil
}

func (m *MemoryRepository) GrantExperience(ctx context.Context, userID string, delta int, level LevelFunc) (*UserProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[userID]
	u.UserID = userID
	u.Experience += delta
	u.Level = level(u.Experience)
	m.users[userID] = u
	return &u, nil
}

func (m *MemoryRepository) GetUserProgress(ctx context.Context, userID string) (*UserProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("rankingdb.GetUserProgress: %w", ErrNotFound)
	}
	return &u, nil
}

func (m *MemoryRepository) TopUsersByExperience(ctx context.Context, limit int) ([]UserProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]UserProgress, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Experience != users[j].Experience {
			return users[i].Experience > users[j].Experience
		}
		return users[i].UserID < users[j].UserID
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (m *MemoryRepository) seasonPostsLocked(seasonID rankingdomain.SeasonID, regionID string) []Post {
	var out []Post
	for _, p := range m.posts {
		if p.SeasonID != seasonID {
			continue
		}
		if regionID != "" && p.RegionID != regionID {
			continue
		}
		out = append(out, p)
	}
	return out
}
