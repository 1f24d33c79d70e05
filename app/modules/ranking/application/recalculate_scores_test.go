package rankingservice

import (
	"context"
	"errors"
	"fmt"
	"testing"

	rankingdomain "github.com/Black-And-White-Club/photoseason/app/modules/ranking/domain"
	rankingdb "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/repositories"
	"github.com/google/go-cmp/cmp"
)

func TestRecalculateScores_WritesLikesAndScore(t *testing.T) {
	ctx := context.Background()
	repo := rankingdb.NewMemoryRepository()
	repo.PutSeason(currentSeason("2025-03"))
	repo.AddPost(rankingdb.Post{ID: "p1", UserID: "u1", RegionID: "r1", SeasonID: "2025-03", LikesCount: 99, Score: 99})
	repo.AddPost(rankingdb.Post{ID: "p2", UserID: "u2", RegionID: "r1", SeasonID: "2025-03"})
	repo.AddPost(rankingdb.Post{ID: "old", UserID: "u1", RegionID: "r1", SeasonID: "2025-02", LikesCount: 7, Score: 7})
	seedLikes(repo, "p1", 3)
	seedLikes(repo, "p2", 5)
	seedLikes(repo, "old", 1)

	s := newTestService(repo)
	stats, err := s.RecalculateScores(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := RunStats{Job: JobRecalculateScores, SeasonID: "2025-03", Processed: 2, Written: 2, Batches: 1}
	if diff := cmp.Diff(want, stats, ignoreTiming); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	for id, likes := range map[string]int{"p1": 3, "p2": 5} {
		p, _ := repo.Post(id)
		if p.LikesCount != likes || p.Score != rankingdomain.Score(likes) {
			t.Errorf("post %s = likes %d score %d, want %d", id, p.LikesCount, p.Score, likes)
		}
	}
	if old, _ := repo.Post("old"); old.LikesCount != 7 {
		t.Errorf("post from closed season was rewritten: %+v", old)
	}
}

func TestRecalculateScores_ChunksAtBatchCeiling(t *testing.T) {
	repo := rankingdb.NewMemoryRepository()
	repo.PutSeason(currentSeason("2025-03"))
	for i := 0; i < 1001; i++ {
		repo.AddPost(rankingdb.Post{ID: fmt.Sprintf("post-%04d", i), UserID: "u1", SeasonID: "2025-03"})
	}

	s := newTestService(repo)
	stats, err := s.RecalculateScores(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]int{500, 500, 1}, repo.BatchSizes()); diff != "" {
		t.Errorf("batch sizes mismatch (-want +got):\n%s", diff)
	}
	if stats.Batches != 3 || stats.Written != 1001 {
		t.Errorf("stats = %+v, want 3 batches and 1001 writes", stats)
	}
}

func TestRecalculateScores_Idempotent(t *testing.T) {
	ctx := context.Background()
	repo := rankingdb.NewMemoryRepository()
	repo.PutSeason(currentSeason("2025-03"))
	for i, likes := range []int{0, 4, 12} {
		id := fmt.Sprintf("p%d", i)
		repo.AddPost(rankingdb.Post{ID: id, UserID: "u1", SeasonID: "2025-03"})
		seedLikes(repo, id, likes)
	}

	s := newTestService(repo)
	snapshot := func() []rankingdb.Post {
		posts, _ := repo.ListSeasonPosts(ctx, "2025-03", rankingdb.OrderUnspecified)
		return posts
	}

	if _, err := s.RecalculateScores(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := snapshot()
	if _, err := s.RecalculateScores(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if diff := cmp.Diff(first, snapshot()); diff != "" {
		t.Errorf("second run changed posts (-first +second):\n%s", diff)
	}
}

func TestRecalculateScores_SkipsPostWhoseCountFails(t *testing.T) {
	repo := NewFakeRankingRepository()
	repo.PutSeason(currentSeason("2025-03"))
	repo.AddPost(rankingdb.Post{ID: "p1", UserID: "u1", SeasonID: "2025-03"})
	repo.AddPost(rankingdb.Post{ID: "p2", UserID: "u2", SeasonID: "2025-03", LikesCount: 1, Score: 1})
	repo.AddPost(rankingdb.Post{ID: "p3", UserID: "u3", SeasonID: "2025-03"})
	seedLikes(repo.MemoryRepository, "p1", 2)
	seedLikes(repo.MemoryRepository, "p3", 4)
	repo.CountLikesFunc = func(ctx context.Context, postID string) (int, error) {
		if postID == "p2" {
			return 0, errors.New("deadline exceeded")
		}
		return repo.MemoryRepository.CountLikes(ctx, postID)
	}

	s := newTestService(repo)
	stats, err := s.RecalculateScores(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Processed != 3 || stats.Failures != 1 || stats.Written != 2 {
		t.Errorf("stats = %+v, want 3 processed, 1 failure, 2 written", stats)
	}
	if p, _ := repo.Post("p2"); p.LikesCount != 1 {
		t.Errorf("failed post was rewritten: %+v", p)
	}
	if p, _ := repo.Post("p3"); p.LikesCount != 4 {
		t.Errorf("post after failure not written: %+v", p)
	}
}

func TestRecalculateScores_AbortsOnBatchCommitFailure(t *testing.T) {
	repo := NewFakeRankingRepository()
	repo.PutSeason(currentSeason("2025-03"))
	for _, id := range []string{"p1", "p2", "p3"} {
		repo.AddPost(rankingdb.Post{ID: id, UserID: "u1", SeasonID: "2025-03"})
		seedLikes(repo.MemoryRepository, id, 1)
	}

	commitErr := errors.New("aborted")
	commits := 0
	repo.CommitPostScoresFunc = func(ctx context.Context, scores []rankingdb.PostScore) error {
		commits++
		if commits == 2 {
			return commitErr
		}
		return repo.MemoryRepository.CommitPostScores(ctx, scores)
	}

	s := newTestService(repo, WithBatchLimit(1))
	stats, err := s.RecalculateScores(context.Background())

	var batchErr *BatchCommitError
	if !errors.As(err, &batchErr) {
		t.Fatalf("error = %v, want *BatchCommitError", err)
	}
	if commits != 2 {
		t.Errorf("commit attempts = %d, want 2", commits)
	}
	if stats.Batches != 1 || stats.Written != 1 {
		t.Errorf("stats = %+v, want 1 batch and 1 write", stats)
	}
	if p, _ := repo.Post("p1"); p.LikesCount != 1 {
		t.Errorf("committed chunk was not kept: %+v", p)
	}
	if p, _ := repo.Post("p3"); p.LikesCount != 0 {
		t.Errorf("chunk after failure was applied: %+v", p)
	}
}

func TestRecalculateScores_NoActiveSeason(t *testing.T) {
	repo := NewFakeRankingRepository()
	repo.AddPost(rankingdb.Post{ID: "p1", UserID: "u1", SeasonID: "2025-03"})

	s := newTestService(repo)
	stats, err := s.RecalculateScores(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stats.NoActiveSeason {
		t.Error("expected NoActiveSeason")
	}
	if diff := cmp.Diff([]string{"GetCurrentSeason"}, repo.Trace()); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
}

func TestRecalculateScores_CustomScoreFunc(t *testing.T) {
	repo := rankingdb.NewMemoryRepository()
	repo.PutSeason(currentSeason("2025-03"))
	repo.AddPost(rankingdb.Post{ID: "p1", UserID: "u1", SeasonID: "2025-03"})
	seedLikes(repo, "p1", 3)

	s := newTestService(repo, WithScoreFunc(func(likes int) int { return likes*10 - 100 }))
	if _, err := s.RecalculateScores(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p, _ := repo.Post("p1"); p.LikesCount != 3 || p.Score != 0 {
		t.Errorf("post = %+v, want likes 3 and score clamped to 0", p)
	}
}
