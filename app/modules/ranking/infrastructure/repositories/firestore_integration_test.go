//go:build integration

package rankingdb

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	rankingdomain "github.com/Black-And-White-Club/photoseason/app/modules/ranking/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

// newEmulatorRepository connects to the emulator named by FIRESTORE_EMULATOR_HOST
// under a fresh project id so runs never see each other's documents.
func newEmulatorRepository(t *testing.T) (*FirestoreRepository, *firestore.Client) {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx := context.Background()
	client, err := firestore.NewClient(ctx, "photoseason-"+uuid.NewString()[:8], option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewFirestoreRepository(client), client
}

func TestFirestoreRepository_SeasonLifecycle(t *testing.T) {
	repo, _ := newEmulatorRepository(t)
	ctx := context.Background()
	now := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)

	current, err := repo.GetCurrentSeason(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	require.NoError(t, repo.OpenSeason(ctx, &Season{ID: "2025-11", StartDate: now.AddDate(0, -1, 0), EndDate: now, CreatedAt: now}))
	require.NoError(t, repo.OpenSeason(ctx, &Season{ID: "2025-12", StartDate: now, EndDate: now.AddDate(0, 1, 0), CreatedAt: now}))

	current, err = repo.GetCurrentSeason(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, rankingdomain.SeasonID("2025-12"), current.ID)

	previous, err := repo.GetSeason(ctx, "2025-11")
	require.NoError(t, err)
	assert.False(t, previous.IsCurrent)

	require.NoError(t, repo.CloseSeason(ctx, "2025-12"))
	current, err = repo.GetCurrentSeason(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	assert.True(t, errors.Is(repo.CloseSeason(ctx, "1999-01"), ErrNotFound))
}

func TestFirestoreRepository_PostsLikesAndScores(t *testing.T) {
	repo, client := newEmulatorRepository(t)
	ctx := context.Background()

	posts := []Post{
		{ID: "p1", UserID: "u1", RegionID: "tokyo", SeasonID: "2025-12"},
		{ID: "p2", UserID: "u2", RegionID: "tokyo", SeasonID: "2025-12"},
		{ID: "p3", UserID: "u1", RegionID: "osaka", SeasonID: "2025-11"},
	}
	for _, p := range posts {
		_, err := client.Collection(postsCollection).Doc(p.ID).Set(ctx, p)
		require.NoError(t, err)
	}
	for _, liker := range []string{"a", "b", "c"} {
		_, err := client.Collection(postsCollection).Doc("p2").Collection(likesCollection).Doc(liker).Set(ctx, map[string]any{"createdAt": time.Now()})
		require.NoError(t, err)
	}

	likes, err := repo.CountLikes(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, 3, likes)

	require.NoError(t, repo.CommitPostScores(ctx, []PostScore{{PostID: "p2", LikesCount: 3, Score: 3}, {PostID: "p1", LikesCount: 0, Score: 0}}))

	season, err := repo.ListSeasonPosts(ctx, "2025-12", OrderByLikesDesc)
	require.NoError(t, err)
	require.Len(t, season, 2)
	assert.Equal(t, "p2", season[0].ID)

	top, err := repo.TopRegionPost(ctx, "2025-12", "tokyo")
	require.NoError(t, err)
	assert.Equal(t, "p2", top.ID)

	_, err = repo.TopRegionPost(ctx, "2025-12", "kyoto")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFirestoreRepository_GrantExperience(t *testing.T) {
	repo, _ := newEmulatorRepository(t)
	ctx := context.Background()

	_, err := repo.GrantExperience(ctx, "u1", 100, rankingdomain.LevelForExperience)
	require.NoError(t, err)
	got, err := repo.GrantExperience(ctx, "u1", 50, rankingdomain.LevelForExperience)
	require.NoError(t, err)
	assert.Equal(t, 150, got.Experience)
	assert.Equal(t, 3, got.Level)

	stored, err := repo.GetUserProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 150, stored.Experience)
}

func TestFirestoreRepository_TopUsersByExperience(t *testing.T) {
	repo, client := newEmulatorRepository(t)
	ctx := context.Background()

	for id, exp := range map[string]int{"u1": 40, "u2": 300, "u3": 120} {
		_, err := repo.GrantExperience(ctx, id, exp, rankingdomain.LevelForExperience)
		require.NoError(t, err)
	}
	_, err := client.Collection(usersCollection).Doc("fresh").Set(ctx, map[string]any{"name": "no experience yet"})
	require.NoError(t, err)

	top, err := repo.TopUsersByExperience(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "u2", top[0].UserID)
	assert.Equal(t, 300, top[0].Experience)
	assert.Equal(t, "u3", top[1].UserID)
}
