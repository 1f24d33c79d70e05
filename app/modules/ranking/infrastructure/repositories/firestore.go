package rankingdb

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	rankingdomain "github.com/Black-And-White-Club/photoseason/app/modules/ranking/domain"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	seasonsCollection     = "seasons"
	regionTopCollection   = "regionTop"
	postsCollection       = "posts"
	likesCollection       = "likes"
	usersCollection       = "users"
	seasonRanksCollection = "seasonRanks"

	likeCountAlias = "all"
)

// FirestoreRepository implements Repository on Cloud Firestore.
type FirestoreRepository struct {
	client *firestore.Client
}

var _ Repository = (*FirestoreRepository)(nil)

// NewFirestoreRepository creates a FirestoreRepository.
func NewFirestoreRepository(client *firestore.Client) *FirestoreRepository {
	return &FirestoreRepository{client: client}
}

func (r *FirestoreRepository) seasonRef(id rankingdomain.SeasonID) *firestore.DocumentRef {
	return r.client.Collection(seasonsCollection).Doc(id.String())
}

func (r *FirestoreRepository) regionTopRef(id rankingdomain.SeasonID, regionID string) *firestore.DocumentRef {
	return r.seasonRef(id).Collection(regionTopCollection).Doc(regionID)
}

func (r *FirestoreRepository) seasonRankRef(userID string, id rankingdomain.SeasonID) *firestore.DocumentRef {
	return r.client.Collection(usersCollection).Doc(userID).Collection(seasonRanksCollection).Doc(id.String())
}

func (r *FirestoreRepository) currentSeasonQuery() firestore.Query {
	return r.client.Collection(seasonsCollection).Where("isCurrent", "==", true)
}

// GetCurrentSeason returns the season flagged isCurrent, or nil when none is.
func (r *FirestoreRepository) GetCurrentSeason(ctx context.Context) (*Season, error) {
	docs, err := r.currentSeasonQuery().Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("rankingdb.GetCurrentSeason: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	season, err := decodeSeason(docs[0])
	if err != nil {
		return nil, fmt.Errorf("rankingdb.GetCurrentSeason: %w", err)
	}
	return season, nil
}

// GetSeason returns one season by id.
func (r *FirestoreRepository) GetSeason(ctx context.Context, seasonID rankingdomain.SeasonID) (*Season, error) {
	doc, err := r.seasonRef(seasonID).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("rankingdb.GetSeason: %w", notFound(err))
	}
	season, err := decodeSeason(doc)
	if err != nil {
		return nil, fmt.Errorf("rankingdb.GetSeason: %w", err)
	}
	return season, nil
}

// CloseSeason flips isCurrent to false on one season document.
func (r *FirestoreRepository) CloseSeason(ctx context.Context, seasonID rankingdomain.SeasonID) error {
	_, err := r.seasonRef(seasonID).Update(ctx, []firestore.Update{{Path: "isCurrent", Value: false}})
	if err != nil {
		return fmt.Errorf("rankingdb.CloseSeason: %w", notFound(err))
	}
	return nil
}

// OpenSeason writes season as current and closes any other current season in
// the same transaction.
func (r *FirestoreRepository) OpenSeason(ctx context.Context, season *Season) error {
	opened := *season
	opened.IsCurrent = true

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current, err := tx.Documents(r.currentSeasonQuery()).GetAll()
		if err != nil {
			return err
		}
		for _, doc := range current {
			if doc.Ref.ID == opened.ID.String() {
				continue
			}
			if err := tx.Update(doc.Ref, []firestore.Update{{Path: "isCurrent", Value: false}}); err != nil {
				return err
			}
		}
		return tx.Set(r.seasonRef(opened.ID), &opened)
	})
	if err != nil {
		return fmt.Errorf("rankingdb.OpenSeason: %w", err)
	}
	return nil
}

// ListSeasonPosts streams every post of a season.
func (r *FirestoreRepository) ListSeasonPosts(ctx context.Context, seasonID rankingdomain.SeasonID, order PostOrder) ([]Post, error) {
	q := r.client.Collection(postsCollection).Where("seasonId", "==", seasonID.String())
	switch order {
	case OrderByLikesDesc:
		q = q.OrderBy("likesCount", firestore.Desc)
	case OrderByScoreDesc:
		q = q.OrderBy("score", firestore.Desc)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var posts []Post
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("rankingdb.ListSeasonPosts: %w", err)
		}
		post, err := decodePost(doc)
		if err != nil {
			return nil, fmt.Errorf("rankingdb.ListSeasonPosts: %w", err)
		}
		posts = append(posts, *post)
	}
	return posts, nil
}

// TopRegionPost returns the highest scoring post of a region in a season.
func (r *FirestoreRepository) TopRegionPost(ctx context.Context, seasonID rankingdomain.SeasonID, regionID string) (*Post, error) {
	docs, err := r.client.Collection(postsCollection).
		Where("seasonId", "==", seasonID.String()).
		Where("regionId", "==", regionID).
		OrderBy("score", firestore.Desc).
		Limit(1).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, fmt.Errorf("rankingdb.TopRegionPost: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("rankingdb.TopRegionPost: region %q: %w", regionID, ErrNotFound)
	}
	post, err := decodePost(docs[0])
	if err != nil {
		return nil, fmt.Errorf("rankingdb.TopRegionPost: %w", err)
	}
	return post, nil
}

// CountLikes counts posts/{postId}/likes with a server-side aggregation.
func (r *FirestoreRepository) CountLikes(ctx context.Context, postID string) (int, error) {
	res, err := r.client.Collection(postsCollection).Doc(postID).Collection(likesCollection).
		NewAggregationQuery().
		WithCount(likeCountAlias).
		Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("rankingdb.CountLikes: %w", err)
	}

	raw, ok := res[likeCountAlias]
	if !ok {
		return 0, fmt.Errorf("rankingdb.CountLikes: missing %q in aggregation result", likeCountAlias)
	}
	v, ok := raw.(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("rankingdb.CountLikes: unexpected aggregation value %T", raw)
	}
	return int(v.GetIntegerValue()), nil
}

// CommitPostScores updates likesCount and score on each post in one batch.
func (r *FirestoreRepository) CommitPostScores(ctx context.Context, scores []PostScore) error {
	if len(scores) > MaxBatchMutations {
		return fmt.Errorf("rankingdb.CommitPostScores: %d writes: %w", len(scores), ErrBatchTooLarge)
	}
	if len(scores) == 0 {
		return nil
	}

	batch := r.client.Batch()
	for _, s := range scores {
		batch.Update(r.client.Collection(postsCollection).Doc(s.PostID), []firestore.Update{
			{Path: "likesCount", Value: s.LikesCount},
			{Path: "score", Value: s.Score},
		})
	}
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("rankingdb.CommitPostScores: %w", err)
	}
	return nil
}

// UpsertRegionTop overwrites seasons/{seasonId}/regionTop/{regionId}.
func (r *FirestoreRepository) UpsertRegionTop(ctx context.Context, seasonID rankingdomain.SeasonID, top *RegionTop) error {
	if _, err := r.regionTopRef(seasonID, top.RegionID).Set(ctx, top); err != nil {
		return fmt.Errorf("rankingdb.UpsertRegionTop: %w", err)
	}
	return nil
}

// ListRegionTops returns the region leaders of a season.
func (r *FirestoreRepository) ListRegionTops(ctx context.Context, seasonID rankingdomain.SeasonID) ([]RegionTop, error) {
	docs, err := r.seasonRef(seasonID).Collection(regionTopCollection).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("rankingdb.ListRegionTops: %w", err)
	}
	tops := make([]RegionTop, 0, len(docs))
	for _, doc := range docs {
		var top RegionTop
		if err := doc.DataTo(&top); err != nil {
			return nil, fmt.Errorf("rankingdb.ListRegionTops: %s: %w", doc.Ref.ID, err)
		}
		if top.RegionID == "" {
			top.RegionID = doc.Ref.ID
		}
		tops = append(tops, top)
	}
	return tops, nil
}

// CommitSeasonRanks overwrites each users/{userId}/seasonRanks/{seasonId} in one batch.
func (r *FirestoreRepository) CommitSeasonRanks(ctx context.Context, ranks []SeasonRank) error {
	if len(ranks) > MaxBatchMutations {
		return fmt.Errorf("rankingdb.CommitSeasonRanks: %d writes: %w", len(ranks), ErrBatchTooLarge)
	}
	if len(ranks) == 0 {
		return nil
	}

	batch := r.client.Batch()
	for i := range ranks {
		batch.Set(r.seasonRankRef(ranks[i].UserID, ranks[i].SeasonID), &ranks[i])
	}
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("rankingdb.CommitSeasonRanks: %w", err)
	}
	return nil
}

// GetSeasonRank returns users/{userId}/seasonRanks/{seasonId}.
func (r *FirestoreRepository) GetSeasonRank(ctx context.Context, userID string, seasonID rankingdomain.SeasonID) (*SeasonRank, error) {
	doc, err := r.seasonRankRef(userID, seasonID).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("rankingdb.GetSeasonRank: %w", notFound(err))
	}
	var rank SeasonRank
	if err := doc.DataTo(&rank); err != nil {
		return nil, fmt.Errorf("rankingdb.GetSeasonRank: %w", err)
	}
	rank.UserID = userID
	return &rank, nil
}

// GrantExperience adds delta to users/{userId}.experience inside a transaction.
// A missing user document starts from zero.
func (r *FirestoreRepository) GrantExperience(ctx context.Context, userID string, delta int, level LevelFunc) (*UserProgress, error) {
	ref := r.client.Collection(usersCollection).Doc(userID)

	var progress UserProgress
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current := 0
		doc, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return err
		default:
			if v, err := doc.DataAt("experience"); err == nil {
				current = numberToInt(v)
			}
		}

		experience := current + delta
		progress = UserProgress{UserID: userID, Experience: experience, Level: level(experience)}
		return tx.Set(ref, map[string]any{
			"experience": progress.Experience,
			"level":      progress.Level,
		}, firestore.MergeAll)
	})
	if err != nil {
		return nil, fmt.Errorf("rankingdb.GrantExperience: %w", err)
	}
	return &progress, nil
}

// GetUserProgress reads experience and level from users/{userId}.
func (r *FirestoreRepository) GetUserProgress(ctx context.Context, userID string) (*UserProgress, error) {
	doc, err := r.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("rankingdb.GetUserProgress: %w", notFound(err))
	}
	progress := UserProgress{UserID: userID}
	if v, err := doc.DataAt("experience"); err == nil {
		progress.Experience = numberToInt(v)
	}
	if v, err := doc.DataAt("level"); err == nil {
		progress.Level = numberToInt(v)
	}
	return &progress, nil
}

// TopUsersByExperience reads users ordered by experience, descending.
func (r *FirestoreRepository) TopUsersByExperience(ctx context.Context, limit int) ([]UserProgress, error) {
	docs, err := r.client.Collection(usersCollection).
		OrderBy("experience", firestore.Desc).
		Limit(limit).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, fmt.Errorf("rankingdb.TopUsersByExperience: %w", err)
	}
	users := make([]UserProgress, 0, len(docs))
	for _, doc := range docs {
		u := UserProgress{UserID: doc.Ref.ID}
		if v, err := doc.DataAt("experience"); err == nil {
			u.Experience = numberToInt(v)
		}
		if v, err := doc.DataAt("level"); err == nil {
			u.Level = numberToInt(v)
		}
		users = append(users, u)
	}
	return users, nil
}

func decodeSeason(doc *firestore.DocumentSnapshot) (*Season, error) {
	var season Season
	if err := doc.DataTo(&season); err != nil {
		return nil, fmt.Errorf("decode season %s: %w", doc.Ref.ID, err)
	}
	if season.ID == "" {
		season.ID = rankingdomain.SeasonID(doc.Ref.ID)
	}
	return &season, nil
}

func decodePost(doc *firestore.DocumentSnapshot) (*Post, error) {
	var post Post
	if err := doc.DataTo(&post); err != nil {
		return nil, fmt.Errorf("decode post %s: %w", doc.Ref.ID, err)
	}
	post.ID = doc.Ref.ID
	return &post, nil
}

// notFound maps a gRPC NotFound status onto ErrNotFound.
func notFound(err error) error {
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	return err
}

// numberToInt converts a Firestore numeric field to int. Client SDKs write
// counters as either integers or doubles.
func numberToInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
