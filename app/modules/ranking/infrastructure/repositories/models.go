package rankingdb

import (
	"time"

	rankingdomain "github.com/Black-And-White-Club/photoseason/app/modules/ranking/domain"
	"google.golang.org/genproto/googleapis/type/latlng"
)

// Season is stored at seasons/{seasonId}.
type Season struct {
	ID        rankingdomain.SeasonID `firestore:"seasonId" json:"season_id"`
	IsCurrent bool                   `firestore:"isCurrent" json:"is_current"`
	StartDate time.Time              `firestore:"startDate" json:"start_date"`
	EndDate   time.Time              `firestore:"endDate" json:"end_date"`
	CreatedAt time.Time              `firestore:"createdAt" json:"created_at"`
}

// Post is stored at posts/{postId}. Likes live in posts/{postId}/likes/{userId}.
type Post struct {
	ID         string                 `firestore:"-" json:"id"`
	UserID     string                 `firestore:"userId" json:"user_id"`
	RegionID   string                 `firestore:"regionId" json:"region_id"`
	SeasonID   rankingdomain.SeasonID `firestore:"seasonId" json:"season_id"`
	ImageURL   string                 `firestore:"imageUrl" json:"image_url"`
	Caption    string                 `firestore:"caption" json:"caption"`
	LikesCount int                    `firestore:"likesCount" json:"likes_count"`
	Score      int                    `firestore:"score" json:"score"`
	CreatedAt  time.Time              `firestore:"createdAt" json:"created_at"`
	Location   *latlng.LatLng         `firestore:"location,omitempty" json:"-"`
}

// PostScore is the derived part of a post rewritten by the score recalculator.
type PostScore struct {
	PostID     string
	LikesCount int
	Score      int
}

// RegionTop is stored at seasons/{seasonId}/regionTop/{regionId}.
type RegionTop struct {
	PostID     string    `firestore:"postId" json:"post_id"`
	UserID     string    `firestore:"userId" json:"user_id"`
	RegionID   string    `firestore:"regionId" json:"region_id"`
	ImageURL   string    `firestore:"imageUrl" json:"image_url"`
	LikesCount int       `firestore:"likesCount" json:"likes_count"`
	Score      int       `firestore:"score" json:"score"`
	UpdatedAt  time.Time `firestore:"updatedAt" json:"updated_at"`
}

// SeasonRank is stored at users/{userId}/seasonRanks/{seasonId}.
type SeasonRank struct {
	UserID       string                 `firestore:"-" json:"user_id"`
	SeasonID     rankingdomain.SeasonID `firestore:"seasonId" json:"season_id"`
	Rank         int                    `firestore:"rank" json:"rank"`
	AllLikeCount int                    `firestore:"allLikeCount" json:"all_like_count"`
	UpdatedAt    time.Time              `firestore:"updatedAt" json:"updated_at"`
}

// UserProgress is the experience-bearing part of users/{userId}.
type UserProgress struct {
	UserID     string `firestore:"-" json:"user_id"`
	Experience int    `firestore:"experience" json:"experience"`
	Level      int    `firestore:"level" json:"level"`
}

// PostOrder selects the ordering of a season post listing.
type PostOrder int

const (
	// OrderUnspecified leaves ordering to the store.
	OrderUnspecified PostOrder = iota
	// OrderByLikesDesc orders by likesCount descending.
	OrderByLikesDesc
	// OrderByScoreDesc orders by score descending.
	OrderByScoreDesc
)

// LevelFunc maps cumulative experience to a level.
type LevelFunc func(experience int) int
