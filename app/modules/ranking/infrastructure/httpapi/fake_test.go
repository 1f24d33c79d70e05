package rankinghttp

import (
	"context"
	"fmt"
	"time"

	rankingservice "github.com/Black-And-White-Club/photoseason/app/modules/ranking/application"
	rankingdomain "github.com/Black-And-White-Club/photoseason/app/modules/ranking/domain"
	rankingqueue "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/queue"
	rankingdb "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/repositories"
)

// FakeQueries is a programmable fake for Queries. Unset funcs report not found.
type FakeQueries struct {
	GetCurrentSeasonFunc func(ctx context.Context) (*rankingdb.Season, error)
	GetRegionTopsFunc    func(ctx context.Context, seasonID rankingdomain.SeasonID) ([]rankingdb.RegionTop, error)
	GetSeasonRankFunc    func(ctx context.Context, userID string, seasonID rankingdomain.SeasonID) (*rankingdb.SeasonRank, error)
	GetUserProgressFunc  func(ctx context.Context, userID string) (*rankingservice.ProgressView, error)
	GetTopUsersFunc      func(ctx context.Context, limit int) ([]rankingservice.ExperienceRank, error)
}

func (f *FakeQueries) GetCurrentSeason(ctx context.Context) (*rankingdb.Season, error) {
	if f.GetCurrentSeasonFunc != nil {
		return f.GetCurrentSeasonFunc(ctx)
	}
	return nil, rankingservice.ErrNoActiveSeason
}

func (f *FakeQueries) GetRegionTops(ctx context.Context, seasonID rankingdomain.SeasonID) ([]rankingdb.RegionTop, error) {
	if f.GetRegionTopsFunc != nil {
		return f.GetRegionTopsFunc(ctx, seasonID)
	}
	return nil, nil
}

func (f *FakeQueries) GetSeasonRank(ctx context.Context, userID string, seasonID rankingdomain.SeasonID) (*rankingdb.SeasonRank, error) {
	if f.GetSeasonRankFunc != nil {
		return f.GetSeasonRankFunc(ctx, userID, seasonID)
	}
	return nil, fmt.Errorf("rankingdb.GetSeasonRank: %w", rankingdb.ErrNotFound)
}

func (f *FakeQueries) GetUserProgress(ctx context.Context, userID string) (*rankingservice.ProgressView, error) {
	if f.GetUserProgressFunc != nil {
		return f.GetUserProgressFunc(ctx, userID)
	}
	return nil, fmt.Errorf("rankingdb.GetUserProgress: %w", rankingdb.ErrNotFound)
}

func (f *FakeQueries) GetTopUsers(ctx context.Context, limit int) ([]rankingservice.ExperienceRank, error) {
	if f.GetTopUsersFunc != nil {
		return f.GetTopUsersFunc(ctx, limit)
	}
	return nil, nil
}

type enqueued struct {
	kind rankingservice.JobKind
	at   time.Time
}

// FakeJobQueue records enqueues and serves a fixed job list.
type FakeJobQueue struct {
	enqueued  []enqueued
	listLimit int
	jobs      []rankingqueue.JobInfo
	err       error
}

func (f *FakeJobQueue) Enqueue(_ context.Context, kind rankingservice.JobKind, at time.Time) (*rankingqueue.JobInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.enqueued = append(f.enqueued, enqueued{kind: kind, at: at})
	return &rankingqueue.JobInfo{ID: int64(len(f.enqueued)), Kind: kind.String(), State: "available"}, nil
}

func (f *FakeJobQueue) ListJobs(_ context.Context, limit int) ([]rankingqueue.JobInfo, error) {
	f.listLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.jobs, nil
}
