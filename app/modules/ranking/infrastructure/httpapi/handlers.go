package rankinghttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	rankingservice "github.com/Black-And-White-Club/photoseason/app/modules/ranking/application"
	rankingdomain "github.com/Black-And-White-Club/photoseason/app/modules/ranking/domain"
	rankingqueue "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/queue"
	rankingdb "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/repositories"
	"github.com/Black-And-White-Club/photoseason/pkg/observability/attr"
	"github.com/go-chi/chi/v5"
)

const (
	defaultJobListLimit = 50
	maxJobListLimit     = 500
	defaultTopUsers     = 100
)

// Queries is the read side of the ranking service.
type Queries interface {
	GetCurrentSeason(ctx context.Context) (*rankingdb.Season, error)
	GetRegionTops(ctx context.Context, seasonID rankingdomain.SeasonID) ([]rankingdb.RegionTop, error)
	GetSeasonRank(ctx context.Context, userID string, seasonID rankingdomain.SeasonID) (*rankingdb.SeasonRank, error)
	GetUserProgress(ctx context.Context, userID string) (*rankingservice.ProgressView, error)
	GetTopUsers(ctx context.Context, limit int) ([]rankingservice.ExperienceRank, error)
}

// JobQueue is what the admin routes need from the job queue.
type JobQueue interface {
	Enqueue(ctx context.Context, kind rankingservice.JobKind, at time.Time) (*rankingqueue.JobInfo, error)
	ListJobs(ctx context.Context, limit int) ([]rankingqueue.JobInfo, error)
}

// Handlers serves the ranking read API and the admin job API. A nil queue
// answers admin routes with 503.
type Handlers struct {
	queries Queries
	queue   JobQueue
	logger  *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(queries Queries, queue JobQueue, logger *slog.Logger) *Handlers {
	return &Handlers{queries: queries, queue: queue, logger: logger}
}

func (h *Handlers) HandleGetCurrentSeason(w http.ResponseWriter, r *http.Request) {
	season, err := h.queries.GetCurrentSeason(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "get current season", err)
		return
	}
	writeJSON(w, http.StatusOK, season)
}

func (h *Handlers) HandleGetRegionTops(w http.ResponseWriter, r *http.Request) {
	seasonID, ok := seasonParam(w, r)
	if !ok {
		return
	}

	tops, err := h.queries.GetRegionTops(r.Context(), seasonID)
	if err != nil {
		h.writeServiceError(w, r, "get region tops", err)
		return
	}
	if tops == nil {
		tops = []rankingdb.RegionTop{}
	}
	writeJSON(w, http.StatusOK, tops)
}

func (h *Handlers) HandleGetSeasonRank(w http.ResponseWriter, r *http.Request) {
	seasonID, ok := seasonParam(w, r)
	if !ok {
		return
	}
	userID := chi.URLParam(r, "userID")

	rank, err := h.queries.GetSeasonRank(r.Context(), userID, seasonID)
	if err != nil {
		h.writeServiceError(w, r, "get season rank", err)
		return
	}
	if rank.UserID == "" {
		rank.UserID = userID
	}
	writeJSON(w, http.StatusOK, rank)
}

func (h *Handlers) HandleGetUserProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.queries.GetUserProgress(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, r, "get user progress", err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// HandleGetTopUsers serves the experience leaderboard. "by" accepts only
// "experience"; "limit" defaults to 100.
func (h *Handlers) HandleGetTopUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if by := query.Get("by"); by != "" && by != "experience" {
		writeError(w, http.StatusBadRequest, "by must be experience")
		return
	}
	limit, ok := limitParam(w, r, defaultTopUsers, rankingservice.MaxTopUsers)
	if !ok {
		return
	}

	ranks, err := h.queries.GetTopUsers(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, "get top users", err)
		return
	}
	if ranks == nil {
		ranks = []rankingservice.ExperienceRank{}
	}
	writeJSON(w, http.StatusOK, ranks)
}

// HandleEnqueueJob queues the job named in the path. An optional RFC 3339
// "at" query parameter schedules it; the rollover uses it as its clock.
func (h *Handlers) HandleEnqueueJob(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "job queue not configured")
		return
	}

	kind, err := rankingservice.ParseJobKind(chi.URLParam(r, "job"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var at time.Time
	if v := r.URL.Query().Get("at"); v != "" {
		at, err = time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "at must be an RFC 3339 time")
			return
		}
	}

	ctx := r.Context()
	info, err := h.queue.Enqueue(ctx, kind, at)
	if err != nil {
		h.writeServiceError(w, r, "enqueue job", err)
		return
	}

	subject := ""
	if claims, ok := ClaimsFrom(ctx); ok {
		subject = claims.Subject
	}
	h.logger.InfoContext(ctx, "Job enqueued via admin API",
		attr.Job(kind.String()),
		attr.Int64("job_id", info.ID),
		attr.String("subject", subject),
	)
	writeJSON(w, http.StatusAccepted, info)
}

func (h *Handlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "job queue not configured")
		return
	}

	limit, ok := limitParam(w, r, defaultJobListLimit, maxJobListLimit)
	if !ok {
		return
	}

	jobs, err := h.queue.ListJobs(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, "list jobs", err)
		return
	}
	if jobs == nil {
		jobs = []rankingqueue.JobInfo{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

// limitParam reads the optional "limit" query parameter within 1..maxLimit.
func limitParam(w http.ResponseWriter, r *http.Request, def, maxLimit int) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > maxLimit {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxLimit))
		return 0, false
	}
	return n, true
}

func seasonParam(w http.ResponseWriter, r *http.Request) (rankingdomain.SeasonID, bool) {
	raw := chi.URLParam(r, "seasonID")
	if _, err := rankingdomain.ParseSeasonID(raw); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return rankingdomain.SeasonID(raw), true
}

func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, rankingservice.ErrNoActiveSeason):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, rankingdb.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, rankingservice.ErrUnknownJob):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "HTTP request failed",
			attr.String("operation", op),
			attr.String("path", r.URL.Path),
			attr.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
