package rankinghandlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	rankingservice "github.com/Black-And-White-Club/photoseason/app/modules/ranking/application"
	rankingqueue "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/queue"
	"github.com/Black-And-White-Club/photoseason/pkg/observability/attr"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TriggerPayload is the body of a job trigger. A missing or empty body runs
// the job now.
type TriggerPayload struct {
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// Enqueuer queues ranking jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind rankingservice.JobKind, at time.Time) (*rankingqueue.JobInfo, error)
}

// TriggerHandlers turns trigger messages into queued jobs.
type TriggerHandlers struct {
	queue  Enqueuer
	logger *slog.Logger
	tracer trace.Tracer
}

// NewTriggerHandlers creates a new TriggerHandlers instance.
func NewTriggerHandlers(queue Enqueuer, logger *slog.Logger, tracer trace.Tracer) *TriggerHandlers {
	return &TriggerHandlers{queue: queue, logger: logger, tracer: tracer}
}

// Topic returns the trigger topic for a job kind.
func Topic(prefix string, kind rankingservice.JobKind) string {
	return prefix + "." + kind.String()
}

// NewTriggerMessage builds a trigger message. A zero at means now.
func NewTriggerMessage(at time.Time) (*message.Message, error) {
	var payload TriggerPayload
	if !at.IsZero() {
		payload.ScheduledAt = &at
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal trigger payload: %w", err)
	}
	msg := message.NewMessage(uuid.NewString(), body)
	middleware.SetCorrelationID(msg.UUID, msg)
	return msg, nil
}

// HandleTrigger returns the handler for one job kind. Malformed payloads are
// logged and acknowledged since redelivery cannot fix them. Enqueue failures
// are returned so the router retries them.
func (h *TriggerHandlers) HandleTrigger(kind rankingservice.JobKind) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		ctx := msg.Context()
		if id := middleware.MessageCorrelationID(msg); id != "" {
			ctx = attr.WithCorrelationID(ctx, id)
		}
		ctx, span := h.tracer.Start(ctx, "ranking.trigger", trace.WithAttributes(
			attribute.String("job", kind.String()),
			attribute.String("message_id", msg.UUID),
		))
		defer span.End()

		var payload TriggerPayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				h.logger.WarnContext(ctx, "Dropping malformed job trigger",
					attr.Job(kind.String()),
					attr.String("message_id", msg.UUID),
					attr.ExtractCorrelationID(ctx),
					attr.Error(err),
				)
				return nil
			}
		}

		var at time.Time
		if payload.ScheduledAt != nil {
			at = *payload.ScheduledAt
		}

		info, err := h.queue.Enqueue(ctx, kind, at)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("enqueue %s from trigger: %w", kind, err)
		}

		h.logger.InfoContext(ctx, "Job trigger enqueued",
			attr.Job(kind.String()),
			attr.Int64("job_id", info.ID),
			attr.String("message_id", msg.UUID),
			attr.ExtractCorrelationID(ctx),
		)
		return nil
	}
}
