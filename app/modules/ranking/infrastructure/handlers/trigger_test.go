package rankinghandlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	rankingservice "github.com/Black-And-White-Club/photoseason/app/modules/ranking/application"
	rankingqueue "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/queue"
	"github.com/Black-And-White-Club/photoseason/pkg/observability/attr"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type enqueueCall struct {
	kind          rankingservice.JobKind
	at            time.Time
	correlationID string
}

type FakeEnqueuer struct {
	calls []enqueueCall
	err   error
}

func (f *FakeEnqueuer) Enqueue(ctx context.Context, kind rankingservice.JobKind, at time.Time) (*rankingqueue.JobInfo, error) {
	f.calls = append(f.calls, enqueueCall{kind: kind, at: at, correlationID: attr.CorrelationIDFrom(ctx)})
	if f.err != nil {
		return nil, f.err
	}
	return &rankingqueue.JobInfo{ID: int64(len(f.calls)), Kind: kind.String()}, nil
}

func newTestHandlers(q Enqueuer) *TriggerHandlers {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTriggerHandlers(q, logger, noop.NewTracerProvider().Tracer("test"))
}

func TestHandleTrigger(t *testing.T) {
	at := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		payload   string
		wantCalls int
		wantAt    time.Time
	}{
		{name: "empty body runs now", payload: "", wantCalls: 1},
		{name: "empty object runs now", payload: `{}`, wantCalls: 1},
		{name: "scheduled time", payload: `{"scheduled_at":"2025-04-01T00:00:00Z"}`, wantCalls: 1, wantAt: at},
		{name: "malformed body dropped", payload: `{"scheduled_at":`, wantCalls: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &FakeEnqueuer{}
			h := newTestHandlers(q)

			msg := message.NewMessage("msg-1", []byte(tt.payload))
			middleware.SetCorrelationID("corr-1", msg)

			err := h.HandleTrigger(rankingservice.JobSeasonRollover)(msg)
			require.NoError(t, err)
			require.Len(t, q.calls, tt.wantCalls)
			if tt.wantCalls == 0 {
				return
			}
			assert.Equal(t, rankingservice.JobSeasonRollover, q.calls[0].kind)
			assert.True(t, tt.wantAt.Equal(q.calls[0].at), "at = %v, want %v", q.calls[0].at, tt.wantAt)
			assert.Equal(t, "corr-1", q.calls[0].correlationID)
		})
	}
}

func TestHandleTrigger_EnqueueErrorIsReturned(t *testing.T) {
	enqueueErr := errors.New("queue down")
	h := newTestHandlers(&FakeEnqueuer{err: enqueueErr})

	err := h.HandleTrigger(rankingservice.JobRankingCycle)(message.NewMessage("msg-1", nil))
	assert.ErrorIs(t, err, enqueueErr)
}

func TestNewTriggerMessage(t *testing.T) {
	at := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	msg, err := NewTriggerMessage(at)
	require.NoError(t, err)
	assert.JSONEq(t, `{"scheduled_at":"2025-04-01T00:00:00Z"}`, string(msg.Payload))
	assert.Equal(t, msg.UUID, middleware.MessageCorrelationID(msg))

	now, err := NewTriggerMessage(time.Time{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(now.Payload))

	assert.Equal(t, "photoseason.jobs.ranking_cycle", Topic("photoseason.jobs", rankingservice.JobRankingCycle))
}
