package rankingrouter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	rankingservice "github.com/Black-And-White-Club/photoseason/app/modules/ranking/application"
	rankinghandlers "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/handlers"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// PoisonTopicSuffix names the topic that receives triggers which kept failing.
const PoisonTopicSuffix = "failed"

// TriggerRouter routes job trigger messages to the queue.
type TriggerRouter struct {
	logger         *slog.Logger
	Router         *message.Router
	subscriber     message.Subscriber
	publisher      message.Publisher
	topicPrefix    string
	metricsBuilder *metrics.PrometheusMetricsBuilder
}

// NewTriggerRouter creates a new TriggerRouter. A nil registry disables
// router metrics; a nil publisher disables the poison queue.
func NewTriggerRouter(
	logger *slog.Logger,
	router *message.Router,
	subscriber message.Subscriber,
	publisher message.Publisher,
	topicPrefix string,
	registry prometheus.Registerer,
) *TriggerRouter {
	var metricsBuilder *metrics.PrometheusMetricsBuilder
	if registry != nil {
		b := metrics.NewPrometheusMetricsBuilder(registry, "", "")
		metricsBuilder = &b
	}

	return &TriggerRouter{
		logger:         logger,
		Router:         router,
		subscriber:     subscriber,
		publisher:      publisher,
		topicPrefix:    topicPrefix,
		metricsBuilder: metricsBuilder,
	}
}

// Configure sets up the router with the necessary handlers and middleware.
func (r *TriggerRouter) Configure(_ context.Context, handlers *rankinghandlers.TriggerHandlers) error {
	if r.metricsBuilder != nil {
		r.metricsBuilder.AddPrometheusRouterMetrics(r.Router)
	}

	// poison sits outside retry so it only sees triggers that exhausted it
	r.Router.AddMiddleware(middleware.CorrelationID)
	if r.publisher != nil {
		poison, err := middleware.PoisonQueue(r.publisher, r.PoisonTopic())
		if err != nil {
			return fmt.Errorf("failed to create poison queue: %w", err)
		}
		r.Router.AddMiddleware(poison)
	}
	r.Router.AddMiddleware(
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      2,
			Logger:          watermill.NewSlogLogger(r.logger),
		}.Middleware,
		middleware.Recoverer,
	)

	r.registerHandlers(handlers)
	return nil
}

// PoisonTopic returns the topic failed triggers are forwarded to.
func (r *TriggerRouter) PoisonTopic() string {
	return r.topicPrefix + "." + PoisonTopicSuffix
}

func (r *TriggerRouter) registerHandlers(handlers *rankinghandlers.TriggerHandlers) {
	for _, kind := range rankingservice.JobKinds() {
		topic := rankinghandlers.Topic(r.topicPrefix, kind)
		r.Router.AddNoPublisherHandler(
			"ranking.trigger."+kind.String(),
			topic,
			r.subscriber,
			handlers.HandleTrigger(kind),
		)
		r.logger.Info("Registered job trigger", slog.String("topic", topic))
	}
}

// Close stops the router.
func (r *TriggerRouter) Close() error {
	return r.Router.Close()
}
