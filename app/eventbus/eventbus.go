package eventbus

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/photoseason/config"
	"github.com/Black-And-White-Club/photoseason/pkg/observability/attr"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"
)

// queueGroup makes each trigger reach one replica only.
const queueGroup = "photoseason"

// EventBus carries job triggers over core NATS. Triggers are fire-and-forget;
// durability starts once a trigger is enqueued as a River job.
type EventBus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	Logger     watermill.LoggerAdapter
	logger     *slog.Logger
}

// NewEventBus connects a Watermill publisher and subscriber to NATS.
func NewEventBus(cfg config.NATSConfig, logger *slog.Logger) (*EventBus, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url is empty")
	}

	// Create a Watermill logger that wraps slog
	watermillLogger := watermill.NewSlogLogger(logger)

	// Plain NATS marshalling keeps raw JSON triggers readable
	marshaller := &nats.NATSMarshaler{}
	natsOptions := []nc.Option{
		nc.Name("photoseason"),
		nc.RetryOnFailedConnect(true),
		nc.MaxReconnects(-1),
		nc.ReconnectWait(2 * time.Second),
	}
	jsConfig := nats.JetStreamConfig{Disabled: true}

	publisher, err := nats.NewPublisher(
		nats.PublisherConfig{
			URL:         cfg.URL,
			Marshaler:   marshaller,
			NatsOptions: natsOptions,
			JetStream:   jsConfig,
		},
		watermillLogger,
	)
	if err != nil {
		logger.Error("Failed to create Watermill publisher", attr.Error(err))
		return nil, fmt.Errorf("failed to create Watermill publisher: %w", err)
	}

	subscriber, err := nats.NewSubscriber(
		nats.SubscriberConfig{
			URL:              cfg.URL,
			Unmarshaler:      marshaller,
			NatsOptions:      natsOptions,
			QueueGroupPrefix: queueGroup,
			SubscribersCount: 1,
			JetStream:        jsConfig,
		},
		watermillLogger,
	)
	if err != nil {
		publisher.Close()
		logger.Error("Failed to create Watermill subscriber", attr.Error(err))
		return nil, fmt.Errorf("failed to create Watermill subscriber: %w", err)
	}

	return &EventBus{
		Publisher:  publisher,
		Subscriber: subscriber,
		Logger:     watermillLogger,
		logger:     logger,
	}, nil
}

// Close closes all NATS and Watermill resources.
func (eb *EventBus) Close() error {
	var errs []error
	if eb.Publisher != nil {
		if err := eb.Publisher.Close(); err != nil {
			eb.logger.Error("Error closing NATS publisher", attr.Error(err))
			errs = append(errs, err)
		}
	}
	if eb.Subscriber != nil {
		if err := eb.Subscriber.Close(); err != nil {
			eb.logger.Error("Error closing NATS subscriber", attr.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
