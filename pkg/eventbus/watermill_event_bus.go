package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/dukex/flowport/pkg/events"
)

const (
	DefaultMaxRetries    = 3
	DefaultRetryInterval = 100 * time.Millisecond
)

// WatermillEventBus carries every event type on the single events.Topic and routes
// deliveries by the event_type metadata. A delivery whose handler keeps failing is
// retried a bounded number of times and then moved to events.PoisonTopic.
type WatermillEventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     watermill.LoggerAdapter
	retry      middleware.Retry

	mu       sync.RWMutex
	handlers map[events.EventType]EventHandler
}

type Option func(*WatermillEventBus)

func WithLogger(logger watermill.LoggerAdapter) Option {
	return func(eb *WatermillEventBus) {
		eb.logger = logger
	}
}

// WithRetry sets how often a failed delivery is retried before it is poisoned.
func WithRetry(maxRetries int, interval time.Duration) Option {
	return func(eb *WatermillEventBus) {
		eb.retry.MaxRetries = maxRetries
		eb.retry.InitialInterval = interval
	}
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber, opts ...Option) *WatermillEventBus {
	eb := &WatermillEventBus{
		publisher:  pub,
		subscriber: sub,
		logger:     watermill.NopLogger{},
		retry: middleware.Retry{
			MaxRetries:      DefaultMaxRetries,
			InitialInterval: DefaultRetryInterval,
			MaxInterval:     2 * time.Second,
			Multiplier:      2,
		},
		handlers: make(map[events.EventType]EventHandler),
	}

	for _, opt := range opts {
		opt(eb)
	}

	eb.retry.Logger = eb.logger

	return eb
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

// Publish sends event with key as its partition key.
func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.GetType(), err)
	}

	msg := message.NewMessage(eb.GenerateID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

// Subscribe starts delivering messages to the registered handlers until ctx is done.
// Messages without a handler are acked. Undecodable ones and ones whose handler still
// fails after the retries are published to events.PoisonTopic and acked. A message is
// nacked only when the poison publish itself fails.
func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	poison, err := middleware.PoisonQueue(eb.publisher, events.PoisonTopic)
	if err != nil {
		return fmt.Errorf("failed to create poison queue: %w", err)
	}

	process := poison(eb.retry.Middleware(eb.deliver))

	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			_, err := process(msg)
			if err != nil {
				eb.logger.Error("Failed to process event", err, watermill.LogFields{"message_uuid": msg.UUID})
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func (eb *WatermillEventBus) deliver(msg *message.Message) ([]*message.Message, error) {
	eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

	eb.mu.RLock()
	handler, ok := eb.handlers[eventType]
	eb.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	event, err := events.Decode(eventType, msg.Payload)
	if err != nil {
		return nil, err
	}

	return nil, handler(msg.Context(), event)
}

// Handle registers handler for eventType, replacing any previous one.
func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}
