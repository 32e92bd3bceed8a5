package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/flowport/pkg/channels/gochannel"
	"github.com/dukex/flowport/pkg/channels/kafka"
	"github.com/dukex/flowport/pkg/eventbus"
)

// NewEventBus creates the event bus for provider. An empty provider means no bus
// and returns nil.
func NewEventBus(provider string, brokers string, serviceName string, logger *slog.Logger) (eventbus.EventBus, error) {
	watermillLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "":
		return nil, nil
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermillLogger, strings.Split(brokers, ","), serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub, eventbus.WithLogger(watermillLogger)), nil
	case "gochannel":
		pub, sub := gochannel.CreateChannel(watermillLogger, false)

		return eventbus.NewWatermillEventBus(pub, sub, eventbus.WithLogger(watermillLogger)), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
