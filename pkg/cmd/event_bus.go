// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/dealflow/pkg/channels/gochannel"
	"github.com/dukex/dealflow/pkg/channels/kafka"
	"github.com/dukex/dealflow/pkg/eventbus"
)

// NewEventBus creates the event bus for provider. serviceName names the
// Kafka consumer group, so every service gets its own copy of the stream.
func NewEventBus(provider, serviceName string, logger *slog.Logger, opts ...eventbus.Option) eventbus.EventBus {
	opts = append([]eventbus.Option{eventbus.WithLogger(logger)}, opts...)

	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), serviceName)
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub, opts...)
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create in-process pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub, opts...)
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}
