// Package eventbus provides event-driven communication between the deal
// services and the automation engine.
package eventbus

import (
	"context"

	"github.com/dukex/dealflow/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	// Publish sends event keyed by key. Events sharing a key are delivered
	// in publish order.
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives a pointer to the decoded event struct. Returning an
// error asks the transport to redeliver the message.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
