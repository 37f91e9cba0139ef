package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cespare/xxhash/v2"
	"github.com/dukex/dealflow/pkg/events"
	"github.com/dukex/dealflow/pkg/otelhelper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultWorkers    = 4
	workerQueueLength = 64
)

var decoders = map[events.EventType]func() any{
	events.DealChangedEvent:           func() any { return &events.DealChanged{} },
	events.DealDeletionRequestedEvent: func() any { return &events.DealDeletionRequested{} },
	events.TaskCompletedEvent:         func() any { return &events.TaskCompleted{} },
	events.DealStageChangedEvent:      func() any { return &events.DealStageChanged{} },
	events.TaskCreatedEvent:           func() any { return &events.TaskCreated{} },
	events.EmailRequestedEvent:        func() any { return &events.EmailRequested{} },
	events.NotificationRequestedEvent: func() any { return &events.NotificationRequested{} },
	events.AutomationDiagnosticEvent:  func() any { return &events.AutomationDiagnostic{} },
}

// Option configures a WatermillEventBus.
type Option func(*WatermillEventBus)

// WithWorkers sets how many handlers run in parallel. Messages with the same
// key always go to the same worker, so per-key order is kept.
func WithWorkers(workers int) Option {
	return func(eb *WatermillEventBus) {
		if workers > 0 {
			eb.workers = workers
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(eb *WatermillEventBus) {
		eb.logger = logger.With("module", "event_bus")
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(eb *WatermillEventBus) {
		eb.tracer = tracer
	}
}

type WatermillEventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	workers    int
	logger     *slog.Logger
	tracer     trace.Tracer

	mu            sync.RWMutex
	subscriptions map[events.EventType]EventHandler
	running       sync.WaitGroup
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber, opts ...Option) *WatermillEventBus {
	eb := &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		workers:       defaultWorkers,
		logger:        slog.Default().With("module", "event_bus"),
		tracer:        otel.Tracer("github.com/dukex/dealflow/pkg/eventbus"),
		subscriptions: make(map[events.EventType]EventHandler),
	}

	for _, opt := range opts {
		opt(eb)
	}

	return eb
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))
	msg.SetContext(ctx)

	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(msg.Metadata))

	return eb.publisher.Publish(events.Topic, msg)
}

// Subscribe starts consuming the topic. Handlers must be registered first.
func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	queues := make([]chan *message.Message, eb.workers)

	for i := range queues {
		queues[i] = make(chan *message.Message, workerQueueLength)

		eb.running.Add(1)

		go eb.work(ctx, i, queues[i])
	}

	go func() {
		defer func() {
			for _, queue := range queues {
				close(queue)
			}
		}()

		for msg := range messages {
			queues[eb.workerFor(msg.Metadata.Get(events.EventMetadataKey))] <- msg
		}
	}()

	return nil
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	if _, known := decoders[eventType]; !known {
		return fmt.Errorf("unknown event type %q", eventType)
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	err = eb.subscriber.Close()
	eb.running.Wait()

	return err
}

func (eb *WatermillEventBus) workerFor(key string) int {
	return int(xxhash.Sum64String(key) % uint64(eb.workers))
}

func (eb *WatermillEventBus) work(ctx context.Context, worker int, queue <-chan *message.Message) {
	defer eb.running.Done()

	for msg := range queue {
		eb.process(ctx, worker, msg)
	}
}

func (eb *WatermillEventBus) process(ctx context.Context, worker int, msg *message.Message) {
	eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))
	key := msg.Metadata.Get(events.EventMetadataKey)

	eb.mu.RLock()
	handler, exists := eb.subscriptions[eventType]
	eb.mu.RUnlock()

	if !exists {
		msg.Ack()

		return
	}

	event := decoders[eventType]()

	if err := json.Unmarshal(msg.Payload, event); err != nil {
		// Redelivery cannot fix a malformed payload.
		eb.logger.ErrorContext(ctx, "Dropping undecodable message",
			"message_id", msg.UUID,
			"event_type", eventType,
			"error", err)
		msg.Ack()

		return
	}

	msgCtx := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Metadata))

	msgCtx, span := otelhelper.StartSpan(msgCtx, eb.tracer, "eventbus.handle",
		attribute.String(otelhelper.DealIDKey, key),
		attribute.String(otelhelper.EventTypeKey, string(eventType)),
		attribute.Int(otelhelper.WorkerIDKey, worker),
	)
	defer span.End()

	if err := handler(msgCtx, event); err != nil {
		otelhelper.SetError(span, err)
		eb.logger.WarnContext(msgCtx, "Handler failed, message will be redelivered",
			"message_id", msg.UUID,
			"event_type", eventType,
			"key", key,
			"error", err)
		msg.Nack()

		return
	}

	msg.Ack()
}
