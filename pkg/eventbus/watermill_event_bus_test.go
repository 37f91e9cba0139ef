package eventbus_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/dukex/dealflow/pkg/eventbus"
	"github.com/dukex/dealflow/pkg/events"
	"github.com/dukex/dealflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T, opts ...eventbus.Option) *eventbus.WatermillEventBus {
	t.Helper()

	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 100}, watermill.NopLogger{})
	bus := eventbus.NewWatermillEventBus(pubSub, pubSub, opts...)

	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func dealChanged(dealID, stage string) events.DealChanged {
	return events.DealChanged{
		BaseEvent: events.NewBaseEvent(events.DealChangedEvent, dealID),
		Change: models.DealChangeEvent{
			After: models.Deal{ID: dealID, Stage: stage},
			Cause: models.ManualCause(),
		},
	}
}

func TestWatermillEventBus_DeliversDecodedEvents(t *testing.T) {
	t.Parallel()

	bus := newBus(t)
	received := make(chan *events.DealChanged, 1)

	require.NoError(t, bus.Handle(events.DealChangedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.DealChanged)

		return nil
	}))
	require.NoError(t, bus.Subscribe(context.Background()))

	require.NoError(t, bus.Publish(context.Background(), "deal-1", dealChanged("deal-1", "Qualified")))

	select {
	case event := <-received:
		assert.Equal(t, "deal-1", event.DealID)
		assert.Equal(t, "Qualified", event.Change.After.Stage)
		assert.Equal(t, models.ManualCause(), event.Change.Cause)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_KeepsOrderPerKey(t *testing.T) {
	t.Parallel()

	bus := newBus(t, eventbus.WithWorkers(3))

	var (
		mu     sync.Mutex
		seen   = map[string][]string{}
		wg     sync.WaitGroup
		deals  = []string{"deal-a", "deal-b", "deal-c", "deal-d"}
		stages = 10
	)

	wg.Add(len(deals) * stages)

	require.NoError(t, bus.Handle(events.DealChangedEvent, func(_ context.Context, event any) error {
		changed := event.(*events.DealChanged)

		mu.Lock()
		seen[changed.DealID] = append(seen[changed.DealID], changed.Change.After.Stage)
		mu.Unlock()

		wg.Done()

		return nil
	}))
	require.NoError(t, bus.Subscribe(context.Background()))

	for i := range stages {
		for _, dealID := range deals {
			require.NoError(t, bus.Publish(context.Background(), dealID, dealChanged(dealID, fmt.Sprintf("stage-%02d", i))))
		}
	}

	wg.Wait()

	for _, dealID := range deals {
		require.Len(t, seen[dealID], stages)

		for i, stage := range seen[dealID] {
			assert.Equal(t, fmt.Sprintf("stage-%02d", i), stage, "deal %s out of order", dealID)
		}
	}
}

func TestWatermillEventBus_RedeliversOnHandlerError(t *testing.T) {
	t.Parallel()

	bus := newBus(t)

	var (
		mu       sync.Mutex
		attempts int
	)

	done := make(chan struct{})

	require.NoError(t, bus.Handle(events.TaskCompletedEvent, func(_ context.Context, _ any) error {
		mu.Lock()
		defer mu.Unlock()

		attempts++
		if attempts == 1 {
			return errors.New("store unavailable")
		}

		close(done)

		return nil
	}))
	require.NoError(t, bus.Subscribe(context.Background()))

	require.NoError(t, bus.Publish(context.Background(), "deal-1", events.TaskCompleted{
		BaseEvent: events.NewBaseEvent(events.TaskCompletedEvent, "deal-1"),
		TaskID:    "task-1",
		TaskType:  "call",
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not redelivered")
	}

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, 2, attempts)
}

func TestWatermillEventBus_SkipsEventsWithoutHandler(t *testing.T) {
	t.Parallel()

	bus := newBus(t)
	received := make(chan string, 1)

	require.NoError(t, bus.Handle(events.DealChangedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.DealChanged).DealID

		return nil
	}))
	require.NoError(t, bus.Subscribe(context.Background()))

	require.NoError(t, bus.Publish(context.Background(), "deal-1", events.AutomationDiagnostic{
		BaseEvent: events.NewBaseEvent(events.AutomationDiagnosticEvent, "deal-1"),
	}))
	require.NoError(t, bus.Publish(context.Background(), "deal-2", dealChanged("deal-2", "Won")))

	select {
	case dealID := <-received:
		assert.Equal(t, "deal-2", dealID)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_RejectsUnknownEventType(t *testing.T) {
	t.Parallel()

	bus := newBus(t)

	err := bus.Handle("deal.archived", func(context.Context, any) error { return nil })
	assert.Error(t, err)
}
