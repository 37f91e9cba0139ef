package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/dealflow/pkg/automation"
	"github.com/dukex/dealflow/pkg/dispatch"
	"github.com/dukex/dealflow/pkg/eventbus"
	"github.com/dukex/dealflow/pkg/events"
	"github.com/dukex/dealflow/pkg/persistence"
	"github.com/dukex/dealflow/pkg/sweep"
	"go.opentelemetry.io/otel/trace"
)

const shutdownTimeout = 30 * time.Second

// ErrUnexpectedEvent is logged when a handler receives a payload of the wrong type.
var ErrUnexpectedEvent = errors.New("unexpected event payload")

// Config holds the tunables of the engine.
type Config struct {
	MaxHops       int
	SweepSchedule string
	Tracer        trace.Tracer
}

// Engine consumes deal change, deletion and task completion events and
// runs the pipeline automations for them. It also schedules the age sweep.
type Engine struct {
	eventBus    eventbus.EventBus
	coordinator *automation.Coordinator
	sweeper     *sweep.Sweeper
	logger      *slog.Logger
}

// NewEngine wires the coordinator to store and to the event bus, which
// carries both the input events and the side effects.
func NewEngine(
	store persistence.Persistence,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
	config Config,
) *Engine {
	opts := []automation.Option{
		automation.WithMaxHops(config.MaxHops),
		automation.WithReporter(dispatch.NewBusReporter(eventBus, logger)),
	}

	if config.Tracer != nil {
		opts = append(opts, automation.WithTracer(config.Tracer))
	}

	coordinator := automation.NewCoordinator(
		store,
		dispatch.NewTaskStore(store.TaskRepository(), eventBus, logger),
		dispatch.NewBusSender(eventBus, logger),
		logger,
		opts...,
	)

	sweepOpts := []sweep.Option{}
	if config.SweepSchedule != "" {
		sweepOpts = append(sweepOpts, sweep.WithSchedule(config.SweepSchedule))
	}

	return &Engine{
		eventBus:    eventBus,
		coordinator: coordinator,
		sweeper:     sweep.NewSweeper(store, coordinator, logger, sweepOpts...),
		logger:      logger.With("module", "engine"),
	}
}

// Start runs the engine until SIGINT or SIGTERM. SIGHUP triggers an
// immediate age sweep.
func (e *Engine) Start(ctx context.Context) error {
	eCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.logger.InfoContext(ctx, "Starting engine")

	e.handleSignals(eCtx, cancel)

	if err := e.Run(eCtx); err != nil {
		return err
	}

	<-eCtx.Done()
	e.logger.InfoContext(ctx, "Engine context cancelled, stopping...")

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer stop()

	return e.Shutdown(shutdownCtx)
}

// Run registers the event handlers, starts consuming and schedules the
// age sweep. It returns once everything is running.
func (e *Engine) Run(ctx context.Context) error {
	handlers := map[events.EventType]eventbus.EventHandler{
		events.DealChangedEvent:           e.onDealChanged,
		events.DealDeletionRequestedEvent: e.onDeletionRequested,
		events.TaskCompletedEvent:         e.onTaskCompleted,
	}

	for eventType, handler := range handlers {
		if err := e.eventBus.Handle(eventType, handler); err != nil {
			return fmt.Errorf("failed to register %s handler: %w", eventType, err)
		}
	}

	if err := e.eventBus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}

	if err := e.sweeper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start age sweeper: %w", err)
	}

	e.logger.InfoContext(ctx, "Engine running - waiting for events...")

	return nil
}

// Shutdown stops the sweeper and waits for side effects still being dispatched.
func (e *Engine) Shutdown(ctx context.Context) error {
	err := e.sweeper.Stop(ctx)

	e.coordinator.Wait()
	e.logger.InfoContext(ctx, "Engine stopped")

	return err
}

func (e *Engine) handleSignals(ctx context.Context, cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)

		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-signals:
				e.logger.InfoContext(ctx, "Received signal", "signal", sig)

				switch sig {
				case syscall.SIGHUP:
					e.sweepNow(ctx)
				default:
					e.logger.InfoContext(ctx, "Shutting down gracefully...")
					cancel()

					return
				}
			}
		}
	}()
}

func (e *Engine) sweepNow(ctx context.Context) {
	swept, err := e.sweeper.Sweep(ctx)
	if err != nil {
		e.logger.ErrorContext(ctx, "Manual age sweep finished with errors", "deals", swept, "error", err)

		return
	}

	e.logger.InfoContext(ctx, "Manual age sweep finished", "deals", swept)
}

func (e *Engine) onDealChanged(ctx context.Context, event any) error {
	changed, ok := event.(*events.DealChanged)
	if !ok {
		return e.unexpected(ctx, events.DealChangedEvent, event)
	}

	outcome, err := e.coordinator.HandleEvent(ctx, changed.Change)

	return e.settle(ctx, events.DealChangedEvent, changed.DealID, outcome, err)
}

func (e *Engine) onTaskCompleted(ctx context.Context, event any) error {
	completed, ok := event.(*events.TaskCompleted)
	if !ok {
		return e.unexpected(ctx, events.TaskCompletedEvent, event)
	}

	outcome, err := e.coordinator.HandleTaskCompleted(ctx, completed.DealID, completed.TaskType)

	return e.settle(ctx, events.TaskCompletedEvent, completed.DealID, outcome, err)
}

func (e *Engine) onDeletionRequested(ctx context.Context, event any) error {
	requested, ok := event.(*events.DealDeletionRequested)
	if !ok {
		return e.unexpected(ctx, events.DealDeletionRequestedEvent, event)
	}

	err := e.coordinator.HandleDeletion(ctx, requested.DealID)

	return e.settle(ctx, events.DealDeletionRequestedEvent, requested.DealID, nil, err)
}

// settle decides whether a handler result is acked or redelivered. Store
// failures are redelivered; events that can never succeed are dropped.
func (e *Engine) settle(ctx context.Context, eventType events.EventType, dealID string, outcome *automation.Outcome, err error) error {
	logger := e.logger.With("event_type", eventType, "deal_id", dealID)

	if errors.Is(err, automation.ErrMissingDealID) {
		logger.ErrorContext(ctx, "Dropping event without deal id")

		return nil
	}

	if err != nil {
		return err
	}

	if outcome == nil {
		return nil
	}

	if outcome.Skipped {
		logger.DebugContext(ctx, "Deal no longer exists, event skipped")

		return nil
	}

	logger.DebugContext(ctx, "Event processed",
		"hops", outcome.Hops,
		"saves", outcome.Saves,
		"fired", outcome.Fired,
		"side_effects", len(outcome.SideEffects),
		"failures", len(outcome.Failures),
		"cycle_detected", outcome.CycleDetected)

	return nil
}

func (e *Engine) unexpected(ctx context.Context, eventType events.EventType, event any) error {
	e.logger.ErrorContext(ctx, "Dropping event",
		"event_type", eventType,
		"error", fmt.Errorf("%w: %T", ErrUnexpectedEvent, event))

	return nil
}
