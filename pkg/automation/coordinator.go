package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/dealflow/pkg/models"
	"github.com/dukex/dealflow/pkg/otelhelper"
	"github.com/dukex/dealflow/pkg/persistence"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxHops bounds the automation-caused events processed per originating change.
const DefaultMaxHops = 10

const defaultSweepParallelism = 8

// TaskStore creates tasks requested by CreateTask actions.
type TaskStore interface {
	CreateTask(ctx context.Context, descriptor models.TaskDescriptor) (string, error)
}

// Sender delivers email and notification side effects.
type Sender interface {
	Send(ctx context.Context, effect models.SideEffect) error
}

// Reporter announces persisted stage changes and configuration problems.
type Reporter interface {
	StageChanged(ctx context.Context, event models.DealChangeEvent) error
	Diagnose(ctx context.Context, diagnostic models.Diagnostic) error
}

// Outcome summarizes everything one originating event caused.
type Outcome struct {
	DealID string
	// Skipped is set when the deal no longer existed once its slot was acquired.
	Skipped       bool
	Hops          int
	Saves         int
	Fired         []string
	SideEffects   []models.SideEffect
	Failures      []*ActionError
	CycleDetected bool
	Deal          *models.Deal
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMaxHops overrides the re-entrancy bound. Values below zero are ignored.
func WithMaxHops(maxHops int) Option {
	return func(c *Coordinator) {
		if maxHops >= 0 {
			c.maxHops = maxHops
		}
	}
}

// WithClock overrides the time source used by age triggers and due dates.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

func WithReporter(reporter Reporter) Option {
	return func(c *Coordinator) {
		c.reporter = reporter
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Coordinator) {
		c.tracer = tracer
	}
}

// Coordinator drives trigger, condition and action evaluation for deal
// change events. At most one evaluation runs per deal at any time.
type Coordinator struct {
	deals     persistence.DealRepository
	pipelines persistence.PipelineRepository
	markers   persistence.AgeMarkerRepository
	tasks     TaskStore
	sender    Sender
	reporter  Reporter
	tracer    trace.Tracer
	logger    *slog.Logger
	slots     *dealSlots
	maxHops   int
	now       func() time.Time

	dispatching sync.WaitGroup
}

// NewCoordinator creates a coordinator over the repositories of store.
func NewCoordinator(
	store persistence.Persistence,
	tasks TaskStore,
	sender Sender,
	logger *slog.Logger,
	opts ...Option,
) *Coordinator {
	c := &Coordinator{
		deals:     store.DealRepository(),
		pipelines: store.PipelineRepository(),
		markers:   store.AgeMarkerRepository(),
		tasks:     tasks,
		sender:    sender,
		reporter:  nopReporter{},
		tracer:    otel.Tracer("github.com/dukex/dealflow/pkg/automation"),
		logger:    logger.With("module", "automation_coordinator"),
		slots:     newDealSlots(),
		maxHops:   DefaultMaxHops,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// HandleEvent evaluates the automations of the deal pipeline against event.
// The event After is replaced by the deal as persisted when the slot is
// acquired, so queued events never see stale state.
func (c *Coordinator) HandleEvent(ctx context.Context, event models.DealChangeEvent) (*Outcome, error) {
	dealID := event.DealID()
	if dealID == "" {
		return nil, ErrMissingDealID
	}

	return c.withSlot(ctx, dealID, func(current *models.Deal) models.DealChangeEvent {
		event.After = *current

		return event
	})
}

// HandleTaskCompleted evaluates TaskCompleted automations for a finished task of the deal.
func (c *Coordinator) HandleTaskCompleted(ctx context.Context, dealID, taskType string) (*Outcome, error) {
	return c.withSlot(ctx, dealID, c.signal(models.TaskCompletedCause(taskType)))
}

// HandleAgeSweep evaluates DealAge automations for each deal. Deals run in
// parallel; failures of one deal do not stop the others.
func (c *Coordinator) HandleAgeSweep(ctx context.Context, dealIDs []string) error {
	var (
		mu   sync.Mutex
		errs []error
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(defaultSweepParallelism)

	for _, dealID := range dealIDs {
		group.Go(func() error {
			_, err := c.withSlot(groupCtx, dealID, c.signal(models.AgeSweepCause()))
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}

			return nil
		})
	}

	_ = group.Wait()

	return errors.Join(errs...)
}

// HandleDeletion deletes the deal once no evaluation for it is in flight.
// Deleting a deal that does not exist is a no-op.
func (c *Coordinator) HandleDeletion(ctx context.Context, dealID string) error {
	if dealID == "" {
		return ErrMissingDealID
	}

	release, err := c.slots.Acquire(ctx, dealID)
	if err != nil {
		return err
	}
	defer release()

	logger := c.logger.With("deal_id", dealID)

	_, err = c.deals.GetByID(ctx, dealID)
	if persistence.IsDealNotFound(err) {
		logger.DebugContext(ctx, "Deal already gone, nothing to delete")

		return nil
	}

	if err != nil {
		return newStoreError("GetByID", dealID, err)
	}

	if err := c.deals.Delete(ctx, dealID); err != nil {
		return newStoreError("Delete", dealID, err)
	}

	if c.markers != nil {
		if err := c.markers.ClearDeal(ctx, dealID); err != nil {
			logger.WarnContext(ctx, "Failed to clear age markers", "error", err)
		}
	}

	logger.InfoContext(ctx, "Deal deleted")

	return nil
}

// Wait blocks until every side-effect dispatch started so far has finished.
func (c *Coordinator) Wait() {
	c.dispatching.Wait()
}

// signal builds an event for a change that did not touch deal fields.
func (c *Coordinator) signal(cause models.Cause) func(current *models.Deal) models.DealChangeEvent {
	return func(current *models.Deal) models.DealChangeEvent {
		return models.DealChangeEvent{
			ID:         uuid.NewString(),
			Before:     current.Clone(),
			After:      *current,
			Cause:      cause,
			OccurredAt: c.now(),
		}
	}
}

func (c *Coordinator) withSlot(
	ctx context.Context,
	dealID string,
	build func(current *models.Deal) models.DealChangeEvent,
) (*Outcome, error) {
	release, err := c.slots.Acquire(ctx, dealID)
	if err != nil {
		return nil, err
	}
	defer release()

	return c.evaluate(ctx, dealID, build)
}

// evaluate runs passes until the deal stops changing or the hop bound is
// reached. It must be called with the deal slot held.
func (c *Coordinator) evaluate(
	ctx context.Context,
	dealID string,
	build func(current *models.Deal) models.DealChangeEvent,
) (*Outcome, error) {
	outcome := &Outcome{DealID: dealID}
	logger := c.logger.With("deal_id", dealID)

	current, err := c.deals.GetByID(ctx, dealID)
	if persistence.IsDealNotFound(err) {
		logger.InfoContext(ctx, "Deal no longer exists, skipping evaluation")

		outcome.Skipped = true

		return outcome, nil
	}

	if err != nil {
		return outcome, newStoreError("GetByID", dealID, err)
	}

	pipeline, err := c.pipelines.GetPipeline(ctx, current.AccountID, current.PipelineID)
	if persistence.IsPipelineNotFound(err) {
		logger.WarnContext(ctx, "Pipeline not found, no automations to run",
			"account_id", current.AccountID,
			"pipeline_id", current.PipelineID)

		outcome.Deal = current

		return outcome, nil
	}

	if err != nil {
		return outcome, newStoreError("GetPipeline", dealID, err)
	}

	event := build(current)

	for {
		next, err := c.pass(ctx, pipeline, event, outcome)
		if err != nil {
			return outcome, err
		}

		if next == nil {
			return outcome, nil
		}

		if outcome.Hops >= c.maxHops {
			c.cycleDetected(ctx, pipeline, *next, outcome)

			return outcome, nil
		}

		outcome.Hops++
		event = *next
	}
}

// pass evaluates one event. It returns the chained event when the persisted
// deal changed a tracked field.
func (c *Coordinator) pass(
	ctx context.Context,
	pipeline *models.Pipeline,
	event models.DealChangeEvent,
	outcome *Outcome,
) (*models.DealChangeEvent, error) {
	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "automation.pass",
		attribute.String(otelhelper.DealIDKey, event.DealID()),
		attribute.String(otelhelper.DealStageKey, event.After.Stage),
		attribute.String(otelhelper.AccountIDKey, pipeline.AccountID),
		attribute.String(otelhelper.PipelineIDKey, pipeline.ID),
		attribute.String(otelhelper.EventIDKey, event.ID),
		attribute.String(otelhelper.EventCauseKey, event.Cause.String()),
		attribute.Int(otelhelper.HopKey, outcome.Hops),
	)
	defer span.End()

	logger := c.logger.With("deal_id", event.DealID(), "cause", event.Cause.String(), "hop", outcome.Hops)
	now := c.now()
	current := event.After
	working := current.Clone()
	fieldTypes := pipeline.FieldTypes()

	var (
		effects    []models.SideEffect
		claimed    []string
		lastWriter string
	)

	for _, automation := range pipeline.EnabledAutomations() {
		if !Matches(automation.Trigger, event, now) {
			continue
		}

		if !Evaluate(automation.Conditions, &event.After, fieldTypes) {
			logger.DebugContext(ctx, "Automation conditions not met", "automation_id", automation.ID)

			continue
		}

		if _, isAge := automation.Trigger.(models.DealAge); isAge {
			fired, err := c.claimAgeMarker(ctx, event.DealID(), automation.ID, now)
			if err != nil {
				otelhelper.SetError(span, err)
				c.releaseAgeMarkers(ctx, event.DealID(), claimed)

				return nil, err
			}

			if !fired {
				continue
			}

			claimed = append(claimed, automation.ID)
		}

		logger.InfoContext(ctx, "Running automation", "automation_id", automation.ID)
		span.AddEvent("automation_fired", trace.WithAttributes(
			attribute.String(otelhelper.AutomationIDKey, automation.ID),
		))

		result := Execute(automation.ID, automation.Actions, working, pipeline, now)
		if result.StageChanged {
			lastWriter = automation.ID
		}

		working = result.Deal
		effects = append(effects, result.SideEffects...)
		outcome.Fired = append(outcome.Fired, automation.ID)
		outcome.Failures = append(outcome.Failures, result.Failures...)

		for _, failure := range result.Failures {
			span.AddEvent("action_failed", trace.WithAttributes(
				attribute.String(otelhelper.AutomationIDKey, failure.RuleID),
				attribute.String(otelhelper.ActionTypeKey, failure.ActionType),
			))
			c.actionFailed(ctx, pipeline, event.DealID(), failure)
		}
	}

	changed := models.TrackedFieldsDiffer(&current, working)
	if changed {
		working.UpdatedAt = now

		if err := c.deals.Save(ctx, working); err != nil {
			storeErr := newStoreError("Save", event.DealID(), err)
			otelhelper.SetError(span, storeErr)
			logger.ErrorContext(ctx, "Failed to persist automation result", "error", err)
			c.releaseAgeMarkers(ctx, event.DealID(), claimed)

			return nil, storeErr
		}

		outcome.Saves++
	}

	outcome.Deal = working
	outcome.SideEffects = append(outcome.SideEffects, effects...)
	c.dispatch(ctx, working, effects)

	if !changed {
		span.SetStatus(codes.Ok, "no deal change")

		return nil, nil
	}

	chained := models.DealChangeEvent{
		ID:         uuid.NewString(),
		Before:     current.Clone(),
		After:      *working.Clone(),
		Cause:      models.AutomationCause(lastWriter),
		OccurredAt: now,
	}

	if current.Stage != working.Stage {
		logger.InfoContext(ctx, "Deal stage changed by automation",
			"from", current.Stage,
			"to", working.Stage,
			"automation_id", lastWriter)

		if err := c.reporter.StageChanged(ctx, chained); err != nil {
			logger.WarnContext(ctx, "Failed to report stage change", "error", err)
		}
	}

	return &chained, nil
}

func (c *Coordinator) claimAgeMarker(ctx context.Context, dealID, ruleID string, now time.Time) (bool, error) {
	if c.markers == nil {
		return true, nil
	}

	fired, err := c.markers.MarkFired(ctx, dealID, ruleID, now)
	if err != nil {
		return false, newStoreError("MarkFired", dealID, err)
	}

	return fired, nil
}

// releaseAgeMarkers undoes the claims of a pass whose result was not
// persisted, so the next sweep offers the deal again.
func (c *Coordinator) releaseAgeMarkers(ctx context.Context, dealID string, ruleIDs []string) {
	if c.markers == nil {
		return
	}

	for _, ruleID := range ruleIDs {
		if err := c.markers.ClearRule(ctx, dealID, ruleID); err != nil {
			c.logger.ErrorContext(ctx, "Failed to release age marker",
				"deal_id", dealID,
				"automation_id", ruleID,
				"error", err)
		}
	}
}

func (c *Coordinator) cycleDetected(ctx context.Context, pipeline *models.Pipeline, dropped models.DealChangeEvent, outcome *Outcome) {
	outcome.CycleDetected = true

	err := fmt.Errorf("%w: deal %s exceeded %d automation hops", ErrCycleDetected, dropped.DealID(), c.maxHops)

	c.logger.WarnContext(ctx, "Automation chain stopped",
		"deal_id", dropped.DealID(),
		"pipeline_id", pipeline.ID,
		"automation_id", dropped.Cause.RuleID,
		"max_hops", c.maxHops,
		"error", err)

	c.diagnose(ctx, models.Diagnostic{
		Kind:       models.DiagnosticCycleDetected,
		DealID:     dropped.DealID(),
		AccountID:  pipeline.AccountID,
		PipelineID: pipeline.ID,
		RuleID:     dropped.Cause.RuleID,
		Message:    err.Error(),
		OccurredAt: c.now(),
	})
}

func (c *Coordinator) actionFailed(ctx context.Context, pipeline *models.Pipeline, dealID string, failure *ActionError) {
	kind := models.DiagnosticActionFailed
	if IsInvalidStage(failure) {
		kind = models.DiagnosticInvalidStage
	}

	c.logger.WarnContext(ctx, "Automation action failed",
		"deal_id", dealID,
		"automation_id", failure.RuleID,
		"action_index", failure.ActionIndex,
		"action_type", failure.ActionType,
		"error", failure.Err)

	c.diagnose(ctx, models.Diagnostic{
		Kind:       kind,
		DealID:     dealID,
		AccountID:  pipeline.AccountID,
		PipelineID: pipeline.ID,
		RuleID:     failure.RuleID,
		Message:    failure.Error(),
		OccurredAt: c.now(),
	})
}

func (c *Coordinator) diagnose(ctx context.Context, diagnostic models.Diagnostic) {
	if err := c.reporter.Diagnose(ctx, diagnostic); err != nil {
		c.logger.WarnContext(ctx, "Failed to report diagnostic", "kind", diagnostic.Kind, "error", err)
	}
}

// dispatch hands side effects to their stores without waiting for them.
func (c *Coordinator) dispatch(ctx context.Context, deal *models.Deal, effects []models.SideEffect) {
	if len(effects) == 0 {
		return
	}

	dispatchCtx := context.WithoutCancel(ctx)

	c.dispatching.Add(1)

	go func() {
		defer c.dispatching.Done()

		for _, effect := range effects {
			err := c.dispatchOne(dispatchCtx, deal.ID, effect)
			if err == nil {
				continue
			}

			err = fmt.Errorf("%w: %s for deal %s: %w", ErrSideEffectFailed, effect.Type(), deal.ID, err)

			c.logger.ErrorContext(dispatchCtx, "Side effect dispatch failed",
				"deal_id", deal.ID,
				"side_effect", effect.Type(),
				"error", err)

			c.diagnose(dispatchCtx, models.Diagnostic{
				Kind:       models.DiagnosticSideEffectFailed,
				DealID:     deal.ID,
				AccountID:  deal.AccountID,
				PipelineID: deal.PipelineID,
				RuleID:     ruleOf(effect),
				Message:    err.Error(),
				OccurredAt: c.now(),
			})
		}
	}()
}

func (c *Coordinator) dispatchOne(ctx context.Context, dealID string, effect models.SideEffect) error {
	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "automation.dispatch",
		attribute.String(otelhelper.DealIDKey, dealID),
		attribute.String(otelhelper.AutomationIDKey, ruleOf(effect)),
		attribute.String(otelhelper.SideEffectTypeKey, string(effect.Type())),
	)
	defer span.End()

	if task, ok := effect.(models.TaskEffect); ok {
		taskID, err := c.tasks.CreateTask(ctx, task.Task)
		if err != nil {
			otelhelper.SetError(span, err)

			return err
		}

		c.logger.DebugContext(ctx, "Task created", "task_id", taskID, "deal_id", task.Task.DealID)

		return nil
	}

	if err := c.sender.Send(ctx, effect); err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	return nil
}

func ruleOf(effect models.SideEffect) string {
	switch e := effect.(type) {
	case models.TaskEffect:
		return e.Task.RuleID
	case models.EmailEffect:
		return e.Email.RuleID
	case models.NotificationEffect:
		return e.Notification.RuleID
	default:
		return ""
	}
}

type nopReporter struct{}

func (nopReporter) StageChanged(context.Context, models.DealChangeEvent) error { return nil }

func (nopReporter) Diagnose(context.Context, models.Diagnostic) error { return nil }
