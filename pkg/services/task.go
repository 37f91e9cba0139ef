package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/dealflow/pkg/eventbus"
	"github.com/dukex/dealflow/pkg/events"
	"github.com/dukex/dealflow/pkg/models"
	"github.com/dukex/dealflow/pkg/persistence"
)

// Task completes follow-up tasks and signals the completion to the engine.
type Task struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	now         func() time.Time
}

// NewTask creates a new task service.
func NewTask(persistence persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Task {
	return &Task{
		persistence: persistence,
		publisher:   publisher,
		logger:      logger.With("module", "task_service"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ListByDeal returns the tasks linked to a deal.
func (t *Task) ListByDeal(ctx context.Context, dealID string) ([]*models.Task, error) {
	return t.persistence.TaskRepository().ListByDeal(ctx, dealID)
}

// Complete marks the task completed and publishes task.completed for its deal.
func (t *Task) Complete(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := t.persistence.TaskRepository().GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task.Status == models.TaskStatusCompleted {
		return nil, &ServiceError{Op: "complete_task", Code: "task_completed", Err: ErrTaskAlreadyCompleted}
	}

	completedAt := t.now()
	task.Status = models.TaskStatusCompleted
	task.CompletedAt = &completedAt

	err = t.persistence.TaskRepository().Update(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to complete task %s: %w", taskID, err)
	}

	event := events.TaskCompleted{
		BaseEvent: events.NewBaseEvent(events.TaskCompletedEvent, task.DealID),
		TaskID:    task.ID,
		TaskType:  task.TaskType,
	}

	err = t.publisher.Publish(ctx, task.DealID, event)
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to publish task completion", "task_id", task.ID, "deal_id", task.DealID, "error", err)
	}

	return task, nil
}
