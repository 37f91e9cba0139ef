// Package dispatch delivers the side effects produced by automations to the
// task store and the event bus.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/dealflow/pkg/eventbus"
	"github.com/dukex/dealflow/pkg/events"
	"github.com/dukex/dealflow/pkg/models"
	"github.com/dukex/dealflow/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// TaskStore creates tasks requested by automations and announces them.
type TaskStore struct {
	tasks     persistence.TaskRepository
	publisher eventbus.EventPublisher
	validator *validator.Validate
	logger    *slog.Logger
	now       func() time.Time
}

func NewTaskStore(tasks persistence.TaskRepository, publisher eventbus.EventPublisher, logger *slog.Logger) *TaskStore {
	return &TaskStore{
		tasks:     tasks,
		publisher: publisher,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger.With("module", "task_store"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateTask stores a new open task and returns its id. Announcing the task
// is best effort; the task exists once CreateTask returns nil.
func (s *TaskStore) CreateTask(ctx context.Context, descriptor models.TaskDescriptor) (string, error) {
	task := models.NewTaskFromDescriptor(descriptor)
	task.ID = uuid.New().String()
	task.CreatedAt = s.now()

	if err := s.validator.Struct(task); err != nil {
		return "", fmt.Errorf("invalid task for deal %s: %w", descriptor.DealID, err)
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return "", fmt.Errorf("failed to create task for deal %s: %w", descriptor.DealID, err)
	}

	if s.publisher != nil {
		event := events.TaskCreated{
			BaseEvent: events.NewBaseEvent(events.TaskCreatedEvent, task.DealID),
			Task:      *task,
		}

		if err := s.publisher.Publish(ctx, task.DealID, event); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish task created event",
				"task_id", task.ID, "deal_id", task.DealID, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "Task created", "task_id", task.ID, "deal_id", task.DealID, "rule_id", task.RuleID)

	return task.ID, nil
}
