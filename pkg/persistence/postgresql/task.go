package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/dealflow/pkg/models"
	"github.com/dukex/dealflow/pkg/persistence"
)

const selectTask = `
	SELECT
		id
	  , deal_id
	  , rule_id
	  , title
	  , description
	  , assignee_id
	  , task_type
	  , status
	  , due_at
	  , created_at
	  , completed_at
	FROM tasks
`

// TaskRepository handles task-related database operations.
type TaskRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *sql.DB, logger *slog.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

func scanTask(row scanner) (*models.Task, error) {
	var (
		task        models.Task
		completedAt sql.NullTime
	)

	err := row.Scan(
		&task.ID,
		&task.DealID,
		&task.RuleID,
		&task.Title,
		&task.Description,
		&task.AssigneeID,
		&task.TaskType,
		&task.Status,
		&task.DueAt,
		&task.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	task.DueAt = task.DueAt.UTC()
	task.CreatedAt = task.CreatedAt.UTC()

	if completedAt.Valid {
		value := completedAt.Time.UTC()
		task.CompletedAt = &value
	}

	return &task, nil
}

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, deal_id, rule_id, title, description, assignee_id, task_type,
			status, due_at, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		task.ID,
		task.DealID,
		task.RuleID,
		task.Title,
		task.Description,
		task.AssigneeID,
		task.TaskType,
		task.Status,
		task.DueAt,
		task.CreatedAt,
		task.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task %s: %w", task.ID, err)
	}

	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := scanTask(r.db.QueryRowContext(ctx, selectTask+" WHERE id = $1", taskID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", taskID, persistence.ErrTaskNotFound)
		}

		return nil, fmt.Errorf("failed to fetch task %s: %w", taskID, err)
	}

	return task, nil
}

func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET
			title = $2,
			description = $3,
			assignee_id = $4,
			task_type = $5,
			status = $6,
			due_at = $7,
			completed_at = $8
		WHERE id = $1
	`,
		task.ID,
		task.Title,
		task.Description,
		task.AssigneeID,
		task.TaskType,
		task.Status,
		task.DueAt,
		task.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update task %s: %w", task.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update task %s: %w", task.ID, err)
	}

	if affected == 0 {
		return fmt.Errorf("task %s: %w", task.ID, persistence.ErrTaskNotFound)
	}

	return nil
}

func (r *TaskRepository) ListByDeal(ctx context.Context, dealID string) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, selectTask+" WHERE deal_id = $1 ORDER BY created_at, id", dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks of deal %s: %w", dealID, err)
	}

	defer closeRows(ctx, r.logger, rows)

	tasks := make([]*models.Task, 0)

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		tasks = append(tasks, task)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}
