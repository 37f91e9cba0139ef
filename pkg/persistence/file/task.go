package file

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/dukex/dealflow/pkg/models"
	"github.com/dukex/dealflow/pkg/persistence"
)

// TaskRepository stores one file per task.
type TaskRepository struct {
	root string
}

func NewTaskRepository(root string) *TaskRepository {
	return &TaskRepository{root: root}
}

func (tr *TaskRepository) path(taskID string) string {
	return filepath.Join(tr.root, tasksDir, escape(taskID)+".json")
}

func (tr *TaskRepository) Create(_ context.Context, task *models.Task) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}

	if err := writeJSON(tr.path(task.ID), task); err != nil {
		return fmt.Errorf("failed to create task %s: %w", task.ID, err)
	}

	return nil
}

func (tr *TaskRepository) GetByID(_ context.Context, taskID string) (*models.Task, error) {
	var task models.Task

	if err := readJSON(tr.path(taskID), &task); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("task %s: %w", taskID, persistence.ErrTaskNotFound)
		}

		return nil, fmt.Errorf("failed to fetch task %s: %w", taskID, err)
	}

	return &task, nil
}

func (tr *TaskRepository) Update(_ context.Context, task *models.Task) error {
	if _, err := os.Stat(tr.path(task.ID)); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("task %s: %w", task.ID, persistence.ErrTaskNotFound)
	}

	if err := writeJSON(tr.path(task.ID), task); err != nil {
		return fmt.Errorf("failed to update task %s: %w", task.ID, err)
	}

	return nil
}

func (tr *TaskRepository) ListByDeal(_ context.Context, dealID string) ([]*models.Task, error) {
	paths, err := listJSON(filepath.Join(tr.root, tasksDir))
	if err != nil {
		return nil, err
	}

	tasks := make([]*models.Task, 0)

	for _, path := range paths {
		var task models.Task

		if err := readJSON(path, &task); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}

			return nil, fmt.Errorf("failed to load task %s: %w", filepath.Base(path), err)
		}

		if task.DealID == dealID {
			tasks = append(tasks, &task)
		}
	}

	slices.SortFunc(tasks, func(a, b *models.Task) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})

	return tasks, nil
}
