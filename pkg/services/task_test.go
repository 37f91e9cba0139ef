package services

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/dealflow/pkg/events"
	"github.com/dukex/dealflow/pkg/models"
	"github.com/dukex/dealflow/pkg/persistence"
	"github.com/dukex/dealflow/pkg/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTask_Complete(t *testing.T) {
	store := memory.NewPersistence()
	publisher := &recordingPublisher{}
	service := NewTask(store, publisher, slog.Default())

	require.NoError(t, store.TaskRepository().Create(t.Context(), &models.Task{
		ID:       "task-1",
		DealID:   "deal-1",
		Title:    "Call Acme",
		TaskType: "call",
		Status:   models.TaskStatusOpen,
		DueAt:    time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC),
	}))

	completed, err := service.Complete(t.Context(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	event, ok := publisher.last(t).(events.TaskCompleted)
	require.True(t, ok)
	assert.Equal(t, "deal-1", event.DealID)
	assert.Equal(t, "call", event.TaskType)
	assert.Equal(t, "deal-1", publisher.keys[0])

	_, err = service.Complete(t.Context(), "task-1")
	assert.True(t, IsConflictError(err))

	_, err = service.Complete(t.Context(), "missing")
	assert.True(t, persistence.IsTaskNotFound(err))

	tasks, err := service.ListByDeal(t.Context(), "deal-1")
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}
