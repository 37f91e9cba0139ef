package testutil

import (
	"testing"
	"time"

	"github.com/dukex/dealflow/pkg/models"
	"github.com/dukex/dealflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunPersistenceSuite exercises the behavior every persistence backend must
// share. newStore is called once per subtest and must return an empty store.
func RunPersistenceSuite(t *testing.T, newStore func(t *testing.T) persistence.Persistence) {
	t.Helper()

	t.Run("deal round trip", func(t *testing.T) {
		store := newStore(t)
		deals := store.DealRepository()

		deal := CreateTestDeal()
		require.NoError(t, deals.Save(t.Context(), deal))

		loaded, err := deals.GetByID(t.Context(), deal.ID)
		require.NoError(t, err)
		assert.Equal(t, deal.Title, loaded.Title)
		assert.Equal(t, deal.Stage, loaded.Stage)
		assert.InDelta(t, deal.Value, loaded.Value, 0.001)
		assert.Equal(t, "emea", loaded.CustomFields["region"])
		assert.True(t, deal.CreatedAt.Equal(loaded.CreatedAt))

		loaded.Stage = "Qualified"
		require.NoError(t, deals.Save(t.Context(), loaded))

		reloaded, err := deals.GetByID(t.Context(), deal.ID)
		require.NoError(t, err)
		assert.Equal(t, "Qualified", reloaded.Stage)
	})

	t.Run("missing deal", func(t *testing.T) {
		store := newStore(t)

		_, err := store.DealRepository().GetByID(t.Context(), "missing")
		require.Error(t, err)
		assert.True(t, persistence.IsDealNotFound(err))
	})

	t.Run("delete removes deal and contact links", func(t *testing.T) {
		store := newStore(t)
		deals := store.DealRepository()

		deal := CreateTestDeal()
		require.NoError(t, deals.Save(t.Context(), deal))
		require.NoError(t, deals.LinkContact(t.Context(), deal.ID, "contact-1"))
		require.NoError(t, deals.LinkContact(t.Context(), deal.ID, "contact-1"))

		linked, err := deals.GetByID(t.Context(), deal.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"contact-1"}, linked.ContactIDs)

		require.NoError(t, deals.Delete(t.Context(), deal.ID))
		require.NoError(t, deals.Delete(t.Context(), deal.ID))

		_, err = deals.GetByID(t.Context(), deal.ID)
		assert.True(t, persistence.IsDealNotFound(err))

		err = deals.LinkContact(t.Context(), deal.ID, "contact-2")
		assert.True(t, persistence.IsDealNotFound(err))
	})

	t.Run("list by pipeline", func(t *testing.T) {
		store := newStore(t)
		deals := store.DealRepository()

		base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		first := CreateTestDeal(WithCreatedAt(base))
		second := CreateTestDeal(WithCreatedAt(base.Add(time.Hour)))
		other := CreateTestDeal(WithPipeline("account-1", "renewals"))
		foreign := CreateTestDeal(WithPipeline("account-2", "sales"))

		for _, deal := range []*models.Deal{second, other, first, foreign} {
			require.NoError(t, deals.Save(t.Context(), deal))
		}

		listed, err := deals.ListByPipeline(t.Context(), "account-1", "sales")
		require.NoError(t, err)
		require.Len(t, listed, 2)
		assert.Equal(t, first.ID, listed[0].ID)
		assert.Equal(t, second.ID, listed[1].ID)
	})

	t.Run("pipelines are account scoped", func(t *testing.T) {
		store := newStore(t)
		pipelines := store.PipelineRepository()

		pipeline := CreateTestPipeline(WithAutomations(FollowUpAutomation()))
		require.NoError(t, pipelines.SavePipeline(t.Context(), pipeline))

		loaded, err := pipelines.GetPipeline(t.Context(), "account-1", "sales")
		require.NoError(t, err)
		assert.Equal(t, pipeline.Stages, loaded.Stages)
		require.Len(t, loaded.Automations, 1)
		assert.Equal(t, models.StageEnter{Stage: "Qualified"}, loaded.Automations[0].Trigger)
		assert.False(t, loaded.CreatedAt.IsZero())

		_, err = pipelines.GetPipeline(t.Context(), "account-2", "sales")
		assert.True(t, persistence.IsPipelineNotFound(err))

		foreign := CreateTestPipeline(func(p *models.Pipeline) { p.AccountID = "account-2" })
		require.NoError(t, pipelines.SavePipeline(t.Context(), foreign))

		own, err := pipelines.ListPipelines(t.Context(), "account-1")
		require.NoError(t, err)
		assert.Len(t, own, 1)

		all, err := pipelines.ListPipelines(t.Context(), "")
		require.NoError(t, err)
		assert.Len(t, all, 2)

		require.NoError(t, pipelines.DeletePipeline(t.Context(), "account-1", "sales"))

		_, err = pipelines.GetPipeline(t.Context(), "account-1", "sales")
		assert.True(t, persistence.IsPipelineNotFound(err))
	})

	t.Run("tasks", func(t *testing.T) {
		store := newStore(t)
		tasks := store.TaskRepository()

		task := &models.Task{
			ID:        "task-1",
			DealID:    "deal-1",
			Title:     "Call Acme",
			TaskType:  "call",
			Status:    models.TaskStatusOpen,
			DueAt:     time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC),
			CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		}
		require.NoError(t, tasks.Create(t.Context(), task))

		completedAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
		task.Status = models.TaskStatusCompleted
		task.CompletedAt = &completedAt
		require.NoError(t, tasks.Update(t.Context(), task))

		loaded, err := tasks.GetByID(t.Context(), "task-1")
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusCompleted, loaded.Status)
		require.NotNil(t, loaded.CompletedAt)
		assert.True(t, completedAt.Equal(*loaded.CompletedAt))

		listed, err := tasks.ListByDeal(t.Context(), "deal-1")
		require.NoError(t, err)
		assert.Len(t, listed, 1)

		_, err = tasks.GetByID(t.Context(), "missing")
		assert.True(t, persistence.IsTaskNotFound(err))

		err = tasks.Update(t.Context(), &models.Task{ID: "missing", DealID: "deal-1", Title: "x", Status: models.TaskStatusOpen})
		assert.True(t, persistence.IsTaskNotFound(err))
	})

	t.Run("age markers fire once", func(t *testing.T) {
		store := newStore(t)
		markers := store.AgeMarkerRepository()
		at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

		fired, err := markers.MarkFired(t.Context(), "deal-1", "stale", at)
		require.NoError(t, err)
		assert.True(t, fired)

		fired, err = markers.MarkFired(t.Context(), "deal-1", "stale", at)
		require.NoError(t, err)
		assert.False(t, fired)

		has, err := markers.HasFired(t.Context(), "deal-1", "stale")
		require.NoError(t, err)
		assert.True(t, has)

		has, err = markers.HasFired(t.Context(), "deal-2", "stale")
		require.NoError(t, err)
		assert.False(t, has)

		require.NoError(t, markers.ClearRule(t.Context(), "deal-1", "stale"))
		require.NoError(t, markers.ClearRule(t.Context(), "deal-1", "missing"))

		fired, err = markers.MarkFired(t.Context(), "deal-1", "stale", at)
		require.NoError(t, err)
		assert.True(t, fired)

		require.NoError(t, markers.ClearDeal(t.Context(), "deal-1"))

		has, err = markers.HasFired(t.Context(), "deal-1", "stale")
		require.NoError(t, err)
		assert.False(t, has)
	})
}
