package sweep

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukex/dealflow/pkg/mocks"
	"github.com/dukex/dealflow/pkg/models"
	"github.com/dukex/dealflow/pkg/persistence/memory"
	"github.com/dukex/dealflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu      sync.Mutex
	batches [][]string
	err     error
}

func (h *recordingHandler) HandleAgeSweep(_ context.Context, dealIDs []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.batches = append(h.batches, dealIDs)

	return h.err
}

var sweepNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func staleAutomation(days int) *models.Automation {
	return &models.Automation{
		ID:      "stale",
		Enabled: true,
		Trigger: models.DealAge{Days: days},
		Actions: []models.Action{models.NotifyUser{UserID: "owner-1", Message: "Deal is stale"}},
	}
}

func seed(t *testing.T, automations ...*models.Automation) (*memory.Persistence, *models.Deal, *models.Deal) {
	t.Helper()

	store := memory.NewPersistence()
	require.NoError(t, store.PipelineRepository().SavePipeline(t.Context(),
		testutil.CreateTestPipeline(testutil.WithAutomations(automations...))))

	old := testutil.CreateTestDeal(testutil.WithCreatedAt(sweepNow.AddDate(0, 0, -10)))
	young := testutil.CreateTestDeal(testutil.WithCreatedAt(sweepNow.AddDate(0, 0, -2)))

	require.NoError(t, store.DealRepository().Save(t.Context(), old))
	require.NoError(t, store.DealRepository().Save(t.Context(), young))

	return store, old, young
}

func newTestSweeper(store *memory.Persistence, handler AgeHandler) *Sweeper {
	return NewSweeper(store, handler, slog.Default(), WithClock(func() time.Time { return sweepNow }))
}

func TestSweeper_SweepSelectsAgedDeals(t *testing.T) {
	store, old, _ := seed(t, staleAutomation(7))
	handler := &recordingHandler{}

	swept, err := newTestSweeper(store, handler).Sweep(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	require.Len(t, handler.batches, 1)
	assert.Equal(t, []string{old.ID}, handler.batches[0])
}

func TestSweeper_SweepSkipsFiredMarkers(t *testing.T) {
	store, old, _ := seed(t, staleAutomation(7))

	fired, err := store.AgeMarkerRepository().MarkFired(t.Context(), old.ID, "stale", sweepNow)
	require.NoError(t, err)
	require.True(t, fired)

	handler := &recordingHandler{}

	swept, err := newTestSweeper(store, handler).Sweep(t.Context())
	require.NoError(t, err)
	assert.Zero(t, swept)
	assert.Empty(t, handler.batches)
}

func TestSweeper_SweepIgnoresDisabledAndOtherTriggers(t *testing.T) {
	disabled := staleAutomation(1)
	disabled.Enabled = false

	store, _, _ := seed(t, disabled, testutil.FollowUpAutomation())
	handler := &recordingHandler{}

	swept, err := newTestSweeper(store, handler).Sweep(t.Context())
	require.NoError(t, err)
	assert.Zero(t, swept)
	assert.Empty(t, handler.batches)
}

func TestSweeper_SweepReturnsHandlerError(t *testing.T) {
	store, _, _ := seed(t, staleAutomation(0))
	handler := &recordingHandler{err: errors.New("store unavailable")}

	swept, err := newTestSweeper(store, handler).Sweep(t.Context())
	require.Error(t, err)
	assert.Equal(t, 2, swept)
}

func TestSweeper_SweepStopsOnMarkerStoreError(t *testing.T) {
	store := mocks.NewMockPersistence()
	pipeline := testutil.CreateTestPipeline(testutil.WithAutomations(staleAutomation(3)))
	deal := testutil.CreateTestDeal(testutil.WithCreatedAt(sweepNow.AddDate(0, 0, -10)))

	store.Pipelines.On("ListPipelines", mock.Anything, "").Return([]*models.Pipeline{pipeline}, nil)
	store.Deals.On("ListByPipeline", mock.Anything, "account-1", "sales").Return([]*models.Deal{deal}, nil)
	store.AgeMarkers.On("HasFired", mock.Anything, deal.ID, "stale").Return(false, errors.New("redis timeout"))

	handler := &recordingHandler{}
	sweeper := NewSweeper(store, handler, slog.Default(), WithClock(func() time.Time { return sweepNow }))

	_, err := sweeper.Sweep(t.Context())
	require.ErrorContains(t, err, "redis timeout")
	assert.Empty(t, handler.batches)
	store.AgeMarkers.AssertExpectations(t)
}

func TestSweeper_Validate(t *testing.T) {
	store := memory.NewPersistence()

	assert.NoError(t, NewSweeper(store, &recordingHandler{}, slog.Default()).Validate())
	assert.NoError(t, NewSweeper(store, &recordingHandler{}, slog.Default(), WithSchedule("*/5 * * * *")).Validate())
	assert.Error(t, NewSweeper(store, &recordingHandler{}, slog.Default(), WithSchedule("every hour")).Validate())
}

func TestSweeper_StartStop(t *testing.T) {
	store := memory.NewPersistence()
	sweeper := NewSweeper(store, &recordingHandler{}, slog.Default())

	require.NoError(t, sweeper.Start(t.Context()))
	require.NoError(t, sweeper.Stop(t.Context()))

	require.Error(t, NewSweeper(store, &recordingHandler{}, slog.Default(), WithSchedule("bogus")).Start(t.Context()))
}
