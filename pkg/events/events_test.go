package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dukex/dealflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseEvent(t *testing.T) {
	event := NewBaseEvent(DealChangedEvent, "deal-123")

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, DealChangedEvent, event.Type)
	assert.Equal(t, "deal-123", event.DealID)
	assert.NotNil(t, event.Metadata)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, time.Second)
}

func TestGetType(t *testing.T) {
	tests := []struct {
		event    interface{ GetType() EventType }
		expected EventType
	}{
		{DealChanged{}, DealChangedEvent},
		{DealDeletionRequested{}, DealDeletionRequestedEvent},
		{TaskCompleted{}, TaskCompletedEvent},
		{DealStageChanged{}, DealStageChangedEvent},
		{TaskCreated{}, TaskCreatedEvent},
		{EmailRequested{}, EmailRequestedEvent},
		{NotificationRequested{}, NotificationRequestedEvent},
		{AutomationDiagnostic{}, AutomationDiagnosticEvent},
	}

	for _, tt := range tests {
		t.Run(string(tt.expected), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.event.GetType())
		})
	}
}

func TestDealChanged_CarriesCauseAsString(t *testing.T) {
	before := models.Deal{ID: "deal-1", Stage: "Lead", Value: 500}
	original := DealChanged{
		BaseEvent: NewBaseEvent(DealChangedEvent, "deal-1"),
		Change: models.DealChangeEvent{
			ID:     "chg-1",
			Before: &before,
			After:  models.Deal{ID: "deal-1", Stage: "Qualified", Value: 500},
			Cause:  models.AutomationCause("auto-qualify"),
		},
	}

	payload, err := json.Marshal(original)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(payload, &raw))

	change, ok := raw["change"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "automation:auto-qualify", change["cause"])
	assert.Equal(t, "deal-1", raw["deal_id"])

	var decoded DealChanged
	require.NoError(t, json.Unmarshal(payload, &decoded))

	assert.Equal(t, models.AutomationCause("auto-qualify"), decoded.Change.Cause)
	require.NotNil(t, decoded.Change.Before)
	assert.Equal(t, "Lead", decoded.Change.Before.Stage)
	assert.Equal(t, "Qualified", decoded.Change.After.Stage)
	assert.Equal(t, "deal-1", decoded.Change.DealID())
}

func TestDealChanged_CreationHasNoBefore(t *testing.T) {
	payload, err := json.Marshal(DealChanged{
		BaseEvent: NewBaseEvent(DealChangedEvent, "deal-2"),
		Change:    models.DealChangeEvent{After: models.Deal{ID: "deal-2", Stage: "Lead"}, Cause: models.ManualCause()},
	})
	require.NoError(t, err)

	var decoded DealChanged
	require.NoError(t, json.Unmarshal(payload, &decoded))

	assert.True(t, decoded.Change.IsCreation())
	assert.Equal(t, models.ManualCause(), decoded.Change.Cause)
}
