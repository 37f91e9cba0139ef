package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dukex/dealflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutomation_UnmarshalJSON(t *testing.T) {
	document := `{
		"id": "stale-deals",
		"enabled": true,
		"trigger": {"type": "deal_age", "days": 14},
		"conditions": [{"field": "stage", "operator": "not_equals", "value": "Won"}],
		"actions": [
			{"type": "notify_user", "user_id": "manager-1", "message": "{{.Deal.Title}} is stale"},
			{"type": "move_stage", "stage": "Lost"}
		]
	}`

	var automation models.Automation
	require.NoError(t, json.Unmarshal([]byte(document), &automation))

	assert.Equal(t, "stale-deals", automation.ID)
	assert.True(t, automation.Enabled)
	assert.Equal(t, models.DealAge{Days: 14}, automation.Trigger)
	assert.Equal(t, []models.Action{
		models.NotifyUser{UserID: "manager-1", Message: "{{.Deal.Title}} is stale"},
		models.MoveStage{Stage: "Lost"},
	}, automation.Actions)
	assert.Equal(t, []string{"Lost"}, automation.ReferencedStages())
}

func TestAutomation_UnmarshalJSONRejectsUnknownTags(t *testing.T) {
	var automation models.Automation

	err := json.Unmarshal([]byte(`{"id":"a","trigger":{"type":"deal_won"},"actions":[]}`), &automation)
	require.ErrorIs(t, err, models.ErrUnknownTrigger)

	err = json.Unmarshal([]byte(`{"id":"a","trigger":{"type":"value_changed"},"actions":[{"type":"call_api"}]}`), &automation)
	require.ErrorIs(t, err, models.ErrUnknownAction)
}

func TestAutomation_MarshalJSONKeepsVariantTags(t *testing.T) {
	automation := models.Automation{
		ID:      "follow-up",
		Enabled: true,
		Trigger: models.TaskCompleted{TaskType: "call"},
		Actions: []models.Action{models.SendEmail{Template: "Thanks", Recipient: "owner"}},
	}

	payload, err := json.Marshal(automation)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "follow-up",
		"enabled": true,
		"trigger": {"type": "task_completed", "task_type": "call"},
		"conditions": [],
		"actions": [{"type": "send_email", "template": "Thanks", "recipient": "owner"}]
	}`, string(payload))
}

func TestAutomation_Validate(t *testing.T) {
	tests := []struct {
		name       string
		automation models.Automation
		valid      bool
	}{
		{
			name:       "valid",
			automation: models.Automation{ID: "a", Trigger: models.ValueChanged{}, Actions: []models.Action{models.MoveStage{Stage: "Won"}}},
			valid:      true,
		},
		{
			name:       "missing id",
			automation: models.Automation{Trigger: models.ValueChanged{}},
		},
		{
			name:       "missing trigger",
			automation: models.Automation{ID: "a"},
		},
		{
			name:       "negative age",
			automation: models.Automation{ID: "a", Trigger: models.DealAge{Days: -1}},
		},
		{
			name: "bad operator",
			automation: models.Automation{ID: "a", Trigger: models.ValueChanged{}, Conditions: []models.Condition{
				{Field: "value", Operator: "between"},
			}},
		},
		{
			name: "contains without value",
			automation: models.Automation{ID: "a", Trigger: models.ValueChanged{}, Conditions: []models.Condition{
				{Field: "title", Operator: models.OperatorContains},
			}},
		},
		{
			name: "greater than without value",
			automation: models.Automation{ID: "a", Trigger: models.ValueChanged{}, Conditions: []models.Condition{
				{Field: "value", Operator: models.OperatorGreaterThan},
			}},
		},
		{
			name: "equals nil is allowed",
			automation: models.Automation{ID: "a", Trigger: models.ValueChanged{}, Conditions: []models.Condition{
				{Field: "custom_fields.source", Operator: models.OperatorEquals},
			}},
			valid: true,
		},
		{
			name:       "task without title",
			automation: models.Automation{ID: "a", Trigger: models.ValueChanged{}, Actions: []models.Action{models.CreateTask{}}},
		},
		{
			name:       "email without recipient",
			automation: models.Automation{ID: "a", Trigger: models.ValueChanged{}, Actions: []models.Action{models.SendEmail{Template: "Hi"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.automation.Validate()
			if tt.valid {
				assert.NoError(t, err)

				return
			}

			assert.ErrorIs(t, err, models.ErrInvalidAutomation)
		})
	}
}

func TestPipeline_Validate(t *testing.T) {
	pipeline := func(stages []string, automations ...*models.Automation) *models.Pipeline {
		return &models.Pipeline{ID: "sales", AccountID: "account-1", Name: "Sales", Stages: stages, Automations: automations}
	}

	enterWon := &models.Automation{ID: "won", Trigger: models.StageEnter{Stage: "Won"}}

	require.NoError(t, pipeline([]string{"Lead", "Won"}, enterWon).Validate())
	require.ErrorIs(t, pipeline(nil).Validate(), models.ErrEmptyStages)
	require.ErrorIs(t, pipeline([]string{"Lead", "Lead"}).Validate(), models.ErrDuplicateStage)
	require.ErrorIs(t, pipeline([]string{"Lead"}, enterWon).Validate(), models.ErrUnknownStage)
	require.ErrorIs(t, pipeline([]string{"Lead", "Won"}, enterWon, enterWon).Validate(), models.ErrDuplicateAutomation)
}

func TestPipeline_EnabledAutomations(t *testing.T) {
	pipeline := &models.Pipeline{Automations: []*models.Automation{
		{ID: "a", Enabled: true},
		{ID: "b"},
		nil,
		{ID: "c", Enabled: true},
	}}

	enabled := pipeline.EnabledAutomations()
	require.Len(t, enabled, 2)
	assert.Equal(t, "a", enabled[0].ID)
	assert.Equal(t, "c", enabled[1].ID)
}

func TestDeal_Clone(t *testing.T) {
	closeDate := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	deal := &models.Deal{
		ID:                "deal-1",
		ExpectedCloseDate: &closeDate,
		CustomFields:      map[string]any{"region": "emea"},
		ContactIDs:        []string{"contact-1"},
	}

	clone := deal.Clone()
	clone.CustomFields["region"] = "apac"
	clone.ContactIDs[0] = "contact-2"
	*clone.ExpectedCloseDate = closeDate.AddDate(0, 1, 0)

	assert.Equal(t, "emea", deal.CustomFields["region"])
	assert.Equal(t, "contact-1", deal.ContactIDs[0])
	assert.Equal(t, closeDate, *deal.ExpectedCloseDate)
	assert.Nil(t, (*models.Deal)(nil).Clone())
}

func TestDeal_AgeInDays(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	deal := &models.Deal{CreatedAt: created}

	assert.Equal(t, 0, deal.AgeInDays(created.Add(23*time.Hour)))
	assert.Equal(t, 1, deal.AgeInDays(created.Add(24*time.Hour)))
	assert.Equal(t, 9, deal.AgeInDays(created.AddDate(0, 0, 9).Add(time.Hour)))
	assert.Equal(t, 0, deal.AgeInDays(created.Add(-time.Hour)))
}

func TestTrackedFieldsDiffer(t *testing.T) {
	base := &models.Deal{Stage: "Lead", Value: 100, Probability: 10, Title: "A"}

	retitled := base.Clone()
	retitled.Title = "B"
	assert.False(t, models.TrackedFieldsDiffer(base, retitled))

	revalued := base.Clone()
	revalued.Value = 200
	assert.True(t, models.TrackedFieldsDiffer(base, revalued))

	assert.True(t, models.TrackedFieldsDiffer(nil, base))
}

func TestCause_TextRoundTrip(t *testing.T) {
	causes := map[string]models.Cause{
		"manual":               models.ManualCause(),
		"automation:follow-up": models.AutomationCause("follow-up"),
		"task_completed:call":  models.TaskCompletedCause("call"),
		"task_completed":       models.TaskCompletedCause(""),
		"age_sweep":            models.AgeSweepCause(),
	}

	for text, cause := range causes {
		assert.Equal(t, text, cause.String())

		parsed, err := models.ParseCause(text)
		require.NoError(t, err)
		assert.Equal(t, cause, parsed)
	}

	_, err := models.ParseCause("automation")
	require.Error(t, err)

	_, err = models.ParseCause("webhook")
	require.Error(t, err)
}
