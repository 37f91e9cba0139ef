package automation_test

import (
	"testing"

	"github.com/dukex/dealflow/pkg/automation"
	"github.com/dukex/dealflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func salesPipeline(automations ...*models.Automation) *models.Pipeline {
	return &models.Pipeline{
		ID:          "sales",
		AccountID:   "acc-1",
		Name:        "Sales",
		Stages:      []string{"Lead", "Qualified", "Won"},
		Automations: automations,
	}
}

func TestExecute_MoveStage(t *testing.T) {
	t.Parallel()

	deal := dealAt("Lead")

	result := automation.Execute("rule-1", []models.Action{models.MoveStage{Stage: "Qualified"}}, &deal, salesPipeline(), referenceNow)

	assert.Empty(t, result.Failures)
	assert.True(t, result.StageChanged)
	assert.Equal(t, "Qualified", result.Deal.Stage)
	assert.Equal(t, "Lead", deal.Stage, "input deal must not be mutated")
}

func TestExecute_MoveStageToSameStage(t *testing.T) {
	t.Parallel()

	deal := dealAt("Won")

	result := automation.Execute("rule-1", []models.Action{models.MoveStage{Stage: "Won"}}, &deal, salesPipeline(), referenceNow)

	assert.Empty(t, result.Failures)
	assert.False(t, result.StageChanged)
}

func TestExecute_InvalidStageDoesNotStopLaterActions(t *testing.T) {
	t.Parallel()

	deal := dealAt("Lead")
	actions := []models.Action{
		models.MoveStage{Stage: "Lost"},
		models.CreateTask{Title: "Check stage setup", DueInDays: 1},
		models.MoveStage{Stage: "Qualified"},
	}

	result := automation.Execute("rule-1", actions, &deal, salesPipeline(), referenceNow)

	require.Len(t, result.Failures, 1)
	assert.True(t, automation.IsInvalidStage(result.Failures[0]))
	assert.Equal(t, 0, result.Failures[0].ActionIndex)
	assert.Equal(t, "rule-1", result.Failures[0].RuleID)
	assert.Equal(t, string(models.ActionMoveStage), result.Failures[0].ActionType)

	assert.Len(t, result.SideEffects, 1)
	assert.Equal(t, "Qualified", result.Deal.Stage)
}

func TestExecute_CreateTask(t *testing.T) {
	t.Parallel()

	deal := dealAt("Qualified")
	deal.OwnerID = "owner-1"
	assignee := "user-9"

	actions := []models.Action{
		models.CreateTask{Title: "Follow up {{ .deal.title }}", DueInDays: 2, TaskType: "call"},
		models.CreateTask{Title: "Send contract", AssigneeID: &assignee},
	}

	result := automation.Execute("rule-1", actions, &deal, salesPipeline(), referenceNow)

	require.Empty(t, result.Failures)
	require.Len(t, result.SideEffects, 2)

	first, ok := result.SideEffects[0].(models.TaskEffect)
	require.True(t, ok)
	assert.Equal(t, "Follow up Acme renewal", first.Task.Title)
	assert.Equal(t, "owner-1", first.Task.AssigneeID)
	assert.Equal(t, "deal-1", first.Task.DealID)
	assert.Equal(t, "rule-1", first.Task.RuleID)
	assert.Equal(t, "call", first.Task.TaskType)
	assert.Equal(t, referenceNow.AddDate(0, 0, 2), first.Task.DueAt)

	second, ok := result.SideEffects[1].(models.TaskEffect)
	require.True(t, ok)
	assert.Equal(t, "user-9", second.Task.AssigneeID)
	assert.Equal(t, referenceNow, second.Task.DueAt)
}

func TestExecute_EmailAndNotification(t *testing.T) {
	t.Parallel()

	deal := dealAt("Won")
	actions := []models.Action{
		models.SendEmail{Template: "Deal {{ .deal.title }} is {{ .deal.stage }}", Recipient: "sales@example.com"},
		models.NotifyUser{UserID: "user-2", Message: "Closed {{ money .deal.value }}"},
	}

	result := automation.Execute("rule-2", actions, &deal, salesPipeline(), referenceNow)

	require.Empty(t, result.Failures)
	require.Len(t, result.SideEffects, 2)

	email, ok := result.SideEffects[0].(models.EmailEffect)
	require.True(t, ok)
	assert.Equal(t, "Deal Acme renewal is Won", email.Email.Template)
	assert.Equal(t, "sales@example.com", email.Email.Recipient)

	notification, ok := result.SideEffects[1].(models.NotificationEffect)
	require.True(t, ok)
	assert.Equal(t, "Closed 500.00", notification.Notification.Message)
	assert.Equal(t, "user-2", notification.Notification.UserID)
}

func TestExecute_TemplateFailureIsRecorded(t *testing.T) {
	t.Parallel()

	deal := dealAt("Lead")
	actions := []models.Action{
		models.NotifyUser{UserID: "user-2", Message: "{{ .deal.title "},
		models.MoveStage{Stage: "Qualified"},
	}

	result := automation.Execute("rule-3", actions, &deal, salesPipeline(), referenceNow)

	require.Len(t, result.Failures, 1)
	assert.ErrorIs(t, result.Failures[0], automation.ErrTemplate)
	assert.Empty(t, result.SideEffects)
	assert.Equal(t, "Qualified", result.Deal.Stage)
}

func TestExecute_LastMoveWins(t *testing.T) {
	t.Parallel()

	deal := dealAt("Lead")
	actions := []models.Action{
		models.MoveStage{Stage: "Won"},
		models.MoveStage{Stage: "Qualified"},
	}

	result := automation.Execute("rule-1", actions, &deal, salesPipeline(), referenceNow)

	assert.Equal(t, "Qualified", result.Deal.Stage)
}
