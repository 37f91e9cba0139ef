package automation

import (
	"fmt"
	"time"

	"github.com/dukex/dealflow/pkg/models"
	"github.com/dukex/dealflow/pkg/template"
)

// ExecutionResult is the outcome of running an action list on a working copy.
type ExecutionResult struct {
	Deal         *models.Deal
	SideEffects  []models.SideEffect
	Failures     []*ActionError
	StageChanged bool
}

// Execute applies actions in order to a copy of deal. It never touches a
// store: task, email and notification requests come back as side effects.
func Execute(ruleID string, actions []models.Action, deal *models.Deal, pipeline *models.Pipeline, now time.Time) ExecutionResult {
	result := ExecutionResult{Deal: deal.Clone()}

	for index, action := range actions {
		if err := apply(&result, ruleID, action, pipeline, now); err != nil {
			result.Failures = append(result.Failures, &ActionError{
				RuleID:      ruleID,
				ActionIndex: index,
				ActionType:  actionType(action),
				Err:         err,
			})
		}
	}

	return result
}

func apply(result *ExecutionResult, ruleID string, action models.Action, pipeline *models.Pipeline, now time.Time) error {
	working := result.Deal

	switch a := action.(type) {
	case models.MoveStage:
		if pipeline == nil || !pipeline.HasStage(a.Stage) {
			return fmt.Errorf("%w: %q", ErrInvalidStage, a.Stage)
		}

		if working.Stage != a.Stage {
			working.Stage = a.Stage
			working.UpdatedAt = now
			result.StageChanged = true
		}

		return nil
	case models.CreateTask:
		title, err := render(a.Title, working, now)
		if err != nil {
			return err
		}

		description, err := render(a.Description, working, now)
		if err != nil {
			return err
		}

		assignee := working.OwnerID
		if a.AssigneeID != nil {
			assignee = *a.AssigneeID
		}

		result.SideEffects = append(result.SideEffects, models.TaskEffect{Task: models.TaskDescriptor{
			DealID:      working.ID,
			RuleID:      ruleID,
			Title:       title,
			Description: description,
			AssigneeID:  assignee,
			TaskType:    a.TaskType,
			DueAt:       now.AddDate(0, 0, a.DueInDays),
		}})

		return nil
	case models.SendEmail:
		body, err := render(a.Template, working, now)
		if err != nil {
			return err
		}

		result.SideEffects = append(result.SideEffects, models.EmailEffect{Email: models.EmailDescriptor{
			DealID:    working.ID,
			RuleID:    ruleID,
			Template:  body,
			Recipient: a.Recipient,
		}})

		return nil
	case models.NotifyUser:
		message, err := render(a.Message, working, now)
		if err != nil {
			return err
		}

		result.SideEffects = append(result.SideEffects, models.NotificationEffect{Notification: models.NotificationDescriptor{
			DealID:  working.ID,
			RuleID:  ruleID,
			UserID:  a.UserID,
			Message: message,
		}})

		return nil
	default:
		return fmt.Errorf("%w: %T", models.ErrUnknownAction, action)
	}
}

func actionType(action models.Action) string {
	if action == nil {
		return "unknown"
	}

	return string(action.Type())
}

func render(text string, deal *models.Deal, now time.Time) (string, error) {
	rendered, err := template.RenderForDeal(text, deal, now)
	if err != nil {
		return text, fmt.Errorf("%w: %w", ErrTemplate, err)
	}

	return rendered, nil
}
