package automation

import (
	"time"

	"github.com/dukex/dealflow/pkg/models"
)

// Matches reports whether trigger fires for event. It is pure: now is only
// used by the deal age trigger.
func Matches(trigger models.Trigger, event models.DealChangeEvent, now time.Time) bool {
	before := event.Before
	after := &event.After

	// A newly created deal can only enter its initial stage.
	if before == nil {
		enter, ok := trigger.(models.StageEnter)

		return ok && after.Stage == enter.Stage
	}

	switch t := trigger.(type) {
	case models.StageEnter:
		return after.Stage == t.Stage && before.Stage != t.Stage
	case models.StageExit:
		return before.Stage == t.Stage && after.Stage != t.Stage
	case models.ValueChanged:
		return before.Value != after.Value
	case models.ProbabilityChanged:
		return before.Probability != after.Probability
	case models.DealAge:
		return after.AgeInDays(now) >= t.Days
	case models.TaskCompleted:
		if event.Cause.Kind != models.CauseTaskCompleted {
			return false
		}

		return t.TaskType == "" || t.TaskType == event.Cause.TaskType
	default:
		return false
	}
}
