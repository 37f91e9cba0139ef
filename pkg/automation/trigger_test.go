package automation_test

import (
	"testing"
	"time"

	"github.com/dukex/dealflow/pkg/automation"
	"github.com/dukex/dealflow/pkg/models"
	"github.com/stretchr/testify/assert"
)

var referenceNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func dealAt(stage string) models.Deal {
	return models.Deal{
		ID:          "deal-1",
		Title:       "Acme renewal",
		Value:       500,
		Stage:       stage,
		Probability: 20,
		AccountID:   "acc-1",
		PipelineID:  "sales",
		CreatedAt:   referenceNow.AddDate(0, 0, -3),
	}
}

func change(before *models.Deal, after models.Deal, cause models.Cause) models.DealChangeEvent {
	return models.DealChangeEvent{ID: "evt-1", Before: before, After: after, Cause: cause, OccurredAt: referenceNow}
}

func TestMatches(t *testing.T) {
	t.Parallel()

	lead := dealAt("Lead")
	qualified := dealAt("Qualified")
	richer := dealAt("Lead")
	richer.Value = 1500
	likelier := dealAt("Lead")
	likelier.Probability = 60

	tests := []struct {
		name     string
		trigger  models.Trigger
		event    models.DealChangeEvent
		expected bool
	}{
		{"stage enter on move", models.StageEnter{Stage: "Qualified"}, change(&lead, qualified, models.ManualCause()), true},
		{"stage enter on creation", models.StageEnter{Stage: "Lead"}, change(nil, lead, models.ManualCause()), true},
		{"stage enter other stage", models.StageEnter{Stage: "Won"}, change(&lead, qualified, models.ManualCause()), false},
		{"stage enter without stage change", models.StageEnter{Stage: "Qualified"}, change(&qualified, qualified, models.ManualCause()), false},
		{"stage exit on move", models.StageExit{Stage: "Lead"}, change(&lead, qualified, models.ManualCause()), true},
		{"stage exit without move", models.StageExit{Stage: "Lead"}, change(&lead, lead, models.ManualCause()), false},
		{"stage exit on creation", models.StageExit{Stage: "Lead"}, change(nil, lead, models.ManualCause()), false},
		{"value changed", models.ValueChanged{}, change(&lead, richer, models.ManualCause()), true},
		{"value unchanged", models.ValueChanged{}, change(&lead, likelier, models.ManualCause()), false},
		{"value changed on creation", models.ValueChanged{}, change(nil, richer, models.ManualCause()), false},
		{"probability changed", models.ProbabilityChanged{}, change(&lead, likelier, models.ManualCause()), true},
		{"probability unchanged", models.ProbabilityChanged{}, change(&lead, richer, models.ManualCause()), false},
		{"deal age reached", models.DealAge{Days: 3}, change(&lead, lead, models.AgeSweepCause()), true},
		{"deal age not reached", models.DealAge{Days: 4}, change(&lead, lead, models.AgeSweepCause()), false},
		{"deal age on creation", models.DealAge{Days: 0}, change(nil, lead, models.ManualCause()), false},
		{"task completed any type", models.TaskCompleted{}, change(&lead, lead, models.TaskCompletedCause("call")), true},
		{"task completed matching type", models.TaskCompleted{TaskType: "call"}, change(&lead, lead, models.TaskCompletedCause("call")), true},
		{"task completed other type", models.TaskCompleted{TaskType: "demo"}, change(&lead, lead, models.TaskCompletedCause("call")), false},
		{"task completed on manual edit", models.TaskCompleted{}, change(&lead, lead, models.ManualCause()), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, automation.Matches(tt.trigger, tt.event, referenceNow))
		})
	}
}

func TestMatches_StageEnterIsIdempotent(t *testing.T) {
	t.Parallel()

	before := dealAt("Lead")
	after := dealAt("Qualified")

	first := change(&before, after, models.ManualCause())
	replayed := change(&after, after, models.ManualCause())

	assert.True(t, automation.Matches(models.StageEnter{Stage: "Qualified"}, first, referenceNow))
	assert.False(t, automation.Matches(models.StageEnter{Stage: "Qualified"}, replayed, referenceNow))
	assert.False(t, automation.Matches(models.StageExit{Stage: "Lead"}, replayed, referenceNow))
}
