// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/dukex/dealflow/pkg/models"
	"github.com/google/uuid"
)

// CreateTestDeal creates a test Deal with default values that can be overridden.
func CreateTestDeal(overrides ...func(*models.Deal)) *models.Deal {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	deal := &models.Deal{
		ID:           uuid.New().String(),
		Title:        "Test Deal",
		Value:        1000,
		Currency:     "USD",
		Stage:        "Lead",
		Probability:  10,
		AccountID:    "account-1",
		OwnerID:      "owner-1",
		PipelineID:   "sales",
		CustomFields: map[string]any{"region": "emea"},
		CreatedAt:    created,
		UpdatedAt:    created,
	}

	for _, override := range overrides {
		override(deal)
	}

	return deal
}

// WithStage sets the deal stage.
func WithStage(stage string) func(*models.Deal) {
	return func(d *models.Deal) {
		d.Stage = stage
	}
}

// WithPipeline places the deal in the given account and pipeline.
func WithPipeline(accountID, pipelineID string) func(*models.Deal) {
	return func(d *models.Deal) {
		d.AccountID = accountID
		d.PipelineID = pipelineID
	}
}

// WithCreatedAt sets the deal creation time.
func WithCreatedAt(createdAt time.Time) func(*models.Deal) {
	return func(d *models.Deal) {
		d.CreatedAt = createdAt
		d.UpdatedAt = createdAt
	}
}

// CreateTestPipeline creates a pipeline with the Lead, Qualified and Won stages.
func CreateTestPipeline(overrides ...func(*models.Pipeline)) *models.Pipeline {
	pipeline := &models.Pipeline{
		ID:        "sales",
		AccountID: "account-1",
		Name:      "Sales",
		Stages:    []string{"Lead", "Qualified", "Won"},
		CustomFields: []models.FieldDefinition{
			{Key: "region", Type: models.FieldTypeText},
		},
	}

	for _, override := range overrides {
		override(pipeline)
	}

	return pipeline
}

// WithAutomations replaces the pipeline automations.
func WithAutomations(automations ...*models.Automation) func(*models.Pipeline) {
	return func(p *models.Pipeline) {
		p.Automations = automations
	}
}

// FollowUpAutomation creates a task whenever a deal enters Qualified.
func FollowUpAutomation() *models.Automation {
	return &models.Automation{
		ID:      "follow-up",
		Name:    "Follow up qualified deals",
		Enabled: true,
		Trigger: models.StageEnter{Stage: "Qualified"},
		Conditions: []models.Condition{
			{Field: "value", Operator: models.OperatorGreaterThan, Value: 100},
		},
		Actions: []models.Action{
			models.CreateTask{Title: "Call {{.Deal.Title}}", DueInDays: 2, TaskType: "call"},
		},
	}
}
