package automation_test

import (
	"testing"
	"time"

	"github.com/dukex/dealflow/pkg/automation"
	"github.com/dukex/dealflow/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	t.Parallel()

	closeDate := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	deal := &models.Deal{
		ID:                "deal-1",
		Title:             "Acme renewal",
		Value:             1500,
		Stage:             "Qualified",
		Probability:       40,
		OwnerID:           "user-7",
		ExpectedCloseDate: &closeDate,
		CustomFields: map[string]any{
			"region":  "EMEA",
			"seats":   "25",
			"score":   7,
			"partner": true,
		},
	}

	fieldTypes := map[string]models.FieldType{"seats": models.FieldTypeNumber}

	tests := []struct {
		name       string
		conditions []models.Condition
		expected   bool
	}{
		{"empty list is vacuously true", nil, true},
		{"value greater than", []models.Condition{{Field: "value", Operator: models.OperatorGreaterThan, Value: 1000}}, true},
		{"value greater than numeric string", []models.Condition{{Field: "value", Operator: models.OperatorGreaterThan, Value: "1000"}}, true},
		{"value not greater than", []models.Condition{{Field: "value", Operator: models.OperatorGreaterThan, Value: 2000.0}}, false},
		{"value less than", []models.Condition{{Field: "value", Operator: models.OperatorLessThan, Value: 2000}}, true},
		{"value equals numeric string", []models.Condition{{Field: "value", Operator: models.OperatorEquals, Value: "1500"}}, true},
		{"probability equals", []models.Condition{{Field: "probability", Operator: models.OperatorEquals, Value: 40.0}}, true},
		{"stage equals", []models.Condition{{Field: "stage", Operator: models.OperatorEquals, Value: "Qualified"}}, true},
		{"stage not equals", []models.Condition{{Field: "stage", Operator: models.OperatorNotEquals, Value: "Won"}}, true},
		{"title contains", []models.Condition{{Field: "title", Operator: models.OperatorContains, Value: "Acme"}}, true},
		{"title does not contain", []models.Condition{{Field: "title", Operator: models.OperatorContains, Value: "Globex"}}, false},
		{"value contains digits", []models.Condition{{Field: "value", Operator: models.OperatorContains, Value: "15"}}, true},
		{"greater than on text is false", []models.Condition{{Field: "title", Operator: models.OperatorGreaterThan, Value: 1}}, false},
		{"greater than with text literal is false", []models.Condition{{Field: "value", Operator: models.OperatorGreaterThan, Value: "lots"}}, false},
		{"custom field by key", []models.Condition{{Field: "region", Operator: models.OperatorEquals, Value: "EMEA"}}, true},
		{"custom field by path", []models.Condition{{Field: "custom_fields.region", Operator: models.OperatorEquals, Value: "EMEA"}}, true},
		{"declared numeric custom field normalizes", []models.Condition{{Field: "seats", Operator: models.OperatorEquals, Value: 25}}, true},
		{"declared numeric custom field compares", []models.Condition{{Field: "seats", Operator: models.OperatorGreaterThan, Value: 10}}, true},
		{"go numeric custom field", []models.Condition{{Field: "score", Operator: models.OperatorEquals, Value: 7.0}}, true},
		{"bool custom field", []models.Condition{{Field: "partner", Operator: models.OperatorEquals, Value: true}}, true},
		{"text custom field is not normalized", []models.Condition{{Field: "region", Operator: models.OperatorEquals, Value: 1}}, false},
		{"expected close date contains", []models.Condition{{Field: "expected_close_date", Operator: models.OperatorContains, Value: "2026-06"}}, true},
		{"missing field equals is false", []models.Condition{{Field: "missing", Operator: models.OperatorEquals, Value: "x"}}, false},
		{"missing field greater than is false", []models.Condition{{Field: "missing", Operator: models.OperatorGreaterThan, Value: 1}}, false},
		{"missing field less than is false", []models.Condition{{Field: "missing", Operator: models.OperatorLessThan, Value: 1}}, false},
		{"contains without value is false", []models.Condition{{Field: "title", Operator: models.OperatorContains}}, false},
		{"missing field contains is false", []models.Condition{{Field: "missing", Operator: models.OperatorContains, Value: ""}}, false},
		{"missing field not equals is true", []models.Condition{{Field: "missing", Operator: models.OperatorNotEquals, Value: "x"}}, true},
		{"unknown operator is false", []models.Condition{{Field: "stage", Operator: "matches", Value: "Qualified"}}, false},
		{
			"conditions are and-ed",
			[]models.Condition{
				{Field: "value", Operator: models.OperatorGreaterThan, Value: 1000},
				{Field: "stage", Operator: models.OperatorEquals, Value: "Lead"},
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, automation.Evaluate(tt.conditions, deal, fieldTypes))
		})
	}
}

func TestEvaluate_OrderDoesNotMatter(t *testing.T) {
	t.Parallel()

	deal := &models.Deal{Value: 1500, Stage: "Qualified"}
	first := models.Condition{Field: "value", Operator: models.OperatorGreaterThan, Value: 1000}
	second := models.Condition{Field: "stage", Operator: models.OperatorEquals, Value: "Won"}

	assert.Equal(t,
		automation.Evaluate([]models.Condition{first, second}, deal, nil),
		automation.Evaluate([]models.Condition{second, first}, deal, nil),
	)
}
