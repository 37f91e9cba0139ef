package template

import (
	"testing"
	"time"

	"github.com/dukex/dealflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_SimpleExpression(t *testing.T) {
	data := map[string]any{
		"name": "John",
		"age":  30,
	}

	result, err := Render("{{ .name }} is {{ .age }}", data)
	require.NoError(t, err)
	assert.Equal(t, "John is 30", result)
}

func TestRender_Functions(t *testing.T) {
	data := map[string]any{"title": "Acme", "value": 1500.5}

	result, err := Render("{{ upper .title }} {{ money .value }}", data)
	require.NoError(t, err)
	assert.Equal(t, "ACME 1500.50", result)
}

func TestRender_InvalidTemplate(t *testing.T) {
	result, err := Render("{{ .name ", map[string]any{})
	require.Error(t, err)
	assert.Equal(t, "{{ .name ", result)
}

func TestRenderForDeal(t *testing.T) {
	deal := &models.Deal{
		ID:           "deal-1",
		Title:        "Acme renewal",
		Value:        1500,
		Stage:        "Qualified",
		CustomFields: map[string]any{"region": "EMEA"},
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain text is returned unchanged", input: "Follow up", expected: "Follow up"},
		{name: "deal title", input: "Follow up on {{ .deal.title }}", expected: "Follow up on Acme renewal"},
		{name: "custom field", input: "Region {{ .deal.custom_fields.region }}", expected: "Region EMEA"},
		{name: "stage", input: "Now in {{ .deal.stage }}", expected: "Now in Qualified"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := RenderForDeal(tt.input, deal, time.Now())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestNeedsTemplating(t *testing.T) {
	assert.True(t, NeedsTemplating("Hello {{ .deal.title }}"))
	assert.False(t, NeedsTemplating("Hello world"))
}
