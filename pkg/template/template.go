// Package template renders automation action text against deal data.
package template

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/dukex/dealflow/pkg/models"
)

// RenderForDeal renders input with the deal exposed as .deal, using the JSON
// field names of the deal (e.g. {{ .deal.title }}, {{ .deal.custom_fields.region }}).
func RenderForDeal(input string, deal *models.Deal, now time.Time) (string, error) {
	if !NeedsTemplating(input) {
		return input, nil
	}

	dealData, err := dealToMap(deal)
	if err != nil {
		return input, err
	}

	data := map[string]any{
		"deal": dealData,
		"now":  now.UTC().Format(time.RFC3339),
	}

	return Render(input, data)
}

// Render executes templateStr with data and returns the trimmed output.
func Render(templateStr string, data any) (string, error) {
	tmpl, err := template.
		New("action").
		Funcs(template.FuncMap{
			"upper": strings.ToUpper,
			"lower": strings.ToLower,
			"money": func(value any) string {
				switch v := value.(type) {
				case float64:
					return fmt.Sprintf("%.2f", v)
				case int:
					return fmt.Sprintf("%d.00", v)
				default:
					return fmt.Sprint(v)
				}
			},
		}).Parse(templateStr)
	if err != nil {
		return templateStr, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return templateStr, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return strings.TrimSpace(buf.String()), nil
}

// NeedsTemplating reports whether input contains template actions.
func NeedsTemplating(input string) bool {
	return strings.Contains(input, "{{")
}

func dealToMap(deal *models.Deal) (map[string]any, error) {
	if deal == nil {
		return map[string]any{}, nil
	}

	raw, err := json.Marshal(deal)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal deal %s: %w", deal.ID, err)
	}

	result := make(map[string]any)

	err = json.Unmarshal(raw, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal deal %s: %w", deal.ID, err)
	}

	return result, nil
}
