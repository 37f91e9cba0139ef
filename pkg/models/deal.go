// Package models defines the core domain models for pipeline automation.
package models

import (
	"maps"
	"slices"
	"time"
)

// Deal is a business opportunity tracked through the stages of a pipeline.
type Deal struct {
	ID                string         `json:"id"`
	Title             string         `json:"title"                         validate:"required"`
	Value             float64        `json:"value"                         validate:"min=0"`
	Currency          string         `json:"currency,omitempty"`
	Stage             string         `json:"stage"                         validate:"required"`
	Probability       int            `json:"probability"                   validate:"min=0,max=100"`
	ExpectedCloseDate *time.Time     `json:"expected_close_date,omitempty"`
	AccountID         string         `json:"account_id"                    validate:"required"`
	OwnerID           string         `json:"owner_id"`
	PipelineID        string         `json:"pipeline_id"                   validate:"required"`
	CustomFields      map[string]any `json:"custom_fields,omitempty"`
	ContactIDs        []string       `json:"contact_ids,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Clone returns a deep copy of the deal, so callers can mutate the copy
// without touching the snapshot it was taken from.
func (d *Deal) Clone() *Deal {
	if d == nil {
		return nil
	}

	clone := *d
	clone.CustomFields = maps.Clone(d.CustomFields)
	clone.ContactIDs = slices.Clone(d.ContactIDs)

	if d.ExpectedCloseDate != nil {
		closeDate := *d.ExpectedCloseDate
		clone.ExpectedCloseDate = &closeDate
	}

	return &clone
}

// AgeInDays returns the number of whole days between the deal creation and now.
func (d *Deal) AgeInDays(now time.Time) int {
	if d.CreatedAt.IsZero() || now.Before(d.CreatedAt) {
		return 0
	}

	return int(now.Sub(d.CreatedAt) / (24 * time.Hour))
}

// TrackedFieldsDiffer reports whether stage, value or probability differ,
// the fields whose change re-enters automation evaluation.
func TrackedFieldsDiffer(a, b *Deal) bool {
	if a == nil || b == nil {
		return a != b
	}

	return a.Stage != b.Stage || a.Value != b.Value || a.Probability != b.Probability
}
