package web

import (
	"time"

	"github.com/dukex/dealflow/pkg/models"
)

// CreateDealRequest represents the request body for creating a deal.
type CreateDealRequest struct {
	Title             string         `json:"title"               validate:"required"`
	Value             float64        `json:"value"               validate:"min=0"`
	Currency          string         `json:"currency"`
	Stage             string         `json:"stage"               validate:"required"`
	Probability       int            `json:"probability"         validate:"min=0,max=100"`
	ExpectedCloseDate *time.Time     `json:"expected_close_date"`
	AccountID         string         `json:"account_id"          validate:"required"`
	OwnerID           string         `json:"owner_id"`
	PipelineID        string         `json:"pipeline_id"         validate:"required"`
	CustomFields      map[string]any `json:"custom_fields"`
}

func (r CreateDealRequest) toDeal() *models.Deal {
	return &models.Deal{
		Title:             r.Title,
		Value:             r.Value,
		Currency:          r.Currency,
		Stage:             r.Stage,
		Probability:       r.Probability,
		ExpectedCloseDate: r.ExpectedCloseDate,
		AccountID:         r.AccountID,
		OwnerID:           r.OwnerID,
		PipelineID:        r.PipelineID,
		CustomFields:      r.CustomFields,
	}
}

// MoveStageRequest represents the request body for a manual stage change.
type MoveStageRequest struct {
	Stage string `json:"stage" validate:"required"`
}

// LinkContactRequest represents the request body for linking a contact to a deal.
type LinkContactRequest struct {
	ContactID string `json:"contact_id" validate:"required"`
}
