package services

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/dukex/dealflow/pkg/eventbus"
	"github.com/dukex/dealflow/pkg/events"
	"github.com/dukex/dealflow/pkg/models"
	"github.com/dukex/dealflow/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Deal persists manual deal changes and publishes them to the automation engine.
type Deal struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	validator   *validator.Validate
	logger      *slog.Logger
	now         func() time.Time
}

// NewDeal creates a new deal service.
func NewDeal(persistence persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Deal {
	return &Deal{
		persistence: persistence,
		publisher:   publisher,
		validator:   validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger.With("module", "deal_service"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// HealthCheck checks the health of the persistence layer.
func (d *Deal) HealthCheck(ctx context.Context) (string, bool) {
	if d.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := d.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// UpdateDealRequest holds the fields a manual update may change. Nil fields
// are left untouched; CustomFields entries are merged.
type UpdateDealRequest struct {
	Title             *string        `json:"title"               validate:"omitempty,min=1"`
	Value             *float64       `json:"value"               validate:"omitempty,min=0"`
	Currency          *string        `json:"currency"`
	Probability       *int           `json:"probability"         validate:"omitempty,min=0,max=100"`
	ExpectedCloseDate *time.Time     `json:"expected_close_date"`
	OwnerID           *string        `json:"owner_id"`
	CustomFields      map[string]any `json:"custom_fields"`
}

// Create stores a new deal in a stage of its pipeline and announces it.
func (d *Deal) Create(ctx context.Context, deal *models.Deal) (*models.Deal, error) {
	if deal.ID == "" {
		deal.ID = uuid.New().String()
	}

	now := d.now()
	deal.CreatedAt = now
	deal.UpdatedAt = now

	err := d.validator.Struct(deal)
	if err != nil {
		return nil, NewValidationError("create_deal", "invalid_deal", err.Error(), ErrInvalidDeal)
	}

	err = d.checkStage(ctx, deal, deal.Stage)
	if err != nil {
		return nil, err
	}

	err = d.persistence.DealRepository().Save(ctx, deal)
	if err != nil {
		return nil, fmt.Errorf("failed to save deal: %w", err)
	}

	d.publish(ctx, nil, deal)

	return deal, nil
}

// FetchByID returns a deal by id.
func (d *Deal) FetchByID(ctx context.Context, dealID string) (*models.Deal, error) {
	return d.persistence.DealRepository().GetByID(ctx, dealID)
}

// List returns the deals of a pipeline.
func (d *Deal) List(ctx context.Context, accountID, pipelineID string) ([]*models.Deal, error) {
	if accountID == "" {
		return nil, ErrEmptyAccountID
	}

	if pipelineID == "" {
		return nil, NewValidationError("list_deals", "pipeline_required", "pipeline ID is required", ErrInvalidRequest)
	}

	return d.persistence.DealRepository().ListByPipeline(ctx, accountID, pipelineID)
}

// Update applies a manual change to the deal.
func (d *Deal) Update(ctx context.Context, dealID string, req UpdateDealRequest) (*models.Deal, error) {
	err := d.validator.Struct(req)
	if err != nil {
		return nil, NewValidationError("update_deal", "invalid_deal", err.Error(), ErrInvalidDeal)
	}

	return d.change(ctx, dealID, func(deal *models.Deal) error {
		if req.Title != nil {
			deal.Title = *req.Title
		}

		if req.Value != nil {
			deal.Value = *req.Value
		}

		if req.Currency != nil {
			deal.Currency = *req.Currency
		}

		if req.Probability != nil {
			deal.Probability = *req.Probability
		}

		if req.ExpectedCloseDate != nil {
			closeDate := req.ExpectedCloseDate.UTC()
			deal.ExpectedCloseDate = &closeDate
		}

		if req.OwnerID != nil {
			deal.OwnerID = *req.OwnerID
		}

		if len(req.CustomFields) > 0 {
			if deal.CustomFields == nil {
				deal.CustomFields = make(map[string]any, len(req.CustomFields))
			}

			maps.Copy(deal.CustomFields, req.CustomFields)
		}

		return nil
	})
}

// MoveStage moves the deal to another stage of its pipeline.
func (d *Deal) MoveStage(ctx context.Context, dealID, stage string) (*models.Deal, error) {
	return d.change(ctx, dealID, func(deal *models.Deal) error {
		err := d.checkStage(ctx, deal, stage)
		if err != nil {
			return err
		}

		deal.Stage = stage

		return nil
	})
}

// Delete asks the engine to delete the deal. The deletion waits for any
// evaluation of the deal in flight, so it is only requested here.
func (d *Deal) Delete(ctx context.Context, dealID string) error {
	_, err := d.persistence.DealRepository().GetByID(ctx, dealID)
	if err != nil {
		return err
	}

	event := events.DealDeletionRequested{
		BaseEvent:   events.NewBaseEvent(events.DealDeletionRequestedEvent, dealID),
		RequestedBy: "api",
	}

	err = d.publisher.Publish(ctx, dealID, event)
	if err != nil {
		return fmt.Errorf("failed to request deletion of deal %s: %w", dealID, err)
	}

	d.logger.InfoContext(ctx, "Deal deletion requested", "deal_id", dealID)

	return nil
}

// LinkContact associates a contact with the deal.
func (d *Deal) LinkContact(ctx context.Context, dealID, contactID string) error {
	if contactID == "" {
		return NewValidationError("link_contact", "contact_required", "contact ID is required", ErrInvalidRequest)
	}

	return d.persistence.DealRepository().LinkContact(ctx, dealID, contactID)
}

func (d *Deal) change(ctx context.Context, dealID string, mutate func(deal *models.Deal) error) (*models.Deal, error) {
	before, err := d.persistence.DealRepository().GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}

	after := before.Clone()

	err = mutate(after)
	if err != nil {
		return nil, err
	}

	after.UpdatedAt = d.now()

	err = d.persistence.DealRepository().Save(ctx, after)
	if err != nil {
		return nil, fmt.Errorf("failed to save deal: %w", err)
	}

	d.publish(ctx, before, after)

	return after, nil
}

func (d *Deal) checkStage(ctx context.Context, deal *models.Deal, stage string) error {
	pipeline, err := d.persistence.PipelineRepository().GetPipeline(ctx, deal.AccountID, deal.PipelineID)
	if err != nil {
		return err
	}

	if !pipeline.HasStage(stage) {
		return NewValidationError("move_stage", "unknown_stage",
			fmt.Sprintf("stage %q is not part of pipeline %s", stage, pipeline.ID), ErrUnknownStage)
	}

	return nil
}

// publish announces a persisted change. The change is already stored, so a
// publish failure is logged rather than returned.
func (d *Deal) publish(ctx context.Context, before, after *models.Deal) {
	change := models.DealChangeEvent{
		ID:         uuid.New().String(),
		Before:     before,
		After:      *after,
		Cause:      models.ManualCause(),
		OccurredAt: d.now(),
	}

	event := events.DealChanged{
		BaseEvent: events.NewBaseEvent(events.DealChangedEvent, after.ID),
		Change:    change,
	}

	err := d.publisher.Publish(ctx, after.ID, event)
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to publish deal change", "deal_id", after.ID, "error", err)
	}
}
