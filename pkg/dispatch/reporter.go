package dispatch

import (
	"context"
	"log/slog"

	"github.com/dukex/dealflow/pkg/eventbus"
	"github.com/dukex/dealflow/pkg/events"
	"github.com/dukex/dealflow/pkg/models"
)

// BusReporter publishes stage changes and automation diagnostics.
type BusReporter struct {
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

func NewBusReporter(publisher eventbus.EventPublisher, logger *slog.Logger) *BusReporter {
	return &BusReporter{
		publisher: publisher,
		logger:    logger.With("module", "reporter"),
	}
}

func (r *BusReporter) StageChanged(ctx context.Context, change models.DealChangeEvent) error {
	dealID := change.DealID()

	return r.publisher.Publish(ctx, dealID, events.DealStageChanged{
		BaseEvent: events.NewBaseEvent(events.DealStageChangedEvent, dealID),
		Change:    change,
	})
}

func (r *BusReporter) Diagnose(ctx context.Context, diagnostic models.Diagnostic) error {
	r.logger.WarnContext(ctx, "Automation diagnostic",
		"kind", diagnostic.Kind,
		"deal_id", diagnostic.DealID,
		"rule_id", diagnostic.RuleID,
		"message", diagnostic.Message)

	return r.publisher.Publish(ctx, diagnostic.DealID, events.AutomationDiagnostic{
		BaseEvent:  events.NewBaseEvent(events.AutomationDiagnosticEvent, diagnostic.DealID),
		Diagnostic: diagnostic,
	})
}
