package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/dealflow/pkg/eventbus"
	"github.com/dukex/dealflow/pkg/events"
	"github.com/dukex/dealflow/pkg/models"
)

var ErrUnsupportedSideEffect = errors.New("unsupported side effect")

// BusSender hands email and notification requests to their dispatchers over
// the event bus.
type BusSender struct {
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

func NewBusSender(publisher eventbus.EventPublisher, logger *slog.Logger) *BusSender {
	return &BusSender{
		publisher: publisher,
		logger:    logger.With("module", "sender"),
	}
}

func (s *BusSender) Send(ctx context.Context, effect models.SideEffect) error {
	var (
		dealID string
		event  eventbus.Event
	)

	switch e := effect.(type) {
	case models.EmailEffect:
		dealID = e.Email.DealID
		event = events.EmailRequested{
			BaseEvent: events.NewBaseEvent(events.EmailRequestedEvent, dealID),
			Email:     e.Email,
		}
	case models.NotificationEffect:
		dealID = e.Notification.DealID
		event = events.NotificationRequested{
			BaseEvent:    events.NewBaseEvent(events.NotificationRequestedEvent, dealID),
			Notification: e.Notification,
		}
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedSideEffect, effect)
	}

	if err := s.publisher.Publish(ctx, dealID, event); err != nil {
		return fmt.Errorf("failed to publish %s for deal %s: %w", event.GetType(), dealID, err)
	}

	s.logger.DebugContext(ctx, "Side effect published", "deal_id", dealID, "event_type", event.GetType())

	return nil
}
