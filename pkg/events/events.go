// Package events defines the event types exchanged between the deal services,
// the automation engine and the side-effect consumers.
package events

import (
	"time"

	"github.com/dukex/dealflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every deal scoped event; messages are keyed by deal id.
const Topic = "dealflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Inputs of the automation engine.
	DealChangedEvent           EventType = "deal.changed"
	DealDeletionRequestedEvent EventType = "deal.deletion_requested"
	TaskCompletedEvent         EventType = "task.completed"

	// Outputs of the automation engine.
	DealStageChangedEvent      EventType = "deal.stage_changed"
	TaskCreatedEvent           EventType = "task.created"
	EmailRequestedEvent        EventType = "email.requested"
	NotificationRequestedEvent EventType = "notification.requested"
	AutomationDiagnosticEvent  EventType = "automation.diagnostic"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	DealID    string         `json:"deal_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, dealID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		DealID:    dealID,
		Metadata:  make(map[string]any),
	}
}

// DealChanged carries a deal change to the automation engine.
type DealChanged struct {
	BaseEvent

	Change models.DealChangeEvent `json:"change"`
}

func (d DealChanged) GetType() EventType {
	return DealChangedEvent
}

// DealDeletionRequested asks the engine to delete a deal once no evaluation
// for it is in flight.
type DealDeletionRequested struct {
	BaseEvent

	RequestedBy string `json:"requested_by,omitempty"`
}

func (d DealDeletionRequested) GetType() EventType {
	return DealDeletionRequestedEvent
}

// TaskCompleted signals that a task linked to a deal was completed.
type TaskCompleted struct {
	BaseEvent

	TaskID   string `json:"task_id"`
	TaskType string `json:"task_type,omitempty"`
}

func (t TaskCompleted) GetType() EventType {
	return TaskCompletedEvent
}

// DealStageChanged announces a stage change persisted by an automation.
type DealStageChanged struct {
	BaseEvent

	Change models.DealChangeEvent `json:"change"`
}

func (d DealStageChanged) GetType() EventType {
	return DealStageChangedEvent
}

// TaskCreated announces a task created for a deal.
type TaskCreated struct {
	BaseEvent

	Task models.Task `json:"task"`
}

func (t TaskCreated) GetType() EventType {
	return TaskCreatedEvent
}

// EmailRequested asks the mail dispatcher to send an email.
type EmailRequested struct {
	BaseEvent

	Email models.EmailDescriptor `json:"email"`
}

func (e EmailRequested) GetType() EventType {
	return EmailRequestedEvent
}

// NotificationRequested asks the notification dispatcher to notify a user.
type NotificationRequested struct {
	BaseEvent

	Notification models.NotificationDescriptor `json:"notification"`
}

func (n NotificationRequested) GetType() EventType {
	return NotificationRequestedEvent
}

// AutomationDiagnostic reports an automation problem to the pipeline owner.
type AutomationDiagnostic struct {
	BaseEvent

	Diagnostic models.Diagnostic `json:"diagnostic"`
}

func (a AutomationDiagnostic) GetType() EventType {
	return AutomationDiagnosticEvent
}
