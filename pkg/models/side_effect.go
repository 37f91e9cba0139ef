package models

import "time"

// SideEffectType tags the side-effect variant.
type SideEffectType string

const (
	SideEffectTask         SideEffectType = "task"
	SideEffectEmail        SideEffectType = "email"
	SideEffectNotification SideEffectType = "notification"
)

// SideEffect is a non-deal mutation produced by an action and deferred for
// dispatch to an external store.
type SideEffect interface {
	Type() SideEffectType
	isSideEffect()
}

// TaskDescriptor describes a task to create in the task store.
type TaskDescriptor struct {
	DealID      string    `json:"deal_id"`
	RuleID      string    `json:"rule_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	AssigneeID  string    `json:"assignee_id,omitempty"`
	TaskType    string    `json:"task_type,omitempty"`
	DueAt       time.Time `json:"due_at"`
}

// EmailDescriptor describes an email to send.
type EmailDescriptor struct {
	DealID    string `json:"deal_id"`
	RuleID    string `json:"rule_id"`
	Template  string `json:"template"`
	Recipient string `json:"recipient"`
}

// NotificationDescriptor describes an in-app notification to send.
type NotificationDescriptor struct {
	DealID  string `json:"deal_id"`
	RuleID  string `json:"rule_id"`
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type TaskEffect struct {
	Task TaskDescriptor
}

type EmailEffect struct {
	Email EmailDescriptor
}

type NotificationEffect struct {
	Notification NotificationDescriptor
}

func (TaskEffect) Type() SideEffectType         { return SideEffectTask }
func (EmailEffect) Type() SideEffectType        { return SideEffectEmail }
func (NotificationEffect) Type() SideEffectType { return SideEffectNotification }

func (TaskEffect) isSideEffect()         {}
func (EmailEffect) isSideEffect()        {}
func (NotificationEffect) isSideEffect() {}
