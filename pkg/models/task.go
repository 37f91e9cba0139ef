package models

import "time"

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusOpen      TaskStatus = "open"
	TaskStatusCompleted TaskStatus = "completed"
)

// Task is a follow-up item linked to a deal, usually created by an automation.
type Task struct {
	ID          string     `json:"id"`
	DealID      string     `json:"deal_id"                validate:"required"`
	RuleID      string     `json:"rule_id,omitempty"`
	Title       string     `json:"title"                  validate:"required"`
	Description string     `json:"description,omitempty"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
	TaskType    string     `json:"task_type,omitempty"`
	Status      TaskStatus `json:"status"                 validate:"required,oneof=open completed"`
	DueAt       time.Time  `json:"due_at"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewTaskFromDescriptor builds an open task from a side-effect descriptor.
func NewTaskFromDescriptor(descriptor TaskDescriptor) *Task {
	return &Task{
		DealID:      descriptor.DealID,
		RuleID:      descriptor.RuleID,
		Title:       descriptor.Title,
		Description: descriptor.Description,
		AssigneeID:  descriptor.AssigneeID,
		TaskType:    descriptor.TaskType,
		Status:      TaskStatusOpen,
		DueAt:       descriptor.DueAt,
	}
}
