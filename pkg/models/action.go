package models

import "fmt"

// ActionType tags the action variant on the wire.
type ActionType string

const (
	ActionMoveStage  ActionType = "move_stage"
	ActionCreateTask ActionType = "create_task"
	ActionSendEmail  ActionType = "send_email"
	ActionNotifyUser ActionType = "notify_user"
)

// Action is the closed set of mutations and side-effect requests an
// automation can perform.
type Action interface {
	Type() ActionType
	isAction()
}

// MoveStage moves the deal to Stage.
type MoveStage struct {
	Stage string
}

// CreateTask requests a task linked to the deal. Title and Description may
// hold template expressions rendered against the deal.
type CreateTask struct {
	Title       string
	Description string
	AssigneeID  *string
	DueInDays   int
	TaskType    string
}

// SendEmail requests an email rendered from Template to Recipient.
type SendEmail struct {
	Template  string
	Recipient string
}

// NotifyUser requests an in-app notification for UserID.
type NotifyUser struct {
	UserID  string
	Message string
}

func (MoveStage) Type() ActionType  { return ActionMoveStage }
func (CreateTask) Type() ActionType { return ActionCreateTask }
func (SendEmail) Type() ActionType  { return ActionSendEmail }
func (NotifyUser) Type() ActionType { return ActionNotifyUser }

func (MoveStage) isAction()  {}
func (CreateTask) isAction() {}
func (SendEmail) isAction()  {}
func (NotifyUser) isAction() {}

type actionEnvelope struct {
	Type        ActionType `json:"type"`
	Stage       string     `json:"stage,omitempty"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	AssigneeID  *string    `json:"assignee_id,omitempty"`
	DueInDays   int        `json:"due_in_days,omitempty"`
	TaskType    string     `json:"task_type,omitempty"`
	Template    string     `json:"template,omitempty"`
	Recipient   string     `json:"recipient,omitempty"`
	UserID      string     `json:"user_id,omitempty"`
	Message     string     `json:"message,omitempty"`
}

func envelopeAction(action Action) *actionEnvelope {
	if action == nil {
		return nil
	}

	envelope := &actionEnvelope{Type: action.Type()}

	switch a := action.(type) {
	case MoveStage:
		envelope.Stage = a.Stage
	case CreateTask:
		envelope.Title = a.Title
		envelope.Description = a.Description
		envelope.AssigneeID = a.AssigneeID
		envelope.DueInDays = a.DueInDays
		envelope.TaskType = a.TaskType
	case SendEmail:
		envelope.Template = a.Template
		envelope.Recipient = a.Recipient
	case NotifyUser:
		envelope.UserID = a.UserID
		envelope.Message = a.Message
	}

	return envelope
}

func (e *actionEnvelope) action() (Action, error) {
	switch e.Type {
	case ActionMoveStage:
		return MoveStage{Stage: e.Stage}, nil
	case ActionCreateTask:
		return CreateTask{
			Title:       e.Title,
			Description: e.Description,
			AssigneeID:  e.AssigneeID,
			DueInDays:   e.DueInDays,
			TaskType:    e.TaskType,
		}, nil
	case ActionSendEmail:
		return SendEmail{Template: e.Template, Recipient: e.Recipient}, nil
	case ActionNotifyUser:
		return NotifyUser{UserID: e.UserID, Message: e.Message}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, e.Type)
	}
}
