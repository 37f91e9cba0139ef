package models

import "fmt"

// TriggerType tags the trigger variant on the wire.
type TriggerType string

const (
	TriggerStageEnter         TriggerType = "stage_enter"
	TriggerStageExit          TriggerType = "stage_exit"
	TriggerValueChanged       TriggerType = "value_changed"
	TriggerProbabilityChanged TriggerType = "probability_changed"
	TriggerDealAge            TriggerType = "deal_age"
	TriggerTaskCompleted      TriggerType = "task_completed"
)

// Trigger is the closed set of event shapes that make an automation eligible.
// Only the types in this file implement it.
type Trigger interface {
	Type() TriggerType
	isTrigger()
}

// StageEnter fires when a deal enters Stage.
type StageEnter struct {
	Stage string
}

// StageExit fires when a deal leaves Stage.
type StageExit struct {
	Stage string
}

// ValueChanged fires when the monetary value of a deal changes.
type ValueChanged struct{}

// ProbabilityChanged fires when the probability of a deal changes.
type ProbabilityChanged struct{}

// DealAge fires once a deal is at least Days whole days old.
type DealAge struct {
	Days int
}

// TaskCompleted fires when a task of TaskType (any type when empty) linked
// to the deal is completed.
type TaskCompleted struct {
	TaskType string
}

func (StageEnter) Type() TriggerType         { return TriggerStageEnter }
func (StageExit) Type() TriggerType          { return TriggerStageExit }
func (ValueChanged) Type() TriggerType       { return TriggerValueChanged }
func (ProbabilityChanged) Type() TriggerType { return TriggerProbabilityChanged }
func (DealAge) Type() TriggerType            { return TriggerDealAge }
func (TaskCompleted) Type() TriggerType      { return TriggerTaskCompleted }

func (StageEnter) isTrigger()         {}
func (StageExit) isTrigger()          {}
func (ValueChanged) isTrigger()       {}
func (ProbabilityChanged) isTrigger() {}
func (DealAge) isTrigger()            {}
func (TaskCompleted) isTrigger()      {}

type triggerEnvelope struct {
	Type     TriggerType `json:"type"`
	Stage    string      `json:"stage,omitempty"`
	Days     int         `json:"days,omitempty"`
	TaskType string      `json:"task_type,omitempty"`
}

func envelopeTrigger(trigger Trigger) *triggerEnvelope {
	envelope := &triggerEnvelope{Type: trigger.Type()}

	switch t := trigger.(type) {
	case StageEnter:
		envelope.Stage = t.Stage
	case StageExit:
		envelope.Stage = t.Stage
	case DealAge:
		envelope.Days = t.Days
	case TaskCompleted:
		envelope.TaskType = t.TaskType
	}

	return envelope
}

func (e *triggerEnvelope) trigger() (Trigger, error) {
	switch e.Type {
	case TriggerStageEnter:
		return StageEnter{Stage: e.Stage}, nil
	case TriggerStageExit:
		return StageExit{Stage: e.Stage}, nil
	case TriggerValueChanged:
		return ValueChanged{}, nil
	case TriggerProbabilityChanged:
		return ProbabilityChanged{}, nil
	case TriggerDealAge:
		return DealAge{Days: e.Days}, nil
	case TriggerTaskCompleted:
		return TaskCompleted{TaskType: e.TaskType}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTrigger, e.Type)
	}
}
