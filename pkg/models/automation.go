package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrInvalidAutomation = errors.New("invalid automation")
	ErrUnknownTrigger    = errors.New("unknown trigger type")
	ErrUnknownAction     = errors.New("unknown action type")
)

// Automation is a trigger, conditions and actions rule attached to a pipeline.
type Automation struct {
	ID         string      `json:"id"`
	Name       string      `json:"name,omitempty"`
	Enabled    bool        `json:"enabled"`
	Trigger    Trigger     `json:"-"`
	Conditions []Condition `json:"-"`
	Actions    []Action    `json:"-"`
}

// ReferencedStages returns every stage named by the trigger or the actions.
func (a *Automation) ReferencedStages() []string {
	stages := make([]string, 0, 2)

	switch trigger := a.Trigger.(type) {
	case StageEnter:
		stages = append(stages, trigger.Stage)
	case StageExit:
		stages = append(stages, trigger.Stage)
	}

	for _, action := range a.Actions {
		if move, ok := action.(MoveStage); ok {
			stages = append(stages, move.Stage)
		}
	}

	return stages
}

// Validate checks that the automation is well formed.
func (a *Automation) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidAutomation)
	}

	if a.Trigger == nil {
		return fmt.Errorf("%w: automation %s has no trigger", ErrInvalidAutomation, a.ID)
	}

	switch trigger := a.Trigger.(type) {
	case StageEnter:
		if trigger.Stage == "" {
			return fmt.Errorf("%w: automation %s stage_enter needs a stage", ErrInvalidAutomation, a.ID)
		}
	case StageExit:
		if trigger.Stage == "" {
			return fmt.Errorf("%w: automation %s stage_exit needs a stage", ErrInvalidAutomation, a.ID)
		}
	case DealAge:
		if trigger.Days < 0 {
			return fmt.Errorf("%w: automation %s deal_age days must not be negative", ErrInvalidAutomation, a.ID)
		}
	}

	for i, condition := range a.Conditions {
		if condition.Field == "" || !condition.Operator.Valid() {
			return fmt.Errorf("%w: automation %s condition %d is malformed", ErrInvalidAutomation, a.ID, i)
		}

		if condition.Value == nil && condition.Operator != OperatorEquals && condition.Operator != OperatorNotEquals {
			return fmt.Errorf("%w: automation %s condition %d %s needs a value", ErrInvalidAutomation, a.ID, i, condition.Operator)
		}
	}

	for i, action := range a.Actions {
		switch act := action.(type) {
		case MoveStage:
			if act.Stage == "" {
				return fmt.Errorf("%w: automation %s action %d move_stage needs a stage", ErrInvalidAutomation, a.ID, i)
			}
		case CreateTask:
			if act.Title == "" || act.DueInDays < 0 {
				return fmt.Errorf("%w: automation %s action %d create_task is malformed", ErrInvalidAutomation, a.ID, i)
			}
		case SendEmail:
			if act.Template == "" || act.Recipient == "" {
				return fmt.Errorf("%w: automation %s action %d send_email is malformed", ErrInvalidAutomation, a.ID, i)
			}
		case NotifyUser:
			if act.UserID == "" {
				return fmt.Errorf("%w: automation %s action %d notify_user needs a user", ErrInvalidAutomation, a.ID, i)
			}
		case nil:
			return fmt.Errorf("%w: automation %s action %d is empty", ErrInvalidAutomation, a.ID, i)
		}
	}

	return nil
}

type automationJSON struct {
	ID         string            `json:"id"`
	Name       string            `json:"name,omitempty"`
	Enabled    bool              `json:"enabled"`
	Trigger    *triggerEnvelope  `json:"trigger"`
	Conditions []Condition       `json:"conditions"`
	Actions    []*actionEnvelope `json:"actions"`
}

// MarshalJSON encodes triggers and actions as type-tagged objects.
func (a Automation) MarshalJSON() ([]byte, error) {
	out := automationJSON{
		ID:         a.ID,
		Name:       a.Name,
		Enabled:    a.Enabled,
		Conditions: a.Conditions,
		Actions:    make([]*actionEnvelope, 0, len(a.Actions)),
	}

	if out.Conditions == nil {
		out.Conditions = []Condition{}
	}

	if a.Trigger != nil {
		out.Trigger = envelopeTrigger(a.Trigger)
	}

	for _, action := range a.Actions {
		out.Actions = append(out.Actions, envelopeAction(action))
	}

	return json.Marshal(out)
}

// UnmarshalJSON decodes type-tagged triggers and actions, rejecting unknown tags.
func (a *Automation) UnmarshalJSON(data []byte) error {
	var in automationJSON

	err := json.Unmarshal(data, &in)
	if err != nil {
		return err
	}

	a.ID = in.ID
	a.Name = in.Name
	a.Enabled = in.Enabled
	a.Conditions = in.Conditions
	a.Trigger = nil
	a.Actions = make([]Action, 0, len(in.Actions))

	if in.Trigger != nil {
		a.Trigger, err = in.Trigger.trigger()
		if err != nil {
			return fmt.Errorf("automation %s: %w", in.ID, err)
		}
	}

	for _, envelope := range in.Actions {
		if envelope == nil {
			continue
		}

		action, err := envelope.action()
		if err != nil {
			return fmt.Errorf("automation %s: %w", in.ID, err)
		}

		a.Actions = append(a.Actions, action)
	}

	return nil
}
