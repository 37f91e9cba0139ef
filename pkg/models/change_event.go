package models

import (
	"fmt"
	"strings"
	"time"
)

// CauseKind identifies what produced a deal change.
type CauseKind string

const (
	CauseManual        CauseKind = "manual"
	CauseAutomation    CauseKind = "automation"
	CauseTaskCompleted CauseKind = "task_completed"
	CauseAgeSweep      CauseKind = "age_sweep"
)

// Cause tags a DealChangeEvent with its origin. It travels as a string:
// "manual", "automation:<ruleId>", "task_completed:<taskType>", "age_sweep".
type Cause struct {
	Kind     CauseKind
	RuleID   string
	TaskType string
}

func ManualCause() Cause { return Cause{Kind: CauseManual} }

func AutomationCause(ruleID string) Cause { return Cause{Kind: CauseAutomation, RuleID: ruleID} }

func TaskCompletedCause(taskType string) Cause {
	return Cause{Kind: CauseTaskCompleted, TaskType: taskType}
}

func AgeSweepCause() Cause { return Cause{Kind: CauseAgeSweep} }

// IsAutomation reports whether the change was produced by an automation action.
func (c Cause) IsAutomation() bool {
	return c.Kind == CauseAutomation
}

func (c Cause) String() string {
	switch c.Kind {
	case CauseAutomation:
		return string(CauseAutomation) + ":" + c.RuleID
	case CauseTaskCompleted:
		if c.TaskType == "" {
			return string(CauseTaskCompleted)
		}

		return string(CauseTaskCompleted) + ":" + c.TaskType
	case "":
		return string(CauseManual)
	default:
		return string(c.Kind)
	}
}

// ParseCause parses the string form of a cause.
func ParseCause(value string) (Cause, error) {
	kind, detail, _ := strings.Cut(value, ":")

	switch CauseKind(kind) {
	case CauseManual, "":
		return ManualCause(), nil
	case CauseAutomation:
		if detail == "" {
			return Cause{}, fmt.Errorf("automation cause %q is missing the rule id", value)
		}

		return AutomationCause(detail), nil
	case CauseTaskCompleted:
		return TaskCompletedCause(detail), nil
	case CauseAgeSweep:
		return AgeSweepCause(), nil
	default:
		return Cause{}, fmt.Errorf("unknown cause %q", value)
	}
}

func (c Cause) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Cause) UnmarshalText(text []byte) error {
	parsed, err := ParseCause(string(text))
	if err != nil {
		return err
	}

	*c = parsed

	return nil
}

// DealChangeEvent is an immutable snapshot pair describing one change to a
// deal. Before is nil when the deal was just created.
type DealChangeEvent struct {
	ID         string    `json:"id"`
	Before     *Deal     `json:"before,omitempty"`
	After      Deal      `json:"after"`
	Cause      Cause     `json:"cause"`
	OccurredAt time.Time `json:"occurred_at"`
}

// DealID returns the id of the deal the event is about.
func (e DealChangeEvent) DealID() string {
	return e.After.ID
}

// IsCreation reports whether the event describes a newly created deal.
func (e DealChangeEvent) IsCreation() bool {
	return e.Before == nil
}
