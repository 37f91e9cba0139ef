package models

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// FieldType is the declared type of a custom field.
type FieldType string

const (
	FieldTypeText   FieldType = "text"
	FieldTypeNumber FieldType = "number"
	FieldTypeDate   FieldType = "date"
	FieldTypeBool   FieldType = "bool"
)

var (
	ErrDuplicateStage      = errors.New("duplicate stage")
	ErrEmptyStages         = errors.New("pipeline must declare at least one stage")
	ErrUnknownStage        = errors.New("stage is not part of the pipeline")
	ErrDuplicateAutomation = errors.New("duplicate automation id")
)

// FieldDefinition declares a custom field and its type for a pipeline.
type FieldDefinition struct {
	Key  string    `json:"key"  validate:"required"`
	Type FieldType `json:"type" validate:"required,oneof=text number date bool"`
}

// Pipeline is an account scoped, ordered sequence of stages plus the
// automations that react to deals moving through them.
type Pipeline struct {
	ID           string            `json:"id"            validate:"required"`
	AccountID    string            `json:"account_id"    validate:"required"`
	Name         string            `json:"name"          validate:"required,min=3"`
	Stages       []string          `json:"stages"        validate:"required,min=1,dive,required"`
	CustomFields []FieldDefinition `json:"custom_fields,omitempty" validate:"dive"`
	Automations  []*Automation     `json:"automations"   validate:"dive"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// HasStage reports whether stage is one of the pipeline stages.
func (p *Pipeline) HasStage(stage string) bool {
	return slices.Contains(p.Stages, stage)
}

// EnabledAutomations returns the enabled automations in configured order.
func (p *Pipeline) EnabledAutomations() []*Automation {
	enabled := make([]*Automation, 0, len(p.Automations))

	for _, automation := range p.Automations {
		if automation != nil && automation.Enabled {
			enabled = append(enabled, automation)
		}
	}

	return enabled
}

// FieldTypes returns the declared custom field types keyed by field key.
func (p *Pipeline) FieldTypes() map[string]FieldType {
	types := make(map[string]FieldType, len(p.CustomFields))
	for _, field := range p.CustomFields {
		types[field.Key] = field.Type
	}

	return types
}

// Validate checks the structural invariants that struct tags cannot express:
// unique stages and automations that only reference stages of this pipeline.
func (p *Pipeline) Validate() error {
	if len(p.Stages) == 0 {
		return ErrEmptyStages
	}

	seen := make(map[string]bool, len(p.Stages))
	for _, stage := range p.Stages {
		if seen[stage] {
			return fmt.Errorf("%w: %s", ErrDuplicateStage, stage)
		}

		seen[stage] = true
	}

	ids := make(map[string]bool, len(p.Automations))

	for _, automation := range p.Automations {
		if automation == nil {
			continue
		}

		if ids[automation.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateAutomation, automation.ID)
		}

		ids[automation.ID] = true

		if err := automation.Validate(); err != nil {
			return err
		}

		for _, stage := range automation.ReferencedStages() {
			if !seen[stage] {
				return fmt.Errorf("%w: automation %s references %q", ErrUnknownStage, automation.ID, stage)
			}
		}
	}

	return nil
}
