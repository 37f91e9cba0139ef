package models

import "time"

// DiagnosticKind classifies a problem found while running automations.
type DiagnosticKind string

const (
	DiagnosticInvalidStage     DiagnosticKind = "invalid_stage"
	DiagnosticActionFailed     DiagnosticKind = "action_failed"
	DiagnosticCycleDetected    DiagnosticKind = "cycle_detected"
	DiagnosticSideEffectFailed DiagnosticKind = "side_effect_failed"
)

// Diagnostic is surfaced to the pipeline owner. It never stops other deals
// from being evaluated.
type Diagnostic struct {
	Kind       DiagnosticKind `json:"kind"`
	DealID     string         `json:"deal_id"`
	AccountID  string         `json:"account_id,omitempty"`
	PipelineID string         `json:"pipeline_id,omitempty"`
	RuleID     string         `json:"rule_id,omitempty"`
	Message    string         `json:"message"`
	OccurredAt time.Time      `json:"occurred_at"`
}
