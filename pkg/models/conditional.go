package models

// Operator is a comparison applied by a condition.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
	OperatorContains    Operator = "contains"
)

// Valid reports whether the operator is one of the supported comparisons.
func (o Operator) Valid() bool {
	switch o {
	case OperatorEquals, OperatorNotEquals, OperatorGreaterThan, OperatorLessThan, OperatorContains:
		return true
	default:
		return false
	}
}

// Condition is a boolean predicate over a deal field. The conditions of an
// automation are AND-ed.
type Condition struct {
	Field    string   `json:"field"    validate:"required"`
	Operator Operator `json:"operator" validate:"required,oneof=equals not_equals greater_than less_than contains"`
	Value    any      `json:"value"`
}
