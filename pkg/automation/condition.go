package automation

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/dealflow/pkg/models"
)

const customFieldPrefix = "custom_fields."

// fieldValue is a resolved deal field. Absent fields compare false under
// every operator but not_equals.
type fieldValue struct {
	value   any
	numeric bool
	present bool
}

// Evaluate reports whether every condition holds for deal. fieldTypes carries
// the declared custom field types of the owning pipeline and may be nil.
// Malformed conditions evaluate to false instead of failing.
func Evaluate(conditions []models.Condition, deal *models.Deal, fieldTypes map[string]models.FieldType) bool {
	for _, condition := range conditions {
		if !evaluateCondition(condition, deal, fieldTypes) {
			return false
		}
	}

	return true
}

func evaluateCondition(condition models.Condition, deal *models.Deal, fieldTypes map[string]models.FieldType) bool {
	field := resolveField(deal, condition.Field, fieldTypes)

	if !field.present {
		return condition.Operator == models.OperatorNotEquals
	}

	switch condition.Operator {
	case models.OperatorEquals:
		return valuesEqual(field, condition.Value)
	case models.OperatorNotEquals:
		return !valuesEqual(field, condition.Value)
	case models.OperatorGreaterThan:
		left, right, ok := numericPair(field.value, condition.Value)

		return ok && left > right
	case models.OperatorLessThan:
		left, right, ok := numericPair(field.value, condition.Value)

		return ok && left < right
	case models.OperatorContains:
		if condition.Value == nil {
			return false
		}

		return strings.Contains(stringify(field.value), stringify(condition.Value))
	default:
		return false
	}
}

func resolveField(deal *models.Deal, name string, fieldTypes map[string]models.FieldType) fieldValue {
	if deal == nil {
		return fieldValue{}
	}

	switch name {
	case "id":
		return fieldValue{value: deal.ID, present: true}
	case "title":
		return fieldValue{value: deal.Title, present: true}
	case "value":
		return fieldValue{value: deal.Value, numeric: true, present: true}
	case "currency":
		return fieldValue{value: deal.Currency, present: true}
	case "stage":
		return fieldValue{value: deal.Stage, present: true}
	case "probability":
		return fieldValue{value: deal.Probability, numeric: true, present: true}
	case "owner_id":
		return fieldValue{value: deal.OwnerID, present: true}
	case "account_id":
		return fieldValue{value: deal.AccountID, present: true}
	case "pipeline_id":
		return fieldValue{value: deal.PipelineID, present: true}
	case "expected_close_date":
		if deal.ExpectedCloseDate == nil {
			return fieldValue{}
		}

		return fieldValue{value: deal.ExpectedCloseDate.UTC().Format(time.RFC3339), present: true}
	case "created_at":
		return fieldValue{value: deal.CreatedAt.UTC().Format(time.RFC3339), present: true}
	case "updated_at":
		return fieldValue{value: deal.UpdatedAt.UTC().Format(time.RFC3339), present: true}
	}

	key := strings.TrimPrefix(name, customFieldPrefix)

	value, ok := deal.CustomFields[key]
	if !ok || value == nil {
		return fieldValue{}
	}

	_, isNumber := toFloat(value)
	numeric := fieldTypes[key] == models.FieldTypeNumber || (isNumber && !isString(value))

	return fieldValue{value: value, numeric: numeric, present: true}
}

func valuesEqual(field fieldValue, literal any) bool {
	if field.numeric {
		left, right, ok := numericPair(field.value, literal)
		if ok {
			return left == right
		}
	}

	if literal == nil {
		return false
	}

	return reflect.DeepEqual(field.value, literal)
}

// numericPair converts both sides to float64, parsing numeric strings.
func numericPair(left, right any) (float64, float64, bool) {
	l, ok := toFloat(left)
	if !ok {
		return 0, 0, false
	}

	r, ok := toFloat(right)
	if !ok {
		return 0, 0, false
	}

	return l, r, true
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}

		return parsed, true
	default:
		return 0, false
	}
}

func isString(value any) bool {
	_, ok := value.(string)

	return ok
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
