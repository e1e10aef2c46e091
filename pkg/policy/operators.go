package policy

import (
	"reflect"
	"strconv"
	"strings"
)

// Evaluate tests the condition against an operation context. It is total:
// a missing field or type mismatch resolves to false and no error or
// panic can escape. Negated operators (notEquals, notContains, notIn) are
// fail-closed too: an incomparable context value yields false, not true.
func (c *Condition) Evaluate(opCtx map[string]any) bool {
	actual, present := opCtx[c.Field]
	if !present || actual == nil {
		return false
	}

	switch c.Operator {
	case OperatorEquals:
		eq, comparable := scalarEqual(actual, c.scalar)
		return comparable && eq

	case OperatorNotEquals:
		eq, comparable := scalarEqual(actual, c.scalar)
		return comparable && !eq

	case OperatorGreaterThan:
		n, ok := toFloat64(actual)
		return ok && n > c.threshold

	case OperatorLessThan:
		n, ok := toFloat64(actual)
		return ok && n < c.threshold

	case OperatorGreaterOrEqual:
		n, ok := toFloat64(actual)
		return ok && n >= c.threshold

	case OperatorLessOrEqual:
		n, ok := toFloat64(actual)
		return ok && n <= c.threshold

	case OperatorContains:
		found, comparable := containsValue(actual, c.scalar)
		return comparable && found

	case OperatorNotContains:
		found, comparable := containsValue(actual, c.scalar)
		return comparable && !found

	case OperatorIn:
		return memberOf(actual, c.list)

	case OperatorNotIn:
		if !scalarComparable(actual) {
			return false
		}
		return !memberOf(actual, c.list)

	case OperatorMatches:
		s, ok := actual.(string)
		return ok && c.pattern.MatchString(s)

	case OperatorBetween:
		n, ok := toFloat64(actual)
		return ok && n >= c.low && n <= c.high

	default:
		// Unreachable for decoded conditions; fail closed regardless.
		return false
	}
}

// EvaluateAll AND-reduces the conditions against the operation context.
// An empty list returns true.
func EvaluateAll(conditions []Condition, opCtx map[string]any) bool {
	for i := range conditions {
		if !conditions[i].Evaluate(opCtx) {
			return false
		}
	}
	return true
}

// scalarEqual compares a context value against a declared scalar after
// coercing the context value to the declared type. The second return
// reports whether the two were comparable at all.
func scalarEqual(actual, declared any) (equal, comparable bool) {
	switch want := declared.(type) {
	case float64:
		n, ok := toFloat64(actual)
		if !ok {
			return false, false
		}
		return n == want, true
	case string:
		s, ok := actual.(string)
		if !ok {
			return false, false
		}
		return s == want, true
	case bool:
		b, ok := actual.(bool)
		if !ok {
			return false, false
		}
		return b == want, true
	default:
		return false, false
	}
}

// containsValue tests substring containment for string context values and
// element membership for slice context values.
func containsValue(actual, declared any) (found, comparable bool) {
	switch have := actual.(type) {
	case string:
		switch want := declared.(type) {
		case string:
			return strings.Contains(have, want), true
		case float64:
			return strings.Contains(have, strconv.FormatFloat(want, 'f', -1, 64)), true
		default:
			return false, false
		}
	default:
		v := reflect.ValueOf(actual)
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			return false, false
		}
		for i := 0; i < v.Len(); i++ {
			if eq, ok := scalarEqual(v.Index(i).Interface(), declared); ok && eq {
				return true, true
			}
		}
		return false, true
	}
}

// memberOf tests membership of the context value in the declared list.
func memberOf(actual any, list []any) bool {
	for _, item := range list {
		if eq, ok := scalarEqual(actual, item); ok && eq {
			return true
		}
	}
	return false
}

// scalarComparable reports whether the context value is a scalar that
// membership tests can meaningfully compare.
func scalarComparable(v any) bool {
	switch v.(type) {
	case string, bool:
		return true
	default:
		_, ok := toFloat64(v)
		return ok
	}
}

// toFloat64 converts numeric Go kinds and numeric strings to float64.
// Context maps arrive from JSON decoding (float64) but also from in-process
// callers, so the integer kinds matter.
func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case string:
		n, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
