package policy

import (
	"encoding/json"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Operator identifies one of the twelve supported condition operators.
// The set is deliberately closed: policies get no nesting, no OR, and no
// general expression language, which keeps evaluation total and auditable.
type Operator string

const (
	OperatorEquals         Operator = "equals"
	OperatorNotEquals      Operator = "notEquals"
	OperatorGreaterThan    Operator = "greaterThan"
	OperatorLessThan       Operator = "lessThan"
	OperatorGreaterOrEqual Operator = "greaterOrEqual"
	OperatorLessOrEqual    Operator = "lessOrEqual"
	OperatorContains       Operator = "contains"
	OperatorNotContains    Operator = "notContains"
	OperatorIn             Operator = "in"
	OperatorNotIn          Operator = "notIn"
	OperatorMatches        Operator = "matches"
	OperatorBetween        Operator = "between"
)

// Condition is a single field/operator/value test within a policy. The
// value payload is operator-typed and populated during decoding; once a
// Condition exists it is guaranteed evaluable.
type Condition struct {
	// Field is the key looked up in the operation context.
	Field string

	// Operator selects the comparison applied to the context value.
	Operator Operator

	// scalar holds the declared value for equals/notEquals and the
	// substring for contains/notContains. One of string, float64, or bool.
	scalar any

	// threshold holds the numeric bound for the four ordering operators.
	threshold float64

	// list holds the membership set for in/notIn.
	list []any

	// low and high hold the inclusive bounds for between.
	low, high float64

	// pattern holds the compiled expression for matches. Compilation
	// happens at decode time; a malformed pattern is a configuration
	// error, not an evaluation error.
	pattern *regexp.Regexp

	// rawValue preserves the wire-form value for re-serialization.
	rawValue any
}

// conditionWire is the untyped JSON/YAML form of a condition.
type conditionWire struct {
	Field    string `json:"field" yaml:"field"`
	Operator string `json:"operator" yaml:"operator"`
	Value    any    `json:"value" yaml:"value"`
}

// NewCondition decodes a field/operator/value triple into a typed
// Condition, validating the value shape against the operator.
func NewCondition(field, operator string, value any) (Condition, error) {
	c := Condition{Field: field, Operator: Operator(operator), rawValue: value}
	if field == "" {
		return Condition{}, &ConditionDecodeError{Field: field, Operator: operator, Reason: "field is required"}
	}

	switch c.Operator {
	case OperatorEquals, OperatorNotEquals:
		s, err := normalizeScalar(value)
		if err != nil {
			return Condition{}, &ConditionDecodeError{Field: field, Operator: operator, Reason: "value must be a string, number, or boolean", Cause: err}
		}
		c.scalar = s

	case OperatorGreaterThan, OperatorLessThan, OperatorGreaterOrEqual, OperatorLessOrEqual:
		n, ok := toFloat64(value)
		if !ok {
			return Condition{}, &ConditionDecodeError{Field: field, Operator: operator, Reason: "value must be numeric"}
		}
		c.threshold = n

	case OperatorContains, OperatorNotContains:
		s, err := normalizeScalar(value)
		if err != nil {
			return Condition{}, &ConditionDecodeError{Field: field, Operator: operator, Reason: "value must be a string or number", Cause: err}
		}
		if _, isBool := s.(bool); isBool {
			return Condition{}, &ConditionDecodeError{Field: field, Operator: operator, Reason: "value must be a string or number"}
		}
		c.scalar = s

	case OperatorIn, OperatorNotIn:
		items, err := normalizeList(value)
		if err != nil {
			return Condition{}, &ConditionDecodeError{Field: field, Operator: operator, Reason: "value must be an array of scalars", Cause: err}
		}
		c.list = items

	case OperatorMatches:
		pat, ok := value.(string)
		if !ok {
			return Condition{}, &ConditionDecodeError{Field: field, Operator: operator, Reason: "value must be a regular expression string"}
		}
		re, err := regexp.Compile(pat)
		if err != nil {
			return Condition{}, &ConditionDecodeError{Field: field, Operator: operator, Reason: "invalid regular expression", Cause: err}
		}
		c.pattern = re

	case OperatorBetween:
		items, err := normalizeList(value)
		if err != nil || len(items) != 2 {
			return Condition{}, &ConditionDecodeError{Field: field, Operator: operator, Reason: "value must be a two-element [low, high] array", Cause: err}
		}
		low, lok := toFloat64(items[0])
		high, hok := toFloat64(items[1])
		if !lok || !hok {
			return Condition{}, &ConditionDecodeError{Field: field, Operator: operator, Reason: "between bounds must be numeric"}
		}
		if low > high {
			return Condition{}, &ConditionDecodeError{Field: field, Operator: operator, Reason: fmt.Sprintf("low bound %v exceeds high bound %v", low, high)}
		}
		c.low, c.high = low, high

	default:
		return Condition{}, &ConditionDecodeError{Field: field, Operator: operator, Reason: "unsupported operator", Cause: ErrUnknownOperator}
	}

	return c, nil
}

// validate re-checks that the condition carries a decoded payload. A
// zero-value Condition (constructed without NewCondition) fails here.
func (c *Condition) validate() error {
	switch c.Operator {
	case OperatorEquals, OperatorNotEquals, OperatorContains, OperatorNotContains:
		if c.scalar == nil {
			return &ConditionDecodeError{Field: c.Field, Operator: string(c.Operator), Reason: "missing decoded scalar value"}
		}
	case OperatorIn, OperatorNotIn:
		if c.list == nil {
			return &ConditionDecodeError{Field: c.Field, Operator: string(c.Operator), Reason: "missing decoded list value"}
		}
	case OperatorMatches:
		if c.pattern == nil {
			return &ConditionDecodeError{Field: c.Field, Operator: string(c.Operator), Reason: "missing compiled pattern"}
		}
	case OperatorGreaterThan, OperatorLessThan, OperatorGreaterOrEqual, OperatorLessOrEqual, OperatorBetween:
		// Numeric payloads have valid zero values.
	default:
		return &ConditionDecodeError{Field: c.Field, Operator: string(c.Operator), Reason: "unsupported operator", Cause: ErrUnknownOperator}
	}
	if c.Field == "" {
		return &ConditionDecodeError{Field: c.Field, Operator: string(c.Operator), Reason: "field is required"}
	}
	return nil
}

// UnmarshalJSON decodes and validates a condition from its wire form.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var wire conditionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	decoded, err := NewCondition(wire.Field, wire.Operator, wire.Value)
	if err != nil {
		return err
	}
	*c = decoded
	return nil
}

// MarshalJSON re-serializes the condition in its wire form.
func (c Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal(conditionWire{
		Field:    c.Field,
		Operator: string(c.Operator),
		Value:    c.rawValue,
	})
}

// UnmarshalYAML decodes and validates a condition from a policy seed
// document.
func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	var wire conditionWire
	if err := node.Decode(&wire); err != nil {
		return err
	}
	decoded, err := NewCondition(wire.Field, wire.Operator, wire.Value)
	if err != nil {
		return err
	}
	*c = decoded
	return nil
}

// MarshalYAML re-serializes the condition in its wire form.
func (c Condition) MarshalYAML() (any, error) {
	return conditionWire{
		Field:    c.Field,
		Operator: string(c.Operator),
		Value:    c.rawValue,
	}, nil
}

// normalizeScalar converts a decoded JSON/YAML scalar to one of string,
// float64, or bool.
func normalizeScalar(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case bool:
		return val, nil
	default:
		if n, ok := toFloat64(v); ok {
			return n, nil
		}
		return nil, fmt.Errorf("unsupported scalar type %T", v)
	}
}

// normalizeList converts a decoded JSON/YAML array into a slice of
// normalized scalars.
func normalizeList(v any) ([]any, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", v)
	}
	out := make([]any, 0, len(items))
	for i, item := range items {
		s, err := normalizeScalar(item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}
