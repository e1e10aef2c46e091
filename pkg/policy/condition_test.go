package policy

import (
	"encoding/json"
	"testing"
)

// TestEvaluate_Operators exercises each operator against matching and
// non-matching context values.
func TestEvaluate_Operators(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		operator string
		value    any
		ctx      map[string]any
		want     bool
	}{
		{
			name:     "equals string match",
			field:    "status",
			operator: "equals",
			value:    "dispatched",
			ctx:      map[string]any{"status": "dispatched"},
			want:     true,
		},
		{
			name:     "equals string mismatch",
			field:    "status",
			operator: "equals",
			value:    "dispatched",
			ctx:      map[string]any{"status": "idle"},
			want:     false,
		},
		{
			name:     "equals numeric coercion int vs float",
			field:    "speed",
			operator: "equals",
			value:    float64(65),
			ctx:      map[string]any{"speed": 65},
			want:     true,
		},
		{
			name:     "equals bool",
			field:    "oshaRecordable",
			operator: "equals",
			value:    true,
			ctx:      map[string]any{"oshaRecordable": true},
			want:     true,
		},
		{
			name:     "notEquals match",
			field:    "status",
			operator: "notEquals",
			value:    "idle",
			ctx:      map[string]any{"status": "dispatched"},
			want:     true,
		},
		{
			name:     "notEquals type mismatch fails closed",
			field:    "status",
			operator: "notEquals",
			value:    float64(5),
			ctx:      map[string]any{"status": "dispatched"},
			want:     false,
		},
		{
			name:     "greaterThan",
			field:    "hoursOnDuty",
			operator: "greaterThan",
			value:    float64(10),
			ctx:      map[string]any{"hoursOnDuty": 11.5},
			want:     true,
		},
		{
			name:     "greaterThan non-numeric fails closed",
			field:    "hoursOnDuty",
			operator: "greaterThan",
			value:    float64(10),
			ctx:      map[string]any{"hoursOnDuty": "a lot"},
			want:     false,
		},
		{
			name:     "lessThan",
			field:    "tirePressure",
			operator: "lessThan",
			value:    float64(30),
			ctx:      map[string]any{"tirePressure": 28},
			want:     true,
		},
		{
			name:     "greaterOrEqual boundary",
			field:    "load",
			operator: "greaterOrEqual",
			value:    float64(100),
			ctx:      map[string]any{"load": 100},
			want:     true,
		},
		{
			name:     "lessOrEqual boundary",
			field:    "load",
			operator: "lessOrEqual",
			value:    float64(100),
			ctx:      map[string]any{"load": 100},
			want:     true,
		},
		{
			name:     "contains substring",
			field:    "route",
			operator: "contains",
			value:    "I-80",
			ctx:      map[string]any{"route": "depot via I-80 north"},
			want:     true,
		},
		{
			name:     "contains array membership",
			field:    "certifications",
			operator: "contains",
			value:    "hazmat",
			ctx:      map[string]any{"certifications": []any{"cdl-a", "hazmat"}},
			want:     true,
		},
		{
			name:     "notContains",
			field:    "route",
			operator: "notContains",
			value:    "closed-segment",
			ctx:      map[string]any{"route": "depot via I-80 north"},
			want:     true,
		},
		{
			name:     "notContains non-container fails closed",
			field:    "route",
			operator: "notContains",
			value:    "x",
			ctx:      map[string]any{"route": 42},
			want:     false,
		},
		{
			name:     "in membership",
			field:    "region",
			operator: "in",
			value:    []any{"west", "central"},
			ctx:      map[string]any{"region": "west"},
			want:     true,
		},
		{
			name:     "notIn",
			field:    "region",
			operator: "notIn",
			value:    []any{"west", "central"},
			ctx:      map[string]any{"region": "east"},
			want:     true,
		},
		{
			name:     "matches",
			field:    "vehicleId",
			operator: "matches",
			value:    `^VH-\d{4}$`,
			ctx:      map[string]any{"vehicleId": "VH-0042"},
			want:     true,
		},
		{
			name:     "matches non-string fails closed",
			field:    "vehicleId",
			operator: "matches",
			value:    `^VH-\d{4}$`,
			ctx:      map[string]any{"vehicleId": 42},
			want:     false,
		},
		{
			name:     "between inclusive low",
			field:    "temperature",
			operator: "between",
			value:    []any{float64(-10), float64(40)},
			ctx:      map[string]any{"temperature": -10},
			want:     true,
		},
		{
			name:     "between outside range",
			field:    "temperature",
			operator: "between",
			value:    []any{float64(-10), float64(40)},
			ctx:      map[string]any{"temperature": 45},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond, err := NewCondition(tt.field, tt.operator, tt.value)
			if err != nil {
				t.Fatalf("NewCondition() error = %v", err)
			}
			if got := cond.Evaluate(tt.ctx); got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestEvaluate_MissingFieldFailsClosed verifies that every operator
// resolves to false when the referenced field is absent from the context.
func TestEvaluate_MissingFieldFailsClosed(t *testing.T) {
	conds := []struct {
		operator string
		value    any
	}{
		{"equals", "x"},
		{"notEquals", "x"},
		{"greaterThan", float64(1)},
		{"lessThan", float64(1)},
		{"greaterOrEqual", float64(1)},
		{"lessOrEqual", float64(1)},
		{"contains", "x"},
		{"notContains", "x"},
		{"in", []any{"x"}},
		{"notIn", []any{"x"}},
		{"matches", "^x$"},
		{"between", []any{float64(0), float64(1)}},
	}

	emptyCtx := map[string]any{}
	nilFieldCtx := map[string]any{"missing": nil}

	for _, tc := range conds {
		cond, err := NewCondition("missing", tc.operator, tc.value)
		if err != nil {
			t.Fatalf("NewCondition(%s) error = %v", tc.operator, err)
		}
		if cond.Evaluate(emptyCtx) {
			t.Errorf("operator %s: Evaluate with missing field = true, want false", tc.operator)
		}
		if cond.Evaluate(nilFieldCtx) {
			t.Errorf("operator %s: Evaluate with nil field = true, want false", tc.operator)
		}
	}
}

// TestEvaluateAll_EmptyConditionsPass verifies the empty list is always
// satisfied.
func TestEvaluateAll_EmptyConditionsPass(t *testing.T) {
	if !EvaluateAll(nil, map[string]any{"anything": 1}) {
		t.Error("EvaluateAll(nil) = false, want true")
	}
	if !EvaluateAll([]Condition{}, map[string]any{}) {
		t.Error("EvaluateAll(empty) = false, want true")
	}
}

// TestEvaluateAll_ANDReduce verifies conjunction semantics.
func TestEvaluateAll_ANDReduce(t *testing.T) {
	c1, _ := NewCondition("a", "equals", "yes")
	c2, _ := NewCondition("b", "greaterThan", float64(5))

	ctx := map[string]any{"a": "yes", "b": 10}
	if !EvaluateAll([]Condition{c1, c2}, ctx) {
		t.Error("both satisfied: want true")
	}

	ctx["b"] = 3
	if EvaluateAll([]Condition{c1, c2}, ctx) {
		t.Error("one unsatisfied: want false")
	}
}

// TestNewCondition_DecodeErrors verifies malformed conditions are rejected
// at decode time.
func TestNewCondition_DecodeErrors(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		operator string
		value    any
	}{
		{"unknown operator", "f", "approximately", "x"},
		{"empty field", "", "equals", "x"},
		{"malformed regex", "f", "matches", "("},
		{"matches non-string pattern", "f", "matches", 5},
		{"between wrong arity", "f", "between", []any{float64(1)}},
		{"between non-numeric bounds", "f", "between", []any{"a", "b"}},
		{"between inverted bounds", "f", "between", []any{float64(9), float64(1)}},
		{"in non-array", "f", "in", "x"},
		{"greaterThan non-numeric", "f", "greaterThan", "fast"},
		{"equals object value", "f", "equals", map[string]any{"k": "v"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCondition(tt.field, tt.operator, tt.value); err == nil {
				t.Errorf("NewCondition(%q, %q, %v) succeeded, want error", tt.field, tt.operator, tt.value)
			}
		})
	}
}

// TestCondition_JSONRoundTrip verifies conditions survive storage
// serialization with their wire form intact.
func TestCondition_JSONRoundTrip(t *testing.T) {
	raw := `[{"field":"oshaRecordable","operator":"equals","value":true},
	         {"field":"hoursOnDuty","operator":"between","value":[0,11]},
	         {"field":"region","operator":"in","value":["west","central"]}]`

	var conds []Condition
	if err := json.Unmarshal([]byte(raw), &conds); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(conds) != 3 {
		t.Fatalf("decoded %d conditions, want 3", len(conds))
	}

	data, err := json.Marshal(conds)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var again []Condition
	if err := json.Unmarshal(data, &again); err != nil {
		t.Fatalf("re-Unmarshal() error = %v", err)
	}

	ctx := map[string]any{"oshaRecordable": true, "hoursOnDuty": 8, "region": "west"}
	if !EvaluateAll(again, ctx) {
		t.Error("round-tripped conditions no longer evaluate correctly")
	}
}

// TestCondition_JSONRejectsMalformed verifies that malformed conditions do
// not survive unmarshalling.
func TestCondition_JSONRejectsMalformed(t *testing.T) {
	var c Condition
	if err := json.Unmarshal([]byte(`{"field":"x","operator":"matches","value":"("}`), &c); err == nil {
		t.Error("malformed regex survived JSON decoding")
	}
}
