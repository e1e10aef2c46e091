package policy

import (
	"testing"
)

func validPolicy() *Policy {
	cond, _ := NewCondition("acknowledged", "equals", true)
	return &Policy{
		ID:                  "pol-1",
		Code:                "FLT-SAF-001",
		Name:                "OSHA acknowledgement",
		OperationType:       "vehicle_dispatch",
		Conditions:          []Condition{cond},
		Mode:                ModeAutonomous,
		Severity:            SeveritySerious,
		Confidence:          0.97,
		ConfidenceThreshold: 0.95,
		LifecycleState:      StateDraft,
		ReviewCycleMonths:   6,
	}
}

func TestPolicy_Validate(t *testing.T) {
	if err := validPolicy().Validate(); err != nil {
		t.Fatalf("valid policy rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Policy)
	}{
		{"missing code", func(p *Policy) { p.Code = "" }},
		{"missing operation type", func(p *Policy) { p.OperationType = "" }},
		{"invalid mode", func(p *Policy) { p.Mode = "advisory" }},
		{"invalid severity", func(p *Policy) { p.Severity = "catastrophic" }},
		{"confidence above 1", func(p *Policy) { p.Confidence = 1.2 }},
		{"threshold below 0", func(p *Policy) { p.ConfidenceThreshold = -0.1 }},
		{"negative review cycle", func(p *Policy) { p.ReviewCycleMonths = -1 }},
		{"undecoded condition", func(p *Policy) { p.Conditions = []Condition{{Field: "x", Operator: OperatorEquals}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPolicy()
			tt.mutate(p)
			if err := p.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestParseSeverity_Aliases(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
	}{
		{"minor", SeverityMinor},
		{"low", SeverityMinor},
		{"moderate", SeverityModerate},
		{"medium", SeverityModerate},
		{"serious", SeveritySerious},
		{"high", SeveritySerious},
		{"critical", SeverityCritical},
	}
	for _, tt := range tests {
		got, err := ParseSeverity(tt.in)
		if err != nil {
			t.Errorf("ParseSeverity(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSeverity(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := ParseSeverity("catastrophic"); err == nil {
		t.Error("ParseSeverity accepted unknown severity")
	}
}

func TestMaxSeverity(t *testing.T) {
	if got := MaxSeverity(SeverityMinor, SeverityCritical); got != SeverityCritical {
		t.Errorf("MaxSeverity = %v, want critical", got)
	}
	if got := MaxSeverity(SeveritySerious, SeverityModerate); got != SeveritySerious {
		t.Errorf("MaxSeverity = %v, want serious", got)
	}
}

func TestPolicy_Clone(t *testing.T) {
	p := validPolicy()
	cp := p.Clone()

	cp.Conditions[0] = Condition{}
	cp.Code = "OTHER"

	if p.Code != "FLT-SAF-001" {
		t.Error("clone mutation leaked into original code")
	}
	if p.Conditions[0].Field != "acknowledged" {
		t.Error("clone mutation leaked into original conditions")
	}
}
