package model

import "testing"

func TestSeverityString(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityLow, "LOW"},
		{SeverityMedium, "MEDIUM"},
		{SeverityHigh, "HIGH"},
		{Severity(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Severity
		wantErr bool
	}{
		{"upper", "HIGH", SeverityHigh, false},
		{"lower", "medium", SeverityMedium, false},
		{"padded", "  low ", SeverityLow, false},
		{"unknown", "critical", SeverityLow, true},
		{"empty", "", SeverityLow, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSeverity(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSeverity(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseSeverity(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLogEntryLine(t *testing.T) {
	e := LogEntry{Timestamp: "T1", Message: "Failed password for admin", Severity: SeverityHigh}

	if got := e.Line(false); got != "T1: Failed password for admin" {
		t.Errorf("Line(false) = %q", got)
	}
	if got := e.Line(true); got != "T1: Failed password for admin [Severity: HIGH]" {
		t.Errorf("Line(true) = %q", got)
	}
}

func TestLogEntryValid(t *testing.T) {
	if !(LogEntry{Timestamp: "T", Message: "m"}).Valid() {
		t.Error("expected entry with both fields to be valid")
	}
	if (LogEntry{Timestamp: "", Message: "m"}).Valid() {
		t.Error("expected entry without timestamp to be invalid")
	}
	if (LogEntry{Timestamp: "T", Message: ""}).Valid() {
		t.Error("expected entry without message to be invalid")
	}
}

func TestCountBySeverity(t *testing.T) {
	entries := []LogEntry{
		{Timestamp: "1", Message: "a", Severity: SeverityHigh},
		{Timestamp: "2", Message: "b", Severity: SeverityHigh},
		{Timestamp: "3", Message: "c", Severity: SeverityLow},
	}

	counts := CountBySeverity(entries)
	if counts["HIGH"] != 2 || counts["LOW"] != 1 || counts["MEDIUM"] != 0 {
		t.Errorf("CountBySeverity() = %v", counts)
	}
}
