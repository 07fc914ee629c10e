package analyzer

import (
	"reflect"
	"testing"

	"github.com/olegiv/seclog-ai-go/internal/model"
)

func entry(ts, msg string, sev model.Severity) model.LogEntry {
	return model.LogEntry{Timestamp: ts, Message: msg, Severity: sev}
}

func TestParseFilterPolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    FilterPolicy
		wantErr bool
	}{
		{"", PolicySeverity, false},
		{"severity", PolicySeverity, false},
		{"  Severity ", PolicySeverity, false},
		{"keyword", PolicyKeyword, false},
		{"KEYWORD", PolicyKeyword, false},
		{"all", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFilterPolicy(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFilterPolicy(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFilterPolicy(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFilterPolicy_IsLegacy(t *testing.T) {
	if PolicySeverity.IsLegacy() {
		t.Error("severity policy should not be legacy")
	}
	if !PolicyKeyword.IsLegacy() {
		t.Error("keyword policy should be legacy")
	}
}

func TestFilter_Severity(t *testing.T) {
	entries := []model.LogEntry{
		entry("t1", "Login failed", model.SeverityHigh),
		entry("t2", "User logged in", model.SeverityLow),
		entry("t3", "Unauthorized access", model.SeverityHigh),
		entry("t4", "Suspicious request", model.SeverityMedium),
	}

	got := Filter(entries, PolicySeverity)
	if len(got) != 2 {
		t.Fatalf("Filter() returned %d entries, want 2", len(got))
	}
	if got[0].Timestamp != "t1" || got[1].Timestamp != "t3" {
		t.Errorf("Filter() order = [%s %s], want [t1 t3]", got[0].Timestamp, got[1].Timestamp)
	}
	if len(entries) != 4 {
		t.Error("Filter() modified input slice")
	}
}

func TestFilter_Keyword(t *testing.T) {
	entries := []model.LogEntry{
		entry("t1", "Login FAILED", model.SeverityHigh),
		entry("t2", "Unauthorized access", model.SeverityHigh),
		entry("t3", "Failed health probe", model.SeverityLow),
	}

	got := Filter(entries, PolicyKeyword)
	if len(got) != 2 {
		t.Fatalf("Filter() returned %d entries, want 2", len(got))
	}
	if got[0].Timestamp != "t1" || got[1].Timestamp != "t3" {
		t.Errorf("Filter() = [%s %s], want [t1 t3]", got[0].Timestamp, got[1].Timestamp)
	}
}

func TestFilter_Empty(t *testing.T) {
	got := Filter(nil, PolicySeverity)
	if got == nil || len(got) != 0 {
		t.Errorf("Filter(nil) = %v, want empty non-nil slice", got)
	}
}

func TestFilter_ResultIsSubsetInOrder(t *testing.T) {
	c := NewKeywordClassifier()
	msgs := []string{"a failed", "b ok", "c unauthorized", "d suspicious", "e failed again"}
	entries := make([]model.LogEntry, 0, len(msgs))
	for i, m := range msgs {
		entries = append(entries, entry(string(rune('0'+i)), m, Classify(c, m)))
	}

	for _, policy := range []FilterPolicy{PolicySeverity, PolicyKeyword} {
		got := Filter(entries, policy)
		j := 0
		for _, g := range got {
			for j < len(entries) && entries[j] != g {
				j++
			}
			if j == len(entries) {
				t.Fatalf("policy %s: %v not found in order", policy, g)
			}
			j++
		}

		again := Filter(got, policy)
		if !reflect.DeepEqual(again, got) {
			t.Errorf("policy %s: filtering twice = %v, want %v", policy, again, got)
		}
	}
}
