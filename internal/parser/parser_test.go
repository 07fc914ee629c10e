package parser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/olegiv/seclog-ai-go/internal/errors"
	"github.com/olegiv/seclog-ai-go/internal/model"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"", ModeStrict, false},
		{"strict", ModeStrict, false},
		{"PERMISSIVE", ModePermissive, false},
		{"lenient", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParse_ScenarioA(t *testing.T) {
	p := New(ModeStrict, nil, 0)
	input := `[{"timestamp":"T1","message":"Failed password for admin"},{"timestamp":"T2","message":"User login successful"}]`

	entries, err := p.Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Parse() returned %d entries, want 2", len(entries))
	}

	want := []model.LogEntry{
		{Timestamp: "T1", Message: "Failed password for admin", Severity: model.SeverityHigh},
		{Timestamp: "T2", Message: "User login successful", Severity: model.SeverityLow},
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, entries[i], want[i])
		}
	}
}

func TestParse_EmptyArray(t *testing.T) {
	for _, mode := range []Mode{ModeStrict, ModePermissive} {
		t.Run(string(mode), func(t *testing.T) {
			entries, stats, err := New(mode, nil, 0).ParseWithStats([]byte(" [ ] "))
			if err != nil {
				t.Fatalf("ParseWithStats() error = %v", err)
			}
			if len(entries) != 0 || stats.Total != 0 {
				t.Errorf("got %d entries, stats %+v, want none", len(entries), stats)
			}
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	inputs := map[string]string{
		"not json":     `{not json`,
		"object":       `{"timestamp":"T1","message":"x"}`,
		"null":         `null`,
		"string":       `"hello"`,
		"empty":        ``,
		"whitespace":   "  \n ",
		"truncated":    `[{"timestamp":"T1","message":"x"}`,
		"trailing gap": `[{"timestamp":"T1","message":"x"},]`,
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			for _, mode := range []Mode{ModeStrict, ModePermissive} {
				_, err := New(mode, nil, 0).Parse([]byte(input))
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("mode %s: Parse() error = %v, want ErrMalformed", mode, err)
				}
				var pe *ParseError
				if !errors.As(err, &pe) || pe.Kind != Malformed {
					t.Errorf("mode %s: expected *ParseError with Malformed kind", mode)
				}
				if errors.Is(err, ErrSchemaViolation) {
					t.Errorf("mode %s: malformed error should not match ErrSchemaViolation", mode)
				}
			}
		})
	}
}

func TestParse_StrictSchemaViolation(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantIndex int
	}{
		{"missing message", `[{"timestamp":"T1","message":"ok"},{"timestamp":"T2"}]`, 1},
		{"missing timestamp", `[{"message":"x"}]`, 0},
		{"numeric timestamp", `[{"timestamp":123,"message":"x"}]`, 0},
		{"null message", `[{"timestamp":"T1","message":null}]`, 0},
		{"array element", `[["T1","x"]]`, 0},
		{"null element", `[null]`, 0},
		{"string element", `[{"timestamp":"a","message":"b"},{"timestamp":"c","message":"d"},"e"]`, 2},
	}

	p := New(ModeStrict, nil, 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := p.Parse([]byte(tt.input))
			if !errors.Is(err, ErrSchemaViolation) {
				t.Fatalf("Parse() error = %v, want ErrSchemaViolation", err)
			}
			if entries != nil {
				t.Errorf("strict failure should return no entries, got %v", entries)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatal("expected *ParseError")
			}
			if pe.Index != tt.wantIndex {
				t.Errorf("Index = %d, want %d", pe.Index, tt.wantIndex)
			}
			if !strings.Contains(pe.Error(), "index") {
				t.Errorf("Error() = %q, want index in message", pe.Error())
			}
		})
	}
}

func TestParse_PermissiveSkipsInvalid(t *testing.T) {
	input := `[
		{"timestamp":"T1","message":"Failed login"},
		{"timestamp":"T2"},
		{"timestamp":5,"message":"numeric"},
		"junk",
		{"timestamp":"T3","message":"Suspicious probe"}
	]`

	entries, stats, err := New(ModePermissive, nil, 0).ParseWithStats([]byte(input))
	if err != nil {
		t.Fatalf("ParseWithStats() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Timestamp != "T1" || entries[1].Timestamp != "T3" {
		t.Errorf("order = [%s %s], want [T1 T3]", entries[0].Timestamp, entries[1].Timestamp)
	}
	if entries[1].Severity != model.SeverityMedium {
		t.Errorf("T3 severity = %v, want MEDIUM", entries[1].Severity)
	}

	want := Stats{Total: 5, Kept: 2, Skipped: 3, Dropped: 0}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

func TestParse_EmptyFieldsDroppedInBothModes(t *testing.T) {
	input := `[{"timestamp":"","message":"Failed"},{"timestamp":"T2","message":""},{"timestamp":"T3","message":"ok"}]`

	for _, mode := range []Mode{ModeStrict, ModePermissive} {
		t.Run(string(mode), func(t *testing.T) {
			entries, stats, err := New(mode, nil, 0).ParseWithStats([]byte(input))
			if err != nil {
				t.Fatalf("ParseWithStats() error = %v", err)
			}
			if len(entries) != 1 || entries[0].Timestamp != "T3" {
				t.Errorf("entries = %+v, want only T3", entries)
			}
			if stats.Dropped != 2 {
				t.Errorf("Dropped = %d, want 2", stats.Dropped)
			}
		})
	}
}

func TestParse_PreservesCaseAndIgnoresUnknownFields(t *testing.T) {
	input := `[{"timestamp":"T1","message":"UNAUTHORIZED Access","host":"web-1","level":3}]`

	entries, err := New(ModeStrict, nil, 0).Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if entries[0].Message != "UNAUTHORIZED Access" {
		t.Errorf("Message = %q, casing not preserved", entries[0].Message)
	}
	if entries[0].Severity != model.SeverityHigh {
		t.Errorf("Severity = %v, want HIGH", entries[0].Severity)
	}
}

func TestParse_UsesConfiguredClassifier(t *testing.T) {
	p := New(ModeStrict, fixedClassifier(model.SeverityMedium), 0)

	entries, err := p.Parse([]byte(`[{"timestamp":"T1","message":"Failed"}]`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if entries[0].Severity != model.SeverityMedium {
		t.Errorf("Severity = %v, want MEDIUM from custom classifier", entries[0].Severity)
	}
}

type fixedClassifier model.Severity

func (f fixedClassifier) Name() string                   { return "fixed" }
func (f fixedClassifier) Classify(string) model.Severity { return model.Severity(f) }

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestReadFile(t *testing.T) {
	path := writeFile(t, "logs.json", `[{"timestamp":"T1","message":"Failed password"}]`)

	entries, stats, err := New(ModeStrict, nil, 1).ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(entries) != 1 || stats.Kept != 1 {
		t.Errorf("got %d entries, stats %+v", len(entries), stats)
	}
}

func TestReadFile_IOErrors(t *testing.T) {
	dir := t.TempDir()
	big := writeFile(t, "big.json", "["+strings.Repeat(" ", 1024*1024+10)+"]")

	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(dir, "missing.json")},
		{"directory", dir},
		{"too large", big},
	}

	p := New(ModeStrict, nil, 1)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := p.ReadFile(tt.path)
			var ioErr *apperrors.IOError
			if !errors.As(err, &ioErr) {
				t.Fatalf("ReadFile() error = %v, want *IOError", err)
			}
			if errors.Is(err, ErrMalformed) {
				t.Error("IOError should not match ErrMalformed")
			}
		})
	}
}

func TestReadFile_MalformedContent(t *testing.T) {
	path := writeFile(t, "bad.json", `{oops`)

	_, _, err := New(ModeStrict, nil, 0).ReadFile(path)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("ReadFile() error = %v, want ErrMalformed", err)
	}
}
