package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// setupEnv isolates the run from the host environment.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("LLM_PROVIDER", "none")
	t.Setenv("LOG_DIR", filepath.Join(dir, "logs"))
	t.Setenv("ENABLE_DATABASE", "false")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	return dir
}

func writeInput(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "input.json")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}
	return path
}

func TestRun(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantCode   int
		wantStdout []string
		wantStderr string
	}{
		{
			name:     "security events",
			input:    `[{"timestamp":"T1","message":"Failed password for admin"},{"timestamp":"T2","message":"User login successful"}]`,
			wantCode: exitSuccess,
			wantStdout: []string{
				"T1: Failed password for admin",
				"T2: User login successful",
			},
		},
		{
			name:       "empty array",
			input:      `[]`,
			wantCode:   exitSuccess,
			wantStdout: []string{"No valid log entries found"},
		},
		{
			name:       "no security events",
			input:      `[{"timestamp":"T1","message":"User login successful"}]`,
			wantCode:   exitSuccess,
			wantStdout: []string{"No security-critical events found"},
		},
		{
			name:       "malformed JSON",
			input:      `[{"timestamp":`,
			wantCode:   exitFailure,
			wantStderr: "malformed",
		},
		{
			name:       "schema violation",
			input:      `[{"timestamp":1,"message":"x"}]`,
			wantCode:   exitFailure,
			wantStderr: "invalid log entry at index 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := setupEnv(t)
			input := writeInput(t, dir, tt.input)

			var stdout, stderr bytes.Buffer
			code := run([]string{input}, &stdout, &stderr)

			if code != tt.wantCode {
				t.Fatalf("run() = %d, want %d\nstderr: %s", code, tt.wantCode, stderr.String())
			}
			for _, want := range tt.wantStdout {
				if !strings.Contains(stdout.String(), want) {
					t.Errorf("stdout missing %q:\n%s", want, stdout.String())
				}
			}
			if tt.wantStderr != "" && !strings.Contains(stderr.String(), tt.wantStderr) {
				t.Errorf("stderr missing %q:\n%s", tt.wantStderr, stderr.String())
			}
		})
	}
}

func TestRun_OutputFile(t *testing.T) {
	dir := setupEnv(t)
	input := writeInput(t, dir, `[{"timestamp":"T1","message":"unauthorized access"}]`)
	output := filepath.Join(dir, "out", "report.txt")

	var stdout, stderr bytes.Buffer
	if code := run([]string{input, output}, &stdout, &stderr); code != exitSuccess {
		t.Fatalf("run() = %d, stderr: %s", code, stderr.String())
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if !strings.Contains(string(data), "T1: unauthorized access") {
		t.Errorf("report missing entry:\n%s", data)
	}
	if stdout.String() != string(data) {
		t.Errorf("console report differs from file:\nstdout: %q\nfile:   %q", stdout.String(), data)
	}
	if !strings.Contains(stderr.String(), "Report written to") {
		t.Errorf("stderr = %q, want confirmation", stderr.String())
	}
}

func TestRun_UnwritableOutput(t *testing.T) {
	dir := setupEnv(t)
	input := writeInput(t, dir, `[]`)

	// A directory cannot be opened as the report file
	var stdout, stderr bytes.Buffer
	if code := run([]string{input, dir}, &stdout, &stderr); code != exitFailure {
		t.Errorf("run() = %d, want %d", code, exitFailure)
	}
}

func TestRun_MissingInput(t *testing.T) {
	dir := setupEnv(t)

	var stdout, stderr bytes.Buffer
	code := run([]string{filepath.Join(dir, "missing.json")}, &stdout, &stderr)
	if code != exitFailure {
		t.Fatalf("run() = %d, want %d", code, exitFailure)
	}
	if !strings.Contains(stderr.String(), "file does not exist") {
		t.Errorf("stderr = %q, want missing file message", stderr.String())
	}
}

func TestRun_Usage(t *testing.T) {
	setupEnv(t)

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
		wantErr  string
	}{
		{"no arguments", nil, exitFailure, "", "missing input file"},
		{"too many arguments", []string{"a", "b", "c"}, exitFailure, "", "too many arguments"},
		{"help", []string{"-help"}, exitSuccess, "", "Usage: seclog"},
		{"version", []string{"-version"}, exitSuccess, "seclog dev", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(tt.args, &stdout, &stderr)

			if code != tt.wantCode {
				t.Errorf("run() = %d, want %d", code, tt.wantCode)
			}
			if tt.wantOut != "" && !strings.Contains(stdout.String(), tt.wantOut) {
				t.Errorf("stdout = %q, want %q", stdout.String(), tt.wantOut)
			}
			if tt.wantErr != "" && !strings.Contains(stderr.String(), tt.wantErr) {
				t.Errorf("stderr = %q, want %q", stderr.String(), tt.wantErr)
			}
		})
	}
}

func TestRun_ConfigurationError(t *testing.T) {
	setupEnv(t)
	t.Setenv("PARSE_MODE", "lenient")

	var stdout, stderr bytes.Buffer
	if code := run([]string{"input.json"}, &stdout, &stderr); code != exitFailure {
		t.Errorf("run() = %d, want %d", code, exitFailure)
	}
	if !strings.Contains(stderr.String(), "Configuration error") {
		t.Errorf("stderr = %q, want configuration error", stderr.String())
	}
}
