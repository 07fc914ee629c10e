package ai

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/olegiv/seclog-ai-go/internal/model"
)

// PromptInstruction is the fixed first line of every summarizer prompt.
const PromptInstruction = "Summarize the given security-critical events in easy to understand bullet points for immediate action:\n"

// BuildPrompt renders the instruction line followed by one
// "- {timestamp}: {message} [Severity: {name}]" line per entry.
// Entry text is sanitized and flattened to a single line.
func BuildPrompt(entries []model.LogEntry) string {
	var prompt strings.Builder
	prompt.WriteString(PromptInstruction)

	for _, e := range entries {
		safe := model.LogEntry{
			Timestamp: FlattenLine(SanitizeLogContent(e.Timestamp)),
			Message:   FlattenLine(SanitizeLogContent(e.Message)),
			Severity:  e.Severity,
		}
		prompt.WriteString("- ")
		prompt.WriteString(safe.Line(true))
		prompt.WriteString("\n")
	}

	return prompt.String()
}

// FlattenLine replaces line breaks with spaces so one value cannot span
// several prompt or report lines.
func FlattenLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return lineBreaks.ReplaceAllString(s, " ")
}

var lineBreaks = regexp.MustCompile(`[\r\n]+`)

// promptInjectionPatterns contains regex patterns for common prompt injection attempts
var promptInjectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`(?i)forget\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+a`),
	regexp.MustCompile(`(?i)new\s+instructions?:`),
	regexp.MustCompile(`(?i)system\s*prompt\s*:`),
	// Role markers only count at the start of a line; "by user: admin" is log text
	regexp.MustCompile(`(?im)^[ \t]*(?:ASSISTANT|HUMAN|USER|SYSTEM)[ \t]*:`),
}

var excessiveNewlines = regexp.MustCompile(`\n{4,}`)

// SanitizeLogContent neutralizes prompt injection in log text.
// This removes:
// - Non-printable characters (except newlines, tabs, carriage returns)
// - Common prompt injection patterns
// - Excessive blank lines
func SanitizeLogContent(content string) string {
	var sanitized strings.Builder
	sanitized.Grow(len(content))

	for _, r := range content {
		if unicode.IsPrint(r) || r == '\n' || r == '\t' || r == '\r' {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	for _, pattern := range promptInjectionPatterns {
		result = pattern.ReplaceAllString(result, "[FILTERED]")
	}

	return excessiveNewlines.ReplaceAllString(result, "\n\n\n")
}
