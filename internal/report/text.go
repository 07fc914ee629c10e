package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/olegiv/seclog-ai-go/internal/model"
)

// SecurityReportHeader separates the entry listing from the report body.
const SecurityReportHeader = "Security Report:"

// TextOptions controls the plain text rendering.
type TextOptions struct {
	ShowSeverity bool
}

const severityMarker = " [Severity: "

// fieldEscaper keeps each entry on one line. A backslash escapes the next byte.
var fieldEscaper = strings.NewReplacer(`\`, `\\`, "\r", `\r`, "\n", `\n`)

// entryLine renders one entry on a single line that ParseTextEntries reads
// back exactly: ": " in the timestamp and the severity marker in the
// message are escaped.
func entryLine(e model.LogEntry, withSeverity bool) string {
	e.Timestamp = strings.ReplaceAll(fieldEscaper.Replace(e.Timestamp), ": ", `\: `)
	e.Message = strings.ReplaceAll(fieldEscaper.Replace(e.Message), severityMarker, ` \[Severity: `)
	return e.Line(withSeverity)
}

// RenderText writes the plain text report: one line per entry, a blank line,
// the "Security Report:" header and then the body.
func RenderText(w io.Writer, doc *Document, opts TextOptions) error {
	bw := bufio.NewWriter(w)

	for _, e := range doc.AllEntries {
		fmt.Fprintln(bw, entryLine(e, opts.ShowSeverity))
	}
	if len(doc.AllEntries) > 0 {
		fmt.Fprintln(bw)
	}

	fmt.Fprintln(bw, SecurityReportHeader)

	switch doc.Outcome {
	case OutcomeSummarized:
		fmt.Fprintln(bw, strings.TrimRight(doc.Summary, "\n"))
	case OutcomeDegraded:
		fmt.Fprintln(bw, doc.Note)
		for _, e := range doc.SecurityEntries {
			fmt.Fprintln(bw, "- "+entryLine(e, true))
		}
	case OutcomeNoEntries:
		fmt.Fprintln(bw, NoEntriesMessage)
	case OutcomeNoSecurityEvents:
		fmt.Fprintln(bw, NoSecurityEventsMessage)
	case OutcomeError:
		fmt.Fprintln(bw, "Error: "+doc.Error)
	}

	return bw.Flush()
}

// Text returns the plain text rendering as a string.
func Text(doc *Document, opts TextOptions) string {
	var sb strings.Builder
	_ = RenderText(&sb, doc, opts)
	return sb.String()
}

// ParseTextEntries recovers the entry lines from a RenderText output.
// Severity is filled in when the line carries a severity annotation.
func ParseTextEntries(text string) []model.LogEntry {
	var entries []model.LogEntry

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line == SecurityReportHeader {
			break
		}

		ts, rest, ok := splitEntryLine(line)
		if !ok {
			continue
		}

		message := rest
		var severity model.Severity
		if i := strings.LastIndex(rest, severityMarker); i >= 0 && strings.HasSuffix(rest, "]") {
			if sev, err := model.ParseSeverity(rest[i+len(severityMarker) : len(rest)-1]); err == nil {
				message = rest[:i]
				severity = sev
			}
		}

		entries = append(entries, model.LogEntry{
			Timestamp: unescapeField(ts),
			Message:   unescapeField(message),
			Severity:  severity,
		})
	}

	return entries
}

// splitEntryLine splits at the first unescaped ": ".
func splitEntryLine(line string) (timestamp, rest string, ok bool) {
	for i := 0; i < len(line)-1; i++ {
		switch {
		case line[i] == '\\':
			i++
		case line[i] == ':' && line[i+1] == ' ':
			return line[:i], line[i+2:], true
		}
	}
	return "", "", false
}

func unescapeField(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			sb.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		default:
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}
