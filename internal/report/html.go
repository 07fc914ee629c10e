package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
)

var fragmentTemplate = template.Must(template.New("fragment").Funcs(template.FuncMap{
	"lower": strings.ToLower,
}).Parse(`
{{- if eq .Outcome "error" -}}
<p class="error" style="color: #ff0080;">Error: {{.Error}}</p>
{{- else if eq .Outcome "no_entries" -}}
<p class="error" style="color: #ff0080;">{{.NoEntries}}</p>
{{- else -}}
<h2 style="color: #00ff99;">All Logs</h2>
<ul style="color: #66ffcc; list-style-position: inside;">
{{- range .AllEntries}}
<li class="severity-{{lower .Severity.String}}">{{.Line true}}</li>
{{- end}}
</ul>
<h2 style="color: #00ff99;">Security Report</h2>
{{- if eq .Outcome "summarized"}}
<pre style="color: #66ffcc; white-space: pre-wrap;">{{.Summary}}</pre>
{{- else if eq .Outcome "degraded"}}
<p class="note" style="color: #ffcc00;">{{.Note}}</p>
<ul style="color: #66ffcc; list-style-position: inside;">
{{- range .SecurityEntries}}
<li>{{.Line true}}</li>
{{- end}}
</ul>
{{- else}}
<p style="color: #66ffcc;">{{.NoEvents}}</p>
{{- end}}
{{- end}}
`))

type fragmentData struct {
	*Document
	NoEntries string
	NoEvents  string
}

// RenderHTML returns the escaped report markup.
// Every timestamp, message, summary and error passes through html/template
// contextual escaping.
func RenderHTML(doc *Document) (string, error) {
	var buf bytes.Buffer
	data := fragmentData{
		Document:  doc,
		NoEntries: NoEntriesMessage,
		NoEvents:  NoSecurityEventsMessage,
	}
	if err := fragmentTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}

// RenderHTMLFragment wraps the report markup in a script that fills the
// page's results container. The markup travels as a JSON string literal,
// which escapes <, > and & so the payload cannot close the script element.
func RenderHTMLFragment(doc *Document) (string, error) {
	markup, err := RenderHTML(doc)
	if err != nil {
		return "", err
	}
	return WrapFragment(markup)
}

// WrapFragment embeds already-escaped markup in the results script.
func WrapFragment(markup string) (string, error) {
	literal, err := json.Marshal(markup)
	if err != nil {
		return "", fmt.Errorf("failed to encode report markup: %w", err)
	}
	return "<script>document.getElementById('results').innerHTML = " + string(literal) + ";</script>", nil
}

// ErrorFragment renders a fragment for a request that never reached the
// pipeline. message must already be safe to show.
func ErrorFragment(message string) string {
	fragment, err := RenderHTMLFragment(&Document{Outcome: OutcomeError, Error: message})
	if err != nil {
		return "<script>document.getElementById('results').innerHTML = \"Error\";</script>"
	}
	return fragment
}
