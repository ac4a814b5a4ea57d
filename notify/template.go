package notify

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/dfe-analytical-services/robot-rerun/types"
)

// DefaultTemplate renders a short chat message for a finished run
const DefaultTemplate = `{{ statusEmoji .Status }} UI tests {{ .Status.String | lower }} on {{ .Environment | upper }} ` +
	`({{ .Passed }}/{{ .Total }} passed, {{ printf "%.0f" .PassRate }}%, {{ .Attempts }} {{ if eq .Attempts 1 }}attempt{{ else }}attempts{{ end }}, {{ formatDuration .Duration }})` +
	`{{ range $i, $t := .FailedTests }}{{ if lt $i 10 }}
- {{ $t.Name }}{{ with $t.Message }}: {{ firstLine . | trunc 120 }}{{ end }}{{ end }}{{ end }}` +
	`{{ if gt (len .FailedTests) 10 }}
...and {{ sub (len .FailedTests) 10 }} more{{ end }}`

// Parse compiles a message template with the sprig function set
func Parse(text string) (*template.Template, error) {
	funcMap := sprig.TxtFuncMap()
	funcMap["statusEmoji"] = statusEmoji
	funcMap["firstLine"] = firstLine
	funcMap["formatDuration"] = formatDuration

	t, err := template.New("notify").Funcs(funcMap).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	return t, nil
}

// Render executes tmpl against summary
func Render(tmpl *template.Template, summary types.ReportSummary) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, summary); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return buf.String(), nil
}

func statusEmoji(status types.TestStatus) string {
	switch status {
	case types.TestStatusPass:
		return "\U0001f7e2" // 🟢
	case types.TestStatusSkip:
		return "\U0001f7e1" // 🟡
	case types.TestStatusFail:
		return "\U0001f534" // 🔴
	default:
		return "\u2753" // ❓
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Second).String()
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
