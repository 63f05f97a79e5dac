package alert

import (
	"bytes"
	"fmt"
	"strconv"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// DefaultTemplate is used when no alert_template is configured.
const DefaultTemplate = "{{alert.message}}"

// Render executes a Go text/template string with Sprig functions and an
// "alert" accessor, so {{alert.type}} reads a field of the alert.
func Render(tmplStr string, a Alert) (string, error) {
	data := map[string]string{
		"type":      a.Type,
		"current":   strconv.FormatFloat(a.Current, 'f', -1, 64),
		"threshold": strconv.FormatFloat(a.Threshold, 'f', -1, 64),
		"message":   a.Message,
	}

	funcMap := sprig.TxtFuncMap()
	funcMap["alert"] = func() map[string]string { return data }

	t, err := template.New("alert").Funcs(funcMap).Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}

	return buf.String(), nil
}
