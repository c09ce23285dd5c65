package notify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/dustin/go-humanize"
)

const subjectTemplate = `[dbshuttle] {{if .Failed}}FAILED{{else}}OK{{end}}: {{.Profile}} on {{.Hostname}}`

const bodyTemplate = `Profile:   {{.Profile}}
Status:    {{.Status}}
Host:      {{.Hostname}}
Time:      {{.Timestamp.Format "2006-01-02 15:04:05"}}
Dump file: {{.DumpPath}}{{if .DumpSize}} ({{bytes .DumpSize}}){{end}}
Run log:   {{.LogPath}}
{{if .LogErr}}
Run log not readable: {{.LogErr}}
{{else if .LogTail}}
Last {{len .LogTail}} lines of the run log:

{{range .LogTail}}  {{.}}
{{end}}{{end}}`

var templates = template.Must(template.New("subject").Funcs(template.FuncMap{
	"bytes": func(n int64) string { return humanize.IBytes(uint64(n)) },
}).Parse(subjectTemplate))

func init() {
	template.Must(templates.New("body").Parse(bodyTemplate))
}

// FormatSubject renders the mail subject for e
func FormatSubject(e *Event) (string, error) {
	return render("subject", e)
}

// FormatBody renders the plain-text mail body for e
func FormatBody(e *Event) (string, error) {
	return render("body", e)
}

func render(name string, e *Event) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, e); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimRight(buf.String(), "\n") + "\n", nil
}
