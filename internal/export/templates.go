package export

import (
	"bytes"
	"html/template"
	"time"
)

var sheetTemplate = template.Must(template.New("sheet").Parse(sheetTemplateHTML))

// TemplateData holds data for chord sheet rendering
type TemplateData struct {
	Title     string
	Key       string
	Tempo     int
	Capo      int
	Author    string
	UpdatedAt time.Time
	Rows      []sheetRow
}

// RenderSheetHTML renders the chord sheet template with provided data
func RenderSheetHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := sheetTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const sheetTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: 'Courier New', Courier, monospace; max-width: 800px; margin: 2rem auto; color: #222; }
    h1 { font-family: Arial, sans-serif; border-bottom: 2px solid #333; padding-bottom: 0.5rem; margin-bottom: 0.25rem; }
    .meta { font-family: Arial, sans-serif; color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .section { font-family: Arial, sans-serif; font-weight: bold; margin: 1.2em 0 0.2em; color: #444; }
    pre { margin: 0; font-size: 13px; line-height: 1.25; }
    .chords { color: #7c3aed; font-weight: bold; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">
    {{if .Key}}Key: {{.Key}}{{end}}
    {{if .Tempo}} &middot; {{.Tempo}} BPM{{end}}
    {{if .Capo}} &middot; Capo {{.Capo}}{{end}}
    {{if .Author}} &middot; {{.Author}}{{end}}
  </div>
  {{range .Rows}}
  {{if .Section}}<div class="section">{{.Section}}</div>{{end}}
  {{if .Chords}}<pre class="chords">{{.Chords}}</pre>{{end}}
  <pre>{{.Lyrics}}</pre>
  {{end}}
</body>
</html>`
