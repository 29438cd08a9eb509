package feedback

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
)

const generalSubject = "General Feedback"

var bodyTemplate = template.Must(template.New("feedback").Parse(`<h2>New Feedback Received</h2>
<p><strong>From:</strong> {{.Name}} ({{.Email}})</p>
<p><strong>Plant Name:</strong> {{.PlantName}}</p>
<p><strong>Feedback:</strong></p>
<p>{{.Message}}</p>
`))

// Subject returns the email subject for fb.
func Subject(fb core.Feedback) string {
	name := strings.TrimSpace(fb.PlantName)
	if name == "" {
		name = generalSubject
	}
	return "PlantSage Feedback: " + name
}

// HTMLBody renders fb as an HTML email body. Every user value is escaped.
func HTMLBody(fb core.Feedback) (string, error) {
	data := struct {
		Name, Email, PlantName, Message string
	}{
		Name:      orDefault(fb.Name, "Anonymous"),
		Email:     orDefault(fb.Email, "no email"),
		PlantName: orDefault(fb.PlantName, "N/A"),
		Message:   fb.Message,
	}

	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
