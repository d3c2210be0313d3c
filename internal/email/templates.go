package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var buildTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// BuildMessage is the data rendered into the build status emails.
type BuildMessage struct {
	AppName       string
	PlatformLabel string
	BuildID       string
	ErrorMessage  string
	DashboardURL  string
}

// RenderBuildCompleted returns the subject and html body for a finished build.
func RenderBuildCompleted(msg BuildMessage) (string, string, error) {
	subject := fmt.Sprintf("%s for %s is ready", msg.AppName, msg.PlatformLabel)
	html, err := render("build_completed.html", msg)
	return subject, html, err
}

// RenderBuildFailed returns the subject and html body for a failed build.
func RenderBuildFailed(msg BuildMessage) (string, string, error) {
	subject := fmt.Sprintf("%s for %s failed to build", msg.AppName, msg.PlatformLabel)
	html, err := render("build_failed.html", msg)
	return subject, html, err
}

func render(name string, data BuildMessage) (string, error) {
	var buf bytes.Buffer
	if err := buildTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}
