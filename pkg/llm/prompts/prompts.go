// Package prompts renders the prompts sent to the model: the request prompt
// built by the orchestrator and the file selection prompt.
package prompts

import (
	"bytes"
	"embed"
	"text/template"

	"github.com/pkg/errors"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// Anchors around the JSON answer of the selection prompt.
const (
	SelectStartAnchor = "<START_JSON>"
	SelectEndAnchor   = "</END_JSON>"
)

// File is a context file shown to the model.
type File struct {
	Path     string
	Language string
	Content  string
}

// Tool describes an invocable tool in the TOOLS section.
type Tool struct {
	Name        string
	Description string
	Schema      string
}

// RequestData fills the request prompt.
type RequestData struct {
	PWD   string
	Files []File
	Query string
	Tag   string
	Tools []Tool
}

// SelectData fills the file selection prompt.
type SelectData struct {
	Query       string
	Options     []string
	Limit       int
	StartAnchor string
	EndAnchor   string
}

// RenderRequest renders the request prompt.
func RenderRequest(data RequestData) (string, error) {
	if data.Tag == "" {
		data.Tag = "CALL"
	}
	return render("request.tmpl", data)
}

// RenderSelect renders the file selection prompt.
func RenderSelect(data SelectData) (string, error) {
	data.StartAnchor = SelectStartAnchor
	data.EndAnchor = SelectEndAnchor
	return render("select.tmpl", data)
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", errors.Wrapf(err, "failed to render %s", name)
	}
	return buf.String(), nil
}
