// Package template renders listings through a user-supplied Go template.
package template

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/stackvity/filer/internal/filesystem"
)

// TimeLayout is the timestamp layout exposed to templates through formatTime.
const TimeLayout = "2006-01-02 15:04:05"

// Funcs are available to every listing template:
//
//	{{ bytes .Size }}       "1.2 MB"
//	{{ formatTime .ModTime }} "2024-05-01 12:00:00"
//	{{ ago .ModTime }}       "3 hours ago"
var Funcs = template.FuncMap{
	"bytes":      func(n int64) string { return humanize.Bytes(uint64(max(n, 0))) },
	"formatTime": func(t time.Time) string { return t.Format(TimeLayout) },
	"ago":        humanize.Time,
}

// Executor holds a parsed listing template.
type Executor struct {
	template *template.Template
	filePath string
}

// NewExecutor parses the template at templateFilePath. It returns nil, nil
// for an empty path so callers can fall back to the built-in formats.
func NewExecutor(templateFilePath string, fs filesystem.FileSystem) (*Executor, error) {
	if templateFilePath == "" {
		return nil, nil
	}

	content, err := fs.ReadFile(templateFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file '%s': %w", templateFilePath, err)
	}
	tmpl, err := template.New(templateFilePath).Funcs(Funcs).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template file '%s': %w", templateFilePath, err)
	}
	return &Executor{template: tmpl, filePath: templateFilePath}, nil
}

// Execute applies the template to data.
func (e *Executor) Execute(data any) (string, error) {
	var rendered bytes.Buffer
	if err := e.template.Execute(&rendered, data); err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", e.filePath, err)
	}
	return rendered.String(), nil
}
