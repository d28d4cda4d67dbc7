// Package tmpl renders the text/template message formats used for reminder
// and digest notifications.
package tmpl

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// ClockLayout is the layout used by the clock function.
const ClockLayout = "Mon 02 Jan 15:04"

// Renderer executes templates with time helpers bound to a zone.
type Renderer struct {
	loc   *time.Location
	funcs template.FuncMap
}

// New returns a Renderer that formats times in loc. A nil loc means UTC.
func New(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	r := &Renderer{loc: loc}
	r.funcs = template.FuncMap{
		"join":  strings.Join,
		"upper": strings.ToUpper,
		"local": func(t time.Time) time.Time { return t.In(r.loc) },
		"clock": func(t time.Time) string { return t.In(r.loc).Format(ClockLayout) },
		"until": Until,
	}
	return r
}

// Parse compiles tmpl without executing it.
func (r *Renderer) Parse(name, tmpl string) (*template.Template, error) {
	t, err := template.New(name).Funcs(r.funcs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return t, nil
}

// Render executes a Go template string with the given data.
// Returns an error if the template is invalid or references undefined keys.
//
// Available template functions:
//   - clock: format a time in the renderer's zone
//   - local: convert a time to the renderer's zone
//   - until: humanized distance between two times, e.g. "in 1h05m"
//   - join, upper: string helpers
func (r *Renderer) Render(tmpl string, data any) (string, error) {
	t, err := r.Parse("", tmpl)
	if err != nil {
		return "", err
	}
	return Execute(t, data)
}

// Execute runs a parsed template.
func Execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

// Render executes tmpl with a UTC renderer.
func Render(tmpl string, data any) (string, error) {
	return New(time.UTC).Render(tmpl, data)
}

// Until describes the distance from now to t at minute precision.
func Until(now, t time.Time) string {
	d := t.Sub(now).Round(time.Minute)
	switch {
	case d < 0:
		return "overdue by " + humanize(-d)
	case d == 0:
		return "now"
	default:
		return "in " + humanize(d)
	}
}

func humanize(d time.Duration) string {
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	switch {
	case h >= 24:
		return fmt.Sprintf("%dd%02dh", h/24, h%24)
	case h > 0:
		return fmt.Sprintf("%dh%02dm", h, m)
	default:
		return fmt.Sprintf("%dm", m)
	}
}
