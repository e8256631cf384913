package manifest

import (
	"os"
	"strings"
	"text/template"
)

// templateEngine renders the paths and values of the configuration files.
type templateEngine struct {
	defines map[string]string
	funcs   template.FuncMap
}

func newTemplateEngine(defines map[string]string) *templateEngine {
	e := &templateEngine{
		defines: make(map[string]string, len(defines)),
		funcs: template.FuncMap{
			"env": os.Getenv,
		},
	}
	for k, v := range defines {
		e.defines[k] = v
	}
	return e
}

// with returns an engine whose defines are overridden by locals.
func (e *templateEngine) with(locals map[string]string) *templateEngine {
	sub := newTemplateEngine(e.defines)
	sub.funcs = e.funcs
	for k, v := range locals {
		sub.defines[k] = v
	}
	return sub
}

// render executes text as a template. A reference to an undefined
// variable is an error. Text without an action is returned as is.
func (e *templateEngine) render(name, text string) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	t, err := template.New(name).Funcs(e.funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	if err := t.Execute(&buf, e.defines); err != nil {
		return "", err
	}
	return buf.String(), nil
}
