package profile

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultTemplateName is the fallback category used when classification does
// not clearly match any template.
const DefaultTemplateName = "default"

// FieldSpec declares one field of a template together with its weight.
type FieldSpec struct {
	Name       string `yaml:"name"`
	Importance int    `yaml:"importance"`
}

// Template is a named, read-only set of fields-with-importance applied once
// the user's high-level goal is classified.
type Template struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Fields      []FieldSpec `yaml:"fields"`
}

// Registry holds the predefined templates loaded at startup. It is immutable
// after construction and safe for concurrent reads.
type Registry struct {
	templates map[string]*Template
	order     []string
}

//go:embed templates.yaml
var embeddedTemplates []byte

type templateFile struct {
	Templates []Template `yaml:"templates"`
}

// LoadRegistry parses a template definition document.
func LoadRegistry(data []byte) (*Registry, error) {
	var file templateFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if len(file.Templates) == 0 {
		return nil, fmt.Errorf("no templates defined")
	}

	reg := &Registry{templates: make(map[string]*Template)}
	for i := range file.Templates {
		tmpl := &file.Templates[i]
		name := strings.ToLower(strings.TrimSpace(tmpl.Name))
		if name == "" {
			return nil, fmt.Errorf("template %d has no name", i)
		}
		if _, dup := reg.templates[name]; dup {
			return nil, fmt.Errorf("duplicate template %q", name)
		}
		if len(tmpl.Fields) == 0 {
			return nil, fmt.Errorf("template %q has no fields", name)
		}
		for _, f := range tmpl.Fields {
			if f.Importance < MinImportance || f.Importance > MaxImportance {
				return nil, fmt.Errorf("template %q field %q importance %d out of range", name, f.Name, f.Importance)
			}
		}
		tmpl.Name = name
		reg.templates[name] = tmpl
		reg.order = append(reg.order, name)
	}

	if _, ok := reg.templates[DefaultTemplateName]; !ok {
		return nil, fmt.Errorf("registry must define a %q template", DefaultTemplateName)
	}
	return reg, nil
}

// MustLoadRegistry loads the embedded template set, panicking on a malformed
// build artifact.
func MustLoadRegistry() *Registry {
	reg, err := LoadRegistry(embeddedTemplates)
	if err != nil {
		panic(fmt.Sprintf("embedded templates invalid: %v", err))
	}
	return reg
}

// Lookup finds a template by name, case-insensitively.
func (r *Registry) Lookup(name string) (*Template, bool) {
	tmpl, ok := r.templates[strings.ToLower(strings.TrimSpace(name))]
	return tmpl, ok
}

// Resolve returns the template for name, coercing anything unrecognized to
// the default template.
func (r *Registry) Resolve(name string) *Template {
	if tmpl, ok := r.Lookup(name); ok {
		return tmpl
	}
	return r.templates[DefaultTemplateName]
}

// Names returns the template names in definition order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Descriptions renders the per-category descriptions for the classification
// prompt, in definition order.
func (r *Registry) Descriptions() string {
	var b strings.Builder
	for _, name := range r.order {
		fmt.Fprintf(&b, "- %s: %s\n", name, strings.TrimSpace(r.templates[name].Description))
	}
	return b.String()
}
