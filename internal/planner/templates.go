package planner

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var builtinTemplates embed.FS

var (
	// ErrUnknownTemplate is returned when no template has the requested name.
	ErrUnknownTemplate = errors.New("unknown workflow template")
	// ErrMissingParam is returned when a required template parameter is not supplied.
	ErrMissingParam = errors.New("missing template parameter")
)

// Template is a named multi-app workflow whose string params may contain
// {{name}} references filled in at instantiation.
type Template struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Params      []string `yaml:"params" json:"params"`
	Steps       []Step   `yaml:"steps" json:"steps"`
}

// Templates is a set of workflow templates keyed by name.
type Templates struct {
	byName map[string]Template
}

// DefaultTemplates returns the templates built into the binary.
func DefaultTemplates() (*Templates, error) {
	sub, err := fs.Sub(builtinTemplates, "templates")
	if err != nil {
		return nil, err
	}
	return LoadTemplates(sub)
}

// LoadTemplates reads every .yaml/.yml file at the root of fsys.
func LoadTemplates(fsys fs.FS) (*Templates, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	t := &Templates{byName: make(map[string]Template)}
	for _, e := range entries {
		ext := path.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", e.Name(), err)
		}
		var tpl Template
		if err := yaml.Unmarshal(data, &tpl); err != nil {
			return nil, fmt.Errorf("parse template %s: %w", e.Name(), err)
		}
		if tpl.Name == "" {
			tpl.Name = strings.TrimSuffix(e.Name(), ext)
		}
		// a template must at least be a valid plan shape
		if _, err := Build(tpl.Steps); err != nil {
			return nil, fmt.Errorf("template %s: %w", tpl.Name, err)
		}
		t.byName[tpl.Name] = tpl
	}
	return t, nil
}

// LoadTemplatesDir merges the templates in dir over the built-in ones.
func LoadTemplatesDir(dir string) (*Templates, error) {
	t, err := DefaultTemplates()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return t, nil
	}
	extra, err := LoadTemplates(os.DirFS(dir))
	if err != nil {
		return nil, err
	}
	for name, tpl := range extra.byName {
		t.byName[name] = tpl
	}
	return t, nil
}

// List returns the templates sorted by name.
func (t *Templates) List() []Template {
	out := make([]Template, 0, len(t.byName))
	for _, tpl := range t.byName {
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns the template called name.
func (t *Templates) Get(name string) (Template, bool) {
	tpl, ok := t.byName[name]
	return tpl, ok
}

// Instantiate fills the template's parameters and builds its plan.
func (t *Templates) Instantiate(name string, params map[string]string) (*Plan, error) {
	tpl, ok := t.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	for _, p := range tpl.Params {
		if params[p] == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingParam, p)
		}
	}

	steps := make([]Step, len(tpl.Steps))
	for i, s := range tpl.Steps {
		steps[i] = Step{
			ID:        s.ID,
			Type:      s.Type,
			Params:    substitute(s.Params, params).(map[string]interface{}),
			DependsOn: slices.Clone(s.DependsOn),
		}
	}
	return Build(steps)
}

// substitute returns a copy of v with {{key}} replaced in every string.
func substitute(v interface{}, params map[string]string) interface{} {
	switch t := v.(type) {
	case string:
		for k, val := range params {
			t = strings.ReplaceAll(t, "{{"+k+"}}", val)
		}
		return t
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, x := range t {
			out[k] = substitute(x, params)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, x := range t {
			out[i] = substitute(x, params)
		}
		return out
	case nil:
		return map[string]interface{}{}
	default:
		return t
	}
}
