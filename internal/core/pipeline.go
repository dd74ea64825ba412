package core

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pipeline represents a parsed CI pipeline document. It is read once and never mutated.
type Pipeline struct {
	Trigger   Triggers      `yaml:"trigger"`   // branches that run the pipeline on push
	PR        Triggers      `yaml:"pr"`        // branches that run the pipeline on pull request
	Variables Bindings      `yaml:"variables"` // pipeline-level defaults
	Jobs      []JobTemplate `yaml:"jobs"`      // ordered job templates
}

// JobTemplate references a reusable job definition and the parameters it is instantiated with.
type JobTemplate struct {
	Template   string     `yaml:"template"`
	Parameters Parameters `yaml:"parameters"`
	Line       int        `yaml:"-"`
}

// Parameters are the values handed to a job template.
type Parameters struct {
	Name      string   `yaml:"name"`
	VMImage   string   `yaml:"vmImage"`
	Variables Bindings `yaml:"variables"` // template-level defaults
	Matrix    Matrix   `yaml:"matrix"`
}

// Matrix is the ordered set of named configurations of one job template.
type Matrix struct {
	Entries []MatrixEntry
}

// MatrixEntry is one labelled configuration. Disabled entries are kept so labels
// stay unique, but they never expand into jobs.
type MatrixEntry struct {
	Label    string
	Bindings Bindings
	Enabled  bool
	Line     int
}

// Binding is a single variable assignment.
type Binding struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Bindings is an ordered list of variable assignments with unique names.
type Bindings []Binding

// enabledKey is reserved inside matrix entries and never exported to the job environment.
const enabledKey = "enabled"

func (t *JobTemplate) UnmarshalYAML(n *yaml.Node) error {
	type plain JobTemplate
	var p plain
	if err := n.Decode(&p); err != nil {
		if dup, ok := err.(*DuplicateLabelError); ok && dup.Template == "" {
			dup.Template = lookupScalar(n, "parameters", "name")
		}
		return err
	}
	*t = JobTemplate(p)
	t.Line = n.Line
	return nil
}

func (m *Matrix) UnmarshalYAML(n *yaml.Node) error {
	n = resolve(n)
	if n.Kind != yaml.MappingNode {
		return &ConfigurationError{Line: n.Line, Msg: "matrix must be a mapping of label to variables"}
	}
	seen := make(map[string]int, len(n.Content)/2)
	entries := make([]MatrixEntry, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			return &ConfigurationError{Line: key.Line, Msg: "matrix label must be a string"}
		}
		label := key.Value
		if first, ok := seen[label]; ok {
			return &DuplicateLabelError{Label: label, Line: key.Line, FirstLine: first}
		}
		seen[label] = key.Line

		var b Bindings
		if err := b.UnmarshalYAML(val); err != nil {
			return withLabel(err, label)
		}
		enabled := true
		if v, ok := b.Lookup(enabledKey); ok {
			on, err := parseTruth(v)
			if err != nil {
				return &ConfigurationError{Label: label, Line: key.Line, Msg: fmt.Sprintf("%s: %v", enabledKey, err)}
			}
			enabled = on
			b = b.without(enabledKey)
		}
		entries = append(entries, MatrixEntry{Label: label, Bindings: b, Enabled: enabled, Line: key.Line})
	}
	m.Entries = entries
	return nil
}

// UnmarshalYAML accepts a mapping of name to scalar (merge keys allowed) or a
// sequence of {name, value} items.
func (b *Bindings) UnmarshalYAML(n *yaml.Node) error {
	n = resolve(n)
	switch {
	case n.Kind == yaml.ScalarNode && n.Tag == "!!null":
		*b = nil
		return nil
	case n.Kind == yaml.MappingNode:
		var out Bindings
		if err := out.collect(n, make(map[string]bool)); err != nil {
			return err
		}
		*b = out
		return nil
	case n.Kind == yaml.SequenceNode:
		var out Bindings
		seen := make(map[string]bool)
		for _, item := range n.Content {
			var nv struct {
				Name  string `yaml:"name"`
				Value string `yaml:"value"`
			}
			if err := item.Decode(&nv); err != nil {
				return &ConfigurationError{Line: item.Line, Msg: "variable list items must be {name, value}", Err: err}
			}
			if nv.Name == "" {
				return &ConfigurationError{Line: item.Line, Msg: "variable without a name"}
			}
			if seen[nv.Name] {
				return &ConfigurationError{Line: item.Line, Msg: fmt.Sprintf("variable %q defined twice", nv.Name)}
			}
			seen[nv.Name] = true
			out = append(out, Binding{Name: nv.Name, Value: nv.Value})
		}
		*b = out
		return nil
	}
	return &ConfigurationError{Line: n.Line, Msg: "variables must be a mapping"}
}

// collect walks a mapping node. Explicit keys override merged ones regardless of order.
func (b *Bindings) collect(n *yaml.Node, explicit map[string]bool) error {
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if key.Kind == yaml.ScalarNode && key.Tag == "!!merge" {
			if err := b.merge(val); err != nil {
				return err
			}
			continue
		}
		if key.Kind != yaml.ScalarNode {
			return &ConfigurationError{Line: key.Line, Msg: "variable name must be a string"}
		}
		if explicit[key.Value] {
			return &ConfigurationError{Line: key.Line, Msg: fmt.Sprintf("variable %q defined twice", key.Value)}
		}
		explicit[key.Value] = true
		val = resolve(val)
		if val.Kind != yaml.ScalarNode {
			return &ConfigurationError{Line: val.Line, Msg: fmt.Sprintf("variable %q must be a scalar", key.Value)}
		}
		value := val.Value
		if val.Tag == "!!null" {
			value = ""
		}
		*b = b.with(key.Value, value)
	}
	return nil
}

func (b *Bindings) merge(n *yaml.Node) error {
	n = resolve(n)
	var sources []*yaml.Node
	switch n.Kind {
	case yaml.MappingNode:
		sources = []*yaml.Node{n}
	case yaml.SequenceNode:
		for _, s := range n.Content {
			sources = append(sources, resolve(s))
		}
	default:
		return &ConfigurationError{Line: n.Line, Msg: "merge key must reference a mapping"}
	}
	for _, src := range sources {
		var merged Bindings
		if src.Kind != yaml.MappingNode {
			return &ConfigurationError{Line: src.Line, Msg: "merge key must reference a mapping"}
		}
		if err := merged.collect(src, make(map[string]bool)); err != nil {
			return err
		}
		for _, m := range merged {
			if _, ok := b.Lookup(m.Name); !ok {
				*b = append(*b, m)
			}
		}
	}
	return nil
}

// Lookup returns the value bound to name.
func (b Bindings) Lookup(name string) (string, bool) {
	for _, v := range b {
		if v.Name == name {
			return v.Value, true
		}
	}
	return "", false
}

// with returns b with name set to value, keeping the position of an existing binding.
func (b Bindings) with(name, value string) Bindings {
	for i, v := range b {
		if v.Name == name {
			out := append(Bindings(nil), b...)
			out[i].Value = value
			return out
		}
	}
	return append(append(Bindings(nil), b...), Binding{Name: name, Value: value})
}

func (b Bindings) without(name string) Bindings {
	out := make(Bindings, 0, len(b))
	for _, v := range b {
		if v.Name != name {
			out = append(out, v)
		}
	}
	return out
}

// Environ returns the bindings as NAME=value pairs in order.
func (b Bindings) Environ() []string {
	out := make([]string, 0, len(b))
	for _, v := range b {
		out = append(out, v.Name+"="+v.Value)
	}
	return out
}

// layer merges the given binding sets, later sets overriding earlier ones.
// Names keep the position of their first appearance.
func layer(sets ...Bindings) Bindings {
	var out Bindings
	for _, set := range sets {
		for _, v := range set {
			out = out.with(v.Name, v.Value)
		}
	}
	return out
}

func resolve(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	if n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		return resolve(n.Content[0])
	}
	return n
}

// lookupScalar follows a path of mapping keys and returns the scalar found, or "".
func lookupScalar(n *yaml.Node, path ...string) string {
	n = resolve(n)
	for _, key := range path {
		if n.Kind != yaml.MappingNode {
			return ""
		}
		var next *yaml.Node
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Value == key {
				next = resolve(n.Content[i+1])
				break
			}
		}
		if next == nil {
			return ""
		}
		n = next
	}
	if n.Kind != yaml.ScalarNode {
		return ""
	}
	return n.Value
}

func withLabel(err error, label string) error {
	if cfg, ok := err.(*ConfigurationError); ok && cfg.Label == "" {
		cfg.Label = label
	}
	return err
}

// parseTruth accepts the boolean spellings CI variables are commonly written with.
func parseTruth(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false", "no", "off", "n":
		return false, nil
	case "1", "true", "yes", "on", "y":
		return true, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n != 0, nil
	}
	return false, fmt.Errorf("%q is not a boolean", v)
}
