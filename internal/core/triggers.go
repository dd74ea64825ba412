package core

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Event is the kind of repository event that may start a pipeline.
type Event string

const (
	EventPush        Event = "push"
	EventPullRequest Event = "pr"
)

// ParseEvent maps a user-supplied event name onto an Event.
func ParseEvent(s string) (Event, error) {
	switch strings.ToLower(s) {
	case "push", "ci":
		return EventPush, nil
	case "pr", "pull_request", "pull-request":
		return EventPullRequest, nil
	}
	return "", fmt.Errorf("unknown event %q (want push or pr)", s)
}

// Triggers is a set of branch patterns. Unset triggers match every branch.
type Triggers struct {
	Set     bool     `json:"-"`
	None    bool     `json:"none,omitempty"`
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// UnmarshalYAML accepts a pattern list, the word "none", a single pattern, or
// a {branches: {include, exclude}} block.
func (t *Triggers) UnmarshalYAML(n *yaml.Node) error {
	n = resolve(n)
	t.Set = true
	switch n.Kind {
	case yaml.ScalarNode:
		if strings.EqualFold(n.Value, "none") {
			t.None = true
			return nil
		}
		t.Include = []string{n.Value}
		return nil
	case yaml.SequenceNode:
		return n.Decode(&t.Include)
	case yaml.MappingNode:
		var block struct {
			Branches struct {
				Include []string `yaml:"include"`
				Exclude []string `yaml:"exclude"`
			} `yaml:"branches"`
		}
		if err := n.Decode(&block); err != nil {
			return &ConfigurationError{Line: n.Line, Msg: "malformed trigger block", Err: err}
		}
		t.Include = block.Branches.Include
		t.Exclude = block.Branches.Exclude
		return nil
	}
	return &ConfigurationError{Line: n.Line, Msg: "trigger must be a list, a mapping or none"}
}

// Matches reports whether branch is selected. Exclusions win over inclusions.
func (t Triggers) Matches(branch string) bool {
	if !t.Set {
		return true
	}
	if t.None {
		return false
	}
	branch = strings.TrimPrefix(branch, "refs/heads/")
	for _, p := range t.Exclude {
		if wildcard(p, branch) {
			return false
		}
	}
	if len(t.Include) == 0 {
		return true
	}
	for _, p := range t.Include {
		if wildcard(p, branch) {
			return true
		}
	}
	return false
}

// Triggered reports whether the pipeline runs for event on branch.
func (p *Pipeline) Triggered(event Event, branch string) (bool, error) {
	switch event {
	case EventPush:
		return p.Trigger.Matches(branch), nil
	case EventPullRequest:
		return p.PR.Matches(branch), nil
	}
	return false, fmt.Errorf("unknown event %q", event)
}

// wildcard matches name against pattern where * matches any run of characters,
// including slashes.
func wildcard(pattern, name string) bool {
	pattern = strings.TrimPrefix(pattern, "refs/heads/")
	if !strings.Contains(pattern, "*") {
		return pattern == name
	}
	return compileWildcard(pattern).MatchString(name)
}

var wildcards sync.Map // pattern -> *regexp.Regexp

func compileWildcard(pattern string) *regexp.Regexp {
	if re, ok := wildcards.Load(pattern); ok {
		return re.(*regexp.Regexp)
	}
	expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), `\*`, ".*") + "$"
	re, _ := wildcards.LoadOrStore(pattern, regexp.MustCompile(expr))
	return re.(*regexp.Regexp)
}
