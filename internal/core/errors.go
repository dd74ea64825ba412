package core

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigurationError reports a malformed or incomplete part of a pipeline document.
type ConfigurationError struct {
	Template string // job template name, if known
	Label    string // matrix label, if known
	Line     int
	Msg      string
	Err      error
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if e.Template != "" {
		fmt.Fprintf(&b, " in job %q", e.Template)
	}
	if e.Label != "" {
		fmt.Fprintf(&b, " entry %q", e.Label)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", e.Line)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// DuplicateLabelError reports two matrix entries sharing a label inside one job template.
type DuplicateLabelError struct {
	Template  string
	Label     string
	Line      int
	FirstLine int
}

func (e *DuplicateLabelError) Error() string {
	where := ""
	if e.Template != "" {
		where = fmt.Sprintf(" in job %q", e.Template)
	}
	return fmt.Sprintf("duplicate matrix label %q%s at line %d (first defined at line %d)",
		e.Label, where, e.Line, e.FirstLine)
}

// UnresolvedTemplateError reports a job template reference that cannot be found.
type UnresolvedTemplateError struct {
	Template string // job template name
	Path     string
	Err      error
}

func (e *UnresolvedTemplateError) Error() string {
	return fmt.Sprintf("job %q: template %q not found: %v", e.Template, e.Path, e.Err)
}

func (e *UnresolvedTemplateError) Unwrap() error { return e.Err }

// ErrorKind names the class of a pipeline-load error, or "" for anything else.
func ErrorKind(err error) string {
	var (
		dup *DuplicateLabelError
		tpl *UnresolvedTemplateError
		cfg *ConfigurationError
	)
	switch {
	case errors.As(err, &dup):
		return "DuplicateLabelError"
	case errors.As(err, &tpl):
		return "UnresolvedTemplateError"
	case errors.As(err, &cfg):
		return "ConfigurationError"
	}
	return ""
}
