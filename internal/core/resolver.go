package core

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// TemplateResolver checks that a job template reference points at something real.
type TemplateResolver interface {
	Resolve(path string) error
}

// DirResolver resolves template paths against a directory, usually the one
// holding the pipeline file.
type DirResolver struct {
	Dir string
}

func (r DirResolver) Resolve(path string) error {
	info, err := os.Stat(filepath.Join(r.Dir, filepath.FromSlash(path)))
	if err != nil {
		return err
	}
	if info.IsDir() {
		return errors.New("is a directory")
	}
	return nil
}

// ResolveTemplates checks every template reference of p. References into other
// repositories (path@repo) cannot be checked locally and are skipped.
func ResolveTemplates(p *Pipeline, r TemplateResolver) error {
	var errs []error
	for _, tpl := range p.Jobs {
		if tpl.Template == "" || strings.Contains(tpl.Template, "@") {
			continue
		}
		if err := r.Resolve(tpl.Template); err != nil {
			errs = append(errs, &UnresolvedTemplateError{Template: tpl.Parameters.Name, Path: tpl.Template, Err: err})
		}
	}
	return errors.Join(errs...)
}
