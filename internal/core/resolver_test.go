package core

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveTemplates_Fixture(t *testing.T) {
	require.NoError(t, ResolveTemplates(fixture(t), DirResolver{Dir: "testdata"}))
}

func TestResolveTemplates_Missing(t *testing.T) {
	p := mustParse(t, `
jobs:
- template: ci/azure/linux.yml
  parameters: {name: Linux, vmImage: X, matrix: {A: {python.version: "3.7"}}}
- template: ci/azure/bsd.yml
  parameters: {name: BSD, vmImage: Y, matrix: {A: {python.version: "3.7"}}}
- template: jobs/build.yml@templates
  parameters: {name: Remote, vmImage: Z, matrix: {A: {python.version: "3.7"}}}
`)
	err := ResolveTemplates(p, DirResolver{Dir: "testdata"})

	var unresolved *UnresolvedTemplateError
	require.True(t, errors.As(err, &unresolved))
	require.Equal(t, "BSD", unresolved.Template)
	require.Equal(t, "ci/azure/bsd.yml", unresolved.Path)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Equal(t, "UnresolvedTemplateError", ErrorKind(err))
}

func TestDirResolver_RejectsDirectories(t *testing.T) {
	require.Error(t, DirResolver{Dir: "testdata"}.Resolve("ci"))
}
