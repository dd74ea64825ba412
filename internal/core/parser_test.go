package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, doc string) *Pipeline {
	t.Helper()
	p, err := ParsePipeline([]byte(doc))
	require.NoError(t, err)
	return p
}

func labels(m Matrix) []string {
	var out []string
	for _, e := range m.Entries {
		out = append(out, e.Label)
	}
	return out
}

func TestLoadPipeline_Fixture(t *testing.T) {
	p, err := LoadPipeline(filepath.Join("testdata", "azure-pipelines.yml"))
	require.NoError(t, err)

	require.Equal(t, []string{"master"}, p.Trigger.Include)
	require.Equal(t, []string{"master"}, p.PR.Include)
	require.Len(t, p.Jobs, 3)

	linux := p.Jobs[0]
	require.Equal(t, "ci/azure/linux.yml", linux.Template)
	require.Equal(t, "Linux", linux.Parameters.Name)
	require.Equal(t, "ubuntu-16.04", linux.Parameters.VMImage)
	require.Equal(t, []string{
		"Python36-64bit + OPTIONAL_DEPS",
		"Python37-64bit + OPTIONAL_DEPS",
		"Python38-64bit",
		"CONDA Python37-64bit + OPTIONAL_DEPS",
		"VIZ Python37-64bit",
	}, labels(linux.Parameters.Matrix))
	require.Greater(t, linux.Line, 0)
}

func TestParsePipeline_CommentedEntriesAreAbsent(t *testing.T) {
	p, err := LoadPipeline(filepath.Join("testdata", "azure-pipelines.yml"))
	require.NoError(t, err)

	for _, tpl := range p.Jobs {
		for _, e := range tpl.Parameters.Matrix.Entries {
			require.NotContains(t, e.Label, "PRE")
			_, usesPre := e.Bindings.Lookup(VarUsePre)
			require.False(t, usesPre, "entry %q", e.Label)
		}
	}
}

func TestParsePipeline_KeepsVersionsVerbatim(t *testing.T) {
	p := mustParse(t, `
jobs:
- template: t.yml
  parameters:
    name: G
    vmImage: X
    matrix:
      Py310:
        python.version: 3.10
      Py38:
        python.version: 3.8
`)
	v, ok := p.Jobs[0].Parameters.Matrix.Entries[0].Bindings.Lookup(VarPythonVersion)
	require.True(t, ok)
	require.Equal(t, "3.10", v)
}

func TestParsePipeline_DuplicateLabel(t *testing.T) {
	_, err := ParsePipeline([]byte(`
jobs:
- template: t.yml
  parameters:
    name: Linux
    vmImage: X
    matrix:
      A:
        python.version: "3.7"
      A:
        python.version: "3.8"
`))
	var dup *DuplicateLabelError
	require.True(t, errors.As(err, &dup), "got %v", err)
	require.Equal(t, "A", dup.Label)
	require.Equal(t, "Linux", dup.Template)
	require.Equal(t, 8, dup.FirstLine)
	require.Equal(t, 10, dup.Line)
	require.Equal(t, "DuplicateLabelError", ErrorKind(err))
}

func TestParsePipeline_SameLabelInDifferentTemplates(t *testing.T) {
	p := mustParse(t, `
jobs:
- template: a.yml
  parameters: {name: A, vmImage: X, matrix: {Py37: {python.version: "3.7"}}}
- template: b.yml
  parameters: {name: B, vmImage: Y, matrix: {Py37: {python.version: "3.7"}}}
`)
	require.Len(t, p.Jobs, 2)
}

func TestParsePipeline_EnabledFlag(t *testing.T) {
	p := mustParse(t, `
jobs:
- template: t.yml
  parameters:
    name: G
    vmImage: X
    matrix:
      On:
        python.version: "3.7"
        enabled: true
      Off:
        python.version: "3.7"
        USE_PRE: 1
        enabled: false
`)
	entries := p.Jobs[0].Parameters.Matrix.Entries
	require.Len(t, entries, 2)
	require.True(t, entries[0].Enabled)
	require.False(t, entries[1].Enabled)
	for _, e := range entries {
		_, ok := e.Bindings.Lookup("enabled")
		require.False(t, ok)
	}
}

func TestParsePipeline_DisabledEntriesStillNeedUniqueLabels(t *testing.T) {
	_, err := ParsePipeline([]byte(`
jobs:
- template: t.yml
  parameters:
    name: G
    vmImage: X
    matrix:
      A: {python.version: "3.7"}
      A: {python.version: "3.7", enabled: false}
`))
	var dup *DuplicateLabelError
	require.ErrorAs(t, err, &dup)
}

func TestParsePipeline_MergeKeys(t *testing.T) {
	p := mustParse(t, `
jobs:
- template: t.yml
  parameters:
    name: G
    vmImage: X
    matrix:
      Base: &base
        python.version: "3.7"
        EXTRA_DEPENDS: "a"
      Viz:
        <<: *base
        TEST_WITH_XVFB: "true"
        EXTRA_DEPENDS: "b"
`)
	got := p.Jobs[0].Parameters.Matrix.Entries[1].Bindings
	want := Bindings{
		{Name: "python.version", Value: "3.7"},
		{Name: "EXTRA_DEPENDS", Value: "b"},
		{Name: "TEST_WITH_XVFB", Value: "true"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merged bindings mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePipeline_VariableListForm(t *testing.T) {
	p := mustParse(t, `
variables:
  - name: python.version
    value: "3.9"
  - name: CI
    value: "true"
jobs:
- template: t.yml
  parameters: {name: G, vmImage: X, matrix: {A: {}}}
`)
	want := Bindings{{Name: "python.version", Value: "3.9"}, {Name: "CI", Value: "true"}}
	if diff := cmp.Diff(want, p.Variables); diff != "" {
		t.Errorf("variables mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePipeline_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no jobs", "trigger: [master]\n"},
		{"empty document", ""},
		{"malformed yaml", "jobs: [\n"},
		{"non-scalar binding", `
jobs:
- template: t.yml
  parameters:
    name: G
    vmImage: X
    matrix:
      A:
        python.version: "3.7"
        EXTRA_DEPENDS: [a, b]
`},
		{"matrix is a list", `
jobs:
- template: t.yml
  parameters: {name: G, vmImage: X, matrix: [a, b]}
`},
		{"bad enabled value", `
jobs:
- template: t.yml
  parameters: {name: G, vmImage: X, matrix: {A: {python.version: "3.7", enabled: maybe}}}
`},
		{"variable twice", `
jobs:
- template: t.yml
  parameters:
    name: G
    vmImage: X
    matrix:
      A:
        python.version: "3.7"
        python.version: "3.8"
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePipeline([]byte(tt.doc))
			var cfg *ConfigurationError
			require.ErrorAs(t, err, &cfg)
			require.Equal(t, "ConfigurationError", ErrorKind(err))
		})
	}
}

func TestLoadPipeline_MissingFile(t *testing.T) {
	_, err := LoadPipeline(filepath.Join(t.TempDir(), "nope.yml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadPipeline_WrapsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("trigger: [master]\n"), 0644))

	_, err := LoadPipeline(path)
	require.ErrorContains(t, err, path)
	var cfg *ConfigurationError
	require.ErrorAs(t, err, &cfg)
}
