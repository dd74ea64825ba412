package cli

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"matrixci/internal/core"
	"matrixci/internal/logging"
	"matrixci/internal/server"
)

func init() {
	color.NoColor = true
}

const pipelineDoc = `
trigger: [master]
pr: [master]
jobs:
- template: ci/linux.yml
  parameters:
    name: Linux
    vmImage: ubuntu-16.04
    matrix:
      Py37 + OPTIONAL_DEPS:
        python.version: "3.7"
        EXTRA_DEPENDS: "scipy pandas"
      # PRE Py37:
      #   python.version: "3.7"
      #   USE_PRE: 1
      CONDA Py38:
        python.version: "3.8"
        INSTALL_TYPE: conda
`

// workspace writes a pipeline and its template into a temp dir and points all
// recording paths into it.
func workspace(t *testing.T, doc string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ci"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ci", "linux.yml"), []byte("jobs: []\n"), 0644))
	path := filepath.Join(dir, "azure-pipelines.yml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	t.Setenv("MATRIXCI_LEDGER_PATH", filepath.Join(dir, "ledger.jsonl"))
	t.Setenv("MATRIXCI_PLAN_DIR", filepath.Join(dir, "plans"))
	t.Setenv("MATRIXCI_KEY_DIR", filepath.Join(dir, "keys"))
	t.Setenv("MATRIXCI_LOG_LEVEL", "error")
	t.Setenv("MATRIXCI_LOG_FORMAT", "text")
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestExpandCmd_JSON(t *testing.T) {
	path := workspace(t, pipelineDoc)

	out, err := run(t, "expand", path, "--format", "json")
	require.NoError(t, err)

	var jobs []core.Job
	require.NoError(t, json.Unmarshal([]byte(out), &jobs))
	require.Len(t, jobs, 2)
	require.Equal(t, "Linux Py37 + OPTIONAL_DEPS", jobs[0].Name)
	require.Equal(t, []string{"scipy", "pandas"}, jobs[0].Variables.ExtraDepends)
	require.True(t, jobs[1].Variables.Conda())
}

func TestExpandCmd_Table(t *testing.T) {
	path := workspace(t, pipelineDoc)

	out, err := run(t, "expand", path, "-o", "table")
	require.NoError(t, err)
	require.Contains(t, out, "Linux  ubuntu-16.04")
	require.NotContains(t, out, "PRE")
}

func TestExpandCmd_Branch(t *testing.T) {
	path := workspace(t, pipelineDoc)

	out, err := run(t, "expand", path, "-o", "json", "--event", "pr", "--branch", "feature/x")
	require.NoError(t, err)
	require.JSONEq(t, "[]", out)

	out, err = run(t, "expand", path, "-o", "json", "--branch", "master")
	require.NoError(t, err)
	var jobs []core.Job
	require.NoError(t, json.Unmarshal([]byte(out), &jobs))
	require.Len(t, jobs, 2)
}

func TestExpandCmd_UnresolvedTemplate(t *testing.T) {
	path := workspace(t, pipelineDoc)
	require.NoError(t, os.Remove(filepath.Join(filepath.Dir(path), "ci", "linux.yml")))

	_, err := run(t, "expand", path, "-o", "json")
	var unresolved *core.UnresolvedTemplateError
	require.ErrorAs(t, err, &unresolved)

	_, err = run(t, "expand", path, "-o", "json", "--no-resolve")
	require.NoError(t, err)
}

func TestExpandCmd_DefaultPython(t *testing.T) {
	path := workspace(t, `
jobs:
- template: ci/linux.yml
  parameters: {name: Linux, vmImage: X, matrix: {Plain: {}}}
`)
	_, err := run(t, "expand", path, "-o", "json")
	var cfg *core.ConfigurationError
	require.ErrorAs(t, err, &cfg)

	out, err := run(t, "expand", path, "-o", "json", "--default-python", "3.9")
	require.NoError(t, err)
	require.Contains(t, out, `"pythonVersion": "3.9"`)
}

func TestValidateCmd(t *testing.T) {
	path := workspace(t, pipelineDoc)
	out, err := run(t, "validate", path)
	require.NoError(t, err)
	require.Equal(t, "OK 1 job template(s), 2 job(s)\n", out)

	bad := workspace(t, `
jobs:
- template: ci/linux.yml
  parameters: {name: Linux, vmImage: X, matrix: {A: {python.version: "3.7"}, A: {python.version: "3.8"}}}
`)
	_, err = run(t, "validate", bad)
	var dup *core.DuplicateLabelError
	require.ErrorAs(t, err, &dup)
}

func TestExpandRecordAndLedger(t *testing.T) {
	path := workspace(t, pipelineDoc)

	_, err := run(t, "expand", path, "-o", "json", "--record")
	require.NoError(t, err)
	_, err = run(t, "expand", path, "-o", "json", "--record")
	require.NoError(t, err)

	plans, err := os.ReadDir(os.Getenv("MATRIXCI_PLAN_DIR"))
	require.NoError(t, err)
	require.Len(t, plans, 2)

	out, err := run(t, "ledger", "verify")
	require.NoError(t, err)
	require.Contains(t, out, "Ledger verification OK (2 entries)")

	out, err = run(t, "ledger", "inspect")
	require.NoError(t, err)
	require.Contains(t, out, "Index=1")
	require.Contains(t, out, "Jobs=2")
}

func TestPlansCmd(t *testing.T) {
	path := workspace(t, pipelineDoc)

	out, err := run(t, "plans", "list")
	require.NoError(t, err)
	require.Contains(t, out, "No saved plans.")

	out, err = run(t, "expand", path, "-o", "json", "--record")
	require.NoError(t, err)
	var recorded []core.Job
	require.NoError(t, json.Unmarshal([]byte(out), &recorded))

	out, err = run(t, "plans", "list")
	require.NoError(t, err)
	require.Contains(t, out, "2 job(s)")
	planID := strings.Fields(out)[0]

	out, err = run(t, "plans", "show", planID, "-o", "json")
	require.NoError(t, err)
	var shown []core.Job
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	require.Equal(t, recorded, shown)

	paths, err := filepath.Glob(filepath.Join(os.Getenv("MATRIXCI_PLAN_DIR"), "*.json"))
	require.NoError(t, err)
	require.Len(t, paths, 1)

	out, err = run(t, "plans", "show", paths[0], "-o", "env")
	require.NoError(t, err)
	require.Contains(t, out, "# "+recorded[0].ID+"\n")
	require.Contains(t, out, "INSTALL_TYPE=conda\n")

	_, err = run(t, "plans", "show", "no-such-plan", "-o", "json")
	require.ErrorContains(t, err, "plan not found")
}

func TestLedgerCmd_MissingFile(t *testing.T) {
	workspace(t, pipelineDoc)
	missing := filepath.Join(t.TempDir(), "typo.jsonl")

	_, err := run(t, "ledger", "verify", "--path", missing)
	require.ErrorIs(t, err, os.ErrNotExist)
	_, err = run(t, "ledger", "inspect", "--path", missing)
	require.ErrorIs(t, err, os.ErrNotExist)

	_, statErr := os.Stat(missing)
	require.True(t, os.IsNotExist(statErr))
}

func TestKeygenCmd(t *testing.T) {
	workspace(t, pipelineDoc)
	dir := filepath.Join(t.TempDir(), "keys")

	out, err := run(t, "keygen", "--dir", dir)
	require.NoError(t, err)
	require.Contains(t, out, "PUBLIC_KEY_BASE64:")

	_, err = run(t, "keygen", "--dir", dir)
	require.ErrorContains(t, err, "already exists")

	_, err = run(t, "keygen", "--dir", dir, "--force")
	require.NoError(t, err)
}

func TestSubmitCmd(t *testing.T) {
	path := workspace(t, pipelineDoc)
	srv := httptest.NewServer(server.New(core.NewRunner(core.ExpandOptions{}), nil, nil, logging.Discard()).Routes())
	defer srv.Close()

	out, err := run(t, "submit", path, "--server", srv.URL)
	require.NoError(t, err)
	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, float64(2), resp["jobs"])

	bad := workspace(t, "trigger: [master]\n")
	_, err = run(t, "submit", bad, "--server", srv.URL)
	require.ErrorContains(t, err, "422")
}

func TestRootCmd_BadConfig(t *testing.T) {
	path := workspace(t, pipelineDoc)
	t.Setenv("MATRIXCI_LOG_FORMAT", "xml")
	_, err := run(t, "expand", path)
	require.ErrorContains(t, err, "configuration error")
}
