package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"matrixci/internal/core"
	"matrixci/internal/ledger"
)

// Format selects how jobs are rendered.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatEnv   Format = "env" // NAME=value lines per job
)

var (
	groupColor = color.New(color.FgYellow, color.Bold)
	labelColor = color.New(color.FgCyan)
	dimColor   = color.New(color.FgHiBlack)
	okColor    = color.New(color.FgGreen, color.Bold)
	errColor   = color.New(color.FgRed, color.Bold)
)

// ParseFormat maps a flag value onto a Format. Empty picks DefaultFormat for stdout.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "":
		return DefaultFormat(os.Stdout), nil
	case "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "env":
		return FormatEnv, nil
	}
	return "", fmt.Errorf("unknown output format %q (want table, json, yaml or env)", s)
}

// DefaultFormat is a table on a terminal and JSON otherwise.
func DefaultFormat(f *os.File) Format {
	if term.IsTerminal(int(f.Fd())) {
		return FormatTable
	}
	return FormatJSON
}

// PrintJobs renders jobs in the requested format.
func PrintJobs(w io.Writer, jobs []core.Job, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(jobs)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(jobs); err != nil {
			return err
		}
		return enc.Close()
	case FormatEnv:
		for _, j := range jobs {
			fmt.Fprintf(w, "# %s\n", j.ID)
			for _, kv := range j.Environ() {
				fmt.Fprintln(w, kv)
			}
			fmt.Fprintln(w)
		}
		return nil
	case FormatTable:
		printTable(w, jobs)
		return nil
	}
	return fmt.Errorf("unknown output format %q", f)
}

func printTable(w io.Writer, jobs []core.Job) {
	if len(jobs) == 0 {
		dimColor.Fprintln(w, "No jobs.")
		return
	}
	for i, j := range jobs {
		if i == 0 || j.Group != jobs[i-1].Group {
			fmt.Fprintln(w)
			groupColor.Fprintf(w, "%s", j.Group)
			dimColor.Fprintf(w, "  %s  (%s)\n", j.VMImage, j.Template)
		}
		fmt.Fprint(w, "  ")
		labelColor.Fprintf(w, "%-40s", j.Label)
		fmt.Fprintf(w, " python %-6s %-6s", j.Variables.PythonVersion, j.Variables.InstallType)
		var flags []string
		if j.Variables.TestWithXvfb {
			flags = append(flags, "xvfb")
		}
		if j.Variables.UsePre {
			flags = append(flags, "pre")
		}
		if len(j.Variables.ExtraDepends) > 0 {
			flags = append(flags, "+"+strings.Join(j.Variables.ExtraDepends, ","))
		}
		if len(flags) > 0 {
			dimColor.Fprintf(w, " %s", strings.Join(flags, " "))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}

// PrintSummary prints a one-line count of what a pipeline expands to.
func PrintSummary(w io.Writer, templates int, jobs []core.Job) {
	okColor.Fprint(w, "OK")
	fmt.Fprintf(w, " %d job template(s), %d job(s)\n", templates, len(jobs))
}

// PrintPlans lists saved plans, one per line.
func PrintPlans(w io.Writer, plans []*core.Plan) {
	if len(plans) == 0 {
		dimColor.Fprintln(w, "No saved plans.")
		return
	}
	for _, p := range plans {
		labelColor.Fprintf(w, "%s", p.ID)
		fmt.Fprintf(w, "  %s  %s  %d job(s)\n", p.CreatedAt.UTC().Format(time.RFC3339), p.Source, len(p.Jobs))
	}
}

// PrintError prints err in the style of the other messages.
func PrintError(w io.Writer, err error) {
	errColor.Fprint(w, "error")
	if kind := core.ErrorKind(err); kind != "" {
		dimColor.Fprintf(w, " [%s]", kind)
	}
	fmt.Fprintf(w, " %v\n", err)
}

// PrintLedger lists ledger entries, one per line.
func PrintLedger(w io.Writer, entries []*ledger.Entry) {
	if len(entries) == 0 {
		dimColor.Fprintln(w, "Ledger is empty.")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "Index=%d Time=%s Source=%s Plan=%s Jobs=%d Hash=%s\n",
			e.Index, e.Timestamp, e.Source, e.PlanID, e.JobCount, short(e.Hash))
	}
}

func short(h string) string {
	if len(h) > 16 {
		return h[:16]
	}
	return h
}
