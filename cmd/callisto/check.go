package main

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/spf13/cobra"

	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/compiler"
)

var checkFlags struct {
	format string
	color  bool
}

var checkCmd = &cobra.Command{
	Use:   "check [policy.hcl]",
	Short: "Compile a policy and report errors",
	Long: `Compile a policy file against the configured dictionary and modules and
report every diagnostic with its source location.

Without an argument the policy file from the configuration is checked.

Examples:
  # Check the configured policy
  callisto check

  # Check a specific file
  callisto check policies/accounting.hcl

  # JSON output for CI/CD
  callisto check policy.hcl --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkFlags.format, "format", "text", "output format: text, json")
	checkCmd.Flags().BoolVar(&checkFlags.color, "color", false, "colorize text diagnostics")
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(checkFlags.format)
	if err != nil || format == cli.FormatCSV {
		return cli.NewConfigError("--format", fmt.Sprintf("unsupported format %q", checkFlags.format))
	}

	cfg, err := loadConfig(cfgFile, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	path := cfg.Policy.File
	if len(args) == 1 {
		path = args[0]
	}

	logger, err := newLogger(&cfg.Telemetry.Logging, cmd.ErrOrStderr(), verbose)
	if err != nil {
		return err
	}
	env, err := newPolicyEnv(cfg, logger)
	if err != nil {
		return err
	}
	defer env.close(logger)

	return checkPolicy(env.compiler, path, format, checkFlags.color, cmd.OutOrStdout())
}

// CheckResult is the JSON form of a check.
type CheckResult struct {
	File        string       `json:"file"`
	Valid       bool         `json:"valid"`
	Sections    []string     `json:"sections,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Diagnostic is a single compiler message.
type Diagnostic struct {
	Severity string `json:"severity"`
	Summary  string `json:"summary"`
	Detail   string `json:"detail,omitempty"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
}

// checkPolicy compiles path and writes the result. A compile failure is
// returned as the *compiler.CompileError so the exit code reflects it.
func checkPolicy(c *compiler.Compiler, path string, format cli.OutputFormat, color bool, w io.Writer) error {
	prog, err := c.CompileFile(path)

	var cerr *compiler.CompileError
	if err != nil && !errors.As(err, &cerr) {
		return cli.NewCommandError("check", err)
	}

	if format == cli.FormatJSON {
		result := CheckResult{File: path, Valid: err == nil}
		if prog != nil {
			for name := range prog.Sections {
				result.Sections = append(result.Sections, name)
			}
			sort.Strings(result.Sections)
		}
		if cerr != nil {
			result.Diagnostics = convertDiagnostics(cerr.Diagnostics)
		}
		if ferr := cli.NewFormatter(cli.FormatJSON).FormatTo(w, result); ferr != nil {
			return ferr
		}
		return err
	}

	if cerr != nil {
		if werr := cerr.WriteDiagnostics(w, 80, color); werr != nil {
			return werr
		}
		fmt.Fprintf(w, "✗ %s: %d error(s)\n", path, len(cerr.Diagnostics.Errs()))
		return err
	}
	fmt.Fprintf(w, "✓ %s: %d section(s)\n", path, len(prog.Sections))
	return nil
}

func convertDiagnostics(diags hcl.Diagnostics) []Diagnostic {
	out := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		cd := Diagnostic{
			Severity: "error",
			Summary:  d.Summary,
			Detail:   d.Detail,
		}
		if d.Severity == hcl.DiagWarning {
			cd.Severity = "warning"
		}
		if d.Subject != nil {
			cd.File = d.Subject.Filename
			cd.Line = d.Subject.Start.Line
			cd.Column = d.Subject.Start.Column
		}
		out = append(out, cd)
	}
	return out
}
