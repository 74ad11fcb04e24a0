package compiler

import (
	"fmt"
	"io"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/hashicorp/hcl/v2"
)

// CompileError carries the diagnostics of a failed compilation.
type CompileError struct {
	// Diagnostics are the errors and warnings produced.
	Diagnostics hcl.Diagnostics

	// Sections lists the sections that failed to compile.
	Sections []string

	files map[string]*hcl.File
}

func (e *CompileError) Error() string {
	errs := e.Diagnostics.Errs()
	if len(errs) == 1 {
		return errs[0].Error()
	}
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d compile errors: %s", len(errs), strings.Join(msgs, "; "))
}

// WriteDiagnostics renders the diagnostics with source snippets.
func (e *CompileError) WriteDiagnostics(w io.Writer, width uint, color bool) error {
	return hcl.NewDiagnosticTextWriter(w, e.files, width, color).WriteDiagnostics(e.Diagnostics)
}

// suggest returns "Did you mean ...?" for the closest candidate, if any is
// close enough.
func suggest(given string, candidates []string) string {
	best, bestDist := "", 4
	for _, c := range candidates {
		if d := levenshtein.Distance(given, c, nil); d < bestDist {
			best, bestDist = c, d
		}
	}
	if best == "" {
		return ""
	}
	return fmt.Sprintf(" Did you mean %q?", best)
}

func errorDiag(summary, detail string, subject hcl.Range) *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   detail,
		Subject:  subject.Ptr(),
	}
}
