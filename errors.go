package compselect

import (
	"strings"

	"compselect/sat"
)

// SummarizeDiagnostic renders a [sat.Diagnostic] tree as indented text,
// bounded in depth so a cyclic or very deep explanation still prints
// something useful.
func SummarizeDiagnostic(d *sat.Diagnostic) string {
	if d == nil {
		return "no candidates were offered"
	}
	return summarizeDiagnostic(d, 0)
}

func summarizeDiagnostic(d *sat.Diagnostic, depth int) string {
	const maxDepth = 6
	var b strings.Builder
	b.WriteString(d.Reason)
	if depth >= maxDepth || len(d.Because) == 0 {
		return b.String()
	}
	for _, child := range d.Because {
		b.WriteString("\n")
		b.WriteString(strings.Repeat("  ", depth+1))
		b.WriteString(summarizeDiagnostic(child, depth+1))
	}
	return b.String()
}

// An InternalError reports that this module's own invariants were
// violated: a diagnostic-mode solve, which should never fail, came back
// unsatisfiable anyway. That means [ProblemBuilder] emitted a clause no
// dummy candidate can satisfy.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string {
	return "compselect: internal error: " + e.Msg
}
