package diag

import (
	"fmt"
	"strings"
)

// Severity orders diagnostics. Only errors fail a resolution run;
// warnings and info lines are printed and otherwise ignored.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

var severityNames = [...]string{
	SevInfo:    "info",
	SevWarning: "warning",
	SevError:   "error",
}

// String returns the label used in short output.
func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return fmt.Sprintf("severity(%d)", uint8(s))
}

// Fails reports whether a diagnostic of this severity fails the run.
func (s Severity) Fails() bool { return s >= SevError }

// ParseSeverity is the inverse of String; case is ignored.
func ParseSeverity(label string) (Severity, error) {
	for i, name := range severityNames {
		if strings.EqualFold(label, name) {
			return Severity(i), nil
		}
	}
	return SevInfo, fmt.Errorf("unknown severity %q, want one of %s", label, strings.Join(severityNames[:], "|"))
}

// AtLeast returns the diagnostics with severity min or above, in order.
// The input slice is not modified.
func AtLeast(items []Diagnostic, min Severity) []Diagnostic {
	if min == SevInfo {
		return items
	}
	out := make([]Diagnostic, 0, len(items))
	for _, d := range items {
		if d.Severity >= min {
			out = append(out, d)
		}
	}
	return out
}
