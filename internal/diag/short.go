package diag

import (
	"fmt"
	"sort"
	"strings"

	"vera/internal/source"
)

type shortLine struct {
	Severity string
	Code     string
	Path     string
	Line     uint32
	Column   uint32
	Message  string
}

// FormatShort renders diagnostics one per line as
// "path:line:col: severity CODE: message", sorted by position.
// Spans without a file render with the "<synthesized>" path.
func FormatShort(diags []Diagnostic, fs *source.FileSet, includeNotes bool) string {
	if len(diags) == 0 {
		return ""
	}
	rendered := make([]shortLine, 0, len(diags))
	for i := range diags {
		d := &diags[i]
		rendered = append(rendered, renderLine(fs, d.Primary, d.Severity.String(), d.Code, d.Message))
		if includeNotes {
			for _, n := range d.Notes {
				rendered = append(rendered, renderLine(fs, n.Span, "note", d.Code, n.Msg))
			}
		}
	}
	sort.SliceStable(rendered, func(i, j int) bool {
		di, dj := rendered[i], rendered[j]
		if di.Path != dj.Path {
			return di.Path < dj.Path
		}
		if di.Line != dj.Line {
			return di.Line < dj.Line
		}
		if di.Column != dj.Column {
			return di.Column < dj.Column
		}
		return di.Code < dj.Code
	})
	var b strings.Builder
	for i, d := range rendered {
		fmt.Fprintf(&b, "%s:%d:%d: %s %s: %s", d.Path, d.Line, d.Column, d.Severity, d.Code, d.Message)
		if i < len(rendered)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func renderLine(fs *source.FileSet, sp source.Span, sev string, code Code, msg string) shortLine {
	out := shortLine{Severity: sev, Code: code.ID(), Path: "<synthesized>", Line: 1, Column: 1, Message: sanitizeMessage(msg)}
	if fs == nil {
		return out
	}
	if f := fs.Get(sp.File); f != nil {
		start, _ := fs.Resolve(sp)
		out.Path = f.Path
		out.Line = start.Line
		out.Column = start.Col
	}
	return out
}

func sanitizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	msg = strings.ReplaceAll(msg, "\n", " ")
	return strings.TrimSpace(msg)
}
