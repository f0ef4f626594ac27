package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"vera/internal/observ"
)

// printTimings renders a phase report; names are padded by display width.
func printTimings(out io.Writer, report observ.Report) {
	if out == nil || len(report.Phases) == 0 {
		return
	}
	width := runewidth.StringWidth("total")
	for _, p := range report.Phases {
		width = max(width, runewidth.StringWidth(p.Name))
	}
	fmt.Fprintln(out, header("timings"))
	for _, p := range report.Phases {
		line := fmt.Sprintf("  %s %8.2f ms", runewidth.FillRight(p.Name, width), p.DurationMS)
		if p.Note != "" {
			line += "  " + dim(p.Note)
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "  %s %8.2f ms\n", runewidth.FillRight("total", width), report.TotalMS)
}

// table pads every column to its widest cell.
func table(out io.Writer, rows [][]string) {
	var widths []int
	for _, r := range rows {
		for i, c := range r {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], runewidth.StringWidth(c))
		}
	}
	for _, r := range rows {
		var b strings.Builder
		for i, c := range r {
			if i > 0 {
				b.WriteString("  ")
			}
			if i == len(r)-1 {
				b.WriteString(c)
				continue
			}
			b.WriteString(runewidth.FillRight(c, widths[i]))
		}
		fmt.Fprintln(out, b.String())
	}
}
