package version

import (
	"fmt"

	"github.com/fatih/color"
)

// Overridable at build time via -ldflags.
var (
	Major = "0"
	Minor = "3"
	Patch = "0"
	Label = "dev"

	GitCommit = ""
	BuildDate = ""
)

var (
	majorColor = color.New(color.FgYellow, color.Bold)
	minorColor = color.New(color.FgGreen, color.Bold)
	patchColor = color.New(color.FgBlue, color.Bold)
)

// Plain returns the version without color codes.
func Plain() string {
	v := Major + "." + Minor + "." + Patch
	if Label != "" {
		v += "-" + Label
	}
	return v
}

// Colored returns the version with each component colored; respects color.NoColor.
func Colored() string {
	v := majorColor.Sprint(Major) + "." + minorColor.Sprint(Minor) + "." + patchColor.Sprint(Patch)
	if Label != "" {
		v += "-" + Label
	}
	return v
}

// Describe is the full line printed by `vera version`.
func Describe() string {
	out := fmt.Sprintf("vera %s", Colored())
	if GitCommit != "" {
		out += fmt.Sprintf(" (%s)", GitCommit)
	}
	if BuildDate != "" {
		out += " built " + BuildDate
	}
	return out
}
