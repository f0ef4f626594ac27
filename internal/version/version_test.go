package version

import (
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestPlainAndDescribe(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	if got := Plain(); got != "0.3.0-dev" {
		t.Fatalf("Plain() = %q", got)
	}
	if got := Colored(); got != Plain() {
		t.Fatalf("Colored() without color = %q", got)
	}
	GitCommit = "abc123"
	defer func() { GitCommit = "" }()
	if d := Describe(); !strings.HasPrefix(d, "vera 0.3.0-dev") || !strings.Contains(d, "(abc123)") {
		t.Fatalf("Describe() = %q", d)
	}
}
