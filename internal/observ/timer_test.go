package observ

import (
	"strings"
	"testing"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	a := tm.Begin("link")
	b := tm.Begin("signatures")
	tm.End(b, "3 modules")
	tm.End(a, "")
	tm.End(42, "ignored")

	r := tm.Report()
	if len(r.Phases) != 2 || r.Phases[0].Name != "link" || r.Phases[1].Note != "3 modules" {
		t.Fatalf("unexpected report: %+v", r)
	}
	if r.TotalMS < r.Phases[0].DurationMS {
		t.Fatalf("total must cover each phase")
	}
	s := tm.Summary()
	if !strings.Contains(s, "signatures") || !strings.Contains(s, "// 3 modules") || !strings.Contains(s, "total") {
		t.Fatalf("summary:\n%s", s)
	}
}

func TestEmptyTimer(t *testing.T) {
	if r := NewTimer().Report(); len(r.Phases) != 0 || r.TotalMS != 0 {
		t.Fatalf("empty timer must produce an empty report")
	}
}
