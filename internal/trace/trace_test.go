package trace

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestRingKeepsLastEvents(t *testing.T) {
	r := NewRingTracer(2, LevelDebug, "run-1")
	for _, name := range []string{"a", "b", "c"} {
		Begin(r, ScopePass, name, 0).End("")
	}
	got := r.Snapshot()
	if len(got) != 2 {
		t.Fatalf("snapshot len = %d", len(got))
	}
	if got[0].Name != "c" || got[0].Kind != KindSpanBegin || got[1].Kind != KindSpanEnd {
		t.Fatalf("unexpected tail: %+v", got)
	}
}

func TestLevelFiltersScopes(t *testing.T) {
	r := NewRingTracer(16, LevelPhase, "")
	Begin(r, ScopeModule, "module:A", 0).End("")
	Begin(r, ScopePass, "bodies", 0).End("")
	if n := len(r.Snapshot()); n != 2 {
		t.Fatalf("phase level must drop module spans, got %d events", n)
	}
}

func TestStreamHeaderAndDriverRunID(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelDebug, Mode: ModeStream, Format: FormatNDJSON, Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	run := RunIDOf(tr)
	if run == "" {
		t.Fatalf("tracer must carry a run id")
	}
	Begin(tr, ScopeDriver, "resolve", 0).End("ok")
	out := buf.String()
	if !strings.Contains(out, `"run":"`+run+`"`) {
		t.Fatalf("ndjson events must carry the run id:\n%s", out)
	}
	if strings.Count(out, "\n") != 2 {
		t.Fatalf("expected 2 lines, got:\n%s", out)
	}
}

func TestMultiFanOutAndContext(t *testing.T) {
	a := NewRingTracer(8, LevelDebug, "x")
	b := NewRingTracer(8, LevelDebug, "")
	m := NewMultiTracer(LevelDebug, a, b)
	ctx := WithTracer(context.Background(), m)
	sp := Begin(FromContext(ctx), ScopePass, "link", 0)
	ctx = WithSpan(ctx, sp)
	Point(FromContext(ctx), ScopeNode, "alias", "A -> B", CurrentSpan(ctx))
	sp.End("")
	if len(a.Snapshot()) != 3 || len(b.Snapshot()) != 3 {
		t.Fatalf("fan-out mismatch: %d vs %d", len(a.Snapshot()), len(b.Snapshot()))
	}
	if m.RunID() != "x" {
		t.Fatalf("multi run id = %q", m.RunID())
	}
	if FromContext(context.Background()) != Nop {
		t.Fatalf("missing tracer must fall back to Nop")
	}
}

func TestParseHelpers(t *testing.T) {
	if l, err := ParseLevel("DETAIL"); err != nil || l != LevelDetail {
		t.Fatalf("ParseLevel: %v %v", l, err)
	}
	if _, err := ParseMode("disk"); err == nil {
		t.Fatalf("ParseMode must reject unknown modes")
	}
	if f, err := ParseFormat("json"); err != nil || f != FormatNDJSON {
		t.Fatalf("ParseFormat: %v %v", f, err)
	}
}
