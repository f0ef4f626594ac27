package diag

import (
	"strings"
	"testing"

	"vera/internal/source"
)

func TestFormatShort(t *testing.T) {
	fs := source.NewFileSet()
	file := fs.AddVirtual("proj/vera.toml", []byte("a\nb\n"))

	diags := []Diagnostic{
		{
			Severity: SevWarning,
			Code:     ResUnderspecifiedType,
			Message:  "another",
			Primary:  source.Span{File: file, Start: 2, End: 3},
		},
		New(SevError, ResAmbiguousCtor, source.Span{File: file, Start: 0, End: 1}, "first line\nsecond").
			WithNote(source.Span{File: file, Start: 2, End: 3}, "declared here"),
	}

	want := "proj/vera.toml:1:1: error RES3003: first line second\n" +
		"proj/vera.toml:2:1: note RES3003: declared here\n" +
		"proj/vera.toml:2:1: warning RES3009: another"
	if got := FormatShort(diags, fs, true); got != want {
		t.Fatalf("unexpected rendering:\nwant:\n%s\n\ngot:\n%s", want, got)
	}
}

func TestCodeIDs(t *testing.T) {
	cases := map[Code]string{
		ResUnresolvedName:   "RES3001",
		IOManifestInvalid:   "IO4002",
		LnkCyclicAlias:      "LNK5002",
		ObsTimings:          "OBS6001",
		UnknownCode:         "E0000",
		ResCalcIncomparable: "RES3008",
	}
	for code, want := range cases {
		if got := code.ID(); got != want {
			t.Fatalf("%d.ID() = %q, want %q", code, got, want)
		}
	}
	if Code(3999).Title() != "Unknown error" {
		t.Fatalf("unknown codes must fall back to the generic title")
	}
}

func TestBagLimitSortAndDedup(t *testing.T) {
	bag := NewBag(3)
	r := BagReporter{Bag: bag}
	NewReportBuilder(r, SevWarning, ResTypeMismatch, source.Span{File: 0, Start: 5, End: 6}, "w").Emit()
	ReportError(r, ResUnresolvedName, source.Span{File: 0, Start: 1, End: 2}, "e").Emit()
	ReportError(r, ResUnresolvedName, source.Span{File: 0, Start: 1, End: 2}, "e").Emit()
	if bag.Add(New(SevInfo, ResInfo, source.NoSpan, "overflow")) {
		t.Fatalf("bag must refuse items past its limit")
	}
	if !bag.HasErrors() {
		t.Fatalf("expected errors")
	}
	bag.Dedup()
	bag.Sort()
	items := bag.Items()
	if len(items) != 2 {
		t.Fatalf("dedup left %d items", len(items))
	}
	if items[0].Code != ResUnresolvedName {
		t.Fatalf("sort by start failed: %v", items[0].Code)
	}
}

func TestDedupReporter(t *testing.T) {
	bag := NewBag(10)
	r := NewDedupReporter(BagReporter{Bag: bag})
	sp := source.Span{File: 1, Start: 3, End: 4}
	for range 3 {
		ReportError(r, ResAmbiguousCtor, sp, "Nil is ambiguous").Emit()
	}
	ReportError(r, ResAmbiguousCtor, sp, "Cons is ambiguous").Emit()
	Errorf(r, ResAmbiguousCtor, sp, "%s is ambiguous", "Cons")
	if bag.Len() != 2 {
		t.Fatalf("expected 2 unique diagnostics, got %d", bag.Len())
	}
	if bag.Count(ResAmbiguousCtor) != 2 {
		t.Fatalf("count mismatch")
	}
	if got := r.Suppressed(); got != 3 {
		t.Fatalf("Suppressed() = %d, want 3", got)
	}
}

func TestBuilderEmitsOnce(t *testing.T) {
	bag := NewBag(10)
	b := NewReportBuilder(BagReporter{Bag: bag}, SevInfo, ObsTimings, source.NoSpan, "t")
	b.Emit()
	b.Emit()
	if bag.Len() != 1 {
		t.Fatalf("builder emitted %d times", bag.Len())
	}
}

func TestSeverityLabels(t *testing.T) {
	for _, sev := range []Severity{SevInfo, SevWarning, SevError} {
		got, err := ParseSeverity(strings.ToUpper(sev.String()))
		if err != nil || got != sev {
			t.Fatalf("ParseSeverity(%q) = %v, %v", sev.String(), got, err)
		}
	}
	if _, err := ParseSeverity("fatal"); err == nil {
		t.Fatalf("fatal is not a severity")
	}
	if Severity(9).String() != "severity(9)" {
		t.Fatalf("out of range severity printed as %q", Severity(9).String())
	}
	if SevWarning.Fails() || !SevError.Fails() {
		t.Fatalf("only errors fail a run")
	}
}

func TestAtLeast(t *testing.T) {
	items := []Diagnostic{
		New(SevInfo, ObsTimings, source.NoSpan, "i"),
		New(SevError, ResUnresolvedName, source.NoSpan, "e"),
		New(SevWarning, ResTypeMismatch, source.NoSpan, "w"),
	}
	cases := []struct {
		min  Severity
		want []string
	}{
		{SevInfo, []string{"i", "e", "w"}},
		{SevWarning, []string{"e", "w"}},
		{SevError, []string{"e"}},
	}
	for _, tc := range cases {
		got := AtLeast(items, tc.min)
		msgs := make([]string, len(got))
		for i, d := range got {
			msgs[i] = d.Message
		}
		if strings.Join(msgs, ",") != strings.Join(tc.want, ",") {
			t.Fatalf("AtLeast(%s) = %v, want %v", tc.min, msgs, tc.want)
		}
	}
}
