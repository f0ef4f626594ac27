package source

import "testing"

func TestInternerRoundTrip(t *testing.T) {
	in := NewInterner()
	a := in.Intern("alpha")
	b := in.Intern("beta")
	if a == b || a == NoStringID {
		t.Fatalf("unexpected ids %d %d", a, b)
	}
	if again := in.Intern("alpha"); again != a {
		t.Fatalf("re-interning must be stable: %d vs %d", again, a)
	}
	if s := in.MustLookup(b); s != "beta" {
		t.Fatalf("lookup = %q", s)
	}
	if _, ok := in.Lookup(StringID(99)); ok {
		t.Fatalf("unknown id must fail")
	}
}

func TestFileSetResolve(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("m.toml", []byte("ab\ncd\nef"))
	start, end := fs.Resolve(Span{File: id, Start: 4, End: 7})
	if start.Line != 2 || start.Col != 2 {
		t.Fatalf("start = %+v, want 2:2", start)
	}
	if end.Line != 3 || end.Col != 2 {
		t.Fatalf("end = %+v, want 3:2", end)
	}
	first, _ := fs.Resolve(Span{File: id, Start: 0, End: 1})
	if first.Line != 1 || first.Col != 1 {
		t.Fatalf("first = %+v", first)
	}
}

func TestSpanCover(t *testing.T) {
	a := Span{File: 1, Start: 4, End: 6}
	b := Span{File: 1, Start: 2, End: 5}
	got := a.Cover(b)
	if got.Start != 2 || got.End != 6 {
		t.Fatalf("cover = %v", got)
	}
	if !got.Contains(a) || !got.Contains(b) {
		t.Fatalf("cover must contain both spans")
	}
	if other := a.Cover(Span{File: 2, Start: 0, End: 1}); other != a {
		t.Fatalf("cross-file cover must be a no-op")
	}
}

func TestNormalizeCRLF(t *testing.T) {
	out, changed := normalizeCRLF([]byte("a\r\nb\rc"))
	if !changed || string(out) != "a\nb\rc" {
		t.Fatalf("got %q changed=%v", out, changed)
	}
}
