package types

import (
	"errors"
	"testing"

	"vera/internal/source"
)

func newTestTable() (*Table, *source.Interner) {
	strs := source.NewInterner()
	return NewTable(strs), strs
}

func TestBuiltinsAndHashConsing(t *testing.T) {
	tab, _ := newTestTable()
	b := tab.Builtins()
	if b.Bool == NoTypeID || b.Nat == NoTypeID || b.Error == NoTypeID {
		t.Fatalf("builtins not initialized: %+v", b)
	}
	if tab.Kind(b.Nat) != KindSubrange {
		t.Fatalf("nat must be a subrange")
	}
	s1 := tab.Set(b.Int, true)
	s2 := tab.Set(b.Int, true)
	is := tab.Set(b.Int, false)
	if s1 != s2 {
		t.Fatalf("structural types must be hash-consed")
	}
	if s1 == is {
		t.Fatalf("set and iset must differ")
	}
	if tab.Map(b.Int, b.Bool, true) != tab.Map(b.Int, b.Bool, true) {
		t.Fatalf("maps must be hash-consed")
	}
}

func TestInvalidElementPanics(t *testing.T) {
	tab, _ := newTestTable()
	defer func() {
		if recover() == nil {
			t.Fatalf("seq<invalid> must panic")
		}
	}()
	tab.Seq(NoTypeID)
}

func TestUserResolutionIsExclusive(t *testing.T) {
	tab, strs := newTestTable()
	u := tab.NewUser(strs.Intern("List"), source.NoStringID, []TypeID{tab.Builtins().Int}, source.NoSpan)
	if u == tab.NewUser(strs.Intern("List"), source.NoStringID, []TypeID{tab.Builtins().Int}, source.NoSpan) {
		t.Fatalf("user types must be fresh cells")
	}
	if err := tab.ResolveUserDecl(u, 7, DeclDatatype); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if err := tab.ResolveUserDecl(u, 8, DeclDatatype); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("second resolve must fail with ErrAlreadyResolved, got %v", err)
	}
	if err := tab.ResolveUserParam(u, 1); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("param after decl must fail, got %v", err)
	}
	decl, kind, ok := tab.UserDecl(u)
	if !ok || decl != 7 || kind != DeclDatatype {
		t.Fatalf("UserDecl = %d %v %v", decl, kind, ok)
	}
	if err := tab.ResolveUserDecl(tab.Builtins().Int, 1, DeclClass); !errors.Is(err, ErrNotUser) {
		t.Fatalf("resolving a primitive must fail with ErrNotUser, got %v", err)
	}
}

func TestFormat(t *testing.T) {
	tab, strs := newTestTable()
	b := tab.Builtins()
	u := tab.NewUser(strs.Intern("Tree"), strs.Intern("Lib"), []TypeID{b.Nat}, source.NoSpan)
	m := tab.Map(tab.Seq(b.Char), u, false)
	if got := tab.Format(m); got != "imap<seq<char>, Lib.Tree<nat>>" {
		t.Fatalf("Format = %q", got)
	}
	p := tab.NewProxy(ProxyOperation, source.NoSpan)
	if got := tab.Format(p); got == "" || got[0] != '?' {
		t.Fatalf("proxy format = %q", got)
	}
}

func TestInstantiate(t *testing.T) {
	tab, strs := newTestTable()
	b := tab.Builtins()
	tp := tab.NewUser(strs.Intern("T"), source.NoStringID, nil, source.NoSpan)
	if err := tab.ResolveUserParam(tp, 3); err != nil {
		t.Fatal(err)
	}
	list := tab.NewResolvedUser(strs.Intern("List"), []TypeID{tp}, 9, DeclDatatype)
	got := tab.Instantiate(tab.Seq(list), Subst{3: b.Int})
	want := "seq<List<int>>"
	if tab.Format(got) != want {
		t.Fatalf("Instantiate = %q, want %q", tab.Format(got), want)
	}
	inner := tab.MustLookup(got).Elem
	if decl, _, ok := tab.UserDecl(inner); !ok || decl != 9 {
		t.Fatalf("instantiated user type must keep its declaration")
	}
	if tab.Instantiate(b.Bool, Subst{3: b.Int}) != b.Bool {
		t.Fatalf("closed types must be returned unchanged")
	}
}
