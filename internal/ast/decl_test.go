package ast

import (
	"errors"
	"strings"
	"testing"

	"vera/internal/cell"
	"vera/internal/source"
)

func mustPanic(t *testing.T, what string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("%s: expected panic", what)
		}
	}()
	fn()
}

func TestArrayClassIsMemoized(t *testing.T) {
	p := NewProgram()
	for _, dims := range []int{1, 2, 3} {
		first := p.ArrayClass(dims)
		second := p.ArrayClass(dims)
		if first != second {
			t.Fatalf("array%d: got two declarations %d and %d", dims, first, second)
		}
		d := p.Decls.Get(first)
		if len(d.Members) != dims {
			t.Fatalf("array%d: expected %d length fields, got %d", dims, dims, len(d.Members))
		}
		for _, m := range d.Members {
			f, ok := p.Members.Field(m)
			if !ok || f.Special != SpecialArrayLength {
				t.Fatalf("array%d: member %s is not a length field", dims, p.Name(p.Members.Get(m).Name))
			}
		}
	}
	if p.ArrayClass(1) == p.ArrayClass(2) {
		t.Fatalf("different dimensions must not share a class")
	}
	at := p.ArrayType(2, p.Types.Builtins().Int)
	if got := p.ArrayDims(at); got != 2 {
		t.Fatalf("ArrayDims = %d, want 2", got)
	}
	if !p.Types.IsReference(at) {
		t.Fatalf("arrays are reference types")
	}
}

func TestArrayFieldNames(t *testing.T) {
	p := NewProgram()
	one := p.Decls.Get(p.ArrayClass(1))
	if got := p.Name(p.Members.Get(one.Members[0]).Name); got != "Length" {
		t.Fatalf("1-d length field = %q", got)
	}
	two := p.Decls.Get(p.ArrayClass(2))
	var names []string
	for _, m := range two.Members {
		names = append(names, p.Name(p.Members.Get(m).Name))
	}
	if strings.Join(names, ",") != "Length0,Length1" {
		t.Fatalf("2-d length fields = %v", names)
	}
}

func TestDatatypeRequiresConstructor(t *testing.T) {
	p := NewProgram()
	mod := p.NewModule(NoModuleID, p.Intern("M"), source.NoSpan)
	mustPanic(t, "empty datatype", func() {
		p.NewDatatype(mod, p.Intern("Empty"), nil, false, nil, source.NoSpan)
	})
}

func TestDatatypeOwnsCtorFormals(t *testing.T) {
	p := NewProgram()
	mod := p.NewModule(NoModuleID, p.Intern("M"), source.NoSpan)
	x := p.NewVar(VarFormal, p.Intern("x"), p.Types.Builtins().Int, false, source.NoSpan)
	dt := p.NewDatatype(mod, p.Intern("Box"), nil, false, []CtorInit{{Name: p.Intern("Box"), Formals: []VarID{x}}}, source.NoSpan)
	if p.Var(x).OwnerDecl != dt {
		t.Fatalf("ctor formal owner = %d, want %d", p.Var(x).OwnerDecl, dt)
	}
	mustPanic(t, "second owner", func() {
		p.NewDatatype(mod, p.Intern("Other"), nil, false, []CtorInit{{Name: p.Intern("O"), Formals: []VarID{x}}}, source.NoSpan)
	})
}

func TestAmbiguousCtorLookup(t *testing.T) {
	p := NewProgram()
	mod := p.NewModule(NoModuleID, p.Intern("M"), source.NoSpan)
	nilName := p.Intern("Nil")
	list := p.NewDatatype(mod, p.Intern("List"), nil, false, []CtorInit{{Name: nilName}}, source.NoSpan)
	tree := p.NewDatatype(mod, p.Intern("Tree"), nil, false, []CtorInit{{Name: nilName}}, source.NoSpan)

	sig := NewSignature(mod, true)
	for _, dt := range []DeclID{list, tree} {
		for _, c := range p.CtorsOf(dt) {
			sig.AddCtor(p.Ctors.Get(uint32(c)).Name, c)
		}
	}
	entry, ok := sig.LookupCtor(nilName)
	if ok {
		t.Fatalf("Nil must be ambiguous, got ctor %d", entry.Ctor)
	}
	if !entry.Ambiguous || len(entry.Candidates) != 2 {
		t.Fatalf("expected two ambiguous candidates, got %+v", entry)
	}
	// повторная регистрация того же конструктора не делает имя неоднозначным
	single := NewSignature(mod, true)
	c := p.CtorsOf(list)[0]
	single.AddCtor(nilName, c)
	single.AddCtor(nilName, c)
	if got, ok := single.LookupCtor(nilName); !ok || got.Ctor != c {
		t.Fatalf("re-adding the same ctor must stay unambiguous: %+v", got)
	}
}

func TestLookupCtorFollowsRefines(t *testing.T) {
	p := NewProgram()
	base := p.NewModule(NoModuleID, p.Intern("A"), source.NoSpan)
	refining := p.NewModule(NoModuleID, p.Intern("B"), source.NoSpan)
	nilName := p.Intern("Nil")
	list := p.NewDatatype(base, p.Intern("List"), nil, false, []CtorInit{{Name: nilName}}, source.NoSpan)
	tree := p.NewDatatype(base, p.Intern("Tree"), nil, false, []CtorInit{{Name: nilName}}, source.NoSpan)
	local := p.NewDatatype(refining, p.Intern("Opt"), nil, false, []CtorInit{{Name: nilName}}, source.NoSpan)

	baseSig := NewSignature(base, true)
	for _, dt := range []DeclID{list, tree} {
		baseSig.AddCtor(nilName, p.CtorsOf(dt)[0])
	}
	sig := NewSignature(refining, true)
	sig.Refines = baseSig
	if entry, ok := sig.LookupCtor(nilName); ok || !entry.Ambiguous {
		t.Fatalf("inherited ambiguity must be reported, got %+v", entry)
	}

	sig.AddCtor(nilName, p.CtorsOf(local)[0])
	if entry, ok := sig.LookupCtor(nilName); !ok || entry.Ctor != p.CtorsOf(local)[0] {
		t.Fatalf("local ctor must shadow the refined ones, got %+v", entry)
	}
	if _, ok := sig.LookupCtor(p.Intern("Cons")); ok {
		t.Fatalf("unknown ctor found")
	}
}

func TestCompiledNameWithQuote(t *testing.T) {
	p := NewProgram()
	mod := p.NewModule(NoModuleID, p.Intern("M"), source.NoSpan)
	primed := p.NewClass(mod, p.Intern("x'"), nil, source.NoSpan)
	plain := p.NewClass(mod, p.Intern("x_k"), nil, source.NoSpan)

	first := p.CompiledName(primed)
	if again := p.CompiledName(primed); again != first {
		t.Fatalf("compiled name not stable: %q then %q", first, again)
	}
	if first == p.CompiledName(plain) {
		t.Fatalf("x' and x_k collide as %q", first)
	}
	if strings.ContainsRune(first, '\'') {
		t.Fatalf("quote survived escaping: %q", first)
	}
}

func TestEscapeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"foo", "foo"},
		{"a_b", "a__b"},
		{"x'", "x_k"},
		{"ok?", "ok_q"},
		{"f#1", "f_h1"},
		{"1st", "_u0031st"},
		{"new", "new_x"},
		{"new_x", "new__x"},
		{"λ", "_u03BB"},
		{"é", "_u00E9"},
	}
	for _, tt := range tests {
		if got := EscapeName(tt.in); got != tt.want {
			t.Fatalf("EscapeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFullNameQualification(t *testing.T) {
	p := NewProgram()
	lib := p.NewModule(NoModuleID, p.Intern("Lib"), source.NoSpan)
	inner := p.NewModule(lib, p.Intern("Inner"), source.NoSpan)
	app := p.NewModule(NoModuleID, p.Intern("App"), source.NoSpan)
	c := p.NewClass(inner, p.Intern("C"), nil, source.NoSpan)
	if got := p.FullName(c, inner); got != "C" {
		t.Fatalf("FullName in owner = %q", got)
	}
	if got := p.FullName(c, app); got != "Lib.Inner.C" {
		t.Fatalf("FullName elsewhere = %q", got)
	}
	if got := p.FullCompiledName(c); got != "Lib_0Inner.C" {
		t.Fatalf("FullCompiledName = %q", got)
	}
}

func TestModuleCompiledNamesDoNotCollide(t *testing.T) {
	p := NewProgram()
	kw := p.NewModule(NoModuleID, p.Intern("type"), source.NoSpan)
	nested := p.NewModule(kw, p.Intern("x"), source.NoSpan)
	flat := p.NewModule(NoModuleID, p.Intern("type_0x"), source.NoSpan)
	flatX := p.NewModule(NoModuleID, p.Intern("type_x"), source.NoSpan)
	a := p.NewClass(nested, p.Intern("C"), nil, source.NoSpan)
	b := p.NewClass(flat, p.Intern("C"), nil, source.NoSpan)
	c := p.NewClass(flatX, p.Intern("C"), nil, source.NoSpan)
	d := p.NewClass(kw, p.Intern("C"), nil, source.NoSpan)

	seen := make(map[string]DeclID)
	for _, id := range []DeclID{a, b, c, d} {
		name := p.FullCompiledName(id)
		if prev, ok := seen[name]; ok {
			t.Fatalf("decls %d and %d share compiled name %q", prev, id, name)
		}
		seen[name] = id
	}
	if got := p.FullCompiledName(a); got != "type_x_0x.C" {
		t.Fatalf("nested keyword module = %q", got)
	}
}

func TestModulePhaseAdvancesOnly(t *testing.T) {
	p := NewProgram()
	m := p.Modules.Get(p.NewModule(NoModuleID, p.Intern("M"), source.NoSpan))
	if err := m.Advance(PhaseSignatureResolved); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := m.Advance(PhaseSignatureResolved); err != nil {
		t.Fatalf("re-entering the same phase: %v", err)
	}
	if err := m.Advance(PhaseLinked); err == nil {
		t.Fatalf("going back must fail")
	}
	if !m.AtLeast(PhaseLinked) || m.AtLeast(PhaseTypesResolved) {
		t.Fatalf("unexpected phase %s", m.Phase())
	}
}

func TestWriteOnceModuleSignature(t *testing.T) {
	p := NewProgram()
	id := p.NewModule(NoModuleID, p.Intern("M"), source.NoSpan)
	m := p.Modules.Get(id)
	if err := m.Signature.Set(NewSignature(id, true)); err != nil {
		t.Fatalf("first set: %v", err)
	}
	if err := m.Signature.Set(NewSignature(id, true)); !errors.Is(err, cell.ErrAlreadySet) {
		t.Fatalf("second set: got %v", err)
	}
}

func TestContainsBool(t *testing.T) {
	p := NewProgram()
	yes := p.Exprs.NewBoolLiteral(source.NoSpan, false)
	num := p.Exprs.NewLiteral(source.NoSpan, LitInt, p.Intern("3"))
	set := p.NewAttrSet([]Attribute{
		{Name: p.Intern("compile"), Args: []ExprID{yes}},
		{Name: p.Intern("fuel"), Args: []ExprID{num}},
		{Name: p.Intern("myTool")},
	})
	if exists, value, literal := p.ContainsBool(set, "compile"); !exists || !literal || value {
		t.Fatalf("compile: exists=%v value=%v literal=%v", exists, value, literal)
	}
	if exists, _, literal := p.ContainsBool(set, "fuel"); !exists || literal {
		t.Fatalf("fuel: exists=%v literal=%v", exists, literal)
	}
	if exists, _, _ := p.ContainsBool(set, "myTool"); !exists {
		t.Fatalf("verbatim attribute not found")
	}
	if exists, _, _ := p.ContainsBool(set, "opaque"); exists {
		t.Fatalf("absent attribute reported")
	}
	if p.IsCompiled(set) {
		t.Fatalf("{:compile false} must disable compilation")
	}
	if !p.IsCompiled(NoAttrSetID) {
		t.Fatalf("compilation defaults to on")
	}
}

func TestFunctionGhostness(t *testing.T) {
	p := NewProgram()
	mod := p.NewModule(NoModuleID, p.Intern("M"), source.NoSpan)
	cls := p.DefaultClass(mod)
	if p.DefaultClass(mod) != cls || !p.IsDefaultClass(cls) {
		t.Fatalf("default class must be created once")
	}
	ghost := p.NewFunction(cls, FunctionInit{Name: p.Intern("f"), Result: p.Types.Builtins().Int})
	compiled := p.NewFunction(cls, FunctionInit{Name: p.Intern("g"), Compiled: true, Result: p.Types.Builtins().Int})
	pred := p.NewFunction(cls, FunctionInit{Name: p.Intern("P"), Flavor: FuncPredicate})
	if !p.Members.Get(ghost).IsGhost || p.Members.Get(compiled).IsGhost {
		t.Fatalf("functions are ghost unless marked compiled")
	}
	fd, _ := p.Members.Function(pred)
	if fd.Result != p.Types.Builtins().Bool {
		t.Fatalf("predicate result = %s", p.Types.Format(fd.Result))
	}
	if id, ok := p.MemberNamed(cls, p.Intern("g")); !ok || id != compiled {
		t.Fatalf("MemberNamed(g) = %d, %v", id, ok)
	}
	lemma := p.NewMethod(cls, MethodInit{Name: p.Intern("L"), Flavor: MethodLemma})
	if !p.Members.Get(lemma).IsGhost {
		t.Fatalf("lemmas are ghost")
	}
	mustPanic(t, "constructor in default class", func() {
		p.NewMethod(cls, MethodInit{Name: p.Intern("_ctor"), Flavor: MethodConstructor})
	})
}

func TestSupportsEqualityThroughProgram(t *testing.T) {
	p := NewProgram()
	mod := p.NewModule(NoModuleID, p.Intern("M"), source.NoSpan)
	tp := p.NewTypeParam(p.Intern("T"), false, source.NoSpan)
	stream := p.NewDatatype(mod, p.Intern("Stream"), []TypeParamID{tp}, true, []CtorInit{{Name: p.Intern("Cons")}}, source.NoSpan)
	if p.SupportsEquality(p.DeclType(stream)) {
		t.Fatalf("codatatypes never support equality")
	}
	opaque := p.NewOpaqueType(mod, p.Intern("Handle"), nil, true, source.NoSpan)
	if !p.SupportsEquality(p.DeclType(opaque)) {
		t.Fatalf("(==) opaque types support equality")
	}
	if p.SupportsEquality(p.Types.Seq(p.DeclType(stream))) {
		t.Fatalf("equality of seq<Stream> follows its element")
	}
	if !p.SupportsEquality(p.Types.Set(p.Types.Builtins().Int, true)) {
		t.Fatalf("set<int> supports equality")
	}
}
