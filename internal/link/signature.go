package link

import (
	"fmt"

	"vera/internal/ast"
	"vera/internal/diag"
	"vera/internal/source"
	"vera/internal/types"
)

// BuildSignatures builds the specification and compile signatures of every
// linked module in compile order, links refining declarations and members
// to the ones they refine, and advances each module to signature-resolved.
func BuildSignatures(prog *ast.Program, rep diag.Reporter) {
	if rep == nil {
		rep = diag.NopReporter{}
	}
	b := sigBuilder{prog: prog, rep: rep}
	for _, id := range CompileOrder(prog) {
		m := prog.Modules.Get(id)
		if m.Signature.IsSet() {
			continue
		}
		spec, compiled := b.build(id)
		m.Signature.MustSet(spec)
		m.CompileSig.MustSet(compiled)
		_ = m.Advance(ast.PhaseSignatureResolved)
	}
}

type sigBuilder struct {
	prog *ast.Program
	rep  diag.Reporter
}

func (b *sigBuilder) build(id ast.ModuleID) (spec, compiled *ast.Signature) {
	p := b.prog
	m := p.Modules.Get(id)
	spec = ast.NewSignature(id, true)
	compiled = ast.NewSignature(id, false)

	var refined *ast.Module
	if r, ok := m.RefinesTarget.Lookup(); ok {
		refined = p.Modules.Get(r)
		spec.Refines, _ = refined.Signature.Lookup()
		compiled.Refines, _ = refined.CompileSig.Lookup()
	}

	for _, c := range m.Children {
		child := p.Modules.Get(c)
		target := c
		if child.Kind != ast.ModuleLiteral {
			t, ok := child.AliasTarget.Lookup()
			if !ok {
				continue
			}
			target = t
		}
		spec.Modules[child.Name] = target
		compiled.Modules[child.Name] = target
	}

	seen := make(map[source.StringID]ast.DeclID)
	for _, d := range m.Decls {
		if p.IsDefaultClass(d) {
			continue
		}
		decl := p.Decls.Get(d)
		if prev, dup := seen[decl.Name]; dup {
			diag.ReportError(b.rep, diag.ResDuplicateDecl, decl.Span,
				fmt.Sprintf("duplicate declaration of %s in module %s", p.Name(decl.Name), p.ModuleName(id))).
				WithNote(p.Decls.Get(prev).Span, "previous declaration").Emit()
			continue
		}
		seen[decl.Name] = d
		spec.TopLevels[decl.Name] = d
		if !m.SpecOnly {
			compiled.TopLevels[decl.Name] = d
		}
		for _, c := range p.CtorsOf(d) {
			name := p.Ctors.Get(uint32(c)).Name
			spec.AddCtor(name, c)
			if !m.SpecOnly {
				compiled.AddCtor(name, c)
			}
		}
		b.checkMembers(d)
		if refined != nil && spec.Refines != nil {
			if base, ok := spec.Refines.LookupTopLevel(decl.Name); ok {
				b.refineDecl(d, base)
			}
		}
	}

	if cls, ok := m.DefaultClass.Lookup(); ok {
		b.checkMembers(cls)
		var baseClass ast.DeclID
		if refined != nil {
			baseClass, _ = refined.DefaultClass.Lookup()
		}
		for _, mem := range p.Decls.Get(cls).Members {
			member := p.Members.Get(mem)
			if _, dup := spec.StaticMembers[member.Name]; dup {
				continue
			}
			spec.StaticMembers[member.Name] = mem
			if !member.IsGhost && !m.SpecOnly {
				compiled.StaticMembers[member.Name] = mem
			}
			if baseClass.IsValid() {
				if base, ok := p.MemberNamed(baseClass, member.Name); ok {
					b.refineMember(mem, base)
				}
			}
		}
	}

	b.addOpened(m, spec, false)
	b.addOpened(m, compiled, true)
	return spec, compiled
}

// addOpened makes the names of opened imports visible without overriding
// local ones. Constructors merge, so clashes become ambiguous.
func (b *sigBuilder) addOpened(m *ast.Module, sig *ast.Signature, compiled bool) {
	for _, o := range m.Opened {
		other, ok := SignatureOf(b.prog, o, compiled)
		if !ok {
			continue
		}
		for name, d := range other.TopLevels {
			if _, exists := sig.TopLevels[name]; !exists {
				sig.TopLevels[name] = d
			}
		}
		for name, mem := range other.StaticMembers {
			if _, exists := sig.StaticMembers[name]; !exists {
				sig.StaticMembers[name] = mem
			}
		}
		for name, e := range other.Ctors {
			for _, c := range e.Candidates {
				sig.AddCtor(name, c)
			}
		}
	}
}

func (b *sigBuilder) checkMembers(d ast.DeclID) {
	p := b.prog
	seen := make(map[source.StringID]ast.MemberID)
	for _, mem := range p.Decls.Get(d).Members {
		member := p.Members.Get(mem)
		if prev, dup := seen[member.Name]; dup {
			diag.ReportError(b.rep, diag.ResDuplicateMember, member.Span,
				fmt.Sprintf("duplicate member %s in %s", p.Name(member.Name), p.FullName(d, ast.NoModuleID))).
				WithNote(p.Members.Get(prev).Span, "previous declaration").Emit()
			continue
		}
		seen[member.Name] = mem
	}
}

func (b *sigBuilder) refineDecl(d, base ast.DeclID) {
	p := b.prog
	decl, baseDecl := p.Decls.Get(d), p.Decls.Get(base)
	if decl.Kind != baseDecl.Kind && !(baseDecl.Kind == types.DeclOpaque && decl.Kind != types.DeclIterator) {
		diag.ReportError(b.rep, diag.LnkRefineKindMismatch, decl.Span,
			fmt.Sprintf("%s is declared as %s in the refined module", p.Name(decl.Name), kindName(baseDecl.Kind))).
			WithNote(baseDecl.Span, "refined declaration").Emit()
		return
	}
	if err := decl.Refines.Set(base); err != nil {
		return
	}
	if decl.Kind != types.DeclClass {
		return
	}
	for _, mem := range decl.Members {
		if baseMem, ok := p.MemberNamed(base, p.Members.Get(mem).Name); ok {
			b.refineMember(mem, baseMem)
		}
	}
}

func (b *sigBuilder) refineMember(mem, base ast.MemberID) {
	p := b.prog
	member, baseMember := p.Members.Get(mem), p.Members.Get(base)
	name := p.Name(member.Name)
	switch {
	case member.Kind != baseMember.Kind:
		diag.ReportError(b.rep, diag.LnkRefineKindMismatch, member.Span,
			fmt.Sprintf("%s is a %s in the refined module", name, baseMember.Kind)).
			WithNote(baseMember.Span, "refined member").Emit()
		return
	case member.IsGhost && !baseMember.IsGhost:
		diag.ReportError(b.rep, diag.LnkRefinementNotAllowed, member.Span,
			fmt.Sprintf("compiled %s %s cannot become ghost in a refinement", baseMember.Kind, name)).
			WithNote(baseMember.Span, "refined member").Emit()
		return
	case p.HasBody(mem) && p.HasBody(base):
		diag.ReportError(b.rep, diag.LnkRefineBodyConflict, member.Span,
			fmt.Sprintf("refinement of %s cannot replace an existing body", name)).
			WithNote(baseMember.Span, "body given here").Emit()
		return
	}
	_ = member.Refines.Set(base)
}

func kindName(k types.DeclKind) string {
	switch k {
	case types.DeclClass:
		return "a class"
	case types.DeclArray:
		return "an array"
	case types.DeclDatatype:
		return "a datatype"
	case types.DeclCodatatype:
		return "a codatatype"
	case types.DeclIterator:
		return "an iterator"
	case types.DeclOpaque:
		return "an opaque type"
	}
	return "an unknown declaration"
}
