// Package link connects modules: import aliases, refinement targets,
// dependency heights and the per-module signatures the resolver reads.
package link

import (
	"fmt"
	"strings"

	"vera/internal/ast"
	"vera/internal/diag"
	"vera/internal/source"
)

type aliasState uint8

const (
	aliasUnvisited aliasState = iota
	aliasVisiting
	aliasDone
	aliasFailed
)

// linker carries alias resolution state across the link passes of one program.
type linker struct {
	prog   *ast.Program
	rep    diag.Reporter
	states map[ast.ModuleID]aliasState
}

func newLinker(prog *ast.Program, rep diag.Reporter) *linker {
	if rep == nil {
		rep = diag.NopReporter{}
	}
	return &linker{prog: prog, rep: rep, states: make(map[ast.ModuleID]aliasState)}
}

func (l *linker) children(parent ast.ModuleID) []ast.ModuleID {
	if !parent.IsValid() {
		return l.prog.Roots
	}
	return l.prog.Modules.Get(parent).Children
}

func (l *linker) childNamed(parent ast.ModuleID, name source.StringID, skip ast.ModuleID) (ast.ModuleID, bool) {
	for _, c := range l.children(parent) {
		if c != skip && l.prog.Modules.Get(c).Name == name {
			return c, true
		}
	}
	return ast.NoModuleID, false
}

// lookup resolves a dotted path as seen from scope. The first segment is
// searched in scope and then outwards; later segments name nested modules.
// The returned module may be an alias; failed is the index of the first
// segment that could not be found, or -1.
func (l *linker) lookup(scope ast.ModuleID, path []source.StringID, skip ast.ModuleID) (id ast.ModuleID, failed int) {
	if len(path) == 0 {
		return ast.NoModuleID, 0
	}
	cur := scope
	for {
		if found, ok := l.childNamed(cur, path[0], skip); ok {
			id = found
			break
		}
		if !cur.IsValid() {
			return ast.NoModuleID, 0
		}
		cur = l.prog.Modules.Get(cur).Parent
	}
	for i, seg := range path[1:] {
		target, ok := l.follow(id)
		if !ok {
			return ast.NoModuleID, i
		}
		next, ok := l.childNamed(target, seg, ast.NoModuleID)
		if !ok {
			return ast.NoModuleID, i + 1
		}
		id = next
	}
	return id, -1
}

// follow returns the literal module behind id, resolving aliases on demand.
func (l *linker) follow(id ast.ModuleID) (ast.ModuleID, bool) {
	m := l.prog.Modules.Get(id)
	if m.Kind == ast.ModuleLiteral {
		return id, true
	}
	if target, ok := m.AliasTarget.Lookup(); ok {
		return target, true
	}
	return l.resolveAlias(id)
}

func (l *linker) resolveAlias(id ast.ModuleID) (ast.ModuleID, bool) {
	m := l.prog.Modules.Get(id)
	switch l.states[id] {
	case aliasDone:
		return m.AliasTarget.Get(), true
	case aliasFailed:
		return ast.NoModuleID, false
	case aliasVisiting:
		l.states[id] = aliasFailed
		diag.ReportError(l.rep, diag.LnkCyclicAlias, m.Span,
			fmt.Sprintf("import %s refers to itself through a chain of imports", l.prog.Name(m.Name))).Emit()
		return ast.NoModuleID, false
	}
	l.states[id] = aliasVisiting
	found, failed := l.lookup(m.Parent, m.Path, id)
	if l.states[id] == aliasFailed {
		return ast.NoModuleID, false
	}
	if failed >= 0 {
		l.states[id] = aliasFailed
		diag.ReportError(l.rep, diag.LnkUnresolvedModule, m.Span,
			fmt.Sprintf("module %s not found", l.pathString(m.Path[:failed+1]))).Emit()
		return ast.NoModuleID, false
	}
	target, ok := l.follow(found)
	if !ok {
		l.states[id] = aliasFailed
		return ast.NoModuleID, false
	}
	l.states[id] = aliasDone
	m.AliasTarget.MustSet(target)
	return target, true
}

func (l *linker) pathString(path []source.StringID) string {
	parts := make([]string, len(path))
	for i, seg := range path {
		parts[i] = l.prog.Name(seg)
	}
	return strings.Join(parts, ".")
}

// LookupModule resolves a dotted module path as seen from module from and
// returns the literal module it denotes. Aliases met on the way must
// already be resolved or resolvable; no diagnostics are reported.
func LookupModule(prog *ast.Program, from ast.ModuleID, path []source.StringID) (ast.ModuleID, bool) {
	l := newLinker(prog, diag.NopReporter{})
	id, failed := l.lookup(from, path, ast.NoModuleID)
	if failed >= 0 {
		return ast.NoModuleID, false
	}
	return l.follow(id)
}

// SignatureOf returns the signature visible through module id, following
// aliases. compiled selects the compile signature.
func SignatureOf(prog *ast.Program, id ast.ModuleID, compiled bool) (*ast.Signature, bool) {
	m := prog.Modules.Get(id)
	if m == nil {
		return nil, false
	}
	if m.Kind != ast.ModuleLiteral {
		target, ok := m.AliasTarget.Lookup()
		if !ok {
			return nil, false
		}
		m = prog.Modules.Get(target)
	}
	if compiled {
		return m.CompileSig.Lookup()
	}
	return m.Signature.Lookup()
}
