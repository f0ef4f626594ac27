package link

import (
	"cmp"
	"slices"

	"vera/internal/ast"
	"vera/internal/dag"
	"vera/internal/diag"
)

// ComputeHeights assigns every literal module a height: 0 for modules
// with no dependencies, otherwise one more than the highest module it
// nests, imports or refines. Modules on a dependency cycle are reported
// and get no height.
func ComputeHeights(prog *ast.Program, rep diag.Reporter) {
	mods := prog.LiteralModules()
	metas := make([]dag.Meta, 0, len(mods))
	nodes := make([]dag.Node, 0, len(mods))
	byPath := make(map[string]ast.ModuleID, len(mods))
	for _, id := range mods {
		meta := moduleMeta(prog, id)
		metas = append(metas, meta)
		nodes = append(nodes, dag.Node{Meta: meta, Reporter: rep})
		if _, dup := byPath[meta.Path]; !dup {
			byPath[meta.Path] = id
		}
	}

	idx := dag.BuildIndex(metas)
	g, slots := dag.BuildGraph(idx, nodes)
	topo := dag.ToposortKahn(g)
	dag.ReportCycles(idx, slots, *topo)
	heights := dag.Heights(g, topo)

	for path, id := range byPath {
		h := heights[idx.NameToID[path]]
		if h < 0 {
			continue
		}
		m := prog.Modules.Get(id)
		if !m.Height.IsSet() {
			m.Height.MustSet(h)
		}
		_ = m.Advance(ast.PhaseLinked)
	}
}

func moduleMeta(prog *ast.Program, id ast.ModuleID) dag.Meta {
	m := prog.Modules.Get(id)
	meta := dag.Meta{Path: prog.ModuleName(id), Span: m.Span}
	for _, c := range m.Children {
		child := prog.Modules.Get(c)
		target := c
		if child.Kind != ast.ModuleLiteral {
			t, ok := child.AliasTarget.Lookup()
			if !ok {
				continue
			}
			target = t
		}
		meta.Deps = append(meta.Deps, dag.Dep{Path: prog.ModuleName(target), Span: child.Span})
	}
	if r, ok := m.RefinesTarget.Lookup(); ok {
		meta.Deps = append(meta.Deps, dag.Dep{Path: prog.ModuleName(r), Span: m.Span, Refines: true})
	}
	return meta
}

// CompileOrder lists linked modules by increasing height, then by name.
func CompileOrder(prog *ast.Program) []ast.ModuleID {
	var out []ast.ModuleID
	for _, id := range prog.LiteralModules() {
		if prog.Modules.Get(id).Height.IsSet() {
			out = append(out, id)
		}
	}
	slices.SortStableFunc(out, func(a, b ast.ModuleID) int {
		ha, hb := prog.Modules.Get(a).Height.Get(), prog.Modules.Get(b).Height.Get()
		if c := cmp.Compare(ha, hb); c != 0 {
			return c
		}
		return cmp.Compare(prog.ModuleName(a), prog.ModuleName(b))
	})
	return out
}
