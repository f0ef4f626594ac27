// Package callgraph records which members each function and method body calls.
package callgraph

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"vera/internal/ast"
	"vera/internal/dag"
)

// ErrNotResolved is returned for modules whose bodies are not resolved yet.
var ErrNotResolved = errors.New("callgraph: module bodies are not resolved")

// Graph is the call graph of one module. Nodes are the module's functions
// and methods; callees outside the module are kept in External.
type Graph struct {
	Module ast.ModuleID
	Nodes  []ast.MemberID
	// Calls[i] are indices into Nodes, sorted and unique.
	Calls [][]int
	// External[i] are callees declared in other modules.
	External [][]ast.MemberID

	index map[ast.MemberID]int
}

// Build walks every body and contract of the module's members.
func Build(prog *ast.Program, module ast.ModuleID) (*Graph, error) {
	m := prog.Modules.Get(module)
	if m == nil {
		return nil, fmt.Errorf("callgraph: unknown module %d", module)
	}
	if !m.AtLeast(ast.PhaseBodiesResolved) {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotResolved, prog.ModuleName(module), m.Phase())
	}

	g := &Graph{Module: module, index: make(map[ast.MemberID]int)}
	for _, d := range m.Decls {
		for _, mem := range prog.Decls.Get(d).Members {
			if prog.Members.Get(mem).Kind == ast.MemberField {
				continue
			}
			g.index[mem] = len(g.Nodes)
			g.Nodes = append(g.Nodes, mem)
		}
	}
	g.Calls = make([][]int, len(g.Nodes))
	g.External = make([][]ast.MemberID, len(g.Nodes))

	for i, mem := range g.Nodes {
		for callee := range callees(prog, mem) {
			if j, ok := g.index[callee]; ok {
				g.Calls[i] = append(g.Calls[i], j)
			} else {
				g.External[i] = append(g.External[i], callee)
			}
		}
		slices.Sort(g.Calls[i])
		g.Calls[i] = slices.Compact(g.Calls[i])
		slices.Sort(g.External[i])
		g.External[i] = slices.Compact(g.External[i])
	}
	return g, nil
}

// BuildAll builds graphs for several modules concurrently. Building only
// reads the program.
func BuildAll(ctx context.Context, prog *ast.Program, modules []ast.ModuleID, jobs int) ([]*Graph, error) {
	out := make([]*Graph, len(modules))
	g, gctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, m := range modules {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cg, err := Build(prog, m)
			if err != nil {
				return err
			}
			out[i] = cg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Callees returns the in-module callees of mem.
func (g *Graph) Callees(mem ast.MemberID) []ast.MemberID {
	i, ok := g.index[mem]
	if !ok {
		return nil
	}
	out := make([]ast.MemberID, len(g.Calls[i]))
	for k, j := range g.Calls[i] {
		out[k] = g.Nodes[j]
	}
	return out
}

// Edges counts in-module and external call edges.
func (g *Graph) Edges() (local, external int) {
	for i := range g.Nodes {
		local += len(g.Calls[i])
		external += len(g.External[i])
	}
	return local, external
}

// SCCs returns the recursion clusters, callees before callers.
func (g *Graph) SCCs() [][]ast.MemberID {
	comps := dag.SCC(len(g.Nodes), func(i int) []int { return g.Calls[i] })
	out := make([][]ast.MemberID, len(comps))
	for i, c := range comps {
		out[i] = make([]ast.MemberID, len(c))
		for k, j := range c {
			out[i][k] = g.Nodes[j]
		}
	}
	return out
}

// IsRecursive reports whether mem calls itself directly or through its cluster.
func (g *Graph) IsRecursive(mem ast.MemberID) bool {
	i, ok := g.index[mem]
	if !ok {
		return false
	}
	if slices.Contains(g.Calls[i], i) {
		return true
	}
	for _, c := range g.SCCs() {
		if len(c) > 1 && slices.Contains(c, mem) {
			return true
		}
	}
	return false
}
