// Package eqsupport classifies datatypes by whether their values support
// structural equality, and checks (==) requirements on type arguments.
package eqsupport

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"vera/internal/ast"
	"vera/internal/dag"
	"vera/internal/types"
)

// Options tunes the fixpoint run.
type Options struct {
	// Jobs bounds the number of components solved at once; <= 0 means unbounded.
	Jobs int
}

// Stats describes one run.
type Stats struct {
	Datatypes  int
	Components int
	Levels     int
	Iterations int
}

// Resolve computes the equality classification of every inductive and
// co-inductive datatype in the program. Datatypes are grouped into
// strongly connected components; components of one level only depend on
// lower levels and are solved in parallel. Re-running is idempotent: a
// result that disagrees with an already recorded one is an error.
func Resolve(ctx context.Context, prog *ast.Program, opts Options) (Stats, error) {
	s := newSolver(prog)
	comps := dag.SCC(len(s.decls), s.succ)
	levels := dag.Levels(comps, s.succ, len(s.decls))
	stats := Stats{Datatypes: len(s.decls), Components: len(comps), Levels: len(levels)}

	iterations := make([]int, len(comps))
	for _, level := range levels {
		g, gctx := errgroup.WithContext(ctx)
		if opts.Jobs > 0 {
			g.SetLimit(opts.Jobs)
		}
		for _, ci := range level {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				n, err := s.solve(comps[ci])
				iterations[ci] = n
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return stats, err
		}
	}
	for _, n := range iterations {
		stats.Iterations += n
	}
	return stats, nil
}

// solver holds the read-only view of the datatype graph. Components only
// write the equality cells of their own datatypes.
type solver struct {
	prog  *ast.Program
	decls []ast.DeclID
	index map[ast.DeclID]int
	// fields[i] are the normalized constructor field types of decls[i].
	fields [][]types.TypeID
	edges  [][]int
}

func newSolver(prog *ast.Program) *solver {
	s := &solver{prog: prog, index: make(map[ast.DeclID]int)}
	for i := uint32(1); i <= prog.Decls.Arena.Len(); i++ {
		id := ast.DeclID(i)
		if _, ok := prog.Decls.Datatype(id); ok {
			s.index[id] = len(s.decls)
			s.decls = append(s.decls, id)
		}
	}
	s.fields = make([][]types.TypeID, len(s.decls))
	s.edges = make([][]int, len(s.decls))
	for i, d := range s.decls {
		for _, c := range prog.CtorsOf(d) {
			for _, f := range prog.Ctors.Get(uint32(c)).Formals {
				s.fields[i] = append(s.fields[i], prog.Var(f).Type)
			}
		}
		seen := make(map[int]struct{})
		for _, ft := range s.fields[i] {
			s.mentions(ft, func(j int) {
				if _, dup := seen[j]; !dup {
					seen[j] = struct{}{}
					s.edges[i] = append(s.edges[i], j)
				}
			})
		}
		slices.Sort(s.edges[i])
	}
	return s
}

func (s *solver) succ(i int) []int { return s.edges[i] }

// mentions calls fn for every datatype referenced anywhere inside t.
func (s *solver) mentions(t types.TypeID, fn func(int)) {
	tab := s.prog.Types
	t = tab.Normalize(t)
	ty, ok := tab.Lookup(t)
	if !ok {
		return
	}
	switch ty.Kind {
	case types.KindSet, types.KindMultiset, types.KindSeq:
		s.mentions(ty.Elem, fn)
	case types.KindMap:
		s.mentions(ty.Elem, fn)
		s.mentions(ty.Value, fn)
	case types.KindUser:
		u, _ := tab.User(t)
		if decl, _, ok := u.Decl(); ok {
			if j, ok := s.index[ast.DeclID(decl)]; ok {
				fn(j)
			}
		}
		for _, a := range u.Args {
			s.mentions(a, fn)
		}
	}
}

// assumption is the current guess for one datatype of the component.
type assumption struct {
	never       bool
	contributes []bool
}

// solve runs the fixpoint for one component. It starts from every type
// parameter that occurs in a constructor field and only ever removes
// parameters, so it terminates after at most one round per parameter.
func (s *solver) solve(comp []int) (int, error) {
	p := s.prog
	current := make(map[int]*assumption, len(comp))
	for _, i := range comp {
		d := p.Decls.Get(s.decls[i])
		a := &assumption{contributes: make([]bool, len(d.TypeParams))}
		if d.Kind == types.DeclCodatatype {
			a.never = true
		}
		for _, ft := range s.fields[i] {
			for _, pos := range s.paramsIn(d, ft) {
				a.contributes[pos] = true
			}
		}
		current[i] = a
	}

	rounds := 0
	for changed := true; changed; {
		changed = false
		rounds++
		for _, i := range comp {
			a := current[i]
			if a.never {
				continue
			}
			d := p.Decls.Get(s.decls[i])
			next := make([]bool, len(a.contributes))
			never := false
			for _, ft := range s.fields[i] {
				if !s.depends(d, ft, current, next) {
					never = true
					break
				}
			}
			if never {
				a.never, changed = true, true
				continue
			}
			for pos := range next {
				// сужаем только вниз, чтобы гарантировать завершение
				next[pos] = next[pos] && a.contributes[pos]
				if next[pos] != a.contributes[pos] {
					changed = true
				}
			}
			a.contributes = next
		}
	}

	for _, i := range comp {
		if err := s.record(s.decls[i], current[i]); err != nil {
			return rounds, err
		}
	}
	return rounds, nil
}

// depends adds to deps the parameter positions of d whose equality the
// field type t relies on. It returns false if t can never support equality.
func (s *solver) depends(d *ast.Decl, t types.TypeID, current map[int]*assumption, deps []bool) bool {
	p := s.prog
	tab := p.Types
	t = tab.Normalize(t)
	ty, ok := tab.Lookup(t)
	if !ok {
		return false
	}
	switch ty.Kind {
	case types.KindSet, types.KindMultiset, types.KindSeq:
		return s.depends(d, ty.Elem, current, deps)
	case types.KindMap:
		return s.depends(d, ty.Elem, current, deps) && s.depends(d, ty.Value, current, deps)
	case types.KindProxy:
		return tab.Policy == types.EqualityOptimistic
	case types.KindUser:
	default:
		return true
	}

	u, _ := tab.User(t)
	if param, ok := u.Param(); ok {
		if pos := slices.Index(d.TypeParams, ast.TypeParamID(param)); pos >= 0 {
			deps[pos] = true
			return true
		}
		return p.ParamEquality(param)
	}
	decl, kind, ok := u.Decl()
	if !ok {
		return tab.Policy == types.EqualityOptimistic
	}
	switch kind {
	case types.DeclCodatatype:
		return false
	case types.DeclOpaque:
		return p.OpaqueEquality(decl)
	case types.DeclDatatype:
	default:
		return true
	}

	var contributes []bool
	if j, same := s.index[ast.DeclID(decl)]; same && current[j] != nil {
		a := current[j]
		if a.never {
			return false
		}
		contributes = a.contributes
	} else {
		class, c := p.DatatypeEquality(decl)
		switch class {
		case types.EqualityAlways:
			return true
		case types.EqualityNever:
			return false
		case types.EqualityUnknown:
			return tab.Policy == types.EqualityOptimistic
		}
		contributes = c
	}
	for pos, c := range contributes {
		if c && pos < len(u.Args) && !s.depends(d, u.Args[pos], current, deps) {
			return false
		}
	}
	return true
}

// paramsIn lists the positions of d's type parameters occurring in t.
func (s *solver) paramsIn(d *ast.Decl, t types.TypeID) []int {
	var out []int
	var walk func(types.TypeID)
	tab := s.prog.Types
	walk = func(t types.TypeID) {
		t = tab.Normalize(t)
		ty, ok := tab.Lookup(t)
		if !ok {
			return
		}
		switch ty.Kind {
		case types.KindSet, types.KindMultiset, types.KindSeq:
			walk(ty.Elem)
		case types.KindMap:
			walk(ty.Elem)
			walk(ty.Value)
		case types.KindUser:
			u, _ := tab.User(t)
			if param, ok := u.Param(); ok {
				if pos := slices.Index(d.TypeParams, ast.TypeParamID(param)); pos >= 0 {
					out = append(out, pos)
				}
				return
			}
			for _, a := range u.Args {
				walk(a)
			}
		}
	}
	walk(t)
	return out
}

func (s *solver) record(id ast.DeclID, a *assumption) error {
	info := ast.EqualityInfo{Class: types.EqualityAlways}
	switch {
	case a.never:
		info.Class = types.EqualityNever
	case slices.Contains(a.contributes, true):
		info.Class = types.EqualityConditional
		info.Contributes = a.contributes
	}
	dt, _ := s.prog.Decls.Datatype(id)
	if prev, ok := dt.Equality.Lookup(); ok {
		if prev.Class != info.Class || !slices.Equal(prev.Contributes, info.Contributes) {
			return fmt.Errorf("equality support of %s changed from %s to %s",
				s.prog.FullName(id, ast.NoModuleID), prev.Class, info.Class)
		}
		return nil
	}
	if err := dt.Equality.Set(info); err != nil {
		return fmt.Errorf("equality support of %s: %w", s.prog.FullName(id, ast.NoModuleID), err)
	}
	return nil
}
