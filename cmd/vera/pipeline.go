package main

import (
	"context"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"vera/internal/ast"
	"vera/internal/callgraph"
	"vera/internal/diag"
	"vera/internal/manifest"
	"vera/internal/resolve"
	"vera/internal/source"
	"vera/internal/types"
)

// session is one loaded and resolved manifest.
type session struct {
	path    string
	fs      *source.FileSet
	prog    *ast.Program
	bag     *diag.Bag
	modules map[string]ast.ModuleID
	res     *resolve.Result
}

func resolveOptions(cmd *cobra.Command) (resolve.Options, error) {
	flags := cmd.Root().PersistentFlags()
	jobs, err := flags.GetInt("jobs")
	if err != nil {
		return resolve.Options{}, fmt.Errorf("failed to get jobs flag: %w", err)
	}
	maxDiagnostics, err := flags.GetInt("max-diagnostics")
	if err != nil {
		return resolve.Options{}, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	policyStr, err := flags.GetString("equality-policy")
	if err != nil {
		return resolve.Options{}, fmt.Errorf("failed to get equality-policy flag: %w", err)
	}
	policy, err := types.ParseEqualityPolicy(policyStr)
	if err != nil {
		return resolve.Options{}, err
	}
	if jobs < 0 {
		return resolve.Options{}, fmt.Errorf("--jobs must not be negative, got %d", jobs)
	}
	return resolve.Options{Jobs: jobs, EqualityPolicy: policy, MaxDiagnostics: maxDiagnostics}, nil
}

// load builds the program described by the manifest at path and resolves it.
// Diagnostics land in the session bag; the error is for anything that
// stops resolution from running to the end.
func load(cmd *cobra.Command, path string) (*session, error) {
	opts, err := resolveOptions(cmd)
	if err != nil {
		return nil, err
	}
	timeout, err := cmd.Root().PersistentFlags().GetDuration("timeout")
	if err != nil {
		return nil, fmt.Errorf("failed to get timeout flag: %w", err)
	}

	m, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	s := &session{path: path, fs: source.NewFileSet(), prog: ast.NewProgram()}
	file := s.fs.Add(path, m.Source, 0)
	s.modules, err = m.Build(s.prog, file)
	if err != nil {
		return nil, err
	}

	capacity := opts.MaxDiagnostics
	if capacity <= 0 {
		capacity = math.MaxInt32
	}
	s.bag = diag.NewBag(capacity)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	s.res, err = resolve.New(s.prog, diag.BagReporter{Bag: s.bag}, opts).Run(ctx)
	if err != nil {
		return s, err
	}
	return s, nil
}

// graphOf returns the call graph of module, if one was built.
func (s *session) graphOf(module ast.ModuleID) (*callgraph.Graph, bool) {
	if s.res == nil {
		return nil, false
	}
	for _, g := range s.res.Graphs {
		if g != nil && g.Module == module {
			return g, true
		}
	}
	return nil, false
}

func (s *session) isRecursive(mem ast.MemberID) bool {
	m := s.prog.Members.Get(mem)
	if m == nil {
		return false
	}
	d := s.prog.Decls.Get(m.Decl)
	if d == nil {
		return false
	}
	g, ok := s.graphOf(d.Module)
	return ok && g.IsRecursive(mem)
}
