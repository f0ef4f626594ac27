package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vera/internal/ast"
	"vera/internal/diag"
)

var graphCmd = &cobra.Command{
	Use:   "graph <manifest>",
	Short: "Show module heights, import targets and call graphs",
	Args:  cobra.ExactArgs(1),
	RunE:  runGraph,
}

func runGraph(cmd *cobra.Command, args []string) error {
	s, err := load(cmd, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if s.bag.HasErrors() {
		s.bag.Sort()
		fmt.Fprintln(cmd.ErrOrStderr(), diag.FormatShort(s.bag.Items(), s.fs, false))
	}
	printModules(out, s)
	for _, id := range s.res.Order {
		if id == s.prog.SystemModule() {
			continue
		}
		printCalls(out, s, id)
	}
	return nil
}

func printModules(out io.Writer, s *session) {
	fmt.Fprintln(out, header("modules"))
	rows := [][]string{{"  name", "height", "phase", "imports"}}
	for _, id := range s.res.Order {
		if id == s.prog.SystemModule() {
			continue
		}
		m := s.prog.Modules.Get(id)
		height := "-"
		if h, ok := m.Height.Lookup(); ok {
			height = strconv.Itoa(h)
		}
		rows = append(rows, []string{"  " + s.prog.ModuleName(id), height, m.Phase().String(), importsOf(s.prog, m)})
	}
	table(out, rows)
}

// importsOf lists alias children as name=target; "?" marks an unresolved one.
func importsOf(p *ast.Program, m *ast.Module) string {
	var parts []string
	for _, c := range m.Children {
		child := p.Modules.Get(c)
		if child.Kind == ast.ModuleLiteral {
			continue
		}
		target := "?"
		if t, ok := child.AliasTarget.Lookup(); ok {
			target = p.ModuleName(t)
		}
		parts = append(parts, p.Name(child.Name)+"="+target)
	}
	if len(parts) == 0 {
		return dim("-")
	}
	return strings.Join(parts, ", ")
}

func printCalls(out io.Writer, s *session, module ast.ModuleID) {
	g, ok := s.graphOf(module)
	if !ok {
		return
	}
	local, external := g.Edges()
	fmt.Fprintf(out, "%s %s\n", header("calls in "+s.prog.ModuleName(module)),
		dim(fmt.Sprintf("(%d local, %d external)", local, external)))
	rows := make([][]string, 0, len(g.Nodes))
	for i, caller := range g.Nodes {
		var callees []string
		for _, c := range g.Callees(caller) {
			callees = append(callees, memberLabel(s.prog, c, module))
		}
		for _, c := range g.External[i] {
			callees = append(callees, memberLabel(s.prog, c, module))
		}
		if len(callees) == 0 {
			continue
		}
		rows = append(rows, []string{"  " + memberLabel(s.prog, caller, module), "->", strings.Join(callees, ", ")})
	}
	table(out, rows)
	for _, c := range g.SCCs() {
		if len(c) == 1 && !g.IsRecursive(c[0]) {
			continue
		}
		names := make([]string, len(c))
		for i, mem := range c {
			names[i] = memberLabel(s.prog, mem, module)
		}
		fmt.Fprintf(out, "  recursive: {%s}\n", strings.Join(names, ", "))
	}
}

// memberLabel names a member relative to module; module-level members drop the class.
func memberLabel(p *ast.Program, id ast.MemberID, module ast.ModuleID) string {
	m := p.Members.Get(id)
	if p.IsDefaultClass(m.Decl) {
		d := p.Decls.Get(m.Decl)
		if d.Module == module {
			return p.Name(m.Name)
		}
		return p.ModuleName(d.Module) + "." + p.Name(m.Name)
	}
	return p.FullName(m.Decl, module) + "." + p.Name(m.Name)
}
