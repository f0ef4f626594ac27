// Package resolve drives name and type resolution over a linked program.
package resolve

import (
	"context"
	"fmt"
	"sync/atomic"

	"vera/internal/ast"
	"vera/internal/callgraph"
	"vera/internal/desugar"
	"vera/internal/diag"
	"vera/internal/eqsupport"
	"vera/internal/link"
	"vera/internal/observ"
	"vera/internal/source"
	"vera/internal/trace"
	"vera/internal/types"
)

// Options configure a resolution run.
type Options struct {
	// Jobs bounds the workers of the parallel phases; 0 means unbounded.
	Jobs int
	// EqualityPolicy answers equality questions about types not yet known.
	EqualityPolicy types.EqualityPolicy
	// MaxDiagnostics stops forwarding errors after this many; they are
	// still counted. 0 means no limit.
	MaxDiagnostics int
}

// Result summarizes a run. Diagnostics go to the reporter.
type Result struct {
	Order     []ast.ModuleID
	Equality  eqsupport.Stats
	Iterators int
	// Defaulted counts proxies bound by defaulting after bodies were resolved.
	Defaulted int
	Graphs    []*callgraph.Graph
	Errors    int
	// Duplicates counts repeated diagnostics dropped before the reporter.
	Duplicates int
	Timings    observ.Report
}

// Resolver runs the phases in order: link, declaration type names,
// equality support, iterator desugaring, bodies, proxy defaulting and
// call graphs.
type Resolver struct {
	prog  *ast.Program
	rep   diag.Reporter
	dedup *diag.DedupReporter
	opts  Options
	timer *observ.Timer

	errors atomic.Int64
	// сравнения ждут, пока прокси получат типы
	eqUses []eqUse
}

type eqUse struct {
	t    types.TypeID
	span source.Span
}

func New(prog *ast.Program, rep diag.Reporter, opts Options) *Resolver {
	if rep == nil {
		rep = diag.NopReporter{}
	}
	r := &Resolver{prog: prog, opts: opts, timer: observ.NewTimer()}
	r.dedup = diag.NewDedupReporter(&countingReporter{next: rep, errors: &r.errors, limit: int64(opts.MaxDiagnostics)})
	r.rep = r.dedup
	return r
}

// Run resolves the whole program. The returned error is reserved for
// cancellation and broken invariants; user errors are diagnostics.
func (r *Resolver) Run(ctx context.Context) (*Result, error) {
	tracer := trace.FromContext(ctx)
	root := trace.Begin(tracer, trace.ScopeDriver, "resolve", trace.CurrentSpan(ctx))
	defer root.End("")
	ctx = trace.WithSpan(ctx, root)

	r.prog.Types.Policy = r.opts.EqualityPolicy
	res := &Result{}

	phase := func(name string, fn func() (string, error)) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		idx := r.timer.Begin(name)
		span := trace.Begin(tracer, trace.ScopePass, name, root.ID())
		note, err := fn()
		span.End(note)
		r.timer.End(idx, note)
		return err
	}

	steps := []struct {
		name string
		fn   func() (string, error)
	}{
		{"link", func() (string, error) {
			res.Order = link.Link(r.prog, r.rep)
			return fmt.Sprintf("modules=%d", len(res.Order)), nil
		}},
		{"type_names", func() (string, error) {
			for _, m := range res.Order {
				r.resolveTypeNames(m)
			}
			return "", nil
		}},
		{"equality", func() (string, error) {
			stats, err := eqsupport.Resolve(ctx, r.prog, eqsupport.Options{Jobs: r.opts.Jobs})
			if err != nil {
				return "", err
			}
			res.Equality = stats
			for _, m := range res.Order {
				r.checkEqualityParams(m)
			}
			return fmt.Sprintf("datatypes=%d levels=%d", stats.Datatypes, stats.Levels), nil
		}},
		{"iterators", func() (string, error) {
			n, err := desugar.Iterators(r.prog, res.Order)
			res.Iterators = n
			return fmt.Sprintf("iterators=%d", n), err
		}},
		{"bodies", func() (string, error) {
			for _, m := range res.Order {
				if err := ctx.Err(); err != nil {
					return "", err
				}
				span := trace.Begin(tracer, trace.ScopeModule, "bodies", root.ID()).
					WithExtra("module", r.prog.ModuleName(m))
				if err := r.resolveBodies(m); err != nil {
					span.End("failed")
					return "", err
				}
				span.End("")
			}
			return "", nil
		}},
		{"defaults", func() (string, error) {
			res.Defaulted = r.defaultProxies()
			for _, u := range r.eqUses {
				eqsupport.RequireEquality(r.prog, r.rep, u.t, u.span)
			}
			r.eqUses = nil
			for _, m := range res.Order {
				if err := r.prog.Modules.Get(m).Advance(ast.PhaseBodiesResolved); err != nil {
					return "", err
				}
			}
			return fmt.Sprintf("defaulted=%d", res.Defaulted), nil
		}},
		{"callgraph", func() (string, error) {
			graphs, err := callgraph.BuildAll(ctx, r.prog, res.Order, r.opts.Jobs)
			res.Graphs = graphs
			return fmt.Sprintf("graphs=%d", len(graphs)), err
		}},
	}
	for _, s := range steps {
		if err := phase(s.name, s.fn); err != nil {
			res.Errors = int(r.errors.Load())
			res.Timings = r.timer.Report()
			return res, fmt.Errorf("resolve %s: %w", s.name, err)
		}
	}
	res.Errors = int(r.errors.Load())
	res.Duplicates = r.dedup.Suppressed()
	res.Timings = r.timer.Report()
	return res, nil
}

// Timer exposes phase timings, including those of a failed run.
func (r *Resolver) Timer() *observ.Timer { return r.timer }

func (r *Resolver) report(code diag.Code, span source.Span, format string, args ...any) {
	diag.Errorf(r.rep, code, span, format, args...)
}

type countingReporter struct {
	next   diag.Reporter
	errors *atomic.Int64
	limit  int64
}

func (c *countingReporter) Report(code diag.Code, sev diag.Severity, primary source.Span, msg string, notes []diag.Note) {
	if sev.Fails() {
		if n := c.errors.Add(1); c.limit > 0 && n > c.limit {
			return
		}
	}
	c.next.Report(code, sev, primary, msg, notes)
}
