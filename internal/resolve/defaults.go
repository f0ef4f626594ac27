package resolve

import (
	"vera/internal/diag"
	"vera/internal/source"
	"vera/internal/types"
)

// defaultProxies binds the proxies left open by body resolution.
// Numeric proxies become int and reference proxies become object;
// collections take their element role. Free proxies are reported as
// underspecified and bound to the error type. It returns the number of
// proxies defaulted without error.
func (r *Resolver) defaultProxies() int {
	tab := r.prog.Types
	defaulted := 0
	for progress := true; progress; {
		progress = false
		for _, id := range tab.UnboundProxies() {
			if tab.Normalize(id) != id {
				continue
			}
			info, _ := tab.Proxy(id)
			target, ok := r.defaultFor(info)
			if !ok {
				// роли ещё не известны; ждём следующего прохода
				continue
			}
			progress = true
			if target == types.NoTypeID {
				r.bindError(id, info)
				continue
			}
			if err := tab.Unify(id, target); err != nil {
				r.report(diag.ResUnderspecifiedType, info.Span, "cannot default %s to %s: %v", info.Kind, tab.Format(target), err)
				if tab.Normalize(id) == id {
					r.bindError(id, info)
				}
				continue
			}
			defaulted++
		}
		if !progress {
			// остались только прокси с неизвестными ролями
			for _, id := range tab.UnboundProxies() {
				if tab.Normalize(id) == id {
					info, _ := tab.Proxy(id)
					r.bindError(id, info)
				}
			}
		}
	}
	return defaulted
}

// defaultFor picks the type a proxy defaults to. NoTypeID with ok means the
// proxy cannot be defaulted; !ok means its element roles are still open.
func (r *Resolver) defaultFor(info *types.ProxyInfo) (types.TypeID, bool) {
	tab := r.prog.Types
	b := tab.Builtins()
	if info.Shapes == types.ShapeAll {
		return types.NoTypeID, true
	}
	switch {
	case info.Shapes.Has(types.ShapeInt):
		return b.Int, true
	case info.Shapes.Has(types.ShapeObject):
		return b.Object, true
	case info.Shapes.Has(types.ShapeSeq) && info.Index != types.NoTypeID && info.Result != types.NoTypeID:
		if open(tab, info.Result) {
			return types.NoTypeID, false
		}
		return tab.Seq(info.Result), true
	case info.Shapes.Has(types.ShapeSet) && info.Member != types.NoTypeID:
		if open(tab, info.Member) {
			return types.NoTypeID, false
		}
		return tab.Set(info.Member, true), true
	}
	return types.NoTypeID, true
}

func open(tab *types.Table, t types.TypeID) bool {
	return tab.Kind(tab.Normalize(t)) == types.KindProxy
}

func (r *Resolver) bindError(id types.TypeID, info *types.ProxyInfo) {
	tab := r.prog.Types
	r.report(diag.ResUnderspecifiedType, info.Span, "underspecified type: cannot infer a %s type here", info.Kind)
	if err := tab.Bind(id, tab.Builtins().Error); err != nil {
		r.report(diag.ResUnderspecifiedType, info.Span, "%v", err)
	}
}

// requireEquality queues an equality check on t; the check runs once
// proxy defaulting has bound whatever t still refers to.
func (r *Resolver) requireEquality(t types.TypeID, span source.Span) {
	r.eqUses = append(r.eqUses, eqUse{t: t, span: span})
}
