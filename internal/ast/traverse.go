package ast

import "iter"

// SubExprs yields the direct children of an expression in source order.
// Concrete-syntax nodes with a resolved form are replaced by it, on both
// the node itself and each child.
func (p *Program) SubExprs(id ExprID) iter.Seq[ExprID] {
	return func(yield func(ExprID) bool) {
		p.subExprs(p.Exprs.Unwrap(id), func(child ExprID) bool {
			if !child.IsValid() {
				return true
			}
			return yield(p.Exprs.Unwrap(child))
		})
	}
}

func (p *Program) subExprs(id ExprID, yield func(ExprID) bool) {
	e := p.Exprs
	expr := e.Get(id)
	if expr == nil {
		return
	}
	emit := func(ids ...ExprID) bool {
		for _, c := range ids {
			if !yield(c) {
				return false
			}
		}
		return true
	}
	switch expr.Kind {
	case ExprMemberSelect:
		d, _ := e.MemberSelect(id)
		emit(d.Receiver)
	case ExprSeqSelect:
		d, _ := e.SeqSelect(id)
		emit(d.Seq, d.Lo, d.Hi)
	case ExprMultiSelect:
		d, _ := e.MultiSelect(id)
		if emit(d.Array) {
			emit(d.Indices...)
		}
	case ExprSeqUpdate:
		d, _ := e.SeqUpdate(id)
		emit(d.Seq, d.Index, d.Value)
	case ExprFunctionCall:
		d, _ := e.FunctionCall(id)
		if emit(d.Receiver) {
			emit(d.Args...)
		}
	case ExprDatatypeValue:
		d, _ := e.DatatypeValue(id)
		emit(d.Args...)
	case ExprUnary:
		d, _ := e.Unary(id)
		emit(d.Operand)
	case ExprBinary:
		d, _ := e.Binary(id)
		emit(d.Left, d.Right)
	case ExprITE:
		d, _ := e.ITE(id)
		emit(d.Cond, d.Then, d.Else)
	case ExprOld:
		d, _ := e.Old(id)
		emit(d.Expr)
	case ExprDisplay:
		d, _ := e.Display(id)
		emit(d.Elems...)
	case ExprMapDisplay:
		d, _ := e.MapDisplay(id)
		for i := range d.Keys {
			if !emit(d.Keys[i], d.Values[i]) {
				return
			}
		}
	case ExprQuantifier:
		d, _ := e.Quantifier(id)
		emit(d.Range, d.Term)
	case ExprComprehension:
		d, _ := e.Comprehension(id)
		emit(d.Range, d.Term)
	case ExprLet:
		d, _ := e.Let(id)
		if emit(d.Rhss...) {
			emit(d.Body)
		}
	case ExprDotName:
		d, _ := e.DotName(id)
		emit(d.Lhs)
	case ExprApplySuffix:
		d, _ := e.ApplySuffix(id)
		if emit(d.Lhs) {
			emit(d.Args...)
		}
	case ExprParens:
		d, _ := e.ParensOf(id)
		emit(d.Inner)
	case ExprChaining:
		d, _ := e.Chaining(id)
		emit(d.Operands...)
	case ExprNegation:
		d, _ := e.Negation(id)
		emit(d.Operand)
	}
}

// StmtExprs yields the expressions a statement holds directly.
// A resolved update holds none; its parts are reached through SubStmts.
func (p *Program) StmtExprs(id StmtID) iter.Seq[ExprID] {
	return func(yield func(ExprID) bool) {
		s := p.Stmts
		stmt := s.Get(id)
		if stmt == nil {
			return
		}
		emit := func(ids ...ExprID) bool {
			for _, c := range ids {
				if !c.IsValid() {
					continue
				}
				if !yield(p.Exprs.Unwrap(c)) {
					return false
				}
			}
			return true
		}
		switch stmt.Kind {
		case StmtAssign:
			d, _ := s.Assign(id)
			emit(d.Lhs, d.Rhs)
		case StmtUpdate:
			d, _ := s.Update(id)
			if d.Resolved.IsSet() {
				return
			}
			if emit(d.Lhss...) {
				emit(d.Rhss...)
			}
		case StmtAssignSuchThat:
			d, _ := s.AssignSuchThatOf(id)
			if emit(d.Lhss...) {
				emit(d.Constraint)
			}
		case StmtCall:
			d, _ := s.Call(id)
			if emit(d.Lhss...) && emit(d.Receiver) {
				emit(d.Args...)
			}
		case StmtReturn, StmtYield:
			d, _ := s.Return(id)
			emit(d.Rhss...)
		case StmtIf:
			d, _ := s.If(id)
			emit(d.Cond)
		case StmtWhile:
			d, _ := s.While(id)
			if emit(d.Guard) && emit(d.Invariants...) && emit(d.Decreases...) {
				emit(d.Modifies...)
			}
		case StmtForall:
			d, _ := s.Forall(id)
			if emit(d.Range) {
				emit(d.Ensures...)
			}
		case StmtAssert, StmtAssume:
			d, _ := s.Predicate(id)
			emit(d.Expr)
		case StmtPrint:
			d, _ := s.Print(id)
			emit(d.Args...)
		case StmtCalc:
			d, _ := s.Calc(id)
			emit(d.Lines...)
		}
	}
}

// SubStmts yields the direct child statements, substituting a resolved
// update by the statements it stands for.
func (p *Program) SubStmts(id StmtID) iter.Seq[StmtID] {
	return func(yield func(StmtID) bool) {
		s := p.Stmts
		stmt := s.Get(id)
		if stmt == nil {
			return
		}
		emit := func(ids ...StmtID) bool {
			for _, c := range ids {
				if c.IsValid() && !yield(c) {
					return false
				}
			}
			return true
		}
		switch stmt.Kind {
		case StmtBlock:
			d, _ := s.Block(id)
			emit(d.Stmts...)
		case StmtVarDecl:
			d, _ := s.VarDecl(id)
			emit(d.Init)
		case StmtUpdate:
			d, _ := s.Update(id)
			if resolved, ok := d.Resolved.Lookup(); ok {
				emit(resolved...)
			}
		case StmtIf:
			d, _ := s.If(id)
			emit(d.Then, d.Else)
		case StmtWhile:
			d, _ := s.While(id)
			emit(d.Body)
		case StmtForall:
			d, _ := s.Forall(id)
			emit(d.Body)
		case StmtCalc:
			d, _ := s.Calc(id)
			emit(d.Hints...)
		}
	}
}

// WalkExpr visits root and every expression below it in pre-order.
// Returning false from visit skips the node's children.
func (p *Program) WalkExpr(root ExprID, visit func(ExprID) bool) {
	if !root.IsValid() {
		return
	}
	root = p.Exprs.Unwrap(root)
	if !visit(root) {
		return
	}
	for child := range p.SubExprs(root) {
		p.WalkExpr(child, visit)
	}
}

// WalkStmt visits root and every statement below it in pre-order, calling
// expr for each expression held by a visited statement.
func (p *Program) WalkStmt(root StmtID, stmt func(StmtID) bool, expr func(ExprID) bool) {
	if !root.IsValid() {
		return
	}
	if stmt != nil && !stmt(root) {
		return
	}
	if expr != nil {
		for e := range p.StmtExprs(root) {
			p.WalkExpr(e, expr)
		}
	}
	for child := range p.SubStmts(root) {
		p.WalkStmt(child, stmt, expr)
	}
}
