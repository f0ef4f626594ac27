package manifest

import (
	"fmt"
	"strconv"

	"fortio.org/safecast"

	"vera/internal/ast"
	"vera/internal/source"
	"vera/internal/types"
)

// bodyParser turns one body string into unresolved tree nodes. Spans
// point into the manifest when the string was located there.
type bodyParser struct {
	p    *ast.Program
	toks []token
	i    int
	text string

	file source.FileID
	base int
	at   source.Span
}

func newBodyParser(p *ast.Program, text string, file source.FileID, base int, at source.Span) (*bodyParser, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", text, err)
	}
	return &bodyParser{p: p, toks: toks, text: text, file: file, base: base, at: at}, nil
}

func (bp *bodyParser) span(from, to int) source.Span {
	if bp.base < 0 {
		return bp.at
	}
	start, err1 := safecast.Conv[uint32](bp.base + from)
	end, err2 := safecast.Conv[uint32](bp.base + to)
	if err1 != nil || err2 != nil {
		return bp.at
	}
	return source.Span{File: bp.file, Start: start, End: end}
}

func (bp *bodyParser) peek() token { return bp.toks[bp.i] }
func (bp *bodyParser) next() token {
	t := bp.toks[bp.i]
	if t.kind != tokEOF {
		bp.i++
	}
	return t
}

func (bp *bodyParser) isOp(text string) bool {
	t := bp.peek()
	return t.kind == tokOp && t.text == text
}

func (bp *bodyParser) isWord(text string) bool {
	t := bp.peek()
	return t.kind == tokIdent && t.text == text
}

func (bp *bodyParser) eatOp(text string) bool {
	if bp.isOp(text) {
		bp.i++
		return true
	}
	return false
}

func (bp *bodyParser) expectOp(text string) error {
	if !bp.eatOp(text) {
		return bp.errorf("expected %q", text)
	}
	return nil
}

func (bp *bodyParser) errorf(format string, args ...any) error {
	t := bp.peek()
	return fmt.Errorf("%q at offset %d: %s", bp.text, t.off, fmt.Sprintf(format, args...))
}

// prev returns the end offset of the last consumed token.
func (bp *bodyParser) prev() int {
	if bp.i == 0 {
		return 0
	}
	t := bp.toks[bp.i-1]
	switch t.kind {
	case tokString, tokChar:
		return t.off + len(t.text) + 2
	}
	return t.off + len(t.text)
}

func (bp *bodyParser) done() error {
	if bp.peek().kind != tokEOF {
		return bp.errorf("unexpected %q", bp.peek().text)
	}
	return nil
}

// Expr parses a whole string as one expression.
func (bp *bodyParser) Expr() (ast.ExprID, error) {
	e, err := bp.expr()
	if err != nil {
		return ast.NoExprID, err
	}
	return e, bp.done()
}

func (bp *bodyParser) expr() (ast.ExprID, error) {
	return bp.equiv()
}

func (bp *bodyParser) equiv() (ast.ExprID, error) {
	start := bp.peek().off
	left, err := bp.implies()
	if err != nil {
		return ast.NoExprID, err
	}
	for bp.eatOp("<==>") {
		right, err := bp.implies()
		if err != nil {
			return ast.NoExprID, err
		}
		left = bp.p.Exprs.NewBinary(bp.span(start, bp.prev()), ast.BinIff, left, right)
	}
	return left, nil
}

// implies is right-associative.
func (bp *bodyParser) implies() (ast.ExprID, error) {
	start := bp.peek().off
	left, err := bp.logic("||", ast.BinOr, func() (ast.ExprID, error) {
		return bp.logic("&&", ast.BinAnd, bp.relation)
	})
	if err != nil {
		return ast.NoExprID, err
	}
	if bp.eatOp("==>") {
		right, err := bp.implies()
		if err != nil {
			return ast.NoExprID, err
		}
		return bp.p.Exprs.NewBinary(bp.span(start, bp.prev()), ast.BinImp, left, right), nil
	}
	return left, nil
}

func (bp *bodyParser) logic(op string, bin ast.BinaryOp, operand func() (ast.ExprID, error)) (ast.ExprID, error) {
	start := bp.peek().off
	left, err := operand()
	if err != nil {
		return ast.NoExprID, err
	}
	for bp.eatOp(op) {
		right, err := operand()
		if err != nil {
			return ast.NoExprID, err
		}
		left = bp.p.Exprs.NewBinary(bp.span(start, bp.prev()), bin, left, right)
	}
	return left, nil
}

var comparisonOps = map[string]ast.BinaryOp{
	"==": ast.BinEq, "!=": ast.BinNeq, "<": ast.BinLt, "<=": ast.BinLe, ">": ast.BinGt, ">=": ast.BinGe,
}

// relation parses comparisons; two or more comparisons form a chain.
func (bp *bodyParser) relation() (ast.ExprID, error) {
	start := bp.peek().off
	first, err := bp.additive()
	if err != nil {
		return ast.NoExprID, err
	}
	operands := []ast.ExprID{first}
	var ops []ast.BinaryOp
	for {
		t := bp.peek()
		op, cmp := comparisonOps[t.text]
		switch {
		case t.kind == tokOp && cmp:
			bp.next()
		case t.kind == tokIdent && t.text == "in":
			op = ast.BinIn
			bp.next()
		case t.kind == tokOp && t.text == "!" && bp.toks[bp.i+1].kind == tokIdent && bp.toks[bp.i+1].text == "in":
			op = ast.BinNotIn
			bp.i += 2
		case t.kind == tokOp && t.text == "!!":
			op = ast.BinDisjoint
			bp.next()
		default:
			return bp.relationResult(start, operands, ops)
		}
		right, err := bp.additive()
		if err != nil {
			return ast.NoExprID, err
		}
		operands = append(operands, right)
		ops = append(ops, op)
	}
}

func (bp *bodyParser) relationResult(start int, operands []ast.ExprID, ops []ast.BinaryOp) (ast.ExprID, error) {
	sp := bp.span(start, bp.prev())
	switch len(ops) {
	case 0:
		return operands[0], nil
	case 1:
		return bp.p.Exprs.NewBinary(sp, ops[0], operands[0], operands[1]), nil
	}
	for _, op := range ops {
		if !op.IsComparison() {
			return ast.NoExprID, bp.errorf("%s cannot be chained", op)
		}
	}
	return bp.p.Exprs.NewChaining(sp, operands, ops), nil
}

func (bp *bodyParser) additive() (ast.ExprID, error) {
	return bp.arith(map[string]ast.BinaryOp{"+": ast.BinAdd, "-": ast.BinSub}, func() (ast.ExprID, error) {
		return bp.arith(map[string]ast.BinaryOp{"*": ast.BinMul, "/": ast.BinDiv, "%": ast.BinMod}, bp.unary)
	})
}

func (bp *bodyParser) arith(ops map[string]ast.BinaryOp, operand func() (ast.ExprID, error)) (ast.ExprID, error) {
	start := bp.peek().off
	left, err := operand()
	if err != nil {
		return ast.NoExprID, err
	}
	for {
		t := bp.peek()
		op, ok := ops[t.text]
		if t.kind != tokOp || !ok {
			return left, nil
		}
		bp.next()
		right, err := operand()
		if err != nil {
			return ast.NoExprID, err
		}
		left = bp.p.Exprs.NewBinary(bp.span(start, bp.prev()), op, left, right)
	}
}

func (bp *bodyParser) unary() (ast.ExprID, error) {
	start := bp.peek().off
	switch {
	case bp.isOp("!") && !(bp.toks[bp.i+1].kind == tokIdent && bp.toks[bp.i+1].text == "in"):
		bp.next()
		e, err := bp.unary()
		if err != nil {
			return ast.NoExprID, err
		}
		return bp.p.Exprs.NewUnary(bp.span(start, bp.prev()), ast.UnaryNot, e), nil
	case bp.isOp("-"):
		bp.next()
		e, err := bp.unary()
		if err != nil {
			return ast.NoExprID, err
		}
		return bp.p.Exprs.NewNegation(bp.span(start, bp.prev()), e), nil
	}
	return bp.postfix()
}

func (bp *bodyParser) postfix() (ast.ExprID, error) {
	start := bp.peek().off
	e, err := bp.primary()
	if err != nil {
		return ast.NoExprID, err
	}
	ex := bp.p.Exprs
	for {
		switch {
		case bp.eatOp("."):
			name := bp.next()
			if name.kind != tokIdent {
				return ast.NoExprID, bp.errorf("expected a member name after '.'")
			}
			e = ex.NewDotName(bp.span(start, bp.prev()), e, bp.p.Intern(name.text))
		case bp.eatOp("("):
			args, err := bp.list(")")
			if err != nil {
				return ast.NoExprID, err
			}
			e = ex.NewApplySuffix(bp.span(start, bp.prev()), e, args)
		case bp.eatOp("["):
			if e, err = bp.selection(start, e); err != nil {
				return ast.NoExprID, err
			}
		default:
			return e, nil
		}
	}
}

// selection parses what follows '[': s[i], s[lo..hi], s[i := v] or a[i, j].
func (bp *bodyParser) selection(start int, seq ast.ExprID) (ast.ExprID, error) {
	ex := bp.p.Exprs
	var lo ast.ExprID
	if !bp.isOp("..") {
		var err error
		if lo, err = bp.expr(); err != nil {
			return ast.NoExprID, err
		}
	}
	switch {
	case bp.eatOp(".."):
		var hi ast.ExprID
		if !bp.isOp("]") {
			var err error
			if hi, err = bp.expr(); err != nil {
				return ast.NoExprID, err
			}
		}
		if err := bp.expectOp("]"); err != nil {
			return ast.NoExprID, err
		}
		return ex.NewSeqSelect(bp.span(start, bp.prev()), seq, false, lo, hi), nil
	case bp.eatOp(":="):
		v, err := bp.expr()
		if err != nil {
			return ast.NoExprID, err
		}
		if err := bp.expectOp("]"); err != nil {
			return ast.NoExprID, err
		}
		return ex.NewSeqUpdate(bp.span(start, bp.prev()), seq, lo, v), nil
	case bp.eatOp(","):
		rest, err := bp.list("]")
		if err != nil {
			return ast.NoExprID, err
		}
		return ex.NewMultiSelect(bp.span(start, bp.prev()), seq, append([]ast.ExprID{lo}, rest...)), nil
	}
	if err := bp.expectOp("]"); err != nil {
		return ast.NoExprID, err
	}
	return ex.NewSeqSelect(bp.span(start, bp.prev()), seq, true, lo, ast.NoExprID), nil
}

// list parses comma-separated expressions up to the closing token.
func (bp *bodyParser) list(closing string) ([]ast.ExprID, error) {
	var out []ast.ExprID
	if bp.eatOp(closing) {
		return out, nil
	}
	for {
		e, err := bp.expr()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if bp.eatOp(closing) {
			return out, nil
		}
		if err := bp.expectOp(","); err != nil {
			return nil, err
		}
	}
}

func (bp *bodyParser) primary() (ast.ExprID, error) {
	p, ex := bp.p, bp.p.Exprs
	t := bp.next()
	sp := bp.span(t.off, bp.prev())
	switch t.kind {
	case tokInt:
		return ex.NewLiteral(sp, ast.LitInt, p.Intern(t.text)), nil
	case tokReal:
		return ex.NewLiteral(sp, ast.LitReal, p.Intern(t.text)), nil
	case tokString:
		return ex.NewLiteral(sp, ast.LitString, p.Intern(t.text)), nil
	case tokChar:
		return ex.NewLiteral(sp, ast.LitChar, p.Intern(t.text)), nil
	case tokIdent:
		return bp.word(t, sp)
	case tokOp:
		switch t.text {
		case "(":
			inner, err := bp.expr()
			if err != nil {
				return ast.NoExprID, err
			}
			if err := bp.expectOp(")"); err != nil {
				return ast.NoExprID, err
			}
			return ex.NewParens(bp.span(t.off, bp.prev()), inner), nil
		case "|":
			inner, err := bp.expr()
			if err != nil {
				return ast.NoExprID, err
			}
			if err := bp.expectOp("|"); err != nil {
				return ast.NoExprID, err
			}
			return ex.NewUnary(bp.span(t.off, bp.prev()), ast.UnaryCardinality, inner), nil
		case "[":
			elems, err := bp.list("]")
			if err != nil {
				return ast.NoExprID, err
			}
			return ex.NewDisplay(bp.span(t.off, bp.prev()), ast.DisplaySeq, elems), nil
		case "{":
			elems, err := bp.list("}")
			if err != nil {
				return ast.NoExprID, err
			}
			return ex.NewDisplay(bp.span(t.off, bp.prev()), ast.DisplaySet, elems), nil
		}
	}
	if t.kind != tokEOF {
		bp.i--
		return ast.NoExprID, bp.errorf("unexpected %q", t.text)
	}
	return ast.NoExprID, bp.errorf("unexpected end of input")
}

func (bp *bodyParser) word(t token, sp source.Span) (ast.ExprID, error) {
	p, ex := bp.p, bp.p.Exprs
	switch t.text {
	case "true", "false":
		return ex.NewBoolLiteral(sp, t.text == "true"), nil
	case "null":
		return ex.NewLiteral(sp, ast.LitNull, source.NoStringID), nil
	case "this":
		return ex.NewThis(sp), nil
	case "old":
		if err := bp.expectOp("("); err != nil {
			return ast.NoExprID, err
		}
		inner, err := bp.expr()
		if err != nil {
			return ast.NoExprID, err
		}
		if err := bp.expectOp(")"); err != nil {
			return ast.NoExprID, err
		}
		return ex.NewOld(bp.span(t.off, bp.prev()), inner), nil
	case "fresh":
		if bp.eatOp("(") {
			inner, err := bp.expr()
			if err != nil {
				return ast.NoExprID, err
			}
			if err := bp.expectOp(")"); err != nil {
				return ast.NoExprID, err
			}
			return ex.NewUnary(bp.span(t.off, bp.prev()), ast.UnaryFresh, inner), nil
		}
	case "multiset":
		if bp.eatOp("{") {
			elems, err := bp.list("}")
			if err != nil {
				return ast.NoExprID, err
			}
			return ex.NewDisplay(bp.span(t.off, bp.prev()), ast.DisplayMultiset, elems), nil
		}
	case "forall", "exists":
		return bp.quantifier(t)
	case "if":
		return bp.ite(t)
	}
	return ex.NewNameSegment(sp, p.Intern(t.text), nil), nil
}

// ite parses `if c then a else b`; the else branch extends as far as possible.
func (bp *bodyParser) ite(t token) (ast.ExprID, error) {
	cond, err := bp.expr()
	if err != nil {
		return ast.NoExprID, err
	}
	if !bp.isWord("then") {
		return ast.NoExprID, bp.errorf("expected then")
	}
	bp.next()
	then, err := bp.expr()
	if err != nil {
		return ast.NoExprID, err
	}
	if !bp.isWord("else") {
		return ast.NoExprID, bp.errorf("expected else")
	}
	bp.next()
	els, err := bp.expr()
	if err != nil {
		return ast.NoExprID, err
	}
	return bp.p.Exprs.NewITE(bp.span(t.off, bp.prev()), cond, then, els), nil
}

// quantifier parses `forall x: T, y | range :: term`; the range is optional.
func (bp *bodyParser) quantifier(t token) (ast.ExprID, error) {
	vars, err := bp.boundVars()
	if err != nil {
		return ast.NoExprID, err
	}
	rng := ast.NoExprID
	if bp.eatOp("|") {
		if rng, err = bp.expr(); err != nil {
			return ast.NoExprID, err
		}
	}
	if err := bp.expectOp(":"); err != nil {
		return ast.NoExprID, err
	}
	if err := bp.expectOp(":"); err != nil {
		return ast.NoExprID, err
	}
	term, err := bp.expr()
	if err != nil {
		return ast.NoExprID, err
	}
	return bp.p.Exprs.NewQuantifier(bp.span(t.off, bp.prev()), t.text == "forall", vars, rng, term), nil
}

// boundVars parses `x: T, y` declaring bound variables; an omitted type
// is inferred.
func (bp *bodyParser) boundVars() ([]ast.VarID, error) {
	return bp.declared(ast.VarBound, false)
}

func (bp *bodyParser) declared(kind ast.VarKind, ghost bool) ([]ast.VarID, error) {
	var out []ast.VarID
	for {
		name := bp.next()
		if name.kind != tokIdent {
			return nil, bp.errorf("expected a variable name")
		}
		sp := bp.span(name.off, bp.prev())
		t := bp.p.Types.NewProxy(types.ProxyFree, sp)
		if bp.eatOp(":") {
			if bp.isOp(":") {
				// `x :: term`: the second colon belongs to the quantifier
				bp.i--
			} else {
				var err error
				if t, err = bp.typeUntil(); err != nil {
					return nil, err
				}
			}
		}
		out = append(out, bp.p.NewVar(kind, bp.p.Intern(name.text), t, ghost, sp))
		if !bp.eatOp(",") {
			return out, nil
		}
	}
}

// typeUntil parses a type written inline, stopping at a token that cannot
// continue it.
func (bp *bodyParser) typeUntil() (types.TypeID, error) {
	start := bp.peek().off
	depth := 0
	for {
		t := bp.peek()
		if t.kind == tokEOF {
			break
		}
		if t.kind == tokOp {
			switch t.text {
			case "<":
				depth++
			case ">":
				depth--
			case ",":
				if depth == 0 {
					goto done
				}
			case ".":
			default:
				goto done
			}
		}
		bp.next()
	}
done:
	end := bp.peek().off
	if end == start {
		return types.NoTypeID, bp.errorf("expected a type")
	}
	return ParseType(bp.p.Types, bp.text[start:end], bp.span(start, end))
}

// Stmt parses one statement of a method or iterator body.
func (bp *bodyParser) Stmt() (ast.StmtID, error) {
	s, err := bp.stmt()
	if err != nil {
		return ast.NoStmtID, err
	}
	return s, bp.done()
}

func (bp *bodyParser) stmt() (ast.StmtID, error) {
	p, st := bp.p, bp.p.Stmts
	t := bp.peek()
	start := t.off
	if t.kind == tokIdent {
		switch t.text {
		case "var", "ghost":
			return bp.varDecl()
		case "return", "yield":
			bp.next()
			var rhss []ast.ExprID
			if bp.peek().kind != tokEOF {
				var err error
				if rhss, err = bp.exprList(); err != nil {
					return ast.NoStmtID, err
				}
			}
			if t.text == "yield" {
				return st.NewYield(bp.span(start, bp.prev()), rhss), nil
			}
			return st.NewReturn(bp.span(start, bp.prev()), rhss), nil
		case "assert", "assume":
			bp.next()
			e, err := bp.expr()
			if err != nil {
				return ast.NoStmtID, err
			}
			if t.text == "assert" {
				return st.NewAssert(bp.span(start, bp.prev()), e), nil
			}
			return st.NewAssume(bp.span(start, bp.prev()), e), nil
		case "print":
			bp.next()
			args, err := bp.exprList()
			if err != nil {
				return ast.NoStmtID, err
			}
			return st.NewPrint(bp.span(start, bp.prev()), args), nil
		case "break":
			bp.next()
			count := uint64(1)
			if bp.peek().kind == tokInt {
				var err error
				if count, err = strconv.ParseUint(bp.next().text, 10, 32); err != nil {
					return ast.NoStmtID, bp.errorf("bad break count: %v", err)
				}
			}
			return st.NewBreak(bp.span(start, bp.prev()), uint32(count)), nil
		}
	}
	lhss, err := bp.exprList()
	if err != nil {
		return ast.NoStmtID, err
	}
	if !bp.eatOp(":=") {
		if len(lhss) != 1 || p.Exprs.Get(lhss[0]).Kind != ast.ExprApplySuffix {
			return ast.NoStmtID, bp.errorf("an expression statement must be a call")
		}
		return st.NewUpdate(bp.span(start, bp.prev()), nil, lhss), nil
	}
	rhss, err := bp.exprList()
	if err != nil {
		return ast.NoStmtID, err
	}
	return st.NewUpdate(bp.span(start, bp.prev()), lhss, rhss), nil
}

// varDecl parses `[ghost] var x: T, y := e, f`.
func (bp *bodyParser) varDecl() (ast.StmtID, error) {
	start := bp.peek().off
	ghost := false
	if bp.isWord("ghost") {
		ghost = true
		bp.next()
	}
	if !bp.isWord("var") {
		return ast.NoStmtID, bp.errorf("expected var")
	}
	bp.next()
	vars, err := bp.declared(ast.VarLocal, ghost)
	if err != nil {
		return ast.NoStmtID, err
	}
	init := ast.NoStmtID
	if bp.isOp(":=") {
		initStart := bp.peek().off
		bp.next()
		rhss, err := bp.exprList()
		if err != nil {
			return ast.NoStmtID, err
		}
		lhss := make([]ast.ExprID, len(vars))
		for i, v := range vars {
			lhss[i] = bp.p.Exprs.NewNameSegment(bp.p.Var(v).Span, bp.p.Var(v).Name, nil)
		}
		init = bp.p.Stmts.NewUpdate(bp.span(initStart, bp.prev()), lhss, rhss)
	}
	return bp.p.Stmts.NewVarDecl(bp.span(start, bp.prev()), vars, init), nil
}

func (bp *bodyParser) exprList() ([]ast.ExprID, error) {
	var out []ast.ExprID
	for {
		e, err := bp.expr()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if !bp.eatOp(",") {
			return out, nil
		}
	}
}
