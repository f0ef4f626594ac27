package ast

import (
	"fmt"

	"vera/internal/source"
	"vera/internal/types"
)

// Exprs manages allocation of expressions.
type Exprs struct {
	Arena          *Arena[Expr]
	Literals       *Arena[LiteralData]
	Idents         *Arena[IdentData]
	MemberSelects  *Arena[MemberSelectData]
	SeqSelects     *Arena[SeqSelectData]
	MultiSelects   *Arena[MultiSelectData]
	SeqUpdates     *Arena[SeqUpdateData]
	Calls          *Arena[FunctionCallData]
	DatatypeValues *Arena[DatatypeValueData]
	Unaries        *Arena[UnaryData]
	Binaries       *Arena[BinaryData]
	ITEs           *Arena[ITEData]
	Olds           *Arena[OldData]
	Displays       *Arena[DisplayData]
	MapDisplays    *Arena[MapDisplayData]
	Quantifiers    *Arena[QuantifierData]
	Comprehensions *Arena[ComprehensionData]
	Lets           *Arena[LetData]
	Errors         *Arena[ErrorData]
	NameSegments   *Arena[NameSegmentData]
	DotNames       *Arena[DotNameData]
	ApplySuffixes  *Arena[ApplySuffixData]
	Parens         *Arena[ParensData]
	Chainings      *Arena[ChainingData]
	Negations      *Arena[NegationData]
}

// NewExprs preallocates every payload arena with capHint (default 256).
func NewExprs(capHint uint) *Exprs {
	if capHint == 0 {
		capHint = 1 << 8
	}
	small := capHint / 4
	return &Exprs{
		Arena:          NewArena[Expr](capHint),
		Literals:       NewArena[LiteralData](capHint),
		Idents:         NewArena[IdentData](capHint),
		MemberSelects:  NewArena[MemberSelectData](small),
		SeqSelects:     NewArena[SeqSelectData](small),
		MultiSelects:   NewArena[MultiSelectData](small),
		SeqUpdates:     NewArena[SeqUpdateData](small),
		Calls:          NewArena[FunctionCallData](small),
		DatatypeValues: NewArena[DatatypeValueData](small),
		Unaries:        NewArena[UnaryData](small),
		Binaries:       NewArena[BinaryData](capHint),
		ITEs:           NewArena[ITEData](small),
		Olds:           NewArena[OldData](small),
		Displays:       NewArena[DisplayData](small),
		MapDisplays:    NewArena[MapDisplayData](small),
		Quantifiers:    NewArena[QuantifierData](small),
		Comprehensions: NewArena[ComprehensionData](small),
		Lets:           NewArena[LetData](small),
		Errors:         NewArena[ErrorData](small),
		NameSegments:   NewArena[NameSegmentData](capHint),
		DotNames:       NewArena[DotNameData](small),
		ApplySuffixes:  NewArena[ApplySuffixData](small),
		Parens:         NewArena[ParensData](small),
		Chainings:      NewArena[ChainingData](small),
		Negations:      NewArena[NegationData](small),
	}
}

func (e *Exprs) new(kind ExprKind, span source.Span, payload uint32) ExprID {
	return ExprID(e.Arena.Allocate(Expr{Kind: kind, Span: span, Payload: PayloadID(payload)}))
}

// Get returns the expression with the given ID.
func (e *Exprs) Get(id ExprID) *Expr {
	return e.Arena.Get(uint32(id))
}

func payload[T any](e *Exprs, arena *Arena[T], id ExprID, kind ExprKind) (*T, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != kind {
		return nil, false
	}
	return arena.Get(uint32(expr.Payload)), true
}

func (e *Exprs) mustValid(ids ...ExprID) {
	for _, id := range ids {
		if e.Get(id) == nil {
			panic(fmt.Sprintf("ast: invalid expression handle %d", id))
		}
	}
}

func (e *Exprs) NewBoolLiteral(span source.Span, v bool) ExprID {
	return e.new(ExprLiteral, span, e.Literals.Allocate(LiteralData{Kind: LitBool, Bool: v}))
}

// NewLiteral creates a numeric, char, string or null literal from its spelling.
func (e *Exprs) NewLiteral(span source.Span, kind LitKind, text source.StringID) ExprID {
	if kind == LitBool {
		panic("ast: use NewBoolLiteral for boolean literals")
	}
	return e.new(ExprLiteral, span, e.Literals.Allocate(LiteralData{Kind: kind, Text: text}))
}

func (e *Exprs) Literal(id ExprID) (*LiteralData, bool) {
	return payload(e, e.Literals, id, ExprLiteral)
}

func (e *Exprs) NewIdent(span source.Span, name source.StringID, v VarID) ExprID {
	if !v.IsValid() {
		panic("ast: identifier expressions name a resolved variable")
	}
	return e.new(ExprIdent, span, e.Idents.Allocate(IdentData{Name: name, Var: v}))
}

func (e *Exprs) Ident(id ExprID) (*IdentData, bool) {
	return payload(e, e.Idents, id, ExprIdent)
}

func (e *Exprs) NewThis(span source.Span) ExprID {
	return e.new(ExprThis, span, 0)
}

func (e *Exprs) NewMemberSelect(span source.Span, receiver ExprID, name source.StringID) ExprID {
	e.mustValid(receiver)
	return e.new(ExprMemberSelect, span, e.MemberSelects.Allocate(MemberSelectData{Receiver: receiver, Name: name}))
}

func (e *Exprs) MemberSelect(id ExprID) (*MemberSelectData, bool) {
	return payload(e, e.MemberSelects, id, ExprMemberSelect)
}

// NewSeqSelect builds s[lo] when selectOne, else s[lo..hi].
// A single-element select must not carry a second index.
func (e *Exprs) NewSeqSelect(span source.Span, seq ExprID, selectOne bool, lo, hi ExprID) ExprID {
	e.mustValid(seq)
	if selectOne {
		if !lo.IsValid() {
			panic("ast: single-element select requires an index")
		}
		if hi.IsValid() {
			panic("ast: single-element select must not have a second index")
		}
	}
	return e.new(ExprSeqSelect, span, e.SeqSelects.Allocate(SeqSelectData{Seq: seq, Lo: lo, Hi: hi, SelectOne: selectOne}))
}

func (e *Exprs) SeqSelect(id ExprID) (*SeqSelectData, bool) {
	return payload(e, e.SeqSelects, id, ExprSeqSelect)
}

func (e *Exprs) NewMultiSelect(span source.Span, array ExprID, indices []ExprID) ExprID {
	if len(indices) < 2 {
		panic("ast: multi-dimensional select needs at least two indices")
	}
	e.mustValid(array)
	e.mustValid(indices...)
	return e.new(ExprMultiSelect, span, e.MultiSelects.Allocate(MultiSelectData{Array: array, Indices: indices}))
}

func (e *Exprs) MultiSelect(id ExprID) (*MultiSelectData, bool) {
	return payload(e, e.MultiSelects, id, ExprMultiSelect)
}

func (e *Exprs) NewSeqUpdate(span source.Span, seq, index, value ExprID) ExprID {
	e.mustValid(seq, index, value)
	return e.new(ExprSeqUpdate, span, e.SeqUpdates.Allocate(SeqUpdateData{Seq: seq, Index: index, Value: value}))
}

func (e *Exprs) SeqUpdate(id ExprID) (*SeqUpdateData, bool) {
	return payload(e, e.SeqUpdates, id, ExprSeqUpdate)
}

// NewFunctionCall builds receiver.name(args); receiver may be NoExprID for an implicit one.
func (e *Exprs) NewFunctionCall(span source.Span, receiver ExprID, name source.StringID, args []ExprID) ExprID {
	e.mustValid(args...)
	return e.new(ExprFunctionCall, span, e.Calls.Allocate(FunctionCallData{Receiver: receiver, Name: name, Args: args}))
}

func (e *Exprs) FunctionCall(id ExprID) (*FunctionCallData, bool) {
	return payload(e, e.Calls, id, ExprFunctionCall)
}

func (e *Exprs) NewDatatypeValue(span source.Span, datatype, ctor source.StringID, args []ExprID) ExprID {
	e.mustValid(args...)
	return e.new(ExprDatatypeValue, span, e.DatatypeValues.Allocate(DatatypeValueData{DatatypeName: datatype, CtorName: ctor, Args: args}))
}

func (e *Exprs) DatatypeValue(id ExprID) (*DatatypeValueData, bool) {
	return payload(e, e.DatatypeValues, id, ExprDatatypeValue)
}

func (e *Exprs) NewUnary(span source.Span, op UnaryOp, operand ExprID) ExprID {
	e.mustValid(operand)
	return e.new(ExprUnary, span, e.Unaries.Allocate(UnaryData{Op: op, Operand: operand}))
}

func (e *Exprs) Unary(id ExprID) (*UnaryData, bool) {
	return payload(e, e.Unaries, id, ExprUnary)
}

func (e *Exprs) NewBinary(span source.Span, op BinaryOp, left, right ExprID) ExprID {
	e.mustValid(left, right)
	return e.new(ExprBinary, span, e.Binaries.Allocate(BinaryData{Op: op, Left: left, Right: right}))
}

func (e *Exprs) Binary(id ExprID) (*BinaryData, bool) {
	return payload(e, e.Binaries, id, ExprBinary)
}

func (e *Exprs) NewITE(span source.Span, cond, then, els ExprID) ExprID {
	e.mustValid(cond, then, els)
	return e.new(ExprITE, span, e.ITEs.Allocate(ITEData{Cond: cond, Then: then, Else: els}))
}

func (e *Exprs) ITE(id ExprID) (*ITEData, bool) {
	return payload(e, e.ITEs, id, ExprITE)
}

func (e *Exprs) NewOld(span source.Span, inner ExprID) ExprID {
	e.mustValid(inner)
	return e.new(ExprOld, span, e.Olds.Allocate(OldData{Expr: inner}))
}

func (e *Exprs) Old(id ExprID) (*OldData, bool) {
	return payload(e, e.Olds, id, ExprOld)
}

func (e *Exprs) NewDisplay(span source.Span, kind DisplayKind, elems []ExprID) ExprID {
	e.mustValid(elems...)
	return e.new(ExprDisplay, span, e.Displays.Allocate(DisplayData{Kind: kind, Elems: elems}))
}

func (e *Exprs) Display(id ExprID) (*DisplayData, bool) {
	return payload(e, e.Displays, id, ExprDisplay)
}

func (e *Exprs) NewMapDisplay(span source.Span, finite bool, keys, values []ExprID) ExprID {
	if len(keys) != len(values) {
		panic("ast: map display needs one value per key")
	}
	e.mustValid(keys...)
	e.mustValid(values...)
	return e.new(ExprMapDisplay, span, e.MapDisplays.Allocate(MapDisplayData{Finite: finite, Keys: keys, Values: values}))
}

func (e *Exprs) MapDisplay(id ExprID) (*MapDisplayData, bool) {
	return payload(e, e.MapDisplays, id, ExprMapDisplay)
}

// NewQuantifier builds forall/exists; range may be NoExprID.
func (e *Exprs) NewQuantifier(span source.Span, forall bool, bound []VarID, rng, term ExprID) ExprID {
	if len(bound) == 0 {
		panic("ast: quantifier binds no variables")
	}
	e.mustValid(term)
	return e.new(ExprQuantifier, span, e.Quantifiers.Allocate(QuantifierData{Forall: forall, Bound: bound, Range: rng, Term: term}))
}

func (e *Exprs) Quantifier(id ExprID) (*QuantifierData, bool) {
	return payload(e, e.Quantifiers, id, ExprQuantifier)
}

// NewComprehension builds a set or map comprehension; term may be NoExprID for
// a set comprehension over a single bound variable.
func (e *Exprs) NewComprehension(span source.Span, isMap, finite bool, bound []VarID, rng, term ExprID) ExprID {
	if len(bound) == 0 {
		panic("ast: comprehension binds no variables")
	}
	if isMap && !term.IsValid() {
		panic("ast: map comprehension requires a term")
	}
	e.mustValid(rng)
	return e.new(ExprComprehension, span, e.Comprehensions.Allocate(ComprehensionData{IsMap: isMap, Finite: finite, Bound: bound, Range: rng, Term: term}))
}

func (e *Exprs) Comprehension(id ExprID) (*ComprehensionData, bool) {
	return payload(e, e.Comprehensions, id, ExprComprehension)
}

func (e *Exprs) NewLet(span source.Span, vars []VarID, rhss []ExprID, body ExprID) ExprID {
	if len(vars) == 0 || len(vars) != len(rhss) {
		panic("ast: let needs one right-hand side per variable")
	}
	e.mustValid(rhss...)
	e.mustValid(body)
	return e.new(ExprLet, span, e.Lets.Allocate(LetData{Vars: vars, Rhss: rhss, Body: body}))
}

func (e *Exprs) Let(id ExprID) (*LetData, bool) {
	return payload(e, e.Lets, id, ExprLet)
}

// NewError creates an inert placeholder standing in for original.
func (e *Exprs) NewError(span source.Span, original ExprID) ExprID {
	return e.new(ExprError, span, e.Errors.Allocate(ErrorData{Original: original}))
}

func (e *Exprs) NewNameSegment(span source.Span, name source.StringID, typeArgs []types.TypeID) ExprID {
	return e.new(ExprNameSegment, span, e.NameSegments.Allocate(NameSegmentData{Name: name, TypeArgs: typeArgs}))
}

func (e *Exprs) NameSegment(id ExprID) (*NameSegmentData, bool) {
	return payload(e, e.NameSegments, id, ExprNameSegment)
}

func (e *Exprs) NewDotName(span source.Span, lhs ExprID, name source.StringID) ExprID {
	e.mustValid(lhs)
	return e.new(ExprDotName, span, e.DotNames.Allocate(DotNameData{Lhs: lhs, Name: name}))
}

func (e *Exprs) DotName(id ExprID) (*DotNameData, bool) {
	return payload(e, e.DotNames, id, ExprDotName)
}

func (e *Exprs) NewApplySuffix(span source.Span, lhs ExprID, args []ExprID) ExprID {
	e.mustValid(lhs)
	e.mustValid(args...)
	return e.new(ExprApplySuffix, span, e.ApplySuffixes.Allocate(ApplySuffixData{Lhs: lhs, Args: args}))
}

func (e *Exprs) ApplySuffix(id ExprID) (*ApplySuffixData, bool) {
	return payload(e, e.ApplySuffixes, id, ExprApplySuffix)
}

func (e *Exprs) NewParens(span source.Span, inner ExprID) ExprID {
	e.mustValid(inner)
	return e.new(ExprParens, span, e.Parens.Allocate(ParensData{Inner: inner}))
}

func (e *Exprs) ParensOf(id ExprID) (*ParensData, bool) {
	return payload(e, e.Parens, id, ExprParens)
}

func (e *Exprs) NewChaining(span source.Span, operands []ExprID, ops []BinaryOp) ExprID {
	if len(operands) < 3 || len(ops) != len(operands)-1 {
		panic("ast: chaining needs at least two comparisons and one operator between operands")
	}
	for _, op := range ops {
		if !op.IsComparison() {
			panic(fmt.Sprintf("ast: %s cannot appear in a comparison chain", op))
		}
	}
	e.mustValid(operands...)
	return e.new(ExprChaining, span, e.Chainings.Allocate(ChainingData{Operands: operands, Ops: ops}))
}

func (e *Exprs) Chaining(id ExprID) (*ChainingData, bool) {
	return payload(e, e.Chainings, id, ExprChaining)
}

func (e *Exprs) NewNegation(span source.Span, operand ExprID) ExprID {
	e.mustValid(operand)
	return e.new(ExprNegation, span, e.Negations.Allocate(NegationData{Operand: operand}))
}

func (e *Exprs) Negation(id ExprID) (*NegationData, bool) {
	return payload(e, e.Negations, id, ExprNegation)
}

// SetType records the resolved type of an expression; it fails if already set.
func (e *Exprs) SetType(id ExprID, t types.TypeID) error {
	expr := e.Get(id)
	if expr == nil {
		return fmt.Errorf("ast: invalid expression handle %d", id)
	}
	if t == types.NoTypeID {
		return fmt.Errorf("ast: expression %d typed with NoTypeID", id)
	}
	if err := expr.Type.Set(t); err != nil {
		return fmt.Errorf("expression %d type: %w", id, err)
	}
	return nil
}

// TypeOf returns the resolved type of an expression.
func (e *Exprs) TypeOf(id ExprID) (types.TypeID, bool) {
	expr := e.Get(id)
	if expr == nil {
		return types.NoTypeID, false
	}
	return expr.Type.Lookup()
}

// SetResolved installs the resolved form of a concrete-syntax expression.
func (e *Exprs) SetResolved(id, resolved ExprID) error {
	expr := e.Get(id)
	if expr == nil {
		return fmt.Errorf("ast: invalid expression handle %d", id)
	}
	if !expr.Kind.IsConcrete() {
		return fmt.Errorf("ast: %s expressions have no resolved form", expr.Kind)
	}
	e.mustValid(resolved)
	if err := expr.Resolved.Set(resolved); err != nil {
		return fmt.Errorf("expression %d resolved form: %w", id, err)
	}
	return nil
}

// Unwrap follows resolved forms of concrete-syntax expressions.
func (e *Exprs) Unwrap(id ExprID) ExprID {
	for {
		expr := e.Get(id)
		if expr == nil || !expr.Kind.IsConcrete() {
			return id
		}
		next, ok := expr.Resolved.Lookup()
		if !ok {
			return id
		}
		id = next
	}
}
