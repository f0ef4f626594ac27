package ast

import (
	"fmt"

	"vera/internal/cell"
	"vera/internal/source"
	"vera/internal/types"
)

// ExprKind enumerates the different kinds of expressions.
type ExprKind uint8

const (
	ExprInvalid ExprKind = iota
	ExprLiteral
	ExprIdent
	ExprThis
	ExprMemberSelect
	ExprSeqSelect
	ExprMultiSelect
	ExprSeqUpdate
	ExprFunctionCall
	ExprDatatypeValue
	ExprUnary
	ExprBinary
	ExprITE
	ExprOld
	ExprDisplay
	ExprMapDisplay
	ExprQuantifier
	ExprComprehension
	ExprLet
	// ExprError is the inert placeholder installed where resolution failed.
	ExprError

	// Concrete syntax; each carries a resolved form once resolution succeeds.
	ExprNameSegment
	ExprDotName
	ExprApplySuffix
	ExprParens
	ExprChaining
	ExprNegation
)

var exprKindNames = [...]string{
	ExprInvalid:       "invalid",
	ExprLiteral:       "literal",
	ExprIdent:         "ident",
	ExprThis:          "this",
	ExprMemberSelect:  "member-select",
	ExprSeqSelect:     "seq-select",
	ExprMultiSelect:   "multi-select",
	ExprSeqUpdate:     "seq-update",
	ExprFunctionCall:  "call",
	ExprDatatypeValue: "datatype-value",
	ExprUnary:         "unary",
	ExprBinary:        "binary",
	ExprITE:           "if-then-else",
	ExprOld:           "old",
	ExprDisplay:       "display",
	ExprMapDisplay:    "map-display",
	ExprQuantifier:    "quantifier",
	ExprComprehension: "comprehension",
	ExprLet:           "let",
	ExprError:         "error",
	ExprNameSegment:   "name-segment",
	ExprDotName:       "dot-name",
	ExprApplySuffix:   "apply-suffix",
	ExprParens:        "parens",
	ExprChaining:      "chaining",
	ExprNegation:      "negation",
}

func (k ExprKind) String() string {
	if int(k) < len(exprKindNames) {
		return exprKindNames[k]
	}
	return fmt.Sprintf("ExprKind(%d)", k)
}

// IsConcrete reports concrete-syntax kinds that carry a resolved form.
func (k ExprKind) IsConcrete() bool {
	return k >= ExprNameSegment
}

// Expr is an expression node. Type is set exactly once by resolution;
// Resolved is only used by concrete-syntax kinds.
type Expr struct {
	Kind    ExprKind
	Span    source.Span
	Payload PayloadID

	Type     cell.Once[types.TypeID]
	Resolved cell.Once[ExprID]
}

type LitKind uint8

const (
	LitBool LitKind = iota
	LitInt
	LitReal
	LitChar
	LitString
	LitNull
)

type LiteralData struct {
	Kind LitKind
	Bool bool
	// Text is the source spelling of numeric, char and string literals.
	Text source.StringID
}

type IdentData struct {
	Name source.StringID
	Var  VarID
}

type MemberSelectData struct {
	Receiver ExprID
	Name     source.StringID
	Member   cell.Once[MemberID]
}

// SeqSelectData is s[i] (SelectOne) or a slice s[lo..hi] where either bound may be absent.
type SeqSelectData struct {
	Seq       ExprID
	Lo        ExprID
	Hi        ExprID
	SelectOne bool
}

type MultiSelectData struct {
	Array   ExprID
	Indices []ExprID
}

type SeqUpdateData struct {
	Seq   ExprID
	Index ExprID
	Value ExprID
}

type FunctionCallData struct {
	Receiver ExprID
	Name     source.StringID
	Args     []ExprID
	Function cell.Once[MemberID]
	// TypeArgs are the inferred instantiations of the callee's type parameters.
	TypeArgs cell.Once[[]types.TypeID]
}

type DatatypeValueData struct {
	DatatypeName source.StringID
	CtorName     source.StringID
	Args         []ExprID
	Ctor         cell.Once[CtorID]
}

type UnaryOp uint8

const (
	UnaryNot UnaryOp = iota
	UnaryNeg
	UnaryCardinality
	UnaryFresh
	UnaryAllocated
)

type UnaryData struct {
	Op      UnaryOp
	Operand ExprID
}

type BinaryOp uint8

const (
	BinIff BinaryOp = iota
	BinImp
	BinRevImp
	BinAnd
	BinOr
	BinEq
	BinNeq
	BinLt
	BinLe
	BinGt
	BinGe
	BinAdd
	BinSub
	BinMul
	BinDiv
	BinMod
	BinIn
	BinNotIn
	BinDisjoint
)

var binaryOpText = [...]string{
	BinIff: "<==>", BinImp: "==>", BinRevImp: "<==", BinAnd: "&&", BinOr: "||",
	BinEq: "==", BinNeq: "!=", BinLt: "<", BinLe: "<=", BinGt: ">", BinGe: ">=",
	BinAdd: "+", BinSub: "-", BinMul: "*", BinDiv: "/", BinMod: "%",
	BinIn: "in", BinNotIn: "!in", BinDisjoint: "!!",
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryOpText) {
		return binaryOpText[op]
	}
	return fmt.Sprintf("BinaryOp(%d)", op)
}

// IsLogic reports boolean connectives.
func (op BinaryOp) IsLogic() bool { return op <= BinOr }

// IsComparison reports relational operators usable in chains.
func (op BinaryOp) IsComparison() bool { return op >= BinEq && op <= BinGe }

type BinaryData struct {
	Op    BinaryOp
	Left  ExprID
	Right ExprID
}

type ITEData struct {
	Cond ExprID
	Then ExprID
	Else ExprID
}

type OldData struct {
	Expr ExprID
}

type DisplayKind uint8

const (
	DisplaySet DisplayKind = iota
	DisplayMultiset
	DisplaySeq
)

type DisplayData struct {
	Kind  DisplayKind
	Elems []ExprID
}

type MapDisplayData struct {
	Finite bool
	Keys   []ExprID
	Values []ExprID
}

type QuantifierData struct {
	Forall bool
	Bound  []VarID
	Range  ExprID
	Term   ExprID
}

// ComprehensionData is `set x | Range :: Term` or `map x | Range :: Term`.
type ComprehensionData struct {
	IsMap  bool
	Finite bool
	Bound  []VarID
	Range  ExprID
	Term   ExprID
}

type LetData struct {
	Vars []VarID
	Rhss []ExprID
	Body ExprID
}

type ErrorData struct {
	// Original is the expression the placeholder replaced, if any.
	Original ExprID
}

type NameSegmentData struct {
	Name     source.StringID
	TypeArgs []types.TypeID
}

type DotNameData struct {
	Lhs  ExprID
	Name source.StringID
}

type ApplySuffixData struct {
	Lhs  ExprID
	Args []ExprID
}

type ParensData struct {
	Inner ExprID
}

// ChainingData is `a op0 b op1 c ...`; len(Ops) == len(Operands)-1.
type ChainingData struct {
	Operands []ExprID
	Ops      []BinaryOp
}

type NegationData struct {
	Operand ExprID
}
