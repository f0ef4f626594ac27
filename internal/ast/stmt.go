package ast

import (
	"fmt"

	"vera/internal/cell"
	"vera/internal/source"
)

type StmtKind uint8

const (
	StmtInvalid StmtKind = iota
	StmtBlock
	StmtVarDecl
	StmtAssign
	// StmtUpdate is concrete syntax: `a, b := e, f` or `x := M(...)`,
	// resolved into assignments or a call.
	StmtUpdate
	StmtAssignSuchThat
	StmtCall
	StmtReturn
	StmtYield
	StmtIf
	StmtWhile
	StmtForall
	StmtAssert
	StmtAssume
	StmtPrint
	StmtBreak
	StmtCalc
)

var stmtKindNames = [...]string{
	StmtInvalid:        "invalid",
	StmtBlock:          "block",
	StmtVarDecl:        "var",
	StmtAssign:         "assign",
	StmtUpdate:         "update",
	StmtAssignSuchThat: "assign-such-that",
	StmtCall:           "call",
	StmtReturn:         "return",
	StmtYield:          "yield",
	StmtIf:             "if",
	StmtWhile:          "while",
	StmtForall:         "forall",
	StmtAssert:         "assert",
	StmtAssume:         "assume",
	StmtPrint:          "print",
	StmtBreak:          "break",
	StmtCalc:           "calc",
}

func (k StmtKind) String() string {
	if int(k) < len(stmtKindNames) {
		return stmtKindNames[k]
	}
	return fmt.Sprintf("StmtKind(%d)", k)
}

type Stmt struct {
	Kind    StmtKind
	Span    source.Span
	Payload PayloadID
	// IsGhost is decided by body resolution.
	IsGhost cell.Once[bool]
}

type BlockData struct {
	Stmts []StmtID
}

// VarDeclData declares locals, optionally initialized by an update statement.
type VarDeclData struct {
	Vars []VarID
	Init StmtID
}

type AssignData struct {
	Lhs ExprID
	Rhs ExprID
}

type UpdateData struct {
	Lhss     []ExprID
	Rhss     []ExprID
	Resolved cell.Once[[]StmtID]
}

type AssignSuchThatData struct {
	Lhss       []ExprID
	Constraint ExprID
}

type CallData struct {
	Lhss     []ExprID
	Receiver ExprID
	Name     source.StringID
	Args     []ExprID
	Method   cell.Once[MemberID]
}

// ReturnData is used for both return and yield.
type ReturnData struct {
	Rhss []ExprID
}

// IfData: a missing Cond is the non-deterministic guard `*`.
type IfData struct {
	Cond ExprID
	Then StmtID
	Else StmtID
}

type WhileData struct {
	Guard      ExprID
	Invariants []ExprID
	Decreases  []ExprID
	Modifies   []ExprID
	Body       StmtID
}

type ForallData struct {
	Bound   []VarID
	Range   ExprID
	Ensures []ExprID
	Body    StmtID
}

// PredicateData is used by assert and assume.
type PredicateData struct {
	Expr ExprID
}

type PrintData struct {
	Args []ExprID
}

type BreakData struct {
	// Count is the number of enclosing loops to leave.
	Count uint32
}

// CalcData: Lines[i] StepOps[i] Lines[i+1], justified by Hints[i].
type CalcData struct {
	Op      CalcOp
	Lines   []ExprID
	StepOps []CalcOp
	Hints   []StmtID
	Result  cell.Once[CalcOp]
}

// Stmts manages allocation of statements.
type Stmts struct {
	Arena          *Arena[Stmt]
	Blocks         *Arena[BlockData]
	VarDecls       *Arena[VarDeclData]
	Assigns        *Arena[AssignData]
	Updates        *Arena[UpdateData]
	AssignSuchThat *Arena[AssignSuchThatData]
	Calls          *Arena[CallData]
	Returns        *Arena[ReturnData]
	Ifs            *Arena[IfData]
	Whiles         *Arena[WhileData]
	Foralls        *Arena[ForallData]
	Predicates     *Arena[PredicateData]
	Prints         *Arena[PrintData]
	Breaks         *Arena[BreakData]
	Calcs          *Arena[CalcData]
}

func NewStmts(capHint uint) *Stmts {
	if capHint == 0 {
		capHint = 1 << 7
	}
	small := capHint / 4
	return &Stmts{
		Arena:          NewArena[Stmt](capHint),
		Blocks:         NewArena[BlockData](capHint),
		VarDecls:       NewArena[VarDeclData](small),
		Assigns:        NewArena[AssignData](small),
		Updates:        NewArena[UpdateData](small),
		AssignSuchThat: NewArena[AssignSuchThatData](small),
		Calls:          NewArena[CallData](small),
		Returns:        NewArena[ReturnData](small),
		Ifs:            NewArena[IfData](small),
		Whiles:         NewArena[WhileData](small),
		Foralls:        NewArena[ForallData](small),
		Predicates:     NewArena[PredicateData](small),
		Prints:         NewArena[PrintData](small),
		Breaks:         NewArena[BreakData](small),
		Calcs:          NewArena[CalcData](small),
	}
}

func (s *Stmts) new(kind StmtKind, span source.Span, payload uint32) StmtID {
	return StmtID(s.Arena.Allocate(Stmt{Kind: kind, Span: span, Payload: PayloadID(payload)}))
}

func (s *Stmts) Get(id StmtID) *Stmt {
	return s.Arena.Get(uint32(id))
}

func stmtPayload[T any](s *Stmts, arena *Arena[T], id StmtID, kinds ...StmtKind) (*T, bool) {
	stmt := s.Get(id)
	if stmt == nil {
		return nil, false
	}
	for _, k := range kinds {
		if stmt.Kind == k {
			return arena.Get(uint32(stmt.Payload)), true
		}
	}
	return nil, false
}

func (s *Stmts) mustValid(ids ...StmtID) {
	for _, id := range ids {
		if s.Get(id) == nil {
			panic(fmt.Sprintf("ast: invalid statement handle %d", id))
		}
	}
}

func mustExprs(ids ...ExprID) {
	for _, id := range ids {
		if !id.IsValid() {
			panic("ast: statement refers to an absent expression")
		}
	}
}

func (s *Stmts) NewBlock(span source.Span, stmts []StmtID) StmtID {
	s.mustValid(stmts...)
	return s.new(StmtBlock, span, s.Blocks.Allocate(BlockData{Stmts: stmts}))
}

func (s *Stmts) Block(id StmtID) (*BlockData, bool) {
	return stmtPayload(s, s.Blocks, id, StmtBlock)
}

func (s *Stmts) NewVarDecl(span source.Span, vars []VarID, init StmtID) StmtID {
	if len(vars) == 0 {
		panic("ast: var statement declares nothing")
	}
	if init.IsValid() {
		if k := s.Get(init).Kind; k != StmtUpdate && k != StmtAssignSuchThat {
			panic(fmt.Sprintf("ast: var statement cannot be initialized by %s", k))
		}
	}
	return s.new(StmtVarDecl, span, s.VarDecls.Allocate(VarDeclData{Vars: vars, Init: init}))
}

func (s *Stmts) VarDecl(id StmtID) (*VarDeclData, bool) {
	return stmtPayload(s, s.VarDecls, id, StmtVarDecl)
}

func (s *Stmts) NewAssign(span source.Span, lhs, rhs ExprID) StmtID {
	mustExprs(lhs, rhs)
	return s.new(StmtAssign, span, s.Assigns.Allocate(AssignData{Lhs: lhs, Rhs: rhs}))
}

func (s *Stmts) Assign(id StmtID) (*AssignData, bool) {
	return stmtPayload(s, s.Assigns, id, StmtAssign)
}

// NewUpdate builds `lhss := rhss`. Empty lhss is a bare call statement.
func (s *Stmts) NewUpdate(span source.Span, lhss, rhss []ExprID) StmtID {
	if len(rhss) == 0 {
		panic("ast: update without right-hand sides")
	}
	mustExprs(lhss...)
	mustExprs(rhss...)
	return s.new(StmtUpdate, span, s.Updates.Allocate(UpdateData{Lhss: lhss, Rhss: rhss}))
}

func (s *Stmts) Update(id StmtID) (*UpdateData, bool) {
	return stmtPayload(s, s.Updates, id, StmtUpdate)
}

// SetResolvedUpdate installs the statements an update stands for.
func (s *Stmts) SetResolvedUpdate(id StmtID, resolved []StmtID) error {
	upd, ok := s.Update(id)
	if !ok {
		return fmt.Errorf("ast: statement %d is not an update", id)
	}
	s.mustValid(resolved...)
	if err := upd.Resolved.Set(resolved); err != nil {
		return fmt.Errorf("update %d: %w", id, err)
	}
	return nil
}

func (s *Stmts) NewAssignSuchThat(span source.Span, lhss []ExprID, constraint ExprID) StmtID {
	if len(lhss) == 0 {
		panic("ast: such-that assignment without targets")
	}
	mustExprs(lhss...)
	mustExprs(constraint)
	return s.new(StmtAssignSuchThat, span, s.AssignSuchThat.Allocate(AssignSuchThatData{Lhss: lhss, Constraint: constraint}))
}

func (s *Stmts) AssignSuchThatOf(id StmtID) (*AssignSuchThatData, bool) {
	return stmtPayload(s, s.AssignSuchThat, id, StmtAssignSuchThat)
}

// NewCall builds `lhss := receiver.name(args)`; receiver may be NoExprID.
func (s *Stmts) NewCall(span source.Span, lhss []ExprID, receiver ExprID, name source.StringID, args []ExprID) StmtID {
	mustExprs(lhss...)
	mustExprs(args...)
	return s.new(StmtCall, span, s.Calls.Allocate(CallData{Lhss: lhss, Receiver: receiver, Name: name, Args: args}))
}

func (s *Stmts) Call(id StmtID) (*CallData, bool) {
	return stmtPayload(s, s.Calls, id, StmtCall)
}

func (s *Stmts) NewReturn(span source.Span, rhss []ExprID) StmtID {
	mustExprs(rhss...)
	return s.new(StmtReturn, span, s.Returns.Allocate(ReturnData{Rhss: rhss}))
}

func (s *Stmts) NewYield(span source.Span, rhss []ExprID) StmtID {
	mustExprs(rhss...)
	return s.new(StmtYield, span, s.Returns.Allocate(ReturnData{Rhss: rhss}))
}

// Return returns the payload of a return or yield statement.
func (s *Stmts) Return(id StmtID) (*ReturnData, bool) {
	return stmtPayload(s, s.Returns, id, StmtReturn, StmtYield)
}

func (s *Stmts) NewIf(span source.Span, cond ExprID, then, els StmtID) StmtID {
	s.mustValid(then)
	if els.IsValid() {
		s.mustValid(els)
	}
	return s.new(StmtIf, span, s.Ifs.Allocate(IfData{Cond: cond, Then: then, Else: els}))
}

func (s *Stmts) If(id StmtID) (*IfData, bool) {
	return stmtPayload(s, s.Ifs, id, StmtIf)
}

func (s *Stmts) NewWhile(span source.Span, data WhileData) StmtID {
	if data.Body.IsValid() {
		s.mustValid(data.Body)
	}
	mustExprs(data.Invariants...)
	mustExprs(data.Decreases...)
	mustExprs(data.Modifies...)
	return s.new(StmtWhile, span, s.Whiles.Allocate(data))
}

func (s *Stmts) While(id StmtID) (*WhileData, bool) {
	return stmtPayload(s, s.Whiles, id, StmtWhile)
}

func (s *Stmts) NewForall(span source.Span, bound []VarID, rng ExprID, ensures []ExprID, body StmtID) StmtID {
	if len(bound) == 0 {
		panic("ast: forall statement binds no variables")
	}
	mustExprs(ensures...)
	if body.IsValid() {
		s.mustValid(body)
	}
	return s.new(StmtForall, span, s.Foralls.Allocate(ForallData{Bound: bound, Range: rng, Ensures: ensures, Body: body}))
}

func (s *Stmts) Forall(id StmtID) (*ForallData, bool) {
	return stmtPayload(s, s.Foralls, id, StmtForall)
}

func (s *Stmts) NewAssert(span source.Span, e ExprID) StmtID {
	mustExprs(e)
	return s.new(StmtAssert, span, s.Predicates.Allocate(PredicateData{Expr: e}))
}

func (s *Stmts) NewAssume(span source.Span, e ExprID) StmtID {
	mustExprs(e)
	return s.new(StmtAssume, span, s.Predicates.Allocate(PredicateData{Expr: e}))
}

// Predicate returns the payload of an assert or assume statement.
func (s *Stmts) Predicate(id StmtID) (*PredicateData, bool) {
	return stmtPayload(s, s.Predicates, id, StmtAssert, StmtAssume)
}

func (s *Stmts) NewPrint(span source.Span, args []ExprID) StmtID {
	mustExprs(args...)
	return s.new(StmtPrint, span, s.Prints.Allocate(PrintData{Args: args}))
}

func (s *Stmts) Print(id StmtID) (*PrintData, bool) {
	return stmtPayload(s, s.Prints, id, StmtPrint)
}

func (s *Stmts) NewBreak(span source.Span, count uint32) StmtID {
	if count == 0 {
		count = 1
	}
	return s.new(StmtBreak, span, s.Breaks.Allocate(BreakData{Count: count}))
}

func (s *Stmts) Break(id StmtID) (*BreakData, bool) {
	return stmtPayload(s, s.Breaks, id, StmtBreak)
}

// NewCalc builds a calculation. stepOps and hints have one entry per step;
// a NoCalcOp step uses op, a NoStmtID hint means no justification.
func (s *Stmts) NewCalc(span source.Span, op CalcOp, lines []ExprID, stepOps []CalcOp, hints []StmtID) StmtID {
	steps := max(len(lines)-1, 0)
	if stepOps == nil {
		stepOps = make([]CalcOp, steps)
	}
	if hints == nil {
		hints = make([]StmtID, steps)
	}
	if len(stepOps) != steps || len(hints) != steps {
		panic(fmt.Sprintf("ast: calc with %d lines needs %d step operators and hints", len(lines), steps))
	}
	mustExprs(lines...)
	for _, h := range hints {
		if h.IsValid() {
			s.mustValid(h)
		}
	}
	return s.new(StmtCalc, span, s.Calcs.Allocate(CalcData{Op: op, Lines: lines, StepOps: stepOps, Hints: hints}))
}

func (s *Stmts) Calc(id StmtID) (*CalcData, bool) {
	return stmtPayload(s, s.Calcs, id, StmtCalc)
}
