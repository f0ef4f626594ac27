package ast

type (
	ModuleID    uint32
	DeclID      uint32
	MemberID    uint32
	CtorID      uint32
	VarID       uint32
	TypeParamID uint32
	AttrSetID   uint32
	ExprID      uint32
	StmtID      uint32
	// PayloadID indexes a per-kind payload arena.
	PayloadID uint32
)

const (
	NoModuleID    ModuleID    = 0
	NoDeclID      DeclID      = 0
	NoMemberID    MemberID    = 0
	NoCtorID      CtorID      = 0
	NoVarID       VarID       = 0
	NoTypeParamID TypeParamID = 0
	NoAttrSetID   AttrSetID   = 0
	NoExprID      ExprID      = 0
	NoStmtID      StmtID      = 0
	NoPayloadID   PayloadID   = 0
)

func (id ModuleID) IsValid() bool    { return id != NoModuleID }
func (id DeclID) IsValid() bool      { return id != NoDeclID }
func (id MemberID) IsValid() bool    { return id != NoMemberID }
func (id CtorID) IsValid() bool      { return id != NoCtorID }
func (id VarID) IsValid() bool       { return id != NoVarID }
func (id TypeParamID) IsValid() bool { return id != NoTypeParamID }
func (id AttrSetID) IsValid() bool   { return id != NoAttrSetID }
func (id ExprID) IsValid() bool      { return id != NoExprID }
func (id StmtID) IsValid() bool      { return id != NoStmtID }
