package ast

import (
	"fmt"

	"vera/internal/cell"
	"vera/internal/source"
)

// ModuleKind distinguishes literal modules from import aliases.
type ModuleKind uint8

const (
	ModuleLiteral ModuleKind = iota
	// ModuleAlias is `import X = A.B`; it resolves to a root literal module.
	ModuleAlias
	// ModuleAbstract is `import X : A.B`; it stands for any refinement of the target.
	ModuleAbstract
)

func (k ModuleKind) String() string {
	switch k {
	case ModuleLiteral:
		return "module"
	case ModuleAlias:
		return "alias"
	case ModuleAbstract:
		return "abstract import"
	}
	return fmt.Sprintf("ModuleKind(%d)", k)
}

// ModulePhase tracks how far resolution got for a module. Phases only advance.
type ModulePhase uint8

const (
	PhaseParsed ModulePhase = iota
	PhaseLinked
	PhaseSignatureResolved
	PhaseTypesResolved
	PhaseBodiesResolved
)

func (p ModulePhase) String() string {
	switch p {
	case PhaseParsed:
		return "parsed"
	case PhaseLinked:
		return "linked"
	case PhaseSignatureResolved:
		return "signature-resolved"
	case PhaseTypesResolved:
		return "types-resolved"
	case PhaseBodiesResolved:
		return "bodies-resolved"
	}
	return fmt.Sprintf("ModulePhase(%d)", p)
}

// Module is a literal module or an import alias.
// Parent is NoModuleID only for the program's root modules.
type Module struct {
	Kind   ModuleKind
	Name   source.StringID
	Parent ModuleID
	Span   source.Span
	Attrs  AttrSetID

	// Path is the dotted target of an alias or abstract import.
	Path []source.StringID
	// RefinesPath is the dotted target named by `refines`, empty if none.
	RefinesPath []source.StringID
	// IsAbstract marks `abstract module`; its signature is never compiled.
	IsAbstract bool
	// SpecOnly marks modules that contribute no compiled code.
	SpecOnly bool

	Decls    []DeclID
	Children []ModuleID
	// Imports lists alias children that were declared opened.
	Opened []ModuleID

	phase ModulePhase

	Height        cell.Once[int]
	AliasTarget   cell.Once[ModuleID]
	RefinesTarget cell.Once[ModuleID]
	Signature     cell.Once[*Signature]
	CompileSig    cell.Once[*Signature]
	// DefaultClass holds module-level functions and methods.
	DefaultClass cell.Once[DeclID]

	compiled cell.Once[string]
}

// Phase returns the module's current resolution phase.
func (m *Module) Phase() ModulePhase {
	return m.phase
}

// Advance moves the module to phase p. Going backwards is an error;
// re-entering the current phase is a no-op. Only the driver advances phases.
func (m *Module) Advance(p ModulePhase) error {
	if p < m.phase {
		return fmt.Errorf("module phase cannot go back from %s to %s", m.phase, p)
	}
	m.phase = p
	return nil
}

// AtLeast reports whether the module reached phase p.
func (m *Module) AtLeast(p ModulePhase) bool {
	return m.Phase() >= p
}

// Modules manages module allocation.
type Modules struct {
	Arena *Arena[Module]
}

func NewModules(capHint uint) *Modules {
	return &Modules{Arena: NewArena[Module](capHint)}
}

func (m *Modules) Get(id ModuleID) *Module {
	return m.Arena.Get(uint32(id))
}

// Len returns the number of allocated modules.
func (m *Modules) Len() uint32 { return m.Arena.Len() }

// All yields every module id in allocation order.
func (m *Modules) All() []ModuleID {
	n := m.Arena.Len()
	out := make([]ModuleID, 0, n)
	for i := uint32(1); i <= n; i++ {
		out = append(out, ModuleID(i))
	}
	return out
}
