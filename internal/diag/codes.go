package diag

import (
	"fmt"
)

type Code uint16

const (
	// Неизвестная ошибка
	UnknownCode Code = 0

	// Резолв имён и типов
	ResInfo                 Code = 3000
	ResUnresolvedName       Code = 3001
	ResUnresolvedType       Code = 3002
	ResAmbiguousCtor        Code = 3003
	ResDuplicateDecl        Code = 3004
	ResDuplicateMember      Code = 3005
	ResTypeMismatch         Code = 3006
	ResArityMismatch        Code = 3007
	ResCalcIncomparable     Code = 3008
	ResUnderspecifiedType   Code = 3009
	ResWrongTypeArgCount    Code = 3010
	ResUnresolvedMember     Code = 3011
	ResBreakOutsideLoop     Code = 3012
	ResYieldOutsideIterator Code = 3013
	ResEqualityRequired     Code = 3014
	ResGhostInCompiled      Code = 3015
	ResNotAPredicate        Code = 3016

	// Ввод/вывод
	IOInfo            Code = 4000
	IOLoadFileError   Code = 4001
	IOManifestInvalid Code = 4002

	// Модули и линковка
	LnkInfo                 Code = 5000
	LnkUnresolvedModule     Code = 5001
	LnkCyclicAlias          Code = 5002
	LnkModuleCycle          Code = 5003
	LnkRefineKindMismatch   Code = 5004
	LnkRefineBodyConflict   Code = 5005
	LnkDuplicateModule      Code = 5006
	LnkSelfImport           Code = 5007
	LnkRefinesSelf          Code = 5008
	LnkRefinementNotAllowed Code = 5009

	ObsInfo    Code = 6000
	ObsTimings Code = 6001
)

var codeDescription = map[Code]string{
	UnknownCode:             "Unknown error",
	ResInfo:                 "Resolution information",
	ResUnresolvedName:       "Unresolved identifier",
	ResUnresolvedType:       "Unresolved type name",
	ResAmbiguousCtor:        "Ambiguous datatype constructor",
	ResDuplicateDecl:        "Duplicate declaration",
	ResDuplicateMember:      "Duplicate member",
	ResTypeMismatch:         "Type mismatch",
	ResArityMismatch:        "Wrong number of arguments",
	ResCalcIncomparable:     "Incomparable calculation steps",
	ResUnderspecifiedType:   "Type could not be inferred",
	ResWrongTypeArgCount:    "Wrong number of type arguments",
	ResUnresolvedMember:     "Unresolved member",
	ResBreakOutsideLoop:     "break outside of a loop",
	ResYieldOutsideIterator: "yield outside of an iterator",
	ResEqualityRequired:     "Type does not support equality",
	ResGhostInCompiled:      "Ghost entity used in compiled context",
	ResNotAPredicate:        "Expression is not a predicate",
	IOInfo:                  "I/O information",
	IOLoadFileError:         "I/O load file error",
	IOManifestInvalid:       "Invalid manifest",
	LnkInfo:                 "Linker information",
	LnkUnresolvedModule:     "Unresolved module",
	LnkCyclicAlias:          "Cyclic module alias",
	LnkModuleCycle:          "Module dependency cycle",
	LnkRefineKindMismatch:   "Refinement changes declaration kind",
	LnkRefineBodyConflict:   "Refinement redefines an existing body",
	LnkDuplicateModule:      "Duplicate module definition",
	LnkSelfImport:           "Module imports itself",
	LnkRefinesSelf:          "Module refines itself",
	LnkRefinementNotAllowed: "Refinement not allowed",
	ObsInfo:                 "Observability information",
	ObsTimings:              "Pipeline timings",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("RES%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("LNK%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
