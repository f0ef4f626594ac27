package ast

import (
	"slices"

	"vera/internal/source"
)

// CtorEntry is a constructor visible in a signature. Ambiguous entries keep
// every candidate so the lookup can be reported instead of guessed.
type CtorEntry struct {
	Ctor       CtorID
	Ambiguous  bool
	Candidates []CtorID
}

// Signature is a module's externally visible name map.
type Signature struct {
	Module        ModuleID
	TopLevels     map[source.StringID]DeclID
	Modules       map[source.StringID]ModuleID
	Ctors         map[source.StringID]CtorEntry
	StaticMembers map[source.StringID]MemberID
	// IsGhost is true for the specification signature, false for the compiled one.
	IsGhost bool
	// Refines is the signature of the refined module, nil if none.
	Refines *Signature
}

func NewSignature(module ModuleID, ghost bool) *Signature {
	return &Signature{
		Module:        module,
		TopLevels:     make(map[source.StringID]DeclID),
		Modules:       make(map[source.StringID]ModuleID),
		Ctors:         make(map[source.StringID]CtorEntry),
		StaticMembers: make(map[source.StringID]MemberID),
		IsGhost:       ghost,
	}
}

// AddCtor registers ctor under its name, marking the entry ambiguous when
// another datatype already contributed one with the same name.
func (s *Signature) AddCtor(name source.StringID, ctor CtorID) {
	e, ok := s.Ctors[name]
	if !ok {
		s.Ctors[name] = CtorEntry{Ctor: ctor, Candidates: []CtorID{ctor}}
		return
	}
	if slices.Contains(e.Candidates, ctor) {
		return
	}
	e.Candidates = append(e.Candidates, ctor)
	e.Ambiguous = true
	e.Ctor = NoCtorID
	s.Ctors[name] = e
}

// LookupCtor returns the constructor for name, following refined signatures.
// The nearest signature that knows the name decides: ok is false when the
// name is unknown or ambiguous there; entry is returned in both found cases.
func (s *Signature) LookupCtor(name source.StringID) (CtorEntry, bool) {
	for cur := s; cur != nil; cur = cur.Refines {
		if e, found := cur.Ctors[name]; found {
			return e, !e.Ambiguous
		}
	}
	return CtorEntry{}, false
}

// LookupTopLevel finds a declaration by name, following refined signatures.
func (s *Signature) LookupTopLevel(name source.StringID) (DeclID, bool) {
	for cur := s; cur != nil; cur = cur.Refines {
		if id, ok := cur.TopLevels[name]; ok {
			return id, true
		}
	}
	return NoDeclID, false
}

// LookupStatic finds a module-level member by name, following refined signatures.
func (s *Signature) LookupStatic(name source.StringID) (MemberID, bool) {
	for cur := s; cur != nil; cur = cur.Refines {
		if id, ok := cur.StaticMembers[name]; ok {
			return id, true
		}
	}
	return NoMemberID, false
}

// LookupModule finds a nested or imported module by name.
func (s *Signature) LookupModule(name source.StringID) (ModuleID, bool) {
	for cur := s; cur != nil; cur = cur.Refines {
		if id, ok := cur.Modules[name]; ok {
			return id, true
		}
	}
	return NoModuleID, false
}

// SortedTopLevels returns top-level names ordered by text.
func (s *Signature) SortedTopLevels(strs *source.Interner) []source.StringID {
	return sortedKeys(s.TopLevels, strs)
}

// SortedStatics returns static member names ordered by text.
func (s *Signature) SortedStatics(strs *source.Interner) []source.StringID {
	return sortedKeys(s.StaticMembers, strs)
}

// SortedCtors returns constructor names ordered by text.
func (s *Signature) SortedCtors(strs *source.Interner) []source.StringID {
	return sortedKeys(s.Ctors, strs)
}

func sortedKeys[V any](m map[source.StringID]V, strs *source.Interner) []source.StringID {
	out := make([]source.StringID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.SortFunc(out, func(a, b source.StringID) int {
		sa, sb := strs.MustLookup(a), strs.MustLookup(b)
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		}
		return 0
	})
	return out
}
