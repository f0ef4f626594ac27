package ast

import (
	"slices"
	"strings"

	"vera/internal/source"
)

// AttrTargetMask describes where an attribute may appear.
type AttrTargetMask uint8

const (
	AttrTargetNone   AttrTargetMask = 0
	AttrTargetModule AttrTargetMask = 1 << (iota - 1)
	AttrTargetDecl
	AttrTargetMember
	AttrTargetStmt
	AttrTargetExpr
)

// AttrShape is the payload a recognized attribute accepts.
type AttrShape uint8

const (
	// AttrShapeFlag takes no arguments.
	AttrShapeFlag AttrShape = iota
	// AttrShapeBool takes an optional single boolean literal.
	AttrShapeBool
	// AttrShapeInt takes a single integer literal.
	AttrShapeInt
	// AttrShapeString takes one or more string literals.
	AttrShapeString
	// AttrShapeExprs takes arbitrary expressions.
	AttrShapeExprs
)

// AttrSpec describes a recognized attribute.
type AttrSpec struct {
	Name    string
	Targets AttrTargetMask
	Shape   AttrShape
}

func (spec AttrSpec) Allows(target AttrTargetMask) bool {
	return spec.Targets&target != 0
}

var attrRegistry = map[string]AttrSpec{
	"abstemious":    {Name: "abstemious", Targets: AttrTargetMember, Shape: AttrShapeBool},
	"autocontracts": {Name: "autocontracts", Targets: AttrTargetDecl, Shape: AttrShapeBool},
	"axiom":         {Name: "axiom", Targets: AttrTargetMember | AttrTargetStmt, Shape: AttrShapeFlag},
	"compile":       {Name: "compile", Targets: AttrTargetModule | AttrTargetDecl | AttrTargetMember, Shape: AttrShapeBool},
	"extern":        {Name: "extern", Targets: AttrTargetModule | AttrTargetDecl | AttrTargetMember, Shape: AttrShapeString},
	"fuel":          {Name: "fuel", Targets: AttrTargetMember | AttrTargetStmt | AttrTargetExpr, Shape: AttrShapeExprs},
	"induction":     {Name: "induction", Targets: AttrTargetMember | AttrTargetExpr, Shape: AttrShapeExprs},
	"opaque":        {Name: "opaque", Targets: AttrTargetMember, Shape: AttrShapeFlag},
	"options":       {Name: "options", Targets: AttrTargetModule, Shape: AttrShapeString},
	"tailrecursion": {Name: "tailrecursion", Targets: AttrTargetMember, Shape: AttrShapeBool},
	"timeLimit":     {Name: "timeLimit", Targets: AttrTargetMember | AttrTargetDecl, Shape: AttrShapeInt},
	"trigger":       {Name: "trigger", Targets: AttrTargetExpr, Shape: AttrShapeExprs},
	"verify":        {Name: "verify", Targets: AttrTargetModule | AttrTargetDecl | AttrTargetMember | AttrTargetStmt, Shape: AttrShapeBool},
}

// LookupAttr returns metadata for a recognized attribute name (case-sensitive).
func LookupAttr(name string) (AttrSpec, bool) {
	spec, ok := attrRegistry[name]
	return spec, ok
}

// AttrSpecs returns all recognized attributes sorted by name.
func AttrSpecs() []AttrSpec {
	names := make([]string, 0, len(attrRegistry))
	for name := range attrRegistry {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int { return strings.Compare(strings.ToLower(a), strings.ToLower(b)) })
	out := make([]AttrSpec, 0, len(names))
	for _, name := range names {
		out = append(out, attrRegistry[name])
	}
	return out
}

// Attribute is one `{:name args}` occurrence.
type Attribute struct {
	Name source.StringID
	Args []ExprID
	Span source.Span
}

// AttrSet keeps recognized attributes keyed by name, and everything else
// verbatim in source order. A repeated recognized name keeps the last occurrence.
type AttrSet struct {
	Known    map[string]Attribute
	Verbatim []Attribute
}

// NewAttrSet sorts attrs into recognized and verbatim buckets.
func (p *Program) NewAttrSet(attrs []Attribute) AttrSetID {
	if len(attrs) == 0 {
		return NoAttrSetID
	}
	set := AttrSet{Known: make(map[string]Attribute)}
	for _, a := range attrs {
		name := p.Name(a.Name)
		if _, ok := LookupAttr(name); ok {
			set.Known[name] = a
			continue
		}
		set.Verbatim = append(set.Verbatim, a)
	}
	return AttrSetID(p.Attrs.Allocate(set))
}

// FindAttr returns the attribute called name from either bucket.
func (p *Program) FindAttr(set AttrSetID, name string) (Attribute, bool) {
	s := p.Attrs.Get(uint32(set))
	if s == nil {
		return Attribute{}, false
	}
	if a, ok := s.Known[name]; ok {
		return a, true
	}
	for i := len(s.Verbatim) - 1; i >= 0; i-- {
		if p.Name(s.Verbatim[i].Name) == name {
			return s.Verbatim[i], true
		}
	}
	return Attribute{}, false
}

// ContainsBool reports whether attribute name exists. When its sole argument
// is a boolean literal, literal is true and value carries it; otherwise the
// value is unspecified.
func (p *Program) ContainsBool(set AttrSetID, name string) (exists, value, literal bool) {
	a, ok := p.FindAttr(set, name)
	if !ok {
		return false, false, false
	}
	if len(a.Args) != 1 {
		return true, false, false
	}
	lit, ok := p.Exprs.Literal(a.Args[0])
	if !ok || lit.Kind != LitBool {
		return true, false, false
	}
	return true, lit.Bool, true
}

// IsCompiled reads the `{:compile b}` attribute, defaulting to true.
func (p *Program) IsCompiled(set AttrSetID) bool {
	exists, value, literal := p.ContainsBool(set, "compile")
	if exists && literal {
		return value
	}
	return true
}
