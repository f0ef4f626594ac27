package ast

import (
	"fmt"
	"strconv"

	"vera/internal/source"
	"vera/internal/types"
)

// ArrayClass returns the synthesized class for arrays of the given dimension,
// creating it on first request. Repeated requests return the same declaration.
func (p *Program) ArrayClass(dims int) DeclID {
	if dims < 1 {
		panic(fmt.Sprintf("ast: array dimension must be positive, got %d", dims))
	}
	p.arrayMu.Lock()
	defer p.arrayMu.Unlock()
	if id, ok := p.arrays[dims]; ok {
		return id
	}
	name := "array"
	if dims > 1 {
		name += strconv.Itoa(dims)
	}
	elem := p.NewTypeParam(p.Intern("T"), false, source.NoSpan)
	payload := p.Decls.Classes.Allocate(ClassData{Dims: dims})
	id := p.addDecl(p.system, Decl{
		Kind:       types.DeclArray,
		Name:       p.Intern(name),
		TypeParams: []TypeParamID{elem},
		Payload:    PayloadID(payload),
	})
	intT := p.Types.Builtins().Int
	if dims == 1 {
		p.NewField(id, FieldInit{Name: p.Intern("Length"), Type: intT, Special: SpecialArrayLength})
	} else {
		for i := range dims {
			p.NewField(id, FieldInit{Name: p.Intern("Length" + strconv.Itoa(i)), Type: intT, Special: SpecialArrayLength})
		}
	}
	p.arrays[dims] = id
	return id
}

// ArrayType returns the type array<elem> (arrayN<elem> for N > 1).
func (p *Program) ArrayType(dims int, elem types.TypeID) types.TypeID {
	id := p.ArrayClass(dims)
	d := p.Decls.Get(id)
	return p.Types.NewResolvedUser(d.Name, []types.TypeID{elem}, DeclRef(id), types.DeclArray)
}

// ArrayDims returns the dimension of an array type, 0 if t is not an array.
func (p *Program) ArrayDims(t types.TypeID) int {
	decl, kind, ok := p.Types.UserDecl(t)
	if !ok || kind != types.DeclArray {
		return 0
	}
	c, ok := p.Decls.Class(DeclID(decl))
	if !ok {
		return 0
	}
	return c.Dims
}
