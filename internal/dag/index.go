// Package dag builds the module dependency graph used for heights,
// compile order and cycle reporting, plus a generic SCC helper.
package dag

import (
	"sort"

	"vera/internal/source"
)

type NodeID uint32

// Dep is an edge from a module to a module it depends on.
type Dep struct {
	Path string
	Span source.Span
	// Refines marks a refinement edge rather than an import or nesting edge.
	Refines bool
}

// Meta describes one module by its dotted path.
type Meta struct {
	Path string
	Span source.Span
	Deps []Dep
}

type Index struct {
	NameToID map[string]NodeID
	IDToName []string
}

// собрать уникальные пути, sort.Strings, раздать ID по порядку
func BuildIndex(metas []Meta) Index {
	uniq := make(map[string]struct{}, len(metas))
	for _, meta := range metas {
		if meta.Path != "" {
			uniq[meta.Path] = struct{}{}
		}
		for _, dep := range meta.Deps {
			if dep.Path == "" {
				continue
			}
			uniq[dep.Path] = struct{}{}
		}
	}

	paths := make([]string, 0, len(uniq))
	for path := range uniq {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	nameToID := make(map[string]NodeID, len(paths))
	for i, path := range paths {
		nameToID[path] = NodeID(i)
	}

	return Index{
		NameToID: nameToID,
		IDToName: paths,
	}
}
