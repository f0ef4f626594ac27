package dag

import (
	"fmt"
	"slices"
	"strings"

	"vera/internal/diag"
	"vera/internal/source"
)

type Graph struct {
	Edges   [][]NodeID // Edges[from] = []to, from зависит от to
	Indeg   []int      // входящие степени для Kahn (учитывает только присутствующие модули)
	Present []bool     // признак, что модуль реально существует (а не только упомянут)
}

type Node struct {
	Meta     Meta
	Reporter diag.Reporter
}

type Slot struct {
	Meta     Meta
	Reporter diag.Reporter
	Present  bool
}

func BuildGraph(idx Index, nodes []Node) (Graph, []Slot) {
	nodeCount := len(idx.IDToName)
	g := Graph{
		Edges:   make([][]NodeID, nodeCount),
		Indeg:   make([]int, nodeCount),
		Present: make([]bool, nodeCount),
	}
	slots := make([]Slot, nodeCount)
	for i, name := range idx.IDToName {
		slots[i].Meta.Path = name
	}

	for _, node := range nodes {
		meta := node.Meta
		if meta.Path == "" {
			continue
		}
		id, ok := idx.NameToID[meta.Path]
		if !ok {
			// не должно происходить, индекс строится на тех же метаданных
			continue
		}
		slot := &slots[int(id)]
		if slot.Present {
			if node.Reporter != nil {
				notes := make([]diag.Note, 0, 1)
				if slot.Meta.Span != source.NoSpan {
					notes = append(notes, diag.Note{
						Span: slot.Meta.Span,
						Msg:  fmt.Sprintf("previous declaration of %q", slot.Meta.Path),
					})
				}
				node.Reporter.Report(
					diag.LnkDuplicateModule,
					diag.SevError,
					meta.Span,
					fmt.Sprintf("duplicate module %q", meta.Path),
					notes,
				)
			}
			continue
		}
		slot.Meta = meta
		slot.Reporter = node.Reporter
		slot.Present = true
		g.Present[int(id)] = true
	}

	for from := range slots {
		slot := &slots[from]
		if !slot.Present || len(slot.Meta.Deps) == 0 {
			continue
		}
		seen := make(map[NodeID]struct{}, len(slot.Meta.Deps))
		for _, dep := range slot.Meta.Deps {
			if dep.Path == "" {
				continue
			}
			toID := idx.NameToID[dep.Path]
			if NodeID(from) == toID {
				if slot.Reporter != nil {
					code, what := diag.LnkSelfImport, "imports"
					if dep.Refines {
						code, what = diag.LnkModuleCycle, "refines"
					}
					slot.Reporter.Report(code, diag.SevError, dep.Span,
						fmt.Sprintf("module %q %s itself", slot.Meta.Path, what), nil)
				}
				continue
			}
			if _, dup := seen[toID]; dup {
				continue
			}
			seen[toID] = struct{}{}

			g.Edges[from] = append(g.Edges[from], toID)
			if g.Present[int(toID)] {
				g.Indeg[int(toID)]++
			} else if slot.Reporter != nil {
				slot.Reporter.Report(
					diag.LnkUnresolvedModule,
					diag.SevError,
					dep.Span,
					fmt.Sprintf("module %q depends on missing module %q", slot.Meta.Path, dep.Path),
					nil,
				)
			}
		}
		if len(g.Edges[from]) > 1 {
			slices.Sort(g.Edges[from])
		}
	}

	return g, slots
}

func ReportCycles(idx Index, slots []Slot, topo Topo) {
	if !topo.Cyclic || len(topo.Cycles) == 0 {
		return
	}
	names := make([]string, 0, len(topo.Cycles))
	for _, id := range topo.Cycles {
		names = append(names, idx.IDToName[int(id)])
	}
	summary := strings.Join(names, " -> ")

	for _, id := range topo.Cycles {
		slot := slots[int(id)]
		if !slot.Present || slot.Reporter == nil {
			continue
		}
		msg := fmt.Sprintf("module %q participates in a dependency cycle: %s", slot.Meta.Path, summary)
		slot.Reporter.Report(diag.LnkModuleCycle, diag.SevError, slot.Meta.Span, msg, nil)
	}
}
