package dag

import (
	"fmt"
	"slices"

	"fortio.org/safecast"
)

type Topo struct {
	Order   []NodeID   // линейный порядок (только реальные модули), зависимые раньше зависимостей
	Batches [][]NodeID // волны независимых модулей
	Cyclic  bool
	Cycles  []NodeID // узлы, оставшиеся в цикле
}

func toNodeID(i int) NodeID {
	id, err := safecast.Conv[NodeID](i)
	if err != nil {
		panic(fmt.Errorf("module id overflow: %w", err))
	}
	return id
}

func ToposortKahn(g Graph) *Topo {
	nodeCount := len(g.Edges)
	indeg := make([]int, len(g.Indeg))
	copy(indeg, g.Indeg)

	topo := &Topo{
		Order:   make([]NodeID, 0, nodeCount),
		Batches: make([][]NodeID, 0),
	}

	active := 0
	for i := range nodeCount {
		if g.Present[i] {
			active++
		}
	}

	current := make([]NodeID, 0, nodeCount)
	for i := range nodeCount {
		if g.Present[i] && indeg[i] == 0 {
			current = append(current, toNodeID(i))
		}
	}
	slices.Sort(current)

	visited := 0
	for len(current) > 0 {
		batch := make([]NodeID, len(current))
		copy(batch, current)
		topo.Batches = append(topo.Batches, batch)

		next := make([]NodeID, 0)
		for _, id := range batch {
			topo.Order = append(topo.Order, id)
			visited++
			for _, to := range g.Edges[int(id)] {
				if !g.Present[int(to)] {
					continue
				}
				indeg[int(to)]--
				if indeg[int(to)] == 0 {
					next = append(next, to)
				}
			}
		}
		slices.Sort(next)
		current = next
	}

	if visited != active {
		topo.Cyclic = true
		for i := range nodeCount {
			if g.Present[i] && indeg[i] > 0 {
				topo.Cycles = append(topo.Cycles, toNodeID(i))
			}
		}
		slices.Sort(topo.Cycles)
	}

	return topo
}

// Heights assigns 0 to modules without present dependencies and
// 1 + max(height of dependencies) otherwise. Nodes left in a cycle get -1.
func Heights(g Graph, topo *Topo) []int {
	heights := make([]int, len(g.Edges))
	for i := range heights {
		heights[i] = -1
	}
	for i := len(topo.Order) - 1; i >= 0; i-- {
		id := topo.Order[i]
		h := 0
		for _, to := range g.Edges[int(id)] {
			if g.Present[int(to)] && heights[int(to)] >= h {
				h = heights[int(to)] + 1
			}
		}
		heights[int(id)] = h
	}
	return heights
}
