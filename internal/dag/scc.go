package dag

import "slices"

// SCC returns the strongly connected components of a graph with n nodes.
// A component is emitted only after every component reachable from it,
// so dependencies come first. Nodes inside a component are sorted.
func SCC(n int, succ func(int) []int) [][]int {
	t := tarjan{
		succ:    succ,
		index:   make([]int, n),
		low:     make([]int, n),
		onStack: make([]bool, n),
	}
	for i := range t.index {
		t.index[i] = -1
	}
	for v := range n {
		if t.index[v] < 0 {
			t.visit(v)
		}
	}
	return t.out
}

type tarjan struct {
	succ    func(int) []int
	index   []int
	low     []int
	onStack []bool
	stack   []int
	next    int
	out     [][]int
}

type frame struct {
	v    int
	succ []int
	i    int
}

// visit is the iterative form of Tarjan's algorithm; deep datatype or call
// chains must not exhaust the goroutine stack.
func (t *tarjan) visit(root int) {
	work := []frame{t.enter(root)}
	for len(work) > 0 {
		top := &work[len(work)-1]
		if top.i < len(top.succ) {
			w := top.succ[top.i]
			top.i++
			switch {
			case t.index[w] < 0:
				work = append(work, t.enter(w))
			case t.onStack[w]:
				t.low[top.v] = min(t.low[top.v], t.index[w])
			}
			continue
		}
		v := top.v
		work = work[:len(work)-1]
		if len(work) > 0 {
			parent := work[len(work)-1].v
			t.low[parent] = min(t.low[parent], t.low[v])
		}
		if t.low[v] != t.index[v] {
			continue
		}
		var comp []int
		for {
			w := t.stack[len(t.stack)-1]
			t.stack = t.stack[:len(t.stack)-1]
			t.onStack[w] = false
			comp = append(comp, w)
			if w == v {
				break
			}
		}
		slices.Sort(comp)
		t.out = append(t.out, comp)
	}
}

func (t *tarjan) enter(v int) frame {
	t.index[v] = t.next
	t.low[v] = t.next
	t.next++
	t.stack = append(t.stack, v)
	t.onStack[v] = true
	return frame{v: v, succ: t.succ(v)}
}

// Levels groups components so that every component only depends on
// components of lower levels. comps must come from SCC with the same succ.
func Levels(comps [][]int, succ func(int) []int, n int) [][]int {
	compOf := make([]int, n)
	for ci, comp := range comps {
		for _, v := range comp {
			compOf[v] = ci
		}
	}
	level := make([]int, len(comps))
	maxLevel := 0
	// компоненты уже идут так, что зависимости выданы раньше
	for ci, comp := range comps {
		for _, v := range comp {
			for _, w := range succ(v) {
				if cw := compOf[w]; cw != ci && level[cw]+1 > level[ci] {
					level[ci] = level[cw] + 1
				}
			}
		}
		maxLevel = max(maxLevel, level[ci])
	}
	if len(comps) == 0 {
		return nil
	}
	out := make([][]int, maxLevel+1)
	for ci, l := range level {
		out[l] = append(out[l], ci)
	}
	return out
}
