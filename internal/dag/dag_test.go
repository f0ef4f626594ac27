package dag

import (
	"slices"
	"testing"

	"vera/internal/diag"
	"vera/internal/source"
)

func idsToNames(idx Index, ids []NodeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = idx.IDToName[int(id)]
	}
	return out
}

func TestBuildIndexIncludesDeps(t *testing.T) {
	metas := []Meta{
		{Path: "App", Deps: []Dep{{Path: "Lib.Math"}, {Path: "Lib"}}},
		{Path: "Lib"},
	}
	idx := BuildIndex(metas)
	want := []string{"App", "Lib", "Lib.Math"}
	if !slices.Equal(idx.IDToName, want) {
		t.Fatalf("IDToName = %v, want %v", idx.IDToName, want)
	}
	for i, name := range want {
		if id, ok := idx.NameToID[name]; !ok || int(id) != i {
			t.Fatalf("NameToID[%q] = %v, want %d", name, id, i)
		}
	}
}

func TestBuildGraphReportsMissingModules(t *testing.T) {
	appMeta := Meta{
		Path: "App",
		Span: source.Span{File: 1, Start: 0, End: 10},
		Deps: []Dep{
			{Path: "Core", Span: source.Span{File: 1, Start: 1, End: 4}},
			{Path: "Util", Span: source.Span{File: 1, Start: 5, End: 8}},
		},
	}
	coreMeta := Meta{Path: "Core", Deps: []Dep{{Path: "Util"}}}

	bagApp := diag.NewBag(10)
	bagCore := diag.NewBag(10)
	nodes := []Node{
		{Meta: appMeta, Reporter: diag.BagReporter{Bag: bagApp}},
		{Meta: coreMeta, Reporter: diag.BagReporter{Bag: bagCore}},
	}
	idx := BuildIndex([]Meta{appMeta, coreMeta})
	graph, _ := BuildGraph(idx, nodes)

	appID, coreID, utilID := idx.NameToID["App"], idx.NameToID["Core"], idx.NameToID["Util"]
	if !slices.Equal(graph.Edges[appID], []NodeID{coreID, utilID}) {
		t.Fatalf("App deps = %v", graph.Edges[appID])
	}
	if graph.Present[utilID] || !graph.Present[coreID] {
		t.Fatalf("unexpected Present flags: %v", graph.Present)
	}
	if bagApp.Len() != 1 || bagApp.Items()[0].Code != diag.LnkUnresolvedModule {
		t.Fatalf("App diagnostics = %v", bagApp.Items())
	}
	if bagCore.Len() != 1 || bagCore.Items()[0].Code != diag.LnkUnresolvedModule {
		t.Fatalf("Core diagnostics = %v", bagCore.Items())
	}
}

func TestBuildGraphDuplicateAndSelf(t *testing.T) {
	spanA := source.Span{File: 1, Start: 0, End: 5}
	metaA := Meta{Path: "Dup", Span: spanA}
	metaB := Meta{Path: "Dup", Span: source.Span{File: 2, Start: 0, End: 5}}
	self := Meta{Path: "Self", Deps: []Dep{{Path: "Self", Refines: true}}}

	bagA, bagB, bagSelf := diag.NewBag(10), diag.NewBag(10), diag.NewBag(10)
	nodes := []Node{
		{Meta: metaA, Reporter: diag.BagReporter{Bag: bagA}},
		{Meta: metaB, Reporter: diag.BagReporter{Bag: bagB}},
		{Meta: self, Reporter: diag.BagReporter{Bag: bagSelf}},
	}
	idx := BuildIndex([]Meta{metaA, metaB, self})
	graph, slots := BuildGraph(idx, nodes)

	if bagA.Len() != 0 {
		t.Fatalf("first declaration must not be reported: %v", bagA.Items())
	}
	if bagB.Len() != 1 || bagB.Items()[0].Code != diag.LnkDuplicateModule {
		t.Fatalf("duplicate diagnostics = %v", bagB.Items())
	}
	if len(bagB.Items()[0].Notes) != 1 {
		t.Fatalf("duplicate must point at the previous declaration")
	}
	if slots[idx.NameToID["Dup"]].Meta.Span != spanA {
		t.Fatalf("slot must keep the first declaration")
	}
	if bagSelf.Len() != 1 || bagSelf.Items()[0].Code != diag.LnkModuleCycle {
		t.Fatalf("self refinement diagnostics = %v", bagSelf.Items())
	}
	if len(graph.Edges[idx.NameToID["Self"]]) != 0 {
		t.Fatalf("self edges must be dropped")
	}
}

func TestToposortAndHeights(t *testing.T) {
	metas := []Meta{
		{Path: "B", Deps: []Dep{{Path: "C"}}},
		{Path: "A", Deps: []Dep{{Path: "B"}, {Path: "C"}}},
		{Path: "C"},
		{Path: "D"},
	}
	nodes := make([]Node, len(metas))
	for i, m := range metas {
		nodes[i] = Node{Meta: m}
	}
	idx := BuildIndex(metas)
	graph, _ := BuildGraph(idx, nodes)
	topo := ToposortKahn(graph)
	if topo.Cyclic {
		t.Fatalf("expected acyclic graph")
	}
	if got := idsToNames(idx, topo.Order); !slices.Equal(got, []string{"A", "D", "B", "C"}) {
		t.Fatalf("order = %v", got)
	}
	if len(topo.Batches) != 3 {
		t.Fatalf("batches = %v", topo.Batches)
	}
	heights := Heights(graph, topo)
	want := map[string]int{"A": 2, "B": 1, "C": 0, "D": 0}
	for name, h := range want {
		if got := heights[idx.NameToID[name]]; got != h {
			t.Fatalf("height(%s) = %d, want %d", name, got, h)
		}
	}
}

func TestReportCycles(t *testing.T) {
	metaA := Meta{Path: "A", Deps: []Dep{{Path: "B"}}}
	metaB := Meta{Path: "B", Deps: []Dep{{Path: "A"}}}
	metaC := Meta{Path: "C", Deps: []Dep{{Path: "A"}}}
	bagA, bagB, bagC := diag.NewBag(10), diag.NewBag(10), diag.NewBag(10)
	nodes := []Node{
		{Meta: metaA, Reporter: diag.BagReporter{Bag: bagA}},
		{Meta: metaB, Reporter: diag.BagReporter{Bag: bagB}},
		{Meta: metaC, Reporter: diag.BagReporter{Bag: bagC}},
	}
	idx := BuildIndex([]Meta{metaA, metaB, metaC})
	graph, slots := BuildGraph(idx, nodes)
	topo := ToposortKahn(graph)
	if !topo.Cyclic || len(topo.Cycles) != 2 {
		t.Fatalf("expected a two-module cycle, got %+v", topo)
	}
	ReportCycles(idx, slots, *topo)
	if bagA.Count(diag.LnkModuleCycle) != 1 || bagB.Count(diag.LnkModuleCycle) != 1 {
		t.Fatalf("cycle members must be reported: %v / %v", bagA.Items(), bagB.Items())
	}
	if bagC.Len() != 0 {
		t.Fatalf("C only depends on the cycle: %v", bagC.Items())
	}
	heights := Heights(graph, topo)
	if heights[idx.NameToID["A"]] != -1 {
		t.Fatalf("cyclic modules have no height")
	}
}

func TestSCCAndLevels(t *testing.T) {
	// 0 -> 1 -> 2 -> 1, 3 -> 0, 4 alone
	edges := [][]int{{1}, {2}, {1}, {0}, nil}
	succ := func(v int) []int { return edges[v] }
	comps := SCC(len(edges), succ)

	want := [][]int{{1, 2}, {0}, {3}, {4}}
	if len(comps) != len(want) {
		t.Fatalf("components = %v", comps)
	}
	for i := range want {
		if !slices.Equal(comps[i], want[i]) {
			t.Fatalf("component %d = %v, want %v", i, comps[i], want[i])
		}
	}
	levels := Levels(comps, succ, len(edges))
	// уровень 0: {1,2} и {4}; 1: {0}; 2: {3}
	if len(levels) != 3 || !slices.Equal(levels[0], []int{0, 3}) {
		t.Fatalf("levels = %v", levels)
	}
}

func TestSCCDeepChain(t *testing.T) {
	const n = 200000
	succ := func(v int) []int {
		if v+1 < n {
			return []int{v + 1}
		}
		return []int{0}
	}
	comps := SCC(n, succ)
	if len(comps) != 1 || len(comps[0]) != n {
		t.Fatalf("expected one component of %d nodes, got %d components", n, len(comps))
	}
}
