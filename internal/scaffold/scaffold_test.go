package scaffold

import "testing"

func buildChain() *Graph {
	contigs := map[int]ContigInfo{
		1: {Length: 500},
		2: {Length: 500},
		3: {Length: 500},
	}
	g := NewGraph(contigs)
	a := Node{ContigID: 1, Reverse: false}
	b := Node{ContigID: 2, Reverse: false}
	c := Node{ContigID: 3, Reverse: false}
	g.AddEdge(a, b, DistanceEst{NumPairs: 10, Distance: 50, StdDev: 5})
	g.AddEdge(b, c, DistanceEst{NumPairs: 10, Distance: 50, StdDev: 5})
	g.AddComplementaryEdges()
	return g
}

func TestAddComplementaryEdgesSymmetric(t *testing.T) {
	g := buildChain()
	a := Node{ContigID: 1, Reverse: false}
	b := Node{ContigID: 2, Reverse: false}
	bc := b.Complement()
	ac := a.Complement()
	if _, ok := g.HasEdge(bc, ac); !ok {
		t.Fatalf("expected complementary edge %v->%v", bc, ac)
	}
}

func TestFilterGraphDropsEdgesBelowNThreshold(t *testing.T) {
	g := buildChain()
	FilterGraph(g, Param{N: 20, S: 0}, Limits{MinContigLen: 0, MaxTipLen: 0, MaxGap: 1000})
	a := Node{ContigID: 1, Reverse: false}
	b := Node{ContigID: 2, Reverse: false}
	if _, ok := g.HasEdge(a, b); ok {
		t.Fatalf("expected edge a->b removed by n=20 threshold")
	}
}

// buildWeakDiamond builds the exact diamond RemoveWeakEdges looks for:
// u1 -> v1 (n=10), u1 -> v2 (n=2), u2 -> v2 (n=8), with v1's only
// predecessor u1 and u2's only successor v2, so (u1,v2) is the weak leg.
func buildWeakDiamond() (g *Graph, u1, u2, v1, v2 Node) {
	contigs := map[int]ContigInfo{
		1: {Length: 500}, 2: {Length: 500}, 3: {Length: 500}, 4: {Length: 500},
	}
	g = NewGraph(contigs)
	u1 = Node{ContigID: 1}
	u2 = Node{ContigID: 2}
	v1 = Node{ContigID: 3}
	v2 = Node{ContigID: 4}
	g.AddEdge(u1, v1, DistanceEst{NumPairs: 10})
	g.AddEdge(u1, v2, DistanceEst{NumPairs: 2})
	g.AddEdge(u2, v2, DistanceEst{NumPairs: 8})
	return g, u1, u2, v1, v2
}

func TestRemoveWeakEdgesDropsTheDiamondsWeakLeg(t *testing.T) {
	g, u1, _, v1, v2 := buildWeakDiamond()
	n := RemoveWeakEdges(g)
	if n != 1 {
		t.Fatalf("expected 1 weak edge removed, got %d", n)
	}
	if _, ok := g.HasEdge(u1, v2); ok {
		t.Fatal("expected the weak edge u1->v2 removed")
	}
	if _, ok := g.HasEdge(u1, v1); !ok {
		t.Fatal("expected the strong edge u1->v1 to survive")
	}
}

func TestRemoveWeakEdgesLeavesNonDiamondsAlone(t *testing.T) {
	g := buildChain()
	if n := RemoveWeakEdges(g); n != 0 {
		t.Fatalf("expected 0 edges removed on a plain chain, got %d", n)
	}
}

func TestResolveForksCopiesInTheSingleOriginalOrdering(t *testing.T) {
	contigs := map[int]ContigInfo{1: {Length: 500}, 2: {Length: 500}, 3: {Length: 500}}
	g0 := NewGraph(contigs)
	u := Node{ContigID: 1}
	v1 := Node{ContigID: 2}
	v2 := Node{ContigID: 3}
	g0.AddEdge(u, v1, DistanceEst{NumPairs: 5})
	g0.AddEdge(u, v2, DistanceEst{NumPairs: 5})
	g0.AddEdge(v1, v2, DistanceEst{NumPairs: 3, Distance: 20})

	// g is filtered down to just u's two fork edges, missing the v1->v2
	// ordering that only survives in the unfiltered g0.
	g := NewGraph(contigs)
	g.AddEdge(u, v1, DistanceEst{NumPairs: 5})
	g.AddEdge(u, v2, DistanceEst{NumPairs: 5})
	n := ResolveForks(g, g0)
	if n != 1 {
		t.Fatalf("expected 1 fork resolved, got %d", n)
	}
	if _, ok := g.HasEdge(v1, v2); !ok {
		t.Fatal("expected v1->v2 copied in from g0")
	}
	if _, ok := g.HasEdge(v2, v1); ok {
		t.Fatal("did not expect the opposite ordering added")
	}
}

func TestResolveForksLeavesAmbiguousPairsAlone(t *testing.T) {
	contigs := map[int]ContigInfo{1: {Length: 500}, 2: {Length: 500}, 3: {Length: 500}}
	g0 := NewGraph(contigs)
	u := Node{ContigID: 1}
	v1 := Node{ContigID: 2}
	v2 := Node{ContigID: 3}
	g0.AddEdge(u, v1, DistanceEst{NumPairs: 5})
	g0.AddEdge(u, v2, DistanceEst{NumPairs: 5})
	// neither ordering edge exists in g0, so the fork stays ambiguous.
	g := g0.Clone()
	if n := ResolveForks(g, g0); n != 0 {
		t.Fatalf("expected 0 forks resolved, got %d", n)
	}
}

func TestRemoveRepeatsDeletesTransitiveHub(t *testing.T) {
	contigs := map[int]ContigInfo{
		1: {Length: 500}, 2: {Length: 500}, 3: {Length: 500}, 4: {Length: 500},
	}
	g := NewGraph(contigs)
	u := Node{ContigID: 1}
	v := Node{ContigID: 2}
	w := Node{ContigID: 3}
	w2 := Node{ContigID: 4}
	g.AddEdge(u, v, DistanceEst{NumPairs: 5})
	g.AddEdge(v, w, DistanceEst{NumPairs: 5})
	g.AddEdge(u, w, DistanceEst{NumPairs: 5})
	g.AddEdge(v, w2, DistanceEst{NumPairs: 5})

	n := RemoveRepeats(g)
	if n == 0 {
		t.Fatal("expected the transitive hub v to be removed")
	}
	if g.OutDegree(v) != 0 || g.InDegree(v) != 0 {
		t.Fatal("expected v fully removed from the graph")
	}
}

func TestRemoveRepeatsLeavesPlainChainAlone(t *testing.T) {
	g := buildChain()
	if n := RemoveRepeats(g); n != 0 {
		t.Fatalf("expected 0 repeats removed on a plain chain, got %d", n)
	}
}

func TestRemoveTransitiveEdgesComplexDropsLongerShortcut(t *testing.T) {
	contigs := map[int]ContigInfo{
		1: {Length: 500}, 2: {Length: 500}, 3: {Length: 500}, 4: {Length: 500},
	}
	g := NewGraph(contigs)
	a := Node{ContigID: 1}
	b := Node{ContigID: 2}
	c := Node{ContigID: 3}
	d := Node{ContigID: 4}
	g.AddEdge(a, b, DistanceEst{NumPairs: 5})
	g.AddEdge(b, c, DistanceEst{NumPairs: 5})
	g.AddEdge(c, d, DistanceEst{NumPairs: 5})
	g.AddEdge(a, d, DistanceEst{NumPairs: 5}) // shortcuts a 3-hop path

	if n := RemoveTransitiveEdges(g, false); n != 0 {
		t.Fatalf("classical pass should not touch a 3-hop shortcut, removed %d", n)
	}
	if _, ok := g.HasEdge(a, d); !ok {
		t.Fatal("expected a->d to survive the classical pass")
	}
	if n := RemoveTransitiveEdges(g, true); n != 1 {
		t.Fatalf("expected the complex pass to remove 1 edge, got %d", n)
	}
	if _, ok := g.HasEdge(a, d); ok {
		t.Fatal("expected a->d removed by the complex pass")
	}
}

func TestGapLengthAppliesKMinusOneTerm(t *testing.T) {
	d := DistanceEst{Distance: 10}
	if got := gapLength(d, 50, 31); got != 50+31-1 {
		t.Fatalf("gapLength = %d, want %d", got, 50+31-1)
	}
	d2 := DistanceEst{Distance: 1000}
	if got := gapLength(d2, 50, 31); got != 1000+31-1 {
		t.Fatalf("gapLength = %d, want %d", got, 1000+31-1)
	}
}

func TestBuildSegmentsMaterializesGapPseudoVertices(t *testing.T) {
	g := buildChain()
	a := Node{ContigID: 1}
	b := Node{ContigID: 2}
	c := Node{ContigID: 3}
	segs := BuildSegments(g, []Node{a, b, c}, 50, 31)
	if len(segs) != 5 {
		t.Fatalf("len(segs) = %d, want 5 (node,gap,node,gap,node)", len(segs))
	}
	if !segs[1].Gap || !segs[3].Gap {
		t.Fatal("expected segments 1 and 3 to be gap pseudo-vertices")
	}
	if segs[1].GapLen != 50+31-1 {
		t.Fatalf("GapLen = %d, want %d", segs[1].GapLen, 50+31-1)
	}
}

func TestPopBubblesKeepsTheStrongerBranch(t *testing.T) {
	contigs := map[int]ContigInfo{
		1: {Length: 500}, 2: {Length: 500}, 3: {Length: 500}, 4: {Length: 500},
	}
	g := NewGraph(contigs)
	u := Node{ContigID: 1}
	strong := Node{ContigID: 2}
	weak := Node{ContigID: 3}
	end := Node{ContigID: 4}
	g.AddEdge(u, strong, DistanceEst{NumPairs: 10})
	g.AddEdge(strong, end, DistanceEst{NumPairs: 10})
	g.AddEdge(u, weak, DistanceEst{NumPairs: 1})
	g.AddEdge(weak, end, DistanceEst{NumPairs: 1})

	n := PopBubbles(g, 5)
	if n != 1 {
		t.Fatalf("expected 1 bubble popped, got %d", n)
	}
	if _, ok := g.HasEdge(u, strong); !ok {
		t.Fatal("expected the stronger branch to survive")
	}
	if g.OutDegree(u) != 1 {
		t.Fatalf("expected u to have 1 out-edge after popping, got %d", g.OutDegree(u))
	}
}

func TestRemoveCyclesDeletesMutualEdges(t *testing.T) {
	contigs := map[int]ContigInfo{1: {Length: 100}, 2: {Length: 100}}
	g := NewGraph(contigs)
	a := Node{ContigID: 1}
	b := Node{ContigID: 2}
	g.AddEdge(a, b, DistanceEst{NumPairs: 5})
	g.AddEdge(b, a, DistanceEst{NumPairs: 5})
	n := RemoveCycles(g)
	if n != 1 {
		t.Fatalf("expected 1 cycle removed, got %d", n)
	}
	if _, ok := g.HasEdge(a, b); ok {
		t.Fatalf("expected a->b removed")
	}
	if _, ok := g.HasEdge(b, a); ok {
		t.Fatalf("expected b->a removed")
	}
}

func TestAssembleDFSWalksChain(t *testing.T) {
	g := buildChain()
	paths := AssembleDFS(g)
	found := false
	for _, p := range paths {
		if len(p) == 3 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected one 3-node path, got %v", paths)
	}
}

func TestScaffoldEndToEnd(t *testing.T) {
	g := buildChain()
	r := Scaffold(g, Param{N: 1, S: 0}, Limits{MinContigLen: 0, MaxTipLen: 0, MaxGap: 1000})
	if r.Stats.NTotal == 0 {
		t.Fatalf("expected at least one scaffold")
	}
}

func TestBuildStatsN50(t *testing.T) {
	lengths := []int{100, 200, 300, 400, 1000}
	s := BuildStats(lengths, 0)
	if s.Sum != 2000 {
		t.Fatalf("sum = %d, want 2000", s.Sum)
	}
	if s.Max != 1000 || s.Min != 100 {
		t.Fatalf("min/max = %d/%d, want 100/1000", s.Min, s.Max)
	}
	if s.N50 == 0 {
		t.Fatalf("expected nonzero N50")
	}
}

func TestOptimizeGridSearchPrefersHigherN50(t *testing.T) {
	contigs := map[int]ContigInfo{1: {Length: 1000}, 2: {Length: 1000}, 3: {Length: 1000}}
	g := NewGraph(contigs)
	a := Node{ContigID: 1}
	b := Node{ContigID: 2}
	c := Node{ContigID: 3}
	g.AddEdge(a, b, DistanceEst{NumPairs: 15, Distance: 10, StdDev: 2})
	g.AddEdge(b, c, DistanceEst{NumPairs: 3, Distance: 10, StdDev: 2})
	g.AddComplementaryEdges()

	m := NewMemo(g, Limits{MinContigLen: 0, MaxTipLen: 0, MaxGap: 1000})
	best := m.OptimizeGridSearch(1, 20, 5, 1, 10)
	if best.Stats.N50 == 0 {
		t.Fatalf("expected a nonzero best N50")
	}
}

func TestOptimizeLineSearchTerminates(t *testing.T) {
	g := buildChain()
	m := NewMemo(g, Limits{MinContigLen: 0, MaxTipLen: 0, MaxGap: 1000})
	r := m.OptimizeLineSearch(1, 20, 5, 1, 10)
	if r.Stats.NTotal == 0 {
		t.Fatalf("expected at least one scaffold from line search")
	}
}
