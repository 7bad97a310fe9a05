package scaffold

import (
	"sort"

	"gasm/utils"
)

// Param is the (n, s) pair the optimizer searches over: n is the minimum
// number of supporting read pairs an edge needs to survive filterGraph, s
// is the maximum standard deviation of distance estimates allowed through
// removeLongEdges' sibling filter. Grounded on scaffold.cc's opt::n/opt::s.
type Param struct {
	N int
	S float64
}

// Limits bounds the cleanup pipeline the way scaffold.cc's opt:: namespace
// does: minimum contig length to keep as a scaffold seed, maximum tip
// length to prune, the maximum gap a single estimate may bridge, the
// minimum gap materialized between adjacent contigs, the maximum bubble
// branch length, the k-mer length the contigs were assembled with (needed
// by gapLength's +k-1 term), and whether RemoveTransitiveEdges runs its
// complex (longer-path) variant.
type Limits struct {
	MinContigLen int
	MaxTipLen    int
	MaxGap       int
	MinGap       int
	BubbleLen    int
	K            int
	Complex      bool
}

// Segment is one element of an assembled scaffold path: either a contig
// node or a gap pseudo-vertex materializing the inferred separation
// between the previous and next contig.
type Segment struct {
	Node   Node
	Gap    bool
	GapLen int
}

// Result is what Scaffold returns for one (n,s) run: the cleaned graph's
// assembled paths (bare node walks, used for length/N50 statistics) and
// the same paths punctuated with gap pseudo-vertices (the emitted form).
type Result struct {
	Param    Param
	Paths    [][]Node
	Segments [][]Segment
	Stats    Stats
}

// FilterGraph removes vertices whose contig is shorter than
// lim.MinContigLen and every edge whose NumPairs < p.N, mirroring
// filterGraph's two independent removeVertexIf/remove_edge_if passes.
func FilterGraph(g *Graph, p Param, lim Limits) {
	for _, n := range g.Vertices() {
		if info, ok := g.Contigs[n.ContigID]; ok && info.Length < lim.MinContigLen {
			g.RemoveVertex(n)
		}
	}
	for _, u := range g.Vertices() {
		for _, v := range g.OutEdges(u) {
			if d, ok := g.HasEdge(u, v); ok && d.NumPairs < p.N {
				g.RemoveEdge(u, v)
			}
		}
	}
}

// RemoveCycles deletes two-cycles (u->v and v->u both present), the only
// cycle shape removeCycles in the source handles; abyss-scaffold notes
// longer cycles are rare enough not to special-case.
func RemoveCycles(g *Graph) int {
	removed := 0
	seen := make(map[[2]Node]bool)
	for _, u := range g.Vertices() {
		for _, v := range g.OutEdges(u) {
			key := [2]Node{u, v}
			rkey := [2]Node{v, u}
			if seen[key] || seen[rkey] {
				continue
			}
			if _, ok := g.HasEdge(v, u); ok {
				g.RemoveEdge(u, v)
				g.RemoveEdge(v, u)
				removed++
			}
			seen[key] = true
		}
	}
	return removed
}

// ResolveForks looks at every vertex u with two or more out-edges in the
// filtered graph g. For each pair of successors (v1,v2) not already
// connected (in either direction) in g, it consults the unfiltered
// original graph g0: if exactly one of the edges v1->v2 / v2->v1 exists
// there, that ordering is copied into g, disambiguating which successor
// comes first without deleting either of u's edges. Pairs where g0 has
// both or neither ordering edge are left alone for pruneTips/
// removeRepeats downstream. Grounded on resolveForks's use of the
// pre-filter graph to break ties the filtered graph alone can't.
func ResolveForks(g, g0 *Graph) int {
	resolved := 0
	for _, u := range g.Vertices() {
		outs := g.OutEdges(u)
		if len(outs) < 2 {
			continue
		}
		for i := 0; i < len(outs); i++ {
			for j := i + 1; j < len(outs); j++ {
				v1, v2 := outs[i], outs[j]
				if _, ok := g.HasEdge(v1, v2); ok {
					continue
				}
				if _, ok := g.HasEdge(v2, v1); ok {
					continue
				}
				d1, ok1 := g0.HasEdge(v1, v2)
				d2, ok2 := g0.HasEdge(v2, v1)
				switch {
				case ok1 && !ok2:
					g.AddEdge(v1, v2, d1)
					resolved++
				case ok2 && !ok1:
					g.AddEdge(v2, v1, d2)
					resolved++
				}
			}
		}
	}
	return resolved
}

// PruneTips removes degree-0 (isolated) vertices and vertices whose single
// edge leads nowhere further (a tip of length 1 in the scaffold graph),
// grounded on pruneTips' erosion of dead-end branches below maxTipLen.
func PruneTips(g *Graph, maxTipLen int) int {
	removed := 0
	changed := true
	for changed {
		changed = false
		for _, n := range g.Vertices() {
			info := g.Contigs[n.ContigID]
			if info.Length > maxTipLen {
				continue
			}
			out, in := g.OutDegree(n), g.InDegree(n)
			if out == 0 && in <= 1 || in == 0 && out <= 1 {
				g.RemoveVertex(n)
				removed++
				changed = true
			}
		}
	}
	return removed
}

// RemoveRepeats finds transitive triples u->v->w where the direct edge
// u->w is also present, and v has another out-neighbor w2 (w2 != w)
// unrelated to w (no edge either way between w and w2): v is bridging two
// independent downstream paths through what should have been a single
// ordering edge, the signature of a repeat contig rather than a unique
// scaffold link. Each such v (and its complement) is removed from the
// graph outright, once, even if v is implicated by more than one triple.
// Grounded on removeRepeats' transitive-triple repeat detection.
func RemoveRepeats(g *Graph) int {
	repeats := make(map[Node]bool)
	for _, u := range g.Vertices() {
		for _, v := range g.OutEdges(u) {
			ws := g.OutEdges(v)
			for _, w := range ws {
				if w == v {
					continue
				}
				if _, ok := g.HasEdge(u, w); !ok {
					continue
				}
				for _, w2 := range ws {
					if w2 == w || w2 == v {
						continue
					}
					if _, ok := g.HasEdge(w, w2); ok {
						continue
					}
					if _, ok := g.HasEdge(w2, w); ok {
						continue
					}
					repeats[v] = true
				}
			}
		}
	}

	removedSet := make(map[Node]bool)
	removed := 0
	for _, v := range sortedNodes(repeats) {
		if removedSet[v] {
			continue
		}
		comp := v.Complement()
		g.RemoveVertex(v)
		g.RemoveVertex(comp)
		removedSet[v] = true
		removedSet[comp] = true
		removed++
	}
	return removed
}

func sortedNodes(set map[Node]bool) []Node {
	nodes := make([]Node, 0, len(set))
	for n := range set {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].ContigID != nodes[j].ContigID {
			return nodes[i].ContigID < nodes[j].ContigID
		}
		return !nodes[i].Reverse && nodes[j].Reverse
	})
	return nodes
}

const transitiveComplexMaxDepth = 8

// reachableBeyondDepth returns every vertex reachable from start by
// following out-edge chains for between minDepth and maxDepth hops
// (inclusive), used by RemoveTransitiveEdges' complex variant to find
// shortcuts over paths longer than the classical two-hop case.
func reachableBeyondDepth(g *Graph, start Node, minDepth, maxDepth int) map[Node]bool {
	seen := map[Node]bool{start: true}
	frontier := []Node{start}
	reach := make(map[Node]bool)
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []Node
		for _, n := range frontier {
			for _, w := range g.OutEdges(n) {
				if seen[w] {
					continue
				}
				seen[w] = true
				if depth >= minDepth {
					reach[w] = true
				}
				next = append(next, w)
			}
		}
		frontier = next
	}
	return reach
}

// RemoveTransitiveEdges deletes u->w whenever a path u->v->w already
// exists through a third vertex v, the direct edge being redundant
// evidence of the same join. When complex is set, it additionally removes
// u->w when w is reachable from some out-neighbor v of u via a chain of
// two or more further hops, the generalization to shortcuts over longer
// paths. Grounded on remove_transitive_edges and its --complex option.
func RemoveTransitiveEdges(g *Graph, complex bool) int {
	removed := 0
	for _, u := range g.Vertices() {
		for _, v := range g.OutEdges(u) {
			for _, w := range g.OutEdges(v) {
				if w == v {
					continue
				}
				if _, ok := g.HasEdge(u, w); ok {
					g.RemoveEdge(u, w)
					removed++
				}
			}
			if !complex {
				continue
			}
			for w := range reachableBeyondDepth(g, v, 2, transitiveComplexMaxDepth) {
				if _, ok := g.HasEdge(u, w); ok {
					g.RemoveEdge(u, w)
					removed++
				}
			}
		}
	}
	return removed
}

// RemoveWeakEdges removes edge (u1,v2) when it is the weak leg of an exact
// diamond: u1 has out-degree 2 to {v1,v2}; v2 has in-degree 2, from u1 and
// some u2; v1 has in-degree 1 (no other path reaches it); u2 has out-degree
// 1 (its only edge is the one into v2); and numPairs(u1,v2) is less than
// both numPairs(u1,v1) and numPairs(u2,v2). Grounded on removeWeakEdges'
// diamond-pattern scan.
func RemoveWeakEdges(g *Graph) int {
	removed := 0
	for _, u1 := range g.Vertices() {
		outs := g.OutEdges(u1)
		if len(outs) != 2 {
			continue
		}
		for idx, v2 := range outs {
			v1 := outs[1-idx]
			if g.InDegree(v2) != 2 || g.InDegree(v1) != 1 {
				continue
			}
			var u2 Node
			found := false
			for _, w := range g.InEdges(v2) {
				if w != u1 {
					u2, found = w, true
				}
			}
			if !found || g.OutDegree(u2) != 1 {
				continue
			}
			d1, ok1 := g.HasEdge(u1, v1)
			d2, ok2 := g.HasEdge(u1, v2)
			d3, ok3 := g.HasEdge(u2, v2)
			if !ok1 || !ok2 || !ok3 {
				continue
			}
			if d2.NumPairs < d1.NumPairs && d2.NumPairs < d3.NumPairs {
				g.RemoveEdge(u1, v2)
				removed++
			}
		}
	}
	return removed
}

// walkBoundedChain follows a unique out-edge chain away from start, up to
// maxLen nodes. It always appends the vertex a single out-edge leads to
// (including a rejoin point with indegree > 1, since that's the vertex two
// branches need to match on), but stops once it does, since a vertex with
// more than one predecessor isn't a chain interior to keep walking through.
// Used by PopBubbles to walk each candidate branch of a fork far enough to
// tell whether it rejoins the other branch.
func walkBoundedChain(g *Graph, start Node, maxLen int) []Node {
	path := []Node{start}
	cur := start
	for len(path) < maxLen {
		outs := g.OutEdges(cur)
		if len(outs) != 1 {
			break
		}
		next := outs[0]
		path = append(path, next)
		if g.InDegree(next) != 1 {
			break
		}
		cur = next
	}
	return path
}

func pathNumPairs(g *Graph, from Node, path []Node) int {
	total := 0
	prev := from
	for _, n := range path {
		if d, ok := g.HasEdge(prev, n); ok {
			total += d.NumPairs
		}
		prev = n
	}
	return total
}

// removeLoserBranch deletes the losing branch of a popped bubble: if it's
// a single node (the branch rejoins immediately), just the edge from u is
// dropped since that node is the shared rejoin point the winning branch
// also ends on; otherwise every node up to (but not including) the last
// one is removed outright, which also drops u's edge into the branch as a
// side effect of removing the branch's first node.
func removeLoserBranch(g *Graph, u Node, path []Node) {
	if len(path) == 1 {
		g.RemoveEdge(u, path[0])
		return
	}
	for _, n := range path[:len(path)-1] {
		g.RemoveVertex(n)
	}
}

// PopBubbles finds simple two-branch bubbles in the scaffold graph: a
// vertex with out-degree >= 2 whose branches, walked up to maxLen nodes
// each, rejoin at a common vertex. The branch with the lower total
// NumPairs is removed; an exact tie leaves both alone rather than guessing.
// Grounded on scaffold.cc's step-7 bubble pop over the scaffold graph
// (distinct from PopBubbles in the de Bruijn graph, which compares mean
// per-vertex coverage instead of total read-pair support).
func PopBubbles(g *Graph, maxLen int) int {
	if maxLen < 1 {
		maxLen = 1
	}
	removed := 0
	for _, u := range g.Vertices() {
		outs := g.OutEdges(u)
		if len(outs) < 2 {
			continue
		}
		branches := make([][]Node, len(outs))
		for i, v := range outs {
			branches[i] = walkBoundedChain(g, v, maxLen)
		}
		for i := 0; i < len(branches); i++ {
			for j := i + 1; j < len(branches); j++ {
				a, b := branches[i], branches[j]
				if len(a) == 0 || len(b) == 0 {
					continue
				}
				if a[len(a)-1] != b[len(b)-1] {
					continue
				}
				pa, pb := pathNumPairs(g, u, a), pathNumPairs(g, u, b)
				if pa == pb {
					continue
				}
				loser := a
				if pa > pb {
					loser = b
				}
				removeLoserBranch(g, u, loser)
				removed++
			}
		}
	}
	return removed
}

// RemoveLongEdges deletes every edge whose estimated distance exceeds
// lim.MaxGap or whose StdDev exceeds s, the sibling filter in
// filterGraph/removeLongEdges that rejects estimates too uncertain to
// trust even though they cleared the -n threshold.
func RemoveLongEdges(g *Graph, p Param, lim Limits) int {
	removed := 0
	for _, u := range g.Vertices() {
		for _, v := range g.OutEdges(u) {
			d, ok := g.HasEdge(u, v)
			if !ok {
				continue
			}
			if d.Distance > lim.MaxGap || (p.S > 0 && d.StdDev > p.S) {
				g.RemoveEdge(u, v)
				removed++
			}
		}
	}
	return removed
}

// AssembleDFS walks every remaining weakly-connected chain of the cleaned
// graph into a linear path: starting from each vertex with in-degree 0 (or
// part of an unvisited cycle remnant), follow unambiguous single
// out-edges until a fork, dead end, or already-visited vertex is reached.
// Grounded on assembleDFS' depth-first path construction over the cleaned
// distance-estimate graph.
func AssembleDFS(g *Graph) [][]Node {
	visited := make(map[Node]bool)
	var paths [][]Node

	walk := func(start Node) []Node {
		path := []Node{start}
		visited[start] = true
		cur := start
		for {
			outs := g.OutEdges(cur)
			if len(outs) != 1 {
				break
			}
			next := outs[0]
			if visited[next] || g.InDegree(next) != 1 {
				break
			}
			path = append(path, next)
			visited[next] = true
			cur = next
		}
		return path
	}

	for _, n := range g.Vertices() {
		if visited[n] {
			continue
		}
		if g.InDegree(n) == 0 {
			paths = append(paths, walk(n))
		}
	}
	for _, n := range g.Vertices() {
		if !visited[n] {
			paths = append(paths, walk(n))
		}
	}
	return paths
}

// Scaffold runs the full cleanup pipeline for one parameter pair over a
// copy of g0 and returns the assembled paths and their statistics,
// mirroring scaffold()'s fixed pass order: filter, remove cycles, resolve
// forks (against the unfiltered g0), prune tips, remove repeats, remove
// transitive edges, prune tips again, pop bubbles, remove weak edges,
// remove long edges, assemble.
func Scaffold(g0 *Graph, p Param, lim Limits) Result {
	g := g0.Clone()
	FilterGraph(g, p, lim)
	RemoveCycles(g)
	ResolveForks(g, g0)
	PruneTips(g, lim.MaxTipLen)
	RemoveRepeats(g)
	RemoveTransitiveEdges(g, lim.Complex)
	PruneTips(g, lim.MaxTipLen)
	PopBubbles(g, bubbleLenOrDefault(lim.BubbleLen))
	RemoveWeakEdges(g)
	RemoveLongEdges(g, p, lim)
	paths := AssembleDFS(g)

	minGap := lim.MinGap
	if minGap <= 0 {
		minGap = 50
	}
	lengths := make([]int, 0, len(paths))
	segments := make([][]Segment, 0, len(paths))
	for _, path := range paths {
		lengths = append(lengths, pathLength(g, path, minGap, lim.K))
		segments = append(segments, BuildSegments(g, path, minGap, lim.K))
	}
	sort.Ints(lengths)
	return Result{Param: p, Paths: paths, Segments: segments, Stats: BuildStats(lengths, 0)}
}

func bubbleLenOrDefault(n int) int {
	if n <= 0 {
		return 10
	}
	return n
}

// pathLength sums contig lengths plus inferred gaps along a path, the
// scaffold's total span the way buildScaffoldLengthHistogram tallies it.
func pathLength(g *Graph, path []Node, minGap, k int) int {
	total := 0
	for i, n := range path {
		total += g.Contigs[n.ContigID].Length
		if i+1 < len(path) {
			if d, ok := g.HasEdge(n, path[i+1]); ok {
				total += gapLength(d, minGap, k)
			}
		}
	}
	return total
}

// BuildSegments punctuates path with gap pseudo-vertices between
// consecutive contigs, each sized by gapLength, the representation
// addDistEst's assembled scaffold record actually emits (contig, gap,
// contig, gap, ...) rather than a bare node list.
func BuildSegments(g *Graph, path []Node, minGap, k int) []Segment {
	if len(path) == 0 {
		return nil
	}
	segs := make([]Segment, 0, len(path)*2-1)
	segs = append(segs, Segment{Node: path[0]})
	for i := 0; i+1 < len(path); i++ {
		gl := k - 1
		if gl < 1 {
			gl = 1
		}
		if d, ok := g.HasEdge(path[i], path[i+1]); ok {
			gl = gapLength(d, minGap, k)
		}
		segs = append(segs, Segment{Gap: true, GapLen: gl})
		segs = append(segs, Segment{Node: path[i+1]})
	}
	return segs
}

// gapLength applies the gap-length-by-convention rule from addDistEst:
// max(distance, minGap) + k - 1, floored at 1 so adjoining contigs are
// never collapsed to zero or negative separation.
func gapLength(d DistanceEst, minGap, k int) int {
	return utils.MaxInt(utils.MaxInt(d.Distance, minGap)+k-1, 1)
}
