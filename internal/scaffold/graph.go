// Package scaffold implements the scaffolder: a distance-estimate graph
// cleanup pipeline over oriented contig vertices, DFS path assembly,
// contiguity statistics, and a memoized (n,s) parameter search that
// maximizes scaffold N50.
//
// Grounded function-for-function on original_source/Scaffold/scaffold.cc
// (ABySS's abyss-scaffold): filterGraph, removeCycles, resolveForks,
// pruneTips, removeRepeats, remove_transitive_edges, removeWeakEdges,
// removeLongEdges, assembleDFS, and the ScaffoldParam/ScaffoldResult/
// ScaffoldMemo optimize_n/optimize_s/optimize_grid_search/
// optimize_line_search family.
package scaffold

import "sort"

// Node identifies one oriented contig end: ContigID with Reverse false is
// its sense orientation, true its antisense orientation. Every edge and
// every removal has a mirror on the complementary pair of nodes, added by
// AddComplementaryEdges at load time.
type Node struct {
	ContigID int
	Reverse  bool
}

// Complement returns the node representing the opposite orientation of the
// same contig.
func (n Node) Complement() Node { return Node{n.ContigID, !n.Reverse} }

// DistanceEst is one scaffold-graph edge's supporting evidence: how many
// read pairs suggested it (NumPairs), the estimated gap (Distance, which
// may be negative for an overlap), and its StdDev. StdDev == 0 with a
// negative Distance marks an exact overlap (isOverlap in the source).
type DistanceEst struct {
	NumPairs int
	Distance int
	StdDev   float64
}

func (d DistanceEst) isOverlap() bool { return d.StdDev == 0 && d.Distance < 0 }

// ContigInfo is static per-vertex data: its sequence length, carried
// through filterGraph's short-contig removal and the final length
// histogram.
type ContigInfo struct {
	Length int
}

// Graph is a distance-estimate graph: one vertex per oriented contig end,
// one edge per distance estimate between two ends. Adjacency is stored as
// nested maps rather than an edge list, since every pass here either scans
// all out-edges of a vertex or tests a specific pair for an edge.
type Graph struct {
	Contigs map[int]ContigInfo
	out     map[Node]map[Node]DistanceEst
	in      map[Node]map[Node]DistanceEst
}

// NewGraph creates an empty graph over the given per-contig metadata.
func NewGraph(contigs map[int]ContigInfo) *Graph {
	return &Graph{
		Contigs: contigs,
		out:     make(map[Node]map[Node]DistanceEst),
		in:      make(map[Node]map[Node]DistanceEst),
	}
}

// Clone deep-copies the graph so a pipeline run never mutates the original
// (scaffold() in the source operates on "Graph g(g0)", a copy of g0).
func (g *Graph) Clone() *Graph {
	c := NewGraph(g.Contigs)
	for u, nbrs := range g.out {
		m := make(map[Node]DistanceEst, len(nbrs))
		for v, d := range nbrs {
			m[v] = d
		}
		c.out[u] = m
	}
	for v, nbrs := range g.in {
		m := make(map[Node]DistanceEst, len(nbrs))
		for u, d := range nbrs {
			m[u] = d
		}
		c.in[v] = m
	}
	return c
}

func (g *Graph) ensure(n Node) {
	if _, ok := g.out[n]; !ok {
		g.out[n] = make(map[Node]DistanceEst)
	}
	if _, ok := g.in[n]; !ok {
		g.in[n] = make(map[Node]DistanceEst)
	}
}

// AddEdge adds or overwrites the edge u->v.
func (g *Graph) AddEdge(u, v Node, d DistanceEst) {
	g.ensure(u)
	g.ensure(v)
	g.out[u][v] = d
	g.in[v][u] = d
}

// HasEdge reports whether u->v exists.
func (g *Graph) HasEdge(u, v Node) (DistanceEst, bool) {
	if nbrs, ok := g.out[u]; ok {
		d, ok := nbrs[v]
		return d, ok
	}
	return DistanceEst{}, false
}

// RemoveEdge deletes u->v if present.
func (g *Graph) RemoveEdge(u, v Node) {
	if nbrs, ok := g.out[u]; ok {
		delete(nbrs, v)
	}
	if nbrs, ok := g.in[v]; ok {
		delete(nbrs, u)
	}
}

// RemoveVertex deletes n and every edge touching it.
func (g *Graph) RemoveVertex(n Node) {
	for v := range g.out[n] {
		delete(g.in[v], n)
	}
	for u := range g.in[n] {
		delete(g.out[u], n)
	}
	delete(g.out, n)
	delete(g.in, n)
}

// ClearOutEdges removes every outgoing edge from n, without removing n
// itself.
func (g *Graph) ClearOutEdges(n Node) {
	for v := range g.out[n] {
		delete(g.in[v], n)
	}
	g.out[n] = make(map[Node]DistanceEst)
}

func (g *Graph) OutDegree(n Node) int { return len(g.out[n]) }
func (g *Graph) InDegree(n Node) int  { return len(g.in[n]) }

// Vertices returns every vertex currently in the graph, sorted for
// deterministic iteration (the source's boost vertex_iterator order is
// insertion order; sorting here makes passes reproducible independent of
// map iteration).
func (g *Graph) Vertices() []Node {
	seen := make(map[Node]bool)
	for u := range g.out {
		seen[u] = true
	}
	for v := range g.in {
		seen[v] = true
	}
	nodes := make([]Node, 0, len(seen))
	for n := range seen {
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

// OutEdges returns the sorted neighbors of n's outgoing edges.
func (g *Graph) OutEdges(n Node) []Node {
	nbrs := g.out[n]
	vs := make([]Node, 0, len(nbrs))
	for v := range nbrs {
		vs = append(vs, v)
	}
	sort.Slice(vs, func(i, j int) bool {
		if vs[i].ContigID != vs[j].ContigID {
			return vs[i].ContigID < vs[j].ContigID
		}
		return !vs[i].Reverse && vs[j].Reverse
	})
	return vs
}

// InEdges returns the sorted neighbors of n's incoming edges.
func (g *Graph) InEdges(n Node) []Node {
	nbrs := g.in[n]
	vs := make([]Node, 0, len(nbrs))
	for u := range nbrs {
		vs = append(vs, u)
	}
	sort.Slice(vs, func(i, j int) bool {
		if vs[i].ContigID != vs[j].ContigID {
			return vs[i].ContigID < vs[j].ContigID
		}
		return !vs[i].Reverse && vs[j].Reverse
	})
	return vs
}

// AddComplementaryEdges ensures that for every edge u->v with estimate d,
// the mirror edge v'->u' (complementary orientations) also exists with the
// same estimate, establishing the reverse-complement symmetry invariant
// the distance-estimate graph must hold.
func (g *Graph) AddComplementaryEdges() {
	type pair struct {
		u, v Node
		d    DistanceEst
	}
	var pending []pair
	for u, nbrs := range g.out {
		for v, d := range nbrs {
			pending = append(pending, pair{u, v, d})
		}
	}
	for _, p := range pending {
		uc, vc := p.v.Complement(), p.u.Complement()
		if _, ok := g.HasEdge(uc, vc); !ok {
			g.AddEdge(uc, vc, p.d)
		}
	}
}
