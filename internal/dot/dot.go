// Package dot renders adjacency and scaffold graphs to Graphviz DOT,
// grounded on constructdbg.go's GraphvizDBGArr and findPath.go's
// GraphvizDBG, which both build a gographviz.Graph and print it with
// d=/n=/s= edge attributes (distance, n-pairs, standard deviation).
package dot

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/awalterschulze/gographviz"

	"gasm/internal/graph"
	"gasm/internal/kmer"
)

// WriteAdjacency renders the live vertices of t as a DOT graph: one node
// per canonical k-mer, one edge per sense-direction adjacency.
func WriteAdjacency(t *graph.VertexTable) string {
	g := gographviz.NewGraph()
	g.SetName("adjacency")
	g.SetDir(true)

	t.Each(func(k kmer.Kmer, v *graph.Vertex) {
		name := quote(k.String())
		g.AddNode("adjacency", name, map[string]string{
			"label": quote(k.String() + " x" + strconv.Itoa(int(v.Mult))),
		})
	})
	t.Each(func(k kmer.Kmer, v *graph.Vertex) {
		for b := byte(0); b < 4; b++ {
			if !v.SenseEdge.Set(b) {
				continue
			}
			nk := k.Shift(kmer.Forward, b)
			canon, _ := nk.Canonical()
			if _, ok := t.Get(canon); ok {
				g.AddEdge(quote(k.String()), quote(canon.String()), true, nil)
			}
		}
	})
	return g.String()
}

// EdgeAttrs is one scaffold-graph edge's distance-estimate attributes,
// grounded on scaffold.cc's DistanceEst (distance, number of supporting
// pairs "n", standard deviation "s").
type EdgeAttrs struct {
	From, To string
	Distance int
	N        int
	StdDev   float64
}

// WriteScaffoldGraph renders a set of scaffold-graph edges as DOT, with
// d=/n=/s= attributes on each edge matching the teacher's GraphvizDBG
// output convention.
func WriteScaffoldGraph(nodes []string, edges []EdgeAttrs) string {
	g := gographviz.NewGraph()
	g.SetName("scaffold")
	g.SetDir(true)
	for _, n := range nodes {
		g.AddNode("scaffold", quote(n), nil)
	}
	for _, e := range edges {
		// d/n/s are not Graphviz attribute names, which AddEdge rejects, so
		// the edge is added to the edge set directly.
		g.Edges.Add(&gographviz.Edge{
			Src: quote(e.From),
			Dst: quote(e.To),
			Dir: true,
			Attrs: gographviz.Attrs{
				"d": strconv.Itoa(e.Distance),
				"n": strconv.Itoa(e.N),
				"s": strconv.FormatFloat(e.StdDev, 'f', 2, 64),
			},
		})
	}
	return g.String()
}

func quote(s string) string { return `"` + s + `"` }

// edgeLine matches one scaffold-graph edge statement, tolerant of the
// optional quoting either gographviz's own writer or a hand-edited
// distance-estimate file might use: `"1+" -> "2+" [d=50,n=10,s=2.50];`.
// gographviz's own DOT parser is never exercised by anything else in this
// repository (the teacher only ever writes DOT, never reads it back), so
// rather than depend on an unverified read path through it, the graph this
// package round-trips through WriteScaffoldGraph is read back with this
// small dedicated scanner instead.
var edgeLine = regexp.MustCompile(`"?([^"\s]+)"?\s*->\s*"?([^"\s]+)"?\s*(?:\[([^\]]*)\])?`)

// ReadDistanceGraph parses a distance-estimate DOT file as written by
// WriteScaffoldGraph: one edge statement per line, with optional d=/n=/s=
// attributes carrying the DistanceEst a scaffold-graph edge needs. Lines
// that aren't edge statements (the digraph header, a bare node
// declaration, closing brace) are skipped.
func ReadDistanceGraph(r io.Reader) ([]EdgeAttrs, error) {
	var edges []EdgeAttrs
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || !strings.Contains(line, "->") {
			continue
		}
		m := edgeLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		e := EdgeAttrs{From: m[1], To: m[2]}
		for _, kv := range strings.Split(m[3], ",") {
			kv = strings.TrimSpace(strings.TrimRight(kv, ";"))
			if kv == "" {
				continue
			}
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.Trim(strings.TrimSpace(parts[1]), `"`)
			switch key {
			case "d":
				d, err := strconv.Atoi(val)
				if err != nil {
					return nil, fmt.Errorf("dot: bad distance attribute %q: %w", val, err)
				}
				e.Distance = d
			case "n":
				n, err := strconv.Atoi(val)
				if err != nil {
					return nil, fmt.Errorf("dot: bad n attribute %q: %w", val, err)
				}
				e.N = n
			case "s":
				s, err := strconv.ParseFloat(val, 64)
				if err != nil {
					return nil, fmt.Errorf("dot: bad stddev attribute %q: %w", val, err)
				}
				e.StdDev = s
			}
		}
		edges = append(edges, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return edges, nil
}
