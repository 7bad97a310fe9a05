package dot

import (
	"strings"
	"testing"

	"gasm/internal/graph"
	"gasm/internal/kmer"
)

func TestReadDistanceGraphRoundTripsWriteScaffoldGraph(t *testing.T) {
	want := []EdgeAttrs{
		{From: "1+", To: "2+", Distance: 50, N: 10, StdDev: 2.5},
		{From: "2+", To: "3-", Distance: -5, N: 3, StdDev: 1.25},
	}
	out := WriteScaffoldGraph([]string{"1+", "2+", "3-"}, want)

	got, err := ReadDistanceGraph(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ReadDistanceGraph: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d edges, want %d: %v", len(got), len(want), got)
	}
	byFrom := make(map[string]EdgeAttrs)
	for _, e := range got {
		byFrom[e.From+">"+e.To] = e
	}
	for _, w := range want {
		g, ok := byFrom[w.From+">"+w.To]
		if !ok {
			t.Fatalf("missing edge %s -> %s in %v", w.From, w.To, got)
		}
		if g.Distance != w.Distance || g.N != w.N || g.StdDev != w.StdDev {
			t.Fatalf("edge %s -> %s = %+v, want %+v", w.From, w.To, g, w)
		}
	}
}

func TestWriteAdjacencyContainsNodes(t *testing.T) {
	tbl := graph.NewVertexTable(4, 4)
	for _, s := range []string{"ACGT", "CGTA", "GTAC"} {
		km, _ := kmer.New([]byte(s))
		canon, _ := km.Canonical()
		tbl.Insert(canon)
	}
	tbl.GenerateAdjacency()
	out := WriteAdjacency(tbl)
	if !strings.Contains(out, "digraph") {
		t.Fatalf("expected a digraph declaration, got %q", out)
	}
}

func TestWriteScaffoldGraphIncludesEdgeAttrs(t *testing.T) {
	edges := []EdgeAttrs{{From: "1+", To: "2+", Distance: 50, N: 10, StdDev: 2.5}}
	out := WriteScaffoldGraph([]string{"1+", "2+"}, edges)
	if !strings.Contains(out, "d=") || !strings.Contains(out, "50") || !strings.Contains(out, "n=") {
		t.Fatalf("expected distance/n attributes in DOT output, got %q", out)
	}
}
