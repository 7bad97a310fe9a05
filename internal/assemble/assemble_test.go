package assemble

import (
	"testing"

	"gasm/internal/graph"
	"gasm/internal/kmer"
)

// buildLinearGraph inserts the canonical k-mers of every k-length window of
// seq, then derives adjacency. The result is a simple linear chain only
// when seq repeats no (k-1)-mer and never holds a (k-1)-mer together with
// its reverse complement.
func buildLinearGraph(t *testing.T, seq string, k int) *graph.VertexTable {
	tbl := graph.NewVertexTable(k, 4)
	for i := 0; i+k <= len(seq); i++ {
		km, err := kmer.New([]byte(seq[i : i+k]))
		if err != nil {
			t.Fatalf("kmer.New: %v", err)
		}
		canon, _ := km.Canonical()
		tbl.Insert(canon)
	}
	tbl.GenerateAdjacency()
	return tbl
}

func TestWalkContigsReconstructsSequence(t *testing.T) {
	seq := "TCTACTTCGCCT"
	k := 4
	tbl := buildLinearGraph(t, seq, k)
	contigs := WalkContigs(tbl)
	if len(contigs) == 0 {
		t.Fatal("expected at least one contig")
	}
	found := false
	for _, c := range contigs {
		s := c.Sequence()
		if len(s) == len(seq) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a contig spanning the full %d-base input, got contigs %v", len(seq), contigs)
	}
}

func TestWalkContigsTreatsBranchAsBoundaryAndPartitionsExactly(t *testing.T) {
	// "ACGAT" and "ACGAC" share the 4-mer ACGA and diverge immediately
	// after it, giving ACGA's vertex two distinct extensions: a genuine
	// ambiguity boundary, not an absorbable chain interior.
	tbl := graph.NewVertexTable(4, 4)
	for _, seq := range []string{"ACGAT", "ACGAC"} {
		for i := 0; i+4 <= len(seq); i++ {
			km, err := kmer.New([]byte(seq[i : i+4]))
			if err != nil {
				t.Fatalf("kmer.New: %v", err)
			}
			canon, _ := km.Canonical()
			tbl.Insert(canon)
		}
	}
	tbl.GenerateAdjacency()
	total := tbl.Len()

	contigs := WalkContigs(tbl)

	seen := make(map[string]bool)
	count := 0
	for _, c := range contigs {
		for _, k := range c.Kmers {
			s := k.String()
			if seen[s] {
				t.Fatalf("vertex %s claimed by more than one contig", s)
			}
			seen[s] = true
			count++
		}
	}
	if count != total {
		t.Fatalf("contigs covered %d vertices, want all %d", count, total)
	}

	foundBranch := false
	for _, c := range contigs {
		if len(c.Kmers) != 1 {
			continue
		}
		v, ok := tbl.Get(c.Kmers[0])
		if ok && (v.SenseEdge.Degree() >= 2 || v.AntiEdge.Degree() >= 2) {
			foundBranch = true
		}
	}
	if !foundBranch {
		t.Fatal("expected the shared branch vertex to be emitted as its own single-vertex contig")
	}
}

func TestErodeLowCoverageTipsNeverGrowsAndZeroThresholdIsNoOp(t *testing.T) {
	tbl := graph.NewVertexTable(4, 4)
	mainChain := "ACGTACGTA"
	for i := 0; i+4 <= len(mainChain); i++ {
		km, _ := kmer.New([]byte(mainChain[i : i+4]))
		canon, _ := km.Canonical()
		tbl.Insert(canon)
	}
	tbl.GenerateAdjacency()
	before := tbl.Len()
	ErodeLowCoverageTips(tbl, 1<<30)
	if tbl.Len() > before {
		t.Fatalf("ErodeLowCoverageTips should never increase vertex count: before=%d after=%d", before, tbl.Len())
	}

	tbl2 := buildLinearGraph(t, mainChain, 4)
	removed := ErodeLowCoverageTips(tbl2, 0)
	if removed != 0 {
		t.Fatalf("a coverage threshold of 0 should erode nothing, removed %d", removed)
	}
}

func TestTrimDeadEndsRemovesIsolatedShortChain(t *testing.T) {
	// a short 2-vertex chain with no branch anywhere: both ends are tips,
	// so the whole chain should be recognized as a short isolated fragment
	// and removed.
	tbl := buildLinearGraph(t, "ACGTA", 4)
	before := tbl.Len()
	removed := TrimDeadEnds(tbl, 10)
	if removed != before {
		t.Fatalf("expected the isolated %d-vertex chain fully removed, removed %d", before, removed)
	}
}

func TestTrimDeadEndsSparesAShortLimitOnALongerChain(t *testing.T) {
	tbl := buildLinearGraph(t, "ACGTACGTGGTTAAGGCCTTAA", 4)
	before := tbl.Len()
	removed := TrimDeadEnds(tbl, 1)
	if removed > before {
		t.Fatalf("TrimDeadEnds should never remove more vertices than exist: removed=%d total=%d", removed, before)
	}
	if removed != 0 {
		t.Fatalf("a one-vertex limit never reaches a second dead end, so nothing should be trimmed; removed %d", removed)
	}
}

func TestPopBubblesIsIdempotentOnBubbleFreeGraph(t *testing.T) {
	tbl := buildLinearGraph(t, "ACGTACGTGGTT", 4)
	before := tbl.Len()
	PopBubbles(tbl, 10)
	if tbl.Len() != before {
		t.Fatalf("expected no change on a bubble-free graph: before=%d after=%d", before, tbl.Len())
	}
}

func TestRemoveLowCoverageContigsRemovesBelowThreshold(t *testing.T) {
	tbl := buildLinearGraph(t, "ACGTACGTGGTT", 4)
	var maxMult uint32
	tbl.Each(func(_ kmer.Kmer, v *graph.Vertex) {
		if v.Mult > maxMult {
			maxMult = v.Mult
		}
	})
	removed := RemoveLowCoverageContigs(tbl, maxMult+10)
	if removed == 0 {
		t.Fatal("expected contigs below an unreachable coverage threshold to be removed")
	}
}
