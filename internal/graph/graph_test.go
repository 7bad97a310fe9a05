package graph

import (
	"testing"

	"gasm/internal/kmer"
)

func mustKmer(t *testing.T, s string) kmer.Kmer {
	k, err := kmer.New([]byte(s))
	if err != nil {
		t.Fatalf("kmer.New(%q): %v", s, err)
	}
	return k
}

func TestInsertIncrementsMult(t *testing.T) {
	tbl := NewVertexTable(4, 4)
	k := mustKmer(t, "ACGT")
	canon, _ := k.Canonical()
	tbl.Insert(canon)
	tbl.Insert(canon)
	v, ok := tbl.Get(canon)
	if !ok {
		t.Fatal("expected vertex to exist")
	}
	if v.Mult != 2 {
		t.Fatalf("Mult = %d, want 2", v.Mult)
	}
}

func TestCleanupRemovesOnlyDeleted(t *testing.T) {
	tbl := NewVertexTable(4, 4)
	a, _ := mustKmer(t, "AAAA").Canonical()
	b, _ := mustKmer(t, "CCCC").Canonical()
	tbl.Insert(a)
	tbl.Insert(b)
	va, _ := tbl.Get(a)
	va.SetFlag(FlagDeleted)
	tbl.Cleanup()
	if _, ok := tbl.Get(a); ok {
		t.Fatal("expected deleted vertex removed")
	}
	if _, ok := tbl.Get(b); !ok {
		t.Fatal("expected live vertex to survive cleanup")
	}
	if tbl.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tbl.Len())
	}
}

func TestGenerateAdjacencyLinearChain(t *testing.T) {
	tbl := NewVertexTable(3, 4)
	// chain ACG -> CGT -> GTA, canonical forms may differ but adjacency
	// should still connect via the shared overlap.
	for _, s := range []string{"ACG", "CGT", "GTA"} {
		k, _ := kmer.New([]byte(s))
		canon, _ := k.Canonical()
		tbl.Insert(canon)
	}
	tbl.GenerateAdjacency()
	total := 0
	tbl.Each(func(_ kmer.Kmer, v *Vertex) {
		total += v.SenseEdge.Degree() + v.AntiEdge.Degree()
	})
	if total == 0 {
		t.Fatal("expected nonzero adjacency across the chain")
	}
}

func TestHistogramThresholdFindsLocalMinimum(t *testing.T) {
	h := Histogram{1: 100, 2: 20, 3: 5, 4: 50, 5: 60}
	kc, found := h.Threshold()
	if !found {
		t.Fatal("expected a local minimum")
	}
	if kc != 3 {
		t.Fatalf("Threshold() = %d, want 3", kc)
	}
}

func TestHistogramThresholdMonotonicNotFound(t *testing.T) {
	h := Histogram{1: 100, 2: 80, 3: 60, 4: 40}
	if _, found := h.Threshold(); found {
		t.Fatal("expected no local minimum in a monotonically decreasing histogram")
	}
}

func TestInsertMaskedEqualityCollapsesOntoOneVertex(t *testing.T) {
	// mask "1,1,0,1" treats position 2 as a don't-care, so ACGT and ACTT
	// collapse onto the same stored vertex; AAGT (differs at position 1,
	// significant) must not.
	mask := []bool{true, true, false, true}
	tbl := NewVertexTable(4, 4).WithMask(mask)

	a := mustKmer(t, "ACGT")
	b := mustKmer(t, "ACTT")
	c := mustKmer(t, "AAGT")
	tbl.Insert(a)
	tbl.Insert(b)
	tbl.Insert(c)

	if tbl.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (ACGT/ACTT masked-equal, AAGT distinct)", tbl.Len())
	}
	va, ok := tbl.Get(a)
	if !ok {
		t.Fatal("expected ACGT's vertex to be found under the mask")
	}
	if va.Mult != 2 {
		t.Fatalf("Mult = %d, want 2 (one insert each for ACGT and masked-equal ACTT)", va.Mult)
	}
	if va.Kmer != a {
		t.Fatalf("Kmer = %v, want the first-seen real bases %v, not a masked/zeroed form", va.Kmer, a)
	}
}

func TestEdgeMaskDegree(t *testing.T) {
	var m EdgeMask
	m = m.With(0).With(2)
	if m.Degree() != 2 {
		t.Fatalf("Degree() = %d, want 2", m.Degree())
	}
	m = m.Without(0)
	if m.Degree() != 1 {
		t.Fatalf("Degree() after Without = %d, want 1", m.Degree())
	}
}
