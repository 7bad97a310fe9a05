package graph

import (
	"path/filepath"
	"testing"

	"gasm/internal/kmer"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	tbl := NewVertexTable(4, 4)
	for _, s := range []string{"ACGT", "CGTA", "GTAC"} {
		km, err := kmer.New([]byte(s))
		if err != nil {
			t.Fatalf("kmer.New: %v", err)
		}
		canon, _ := km.Canonical()
		tbl.Insert(canon)
	}
	tbl.GenerateAdjacency()

	path := filepath.Join(t.TempDir(), "graph.bin")
	if err := Save(tbl, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path, 4, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Len() != tbl.Len() {
		t.Fatalf("loaded %d vertices, want %d", loaded.Len(), tbl.Len())
	}
	var mismatches int
	tbl.Each(func(k kmer.Kmer, v *Vertex) {
		lv, ok := loaded.Get(k)
		if !ok || lv.Mult != v.Mult || lv.SenseEdge != v.SenseEdge || lv.AntiEdge != v.AntiEdge {
			mismatches++
		}
	})
	if mismatches != 0 {
		t.Fatalf("%d vertices round-tripped incorrectly", mismatches)
	}
}
