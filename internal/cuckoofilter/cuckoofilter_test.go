package cuckoofilter

import (
	"testing"

	"gasm/internal/kmer"
)

func mustKmer(t *testing.T, s string) kmer.Kmer {
	k, err := kmer.New([]byte(s))
	if err != nil {
		t.Fatalf("kmer.New(%q): %v", s, err)
	}
	canon, _ := k.Canonical()
	return canon
}

func TestInsertKmerIncrementsCount(t *testing.T) {
	cf := MakeCuckooFilter(1<<10, 16)
	k := mustKmer(t, "ACGTACGTACGTACGT")

	if got := cf.GetKmerCount(k); got != 0 {
		t.Fatalf("unseen kmer count = %d, want 0", got)
	}
	for i := 0; i < 3; i++ {
		cf.InsertKmer(k)
	}
	if got := cf.GetKmerCount(k); got != 3 {
		t.Fatalf("after 3 inserts count = %d, want 3", got)
	}
}

func TestGetKmerCountSaturatesAtMaxC(t *testing.T) {
	cf := MakeCuckooFilter(1<<10, 16)
	k := mustKmer(t, "TTTTACGTACGTACGT")
	for i := 0; i < MAX_C+5; i++ {
		cf.InsertKmer(k)
	}
	if got := cf.GetKmerCount(k); got != MAX_C {
		t.Fatalf("saturated count = %d, want %d", got, MAX_C)
	}
}

func TestLoadStatsCountsOccupiedSlots(t *testing.T) {
	cf := MakeCuckooFilter(1<<10, 16)
	occupied, load := cf.LoadStats()
	if occupied != 0 || load != 0 {
		t.Fatalf("empty filter stats = (%d, %f), want (0, 0)", occupied, load)
	}
	cf.InsertKmer(mustKmer(t, "ACGTACGTACGTACGT"))
	occupied, _ = cf.LoadStats()
	if occupied != 1 {
		t.Fatalf("occupied after one insert = %d, want 1", occupied)
	}
}
