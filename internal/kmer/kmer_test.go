package kmer

import "testing"

func TestNewAndString(t *testing.T) {
	k, err := New([]byte("ACGTACGT"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := k.String(); got != "ACGTACGT" {
		t.Fatalf("String() = %q, want ACGTACGT", got)
	}
}

func TestNewRejectsBadBase(t *testing.T) {
	if _, err := New([]byte("ACGN")); err == nil {
		t.Fatal("expected error for non-ACGT base")
	}
}

func TestReverseComplement(t *testing.T) {
	k, _ := New([]byte("ACGT"))
	rc := k.ReverseComplement()
	if got := rc.String(); got != "ACGT" {
		t.Fatalf("ReverseComplement(ACGT) = %q, want ACGT (palindrome)", got)
	}

	k2, _ := New([]byte("AAAA"))
	rc2 := k2.ReverseComplement()
	if got := rc2.String(); got != "TTTT" {
		t.Fatalf("ReverseComplement(AAAA) = %q, want TTTT", got)
	}
}

func TestCanonicalIdempotent(t *testing.T) {
	k, _ := New([]byte("GGGGCCCC"))
	c1, _ := k.Canonical()
	c2, _ := c1.Canonical()
	if c1 != c2 {
		t.Fatalf("Canonical not idempotent: c1=%v c2=%v", c1, c2)
	}
	rc := k.ReverseComplement()
	c3, _ := rc.Canonical()
	if c1 != c3 {
		t.Fatalf("Canonical(k) != Canonical(ReverseComplement(k))")
	}
}

func TestEqualWithMask(t *testing.T) {
	a, _ := New([]byte("ACGTACGT"))
	b, _ := New([]byte("ACGTTCGT"))
	if a.Equal(b, nil) {
		t.Fatal("expected unmasked compare to differ")
	}
	mask := Mask{true, true, true, true, false, true, true, true}
	if !a.Equal(b, mask) {
		t.Fatal("expected masked compare to match at the don't-care position")
	}
}

func TestMaskedZeroesDontCarePositions(t *testing.T) {
	k, _ := New([]byte("ACGTACGT"))
	mask := Mask{true, true, true, true, false, true, true, true}
	m := k.Masked(mask)
	if m.Base(4) != 0 {
		t.Fatalf("Base(4) = %d, want 0 (A) at the don't-care position", m.Base(4))
	}
	for i := 0; i < 8; i++ {
		if i == 4 {
			continue
		}
		if m.Base(i) != k.Base(i) {
			t.Fatalf("Base(%d) = %d, want %d unchanged at a significant position", i, m.Base(i), k.Base(i))
		}
	}
}

func TestCanonicalMaskedMatchesCanonicalWithNilMask(t *testing.T) {
	k, _ := New([]byte("GGGGCCCC"))
	c1, f1 := k.Canonical()
	c2, f2 := k.CanonicalMasked(nil)
	if c1 != c2 || f1 != f2 {
		t.Fatalf("CanonicalMasked(nil) = (%v,%v), want Canonical() = (%v,%v)", c2, f2, c1, f1)
	}
}

func TestCanonicalMaskedAgreesAcrossStrands(t *testing.T) {
	// ACTA and its reverse complement TAGT differ at every position, the
	// masked-out position 2 included; whichever strand CanonicalMasked
	// starts from, it must pick the same orientation.
	k, _ := New([]byte("ACTA"))
	rc := k.ReverseComplement()
	mask := Mask{true, true, false, true}
	c1, _ := k.CanonicalMasked(mask)
	c2, _ := rc.CanonicalMasked(mask)
	if c1 != c2 {
		t.Fatalf("CanonicalMasked(k) = %v, CanonicalMasked(ReverseComplement(k)) = %v, want equal", c1, c2)
	}
}

func TestParseMask(t *testing.T) {
	mask, err := ParseMask("1101", 4)
	if err != nil {
		t.Fatalf("ParseMask: %v", err)
	}
	want := Mask{true, true, false, true}
	for i := range want {
		if mask[i] != want[i] {
			t.Fatalf("mask[%d] = %v, want %v", i, mask[i], want[i])
		}
	}
	if _, err := ParseMask("101", 4); err == nil {
		t.Fatal("expected error for length mismatch")
	}
	if _, err := ParseMask("11x1", 4); err == nil {
		t.Fatal("expected error for non-0/1 character")
	}
	if mask, err := ParseMask("", 4); err != nil || mask != nil {
		t.Fatalf("ParseMask(\"\") = (%v,%v), want (nil,nil)", mask, err)
	}
}

func TestShiftForwardBackward(t *testing.T) {
	k, _ := New([]byte("ACGTA"))
	fwd := k.Shift(Forward, 1) // append C
	if got := fwd.String(); got != "CGTAC" {
		t.Fatalf("Shift(Forward) = %q, want CGTAC", got)
	}
	back := k.Shift(Backward, 1) // prepend C
	if got := back.String(); got != "CACGT" {
		t.Fatalf("Shift(Backward) = %q, want CACGT", got)
	}
}

func TestRollingHashReverseComplementLaneMatchesResetAfterRoll(t *testing.T) {
	seq := []byte("ACGTACGTAC")
	k := 4
	rh, err := NewRollingHash(seq[:k], 3, nil)
	if err != nil {
		t.Fatalf("NewRollingHash: %v", err)
	}
	for i := 1; i+k <= len(seq); i++ {
		rh.RollRight(seq[i-1], seq[i+k-1])
		fresh, _ := NewRollingHash(seq[i:i+k], 3, nil)
		got := rh.ReverseComplementHashes()
		want := fresh.ReverseComplementHashes()
		for h := range want {
			if got[h] != want[h] {
				t.Fatalf("window %d lane %d: rolled rc=%d recomputed rc=%d", i, h, got[h], want[h])
			}
		}
	}
}

func TestRollingHashMatchesResetAfterRoll(t *testing.T) {
	seq := []byte("ACGTACGTAC")
	k := 4
	rh, err := NewRollingHash(seq[:k], 3, nil)
	if err != nil {
		t.Fatalf("NewRollingHash: %v", err)
	}
	for i := 1; i+k <= len(seq); i++ {
		rh.RollRight(seq[i-1], seq[i+k-1])
		fresh, _ := NewRollingHash(seq[i:i+k], 3, nil)
		got := rh.Hashes()
		want := fresh.Hashes()
		for h := range want {
			if got[h] != want[h] {
				t.Fatalf("window %d lane %d: rolled=%d recomputed=%d", i, h, got[h], want[h])
			}
		}
	}
}
