package kmer

import "gasm/internal/bnt"

// MaxHashes bounds the number of simultaneous derived hash lanes, matching
// RollingHashIterator.h's MAX_HASHES.
const MaxHashes = 7

// seedTab is the per-base random seed table the ntHash-style roll XORs in
// and out as the window advances. Values are arbitrary but fixed so hashes
// are reproducible across runs.
var seedTab = [bnt.BaseTypeNum]uint64{
	0x3c8bfbb395c60474,
	0x3193c18562a02b4c,
	0x20323ed082572324,
	0x295549f54be24456,
}

// seedTabRC is seedTab indexed by complement code, precomputed so the
// reverse-complement lane's roll never has to look up BntRev first.
var seedTabRC = [bnt.BaseTypeNum]uint64{
	seedTab[3], seedTab[2], seedTab[1], seedTab[0],
}

func rol(x uint64, r uint) uint64 {
	r %= 64
	if r == 0 {
		return x
	}
	return (x << r) | (x >> (64 - r))
}

// Mask is a spaced seed: a position-fixed boolean pattern selecting which
// positions within the k-window participate in hashing and equality. A nil
// or empty Mask means every position participates (an all-'1's seed).
type Mask []bool

// RollingHash maintains ntHash-style polynomial-roll state for a window of
// length K, producing up to numHashes derived lanes plus a simultaneously
// maintained reverse-complement lane, so ReverseComplement is an O(h) lane
// swap rather than a recompute. Grounded on
// original_source/BloomDBG/RollingHashIterator.h and RollingHash.h.
type RollingHash struct {
	K         int
	NumHashes int
	Mask      Mask

	fwdHash uint64 // base hash value, h=0 lane, forward strand
	rcHash  uint64 // base hash value, h=0 lane, reverse-complement strand

	hashes   [MaxHashes]uint64
	rcHashes [MaxHashes]uint64
}

// NewRollingHash initializes rolling hash state from the first k-mer in a
// window (seq must have length K). maskPat may be nil.
func NewRollingHash(seq []byte, numHashes int, maskPat Mask) (*RollingHash, error) {
	k := len(seq)
	if numHashes < 1 || numHashes > MaxHashes {
		numHashes = 1
	}
	rh := &RollingHash{K: k, NumHashes: numHashes, Mask: maskPat}
	rh.reset(seq)
	return rh, nil
}

func (rh *RollingHash) maskedAt(i int) bool {
	if len(rh.Mask) == 0 {
		return true
	}
	if i >= len(rh.Mask) {
		return true
	}
	return rh.Mask[i]
}

// reset recomputes hash state from scratch for the given window, used when
// a run of non-ACGT bases makes incremental rolling impossible.
func (rh *RollingHash) reset(seq []byte) {
	var fwd, rc uint64
	n := len(seq)
	for i, c := range seq {
		if !rh.maskedAt(i) {
			continue
		}
		fwd = rol(fwd, 1) ^ seedTab[bnt.Base2Bnt[c]]
		// the reverse-complement lane accumulates in reverse position
		// order so it represents the hash of ReverseComplement(seq)
		rc = rol(rc, 1) ^ seedTabRC[bnt.Base2Bnt[seq[n-1-i]]]
	}
	rh.fwdHash = fwd
	rh.rcHash = rc
	rh.deriveLanes()
}

// deriveLanes fills the h=1..numHashes-1 derived lanes from the h=0 base
// hash, matching the teacher/ntHash convention of deriving extra lanes by
// a cheap secondary mix rather than independent rolling state.
func (rh *RollingHash) deriveLanes() {
	rh.hashes[0] = rh.fwdHash
	rh.rcHashes[0] = rh.rcHash
	for h := 1; h < rh.NumHashes; h++ {
		rh.hashes[h] = rol(rh.fwdHash, uint(h)) ^ uint64(h)*0x9e3779b97f4a7c15
		rh.rcHashes[h] = rol(rh.rcHash, uint(h)) ^ uint64(h)*0x9e3779b97f4a7c15
	}
}

// RollRight advances the window by one base: outBase leaves at the 5' end,
// inBase enters at the 3' end. Both the forward and reverse-complement
// lanes are updated in O(numHashes), never recomputed from scratch.
func (rh *RollingHash) RollRight(outBase, inBase byte) {
	oc := bnt.Base2Bnt[outBase]
	ic := bnt.Base2Bnt[inBase]

	// forward: drop the leading base's contribution (rolled left by k-1
	// across the whole window lifetime), roll, then add the incoming base.
	rh.fwdHash = rol(rh.fwdHash^rol(seedTab[oc], uint(rh.K-1)), 1) ^ seedTab[ic]

	// reverse-complement: the outgoing base's complement was at the RC
	// strand's trailing (high-exponent) end and drops out before the
	// rotate-right-by-one; the incoming base's complement becomes the new
	// trailing base afterward, entering at exponent K-1.
	rh.rcHash = rol(rh.rcHash^seedTabRC[oc], 63) ^ rol(seedTabRC[ic], uint(rh.K-1))

	rh.deriveLanes()
}

// Hashes returns the forward-strand hash lanes for the current window.
func (rh *RollingHash) Hashes() []uint64 { return rh.hashes[:rh.NumHashes] }

// ReverseComplementHashes returns the hash lanes for the reverse complement
// of the current window, maintained incrementally alongside the forward
// lanes at no extra recompute cost.
func (rh *RollingHash) ReverseComplementHashes() []uint64 { return rh.rcHashes[:rh.NumHashes] }

// CanonicalHashes returns whichever of the forward/reverse-complement lane
// sets is lexicographically smaller at lane 0, and reports which it picked.
func (rh *RollingHash) CanonicalHashes() (lanes []uint64, forward bool) {
	if rh.fwdHash <= rh.rcHash {
		return rh.Hashes(), true
	}
	return rh.ReverseComplementHashes(), false
}
