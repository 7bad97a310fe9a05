// Package bnt is the 2-bit nucleotide encoding table shared by the k-mer
// and sequence-I/O packages. It mirrors the ga/bnt table referenced by the
// construction code (Base2Bnt, BntRev, NumBaseInUint64, ...) but is not
// present in the retrieved snapshot, so it's rebuilt here from its call
// sites.
package bnt

const (
	BaseTypeNum     = 4  // A, C, G, T
	NumBitsInBase   = 2  // bits needed to encode one base
	BaseMask        = 3  // (1<<NumBitsInBase)-1
	NumBaseInUint64 = 32 // 64/NumBitsInBase bases packed per word
)

// Base2Bnt maps an ASCII base byte to its 2-bit code. Unrecognized bytes
// (including lowercase, N, and non-ACGT symbols) map to 4, the sentinel
// used by callers to detect and skip non-ACGT characters.
var Base2Bnt [256]byte

// BntRev maps a 2-bit code to its Watson-Crick complement code.
var BntRev [BaseTypeNum]byte

// BitNtCharUp maps a 2-bit code back to its uppercase ASCII base.
var BitNtCharUp [BaseTypeNum]byte

func init() {
	for i := range Base2Bnt {
		Base2Bnt[i] = 4
	}
	Base2Bnt['A'], Base2Bnt['a'] = 0, 0
	Base2Bnt['C'], Base2Bnt['c'] = 1, 1
	Base2Bnt['G'], Base2Bnt['g'] = 2, 2
	Base2Bnt['T'], Base2Bnt['t'] = 3, 3

	BntRev[0], BntRev[1], BntRev[2], BntRev[3] = 3, 2, 1, 0

	BitNtCharUp[0], BitNtCharUp[1], BitNtCharUp[2], BitNtCharUp[3] = 'A', 'C', 'G', 'T'
}

// IsACGT reports whether b is a recognized (upper or lower case) base.
func IsACGT(b byte) bool {
	return Base2Bnt[b] < 4
}
