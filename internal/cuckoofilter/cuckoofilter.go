// Package cuckoofilter implements a bucketized cuckoo filter used as the
// one-pass admission structure during k-mer construction: ccf builds a
// filter over every observed k-mer, and cdbg consults it so that a k-mer
// seen fewer than MinKmerFreq times never gets a VertexTable entry
// allocated for it at all, rather than allocating one and deleting it later.
package cuckoofilter

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sync"
	"unsafe"

	"github.com/cespare/xxhash"
	"github.com/google/brotli/go/cbrotli"

	"gasm/internal/kmer"
)

const (
	NUM_FP_BITS = 13     // number of fingerprint bits occupied
	NUM_C_BITS  = 3      // count bits, sizeof(uint16)*8 - NUM_FP_BITS
	FPMASK      = 0x1FFF // mask other info, fingerprint = (1<<NUM_FP_BITS) -1
	CMASK       = 0x7    // count bits field = (1<<NUM_C_BITS) -1
	MAX_C       = (1 << NUM_C_BITS) - 1
)

const BucketSize = 4
const KMaxCount = 10000

// casStripes guards CompareAndSwapUint16. sync/atomic has no 16-bit CAS, and
// the bucket slots are not individually word-aligned, so compare-and-swap on
// a CFItem is done under a small set of address-striped locks rather than a
// single filter-wide mutex.
var casStripes [1024]sync.Mutex

func stripeFor(addr *uint16) *sync.Mutex {
	idx := (uintptr(unsafe.Pointer(addr)) >> 1) % uintptr(len(casStripes))
	return &casStripes[idx]
}

func CompareAndSwapUint16(addr *uint16, old uint16, new uint16) (swapped bool) {
	m := stripeFor(addr)
	m.Lock()
	defer m.Unlock()
	if *addr == old {
		*addr = new
		return true
	}
	return false
}

// CFItem packs a NUM_FP_BITS-wide fingerprint and a NUM_C_BITS-wide count
// into one uint16 bucket slot.
type CFItem uint16

type Bucket struct {
	Bkt [BucketSize]CFItem
}

type CuckooFilter struct {
	Hash     []Bucket
	NumItems uint64
	Kmerlen  int
}

func upperpower2(x uint64) uint64 {
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	x++
	return x
}

// MakeCuckooFilter allocates a filter sized for maxNumKeys k-mers of length
// kmerLen.
func MakeCuckooFilter(maxNumKeys uint64, kmerLen int) (cf CuckooFilter) {
	numBuckets := upperpower2(maxNumKeys) / BucketSize
	cf.Hash = make([]Bucket, numBuckets)
	cf.NumItems = numBuckets
	cf.Kmerlen = kmerLen
	fmt.Printf("[MakeCuckooFilter] buckets: %d\n", cf.NumItems)
	return cf
}

func hashSeed(data []byte, seed uint64) uint64 {
	return xxhash.Sum64(data) ^ seed
}

func (cf CuckooFilter) IndexHash(v uint64) uint64 {
	return v % cf.NumItems
}

func FingerPrint(data []byte) uint16 {
	hash := hashSeed(data, 1335)
	return uint16(hash%FPMASK + 1)
}

func (cf CuckooFilter) AltIndex(index uint64, finger uint16) uint64 {
	fp := []byte{byte(finger >> 8), byte(finger & 255)}
	hash := hashSeed(fp, 1337)
	return (index ^ hash) % cf.NumItems
}

func combineCFItem(fp uint16, count uint16) (cfi CFItem) {
	if count > MAX_C {
		panic("count bigger than CFItem allowed")
	}
	cfi = CFItem(fp)
	cfi <<= NUM_C_BITS
	cfi |= CFItem(count)
	return cfi
}

func (cfi CFItem) GetCount() uint16 { return uint16(cfi) & CMASK }

func (cfi *CFItem) setCount(count uint16) {
	nc := uint16(*cfi) >> NUM_C_BITS
	nc <<= NUM_C_BITS
	nc |= count
	*cfi = CFItem(nc)
}

func (cfi CFItem) GetFinger() uint16 { return uint16(cfi >> NUM_C_BITS) }

func (cfi CFItem) EqualFP(rcfi CFItem) bool {
	return (uint16(cfi) >> NUM_C_BITS) == (uint16(rcfi) >> NUM_C_BITS)
}

// AddCount bumps cfi's count field, retrying the CAS until it lands or the
// count has already saturated at MAX_C.
func (cfi *CFItem) AddCount() (int, bool) {
	for {
		oc := *cfi
		count := oc.GetCount()
		if count >= MAX_C {
			return MAX_C, true
		}
		nc := oc
		nc.setCount(count + 1)
		a := (*uint16)(cfi)
		if CompareAndSwapUint16(a, uint16(oc), uint16(nc)) {
			return int(count), true
		}
	}
}

// Switch atomically replaces the item at hashIdx/bIdx with nc, returning the
// item it displaced and that item's alternate bucket index.
func (cf CuckooFilter) Switch(hashIdx uint64, bIdx int, nc CFItem) (CFItem, uint64) {
	a := (*uint16)(&cf.Hash[hashIdx].Bkt[bIdx])
	for {
		oc := *a
		if CompareAndSwapUint16(a, oc, uint16(nc)) {
			fp := CFItem(oc).GetFinger()
			return CFItem(oc), cf.AltIndex(hashIdx, fp)
		}
	}
}

func (b Bucket) Contain(fingerprint uint16) bool {
	for _, item := range b.Bkt {
		if item.GetCount() > 0 && item.GetFinger() == fingerprint {
			return true
		}
	}
	return false
}

// AddBucket inserts cfi into b, merging into a matching fingerprint's count
// if one is already present, and (when kickout is set) evicting the
// minimum-count entry (the highest-indexed slot among equal counts) to
// make room.
func (b *Bucket) AddBucket(cfi CFItem, kickout bool) (CFItem, bool, int) {
	for i := 0; i < BucketSize; i++ {
		for {
			oi := b.Bkt[i]
			if oi.GetCount() == 0 {
				a := (*uint16)(&b.Bkt[i])
				if CompareAndSwapUint16(a, uint16(oi), uint16(cfi)) {
					return CFItem(0), true, 0
				}
				continue
			}
			if oi.GetCount() > 0 && b.Bkt[i].EqualFP(cfi) {
				oc, _ := b.Bkt[i].AddCount()
				return CFItem(0), true, oc
			}
			break
		}
	}

	if !kickout {
		return CFItem(0), false, 0
	}
	min := uint16(math.MaxUint16)
	idx := -1
	for j := BucketSize - 1; j >= 0; j-- {
		if c := b.Bkt[j].GetCount(); c < min {
			min = c
			idx = j
		}
	}
	var oi CFItem
	for {
		oi = b.Bkt[idx]
		a := (*uint16)(&b.Bkt[idx])
		if CompareAndSwapUint16(a, uint16(oi), uint16(cfi)) {
			break
		}
	}
	return oi, true, 0
}

// GetIndicesAndFingerprint returns the two candidate bucket indices and the
// fingerprint for data.
func (cf CuckooFilter) GetIndicesAndFingerprint(data []byte) (uint64, uint64, uint16) {
	hash := hashSeed(data, 1337)
	f := FingerPrint(data)
	i1 := hash % cf.NumItems
	i2 := cf.AltIndex(i1, f)
	return i1, i2, f
}

func (cf CuckooFilter) insert(cfi CFItem, i uint64) (int, bool) {
	_, ok, count := cf.Hash[i].AddBucket(cfi, false)
	return count, ok
}

func randi(i1, i2 uint64) uint64 {
	if rand.Intn(2) == 0 {
		return i1
	}
	return i2
}

func (cf CuckooFilter) reinsert(cfi CFItem, i uint64) (int, bool) {
	for k := 0; k < KMaxCount; k++ {
		j := rand.Intn(BucketSize)
		cfi, i = cf.Switch(i, j, cfi)
		count, ok := cf.insert(cfi, i)
		if ok {
			return count, ok
		}
	}
	return 0, false
}

// Insert records one observation of the key kb, returning the count it held
// before this observation and whether the insert succeeded (it can fail
// once the filter is overloaded, after KMaxCount eviction cycles).
func (cf CuckooFilter) Insert(kb []byte) (int, bool) {
	i1, i2, fp := cf.GetIndicesAndFingerprint(kb)
	cfi := combineCFItem(fp, 1)
	if count, ok := cf.insert(cfi, i1); ok {
		return count, ok
	}
	if count, ok := cf.insert(cfi, i2); ok {
		return count, ok
	}
	return cf.reinsert(cfi, randi(i1, i2))
}

func (cf CuckooFilter) Lookup(kb []byte) bool {
	hash := hashSeed(kb, 1337)
	fingerprint := FingerPrint(kb)
	index := cf.IndexHash(hash)
	if cf.Hash[index].Contain(fingerprint) {
		return true
	}
	index = cf.AltIndex(index, fingerprint)
	return cf.Hash[index].Contain(fingerprint)
}

// GetCount returns kb's stored count, panicking if kb was never inserted.
// Construction code that must tolerate a miss uses GetCountAllowZero.
func (cf CuckooFilter) GetCount(kb []byte) uint16 {
	hash := hashSeed(kb, 1337)
	fingerprint := FingerPrint(kb)
	index := cf.IndexHash(hash)
	for _, item := range cf.Hash[index].Bkt {
		if item > 0 && item.GetFinger() == fingerprint {
			return item.GetCount()
		}
	}
	index = cf.AltIndex(index, fingerprint)
	for _, item := range cf.Hash[index].Bkt {
		if item > 0 && item.GetFinger() == fingerprint {
			return item.GetCount()
		}
	}
	panic("not found in the CuckooFilter")
}

// GetCountAllowZero is GetCount without the panic: a k-mer the filter never
// saw returns 0, which is the common case when gating admission into the de
// Bruijn graph.
func (cf CuckooFilter) GetCountAllowZero(kb []byte) uint16 {
	hash := hashSeed(kb, 1337)
	fingerprint := FingerPrint(kb)
	index := cf.IndexHash(hash)
	for _, item := range cf.Hash[index].Bkt {
		if item > 0 && item.GetFinger() == fingerprint {
			return item.GetCount()
		}
	}
	index = cf.AltIndex(index, fingerprint)
	for _, item := range cf.Hash[index].Bkt {
		if item > 0 && item.GetFinger() == fingerprint {
			return item.GetCount()
		}
	}
	return 0
}

// InsertKmer records one observation of k's canonical bytes.
func (cf CuckooFilter) InsertKmer(k kmer.Kmer) (int, bool) { return cf.Insert(k.Bytes()) }

// GetKmerCount returns k's stored count, or 0 if the filter never saw it.
// The count saturates at MAX_C (7): a k-mer observed more often than that
// reports 7, which is enough to clear any realistic MinKmerFreq admission
// threshold without needing an exact count at this stage.
func (cf CuckooFilter) GetKmerCount(k kmer.Kmer) uint16 { return cf.GetCountAllowZero(k.Bytes()) }

// LoadStats reports the number of occupied slots and the resulting load
// factor, for a caller that wants to log it (ccf records this via its
// telemetry sink rather than printing it directly).
func (cf CuckooFilter) LoadStats() (occupied int, load float64) {
	for _, b := range cf.Hash {
		for _, item := range b.Bkt {
			if item.GetCount() > 0 {
				occupied++
			}
		}
	}
	return occupied, float64(occupied) / float64(cf.NumItems*BucketSize)
}

func (cf CuckooFilter) WriteCuckooFilterInfo(cfinfofn string) error {
	cfinfofp, err := os.Create(cfinfofn)
	if err != nil {
		return err
	}
	defer cfinfofp.Close()
	if _, err := cfinfofp.WriteString(fmt.Sprintf("NumItems\t%d\n", cf.NumItems)); err != nil {
		return err
	}
	_, err = cfinfofp.WriteString(fmt.Sprintf("Kmerlen\t%d\n", cf.Kmerlen))
	return err
}

// MmapWriter serializes the filter (gob, brotli-compressed) to cfmmapfn so a
// later phase (cdbg) can load the exact same filter ccf built.
func (cf CuckooFilter) MmapWriter(cfmmapfn string) error {
	cfmmapfp, err := os.Create(cfmmapfn)
	if err != nil {
		return err
	}
	defer cfmmapfp.Close()

	cbrofp := cbrotli.NewWriter(cfmmapfp, cbrotli.WriterOptions{Quality: 1})
	defer cbrofp.Close()
	buffp := bufio.NewWriterSize(cbrofp, 1<<25)

	if err := gob.NewEncoder(buffp).Encode(cf); err != nil {
		return err
	}
	if err := buffp.Flush(); err != nil {
		return err
	}
	return cbrofp.Flush()
}

// MmapReader reads back a filter written by MmapWriter.
func MmapReader(cfmmapfn string) (cf CuckooFilter, err error) {
	cfmmapfp, err := os.Open(cfmmapfn)
	if err != nil {
		return cf, err
	}
	defer cfmmapfp.Close()
	brfp := cbrotli.NewReader(cfmmapfp)
	defer brfp.Close()
	buffp := bufio.NewReaderSize(brfp, 1<<25)

	if err := gob.NewDecoder(buffp).Decode(&cf); err != nil {
		return cf, err
	}
	return cf, nil
}
