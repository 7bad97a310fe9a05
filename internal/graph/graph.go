// Package graph implements the sequence collection: a sharded hash table
// from canonical k-mer to vertex record, the coverage histogram and
// kc-threshold, and the cleanup/adjacency sweeps the assembly passes run
// over it.
//
// Grounded on constructdbg.go's map[[NODEMAP_KEY_LEN]uint64]DBGNode /
// constructNodeMap (fixed-array key, sharded construction) and DBGEdge's
// flag-bit accessor methods (GetDeleteFlag/SetBubbleFlag/...).
package graph

import (
	"sync"

	"github.com/cespare/xxhash"

	"gasm/internal/kmer"
)

// Flag bits on a Vertex, mirroring DBGEdge's flag byte.
type Flag uint8

const (
	FlagDeleted Flag = 1 << iota
	FlagSenseSeen
	FlagAntisenseSeen
	FlagMarkSense
	FlagMarkAntisense
)

// EdgeMask is a 4-bit mask over the bases {A,C,G,T}; bit i set means an
// edge exists to/from the neighbor formed by extending with base i.
type EdgeMask uint8

// Set reports whether base i's bit is set.
func (m EdgeMask) Set(i byte) bool { return m&(1<<i) != 0 }

// With returns m with base i's bit set.
func (m EdgeMask) With(i byte) EdgeMask { return m | (1 << i) }

// Without returns m with base i's bit cleared.
func (m EdgeMask) Without(i byte) EdgeMask { return m &^ (1 << i) }

// Degree returns the number of set bits.
func (m EdgeMask) Degree() int {
	n := 0
	for i := byte(0); i < 4; i++ {
		if m.Set(i) {
			n++
		}
	}
	return n
}

// Vertex is the per-k-mer record: observed multiplicity, sense/antisense
// edge masks, and a flag byte.
type Vertex struct {
	Kmer      kmer.Kmer
	Mult      uint32
	SenseEdge EdgeMask
	AntiEdge  EdgeMask
	Flags     Flag
}

func (v *Vertex) HasFlag(f Flag) bool { return v.Flags&f != 0 }
func (v *Vertex) SetFlag(f Flag)      { v.Flags |= f }
func (v *Vertex) ClearFlag(f Flag)    { v.Flags &^= f }

// VertexStore is the capability set both the hashed vertex table and (for
// the one-pass construction phase) the cuckoo filter can be adapted to
// satisfy, per the redesign notes calling for a small interface instead of
// an inheritance hierarchy.
type VertexStore interface {
	Insert(k kmer.Kmer) *Vertex
	Get(k kmer.Kmer) (*Vertex, bool)
	Remove(k kmer.Kmer)
	Len() int
}

const defaultNumShards = 64

type shard struct {
	mu sync.RWMutex
	m  map[kmer.Kmer]*Vertex
}

// VertexTable is a sharded hash table keyed by canonical k-mer. Concurrent
// inserts land in different shards' locks; each construction-phase consumer
// goroutine mostly contends only with goroutines hashing into the same
// shard, matching the read-scan/apply/cleanup-sweep discipline the cleaning
// passes rely on.
type VertexTable struct {
	shards []shard
	K      int
	Mask   []bool
}

// NewVertexTable creates a table sized for k-mers of length k.
func NewVertexTable(k int, numShards int) *VertexTable {
	if numShards <= 0 {
		numShards = defaultNumShards
	}
	t := &VertexTable{shards: make([]shard, numShards), K: k}
	for i := range t.shards {
		t.shards[i].m = make(map[kmer.Kmer]*Vertex)
	}
	return t
}

// WithMask sets t's spaced-seed mask and returns t, for call-site chaining
// off NewVertexTable. A nil/empty mask disables masking (the default).
func (t *VertexTable) WithMask(mask []bool) *VertexTable {
	t.Mask = mask
	return t
}

// key returns k's storage key: k with every don't-care position (per t.Mask)
// forced to base A, so masked-equal k-mers collapse onto one map slot
// without a literal bucket chain. With no mask active this is k unchanged.
func (t *VertexTable) key(k kmer.Kmer) kmer.Kmer {
	return k.Masked(t.Mask)
}

func (t *VertexTable) shardFor(key kmer.Kmer) *shard {
	h := xxhash.Sum64(key.Bytes())
	return &t.shards[h%uint64(len(t.shards))]
}

// Insert records one observation of k (already canonicalized by the
// caller), creating the vertex on first sight and incrementing Mult
// otherwise. Under an active spaced-seed mask, the vertex is keyed by k's
// masked form but Vertex.Kmer retains k's real bases, so the first k-mer
// seen for a masked-equal class owns the counter and supplies the sequence.
func (t *VertexTable) Insert(k kmer.Kmer) *Vertex {
	key := t.key(k)
	s := t.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if !ok {
		v = &Vertex{Kmer: k, Mult: 1}
		s.m[key] = v
		return v
	}
	v.Mult++
	return v
}

// Get looks up the vertex for k without mutating it.
func (t *VertexTable) Get(k kmer.Kmer) (*Vertex, bool) {
	key := t.key(k)
	s := t.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

// Remove deletes k's vertex record outright. Cleanup sweeps prefer marking
// FlagDeleted and calling Cleanup() so in-flight scans never observe a
// vanished key; Remove is for callers that already hold exclusive access.
func (t *VertexTable) Remove(k kmer.Kmer) {
	key := t.key(k)
	s := t.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

// Len returns the total number of vertex records across all shards.
func (t *VertexTable) Len() int {
	n := 0
	for i := range t.shards {
		t.shards[i].mu.RLock()
		n += len(t.shards[i].m)
		t.shards[i].mu.RUnlock()
	}
	return n
}

// Cleanup physically removes every vertex marked FlagDeleted, then ANDs
// every surviving vertex's edge masks against the surviving membership so
// no edge points at a k-mer that just vanished. Run once, single-threaded,
// after a cleaning pass has finished marking vertices — never interleaved
// with concurrent marking, matching the teacher's scan-then-sweep
// discipline in SmfyDBG.
func (t *VertexTable) Cleanup() {
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for k, v := range s.m {
			if v.HasFlag(FlagDeleted) {
				delete(s.m, k)
			}
		}
		s.mu.Unlock()
	}
	t.maskEdgesAgainstMembership()
}

// maskEdgesAgainstMembership clears every SenseEdge/AntiEdge bit whose
// target neighbor is no longer present in the table, so Cleanup is
// self-sufficient and callers don't have to remember to pair it with a
// GenerateAdjacency rerun just to drop dangling edge bits.
func (t *VertexTable) maskEdgesAgainstMembership() {
	type work struct {
		k           kmer.Kmer
		sense, anti EdgeMask
	}
	var pending []work
	t.Each(func(k kmer.Kmer, v *Vertex) {
		sense, anti := v.SenseEdge, v.AntiEdge
		for b := byte(0); b < 4; b++ {
			if sense.Set(b) && !t.hasCanonical(k.Shift(kmer.Forward, b)) {
				sense = sense.Without(b)
			}
			if anti.Set(b) && !t.hasCanonical(k.Shift(kmer.Backward, b)) {
				anti = anti.Without(b)
			}
		}
		if sense != v.SenseEdge || anti != v.AntiEdge {
			pending = append(pending, work{k, sense, anti})
		}
	})
	for _, w := range pending {
		if v, ok := t.Get(w.k); ok {
			v.SenseEdge = w.sense
			v.AntiEdge = w.anti
		}
	}
}

// Each calls fn once per live (non-deleted) vertex, with fn's k argument
// always the vertex's real, unmasked k-mer (not its possibly-masked
// storage key). fn must not mutate the table; callers collect work lists
// and apply them afterward.
func (t *VertexTable) Each(fn func(k kmer.Kmer, v *Vertex)) {
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.RLock()
		for _, v := range s.m {
			if !v.HasFlag(FlagDeleted) {
				fn(v.Kmer, v)
			}
		}
		s.mu.RUnlock()
	}
}

// GenerateAdjacency derives each vertex's sense/antisense edge masks from
// the presence of its four possible k-mer-extension neighbors in the
// table, the one-time pass that turns a flat k-mer set into a graph.
func (t *VertexTable) GenerateAdjacency() {
	type work struct {
		k           kmer.Kmer
		sense, anti EdgeMask
	}
	var pending []work
	t.Each(func(k kmer.Kmer, v *Vertex) {
		var sense, anti EdgeMask
		for b := byte(0); b < 4; b++ {
			if fwd := k.Shift(kmer.Forward, b); t.hasCanonical(fwd) {
				sense = sense.With(b)
			}
			if bwd := k.Shift(kmer.Backward, b); t.hasCanonical(bwd) {
				anti = anti.With(b)
			}
		}
		pending = append(pending, work{k, sense, anti})
	})
	for _, w := range pending {
		if v, ok := t.Get(w.k); ok {
			v.SenseEdge = w.sense
			v.AntiEdge = w.anti
		}
	}
}

func (t *VertexTable) hasCanonical(k kmer.Kmer) bool {
	canon, _ := k.CanonicalMasked(t.Mask)
	_, ok := t.Get(canon)
	return ok
}

// Histogram is a multiplicity -> vertex-count map used to pick the
// coverage threshold (kc) that separates real from erroneous k-mers.
type Histogram map[uint32]uint64

// BuildHistogram tallies the multiplicity distribution of every live
// vertex in t.
func BuildHistogram(t *VertexTable) Histogram {
	h := make(Histogram)
	t.Each(func(_ kmer.Kmer, v *Vertex) {
		h[v.Mult]++
	})
	return h
}

// Threshold returns the first local minimum of the histogram, scanning the
// dense integer index 1, 2, 3, ... up to the largest observed multiplicity
// (relying on h's zero value for any multiplicity nobody hit, exactly as a
// gap in the real distribution should read) and stopping at the first i
// with H[i] <= H[i-1] and H[i] < H[i+1]. This is the conventional coverage
// cutoff between error k-mers and true low-coverage k-mers. If no local
// minimum is found before the histogram runs out, it returns (0, false) and
// the caller should log a fallback-to-zero warning rather than treat it as
// fatal (Open Question 1 in DESIGN.md).
func (h Histogram) Threshold() (kc uint32, found bool) {
	if len(h) == 0 {
		return 0, false
	}
	var max uint32
	for m := range h {
		if m > max {
			max = m
		}
	}
	for i := uint32(1); i < max; i++ {
		if h[i] <= h[i-1] && h[i] < h[i+1] {
			return i, true
		}
	}
	return 0, false
}
