package graph

import (
	"bufio"
	"encoding/gob"
	"os"

	"github.com/google/brotli/go/cbrotli"

	"gasm/internal/kmer"
)

// vertexRecord is the on-disk shape of one Vertex, used to hand the graph
// cdbg built across the process boundary to smfy the same way ccf hands its
// cuckoo filter to cdbg (gob-encoded, brotli-compressed).
type vertexRecord struct {
	Kmer      kmer.Kmer
	Mult      uint32
	SenseEdge EdgeMask
	AntiEdge  EdgeMask
	Flags     Flag
}

// Save writes every live vertex of t to path.
func Save(t *VertexTable, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cbrofp := cbrotli.NewWriter(f, cbrotli.WriterOptions{Quality: 1})
	defer cbrofp.Close()
	buf := bufio.NewWriterSize(cbrofp, 1<<22)

	var recs []vertexRecord
	t.Each(func(k kmer.Kmer, v *Vertex) {
		recs = append(recs, vertexRecord{k, v.Mult, v.SenseEdge, v.AntiEdge, v.Flags})
	})
	if err := gob.NewEncoder(buf).Encode(recs); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	return cbrofp.Flush()
}

// Load reads a table written by Save, rebuilding it for k-mers of length k
// under the given spaced-seed mask (nil disables masking). Each record is
// re-keyed under mask, so mask must match whatever mask cdbg ran under: a
// mask cdbg did not use merges records that cdbg kept apart (the later
// record's fields overwrite the earlier one's), and leaving out cdbg's
// mask keys each record on its real bases, where a masked-equal k-mer no
// longer finds it.
func Load(path string, k int, mask []bool) (*VertexTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	brfp := cbrotli.NewReader(f)
	defer brfp.Close()
	buf := bufio.NewReaderSize(brfp, 1<<22)

	var recs []vertexRecord
	if err := gob.NewDecoder(buf).Decode(&recs); err != nil {
		return nil, err
	}

	t := NewVertexTable(k, 0).WithMask(mask)
	for _, r := range recs {
		v := t.Insert(r.Kmer)
		v.Mult = r.Mult
		v.SenseEdge = r.SenseEdge
		v.AntiEdge = r.AntiEdge
		v.Flags = r.Flags
	}
	return t, nil
}
