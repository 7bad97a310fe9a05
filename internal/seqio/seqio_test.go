package seqio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestDetectFormat(t *testing.T) {
	cases := map[string]Format{
		"reads.fa":       FormatFasta,
		"reads.fasta.gz": FormatFasta,
		"reads.fq":       FormatFastq,
		"reads.fastq.gz": FormatFastq,
		"reads.txt":      FormatPlain,
	}
	for name, want := range cases {
		if got := DetectFormat(name); got != want {
			t.Errorf("DetectFormat(%q) = %v, want %v", name, got, want)
		}
	}
}

func writeTemp(t *testing.T, name, content string) string {
	dir := t.TempDir()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

func TestStreamFasta(t *testing.T) {
	p := writeTemp(t, "in.fa", ">r1\nACGT\nACGT\n>r2\nTTTT\n")
	recs, errc := Stream(p)
	var got []Record
	for r := range recs {
		got = append(got, r)
	}
	if err := <-errc; err != nil {
		t.Fatalf("Stream error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].Name != "r1" || string(got[0].Seq) != "ACGTACGT" {
		t.Fatalf("record 0 = %+v, want r1/ACGTACGT", got[0])
	}
	if got[1].Name != "r2" || string(got[1].Seq) != "TTTT" {
		t.Fatalf("record 1 = %+v, want r2/TTTT", got[1])
	}
}

func TestStreamFastq(t *testing.T) {
	p := writeTemp(t, "in.fq", "@r1\nACGT\n+\nIIII\n")
	recs, errc := Stream(p)
	var got []Record
	for r := range recs {
		got = append(got, r)
	}
	if err := <-errc; err != nil {
		t.Fatalf("Stream error: %v", err)
	}
	if len(got) != 1 || got[0].Name != "r1" || string(got[0].Seq) != "ACGT" {
		t.Fatalf("got %+v, want one record r1/ACGT", got)
	}
}

func TestContigWriterHeader(t *testing.T) {
	var buf bytes.Buffer
	cw := NewContigWriter(&buf)
	if err := cw.WriteContig("3", []byte("ACGTACGT"), 12.5); err != nil {
		t.Fatalf("WriteContig: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("3 8 12.50")) {
		t.Fatalf("expected header with id/length/meanCov, got %q", buf.String())
	}
}
