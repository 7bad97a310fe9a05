// Package seqio streams FASTA/FASTQ/plain-text sequence records from input
// files, auto-detecting gzip compression, and writes assembled contigs as
// FASTA.
//
// Grounded on constructcf.GetReadFileRecord/GetReadSeqBucket/
// GetReadsFileFormat for record framing and the streaming channel handoff
// from one reader goroutine to the caller that drains it, and on
// grailbio-bio/encoding/fasta/fasta.go for the FASTA record shape.
package seqio

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"gasm/utils"
)

// Record is one sequence read from a FASTA/FASTQ/plain file.
type Record struct {
	Name string
	Seq  []byte
}

// Format identifies the framing convention of an input file.
type Format int

const (
	FormatFasta Format = iota
	FormatFastq
	FormatPlain
)

// DetectFormat classifies a file by its extension, stripping a trailing
// .gz the way GetReadsFileFormat does.
func DetectFormat(path string) Format {
	name := path
	if strings.HasSuffix(name, ".gz") {
		name = name[:len(name)-3]
	}
	switch {
	case strings.HasSuffix(name, ".fa"), strings.HasSuffix(name, ".fasta"), strings.HasSuffix(name, ".fna"):
		return FormatFasta
	case strings.HasSuffix(name, ".fq"), strings.HasSuffix(name, ".fastq"):
		return FormatFastq
	default:
		return FormatPlain
	}
}

var gzipMagic = []byte{0x1f, 0x8b}

// openMaybeGzip opens path and wraps it in a gzip reader if its first two
// bytes are the gzip magic, regardless of file extension.
func openMaybeGzip(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "seqio: opening %s", path)
	}
	br := bufio.NewReaderSize(f, 1<<16)
	peek, err := br.Peek(2)
	if err == nil && utils.BytesEqual(peek, gzipMagic) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "seqio: gzip header in %s", path)
		}
		return &gzipCloser{Reader: gz, underlying: f}, nil
	}
	return &plainCloser{Reader: br, underlying: f}, nil
}

type gzipCloser struct {
	*gzip.Reader
	underlying *os.File
}

func (g *gzipCloser) Close() error {
	g.Reader.Close()
	return g.underlying.Close()
}

type plainCloser struct {
	io.Reader
	underlying *os.File
}

func (p *plainCloser) Close() error { return p.underlying.Close() }

// Stream reads every record from path into the returned channel on a
// background goroutine, closing it when the file is exhausted or an error
// occurs (reported via errc). Bounded by a 40-slot buffer, matching
// ParaConstructCF/GetReadSeqBucket's channel sizing.
func Stream(path string) (<-chan Record, <-chan error) {
	out := make(chan Record, 40)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		rc, err := openMaybeGzip(path)
		if err != nil {
			errc <- err
			return
		}
		defer rc.Close()

		format := DetectFormat(path)
		scanner := bufio.NewScanner(rc)
		scanner.Buffer(make([]byte, 1<<16), 1<<24)

		switch format {
		case FormatFasta:
			errc <- scanFasta(scanner, out)
		case FormatFastq:
			errc <- scanFastq(scanner, out)
		default:
			errc <- scanPlain(scanner, out)
		}
	}()
	return out, errc
}

func scanFasta(scanner *bufio.Scanner, out chan<- Record) error {
	var name string
	var seq bytes.Buffer
	flush := func() {
		if name != "" {
			out <- Record{Name: name, Seq: append([]byte(nil), seq.Bytes()...)}
		}
		seq.Reset()
	}
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, ">") {
			flush()
			name = strings.TrimPrefix(line, ">")
		} else {
			seq.WriteString(strings.TrimSpace(line))
		}
	}
	flush()
	return scanner.Err()
}

func scanFastq(scanner *bufio.Scanner, out chan<- Record) error {
	for scanner.Scan() {
		header := scanner.Text()
		if !strings.HasPrefix(header, "@") {
			continue
		}
		if !scanner.Scan() {
			break
		}
		seq := scanner.Text()
		if !scanner.Scan() { // '+' separator line
			break
		}
		if !scanner.Scan() { // quality line, unused
			break
		}
		out <- Record{Name: strings.TrimPrefix(header, "@"), Seq: []byte(seq)}
	}
	return scanner.Err()
}

func scanPlain(scanner *bufio.Scanner, out chan<- Record) error {
	i := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		out <- Record{Name: strconv.Itoa(i), Seq: []byte(line)}
		i++
	}
	return scanner.Err()
}

// ContigWriter writes contig FASTA records in the ">id length mean_coverage"
// header convention, using biogo's linear.Seq + io/seqio/fasta writer
// (a teacher dependency no component in the retrieved slice exercised for
// writing).
type ContigWriter struct {
	w *fasta.Writer
}

// NewContigWriter wraps w for writing.
func NewContigWriter(w io.Writer) *ContigWriter {
	return &ContigWriter{w: fasta.NewWriter(w, 70)}
}

// WriteContig emits one contig record with the header
// ">id length mean_coverage".
func (cw *ContigWriter) WriteContig(id string, seq []byte, meanCov float64) error {
	letters := make([]alphabet.Letter, len(seq))
	for i, b := range seq {
		letters[i] = alphabet.Letter(b)
	}
	s := linear.NewSeq(headerFor(id, len(seq), meanCov), letters, alphabet.DNA)
	_, err := cw.w.Write(s)
	return errors.Wrap(err, "seqio: writing contig")
}

func headerFor(id string, length int, meanCov float64) string {
	return id + " " + strconv.Itoa(length) + " " + strconv.FormatFloat(meanCov, 'f', 2, 64)
}
