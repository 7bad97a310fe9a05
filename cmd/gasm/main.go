// Command gasm is the de novo assembler CLI: construct a cuckoo filter over
// trusted k-mers (ccf), build the de Bruijn graph from it (cdbg), simplify
// the graph into contigs (smfy), and scaffold the contigs into longer
// sequences by searching the read-pair distance-estimate graph (scaffold).
//
// Grounded on ga.go's odin/cli wiring: one *cli.App with global -K/-p/-C/-t
// flags and a DefineSubCommand per phase, each with its own flag set.
package main

import (
	"bufio"
	"bytes"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"sort"
	"strings"

	"github.com/jwaldrip/odin/cli"

	"gasm/internal/assemble"
	"gasm/internal/config"
	"gasm/internal/cuckoofilter"
	"gasm/internal/dot"
	"gasm/internal/graph"
	"gasm/internal/kmer"
	"gasm/internal/scaffold"
	"gasm/internal/seqio"
	"gasm/internal/telemetry"
	"gasm/utils"
)

const defaultKmerLen = 31

var app = cli.New("1.0.0", "de novo genome assembler", func(c cli.Command) {})

func init() {
	go func() {
		log.Println(http.ListenAndServe("localhost:6090", nil))
	}()
	app.DefineStringFlag("C", "gasm.cfg", "library configuration file")
	app.DefineStringFlag("cpuprofile", "", "write cpu profile to file")
	app.DefineIntFlag("K", defaultKmerLen, "kmer length")
	app.DefineStringFlag("p", "./out/gasm", "prefix of the output files")
	app.DefineIntFlag("t", 1, "number of CPU used")
	app.DefineStringFlag("db", "", "optional SQLite telemetry database path")
	app.DefineStringFlag("SS", "", "spaced-seed pattern of 0/1 chars, length K; '0' marks a don't-care position")
	app.DefineIntFlag("v", 0, "verbosity level")

	ccf := app.DefineSubCommand("ccf", "construct a cuckoo filter of trusted kmers", runCCF)
	{
		ccf.DefineInt64Flag("S", 0, "expected number of items the cuckoo filter holds")
		ccf.DefineIntFlag("MinKmerFreq", 2, "min kmer frequency counted in the trusted-kmer summary (every kmer is stored)")
		ccf.DefineStringFlag("reads", "", "input reads file (fasta/fastq, optionally gzipped)")
	}

	cdbg := app.DefineSubCommand("cdbg", "construct the de Bruijn graph", runCDBG)
	{
		cdbg.DefineIntFlag("MinKmerFreq", 2, "min kmer frequency allowed to extend")
		cdbg.DefineStringFlag("reads", "", "input reads file (fasta/fastq, optionally gzipped)")
	}

	smfy := app.DefineSubCommand("smfy", "simplify the de Bruijn graph into contigs", runSmfy)
	{
		smfy.DefineIntFlag("erode", 0, "coverage threshold below which tip bases are eroded, default[0] for 2")
		smfy.DefineIntFlag("tipMaxLen", 0, "maximum length of an isolated dead-end chain to trim, default[0] for 2*K")
		smfy.DefineIntFlag("bubbleLen", 0, "maximum bubble branch length, default[0] for 2*K")
		smfy.DefineIntFlag("lowCov", 0, "explicit low-coverage cutoff, default[0] derives from the histogram")
		smfy.DefineBoolFlag("Graph", false, "write a DOT graph of the adjacency alongside the contigs")
	}

	sc := app.DefineSubCommand("scaffold", "scaffold contigs using read-pair distance estimates", runScaffold)
	{
		sc.DefineIntFlag("n-min", 1, "minimum supporting-pairs threshold to search from")
		sc.DefineIntFlag("n-max", 20, "maximum supporting-pairs threshold to search to")
		sc.DefineIntFlag("n-step", 1, "step between n values in a grid search")
		sc.DefineFloat64Flag("s-min", 1, "minimum stddev threshold to search from")
		sc.DefineFloat64Flag("s-max", 100, "maximum stddev threshold to search to")
		sc.DefineStringFlag("search", "line", "optimizer: grid|line")
		sc.DefineIntFlag("minContigLen", 200, "minimum contig length kept as a scaffold seed")
		sc.DefineIntFlag("maxTipLen", 500, "maximum scaffold-graph tip length pruned")
		sc.DefineIntFlag("maxGap", 50000, "maximum gap a single distance estimate may bridge")
		sc.DefineInt64Flag("G", 0, "genome size for NG50, 0 disables it")
		sc.DefineStringFlag("Graph", "", "write a DOT graph of the edges along the best run's scaffold paths to this path (d/n/s written as 0; edges off those paths are not written)")
		sc.DefineStringFlag("contigs", "", "contigs FASTA written by smfy (header: \"id length meanCov\")")
		sc.DefineStringFlag("dist", "", "distance-estimate DOT file listing scaffold-graph edges (d=/n=/s=)")
		sc.DefineIntFlag("min-gap", 50, "minimum gap length materialized between scaffolded contigs")
		sc.DefineIntFlag("bubbleLen", 10, "maximum scaffold-graph bubble branch length, in linked contigs")
		sc.DefineBoolFlag("complex", false, "use the complex transitive-edge-removal variant (also drops longer-path shortcuts)")
		sc.DefineStringFlag("o", "", "write assembled scaffold paths, with gap pseudo-vertices, to this file")
	}
}

func main() {
	app.Start()
}

func die(err error) {
	fmt.Fprintln(os.Stderr, "gasm:", err)
	os.Exit(1)
}

func openTelemetry(c cli.Command) *telemetry.Sink {
	sink, err := telemetry.Open(c.Parent().Flag("db").String(), c.Name())
	if err != nil {
		die(err)
	}
	return sink
}

func runCCF(c cli.Command) {
	cfg, err := config.FromGlobal(c.Parent())
	if err != nil {
		die(err)
	}
	if err := cfg.Validate(); err != nil {
		die(err)
	}
	sink := openTelemetry(c)
	defer sink.Close()

	readsPath := c.Flag("reads").String()
	minFreq := c.Flag("MinKmerFreq").Get().(int)
	expectedItems := uint64(c.Flag("S").Get().(int64))
	if expectedItems == 0 {
		expectedItems = 1 << 24
	}
	recs, errc := seqio.Stream(readsPath)

	cf := cuckoofilter.MakeCuckooFilter(expectedItems, cfg.KmerLen)
	seen := 0
	slideWindows(recs, cfg.KmerLen, cfg.Mask, func(km kmer.Kmer) {
		cf.InsertKmer(km)
		seen++
	})
	if err := <-errc; err != nil {
		die(err)
	}

	trusted := 0
	slideWindows(reopenOrEmpty(readsPath), cfg.KmerLen, cfg.Mask, func(km kmer.Kmer) {
		if int(cf.GetKmerCount(km)) >= minFreq {
			trusted++
		}
	})

	occupied, load := cf.LoadStats()
	fmt.Printf("ccf: inserted %d kmer observations into the cuckoo filter\n", seen)
	sink.Add("ccf", "summary", "observations", fmt.Sprint(seen))
	sink.Add("ccf", "summary", "trustedKmers", fmt.Sprint(trusted))
	sink.Add("ccf", "summary", "occupiedSlots", fmt.Sprint(occupied))
	sink.Add("ccf", "summary", "loadFactor", fmt.Sprintf("%.4f", load))

	if err := cf.WriteCuckooFilterInfo(cfg.Prefix + ".cf.info"); err != nil {
		die(err)
	}
	if err := cf.MmapWriter(cfg.Prefix + ".cf.mmap"); err != nil {
		die(err)
	}
}

// slideWindows streams every record from recs and calls fn once per valid
// (all-ACGT) canonical k-mer window. mask, if non-nil, selects the
// spaced-seed positions canonicalization compares (component A's --SS).
func slideWindows(recs <-chan seqio.Record, k int, mask kmer.Mask, fn func(kmer.Kmer)) {
	for r := range recs {
		if len(r.Seq) < k {
			continue
		}
		for i := 0; i+k <= len(r.Seq); i++ {
			km, err := kmer.New(r.Seq[i : i+k])
			if err != nil {
				continue
			}
			canon, _ := km.CanonicalMasked(mask)
			fn(canon)
		}
	}
}

// reopenOrEmpty re-streams path for ccf's second pass (checking the filter
// it just built), matching the teacher's two-pass construct-then-verify
// shape in ParaConstructCF.
func reopenOrEmpty(path string) <-chan seqio.Record {
	recs, _ := seqio.Stream(path)
	return recs
}

func runCDBG(c cli.Command) {
	cfg, err := config.FromGlobal(c.Parent())
	if err != nil {
		die(err)
	}
	if err := cfg.Validate(); err != nil {
		die(err)
	}
	sink := openTelemetry(c)
	defer sink.Close()

	readsPath := c.Flag("reads").String()
	minFreq := uint32(c.Flag("MinKmerFreq").Get().(int))

	cfPath := cfg.Prefix + ".cf.mmap"
	cf, err := cuckoofilter.MmapReader(cfPath)
	if err != nil {
		die(fmt.Errorf("cdbg: loading cuckoo filter %s (run ccf first): %w", cfPath, err))
	}

	recs, errc := seqio.Stream(readsPath)
	t := graph.NewVertexTable(cfg.KmerLen, 0).WithMask(cfg.Mask)
	admitted, skipped := 0, 0
	for r := range recs {
		a, s := admitKmers(r.Seq, cfg.KmerLen, cfg.Mask, cf, minFreq, t)
		admitted += a
		skipped += s
	}
	if err := <-errc; err != nil {
		die(err)
	}

	t.GenerateAdjacency()
	fmt.Printf("cdbg: built graph with %d vertices (%d observations admitted by the cuckoo filter, %d rejected)\n", t.Len(), admitted, skipped)
	sink.Add("cdbg", "summary", "vertices", fmt.Sprint(t.Len()))
	sink.Add("cdbg", "summary", "admitted", fmt.Sprint(admitted))
	sink.Add("cdbg", "summary", "rejected", fmt.Sprint(skipped))

	if err := graph.Save(t, cfg.Prefix+".dbg.bin"); err != nil {
		die(err)
	}
	if err := os.WriteFile(cfg.Prefix+".dbg.dot", []byte(dot.WriteAdjacency(t)), 0644); err != nil {
		die(err)
	}
}

// admitKmers slides a window of length k across seq, asking the cuckoo
// filter cf built by ccf whether each canonical kmer was observed at least
// minFreq times across the whole read set; only admitted kmers get a
// VertexTable entry allocated (and its Mult accumulated for real, since the
// filter's own count saturates at MAX_C). Windows containing a non-ACGT
// base are skipped.
func admitKmers(seq []byte, k int, mask kmer.Mask, cf cuckoofilter.CuckooFilter, minFreq uint32, t *graph.VertexTable) (admitted, rejected int) {
	if len(seq) < k {
		return 0, 0
	}
	for i := 0; i+k <= len(seq); i++ {
		km, err := kmer.New(seq[i : i+k])
		if err != nil {
			continue
		}
		canon, _ := km.CanonicalMasked(mask)
		if uint32(cf.GetKmerCount(canon)) < minFreq {
			rejected++
			continue
		}
		t.Insert(canon)
		admitted++
	}
	return admitted, rejected
}

func runSmfy(c cli.Command) {
	cfg, err := config.FromGlobal(c.Parent())
	if err != nil {
		die(err)
	}
	if err := cfg.Validate(); err != nil {
		die(err)
	}
	sink := openTelemetry(c)
	defer sink.Close()

	tipMaxLen := c.Flag("tipMaxLen").Get().(int)
	if tipMaxLen == 0 {
		tipMaxLen = 2 * cfg.KmerLen
	}
	bubbleLen := c.Flag("bubbleLen").Get().(int)
	if bubbleLen == 0 {
		bubbleLen = 2 * cfg.KmerLen
	}

	dbgPath := cfg.Prefix + ".dbg.bin"
	t, err := graph.Load(dbgPath, cfg.KmerLen, cfg.Mask)
	if err != nil {
		die(fmt.Errorf("smfy: loading de Bruijn graph %s (run cdbg first): %w", dbgPath, err))
	}

	erode := c.Flag("erode").Get().(int)
	if erode == 0 {
		erode = 2
	}

	var counters assemble.Counters
	counters.Eroded = assemble.ErodeLowCoverageTips(t, uint32(erode))
	counters.Trimmed = assemble.TrimDeadEnds(t, tipMaxLen)
	bubbles := assemble.PopBubbles(t, bubbleLen)
	counters.BubblesPopped = len(bubbles)

	kc := uint32(c.Flag("lowCov").Get().(int))
	if kc == 0 {
		hist := graph.BuildHistogram(t)
		if threshold, ok := hist.Threshold(); ok {
			kc = threshold
		} else {
			fmt.Fprintln(os.Stderr, "smfy: no coverage local minimum found, skipping low-coverage removal")
		}
	}
	if kc > 0 {
		counters.LowCovRemoved = assemble.RemoveLowCoverageContigs(t, kc)
	}

	contigs := assemble.WalkContigs(t)
	if len(contigs) == 0 {
		die(fmt.Errorf("smfy: zero contigs produced from %s, refusing to write an empty assembly", dbgPath))
	}
	counters.ContigsWalked = len(contigs)

	out, err := os.Create(cfg.Prefix + ".contigs.fa")
	if err != nil {
		die(err)
	}
	defer out.Close()
	cw := seqio.NewContigWriter(out)
	for _, ctg := range contigs {
		if err := cw.WriteContig(fmt.Sprint(ctg.ID), []byte(ctg.Sequence()), ctg.MeanCov()); err != nil {
			die(err)
		}
	}

	if c.Flag("Graph").Get().(bool) {
		if err := os.WriteFile(cfg.Prefix+".smfy.dot", []byte(dot.WriteAdjacency(t)), 0644); err != nil {
			die(err)
		}
	}

	sink.Add("smfy", "summary", "contigs", fmt.Sprint(counters.ContigsWalked))
	sink.Add("smfy", "summary", "eroded", fmt.Sprint(counters.Eroded))
	sink.Add("smfy", "summary", "trimmed", fmt.Sprint(counters.Trimmed))
	sink.Add("smfy", "summary", "bubblesPopped", fmt.Sprint(counters.BubblesPopped))
	sink.Add("smfy", "summary", "lowCovRemoved", fmt.Sprint(counters.LowCovRemoved))
}

func runScaffold(c cli.Command) {
	cfg, err := config.FromGlobal(c.Parent())
	if err != nil {
		die(err)
	}
	if err := cfg.Validate(); err != nil {
		die(err)
	}
	sink := openTelemetry(c)
	defer sink.Close()

	lim := scaffold.Limits{
		MinContigLen: c.Flag("minContigLen").Get().(int),
		MaxTipLen:    c.Flag("maxTipLen").Get().(int),
		MaxGap:       c.Flag("maxGap").Get().(int),
		MinGap:       c.Flag("min-gap").Get().(int),
		BubbleLen:    c.Flag("bubbleLen").Get().(int),
		Complex:      c.Flag("complex").Get().(bool),
		K:            cfg.KmerLen,
	}
	genomeSize := c.Flag("G").Get().(int64)

	contigs := map[int]scaffold.ContigInfo{}
	if contigsPath := c.Flag("contigs").String(); contigsPath != "" {
		var err error
		contigs, err = loadContigInfo(contigsPath)
		if err != nil {
			die(err)
		}
	}

	g0 := scaffold.NewGraph(contigs)
	if distPath := c.Flag("dist").String(); distPath != "" {
		if err := loadDistanceEdges(distPath, g0); err != nil {
			die(err)
		}
	}
	g0.AddComplementaryEdges()

	memo := scaffold.NewMemo(g0, lim)
	nMin, nMax, nStep := c.Flag("n-min").Get().(int), c.Flag("n-max").Get().(int), c.Flag("n-step").Get().(int)
	sMin, sMax := c.Flag("s-min").Get().(float64), c.Flag("s-max").Get().(float64)

	var best scaffold.Result
	switch c.Flag("search").String() {
	case "grid":
		best = memo.OptimizeGridSearch(nMin, nMax, nStep, sMin, sMax)
	default:
		best = memo.OptimizeLineSearch(nMin, nMax, nStep, sMin, sMax)
	}

	lengths := make([]int, 0, len(best.Segments))
	for _, segs := range best.Segments {
		lengths = append(lengths, segmentsLength(g0, segs))
	}
	sort.Ints(lengths)
	stats := scaffold.BuildStats(lengths, genomeSize)

	fmt.Printf("scaffold: best n=%d s=%.2f\n", best.Param.N, best.Param.S)
	fmt.Println("n\tn200\tnN50\tmin\tN75\tN50\tN25\tmax\tsum")
	fmt.Printf("%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
		stats.NTotal, stats.N, stats.NN50, stats.Min, stats.N75, stats.N50, stats.N25, stats.Max, stats.Sum)
	for k, v := range stats.Telemetry() {
		sink.Add("scaffold", "stats", k, v)
	}

	if outPath := c.Flag("o").String(); outPath != "" {
		if err := writeScaffoldPaths(outPath, best.Segments); err != nil {
			die(err)
		}
	}

	if dotPath := c.Flag("Graph").String(); dotPath != "" {
		var edges []dot.EdgeAttrs
		nodeSet := make(map[string]bool)
		for _, path := range best.Paths {
			for i := 0; i+1 < len(path); i++ {
				nodeSet[nodeName(path[i])] = true
				nodeSet[nodeName(path[i+1])] = true
				edges = append(edges, dot.EdgeAttrs{From: nodeName(path[i]), To: nodeName(path[i+1])})
			}
		}
		nodes := make([]string, 0, len(nodeSet))
		for n := range nodeSet {
			nodes = append(nodes, n)
		}
		sort.Strings(nodes)
		if err := os.WriteFile(dotPath, []byte(dot.WriteScaffoldGraph(nodes, edges)), 0644); err != nil {
			die(err)
		}
	}
}

// loadContigInfo reads the ">id length meanCov" headers a contigs FASTA
// carries (the convention seqio.ContigWriter.WriteContig writes) into the
// per-contig length table the scaffolder's vertex set is built from.
func loadContigInfo(path string) (map[int]scaffold.ContigInfo, error) {
	recs, errc := seqio.Stream(path)
	info := make(map[int]scaffold.ContigInfo)
	for r := range recs {
		fields := bytes.Fields([]byte(r.Name))
		if len(fields) < 2 {
			continue
		}
		id, err := utils.ByteArrInt(fields[0])
		if err != nil {
			continue
		}
		length, err := utils.ByteArrInt(fields[1])
		if err != nil {
			continue
		}
		info[id] = scaffold.ContigInfo{Length: length}
	}
	if err := <-errc; err != nil {
		return nil, err
	}
	return info, nil
}

func nodeName(n scaffold.Node) string {
	if n.Reverse {
		return fmt.Sprintf("%d-", n.ContigID)
	}
	return fmt.Sprintf("%d+", n.ContigID)
}

// parseNode inverts nodeName: "3+" -> contig 3 sense, "3-" -> contig 3
// antisense.
func parseNode(s string) (scaffold.Node, error) {
	if len(s) < 2 {
		return scaffold.Node{}, fmt.Errorf("scaffold: malformed node %q", s)
	}
	sign := s[len(s)-1]
	if sign != '+' && sign != '-' {
		return scaffold.Node{}, fmt.Errorf("scaffold: node %q missing a +/- orientation suffix", s)
	}
	id, err := utils.ByteArrInt([]byte(s[:len(s)-1]))
	if err != nil {
		return scaffold.Node{}, fmt.Errorf("scaffold: bad contig id in node %q: %w", s, err)
	}
	return scaffold.Node{ContigID: id, Reverse: sign == '-'}, nil
}

// loadDistanceEdges reads the distance-estimate graph at path (the
// "FASTA|OVERLAP DIST..." positional input a scaffolder takes) and adds
// every edge it lists to g0.
func loadDistanceEdges(path string, g0 *scaffold.Graph) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	edges, err := dot.ReadDistanceGraph(f)
	if err != nil {
		return err
	}
	for _, e := range edges {
		u, err := parseNode(e.From)
		if err != nil {
			return err
		}
		v, err := parseNode(e.To)
		if err != nil {
			return err
		}
		g0.AddEdge(u, v, scaffold.DistanceEst{NumPairs: e.N, Distance: e.Distance, StdDev: e.StdDev})
	}
	return nil
}

// segmentsLength sums a scaffold path's contig lengths plus its materialized
// gap pseudo-vertices, the total span BuildStats' N50 is computed over.
func segmentsLength(g *scaffold.Graph, segs []scaffold.Segment) int {
	total := 0
	for _, s := range segs {
		if s.Gap {
			total += s.GapLen
			continue
		}
		total += g.Contigs[s.Node.ContigID].Length
	}
	return total
}

// writeScaffoldPaths writes one line per scaffold to path, each a
// whitespace-separated run of contig tokens ("3+", "7-") punctuated by
// explicit gap tokens ("G<n>") for the materialized gap pseudo-vertices
// between them, so a gap's estimated length survives into the emitted
// scaffold instead of being silently dropped between contigs.
func writeScaffoldPaths(path string, segments [][]scaffold.Segment) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, segs := range segments {
		tokens := make([]string, 0, len(segs))
		for _, s := range segs {
			if s.Gap {
				tokens = append(tokens, fmt.Sprintf("G%d", s.GapLen))
				continue
			}
			tokens = append(tokens, nodeName(s.Node))
		}
		if _, err := fmt.Fprintln(w, strings.Join(tokens, " ")); err != nil {
			return err
		}
	}
	return w.Flush()
}
