package scaffold

import (
	"sort"
	"strconv"
)

// Stats holds the contiguity metrics the source computes once per
// scaffold run: N50 and friends, the Esize (expected size a random
// base falls in), and the telemetry keys addCntgStatsToDb writes.
type Stats struct {
	N      int // number of scaffolds >= 200bp
	NTotal int // number of scaffolds, any length
	Min    int
	Max    int
	Sum    int
	N25    int
	N50    int
	N75    int
	NG50   int // N50 against a fixed genome size, 0 if genomeSize == 0
	NNG50  int
	NN50   int
	Esize  float64
}

// BuildStats computes Stats over a sorted-ascending list of scaffold
// lengths, mirroring buildScaffoldLengthHistogram + the N50/NG50/Esize
// accessors in scaffold.cc's Histogram wrapper. genomeSize == 0 skips the
// NG50 computation (no reference size to compare against).
func BuildStats(sortedLengths []int, genomeSize int64) Stats {
	var s Stats
	s.NTotal = len(sortedLengths)
	if s.NTotal == 0 {
		return s
	}
	kept := make([]int, 0, len(sortedLengths))
	for _, l := range sortedLengths {
		if l >= 200 {
			kept = append(kept, l)
		}
	}
	sort.Ints(kept)
	s.N = len(kept)
	s.Min = sortedLengths[0]
	s.Max = sortedLengths[len(sortedLengths)-1]
	for _, l := range sortedLengths {
		s.Sum += l
	}

	nxx := func(lengths []int, total int, pct float64) (int, int) {
		target := float64(total) * pct
		var cum float64
		desc := append([]int(nil), lengths...)
		sort.Sort(sort.Reverse(sort.IntSlice(desc)))
		for i, l := range desc {
			cum += float64(l)
			if cum >= target {
				return l, i + 1
			}
		}
		if len(desc) == 0 {
			return 0, 0
		}
		return desc[len(desc)-1], len(desc)
	}

	s.N25, _ = nxx(kept, s.Sum, 0.25)
	s.N50, s.NN50 = nxx(kept, s.Sum, 0.50)
	s.N75, _ = nxx(kept, s.Sum, 0.75)

	if genomeSize > 0 {
		s.NG50, s.NNG50 = nxx(kept, int(genomeSize), 0.50)
	}

	var esum float64
	for _, l := range kept {
		esum += float64(l) * float64(l)
	}
	if s.Sum > 0 {
		s.Esize = esum / float64(s.Sum)
	}
	return s
}

// Telemetry returns the key/value pairs addCntgStatsToDb writes for one
// Stats snapshot.
func (s Stats) Telemetry() map[string]string {
	itoa := strconv.Itoa
	return map[string]string{
		"n":     itoa(s.NTotal),
		"n200":  itoa(s.N),
		"nN50":  itoa(s.NN50),
		"min":   itoa(s.Min),
		"N75":   itoa(s.N75),
		"N50":   itoa(s.N50),
		"N25":   itoa(s.N25),
		"max":   itoa(s.Max),
		"sum":   itoa(s.Sum),
		"nNG50": itoa(s.NNG50),
		"NG50":  itoa(s.NG50),
	}
}
