package scaffold

import "math"

// Memo caches Scaffold results by (n,s) so the grid and line searches,
// which repeatedly revisit the same coordinate while optimizing the other
// one, never rerun the pipeline twice for the same pair. Grounded on
// ScaffoldMemo's map<ScaffoldParam, ScaffoldResult> cache in scaffold.cc.
type Memo struct {
	g0    *Graph
	lim   Limits
	cache map[Param]Result
}

// NewMemo creates an empty memo bound to g0/lim.
func NewMemo(g0 *Graph, lim Limits) *Memo {
	return &Memo{g0: g0, lim: lim, cache: make(map[Param]Result)}
}

// Get runs (or returns the cached run of) Scaffold for p.
func (m *Memo) Get(p Param) Result {
	if r, ok := m.cache[p]; ok {
		return r
	}
	r := Scaffold(m.g0, p, m.lim)
	m.cache[p] = r
	return r
}

func better(a, b Result) bool { return a.Stats.N50 > b.Stats.N50 }

// OptimizeN holds s fixed and linearly scans n in [nMin,nMax] step nStep,
// returning the best result found, mirroring optimize_n's straightforward
// sweep (n has no natural log-scale structure, unlike s).
func (m *Memo) OptimizeN(nMin, nMax, nStep int, s float64) Result {
	best := m.Get(Param{N: nMin, S: s})
	for n := nMin + nStep; n <= nMax; n += nStep {
		r := m.Get(Param{N: n, S: s})
		if better(r, best) {
			best = r
		}
	}
	return best
}

// OptimizeS holds n fixed and scans s geometrically from sMin to sMax in
// steps of cbrt(10) (three steps per decade), rounding each candidate to
// one significant figure the way optimize_s does before evaluating it, so
// the search explores the practically distinct range of an otherwise
// continuous threshold.
func (m *Memo) OptimizeS(sMin, sMax float64, n int) Result {
	if sMin <= 0 {
		sMin = 1
	}
	step := math.Cbrt(10)
	best := m.Get(Param{N: n, S: roundSig1(sMin)})
	for s := sMin * step; s <= sMax; s *= step {
		r := m.Get(Param{N: n, S: roundSig1(s)})
		if better(r, best) {
			best = r
		}
	}
	return best
}

// roundSig1 rounds v to one significant figure, e.g. 347 -> 300, 0.0347 ->
// 0.03, matching optimize_s's display-friendly threshold rounding.
func roundSig1(v float64) float64 {
	if v == 0 {
		return 0
	}
	mag := math.Pow(10, math.Floor(math.Log10(math.Abs(v))))
	return math.Round(v/mag) * mag
}

// OptimizeGridSearch exhaustively evaluates every (n,s) pair in the
// supplied ranges and returns the best, grounded on optimize_grid_search's
// nested n x s sweep. Intended for small ranges; OptimizeLineSearch scales
// better for wide ones.
func (m *Memo) OptimizeGridSearch(nMin, nMax, nStep int, sMin, sMax float64) Result {
	if sMin <= 0 {
		sMin = 1
	}
	step := math.Cbrt(10)
	var best Result
	first := true
	for n := nMin; n <= nMax; n += nStep {
		for s := sMin; s <= sMax; s *= step {
			r := m.Get(Param{N: n, S: roundSig1(s)})
			if first || better(r, best) {
				best = r
				first = false
			}
		}
	}
	return best
}

// OptimizeLineSearch alternates fixing n and optimizing s, then fixing s
// and optimizing n, starting from n at the midpoint of [nMin,nMax] and s at
// sMax, until neither coordinate changes or the iteration bound is
// reached. The bound is derived from the n range and step rather than a
// fixed constant, so a wide search space gets the alternations it needs to
// converge instead of being cut off at an arbitrary 10. Grounded on
// optimize_line_search's coordinate-descent driver.
func (m *Memo) OptimizeLineSearch(nMin, nMax, nStep int, sMin, sMax float64) Result {
	if nStep <= 0 {
		nStep = 1
	}
	n := nMin + (nMax-nMin)/2
	s := sMax
	if s <= 0 {
		s = 1
	}
	maxIter := (nMax-nMin)/nStep + 1

	best := m.Get(Param{N: n, S: roundSig1(s)})
	for i := 0; i < maxIter; i++ {
		rs := m.OptimizeS(sMin, sMax, n)
		changed := rs.Param.S != s
		s, best = rs.Param.S, rs

		rn := m.OptimizeN(nMin, nMax, nStep, s)
		if rn.Param.N != n {
			changed = true
		}
		n, best = rn.Param.N, rn

		if !changed {
			break
		}
	}
	return best
}
