// Package compute enumerates, for one window of a posterior probability
// matrix, every k-mer whose score exceeds a log-space threshold. Four
// algorithms produce the same set: branch-and-bound, divide-and-conquer,
// divide-and-conquer with lookahead bounds, and divide-and-conquer over
// chained windows.
package compute

import (
	"fmt"
	"sort"
	"strings"

	"github.com/PhyloKorp/ipkdb/phylokmer"
	"github.com/PhyloKorp/ipkdb/proba"
)

// Algorithm selects the enumeration strategy.
type Algorithm int

const (
	// AlgBB is branch-and-bound over positions.
	AlgBB Algorithm = iota
	// AlgDC is divide-and-conquer with no lookahead bound.
	AlgDC
	// AlgDCLA is divide-and-conquer with the lookahead bound.
	AlgDCLA
	// AlgDCCW is partition-based divide-and-conquer with chained windows.
	AlgDCCW
)

func (a Algorithm) String() string {
	switch a {
	case AlgBB:
		return "BB"
	case AlgDC:
		return "DC"
	case AlgDCLA:
		return "DCLA"
	case AlgDCCW:
		return "DCCW"
	default:
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
}

// ParseAlgorithm resolves an algorithm name, case-insensitively.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToUpper(name) {
	case "BB":
		return AlgBB, nil
	case "DC":
		return AlgDC, nil
	case "DCLA":
		return AlgDCLA, nil
	case "DCCW":
		return AlgDCCW, nil
	default:
		return 0, fmt.Errorf("unknown algorithm %q", name)
	}
}

// asColumn turns one window column into its alive 1-mers.
func asColumn(w proba.Window, j int, eps phylokmer.Score) []phylokmer.PhyloKmer {
	var column []phylokmer.PhyloKmer
	for i := 0; i < w.Depth(); i++ {
		if element := w.Get(i, j); element > eps {
			column = append(column, phylokmer.PhyloKmer{Key: phylokmer.Key(i), Score: element})
		}
	}
	return column
}

func sortByScoreDesc(kmers []phylokmer.PhyloKmer) {
	sort.Slice(kmers, func(i, j int) bool {
		return kmers[i].Score > kmers[j].Score
	})
}

// join pairs prefixes with suffixes, keeping combinations above eps. The
// smaller side is sorted by score descending so each scan stops at the first
// pair that cannot pass the threshold. suffixLen is the number of columns
// the suffix side spans.
func join(l, r []phylokmer.PhyloKmer, suffixLen int, bits uint, eps phylokmer.Score,
	out []phylokmer.PhyloKmer) []phylokmer.PhyloKmer {

	prefixSort := len(l) < len(r)
	small, large := l, r
	if !prefixSort {
		small, large = r, l
	}
	if len(small) == 0 {
		return out
	}

	sortByScoreDesc(small)
	shift := uint(suffixLen) * bits

	for _, a := range large {
		for _, b := range small {
			score := a.Score + b.Score
			if score <= eps {
				break
			}
			var key phylokmer.Key
			if prefixSort {
				key = b.Key<<shift | a.Key
			} else {
				key = a.Key<<shift | b.Key
			}
			out = append(out, phylokmer.PhyloKmer{Key: key, Score: score})
		}
	}
	return out
}

// Enumerate runs the selected algorithm over every window of the matrix and
// calls emit with each window's alive k-mers. Within a window the emitted
// keys are unique; across windows the caller deduplicates by keeping the
// maximum score.
func Enumerate(alg Algorithm, m *proba.Matrix, k int, bits uint, eps phylokmer.Score,
	emit func(w proba.Window, kmers []phylokmer.PhyloKmer)) {

	switch alg {
	case AlgDCCW:
		for _, chain := range proba.Chains(m, k) {
			enumerateChain(chain, k, bits, eps, emit)
		}
	default:
		for _, w := range proba.ToWindows(m, k) {
			emit(w, enumerateWindow(alg, w, k, bits, eps))
		}
	}
}

func enumerateWindow(alg Algorithm, w proba.Window, k int, bits uint,
	eps phylokmer.Score) []phylokmer.PhyloKmer {

	switch alg {
	case AlgBB:
		return runBB(w, k, bits, eps)
	case AlgDC:
		e := dcEnumerator{window: w, k: k, bits: bits, lookahead: false}
		return e.dc(0, k, eps)
	default:
		e := dcEnumerator{window: w, k: k, bits: bits, lookahead: true}
		return e.dc(0, k, eps)
	}
}

// enumerateChain runs DCCW over one chain, carrying each window's suffixes
// into the successor as ready-made prefixes. Carry-over needs the suffix of
// a window to cover exactly the prefix columns of its successor, which holds
// for even k only; odd k recomputes prefixes per window.
func enumerateChain(chain []proba.Window, k int, bits uint, eps phylokmer.Score,
	emit func(w proba.Window, kmers []phylokmer.PhyloKmer)) {

	carry := k%2 == 0
	var prefixes []phylokmer.PhyloKmer

	for idx, w := range chain {
		lookbehind := negInfScore()
		if carry && idx > 0 {
			lookbehind = chain[idx-1].RangeMaxProduct(0, k/2)
		}
		lookahead := negInfScore()
		if carry && idx+1 < len(chain) {
			lookahead = chain[idx+1].RangeMaxProduct(k/2, k-k/2)
		}

		d := newDCCW(w, prefixes, k, bits, lookbehind, lookahead)
		d.run(eps)
		emit(w, d.result)

		if carry {
			prefixes = d.suffixes
		}
	}
}
