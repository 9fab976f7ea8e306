package compute

import (
	"math"

	"github.com/PhyloKorp/ipkdb/phylokmer"
	"github.com/PhyloKorp/ipkdb/proba"
)

func negInfScore() phylokmer.Score {
	return phylokmer.Score(math.Inf(-1))
}

// dcEnumerator implements divide-and-conquer enumeration, with or without
// the lookahead bound. Scores only decrease as columns are appended, so
// recursing with the parent threshold is complete; the lookahead variant
// tightens each side's threshold by the best score attainable on the other
// side.
type dcEnumerator struct {
	window    proba.Window
	k         int
	bits      uint
	lookahead bool
}

// dc solves the column range [j, j+h) and returns its alive words.
func (e *dcEnumerator) dc(j, h int, eps phylokmer.Score) []phylokmer.PhyloKmer {
	if h == 1 {
		return asColumn(e.window, j, eps)
	}

	half := h / 2
	epsL, epsR := eps, eps
	if e.lookahead {
		epsL = eps - e.window.RangeMaxProduct(j+half, h-half)
		epsR = eps - e.window.RangeMaxProduct(j, half)
	}

	l := e.dc(j, half, epsL)
	r := e.dc(j+half, h-half, epsR)

	return join(l, r, h-half, e.bits, eps, nil)
}
