package compute

import (
	"sort"

	"github.com/PhyloKorp/ipkdb/phylokmer"
	"github.com/PhyloKorp/ipkdb/proba"
)

// dccw enumerates one window of a chain, reusing the previous window's
// suffixes as prefixes and keeping extra suffixes alive for the next window.
//
// lookbehind is the best prefix score of the previous window: when it beats
// this window's prefix bound, the carried prefixes contain strings that are
// dead here and must be partitioned away before the join. lookahead is the
// best suffix score of the next window and plays the symmetric role for the
// suffixes computed here.
type dccw struct {
	window proba.Window
	k      int
	bits   uint

	lookbehind phylokmer.Score
	lookahead  phylokmer.Score

	prefixes []phylokmer.PhyloKmer
	suffixes []phylokmer.PhyloKmer
	result   []phylokmer.PhyloKmer
}

func newDCCW(w proba.Window, prefixes []phylokmer.PhyloKmer, k int, bits uint,
	lookbehind, lookahead phylokmer.Score) *dccw {
	return &dccw{
		window:     w,
		k:          k,
		bits:       bits,
		lookbehind: lookbehind,
		lookahead:  lookahead,
		prefixes:   prefixes,
	}
}

func (d *dccw) run(eps phylokmer.Score) {
	if d.k == 1 {
		d.result = asColumn(d.window, 0, eps)
		return
	}

	half := d.k / 2
	suffixLen := d.k - half

	dc := dcEnumerator{window: d.window, k: d.k, bits: d.bits, lookahead: true}

	epsR := eps - d.window.RangeMaxProduct(0, half)
	epsL := eps - d.window.RangeMaxProduct(half, suffixLen)

	l := d.prefixes
	if len(l) == 0 {
		l = dc.dc(0, half, epsL)
	}

	// Keep suffixes below epsR too when they will be alive prefixes of the
	// next window.
	suffixEps := epsR
	if eps-d.lookahead < suffixEps {
		suffixEps = eps - d.lookahead
	}
	r := dc.dc(half, suffixLen, suffixEps)
	d.suffixes = r

	// Partition both sides into alive-here and carry-over.
	aliveL := l
	if eps-d.lookbehind < epsL {
		aliveL = partitionAlive(l, epsL)
	}
	aliveR := r
	if eps-d.lookahead < epsR {
		aliveR = partitionAlive(r, epsR)
	}

	prefixSort := len(aliveL) < len(aliveR)
	small, large := aliveL, aliveR
	if !prefixSort {
		small, large = aliveR, aliveL
	}
	if len(small) == 0 {
		return
	}

	sort.Slice(small, func(i, j int) bool {
		return small[i].Score > small[j].Score
	})
	shift := uint(suffixLen) * d.bits

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
			d.result = append(d.result, phylokmer.PhyloKmer{Key: key, Score: score})
		}
	}
}

// partitionAlive moves elements with score > eps to the front and returns
// the alive sub-slice.
func partitionAlive(kmers []phylokmer.PhyloKmer, eps phylokmer.Score) []phylokmer.PhyloKmer {
	alive := 0
	for i := range kmers {
		if kmers[i].Score > eps {
			kmers[alive], kmers[i] = kmers[i], kmers[alive]
			alive++
		}
	}
	return kmers[:alive]
}
