package compute

import (
	"github.com/PhyloKorp/ipkdb/phylokmer"
	"github.com/PhyloKorp/ipkdb/proba"
)

// runBB enumerates by depth-first search over window positions, pruning any
// prefix that cannot reach eps even with the best possible suffix.
func runBB(w proba.Window, k int, bits uint, eps phylokmer.Score) []phylokmer.PhyloKmer {
	b := bbEnumerator{window: w, k: k, bits: bits}
	b.preprocess()
	for i := 0; i < w.Depth(); i++ {
		b.bb(i, 0, 0, 0, eps)
	}
	return b.result
}

type bbEnumerator struct {
	window proba.Window
	k      int
	bits   uint

	// bestSuffixScore[i] is the best attainable score over the last i+1
	// columns of the window.
	bestSuffixScore []phylokmer.Score

	result []phylokmer.PhyloKmer
}

func (b *bbEnumerator) preprocess() {
	b.bestSuffixScore = make([]phylokmer.Score, 0, b.k)
	var score phylokmer.Score
	for i := 0; i < b.k; i++ {
		_, best := b.window.MaxAt(b.k - i - 1)
		score += best
		b.bestSuffixScore = append(b.bestSuffixScore, score)
	}
}

func (b *bbEnumerator) bb(i, j int, prefix phylokmer.Key, score, eps phylokmer.Score) {
	score += b.window.Get(i, j)
	prefix = prefix<<b.bits | phylokmer.Key(i)

	if j == b.k-1 {
		if score > eps {
			b.result = append(b.result, phylokmer.PhyloKmer{Key: prefix, Score: score})
		}
		return
	}

	bestSuffix := b.bestSuffixScore[b.k-(j+2)]
	if score+bestSuffix <= eps {
		return
	}
	for i2 := 0; i2 < b.window.Depth(); i2++ {
		b.bb(i2, j+1, prefix, score, eps)
	}
}
