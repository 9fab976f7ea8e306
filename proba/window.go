package proba

import "github.com/PhyloKorp/ipkdb/phylokmer"

// Window is a view over k consecutive columns of a matrix.
type Window struct {
	matrix *Matrix
	start  int
	size   int
}

func NewWindow(m *Matrix, start, size int) Window {
	return Window{matrix: m, start: start, size: size}
}

func (w Window) Get(i, j int) phylokmer.Score {
	return w.matrix.Get(i, w.start+j)
}

func (w Window) Size() int {
	return w.size
}

func (w Window) Empty() bool {
	return w.size == 0
}

func (w Window) Position() int {
	return w.start
}

// RangeMaxProduct returns the best attainable score over the window columns
// [pos, pos+length). A product in linear space is a sum in log space.
func (w Window) RangeMaxProduct(pos, length int) phylokmer.Score {
	return w.matrix.RangeMaxSum(w.start+pos, length)
}

// MaxAt returns the argmax and maximum of window column j.
func (w Window) MaxAt(j int) (int, phylokmer.Score) {
	return w.matrix.MaxAt(w.start + j)
}

func (w Window) Depth() int {
	return w.matrix.Depth()
}

// ToWindows returns the windows of width k at every position 0..W-k.
func ToWindows(m *Matrix, k int) []Window {
	if k <= 0 || k > m.Width() {
		return nil
	}
	windows := make([]Window, 0, m.Width()-k+1)
	for pos := 0; pos+k <= m.Width(); pos++ {
		windows = append(windows, NewWindow(m, pos, k))
	}
	return windows
}

// Chains returns the chained window order used by DCCW. Windows of one chain
// step by ceil(k/2) so that each window's suffix overlaps the successor's
// prefix; chains start at positions 0..floor(k/2)-1.
func Chains(m *Matrix, k int) [][]Window {
	if k <= 0 || k > m.Width() {
		return nil
	}
	suffixSize := k - k/2
	lastChainPos := k/2 - 1
	if lastChainPos < 0 {
		lastChainPos = 0
	}

	var chains [][]Window
	for start := 0; start <= lastChainPos && start+k <= m.Width(); start++ {
		var chain []Window
		for pos := start; pos+k <= m.Width(); pos += suffixSize {
			chain = append(chain, NewWindow(m, pos, k))
		}
		chains = append(chains, chain)
	}
	return chains
}
