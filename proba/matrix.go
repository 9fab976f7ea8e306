// Package proba holds per-node posterior probability matrices produced by
// ancestral reconstruction, and the window machinery used to enumerate
// phylo-k-mers over them.
package proba

import (
	"errors"
	"fmt"
	"math"

	"github.com/PhyloKorp/ipkdb/phylokmer"
)

var ErrBadMatrix = errors.New("bad probability matrix")

// Matrix is a column-major matrix of log10 posterior probabilities for one
// ancestral node: element (i, j) is the log-probability of base i at
// alignment column j.
type Matrix struct {
	label string
	data  [][]phylokmer.Score

	// bestScores[j] is the sum of per-column maxima over columns [0, j),
	// so that the best attainable score over [start, start+len) is
	// bestScores[start+len] - bestScores[start].
	bestScores []phylokmer.Score
}

// NewMatrix wraps column-major data. Columns must all have the same depth.
// The matrix is preprocessed for range-max queries.
func NewMatrix(label string, columns [][]phylokmer.Score) (*Matrix, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: node %s has no columns", ErrBadMatrix, label)
	}
	depth := len(columns[0])
	for j, column := range columns {
		if len(column) != depth {
			return nil, fmt.Errorf("%w: node %s column %d has depth %d, want %d",
				ErrBadMatrix, label, j, len(column), depth)
		}
	}
	m := &Matrix{label: label, data: columns}
	m.preprocess()
	return m, nil
}

func (m *Matrix) preprocess() {
	m.bestScores = make([]phylokmer.Score, len(m.data)+1)
	var sum phylokmer.Score
	for j := range m.data {
		_, best := m.MaxAt(j)
		sum += best
		m.bestScores[j+1] = sum
	}
}

func (m *Matrix) Label() string {
	return m.label
}

func (m *Matrix) Get(i, j int) phylokmer.Score {
	return m.data[j][i]
}

func (m *Matrix) Width() int {
	return len(m.data)
}

func (m *Matrix) Depth() int {
	if len(m.data) == 0 {
		return 0
	}
	return len(m.data[0])
}

func (m *Matrix) Empty() bool {
	return len(m.data) == 0
}

// MaxAt returns the argmax and maximum of a column.
func (m *Matrix) MaxAt(column int) (int, phylokmer.Score) {
	best := 0
	bestScore := m.data[column][0]
	for i := 1; i < len(m.data[column]); i++ {
		if m.data[column][i] > bestScore {
			bestScore = m.data[column][i]
			best = i
		}
	}
	return best, bestScore
}

// RangeMaxSum returns the best attainable score of any word spanning
// columns [start, start+length).
func (m *Matrix) RangeMaxSum(start, length int) phylokmer.Score {
	return m.bestScores[start+length] - m.bestScores[start]
}

// Validate checks that every column is a probability distribution: the
// linear-space values must sum to 1 within tolerance.
func (m *Matrix) Validate() error {
	const tolerance = 1e-3
	for j, column := range m.data {
		sum := 0.0
		for _, logScore := range column {
			sum += math.Pow(10, float64(logScore))
		}
		if math.Abs(sum-1.0) > tolerance {
			return fmt.Errorf("%w: node %s column %d sums to %g", ErrBadMatrix, m.label, j, sum)
		}
	}
	return nil
}

// Clear drops the matrix payload. Enumeration releases each matrix as soon
// as its node group is done with it.
func (m *Matrix) Clear() {
	m.data = nil
	m.bestScores = nil
}
