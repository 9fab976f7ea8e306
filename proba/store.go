package proba

import (
	"fmt"
	"sync"
)

// LoadFunc lazily materializes the matrix of a node by its label.
type LoadFunc func(label string) (*Matrix, error)

// Store owns the matrices of all ancestral nodes. Matrices are shared
// read-only until a worker takes ownership; Take moves a matrix out so it
// can be dropped after its last use.
type Store struct {
	mu       sync.Mutex
	matrices map[string]*Matrix
	loader   LoadFunc
}

func NewStore() *Store {
	return &Store{matrices: make(map[string]*Matrix)}
}

// NewLazyStore creates a store that materializes matrices on demand.
func NewLazyStore(loader LoadFunc) *Store {
	return &Store{matrices: make(map[string]*Matrix), loader: loader}
}

func (s *Store) Add(m *Matrix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matrices[m.Label()] = m
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matrices)
}

// Take moves the matrix for a label out of the store. Each matrix can be
// taken exactly once; a second Take fails unless a lazy loader can
// materialize it again.
func (s *Store) Take(label string) (*Matrix, error) {
	s.mu.Lock()
	m, ok := s.matrices[label]
	if ok {
		delete(s.matrices, label)
	}
	s.mu.Unlock()

	if ok {
		return m, nil
	}
	if s.loader == nil {
		return nil, fmt.Errorf("no matrix for node %q", label)
	}
	m, err := s.loader(label)
	if err != nil {
		return nil, fmt.Errorf("loading matrix for node %q: %w", label, err)
	}
	return m, nil
}
