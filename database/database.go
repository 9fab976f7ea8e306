// Package database holds the phylo-k-mer database: the in-memory table of
// key -> (branch, score) entries, its on-disk format, the intermediate
// batch databases, and the N-way merge that produces the final stream.
package database

import (
	"errors"

	"github.com/PhyloKorp/ipkdb/phylokmer"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported database format")
	ErrCorrupt           = errors.New("corrupt database")
)

// Entry is one (branch, score[, position]) element of a database record.
// The position field is serialized only for position-bearing databases.
type Entry = phylokmer.PositionedEntry

// KmerFV ranks one key by its filter value; smaller means more informative.
type KmerFV struct {
	Key         phylokmer.Key
	FilterValue float32
}

// Less orders by ascending filter value, ascending key on ties.
func (fv KmerFV) Less(other KmerFV) bool {
	if fv.FilterValue != other.FilterValue {
		return fv.FilterValue < other.FilterValue
	}
	return fv.Key < other.Key
}

// DB is a phylo-k-mer database. The same container backs the per-batch
// intermediate databases and the final merged one.
type DB struct {
	KmerSize      int
	Omega         float64
	SequenceType  string
	Tree          string
	WithPositions bool

	// KmerOrder is filled by the filter: keys ordered by ascending filter
	// value. Serialization emits records in this order.
	KmerOrder []KmerFV

	kmers map[phylokmer.Key][]Entry
}

func New(kmerSize int, omega float64, sequenceType, tree string, withPositions bool) *DB {
	return &DB{
		KmerSize:      kmerSize,
		Omega:         omega,
		SequenceType:  sequenceType,
		Tree:          tree,
		WithPositions: withPositions,
		kmers:         make(map[phylokmer.Key][]Entry),
	}
}

// Insert appends an entry for a key. Callers guarantee the branch is not
// already present for the key; stage 1 keeps one score per branch.
func (db *DB) Insert(key phylokmer.Key, entry Entry) {
	db.kmers[key] = append(db.kmers[key], entry)
}

// At returns the entries of a key.
func (db *DB) At(key phylokmer.Key) []Entry {
	return db.kmers[key]
}

// Size returns the number of distinct keys.
func (db *DB) Size() int {
	return len(db.kmers)
}

// NumEntries returns the total number of (branch, score) pairs.
func (db *DB) NumEntries() int {
	n := 0
	for _, entries := range db.kmers {
		n += len(entries)
	}
	return n
}

// Keys calls fn for every key in unspecified order.
func (db *DB) Keys(fn func(key phylokmer.Key, entries []Entry)) {
	for key, entries := range db.kmers {
		fn(key, entries)
	}
}
