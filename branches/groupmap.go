// Package branches stores the phylo-k-mers of one branch group during
// stage 1 of a build: an in-memory hash map per batch, persisted to a shard
// file per (branch, batch) pair.
package branches

import (
	"github.com/PhyloKorp/ipkdb/phylokmer"
)

// Record is the per-key payload of a group map: the best score seen for the
// key, plus the window position of that score when positions are kept.
type Record struct {
	Score    phylokmer.Score
	Position phylokmer.Pos
}

// GroupMap maps each k-mer key of one branch group to its best record.
type GroupMap struct {
	WithPositions bool
	Records       map[phylokmer.Key]Record
}

func NewGroupMap(withPositions bool) *GroupMap {
	return &GroupMap{
		WithPositions: withPositions,
		Records:       make(map[phylokmer.Key]Record),
	}
}

// Put keeps the maximum score ever seen for a key.
func (m *GroupMap) Put(key phylokmer.Key, score phylokmer.Score, position phylokmer.Pos) {
	if old, ok := m.Records[key]; ok && old.Score >= score {
		return
	}
	m.Records[key] = Record{Score: score, Position: position}
}

func (m *GroupMap) Len() int {
	return len(m.Records)
}

// NewBatchMaps allocates one group map per batch.
func NewBatchMaps(numBatches int, withPositions bool) []*GroupMap {
	maps := make([]*GroupMap, numBatches)
	for i := range maps {
		maps[i] = NewGroupMap(withPositions)
	}
	return maps
}
