package database

import (
	"container/heap"
	"io"
	"math"

	"github.com/PhyloKorp/ipkdb/phylokmer"
)

// fvHeap is a min-heap over (filter value, key) with the batch the value
// came from.
type fvItem struct {
	fv     KmerFV
	source int
}

type fvHeap []fvItem

func (h fvHeap) Len() int            { return len(h) }
func (h fvHeap) Less(i, j int) bool  { return h[i].fv.Less(h[j].fv) }
func (h fvHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *fvHeap) Push(x interface{}) { *h = append(*h, x.(fvItem)) }
func (h *fvHeap) Pop() interface{} {
	old := *h
	item := old[len(old)-1]
	*h = old[:len(old)-1]
	return item
}

// MergeStats reports what a merge selected or emitted.
type MergeStats struct {
	Keys    uint64
	Entries uint64
}

// PlanInRAM merges the sorted KmerOrder streams of the batch databases into
// one global order by ascending (filter value, key), stopping once the
// entry budget is reached. The k-mer that crosses the budget is still
// included. A negative budget means no limit.
func PlanInRAM(batches []*DB, entryBudget int64) ([]KmerFV, MergeStats) {
	budget := entryBudget
	if budget < 0 {
		budget = math.MaxInt64
	}

	positions := make([]int, len(batches))
	h := &fvHeap{}
	heap.Init(h)
	for i, batch := range batches {
		if len(batch.KmerOrder) > 0 {
			heap.Push(h, fvItem{fv: batch.KmerOrder[0], source: i})
		}
	}

	var plan []KmerFV
	var stats MergeStats
	for h.Len() > 0 && int64(stats.Entries) < budget {
		item := heap.Pop(h).(fvItem)
		batch := batches[item.source]

		plan = append(plan, item.fv)
		stats.Keys++
		stats.Entries += uint64(len(batch.At(item.fv.Key)))

		positions[item.source]++
		if next := positions[item.source]; next < len(batch.KmerOrder) {
			heap.Push(h, fvItem{fv: batch.KmerOrder[next], source: item.source})
		}
	}
	return plan, stats
}

// EmitPlan writes the planned records. Batches must be indexed by batch id,
// so that a key finds its home batch by key mod N.
func EmitPlan(w io.Writer, batches []*DB, plan []KmerFV, withPositions bool) error {
	for _, fv := range plan {
		batch := batches[phylokmer.Batch(fv.Key, len(batches))]
		if err := SaveRecord(w, fv.Key, fv.FilterValue, batch.At(fv.Key), withPositions); err != nil {
			return err
		}
	}
	return nil
}

// MergeOnDisk lazily merges serialized batch databases: each loader streams
// its records sequentially and a heap repeatedly extracts the global
// minimum.
func MergeOnDisk(w io.Writer, loaders []*BatchLoader, withPositions bool) (MergeStats, error) {
	h := &fvHeap{}
	heap.Init(h)

	current := make([]Record, len(loaders))

	for i, loader := range loaders {
		if loader.HasNext() {
			if err := loader.Next(); err != nil {
				return MergeStats{}, err
			}
			record, _ := loader.Current()
			current[i] = record
			heap.Push(h, fvItem{fv: KmerFV{Key: record.Key, FilterValue: record.FilterValue}, source: i})
		}
	}

	var stats MergeStats
	for h.Len() > 0 {
		item := heap.Pop(h).(fvItem)
		loader := loaders[item.source]

		record := current[item.source]
		if err := SaveRecord(w, record.Key, record.FilterValue, record.Entries, withPositions); err != nil {
			return stats, err
		}
		stats.Keys++
		stats.Entries += uint64(len(record.Entries))

		if loader.HasNext() {
			if err := loader.Next(); err != nil {
				return stats, err
			}
			next, _ := loader.Current()
			current[item.source] = next
			heap.Push(h, fvItem{fv: KmerFV{Key: next.Key, FilterValue: next.FilterValue}, source: item.source})
		}
	}
	return stats, nil
}
