// Package builder drives the phylo-k-mer database construction: stage 1
// enumerates k-mers per branch group and shards them to disk, stage 2
// merges the shards batch by batch, ranks keys by informativeness and emits
// the final database.
package builder

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PhyloKorp/ipkdb/appcontext"
	"github.com/PhyloKorp/ipkdb/branches"
	"github.com/PhyloKorp/ipkdb/compute"
	"github.com/PhyloKorp/ipkdb/config"
	"github.com/PhyloKorp/ipkdb/database"
	"github.com/PhyloKorp/ipkdb/filter"
	"github.com/PhyloKorp/ipkdb/logging"
	"github.com/PhyloKorp/ipkdb/manifest"
	"github.com/PhyloKorp/ipkdb/newick"
	"github.com/PhyloKorp/ipkdb/phylokmer"
	"github.com/PhyloKorp/ipkdb/phylotree"
	"github.com/PhyloKorp/ipkdb/proba"
	"github.com/PhyloKorp/ipkdb/seq"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// Inputs are the preprocessed artifacts a build consumes: the reference
// trees, the ghost and AR mappings, and the matrix store.
type Inputs struct {
	OriginalTree *phylotree.Tree
	ExtendedTree *phylotree.Tree
	GhostMapping phylotree.GhostMapping
	ARMapping    phylotree.ARMapping
	Matrices     *proba.Store
	OutputFile   string
}

type Builder struct {
	ctx    *appcontext.AppContext
	cfg    *config.Config
	logger *logging.Logger

	in Inputs

	algorithm     compute.Algorithm
	filterKind    filter.Kind
	ghostStrategy phylotree.GhostStrategy
	logThreshold  phylokmer.Score

	muManifest sync.Mutex
	manifest   *manifest.Manifest
}

// New validates the configuration against the inputs and prepares a build.
func New(ctx *appcontext.AppContext, in Inputs) (*Builder, error) {
	cfg := ctx.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.KmerSize > seq.DNA.MaxKmerLength {
		return nil, fmt.Errorf("%w: k = %d exceeds the maximum of %d",
			ErrInvalidConfig, cfg.KmerSize, seq.DNA.MaxKmerLength)
	}
	if phylokmer.ScoreThreshold(cfg.Omega, cfg.KmerSize, &seq.DNA) <= 0 {
		return nil, fmt.Errorf("%w: omega = %g and k = %d give a vanishing threshold",
			ErrInvalidConfig, cfg.Omega, cfg.KmerSize)
	}

	algorithm, err := compute.ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	filterKind, err := filter.ParseKind(cfg.Filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	ghostStrategy, err := parseGhostStrategy(cfg.GhostStrategy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.OnDisk && cfg.WithPositions {
		return nil, fmt.Errorf("%w: positions are not supported by the on-disk merge", ErrUnsupported)
	}

	return &Builder{
		ctx:           ctx,
		cfg:           cfg,
		logger:        ctx.GetLogger(),
		in:            in,
		algorithm:     algorithm,
		filterKind:    filterKind,
		ghostStrategy: ghostStrategy,
		logThreshold:  phylokmer.LogThreshold(cfg.Omega, cfg.KmerSize, &seq.DNA),
	}, nil
}

func parseGhostStrategy(name string) (phylotree.GhostStrategy, error) {
	switch name {
	case "", "both":
		return phylotree.GhostBoth, nil
	case "inner-only":
		return phylotree.GhostInnerOnly, nil
	case "outer-only":
		return phylotree.GhostOuterOnly, nil
	default:
		return 0, fmt.Errorf("unknown ghost strategy %q", name)
	}
}

// Run executes the full build. On success the stage intermediates are
// removed; on failure the shards stay behind for debugging.
func (b *Builder) Run() error {
	cfg := b.cfg
	b.logger.Printf("construction parameters: k=%d omega=%g filter=%s algorithm=%s batches=%d positions=%v",
		cfg.KmerSize, cfg.Omega, b.filterKind, b.algorithm, cfg.NumBatches, cfg.WithPositions)

	b.manifest = manifest.New(manifest.Parameters{
		KmerSize:      cfg.KmerSize,
		Omega:         cfg.Omega,
		Mu:            cfg.Mu,
		Filter:        b.filterKind.String(),
		Algorithm:     b.algorithm.String(),
		NumBatches:    cfg.NumBatches,
		WithPositions: cfg.WithPositions,
	})

	began := time.Now()
	groupIDs, explored, err := b.computePhyloKmers()
	if err != nil {
		return err
	}
	b.logger.Printf("stage 1: explored %s phylo-k-mers over %s branches in %v",
		humanize.Comma(int64(explored)), humanize.Comma(int64(len(groupIDs))), time.Since(began))

	began = time.Now()
	var stats database.MergeStats
	if cfg.OnDisk {
		stats, err = b.filterOnDisk(groupIDs)
	} else {
		stats, err = b.filterInRAM(groupIDs)
	}
	if err != nil {
		return err
	}
	b.logger.Printf("stage 2: kept %s keys with %s entries in %v",
		humanize.Comma(int64(stats.Keys)), humanize.Comma(int64(stats.Entries)), time.Since(began))

	if err := os.RemoveAll(branches.GroupsDir(b.ctx.WorkDir)); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	os.Remove(manifest.Path(b.ctx.WorkDir))

	b.logger.Printf("output: %s", b.in.OutputFile)
	return nil
}

// groupGhostIDs groups the extended tree's ghost labels by the original
// node they model, skipping the root.
func (b *Builder) groupGhostIDs() ([][]string, []phylokmer.Branch, error) {
	var ghostIDs []string
	b.in.ExtendedTree.VisitPostorder(func(id phylotree.NodeID, node *phylotree.Node) {
		if phylotree.IsGhost(node.Label, b.ghostStrategy) {
			ghostIDs = append(ghostIDs, node.Label)
		}
	})

	var groups [][]string
	var groupIDs []phylokmer.Branch
	index := make(map[phylokmer.Branch]int)

	for _, ghostID := range ghostIDs {
		postorderID, ok := b.in.GhostMapping[ghostID]
		if !ok {
			return nil, nil, fmt.Errorf("%w: ghost node %q has no original node", ErrInternal, ghostID)
		}

		nodeID, ok := b.in.OriginalTree.ByPostorderID(int(postorderID))
		if !ok {
			return nil, nil, fmt.Errorf("%w: no original node with post-order id %d", ErrInternal, postorderID)
		}
		if b.in.OriginalTree.IsRoot(nodeID) {
			continue
		}

		if at, ok := index[postorderID]; ok {
			groups[at] = append(groups[at], ghostID)
		} else {
			index[postorderID] = len(groups)
			groups = append(groups, []string{ghostID})
			groupIDs = append(groupIDs, postorderID)
		}
	}
	return groups, groupIDs, nil
}

// computePhyloKmers is stage 1: one task per branch group, each writing its
// own shard files. No two tasks touch the same file.
func (b *Builder) computePhyloKmers() ([]phylokmer.Branch, uint64, error) {
	if err := os.MkdirAll(branches.GroupsDir(b.ctx.WorkDir), 0755); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrIO, err)
	}

	groups, groupIDs, err := b.groupGhostIDs()
	if err != nil {
		return nil, 0, err
	}

	var explored atomic.Uint64
	g, gctx := errgroup.WithContext(b.ctx.Context)
	g.SetLimit(b.cfg.Threads)

	for i := range groups {
		group, groupID := groups[i], groupIDs[i]
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			maps, count, err := b.exploreGroup(group)
			if err != nil {
				return err
			}
			explored.Add(count)

			for batchIdx, m := range maps {
				filename := branches.GroupMapFile(b.ctx.WorkDir, groupID, batchIdx)
				info, err := branches.SaveGroupMap(m, filename)
				if err != nil {
					return fmt.Errorf("%w: writing shard %s: %v", ErrIO, filename, err)
				}
				info.Branch = groupID
				info.Batch = batchIdx

				b.muManifest.Lock()
				b.manifest.Shards = append(b.manifest.Shards, manifest.Shard{
					Branch:   info.Branch,
					Batch:    info.Batch,
					Records:  info.Records,
					Size:     info.Size,
					Checksum: info.Checksum,
				})
				b.muManifest.Unlock()
			}
			b.logger.Trace("builder", "branch %d: %d shards written", groupID, len(maps))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	if err := b.manifest.Save(manifest.Path(b.ctx.WorkDir)); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return groupIDs, explored.Load(), nil
}

// exploreGroup enumerates every window of every ghost node of one group,
// bucketing alive k-mers into per-batch maps by key mod N. Matrices are
// dropped as soon as their node is done.
func (b *Builder) exploreGroup(group []string) ([]*branches.GroupMap, uint64, error) {
	maps := branches.NewBatchMaps(b.cfg.NumBatches, b.cfg.WithPositions)

	var count uint64
	for _, ghostLabel := range group {
		arLabel, ok := b.in.ARMapping[ghostLabel]
		if !ok {
			return nil, 0, fmt.Errorf("%w: node %q is missing from the AR tree mapping",
				ErrInconsistentTree, ghostLabel)
		}

		matrix, err := b.in.Matrices.Take(arLabel)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}

		compute.Enumerate(b.algorithm, matrix, b.cfg.KmerSize, seq.DNA.BitLength, b.logThreshold,
			func(w proba.Window, kmers []phylokmer.PhyloKmer) {
				position := phylokmer.Pos(w.Position())
				for _, kmer := range kmers {
					maps[phylokmer.Batch(kmer.Key, b.cfg.NumBatches)].Put(kmer.Key, kmer.Score, position)
					count++
				}
			})

		matrix.Clear()
	}
	return maps, count, nil
}

func (b *Builder) header(stats database.MergeStats) database.Header {
	return database.Header{
		Tag:          database.VersionTag(b.cfg.WithPositions, false),
		SequenceType: seq.DNA.Name,
		Tree:         newick.String(b.in.OriginalTree),
		KmerSize:     uint64(b.cfg.KmerSize),
		Omega:        float32(b.cfg.Omega),
		TotalKeys:    stats.Keys,
		TotalEntries: stats.Entries,
	}
}

func (b *Builder) entryBudget(totalEntries int) int64 {
	if b.filterKind == filter.None || b.cfg.Mu >= 1.0 {
		return -1
	}
	return int64(b.cfg.Mu * float64(totalEntries))
}

// filterInRAM keeps every batch database in memory, ranks the keys, then
// merges the batch streams under the mu entry budget.
func (b *Builder) filterInRAM(groupIDs []phylokmer.Branch) (database.MergeStats, error) {
	threshold := phylokmer.ScoreThreshold(b.cfg.Omega, b.cfg.KmerSize, &seq.DNA)
	totalGroups := b.in.OriginalTree.NodeCount()

	batches := make([]*database.DB, b.cfg.NumBatches)
	totalEntries := 0
	for batchIdx := range batches {
		batchDB, err := branches.MergeBatch(b.ctx.WorkDir, groupIDs, batchIdx, b.cfg.WithPositions)
		if err != nil {
			return database.MergeStats{}, fmt.Errorf("%w: %v", ErrIO, err)
		}
		batchDB.KmerOrder = filter.CalcValues(b.filterKind, batchDB, totalGroups, threshold)
		totalEntries += batchDB.NumEntries()
		batches[batchIdx] = batchDB
		b.logger.Trace("merge", "batch %d: %d keys", batchIdx, batchDB.Size())
	}

	plan, stats := database.PlanInRAM(batches, b.entryBudget(totalEntries))

	out, err := os.Create(b.in.OutputFile)
	if err != nil {
		return stats, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	if err := database.SaveHeader(w, b.header(stats)); err != nil {
		return stats, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := database.EmitPlan(w, batches, plan, b.cfg.WithPositions); err != nil {
		return stats, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := w.Flush(); err != nil {
		return stats, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return stats, nil
}

// filterOnDisk serializes each ranked batch database, then streams them
// through the lazy N-way merge. Everything is emitted; the entry budget
// applies only to the in-RAM mode.
func (b *Builder) filterOnDisk(groupIDs []phylokmer.Branch) (database.MergeStats, error) {
	threshold := phylokmer.ScoreThreshold(b.cfg.Omega, b.cfg.KmerSize, &seq.DNA)
	totalGroups := b.in.OriginalTree.NodeCount()

	var total database.MergeStats
	for batchIdx := 0; batchIdx < b.cfg.NumBatches; batchIdx++ {
		batchDB, err := branches.MergeBatch(b.ctx.WorkDir, groupIDs, batchIdx, b.cfg.WithPositions)
		if err != nil {
			return total, fmt.Errorf("%w: %v", ErrIO, err)
		}
		batchDB.KmerOrder = filter.CalcValues(b.filterKind, batchDB, totalGroups, threshold)
		total.Keys += uint64(batchDB.Size())
		total.Entries += uint64(batchDB.NumEntries())

		if err := batchDB.SaveBatch(database.BatchDBFile(b.ctx.WorkDir, batchIdx)); err != nil {
			return total, fmt.Errorf("%w: %v", ErrIO, err)
		}
		b.logger.Trace("merge", "batch %d: %d keys serialized", batchIdx, batchDB.Size())
	}

	loaders := make([]*database.BatchLoader, 0, b.cfg.NumBatches)
	defer func() {
		for _, loader := range loaders {
			loader.Close()
		}
	}()
	for batchIdx := 0; batchIdx < b.cfg.NumBatches; batchIdx++ {
		loader, err := database.OpenBatch(database.BatchDBFile(b.ctx.WorkDir, batchIdx))
		if err != nil {
			return total, fmt.Errorf("%w: %v", ErrIO, err)
		}
		loaders = append(loaders, loader)
	}

	out, err := os.Create(b.in.OutputFile)
	if err != nil {
		return total, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	if err := database.SaveHeader(w, b.header(total)); err != nil {
		return total, fmt.Errorf("%w: %v", ErrIO, err)
	}
	stats, err := database.MergeOnDisk(w, loaders, b.cfg.WithPositions)
	if err != nil {
		return stats, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := w.Flush(); err != nil {
		return stats, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return stats, nil
}
