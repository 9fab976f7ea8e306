package builder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/PhyloKorp/ipkdb/alignment"
	"github.com/PhyloKorp/ipkdb/newick"
	"github.com/PhyloKorp/ipkdb/phylotree"
)

// PreprocessTree parses the reference tree, roots it if allowed, and splices
// the ghost nodes in. It returns the untouched original tree, the extended
// tree and the ghost mapping.
func PreprocessTree(newickText string, useUnrooted bool) (*phylotree.Tree, *phylotree.Tree, phylotree.GhostMapping, error) {
	tree, err := newick.Parse(newickText)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if !tree.IsRooted() {
		if !useUnrooted {
			return nil, nil, nil, fmt.Errorf("%w: the reference tree is not rooted; "+
				"provide a rooted tree or pass use-unrooted to root it at the trifurcation "+
				"(this may impact placement accuracy)", ErrInvalidInput)
		}
		tree.Reroot()
	}

	extended, mapping, err := phylotree.Extend(tree)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	original, err := newick.Parse(newickText)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !original.IsRooted() {
		original.Reroot()
	}

	return original, extended, mapping, nil
}

// PrepareARTree normalizes the reconstruction tree and maps extended-tree
// labels onto its labels. When the reconstruction tree is unrooted, it is
// rooted and the rooted version is persisted for inspection.
func PrepareARTree(workDir string, extended *phylotree.Tree, arNewick string) (phylotree.ARMapping, error) {
	arTree, err := newick.Parse(arNewick)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if !arTree.IsRooted() {
		arTree.Reroot()
		arDir := filepath.Join(workDir, "AR")
		if err := os.MkdirAll(arDir, 0755); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		rerooted := filepath.Join(arDir, "ar_tree_rerooted.newick")
		if err := newick.WriteFile(arTree, rerooted); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
	}

	mapping, err := phylotree.MapNodes(extended, arTree)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInconsistentTree, err)
	}
	return mapping, nil
}

// WriteIntermediates persists the extended tree and alignment the way the
// reconstruction step consumes them.
func WriteIntermediates(workDir string, extended *phylotree.Tree, align *alignment.Alignment,
	reductionRatio float64) error {

	dir := filepath.Join(workDir, "extended_trees")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	if err := newick.WriteFile(extended, filepath.Join(dir, "extended_tree.newick")); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	if align == nil {
		return nil
	}

	if err := align.WriteFastaFile(filepath.Join(dir, "extended_align.fasta")); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := align.WritePhylipFile(filepath.Join(dir, "extended_align.phylip")); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	reduced, removed := align.Reduce(reductionRatio)
	if removed > 0 {
		if err := reduced.WriteFastaFile(filepath.Join(dir, "reduced_align.fasta")); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
	}
	return nil
}
