package phylotree

import (
	"errors"
	"fmt"
)

var ErrTreeMismatch = errors.New("extended and AR trees disagree")

// ARMapping is a bijection from extended-tree node labels to the labels the
// ancestral-reconstruction tool assigned to the same nodes. Both trees share
// the topology; only the labels differ.
type ARMapping map[string]string

// MapNodes builds the ARMapping by a synchronized walk over both trees.
// Leaves anchor the walk: a leaf keeps its label across tools, so leaves are
// matched by label and the mapping is propagated to their parents.
func MapNodes(extended, arTree *Tree) (ARMapping, error) {
	if extended.NodeCount() != arTree.NodeCount() {
		return nil, fmt.Errorf("%w in the number of nodes: %d vs. %d",
			ErrTreeMismatch, extended.NodeCount(), arTree.NodeCount())
	}

	mapping := make(ARMapping, extended.NodeCount())

	var walkErr error
	extended.VisitPostorder(func(id NodeID, node *Node) {
		if walkErr != nil || node.Parent == NoNode {
			return
		}

		var arID NodeID
		var ok bool
		if node.IsLeaf() {
			arID, ok = arTree.ByLabel(node.Label)
			if !ok {
				walkErr = fmt.Errorf("%w: no AR leaf labelled %q", ErrTreeMismatch, node.Label)
				return
			}
			mapping[node.Label] = arTree.Node(arID).Label
		} else {
			arLabel, mapped := mapping[node.Label]
			if !mapped {
				walkErr = fmt.Errorf("%w: internal node %q was never reached from a leaf",
					ErrTreeMismatch, node.Label)
				return
			}
			arID, ok = arTree.ByLabel(arLabel)
			if !ok {
				walkErr = fmt.Errorf("%w: no AR node labelled %q", ErrTreeMismatch, arLabel)
				return
			}
		}

		arNode := arTree.Node(arID)
		if arNode.Parent != NoNode {
			parent := extended.Node(node.Parent)
			arParent := arTree.Node(arNode.Parent)
			mapping[parent.Label] = arParent.Label
		}
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return mapping, nil
}
