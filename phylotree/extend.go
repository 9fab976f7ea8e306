package phylotree

import (
	"fmt"
	"strings"

	"github.com/PhyloKorp/ipkdb/phylokmer"
)

// GhostMapping associates every ghost node label of an extended tree with
// the post-order id of the original node whose branch it models.
type GhostMapping map[string]phylokmer.Branch

// GhostStrategy selects which ghost nodes of a branch participate in
// enumeration.
type GhostStrategy int

const (
	GhostBoth GhostStrategy = iota
	GhostInnerOnly
	GhostOuterOnly
)

// IsGhost reports whether a label names a ghost node under the strategy.
func IsGhost(label string, strategy GhostStrategy) bool {
	switch strategy {
	case GhostInnerOnly:
		return strings.HasSuffix(label, "_X0")
	case GhostOuterOnly:
		return strings.HasSuffix(label, "_X1")
	default:
		return strings.HasSuffix(label, "_X0") || strings.HasSuffix(label, "_X1")
	}
}

// Extend returns a copy of the tree with ghost nodes X0 and X1 spliced onto
// every non-root branch, X1 carrying two extra leaves X2 and X3. The mapping
// ties each X0/X1 label back to the post-order id of the original node.
//
// For a branch of length b leading to node n:
//
//	parent -> X0 has length b/2, and so does X0 -> n;
//	X0 -> X1 has length b/2 for a leaf, and (T + (b/2)*L)/L for an internal
//	node with subtree branch-length total T over L leaves;
//	X1 -> X2 and X1 -> X3 have length 0.01.
func Extend(original *Tree) (*Tree, GhostMapping, error) {
	if err := original.Validate(); err != nil {
		return nil, nil, err
	}

	extended := original.Copy()
	mapping := make(GhostMapping)
	counter := extended.NodeCount() + 1

	// Collect targets with their original post-order ids up front: splicing
	// changes the children lists we would otherwise be iterating, and the
	// final re-index renumbers everything.
	type target struct {
		id          NodeID
		postorderID phylokmer.Branch
	}
	targets := make([]target, 0, extended.NodeCount())
	extended.VisitPostorder(func(id NodeID, node *Node) {
		if node.Parent != NoNode {
			targets = append(targets, target{id, phylokmer.Branch(node.PostorderID)})
		}
	})

	for _, tgt := range targets {
		id := tgt.id
		node := extended.Node(id)
		parent := node.Parent
		oldLength := node.BranchLength

		x1Length := oldLength / 2
		if !node.IsLeaf() {
			leaves := float64(node.NumLeaves)
			x1Length = (node.SubtreeBranchLength + (oldLength/2)*leaves) / leaves
		}

		x0Label := fmt.Sprintf("%d_X0", counter)
		counter++
		x1Label := fmt.Sprintf("%d_X1", counter)
		counter++
		x2Label := fmt.Sprintf("%d_X2", counter)
		counter++
		x3Label := fmt.Sprintf("%d_X3", counter)
		counter++

		x0 := extended.splice(parent, id, x0Label, oldLength/2)
		node = extended.Node(id)
		node.BranchLength = oldLength / 2

		x1 := extended.AddNode(x0, x1Label, x1Length)
		extended.AddNode(x1, x2Label, 0.01)
		extended.AddNode(x1, x3Label, 0.01)

		mapping[x0Label] = tgt.postorderID
		mapping[x1Label] = tgt.postorderID
	}

	extended.Index()
	return extended, mapping, nil
}

// splice inserts a new node between parent and child and returns its id.
// The child keeps its position in the parent's child list.
func (t *Tree) splice(parent, child NodeID, label string, branchLength float64) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Node{
		Label:        label,
		BranchLength: branchLength,
		Parent:       parent,
		Children:     []NodeID{child},
	})

	siblings := t.nodes[parent].Children
	for i, c := range siblings {
		if c == child {
			siblings[i] = id
			break
		}
	}
	t.nodes[child].Parent = id
	return id
}
