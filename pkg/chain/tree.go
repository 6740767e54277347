// Package chain turns a mechanism description into a rooted kinematic tree.
//
// Nodes live in a flat arena owned by the Tree. A node refers to its parent and
// children by arena index, so there are no pointer cycles between parents and
// children.
package chain

import (
	"github.com/open-teleop/kinsim/pkg/model"
	"github.com/open-teleop/kinsim/pkg/transform"
)

// NoParent is the Parent index of the root node.
const NoParent = -1

// Node wraps one body together with the geometry resolved when it was attached.
type Node struct {
	Body     *model.Body
	Parent   int
	Children []int
	Depth    int

	// Mate is the connection to the parent; nil for the root.
	Mate   *model.Mate
	Motion model.Motion

	// SelfJointToBody maps the node's own joint frame into its body frame
	// (the inverse of the authored joint transform).
	SelfJointToBody transform.Transform
	// ParentBodyToParentJoint is the parent's joint transform as authored.
	ParentBodyToParentJoint transform.Transform
}

// IsRoot reports whether n is the tree root.
func (n *Node) IsRoot() bool { return n.Parent == NoParent }

// JointType is the resolved type of the joint connecting n to its parent.
func (n *Node) JointType() model.JointType {
	if n.Motion == nil {
		return model.Revolute
	}
	return n.Motion.JointType()
}

// Tree is the validated kinematic chain of a System.
type Tree struct {
	nodes  []Node
	byBody map[int]int
	byMate map[int]int
	cells  map[int]*model.ValueCell

	// Unreachable groups the bodies not connected to the root by any mate.
	Unreachable [][]int
}

// Root is the arena index of the root node; always 0.
func (t *Tree) Root() int { return 0 }

// Len is the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node at arena index i.
func (t *Tree) Node(i int) *Node { return &t.nodes[i] }

// NodeOfBody returns the arena index of a body's node.
func (t *Tree) NodeOfBody(body int) (int, bool) {
	i, ok := t.byBody[body]
	return i, ok
}

// NodeOfMate returns the arena index of the node a mate drives.
func (t *Tree) NodeOfMate(mate int) (int, bool) {
	i, ok := t.byMate[mate]
	return i, ok
}

// Cells maps mate index to the mate's live value cell.
func (t *Tree) Cells() map[int]*model.ValueCell { return t.cells }

// Mates returns the indices of all mates in the tree.
func (t *Tree) Mates() []int {
	out := make([]int, 0, len(t.byMate))
	t.Walk(func(i int, n *Node) {
		if n.Mate != nil {
			out = append(out, n.Mate.Index)
		}
	})
	return out
}

// Depth is the number of mates on the longest root-to-leaf path.
func (t *Tree) Depth() int {
	d := 0
	for i := range t.nodes {
		if t.nodes[i].Depth > d {
			d = t.nodes[i].Depth
		}
	}
	return d
}

// Walk visits nodes depth-first, parents before children.
func (t *Tree) Walk(fn func(i int, n *Node)) {
	if len(t.nodes) == 0 {
		return
	}
	var visit func(i int)
	visit = func(i int) {
		fn(i, &t.nodes[i])
		for _, c := range t.nodes[i].Children {
			visit(c)
		}
	}
	visit(t.Root())
}
