package chain

import (
	"sort"

	"github.com/open-teleop/kinsim/pkg/model"
	"github.com/open-teleop/kinsim/pkg/transform"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

type builder struct {
	sys  *model.System
	tree *Tree
}

// Build grows the tree outwards from the root body, consuming each mate at most
// once. On failure no tree is returned and every mate is released again, so the
// System is left as it was.
func Build(sys *model.System, root int) (*Tree, error) {
	rootBody, ok := sys.Body(root)
	if !ok {
		return nil, invalid(ErrUnknownBody, -1, root, "root body")
	}

	b := &builder{
		sys: sys,
		tree: &Tree{
			nodes:  make([]Node, 0, len(sys.Bodies)),
			byBody: make(map[int]int, len(sys.Bodies)),
			byMate: make(map[int]int, len(sys.Mates)),
			cells:  make(map[int]*model.ValueCell, len(sys.Mates)),
		},
	}
	b.tree.nodes = append(b.tree.nodes, Node{
		Body:                    rootBody,
		Parent:                  NoParent,
		SelfJointToBody:         transform.Identity(),
		ParentBodyToParentJoint: transform.Identity(),
	})
	b.tree.byBody[root] = 0

	if err := b.attachChildren(0); err != nil {
		for _, m := range sys.Mates {
			m.Release()
		}
		return nil, err
	}

	b.tree.Unreachable = islands(sys, root)
	return b.tree, nil
}

func (b *builder) attachChildren(parent int) error {
	for _, m := range b.sys.Mates {
		if m.Consumed() {
			continue
		}
		parentEnd, childEnd, ok := m.Touches(b.tree.nodes[parent].Body.Index)
		if !ok {
			continue
		}
		if _, exists := b.tree.byBody[childEnd.Body]; exists {
			return invalid(ErrClosedChain, m.Index, childEnd.Body, "")
		}

		child, err := b.attach(parent, m, parentEnd, childEnd)
		if err != nil {
			return err
		}
		if err := b.attachChildren(child); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) attach(parent int, m *model.Mate, parentEnd, childEnd model.Endpoint) (int, error) {
	parentBody := b.tree.nodes[parent].Body
	childBody, ok := b.sys.Body(childEnd.Body)
	if !ok {
		return 0, invalid(ErrUnknownBody, m.Index, childEnd.Body, "")
	}

	parentJoint, ok := parentBody.Joint(parentEnd.Joint)
	if !ok {
		return 0, invalid(ErrUnknownJoint, m.Index, parentBody.Index, "joint %d", parentEnd.Joint)
	}
	childJoint, ok := childBody.Joint(childEnd.Joint)
	if !ok {
		return 0, invalid(ErrUnknownJoint, m.Index, childBody.Index, "joint %d", childEnd.Joint)
	}
	if parentJoint.Type != childJoint.Type {
		return 0, invalid(ErrJointTypeMismatch, m.Index, childBody.Index,
			"%v on body %d, %v on body %d", parentJoint.Type, parentBody.Index, childJoint.Type, childBody.Index)
	}

	motion, err := model.NewMotion(childJoint.Type, m.AngularOffset, m.LinearOffset)
	if err != nil {
		return 0, invalid(ErrJointTypeMismatch, m.Index, childBody.Index, "%v", err)
	}

	m.Consume()

	idx := len(b.tree.nodes)
	b.tree.nodes = append(b.tree.nodes, Node{
		Body:                    childBody,
		Parent:                  parent,
		Depth:                   b.tree.nodes[parent].Depth + 1,
		Mate:                    m,
		Motion:                  motion,
		SelfJointToBody:         childJoint.Transform.Inverse(),
		ParentBodyToParentJoint: parentJoint.Transform,
	})
	b.tree.nodes[parent].Children = append(b.tree.nodes[parent].Children, idx)
	b.tree.byBody[childBody.Index] = idx
	b.tree.byMate[m.Index] = idx
	b.tree.cells[m.Index] = m.Value()
	return idx, nil
}

// islands groups the bodies that no chain of mates connects to the root.
func islands(sys *model.System, root int) [][]int {
	g := simple.NewUndirectedGraph()
	for _, b := range sys.Bodies {
		g.AddNode(simple.Node(b.Index))
	}
	for _, m := range sys.Mates {
		if m.Bearing.Body == m.Shaft.Body {
			continue
		}
		g.SetEdge(g.NewEdge(simple.Node(m.Bearing.Body), simple.Node(m.Shaft.Body)))
	}

	var out [][]int
	for _, cc := range topo.ConnectedComponents(g) {
		if containsID(cc, int64(root)) {
			continue
		}
		group := make([]int, 0, len(cc))
		for _, n := range cc {
			group = append(group, int(n.ID()))
		}
		sort.Ints(group)
		out = append(out, group)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func containsID(nodes []graph.Node, id int64) bool {
	for _, n := range nodes {
		if n.ID() == id {
			return true
		}
	}
	return false
}
