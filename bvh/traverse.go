package bvh

import "github.com/flexrender/flexrender/vec3"

// Step is the outcome of a single automaton transition.
type Step uint8

const (
	// StepContinue means the traversal advanced and should be stepped again.
	StepContinue Step = iota
	// StepSuspended means a LeafVisitor requested the traversal to pause.
	// The TraversalState still points at the leaf that triggered the
	// suspension, so the process that resumes the traversal re-enters
	// that leaf first.
	StepSuspended
	// StepFinished means the automaton reached the root in FromChild state.
	StepFinished
)

// LeafVisitor is invoked when traversal reaches a leaf whose box test
// passed. It returns true if the traversal should suspend here (the
// cluster-level case: the ray must continue on the worker owning this
// leaf), or false to keep traversing the rest of the tree (the mesh and
// triangle levels: ordinary primitive intersection).
type LeafVisitor func(primIndex int32) (suspend bool)

// Driver holds the immutable inputs to a traversal step: the flattened node
// array and the ray's geometry. It carries no per-ray state itself — that
// lives in the caller-owned TraversalState — so a single node array can be
// shared, read-only, across concurrent jobs touching different rays.
type Driver struct {
	Nodes  []LinearNode
	Ray    vec3.Ray
	InvDir vec3.Vec3

	// BestT returns the ray's current best hit distance; a bounding hit is
	// only accepted when its entry t is less than this.
	BestT func() float64

	Visit LeafVisitor
}

// near returns the index of the child of node (at nodeIdx, which must be
// interior) on the side matching the ray direction's sign along node.Axis,
// so the closer half is visited first.
func (d *Driver) near(nodeIdx NodeIndex) NodeIndex {
	node := d.Nodes[nodeIdx]
	left := nodeIdx + 1
	if d.Ray.Dir.Component(int(node.Axis)) < 0 {
		return node.Right
	}
	return left
}

func (d *Driver) far(nodeIdx, nearIdx NodeIndex) NodeIndex {
	node := d.Nodes[nodeIdx]
	left := nodeIdx + 1
	if nearIdx == left {
		return node.Right
	}
	return left
}

// sibling returns the sibling of nodeIdx given its parent.
func (d *Driver) sibling(nodeIdx, parentIdx NodeIndex) NodeIndex {
	parent := d.Nodes[parentIdx]
	left := parentIdx + 1
	if parent.Right == nodeIdx {
		return left
	}
	return parent.Right
}

// Run drives the automaton from s until it suspends or finishes, returning
// the terminal Step. s is mutated in place so the caller can persist it
// (TraversalState is the network-portable resumption token).
func (d *Driver) Run(s *TraversalState) Step {
	for {
		step := d.step(s)
		if step != StepContinue {
			return step
		}
	}
}

func (d *Driver) step(s *TraversalState) Step {
	switch s.Automaton {
	case StateFromParent, StateFromSibling:
		node := d.Nodes[s.Node]
		hit, tEnter := node.Bounds.Intersect(d.Ray, d.InvDir)
		boxHit := hit && tEnter < d.BestT()

		if !boxHit {
			if s.Automaton == StateFromParent {
				return d.toSibling(s)
			}
			return d.toParent(s)
		}

		if node.IsLeaf {
			if d.Visit(node.PrimIndex) {
				// Leave s pointing at this leaf: the resuming worker
				// re-enters it, visits it locally, and moves on.
				return StepSuspended
			}
			// Entered from the parent: the sibling is still unvisited.
			// Entered from the sibling: both children are done, go up.
			if s.Automaton == StateFromParent {
				return d.toSibling(s)
			}
			return d.toParent(s)
		}

		near := d.near(s.Node)
		s.Node = near
		s.Automaton = StateFromParent
		return StepContinue

	case StateFromChild:
		if s.Node == 0 {
			return StepFinished
		}
		node := d.Nodes[s.Node]
		parent := node.Parent
		near := d.near(parent)
		if s.Node == near {
			s.Node = d.far(parent, near)
			s.Automaton = StateFromSibling
			return StepContinue
		}
		s.Node = parent
		s.Automaton = StateFromChild
		return StepContinue
	}

	return StepFinished
}

// toSibling moves to the sibling of the current node, or to the
// root-terminal FromChild state if the current node is the root.
func (d *Driver) toSibling(s *TraversalState) Step {
	if s.Node == 0 {
		s.Automaton = StateFromChild
		return StepContinue
	}
	node := d.Nodes[s.Node]
	s.Node = d.sibling(s.Node, node.Parent)
	s.Automaton = StateFromSibling
	return StepContinue
}

// toParent moves to the current node's parent, as FromChild.
func (d *Driver) toParent(s *TraversalState) Step {
	node := d.Nodes[s.Node]
	if s.Node == 0 {
		return StepFinished
	}
	s.Node = node.Parent
	s.Automaton = StateFromChild
	return StepContinue
}
