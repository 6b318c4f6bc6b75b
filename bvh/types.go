// Package bvh implements the linear bounding volume hierarchy shared by
// all three levels of the renderer: the per-mesh BVH over triangles, the
// worker-level BVH over mesh bounds, and the cluster-level BVH over worker
// bounds. All three use the same node layout and the same stackless,
// suspendable traversal automaton; only what a leaf visit *means* differs
// per level, and that is supplied by the caller as a LeafVisitor.
package bvh

import "github.com/flexrender/flexrender/geom"

// NodeIndex addresses a node within a flattened LinearNode array. The root
// is always index 0.
type NodeIndex int32

// LinearNode is one node of the flattened, depth-first, left-first BVH
// array. The left child of an interior node is always index+1; Right holds
// the index of the right subtree's root. Leaves carry PrimIndex instead.
type LinearNode struct {
	Bounds geom.BoundingBox

	Parent NodeIndex // -1 for the root
	Right  NodeIndex // right subtree root; unused (0) on leaves

	Axis int8 // split axis, 0/1/2; unused on leaves

	IsLeaf    bool
	PrimIndex int32 // index into the caller's original primitive slice
}

// AutomatonState is one of the three traversal phases: a node can be
// entered from its parent, from its sibling, or re-entered from a child on
// the way back up.
type AutomatonState uint8

const (
	// StateNone means no traversal is in progress (fresh ray, not yet started).
	StateNone AutomatonState = iota
	StateFromParent
	StateFromSibling
	StateFromChild
)

// TraversalState is the resumption token a suspended traversal leaves
// behind: a node index, the automaton phase that applies next, and whether
// the ray's best hit improved since the traversal was last suspended. It
// is deliberately a small, flat, serializable struct — not a coroutine —
// so it can cross the network with the ray and resume on a peer holding
// the identical node array.
type TraversalState struct {
	Node      NodeIndex
	Automaton AutomatonState
	LastHit   bool
}

// Done reports whether no traversal is currently in progress.
func (s TraversalState) Done() bool { return s.Automaton == StateNone }

// Start returns the initial traversal state: begin at the root, arriving as
// if from its parent.
func Start() TraversalState {
	return TraversalState{Node: 0, Automaton: StateFromParent}
}
