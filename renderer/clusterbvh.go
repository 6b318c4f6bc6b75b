package renderer

import (
	"github.com/flexrender/flexrender/bvh"
	"github.com/flexrender/flexrender/geom"
	"github.com/flexrender/flexrender/protocol"
)

// BuildClusterBVH builds the cluster-level BVH over worker bounding
// boxes, the SYNC_WBVH payload. order[i] names the worker id owning
// bounds[i]; a leaf's PrimIndex from bvh.Build indexes into both slices,
// so the wire payload's PrimitiveOffset can be translated straight into a
// worker id by the receiving worker via WBVHPayload.Workers.
func BuildClusterBVH(order []uint32, bounds []geom.BoundingBox) protocol.WBVHPayload {
	nodes := bvh.Build(bounds)
	return protocol.WBVHPayload{
		Nodes:   toWireNodes(nodes),
		Workers: order,
	}
}

// toWireNodes is the inverse of worker.wbvhFromWire: it flattens
// bvh.LinearNode (the in-memory arena shape shared by every BVH level)
// into the wire shape SYNC_WBVH carries.
func toWireNodes(nodes []bvh.LinearNode) []protocol.LinearNodeWire {
	out := make([]protocol.LinearNodeWire, len(nodes))
	for i, n := range nodes {
		w := protocol.LinearNodeWire{
			Min:    protocol.Vec3Wire{X: n.Bounds.Min.X, Y: n.Bounds.Min.Y, Z: n.Bounds.Min.Z},
			Max:    protocol.Vec3Wire{X: n.Bounds.Max.X, Y: n.Bounds.Max.Y, Z: n.Bounds.Max.Z},
			Parent: int32(n.Parent),
			Right:  int32(n.Right),
			Axis:   uint8(n.Axis),
		}
		if n.IsLeaf {
			w.PrimitiveOffset = n.PrimIndex
			w.PrimitiveCount = 1
		} else {
			// A node's left child is always index+1 in this flattening
			// (bvh.Build's depth-first, left-first order); Left is carried
			// on the wire only as a convenience for non-Go consumers.
			w.Left = int32(i + 1)
		}
		out[i] = w
	}
	return out
}
