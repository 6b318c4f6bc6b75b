package bvh

import (
	"sort"

	"github.com/flexrender/flexrender/geom"
	"github.com/flexrender/flexrender/vec3"
)

// bucketCount is the number of equal-width SAH buckets along the split axis.
const bucketCount = 12

// medianSplitThreshold: at or below this many primitives, split at the
// median instead of running the full SAH bucket search.
const medianSplitThreshold = 4

// primInfo is the per-primitive (index, world-bounds, centroid) build tuple.
type primInfo struct {
	index    int32
	bounds   geom.BoundingBox
	centroid vec3.Vec3
}

// linkedNode is the recursive build-time tree; Build collapses it into the
// index-addressed LinearNode arena before returning.
type linkedNode struct {
	bounds      geom.BoundingBox
	axis        int8
	left, right *linkedNode
	primIndex   int32
	isLeaf      bool
}

// Build constructs a BVH over the given bounding boxes, using their
// midpoints as centroids. It returns the flattened node array in
// depth-first, left-first order. The caller's PrimIndex in each leaf refers
// to the original position in bounds.
func Build(bounds []geom.BoundingBox) []LinearNode {
	infos := make([]primInfo, len(bounds))
	for i, b := range bounds {
		infos[i] = primInfo{index: int32(i), bounds: b, centroid: b.Centroid()}
	}

	if len(infos) == 0 {
		return nil
	}

	root := buildRecursive(infos)

	nodes := make([]LinearNode, 0, len(infos)*2-1)
	flatten(root, -1, &nodes)
	return nodes
}

func buildRecursive(infos []primInfo) *linkedNode {
	bounds := geom.EmptyBox()
	for _, p := range infos {
		bounds = bounds.Union(p.bounds)
	}

	if len(infos) == 1 {
		return &linkedNode{bounds: bounds, isLeaf: true, primIndex: infos[0].index}
	}

	centroidBounds := geom.EmptyBox()
	for _, p := range infos {
		centroidBounds = centroidBounds.Absorb(p.centroid)
	}
	axis := centroidBounds.LongestAxis()

	degenerate := centroidBounds.Max.Component(axis) == centroidBounds.Min.Component(axis)

	var mid int
	if len(infos) <= medianSplitThreshold || degenerate {
		mid = medianSplit(infos, axis)
	} else {
		mid = sahSplit(infos, axis, centroidBounds, bounds)
	}

	// Guard against a degenerate partition (all primitives on one side):
	// fall back to a strict median so the recursion always terminates.
	if mid == 0 || mid == len(infos) {
		mid = medianSplit(infos, axis)
		if mid == 0 || mid == len(infos) {
			mid = len(infos) / 2
		}
	}

	left := buildRecursive(infos[:mid])
	right := buildRecursive(infos[mid:])

	return &linkedNode{bounds: bounds, axis: int8(axis), left: left, right: right}
}

// medianSplit partitions infos in place around the median of their centroid
// component on axis. Used directly for small/degenerate nodes and as the SAH
// fallback when every bucket split is empty on one side.
func medianSplit(infos []primInfo, axis int) int {
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].centroid.Component(axis) < infos[j].centroid.Component(axis)
	})
	return len(infos) / 2
}

// sahSplit buckets primitives by centroid position along axis and picks the
// split minimizing the Surface Area Heuristic cost. It partitions infos in
// place and returns the split index.
func sahSplit(infos []primInfo, axis int, centroidBounds, totalBounds geom.BoundingBox) int {
	type bucket struct {
		count  int
		bounds geom.BoundingBox
	}
	var buckets [bucketCount]bucket
	for i := range buckets {
		buckets[i].bounds = geom.EmptyBox()
	}

	lo := centroidBounds.Min.Component(axis)
	hi := centroidBounds.Max.Component(axis)
	extent := hi - lo

	bucketOf := func(p primInfo) int {
		b := int(float64(bucketCount) * (p.centroid.Component(axis) - lo) / extent)
		if b >= bucketCount {
			b = bucketCount - 1
		}
		if b < 0 {
			b = 0
		}
		return b
	}

	bucketIndex := make([]int, len(infos))
	for i, p := range infos {
		b := bucketOf(p)
		bucketIndex[i] = b
		buckets[b].count++
		buckets[b].bounds = buckets[b].bounds.Union(p.bounds)
	}

	totalSA := totalBounds.SurfaceArea()
	if totalSA == 0 {
		totalSA = 1
	}

	bestCost := -1.0
	bestSplit := -1 // split after bucket index bestSplit (inclusive on the left)

	for split := 0; split < bucketCount-1; split++ {
		var nLeft, nRight int
		leftBounds := geom.EmptyBox()
		rightBounds := geom.EmptyBox()
		for b := 0; b <= split; b++ {
			nLeft += buckets[b].count
			leftBounds = leftBounds.Union(buckets[b].bounds)
		}
		for b := split + 1; b < bucketCount; b++ {
			nRight += buckets[b].count
			rightBounds = rightBounds.Union(buckets[b].bounds)
		}
		if nLeft == 0 || nRight == 0 {
			continue
		}
		cost := 0.125 + (float64(nLeft)*leftBounds.SurfaceArea()+float64(nRight)*rightBounds.SurfaceArea())/totalSA
		if bestCost < 0 || cost < bestCost {
			bestCost = cost
			bestSplit = split
		}
	}

	if bestSplit < 0 {
		return medianSplit(infos, axis)
	}

	// Partition in place: primitive's bucket <= bestSplit goes left.
	i, j := 0, len(infos)-1
	for i <= j {
		for i <= j && bucketIndex[i] <= bestSplit {
			i++
		}
		for i <= j && bucketIndex[j] > bestSplit {
			j--
		}
		if i < j {
			infos[i], infos[j] = infos[j], infos[i]
			bucketIndex[i], bucketIndex[j] = bucketIndex[j], bucketIndex[i]
			i++
			j--
		}
	}
	return i
}

// flatten walks the build tree depth-first, left-first, appending LinearNode
// entries and recording parent/right-subtree indices.
func flatten(n *linkedNode, parent NodeIndex, nodes *[]LinearNode) NodeIndex {
	idx := NodeIndex(len(*nodes))
	*nodes = append(*nodes, LinearNode{
		Bounds: n.bounds,
		Parent: parent,
		Axis:   n.axis,
	})

	if n.isLeaf {
		(*nodes)[idx].IsLeaf = true
		(*nodes)[idx].PrimIndex = n.primIndex
		return idx
	}

	flatten(n.left, idx, nodes)
	rightIdx := flatten(n.right, idx, nodes)
	(*nodes)[idx].Right = rightIdx
	return idx
}
