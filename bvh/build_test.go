package bvh

import (
	"reflect"
	"testing"

	"github.com/flexrender/flexrender/geom"
	"github.com/flexrender/flexrender/vec3"
)

func boxAt(x, y, z, size float64) geom.BoundingBox {
	return geom.BoundingBox{
		Min: vec3.Vec3{X: x, Y: y, Z: z},
		Max: vec3.Vec3{X: x + size, Y: y + size, Z: z + size},
	}
}

// scatteredBoxes produces a deterministic, non-uniform cloud of boxes.
func scatteredBoxes(n int) []geom.BoundingBox {
	boxes := make([]geom.BoundingBox, n)
	state := uint64(12345)
	next := func() float64 {
		state = state*6364136223846793005 + 1442695040888963407
		return float64(state>>40) / float64(1<<24)
	}
	for i := range boxes {
		boxes[i] = boxAt(next()*100, next()*60, next()*30, 0.5+next())
	}
	return boxes
}

func TestBuildEmpty(t *testing.T) {
	if nodes := Build(nil); nodes != nil {
		t.Errorf("expected nil for empty input, got %d nodes", len(nodes))
	}
}

func TestBuildSinglePrimitive(t *testing.T) {
	nodes := Build([]geom.BoundingBox{boxAt(0, 0, 0, 1)})
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
	root := nodes[0]
	if !root.IsLeaf || root.PrimIndex != 0 || root.Parent != -1 {
		t.Errorf("unexpected root leaf %+v", root)
	}
}

func TestBuildStructureInvariants(t *testing.T) {
	boxes := scatteredBoxes(100)
	nodes := Build(boxes)

	if len(nodes) != 2*len(boxes)-1 {
		t.Fatalf("expected %d nodes for %d primitives, got %d", 2*len(boxes)-1, len(boxes), len(nodes))
	}

	seen := make(map[int32]bool)
	for i, n := range nodes {
		if i == 0 {
			if n.Parent != -1 {
				t.Errorf("root parent = %d, want -1", n.Parent)
			}
		} else if n.Parent < 0 || int(n.Parent) >= len(nodes) {
			t.Errorf("node %d has out-of-range parent %d", i, n.Parent)
		}

		if n.IsLeaf {
			if seen[n.PrimIndex] {
				t.Errorf("primitive %d appears in two leaves", n.PrimIndex)
			}
			seen[n.PrimIndex] = true
			continue
		}

		// Interior: left child is the next index, right subtree root is
		// recorded, and both name this node as parent.
		left := NodeIndex(i + 1)
		if nodes[left].Parent != NodeIndex(i) {
			t.Errorf("node %d left child %d has parent %d", i, left, nodes[left].Parent)
		}
		if n.Right <= left || int(n.Right) >= len(nodes) {
			t.Errorf("node %d right subtree index %d out of range", i, n.Right)
		}
		if nodes[n.Right].Parent != NodeIndex(i) {
			t.Errorf("node %d right child %d has parent %d", i, n.Right, nodes[n.Right].Parent)
		}

		// Parent bounds contain both children's bounds.
		union := nodes[left].Bounds.Union(nodes[n.Right].Bounds)
		if union.Min != n.Bounds.Min || union.Max != n.Bounds.Max {
			t.Errorf("node %d bounds do not equal the union of its children", i)
		}
	}
	if len(seen) != len(boxes) {
		t.Errorf("expected every primitive in exactly one leaf, got %d of %d", len(seen), len(boxes))
	}
}

func TestBuildDeterministic(t *testing.T) {
	a := Build(scatteredBoxes(64))
	b := Build(scatteredBoxes(64))
	if !reflect.DeepEqual(a, b) {
		t.Error("two builds over identical input produced different trees")
	}
}

func TestBuildDegenerateCentroids(t *testing.T) {
	// All primitives share one centroid: the centroid bounds are
	// zero-extent on every axis, so the build must fall through to the
	// median split and still terminate.
	boxes := make([]geom.BoundingBox, 16)
	for i := range boxes {
		boxes[i] = boxAt(10, 10, 10, 2)
	}
	nodes := Build(boxes)
	if len(nodes) != 2*len(boxes)-1 {
		t.Fatalf("expected %d nodes, got %d", 2*len(boxes)-1, len(nodes))
	}
	leaves := 0
	for _, n := range nodes {
		if n.IsLeaf {
			leaves++
		}
	}
	if leaves != len(boxes) {
		t.Errorf("expected %d leaves, got %d", len(boxes), leaves)
	}
}
