package bvh

import (
	"math"
	"reflect"
	"testing"

	"github.com/flexrender/flexrender/geom"
	"github.com/flexrender/flexrender/vec3"
)

// visitAll runs a full traversal collecting every visited leaf primitive.
func visitAll(nodes []LinearNode, r vec3.Ray, bestT float64) []int32 {
	var visited []int32
	d := &Driver{
		Nodes:  nodes,
		Ray:    r,
		InvDir: r.InvDir(),
		BestT:  func() float64 { return bestT },
		Visit: func(primIndex int32) bool {
			visited = append(visited, primIndex)
			return false
		},
	}
	s := Start()
	if step := d.Run(&s); step != StepFinished {
		panic("traversal did not finish")
	}
	return visited
}

// bruteForceHits returns the set of primitives whose boxes the ray enters
// before bestT, the reference the stackless traversal must not miss.
func bruteForceHits(boxes []geom.BoundingBox, r vec3.Ray, bestT float64) map[int32]bool {
	hits := make(map[int32]bool)
	inv := r.InvDir()
	for i, b := range boxes {
		if ok, tEnter := b.Intersect(r, inv); ok && tEnter < bestT {
			hits[int32(i)] = true
		}
	}
	return hits
}

func TestTraversalMatchesBruteForce(t *testing.T) {
	boxes := scatteredBoxes(80)
	nodes := Build(boxes)

	rays := []vec3.Ray{
		{Origin: vec3.Vec3{X: -10, Y: 30, Z: 15}, Dir: vec3.Normalize(vec3.Vec3{X: 1, Y: 0.1, Z: 0})},
		{Origin: vec3.Vec3{X: 50, Y: -10, Z: 15}, Dir: vec3.Normalize(vec3.Vec3{X: 0, Y: 1, Z: 0.2})},
		{Origin: vec3.Vec3{X: 120, Y: 30, Z: 15}, Dir: vec3.Vec3{X: -1, Y: 0, Z: 0}},
		{Origin: vec3.Vec3{X: 50, Y: 30, Z: -5}, Dir: vec3.Normalize(vec3.Vec3{X: -0.3, Y: -0.2, Z: 1})},
	}

	for i, r := range rays {
		want := bruteForceHits(boxes, r, math.Inf(1))
		got := visitAll(nodes, r, math.Inf(1))
		gotSet := make(map[int32]bool, len(got))
		for _, p := range got {
			if gotSet[p] {
				t.Errorf("ray %d: leaf %d visited twice", i, p)
			}
			gotSet[p] = true
		}
		if !reflect.DeepEqual(gotSet, want) {
			t.Errorf("ray %d: visited %d leaves, brute force says %d", i, len(gotSet), len(want))
		}
	}
}

func TestTraversalRespectsBestT(t *testing.T) {
	boxes := []geom.BoundingBox{
		boxAt(0, 0, 0, 1),
		boxAt(10, 0, 0, 1),
		boxAt(20, 0, 0, 1),
	}
	nodes := Build(boxes)
	r := vec3.Ray{Origin: vec3.Vec3{X: -5, Y: 0.5, Z: 0.5}, Dir: vec3.Vec3{X: 1, Y: 0, Z: 0}}

	// A best hit at t=12 prunes the box starting 25 units out.
	visited := visitAll(nodes, r, 12)
	for _, p := range visited {
		if p == 2 {
			t.Error("leaf beyond the current best hit distance was visited")
		}
	}
}

func TestTraversalSingleLeaf(t *testing.T) {
	nodes := Build([]geom.BoundingBox{boxAt(0, 0, 0, 1)})
	r := vec3.Ray{Origin: vec3.Vec3{X: -1, Y: 0.5, Z: 0.5}, Dir: vec3.Vec3{X: 1, Y: 0, Z: 0}}
	visited := visitAll(nodes, r, math.Inf(1))
	if len(visited) != 1 || visited[0] != 0 {
		t.Errorf("expected exactly one visit of primitive 0, got %v", visited)
	}
}

// TestSuspendResumeEquivalence drives the same ray twice: once without
// suspensions, and once suspending at every leaf in a chosen "foreign" set
// and resuming from the persisted TraversalState, the way a ray bounces
// between workers. The visited leaf sequences must be identical.
func TestSuspendResumeEquivalence(t *testing.T) {
	// A row of boxes straddling the ray, so it enters every leaf.
	boxes := make([]geom.BoundingBox, 12)
	for i := range boxes {
		boxes[i] = boxAt(float64(i)*5, 29.5, 14.5, 1)
	}
	nodes := Build(boxes)
	r := vec3.Ray{Origin: vec3.Vec3{X: -10, Y: 30, Z: 15}, Dir: vec3.Vec3{X: 1}}

	reference := visitAll(nodes, r, math.Inf(1))

	foreign := func(p int32) bool { return p%3 == 0 }

	var visited []int32
	var suspendedAt []int32
	s := Start()
	for hop := 0; hop < 10_000; hop++ {
		resumedForeign := len(suspendedAt) > 0
		d := &Driver{
			Nodes:  nodes,
			Ray:    r,
			InvDir: r.InvDir(),
			BestT:  func() float64 { return math.Inf(1) },
			Visit: func(primIndex int32) bool {
				// On the first visit after a resume, this leaf is "ours"
				// (the worker the ray was forwarded to); afterwards every
				// foreign leaf suspends again.
				if resumedForeign {
					resumedForeign = false
					visited = append(visited, primIndex)
					return false
				}
				if foreign(primIndex) {
					return true
				}
				visited = append(visited, primIndex)
				return false
			},
		}
		step := d.Run(&s)
		if step == StepFinished {
			break
		}
		// Suspended: the state still points at the suspending leaf, so the
		// destination is recoverable from it.
		leaf := nodes[s.Node]
		if !leaf.IsLeaf {
			t.Fatalf("suspended at non-leaf node %d", s.Node)
		}
		suspendedAt = append(suspendedAt, leaf.PrimIndex)
	}

	// The combined sequence must equal the uninterrupted run exactly:
	// suspended leaves are visited by the "destination" on resume.
	if !reflect.DeepEqual(visited, reference) {
		t.Errorf("suspend/resume visited %v, uninterrupted run visited %v", visited, reference)
	}
	if len(suspendedAt) == 0 {
		t.Error("test exercised no suspensions; foreign set too small")
	}
}
