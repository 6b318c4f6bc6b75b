// Package geom holds the scene-description value types: vertices, triangles,
// meshes, materials, and the axis-aligned bounding box shared by every BVH
// level (per-mesh, worker, and cluster).
package geom

import (
	"math"

	"github.com/flexrender/flexrender/vec3"
)

// BoundingBox is an axis-aligned bounding box. The zero value is NOT a
// valid empty box; use EmptyBox so union/absorb degenerate correctly.
type BoundingBox struct {
	Min, Max vec3.Vec3
}

// EmptyBox returns a box with Min=+Inf, Max=-Inf so that union-ing it with
// any box or point yields exactly that box or point.
func EmptyBox() BoundingBox {
	inf := math.Inf(1)
	return BoundingBox{
		Min: vec3.Vec3{X: inf, Y: inf, Z: inf},
		Max: vec3.Vec3{X: -inf, Y: -inf, Z: -inf},
	}
}

// Absorb grows b to include p.
func (b BoundingBox) Absorb(p vec3.Vec3) BoundingBox {
	return BoundingBox{Min: vec3.Min(b.Min, p), Max: vec3.Max(b.Max, p)}
}

// Union grows b to include other.
func (b BoundingBox) Union(other BoundingBox) BoundingBox {
	return BoundingBox{Min: vec3.Min(b.Min, other.Min), Max: vec3.Max(b.Max, other.Max)}
}

// Centroid returns the midpoint of the box.
func (b BoundingBox) Centroid() vec3.Vec3 {
	return vec3.Scale(vec3.Add(b.Min, b.Max), 0.5)
}

// SurfaceArea returns the box's total surface area, used by the SAH cost
// function. Degenerate (zero-extent) boxes return 0, not NaN.
func (b BoundingBox) SurfaceArea() float64 {
	d := vec3.Sub(b.Max, b.Min)
	if d.X < 0 || d.Y < 0 || d.Z < 0 {
		return 0
	}
	return 2 * (d.X*d.Y + d.Y*d.Z + d.Z*d.X)
}

// LongestAxis returns 0/1/2 for X/Y/Z, the axis of greatest extent.
func (b BoundingBox) LongestAxis() int {
	d := vec3.Sub(b.Max, b.Min)
	axis := 0
	longest := d.X
	if d.Y > longest {
		axis, longest = 1, d.Y
	}
	if d.Z > longest {
		axis = 2
	}
	return axis
}

// Intersect performs a slab test against the ray (given its precomputed
// inverse direction) and reports whether it hits, along with the entry t.
// A ray whose origin is inside the box (tEnter negative) is still reported
// as a hit, with that negative tEnter, as long as tExit >= 0; a box wholly
// behind the origin is a miss. The box test only gates traversal, not final
// intersection (that's IntersectTriangle's job).
func (b BoundingBox) Intersect(r vec3.Ray, invDir vec3.Vec3) (hit bool, tEnter float64) {
	tMin, tMax := math.Inf(-1), math.Inf(1)

	for axis := 0; axis < 3; axis++ {
		o := r.Origin.Component(axis)
		inv := invDir.Component(axis)
		lo := (b.Min.Component(axis) - o) * inv
		hi := (b.Max.Component(axis) - o) * inv
		if lo > hi {
			lo, hi = hi, lo
		}
		if lo > tMin {
			tMin = lo
		}
		if hi < tMax {
			tMax = hi
		}
		if tMin > tMax {
			return false, 0
		}
	}

	if tMax < 0 {
		return false, 0
	}
	return true, tMin
}
