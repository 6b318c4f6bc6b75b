// Package ray implements the ray-kind state machine's data types and the
// per-worker scheduling primitives: the FatRay tagged union, HitRecord,
// WorkResults, the rolling Stats counters, the priority Queue, and a
// bounded job Dispatcher. Shading semantics (what INTERSECT/ILLUMINATE/
// LIGHT rays actually *do*) live in package worker, which owns the scene
// data these types are processed against.
package ray

import (
	"github.com/flexrender/flexrender/bvh"
	"github.com/flexrender/flexrender/geom"
	"github.com/flexrender/flexrender/vec3"
)

// Kind tags a FatRay's role in the pipeline.
type Kind uint8

const (
	KindIntersect Kind = iota
	KindIlluminate
	KindLight

	numKinds = 3
)

func (k Kind) String() string {
	switch k {
	case KindIntersect:
		return "INTERSECT"
	case KindIlluminate:
		return "ILLUMINATE"
	case KindLight:
		return "LIGHT"
	default:
		return "UNKNOWN"
	}
}

// Pixel is a (x,y) framebuffer coordinate.
type Pixel struct {
	X, Y int
}

// HitRecord is the best intersection found so far along a ray. Worker==0
// is the miss sentinel; a record is never overwritten by a hit with a
// greater-or-equal t.
type HitRecord struct {
	Worker   uint32
	Mesh     geom.MeshID
	T        float64
	Normal   vec3.Vec3
	TexCoord vec3.Vec2
}

// Miss reports whether this record represents no hit.
func (h HitRecord) Miss() bool { return h.Worker == 0 }

// NoHit is the sentinel HitRecord with an effectively infinite t, so the
// first real hit always improves it.
var NoHit = HitRecord{Worker: 0, T: 1e300}

// FatRay is the full pipeline state carried for a single ray, across
// workers when traversal demands it. The slim (origin, direction) pair is
// what the inner intersection routines see.
type FatRay struct {
	Kind Kind

	Pixel   Pixel
	Bounces int

	Slim          vec3.Ray
	Transmittance float64

	// Emission and Target are meaningful only for LIGHT rays.
	Emission vec3.Vec3
	Target   vec3.Vec3

	Best      HitRecord
	Traversal bvh.TraversalState

	CurrentWorker  uint32
	WorkersTouched uint32
}

// NewPrimary constructs a fresh INTERSECT ray for a camera sub-sample.
func NewPrimary(pixel Pixel, origin, dir vec3.Vec3, transmittance float64) *FatRay {
	return &FatRay{
		Kind:          KindIntersect,
		Pixel:         pixel,
		Slim:          vec3.Ray{Origin: origin, Dir: dir},
		Transmittance: transmittance,
		Best:          NoHit,
	}
}

// BufferOpKind distinguishes an overwrite from a commutative accumulation.
type BufferOpKind uint8

const (
	OpWrite BufferOpKind = iota
	OpAccumulate
)

// BufferOp is one write/accumulate against a named image buffer, already
// scaled by the emitting ray's transmittance.
type BufferOp struct {
	Kind  BufferOpKind
	Name  string
	Pixel Pixel
	Value float64
}

// Forward is a ray paired with the worker it should be delivered to next,
// either by network send or by re-enqueuing locally when Dest is the
// current worker's own id.
type Forward struct {
	Ray  *FatRay
	Dest uint32
}

// WorkResults is the output of processing exactly one ray to completion or
// to a forwarding decision.
type WorkResults struct {
	Forwards []Forward
	Ops      []BufferOp

	Produced [numKinds]int
	Killed   [numKinds]int

	// WorkersTouched buckets completed rays by how many distinct workers
	// they visited before terminating.
	WorkersTouched map[uint32]int
}

// Touch records one completed ray that visited n workers.
func (r *WorkResults) Touch(n uint32) {
	if n == 0 {
		return
	}
	if r.WorkersTouched == nil {
		r.WorkersTouched = make(map[uint32]int)
	}
	r.WorkersTouched[n]++
}
