package shader

import (
	"github.com/flexrender/flexrender/ray"
	"github.com/flexrender/flexrender/vec3"
)

// WorkBuilder is the side-effect channel passed into a Program's entry
// points: the closed enumeration of shader-to-pipeline calls
// (accumulate/write/trace/texture), each scaled by the parent ray's
// transmittance and appended to the job's WorkResults.
type WorkBuilder struct {
	Results *ray.WorkResults
	Parent  *ray.FatRay
	Pixel   ray.Pixel

	// Self is the id of the worker running this shader; bounce rays
	// spawned by Trace re-enter the pipeline there.
	Self uint32

	BounceLimit   int
	Threshold     float64
	Transmittance float64

	Textures map[string]Texture
}

func (w *WorkBuilder) scaled(v float64) float64 { return v * w.Transmittance }

// Accumulate emits a commutative ACCUMULATE op on the named buffer.
func (w *WorkBuilder) Accumulate(name string, f float64) {
	w.appendOp(ray.OpAccumulate, name, w.scaled(f))
}

// Accumulate2/3/4 accumulate one component per named buffer.
func (w *WorkBuilder) Accumulate2(n1, n2 string, v vec3.Vec2) {
	w.appendOp(ray.OpAccumulate, n1, w.scaled(v.X))
	w.appendOp(ray.OpAccumulate, n2, w.scaled(v.Y))
}
func (w *WorkBuilder) Accumulate3(n1, n2, n3 string, v vec3.Vec3) {
	w.appendOp(ray.OpAccumulate, n1, w.scaled(v.X))
	w.appendOp(ray.OpAccumulate, n2, w.scaled(v.Y))
	w.appendOp(ray.OpAccumulate, n3, w.scaled(v.Z))
}
func (w *WorkBuilder) Accumulate4(n1, n2, n3, n4 string, x, y, z, a float64) {
	w.appendOp(ray.OpAccumulate, n1, w.scaled(x))
	w.appendOp(ray.OpAccumulate, n2, w.scaled(y))
	w.appendOp(ray.OpAccumulate, n3, w.scaled(z))
	w.appendOp(ray.OpAccumulate, n4, w.scaled(a))
}

// Write emits an overwrite WRITE op; order across rays targeting the same
// pixel is undefined.
func (w *WorkBuilder) Write(name string, f float64) {
	w.appendOp(ray.OpWrite, name, w.scaled(f))
}
func (w *WorkBuilder) Write2(n1, n2 string, v vec3.Vec2) {
	w.appendOp(ray.OpWrite, n1, w.scaled(v.X))
	w.appendOp(ray.OpWrite, n2, w.scaled(v.Y))
}
func (w *WorkBuilder) Write3(n1, n2, n3 string, v vec3.Vec3) {
	w.appendOp(ray.OpWrite, n1, w.scaled(v.X))
	w.appendOp(ray.OpWrite, n2, w.scaled(v.Y))
	w.appendOp(ray.OpWrite, n3, w.scaled(v.Z))
}
func (w *WorkBuilder) Write4(n1, n2, n3, n4 string, x, y, z, a float64) {
	w.appendOp(ray.OpWrite, n1, w.scaled(x))
	w.appendOp(ray.OpWrite, n2, w.scaled(y))
	w.appendOp(ray.OpWrite, n3, w.scaled(z))
	w.appendOp(ray.OpWrite, n4, w.scaled(a))
}

func (w *WorkBuilder) appendOp(kind ray.BufferOpKind, name string, value float64) {
	w.Results.Ops = append(w.Results.Ops, ray.BufferOp{
		Kind: kind, Name: name, Pixel: w.Pixel, Value: value,
	})
}

// Trace spawns a new INTERSECT ray (a bounce), dropping it silently when it
// would exceed the bounce limit or fall below the transmittance threshold.
func (w *WorkBuilder) Trace(origin, direction vec3.Vec3, transmittance float64) {
	bounces := w.Parent.Bounces + 1
	if bounces > w.BounceLimit || transmittance < w.Threshold {
		// Counted as generated then immediately killed, so produced and
		// killed totals stay balanced across the cluster.
		w.Results.Produced[ray.KindIntersect]++
		w.Results.Killed[ray.KindIntersect]++
		return
	}

	child := ray.NewPrimary(w.Pixel, origin, direction, transmittance)
	child.Bounces = bounces
	child.CurrentWorker = w.Self
	// A bounce restarts traversal from the worker that shaded its parent;
	// cross-worker routing happens during BVH traversal itself, not at
	// spawn time.
	w.Results.Forwards = append(w.Results.Forwards, ray.Forward{Ray: child, Dest: w.Self})
	w.Results.Produced[ray.KindIntersect]++
}

// Texture samples the named bound sampler, returning the zero value if
// unbound.
func (w *WorkBuilder) Texture(sampler string, texCoord vec3.Vec2) [4]float64 {
	t, ok := w.Textures[sampler]
	if !ok {
		return [4]float64{}
	}
	return t.Sample(texCoord)
}

// Texture1/3 are typed convenience wrappers over Texture.
func (w *WorkBuilder) Texture1(sampler string, texCoord vec3.Vec2) float64 {
	v := w.Texture(sampler, texCoord)
	return v[0]
}
func (w *WorkBuilder) Texture3(sampler string, texCoord vec3.Vec2) vec3.Vec3 {
	v := w.Texture(sampler, texCoord)
	return vec3.Vec3{X: v[0], Y: v[1], Z: v[2]}
}
