package worker

import (
	"math"

	"github.com/flexrender/flexrender/bvh"
	"github.com/flexrender/flexrender/geom"
	"github.com/flexrender/flexrender/ray"
	"github.com/flexrender/flexrender/shader"
	"github.com/flexrender/flexrender/vec3"
)

// Limits carries the bounce/transmittance cutoffs a render job was
// configured with, plus the per-triangle light sampling count S.
type Limits struct {
	BounceLimit  int
	Threshold    float64
	LightSamples int
}

// targetIntersectEpsilon bounds how far a LIGHT ray's final hit point may
// lie from its target before being treated as occluded.
const targetIntersectEpsilon = 1e-4

// ProcessRay routes r to the handler for its Kind and returns the
// resulting WorkResults. This is the ray.Job a Dispatcher runs for every
// popped ray.
func ProcessRay(lib *Library, totalWorkers int, limits Limits, r *ray.FatRay) *ray.WorkResults {
	res := &ray.WorkResults{}
	switch r.Kind {
	case ray.KindIntersect:
		processIntersect(lib, totalWorkers, limits, r, res)
	case ray.KindIlluminate:
		processIlluminate(lib, limits, r, res)
	case ray.KindLight:
		processLight(lib, totalWorkers, r, res)
	}
	return res
}

// intersectOwnMeshes tests r against every mesh this worker owns,
// tightening r.Best in place: the worker-level BVH over mesh bounds
// first, and within each visited mesh leaf, that mesh's own triangle BVH.
func intersectOwnMeshes(lib *Library, r *ray.FatRay) {
	if len(lib.MBVH) == 0 {
		return
	}

	meshDriver := &bvh.Driver{
		Nodes:  lib.MBVH,
		Ray:    r.Slim,
		InvDir: r.Slim.InvDir(),
		BestT:  func() float64 { return r.Best.T },
	}
	meshDriver.Visit = func(primIndex int32) bool {
		meshID := lib.MBVHOrder[primIndex]
		mesh := lib.Meshes[meshID]
		nodes := lib.MeshBVH[meshID]
		if mesh == nil || len(nodes) == 0 {
			return false
		}

		triDriver := &bvh.Driver{
			Nodes:  nodes,
			Ray:    r.Slim,
			InvDir: r.Slim.InvDir(),
			BestT:  func() float64 { return r.Best.T },
		}
		triDriver.Visit = func(triPrimIndex int32) bool {
			tri := mesh.Triangles[triPrimIndex]
			if hit, ok := geom.IntersectTriangle(mesh, tri, r.Slim); ok && hit.T < r.Best.T {
				r.Best = ray.HitRecord{
					Worker: lib.SelfID, Mesh: meshID, T: hit.T,
					Normal: hit.Normal, TexCoord: hit.TexCoord,
				}
			}
			return false
		}
		state := bvh.Start()
		triDriver.Run(&state)
		return false
	}
	state := bvh.Start()
	meshDriver.Run(&state)
}

func nextWorkerID(self uint32, total int) uint32 {
	return uint32(int(self)%total) + 1
}

// clusterDriver builds a Driver over the cluster BVH whose leaf visitor
// tests this worker's own geometry when it reaches this worker's leaf
// (returning false, so the traversal keeps searching for a closer worker),
// and requests suspension at any other worker's leaf, handing the ray to
// that worker.
func clusterDriver(lib *Library, r *ray.FatRay) *bvh.Driver {
	d := &bvh.Driver{
		Nodes:  lib.WBVH,
		Ray:    r.Slim,
		InvDir: r.Slim.InvDir(),
		BestT:  func() float64 { return r.Best.T },
	}
	d.Visit = func(primIndex int32) bool {
		workerID := lib.WBVHOrder[primIndex]
		if workerID == lib.SelfID {
			intersectOwnMeshes(lib, r)
			r.WorkersTouched++
			return false
		}
		return true
	}
	return d
}

// runCluster drives the suspended-or-fresh traversal in r.Traversal to its
// next boundary: a suspension (forward to the leaf's owning worker) or the
// end of the tree (finalize, with the traversal token cleared so the ray
// can be delivered for shading without being mistaken for a resumption).
func runCluster(lib *Library, r *ray.FatRay, res *ray.WorkResults, finalize func()) {
	driver := clusterDriver(lib, r)
	switch driver.Run(&r.Traversal) {
	case bvh.StepSuspended:
		dest := lib.WBVHOrder[lib.WBVH[r.Traversal.Node].PrimIndex]
		res.Forwards = append(res.Forwards, ray.Forward{Ray: r, Dest: dest})
	case bvh.StepFinished:
		r.Traversal = bvh.TraversalState{}
		finalize()
	}
}

// processIntersect drives the distributed search for an INTERSECT ray. A
// ray arrives here in one of three shapes: mid-traversal (resume the
// cluster walk), post-traversal with a winning hit (this worker owns the
// hit mesh; shade it), or fresh (start the walk). Without a cluster BVH
// the walk degrades to a ring visit over every worker in id order.
func processIntersect(lib *Library, totalWorkers int, limits Limits, r *ray.FatRay, res *ray.WorkResults) {
	if len(lib.WBVH) == 0 {
		if int(r.WorkersTouched) >= totalWorkers {
			shadeIntersect(lib, limits, r, res)
			return
		}
		intersectOwnMeshes(lib, r)
		r.WorkersTouched++
		if int(r.WorkersTouched) < totalWorkers {
			res.Forwards = append(res.Forwards, ray.Forward{Ray: r, Dest: nextWorkerID(lib.SelfID, totalWorkers)})
			return
		}
		finalizeIntersect(lib, limits, r, res)
		return
	}

	if !r.Traversal.Done() {
		runCluster(lib, r, res, func() { finalizeIntersect(lib, limits, r, res) })
		return
	}
	if !r.Best.Miss() {
		shadeIntersect(lib, limits, r, res)
		return
	}
	r.Traversal = bvh.Start()
	runCluster(lib, r, res, func() { finalizeIntersect(lib, limits, r, res) })
}

// finalizeIntersect runs once the whole cluster has been searched: kill on
// miss, shade locally if this worker owns the winning hit, otherwise
// deliver the ray to the owner.
func finalizeIntersect(lib *Library, limits Limits, r *ray.FatRay, res *ray.WorkResults) {
	if r.Best.Miss() {
		res.Killed[ray.KindIntersect]++
		res.Touch(r.WorkersTouched)
		return
	}
	if r.Best.Worker == lib.SelfID {
		shadeIntersect(lib, limits, r, res)
		return
	}
	res.Forwards = append(res.Forwards, ray.Forward{Ray: r, Dest: r.Best.Worker})
}

// shadeIntersect runs the owning worker's indirect shading at the winning
// hit point, fans out one ILLUMINATE ray per worker on the light list, and
// kills the INTERSECT ray.
func shadeIntersect(lib *Library, limits Limits, r *ray.FatRay, res *ray.WorkResults) {
	defer func() {
		res.Killed[ray.KindIntersect]++
		res.Touch(r.WorkersTouched)
	}()

	mesh, ok := lib.Meshes[r.Best.Mesh]
	if !ok {
		return
	}
	mat, ok := lib.Materials[mesh.MaterialID]
	if !ok {
		return
	}
	prog, ok := lib.Shaders[mat.ShaderID]
	if !ok {
		return
	}

	point := r.Slim.At(r.Best.T)

	if prog.HasIndirect() {
		view := vec3.Neg(r.Slim.Dir)

		lock := lib.ShaderLock(mat.ShaderID)
		lock.Lock()
		w := &shader.WorkBuilder{
			Results: res, Parent: r, Pixel: r.Pixel, Self: lib.SelfID,
			BounceLimit: limits.BounceLimit, Threshold: limits.Threshold,
			Transmittance: r.Transmittance,
			Textures:      samplerTextures(lib, mat),
		}
		prog.Indirect(w, point, view, r.Best.Normal, r.Best.TexCoord)
		lock.Unlock()
	}

	for workerID := range lib.LightList {
		ic := *r
		ic.Kind = ray.KindIlluminate
		ic.Target = point
		ic.CurrentWorker = lib.SelfID
		ic.WorkersTouched = 0
		res.Forwards = append(res.Forwards, ray.Forward{Ray: &ic, Dest: workerID})
		res.Produced[ray.KindIlluminate]++
	}
}

func samplerTextures(lib *Library, mat geom.Material) map[string]shader.Texture {
	textures := make(map[string]shader.Texture, len(mat.Samplers))
	for name, id := range mat.Samplers {
		if tex, ok := lib.Textures[id]; ok {
			textures[name] = tex
		}
	}
	return textures
}

// processIlluminate runs on a worker hosting emissive geometry: every
// emissive triangle is sampled S times, spawning one LIGHT ray per
// accepted sample, after which the ILLUMINATE ray dies.
func processIlluminate(lib *Library, limits Limits, r *ray.FatRay, res *ray.WorkResults) {
	samples := limits.LightSamples
	if samples < 1 {
		samples = 1
	}

	for meshID, mesh := range lib.Meshes {
		mat, ok := lib.Materials[mesh.MaterialID]
		if !ok || !mat.Emissive {
			continue
		}
		prog := lib.Shaders[mat.ShaderID]

		for triIdx, tri := range mesh.Triangles {
			src := newSampleSource(uint64(r.Pixel.X)<<32 ^ uint64(r.Pixel.Y) ^ uint64(meshID)<<16 ^ uint64(triIdx))
			for s := 0; s < samples; s++ {
				spawnLightSample(lib, mesh, tri, prog, src, r, samples, res)
			}
		}
	}

	res.Killed[ray.KindIlluminate]++
}

func spawnLightSample(lib *Library, mesh *geom.Mesh, tri geom.Triangle, prog shader.Program, src *sampleSource, r *ray.FatRay, samples int, res *ray.WorkResults) {
	u, v := src.barycentric()
	w := 1 - u - v

	p0 := mesh.WorldVertex(tri, 0)
	p1 := mesh.WorldVertex(tri, 1)
	p2 := mesh.WorldVertex(tri, 2)
	pos := vec3.Add(vec3.Add(vec3.Scale(p0, w), vec3.Scale(p1, u)), vec3.Scale(p2, v))

	n0 := mesh.WorldNormal(tri, 0)
	n1 := mesh.WorldNormal(tri, 1)
	n2 := mesh.WorldNormal(tri, 2)
	normal := vec3.Normalize(vec3.Add(vec3.Add(vec3.Scale(n0, w), vec3.Scale(n1, u)), vec3.Scale(n2, v)))

	dirToTarget := vec3.Normalize(vec3.Sub(r.Target, pos))
	if vec3.Dot(normal, dirToTarget) < 0 {
		return
	}

	var emission vec3.Vec3
	if prog != nil {
		uv0 := mesh.Vertices[tri.A].TexCoord
		uv1 := mesh.Vertices[tri.B].TexCoord
		uv2 := mesh.Vertices[tri.C].TexCoord
		texCoord := vec3.Add2(vec3.Add2(vec3.Scale2(uv0, w), vec3.Scale2(uv1, u)), vec3.Scale2(uv2, v))
		emission = prog.Emissive(texCoord)
	}

	light := &ray.FatRay{
		Kind: ray.KindLight, Pixel: r.Pixel, Bounces: r.Bounces,
		Slim:          vec3.Ray{Origin: pos, Dir: dirToTarget},
		Transmittance: r.Transmittance / float64(samples),
		Emission:      emission,
		Target:        r.Target,
		Best:          ray.NoHit,
		CurrentWorker: lib.SelfID,
	}
	res.Forwards = append(res.Forwards, ray.Forward{Ray: light, Dest: lib.SelfID})
	res.Produced[ray.KindLight]++
}

// processLight drives the same cluster search as INTERSECT, but on
// finishing checks proximity to Target rather than shading the hit surface
// the ray happened to strike first.
func processLight(lib *Library, totalWorkers int, r *ray.FatRay, res *ray.WorkResults) {
	if len(lib.WBVH) == 0 {
		if int(r.WorkersTouched) >= totalWorkers {
			finalizeLight(lib, r, res)
			return
		}
		intersectOwnMeshes(lib, r)
		r.WorkersTouched++
		if int(r.WorkersTouched) < totalWorkers {
			res.Forwards = append(res.Forwards, ray.Forward{Ray: r, Dest: nextWorkerID(lib.SelfID, totalWorkers)})
			return
		}
		finalizeLightSearch(lib, r, res)
		return
	}

	if !r.Traversal.Done() {
		runCluster(lib, r, res, func() { finalizeLightSearch(lib, r, res) })
		return
	}
	if !r.Best.Miss() {
		finalizeLight(lib, r, res)
		return
	}
	r.Traversal = bvh.Start()
	runCluster(lib, r, res, func() { finalizeLightSearch(lib, r, res) })
}

func finalizeLightSearch(lib *Library, r *ray.FatRay, res *ray.WorkResults) {
	if r.Best.Miss() {
		res.Killed[ray.KindLight]++
		res.Touch(r.WorkersTouched)
		return
	}
	if r.Best.Worker == lib.SelfID {
		finalizeLight(lib, r, res)
		return
	}
	res.Forwards = append(res.Forwards, ray.Forward{Ray: r, Dest: r.Best.Worker})
}

// finalizeLight checks whether the light ray's resolved hit is close
// enough to its target to count as unoccluded, and if so invokes the hit
// mesh's direct shading. Either way the LIGHT ray dies here.
func finalizeLight(lib *Library, r *ray.FatRay, res *ray.WorkResults) {
	defer func() {
		res.Killed[ray.KindLight]++
		res.Touch(r.WorkersTouched)
	}()

	hitPoint := r.Slim.At(r.Best.T)
	if vec3.Mag(vec3.Sub(hitPoint, r.Target)) > targetIntersectEpsilon {
		// Occluded: something sits between the light sample and the
		// shading point. Discard silently.
		return
	}

	mesh, ok := lib.Meshes[r.Best.Mesh]
	if !ok {
		return
	}
	mat, ok := lib.Materials[mesh.MaterialID]
	if !ok {
		return
	}
	prog, ok := lib.Shaders[mat.ShaderID]
	if !ok {
		return
	}

	view := vec3.Neg(r.Slim.Dir)
	lightDir := vec3.Normalize(vec3.Sub(r.Slim.Origin, hitPoint))

	lock := lib.ShaderLock(mat.ShaderID)
	lock.Lock()
	w := &shader.WorkBuilder{
		Results: res, Parent: r, Pixel: r.Pixel, Self: lib.SelfID,
		Transmittance: r.Transmittance,
		Textures:      samplerTextures(lib, mat),
	}
	prog.Direct(w, view, r.Best.Normal, r.Best.TexCoord, lightDir, r.Emission)
	lock.Unlock()
}

// sampleSource produces deterministic per-(pixel,mesh,triangle) barycentric
// samples, the same small-LCG approach as camera's jitter source, so
// repeated renders stay byte-reproducible.
type sampleSource struct{ state uint64 }

func newSampleSource(seed uint64) *sampleSource {
	if seed == 0 {
		seed = 1
	}
	return &sampleSource{state: seed}
}

func (s *sampleSource) next() float64 {
	s.state = s.state*6364136223846793005 + 1442695040888963407
	v := float64(s.state>>40) / float64(1<<24)
	return v - math.Floor(v)
}

// barycentric draws a uniform point in the unit triangle via the standard
// square-root warp of two uniform numbers.
func (s *sampleSource) barycentric() (u, v float64) {
	r1, r2 := s.next(), s.next()
	sq := math.Sqrt(r1)
	return 1 - sq, r2 * sq
}
