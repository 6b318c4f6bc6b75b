package renderer

import (
	"github.com/flexrender/flexrender/geom"
	"github.com/flexrender/flexrender/scene"
	"github.com/flexrender/flexrender/spatial"
)

// Plan is the outcome of scene distribution — each mesh goes to the
// worker whose space-code bucket contains the mesh centroid: which worker
// owns each mesh, and the meshes grouped by owner in the order SYNC_MESH
// will ship them.
type Plan struct {
	WorkerCount int
	Bounds      geom.BoundingBox
	Owner       map[geom.MeshID]uint32
	ByWorker    map[uint32][]*geom.Mesh
}

// Distribute assigns every mesh in resolved to a worker by the Morton code
// of its (already-transformed) centroid within the scene's overall bounds.
func Distribute(resolved *scene.Resolved, workerCount int) *Plan {
	bounds := geom.EmptyBox()
	for _, m := range resolved.Meshes {
		bounds = bounds.Union(m.Bounds())
	}

	p := &Plan{
		WorkerCount: workerCount,
		Bounds:      bounds,
		Owner:       make(map[geom.MeshID]uint32, len(resolved.Meshes)),
		ByWorker:    make(map[uint32][]*geom.Mesh, workerCount),
	}

	for _, m := range resolved.Meshes {
		code := spatial.Code(bounds.Min, bounds.Max, m.Centroid())
		owner := uint32(spatial.WorkerOf(code, workerCount))
		p.Owner[m.ID] = owner
		p.ByWorker[owner] = append(p.ByWorker[owner], m)
	}

	return p
}

// LightWorkers returns the set of worker ids that own at least one mesh
// whose material is emissive, the body of SYNC_EMISSIVE.
func (p *Plan) LightWorkers(resolved *scene.Resolved) []uint32 {
	set := make(map[uint32]bool)
	for _, m := range resolved.Meshes {
		if mat, ok := resolved.Materials[m.MaterialID]; ok && mat.Emissive {
			set[p.Owner[m.ID]] = true
		}
	}
	out := make([]uint32, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
