package worker

import (
	"sort"
	"sync"

	"github.com/flexrender/flexrender/bvh"
	"github.com/flexrender/flexrender/geom"
	"github.com/flexrender/flexrender/shader"
)

// Library is the scene data a single worker holds: the disjoint subset of
// meshes the distribution plan assigned it, every material/shader/texture
// those meshes reference, and the BVH levels built over them. It is
// mutated only during asset sync, on the event-loop goroutine; once
// rendering starts, jobs read it concurrently without locks.
type Library struct {
	SelfID uint32

	Shaders   map[geom.ShaderID]shader.Program
	Textures  map[geom.TextureID]shader.Texture
	Materials map[geom.MaterialID]geom.Material
	Meshes    map[geom.MeshID]*geom.Mesh

	// MeshBVH holds one per-mesh BVH (over triangles), keyed by mesh id,
	// built locally once all of that mesh's triangles have been received.
	MeshBVH map[geom.MeshID][]bvh.LinearNode

	// MBVH is this worker's BVH over its own mesh bounds; MBVHOrder[i]
	// names the mesh id of leaf primitive index i.
	MBVH      []bvh.LinearNode
	MBVHOrder []geom.MeshID

	// WBVH is the cluster BVH over every worker's bounds, received via
	// SYNC_WBVH; WBVHOrder[i] names the worker id of leaf primitive index
	// i. Absent under the linear-scan fallback.
	WBVH      []bvh.LinearNode
	WBVHOrder []uint32

	// LightList is the set of worker ids hosting at least one emissive
	// material.
	LightList map[uint32]bool

	// Bounds is this worker's own world-space bounding box, computed at
	// BUILD_BVH and reported back to the renderer.
	Bounds geom.BoundingBox

	shaderLocks map[geom.ShaderID]*sync.Mutex
	lockMu      sync.Mutex
}

// NewLibrary returns an empty Library for the given worker id.
func NewLibrary(selfID uint32) *Library {
	return &Library{
		SelfID:      selfID,
		Shaders:     make(map[geom.ShaderID]shader.Program),
		Textures:    make(map[geom.TextureID]shader.Texture),
		Materials:   make(map[geom.MaterialID]geom.Material),
		Meshes:      make(map[geom.MeshID]*geom.Mesh),
		MeshBVH:     make(map[geom.MeshID][]bvh.LinearNode),
		LightList:   make(map[uint32]bool),
		shaderLocks: make(map[geom.ShaderID]*sync.Mutex),
	}
}

// ShaderLock returns the per-script mutex for id, creating it on first
// use. Script contexts are not safe for concurrent calls: many shaders
// may run in parallel, but never the same one on two threads at once.
func (l *Library) ShaderLock(id geom.ShaderID) *sync.Mutex {
	l.lockMu.Lock()
	defer l.lockMu.Unlock()
	m, ok := l.shaderLocks[id]
	if !ok {
		m = &sync.Mutex{}
		l.shaderLocks[id] = m
	}
	return m
}

// BuildMeshBVH builds the per-triangle BVH for every owned mesh and the
// worker-level BVH over their bounds, then records the worker's own
// bounding box.
func (l *Library) BuildMeshBVH() {
	// Iterate meshes in id order so the worker-level BVH (and therefore
	// the whole render) is identical run to run.
	ids := make([]geom.MeshID, 0, len(l.Meshes))
	for id := range l.Meshes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	bounds := geom.EmptyBox()
	meshBounds := make([]geom.BoundingBox, 0, len(l.Meshes))
	order := make([]geom.MeshID, 0, len(l.Meshes))

	for _, id := range ids {
		mesh := l.Meshes[id]
		triBounds := make([]geom.BoundingBox, len(mesh.Triangles))
		for i, tri := range mesh.Triangles {
			triBounds[i] = mesh.TriangleBounds(tri)
		}
		l.MeshBVH[id] = bvh.Build(triBounds)

		mb := mesh.Bounds()
		meshBounds = append(meshBounds, mb)
		order = append(order, id)
		bounds = bounds.Union(mb)
	}

	l.MBVH = bvh.Build(meshBounds)
	l.MBVHOrder = order
	l.Bounds = bounds
}
