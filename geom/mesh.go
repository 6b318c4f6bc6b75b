package geom

import "github.com/flexrender/flexrender/vec3"

// MeshID, MaterialID, ShaderID, TextureID uniquely identify scene entities
// within a single scene distribution.
type MeshID uint32
type MaterialID uint32
type ShaderID uint32
type TextureID uint32

// Vertex holds position, (not-necessarily-unit) normal, and texture coordinate.
type Vertex struct {
	Position vec3.Vec3
	Normal   vec3.Vec3
	TexCoord vec3.Vec2
}

// Triangle indexes three vertices in its parent Mesh's vertex array.
type Triangle struct {
	A, B, C uint32
}

// Mesh owns a disjoint vertex/triangle array plus its object-to-world
// transform. The per-mesh BVH is built after the mesh is received by its
// owning worker.
type Mesh struct {
	ID         MeshID
	MaterialID MaterialID

	Vertices  []Vertex
	Triangles []Triangle

	Transform vec3.Mat4

	// derived, computed by Finalize
	inverseTranspose vec3.Mat4
	centroid         vec3.Vec3
	bounds           BoundingBox
	finalized        bool
}

// Finalize computes the derived fields (inverse-transpose, world centroid,
// world bounds) from Transform and the vertex array. Must be called once
// after a mesh's vertices/transform are fully populated, before BVH build.
func (m *Mesh) Finalize() {
	m.inverseTranspose = m.Transform.InverseTranspose()

	box := EmptyBox()
	for _, v := range m.Vertices {
		world := m.Transform.MulPoint(v.Position)
		box = box.Absorb(world)
	}
	m.bounds = box
	m.centroid = box.Centroid()
	m.finalized = true
}

// InverseTranspose returns the matrix used to transform normals into world space.
func (m *Mesh) InverseTranspose() vec3.Mat4 { return m.inverseTranspose }

// Centroid returns the midpoint of the mesh's world bounds, used by the
// Morton spatial index to assign ownership.
func (m *Mesh) Centroid() vec3.Vec3 { return m.centroid }

// Bounds returns the mesh's world-space bounding box.
func (m *Mesh) Bounds() BoundingBox { return m.bounds }

// WorldVertex returns the i'th vertex of triangle t, transformed to world space.
func (m *Mesh) WorldVertex(t Triangle, i int) vec3.Vec3 {
	var idx uint32
	switch i {
	case 0:
		idx = t.A
	case 1:
		idx = t.B
	default:
		idx = t.C
	}
	return m.Transform.MulPoint(m.Vertices[idx].Position)
}

// WorldNormal returns the i'th vertex normal of triangle t, transformed by
// the inverse-transpose and NOT renormalized; callers renormalize after
// barycentric interpolation.
func (m *Mesh) WorldNormal(t Triangle, i int) vec3.Vec3 {
	var idx uint32
	switch i {
	case 0:
		idx = t.A
	case 1:
		idx = t.B
	default:
		idx = t.C
	}
	return m.inverseTranspose.MulDir(m.Vertices[idx].Normal)
}

// TriangleBounds returns the world-space bounding box of triangle t.
func (m *Mesh) TriangleBounds(t Triangle) BoundingBox {
	box := EmptyBox()
	box = box.Absorb(m.WorldVertex(t, 0))
	box = box.Absorb(m.WorldVertex(t, 1))
	box = box.Absorb(m.WorldVertex(t, 2))
	return box
}
