package geom

import (
	"github.com/flexrender/flexrender/vec3"
)

// SelfIntersectEpsilon bounds t away from zero to avoid a ray re-hitting
// the surface it was just spawned from.
const SelfIntersectEpsilon = 1e-4

// TriHit is the result of a successful triangle intersection: parametric t,
// the interpolated (renormalized) world normal, and the barycentric-weighted
// texture coordinate.
type TriHit struct {
	T        float64
	Normal   vec3.Vec3
	TexCoord vec3.Vec2
}

// IntersectTriangle runs the edge-cross/barycentric test against triangle
// t of mesh m, in world space. It fails (ok=false) on a zero divisor,
// out-of-range barycentrics, t below SelfIntersectEpsilon, or a
// back-facing normal.
func IntersectTriangle(m *Mesh, t Triangle, r vec3.Ray) (hit TriHit, ok bool) {
	p0 := m.WorldVertex(t, 0)
	p1 := m.WorldVertex(t, 1)
	p2 := m.WorldVertex(t, 2)

	edge1 := vec3.Sub(p1, p0)
	edge2 := vec3.Sub(p2, p0)

	h := vec3.Cross(r.Dir, edge2)
	det := vec3.Dot(edge1, h)
	if det == 0 {
		return TriHit{}, false
	}
	invDet := 1.0 / det

	s := vec3.Sub(r.Origin, p0)
	u := vec3.Dot(s, h) * invDet
	if u < 0 || u > 1 {
		return TriHit{}, false
	}

	q := vec3.Cross(s, edge1)
	v := vec3.Dot(r.Dir, q) * invDet
	if v < 0 || u+v > 1 {
		return TriHit{}, false
	}

	tHit := vec3.Dot(edge2, q) * invDet
	if tHit < SelfIntersectEpsilon {
		return TriHit{}, false
	}

	w := 1 - u - v
	n0 := m.WorldNormal(t, 0)
	n1 := m.WorldNormal(t, 1)
	n2 := m.WorldNormal(t, 2)
	normal := vec3.Add(vec3.Add(vec3.Scale(n0, w), vec3.Scale(n1, u)), vec3.Scale(n2, v))

	// Back-facing: the surface faces away from the incoming ray.
	if vec3.Dot(normal, r.Dir) > 0 {
		return TriHit{}, false
	}
	normal = vec3.Normalize(normal)

	uv0 := m.Vertices[t.A].TexCoord
	uv1 := m.Vertices[t.B].TexCoord
	uv2 := m.Vertices[t.C].TexCoord
	texCoord := vec3.Add2(vec3.Add2(vec3.Scale2(uv0, w), vec3.Scale2(uv1, u)), vec3.Scale2(uv2, v))

	return TriHit{T: tHit, Normal: normal, TexCoord: texCoord}, true
}
