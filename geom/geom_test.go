package geom

import (
	"math"
	"testing"

	"github.com/flexrender/flexrender/vec3"
)

func unitTriangleMesh() *Mesh {
	m := &Mesh{
		ID:        1,
		Transform: vec3.Identity(),
		Vertices: []Vertex{
			{Position: vec3.Vec3{X: -0.5, Y: -0.5}, Normal: vec3.Vec3{Z: 1}, TexCoord: vec3.Vec2{X: 0, Y: 0}},
			{Position: vec3.Vec3{X: 0.5, Y: -0.5}, Normal: vec3.Vec3{Z: 1}, TexCoord: vec3.Vec2{X: 1, Y: 0}},
			{Position: vec3.Vec3{X: 0, Y: 0.5}, Normal: vec3.Vec3{Z: 1}, TexCoord: vec3.Vec2{X: 0.5, Y: 1}},
		},
		Triangles: []Triangle{{A: 0, B: 1, C: 2}},
	}
	m.Finalize()
	return m
}

func TestIntersectTriangleHit(t *testing.T) {
	m := unitTriangleMesh()
	r := vec3.Ray{Origin: vec3.Vec3{Z: 2}, Dir: vec3.Vec3{Z: -1}}

	hit, ok := IntersectTriangle(m, m.Triangles[0], r)
	if !ok {
		t.Fatal("expected hit through the triangle's interior")
	}
	if math.Abs(hit.T-2) > 1e-9 {
		t.Errorf("t = %v, want 2", hit.T)
	}
	if math.Abs(hit.Normal.Z-1) > 1e-9 {
		t.Errorf("normal = %v, want +Z", hit.Normal)
	}
}

func TestIntersectTriangleMissOutside(t *testing.T) {
	m := unitTriangleMesh()
	r := vec3.Ray{Origin: vec3.Vec3{X: 5, Z: 2}, Dir: vec3.Vec3{Z: -1}}
	if _, ok := IntersectTriangle(m, m.Triangles[0], r); ok {
		t.Error("expected miss outside the triangle")
	}
}

func TestIntersectTriangleBackface(t *testing.T) {
	m := unitTriangleMesh()
	// Approaching from behind: the normal (+Z) faces away from the ray.
	r := vec3.Ray{Origin: vec3.Vec3{Z: -2}, Dir: vec3.Vec3{Z: 1}}
	if _, ok := IntersectTriangle(m, m.Triangles[0], r); ok {
		t.Error("expected back-facing intersection to be rejected")
	}
}

func TestIntersectTriangleSelfIntersectEpsilon(t *testing.T) {
	m := unitTriangleMesh()
	// Origin a hair in front of the plane: t below the epsilon must fail.
	r := vec3.Ray{Origin: vec3.Vec3{Z: SelfIntersectEpsilon / 2}, Dir: vec3.Vec3{Z: -1}}
	if _, ok := IntersectTriangle(m, m.Triangles[0], r); ok {
		t.Error("expected a hit inside the self-intersection epsilon to be rejected")
	}
}

func TestIntersectTriangleParallel(t *testing.T) {
	m := unitTriangleMesh()
	r := vec3.Ray{Origin: vec3.Vec3{Z: 1}, Dir: vec3.Vec3{X: 1}}
	if _, ok := IntersectTriangle(m, m.Triangles[0], r); ok {
		t.Error("expected miss for a ray parallel to the triangle plane")
	}
}

func TestIntersectTriangleTexcoordInterpolation(t *testing.T) {
	m := unitTriangleMesh()
	// Through the first vertex region: texcoord tends toward (0,0).
	r := vec3.Ray{Origin: vec3.Vec3{X: -0.49, Y: -0.49, Z: 2}, Dir: vec3.Vec3{Z: -1}}
	hit, ok := IntersectTriangle(m, m.Triangles[0], r)
	if !ok {
		t.Fatal("expected hit near vertex 0")
	}
	if hit.TexCoord.X > 0.1 || hit.TexCoord.Y > 0.1 {
		t.Errorf("texcoord %v, want near (0,0)", hit.TexCoord)
	}
}

func TestMeshFinalizeDerived(t *testing.T) {
	m := &Mesh{
		Transform: vec3.Translate(vec3.Vec3{X: 10}),
		Vertices: []Vertex{
			{Position: vec3.Vec3{X: -1, Y: -1, Z: -1}},
			{Position: vec3.Vec3{X: 1, Y: 1, Z: 1}},
		},
	}
	m.Finalize()

	if c := m.Centroid(); c.X != 10 || c.Y != 0 || c.Z != 0 {
		t.Errorf("centroid = %v, want (10,0,0)", c)
	}
	b := m.Bounds()
	if b.Min.X != 9 || b.Max.X != 11 {
		t.Errorf("bounds = %+v, want x in [9,11]", b)
	}
}

func TestEmptyBoxDegeneratesCorrectly(t *testing.T) {
	b := EmptyBox()
	p := vec3.Vec3{X: 3, Y: -2, Z: 7}
	b = b.Absorb(p)
	if b.Min != p || b.Max != p {
		t.Errorf("absorbing into an empty box should yield a point box, got %+v", b)
	}

	other := EmptyBox().Absorb(vec3.Vec3{X: -1}).Absorb(vec3.Vec3{X: 1})
	u := EmptyBox().Union(other)
	if u.Min != other.Min || u.Max != other.Max {
		t.Errorf("union with an empty box should be identity, got %+v", u)
	}
}

func TestBoundingBoxSurfaceAreaAndAxis(t *testing.T) {
	b := BoundingBox{Min: vec3.Vec3{}, Max: vec3.Vec3{X: 4, Y: 2, Z: 1}}
	if sa := b.SurfaceArea(); sa != 2*(8+2+4) {
		t.Errorf("surface area = %v, want 28", sa)
	}
	if axis := b.LongestAxis(); axis != 0 {
		t.Errorf("longest axis = %d, want 0", axis)
	}
	if sa := EmptyBox().SurfaceArea(); sa != 0 {
		t.Errorf("empty box surface area = %v, want 0", sa)
	}
}

func TestBoundingBoxIntersect(t *testing.T) {
	b := BoundingBox{Min: vec3.Vec3{X: 1, Y: -1, Z: -1}, Max: vec3.Vec3{X: 3, Y: 1, Z: 1}}

	r := vec3.Ray{Origin: vec3.Vec3{}, Dir: vec3.Vec3{X: 1}}
	hit, tEnter := b.Intersect(r, r.InvDir())
	if !hit || math.Abs(tEnter-1) > 1e-9 {
		t.Errorf("hit=%v tEnter=%v, want hit at t=1", hit, tEnter)
	}

	miss := vec3.Ray{Origin: vec3.Vec3{Y: 5}, Dir: vec3.Vec3{X: 1}}
	if hit, _ := b.Intersect(miss, miss.InvDir()); hit {
		t.Error("expected miss for an offset parallel ray")
	}

	behind := vec3.Ray{Origin: vec3.Vec3{X: 10}, Dir: vec3.Vec3{X: 1}}
	if hit, _ := b.Intersect(behind, behind.InvDir()); hit {
		t.Error("expected miss for a box entirely behind the origin")
	}

	inside := vec3.Ray{Origin: vec3.Vec3{X: 2}, Dir: vec3.Vec3{X: 1}}
	if hit, _ := b.Intersect(inside, inside.InvDir()); !hit {
		t.Error("expected hit for an origin inside the box")
	}
}
