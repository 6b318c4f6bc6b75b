package scene

import "testing"

func TestResolveBasicScene(t *testing.T) {
	s := &Scene{
		Camera: CameraDecl{Eye: []float64{0, 0, 5}, Look: []float64{0, 0, 0}, Up: []float64{0, 1, 0}},
		Shaders: []ShaderDecl{
			{ID: "diffuse_white", Source: "albedo: [1, 1, 1]"},
		},
		Materials: []MaterialDecl{
			{ID: "wall", ShaderID: "diffuse_white"},
		},
		Meshes: []MeshDecl{
			{
				ID:         "tri",
				MaterialID: "wall",
				Vertices: []VertexDecl{
					{Position: []float64{0, 0, 0}, Normal: []float64{0, 0, 1}},
					{Position: []float64{1, 0, 0}, Normal: []float64{0, 0, 1}},
					{Position: []float64{0, 1, 0}, Normal: []float64{0, 0, 1}},
				},
				Triangles: []TriangleDecl{{A: 0, B: 1, C: 2}},
			},
		},
	}

	resolved, err := Resolve(s)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(resolved.Meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(resolved.Meshes))
	}
	if len(resolved.Shaders) != 1 || len(resolved.Materials) != 1 {
		t.Fatalf("expected 1 shader and 1 material")
	}
}

func TestResolveDanglingMaterialReference(t *testing.T) {
	s := &Scene{
		Meshes: []MeshDecl{{ID: "tri", MaterialID: "missing"}},
	}
	if _, err := Resolve(s); err == nil {
		t.Error("expected error for dangling material reference")
	}
}

func TestResolveDanglingShaderReference(t *testing.T) {
	s := &Scene{
		Materials: []MaterialDecl{{ID: "wall", ShaderID: "missing"}},
	}
	if _, err := Resolve(s); err == nil {
		t.Error("expected error for dangling shader reference")
	}
}
