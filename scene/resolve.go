package scene

import (
	"fmt"

	"github.com/flexrender/flexrender/camera"
	"github.com/flexrender/flexrender/geom"
	"github.com/flexrender/flexrender/vec3"
)

// Resolved is a Scene with every string id replaced by the dense integer
// ids the rest of the pipeline uses. Scene documents cite dependencies by
// string name; Resolve looks those names up once, up front, in the
// renderer.
type Resolved struct {
	Camera camera.Camera

	Shaders   map[geom.ShaderID]geom.Shader
	Textures  map[geom.TextureID]geom.Texture
	Materials map[geom.MaterialID]geom.Material
	Meshes    []*geom.Mesh
}

// Resolve assigns dense ids and cross-links every declaration, returning
// an error that names the first dangling reference it finds.
func Resolve(s *Scene) (*Resolved, error) {
	r := &Resolved{
		Shaders:   make(map[geom.ShaderID]geom.Shader),
		Textures:  make(map[geom.TextureID]geom.Texture),
		Materials: make(map[geom.MaterialID]geom.Material),
	}

	shaderIDs := map[string]geom.ShaderID{}
	for i, sd := range s.Shaders {
		id := geom.ShaderID(i + 1)
		shaderIDs[sd.ID] = id
		r.Shaders[id] = geom.Shader{ID: id, Source: sd.Source}
	}

	textureIDs := map[string]geom.TextureID{}
	for i, td := range s.Textures {
		id := geom.TextureID(i + 1)
		textureIDs[td.ID] = id
		tex := geom.Texture{ID: id}
		if td.Source != "" {
			tex.Kind = geom.TextureProcedural
			tex.Source = td.Source
		} else {
			tex.Kind = geom.TextureImage
			tex.Width, tex.Height = td.Width, td.Height
			tex.Data = make([]float32, len(td.Data))
			for j, v := range td.Data {
				tex.Data[j] = float32(v)
			}
		}
		r.Textures[id] = tex
	}

	materialIDs := map[string]geom.MaterialID{}
	for i, md := range s.Materials {
		id := geom.MaterialID(i + 1)
		materialIDs[md.ID] = id

		shaderID, ok := shaderIDs[md.ShaderID]
		if !ok {
			return nil, fmt.Errorf("scene: material %q references unknown shader %q", md.ID, md.ShaderID)
		}

		samplers := make(map[string]geom.TextureID, len(md.Samplers))
		for name, texName := range md.Samplers {
			texID, ok := textureIDs[texName]
			if !ok {
				return nil, fmt.Errorf("scene: material %q sampler %q references unknown texture %q", md.ID, name, texName)
			}
			samplers[name] = texID
		}

		r.Materials[id] = geom.Material{
			ID:       id,
			ShaderID: shaderID,
			Samplers: samplers,
			Emissive: md.Emissive,
		}
	}

	for i, meshDecl := range s.Meshes {
		materialID, ok := materialIDs[meshDecl.MaterialID]
		if !ok {
			return nil, fmt.Errorf("scene: mesh %q references unknown material %q", meshDecl.ID, meshDecl.MaterialID)
		}

		mesh := &geom.Mesh{
			ID:         geom.MeshID(i + 1),
			MaterialID: materialID,
			Transform:  transformOf(meshDecl.Transform),
		}

		mesh.Vertices = make([]geom.Vertex, len(meshDecl.Vertices))
		for j, vd := range meshDecl.Vertices {
			mesh.Vertices[j] = geom.Vertex{
				Position: vec3FromSlice(vd.Position),
				Normal:   vec3FromSlice(vd.Normal),
				TexCoord: vec2FromSlice(vd.TexCoord),
			}
		}

		mesh.Triangles = make([]geom.Triangle, len(meshDecl.Triangles))
		for j, td := range meshDecl.Triangles {
			if err := checkIndex(meshDecl.ID, td.A, len(mesh.Vertices)); err != nil {
				return nil, err
			}
			if err := checkIndex(meshDecl.ID, td.B, len(mesh.Vertices)); err != nil {
				return nil, err
			}
			if err := checkIndex(meshDecl.ID, td.C, len(mesh.Vertices)); err != nil {
				return nil, err
			}
			mesh.Triangles[j] = geom.Triangle{A: uint32(td.A), B: uint32(td.B), C: uint32(td.C)}
		}

		mesh.Finalize()
		r.Meshes = append(r.Meshes, mesh)
	}

	up := vec3FromSlice(s.Camera.Up)
	if up == (vec3.Vec3{}) {
		up = vec3.Vec3{Y: 1}
	}
	r.Camera = camera.Camera{
		Eye:         vec3FromSlice(s.Camera.Eye),
		Look:        vec3FromSlice(s.Camera.Look),
		WorldUp:     up,
		RotationDeg: s.Camera.RotationDeg,
	}

	return r, nil
}

func checkIndex(meshID string, idx, n int) error {
	if idx < 0 || idx >= n {
		return fmt.Errorf("scene: mesh %q triangle references out-of-range vertex %d (have %d)", meshID, idx, n)
	}
	return nil
}

func transformOf(flat []float64) vec3.Mat4 {
	if len(flat) != 16 {
		return vec3.Identity()
	}
	var m vec3.Mat4
	copy(m[:], flat)
	return m
}

func vec3FromSlice(v []float64) vec3.Vec3 {
	var r vec3.Vec3
	if len(v) > 0 {
		r.X = v[0]
	}
	if len(v) > 1 {
		r.Y = v[1]
	}
	if len(v) > 2 {
		r.Z = v[2]
	}
	return r
}

func vec2FromSlice(v []float64) vec3.Vec2 {
	var r vec3.Vec2
	if len(v) > 0 {
		r.X = v[0]
	}
	if len(v) > 1 {
		r.Y = v[1]
	}
	return r
}
