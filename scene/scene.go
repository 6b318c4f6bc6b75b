// Package scene holds the scene description the renderer distributes: the
// camera, plus textures, shaders, materials, and meshes, each declared
// under a string id so dependencies can be cited by name. A scene is
// normally produced by an embedded scripting layer; this package carries
// the declarative YAML shape that stands in for it, decoded the same way
// package config decodes its document.
package scene

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scene is the raw, string-keyed document a scene script (or its YAML
// stand-in) produces. Resolve turns it into integer-keyed runtime entities.
type Scene struct {
	Camera CameraDecl `yaml:"camera"`

	Shaders   []ShaderDecl   `yaml:"shaders"`
	Textures  []TextureDecl  `yaml:"textures"`
	Materials []MaterialDecl `yaml:"materials"`
	Meshes    []MeshDecl     `yaml:"meshes"`
}

// CameraDecl is the scene's single camera.
type CameraDecl struct {
	Eye         []float64 `yaml:"eye"`
	Look        []float64 `yaml:"look"`
	Up          []float64 `yaml:"up"`
	RotationDeg float64   `yaml:"rotation_deg"`
}

// ShaderDecl names a shader by its string id and carries its source
// inline.
type ShaderDecl struct {
	ID     string `yaml:"id"`
	Source string `yaml:"source"`
}

// TextureDecl is either procedural (Source set) or image-backed
// (Width/Height/Data set).
type TextureDecl struct {
	ID     string    `yaml:"id"`
	Source string    `yaml:"source,omitempty"`
	Width  int       `yaml:"width"`
	Height int       `yaml:"height"`
	Data   []float64 `yaml:"data,omitempty"`
}

// MaterialDecl binds a shader id plus named sampler bindings.
type MaterialDecl struct {
	ID       string            `yaml:"id"`
	ShaderID string            `yaml:"shader"`
	Samplers map[string]string `yaml:"samplers"`
	Emissive bool              `yaml:"emissive"`
}

// TriangleDecl indexes three vertices of its owning mesh by position.
type TriangleDecl struct {
	A int `yaml:"a"`
	B int `yaml:"b"`
	C int `yaml:"c"`
}

// VertexDecl is one mesh vertex in object space.
type VertexDecl struct {
	Position []float64 `yaml:"position"`
	Normal   []float64 `yaml:"normal"`
	TexCoord []float64 `yaml:"texcoord"`
}

// MeshDecl is one mesh: its material binding, an object-to-world
// transform (as a flattened row-major 4x4), and its vertex/triangle soup.
type MeshDecl struct {
	ID         string         `yaml:"id"`
	MaterialID string         `yaml:"material"`
	Transform  []float64      `yaml:"transform,omitempty"`
	Vertices   []VertexDecl   `yaml:"vertices"`
	Triangles  []TriangleDecl `yaml:"triangles"`
}

// Source produces a raw Scene document.
type Source interface {
	Load() (*Scene, error)
}

// YAMLSource loads a Scene from a YAML file.
type YAMLSource struct {
	Path string
}

func (s YAMLSource) Load() (*Scene, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("scene: read %s: %w", s.Path, err)
	}
	sc := &Scene{}
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("scene: parse %s: %w", s.Path, err)
	}
	return sc, nil
}
