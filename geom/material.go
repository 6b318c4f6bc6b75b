package geom

// Material binds a shader to a set of named texture samplers and flags
// whether the material emits light.
type Material struct {
	ID       MaterialID
	ShaderID ShaderID
	Samplers map[string]TextureID
	Emissive bool
}

// TextureKind distinguishes procedural (scripted) textures from flat
// image buffers.
type TextureKind uint8

const (
	TextureProcedural TextureKind = iota
	TextureImage
)

// Texture is a tagged union: procedural source code, or a flat image buffer.
type Texture struct {
	ID   TextureID
	Kind TextureKind

	// Procedural
	Source string

	// Image
	Width, Height int
	Data          []float32 // row-major, 4 floats (RGBA) per texel
}

// Shader holds the source for a scripted shading program. The runtime
// behavior (direct/indirect/emissive) is defined by the shader.Program
// interface; this type is only the scene-description record shipped over
// the wire during SYNC_SHADER.
type Shader struct {
	ID     ShaderID
	Source string
}
