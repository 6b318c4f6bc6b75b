package shader

import (
	"gopkg.in/yaml.v3"

	"github.com/flexrender/flexrender/geom"
	"github.com/flexrender/flexrender/vec3"
)

// DecodeProceduralTexture parses a procedural texture's source text as a
// YAML document.
func DecodeProceduralTexture(source []byte) (*ProceduralTexture, error) {
	t := &ProceduralTexture{}
	if err := yaml.Unmarshal(source, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ImageTexture samples a flat, row-major RGBA image buffer with
// nearest-neighbor lookup and wrapped texture coordinates.
type ImageTexture struct {
	Width, Height int
	Data          []float32 // row-major, 4 floats per texel
}

// NewImageTexture adapts a geom.Texture of kind Image.
func NewImageTexture(t geom.Texture) *ImageTexture {
	return &ImageTexture{Width: t.Width, Height: t.Height, Data: t.Data}
}

func (t *ImageTexture) Sample(texCoord vec3.Vec2) [4]float64 {
	if t.Width <= 0 || t.Height <= 0 {
		return [4]float64{}
	}
	x := wrapIndex(texCoord.X, t.Width)
	y := wrapIndex(texCoord.Y, t.Height)
	base := (y*t.Width + x) * 4
	if base+3 >= len(t.Data) {
		return [4]float64{}
	}
	return [4]float64{
		float64(t.Data[base]),
		float64(t.Data[base+1]),
		float64(t.Data[base+2]),
		float64(t.Data[base+3]),
	}
}

func wrapIndex(u float64, n int) int {
	u -= float64(int(u))
	if u < 0 {
		u += 1
	}
	i := int(u * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// ProceduralTexture is the declarative stand-in for a scripted procedural
// texture: a constant color, decoded the same way DeclProgram decodes a
// shader.
type ProceduralTexture struct {
	Color []float64 `yaml:"color"`
}

func (t *ProceduralTexture) Sample(texCoord vec3.Vec2) [4]float64 {
	var out [4]float64
	for i := 0; i < len(t.Color) && i < 4; i++ {
		out[i] = t.Color[i]
	}
	return out
}
