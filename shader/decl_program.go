package shader

import (
	"math"

	"gopkg.in/yaml.v3"

	"github.com/flexrender/flexrender/vec3"
)

// DeclProgram is the default declarative Program implementation: the
// embedded scripting backend is a pluggable collaborator, so FlexRender
// ships a YAML-table shader in its place. A program declares an albedo
// (optionally modulated by a bound texture), an emission color, and an
// optional indirect bounce term.
type DeclProgram struct {
	// Albedo and Emission are 3-element [r,g,b] arrays.
	Albedo        []float64 `yaml:"albedo"`
	AlbedoSampler string    `yaml:"albedo_texture"`

	Emission []float64 `yaml:"emission"`

	IndirectTerm *IndirectSpec `yaml:"indirect"`

	hasEmissive bool
	hasIndirect bool
}

func rgb(v []float64) vec3.Vec3 {
	var c vec3.Vec3
	if len(v) > 0 {
		c.X = v[0]
	}
	if len(v) > 1 {
		c.Y = v[1]
	}
	if len(v) > 2 {
		c.Z = v[2]
	}
	return c
}

// IndirectSpec declares a cosine-weighted hemisphere bounce: Samples child
// rays per Indirect call, each carrying Reflectance/Samples of the parent's
// transmittance.
type IndirectSpec struct {
	Samples     int     `yaml:"samples"`
	Reflectance float64 `yaml:"reflectance"`
}

// DecodeProgram parses a shader's source text as a YAML document into a
// DeclProgram. The emissive and indirect capability flags each reflect
// only their own declaration's presence.
func DecodeProgram(source []byte) (*DeclProgram, error) {
	p := &DeclProgram{}
	if err := yaml.Unmarshal(source, p); err != nil {
		return nil, err
	}
	e := rgb(p.Emission)
	p.hasEmissive = e.X != 0 || e.Y != 0 || e.Z != 0
	p.hasIndirect = p.IndirectTerm != nil && p.IndirectTerm.Samples > 0
	return p, nil
}

func (p *DeclProgram) HasIndirect() bool { return p.hasIndirect }
func (p *DeclProgram) HasEmissive() bool { return p.hasEmissive }

// Direct applies Lambertian shading: albedo (optionally texture-modulated)
// times the cosine term times the light's incoming illumination,
// accumulated into the r/g/b buffers.
func (p *DeclProgram) Direct(w *WorkBuilder, view, normal vec3.Vec3, texCoord vec3.Vec2, lightDir, illumination vec3.Vec3) {
	cos := vec3.Dot(normal, lightDir)
	if cos <= 0 {
		return
	}

	albedo := rgb(p.Albedo)
	if p.AlbedoSampler != "" {
		t := w.Texture3(p.AlbedoSampler, texCoord)
		albedo = vec3.Vec3{X: albedo.X * t.X, Y: albedo.Y * t.Y, Z: albedo.Z * t.Z}
	}

	scale := cos / math.Pi
	contribution := vec3.Vec3{
		X: albedo.X * illumination.X * scale,
		Y: albedo.Y * illumination.Y * scale,
		Z: albedo.Z * illumination.Z * scale,
	}
	w.Accumulate3("r", "g", "b", contribution)
}

// Indirect spawns IndirectTerm.Samples cosine-weighted bounce rays from
// origin, each scaled by IndirectTerm.Reflectance/Samples, when the program
// declares an indirect term.
func (p *DeclProgram) Indirect(w *WorkBuilder, origin, view, normal vec3.Vec3, texCoord vec3.Vec2) {
	if !p.hasIndirect {
		return
	}

	n := p.IndirectTerm.Samples
	share := p.IndirectTerm.Reflectance / float64(n)
	tx, ty := orthonormalBasis(normal)

	src := newCosineSampler(uint64(texCoord.X*1e6) ^ uint64(texCoord.Y*1e6) ^ 0x9E3779B97F4A7C15)
	for i := 0; i < n; i++ {
		dir := src.sample(normal, tx, ty)
		w.Trace(origin, dir, w.Transmittance*share)
	}
}

// Emissive returns the constant emission color regardless of texCoord;
// image-backed emission would sample a texture here instead.
func (p *DeclProgram) Emissive(texCoord vec3.Vec2) vec3.Vec3 {
	return rgb(p.Emission)
}

// orthonormalBasis builds a tangent frame (tx, ty) around n so hemisphere
// samples generated in local space can be rotated into world space.
func orthonormalBasis(n vec3.Vec3) (tx, ty vec3.Vec3) {
	up := vec3.Vec3{X: 0, Y: 1, Z: 0}
	if math.Abs(n.Y) > 0.99 {
		up = vec3.Vec3{X: 1, Y: 0, Z: 0}
	}
	tx = vec3.Normalize(vec3.Cross(up, n))
	ty = vec3.Cross(n, tx)
	return
}

// cosineSampler draws deterministic cosine-weighted hemisphere directions.
// Seeded from the shading point's texture coordinate rather than
// math/rand so repeated renders of a static scene stay reproducible.
type cosineSampler struct {
	state uint64
}

func newCosineSampler(seed uint64) *cosineSampler {
	if seed == 0 {
		seed = 1
	}
	return &cosineSampler{state: seed}
}

func (s *cosineSampler) next() float64 {
	s.state = s.state*6364136223846793005 + 1442695040888963407
	v := float64(s.state>>40) / float64(1<<24)
	return v - math.Floor(v)
}

func (s *cosineSampler) sample(n, tx, ty vec3.Vec3) vec3.Vec3 {
	u1, u2 := s.next(), s.next()
	r := math.Sqrt(u1)
	theta := 2 * math.Pi * u2
	lx := r * math.Cos(theta)
	ly := r * math.Sin(theta)
	lz := math.Sqrt(math.Max(0, 1-u1))

	world := vec3.Add(vec3.Add(vec3.Scale(tx, lx), vec3.Scale(ty, ly)), vec3.Scale(n, lz))
	return vec3.Normalize(world)
}
