// Package shader defines the abstract shading contract between scene
// materials and the ray pipeline. The core sees only a Program's
// direct/indirect/emissive entry points and a Texture's sample, plus a
// side-effect channel (WorkBuilder) for appending buffer ops and spawning
// rays; an embedded-interpreter backend and the declarative DeclProgram
// backend are interchangeable behind it.
package shader

import "github.com/flexrender/flexrender/vec3"

// Program is the shader-to-pipeline contract. Direct is invoked for LIGHT
// rays reaching their target (direct illumination); Indirect is invoked at
// an INTERSECT hit to spawn bounce rays; Emissive returns the radiance of
// an emissive surface sampled for an ILLUMINATE ray.
type Program interface {
	// Direct computes direct lighting at a shading point, given the view
	// direction, surface normal, texture coordinate, the direction to the
	// sampled light point, and the light's emitted radiance, appending
	// buffer ops to w.
	Direct(w *WorkBuilder, view, normal vec3.Vec3, texCoord vec3.Vec2, lightDir, illumination vec3.Vec3)

	// Indirect computes indirect/bounce contributions at a shading point P
	// (origin), appending trace() calls (new INTERSECT rays) to w.
	Indirect(w *WorkBuilder, origin, view, normal vec3.Vec3, texCoord vec3.Vec2)

	// Emissive returns the radiance emitted by this surface at texCoord.
	Emissive(texCoord vec3.Vec2) vec3.Vec3

	// HasIndirect and HasEmissive report whether the program actually
	// defines the corresponding entry point. Each flag reflects only its
	// own function's presence, never another's.
	HasIndirect() bool
	HasEmissive() bool
}

// Texture samples a bound texture, procedural or image-backed.
type Texture interface {
	// Sample returns up to 4 components; callers read only as many as they need.
	Sample(texCoord vec3.Vec2) [4]float64
}
