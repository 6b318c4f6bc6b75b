package shader

import (
	"testing"

	"github.com/flexrender/flexrender/ray"
	"github.com/flexrender/flexrender/vec3"
)

func TestDecodeProgramFlags(t *testing.T) {
	src := []byte(`
albedo: [0.8, 0.2, 0.2]
indirect:
  samples: 4
  reflectance: 0.5
`)
	p, err := DecodeProgram(src)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !p.HasIndirect() {
		t.Error("expected HasIndirect true")
	}
	if p.HasEmissive() {
		t.Error("expected HasEmissive false when emission unset")
	}
}

func TestDecodeProgramEmissive(t *testing.T) {
	p, err := DecodeProgram([]byte("emission: [10.0, 10.0, 10.0]\n"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !p.HasEmissive() {
		t.Error("expected HasEmissive true")
	}
	if p.HasIndirect() {
		t.Error("expected HasIndirect false when no indirect table present")
	}
	if e := p.Emissive(vec3.Vec2{}); e.X != 10 || e.Y != 10 || e.Z != 10 {
		t.Errorf("emissive = %v", e)
	}
}

func TestDecodeProgramRejectsMalformedSource(t *testing.T) {
	if _, err := DecodeProgram([]byte("albedo: [1, 2\n  broken")); err == nil {
		t.Error("expected parse error for malformed source")
	}
}

func TestDirectAccumulatesScaledByTransmittance(t *testing.T) {
	p := &DeclProgram{Albedo: []float64{1, 1, 1}}
	res := &ray.WorkResults{}
	w := &WorkBuilder{
		Results:       res,
		Parent:        &ray.FatRay{},
		Pixel:         ray.Pixel{X: 3, Y: 4},
		Transmittance: 0.5,
	}

	p.Direct(w, vec3.Vec3{}, vec3.Vec3{Y: 1}, vec3.Vec2{}, vec3.Vec3{Y: 1}, vec3.Vec3{X: 1, Y: 1, Z: 1})

	if len(res.Ops) != 3 {
		t.Fatalf("expected 3 buffer ops (r,g,b), got %d", len(res.Ops))
	}
	for i, name := range []string{"r", "g", "b"} {
		op := res.Ops[i]
		if op.Kind != ray.OpAccumulate || op.Name != name {
			t.Errorf("op %d = %+v, want accumulate on %q", i, op, name)
		}
		if op.Value <= 0 || op.Value > 0.5 {
			t.Errorf("op %d value %v outside transmittance-scaled range", i, op.Value)
		}
	}
}

func TestDirectSkipsBackfacingLight(t *testing.T) {
	p := &DeclProgram{Albedo: []float64{1, 1, 1}}
	res := &ray.WorkResults{}
	w := &WorkBuilder{Results: res, Parent: &ray.FatRay{}, Transmittance: 1}

	p.Direct(w, vec3.Vec3{}, vec3.Vec3{Y: 1}, vec3.Vec2{}, vec3.Vec3{Y: -1}, vec3.Vec3{X: 1, Y: 1, Z: 1})

	if len(res.Ops) != 0 {
		t.Errorf("expected no ops for a light behind the surface, got %d", len(res.Ops))
	}
}

func TestIndirectSpawnsBounces(t *testing.T) {
	p, err := DecodeProgram([]byte("albedo: [1, 1, 1]\nindirect:\n  samples: 3\n  reflectance: 0.6\n"))
	if err != nil {
		t.Fatal(err)
	}
	res := &ray.WorkResults{}
	w := &WorkBuilder{
		Results: res, Parent: &ray.FatRay{Bounces: 0}, Self: 7,
		BounceLimit: 4, Threshold: 1e-6, Transmittance: 1,
	}

	p.Indirect(w, vec3.Vec3{}, vec3.Vec3{Y: 1}, vec3.Vec3{Y: 1}, vec3.Vec2{})

	if res.Produced[ray.KindIntersect] != 3 {
		t.Fatalf("bounces produced = %d, want 3", res.Produced[ray.KindIntersect])
	}
	for _, fw := range res.Forwards {
		if fw.Dest != 7 {
			t.Errorf("bounce dest = %d, want the spawning worker", fw.Dest)
		}
		if fw.Ray.Bounces != 1 {
			t.Errorf("bounce count = %d, want 1", fw.Ray.Bounces)
		}
		// Cosine-weighted hemisphere around +Y stays above the surface.
		if fw.Ray.Slim.Dir.Y < 0 {
			t.Errorf("bounce direction %v below the surface", fw.Ray.Slim.Dir)
		}
	}
}

func TestTraceDropsBelowThreshold(t *testing.T) {
	res := &ray.WorkResults{}
	w := &WorkBuilder{
		Results: res, Parent: &ray.FatRay{},
		BounceLimit: 8, Threshold: 0.01, Transmittance: 1,
	}

	w.Trace(vec3.Vec3{}, vec3.Vec3{Y: 1}, 0.001)

	if len(res.Forwards) != 0 {
		t.Errorf("expected trace below threshold to be dropped, got %d forwards", len(res.Forwards))
	}
	// A dropped bounce counts as generated then immediately killed, so
	// cluster-wide produced and killed totals stay balanced.
	if res.Produced[ray.KindIntersect] != 1 || res.Killed[ray.KindIntersect] != 1 {
		t.Errorf("produced=%d killed=%d, want 1 and 1", res.Produced[ray.KindIntersect], res.Killed[ray.KindIntersect])
	}
}

func TestTraceDropsOverBounceLimit(t *testing.T) {
	res := &ray.WorkResults{}
	w := &WorkBuilder{
		Results: res, Parent: &ray.FatRay{Bounces: 8},
		BounceLimit: 8, Transmittance: 1,
	}

	w.Trace(vec3.Vec3{}, vec3.Vec3{Y: 1}, 1)

	if len(res.Forwards) != 0 {
		t.Errorf("expected trace over bounce limit to be dropped, got %d forwards", len(res.Forwards))
	}
	if res.Produced[ray.KindIntersect] != 1 || res.Killed[ray.KindIntersect] != 1 {
		t.Errorf("produced=%d killed=%d, want 1 and 1", res.Produced[ray.KindIntersect], res.Killed[ray.KindIntersect])
	}
}

func TestImageTextureSampling(t *testing.T) {
	tex := &ImageTexture{
		Width: 2, Height: 2,
		Data: []float32{
			1, 0, 0, 1 /**/, 0, 1, 0, 1,
			0, 0, 1, 1 /**/, 1, 1, 1, 1,
		},
	}

	if v := tex.Sample(vec3.Vec2{X: 0.1, Y: 0.1}); v[0] != 1 || v[1] != 0 {
		t.Errorf("top-left sample = %v", v)
	}
	if v := tex.Sample(vec3.Vec2{X: 0.9, Y: 0.1}); v[1] != 1 {
		t.Errorf("top-right sample = %v", v)
	}
	// Coordinates wrap.
	if v := tex.Sample(vec3.Vec2{X: 1.1, Y: 2.1}); v[0] != 1 || v[1] != 0 {
		t.Errorf("wrapped sample = %v", v)
	}
}

func TestProceduralTextureConstantColor(t *testing.T) {
	tex, err := DecodeProceduralTexture([]byte("color: [0.5, 0.25, 0.125, 1.0]\n"))
	if err != nil {
		t.Fatal(err)
	}
	v := tex.Sample(vec3.Vec2{X: 0.3, Y: 0.7})
	if v != [4]float64{0.5, 0.25, 0.125, 1.0} {
		t.Errorf("sample = %v", v)
	}
}
