package wire

import (
	"testing"

	"github.com/flexrender/flexrender/ray"
	"github.com/flexrender/flexrender/vec3"
)

func TestEncodeDecodeRayRoundTrip(t *testing.T) {
	original := ray.NewPrimary(ray.Pixel{X: 12, Y: 34}, vec3.Vec3{X: 1, Y: 2, Z: 3}, vec3.Vec3{X: 0, Y: 0, Z: -1}, 0.5)
	original.Bounces = 2
	original.CurrentWorker = 7
	original.WorkersTouched = 3
	original.Best.Worker = 2
	original.Best.T = 12.5

	encoded := EncodeRay(original)
	if len(encoded) != RaySize {
		t.Fatalf("encoded length %d, want %d", len(encoded), RaySize)
	}

	decoded, err := DecodeRay(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.Kind != original.Kind || decoded.Pixel != original.Pixel ||
		decoded.Bounces != original.Bounces || decoded.CurrentWorker != original.CurrentWorker ||
		decoded.WorkersTouched != original.WorkersTouched {
		t.Errorf("round-trip mismatch: got %+v, want %+v", decoded, original)
	}
	if decoded.Slim.Origin != original.Slim.Origin || decoded.Slim.Dir != original.Slim.Dir {
		t.Errorf("slim ray mismatch: got %+v, want %+v", decoded.Slim, original.Slim)
	}
	if decoded.Best.Worker != original.Best.Worker || decoded.Best.T != original.Best.T {
		t.Errorf("best hit mismatch: got %+v, want %+v", decoded.Best, original.Best)
	}
}

func TestDecodeRayRejectsWrongSize(t *testing.T) {
	if _, err := DecodeRay(make([]byte, RaySize-1)); err == nil {
		t.Error("expected error for truncated body")
	}
}
