package spatial

import (
	"testing"

	"github.com/flexrender/flexrender/vec3"
)

var (
	sceneMin = vec3.Vec3{X: -1, Y: -1, Z: -1}
	sceneMax = vec3.Vec3{X: 1, Y: 1, Z: 1}
)

func TestCodeCorners(t *testing.T) {
	if c := Code(sceneMin, sceneMax, sceneMin); c != 0 {
		t.Errorf("min corner code = %d, want 0", c)
	}
	if c := Code(sceneMin, sceneMax, sceneMax); c != MaxCode-1 {
		t.Errorf("max corner code = %d, want %d", c, MaxCode-1)
	}
}

func TestCodeClampsOutsideBounds(t *testing.T) {
	below := Code(sceneMin, sceneMax, vec3.Vec3{X: -50, Y: -50, Z: -50})
	above := Code(sceneMin, sceneMax, vec3.Vec3{X: 50, Y: 50, Z: 50})
	if below != 0 {
		t.Errorf("point below bounds coded %d, want 0", below)
	}
	if above != MaxCode-1 {
		t.Errorf("point above bounds coded %d, want %d", above, MaxCode-1)
	}
}

func TestCodeAxisOrder(t *testing.T) {
	// X is interleaved highest: a point at max X only must out-sort a
	// point at max Y only, which must out-sort max Z only.
	x := Code(sceneMin, sceneMax, vec3.Vec3{X: 1, Y: -1, Z: -1})
	y := Code(sceneMin, sceneMax, vec3.Vec3{X: -1, Y: 1, Z: -1})
	z := Code(sceneMin, sceneMax, vec3.Vec3{X: -1, Y: -1, Z: 1})
	if !(x > y && y > z) {
		t.Errorf("axis significance broken: x=%d y=%d z=%d", x, y, z)
	}
}

func TestCodeDegenerateExtent(t *testing.T) {
	// A flat scene (zero extent on an axis) must not divide by zero.
	flatMax := vec3.Vec3{X: 1, Y: -1, Z: 1}
	c := Code(sceneMin, flatMax, vec3.Vec3{X: 0, Y: -1, Z: 0})
	if c >= MaxCode {
		t.Errorf("degenerate-extent code %d out of range", c)
	}
}

func TestWorkerOfPartition(t *testing.T) {
	// Every code lands on exactly one worker, ids stay within [1, W], and
	// bucket boundaries are monotone.
	for _, workers := range []int{1, 2, 3, 7, 64} {
		last := 0
		for i := 0; i <= 1000; i++ {
			c := uint64(float64(MaxCode-1) * float64(i) / 1000)
			w := WorkerOf(c, workers)
			if w < 1 || w > workers {
				t.Fatalf("WorkerOf(%d, %d) = %d out of range", c, workers, w)
			}
			if w < last {
				t.Fatalf("WorkerOf not monotone: code %d got worker %d after %d", c, w, last)
			}
			last = w
		}
		if last != workers {
			t.Errorf("max code assigned to worker %d, want %d", last, workers)
		}
	}
}

func TestWorkerOfZeroWorkers(t *testing.T) {
	if w := WorkerOf(1234, 0); w != 0 {
		t.Errorf("WorkerOf with no workers = %d, want 0", w)
	}
}

func TestMeshAssignmentDisjoint(t *testing.T) {
	// A cloud of centroids: each must map to exactly one worker, and with
	// two workers splitting a symmetric scene on X, low-X points go to
	// worker 1 and high-X points to worker 2.
	for _, p := range []struct {
		point vec3.Vec3
		want  int
	}{
		{vec3.Vec3{X: -0.9, Y: 0, Z: 0}, 1},
		{vec3.Vec3{X: -0.1, Y: 0.5, Z: -0.5}, 1},
		{vec3.Vec3{X: 0.1, Y: -0.5, Z: 0.5}, 2},
		{vec3.Vec3{X: 0.9, Y: 0, Z: 0}, 2},
	} {
		c := Code(sceneMin, sceneMax, p.point)
		if got := WorkerOf(c, 2); got != p.want {
			t.Errorf("point %+v assigned to worker %d, want %d", p.point, got, p.want)
		}
	}
}
