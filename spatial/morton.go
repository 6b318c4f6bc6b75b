// Package spatial implements the Morton (Z-order) space-filling-curve
// index that assigns mesh ownership to workers during scene
// distribution.
package spatial

import "github.com/flexrender/flexrender/vec3"

// bitsPerAxis is the Morton code resolution per axis; three axes
// interleave into a 63-bit code.
const bitsPerAxis = 21

// Code computes the 63-bit Morton code of point p within the scene bounds
// [min, max]. Points outside the bounds are clamped to [0,1] before
// discretization so a centroid sitting exactly on a scene boundary still
// yields a valid code.
func Code(min, max, p vec3.Vec3) uint64 {
	extent := vec3.Sub(max, min)
	s := vec3.Vec3{
		X: safeDiv(p.X-min.X, extent.X),
		Y: safeDiv(p.Y-min.Y, extent.Y),
		Z: safeDiv(p.Z-min.Z, extent.Z),
	}

	x := discretize(s.X)
	y := discretize(s.Y)
	z := discretize(s.Z)

	var code uint64
	for i := 0; i < bitsPerAxis; i++ {
		shift := uint(bitsPerAxis - 1 - i)
		bitX := uint64(x>>shift) & 1
		bitY := uint64(y>>shift) & 1
		bitZ := uint64(z>>shift) & 1
		// x highest, z lowest.
		code = (code << 3) | (bitX << 2) | (bitY << 1) | bitZ
	}
	return code
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	v := num / den
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func discretize(s float64) uint32 {
	const maxVal = (1 << bitsPerAxis) - 1
	v := uint32(s * float64(maxVal))
	if v > maxVal {
		v = maxVal
	}
	return v
}

// MaxCode is the exclusive upper bound of the Morton code range, 2^63.
const MaxCode uint64 = 1 << 63

// WorkerOf returns the 1-based worker id owning Morton code c, for a
// cluster of workerCount workers. The code range [0, MaxCode) is split into
// workerCount equal chunks, each of size ceil(MaxCode / workerCount).
// Worker ids are 1-based; 0 is reserved as the miss sentinel HitRecord
// uses.
func WorkerOf(c uint64, workerCount int) int {
	if workerCount <= 0 {
		return 0
	}
	bucket := (MaxCode + uint64(workerCount) - 1) / uint64(workerCount)
	w := int(c/bucket) + 1
	if w > workerCount {
		w = workerCount
	}
	return w
}
