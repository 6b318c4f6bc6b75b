package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/flexrender/flexrender/bvh"
	"github.com/flexrender/flexrender/geom"
	"github.com/flexrender/flexrender/ray"
	"github.com/flexrender/flexrender/vec3"
)

// RaySize is the fixed byte length of an encoded FatRay. RAY bodies
// bypass Codec entirely: the layout below is fixed, little-endian, and
// identical on every cluster member, so a forwarded ray costs no
// reflective encode/decode.
const RaySize = 1 + // Kind
	4 + 4 + // Pixel.X, Pixel.Y
	4 + // Bounces
	8*3 + 8*3 + // Slim.Origin, Slim.Dir
	8 + // Transmittance
	8*3 + 8*3 + // Emission, Target
	4 + 4 + 8 + 8*3 + 8*2 + // Best: Worker, Mesh, T, Normal, TexCoord
	4 + 1 + 1 + // Traversal: Node, Automaton, LastHit
	4 + 4 // CurrentWorker, WorkersTouched

// EncodeRay serializes r into its stable wire layout.
func EncodeRay(r *ray.FatRay) []byte {
	buf := make([]byte, RaySize)
	o := 0

	buf[o] = byte(r.Kind)
	o++

	putI32(buf, &o, int32(r.Pixel.X))
	putI32(buf, &o, int32(r.Pixel.Y))
	putI32(buf, &o, int32(r.Bounces))

	putVec3(buf, &o, r.Slim.Origin)
	putVec3(buf, &o, r.Slim.Dir)

	putF64(buf, &o, r.Transmittance)

	putVec3(buf, &o, r.Emission)
	putVec3(buf, &o, r.Target)

	putU32(buf, &o, r.Best.Worker)
	putI32(buf, &o, int32(r.Best.Mesh))
	putF64(buf, &o, r.Best.T)
	putVec3(buf, &o, r.Best.Normal)
	putVec2(buf, &o, r.Best.TexCoord)

	putI32(buf, &o, int32(r.Traversal.Node))
	buf[o] = byte(r.Traversal.Automaton)
	o++
	if r.Traversal.LastHit {
		buf[o] = 1
	}
	o++

	putU32(buf, &o, r.CurrentWorker)
	putU32(buf, &o, r.WorkersTouched)

	return buf
}

// DecodeRay parses a FatRay from its stable wire layout.
func DecodeRay(data []byte) (*ray.FatRay, error) {
	if len(data) != RaySize {
		return nil, fmt.Errorf("wire: RAY body is %d bytes, want %d", len(data), RaySize)
	}

	o := 0
	r := &ray.FatRay{}

	r.Kind = ray.Kind(data[o])
	o++

	r.Pixel.X = int(getI32(data, &o))
	r.Pixel.Y = int(getI32(data, &o))
	r.Bounces = int(getI32(data, &o))

	r.Slim.Origin = getVec3(data, &o)
	r.Slim.Dir = getVec3(data, &o)

	r.Transmittance = getF64(data, &o)

	r.Emission = getVec3(data, &o)
	r.Target = getVec3(data, &o)

	r.Best.Worker = getU32(data, &o)
	r.Best.Mesh = geom.MeshID(getI32(data, &o))
	r.Best.T = getF64(data, &o)
	r.Best.Normal = getVec3(data, &o)
	r.Best.TexCoord = getVec2(data, &o)

	r.Traversal.Node = bvh.NodeIndex(getI32(data, &o))
	r.Traversal.Automaton = bvh.AutomatonState(data[o])
	o++
	r.Traversal.LastHit = data[o] != 0
	o++

	r.CurrentWorker = getU32(data, &o)
	r.WorkersTouched = getU32(data, &o)

	return r, nil
}

func putU32(buf []byte, o *int, v uint32) {
	binary.LittleEndian.PutUint32(buf[*o:], v)
	*o += 4
}
func putI32(buf []byte, o *int, v int32) { putU32(buf, o, uint32(v)) }

func putF64(buf []byte, o *int, v float64) {
	binary.LittleEndian.PutUint64(buf[*o:], math.Float64bits(v))
	*o += 8
}

func putVec3(buf []byte, o *int, v vec3.Vec3) {
	putF64(buf, o, v.X)
	putF64(buf, o, v.Y)
	putF64(buf, o, v.Z)
}

func putVec2(buf []byte, o *int, v vec3.Vec2) {
	putF64(buf, o, v.X)
	putF64(buf, o, v.Y)
}

func getU32(buf []byte, o *int) uint32 {
	v := binary.LittleEndian.Uint32(buf[*o:])
	*o += 4
	return v
}
func getI32(buf []byte, o *int) int32 { return int32(getU32(buf, o)) }

func getF64(buf []byte, o *int) float64 {
	v := math.Float64frombits(binary.LittleEndian.Uint64(buf[*o:]))
	*o += 8
	return v
}

func getVec3(buf []byte, o *int) vec3.Vec3 {
	return vec3.Vec3{X: getF64(buf, o), Y: getF64(buf, o), Z: getF64(buf, o)}
}

func getVec2(buf []byte, o *int) vec3.Vec2 {
	return vec3.Vec2{X: getF64(buf, o), Y: getF64(buf, o)}
}
