// Package camera implements the pinhole camera and its primary-ray
// iterator, the sole source of INTERSECT rays fed into a worker's
// ray.Queue once the queue's other sub-queues drain.
package camera

import (
	"math"

	"github.com/flexrender/flexrender/ray"
	"github.com/flexrender/flexrender/vec3"
)

// Camera holds eye/look/up/rotation plus the lazily-derived (u,v,w) basis
// and the primary-ray iterator's cursor state.
type Camera struct {
	Eye, Look, WorldUp vec3.Vec3
	RotationDeg        float64 // gaze rotation, in degrees
	Aspect             float64

	Width, Height int
	Antialias     int // A, the per-axis stratified sub-sample grid factor

	basisValid bool
	u, v, w    vec3.Vec3

	// Iterator cursor. Once SetRange is called,
	// GeneratePrimary yields each (pixel, sub-sample) in
	// [offset,offset+chunk) x [0,height) x [0,A)^2 exactly once in
	// lexicographic order, then end-of-stream.
	offset, chunk int
	x, y          int
	si, sj        int
	started       bool
	done          bool

	rng *jitterSource
}

// SetEye updates the eye position and invalidates the cached basis.
func (c *Camera) SetEye(eye vec3.Vec3) { c.Eye = eye; c.basisValid = false }

// SetLook updates the look-at point and invalidates the cached basis.
func (c *Camera) SetLook(look vec3.Vec3) { c.Look = look; c.basisValid = false }

// SetRotation updates the gaze rotation (degrees) and invalidates the basis.
func (c *Camera) SetRotation(deg float64) { c.RotationDeg = deg; c.basisValid = false }

// basis lazily computes and caches (u, v, w): w points from the look
// point back at the viewer (right-handed), u is the horizontal axis, v
// the vertical axis, with the gaze rotation applied around w.
func (c *Camera) basis() (u, v, w vec3.Vec3) {
	if c.basisValid {
		return c.u, c.v, c.w
	}

	w = vec3.Normalize(vec3.Sub(c.Eye, c.Look))
	u = vec3.Normalize(vec3.Cross(c.WorldUp, w))
	v = vec3.Cross(w, u)

	if c.RotationDeg != 0 {
		// The rotation is defined around the gaze direction (eye toward
		// look), which is -w in this frame, so the angle flips sign here.
		m := vec3.Rotate(-c.RotationDeg, w)
		u = m.MulDir(u)
		v = m.MulDir(v)
	}

	c.u, c.v, c.w = u, v, w
	c.basisValid = true
	return u, v, w
}

// SetRange assigns this camera's x-pixel range [offset, offset+chunk) and
// resets the iterator cursor to its start. chunk == 0 means "from offset
// to the image width". Offsets outside the image produce an
// immediately-exhausted iterator (zero primary rays).
func (c *Camera) SetRange(offset, chunk int) {
	if chunk == 0 {
		chunk = c.Width - offset
	}
	c.offset = offset
	c.chunk = chunk
	c.x = offset
	c.y = 0
	c.si, c.sj = 0, 0
	c.started = false
	c.done = offset < 0 || offset >= c.Width || chunk <= 0

	aa := c.Antialias
	if aa < 1 {
		aa = 1
	}
	c.Antialias = aa
	c.rng = newJitterSource(1)
}

// totalSamples returns the number of primary rays this camera will produce
// over its assigned range, used to seed ray.Stats.PrimaryTotal.
func (c *Camera) totalSamples() int {
	if c.offset < 0 || c.offset >= c.Width || c.chunk <= 0 {
		return 0
	}
	return c.chunk * c.Height * c.Antialias * c.Antialias
}

// TotalSamples is the exported form of totalSamples, used by the worker to
// initialize stats once SetRange has been applied.
func (c *Camera) TotalSamples() int { return c.totalSamples() }

// GeneratePrimary implements ray.PrimarySource: it yields the next
// (pixel, sub-sample) in lexicographic order, or (nil, false) once the
// assigned range is exhausted.
func (c *Camera) GeneratePrimary() (*ray.FatRay, bool) {
	if c.done {
		return nil, false
	}

	if !c.started {
		c.started = true
	} else {
		c.advance()
		if c.done {
			return nil, false
		}
	}

	return c.emit(), true
}

// advance moves the cursor to the next (x, y, si, sj) lexicographically,
// marking the iterator done once it runs past the assigned range.
func (c *Camera) advance() {
	c.sj++
	if c.sj < c.Antialias {
		return
	}
	c.sj = 0
	c.si++
	if c.si < c.Antialias {
		return
	}
	c.si = 0
	c.y++
	if c.y < c.Height {
		return
	}
	c.y = 0
	c.x++
	if c.x >= c.offset+c.chunk {
		c.done = true
	}
}

// emit builds the FatRay for the current cursor position.
func (c *Camera) emit() *ray.FatRay {
	u, v, w := c.basis()

	aa := float64(c.Antialias)
	// With antialiasing off every pixel gets one ray through its center;
	// otherwise each cell of the AxA grid gets uniform jitter inside it.
	jx, jy := 0.5, 0.5
	if c.Antialias > 1 {
		jx, jy = c.rng.next()
	}

	// Stratified sub-sample position within pixel (x,y), cell (si,sj).
	px := (float64(c.x) + (float64(c.si)+jx)/aa) / float64(c.Width)
	py := (float64(c.y) + (float64(c.sj)+jy)/aa) / float64(c.Height)

	// Map to the image plane: half-width Aspect/2, half-height 1/2, then
	// to world space through the basis.
	sx := (2*px - 1) * c.Aspect / 2
	sy := (1 - 2*py) / 2

	dir := vec3.Normalize(vec3.Add(vec3.Add(vec3.Scale(u, sx), vec3.Scale(v, sy)), vec3.Neg(w)))

	transmittance := 1.0 / (aa * aa)

	r := ray.NewPrimary(ray.Pixel{X: c.x, Y: c.y}, c.Eye, dir, transmittance)
	return r
}

// jitterSource produces deterministic per-sub-sample jitter in [0,1)^2.
// A fixed linear-congruential sequence rather than math/rand, so a paused
// and resumed render produces the same image as an uninterrupted one.
type jitterSource struct {
	state uint64
}

func newJitterSource(seed uint64) *jitterSource {
	if seed == 0 {
		seed = 1
	}
	return &jitterSource{state: seed}
}

func (j *jitterSource) next() (float64, float64) {
	j.state = j.state*6364136223846793005 + 1442695040888963407
	a := float64(j.state>>40) / float64(1<<24)
	j.state = j.state*6364136223846793005 + 1442695040888963407
	b := float64(j.state>>40) / float64(1<<24)
	return a - math.Floor(a), b - math.Floor(b)
}
