// Package image implements the render target: a set of named,
// same-dimension float buffers a worker accumulates into and the renderer
// merges pixel-wise across workers. Buffers are addressed by arbitrary
// name, not a closed r/g/b enum, so auxiliary channels (depth, alpha,
// normals) cost nothing extra.
package image

import "fmt"

// Image holds one or more same-sized float buffers, addressed by name.
// "r", "g", "b" are always present; additional buffers (e.g. an alpha or
// depth auxiliary channel) are created on demand by Accumulate/Write.
type Image struct {
	Width, Height int
	buffers       map[string][]float64
}

// New allocates an Image with the given buffer names pre-created, zeroed.
func New(width, height int, bufferNames []string) *Image {
	img := &Image{Width: width, Height: height, buffers: make(map[string][]float64)}
	for _, name := range []string{"r", "g", "b"} {
		img.ensure(name)
	}
	for _, name := range bufferNames {
		img.ensure(name)
	}
	return img
}

func (img *Image) ensure(name string) []float64 {
	b, ok := img.buffers[name]
	if !ok {
		b = make([]float64, img.Width*img.Height)
		img.buffers[name] = b
	}
	return b
}

func (img *Image) index(x, y int) (int, bool) {
	if x < 0 || x >= img.Width || y < 0 || y >= img.Height {
		return 0, false
	}
	return y*img.Width + x, true
}

// Accumulate commutatively adds value into buffer name at (x,y), creating
// the buffer if it doesn't exist yet.
func (img *Image) Accumulate(name string, x, y int, value float64) {
	idx, ok := img.index(x, y)
	if !ok {
		return
	}
	b := img.ensure(name)
	b[idx] += value
}

// Write overwrites buffer name at (x,y). The order of writes from
// different rays targeting the same pixel is undefined; callers must not
// rely on a particular ray winning.
func (img *Image) Write(name string, x, y int, value float64) {
	idx, ok := img.index(x, y)
	if !ok {
		return
	}
	b := img.ensure(name)
	b[idx] = value
}

// Buffer returns the named buffer's backing slice, or nil if absent.
func (img *Image) Buffer(name string) []float64 {
	return img.buffers[name]
}

// BufferNames returns every buffer name currently present, in no
// particular order.
func (img *Image) BufferNames() []string {
	names := make([]string, 0, len(img.buffers))
	for name := range img.buffers {
		names = append(names, name)
	}
	return names
}

// Merge adds other's buffers into img pixel-wise. Both images must share
// dimensions. Merging a zero image is a no-op.
func (img *Image) Merge(other *Image) error {
	if img.Width != other.Width || img.Height != other.Height {
		return fmt.Errorf("image: dimension mismatch merging %dx%d into %dx%d", other.Width, other.Height, img.Width, img.Height)
	}
	for name, src := range other.buffers {
		dst := img.ensure(name)
		for i, v := range src {
			dst[i] += v
		}
	}
	return nil
}
