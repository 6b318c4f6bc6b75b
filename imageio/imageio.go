// Package imageio writes finished images to disk. EXR output is an
// external collaborator reached only through the Encoder interface;
// PPMEncoder is the small concrete implementation shipped here so a
// render always produces a viewable artifact without an EXR codec
// dependency.
package imageio

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/flexrender/flexrender/image"
)

// Encoder writes a finished Image to disk in some image format. The
// production collaborator would be an EXR encoder; FlexRender ships
// PPMEncoder as the default so a render always produces something
// viewable without an external dependency this module cannot source.
type Encoder interface {
	Encode(w io.Writer, img *image.Image) error
}

// PPMEncoder writes the "r","g","b" buffers as a binary PPM (P6), clamping
// to [0,1] and scaling to 8 bits. Buffers beyond r/g/b are ignored; they
// exist for EXR-style multi-channel output a real EXR encoder would carry
// through untouched.
type PPMEncoder struct{}

func (PPMEncoder) Encode(w io.Writer, img *image.Image) error {
	r, g, b := img.Buffer("r"), img.Buffer("g"), img.Buffer("b")
	n := img.Width * img.Height
	if len(r) != n || len(g) != n || len(b) != n {
		return fmt.Errorf("imageio: missing or mis-sized r/g/b buffer for %dx%d image", img.Width, img.Height)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "P6\n%d %d\n255\n", img.Width, img.Height)

	px := make([]byte, 3)
	for i := 0; i < n; i++ {
		px[0] = toByte(r[i])
		px[1] = toByte(g[i])
		px[2] = toByte(b[i])
		if _, err := bw.Write(px); err != nil {
			return fmt.Errorf("imageio: write pixel %d: %w", i, err)
		}
	}
	return bw.Flush()
}

func toByte(v float64) byte {
	v = math.Max(0, math.Min(1, v))
	return byte(v*255.0 + 0.5)
}
