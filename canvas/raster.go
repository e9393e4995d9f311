// Package canvas stores and paints the per-(user, level) shot canvases and
// loads the immutable per-level reference images.
package canvas

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	_ "golang.org/x/image/bmp"  // reference image decoder
	_ "golang.org/x/image/webp" // reference image decoder
)

// Raster is a fixed-dimension RGBA pixel buffer. The zero value is not
// usable; construct with NewBlank or Decode.
type Raster struct {
	img *image.NRGBA
}

// NewBlank returns an opaque white raster, the state of a canvas before
// the first shot.
func NewBlank(width, height int) *Raster {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return &Raster{img: img}
}

// Decode reads a PNG, WebP or BMP image and converts it to RGBA pixels.
func Decode(r io.Reader) (*Raster, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("canvas: decode: %w", err)
	}
	if img, ok := src.(*image.NRGBA); ok && img.Rect.Min == (image.Point{}) {
		return &Raster{img: img}, nil
	}
	img := image.NewNRGBA(image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy()))
	draw.Draw(img, img.Rect, src, src.Bounds().Min, draw.Src)
	return &Raster{img: img}, nil
}

// EncodePNG writes the raster as a PNG.
func (ra *Raster) EncodePNG(w io.Writer) error {
	if err := png.Encode(w, ra.img); err != nil {
		return fmt.Errorf("canvas: encode: %w", err)
	}
	return nil
}

// PNG returns the raster encoded as PNG bytes.
func (ra *Raster) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := ra.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Width returns the raster width in pixels.
func (ra *Raster) Width() int { return ra.img.Rect.Dx() }

// Height returns the raster height in pixels.
func (ra *Raster) Height() int { return ra.img.Rect.Dy() }

// Pix exposes the raw pixel buffer: 4 bytes (R, G, B, A) per pixel,
// rows top to bottom. The scoring scan reads it directly.
func (ra *Raster) Pix() []uint8 { return ra.img.Pix }

// Image exposes the underlying image, for encoders beyond PNG.
func (ra *Raster) Image() *image.NRGBA { return ra.img }

// At returns the pixel at (x, y).
func (ra *Raster) At(x, y int) color.NRGBA {
	return ra.img.NRGBAAt(x, y)
}

// Set overwrites the pixel at (x, y).
func (ra *Raster) Set(x, y int, c color.NRGBA) {
	ra.img.SetNRGBA(x, y, c)
}

// DrawDisc paints a filled opaque disc of the given radius centered at
// (cx, cy), overwriting whatever is underneath. Pixels whose center lies
// within the radius are painted; parts outside the raster are clipped.
func (ra *Raster) DrawDisc(cx, cy float64, radius int, c color.NRGBA) {
	r := float64(radius)
	x0 := max(int(math.Floor(cx-r)), 0)
	x1 := min(int(math.Ceil(cx+r)), ra.Width()-1)
	y0 := max(int(math.Floor(cy-r)), 0)
	y1 := min(int(math.Ceil(cy+r)), ra.Height()-1)

	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			if dx*dx+dy*dy <= r*r {
				ra.img.SetNRGBA(x, y, c)
			}
		}
	}
}
