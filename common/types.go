// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import "fmt"

// Color is a linear RGBA color with channels in the [0, 1] range.
// It is used for texture clears and sampler border colors.
type Color struct {
	R, G, B, A float64
}

var (
	// ColorTransparent is the all-zero color used to reset render targets.
	ColorTransparent = Color{}

	// ColorWhite is opaque white, the default sky color for samples that fall outside the scene.
	ColorWhite = Color{R: 1, G: 1, B: 1, A: 1}
)

// BytesPerPixelRGB is the number of bytes per pixel in a packed RGB bitmap.
const BytesPerPixelRGB = 3

// Bitmap is a packed, row-major, 3-channel (RGB, 8 bits per channel) image.
// Rows are tightly packed with no padding, so len(Pix) == Width*Height*3.
type Bitmap struct {
	// Pix holds the pixel data, 3 bytes per pixel, starting at the top-left corner.
	Pix []byte
	// Width is the width of the bitmap in pixels.
	Width int
	// Height is the height of the bitmap in pixels.
	Height int
}

// NewBitmap allocates a zeroed bitmap of the given size.
//
// Parameters:
//   - width: the width in pixels
//   - height: the height in pixels
//
// Returns:
//   - *Bitmap: the allocated bitmap
func NewBitmap(width, height int) *Bitmap {
	return &Bitmap{
		Pix:    make([]byte, width*height*BytesPerPixelRGB),
		Width:  width,
		Height: height,
	}
}

// Validate reports whether the pixel buffer length matches the bitmap dimensions.
//
// Returns:
//   - error: an error describing the mismatch, or nil if the bitmap is well formed
func (b *Bitmap) Validate() error {
	if b == nil {
		return fmt.Errorf("bitmap is nil")
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("bitmap has invalid dimensions %dx%d", b.Width, b.Height)
	}
	if want := b.Width * b.Height * BytesPerPixelRGB; len(b.Pix) != want {
		return fmt.Errorf("bitmap holds %d bytes, %dx%d RGB needs %d", len(b.Pix), b.Width, b.Height, want)
	}
	return nil
}

// Stride returns the number of bytes in one row of the bitmap.
func (b *Bitmap) Stride() int {
	return b.Width * BytesPerPixelRGB
}
