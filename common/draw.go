package common

// RGB8 converts the color to 8-bit channels, clamping to [0, 1]. Alpha is dropped.
//
// Returns:
//   - [3]byte: the red, green and blue bytes
func (c Color) RGB8() [3]byte {
	return [3]byte{unorm8(c.R), unorm8(c.G), unorm8(c.B)}
}

func unorm8(v float64) byte {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return byte(v*255 + 0.5)
	}
}

// At returns the pixel at (x, y). Coordinates outside the bitmap return black.
//
// Parameters:
//   - x: the column
//   - y: the row
//
// Returns:
//   - [3]byte: the red, green and blue bytes
func (b *Bitmap) At(x, y int) [3]byte {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return [3]byte{}
	}
	i := y*b.Stride() + x*BytesPerPixelRGB
	return [3]byte{b.Pix[i], b.Pix[i+1], b.Pix[i+2]}
}

// Set writes the pixel at (x, y). Coordinates outside the bitmap are ignored.
//
// Parameters:
//   - x: the column
//   - y: the row
//   - c: the color, alpha ignored
func (b *Bitmap) Set(x, y int, c Color) {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return
	}
	rgb := c.RGB8()
	i := y*b.Stride() + x*BytesPerPixelRGB
	copy(b.Pix[i:i+BytesPerPixelRGB], rgb[:])
}

// Fill sets every pixel to c.
func (b *Bitmap) Fill(c Color) {
	rgb := c.RGB8()
	for i := 0; i+BytesPerPixelRGB <= len(b.Pix); i += BytesPerPixelRGB {
		copy(b.Pix[i:i+BytesPerPixelRGB], rgb[:])
	}
}

// FillRect fills the half-open rectangle [x0, x1) x [y0, y1), clipped to the bitmap.
//
// Parameters:
//   - x0, y0: the top-left corner
//   - x1, y1: the exclusive bottom-right corner
//   - c: the color
func (b *Bitmap) FillRect(x0, y0, x1, y1 int, c Color) {
	x0, y0 = max(x0, 0), max(y0, 0)
	x1, y1 = min(x1, b.Width), min(y1, b.Height)
	if x0 >= x1 || y0 >= y1 {
		return
	}
	rgb := c.RGB8()
	for y := y0; y < y1; y++ {
		row := b.Pix[y*b.Stride():]
		for x := x0; x < x1; x++ {
			copy(row[x*BytesPerPixelRGB:], rgb[:])
		}
	}
}

// FillCircle fills every pixel whose center lies within radius of (cx, cy), clipped to the
// bitmap. A radius below 1 fills nothing.
//
// Parameters:
//   - cx, cy: the center
//   - radius: the radius in pixels
//   - c: the color
func (b *Bitmap) FillCircle(cx, cy, radius int, c Color) {
	if radius < 1 {
		return
	}
	r2 := radius * radius
	for y := max(cy-radius, 0); y <= min(cy+radius, b.Height-1); y++ {
		dy := y - cy
		for x := max(cx-radius, 0); x <= min(cx+radius, b.Width-1); x++ {
			dx := x - cx
			if dx*dx+dy*dy <= r2 {
				b.Set(x, y, c)
			}
		}
	}
}

// Clone returns a deep copy of the bitmap.
func (b *Bitmap) Clone() *Bitmap {
	return &Bitmap{
		Pix:    append([]byte(nil), b.Pix...),
		Width:  b.Width,
		Height: b.Height,
	}
}
