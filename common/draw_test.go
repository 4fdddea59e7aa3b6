package common

import (
	"bytes"
	"image"
	"testing"
)

func TestColorRGB8(t *testing.T) {
	tests := []struct {
		c    Color
		want [3]byte
	}{
		{ColorWhite, [3]byte{255, 255, 255}},
		{ColorTransparent, [3]byte{}},
		{Color{R: 0.5, G: -1, B: 2}, [3]byte{128, 0, 255}},
	}
	for _, tt := range tests {
		if got := tt.c.RGB8(); got != tt.want {
			t.Errorf("%+v.RGB8() = %v, want %v", tt.c, got, tt.want)
		}
	}
}

func TestBitmapSetAt(t *testing.T) {
	b := NewBitmap(4, 3)
	b.Set(2, 1, Color{R: 1})
	b.Set(-1, 0, ColorWhite)
	b.Set(4, 0, ColorWhite)

	if got := b.At(2, 1); got != [3]byte{255, 0, 0} {
		t.Errorf("At(2, 1) = %v, want red", got)
	}
	if got := b.At(9, 9); got != [3]byte{} {
		t.Errorf("At outside = %v, want black", got)
	}
	lit := 0
	for i := 0; i < len(b.Pix); i += 3 {
		if b.Pix[i] != 0 {
			lit++
		}
	}
	if lit != 1 {
		t.Errorf("%d pixels set, want 1", lit)
	}
}

func TestBitmapFillRect(t *testing.T) {
	b := NewBitmap(8, 8)
	b.FillRect(-2, 6, 3, 20, ColorWhite)

	for y := range 8 {
		for x := range 8 {
			want := x < 3 && y >= 6
			if got := b.At(x, y)[0] == 255; got != want {
				t.Errorf("(%d, %d) filled = %v, want %v", x, y, got, want)
			}
		}
	}

	empty := NewBitmap(4, 4)
	empty.FillRect(3, 3, 1, 1, ColorWhite)
	if !bytes.Equal(empty.Pix, NewBitmap(4, 4).Pix) {
		t.Error("inverted rectangle filled pixels")
	}
}

func TestBitmapFillCircle(t *testing.T) {
	b := NewBitmap(9, 9)
	b.FillCircle(4, 4, 2, ColorWhite)

	tests := []struct {
		x, y int
		want bool
	}{
		{4, 4, true},
		{6, 4, true},
		{4, 2, true},
		{6, 6, false},
		{7, 4, false},
		{0, 0, false},
	}
	for _, tt := range tests {
		if got := b.At(tt.x, tt.y)[0] == 255; got != tt.want {
			t.Errorf("(%d, %d) filled = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}

	edge := NewBitmap(4, 4)
	edge.FillCircle(0, 0, 10, ColorWhite)
	for i, v := range edge.Pix {
		if v != 255 {
			t.Fatalf("byte %d = %d, circle covering the bitmap left gaps", i, v)
		}
	}
}

func TestBitmapFillAndClone(t *testing.T) {
	b := NewBitmap(3, 2)
	b.Fill(Color{G: 1})
	c := b.Clone()
	c.Set(0, 0, ColorTransparent)

	if b.At(0, 0) != [3]byte{0, 255, 0} {
		t.Error("Clone shares pixels with the original")
	}
	if c.Width != 3 || c.Height != 2 || c.At(1, 1) != [3]byte{0, 255, 0} {
		t.Errorf("Clone = %dx%d %v", c.Width, c.Height, c.At(1, 1))
	}
}

func TestEncodeImageRoundTrip(t *testing.T) {
	pix := make([]byte, 4*2*4)
	for i := range pix {
		pix[i] = byte(i * 7)
	}
	for i := 3; i < len(pix); i += 4 {
		pix[i] = 255
	}
	img, err := ImageFromRGBA(pix, 4, 2)
	if err != nil {
		t.Fatalf("ImageFromRGBA: %v", err)
	}

	for _, ext := range []string{".png", ".bmp", ".TIFF"} {
		t.Run(ext, func(t *testing.T) {
			var buf bytes.Buffer
			if err := EncodeImage(&buf, img, ext); err != nil {
				t.Fatalf("EncodeImage: %v", err)
			}
			decoded, _, err := image.Decode(&buf)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			got := BitmapFromImage(decoded)
			want := BitmapFromImage(img)
			if !bytes.Equal(got.Pix, want.Pix) {
				t.Errorf("pixels changed through %s", ext)
			}
		})
	}

	if err := EncodeImage(&bytes.Buffer{}, img, ".gif"); err == nil {
		t.Error("unknown format accepted")
	}
	if _, err := ImageFromRGBA(pix[:5], 4, 2); err == nil {
		t.Error("short pixel buffer accepted")
	}
}
