package common

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func gradientImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(x + y), A: 255})
		}
	}
	return img
}

func checkGradient(t *testing.T, bmp *Bitmap) {
	t.Helper()
	for y := 0; y < bmp.Height; y++ {
		for x := 0; x < bmp.Width; x++ {
			i := (y*bmp.Width + x) * 3
			got := [3]byte{bmp.Pix[i], bmp.Pix[i+1], bmp.Pix[i+2]}
			want := [3]byte{uint8(x), uint8(y), uint8(x + y)}
			if got != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestBitmapFromImage(t *testing.T) {
	tests := []struct {
		name string
		w, h int
	}{
		{"single band", 7, 5},
		{"parallel bands", 40, 200},
		{"uneven bands", 13, 97},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bmp := BitmapFromImage(gradientImage(tt.w, tt.h))
			if err := bmp.Validate(); err != nil {
				t.Fatalf("Validate() = %v", err)
			}
			checkGradient(t, bmp)
		})
	}
}

func TestBitmapFromImageRGBAFastPath(t *testing.T) {
	src := gradientImage(16, 70)
	rgba := image.NewRGBA(src.Bounds())
	for y := 0; y < 70; y++ {
		for x := 0; x < 16; x++ {
			rgba.Set(x, y, src.At(x, y))
		}
	}
	checkGradient(t, BitmapFromImage(rgba))
}

func TestBitmapFromImageTranslucentRGBA(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 4, 1))
	pixels := []color.RGBA{
		{R: 0x80, G: 0x40, B: 0x00, A: 0x80},
		{R: 0x10, G: 0x20, B: 0x30, A: 0x40},
		{R: 0x00, G: 0x00, B: 0x00, A: 0x00},
		{R: 0xff, G: 0x7f, B: 0x01, A: 0xff},
	}
	for x, c := range pixels {
		rgba.SetRGBA(x, 0, c)
	}

	// Hiding the concrete type sends the same pixels through the color model path.
	fast := BitmapFromImage(rgba)
	general := BitmapFromImage(struct{ image.Image }{rgba})
	if !bytes.Equal(fast.Pix, general.Pix) {
		t.Fatalf("RGBA path = %v, color model path = %v", fast.Pix, general.Pix)
	}
	if got := fast.At(0, 0); got != [3]byte{0xff, 0x7f, 0x00} {
		t.Errorf("half-alpha pixel = %v, want un-premultiplied {ff 7f 00}", got)
	}
}

func TestDecodeBitmap(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradientImage(8, 4)); err != nil {
		t.Fatal(err)
	}

	bmp, err := DecodeBitmap(bytes.NewReader(buf.Bytes()), 0, 0)
	if err != nil {
		t.Fatalf("DecodeBitmap() error = %v", err)
	}
	if bmp.Width != 8 || bmp.Height != 4 {
		t.Fatalf("size = %dx%d, want 8x4", bmp.Width, bmp.Height)
	}
	checkGradient(t, bmp)

	scaled, err := DecodeBitmap(bytes.NewReader(buf.Bytes()), 16, 8)
	if err != nil {
		t.Fatalf("DecodeBitmap() scaled error = %v", err)
	}
	if scaled.Width != 16 || scaled.Height != 8 || len(scaled.Pix) != 16*8*3 {
		t.Fatalf("scaled size = %dx%d (%d bytes)", scaled.Width, scaled.Height, len(scaled.Pix))
	}
}

func TestDecodeBitmapRejectsGarbage(t *testing.T) {
	if _, err := DecodeBitmap(bytes.NewReader([]byte("not an image")), 0, 0); err == nil {
		t.Fatal("DecodeBitmap() accepted garbage input")
	}
}

func TestBitmapValidate(t *testing.T) {
	tests := []struct {
		name    string
		bmp     *Bitmap
		wantErr bool
	}{
		{"nil", nil, true},
		{"zero size", &Bitmap{}, true},
		{"short buffer", &Bitmap{Pix: make([]byte, 5), Width: 2, Height: 1}, true},
		{"ok", NewBitmap(3, 2), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.bmp.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRoundUpAlign(t *testing.T) {
	tests := []struct{ align, in, want uint64 }{
		{256, 48, 256},
		{256, 256, 256},
		{256, 257, 512},
		{16, 0, 0},
		{0, 48, 48},
		{48, 50, 96},
	}
	for _, tt := range tests {
		if got := RoundUpAlign(tt.align, tt.in); got != tt.want {
			t.Errorf("RoundUpAlign(%d, %d) = %d, want %d", tt.align, tt.in, got, tt.want)
		}
	}
}

func TestCoalesce(t *testing.T) {
	if got := Coalesce("", "", "b", "c"); got != "b" {
		t.Errorf("Coalesce() = %q, want b", got)
	}
	if got := Coalesce(0, 0); got != 0 {
		t.Errorf("Coalesce() = %d, want 0", got)
	}
}
