package main

import (
	"bytes"
	"testing"

	"github.com/Carmen-Shannon/oxy-gi/common"
)

func TestDemoScene(t *testing.T) {
	for _, size := range [][2]int{{256, 256}, {64, 32}, {8, 8}} {
		bmp := demoScene(size[0], size[1])
		if err := bmp.Validate(); err != nil {
			t.Fatalf("%dx%d: %v", size[0], size[1], err)
		}
		if bmp.At(size[0]/5, size[1]/5) != palette[0].RGB8() {
			t.Errorf("%dx%d: no light at the warm light's center", size[0], size[1])
		}
		if bytes.Equal(bmp.Pix, make([]byte, len(bmp.Pix))) {
			t.Errorf("%dx%d: scene is empty", size[0], size[1])
		}
	}
}

func TestPainter(t *testing.T) {
	scene := common.NewBitmap(32, 32)
	scene.Set(0, 0, common.ColorWhite)
	p := newPainter(scene)

	if p.drag(10, 10) {
		t.Error("drag without a held button changed the scene")
	}

	p.selectColor(2)
	if !p.press(true, 10, 10) {
		t.Fatal("press did not paint")
	}
	if got := p.bmp.At(10, 10); got != palette[2].RGB8() {
		t.Errorf("painted pixel = %v, want %v", got, palette[2].RGB8())
	}
	if scene.At(10, 10) != [3]byte{} {
		t.Error("painting modified the original scene")
	}

	snap := p.snapshot()
	p.release()
	p.press(false, 10, 10)
	if p.bmp.At(10, 10) != [3]byte{} {
		t.Error("erase left the pixel lit")
	}
	if snap.At(10, 10) != palette[2].RGB8() {
		t.Error("snapshot shares pixels with the painter")
	}

	p.clear()
	if p.bmp.At(0, 0) != [3]byte{} {
		t.Error("clear left pixels lit")
	}
	p.reset()
	if p.bmp.At(0, 0) != [3]byte{255, 255, 255} {
		t.Error("reset did not restore the original scene")
	}
}

func TestPainterBrush(t *testing.T) {
	p := newPainter(common.NewBitmap(96, 96))
	if p.radius != 2 {
		t.Fatalf("initial radius = %d, want 2", p.radius)
	}
	p.grow(-10)
	if p.radius != 1 {
		t.Errorf("radius = %d, want clamped to 1", p.radius)
	}
	p.grow(100)
	if p.radius != 64 {
		t.Errorf("radius = %d, want clamped to 64", p.radius)
	}

	before := p.color
	p.selectColor(len(palette))
	p.selectColor(-1)
	if p.color != before {
		t.Error("out of range selection changed the color")
	}
}

func TestPainterToScene(t *testing.T) {
	p := newPainter(common.NewBitmap(100, 50))
	tests := []struct {
		x, y         int32
		viewW, viewH int
		wantX, wantY int
	}{
		{0, 0, 200, 100, 0, 0},
		{100, 50, 200, 100, 50, 25},
		{199, 99, 200, 100, 99, 49},
		{7, 9, 0, 0, 7, 9},
	}
	for _, tt := range tests {
		x, y := p.toScene(tt.x, tt.y, tt.viewW, tt.viewH)
		if x != tt.wantX || y != tt.wantY {
			t.Errorf("toScene(%d, %d, %d, %d) = %d, %d, want %d, %d", tt.x, tt.y, tt.viewW, tt.viewH, x, y, tt.wantX, tt.wantY)
		}
	}
}
