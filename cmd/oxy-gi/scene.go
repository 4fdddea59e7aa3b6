package main

import (
	"github.com/Carmen-Shannon/oxy-gi/common"
)

// palette holds the brush colors selected with keys 1 to 6. The last entry is a dim grey
// that mostly occludes.
var palette = []common.Color{
	{R: 1, G: 0.85, B: 0.6, A: 1},
	{R: 1, G: 0.2, B: 0.1, A: 1},
	{R: 0.2, G: 1, B: 0.3, A: 1},
	{R: 0.2, G: 0.4, B: 1, A: 1},
	{R: 1, G: 1, B: 1, A: 1},
	{R: 0.08, G: 0.08, B: 0.08, A: 1},
}

// demoScene draws the built-in scene: a warm light in one corner, a blue light opposite,
// and a row of dim blockers between them casting shadows.
func demoScene(width, height int) *common.Bitmap {
	bmp := common.NewBitmap(width, height)
	unit := max(min(width, height)/32, 1)

	bmp.FillCircle(width/5, height/5, 2*unit, palette[0])
	bmp.FillCircle(4*width/5, 4*height/5, 2*unit, palette[3])
	bmp.FillRect(width-3*unit, unit, width-unit, 6*unit, palette[1])

	for i := range 5 {
		x := width/4 + i*width/8
		bmp.FillRect(x, height/2-unit, x+unit, height/2+3*unit, palette[5])
	}
	bmp.FillRect(width/3, 3*height/4, 2*width/3, 3*height/4+unit, palette[5])
	return bmp
}

// painter edits the scene bitmap from window input. Strokes are drawn in scene pixels;
// window coordinates are scaled from the current framebuffer size.
type painter struct {
	original *common.Bitmap
	bmp      *common.Bitmap

	color  common.Color
	radius int

	// button is the held mouse button's effect: 0 none, 1 paint, -1 erase.
	button int
}

func newPainter(scene *common.Bitmap) *painter {
	return &painter{
		original: scene,
		bmp:      scene.Clone(),
		color:    palette[0],
		radius:   max(min(scene.Width, scene.Height)/48, 1),
	}
}

// toScene maps framebuffer coordinates of a viewW x viewH view to scene pixels.
func (p *painter) toScene(x, y int32, viewW, viewH int) (int, int) {
	if viewW <= 0 || viewH <= 0 {
		return int(x), int(y)
	}
	return int(x) * p.bmp.Width / viewW, int(y) * p.bmp.Height / viewH
}

// press starts a stroke and draws its first dab. It reports whether the scene changed.
func (p *painter) press(paint bool, x, y int) bool {
	p.button = -1
	if paint {
		p.button = 1
	}
	return p.drag(x, y)
}

func (p *painter) release() {
	p.button = 0
}

// drag continues a held stroke. It reports whether the scene changed.
func (p *painter) drag(x, y int) bool {
	switch p.button {
	case 1:
		p.bmp.FillCircle(x, y, p.radius, p.color)
	case -1:
		p.bmp.FillCircle(x, y, p.radius, common.ColorTransparent)
	default:
		return false
	}
	return true
}

// selectColor picks palette entry i; out of range indices are ignored.
func (p *painter) selectColor(i int) {
	if i >= 0 && i < len(palette) {
		p.color = palette[i]
	}
}

// grow changes the brush radius by delta, keeping it within [1, 64].
func (p *painter) grow(delta int) {
	p.radius = min(max(p.radius+delta, 1), 64)
}

func (p *painter) clear() {
	p.bmp.Fill(common.ColorTransparent)
}

func (p *painter) reset() {
	p.bmp = p.original.Clone()
}

// snapshot returns a copy of the edited scene to hand to the engine.
func (p *painter) snapshot() *common.Bitmap {
	return p.bmp.Clone()
}
