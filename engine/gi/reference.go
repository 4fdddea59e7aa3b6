package gi

import (
	"math"

	"github.com/Carmen-Shannon/oxy-gi/engine/renderer"
)

// maxMarchSteps bounds the number of samples taken along one ray interval.
const maxMarchSteps = 512

// radiance is a linear color with visibility; a = 1 means the ray interval is empty.
type radiance struct {
	r, g, b, a float64
}

func (c radiance) add(o radiance) radiance {
	return radiance{c.r + o.r, c.g + o.g, c.b + o.b, c.a + o.a}
}

func (c radiance) scale(s float64) radiance {
	return radiance{c.r * s, c.g * s, c.b * s, c.a * s}
}

func (c radiance) isSurface() bool {
	return max(c.r, c.g, c.b) > 0
}

func toRadiance(px [4]byte) radiance {
	return radiance{float64(px[0]) / 255, float64(px[1]) / 255, float64(px[2]) / 255, float64(px[3]) / 255}
}

func toUnorm(c radiance) [4]byte {
	conv := func(v float64) byte {
		switch {
		case v <= 0:
			return 0
		case v >= 1:
			return 0xFF
		default:
			return byte(v*255 + 0.5)
		}
	}
	return [4]byte{conv(c.r), conv(c.g), conv(c.b), conv(c.a)}
}

// cascadeFragment evaluates one fragment of the radiance-cascade program on the CPU.
type cascadeFragment struct {
	params  GPUCascadeParams
	input   renderer.TextureSampler
	cascade renderer.TextureSampler
	s0      float64
}

// ReferenceFragment is a CPU rendition of the default shaders/gi.wgsl program for the
// headless renderer backend. It expects the cascade parameter block as the first uniform and
// the input and cascade textures as the first two textures, which is how System binds them.
//
// Rays leaving the scene take the sky color from the parameter block. The composite maps the
// target onto the scene, so the render target may be any size.
//
// Parameters:
//   - in: the fragment input
//
// Returns:
//   - [4]byte: the RGBA8 output
func ReferenceFragment(in *renderer.FragmentInput) [4]byte {
	if len(in.Uniforms) < 1 || len(in.Textures) < 2 {
		return [4]byte{}
	}
	f := cascadeFragment{
		params:  UnmarshalCascadeParams(in.Uniforms[0]),
		input:   in.Textures[0],
		cascade: in.Textures[1],
	}
	if f.params.N0 <= 0 || f.params.R0 <= 0 {
		return [4]byte{}
	}
	f.s0 = math.Max(float64(f.params.Resolution[0]), float64(f.params.Resolution[1])) / float64(f.params.N0)

	if f.params.RenderFlag != 0 {
		if in.Width <= 0 || in.Height <= 0 {
			return [4]byte{}
		}
		fx := (float64(in.X) + 0.5) * float64(f.params.Resolution[0]) / float64(in.Width)
		fy := (float64(in.Y) + 0.5) * float64(f.params.Resolution[1]) / float64(in.Height)
		return toUnorm(f.composite(fx, fy))
	}
	return toUnorm(f.cascadePass(in.X, in.Y))
}

func (f *cascadeFragment) sceneAt(x, y float64) radiance {
	return toRadiance(f.input.Load(int(math.Floor(x)), int(math.Floor(y))))
}

func (f *cascadeFragment) march(ox, oy, dx, dy, t0, t1, step float64) radiance {
	w, h := float64(f.params.Resolution[0]), float64(f.params.Resolution[1])
	t := t0
	for range maxMarchSteps {
		if t >= t1 {
			break
		}
		px, py := ox+dx*t, oy+dy*t
		if px < 0 || py < 0 || px >= w || py >= h {
			if f.params.AddSkyLight != 0 {
				sky := f.params.Sky
				return radiance{r: float64(sky[0]), g: float64(sky[1]), b: float64(sky[2])}
			}
			return radiance{}
		}
		if c := f.sceneAt(px, py); c.isSurface() {
			c.a = 0
			return c
		}
		t += step
	}
	return radiance{a: 1}
}

func (f *cascadeFragment) loadRay(qx, qy, ray, c int) radiance {
	scale := 1 << c
	bw := int(f.params.R0) * scale
	return toRadiance(f.cascade.Load(qx*bw+ray%bw, qy*scale+ray/bw))
}

func (f *cascadeFragment) interpolateRays(ox, oy float64, c, first, count int) radiance {
	scale := 1 << c
	spacing := f.s0 * float64(scale)
	n := max(int(f.params.N0)/scale, 1)
	gx, gy := ox/spacing-0.5, oy/spacing-0.5
	bx, by := math.Floor(gx), math.Floor(gy)
	fx, fy := gx-bx, gy-by

	var sum radiance
	for j := range 4 {
		offX, offY := j%2, j/2
		qx := min(max(int(bx)+offX, 0), n-1)
		qy := min(max(int(by)+offY, 0), n-1)
		wx, wy := 1-fx, 1-fy
		if offX == 1 {
			wx = fx
		}
		if offY == 1 {
			wy = fy
		}
		var rays radiance
		for r := range count {
			rays = rays.add(f.loadRay(qx, qy, first+r, c))
		}
		sum = sum.add(rays.scale(wx * wy / float64(count)))
	}
	return sum
}

func (f *cascadeFragment) cascadePass(x, y int) radiance {
	c := int(f.params.CascadeIndex)
	scale := 1 << c
	bw := int(f.params.R0) * scale
	probeX, probeY := x/bw, y/scale
	k := (y%scale)*bw + x%bw
	rayCount := bw * scale

	spacing := f.s0 * float64(scale)
	ox, oy := (float64(probeX)+0.5)*spacing, (float64(probeY)+0.5)*spacing
	angle := (float64(k) + 0.5) * 2 * math.Pi / float64(rayCount)
	dx, dy := math.Cos(angle), math.Sin(angle)
	t0 := f.s0 * (float64(scale*scale) - 1) / 3
	t1 := f.s0 * (float64(scale*scale*4) - 1) / 3

	near := f.march(ox, oy, dx, dy, t0, t1, math.Max(1, spacing))
	if near.a == 0 || c+1 >= int(f.params.CascadeCount) {
		return near
	}
	far := f.interpolateRays(ox, oy, c+1, k*4, 4)
	return radiance{
		r: near.r + near.a*far.r,
		g: near.g + near.a*far.g,
		b: near.b + near.a*far.b,
		a: near.a * far.a,
	}
}

func (f *cascadeFragment) composite(x, y float64) radiance {
	if scene := f.sceneAt(x, y); scene.isSurface() {
		scene.a = 1
		return scene
	}
	fluence := f.interpolateRays(x, y, 0, 0, int(f.params.R0))
	fluence.a = 1
	return fluence
}
