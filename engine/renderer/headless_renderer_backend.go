package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gi/common"
	"github.com/Carmen-Shannon/oxy-gi/engine/renderer/pipeline"
)

// TextureSampler gives a fragment function read access to a bound texture.
type TextureSampler interface {
	// Size returns the texture size in pixels.
	Size() (width, height int)

	// Load returns the RGBA8 texel at (x, y), or the border color outside the texture.
	// RGB8 textures read back with opaque alpha.
	Load(x, y int) [4]byte
}

// FragmentInput is what the headless backend hands its fragment function for one pixel.
// The same value is reused across pixels of a draw and must not be retained.
type FragmentInput struct {
	// X and Y are the pixel coordinates in the target.
	X, Y int

	// Width and Height are the target size.
	Width, Height int

	// Uniforms holds the bound range of every buffer binding, in bind group then entry order.
	Uniforms [][]byte

	// Textures holds every texture binding, in bind group then entry order.
	Textures []TextureSampler
}

// FragmentFunc computes the RGBA8 output of one pixel of a headless draw.
type FragmentFunc func(in *FragmentInput) [4]byte

type headlessTexture struct {
	desc         TextureDescriptor
	pix          []byte
	border       [4]byte
	renderTarget bool
}

func (t *headlessTexture) Size() (int, int) {
	return t.desc.Width, t.desc.Height
}

func (t *headlessTexture) Load(x, y int) [4]byte {
	if x < 0 || y < 0 || x >= t.desc.Width || y >= t.desc.Height {
		return t.border
	}
	bpp := t.desc.Format.BytesPerPixel()
	i := (y*t.desc.Width + x) * bpp
	if bpp == 3 {
		return [4]byte{t.pix[i], t.pix[i+1], t.pix[i+2], 0xFF}
	}
	return [4]byte{t.pix[i], t.pix[i+1], t.pix[i+2], t.pix[i+3]}
}

type headlessPipeline struct {
	p       pipeline.Pipeline
	layouts []BindGroupLayoutID
}

type headlessBindGroup struct {
	desc BindGroupDescriptor
}

// headlessRendererBackendImpl keeps every object in memory and runs draws on the CPU.
// The Renderer serialises access, so it carries no lock of its own.
type headlessRendererBackendImpl struct {
	ids handleCounter

	layouts    map[BindGroupLayoutID]BindGroupLayoutDescriptor
	pipelines  map[PipelineID]*headlessPipeline
	buffers    map[BufferID][]byte
	textures   map[TextureID]*headlessTexture
	bindGroups map[BindGroupID]*headlessBindGroup

	surface      *headlessTexture
	clearColor   [4]byte
	inFrame      bool
	fragmentFunc FragmentFunc
	alignment    uint64
	maxDimension uint32
}

var _ RendererBackend = &headlessRendererBackendImpl{}

func newHeadlessRendererBackend(fn FragmentFunc, clearColor common.Color, alignment uint64, maxDimension uint32) *headlessRendererBackendImpl {
	return &headlessRendererBackendImpl{
		layouts:      make(map[BindGroupLayoutID]BindGroupLayoutDescriptor),
		pipelines:    make(map[PipelineID]*headlessPipeline),
		buffers:      make(map[BufferID][]byte),
		textures:     make(map[TextureID]*headlessTexture),
		bindGroups:   make(map[BindGroupID]*headlessBindGroup),
		clearColor:   colorToRGBA8(clearColor.R, clearColor.G, clearColor.B, clearColor.A),
		fragmentFunc: fn,
		alignment:    max(alignment, 1),
		maxDimension: max(maxDimension, 1),
	}
}

func (b *headlessRendererBackendImpl) CreateBindGroupLayout(desc BindGroupLayoutDescriptor) (BindGroupLayoutID, error) {
	id := BindGroupLayoutID(b.ids.alloc())
	b.layouts[id] = desc
	return id, nil
}

func (b *headlessRendererBackendImpl) CreatePipeline(p pipeline.Pipeline, layouts []BindGroupLayoutID) (PipelineID, error) {
	for _, l := range layouts {
		if _, ok := b.layouts[l]; !ok {
			return 0, unknownHandle(l)
		}
	}
	id := PipelineID(b.ids.alloc())
	b.pipelines[id] = &headlessPipeline{p: p, layouts: append([]BindGroupLayoutID(nil), layouts...)}
	return id, nil
}

func (b *headlessRendererBackendImpl) CreateBuffer(desc BufferDescriptor) (BufferID, error) {
	if desc.Size == 0 {
		return 0, fmt.Errorf("%w: buffer %q has size 0", ErrInvalidDescriptor, desc.Label)
	}
	id := BufferID(b.ids.alloc())
	b.buffers[id] = make([]byte, desc.Size)
	return id, nil
}

func (b *headlessRendererBackendImpl) WriteBuffer(id BufferID, offset uint64, data []byte) error {
	buf, ok := b.buffers[id]
	if !ok {
		return unknownHandle(id)
	}
	if offset+uint64(len(data)) > uint64(len(buf)) {
		return fmt.Errorf("renderer: write of %d bytes at %d exceeds buffer %d of %d bytes", len(data), offset, id, len(buf))
	}
	copy(buf[offset:], data)
	return nil
}

func (b *headlessRendererBackendImpl) CreateTexture(desc TextureDescriptor) (TextureID, error) {
	id := TextureID(b.ids.alloc())
	b.textures[id] = &headlessTexture{
		desc:         desc,
		pix:          make([]byte, desc.Width*desc.Height*desc.Format.BytesPerPixel()),
		renderTarget: desc.RenderTarget,
	}
	return id, nil
}

func (b *headlessRendererBackendImpl) SetTextureBorder(id TextureID, c common.Color) error {
	tex, ok := b.textures[id]
	if !ok {
		return unknownHandle(id)
	}
	tex.border = colorToRGBA8(c.R, c.G, c.B, c.A)
	return nil
}

func (b *headlessRendererBackendImpl) CreateBindGroup(desc BindGroupDescriptor) (BindGroupID, error) {
	layout, ok := b.layouts[desc.Layout]
	if !ok {
		return 0, unknownHandle(desc.Layout)
	}
	err := validateBindGroupEntries(layout, desc,
		func(id BufferID) (uint64, bool) {
			buf, ok := b.buffers[id]
			return uint64(len(buf)), ok
		},
		func(id TextureID) bool {
			_, ok := b.textures[id]
			return ok
		})
	if err != nil {
		return 0, err
	}
	id := BindGroupID(b.ids.alloc())
	desc.Entries = append([]BindGroupEntry(nil), desc.Entries...)
	b.bindGroups[id] = &headlessBindGroup{desc: desc}
	return id, nil
}

func (b *headlessRendererBackendImpl) WriteTexture(id TextureID, pixels []byte) error {
	tex, ok := b.textures[id]
	if !ok {
		return unknownHandle(id)
	}
	if len(pixels) != len(tex.pix) {
		return fmt.Errorf("renderer: texture %q upload has %d bytes, want %d", tex.desc.Label, len(pixels), len(tex.pix))
	}
	copy(tex.pix, pixels)
	return nil
}

func (b *headlessRendererBackendImpl) ReadTexture(id TextureID) ([]byte, error) {
	tex := b.surface
	if id != 0 {
		var ok bool
		if tex, ok = b.textures[id]; !ok {
			return nil, unknownHandle(id)
		}
	}
	out := make([]byte, tex.desc.Width*tex.desc.Height*4)
	if tex.desc.Format == TextureFormatRGB8 {
		expandRGBToRGBA(out, tex.pix)
	} else {
		copy(out, tex.pix)
	}
	return out, nil
}

func (b *headlessRendererBackendImpl) ClearTexture(id TextureID, c common.Color) error {
	tex, ok := b.textures[id]
	if !ok {
		return unknownHandle(id)
	}
	if !tex.renderTarget {
		return fmt.Errorf("%w: texture %q is not a render target", ErrInvalidDescriptor, tex.desc.Label)
	}
	fill(tex, colorToRGBA8(c.R, c.G, c.B, c.A))
	return nil
}

func (b *headlessRendererBackendImpl) Draw(call DrawCall) error {
	hp, ok := b.pipelines[call.Pipeline]
	if !ok {
		return unknownHandle(call.Pipeline)
	}

	var target *headlessTexture
	if call.Output == 0 {
		if !b.inFrame {
			return ErrNoFrame
		}
		if !hp.p.HasTarget(pipeline.TargetSurface) {
			return fmt.Errorf("%w: pipeline %q cannot draw to the surface", ErrInvalidDescriptor, hp.p.PipelineKey())
		}
		target = b.surface
	} else {
		if target, ok = b.textures[call.Output]; !ok {
			return unknownHandle(call.Output)
		}
		if !target.renderTarget {
			return fmt.Errorf("%w: texture %q is not a render target", ErrInvalidDescriptor, target.desc.Label)
		}
		if !hp.p.HasTarget(pipeline.TargetOffscreen) {
			return fmt.Errorf("%w: pipeline %q cannot draw offscreen", ErrInvalidDescriptor, hp.p.PipelineKey())
		}
	}

	if len(call.BindGroups) != len(hp.layouts) {
		return fmt.Errorf("%w: pipeline %q takes %d bind groups, draw binds %d", ErrInvalidDescriptor, hp.p.PipelineKey(), len(hp.layouts), len(call.BindGroups))
	}
	in := &FragmentInput{Width: target.desc.Width, Height: target.desc.Height}
	for i, bgID := range call.BindGroups {
		bg, ok := b.bindGroups[bgID]
		if !ok {
			return unknownHandle(bgID)
		}
		if bg.desc.Layout != hp.layouts[i] {
			return fmt.Errorf("%w: bind group %d does not match layout of group %d", ErrInvalidDescriptor, bgID, i)
		}
		layout := b.layouts[bg.desc.Layout]
		for j, e := range bg.desc.Entries {
			switch layout.Entries[j].Type {
			case BindingTypeUniformBuffer:
				buf, ok := b.buffers[e.Buffer]
				if !ok {
					return unknownHandle(e.Buffer)
				}
				end := uint64(len(buf))
				if e.Size != 0 {
					end = e.Offset + e.Size
				}
				in.Uniforms = append(in.Uniforms, buf[e.Offset:end])
			case BindingTypeSampledTexture:
				tex, ok := b.textures[e.Texture]
				if !ok {
					return unknownHandle(e.Texture)
				}
				in.Textures = append(in.Textures, tex)
			}
		}
	}

	if b.fragmentFunc == nil {
		return nil
	}

	// Fragments read the pre-draw contents, so results go to a scratch image first.
	bpp := target.desc.Format.BytesPerPixel()
	out := make([]byte, len(target.pix))
	for y := 0; y < target.desc.Height; y++ {
		for x := 0; x < target.desc.Width; x++ {
			in.X, in.Y = x, y
			px := b.fragmentFunc(in)
			copy(out[(y*target.desc.Width+x)*bpp:], px[:bpp])
		}
	}
	target.pix = out
	return nil
}

func (b *headlessRendererBackendImpl) Release(h Handle) error {
	switch id := h.(type) {
	case BindGroupLayoutID:
		if _, ok := b.layouts[id]; !ok {
			return unknownHandle(h)
		}
		delete(b.layouts, id)
	case PipelineID:
		if _, ok := b.pipelines[id]; !ok {
			return unknownHandle(h)
		}
		delete(b.pipelines, id)
	case BufferID:
		if _, ok := b.buffers[id]; !ok {
			return unknownHandle(h)
		}
		delete(b.buffers, id)
	case TextureID:
		if _, ok := b.textures[id]; !ok {
			return unknownHandle(h)
		}
		delete(b.textures, id)
	case BindGroupID:
		if _, ok := b.bindGroups[id]; !ok {
			return unknownHandle(h)
		}
		delete(b.bindGroups, id)
	default:
		return unknownHandle(h)
	}
	return nil
}

func (b *headlessRendererBackendImpl) BeginFrame() error {
	if b.inFrame {
		return fmt.Errorf("renderer: previous frame not yet ended")
	}
	b.inFrame = true
	fill(b.surface, b.clearColor)
	return nil
}

func (b *headlessRendererBackendImpl) EndFrame() error {
	if !b.inFrame {
		return ErrNoFrame
	}
	b.inFrame = false
	return nil
}

func (b *headlessRendererBackendImpl) Present() error {
	return nil
}

func (b *headlessRendererBackendImpl) ConfigureSurface(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: surface size %dx%d", ErrInvalidDescriptor, width, height)
	}
	b.surface = &headlessTexture{
		desc: TextureDescriptor{
			Label:        "Surface",
			Width:        width,
			Height:       height,
			Format:       TextureFormatRGBA8,
			RenderTarget: true,
		},
		pix:          make([]byte, width*height*4),
		renderTarget: true,
	}
	return nil
}

func (b *headlessRendererBackendImpl) SetPresentMode(PresentMode) {}

func (b *headlessRendererBackendImpl) MinUniformBufferOffsetAlignment() uint64 {
	return b.alignment
}

func (b *headlessRendererBackendImpl) MaxTextureDimension2D() uint32 {
	return b.maxDimension
}

func (b *headlessRendererBackendImpl) Destroy() {
	clear(b.layouts)
	clear(b.pipelines)
	clear(b.buffers)
	clear(b.textures)
	clear(b.bindGroups)
}

// fill sets every texel of tex to c.
func fill(tex *headlessTexture, c [4]byte) {
	bpp := tex.desc.Format.BytesPerPixel()
	for i := 0; i+bpp <= len(tex.pix); i += bpp {
		copy(tex.pix[i:i+bpp], c[:bpp])
	}
}
