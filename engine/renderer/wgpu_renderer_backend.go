package renderer

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-gi/common"
	"github.com/Carmen-Shannon/oxy-gi/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-gi/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuLayout struct {
	desc   BindGroupLayoutDescriptor
	layout *wgpu.BindGroupLayout
}

type wgpuPipeline struct {
	p        pipeline.Pipeline
	layouts  []BindGroupLayoutID
	layout   *wgpu.PipelineLayout
	variants map[pipeline.Target]*wgpu.RenderPipeline
}

type wgpuBuffer struct {
	buffer *wgpu.Buffer
	size   uint64
}

type wgpuTexture struct {
	desc    TextureDescriptor
	texture *wgpu.Texture
	view    *wgpu.TextureView
	sampler *wgpu.Sampler

	// staging holds the RGBA expansion of RGB8 uploads and is reused across uploads.
	staging []byte
}

type wgpuBindGroup struct {
	layout    BindGroupLayoutID
	bindGroup *wgpu.BindGroup
}

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	logger *slog.Logger
	ids    handleCounter

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceFormat    *wgpu.TextureFormat
	presentMode      wgpu.PresentMode // defaults to PresentModeImmediate (Uncapped)
	clearColor       wgpu.Color
	uniformAlignment uint64
	maxTextureDim    uint32

	layouts    map[BindGroupLayoutID]*wgpuLayout
	pipelines  map[PipelineID]*wgpuPipeline
	buffers    map[BufferID]*wgpuBuffer
	textures   map[TextureID]*wgpuTexture
	bindGroups map[BindGroupID]*wgpuBindGroup

	// Frame state. The encoder is opened lazily by the first clear or draw and submitted by
	// EndFrame; the surface texture is held from BeginFrame until Present.
	frameEncoder   *wgpu.CommandEncoder
	frameSurface   *wgpu.Texture
	frameView      *wgpu.TextureView
	surfaceCleared bool
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool, clearColor common.Color, logger *slog.Logger) (*wgpuRendererBackendImpl, error) {
	runtime.LockOSThread()
	b := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		logger:      logger,
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
		clearColor:  wgpu.Color{R: clearColor.R, G: clearColor.G, B: clearColor.B, A: clearColor.A},
		layouts:     make(map[BindGroupLayoutID]*wgpuLayout),
		pipelines:   make(map[PipelineID]*wgpuPipeline),
		buffers:     make(map[BufferID]*wgpuBuffer),
		textures:    make(map[TextureID]*wgpuTexture),
		bindGroups:  make(map[BindGroupID]*wgpuBindGroup),
	}
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		b.surface.Release()
		b.instance.Release()
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	b.adapter = a
	logger.Info("renderer: adapter selected", "fallback", forceFallbackAdapter)

	// Start from the WebGPU default limits; two bind groups are all a full-screen pass needs.
	limits := wgpu.DefaultLimits()
	b.uniformAlignment = uint64(limits.MinUniformBufferOffsetAlignment)
	b.maxTextureDim = limits.MaxTextureDimension2D

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		a.Release()
		b.surface.Release()
		b.instance.Release()
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	b.device = d
	b.queue = d.GetQueue()

	return b, nil
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: surface size %dx%d", ErrInvalidDescriptor, width, height)
	}
	capabilities := b.surface.GetCapabilities(b.adapter)
	if len(capabilities.Formats) == 0 || len(capabilities.AlphaModes) == 0 {
		return errors.New("surface reports no supported formats")
	}
	// The surface format is fixed by the first configuration; pipelines compiled for the
	// surface target depend on it.
	if b.surfaceFormat == nil {
		b.surfaceFormat = &capabilities.Formats[0]
	}

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	return nil
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuRendererBackendImpl) MinUniformBufferOffsetAlignment() uint64 {
	return b.uniformAlignment
}

func (b *wgpuRendererBackendImpl) MaxTextureDimension2D() uint32 {
	return b.maxTextureDim
}

// layoutEntries expands a layout into wgpu entries: a uniform entry takes one binding, a
// sampled texture takes two (the texture, then its sampler).
func layoutEntries(desc BindGroupLayoutDescriptor) ([]wgpu.BindGroupLayoutEntry, error) {
	entries := make([]wgpu.BindGroupLayoutEntry, 0, len(desc.Entries)*2)
	binding := uint32(0)
	for i, e := range desc.Entries {
		visibility := wgpuVisibility(e.Visibility)
		switch e.Type {
		case BindingTypeUniformBuffer:
			entries = append(entries, wgpu.BindGroupLayoutEntry{
				Binding:    binding,
				Visibility: visibility,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: e.MinBindingSize,
				},
			})
			binding++
		case BindingTypeSampledTexture:
			entries = append(entries,
				wgpu.BindGroupLayoutEntry{
					Binding:    binding,
					Visibility: visibility,
					Texture: wgpu.TextureBindingLayout{
						SampleType:    wgpu.TextureSampleTypeFloat,
						ViewDimension: wgpu.TextureViewDimension2D,
					},
				},
				wgpu.BindGroupLayoutEntry{
					Binding:    binding + 1,
					Visibility: visibility,
					Sampler: wgpu.SamplerBindingLayout{
						Type: wgpu.SamplerBindingTypeFiltering,
					},
				})
			binding += 2
		default:
			return nil, fmt.Errorf("%w: layout %q entry %d has no binding type", ErrInvalidDescriptor, desc.Label, i)
		}
	}
	return entries, nil
}

func wgpuVisibility(v ShaderVisibility) wgpu.ShaderStage {
	var stage wgpu.ShaderStage
	if v&VisibilityVertex != 0 {
		stage |= wgpu.ShaderStageVertex
	}
	if v&VisibilityFragment != 0 {
		stage |= wgpu.ShaderStageFragment
	}
	return stage
}

func (b *wgpuRendererBackendImpl) CreateBindGroupLayout(desc BindGroupLayoutDescriptor) (BindGroupLayoutID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := layoutEntries(desc)
	if err != nil {
		return 0, err
	}
	layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: entries,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create bind group layout %q: %w", desc.Label, err)
	}
	id := BindGroupLayoutID(b.ids.alloc())
	b.layouts[id] = &wgpuLayout{desc: desc, layout: layout}
	return id, nil
}

func (b *wgpuRendererBackendImpl) CreatePipeline(p pipeline.Pipeline, layouts []BindGroupLayoutID) (PipelineID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := p.Shader()
	if s == nil {
		return 0, fmt.Errorf("%w: pipeline %q has no shader", ErrInvalidDescriptor, p.PipelineKey())
	}
	if err := shader.RequireEntryPoints(s, shader.ShaderStageVertex, shader.ShaderStageFragment); err != nil {
		return 0, err
	}

	bindGroupLayouts := make([]*wgpu.BindGroupLayout, len(layouts))
	for i, id := range layouts {
		l, ok := b.layouts[id]
		if !ok {
			return 0, unknownHandle(id)
		}
		bindGroupLayouts[i] = l.layout
	}

	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: s.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: s.Source(),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create shader module %q: %w", s.Key(), err)
	}
	defer module.Release()

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create pipeline layout %q: %w", p.PipelineKey(), err)
	}

	wp := &wgpuPipeline{
		p:        p,
		layouts:  append([]BindGroupLayoutID(nil), layouts...),
		layout:   pipelineLayout,
		variants: make(map[pipeline.Target]*wgpu.RenderPipeline, len(p.Targets())),
	}
	for _, target := range p.Targets() {
		format := wgpu.TextureFormatRGBA8Unorm
		if target == pipeline.TargetSurface {
			if b.surfaceFormat == nil {
				b.releasePipeline(wp)
				return 0, errors.New("surface target requested before the surface was configured")
			}
			format = *b.surfaceFormat
		}

		colorTarget := wgpu.ColorTargetState{
			Format:    format,
			WriteMask: p.WriteMask(),
		}
		if p.BlendEnabled() {
			colorTarget.Blend = p.BlendState()
		}

		created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
			Label:  p.PipelineKey() + " Render Pipeline",
			Layout: pipelineLayout,
			Vertex: wgpu.VertexState{
				Module:     module,
				EntryPoint: s.EntryPoint(shader.ShaderStageVertex),
			},
			Fragment: &wgpu.FragmentState{
				Module:     module,
				EntryPoint: s.EntryPoint(shader.ShaderStageFragment),
				Targets:    []wgpu.ColorTargetState{colorTarget},
			},
			Primitive: wgpu.PrimitiveState{
				Topology:  p.Topology(),
				FrontFace: p.FrontFace(),
				CullMode:  p.CullMode(),
			},
			Multisample: wgpu.MultisampleState{
				Count: 1,
				Mask:  0xFFFFFFFF,
			},
		})
		if err != nil {
			b.releasePipeline(wp)
			return 0, fmt.Errorf("failed to create render pipeline %q: %w", p.PipelineKey(), err)
		}
		wp.variants[target] = created
	}

	id := PipelineID(b.ids.alloc())
	b.pipelines[id] = wp
	return id, nil
}

func (b *wgpuRendererBackendImpl) releasePipeline(wp *wgpuPipeline) {
	for _, rp := range wp.variants {
		rp.Release()
	}
	wp.layout.Release()
}

func (b *wgpuRendererBackendImpl) CreateBuffer(desc BufferDescriptor) (BufferID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if desc.Size == 0 {
		return 0, fmt.Errorf("%w: buffer %q has size 0", ErrInvalidDescriptor, desc.Label)
	}
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create buffer %q: %w", desc.Label, err)
	}
	id := BufferID(b.ids.alloc())
	b.buffers[id] = &wgpuBuffer{buffer: buf, size: desc.Size}
	return id, nil
}

func (b *wgpuRendererBackendImpl) WriteBuffer(id BufferID, offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, ok := b.buffers[id]
	if !ok {
		return unknownHandle(id)
	}
	if offset+uint64(len(data)) > buf.size {
		return fmt.Errorf("renderer: write of %d bytes at %d exceeds buffer %d of %d bytes", len(data), offset, id, buf.size)
	}
	b.queue.WriteBuffer(buf.buffer, offset, data)
	return nil
}

func (b *wgpuRendererBackendImpl) CreateTexture(desc TextureDescriptor) (TextureID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	usage := wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst
	if desc.RenderTarget {
		usage |= wgpu.TextureUsageRenderAttachment
	}
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     desc.Label,
		Usage:     usage,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              uint32(desc.Width),
			Height:             uint32(desc.Height),
			DepthOrArrayLayers: 1,
		},
		Format:        wgpu.TextureFormatRGBA8Unorm,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create texture %q: %w", desc.Label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return 0, fmt.Errorf("failed to create view of texture %q: %w", desc.Label, err)
	}

	filter := wgpu.FilterModeNearest
	if desc.Filter == FilterModeLinear {
		filter = wgpu.FilterModeLinear
	}
	samp, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         desc.Label + " Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     filter,
		MinFilter:     filter,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		view.Release()
		tex.Release()
		return 0, fmt.Errorf("failed to create sampler for texture %q: %w", desc.Label, err)
	}

	wt := &wgpuTexture{desc: desc, texture: tex, view: view, sampler: samp}
	if desc.Format == TextureFormatRGB8 {
		wt.staging = make([]byte, desc.Width*desc.Height*4)
	}
	id := TextureID(b.ids.alloc())
	b.textures[id] = wt
	return id, nil
}

// SetTextureBorder only checks the handle: WebGPU samplers clamp to the edge texel.
func (b *wgpuRendererBackendImpl) SetTextureBorder(id TextureID, _ common.Color) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.textures[id]; !ok {
		return unknownHandle(id)
	}
	return nil
}

func (b *wgpuRendererBackendImpl) CreateBindGroup(desc BindGroupDescriptor) (BindGroupID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	layout, ok := b.layouts[desc.Layout]
	if !ok {
		return 0, unknownHandle(desc.Layout)
	}
	err := validateBindGroupEntries(layout.desc, desc,
		func(id BufferID) (uint64, bool) {
			buf, ok := b.buffers[id]
			if !ok {
				return 0, false
			}
			return buf.size, true
		},
		func(id TextureID) bool {
			_, ok := b.textures[id]
			return ok
		})
	if err != nil {
		return 0, err
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(desc.Entries)*2)
	binding := uint32(0)
	for i, e := range desc.Entries {
		switch layout.desc.Entries[i].Type {
		case BindingTypeUniformBuffer:
			entries = append(entries, wgpu.BindGroupEntry{
				Binding: binding,
				Buffer:  b.buffers[e.Buffer].buffer,
				Offset:  e.Offset,
				Size:    common.Coalesce(e.Size, wgpu.WholeSize),
			})
			binding++
		case BindingTypeSampledTexture:
			tex := b.textures[e.Texture]
			entries = append(entries,
				wgpu.BindGroupEntry{Binding: binding, TextureView: tex.view},
				wgpu.BindGroupEntry{Binding: binding + 1, Sampler: tex.sampler},
			)
			binding += 2
		}
	}

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout.layout,
		Entries: entries,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create bind group %q: %w", desc.Label, err)
	}
	id := BindGroupID(b.ids.alloc())
	b.bindGroups[id] = &wgpuBindGroup{layout: desc.Layout, bindGroup: bindGroup}
	return id, nil
}

func (b *wgpuRendererBackendImpl) WriteTexture(id TextureID, pixels []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, ok := b.textures[id]
	if !ok {
		return unknownHandle(id)
	}
	if want := tex.desc.Width * tex.desc.Height * tex.desc.Format.BytesPerPixel(); len(pixels) != want {
		return fmt.Errorf("renderer: texture %q upload has %d bytes, want %d", tex.desc.Label, len(pixels), want)
	}
	data := pixels
	if tex.staging != nil {
		expandRGBToRGBA(tex.staging, pixels)
		data = tex.staging
	}

	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(tex.desc.Width) * 4,
			RowsPerImage: uint32(tex.desc.Height),
		},
		&wgpu.Extent3D{
			Width:              uint32(tex.desc.Width),
			Height:             uint32(tex.desc.Height),
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

func (b *wgpuRendererBackendImpl) ReadTexture(TextureID) ([]byte, error) {
	return nil, fmt.Errorf("renderer: WebGPU texture readback: %w", errors.ErrUnsupported)
}

// encoder returns the frame's command encoder, opening one if none is recording.
func (b *wgpuRendererBackendImpl) encoder() (*wgpu.CommandEncoder, error) {
	if b.frameEncoder == nil {
		enc, err := b.device.CreateCommandEncoder(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create command encoder: %w", err)
		}
		b.frameEncoder = enc
	}
	return b.frameEncoder, nil
}

func (b *wgpuRendererBackendImpl) ClearTexture(id TextureID, c common.Color) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, ok := b.textures[id]
	if !ok {
		return unknownHandle(id)
	}
	if !tex.desc.RenderTarget {
		return fmt.Errorf("%w: texture %q is not a render target", ErrInvalidDescriptor, tex.desc.Label)
	}
	enc, err := b.encoder()
	if err != nil {
		return err
	}
	pass := enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       tex.view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: c.R, G: c.G, B: c.B, A: c.A},
			},
		},
	})
	pass.End()
	return nil
}

func (b *wgpuRendererBackendImpl) Draw(call DrawCall) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	wp, ok := b.pipelines[call.Pipeline]
	if !ok {
		return unknownHandle(call.Pipeline)
	}
	if len(call.BindGroups) != len(wp.layouts) {
		return fmt.Errorf("%w: pipeline %q takes %d bind groups, draw binds %d", ErrInvalidDescriptor, wp.p.PipelineKey(), len(wp.layouts), len(call.BindGroups))
	}
	groups := make([]*wgpu.BindGroup, len(call.BindGroups))
	for i, id := range call.BindGroups {
		bg, ok := b.bindGroups[id]
		if !ok {
			return unknownHandle(id)
		}
		if bg.layout != wp.layouts[i] {
			return fmt.Errorf("%w: bind group %d does not match layout of group %d", ErrInvalidDescriptor, id, i)
		}
		groups[i] = bg.bindGroup
	}

	var (
		view   *wgpu.TextureView
		target pipeline.Target
		loadOp = wgpu.LoadOpLoad
	)
	if call.Output == 0 {
		if b.frameView == nil {
			return ErrNoFrame
		}
		view, target = b.frameView, pipeline.TargetSurface
		if !b.surfaceCleared {
			loadOp = wgpu.LoadOpClear
		}
	} else {
		tex, ok := b.textures[call.Output]
		if !ok {
			return unknownHandle(call.Output)
		}
		if !tex.desc.RenderTarget {
			return fmt.Errorf("%w: texture %q is not a render target", ErrInvalidDescriptor, tex.desc.Label)
		}
		view, target = tex.view, pipeline.TargetOffscreen
	}
	rp, ok := wp.variants[target]
	if !ok {
		return fmt.Errorf("%w: pipeline %q was not compiled for this target", ErrInvalidDescriptor, wp.p.PipelineKey())
	}

	enc, err := b.encoder()
	if err != nil {
		return err
	}
	pass := enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     loadOp,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: b.clearColor,
			},
		},
	})
	pass.SetPipeline(rp)
	for i, bg := range groups {
		pass.SetBindGroup(uint32(i), bg, nil)
	}
	pass.Draw(call.VertexCount, 1, 0, 0)
	pass.End()

	if call.Output == 0 {
		b.surfaceCleared = true
	}
	return nil
}

func (b *wgpuRendererBackendImpl) Release(h Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch id := h.(type) {
	case BindGroupLayoutID:
		l, ok := b.layouts[id]
		if !ok {
			return unknownHandle(h)
		}
		l.layout.Release()
		delete(b.layouts, id)
	case PipelineID:
		wp, ok := b.pipelines[id]
		if !ok {
			return unknownHandle(h)
		}
		b.releasePipeline(wp)
		delete(b.pipelines, id)
	case BufferID:
		buf, ok := b.buffers[id]
		if !ok {
			return unknownHandle(h)
		}
		buf.buffer.Release()
		delete(b.buffers, id)
	case TextureID:
		tex, ok := b.textures[id]
		if !ok {
			return unknownHandle(h)
		}
		tex.sampler.Release()
		tex.view.Release()
		tex.texture.Release()
		delete(b.textures, id)
	case BindGroupID:
		bg, ok := b.bindGroups[id]
		if !ok {
			return unknownHandle(h)
		}
		bg.bindGroup.Release()
		delete(b.bindGroups, id)
	default:
		return unknownHandle(h)
	}
	return nil
}

func (b *wgpuRendererBackendImpl) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// A surface texture still held from the previous frame would make wgpu-native fail with
	// "Surface image is already acquired".
	if b.frameSurface != nil {
		return errors.New("renderer: previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("failed to acquire surface texture: %w", err)
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return fmt.Errorf("failed to create surface view: %w", err)
	}

	b.frameSurface = surfaceTexture
	b.frameView = view
	b.surfaceCleared = false
	return nil
}

func (b *wgpuRendererBackendImpl) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameView == nil {
		return ErrNoFrame
	}
	enc, err := b.encoder()
	if err != nil {
		return err
	}
	// A frame that never drew to the surface still presents the clear color.
	if !b.surfaceCleared {
		pass := enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
			ColorAttachments: []wgpu.RenderPassColorAttachment{
				{
					View:       b.frameView,
					LoadOp:     wgpu.LoadOpClear,
					StoreOp:    wgpu.StoreOpStore,
					ClearValue: b.clearColor,
				},
			},
		})
		pass.End()
		b.surfaceCleared = true
	}

	b.frameEncoder = nil
	commandBuffer, err := enc.Finish(nil)
	if err != nil {
		enc.Release()
		return fmt.Errorf("failed to finish command encoder: %w", err)
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	enc.Release()
	return nil
}

func (b *wgpuRendererBackendImpl) Present() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return ErrNoFrame
	}
	b.surface.Present()

	b.frameView.Release()
	b.frameView = nil
	b.frameSurface.Release()
	b.frameSurface = nil
	return nil
}

func (b *wgpuRendererBackendImpl) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder != nil {
		b.frameEncoder.Release()
		b.frameEncoder = nil
	}
	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
	for id, bg := range b.bindGroups {
		bg.bindGroup.Release()
		delete(b.bindGroups, id)
	}
	for id, wp := range b.pipelines {
		b.releasePipeline(wp)
		delete(b.pipelines, id)
	}
	for id, l := range b.layouts {
		l.layout.Release()
		delete(b.layouts, id)
	}
	for id, tex := range b.textures {
		tex.sampler.Release()
		tex.view.Release()
		tex.texture.Release()
		delete(b.textures, id)
	}
	for id, buf := range b.buffers {
		buf.buffer.Release()
		delete(b.buffers, id)
	}
	b.queue.Release()
	b.device.Release()
	b.adapter.Release()
	b.surface.Release()
	b.instance.Release()
	b.logger.Debug("renderer: WebGPU backend destroyed")
}
