package renderer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-gi/common"
	"github.com/Carmen-Shannon/oxy-gi/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// SurfaceSource provides the platform surface the WebGPU backend presents to.
// engine/window.Window satisfies it.
type SurfaceSource interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
	Width() int
	Height() int
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]PipelineID

	backendType RendererBackendType
	backend     RendererBackend
	logger      *slog.Logger
	stats       Stats

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	clearColor           common.Color
	surfaceWidth         int
	surfaceHeight        int
	fragmentFunc         FragmentFunc
	uniformAlignment     uint64
	maxTextureDimension  uint32
}

// Renderer is the GPU collaborator of the engine. It creates layouts, pipelines, buffers,
// textures and bind groups, uploads data, and records clears and full-screen draws, handing
// out opaque handles for everything it creates.
//
// Work recorded between BeginFrame and EndFrame is submitted in call order. Offscreen clears
// and draws may also be recorded outside a frame; they are submitted with the next EndFrame.
// Buffer and texture writes take effect before any work submitted after them.
type Renderer interface {
	// CreateBindGroupLayout creates a bind group layout.
	//
	// Parameters:
	//   - desc: the layout entries, numbered in order
	//
	// Returns:
	//   - BindGroupLayoutID: the layout handle
	//   - error: an error if the layout could not be created
	CreateBindGroupLayout(desc BindGroupLayoutDescriptor) (BindGroupLayoutID, error)

	// CreatePipeline compiles p against the given bind group layouts, one per group index.
	// Pipelines are cached by PipelineKey; creating a pipeline whose key is already registered
	// returns the cached handle without compiling again.
	//
	// Parameters:
	//   - p: the pipeline description
	//   - layouts: the bind group layouts for groups 0..len-1
	//
	// Returns:
	//   - PipelineID: the pipeline handle
	//   - error: an error if compilation fails
	CreatePipeline(p pipeline.Pipeline, layouts ...BindGroupLayoutID) (PipelineID, error)

	// Pipeline looks up a cached pipeline handle by key.
	//
	// Parameters:
	//   - key: the pipeline key
	//
	// Returns:
	//   - PipelineID: the pipeline handle, or 0
	//   - bool: true if the key is registered
	Pipeline(key string) (PipelineID, bool)

	// CreateBuffer creates a uniform buffer.
	//
	// Parameters:
	//   - desc: the buffer label and size in bytes
	//
	// Returns:
	//   - BufferID: the buffer handle
	//   - error: an error if the buffer could not be created
	CreateBuffer(desc BufferDescriptor) (BufferID, error)

	// WriteBuffer copies data into a buffer at offset.
	//
	// Parameters:
	//   - id: the buffer handle
	//   - offset: the byte offset into the buffer
	//   - data: the bytes to write
	//
	// Returns:
	//   - error: ErrUnknownHandle, or an error if the write exceeds the buffer
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	// CreateTexture creates a 2D texture and its sampler.
	//
	// Parameters:
	//   - desc: the texture size, format, filter and usage
	//
	// Returns:
	//   - TextureID: the texture handle
	//   - error: an error if the texture could not be created
	CreateTexture(desc TextureDescriptor) (TextureID, error)

	// SetTextureBorder sets the color returned for samples outside the texture.
	// Only the headless backend samples the border. WebGPU samplers have no border color, so
	// on WebGPU shaders handle out-of-range coordinates themselves.
	//
	// Parameters:
	//   - id: the texture handle
	//   - c: the border color
	//
	// Returns:
	//   - error: ErrUnknownHandle if id is not a live texture
	SetTextureBorder(id TextureID, c common.Color) error

	// CreateBindGroup creates an immutable bind group.
	//
	// Parameters:
	//   - desc: the layout and one entry per layout entry
	//
	// Returns:
	//   - BindGroupID: the bind group handle
	//   - error: an error if the entries do not match the layout
	CreateBindGroup(desc BindGroupDescriptor) (BindGroupID, error)

	// WriteTexture replaces the full contents of a texture in place.
	//
	// Parameters:
	//   - id: the texture handle
	//   - pixels: tightly packed rows in the texture's format
	//
	// Returns:
	//   - error: ErrUnknownHandle, or an error if pixels has the wrong length
	WriteTexture(id TextureID, pixels []byte) error

	// ReadTexture returns a copy of a texture's contents as tightly packed RGBA8 rows.
	// An id of 0 reads the active render target. Backends that cannot read back return an
	// error wrapping errors.ErrUnsupported.
	//
	// Parameters:
	//   - id: the texture handle, or 0
	//
	// Returns:
	//   - []byte: the pixels
	//   - error: an error if the texture cannot be read
	ReadTexture(id TextureID) ([]byte, error)

	// ClearTexture records a clear of a render-target texture.
	//
	// Parameters:
	//   - id: the texture handle
	//   - c: the clear color
	//
	// Returns:
	//   - error: ErrUnknownHandle, or an error if the texture is not a render target
	ClearTexture(id TextureID, c common.Color) error

	// Draw records one draw.
	//
	// Parameters:
	//   - call: the pipeline, bind groups, vertex count and output
	//
	// Returns:
	//   - error: ErrUnknownHandle, ErrNoFrame for the active target outside a frame, or an
	//     error if the bind groups do not match the pipeline
	Draw(call DrawCall) error

	// Release destroys the object behind a handle. Releasing an unknown handle is an error.
	//
	// Parameters:
	//   - h: the handle
	//
	// Returns:
	//   - error: ErrUnknownHandle if h does not name a live object
	Release(h Handle) error

	// BeginFrame acquires the active render target for the frame.
	//
	// Returns:
	//   - error: an error if the target cannot be acquired or a frame is already open
	BeginFrame() error

	// EndFrame submits all work recorded since the last submission.
	//
	// Returns:
	//   - error: ErrNoFrame if no frame is open
	EndFrame() error

	// Present displays the active render target of the last ended frame.
	//
	// Returns:
	//   - error: an error if presentation fails
	Present() error

	// Resize reconfigures the active render target for a new size.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: an error if the surface cannot be reconfigured
	Resize(width, height int) error

	// SetPresentMode changes how frames are presented. Takes effect on the next Resize.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// MinUniformBufferOffsetAlignment returns the alignment required of bind group buffer offsets.
	//
	// Returns:
	//   - uint64: the alignment in bytes
	MinUniformBufferOffsetAlignment() uint64

	// MaxTextureDimension2D returns the largest width or height a texture may have.
	//
	// Returns:
	//   - uint32: the limit in texels
	MaxTextureDimension2D() uint32

	// Stats returns the counts of objects created and work recorded so far.
	//
	// Returns:
	//   - Stats: a snapshot of the counters
	Stats() Stats

	// Destroy releases every object and the device. The renderer is unusable afterwards.
	Destroy()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer with the given backend. The WebGPU backend presents to the
// surface provided by surface; the headless backend ignores it and sizes its render target
// from WithSurfaceSize.
//
// Parameters:
//   - backendType: the backend to create
//   - surface: the surface provider, may be nil for the headless backend
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the created renderer
//   - error: an error if the backend could not be initialised
func NewRenderer(backendType RendererBackendType, surface SurfaceSource, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:               &sync.Mutex{},
		pipelineCache:    make(map[string]PipelineID),
		backendType:      backendType,
		logger:           common.Logger(),
		clearColor:       common.ColorTransparent,
		surfaceWidth:     1,
		surfaceHeight:    1,
		uniformAlignment: 256,

		maxTextureDimension: 8192,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	switch backendType {
	case BackendTypeHeadless:
		r.backend = newHeadlessRendererBackend(r.fragmentFunc, r.clearColor, r.uniformAlignment, r.maxTextureDimension)
	case BackendTypeWGPU:
		if surface == nil {
			return nil, errors.New("renderer: the WebGPU backend needs a surface")
		}
		b, err := newWGPURendererBackend(surface.SurfaceDescriptor(), r.forceFallbackAdapter, r.clearColor, r.logger)
		if err != nil {
			return nil, fmt.Errorf("renderer: %w", err)
		}
		r.backend = b
		r.surfaceWidth, r.surfaceHeight = surface.Width(), surface.Height()
	default:
		return nil, fmt.Errorf("renderer: unknown backend type %d", backendType)
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	if err := r.backend.ConfigureSurface(r.surfaceWidth, r.surfaceHeight); err != nil {
		r.backend.Destroy()
		return nil, fmt.Errorf("renderer: %w", err)
	}
	return r, nil
}

func (r *renderer) CreateBindGroupLayout(desc BindGroupLayoutDescriptor) (BindGroupLayoutID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, err := r.backend.CreateBindGroupLayout(desc)
	if err != nil {
		return 0, err
	}
	r.stats.BindGroupLayouts++
	r.logger.Debug("renderer: created bind group layout", "label", desc.Label, "id", id, "entries", len(desc.Entries))
	return id, nil
}

func (r *renderer) CreatePipeline(p pipeline.Pipeline, layouts ...BindGroupLayoutID) (PipelineID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := p.PipelineKey()
	if id, exists := r.pipelineCache[key]; exists {
		return id, nil
	}
	id, err := r.backend.CreatePipeline(p, layouts)
	if err != nil {
		return 0, err
	}
	r.pipelineCache[key] = id
	r.stats.Pipelines++
	r.logger.Debug("renderer: created pipeline", "key", key, "id", id, "targets", len(p.Targets()))
	return id, nil
}

func (r *renderer) Pipeline(key string) (PipelineID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.pipelineCache[key]
	return id, ok
}

func (r *renderer) CreateBuffer(desc BufferDescriptor) (BufferID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, err := r.backend.CreateBuffer(desc)
	if err != nil {
		return 0, err
	}
	r.stats.Buffers++
	r.logger.Debug("renderer: created buffer", "label", desc.Label, "id", id, "size", desc.Size)
	return id, nil
}

func (r *renderer) WriteBuffer(id BufferID, offset uint64, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.backend.WriteBuffer(id, offset, data); err != nil {
		return err
	}
	r.stats.BufferWrites++
	return nil
}

func (r *renderer) CreateTexture(desc TextureDescriptor) (TextureID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := validateTextureDescriptor(desc, r.backend.MaxTextureDimension2D()); err != nil {
		return 0, err
	}
	id, err := r.backend.CreateTexture(desc)
	if err != nil {
		return 0, err
	}
	r.stats.Textures++
	r.logger.Debug("renderer: created texture", "label", desc.Label, "id", id,
		"width", desc.Width, "height", desc.Height, "format", desc.Format.String())
	return id, nil
}

func (r *renderer) SetTextureBorder(id TextureID, c common.Color) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.SetTextureBorder(id, c)
}

func (r *renderer) CreateBindGroup(desc BindGroupDescriptor) (BindGroupID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, err := r.backend.CreateBindGroup(desc)
	if err != nil {
		return 0, err
	}
	r.stats.BindGroups++
	r.logger.Debug("renderer: created bind group", "label", desc.Label, "id", id)
	return id, nil
}

func (r *renderer) WriteTexture(id TextureID, pixels []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.backend.WriteTexture(id, pixels); err != nil {
		return err
	}
	r.stats.TextureWrites++
	return nil
}

func (r *renderer) ReadTexture(id TextureID) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.ReadTexture(id)
}

func (r *renderer) ClearTexture(id TextureID, c common.Color) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.backend.ClearTexture(id, c); err != nil {
		return err
	}
	r.stats.Clears++
	return nil
}

func (r *renderer) Draw(call DrawCall) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.backend.Draw(call); err != nil {
		return err
	}
	r.stats.Draws++
	return nil
}

func (r *renderer) Release(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.backend.Release(h); err != nil {
		return err
	}
	if pid, ok := h.(PipelineID); ok {
		for key, cached := range r.pipelineCache {
			if cached == pid {
				delete(r.pipelineCache, key)
			}
		}
	}
	return nil
}

func (r *renderer) BeginFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.BeginFrame()
}

func (r *renderer) EndFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.backend.EndFrame(); err != nil {
		return err
	}
	r.stats.Frames++
	return nil
}

func (r *renderer) Present() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.Present()
}

func (r *renderer) Resize(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.surfaceWidth, r.surfaceHeight = width, height
	return r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.SetPresentMode(mode)
}

func (r *renderer) MinUniformBufferOffsetAlignment() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.MinUniformBufferOffsetAlignment()
}

func (r *renderer) MaxTextureDimension2D() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.MaxTextureDimension2D()
}

func (r *renderer) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *renderer) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.Destroy()
	r.pipelineCache = make(map[string]PipelineID)
}
