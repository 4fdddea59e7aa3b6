package renderer

import (
	"github.com/Carmen-Shannon/oxy-gi/common"
	"github.com/Carmen-Shannon/oxy-gi/engine/renderer/pipeline"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend. It needs a window.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeHeadless selects the in-memory backend, which runs fragment work on the CPU
	// through a FragmentFunc and needs no window or GPU.
	BackendTypeHeadless
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// RendererBackend is the interface every backend implements. The Renderer serialises calls
// into it, counts them and caches pipelines by key; the backend owns the objects behind the
// handles it returns.
type RendererBackend interface {
	CreateBindGroupLayout(desc BindGroupLayoutDescriptor) (BindGroupLayoutID, error)
	CreatePipeline(p pipeline.Pipeline, layouts []BindGroupLayoutID) (PipelineID, error)
	CreateBuffer(desc BufferDescriptor) (BufferID, error)
	WriteBuffer(id BufferID, offset uint64, data []byte) error
	CreateTexture(desc TextureDescriptor) (TextureID, error)
	SetTextureBorder(id TextureID, c common.Color) error
	CreateBindGroup(desc BindGroupDescriptor) (BindGroupID, error)
	WriteTexture(id TextureID, pixels []byte) error
	ReadTexture(id TextureID) ([]byte, error)
	ClearTexture(id TextureID, c common.Color) error
	Draw(call DrawCall) error
	Release(h Handle) error

	BeginFrame() error
	EndFrame() error
	Present() error

	// ConfigureSurface sizes the active render target.
	ConfigureSurface(width, height int) error
	SetPresentMode(mode PresentMode)
	MinUniformBufferOffsetAlignment() uint64
	MaxTextureDimension2D() uint32

	// Destroy releases every object the backend still owns along with the device.
	Destroy()
}
