package renderer

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-gi/common"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPresentMode = &mode
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithLogger sets the logger used for resource creation and adapter diagnostics.
// Defaults to common.Logger().
//
// Parameters:
//   - l: the logger, nil keeps the default
//
// Returns:
//   - RendererBuilderOption: a function that applies the logger to a renderer
func WithLogger(l *slog.Logger) RendererBuilderOption {
	return func(r *renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClearColor sets the color the active render target is cleared to at the start of a frame.
//
// Parameters:
//   - c: the clear color
//
// Returns:
//   - RendererBuilderOption: a function that applies the clear color to a renderer
func WithClearColor(c common.Color) RendererBuilderOption {
	return func(r *renderer) {
		r.clearColor = c
	}
}

// WithSurfaceSize sets the size of the headless backend's render target. The WebGPU backend
// takes its size from the surface provider instead.
//
// Parameters:
//   - width: the width in pixels
//   - height: the height in pixels
//
// Returns:
//   - RendererBuilderOption: a function that applies the surface size to a renderer
func WithSurfaceSize(width, height int) RendererBuilderOption {
	return func(r *renderer) {
		r.surfaceWidth, r.surfaceHeight = width, height
	}
}

// WithFragmentFunc sets the CPU fragment function the headless backend runs for every pixel
// of a draw. Without one, headless draws leave their target unchanged.
//
// Parameters:
//   - fn: the fragment function
//
// Returns:
//   - RendererBuilderOption: a function that applies the fragment function to a renderer
func WithFragmentFunc(fn FragmentFunc) RendererBuilderOption {
	return func(r *renderer) {
		r.fragmentFunc = fn
	}
}

// WithUniformAlignment sets the uniform buffer offset alignment the headless backend reports.
// Defaults to 256, the WebGPU default limit.
//
// Parameters:
//   - alignment: the alignment in bytes
//
// Returns:
//   - RendererBuilderOption: a function that applies the alignment to a renderer
func WithUniformAlignment(alignment uint64) RendererBuilderOption {
	return func(r *renderer) {
		r.uniformAlignment = alignment
	}
}

// WithMaxTextureDimension sets the largest texture side the headless backend accepts.
// Defaults to 8192, the WebGPU default limit. The WebGPU backend reports its device limit.
//
// Parameters:
//   - n: the limit in texels
//
// Returns:
//   - RendererBuilderOption: a function that applies the limit to a renderer
func WithMaxTextureDimension(n uint32) RendererBuilderOption {
	return func(r *renderer) {
		r.maxTextureDimension = n
	}
}
