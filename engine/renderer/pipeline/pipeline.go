package pipeline

import (
	"github.com/Carmen-Shannon/oxy-gi/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// Target identifies a kind of color attachment a render pipeline must be able to write.
// A pipeline is compiled once per target it declares.
type Target int

const (
	// TargetOffscreen is an RGBA8 render-target texture.
	TargetOffscreen Target = iota

	// TargetSurface is the presentation surface, whose format is chosen by the backend.
	TargetSurface
)

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	// pipelineKey is the unique identifier for this pipeline, used for caching and lookups
	pipelineKey string

	// shader holds both the vertex and fragment entry points
	shader shader.Shader

	targets []Target

	blendEnabled bool
	cullMode     wgpu.CullMode
	topology     wgpu.PrimitiveTopology
	frontFace    wgpu.FrontFace
	writeMask    wgpu.ColorWriteMask
	blendState   *wgpu.BlendState
}

// Pipeline describes a full-screen render pipeline: the shader that provides its vertex and
// fragment stages, the targets it writes, and its fixed-function state. It carries no GPU
// objects; the renderer compiles it and hands back a handle.
type Pipeline interface {
	// PipelineKey returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Shader returns the shader providing the vertex and fragment entry points.
	//
	// Returns:
	//   - shader.Shader: the pipeline shader
	Shader() shader.Shader

	// Targets returns the kinds of color attachment the pipeline is compiled for.
	//
	// Returns:
	//   - []Target: the declared targets, never empty
	Targets() []Target

	// HasTarget reports whether the pipeline was compiled for the given target.
	//
	// Parameters:
	//   - t: the target to check
	//
	// Returns:
	//   - bool: true if t is one of Targets()
	HasTarget(t Target) bool

	// BlendEnabled returns whether blending is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if blending is enabled, false otherwise
	BlendEnabled() bool

	// CullMode returns the cull mode configured for this pipeline.
	//
	// Returns:
	//   - wgpu.CullMode: the cull mode for this pipeline
	CullMode() wgpu.CullMode

	// Topology returns the primitive topology configured for this pipeline.
	//
	// Returns:
	//   - wgpu.PrimitiveTopology: the primitive topology for this pipeline
	Topology() wgpu.PrimitiveTopology

	// FrontFace returns the front face winding order configured for this pipeline.
	//
	// Returns:
	//   - wgpu.FrontFace: the front face winding order for this pipeline
	FrontFace() wgpu.FrontFace

	// WriteMask returns the color write mask configured for this pipeline.
	//
	// Returns:
	//   - wgpu.ColorWriteMask: the color write mask for this pipeline
	WriteMask() wgpu.ColorWriteMask

	// BlendState returns the blend state used when blending is enabled.
	//
	// Returns:
	//   - *wgpu.BlendState: the blend state for this pipeline
	BlendState() *wgpu.BlendState
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a pipeline description for the given shader. Without WithTargets the
// pipeline writes offscreen textures only. Full-screen passes need no culling, so the default
// cull mode is none with a triangle-list topology.
//
// Parameters:
//   - pipelineKey: the unique identifier for this pipeline
//   - s: the shader providing the vertex and fragment stages
//   - opts: variadic list of PipelineBuilderOption functions
//
// Returns:
//   - Pipeline: the configured pipeline description
func NewPipeline(pipelineKey string, s shader.Shader, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:  pipelineKey,
		shader:       s,
		targets:      []Target{TargetOffscreen},
		blendEnabled: false,
		cullMode:     wgpu.CullModeNone,
		topology:     wgpu.PrimitiveTopologyTriangleList,
		frontFace:    wgpu.FrontFaceCCW,
		writeMask:    wgpu.ColorWriteMaskAll,
		blendState: &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	if len(p.targets) == 0 {
		p.targets = []Target{TargetOffscreen}
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Shader() shader.Shader {
	return p.shader
}

func (p *pipeline) Targets() []Target {
	return p.targets
}

func (p *pipeline) HasTarget(t Target) bool {
	for _, have := range p.targets {
		if have == t {
			return true
		}
	}
	return false
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendEnabled
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) FrontFace() wgpu.FrontFace {
	return p.frontFace
}

func (p *pipeline) WriteMask() wgpu.ColorWriteMask {
	return p.writeMask
}

func (p *pipeline) BlendState() *wgpu.BlendState {
	return p.blendState
}
