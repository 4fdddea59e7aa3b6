package gi

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-gi/engine/lifetime"
	"github.com/Carmen-Shannon/oxy-gi/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gi/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-gi/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrShaderLayout is returned when the GI shader does not declare the bindings the cascade
// passes bind.
var ErrShaderLayout = errors.New("gi: shader layout mismatch")

// fullScreenVertices is the vertex count of the two-triangle full-screen quad every GI draw
// issues. The shader builds the quad from the vertex index.
const fullScreenVertices = 6

// Resources is the immutable set of GPU objects a System renders with. It is built exactly
// once by NewSystem.
type Resources struct {
	UniformLayout renderer.BindGroupLayoutID
	TextureLayout renderer.BindGroupLayoutID
	Pipeline      renderer.PipelineID

	// UniformBuffer holds CascadeCount+1 parameter blocks UniformStride bytes apart.
	UniformBuffer renderer.BufferID
	UniformStride uint64

	Input    renderer.TextureID
	PingPong [2]renderer.TextureID

	// TextureBindGroups pairs the input texture with PingPong[slot], indexed by Slot.
	TextureBindGroups [2]renderer.BindGroupID

	// CascadeBindGroups binds uniform block i for cascade i.
	CascadeBindGroups []renderer.BindGroupID

	// CompositeBindGroup binds the last uniform block.
	CompositeBindGroup renderer.BindGroupID

	// Params is the cascade-0 parameter set shared by every block.
	Params GPUCascadeParams
}

// clone returns a copy that shares no slices with r.
func (r Resources) clone() Resources {
	r.CascadeBindGroups = append([]renderer.BindGroupID(nil), r.CascadeBindGroups...)
	return r
}

// resourceInitializer creates the Resources of a System, registering every long-lived object
// with lt.
type resourceInitializer struct {
	r      renderer.Renderer
	lt     *lifetime.Lifetime
	logger *slog.Logger
	cfg    *system
}

// track registers the release of h with the owning scope.
func (ri *resourceInitializer) track(h renderer.Handle) error {
	return ri.lt.Add(func() error { return ri.r.Release(h) })
}

func (ri *resourceInitializer) init() (Resources, error) {
	cfg := ri.cfg
	n0 := ProbeCount(cfg.width, cfg.d0)
	if n0 <= 0 {
		return Resources{}, fmt.Errorf("gi: probe count %d for width %d and spacing %g", n0, cfg.width, cfg.d0)
	}
	res := Resources{
		Params: GPUCascadeParams{
			D0:           cfg.d0,
			R0:           int32(cfg.r0),
			N0:           int32(n0),
			CascadeCount: int32(cfg.cn),
			Resolution:   [2]float32{float32(cfg.width), float32(cfg.height)},
			Sky:          [4]float32{float32(cfg.skyColor.R), float32(cfg.skyColor.G), float32(cfg.skyColor.B), float32(cfg.skyColor.A)},
		},
	}

	if err := ri.createLayouts(&res); err != nil {
		return Resources{}, err
	}
	if err := ri.createPipeline(&res); err != nil {
		return Resources{}, err
	}
	if err := ri.createUniforms(&res); err != nil {
		return Resources{}, err
	}
	if err := ri.createTextures(&res); err != nil {
		return Resources{}, err
	}
	if err := ri.createTextureBindGroups(&res); err != nil {
		return Resources{}, err
	}
	return res, nil
}

func (ri *resourceInitializer) createLayouts(res *Resources) error {
	var err error
	res.UniformLayout, err = ri.r.CreateBindGroupLayout(renderer.BindGroupLayoutDescriptor{
		Label: "GI Uniform Layout",
		Entries: []renderer.BindGroupLayoutEntry{
			{Type: renderer.BindingTypeUniformBuffer, Visibility: renderer.VisibilityFragment, MinBindingSize: uint64(res.Params.Size())},
		},
	})
	if err != nil {
		return fmt.Errorf("gi: failed to create uniform layout: %w", err)
	}
	if err := ri.track(res.UniformLayout); err != nil {
		return err
	}

	res.TextureLayout, err = ri.r.CreateBindGroupLayout(renderer.BindGroupLayoutDescriptor{
		Label: "GI Texture Layout",
		Entries: []renderer.BindGroupLayoutEntry{
			{Type: renderer.BindingTypeSampledTexture, Visibility: renderer.VisibilityFragment},
			{Type: renderer.BindingTypeSampledTexture, Visibility: renderer.VisibilityFragment},
		},
	})
	if err != nil {
		return fmt.Errorf("gi: failed to create texture layout: %w", err)
	}
	return ri.track(res.TextureLayout)
}

// createPipeline loads the shader inside a temporary scope that is destroyed as soon as the
// pipeline is compiled.
func (ri *resourceInitializer) createPipeline(res *Resources) (err error) {
	cfg := ri.cfg
	temp := lifetime.New("gi shader source")
	defer func() {
		if derr := temp.Destroy(); derr != nil {
			ri.logger.Warn("gi: failed to release shader source", "path", cfg.shaderPath, "error", derr)
		}
	}()

	s, err := shader.Load("gi", cfg.shaderPath, temp,
		shader.WithInclude(CascadeParamsInclude, cascadeParamsIncludeDef()),
		shader.WithValidation(cfg.validateShader),
	)
	if err != nil {
		return fmt.Errorf("gi: failed to load shader: %w", err)
	}
	if err := CheckShader(s); err != nil {
		return fmt.Errorf("gi: %s: %w", cfg.shaderPath, err)
	}

	// Pipelines are cached by key and bound to this System's layouts, so the key is per System.
	key := fmt.Sprintf("gi:%s#%d", cfg.shaderPath, cfg.id)
	p := newPipeline(key, s)
	res.Pipeline, err = ri.r.CreatePipeline(p, res.UniformLayout, res.TextureLayout)
	if err != nil {
		return fmt.Errorf("gi: failed to create pipeline: %w", err)
	}
	ri.logger.Debug("gi: pipeline compiled", "key", key, "vertex", s.EntryPoint(shader.ShaderStageVertex), "fragment", s.EntryPoint(shader.ShaderStageFragment))
	return ri.track(res.Pipeline)
}

// newPipeline describes the one pipeline every GI draw uses: a full-screen triangle list that
// overwrites all four channels of either an offscreen cascade texture or the surface.
func newPipeline(key string, s shader.Shader) pipeline.Pipeline {
	return pipeline.NewPipeline(key, s,
		pipeline.WithTargets(pipeline.TargetOffscreen, pipeline.TargetSurface),
		pipeline.WithTopology(wgpu.PrimitiveTopologyTriangleList),
		pipeline.WithFrontFace(wgpu.FrontFaceCCW),
		pipeline.WithCullMode(wgpu.CullModeNone),
		pipeline.WithWriteMask(wgpu.ColorWriteMaskAll),
		pipeline.WithBlendEnabled(false),
	)
}

// createUniforms packs cn cascade blocks followed by the composite block.
func (ri *resourceInitializer) createUniforms(res *Resources) error {
	cn := ri.cfg.cn
	blockSize := uint64(res.Params.Size())
	p, err := BeginUniformPacker(ri.r, blockSize, cn+1, ri.lt)
	if err != nil {
		return err
	}
	res.UniformBuffer = p.Buffer()
	res.UniformStride = p.Stride()

	addSkyLight := int32(0)
	if ri.cfg.skyLight {
		addSkyLight = 1
	}
	res.CascadeBindGroups = make([]renderer.BindGroupID, cn)
	for i := range cn + 1 {
		params := res.Params
		label := fmt.Sprintf("GI Cascade %d Uniforms", i)
		if i < cn {
			params.CascadeIndex = int32(i)
			params.AddSkyLight = addSkyLight
		} else {
			params.RenderFlag = 1
			label = "GI Composite Uniforms"
		}

		block, err := p.Data()
		if err != nil {
			return err
		}
		params.MarshalInto(block)
		entry, err := p.Entry()
		if err != nil {
			return err
		}
		bg, err := ri.r.CreateBindGroup(renderer.BindGroupDescriptor{
			Label:   label,
			Layout:  res.UniformLayout,
			Entries: []renderer.BindGroupEntry{entry},
		})
		if err != nil {
			return fmt.Errorf("gi: failed to create %s bind group: %w", label, err)
		}
		if err := ri.track(bg); err != nil {
			return err
		}

		if i < cn {
			res.CascadeBindGroups[i] = bg
			if err := p.Next(); err != nil {
				return err
			}
		} else {
			res.CompositeBindGroup = bg
		}
	}
	if err := p.End(); err != nil {
		return err
	}
	ri.logger.Debug("gi: uniform blocks packed", "blocks", cn+1, "block_size", blockSize, "stride", res.UniformStride)
	return nil
}

func (ri *resourceInitializer) createTextures(res *Resources) error {
	cfg := ri.cfg
	var err error
	res.Input, err = ri.r.CreateTexture(renderer.TextureDescriptor{
		Label:  "GI Input",
		Width:  cfg.width,
		Height: cfg.height,
		Format: renderer.TextureFormatRGB8,
		Filter: renderer.FilterModeNearest,
	})
	if err != nil {
		return fmt.Errorf("gi: failed to create input texture: %w", err)
	}
	if err := ri.track(res.Input); err != nil {
		return err
	}
	if err := ri.r.SetTextureBorder(res.Input, cfg.skyColor); err != nil {
		return fmt.Errorf("gi: failed to set input border: %w", err)
	}

	width := int(res.Params.R0) * int(res.Params.N0)
	height := int(res.Params.N0)
	for _, slot := range []Slot{SlotA, SlotB} {
		id, err := ri.r.CreateTexture(renderer.TextureDescriptor{
			Label:        "GI Cascade " + slot.String(),
			Width:        width,
			Height:       height,
			Format:       renderer.TextureFormatRGBA8,
			Filter:       renderer.FilterModeNearest,
			RenderTarget: true,
		})
		if err != nil {
			return fmt.Errorf("gi: failed to create cascade texture %s: %w", slot, err)
		}
		if err := ri.track(id); err != nil {
			return err
		}
		res.PingPong[slot] = id
	}
	ri.logger.Debug("gi: textures created", "input_width", cfg.width, "input_height", cfg.height, "cascade_width", width, "cascade_height", height)
	return nil
}

func (ri *resourceInitializer) createTextureBindGroups(res *Resources) error {
	for _, slot := range []Slot{SlotA, SlotB} {
		bg, err := ri.r.CreateBindGroup(renderer.BindGroupDescriptor{
			Label:  "GI Textures " + slot.String(),
			Layout: res.TextureLayout,
			Entries: []renderer.BindGroupEntry{
				{Texture: res.Input},
				{Texture: res.PingPong[slot]},
			},
		})
		if err != nil {
			return fmt.Errorf("gi: failed to create texture bind group %s: %w", slot, err)
		}
		if err := ri.track(bg); err != nil {
			return err
		}
		res.TextureBindGroups[slot] = bg
	}
	return nil
}

// CheckShader reports whether s declares what the cascade passes bind: vertex and fragment
// entry points, a CascadeParams-sized uniform in group 0, and two textures in group 1.
//
// Parameters:
//   - s: the shader to check
//
// Returns:
//   - error: shader.ErrMissingEntryPoint or ErrShaderLayout describing the first mismatch
func CheckShader(s shader.Shader) error {
	if err := shader.RequireEntryPoints(s, shader.ShaderStageVertex, shader.ShaderStageFragment); err != nil {
		return err
	}

	want := uint64((&GPUCascadeParams{}).Size())
	uniformOK := false
	for _, b := range s.BindGroup(0) {
		if b.Kind == shader.BindingKindUniform {
			if b.Size != want {
				return fmt.Errorf("%w: group 0 uniform %q is %d bytes, want %d", ErrShaderLayout, b.Name, b.Size, want)
			}
			uniformOK = true
		}
	}
	if !uniformOK {
		return fmt.Errorf("%w: group 0 declares no uniform buffer", ErrShaderLayout)
	}

	textures := 0
	for _, b := range s.BindGroup(1) {
		if b.Kind == shader.BindingKindTexture {
			textures++
		}
	}
	if textures != 2 {
		return fmt.Errorf("%w: group 1 declares %d textures, want 2", ErrShaderLayout, textures)
	}
	return nil
}
