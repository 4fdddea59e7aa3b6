package renderer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-gi/common"
	"github.com/Carmen-Shannon/oxy-gi/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-gi/engine/renderer/shader"
)

const testShaderSource = `
struct Params {
    value: vec4<f32>,
};

@group(0) @binding(0) var<uniform> params: Params;
@group(1) @binding(0) var tex: texture_2d<f32>;
@group(1) @binding(1) var samp: sampler;

@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(0.0, 0.0, 0.0, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return params.value;
}
`

type testRig struct {
	r        Renderer
	uniform  BindGroupLayoutID
	textures BindGroupLayoutID
	p        pipeline.Pipeline
}

func newTestRig(t *testing.T, opts ...RendererBuilderOption) *testRig {
	t.Helper()
	r, err := NewRenderer(BackendTypeHeadless, nil, opts...)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	t.Cleanup(r.Destroy)

	uniform, err := r.CreateBindGroupLayout(BindGroupLayoutDescriptor{
		Label:   "uniform",
		Entries: []BindGroupLayoutEntry{{Type: BindingTypeUniformBuffer, Visibility: VisibilityFragment, MinBindingSize: 16}},
	})
	if err != nil {
		t.Fatalf("CreateBindGroupLayout: %v", err)
	}
	textures, err := r.CreateBindGroupLayout(BindGroupLayoutDescriptor{
		Label:   "textures",
		Entries: []BindGroupLayoutEntry{{Type: BindingTypeSampledTexture, Visibility: VisibilityFragment}},
	})
	if err != nil {
		t.Fatalf("CreateBindGroupLayout: %v", err)
	}

	s, err := shader.NewShader("test", testShaderSource, shader.WithValidation(false))
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	p := pipeline.NewPipeline("test", s, pipeline.WithTargets(pipeline.TargetOffscreen, pipeline.TargetSurface))
	return &testRig{r: r, uniform: uniform, textures: textures, p: p}
}

// uniformColor returns a fragment function that writes the first four bytes of the first
// uniform binding.
func uniformColor(in *FragmentInput) [4]byte {
	u := in.Uniforms[0]
	return [4]byte{u[0], u[1], u[2], u[3]}
}

func TestPipelineCacheByKey(t *testing.T) {
	rig := newTestRig(t)

	first, err := rig.r.CreatePipeline(rig.p, rig.uniform, rig.textures)
	if err != nil {
		t.Fatalf("CreatePipeline: %v", err)
	}
	second, err := rig.r.CreatePipeline(rig.p, rig.uniform, rig.textures)
	if err != nil {
		t.Fatalf("CreatePipeline: %v", err)
	}
	if first != second {
		t.Errorf("cached pipeline = %d, want %d", second, first)
	}
	if got, ok := rig.r.Pipeline("test"); !ok || got != first {
		t.Errorf("Pipeline(test) = %d, %v", got, ok)
	}
	if got := rig.r.Stats().Pipelines; got != 1 {
		t.Errorf("Stats().Pipelines = %d, want 1", got)
	}

	if err := rig.r.Release(first); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, ok := rig.r.Pipeline("test"); ok {
		t.Error("released pipeline is still cached")
	}
}

func TestCreateBindGroupValidation(t *testing.T) {
	rig := newTestRig(t)
	buf, err := rig.r.CreateBuffer(BufferDescriptor{Label: "u", Size: 64})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	tex, err := rig.r.CreateTexture(TextureDescriptor{Label: "t", Width: 2, Height: 2, Format: TextureFormatRGBA8})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}

	tests := []struct {
		name    string
		desc    BindGroupDescriptor
		wantErr error
	}{
		{
			name: "valid buffer range",
			desc: BindGroupDescriptor{Layout: rig.uniform, Entries: []BindGroupEntry{{Buffer: buf, Offset: 32, Size: 16}}},
		},
		{
			name: "rest of buffer",
			desc: BindGroupDescriptor{Layout: rig.uniform, Entries: []BindGroupEntry{{Buffer: buf, Offset: 48}}},
		},
		{
			name:    "range past end",
			desc:    BindGroupDescriptor{Layout: rig.uniform, Entries: []BindGroupEntry{{Buffer: buf, Offset: 56, Size: 16}}},
			wantErr: ErrInvalidDescriptor,
		},
		{
			name:    "below min binding size",
			desc:    BindGroupDescriptor{Layout: rig.uniform, Entries: []BindGroupEntry{{Buffer: buf, Size: 8}}},
			wantErr: ErrInvalidDescriptor,
		},
		{
			name:    "entry count mismatch",
			desc:    BindGroupDescriptor{Layout: rig.uniform},
			wantErr: ErrInvalidDescriptor,
		},
		{
			name:    "unknown buffer",
			desc:    BindGroupDescriptor{Layout: rig.uniform, Entries: []BindGroupEntry{{Buffer: 999, Size: 16}}},
			wantErr: ErrUnknownHandle,
		},
		{
			name:    "unknown layout",
			desc:    BindGroupDescriptor{Layout: 999},
			wantErr: ErrUnknownHandle,
		},
		{
			name: "valid texture",
			desc: BindGroupDescriptor{Layout: rig.textures, Entries: []BindGroupEntry{{Texture: tex}}},
		},
		{
			name:    "unknown texture",
			desc:    BindGroupDescriptor{Layout: rig.textures, Entries: []BindGroupEntry{{Texture: 999}}},
			wantErr: ErrUnknownHandle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rig.r.CreateBindGroup(tt.desc)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("CreateBindGroup: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CreateBindGroup error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDrawRunsFragmentFunc(t *testing.T) {
	rig := newTestRig(t, WithFragmentFunc(uniformColor), WithSurfaceSize(3, 2))
	p, err := rig.r.CreatePipeline(rig.p, rig.uniform, rig.textures)
	if err != nil {
		t.Fatalf("CreatePipeline: %v", err)
	}
	buf, _ := rig.r.CreateBuffer(BufferDescriptor{Label: "u", Size: 16})
	if err := rig.r.WriteBuffer(buf, 0, []byte{10, 20, 30, 40}); err != nil {
		t.Fatalf("WriteBuffer: %v", err)
	}
	src, _ := rig.r.CreateTexture(TextureDescriptor{Label: "src", Width: 1, Height: 1, Format: TextureFormatRGB8})
	dst, _ := rig.r.CreateTexture(TextureDescriptor{Label: "dst", Width: 2, Height: 2, Format: TextureFormatRGBA8, RenderTarget: true})
	ubg, err := rig.r.CreateBindGroup(BindGroupDescriptor{Layout: rig.uniform, Entries: []BindGroupEntry{{Buffer: buf}}})
	if err != nil {
		t.Fatalf("CreateBindGroup: %v", err)
	}
	tbg, err := rig.r.CreateBindGroup(BindGroupDescriptor{Layout: rig.textures, Entries: []BindGroupEntry{{Texture: src}}})
	if err != nil {
		t.Fatalf("CreateBindGroup: %v", err)
	}

	call := DrawCall{Pipeline: p, BindGroups: []BindGroupID{ubg, tbg}, VertexCount: 6, Output: dst}
	if err := rig.r.Draw(call); err != nil {
		t.Fatalf("Draw offscreen: %v", err)
	}
	got, err := rig.r.ReadTexture(dst)
	if err != nil {
		t.Fatalf("ReadTexture: %v", err)
	}
	want := bytes.Repeat([]byte{10, 20, 30, 40}, 4)
	if !bytes.Equal(got, want) {
		t.Errorf("offscreen pixels = %v, want %v", got, want)
	}

	call.Output = 0
	if err := rig.r.Draw(call); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("Draw to surface outside frame error = %v, want ErrNoFrame", err)
	}
	if err := rig.r.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	if err := rig.r.Draw(call); err != nil {
		t.Fatalf("Draw to surface: %v", err)
	}
	if err := rig.r.EndFrame(); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	if err := rig.r.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}
	surface, err := rig.r.ReadTexture(0)
	if err != nil {
		t.Fatalf("ReadTexture(0): %v", err)
	}
	if want := bytes.Repeat([]byte{10, 20, 30, 40}, 6); !bytes.Equal(surface, want) {
		t.Errorf("surface pixels = %v, want %v", surface, want)
	}

	stats := rig.r.Stats()
	if stats.Draws != 2 || stats.Frames != 1 || stats.BufferWrites != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestDrawRejectsMismatchedBindGroups(t *testing.T) {
	rig := newTestRig(t)
	p, err := rig.r.CreatePipeline(rig.p, rig.uniform, rig.textures)
	if err != nil {
		t.Fatalf("CreatePipeline: %v", err)
	}
	buf, _ := rig.r.CreateBuffer(BufferDescriptor{Label: "u", Size: 16})
	ubg, _ := rig.r.CreateBindGroup(BindGroupDescriptor{Layout: rig.uniform, Entries: []BindGroupEntry{{Buffer: buf}}})
	dst, _ := rig.r.CreateTexture(TextureDescriptor{Label: "dst", Width: 1, Height: 1, Format: TextureFormatRGBA8, RenderTarget: true})
	input, _ := rig.r.CreateTexture(TextureDescriptor{Label: "input", Width: 1, Height: 1, Format: TextureFormatRGB8})

	tests := []struct {
		name    string
		call    DrawCall
		wantErr error
	}{
		{"too few groups", DrawCall{Pipeline: p, BindGroups: []BindGroupID{ubg}, Output: dst}, ErrInvalidDescriptor},
		{"swapped groups", DrawCall{Pipeline: p, BindGroups: []BindGroupID{ubg, ubg}, Output: dst}, ErrInvalidDescriptor},
		{"unknown pipeline", DrawCall{Pipeline: 999, Output: dst}, ErrUnknownHandle},
		{"output not a render target", DrawCall{Pipeline: p, BindGroups: []BindGroupID{ubg, ubg}, Output: input}, ErrInvalidDescriptor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := rig.r.Draw(tt.call); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Draw error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTextureBorderAndRGBLoad(t *testing.T) {
	b := newHeadlessRendererBackend(nil, common.ColorTransparent, 256, 8192)
	id, err := b.CreateTexture(TextureDescriptor{Label: "rgb", Width: 2, Height: 1, Format: TextureFormatRGB8})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	if err := b.WriteTexture(id, []byte{1, 2, 3, 4, 5, 6}); err != nil {
		t.Fatalf("WriteTexture: %v", err)
	}
	if err := b.WriteTexture(id, []byte{1, 2, 3}); err == nil {
		t.Error("WriteTexture with short data succeeded")
	}
	if err := b.SetTextureBorder(id, common.ColorWhite); err != nil {
		t.Fatalf("SetTextureBorder: %v", err)
	}

	tex := b.textures[id]
	tests := []struct {
		x, y int
		want [4]byte
	}{
		{0, 0, [4]byte{1, 2, 3, 255}},
		{1, 0, [4]byte{4, 5, 6, 255}},
		{-1, 0, [4]byte{255, 255, 255, 255}},
		{2, 0, [4]byte{255, 255, 255, 255}},
		{0, 1, [4]byte{255, 255, 255, 255}},
	}
	for _, tt := range tests {
		if got := tex.Load(tt.x, tt.y); got != tt.want {
			t.Errorf("Load(%d, %d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}

	pix, err := b.ReadTexture(id)
	if err != nil {
		t.Fatalf("ReadTexture: %v", err)
	}
	if want := []byte{1, 2, 3, 255, 4, 5, 6, 255}; !bytes.Equal(pix, want) {
		t.Errorf("ReadTexture = %v, want %v", pix, want)
	}
}

func TestClearTexture(t *testing.T) {
	rig := newTestRig(t)
	target, _ := rig.r.CreateTexture(TextureDescriptor{Label: "rt", Width: 2, Height: 1, Format: TextureFormatRGBA8, RenderTarget: true})
	input, _ := rig.r.CreateTexture(TextureDescriptor{Label: "in", Width: 2, Height: 1, Format: TextureFormatRGBA8})

	if err := rig.r.ClearTexture(target, common.ColorWhite); err != nil {
		t.Fatalf("ClearTexture: %v", err)
	}
	pix, _ := rig.r.ReadTexture(target)
	if want := bytes.Repeat([]byte{255}, 8); !bytes.Equal(pix, want) {
		t.Errorf("cleared pixels = %v, want %v", pix, want)
	}
	if err := rig.r.ClearTexture(input, common.ColorWhite); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("ClearTexture(non-target) error = %v, want ErrInvalidDescriptor", err)
	}
	if got := rig.r.Stats().Clears; got != 1 {
		t.Errorf("Stats().Clears = %d, want 1", got)
	}
}

func TestReleaseUnknownHandle(t *testing.T) {
	rig := newTestRig(t)
	buf, _ := rig.r.CreateBuffer(BufferDescriptor{Label: "u", Size: 16})

	if err := rig.r.Release(buf); err != nil {
		t.Fatalf("Release: %v", err)
	}
	handles := []Handle{buf, TextureID(999), BindGroupID(999), PipelineID(999), BindGroupLayoutID(999)}
	for _, h := range handles {
		if err := rig.r.Release(h); !errors.Is(err, ErrUnknownHandle) {
			t.Errorf("Release(%s %d) error = %v, want ErrUnknownHandle", h.Kind(), h.Raw(), err)
		}
	}
	if err := rig.r.WriteBuffer(buf, 0, []byte{1}); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("WriteBuffer after release error = %v, want ErrUnknownHandle", err)
	}
}

func TestFrameOrdering(t *testing.T) {
	rig := newTestRig(t, WithClearColor(common.ColorWhite), WithSurfaceSize(1, 1))

	if err := rig.r.EndFrame(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("EndFrame without BeginFrame error = %v, want ErrNoFrame", err)
	}
	if err := rig.r.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	if err := rig.r.BeginFrame(); err == nil {
		t.Error("nested BeginFrame succeeded")
	}
	pix, _ := rig.r.ReadTexture(0)
	if want := []byte{255, 255, 255, 255}; !bytes.Equal(pix, want) {
		t.Errorf("surface after BeginFrame = %v, want clear color %v", pix, want)
	}
	if err := rig.r.EndFrame(); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
}

func TestRendererValidation(t *testing.T) {
	if _, err := NewRenderer(BackendTypeWGPU, nil); err == nil {
		t.Error("WebGPU renderer without a surface succeeded")
	}
	if _, err := NewRenderer(BackendTypeHeadless, nil, WithSurfaceSize(0, 4)); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("zero surface error = %v, want ErrInvalidDescriptor", err)
	}

	rig := newTestRig(t, WithUniformAlignment(64))
	if got := rig.r.MinUniformBufferOffsetAlignment(); got != 64 {
		t.Errorf("MinUniformBufferOffsetAlignment() = %d, want 64", got)
	}
	tests := []TextureDescriptor{
		{Label: "zero", Width: 0, Height: 1, Format: TextureFormatRGBA8},
		{Label: "no format", Width: 1, Height: 1},
	}
	for _, desc := range tests {
		if _, err := rig.r.CreateTexture(desc); !errors.Is(err, ErrInvalidDescriptor) {
			t.Errorf("CreateTexture(%s) error = %v, want ErrInvalidDescriptor", desc.Label, err)
		}
	}
	if _, err := rig.r.CreateBuffer(BufferDescriptor{Label: "empty"}); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("CreateBuffer(size 0) error = %v, want ErrInvalidDescriptor", err)
	}
}

func TestMaxTextureDimension(t *testing.T) {
	if got := newTestRig(t).r.MaxTextureDimension2D(); got != 8192 {
		t.Errorf("default MaxTextureDimension2D() = %d, want 8192", got)
	}

	rig := newTestRig(t, WithMaxTextureDimension(16))
	if got := rig.r.MaxTextureDimension2D(); got != 16 {
		t.Fatalf("MaxTextureDimension2D() = %d, want 16", got)
	}
	tests := []struct {
		name          string
		width, height int
		wantErr       bool
	}{
		{"at limit", 16, 16, false},
		{"wide", 17, 1, true},
		{"tall", 1, 17, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rig.r.CreateTexture(TextureDescriptor{Label: tt.name, Width: tt.width, Height: tt.height, Format: TextureFormatRGBA8})
			if tt.wantErr && !errors.Is(err, ErrInvalidDescriptor) {
				t.Errorf("CreateTexture(%dx%d) error = %v, want ErrInvalidDescriptor", tt.width, tt.height, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("CreateTexture(%dx%d) error = %v", tt.width, tt.height, err)
			}
		})
	}
}

func TestExpandRGBToRGBA(t *testing.T) {
	src := []byte{1, 2, 3, 4, 5, 6}
	dst := make([]byte, 8)
	expandRGBToRGBA(dst, src)
	if want := []byte{1, 2, 3, 255, 4, 5, 6, 255}; !bytes.Equal(dst, want) {
		t.Errorf("expandRGBToRGBA = %v, want %v", dst, want)
	}
}

func TestColorToRGBA8(t *testing.T) {
	tests := []struct {
		name string
		c    common.Color
		want [4]byte
	}{
		{"transparent", common.ColorTransparent, [4]byte{0, 0, 0, 0}},
		{"white", common.ColorWhite, [4]byte{255, 255, 255, 255}},
		{"half", common.Color{R: 0.5, G: 0.5, B: 0.5, A: 1}, [4]byte{128, 128, 128, 255}},
		{"clamped", common.Color{R: -1, G: 2, B: 0, A: 1}, [4]byte{0, 255, 0, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := colorToRGBA8(tt.c.R, tt.c.G, tt.c.B, tt.c.A); got != tt.want {
				t.Errorf("colorToRGBA8 = %v, want %v", got, tt.want)
			}
		})
	}
}
