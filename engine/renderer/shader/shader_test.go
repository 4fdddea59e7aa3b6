package shader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-gi/engine/lifetime"
)

const paramsInclude = `struct Params {
    d0: f32,
    r0: i32,
    n0: i32,
    ci: i32,
    cn: i32,
    do_render: i32,
    add_sky_light: i32,
    _pad: i32,
    resolution: vec2<f32>,
    _pad2: vec2<f32>,
}`

const testSource = `//@oxy:include params
//@oxy:group 0 0 uniform params params

/* block comment with @group(9) @binding(9) var<uniform> ghost: f32; */
@group(1) @binding(3) var cascade_sampler: sampler;
@group(1) @binding(0) var input_tex: texture_2d<f32>;
@group(1) @binding(1) var input_sampler: sampler;
@group(1) @binding(2) var cascade_tex: texture_2d<f32>;

struct VertexOut {
    @builtin(position) pos: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> VertexOut {
    var out: VertexOut;
    return out;
}

// @fragment fn commented_out() {}
@fragment
fn fs_main(in: VertexOut) -> @location(0) vec4<f32> {
    return vec4<f32>(0.0);
}
`

func newTestShader(t *testing.T, source string) Shader {
	t.Helper()
	s, err := NewShader("test", source,
		WithInclude("params", Include{Source: paramsInclude, Type: "Params"}),
		WithValidation(false),
	)
	if err != nil {
		t.Fatalf("NewShader() error = %v", err)
	}
	return s
}

func TestNewShaderReflection(t *testing.T) {
	s := newTestShader(t, testSource)

	if got := s.EntryPoint(ShaderStageVertex); got != "vs_main" {
		t.Errorf("vertex entry point = %q, want vs_main", got)
	}
	if got := s.EntryPoint(ShaderStageFragment); got != "fs_main" {
		t.Errorf("fragment entry point = %q, want fs_main", got)
	}

	g0 := s.BindGroup(0)
	if len(g0) != 1 {
		t.Fatalf("group 0 has %d bindings, want 1", len(g0))
	}
	if g0[0].Kind != BindingKindUniform || g0[0].Size != 48 || g0[0].Name != "params" {
		t.Errorf("group 0 binding = %+v, want uniform params of 48 bytes", g0[0])
	}

	g1 := s.BindGroup(1)
	wantKinds := []BindingKind{BindingKindTexture, BindingKindSampler, BindingKindTexture, BindingKindSampler}
	if len(g1) != len(wantKinds) {
		t.Fatalf("group 1 has %d bindings, want %d", len(g1), len(wantKinds))
	}
	for i, b := range g1 {
		if b.Binding != i || b.Kind != wantKinds[i] {
			t.Errorf("group 1 entry %d = binding %d %s, want binding %d %s", i, b.Binding, b.Kind, i, wantKinds[i])
		}
	}

	if _, ok := s.BindGroups()[9]; ok {
		t.Error("declaration inside a block comment was reflected")
	}
	if b, ok := s.BindingByName("cascade_tex"); !ok || b.Group != 1 || b.Binding != 2 {
		t.Errorf("BindingByName(cascade_tex) = %+v, %v", b, ok)
	}
	if len(s.Declarations()) != 1 {
		t.Errorf("Declarations() = %d, want 1", len(s.Declarations()))
	}
	if !strings.Contains(s.Source(), "@group(0) @binding(0) var<uniform> params: Params;") {
		t.Error("generated group declaration missing from processed source")
	}
}

func TestRequireEntryPoints(t *testing.T) {
	s := newTestShader(t, "@fragment\nfn fs() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }\n")
	if err := RequireEntryPoints(s, ShaderStageFragment); err != nil {
		t.Fatalf("RequireEntryPoints(fragment) = %v", err)
	}
	err := RequireEntryPoints(s, ShaderStageVertex, ShaderStageFragment)
	if !errors.Is(err, ErrMissingEntryPoint) {
		t.Fatalf("RequireEntryPoints(vertex) = %v, want ErrMissingEntryPoint", err)
	}
}

func TestPreProcessorErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"unknown include", "//@oxy:include nope"},
		{"unknown annotation", "//@oxy:frobnicate x"},
		{"empty annotation", "//@oxy:"},
		{"bad group number", "//@oxy:group x 0 uniform p params"},
		{"bad address space", "//@oxy:group 0 0 private p params"},
		{"group without include", "//@oxy:group 0 0 uniform p missing"},
		{"include arity", "//@oxy:include a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pp := NewPreProcessor(map[string]Include{"params": {Source: paramsInclude, Type: "Params"}})
			if _, err := pp.Process(tt.source); err == nil {
				t.Fatalf("Process(%q) succeeded, want error", tt.source)
			}
		})
	}
}

func TestStructLayouts(t *testing.T) {
	structs := parseStructBlocks(`
struct Inner { a: vec3<f32>, b: f32, }
struct Outer { x: f32, inner: Inner, arr: array<vec2<f32>, 3>, }
struct Pending { p: Unknown, }
`)
	sizes := computeStructSizes(structs)
	tests := []struct {
		name string
		want uint64
	}{
		{"Inner", 16},
		{"Outer", 64},
	}
	for _, tt := range tests {
		if got := sizes[tt.name].size; got != tt.want {
			t.Errorf("size(%s) = %d, want %d", tt.name, got, tt.want)
		}
	}
	if _, ok := sizes["Pending"]; ok {
		t.Error("struct with unknown member type was resolved")
	}
}

func TestLoadRegistersFileWithLifetime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wgsl")
	if err := os.WriteFile(path, []byte(testSource), 0o644); err != nil {
		t.Fatal(err)
	}

	lt := lifetime.New("shader load")
	s, err := Load("loaded", path, lt,
		WithInclude("params", Include{Source: paramsInclude, Type: "Params"}),
		WithValidation(false),
	)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.EntryPoint(ShaderStageFragment) != "fs_main" {
		t.Errorf("loaded shader fragment entry = %q", s.EntryPoint(ShaderStageFragment))
	}
	if lt.Len() != 1 {
		t.Fatalf("lifetime tracks %d releases, want 1", lt.Len())
	}
	if err := lt.Destroy(); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}

	if _, err := Load("missing", filepath.Join(t.TempDir(), "nope.wgsl"), nil); err == nil {
		t.Fatal("Load() of a missing file succeeded")
	}
}
