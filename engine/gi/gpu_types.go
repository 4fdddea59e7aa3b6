package gi

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-gi/engine/renderer/shader"
)

// GPUCascadeParamsSource is the canonical WGSL definition of the CascadeParams struct.
// Matches GPUCascadeParams layout exactly (64 bytes, WGSL uniform aligned).
//
//go:embed assets/cascade_params.wgsl
var GPUCascadeParamsSource string

// CascadeParamsInclude is the shader include name under which GPUCascadeParamsSource is
// registered. Shaders pull it in with //@oxy:include cascade_params and declare the uniform
// with //@oxy:group 0 0 uniform params cascade_params.
const CascadeParamsInclude = "cascade_params"

// cascadeParamsIncludeDef returns the shader include for CascadeParams.
func cascadeParamsIncludeDef() shader.Include {
	return shader.Include{Source: GPUCascadeParamsSource, Type: "CascadeParams"}
}

// GPUCascadeParams is the GPU-aligned representation of one parameter block of the cascade
// uniform buffer. Matches the WGSL CascadeParams struct layout exactly (see
// GPUCascadeParamsSource).
// Size: 64 bytes.
type GPUCascadeParams struct {
	D0           float32    // offset  0: base probe spacing in pixels
	R0           int32      // offset  4: ray count of cascade 0
	N0           int32      // offset  8: probes per dimension in cascade 0
	CascadeIndex int32      // offset 12: ci
	CascadeCount int32      // offset 16: cn
	RenderFlag   int32      // offset 20: 0 cascade pass, 1 composite
	AddSkyLight  int32      // offset 24: 1 adds sky radiance to rays leaving the scene
	_pad         int32      // offset 28
	Resolution   [2]float32 // offset 32: scene size in pixels
	_pad2        [2]float32 // offset 40
	Sky          [4]float32 // offset 48: rgba radiance of rays leaving the scene
}

// Size returns the size of the GPUCascadeParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (g *GPUCascadeParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUCascadeParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUCascadeParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	g.MarshalInto(buf)
	return buf
}

// MarshalInto serializes the struct into dst, which must hold at least Size bytes.
//
// Parameters:
//   - dst: the destination block
func (g *GPUCascadeParams) MarshalInto(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:], math.Float32bits(g.D0))
	binary.LittleEndian.PutUint32(dst[4:], uint32(g.R0))
	binary.LittleEndian.PutUint32(dst[8:], uint32(g.N0))
	binary.LittleEndian.PutUint32(dst[12:], uint32(g.CascadeIndex))
	binary.LittleEndian.PutUint32(dst[16:], uint32(g.CascadeCount))
	binary.LittleEndian.PutUint32(dst[20:], uint32(g.RenderFlag))
	binary.LittleEndian.PutUint32(dst[24:], uint32(g.AddSkyLight))
	binary.LittleEndian.PutUint32(dst[28:], 0) // _pad
	binary.LittleEndian.PutUint32(dst[32:], math.Float32bits(g.Resolution[0]))
	binary.LittleEndian.PutUint32(dst[36:], math.Float32bits(g.Resolution[1]))
	binary.LittleEndian.PutUint64(dst[40:], 0) // _pad2
	for i, v := range g.Sky {
		binary.LittleEndian.PutUint32(dst[48+4*i:], math.Float32bits(v))
	}
}

// UnmarshalCascadeParams decodes a block written by MarshalInto. The headless fragment
// functions and tests read parameters back with it.
//
// Parameters:
//   - src: the serialized block
//
// Returns:
//   - GPUCascadeParams: the decoded parameters
func UnmarshalCascadeParams(src []byte) GPUCascadeParams {
	g := GPUCascadeParams{
		D0:           math.Float32frombits(binary.LittleEndian.Uint32(src[0:])),
		R0:           int32(binary.LittleEndian.Uint32(src[4:])),
		N0:           int32(binary.LittleEndian.Uint32(src[8:])),
		CascadeIndex: int32(binary.LittleEndian.Uint32(src[12:])),
		CascadeCount: int32(binary.LittleEndian.Uint32(src[16:])),
		RenderFlag:   int32(binary.LittleEndian.Uint32(src[20:])),
		AddSkyLight:  int32(binary.LittleEndian.Uint32(src[24:])),
		Resolution: [2]float32{
			math.Float32frombits(binary.LittleEndian.Uint32(src[32:])),
			math.Float32frombits(binary.LittleEndian.Uint32(src[36:])),
		},
	}
	for i := range g.Sky {
		g.Sky[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[48+4*i:]))
	}
	return g
}

// ProbeCount returns n0, the number of cascade-0 probes per dimension for a scene of the given
// width: floor(2·width / d0).
//
// Parameters:
//   - width: the scene width in pixels
//   - d0: the base probe spacing
//
// Returns:
//   - int: the probe count
func ProbeCount(width int, d0 float32) int {
	return int(math.Floor(float64(float32(2*width) / d0)))
}
