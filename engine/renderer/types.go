package renderer

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownHandle is returned when a handle does not name a live object of the backend.
	ErrUnknownHandle = errors.New("renderer: unknown handle")

	// ErrNoFrame is returned when an operation needs the active render target outside
	// BeginFrame/EndFrame, or when a frame call is made out of order.
	ErrNoFrame = errors.New("renderer: no frame in progress")

	// ErrInvalidDescriptor is returned when a descriptor or draw call is inconsistent with the
	// objects it references.
	ErrInvalidDescriptor = errors.New("renderer: invalid descriptor")
)

// HandleKind names the object type behind a Handle.
type HandleKind int

const (
	HandleKindBindGroupLayout HandleKind = iota + 1
	HandleKindPipeline
	HandleKindBuffer
	HandleKindTexture
	HandleKindBindGroup
)

func (k HandleKind) String() string {
	switch k {
	case HandleKindBindGroupLayout:
		return "bind group layout"
	case HandleKindPipeline:
		return "pipeline"
	case HandleKindBuffer:
		return "buffer"
	case HandleKindTexture:
		return "texture"
	case HandleKindBindGroup:
		return "bind group"
	default:
		return "unknown"
	}
}

// Handle is an opaque reference to a GPU object owned by a Renderer. The zero value of every
// handle type is invalid.
type Handle interface {
	Kind() HandleKind
	Raw() uint32
}

type (
	BindGroupLayoutID uint32
	PipelineID        uint32
	BufferID          uint32
	TextureID         uint32
	BindGroupID       uint32
)

func (id BindGroupLayoutID) Kind() HandleKind { return HandleKindBindGroupLayout }
func (id BindGroupLayoutID) Raw() uint32      { return uint32(id) }
func (id PipelineID) Kind() HandleKind        { return HandleKindPipeline }
func (id PipelineID) Raw() uint32             { return uint32(id) }
func (id BufferID) Kind() HandleKind          { return HandleKindBuffer }
func (id BufferID) Raw() uint32               { return uint32(id) }
func (id TextureID) Kind() HandleKind         { return HandleKindTexture }
func (id TextureID) Raw() uint32              { return uint32(id) }
func (id BindGroupID) Kind() HandleKind       { return HandleKindBindGroup }
func (id BindGroupID) Raw() uint32            { return uint32(id) }

// unknownHandle wraps ErrUnknownHandle with the kind and value of the offending handle.
func unknownHandle(h Handle) error {
	return fmt.Errorf("%w: %s %d", ErrUnknownHandle, h.Kind(), h.Raw())
}

// TextureFormat is the texel format of a texture as seen by callers.
type TextureFormat int

const (
	// TextureFormatRGB8 is packed 3-byte RGB. Backends without a native 3-channel format
	// store it as RGBA8 and expand uploads.
	TextureFormatRGB8 TextureFormat = iota + 1

	// TextureFormatRGBA8 is 4-byte RGBA, unorm.
	TextureFormatRGBA8
)

// BytesPerPixel returns the size of one texel in the caller-visible layout.
func (f TextureFormat) BytesPerPixel() int {
	switch f {
	case TextureFormatRGB8:
		return 3
	case TextureFormatRGBA8:
		return 4
	default:
		return 0
	}
}

func (f TextureFormat) String() string {
	switch f {
	case TextureFormatRGB8:
		return "rgb8"
	case TextureFormatRGBA8:
		return "rgba8"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// FilterMode selects texel filtering for a texture's sampler.
type FilterMode int

const (
	FilterModeNearest FilterMode = iota
	FilterModeLinear
)

// ShaderVisibility is a bit set of the stages a binding is visible to.
type ShaderVisibility uint32

const (
	VisibilityVertex ShaderVisibility = 1 << iota
	VisibilityFragment
)

// BindingType is the kind of resource a bind group layout entry accepts.
type BindingType int

const (
	// BindingTypeUniformBuffer is a uniform buffer range.
	BindingTypeUniformBuffer BindingType = iota + 1

	// BindingTypeSampledTexture is a texture together with its sampler.
	BindingTypeSampledTexture
)

// BindGroupLayoutEntry describes one binding of a layout. Entries are numbered in order.
type BindGroupLayoutEntry struct {
	Type       BindingType
	Visibility ShaderVisibility

	// MinBindingSize is the minimum size of a bound buffer range, 0 for no check.
	MinBindingSize uint64
}

// BindGroupLayoutDescriptor describes a bind group layout.
type BindGroupLayoutDescriptor struct {
	Label   string
	Entries []BindGroupLayoutEntry
}

// BufferDescriptor describes a uniform buffer. Buffers are always writable from the CPU.
type BufferDescriptor struct {
	Label string
	Size  uint64
}

// TextureDescriptor describes a 2D texture and the sampler it is bound with.
type TextureDescriptor struct {
	Label  string
	Width  int
	Height int
	Format TextureFormat
	Filter FilterMode

	// RenderTarget allows the texture to be cleared and drawn into.
	RenderTarget bool
}

// BindGroupEntry binds one resource. Buffer entries set Buffer, Offset and Size (0 meaning
// the rest of the buffer); texture entries set Texture.
type BindGroupEntry struct {
	Buffer  BufferID
	Offset  uint64
	Size    uint64
	Texture TextureID
}

// BindGroupDescriptor describes a bind group; Entries match Layout's entries one to one.
type BindGroupDescriptor struct {
	Label   string
	Layout  BindGroupLayoutID
	Entries []BindGroupEntry
}

// DrawCall is one draw of a full-screen pipeline.
type DrawCall struct {
	Pipeline PipelineID

	// BindGroups are bound at group indices 0..len-1 and must match the pipeline's layouts.
	BindGroups []BindGroupID

	VertexCount uint32

	// Output is the texture to draw into, or 0 for the active render target of the frame.
	Output TextureID
}

// Stats counts the work a Renderer has accepted since construction.
type Stats struct {
	BindGroupLayouts int
	Pipelines        int
	Buffers          int
	Textures         int
	BindGroups       int

	BufferWrites  int
	TextureWrites int
	Clears        int
	Draws         int
	Frames        int
}

// Created returns the total number of objects created.
func (s Stats) Created() int {
	return s.BindGroupLayouts + s.Pipelines + s.Buffers + s.Textures + s.BindGroups
}

// handleCounter hands out handle values. Values are shared across kinds and never reused.
type handleCounter struct {
	last uint32
}

func (c *handleCounter) alloc() uint32 {
	c.last++
	return c.last
}

// validateTextureDescriptor checks the size and format of desc. Neither side may exceed
// maxDimension.
func validateTextureDescriptor(desc TextureDescriptor, maxDimension uint32) error {
	if desc.Width <= 0 || desc.Height <= 0 {
		return fmt.Errorf("%w: texture %q has size %dx%d", ErrInvalidDescriptor, desc.Label, desc.Width, desc.Height)
	}
	if uint64(desc.Width) > uint64(maxDimension) || uint64(desc.Height) > uint64(maxDimension) {
		return fmt.Errorf("%w: texture %q size %dx%d exceeds the %d texel limit", ErrInvalidDescriptor, desc.Label, desc.Width, desc.Height, maxDimension)
	}
	if desc.Format.BytesPerPixel() == 0 {
		return fmt.Errorf("%w: texture %q has format %s", ErrInvalidDescriptor, desc.Label, desc.Format)
	}
	return nil
}

// validateBindGroupEntries checks that entries match the layout entry for entry, by resource
// type and, for buffers, minimum binding size. bufferSize reports the size of a live buffer.
func validateBindGroupEntries(layout BindGroupLayoutDescriptor, desc BindGroupDescriptor, bufferSize func(BufferID) (uint64, bool), textureExists func(TextureID) bool) error {
	if len(desc.Entries) != len(layout.Entries) {
		return fmt.Errorf("%w: bind group %q has %d entries, layout %q has %d", ErrInvalidDescriptor, desc.Label, len(desc.Entries), layout.Label, len(layout.Entries))
	}
	for i, le := range layout.Entries {
		e := desc.Entries[i]
		switch le.Type {
		case BindingTypeUniformBuffer:
			size, ok := bufferSize(e.Buffer)
			if !ok {
				return unknownHandle(e.Buffer)
			}
			rangeSize := e.Size
			if rangeSize == 0 {
				rangeSize = size - min(e.Offset, size)
			}
			if e.Offset+rangeSize > size {
				return fmt.Errorf("%w: bind group %q entry %d range [%d,%d) exceeds buffer size %d", ErrInvalidDescriptor, desc.Label, i, e.Offset, e.Offset+rangeSize, size)
			}
			if rangeSize < le.MinBindingSize {
				return fmt.Errorf("%w: bind group %q entry %d binds %d bytes, layout needs %d", ErrInvalidDescriptor, desc.Label, i, rangeSize, le.MinBindingSize)
			}
		case BindingTypeSampledTexture:
			if !textureExists(e.Texture) {
				return unknownHandle(e.Texture)
			}
		default:
			return fmt.Errorf("%w: layout %q entry %d has no binding type", ErrInvalidDescriptor, layout.Label, i)
		}
	}
	return nil
}

// expandRGBToRGBA writes packed RGB src into RGBA dst with opaque alpha. dst must hold
// len(src)/3*4 bytes.
func expandRGBToRGBA(dst, src []byte) {
	for i, j := 0, 0; i+2 < len(src); i, j = i+3, j+4 {
		dst[j+0] = src[i+0]
		dst[j+1] = src[i+1]
		dst[j+2] = src[i+2]
		dst[j+3] = 0xFF
	}
}

// colorToRGBA8 converts a [0,1] color to unorm bytes, clamping out-of-range channels.
func colorToRGBA8(r, g, b, a float64) [4]byte {
	conv := func(v float64) byte {
		switch {
		case v <= 0:
			return 0
		case v >= 1:
			return 0xFF
		default:
			return byte(v*255 + 0.5)
		}
	}
	return [4]byte{conv(r), conv(g), conv(b), conv(a)}
}
