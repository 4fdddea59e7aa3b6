package shader

// BindingKind classifies a resource declared with @group/@binding.
type BindingKind int

const (
	BindingKindUnknown BindingKind = iota
	BindingKindUniform
	BindingKindStorage
	BindingKindReadOnlyStorage
	BindingKindTexture
	BindingKindDepthTexture
	BindingKindStorageTexture
	BindingKindSampler
	BindingKindComparisonSampler
)

func (k BindingKind) String() string {
	switch k {
	case BindingKindUniform:
		return "uniform"
	case BindingKindStorage:
		return "storage"
	case BindingKindReadOnlyStorage:
		return "read-only storage"
	case BindingKindTexture:
		return "texture"
	case BindingKindDepthTexture:
		return "depth texture"
	case BindingKindStorageTexture:
		return "storage texture"
	case BindingKindSampler:
		return "sampler"
	case BindingKindComparisonSampler:
		return "comparison sampler"
	default:
		return "unknown"
	}
}

// IsBuffer reports whether the binding is backed by a buffer.
func (k BindingKind) IsBuffer() bool {
	return k == BindingKindUniform || k == BindingKindStorage || k == BindingKindReadOnlyStorage
}

// Binding is a single resource declaration reflected from WGSL source.
type Binding struct {
	Group   int
	Binding int
	Name    string
	Kind    BindingKind

	// Type is the WGSL type text of the declaration, e.g. "CascadeParams" or "texture_2d<f32>".
	Type string

	// Size is the WGSL byte size of buffer bindings, or 0 when unknown or not a buffer.
	Size uint64
}

// wgslTypeLayout holds the byte size and alignment for a WGSL type.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

// parsedField represents a single field extracted from a WGSL struct during parsing
type parsedField struct {
	name      string
	typeName  string
	isBuiltin bool
}

// parsedStruct represents a WGSL struct block extracted during parsing
type parsedStruct struct {
	name   string
	fields []parsedField
}
