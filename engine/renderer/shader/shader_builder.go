package shader

// ShaderBuilderOption is a functional option applied to a shader during construction.
type ShaderBuilderOption func(*shader)

// WithInclude registers a WGSL snippet that the source can inject with //@oxy:include name
// and reference from //@oxy:group declarations.
//
// Parameters:
//   - name: the include name used in annotations
//   - inc: the WGSL source and type name of the include
//
// Returns:
//   - ShaderBuilderOption: a function that registers the include
func WithInclude(name string, inc Include) ShaderBuilderOption {
	return func(s *shader) {
		s.includes[name] = inc
	}
}

// WithValidation toggles compiling the pre-processed source with naga before the shader is
// returned. Validation is on by default.
//
// Parameters:
//   - enabled: false to skip validation
//
// Returns:
//   - ShaderBuilderOption: a function that sets the validation flag
func WithValidation(enabled bool) ShaderBuilderOption {
	return func(s *shader) {
		s.validate = enabled
	}
}
