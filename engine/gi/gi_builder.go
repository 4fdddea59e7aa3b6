package gi

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-gi/common"
	"github.com/Carmen-Shannon/oxy-gi/engine/lifetime"
)

// SystemBuilderOption is a functional option applied to a System during construction via NewSystem.
type SystemBuilderOption func(*system)

// WithCascadeCount sets the number of cascades. Defaults to 7.
//
// Parameters:
//   - cn: the cascade count, at least 1
//
// Returns:
//   - SystemBuilderOption: a function that applies the cascade count to a System
func WithCascadeCount(cn int) SystemBuilderOption {
	return func(s *system) {
		s.cn = cn
	}
}

// WithProbeSpacing sets d0, the probe spacing of cascade 0. Defaults to 1.
//
// Parameters:
//   - d0: the spacing, greater than 0
//
// Returns:
//   - SystemBuilderOption: a function that applies the probe spacing to a System
func WithProbeSpacing(d0 float32) SystemBuilderOption {
	return func(s *system) {
		s.d0 = d0
	}
}

// WithRayCount sets r0, the number of rays each cascade-0 probe casts. Defaults to 4.
//
// Parameters:
//   - r0: the ray count, at least 1
//
// Returns:
//   - SystemBuilderOption: a function that applies the ray count to a System
func WithRayCount(r0 int) SystemBuilderOption {
	return func(s *system) {
		s.r0 = r0
	}
}

// WithSkyLight toggles the sky contribution of rays that leave the scene during cascade passes.
// Defaults to true.
//
// Parameters:
//   - enabled: true to add sky light
//
// Returns:
//   - SystemBuilderOption: a function that applies the sky light flag to a System
func WithSkyLight(enabled bool) SystemBuilderOption {
	return func(s *system) {
		s.skyLight = enabled
	}
}

// WithSkyColor sets the radiance of rays that leave the scene. It is written to every
// parameter block and used as the input texture's border color. Defaults to opaque white.
//
// Parameters:
//   - c: the sky color
//
// Returns:
//   - SystemBuilderOption: a function that applies the sky color to a System
func WithSkyColor(c common.Color) SystemBuilderOption {
	return func(s *system) {
		s.skyColor = c
	}
}

// WithShaderPath sets the path of the WGSL program the cascade passes and the composite run.
// Defaults to DefaultShaderPath.
//
// Parameters:
//   - path: the shader file path
//
// Returns:
//   - SystemBuilderOption: a function that applies the shader path to a System
func WithShaderPath(path string) SystemBuilderOption {
	return func(s *system) {
		s.shaderPath = path
	}
}

// WithShaderValidation toggles naga validation of the shader before the pipeline is compiled.
// Defaults to true.
//
// Parameters:
//   - enabled: true to validate
//
// Returns:
//   - SystemBuilderOption: a function that applies the validation flag to a System
func WithShaderValidation(enabled bool) SystemBuilderOption {
	return func(s *system) {
		s.validateShader = enabled
	}
}

// WithLifetime nests the System's resources in an owning scope: destroying lt releases them
// too. Release still releases them early.
//
// Parameters:
//   - lt: the owning scope
//
// Returns:
//   - SystemBuilderOption: a function that applies the owning scope to a System
func WithLifetime(lt *lifetime.Lifetime) SystemBuilderOption {
	return func(s *system) {
		s.parent = lt
	}
}

// WithLogger sets the logger for initialization and release diagnostics.
// Defaults to common.Logger().
//
// Parameters:
//   - l: the logger, nil keeps the default
//
// Returns:
//   - SystemBuilderOption: a function that applies the logger to a System
func WithLogger(l *slog.Logger) SystemBuilderOption {
	return func(s *system) {
		if l != nil {
			s.logger = l
		}
	}
}
