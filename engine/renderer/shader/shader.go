package shader

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Carmen-Shannon/oxy-gi/engine/lifetime"
	"github.com/gogpu/naga"
)

// ShaderStage identifies a programmable pipeline stage with an entry point.
type ShaderStage int

const (
	// ShaderStageVertex is the stage of functions annotated with @vertex.
	ShaderStageVertex ShaderStage = iota

	// ShaderStageFragment is the stage of functions annotated with @fragment.
	ShaderStageFragment
)

func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStageFragment:
		return "fragment"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// ErrMissingEntryPoint is returned when a shader lacks an entry point for a required stage.
var ErrMissingEntryPoint = errors.New("shader: missing entry point")

// shader is the implementation of the Shader interface.
type shader struct {
	key          string
	source       string
	entryPoints  map[ShaderStage]string
	bindGroups   map[int][]Binding
	declarations []Annotation

	includes map[string]Include
	validate bool
}

// Shader is a pre-processed, reflected WGSL module holding both the vertex and fragment
// entry points of a pipeline.
type Shader interface {
	// Key returns the unique identifier of the shader, used as its GPU label.
	//
	// Returns:
	//   - string: the shader key
	Key() string

	// Source returns the pre-processed WGSL source.
	//
	// Returns:
	//   - string: the WGSL source with all @oxy annotations resolved
	Source() string

	// EntryPoint returns the entry point function name for the given stage.
	//
	// Parameters:
	//   - stage: the pipeline stage
	//
	// Returns:
	//   - string: the function name, or "" if the shader has no entry point for the stage
	EntryPoint(stage ShaderStage) string

	// BindGroup returns the reflected declarations of one bind group, sorted by binding index.
	//
	// Parameters:
	//   - group: the group index
	//
	// Returns:
	//   - []Binding: the declarations, or nil if the group is not declared
	BindGroup(group int) []Binding

	// BindGroups returns every reflected bind group keyed by group index.
	//
	// Returns:
	//   - map[int][]Binding: the declarations keyed by group
	BindGroups() map[int][]Binding

	// BindingByName looks up a declaration by its WGSL variable name.
	//
	// Parameters:
	//   - name: the variable name
	//
	// Returns:
	//   - Binding: the declaration
	//   - bool: true if found
	BindingByName(name string) (Binding, bool)

	// Declarations returns the @oxy:group annotations resolved while pre-processing.
	//
	// Returns:
	//   - []Annotation: the declarations in source order
	Declarations() []Annotation
}

var _ Shader = &shader{}

// Load reads WGSL from path and builds a Shader from it. The open file is registered with
// lt, so it stays open until the caller destroys that scope. A nil lt closes the file as
// soon as it has been read.
//
// Parameters:
//   - key: the unique identifier of the shader
//   - path: the WGSL file path
//   - lt: the scope owning the file handle, may be nil
//   - opts: options configuring includes and validation
//
// Returns:
//   - Shader: the loaded shader
//   - error: an error if the file cannot be read, pre-processed or validated
func Load(key, path string, lt *lifetime.Lifetime, opts ...ShaderBuilderOption) (Shader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("shader: failed to open %q: %w", path, err)
	}
	if lt != nil {
		if err := lt.Add(f.Close); err != nil {
			return nil, fmt.Errorf("shader: %q: %w", path, err)
		}
	} else {
		defer f.Close()
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("shader: failed to read %q: %w", path, err)
	}
	s, err := NewShader(key, string(data), opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// NewShader builds a Shader from raw WGSL source: annotations are resolved, entry points and
// bind groups reflected, and unless disabled the result is validated by compiling it with naga.
//
// Parameters:
//   - key: the unique identifier of the shader
//   - source: the raw WGSL source
//   - opts: options configuring includes and validation
//
// Returns:
//   - Shader: the built shader
//   - error: an error if pre-processing or validation fails
func NewShader(key, source string, opts ...ShaderBuilderOption) (Shader, error) {
	s := &shader{
		key:      key,
		includes: make(map[string]Include),
		validate: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	pp := NewPreProcessor(s.includes)
	processed, err := pp.Process(source)
	if err != nil {
		return nil, fmt.Errorf("shader %s: failed to pre-process: %w", key, err)
	}
	s.source = processed
	s.declarations = append([]Annotation(nil), pp.Declarations()...)

	if s.validate {
		if _, err := naga.Compile(processed); err != nil {
			return nil, fmt.Errorf("shader %s: invalid WGSL: %w", key, err)
		}
	}

	s.entryPoints = map[ShaderStage]string{
		ShaderStageVertex:   parseEntryPoint(processed, ShaderStageVertex),
		ShaderStageFragment: parseEntryPoint(processed, ShaderStageFragment),
	}
	s.bindGroups = parseBindGroups(processed)
	return s, nil
}

// RequireEntryPoints checks that s declares an entry point for every given stage.
//
// Parameters:
//   - s: the shader to check
//   - stages: the required stages
//
// Returns:
//   - error: an error wrapping ErrMissingEntryPoint naming the first missing stage, or nil
func RequireEntryPoints(s Shader, stages ...ShaderStage) error {
	for _, stage := range stages {
		if s.EntryPoint(stage) == "" {
			return fmt.Errorf("%w: %s has no %s entry point", ErrMissingEntryPoint, s.Key(), stage)
		}
	}
	return nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) EntryPoint(stage ShaderStage) string {
	return s.entryPoints[stage]
}

func (s *shader) BindGroup(group int) []Binding {
	return s.bindGroups[group]
}

func (s *shader) BindGroups() map[int][]Binding {
	return s.bindGroups
}

func (s *shader) BindingByName(name string) (Binding, bool) {
	for _, bindings := range s.bindGroups {
		for _, b := range bindings {
			if b.Name == name {
				return b, true
			}
		}
	}
	return Binding{}, false
}

func (s *shader) Declarations() []Annotation {
	return s.declarations
}
