// pre_processor.go implements the Oxy WGSL shader pre-processor. It scans shader source for
// @oxy: annotations, replaces them with registered include sources or generated declarations,
// and collects the generated declarations for inspection.
package shader

import (
	"fmt"
	"strings"
)

// Include is a named WGSL snippet that can be injected with //@oxy:include.
type Include struct {
	// Source is the raw WGSL text injected at the annotation site.
	Source string

	// Type is the WGSL type name emitted by //@oxy:group declarations referencing this include.
	Type string
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	includes     map[string]Include
	declarations []Annotation
}

// PreProcessor processes raw WGSL source containing @oxy: annotations.
type PreProcessor interface {
	// Process replaces every annotation in source with its WGSL output. Include annotations are
	// replaced with the registered include source, group annotations with a generated
	// @group/@binding declaration. The declarations list is reset at the start of each call.
	//
	// Parameters:
	//   - source: the raw WGSL source
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - error: an error if an annotation is malformed or references an unregistered include
	Process(source string) (string, error)

	// Declarations returns the group annotations collected by the most recent Process call.
	//
	// Returns:
	//   - []Annotation: the collected declarations in source order
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor that resolves includes from the given registry.
//
// Parameters:
//   - includes: the include registry keyed by include name, may be nil
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor
func NewPreProcessor(includes map[string]Include) PreProcessor {
	if includes == nil {
		includes = make(map[string]Include)
	}
	return &preProcessor{includes: includes}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case AnnotationTypeInclude:
			inc, ok := p.includes[a.Args[0]]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @oxy:include argument %q", a.Line, a.Args[0])
			}
			out = append(out, inc.Source)
		case AnnotationTypeBindingGroup:
			inc, ok := p.includes[a.Args[2]]
			if !ok || inc.Type == "" {
				return "", fmt.Errorf("line %d: @oxy:group references unknown include %q", a.Line, a.Args[2])
			}
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;", *a.Group, *a.Binding, addressSpaces[a.Args[0]], a.Args[1], inc.Type))
			p.declarations = append(p.declarations, *a)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}
