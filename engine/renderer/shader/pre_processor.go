// pre_processor.go implements the Oxy WGSL shader pre-processor. It resolves
// conditional blocks and #{NAME} substitutions against a define list, replaces @oxy:
// annotations with injected struct sources or generated declarations, and collects the
// declarations so callers can check shader bindings against bind group layouts.
//
// Supported directives, each on its own line:
//   - #ifdef NAME / #ifndef NAME: start a block kept when NAME is (not) defined
//   - #else: flip the innermost block
//   - #endif: close the innermost block
//
// #{NAME} anywhere in a kept line is replaced with the decimal value of the define.
package shader

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-outline/engine/camera"
	"github.com/Carmen-Shannon/oxy-outline/engine/mesh"
)

// ErrUndefined is returned when a #{NAME} substitution references a define that is not set.
var ErrUndefined = errors.New("undefined shader define")

// substitutionRegex matches #{NAME} value substitutions.
var substitutionRegex = regexp.MustCompile(`#\{(\w+)\}`)

// registryEntry pairs a WGSL struct source string (embedded from a .wgsl asset file)
// with the WGSL type name used in generated @group/@binding declarations.
type registryEntry struct {
	// Source is the raw WGSL struct definition text injected by @oxy:include.
	Source string

	// Type is the WGSL type name emitted in @oxy:group declarations.
	Type string
}

// preProcessor is the implementation of the PreProcessor interface. It holds only
// read-only registries, so a single instance may process sources concurrently.
type preProcessor struct {
	structRegistry       map[AnnotationArg]registryEntry
	addressSpaceRegistry map[AnnotationArg]string
}

// PreProcessor expands Oxy directives and annotations in WGSL source.
type PreProcessor interface {
	// Process expands the source for the given define list.
	//
	// Parameters:
	//   - source: the raw WGSL source
	//   - defs: the defines visible to conditional blocks and substitutions
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - []Annotation: the group declarations found in kept lines, in source order
	//   - error: an error for malformed annotations, unbalanced blocks or undefined substitutions
	Process(source string, defs Defs) (string, []Annotation, error)
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor with the engine's shared struct types registered.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		structRegistry: map[AnnotationArg]registryEntry{
			AnnotationArgView: {Source: camera.GPUViewUniformSource, Type: "View"},
			AnnotationArgMesh: {Source: mesh.GPUMeshUniformSource, Type: "MeshUniform"},
		},
		addressSpaceRegistry: map[AnnotationArg]string{
			annotationArgUniform:     "var<uniform>",
			annotationArgStorageRead: "var<storage, read>",
		},
	}
}

// condFrame tracks one open #ifdef / #ifndef block.
type condFrame struct {
	// parentActive is true when every enclosing block is kept.
	parentActive bool
	// taken is the result of the block's own condition.
	taken bool
	// sawElse guards against a second #else in the same block.
	sawElse bool
	// line is where the block was opened, for error reporting.
	line int
}

func (f condFrame) active() bool {
	return f.parentActive && f.taken
}

func (p *preProcessor) Process(source string, defs Defs) (string, []Annotation, error) {
	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	var declarations []Annotation
	var stack []condFrame

	active := func() bool {
		return len(stack) == 0 || stack[len(stack)-1].active()
	}

	for i, line := range lines {
		lineNum := i + 1
		trimmed := strings.TrimSpace(line)

		if directive, arg, ok := parseDirective(trimmed); ok {
			switch directive {
			case "#ifdef", "#ifndef":
				if arg == "" {
					return "", nil, fmt.Errorf("line %d: %s requires a define name", lineNum, directive)
				}
				_, defined := defs.Lookup(arg)
				stack = append(stack, condFrame{
					parentActive: active(),
					taken:        defined == (directive == "#ifdef"),
					line:         lineNum,
				})
			case "#else":
				if len(stack) == 0 {
					return "", nil, fmt.Errorf("line %d: #else without #ifdef", lineNum)
				}
				top := &stack[len(stack)-1]
				if top.sawElse {
					return "", nil, fmt.Errorf("line %d: duplicate #else for block opened on line %d", lineNum, top.line)
				}
				top.sawElse = true
				top.taken = !top.taken
			case "#endif":
				if len(stack) == 0 {
					return "", nil, fmt.Errorf("line %d: #endif without #ifdef", lineNum)
				}
				stack = stack[:len(stack)-1]
			}
			continue
		}

		if !active() {
			continue
		}

		a, err := parseAnnotation(line, lineNum)
		if err != nil {
			return "", nil, err
		}
		if a != nil {
			switch a.Type {
			case annotationTypeInclude:
				out = append(out, p.structRegistry[a.Args[0]].Source)
			case AnnotationTypeBindingGroup:
				entry := p.structRegistry[a.Args[2]]
				out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;",
					a.Group, a.Binding, p.addressSpaceRegistry[a.Args[0]], a.Args[1], entry.Type))
				declarations = append(declarations, *a)
			}
			continue
		}

		expanded, err := substitute(line, defs)
		if err != nil {
			return "", nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		out = append(out, expanded)
	}

	if len(stack) > 0 {
		return "", nil, fmt.Errorf("line %d: unterminated conditional block", stack[len(stack)-1].line)
	}
	return strings.Join(out, "\n"), declarations, nil
}

// parseDirective splits a trimmed line into a conditional directive and its argument.
func parseDirective(trimmed string) (directive, arg string, ok bool) {
	if !strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "#{") {
		return "", "", false
	}
	fields := strings.Fields(trimmed)
	switch fields[0] {
	case "#ifdef", "#ifndef":
		if len(fields) > 1 {
			arg = fields[1]
		}
		return fields[0], arg, true
	case "#else", "#endif":
		return fields[0], "", true
	}
	return "", "", false
}

// substitute replaces every #{NAME} in line with the value of the define.
func substitute(line string, defs Defs) (string, error) {
	if !strings.Contains(line, "#{") {
		return line, nil
	}
	var missing string
	expanded := substitutionRegex.ReplaceAllStringFunc(line, func(m string) string {
		name := m[2 : len(m)-1]
		v, ok := defs.Lookup(name)
		if !ok {
			if missing == "" {
				missing = name
			}
			return m
		}
		return strconv.FormatInt(v, 10)
	})
	if missing != "" {
		return "", fmt.Errorf("%w %q", ErrUndefined, missing)
	}
	return expanded, nil
}
