package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// Stage identifies the pipeline stage a shader module is prepared for.
type Stage int

const (
	// StageVertex is the vertex stage of a render pipeline.
	StageVertex Stage = iota

	// StageFragment is the fragment stage of a render pipeline.
	StageFragment
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	default:
		return "stage(" + strconv.Itoa(int(s)) + ")"
	}
}

// Handle identifies a registered shader program. Handles are stable values so pipeline
// descriptors referencing them stay comparable and hashable.
type Handle string

// Def is an integer pre-processor define. Defines are visible to #ifdef / #ifndef blocks
// and to #{NAME} value substitution.
type Def struct {
	Name  string
	Value int64
}

// Defs is an ordered list of defines.
type Defs []Def

// Lookup returns the value of the named define.
//
// Parameters:
//   - name: the define name
//
// Returns:
//   - int64: the define value
//   - bool: true if the define is present
func (d Defs) Lookup(name string) (int64, bool) {
	for _, def := range d {
		if def.Name == name {
			return def.Value, true
		}
	}
	return 0, false
}

// Key returns a stable string form of the define list, used to key compiled modules.
// The order of the list is significant.
func (d Defs) Key() string {
	var b strings.Builder
	for i, def := range d {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(def.Name)
		b.WriteByte('=')
		b.WriteString(strconv.FormatInt(def.Value, 10))
	}
	return b.String()
}

// Module is a shader program prepared for one stage and one define set: the
// pre-processed WGSL, its entry point, the resource bindings it declares and the
// SPIR-V produced when the source was validated.
type Module struct {
	Handle Handle
	Stage  Stage
	Defs   Defs
	// EntryPoints lists every entry point declared for Stage, in source order.
	EntryPoints []string
	// VertexInputs maps vertex entry point names to their @location inputs.
	VertexInputs map[string][]VertexInput
	Source       string
	Bindings     []Binding
	SPIRV        []byte
}

// HasEntryPoint reports whether the module declares the named entry point for its stage.
func (m *Module) HasEntryPoint(name string) bool {
	return slices.Contains(m.EntryPoints, name)
}

// Label returns the debug label used for the GPU shader module.
func (m *Module) Label() string {
	if len(m.Defs) == 0 {
		return fmt.Sprintf("%s.%s", m.Handle, m.Stage)
	}
	return fmt.Sprintf("%s.%s[%s]", m.Handle, m.Stage, m.Defs.Key())
}

// Descriptor builds the wgpu shader module descriptor for this module.
//
// Returns:
//   - *wgpu.ShaderModuleDescriptor: the WGSL shader module descriptor
func (m *Module) Descriptor() *wgpu.ShaderModuleDescriptor {
	return &wgpu.ShaderModuleDescriptor{
		Label: m.Label(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: m.Source,
		},
	}
}

// BindGroupLayoutDescriptors groups the module's bindings into layout descriptors keyed by
// group index, with every entry visible to the module's stage.
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: layout descriptors keyed by group index
func (m *Module) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	visibility := wgpu.ShaderStageVertex
	if m.Stage == StageFragment {
		visibility = wgpu.ShaderStageFragment
	}
	result := make(map[int]wgpu.BindGroupLayoutDescriptor)
	for _, b := range m.Bindings {
		desc := result[b.Group]
		desc.Entries = append(desc.Entries, b.LayoutEntry(visibility))
		result[b.Group] = desc
	}
	return result
}
