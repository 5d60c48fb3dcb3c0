// Package outline renders the silhouette mask consumed by outline effects: a pipeline
// specialized from the mesh pipeline that writes coverage into a 4x multisampled R8Unorm
// target, and the render graph node that draws the masked meshes and resolves the result.
package outline

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-outline/engine/light"
	"github.com/Carmen-Shannon/oxy-outline/engine/mesh"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/mesh_pipeline"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// MaskShaderHandle identifies the mask shader in a shader.Registry.
const MaskShaderHandle shader.Handle = "oxy/outline_mask"

// MaskShaderSource is the WGSL source registered under MaskShaderHandle.
//
//go:embed assets/mask.wgsl
var MaskShaderSource string

const (
	// MaskPipelineLabel is the debug label of every mask pipeline.
	MaskPipelineLabel = "mesh_mask_pipeline"
	// MaskFormat is the format of both mask textures.
	MaskFormat = wgpu.TextureFormatR8Unorm
	// MaskSampleCount is the sample count of the multisampled mask target.
	MaskSampleCount = 4
)

// RegisterShaders registers the shaders used by mask pipelines.
//
// Parameters:
//   - r: the registry to register into
func RegisterShaders(r *shader.Registry) {
	r.Register(mesh_pipeline.MeshShaderHandle, mesh_pipeline.MeshShaderSource)
	r.Register(MaskShaderHandle, MaskShaderSource)
}

// MaskPipeline specializes mesh pipelines for mask rendering. It holds no mutable
// state, so Specialize may be called concurrently.
type MaskPipeline struct {
	base   pipeline.MeshSpecializer
	layout *mesh_pipeline.MeshPipeline
}

var _ pipeline.MeshSpecializer = &MaskPipeline{}

// MaskPipelineOption is a functional option used to configure a MaskPipeline during construction.
type MaskPipelineOption func(*MaskPipeline)

// WithBaseSpecializer replaces the specializer the mask pipeline starts from. The mesh
// pipeline still provides the bind group layouts.
//
// Parameters:
//   - base: the base specializer
//
// Returns:
//   - MaskPipelineOption: a function that sets the base specializer
func WithBaseSpecializer(base pipeline.MeshSpecializer) MaskPipelineOption {
	return func(p *MaskPipeline) {
		p.base = base
	}
}

// NewMaskPipeline creates a mask pipeline on top of a mesh pipeline.
//
// Parameters:
//   - meshPipeline: the mesh pipeline providing layouts and the base descriptor
//   - opts: a variadic list of MaskPipelineOption functions
//
// Returns:
//   - *MaskPipeline: the mask pipeline
func NewMaskPipeline(meshPipeline *mesh_pipeline.MeshPipeline, opts ...MaskPipelineOption) *MaskPipeline {
	p := &MaskPipeline{
		base:   meshPipeline,
		layout: meshPipeline,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Specialize builds the mask descriptor for a key and vertex layout. It starts from the
// base mesh descriptor and replaces the layouts, shaders, color target, depth and
// multisample state. Multisampling is always 4x; there is no single-sample variant.
//
// Parameters:
//   - key: the view-dependent specialization key
//   - layout: the vertex layout of the mesh
//
// Returns:
//   - pipeline.RenderPipelineDescriptor: the mask descriptor
//   - error: a *pipeline.SpecializationError wrapping the base failure unchanged
func (p *MaskPipeline) Specialize(key pipeline.MeshPipelineKey, layout *mesh.VertexBufferLayout) (pipeline.RenderPipelineDescriptor, error) {
	desc, err := p.base.Specialize(key, layout)
	if err != nil {
		return pipeline.RenderPipelineDescriptor{}, &pipeline.SpecializationError{
			Stage: pipeline.StageBase,
			Label: MaskPipelineLabel,
			Err:   err,
		}
	}

	desc.Layout = []*pipeline.BindGroupLayout{p.layout.ViewLayoutFor(key), p.layout.MeshLayout}
	if _, skinned := desc.Vertex.ShaderDefs.Lookup("SKINNED"); skinned {
		desc.Layout[1] = p.layout.SkinnedMeshLayout
	}

	desc.Vertex.Shader = MaskShaderHandle
	desc.Fragment = &pipeline.FragmentState{
		Shader:     MaskShaderHandle,
		EntryPoint: "fragment",
		ShaderDefs: shader.Defs{
			{Name: "MAX_DIRECTIONAL_LIGHTS", Value: light.MaxDirectionalLights},
			{Name: "MAX_CASCADES_PER_LIGHT", Value: light.MaxCascadesPerLight},
		},
		Targets: []wgpu.ColorTargetState{{
			Format:    MaskFormat,
			Blend:     nil,
			WriteMask: wgpu.ColorWriteMaskAll,
		}},
	}
	desc.DepthStencil = nil
	desc.Multisample = wgpu.MultisampleState{
		Count:                  MaskSampleCount,
		Mask:                   0xFFFFFFFF,
		AlphaToCoverageEnabled: false,
	}
	desc.Label = MaskPipelineLabel
	return desc, nil
}
