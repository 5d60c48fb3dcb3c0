// Package mesh_pipeline provides the generic mesh pipeline that specialized mesh
// pipelines start from: the shared view and mesh bind group layouts plus a lit,
// depth-tested descriptor per mesh vertex layout.
package mesh_pipeline

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-outline/engine/camera"
	"github.com/Carmen-Shannon/oxy-outline/engine/mesh"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// MeshShaderHandle identifies the generic mesh shader in a shader.Registry.
const MeshShaderHandle shader.Handle = "oxy/mesh"

// MeshShaderSource is the WGSL source registered under MeshShaderHandle.
//
//go:embed assets/mesh.wgsl
var MeshShaderSource string

// Shader locations of the mesh attributes, shared by every shader built on the mesh pipeline.
const (
	LocationPosition uint32 = iota
	LocationNormal
	LocationUV0
	LocationTangent
	LocationColor
	LocationJointIndex
	LocationJointWeight
)

// jointMatrixSize is the size of one skinning matrix in the joint storage buffer.
const jointMatrixSize = 64

// MeshPipeline holds the bind group layouts shared by every mesh pipeline.
//
// Group 0 is the view layout: the multisampled variant is used by views rendering with
// more than one sample. Group 1 is the mesh layout, or the skinned mesh layout for meshes
// carrying joint attributes.
type MeshPipeline struct {
	ViewLayout             *pipeline.BindGroupLayout
	ViewLayoutMultisampled *pipeline.BindGroupLayout
	MeshLayout             *pipeline.BindGroupLayout
	SkinnedMeshLayout      *pipeline.BindGroupLayout
}

var _ pipeline.MeshSpecializer = &MeshPipeline{}

// NewMeshPipeline creates the mesh pipeline and its bind group layout handles.
//
// Returns:
//   - *MeshPipeline: the mesh pipeline
func NewMeshPipeline() *MeshPipeline {
	var view camera.GPUViewUniform
	var meshUniform mesh.GPUMeshUniform

	viewEntry := bufferEntry(0, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, wgpu.BufferBindingTypeUniform, uint64(view.Size()))
	meshEntry := bufferEntry(0, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, wgpu.BufferBindingTypeUniform, uint64(meshUniform.Size()))
	meshEntry.Buffer.HasDynamicOffset = true
	jointEntry := bufferEntry(1, wgpu.ShaderStageVertex, wgpu.BufferBindingTypeReadOnlyStorage, jointMatrixSize)

	return &MeshPipeline{
		ViewLayout:             pipeline.NewBindGroupLayout("mesh_view_layout", viewEntry),
		ViewLayoutMultisampled: pipeline.NewBindGroupLayout("mesh_view_layout_multisampled", viewEntry),
		MeshLayout:             pipeline.NewBindGroupLayout("mesh_layout", meshEntry),
		SkinnedMeshLayout:      pipeline.NewBindGroupLayout("skinned_mesh_layout", meshEntry, jointEntry),
	}
}

// bufferEntry builds a buffer binding layout entry.
func bufferEntry(binding uint32, visibility wgpu.ShaderStage, bufferType wgpu.BufferBindingType, minSize uint64) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: visibility,
	}
	entry.Buffer.Type = bufferType
	entry.Buffer.MinBindingSize = minSize
	return entry
}

// ViewLayoutFor returns the view layout matching the sample count of a key.
//
// Parameters:
//   - key: the specialization key
//
// Returns:
//   - *pipeline.BindGroupLayout: the multisampled view layout when the key uses MSAA
func (p *MeshPipeline) ViewLayoutFor(key pipeline.MeshPipelineKey) *pipeline.BindGroupLayout {
	if key.MSAASamples() > 1 {
		return p.ViewLayoutMultisampled
	}
	return p.ViewLayout
}

// Layouts returns every bind group layout handle owned by the mesh pipeline.
func (p *MeshPipeline) Layouts() []*pipeline.BindGroupLayout {
	return []*pipeline.BindGroupLayout{p.ViewLayout, p.ViewLayoutMultisampled, p.MeshLayout, p.SkinnedMeshLayout}
}

// Specialize builds the generic lit mesh descriptor for a key and vertex layout.
// Position is required. Each optional attribute present in the layout is bound at its
// fixed location and enables the matching shader define.
//
// Parameters:
//   - key: the view-dependent specialization key
//   - layout: the vertex layout of the mesh
//
// Returns:
//   - pipeline.RenderPipelineDescriptor: the mesh descriptor
//   - error: a *mesh.MissingVertexAttributeError if the layout has no position attribute
func (p *MeshPipeline) Specialize(key pipeline.MeshPipelineKey, layout *mesh.VertexBufferLayout) (pipeline.RenderPipelineDescriptor, error) {
	attributes := []mesh.AttributeDescriptor{mesh.AttributePosition.AtShaderLocation(LocationPosition)}
	var defs shader.Defs

	optional := []struct {
		attribute mesh.VertexAttribute
		location  uint32
		def       string
	}{
		{mesh.AttributeNormal, LocationNormal, "VERTEX_NORMALS"},
		{mesh.AttributeUV0, LocationUV0, "VERTEX_UVS"},
		{mesh.AttributeTangent, LocationTangent, "VERTEX_TANGENTS"},
		{mesh.AttributeColor, LocationColor, "VERTEX_COLORS"},
	}
	for _, o := range optional {
		if layout.Contains(o.attribute.ID) {
			attributes = append(attributes, o.attribute.AtShaderLocation(o.location))
			defs = append(defs, shader.Def{Name: o.def, Value: 1})
		}
	}

	meshLayout := p.MeshLayout
	if layout.Contains(mesh.AttributeJointIndex.ID) && layout.Contains(mesh.AttributeJointWeight.ID) {
		attributes = append(attributes,
			mesh.AttributeJointIndex.AtShaderLocation(LocationJointIndex),
			mesh.AttributeJointWeight.AtShaderLocation(LocationJointWeight))
		defs = append(defs, shader.Def{Name: "SKINNED", Value: 1})
		meshLayout = p.SkinnedMeshLayout
	}

	buffer, err := layout.Layout(attributes...)
	if err != nil {
		return pipeline.RenderPipelineDescriptor{}, err
	}

	format := wgpu.TextureFormatBGRA8UnormSrgb
	if key.HDR() {
		format = wgpu.TextureFormatRGBA16Float
	}

	return pipeline.RenderPipelineDescriptor{
		Label:  "mesh_pipeline",
		Layout: []*pipeline.BindGroupLayout{p.ViewLayoutFor(key), meshLayout},
		Vertex: pipeline.VertexState{
			Shader:     MeshShaderHandle,
			EntryPoint: "vertex",
			ShaderDefs: defs,
			Buffers:    []wgpu.VertexBufferLayout{buffer},
		},
		Fragment: &pipeline.FragmentState{
			Shader:     MeshShaderHandle,
			EntryPoint: "fragment",
			ShaderDefs: defs,
			Targets: []wgpu.ColorTargetState{{
				Format:    format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  key.PrimitiveTopology(),
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeBack,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth32Float,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionGreater,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		},
		Multisample: wgpu.MultisampleState{
			Count: key.MSAASamples(),
			Mask:  0xFFFFFFFF,
		},
	}, nil
}
