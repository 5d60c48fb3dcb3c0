package mesh_pipeline

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Carmen-Shannon/oxy-outline/engine/mesh"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

func fakeCompile(string) ([]byte, error) {
	return []byte{0x03, 0x02, 0x23, 0x07}, nil
}

func TestSpecializeStandardLayout(t *testing.T) {
	p := NewMeshPipeline()
	key := pipeline.NewMeshPipelineKey(4, wgpu.PrimitiveTopologyTriangleList)

	desc, err := p.Specialize(key, mesh.StandardLayout())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(desc.Layout) != 2 || desc.Layout[0] != p.ViewLayoutMultisampled || desc.Layout[1] != p.MeshLayout {
		t.Errorf("unexpected layouts: %v", desc.Layout)
	}
	if desc.Multisample.Count != 4 {
		t.Errorf("multisample count = %d, want 4", desc.Multisample.Count)
	}
	if desc.DepthStencil == nil || desc.DepthStencil.DepthCompare != wgpu.CompareFunctionGreater {
		t.Errorf("expected a reverse-z depth state, got %+v", desc.DepthStencil)
	}
	if got := desc.Fragment.Targets[0].Format; got != wgpu.TextureFormatBGRA8UnormSrgb {
		t.Errorf("target format = %v, want BGRA8UnormSrgb", got)
	}
	for _, name := range []string{"VERTEX_NORMALS", "VERTEX_UVS"} {
		if _, ok := desc.Vertex.ShaderDefs.Lookup(name); !ok {
			t.Errorf("expected define %s in %v", name, desc.Vertex.ShaderDefs)
		}
	}
	if _, ok := desc.Vertex.ShaderDefs.Lookup("SKINNED"); ok {
		t.Error("standard layout must not be skinned")
	}
	if attrs := desc.Vertex.Buffers[0].Attributes; len(attrs) != 3 || attrs[2].ShaderLocation != LocationUV0 {
		t.Errorf("unexpected vertex attributes: %+v", attrs)
	}
}

func TestSpecializeKeyVariants(t *testing.T) {
	p := NewMeshPipeline()
	single := pipeline.NewMeshPipelineKey(1, wgpu.PrimitiveTopologyLineList).With(pipeline.MeshPipelineKeyHDR)

	desc, err := p.Specialize(single, mesh.StandardLayout())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if desc.Layout[0] != p.ViewLayout {
		t.Error("single-sample keys should use the plain view layout")
	}
	if desc.Primitive.Topology != wgpu.PrimitiveTopologyLineList {
		t.Errorf("topology = %v, want LineList", desc.Primitive.Topology)
	}
	if desc.Fragment.Targets[0].Format != wgpu.TextureFormatRGBA16Float {
		t.Errorf("HDR target format = %v, want RGBA16Float", desc.Fragment.Targets[0].Format)
	}
}

func TestSpecializeSkinned(t *testing.T) {
	p := NewMeshPipeline()
	layout, err := mesh.NewVertexBufferLayout(mesh.AttributePosition, mesh.AttributeJointIndex, mesh.AttributeJointWeight)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	desc, err := p.Specialize(pipeline.NewMeshPipelineKey(4, wgpu.PrimitiveTopologyTriangleList), layout)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if desc.Layout[1] != p.SkinnedMeshLayout {
		t.Error("skinned meshes should use the skinned mesh layout")
	}
	if _, ok := desc.Vertex.ShaderDefs.Lookup("SKINNED"); !ok {
		t.Error("expected the SKINNED define")
	}
}

func TestSpecializeMissingPosition(t *testing.T) {
	p := NewMeshPipeline()
	layout, _ := mesh.NewVertexBufferLayout(mesh.AttributeNormal, mesh.AttributeUV0)

	_, err := p.Specialize(pipeline.NewMeshPipelineKey(4, wgpu.PrimitiveTopologyTriangleList), layout)
	var missing *mesh.MissingVertexAttributeError
	if !errors.As(err, &missing) || missing.ID != mesh.AttributePosition.ID {
		t.Fatalf("expected missing position error, got %v", err)
	}
}

func TestSpecializeDeterministic(t *testing.T) {
	p := NewMeshPipeline()
	key := pipeline.NewMeshPipelineKey(4, wgpu.PrimitiveTopologyTriangleList)
	a, _ := p.Specialize(key, mesh.StandardLayout())
	b, _ := p.Specialize(key, mesh.StandardLayout())
	if !reflect.DeepEqual(a, b) || a.Hash() != b.Hash() {
		t.Error("equal inputs must produce identical descriptors")
	}
}

func TestMeshShaderMatchesLayouts(t *testing.T) {
	p := NewMeshPipeline()
	r := shader.NewRegistry(shader.WithCompiler(fakeCompile))
	r.Register(MeshShaderHandle, MeshShaderSource)

	desc, err := p.Specialize(pipeline.NewMeshPipelineKey(4, wgpu.PrimitiveTopologyTriangleList), mesh.StandardLayout())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	module, err := r.Resolve(desc.Vertex.Shader, shader.StageVertex, desc.Vertex.ShaderDefs)
	if err != nil {
		t.Fatalf("resolve mesh shader: %v", err)
	}

	locations := map[uint32]bool{}
	for _, a := range desc.Vertex.Buffers[0].Attributes {
		locations[a.ShaderLocation] = true
	}
	inputs := module.VertexInputs[desc.Vertex.EntryPoint]
	if len(inputs) != len(locations) {
		t.Errorf("shader inputs %+v do not match buffer locations %v", inputs, locations)
	}
	for _, in := range inputs {
		if !locations[uint32(in.Location)] {
			t.Errorf("shader input %s at location %d has no vertex attribute", in.Name, in.Location)
		}
	}

	for _, b := range module.Bindings {
		if b.Group >= len(desc.Layout) {
			t.Fatalf("binding %s uses group %d outside the layout list", b.Name, b.Group)
		}
		entries := desc.Layout[b.Group].Entries()
		if b.Binding >= len(entries) {
			t.Fatalf("binding %s at %d/%d has no layout entry", b.Name, b.Group, b.Binding)
		}
		if got := entries[b.Binding].Buffer.MinBindingSize; got != b.MinBindingSize {
			t.Errorf("binding %s min size = %d, layout says %d", b.Name, b.MinBindingSize, got)
		}
	}
}
