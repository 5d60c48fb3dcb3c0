package shader

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
)

const parserTestSource = `
//@oxy:include view
//@oxy:include mesh
//@oxy:group 0 0 uniform view view
//@oxy:group 1 0 uniform mesh mesh

struct Vertex {
    @location(0) position: vec3<f32>,
    @location(2) uv: vec2<f32>,
};

/* block comment with @vertex fn ignored() */
@vertex
fn vertex(in: Vertex, @builtin(instance_index) instance: u32) -> @builtin(position) vec4<f32> {
    return view.view_proj * mesh.model * vec4<f32>(in.position, 1.0);
}

@fragment
fn fragment() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 1.0, 1.0, 1.0);
}
`

func processed(t *testing.T) string {
	t.Helper()
	src, _, err := NewPreProcessor().Process(parserTestSource, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return src
}

func TestParseBindings(t *testing.T) {
	bindings := parseBindings(processed(t))
	if len(bindings) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(bindings))
	}
	tests := []struct {
		idx     int
		group   int
		typ     string
		minSize uint64
	}{
		{0, 0, "View", 224},
		{1, 1, "MeshUniform", 144},
	}
	for _, tt := range tests {
		b := bindings[tt.idx]
		if b.Group != tt.group || b.Type != tt.typ || b.MinBindingSize != tt.minSize {
			t.Errorf("binding %d = %+v, want group %d type %s size %d", tt.idx, b, tt.group, tt.typ, tt.minSize)
		}
		if e := b.LayoutEntry(wgpu.ShaderStageVertex); e.Buffer.Type != wgpu.BufferBindingTypeUniform {
			t.Errorf("binding %d should be a uniform buffer", tt.idx)
		}
	}
}

func TestParseEntryPointsAndInputs(t *testing.T) {
	src := processed(t)
	if eps := parseEntryPoints(src, StageVertex); len(eps) != 1 || eps[0] != "vertex" {
		t.Errorf("vertex entry points = %v, want [vertex]", eps)
	}
	if eps := parseEntryPoints(src, StageFragment); len(eps) != 1 || eps[0] != "fragment" {
		t.Errorf("fragment entry points = %v, want [fragment]", eps)
	}

	inputs := parseVertexInputs(src, "vertex")
	if len(inputs) != 2 {
		t.Fatalf("expected 2 vertex inputs, got %+v", inputs)
	}
	if inputs[0].Location != 0 || inputs[1].Location != 2 || inputs[1].Type != "vec2<f32>" {
		t.Errorf("vertex inputs = %+v", inputs)
	}
}
