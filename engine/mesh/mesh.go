package mesh

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// Mesh is CPU-side geometry ready for upload: interleaved vertex bytes described by a
// VertexBufferLayout plus optional 32-bit indices.
type Mesh struct {
	// Label identifies the mesh in logs and specialization errors.
	Label string
	// Layout describes the interleaved vertex attributes in VertexData.
	Layout *VertexBufferLayout
	// Topology is the primitive topology the mesh is drawn with.
	Topology wgpu.PrimitiveTopology
	// VertexData holds the interleaved vertex bytes.
	VertexData []byte
	// Indices holds the index list, or nil for non-indexed meshes.
	Indices []uint32
}

// StandardLayout returns the position/normal/uv layout that GPUVertex marshals into.
func StandardLayout() *VertexBufferLayout {
	l, err := NewVertexBufferLayout(AttributePosition, AttributeNormal, AttributeUV0)
	if err != nil {
		panic(fmt.Sprintf("mesh: standard layout: %v", err))
	}
	return l
}

// VertexCount returns the number of vertices held in VertexData.
func (m *Mesh) VertexCount() int {
	if m.Layout == nil || m.Layout.Stride() == 0 {
		return 0
	}
	return len(m.VertexData) / int(m.Layout.Stride())
}

// NewCube builds an indexed unit cube centred on the origin with the standard layout.
//
// Parameters:
//   - label: the debug label for the mesh
//   - halfExtent: half the edge length of the cube
//
// Returns:
//   - *Mesh: the cube mesh
func NewCube(label string, halfExtent float32) *Mesh {
	h := halfExtent
	faces := []struct {
		normal  [3]float32
		corners [4][3]float32
	}{
		{[3]float32{0, 0, 1}, [4][3]float32{{-h, -h, h}, {h, -h, h}, {h, h, h}, {-h, h, h}}},
		{[3]float32{0, 0, -1}, [4][3]float32{{h, -h, -h}, {-h, -h, -h}, {-h, h, -h}, {h, h, -h}}},
		{[3]float32{1, 0, 0}, [4][3]float32{{h, -h, h}, {h, -h, -h}, {h, h, -h}, {h, h, h}}},
		{[3]float32{-1, 0, 0}, [4][3]float32{{-h, -h, -h}, {-h, -h, h}, {-h, h, h}, {-h, h, -h}}},
		{[3]float32{0, 1, 0}, [4][3]float32{{-h, h, h}, {h, h, h}, {h, h, -h}, {-h, h, -h}}},
		{[3]float32{0, -1, 0}, [4][3]float32{{-h, -h, -h}, {h, -h, -h}, {h, -h, h}, {-h, -h, h}}},
	}
	uvs := [4][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

	vertices := make([]GPUVertex, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(vertices))
		for i, c := range f.corners {
			vertices = append(vertices, GPUVertex{Position: c, Normal: f.normal, TexCoord: uvs[i]})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}

	return &Mesh{
		Label:      label,
		Layout:     StandardLayout(),
		Topology:   wgpu.PrimitiveTopologyTriangleList,
		VertexData: MarshalVertices(vertices),
		Indices:    indices,
	}
}
