package mesh

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-outline/common"
)

// GPUMeshUniformSource is the canonical WGSL definition of the MeshUniform struct.
// Matches GPUMeshUniform layout exactly (144 bytes, uniform aligned).
//
//go:embed assets/mesh_uniform.wgsl
var GPUMeshUniformSource string

// MeshUniformFlags are per-mesh bits read by mesh shaders.
type MeshUniformFlags uint32

const (
	// MeshFlagShadowReceiver marks meshes that sample shadow maps in the lit pipeline.
	MeshFlagShadowReceiver MeshUniformFlags = 1 << iota
	// MeshFlagSignDeterminantModel is set when the model matrix flips winding.
	MeshFlagSignDeterminantModel
)

// GPUMeshUniform is the GPU-aligned representation of the per-mesh uniform buffer bound at
// group 1 of every mesh pipeline. Matches the WGSL MeshUniform struct (see GPUMeshUniformSource).
// Size: 144 bytes.
type GPUMeshUniform struct {
	Model                 [16]float32      // offset   0: model-to-world transform
	InverseTransposeModel [16]float32      // offset  64: normal matrix
	Flags                 MeshUniformFlags // offset 128: MeshUniformFlags bits
	_pad                  [3]uint32        // offset 132: padding to 144 bytes
}

// NewMeshUniform builds the uniform for a model transform: the normal matrix is the
// inverse transpose of the model, and MeshFlagSignDeterminantModel is set for mirroring
// transforms. A singular model leaves the normal matrix zeroed.
//
// Parameters:
//   - model: the model-to-world transform
//
// Returns:
//   - GPUMeshUniform: the uniform ready to marshal
func NewMeshUniform(model common.Mat4) GPUMeshUniform {
	u := GPUMeshUniform{Model: [16]float32(model)}
	if inv, ok := model.Inverse(); ok {
		u.InverseTransposeModel = [16]float32(inv.Transpose())
	}
	if model.Det3() < 0 {
		u.Flags |= MeshFlagSignDeterminantModel
	}
	return u
}

// Size returns the size of the GPUMeshUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (144)
func (g *GPUMeshUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUMeshUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 144-byte buffer ready for GPU upload
func (g *GPUMeshUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.Model[i]))
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(g.InverseTransposeModel[i]))
	}
	binary.LittleEndian.PutUint32(buf[128:], uint32(g.Flags))
	return buf
}

// GPUVertex is a position/normal/uv vertex matching the layout built by StandardLayout.
// Size: 32 bytes.
type GPUVertex struct {
	Position [3]float32 // offset  0
	Normal   [3]float32 // offset 12
	TexCoord [2]float32 // offset 24
}

// Marshal serializes the vertex into a 32-byte little-endian buffer.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload
func (g *GPUVertex) Marshal() []byte {
	buf := make([]byte, 32)
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.Position[i]))
		binary.LittleEndian.PutUint32(buf[12+i*4:], math.Float32bits(g.Normal[i]))
	}
	binary.LittleEndian.PutUint32(buf[24:], math.Float32bits(g.TexCoord[0]))
	binary.LittleEndian.PutUint32(buf[28:], math.Float32bits(g.TexCoord[1]))
	return buf
}

// MarshalVertices concatenates the marshalled form of every vertex.
func MarshalVertices(vertices []GPUVertex) []byte {
	out := make([]byte, 0, len(vertices)*32)
	for i := range vertices {
		out = append(out, vertices[i].Marshal()...)
	}
	return out
}

// MarshalIndices serializes 32-bit indices for upload into an index buffer.
func MarshalIndices(indices []uint32) []byte {
	out := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(out[i*4:], idx)
	}
	return out
}
