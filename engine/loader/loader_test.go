package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-outline/engine/mesh"
	"github.com/Carmen-Shannon/oxy-outline/engine/outline"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/mesh_pipeline"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// docBuilder assembles a glTF document and its single binary buffer.
type docBuilder struct {
	doc gltfDocument
	bin bytes.Buffer
}

func newDocBuilder() *docBuilder {
	return &docBuilder{doc: gltfDocument{Asset: gltfAsset{Version: "2.0"}}}
}

// accessor appends data as a new buffer view and returns the accessor index.
func (b *docBuilder) accessor(componentType int, accessorType string, count int, data any) int {
	offset := b.bin.Len()
	if err := binary.Write(&b.bin, binary.LittleEndian, data); err != nil {
		panic(err)
	}
	for b.bin.Len()%4 != 0 {
		b.bin.WriteByte(0)
	}
	view := len(b.doc.BufferViews)
	b.doc.BufferViews = append(b.doc.BufferViews, gltfBufferView{Buffer: 0, ByteOffset: offset, ByteLength: b.bin.Len() - offset})
	b.doc.Accessors = append(b.doc.Accessors, gltfAccessor{BufferView: &view, ComponentType: componentType, Count: count, Type: accessorType})
	return len(b.doc.Accessors) - 1
}

func (b *docBuilder) primitive(name string, prim gltfPrimitive) {
	b.doc.Meshes = append(b.doc.Meshes, gltfMesh{Name: name, Primitives: []gltfPrimitive{prim}})
}

// gltf encodes the document with the buffer as a data URI.
func (b *docBuilder) gltf(t *testing.T) []byte {
	t.Helper()
	doc := b.doc
	doc.Buffers = []gltfBuffer{{
		URI:        "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(b.bin.Bytes()),
		ByteLength: b.bin.Len(),
	}}
	out, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

// glb encodes the document as a GLB container with the buffer in the BIN chunk.
func (b *docBuilder) glb(t *testing.T) []byte {
	t.Helper()
	doc := b.doc
	doc.Buffers = []gltfBuffer{{ByteLength: b.bin.Len()}}
	jsonData, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	for len(jsonData)%4 != 0 {
		jsonData = append(jsonData, ' ')
	}

	var out bytes.Buffer
	total := 12 + 8 + len(jsonData) + 8 + b.bin.Len()
	binary.Write(&out, binary.LittleEndian, gltfGLBHeader{Magic: gltfGLBMagic, Version: gltfGLBVersion, Length: uint32(total)})
	binary.Write(&out, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(jsonData)), ChunkType: gltfGLBChunkJSON})
	out.Write(jsonData)
	binary.Write(&out, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(b.bin.Len()), ChunkType: gltfGLBChunkBIN})
	out.Write(b.bin.Bytes())
	return out.Bytes()
}

var trianglePositions = [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}

func triangleDoc() *docBuilder {
	b := newDocBuilder()
	pos := b.accessor(gltfComponentTypeFloat, gltfAccessorTypeVec3, 3, trianglePositions)
	idx := b.accessor(gltfComponentTypeUnsignedShort, gltfAccessorTypeScalar, 3, []uint16{2, 1, 0})
	b.primitive("triangle", gltfPrimitive{Attributes: map[string]int{"POSITION": pos}, Indices: &idx})
	return b
}

func skinnedDoc() *docBuilder {
	b := newDocBuilder()
	pos := b.accessor(gltfComponentTypeFloat, gltfAccessorTypeVec3, 3, trianglePositions)
	joints := b.accessor(gltfComponentTypeUnsignedByte, gltfAccessorTypeVec4, 3, [][4]uint8{{0, 1, 0, 0}, {1, 0, 0, 0}, {2, 3, 0, 0}})
	weights := b.accessor(gltfComponentTypeFloat, gltfAccessorTypeVec4, 3, [][4]float32{{0.5, 0.5, 0, 0}, {1, 0, 0, 0}, {0.25, 0.75, 0, 0}})
	b.primitive("arm", gltfPrimitive{Attributes: map[string]int{"POSITION": pos, "JOINTS_0": joints, "WEIGHTS_0": weights}})
	return b
}

func newTestLoader(t *testing.T, opts ...LoaderBuilderOption) Loader {
	t.Helper()
	l, err := NewLoader(BackendTypeGLTF, opts...)
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	return l
}

func TestLoadReaderTriangle(t *testing.T) {
	l := newTestLoader(t)
	meshes, err := l.LoadReader("triangle", bytes.NewReader(triangleDoc().gltf(t)), false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(meshes))
	}
	m := meshes[0]
	if m.Label != "triangle" || m.Topology != wgpu.PrimitiveTopologyTriangleList {
		t.Errorf("unexpected mesh %q topology %v", m.Label, m.Topology)
	}
	want, _ := mesh.NewVertexBufferLayout(mesh.AttributePosition)
	if !m.Layout.Equal(want) {
		t.Errorf("layout = %s, want %s", m.Layout, want)
	}
	if m.VertexCount() != 3 {
		t.Errorf("vertex count = %d, want 3", m.VertexCount())
	}
	if got := m.Indices; len(got) != 3 || got[0] != 2 || got[2] != 0 {
		t.Errorf("indices = %v, want [2 1 0]", got)
	}
	// Second vertex x is 1.
	if x := math.Float32frombits(binary.LittleEndian.Uint32(m.VertexData[12:])); x != 1 {
		t.Errorf("vertex 1 x = %v, want 1", x)
	}
}

func TestLoadReaderGLB(t *testing.T) {
	l := newTestLoader(t)
	meshes, err := l.LoadReader("triangle.glb", bytes.NewReader(triangleDoc().glb(t)), true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(meshes) != 1 || meshes[0].VertexCount() != 3 {
		t.Fatalf("unexpected meshes %+v", meshes)
	}
}

func TestLoadReaderCaches(t *testing.T) {
	l := newTestLoader(t)
	first, err := l.LoadReader("triangle", bytes.NewReader(triangleDoc().gltf(t)), false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	second, err := l.LoadReader("triangle", strings.NewReader(""), false)
	if err != nil {
		t.Fatalf("cached load: %v", err)
	}
	if &first[0] != &second[0] || l.Get("triangle") == nil {
		t.Error("a cached name must return the cached meshes without reading")
	}
}

func TestSkinnedImport(t *testing.T) {
	l := newTestLoader(t)
	meshes, err := l.LoadReader("arm", bytes.NewReader(skinnedDoc().gltf(t)), false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	m := meshes[0]
	if !m.Layout.Contains(mesh.AttributeJointIndex.ID) || !m.Layout.Contains(mesh.AttributeJointWeight.ID) {
		t.Fatalf("layout %s is missing joint attributes", m.Layout)
	}
	if m.Indices != nil {
		t.Errorf("non-indexed primitive should have no indices, got %v", m.Indices)
	}
	// position(12) + weights(16) + joints(16); third vertex's second joint is 3.
	if m.Layout.Stride() != 44 {
		t.Fatalf("stride = %d, want 44", m.Layout.Stride())
	}
	if j := binary.LittleEndian.Uint32(m.VertexData[2*44+28+4:]); j != 3 {
		t.Errorf("vertex 2 joint 1 = %d, want 3", j)
	}

	// The mask binds the skinned mesh layout for it.
	mp := mesh_pipeline.NewMeshPipeline()
	desc, err := outline.NewMaskPipeline(mp).Specialize(pipeline.NewMeshPipelineKey(4, m.Topology), m.Layout)
	if err != nil {
		t.Fatalf("specialize: %v", err)
	}
	if desc.Layout[1] != mp.SkinnedMeshLayout {
		t.Error("skinned mesh should specialize with the skinned mesh layout")
	}
}

func TestSkinningDisabled(t *testing.T) {
	l := newTestLoader(t, WithSkinning(false))
	meshes, err := l.LoadReader("arm", bytes.NewReader(skinnedDoc().gltf(t)), false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if meshes[0].Layout.Contains(mesh.AttributeJointIndex.ID) {
		t.Error("joint attributes must be dropped when skinning is disabled")
	}
}

func TestColorWidening(t *testing.T) {
	b := newDocBuilder()
	pos := b.accessor(gltfComponentTypeFloat, gltfAccessorTypeVec3, 3, trianglePositions)
	col := b.accessor(gltfComponentTypeUnsignedByte, gltfAccessorTypeVec3, 3, [][3]uint8{{255, 0, 0}, {0, 255, 0}, {0, 0, 255}})
	b.doc.Accessors[col].Normalized = true
	b.primitive("colored", gltfPrimitive{Attributes: map[string]int{"POSITION": pos, "COLOR_0": col}})

	meshes, err := newTestLoader(t).LoadReader("colored", bytes.NewReader(b.gltf(t)), false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	m := meshes[0]
	if m.Layout.Stride() != 28 {
		t.Fatalf("stride = %d, want 28", m.Layout.Stride())
	}
	alpha := math.Float32frombits(binary.LittleEndian.Uint32(m.VertexData[12+12:]))
	red := math.Float32frombits(binary.LittleEndian.Uint32(m.VertexData[12:]))
	if alpha != 1 || red != 1 {
		t.Errorf("vertex 0 color red=%v alpha=%v, want 1 and 1", red, alpha)
	}
}

func TestConvertTopology(t *testing.T) {
	tests := []struct {
		name     string
		mode     int
		indices  []uint32
		vertices int
		want     wgpu.PrimitiveTopology
		wantIdx  []uint32
	}{
		{"triangles", gltfPrimitiveModeTriangles, nil, 3, wgpu.PrimitiveTopologyTriangleList, nil},
		{"strip", gltfPrimitiveModeTriangleStrip, nil, 4, wgpu.PrimitiveTopologyTriangleStrip, nil},
		{"fan", gltfPrimitiveModeTriangleFan, nil, 4, wgpu.PrimitiveTopologyTriangleList, []uint32{0, 1, 2, 0, 2, 3}},
		{"indexed fan", gltfPrimitiveModeTriangleFan, []uint32{3, 2, 1}, 4, wgpu.PrimitiveTopologyTriangleList, []uint32{3, 2, 1}},
		{"line loop", gltfPrimitiveModeLineLoop, nil, 3, wgpu.PrimitiveTopologyLineList, []uint32{0, 1, 1, 2, 2, 0}},
		{"points", gltfPrimitiveModePoints, nil, 2, wgpu.PrimitiveTopologyPointList, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topo, idx, err := convertTopology(tt.mode, tt.indices, tt.vertices)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if topo != tt.want {
				t.Errorf("topology = %v, want %v", topo, tt.want)
			}
			if len(idx) != len(tt.wantIdx) {
				t.Fatalf("indices = %v, want %v", idx, tt.wantIdx)
			}
			for i := range idx {
				if idx[i] != tt.wantIdx[i] {
					t.Fatalf("indices = %v, want %v", idx, tt.wantIdx)
				}
			}
		})
	}
	if _, _, err := convertTopology(9, nil, 3); err == nil {
		t.Error("expected an error for an unknown mode")
	}
}

func TestImportErrors(t *testing.T) {
	noPosition := newDocBuilder()
	n := noPosition.accessor(gltfComponentTypeFloat, gltfAccessorTypeVec3, 3, trianglePositions)
	noPosition.primitive("bad", gltfPrimitive{Attributes: map[string]int{"NORMAL": n}})

	unpaired := newDocBuilder()
	p := unpaired.accessor(gltfComponentTypeFloat, gltfAccessorTypeVec3, 3, trianglePositions)
	j := unpaired.accessor(gltfComponentTypeUnsignedByte, gltfAccessorTypeVec4, 3, [][4]uint8{{}, {}, {}})
	unpaired.primitive("bad", gltfPrimitive{Attributes: map[string]int{"POSITION": p, "JOINTS_0": j}})

	badIndex := newDocBuilder()
	p = badIndex.accessor(gltfComponentTypeFloat, gltfAccessorTypeVec3, 3, trianglePositions)
	i := badIndex.accessor(gltfComponentTypeUnsignedShort, gltfAccessorTypeScalar, 3, []uint16{0, 1, 7})
	badIndex.primitive("bad", gltfPrimitive{Attributes: map[string]int{"POSITION": p}, Indices: &i})

	overrun := triangleDoc()
	overrun.doc.Accessors[0].Count = 30

	version := triangleDoc()
	version.doc.Asset.Version = "1.0"

	tests := []struct {
		name    string
		data    []byte
		wantErr string
		target  error
	}{
		{"missing position", noPosition.gltf(t), "no POSITION", nil},
		{"unpaired skin", unpaired.gltf(t), "", errUnpairedSkin},
		{"index out of range", badIndex.gltf(t), "index 7 out of range", nil},
		{"accessor overrun", overrun.gltf(t), "", errAccessorBounds},
		{"version", version.gltf(t), "", errInvalidGLTFVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestLoader(t).LoadReader(tt.name, bytes.NewReader(tt.data), false)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("expected %v, got %v", tt.target, err)
			}
			if tt.wantErr != "" && !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	if _, err := newTestLoader(t).Load("model.obj"); err == nil {
		t.Error("expected an error for an unsupported extension")
	}
}
