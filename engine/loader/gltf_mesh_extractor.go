package loader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-outline/common"
	"github.com/Carmen-Shannon/oxy-outline/engine/mesh"
	"github.com/cogentcore/webgpu/wgpu"
)

// errUnpairedSkin is returned for primitives with JOINTS_0 but no WEIGHTS_0, or the reverse.
var errUnpairedSkin = errors.New("JOINTS_0 and WEIGHTS_0 must be present together")

// vertexStream is one attribute's values for every vertex, either float or integer.
type vertexStream struct {
	attribute mesh.VertexAttribute
	floats    []float32
	uints     []uint32
	// components is the number of values per vertex.
	components int
}

func (s vertexStream) vertexCount() int {
	if s.floats != nil {
		return len(s.floats) / s.components
	}
	return len(s.uints) / s.components
}

// gltfSemantic binds a glTF attribute semantic to an engine vertex attribute.
type gltfSemantic struct {
	name      string
	attribute mesh.VertexAttribute
	// accessorTypes lists the accepted accessor types, widest first.
	accessorTypes []string
	integer       bool
	skin          bool
}

// gltfSemantics are the attributes the importer reads, in interleaving order.
var gltfSemantics = []gltfSemantic{
	{name: "POSITION", attribute: mesh.AttributePosition, accessorTypes: []string{gltfAccessorTypeVec3}},
	{name: "NORMAL", attribute: mesh.AttributeNormal, accessorTypes: []string{gltfAccessorTypeVec3}},
	{name: "TEXCOORD_0", attribute: mesh.AttributeUV0, accessorTypes: []string{gltfAccessorTypeVec2}},
	{name: "TANGENT", attribute: mesh.AttributeTangent, accessorTypes: []string{gltfAccessorTypeVec4}},
	{name: "COLOR_0", attribute: mesh.AttributeColor, accessorTypes: []string{gltfAccessorTypeVec4, gltfAccessorTypeVec3}},
	{name: "WEIGHTS_0", attribute: mesh.AttributeJointWeight, accessorTypes: []string{gltfAccessorTypeVec4}, skin: true},
	{name: "JOINTS_0", attribute: mesh.AttributeJointIndex, accessorTypes: []string{gltfAccessorTypeVec4}, integer: true, skin: true},
}

// extractMeshes converts every primitive of every mesh into an engine mesh.
//
// Parameters:
//   - f: the parsed document
//   - skinning: keep JOINTS_0/WEIGHTS_0; when false skinned primitives import as static
//
// Returns:
//   - []*mesh.Mesh: one mesh per primitive, in document order
//   - error: the first primitive that could not be converted
func extractMeshes(f *gltfFile, skinning bool) ([]*mesh.Mesh, error) {
	var out []*mesh.Mesh
	for mi := range f.doc.Meshes {
		gm := &f.doc.Meshes[mi]
		for pi := range gm.Primitives {
			m, err := extractPrimitive(f, &gm.Primitives[pi], primitiveName(gm.Name, mi, pi), skinning)
			if err != nil {
				return nil, fmt.Errorf("mesh %d primitive %d: %w", mi, pi, err)
			}
			out = append(out, m)
		}
	}
	return out, nil
}

func primitiveName(meshName string, meshIndex, primIndex int) string {
	name := common.Coalesce(meshName, fmt.Sprintf("mesh_%d", meshIndex))
	if primIndex > 0 {
		name = fmt.Sprintf("%s_prim%d", name, primIndex)
	}
	return name
}

func extractPrimitive(f *gltfFile, prim *gltfPrimitive, name string, skinning bool) (*mesh.Mesh, error) {
	if _, ok := prim.Attributes["POSITION"]; !ok {
		return nil, errors.New("primitive has no POSITION attribute")
	}
	_, hasJoints := prim.Attributes["JOINTS_0"]
	_, hasWeights := prim.Attributes["WEIGHTS_0"]
	if hasJoints != hasWeights {
		return nil, errUnpairedSkin
	}

	var streams []vertexStream
	for _, sem := range gltfSemantics {
		index, ok := prim.Attributes[sem.name]
		if !ok || (sem.skin && !skinning) {
			continue
		}
		s, err := readStream(f, index, sem)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sem.name, err)
		}
		streams = append(streams, s)
	}

	vertexCount := streams[0].vertexCount()
	attributes := make([]mesh.VertexAttribute, len(streams))
	for i, s := range streams {
		if n := s.vertexCount(); n != vertexCount {
			return nil, fmt.Errorf("%s has %d vertices, POSITION has %d", s.attribute.Name, n, vertexCount)
		}
		attributes[i] = s.attribute
	}
	layout, err := mesh.NewVertexBufferLayout(attributes...)
	if err != nil {
		return nil, err
	}

	var indices []uint32
	if prim.Indices != nil {
		if indices, err = f.readUints(*prim.Indices, gltfAccessorTypeScalar); err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
		for _, idx := range indices {
			if int(idx) >= vertexCount {
				return nil, fmt.Errorf("index %d out of range for %d vertices", idx, vertexCount)
			}
		}
	}

	mode := gltfPrimitiveModeTriangles
	if prim.Mode != nil {
		mode = *prim.Mode
	}
	topology, indices, err := convertTopology(mode, indices, vertexCount)
	if err != nil {
		return nil, err
	}

	return &mesh.Mesh{
		Label:      name,
		Layout:     layout,
		Topology:   topology,
		VertexData: interleave(streams, layout, vertexCount),
		Indices:    indices,
	}, nil
}

// readStream reads one attribute, widening three-component colors to four with alpha 1.
func readStream(f *gltfFile, index int, sem gltfSemantic) (vertexStream, error) {
	acc, err := f.accessor(index)
	if err != nil {
		return vertexStream{}, err
	}
	accessorType := sem.accessorTypes[0]
	for _, t := range sem.accessorTypes {
		if acc.Type == t {
			accessorType = t
			break
		}
	}

	s := vertexStream{attribute: sem.attribute, components: componentCount(sem.accessorTypes[0])}
	if sem.integer {
		s.uints, err = f.readUints(index, accessorType)
		return s, err
	}
	values, err := f.readFloats(index, accessorType)
	if err != nil {
		return s, err
	}
	if accessorType == gltfAccessorTypeVec3 && sem.attribute.ID == mesh.AttributeColor.ID {
		widened := make([]float32, 0, len(values)/3*4)
		for i := 0; i+2 < len(values); i += 3 {
			widened = append(widened, values[i], values[i+1], values[i+2], 1)
		}
		values = widened
	}
	s.floats = values
	return s, nil
}

// interleave writes the streams into one buffer laid out by layout.
func interleave(streams []vertexStream, layout *mesh.VertexBufferLayout, vertexCount int) []byte {
	stride := int(layout.Stride())
	out := make([]byte, vertexCount*stride)
	for v := range vertexCount {
		offset := v * stride
		for _, s := range streams {
			for c := range s.components {
				var bits uint32
				if s.uints != nil {
					bits = s.uints[v*s.components+c]
				} else {
					bits = math.Float32bits(s.floats[v*s.components+c])
				}
				binary.LittleEndian.PutUint32(out[offset:], bits)
				offset += 4
			}
		}
	}
	return out
}

// convertTopology maps a glTF primitive mode to a GPU topology. Line loops and triangle
// fans have no GPU equivalent and are rewritten as indexed line and triangle lists.
func convertTopology(mode int, indices []uint32, vertexCount int) (wgpu.PrimitiveTopology, []uint32, error) {
	sequential := func() []uint32 {
		if indices != nil {
			return indices
		}
		seq := make([]uint32, vertexCount)
		for i := range seq {
			seq[i] = uint32(i)
		}
		return seq
	}

	switch mode {
	case gltfPrimitiveModePoints:
		return wgpu.PrimitiveTopologyPointList, indices, nil
	case gltfPrimitiveModeLines:
		return wgpu.PrimitiveTopologyLineList, indices, nil
	case gltfPrimitiveModeLineStrip:
		return wgpu.PrimitiveTopologyLineStrip, indices, nil
	case gltfPrimitiveModeTriangles:
		return wgpu.PrimitiveTopologyTriangleList, indices, nil
	case gltfPrimitiveModeTriangleStrip:
		return wgpu.PrimitiveTopologyTriangleStrip, indices, nil
	case gltfPrimitiveModeLineLoop:
		loop := sequential()
		if len(loop) < 2 {
			return wgpu.PrimitiveTopologyLineList, nil, nil
		}
		lines := make([]uint32, 0, 2*len(loop))
		for i := range loop {
			lines = append(lines, loop[i], loop[(i+1)%len(loop)])
		}
		return wgpu.PrimitiveTopologyLineList, lines, nil
	case gltfPrimitiveModeTriangleFan:
		fan := sequential()
		var tris []uint32
		for i := 1; i+1 < len(fan); i++ {
			tris = append(tris, fan[0], fan[i], fan[i+1])
		}
		return wgpu.PrimitiveTopologyTriangleList, tris, nil
	default:
		return 0, nil, fmt.Errorf("unsupported primitive mode %d", mode)
	}
}
