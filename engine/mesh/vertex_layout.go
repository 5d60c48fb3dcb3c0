package mesh

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"slices"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// AttributeID uniquely identifies a vertex attribute across all meshes.
type AttributeID uint32

// VertexAttribute describes a named per-vertex attribute and its data format.
type VertexAttribute struct {
	// ID is the stable identifier used to look the attribute up in a layout.
	ID AttributeID
	// Name is a human readable name used in error messages.
	Name string
	// Format is the GPU vertex format of the attribute.
	Format wgpu.VertexFormat
}

// The well-known mesh attributes understood by the engine's mesh pipelines.
var (
	AttributePosition    = VertexAttribute{ID: 0, Name: "Vertex_Position", Format: wgpu.VertexFormatFloat32x3}
	AttributeNormal      = VertexAttribute{ID: 1, Name: "Vertex_Normal", Format: wgpu.VertexFormatFloat32x3}
	AttributeUV0         = VertexAttribute{ID: 2, Name: "Vertex_Uv", Format: wgpu.VertexFormatFloat32x2}
	AttributeTangent     = VertexAttribute{ID: 3, Name: "Vertex_Tangent", Format: wgpu.VertexFormatFloat32x4}
	AttributeColor       = VertexAttribute{ID: 4, Name: "Vertex_Color", Format: wgpu.VertexFormatFloat32x4}
	AttributeJointWeight = VertexAttribute{ID: 5, Name: "Vertex_JointWeight", Format: wgpu.VertexFormatFloat32x4}
	AttributeJointIndex  = VertexAttribute{ID: 6, Name: "Vertex_JointIndex", Format: wgpu.VertexFormatUint32x4}
)

// AttributeDescriptor requests that an attribute be bound at a specific shader location.
type AttributeDescriptor struct {
	ShaderLocation uint32
	ID             AttributeID
	Name           string
}

// AtShaderLocation builds an AttributeDescriptor binding this attribute to the given location.
//
// Parameters:
//   - location: the @location index used by the vertex shader
//
// Returns:
//   - AttributeDescriptor: the descriptor for use with VertexBufferLayout.Layout
func (a VertexAttribute) AtShaderLocation(location uint32) AttributeDescriptor {
	return AttributeDescriptor{ShaderLocation: location, ID: a.ID, Name: a.Name}
}

// attributeLayout is a single attribute placed inside an interleaved vertex buffer.
type attributeLayout struct {
	id     AttributeID
	name   string
	format wgpu.VertexFormat
	offset uint64
}

// VertexBufferLayout describes how a mesh interleaves its vertex attributes in a single
// buffer. Two layouts with the same attributes in the same order are Equal and share a Hash,
// which makes the layout usable as part of a pipeline cache key.
type VertexBufferLayout struct {
	attributes []attributeLayout
	stride     uint64
	hash       uint64
}

// NewVertexBufferLayout lays out the given attributes tightly packed in the order supplied.
// Duplicate attribute ids are rejected.
//
// Parameters:
//   - attributes: the attributes present on the mesh, in buffer order
//
// Returns:
//   - *VertexBufferLayout: the computed layout
//   - error: an error if an attribute appears more than once or has an unknown format
func NewVertexBufferLayout(attributes ...VertexAttribute) (*VertexBufferLayout, error) {
	l := &VertexBufferLayout{attributes: make([]attributeLayout, 0, len(attributes))}
	seen := make(map[AttributeID]struct{}, len(attributes))
	for _, a := range attributes {
		if _, dup := seen[a.ID]; dup {
			return nil, fmt.Errorf("mesh: duplicate vertex attribute %q", a.Name)
		}
		seen[a.ID] = struct{}{}

		size := VertexFormatSize(a.Format)
		if size == 0 {
			return nil, fmt.Errorf("mesh: vertex attribute %q has unsupported format %v", a.Name, a.Format)
		}
		l.attributes = append(l.attributes, attributeLayout{id: a.ID, name: a.Name, format: a.Format, offset: l.stride})
		l.stride += size
	}
	l.hash = l.computeHash()
	return l, nil
}

// Stride returns the byte distance between consecutive vertices.
func (l *VertexBufferLayout) Stride() uint64 {
	return l.stride
}

// Hash returns the FNV-1a fingerprint of the layout computed at construction time.
func (l *VertexBufferLayout) Hash() uint64 {
	return l.hash
}

// Contains reports whether the layout carries the attribute with the given id.
func (l *VertexBufferLayout) Contains(id AttributeID) bool {
	return slices.ContainsFunc(l.attributes, func(a attributeLayout) bool { return a.id == id })
}

// Equal reports whether two layouts describe the same attributes, formats and offsets.
func (l *VertexBufferLayout) Equal(other *VertexBufferLayout) bool {
	if l == other {
		return true
	}
	if l == nil || other == nil || l.stride != other.stride {
		return false
	}
	return slices.Equal(l.attributes, other.attributes)
}

// String returns a compact description of the layout, used in logs and errors.
func (l *VertexBufferLayout) String() string {
	names := make([]string, len(l.attributes))
	for i, a := range l.attributes {
		names[i] = a.name
	}
	return fmt.Sprintf("[%s] stride=%d", strings.Join(names, ", "), l.stride)
}

// Layout resolves the requested attributes against this mesh layout, producing the GPU vertex
// buffer layout a pipeline needs. The mesh may carry more attributes than requested; the
// extra ones are skipped through the stride.
//
// Parameters:
//   - descriptors: the attributes the pipeline consumes and the shader locations they bind to
//
// Returns:
//   - wgpu.VertexBufferLayout: the buffer layout for the pipeline's vertex state
//   - error: a *MissingVertexAttributeError if a requested attribute is not present
func (l *VertexBufferLayout) Layout(descriptors ...AttributeDescriptor) (wgpu.VertexBufferLayout, error) {
	attrs := make([]wgpu.VertexAttribute, 0, len(descriptors))
	for _, d := range descriptors {
		idx := slices.IndexFunc(l.attributes, func(a attributeLayout) bool { return a.id == d.ID })
		if idx < 0 {
			return wgpu.VertexBufferLayout{}, &MissingVertexAttributeError{ID: d.ID, Name: d.Name}
		}
		a := l.attributes[idx]
		attrs = append(attrs, wgpu.VertexAttribute{
			Format:         a.format,
			Offset:         a.offset,
			ShaderLocation: d.ShaderLocation,
		})
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: l.stride,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}, nil
}

func (l *VertexBufferLayout) computeHash() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, a := range l.attributes {
		binary.LittleEndian.PutUint32(buf[:4], uint32(a.id))
		binary.LittleEndian.PutUint32(buf[4:], uint32(a.format))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], a.offset)
		h.Write(buf[:])
	}
	binary.LittleEndian.PutUint64(buf[:], l.stride)
	h.Write(buf[:])
	return h.Sum64()
}

// MissingVertexAttributeError is returned when a pipeline requires an attribute the mesh
// does not provide.
type MissingVertexAttributeError struct {
	ID   AttributeID
	Name string
}

func (e *MissingVertexAttributeError) Error() string {
	return fmt.Sprintf("mesh is missing vertex attribute %q (id %d)", e.Name, e.ID)
}

// VertexFormatSize returns the size in bytes of a single value of the given vertex format,
// or 0 for formats the engine does not use.
func VertexFormatSize(format wgpu.VertexFormat) uint64 {
	switch format {
	case wgpu.VertexFormatFloat32, wgpu.VertexFormatUint32, wgpu.VertexFormatSint32, wgpu.VertexFormatFloat16x2:
		return 4
	case wgpu.VertexFormatFloat32x2, wgpu.VertexFormatUint32x2, wgpu.VertexFormatSint32x2, wgpu.VertexFormatFloat16x4:
		return 8
	case wgpu.VertexFormatFloat32x3, wgpu.VertexFormatUint32x3, wgpu.VertexFormatSint32x3:
		return 12
	case wgpu.VertexFormatFloat32x4, wgpu.VertexFormatUint32x4, wgpu.VertexFormatSint32x4:
		return 16
	default:
		return 0
	}
}
