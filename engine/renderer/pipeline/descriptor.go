package pipeline

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
	"math"

	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// VertexState describes the vertex stage of a render pipeline by shader handle.
type VertexState struct {
	Shader     shader.Handle
	EntryPoint string
	ShaderDefs shader.Defs
	Buffers    []wgpu.VertexBufferLayout
}

// FragmentState describes the fragment stage of a render pipeline by shader handle.
type FragmentState struct {
	Shader     shader.Handle
	EntryPoint string
	ShaderDefs shader.Defs
	Targets    []wgpu.ColorTargetState
}

// RenderPipelineDescriptor is the complete, GPU-independent description of a render
// pipeline. It references shaders and bind group layouts by engine handle, so it can be
// produced, compared and cached without a device.
type RenderPipelineDescriptor struct {
	Label        string
	Layout       []*BindGroupLayout
	Vertex       VertexState
	Fragment     *FragmentState
	Primitive    wgpu.PrimitiveState
	DepthStencil *wgpu.DepthStencilState
	Multisample  wgpu.MultisampleState
}

// Hash returns an FNV-1a fingerprint of every field of the descriptor. Equal descriptors
// always share a hash; the cache still compares candidates field by field on collision.
//
// Returns:
//   - uint64: the descriptor hash
func (d *RenderPipelineDescriptor) Hash() uint64 {
	h := fnv.New64a()
	writeString(h, d.Label)
	writeUint(h, uint64(len(d.Layout)))
	for _, l := range d.Layout {
		if l == nil {
			writeUint(h, 0)
			continue
		}
		writeUint(h, l.ID())
	}

	writeString(h, string(d.Vertex.Shader))
	writeString(h, d.Vertex.EntryPoint)
	writeString(h, d.Vertex.ShaderDefs.Key())
	writeUint(h, uint64(len(d.Vertex.Buffers)))
	for _, b := range d.Vertex.Buffers {
		writeUint(h, b.ArrayStride)
		writeUint(h, uint64(b.StepMode))
		writeUint(h, uint64(len(b.Attributes)))
		for _, a := range b.Attributes {
			writeUint(h, uint64(a.Format))
			writeUint(h, a.Offset)
			writeUint(h, uint64(a.ShaderLocation))
		}
	}

	if f := d.Fragment; f != nil {
		writeUint(h, 1)
		writeString(h, string(f.Shader))
		writeString(h, f.EntryPoint)
		writeString(h, f.ShaderDefs.Key())
		writeUint(h, uint64(len(f.Targets)))
		for _, t := range f.Targets {
			writeUint(h, uint64(t.Format))
			writeUint(h, uint64(t.WriteMask))
			if t.Blend == nil {
				writeUint(h, 0)
				continue
			}
			writeUint(h, 1)
			for _, c := range []wgpu.BlendComponent{t.Blend.Color, t.Blend.Alpha} {
				writeUint(h, uint64(c.Operation))
				writeUint(h, uint64(c.SrcFactor))
				writeUint(h, uint64(c.DstFactor))
			}
		}
	} else {
		writeUint(h, 0)
	}

	writeUint(h, uint64(d.Primitive.Topology))
	writeUint(h, uint64(d.Primitive.StripIndexFormat))
	writeUint(h, uint64(d.Primitive.FrontFace))
	writeUint(h, uint64(d.Primitive.CullMode))

	if ds := d.DepthStencil; ds != nil {
		writeUint(h, 1)
		writeUint(h, uint64(ds.Format))
		writeBool(h, ds.DepthWriteEnabled)
		writeUint(h, uint64(ds.DepthCompare))
		writeUint(h, uint64(uint32(ds.DepthBias)))
		writeUint(h, uint64(math.Float32bits(ds.DepthBiasSlopeScale)))
		writeUint(h, uint64(math.Float32bits(ds.DepthBiasClamp)))
	} else {
		writeUint(h, 0)
	}

	writeUint(h, uint64(d.Multisample.Count))
	writeUint(h, uint64(d.Multisample.Mask))
	writeBool(h, d.Multisample.AlphaToCoverageEnabled)
	return h.Sum64()
}

func writeUint(h hash.Hash64, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

func writeBool(h hash.Hash64, v bool) {
	if v {
		writeUint(h, 1)
		return
	}
	writeUint(h, 0)
}

func writeString(h hash.Hash64, s string) {
	writeUint(h, uint64(len(s)))
	h.Write([]byte(s))
}
