package graph

import (
	"slices"

	"github.com/cogentcore/webgpu/wgpu"
)

// RenderPassEncoder is the subset of *wgpu.RenderPassEncoder the render graph records into.
type RenderPassEncoder interface {
	SetPipeline(pipeline *wgpu.RenderPipeline)
	SetBindGroup(groupIndex uint32, group *wgpu.BindGroup, dynamicOffsets []uint32)
	SetVertexBuffer(slot uint32, buffer *wgpu.Buffer, offset, size uint64)
	SetIndexBuffer(buffer *wgpu.Buffer, format wgpu.IndexFormat, offset, size uint64)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
	End() error
}

// RenderContext opens render passes for nodes.
type RenderContext interface {
	// BeginTrackedRenderPass opens a render pass described by desc.
	//
	// Parameters:
	//   - desc: the render pass descriptor
	//
	// Returns:
	//   - *TrackedRenderPass: the opened pass
	//   - error: an error if the pass could not be opened
	BeginTrackedRenderPass(desc *wgpu.RenderPassDescriptor) (*TrackedRenderPass, error)
}

type boundGroup struct {
	group   *wgpu.BindGroup
	offsets []uint32
}

type boundBuffer struct {
	buffer       *wgpu.Buffer
	offset, size uint64
	format       wgpu.IndexFormat
}

// TrackedRenderPass wraps a RenderPassEncoder and skips bindings that would not change
// the encoder state.
type TrackedRenderPass struct {
	pass          RenderPassEncoder
	pipeline      *wgpu.RenderPipeline
	bindGroups    map[uint32]boundGroup
	vertexBuffers map[uint32]boundBuffer
	indexBuffer   *boundBuffer
	draws         int
}

// NewTrackedRenderPass wraps an encoder.
//
// Parameters:
//   - pass: the encoder to record into
//
// Returns:
//   - *TrackedRenderPass: the tracked pass
func NewTrackedRenderPass(pass RenderPassEncoder) *TrackedRenderPass {
	return &TrackedRenderPass{
		pass:          pass,
		bindGroups:    make(map[uint32]boundGroup),
		vertexBuffers: make(map[uint32]boundBuffer),
	}
}

// SetPipeline binds a render pipeline unless it is already bound.
func (t *TrackedRenderPass) SetPipeline(p *wgpu.RenderPipeline) {
	if t.pipeline == p {
		return
	}
	t.pass.SetPipeline(p)
	t.pipeline = p
}

// SetBindGroup binds a bind group unless the same group and offsets are already bound.
func (t *TrackedRenderPass) SetBindGroup(index uint32, group *wgpu.BindGroup, dynamicOffsets []uint32) {
	if b, ok := t.bindGroups[index]; ok && b.group == group && slices.Equal(b.offsets, dynamicOffsets) {
		return
	}
	t.pass.SetBindGroup(index, group, dynamicOffsets)
	t.bindGroups[index] = boundGroup{group: group, offsets: slices.Clone(dynamicOffsets)}
}

// SetVertexBuffer binds a vertex buffer slice unless it is already bound to slot.
func (t *TrackedRenderPass) SetVertexBuffer(slot uint32, buffer *wgpu.Buffer, offset, size uint64) {
	b := boundBuffer{buffer: buffer, offset: offset, size: size}
	if cur, ok := t.vertexBuffers[slot]; ok && cur == b {
		return
	}
	t.pass.SetVertexBuffer(slot, buffer, offset, size)
	t.vertexBuffers[slot] = b
}

// SetIndexBuffer binds an index buffer slice unless it is already bound.
func (t *TrackedRenderPass) SetIndexBuffer(buffer *wgpu.Buffer, format wgpu.IndexFormat, offset, size uint64) {
	b := boundBuffer{buffer: buffer, offset: offset, size: size, format: format}
	if t.indexBuffer != nil && *t.indexBuffer == b {
		return
	}
	t.pass.SetIndexBuffer(buffer, format, offset, size)
	t.indexBuffer = &b
}

// Draw issues a non-indexed draw.
func (t *TrackedRenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	t.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
	t.draws++
}

// DrawIndexed issues an indexed draw.
func (t *TrackedRenderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	t.pass.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
	t.draws++
}

// DrawCount returns the number of draws recorded so far.
func (t *TrackedRenderPass) DrawCount() int {
	return t.draws
}

// End closes the pass.
func (t *TrackedRenderPass) End() error {
	return t.pass.End()
}
