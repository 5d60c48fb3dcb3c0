// Package graphtest provides a GPU-free RenderContext that records every pass and
// command, for testing render graph nodes.
package graphtest

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/graph"
	"github.com/cogentcore/webgpu/wgpu"
)

// Command is one recorded encoder call.
type Command struct {
	// Op is the encoder method name, e.g. "SetPipeline" or "DrawIndexed".
	Op string
	// Pipeline is set for SetPipeline.
	Pipeline *wgpu.RenderPipeline
	// Group and BindGroup are set for SetBindGroup.
	Group     uint32
	BindGroup *wgpu.BindGroup
	Offsets   []uint32
	// Buffer is set for SetVertexBuffer and SetIndexBuffer.
	Buffer *wgpu.Buffer
	// Count is the vertex or index count of a draw.
	Count uint32
}

func (c Command) String() string {
	return fmt.Sprintf("%s(%d)", c.Op, c.Count)
}

// Pass is one recorded render pass.
type Pass struct {
	Descriptor wgpu.RenderPassDescriptor
	Commands   []Command
	Ended      bool
}

// Draws returns the draw commands of the pass, in order.
func (p *Pass) Draws() []Command {
	var draws []Command
	for _, c := range p.Commands {
		if c.Op == "Draw" || c.Op == "DrawIndexed" {
			draws = append(draws, c)
		}
	}
	return draws
}

// Recorder implements graph.RenderContext without a GPU.
type Recorder struct {
	Passes []*Pass
}

var _ graph.RenderContext = &Recorder{}

// BeginTrackedRenderPass records a new pass.
func (r *Recorder) BeginTrackedRenderPass(desc *wgpu.RenderPassDescriptor) (*graph.TrackedRenderPass, error) {
	p := &Pass{Descriptor: *desc}
	r.Passes = append(r.Passes, p)
	return graph.NewTrackedRenderPass(&encoder{pass: p}), nil
}

// encoder appends every call to its pass.
type encoder struct {
	pass *Pass
}

var _ graph.RenderPassEncoder = &encoder{}

func (e *encoder) record(c Command) {
	if e.pass.Ended {
		panic("graphtest: command recorded after End")
	}
	e.pass.Commands = append(e.pass.Commands, c)
}

func (e *encoder) SetPipeline(p *wgpu.RenderPipeline) {
	e.record(Command{Op: "SetPipeline", Pipeline: p})
}

func (e *encoder) SetBindGroup(index uint32, group *wgpu.BindGroup, offsets []uint32) {
	e.record(Command{Op: "SetBindGroup", Group: index, BindGroup: group, Offsets: offsets})
}

func (e *encoder) SetVertexBuffer(slot uint32, buffer *wgpu.Buffer, offset, size uint64) {
	e.record(Command{Op: "SetVertexBuffer", Group: slot, Buffer: buffer})
}

func (e *encoder) SetIndexBuffer(buffer *wgpu.Buffer, format wgpu.IndexFormat, offset, size uint64) {
	e.record(Command{Op: "SetIndexBuffer", Buffer: buffer})
}

func (e *encoder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	e.record(Command{Op: "Draw", Count: vertexCount})
}

func (e *encoder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	e.record(Command{Op: "DrawIndexed", Count: indexCount})
}

func (e *encoder) End() error {
	if e.pass.Ended {
		return fmt.Errorf("graphtest: pass ended twice")
	}
	e.pass.Ended = true
	return nil
}
