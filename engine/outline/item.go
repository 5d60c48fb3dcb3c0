package outline

import (
	"github.com/Carmen-Shannon/oxy-outline/common"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/graph"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/phase"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineSource looks up compiled pipelines by cache id. *pipeline.Cache implements it.
type PipelineSource interface {
	Pipeline(id pipeline.CachedID) (pipeline.Pipeline, bool)
}

// MaskItem draws one masked mesh with its specialized mask pipeline.
type MaskItem struct {
	// EntityID is the entity the mesh belongs to.
	EntityID phase.EntityID
	// PipelineID is the specialized mask pipeline in Pipelines.
	PipelineID pipeline.CachedID
	// Pipelines resolves PipelineID at draw time.
	Pipelines PipelineSource
	// Geometry holds the vertex and optional index buffer.
	Geometry bind_group_provider.BindGroupProvider
	// View holds the view uniform bind group, bound at group 0.
	View bind_group_provider.BindGroupProvider
	// Mesh holds the mesh uniform bind group, bound at group 1 with MeshOffset.
	Mesh       bind_group_provider.BindGroupProvider
	MeshOffset uint32
}

var _ phase.Item = &MaskItem{}

// Entity returns the entity the item draws.
func (m *MaskItem) Entity() phase.EntityID {
	return m.EntityID
}

// Draw binds the item's pipeline, bind groups and buffers and issues its draw. Items
// whose pipeline is not compiled yet are skipped.
//
// Parameters:
//   - pass: the pass to record into
//   - view: the view being rendered
//
// Returns:
//   - error: always nil; a missing pipeline only skips the item
func (m *MaskItem) Draw(pass *graph.TrackedRenderPass, view graph.ViewID) error {
	p, ok := m.Pipelines.Pipeline(m.PipelineID)
	if !ok || p.RenderPipeline() == nil {
		common.Logger().Warn("outline mask item skipped, pipeline not ready",
			"entity", m.EntityID, "pipeline", m.PipelineID, "view", view)
		return nil
	}

	pass.SetPipeline(p.RenderPipeline())
	pass.SetBindGroup(0, m.View.BindGroup(), nil)
	pass.SetBindGroup(1, m.Mesh.BindGroup(), []uint32{m.MeshOffset})
	pass.SetVertexBuffer(0, m.Geometry.VertexBuffer(), 0, wgpu.WholeSize)

	if m.Geometry.IndexBuffer() != nil {
		pass.SetIndexBuffer(m.Geometry.IndexBuffer(), wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		pass.DrawIndexed(m.Geometry.IndexCount(), 1, 0, 0, 0)
		return nil
	}
	pass.Draw(m.Geometry.VertexCount(), 1, 0, 0)
	return nil
}
