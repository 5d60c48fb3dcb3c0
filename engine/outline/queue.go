package outline

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-outline/common"
	"github.com/Carmen-Shannon/oxy-outline/engine/mesh"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/graph"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/phase"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// MaskedMesh is a mesh selected for the mask in one view.
type MaskedMesh struct {
	Entity   phase.EntityID
	Label    string
	Layout   *mesh.VertexBufferLayout
	Topology wgpu.PrimitiveTopology
	// Geometry holds the uploaded vertex and index buffers.
	Geometry bind_group_provider.BindGroupProvider
	// Mesh holds the mesh uniform bind group and MeshOffset the mesh's dynamic offset in it.
	Mesh       bind_group_provider.BindGroupProvider
	MeshOffset uint32
}

// QueueView is one view and the meshes masked in it, in draw order.
type QueueView struct {
	ID          graph.ViewID
	MSAASamples uint32
	HDR         bool
	View        bind_group_provider.BindGroupProvider
	Meshes      []MaskedMesh
}

// Key returns the mesh pipeline key of a mesh drawn in this view.
func (v QueueView) Key(m MaskedMesh) pipeline.MeshPipelineKey {
	key := pipeline.NewMeshPipelineKey(max(v.MSAASamples, 1), m.Topology)
	if v.HDR {
		key = key.With(pipeline.MeshPipelineKeyHDR)
	}
	return key
}

// Queue rebuilds the mask phases for the current frame. Every view with at least one
// masked mesh gets a phase holding one item per mesh, in order. Views without meshes get
// no phase. The new table is published only once every view has been built.
//
// A mesh whose layout cannot be specialized fails the whole call with an error naming
// the mesh and leaves the table empty, so no view draws a partial or stale mask.
//
// Parameters:
//   - phases: the per-view phase table to fill
//   - cache: the pipeline cache receiving specialized descriptors
//   - pipelines: the specialization memo wrapping a MaskPipeline
//   - views: the views to queue
//
// Returns:
//   - error: the first specialization error, wrapped with the mesh label and entity
func Queue(phases *phase.ViewPhases[*MaskItem], cache *pipeline.Cache, pipelines *pipeline.SpecializedMeshPipelines, views ...QueueView) error {
	built := make(map[graph.ViewID]*phase.RenderPhase[*MaskItem], len(views))
	for _, v := range views {
		if len(v.Meshes) == 0 {
			continue
		}
		ph := phase.NewRenderPhase[*MaskItem]()
		for _, m := range v.Meshes {
			if m.Layout == nil {
				phases.Clear()
				return fmt.Errorf("outline: mesh %q (entity %d) has no vertex layout", m.Label, m.Entity)
			}
			id, err := pipelines.Specialize(cache, v.Key(m), m.Layout)
			if err != nil {
				phases.Clear()
				return fmt.Errorf("outline: mesh %q (entity %d) layout %s: %w", m.Label, m.Entity, m.Layout, err)
			}
			ph.Add(&MaskItem{
				EntityID:   m.Entity,
				PipelineID: id,
				Pipelines:  cache,
				Geometry:   m.Geometry,
				View:       v.View,
				Mesh:       m.Mesh,
				MeshOffset: m.MeshOffset,
			})
		}
		built[v.ID] = ph
		common.Logger().Debug("outline mask phase queued", "view", v.ID, "items", ph.Len())
	}
	phases.Replace(built)
	return nil
}
