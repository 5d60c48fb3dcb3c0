package pipeline

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// pipeline is the implementation of the Pipeline interface.
// It pairs a compiled GPU render pipeline with the descriptor it was built from.
type pipeline struct {
	// pipelineKey is the unique identifier for this pipeline, used for labels and logs
	pipelineKey string
	// id is the cache slot the pipeline was compiled for
	id CachedID
	// descriptor is the description the GPU pipeline was created from
	descriptor RenderPipelineDescriptor
	// renderPipeline is the compiled GPU pipeline
	renderPipeline *wgpu.RenderPipeline
}

// Pipeline is a compiled render pipeline stored in a Cache.
type Pipeline interface {
	// PipelineKey returns the unique key associated with this pipeline.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// ID returns the cache slot this pipeline was compiled for.
	//
	// Returns:
	//   - CachedID: the cache id
	ID() CachedID

	// Descriptor returns the descriptor the pipeline was created from.
	//
	// Returns:
	//   - RenderPipelineDescriptor: the source descriptor
	Descriptor() RenderPipelineDescriptor

	// RenderPipeline returns the compiled GPU pipeline.
	//
	// Returns:
	//   - *wgpu.RenderPipeline: the GPU pipeline, or nil if not set
	RenderPipeline() *wgpu.RenderPipeline

	// SetRenderPipeline sets the compiled GPU pipeline.
	//
	// Parameters:
	//   - p: the WebGPU render pipeline to set
	SetRenderPipeline(p *wgpu.RenderPipeline)

	// Release releases the GPU pipeline.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a compiled pipeline record.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance
func NewPipeline(pipelineKey string, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey: pipelineKey,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) ID() CachedID {
	return p.id
}

func (p *pipeline) Descriptor() RenderPipelineDescriptor {
	return p.descriptor
}

func (p *pipeline) RenderPipeline() *wgpu.RenderPipeline {
	return p.renderPipeline
}

func (p *pipeline) SetRenderPipeline(rp *wgpu.RenderPipeline) {
	p.renderPipeline = rp
}

func (p *pipeline) Release() {
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
}
