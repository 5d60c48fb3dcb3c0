package pipeline

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithID sets the cache slot the pipeline belongs to.
//
// Parameters:
//   - id: the cache id
//
// Returns:
//   - PipelineBuilderOption: a function that sets the cache id for this pipeline
func WithID(id CachedID) PipelineBuilderOption {
	return func(p *pipeline) {
		p.id = id
	}
}

// WithDescriptor sets the descriptor the pipeline was built from.
//
// Parameters:
//   - desc: the render pipeline descriptor
//
// Returns:
//   - PipelineBuilderOption: a function that sets the descriptor for this pipeline
func WithDescriptor(desc RenderPipelineDescriptor) PipelineBuilderOption {
	return func(p *pipeline) {
		p.descriptor = desc
	}
}

// WithRenderPipeline sets the compiled GPU pipeline.
//
// Parameters:
//   - rp: the WebGPU render pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the GPU pipeline for this pipeline
func WithRenderPipeline(rp *wgpu.RenderPipeline) PipelineBuilderOption {
	return func(p *pipeline) {
		p.renderPipeline = rp
	}
}
