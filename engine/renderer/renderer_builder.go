package renderer

import (
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithMSAA sets the sample count of the main view. The outline mask always renders with
// four samples regardless of this setting.
//
// Parameters:
//   - count: the MSAASampleCount to use (MSAAOff or MSAA4x)
//
// Returns:
//   - RendererBuilderOption: a function that applies the MSAA option to a renderer
func WithMSAA(count MSAASampleCount) RendererBuilderOption {
	return func(r *renderer) {
		r.sampleCount = count
	}
}

// WithForceSoftwareRenderer requests the fallback adapter, useful on machines without a GPU.
//
// Parameters:
//   - force: true to request the fallback adapter
//
// Returns:
//   - RendererBuilderOption: a function that applies the adapter option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithLimits overrides the device limits requested from the adapter.
//
// Parameters:
//   - limits: the limits to require
//
// Returns:
//   - RendererBuilderOption: a function that applies the limits option to a renderer
func WithLimits(limits wgpu.Limits) RendererBuilderOption {
	return func(r *renderer) {
		r.limits = limits
	}
}

// WithShaderRegistry replaces the registry shader modules are prepared from.
//
// Parameters:
//   - registry: the registry holding every shader the cached pipelines reference
//
// Returns:
//   - RendererBuilderOption: a function that applies the registry option to a renderer
func WithShaderRegistry(registry *shader.Registry) RendererBuilderOption {
	return func(r *renderer) {
		r.registry = registry
	}
}

// WithPipelineCache replaces the cache the renderer compiles pipelines from.
//
// Parameters:
//   - cache: the pipeline cache shared with the queue systems
//
// Returns:
//   - RendererBuilderOption: a function that applies the cache option to a renderer
func WithPipelineCache(cache *pipeline.Cache) RendererBuilderOption {
	return func(r *renderer) {
		r.cache = cache
	}
}

// withBackend installs a backend in place of the wgpu one.
func withBackend(b RendererBackend) RendererBuilderOption {
	return func(r *renderer) {
		r.backend = b
	}
}
