package renderer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-outline/common"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/graph"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	backend     RendererBackend
	backendType RendererBackendType
	registry    *shader.Registry
	cache       *pipeline.Cache

	sampleCount          MSAASampleCount
	forceFallbackAdapter bool
	limits               wgpu.Limits
}

// Renderer compiles the pipelines queued in its cache and runs render graphs, one
// submitted command buffer per graph run.
type Renderer interface {
	// Backend returns the GPU backend.
	//
	// Returns:
	//   - RendererBackend: the backend
	Backend() RendererBackend

	// Registry returns the shader registry pipelines are compiled from.
	//
	// Returns:
	//   - *shader.Registry: the registry
	Registry() *shader.Registry

	// Cache returns the pipeline cache.
	//
	// Returns:
	//   - *pipeline.Cache: the cache
	Cache() *pipeline.Cache

	// SampleCount returns the sample count of the main view.
	//
	// Returns:
	//   - MSAASampleCount: the sample count
	SampleCount() MSAASampleCount

	// CompilePipelines compiles every queued pipeline. Shader modules are prepared on the
	// registry's worker pool first. A failed pipeline is marked failed in the cache and its
	// error is included in the returned error; the other pipelines still compile.
	//
	// Returns:
	//   - error: the joined compile errors, or nil
	CompilePipelines() error

	// RenderGraph runs a render graph inside one frame.
	//
	// Parameters:
	//   - g: the graph to run
	//   - inputs: the graph input values
	//
	// Returns:
	//   - error: the graph or submission error, or nil
	RenderGraph(g *graph.Graph, inputs ...graph.SlotValue) error

	// Release releases every compiled pipeline and the backend.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a headless renderer with the provided options.
//
// Parameters:
//   - backendType: the GPU API to drive
//   - opts: a variadic list of RendererBuilderOption functions to configure the renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: an error if the device could not be acquired
func NewRenderer(backendType RendererBackendType, opts ...RendererBuilderOption) (Renderer, error) {
	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = 8

	r := &renderer{
		backendType: backendType,
		sampleCount: MSAA4x,
		limits:      limits,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = shader.NewRegistry()
	}
	if r.cache == nil {
		r.cache = pipeline.NewCache()
	}

	if r.backend == nil {
		switch backendType {
		case BackendTypeWGPU:
			b, err := newWGPURendererBackend(r.forceFallbackAdapter, r.limits)
			if err != nil {
				return nil, err
			}
			r.backend = b
		default:
			return nil, fmt.Errorf("renderer: unsupported backend %v", backendType)
		}
	}
	return r, nil
}

func (r *renderer) Backend() RendererBackend {
	return r.backend
}

func (r *renderer) Registry() *shader.Registry {
	return r.registry
}

func (r *renderer) Cache() *pipeline.Cache {
	return r.cache
}

func (r *renderer) SampleCount() MSAASampleCount {
	return r.sampleCount
}

func (r *renderer) CompilePipelines() error {
	pending := r.cache.Pending()
	if len(pending) == 0 {
		return nil
	}

	requests := make([]shader.Request, 0, 2*len(pending))
	for _, id := range pending {
		desc, ok := r.cache.Descriptor(id)
		if !ok {
			continue
		}
		requests = append(requests, shader.Request{Handle: desc.Vertex.Shader, Stage: shader.StageVertex, Defs: desc.Vertex.ShaderDefs})
		if f := desc.Fragment; f != nil {
			requests = append(requests, shader.Request{Handle: f.Shader, Stage: shader.StageFragment, Defs: f.ShaderDefs})
		}
	}
	// Preparation errors surface again per pipeline in compile.
	if _, err := r.registry.ResolveAll(requests); err != nil {
		common.Logger().Debug("shader preparation failed", "error", err)
	}

	return r.cache.Process(r.compile)
}

// compile prepares the modules of one descriptor, checks them against it and builds the
// GPU pipeline.
func (r *renderer) compile(id pipeline.CachedID, desc pipeline.RenderPipelineDescriptor) (*wgpu.RenderPipeline, error) {
	vs, err := r.registry.Resolve(desc.Vertex.Shader, shader.StageVertex, desc.Vertex.ShaderDefs)
	if err != nil {
		return nil, err
	}
	var fs *shader.Module
	if f := desc.Fragment; f != nil {
		fs, err = r.registry.Resolve(f.Shader, shader.StageFragment, f.ShaderDefs)
		if err != nil {
			return nil, err
		}
	}
	if err := validateModules(desc, vs, fs); err != nil {
		return nil, err
	}
	return r.backend.CreateRenderPipeline(desc, vs, fs)
}

// validateModules checks that prepared modules satisfy a descriptor: the entry points
// exist, every vertex input is fed by a vertex buffer attribute and every binding is
// declared by the pipeline layout.
//
// Parameters:
//   - desc: the pipeline descriptor
//   - vs: the prepared vertex module
//   - fs: the prepared fragment module, or nil
//
// Returns:
//   - error: the joined mismatches, or nil
func validateModules(desc pipeline.RenderPipelineDescriptor, vs, fs *shader.Module) error {
	var errs []error

	if !vs.HasEntryPoint(desc.Vertex.EntryPoint) {
		errs = append(errs, fmt.Errorf("%s has no vertex entry point %q", vs.Label(), desc.Vertex.EntryPoint))
	}
	provided := make(map[uint32]wgpu.VertexFormat)
	for _, b := range desc.Vertex.Buffers {
		for _, a := range b.Attributes {
			provided[a.ShaderLocation] = a.Format
		}
	}
	for _, in := range vs.VertexInputs[desc.Vertex.EntryPoint] {
		if _, ok := provided[uint32(in.Location)]; !ok {
			errs = append(errs, fmt.Errorf("%s: vertex input %q at location %d is not fed by any vertex buffer", vs.Label(), in.Name, in.Location))
		}
	}
	errs = append(errs, checkBindings(desc.Layout, vs)...)

	if desc.Fragment != nil {
		if fs == nil {
			errs = append(errs, errors.New("descriptor has a fragment stage but no fragment module"))
		} else {
			if !fs.HasEntryPoint(desc.Fragment.EntryPoint) {
				errs = append(errs, fmt.Errorf("%s has no fragment entry point %q", fs.Label(), desc.Fragment.EntryPoint))
			}
			errs = append(errs, checkBindings(desc.Layout, fs)...)
		}
	}
	return errors.Join(errs...)
}

func checkBindings(layout []*pipeline.BindGroupLayout, m *shader.Module) []error {
	var errs []error
	for _, b := range m.Bindings {
		if b.Group >= len(layout) || layout[b.Group] == nil {
			errs = append(errs, fmt.Errorf("%s: binding %s is in group %d, which the pipeline layout does not declare", m.Label(), b.Name, b.Group))
			continue
		}
		found := false
		for _, e := range layout[b.Group].Entries() {
			if int(e.Binding) == b.Binding {
				found = true
				break
			}
		}
		if !found {
			errs = append(errs, fmt.Errorf("%s: binding %s (@group(%d) @binding(%d)) is missing from layout %q", m.Label(), b.Name, b.Group, b.Binding, layout[b.Group].Label()))
		}
	}
	return errs
}

func (r *renderer) RenderGraph(g *graph.Graph, inputs ...graph.SlotValue) error {
	if err := r.backend.BeginFrame(); err != nil {
		return err
	}
	runErr := g.Run(r.backend, inputs...)
	return errors.Join(runErr, r.backend.EndFrame())
}

func (r *renderer) Release() {
	r.cache.Release()
	r.backend.Release()
}
