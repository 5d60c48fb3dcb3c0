package renderer

import (
	"errors"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-outline/engine/mesh"
	"github.com/Carmen-Shannon/oxy-outline/engine/outline"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/graph"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/mesh_pipeline"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// fakeBackend records pipeline creation and frame boundaries without a device.
// Methods it does not override panic through the nil embedded interface.
type fakeBackend struct {
	RendererBackend
	created  []pipeline.RenderPipelineDescriptor
	modules  [][2]*shader.Module
	beginErr error
	frames   int
	ended    int
}

func (f *fakeBackend) CreateRenderPipeline(desc pipeline.RenderPipelineDescriptor, vs, fs *shader.Module) (*wgpu.RenderPipeline, error) {
	f.created = append(f.created, desc)
	f.modules = append(f.modules, [2]*shader.Module{vs, fs})
	return &wgpu.RenderPipeline{}, nil
}

func (f *fakeBackend) BeginFrame() error {
	if f.beginErr != nil {
		return f.beginErr
	}
	f.frames++
	return nil
}

func (f *fakeBackend) EndFrame() error {
	f.ended++
	return nil
}

func (f *fakeBackend) BeginTrackedRenderPass(*wgpu.RenderPassDescriptor) (*graph.TrackedRenderPass, error) {
	return nil, errors.New("no passes in this test")
}

func fakeCompile(string) ([]byte, error) { return nil, nil }

func newTestRenderer(t *testing.T, b *fakeBackend) Renderer {
	t.Helper()
	registry := shader.NewRegistry(shader.WithCompiler(fakeCompile))
	outline.RegisterShaders(registry)
	r, err := NewRenderer(BackendTypeWGPU, withBackend(b), WithShaderRegistry(registry))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	return r
}

func TestCompilePipelinesMask(t *testing.T) {
	b := &fakeBackend{}
	r := newTestRenderer(t, b)

	specialized := pipeline.NewSpecializedMeshPipelines(outline.NewMaskPipeline(mesh_pipeline.NewMeshPipeline()))
	key := pipeline.NewMeshPipelineKey(uint32(r.SampleCount()), wgpu.PrimitiveTopologyTriangleList)
	id, err := specialized.Specialize(r.Cache(), key, mesh.StandardLayout())
	if err != nil {
		t.Fatalf("specialize: %v", err)
	}

	if err := r.CompilePipelines(); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got := r.Cache().State(id); got != pipeline.PipelineStateReady {
		t.Fatalf("state = %v, want ready", got)
	}
	if len(b.created) != 1 {
		t.Fatalf("expected 1 pipeline created, got %d", len(b.created))
	}
	vs, fs := b.modules[0][0], b.modules[0][1]
	if vs == nil || vs.Stage != shader.StageVertex || fs == nil || fs.Stage != shader.StageFragment {
		t.Fatalf("unexpected modules %+v", b.modules[0])
	}
	if fs.Handle != outline.MaskShaderHandle {
		t.Errorf("fragment handle = %s, want %s", fs.Handle, outline.MaskShaderHandle)
	}

	// Nothing pending: a second call creates nothing.
	if err := r.CompilePipelines(); err != nil {
		t.Fatalf("second compile: %v", err)
	}
	if len(b.created) != 1 {
		t.Errorf("expected no new pipelines, got %d", len(b.created))
	}
}

func TestCompilePipelinesMarksMismatchFailed(t *testing.T) {
	b := &fakeBackend{}
	r := newTestRenderer(t, b)

	desc, err := outline.NewMaskPipeline(mesh_pipeline.NewMeshPipeline()).
		Specialize(pipeline.NewMeshPipelineKey(4, wgpu.PrimitiveTopologyTriangleList), mesh.StandardLayout())
	if err != nil {
		t.Fatalf("specialize: %v", err)
	}
	desc.Vertex.Buffers = nil
	id := r.Cache().Queue(desc)

	err = r.CompilePipelines()
	if err == nil || !strings.Contains(err.Error(), "location 0") {
		t.Fatalf("expected an unfed location 0 error, got %v", err)
	}
	if got := r.Cache().State(id); got != pipeline.PipelineStateFailed {
		t.Errorf("state = %v, want failed", got)
	}
	if len(b.created) != 0 {
		t.Errorf("a mismatched pipeline must not reach the backend")
	}
}

func TestValidateModules(t *testing.T) {
	registry := shader.NewRegistry(shader.WithCompiler(fakeCompile))
	outline.RegisterShaders(registry)
	mp := mesh_pipeline.NewMeshPipeline()
	base, err := outline.NewMaskPipeline(mp).
		Specialize(pipeline.NewMeshPipelineKey(4, wgpu.PrimitiveTopologyTriangleList), mesh.StandardLayout())
	if err != nil {
		t.Fatalf("specialize: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(d *pipeline.RenderPipelineDescriptor)
		wantErr string
	}{
		{"valid", func(*pipeline.RenderPipelineDescriptor) {}, ""},
		{"unknown vertex entry", func(d *pipeline.RenderPipelineDescriptor) { d.Vertex.EntryPoint = "main" }, `no vertex entry point "main"`},
		{"unknown fragment entry", func(d *pipeline.RenderPipelineDescriptor) {
			f := *d.Fragment
			f.EntryPoint = "main"
			d.Fragment = &f
		}, `no fragment entry point "main"`},
		{"missing mesh group", func(d *pipeline.RenderPipelineDescriptor) { d.Layout = d.Layout[:1] }, "group 1"},
		{"binding missing from layout", func(d *pipeline.RenderPipelineDescriptor) {
			d.Layout = []*pipeline.BindGroupLayout{pipeline.NewBindGroupLayout("empty"), mp.MeshLayout}
		}, `missing from layout "empty"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := base
			tt.mutate(&desc)

			vs, err := registry.Resolve(desc.Vertex.Shader, shader.StageVertex, desc.Vertex.ShaderDefs)
			if err != nil {
				t.Fatalf("resolve vertex: %v", err)
			}
			fs, err := registry.Resolve(desc.Fragment.Shader, shader.StageFragment, desc.Fragment.ShaderDefs)
			if err != nil {
				t.Fatalf("resolve fragment: %v", err)
			}

			err = validateModules(desc, vs, fs)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

// failingNode returns an error from Run.
type failingNode struct{ err error }

func (n failingNode) Input() []graph.SlotInfo                        { return nil }
func (n failingNode) Output() []graph.SlotInfo                       { return nil }
func (n failingNode) Update()                                        {}
func (n failingNode) Run(*graph.Context, graph.RenderContext) error { return n.err }

func TestRenderGraphEndsFrameOnError(t *testing.T) {
	b := &fakeBackend{}
	r := newTestRenderer(t, b)

	boom := errors.New("boom")
	g := graph.NewGraph()
	g.AddNode("failing", failingNode{err: boom})

	err := r.RenderGraph(g)
	if !errors.Is(err, boom) {
		t.Fatalf("expected the node error, got %v", err)
	}
	if b.frames != 1 || b.ended != 1 {
		t.Errorf("frames begun/ended = %d/%d, want 1/1", b.frames, b.ended)
	}
}

func TestRenderGraphBeginFrameError(t *testing.T) {
	b := &fakeBackend{beginErr: ErrFrameInProgress}
	r := newTestRenderer(t, b)

	ran := false
	g := graph.NewGraph()
	g.AddNode("probe", probeNode{ran: &ran})

	if err := r.RenderGraph(g); !errors.Is(err, ErrFrameInProgress) {
		t.Fatalf("expected ErrFrameInProgress, got %v", err)
	}
	if ran || b.ended != 0 {
		t.Error("the graph must not run without a frame")
	}
}

type probeNode struct{ ran *bool }

func (n probeNode) Input() []graph.SlotInfo  { return nil }
func (n probeNode) Output() []graph.SlotInfo { return nil }
func (n probeNode) Update()                  {}
func (n probeNode) Run(*graph.Context, graph.RenderContext) error {
	*n.ran = true
	return nil
}

func TestBackendTypeString(t *testing.T) {
	if BackendTypeWGPU.String() != "wgpu" {
		t.Errorf("BackendTypeWGPU = %q", BackendTypeWGPU.String())
	}
	if _, err := NewRenderer(RendererBackendType(99)); err == nil {
		t.Error("expected an error for an unknown backend")
	}
}
