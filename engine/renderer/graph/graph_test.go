package graph_test

import (
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-outline/engine/profiler"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/graph"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/graph/graphtest"
	"github.com/cogentcore/webgpu/wgpu"
)

// producer outputs a fixed texture view for the view it receives.
type producer struct {
	view    *wgpu.TextureView
	updates int
	skipSet bool
	got     graph.ViewID
}

func (p *producer) Input() []graph.SlotInfo {
	return []graph.SlotInfo{{Name: "view", Type: graph.SlotTypeView}}
}

func (p *producer) Output() []graph.SlotInfo {
	return []graph.SlotInfo{{Name: "texture", Type: graph.SlotTypeTextureView}}
}

func (p *producer) Update() { p.updates++ }

func (p *producer) Run(ctx *graph.Context, rc graph.RenderContext) error {
	v, err := ctx.InputView("view")
	if err != nil {
		return err
	}
	p.got = v
	if p.skipSet {
		return nil
	}
	return ctx.SetOutput("texture", graph.TextureViewValue(p.view))
}

// consumer reads the texture produced upstream.
type consumer struct {
	got          *wgpu.TextureView
	updatedFirst bool
	producer     *producer
}

func (c *consumer) Input() []graph.SlotInfo {
	return []graph.SlotInfo{{Name: "source", Type: graph.SlotTypeTextureView}}
}

func (c *consumer) Output() []graph.SlotInfo { return nil }

func (c *consumer) Update() {}

func (c *consumer) Run(ctx *graph.Context, rc graph.RenderContext) error {
	v, err := ctx.Input("source")
	if err != nil {
		return err
	}
	c.got = v.TextureView
	c.updatedFirst = c.producer.updates == 1
	return nil
}

func newTestGraph(t *testing.T, p *producer, c *consumer, opts ...graph.GraphOption) *graph.Graph {
	t.Helper()
	g := graph.NewGraph(opts...)
	g.SetInputs(graph.SlotInfo{Name: "view", Type: graph.SlotTypeView})
	// consumer is added first so the run order must come from the edges
	g.AddNode("consumer", c)
	g.AddNode("producer", p)
	if err := g.AddSlotEdge(graph.InputNode, "view", "producer", "view"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.AddSlotEdge("producer", "texture", "consumer", "source"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return g
}

func TestGraphRunForwardsSlots(t *testing.T) {
	p := &producer{view: &wgpu.TextureView{}}
	c := &consumer{producer: p}
	prof := profiler.NewProfiler(profiler.WithInterval(time.Hour))
	g := newTestGraph(t, p, c, graph.WithProfiler(prof))

	if err := g.Run(&graphtest.Recorder{}, graph.ViewValue(7)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.got != 7 {
		t.Errorf("producer got view %d, want 7", p.got)
	}
	if c.got != p.view {
		t.Error("consumer should receive the producer's texture view")
	}
	if !c.updatedFirst {
		t.Error("every node must be updated before any node runs")
	}
}

func TestGraphRunMissingOutput(t *testing.T) {
	p := &producer{view: &wgpu.TextureView{}, skipSet: true}
	g := newTestGraph(t, p, &consumer{producer: p})

	err := g.Run(&graphtest.Recorder{}, graph.ViewValue(1))
	var nodeErr *graph.NodeRunError
	if !errors.As(err, &nodeErr) || nodeErr.Node != "producer" || !errors.Is(err, graph.ErrOutputNotSet) {
		t.Fatalf("expected producer NodeRunError with ErrOutputNotSet, got %v", err)
	}
}

func TestGraphRunUnconnectedInput(t *testing.T) {
	g := graph.NewGraph()
	g.AddNode("producer", &producer{})

	err := g.Run(&graphtest.Recorder{})
	var nodeErr *graph.NodeRunError
	if !errors.As(err, &nodeErr) || !errors.Is(err, graph.ErrSlotMissing) {
		t.Fatalf("expected NodeRunError with ErrSlotMissing, got %v", err)
	}
}

func TestAddSlotEdgeValidation(t *testing.T) {
	p := &producer{}
	g := graph.NewGraph()
	g.SetInputs(graph.SlotInfo{Name: "view", Type: graph.SlotTypeView})
	g.AddNode("producer", p)
	g.AddNode("consumer", &consumer{producer: p})

	if err := g.AddSlotEdge(graph.InputNode, "view", "consumer", "source"); !errors.Is(err, graph.ErrSlotType) {
		t.Errorf("expected ErrSlotType, got %v", err)
	}
	if err := g.AddSlotEdge("producer", "nope", "consumer", "source"); !errors.Is(err, graph.ErrUnknownSlot) {
		t.Errorf("expected ErrUnknownSlot, got %v", err)
	}
	if err := g.AddSlotEdge("ghost", "texture", "consumer", "source"); err == nil {
		t.Error("expected an error for an unknown node")
	}
	if err := g.AddSlotEdge("producer", "texture", "consumer", "source"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.AddSlotEdge("producer", "texture", "consumer", "source"); err == nil {
		t.Error("expected an error for a doubly connected input")
	}
}

func TestGraphRunCycle(t *testing.T) {
	g := graph.NewGraph()
	g.AddNode("a", &passthrough{})
	g.AddNode("b", &passthrough{})
	if err := g.AddSlotEdge("a", "out", "b", "in"); err != nil {
		t.Fatal(err)
	}
	if err := g.AddSlotEdge("b", "out", "a", "in"); err != nil {
		t.Fatal(err)
	}
	if err := g.Run(&graphtest.Recorder{}); err == nil {
		t.Error("expected a cycle error")
	}
}

type passthrough struct{}

func (passthrough) Input() []graph.SlotInfo {
	return []graph.SlotInfo{{Name: "in", Type: graph.SlotTypeBuffer}}
}
func (passthrough) Output() []graph.SlotInfo {
	return []graph.SlotInfo{{Name: "out", Type: graph.SlotTypeBuffer}}
}
func (passthrough) Update() {}
func (passthrough) Run(ctx *graph.Context, rc graph.RenderContext) error {
	v, err := ctx.Input("in")
	if err != nil {
		return err
	}
	return ctx.SetOutput("out", v)
}

func TestContextSlotErrors(t *testing.T) {
	p := &producer{}
	ctx := graph.NewContext("producer", p, map[string]graph.SlotValue{"view": graph.BufferValue(nil)})

	if _, err := ctx.InputView("view"); !errors.Is(err, graph.ErrSlotType) {
		t.Errorf("expected ErrSlotType, got %v", err)
	}
	if _, err := ctx.Input("other"); !errors.Is(err, graph.ErrUnknownSlot) {
		t.Errorf("expected ErrUnknownSlot, got %v", err)
	}
	if err := ctx.SetOutput("texture", graph.ViewValue(1)); !errors.Is(err, graph.ErrSlotType) {
		t.Errorf("expected ErrSlotType, got %v", err)
	}
	if err := ctx.SetOutput("missing", graph.TextureViewValue(nil)); !errors.Is(err, graph.ErrUnknownSlot) {
		t.Errorf("expected ErrUnknownSlot, got %v", err)
	}

	empty := graph.NewContext("producer", p, nil)
	if _, err := empty.InputView("view"); !errors.Is(err, graph.ErrSlotMissing) {
		t.Errorf("expected ErrSlotMissing, got %v", err)
	}
}

func TestTrackedRenderPassSkipsRedundantBinds(t *testing.T) {
	rec := &graphtest.Recorder{}
	pass, err := rec.BeginTrackedRenderPass(&wgpu.RenderPassDescriptor{Label: "test"})
	if err != nil {
		t.Fatal(err)
	}
	rp := &wgpu.RenderPipeline{}
	bg := &wgpu.BindGroup{}
	buf := &wgpu.Buffer{}

	for range 2 {
		pass.SetPipeline(rp)
		pass.SetBindGroup(0, bg, []uint32{256})
		pass.SetVertexBuffer(0, buf, 0, wgpu.WholeSize)
		pass.SetIndexBuffer(buf, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		pass.DrawIndexed(36, 1, 0, 0, 0)
	}
	pass.SetBindGroup(0, bg, []uint32{512})
	pass.Draw(3, 1, 0, 0)
	if err := pass.End(); err != nil {
		t.Fatal(err)
	}

	cmds := rec.Passes[0].Commands
	want := []string{"SetPipeline", "SetBindGroup", "SetVertexBuffer", "SetIndexBuffer", "DrawIndexed", "DrawIndexed", "SetBindGroup", "Draw"}
	if len(cmds) != len(want) {
		t.Fatalf("recorded %v, want ops %v", cmds, want)
	}
	for i, op := range want {
		if cmds[i].Op != op {
			t.Errorf("command %d = %s, want %s", i, cmds[i].Op, op)
		}
	}
	if pass.DrawCount() != 3 {
		t.Errorf("DrawCount() = %d, want 3", pass.DrawCount())
	}
}
