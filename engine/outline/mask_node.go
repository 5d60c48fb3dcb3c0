package outline

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-outline/common"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/graph"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/phase"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	// MaskNodeInView is the input slot receiving the view to render.
	MaskNodeInView = "view"
	// MaskNodeOutMask is the output slot holding the resolved R8Unorm mask. Covered
	// pixels are 1.0, everything else 0.0.
	MaskNodeOutMask = "mask"
	// MaskPassLabel is the debug label of the mask render pass.
	MaskPassLabel = "outline_mask_render_pass"
)

// ErrTexturesNotAllocated is returned when the mask node runs before its textures exist.
var ErrTexturesNotAllocated = errors.New("outline: mask textures not allocated")

// PhaseSource provides the mask phases of the current frame. *phase.ViewPhases[*MaskItem]
// implements it.
type PhaseSource interface {
	Snapshot() (map[graph.ViewID]*phase.RenderPhase[*MaskItem], uint64)
}

// MaskNode is the render graph node that draws masked meshes into the multisampled
// mask target and resolves them into the output texture.
type MaskNode struct {
	source       PhaseSource
	textures     TextureSource
	clearOnEmpty bool

	phases     map[graph.ViewID]*phase.RenderPhase[*MaskItem]
	generation uint64
}

var _ graph.Node = &MaskNode{}

// MaskNodeOption is a functional option used to configure a MaskNode during construction.
type MaskNodeOption func(*MaskNode)

// WithClearOnEmpty makes the node clear the mask even when a view has no phase. By
// default no pass is opened in that case and the output keeps its previous content.
//
// Parameters:
//   - clear: true to open a clear-only pass for views without a phase
//
// Returns:
//   - MaskNodeOption: a function that sets the clear behaviour
func WithClearOnEmpty(clear bool) MaskNodeOption {
	return func(n *MaskNode) {
		n.clearOnEmpty = clear
	}
}

// NewMaskNode creates a mask node.
//
// Parameters:
//   - phases: the per-view phase table, snapshotted on Update
//   - textures: the provider of the mask textures
//   - opts: a variadic list of MaskNodeOption functions
//
// Returns:
//   - *MaskNode: the node
func NewMaskNode(phases PhaseSource, textures TextureSource, opts ...MaskNodeOption) *MaskNode {
	n := &MaskNode{
		source:   phases,
		textures: textures,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Input declares the view input slot.
func (n *MaskNode) Input() []graph.SlotInfo {
	return []graph.SlotInfo{{Name: MaskNodeInView, Type: graph.SlotTypeView}}
}

// Output declares the mask output slot.
func (n *MaskNode) Output() []graph.SlotInfo {
	return []graph.SlotInfo{{Name: MaskNodeOutMask, Type: graph.SlotTypeTextureView}}
}

// Update snapshots the phase table for this frame.
func (n *MaskNode) Update() {
	n.phases, n.generation = n.source.Snapshot()
}

// Run sets the mask output, then draws the view's phase if it has one. The output is set
// before any other check except texture allocation: with no textures there is no view to
// hand out, so ErrTexturesNotAllocated returns with the output unset.
//
// Parameters:
//   - ctx: the slot context of this run
//   - rc: the render context used to open the pass
//
// Returns:
//   - error: a slot or texture error, or the first failing draw
func (n *MaskNode) Run(ctx *graph.Context, rc graph.RenderContext) error {
	textures := n.textures.Textures()
	if !textures.valid() {
		return ErrTexturesNotAllocated
	}
	if err := ctx.SetOutput(MaskNodeOutMask, graph.TextureViewValue(textures.Output)); err != nil {
		return err
	}

	view, err := ctx.InputView(MaskNodeInView)
	if err != nil {
		return err
	}

	ph, ok := n.phases[view]
	if !ok {
		common.Logger().Debug("outline mask phase absent", "view", view, "generation", n.generation, "clear", n.clearOnEmpty)
		if !n.clearOnEmpty {
			return nil
		}
	}
	return RenderMask(rc, view, ph, textures)
}

// RenderMask opens the mask pass, clears it to black, draws every item of the phase in
// order and ends the pass, resolving into the output texture. A nil phase records a
// clear-only pass.
//
// Parameters:
//   - rc: the render context used to open the pass
//   - view: the view being rendered
//   - ph: the phase to draw, or nil
//   - textures: the mask textures
//
// Returns:
//   - error: a pass or draw error
func RenderMask(rc graph.RenderContext, view graph.ViewID, ph *phase.RenderPhase[*MaskItem], textures MaskTextures) error {
	if !textures.valid() {
		return ErrTexturesNotAllocated
	}
	pass, err := rc.BeginTrackedRenderPass(&wgpu.RenderPassDescriptor{
		Label: MaskPassLabel,
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:          textures.Multisample,
				ResolveTarget: textures.Output,
				LoadOp:        wgpu.LoadOpClear,
				StoreOp:       wgpu.StoreOpStore,
				ClearValue:    wgpu.Color{R: 0, G: 0, B: 0, A: 1},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("outline: begin mask pass: %w", err)
	}

	var drawErr error
	if ph != nil {
		drawErr = ph.Render(pass, view)
	}
	if err := pass.End(); err != nil {
		return errors.Join(drawErr, fmt.Errorf("outline: end mask pass: %w", err))
	}
	if drawErr != nil {
		return drawErr
	}

	items := 0
	if ph != nil {
		items = ph.Len()
	}
	common.Logger().Debug("outline mask pass recorded", "view", view, "items", items, "draws", pass.DrawCount())
	return nil
}
