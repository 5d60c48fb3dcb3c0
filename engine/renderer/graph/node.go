package graph

import "fmt"

// Node is a unit of render graph work with named input and output slots.
type Node interface {
	// Input returns the declared input slots.
	Input() []SlotInfo

	// Output returns the declared output slots.
	Output() []SlotInfo

	// Update refreshes any state the node caches for the current frame. The graph
	// calls Update on every node before running any of them.
	Update()

	// Run records the node's GPU work.
	//
	// Parameters:
	//   - ctx: the slot context of this run
	//   - rc: the render context used to open passes
	//
	// Returns:
	//   - error: an error that aborts the frame's graph run
	Run(ctx *Context, rc RenderContext) error
}

// NodeRunError is returned by Graph.Run when a node fails or its slots are not satisfied.
type NodeRunError struct {
	Node string
	Err  error
}

func (e *NodeRunError) Error() string {
	return fmt.Sprintf("render graph node %q: %v", e.Node, e.Err)
}

func (e *NodeRunError) Unwrap() error {
	return e.Err
}
