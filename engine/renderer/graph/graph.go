package graph

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Carmen-Shannon/oxy-outline/common"
	"github.com/Carmen-Shannon/oxy-outline/engine/profiler"
)

// InputNode is the name of the graph's own input node. Edges from InputNode forward the
// values passed to Run.
const InputNode = "graph_input"

// SlotEdge connects an output slot of one node to an input slot of another.
type SlotEdge struct {
	OutputNode string
	OutputSlot string
	InputNode  string
	InputSlot  string
}

type nodeEntry struct {
	name string
	node Node
}

// Graph schedules nodes in dependency order and forwards slot values along its edges.
// A Graph is run from a single goroutine.
type Graph struct {
	nodes    []nodeEntry
	inputs   []SlotInfo
	edges    []SlotEdge
	profiler *profiler.Profiler
}

// GraphOption is a functional option used to configure a Graph during construction.
type GraphOption func(*Graph)

// WithProfiler records each node's run time in p.
//
// Parameters:
//   - p: the profiler receiving node timings
//
// Returns:
//   - GraphOption: a function that sets the profiler
func WithProfiler(p *profiler.Profiler) GraphOption {
	return func(g *Graph) {
		g.profiler = p
	}
}

// NewGraph creates an empty graph.
//
// Parameters:
//   - opts: a variadic list of GraphOption functions
//
// Returns:
//   - *Graph: the graph
func NewGraph(opts ...GraphOption) *Graph {
	g := &Graph{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetInputs declares the slots of the graph input node.
func (g *Graph) SetInputs(slots ...SlotInfo) {
	g.inputs = slots
}

// AddNode adds a node. Panics if the name is empty, reserved or already used.
//
// Parameters:
//   - name: the unique node name
//   - node: the node
func (g *Graph) AddNode(name string, node Node) {
	if name == "" || name == InputNode {
		panic(fmt.Sprintf("graph: invalid node name %q", name))
	}
	if g.find(name) != nil {
		panic(fmt.Sprintf("graph: node %q already added", name))
	}
	g.nodes = append(g.nodes, nodeEntry{name: name, node: node})
}

// AddSlotEdge connects outputNode.outputSlot to inputNode.inputSlot.
//
// Parameters:
//   - outputNode: the producing node, or InputNode
//   - outputSlot: the output slot of the producer
//   - inputNode: the consuming node
//   - inputSlot: the input slot of the consumer
//
// Returns:
//   - error: an error if a node or slot does not exist, the slot types differ or the
//     input is already connected
func (g *Graph) AddSlotEdge(outputNode, outputSlot, inputNode, inputSlot string) error {
	var outSlots []SlotInfo
	if outputNode == InputNode {
		outSlots = g.inputs
	} else if n := g.find(outputNode); n != nil {
		outSlots = n.node.Output()
	} else {
		return fmt.Errorf("graph: unknown node %q", outputNode)
	}
	consumer := g.find(inputNode)
	if consumer == nil {
		return fmt.Errorf("graph: unknown node %q", inputNode)
	}

	out := slices.IndexFunc(outSlots, func(s SlotInfo) bool { return s.Name == outputSlot })
	if out < 0 {
		return fmt.Errorf("%w: node %q has no output %q", ErrUnknownSlot, outputNode, outputSlot)
	}
	inSlots := consumer.node.Input()
	in := slices.IndexFunc(inSlots, func(s SlotInfo) bool { return s.Name == inputSlot })
	if in < 0 {
		return fmt.Errorf("%w: node %q has no input %q", ErrUnknownSlot, inputNode, inputSlot)
	}
	if outSlots[out].Type != inSlots[in].Type {
		return fmt.Errorf("%w: %s.%s is %s, %s.%s is %s", ErrSlotType,
			outputNode, outputSlot, outSlots[out].Type, inputNode, inputSlot, inSlots[in].Type)
	}
	for _, e := range g.edges {
		if e.InputNode == inputNode && e.InputSlot == inputSlot {
			return fmt.Errorf("graph: input %s.%s is already connected", inputNode, inputSlot)
		}
	}
	g.edges = append(g.edges, SlotEdge{outputNode, outputSlot, inputNode, inputSlot})
	return nil
}

func (g *Graph) find(name string) *nodeEntry {
	for i := range g.nodes {
		if g.nodes[i].name == name {
			return &g.nodes[i]
		}
	}
	return nil
}

// order returns the nodes sorted so every producer runs before its consumers. Ties keep
// insertion order.
func (g *Graph) order() ([]nodeEntry, error) {
	indegree := make(map[string]int, len(g.nodes))
	for _, e := range g.edges {
		if e.OutputNode != InputNode {
			indegree[e.InputNode]++
		}
	}
	done := make(map[string]bool, len(g.nodes))
	ordered := make([]nodeEntry, 0, len(g.nodes))
	for len(ordered) < len(g.nodes) {
		progressed := false
		for _, n := range g.nodes {
			if done[n.name] || indegree[n.name] > 0 {
				continue
			}
			done[n.name] = true
			ordered = append(ordered, n)
			progressed = true
			for _, e := range g.edges {
				if e.OutputNode == n.name {
					indegree[e.InputNode]--
				}
			}
		}
		if !progressed {
			return nil, errors.New("graph: cycle between nodes")
		}
	}
	return ordered, nil
}

// Run updates every node, then runs them in dependency order.
//
// Parameters:
//   - rc: the render context passed to every node
//   - inputs: the values of the graph input slots, in SetInputs order
//
// Returns:
//   - error: a *NodeRunError for the first node that fails, or a wiring error
func (g *Graph) Run(rc RenderContext, inputs ...SlotValue) error {
	if len(inputs) != len(g.inputs) {
		return fmt.Errorf("graph: got %d input values, want %d", len(inputs), len(g.inputs))
	}
	ordered, err := g.order()
	if err != nil {
		return err
	}

	outputs := map[string]map[string]SlotValue{InputNode: {}}
	for i, s := range g.inputs {
		if inputs[i].Type != s.Type {
			return fmt.Errorf("%w: graph input %q is %s, want %s", ErrSlotType, s.Name, inputs[i].Type, s.Type)
		}
		outputs[InputNode][s.Name] = inputs[i]
	}

	for _, n := range g.nodes {
		n.node.Update()
	}

	log := common.Logger()
	for _, n := range ordered {
		values := make(map[string]SlotValue)
		for _, s := range n.node.Input() {
			edge := slices.IndexFunc(g.edges, func(e SlotEdge) bool { return e.InputNode == n.name && e.InputSlot == s.Name })
			if edge < 0 {
				return &NodeRunError{Node: n.name, Err: fmt.Errorf("%w: input %q is not connected", ErrSlotMissing, s.Name)}
			}
			e := g.edges[edge]
			v, ok := outputs[e.OutputNode][e.OutputSlot]
			if !ok {
				return &NodeRunError{Node: n.name, Err: fmt.Errorf("%w: input %q", ErrSlotMissing, s.Name)}
			}
			values[s.Name] = v
		}

		ctx := NewContext(n.name, n.node, values)
		start := time.Now()
		if err := n.node.Run(ctx, rc); err != nil {
			return &NodeRunError{Node: n.name, Err: err}
		}
		if g.profiler != nil {
			g.profiler.NodeTiming(n.name, time.Since(start))
		}
		if err := ctx.checkOutputs(); err != nil {
			return &NodeRunError{Node: n.name, Err: err}
		}
		outputs[n.name] = ctx.results
		log.Debug("render graph node ran", "node", n.name)
	}
	return nil
}
