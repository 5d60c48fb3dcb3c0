package graph

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrSlotMissing is returned when a declared input slot has no value.
	ErrSlotMissing = errors.New("graph: slot has no value")
	// ErrSlotType is returned when a slot value does not match the declared slot type.
	ErrSlotType = errors.New("graph: slot type mismatch")
	// ErrUnknownSlot is returned when a node reads or writes a slot it did not declare.
	ErrUnknownSlot = errors.New("graph: unknown slot")
	// ErrOutputNotSet is returned when a node finishes without setting a declared output.
	ErrOutputNotSet = errors.New("graph: output slot not set")
)

// Context is the per-run view a node has of its slots: the input values forwarded by
// the graph and the outputs the node sets for downstream nodes.
type Context struct {
	node    string
	inputs  []SlotInfo
	outputs []SlotInfo
	values  map[string]SlotValue
	results map[string]SlotValue
}

// NewContext creates a run context for a node with the given input values.
//
// Parameters:
//   - name: the node name used in errors
//   - node: the node whose slots the context serves
//   - inputs: the input values by slot name
//
// Returns:
//   - *Context: the run context
func NewContext(name string, node Node, inputs map[string]SlotValue) *Context {
	if inputs == nil {
		inputs = map[string]SlotValue{}
	}
	return &Context{
		node:    name,
		inputs:  node.Input(),
		outputs: node.Output(),
		values:  inputs,
		results: make(map[string]SlotValue),
	}
}

// Input returns the value of a declared input slot.
//
// Parameters:
//   - name: the input slot name
//
// Returns:
//   - SlotValue: the slot value
//   - error: ErrUnknownSlot, ErrSlotMissing or ErrSlotType
func (c *Context) Input(name string) (SlotValue, error) {
	i := slices.IndexFunc(c.inputs, func(s SlotInfo) bool { return s.Name == name })
	if i < 0 {
		return SlotValue{}, fmt.Errorf("%w: node %q has no input %q", ErrUnknownSlot, c.node, name)
	}
	v, ok := c.values[name]
	if !ok {
		return SlotValue{}, fmt.Errorf("%w: node %q input %q", ErrSlotMissing, c.node, name)
	}
	if v.Type != c.inputs[i].Type {
		return SlotValue{}, fmt.Errorf("%w: node %q input %q is %s, want %s", ErrSlotType, c.node, name, v.Type, c.inputs[i].Type)
	}
	return v, nil
}

// InputView returns the view id of a declared view input.
//
// Parameters:
//   - name: the input slot name
//
// Returns:
//   - ViewID: the view id
//   - error: an error if the slot is undeclared, empty or not a view
func (c *Context) InputView(name string) (ViewID, error) {
	v, err := c.Input(name)
	if err != nil {
		return 0, err
	}
	if v.Type != SlotTypeView {
		return 0, fmt.Errorf("%w: node %q input %q is %s, want %s", ErrSlotType, c.node, name, v.Type, SlotTypeView)
	}
	return v.View, nil
}

// SetOutput sets the value of a declared output slot.
//
// Parameters:
//   - name: the output slot name
//   - value: the value to forward
//
// Returns:
//   - error: ErrUnknownSlot or ErrSlotType
func (c *Context) SetOutput(name string, value SlotValue) error {
	i := slices.IndexFunc(c.outputs, func(s SlotInfo) bool { return s.Name == name })
	if i < 0 {
		return fmt.Errorf("%w: node %q has no output %q", ErrUnknownSlot, c.node, name)
	}
	if value.Type != c.outputs[i].Type {
		return fmt.Errorf("%w: node %q output %q is %s, want %s", ErrSlotType, c.node, name, value.Type, c.outputs[i].Type)
	}
	c.results[name] = value
	return nil
}

// Output returns the value a node set for an output slot.
func (c *Context) Output(name string) (SlotValue, bool) {
	v, ok := c.results[name]
	return v, ok
}

// checkOutputs reports the first declared output the node left unset.
func (c *Context) checkOutputs() error {
	for _, s := range c.outputs {
		if _, ok := c.results[s.Name]; !ok {
			return fmt.Errorf("%w: node %q output %q", ErrOutputNotSet, c.node, s.Name)
		}
	}
	return nil
}
