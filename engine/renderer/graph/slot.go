package graph

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// ViewID identifies the camera or view a graph run renders for.
type ViewID uint64

// SlotType is the kind of value a node slot carries.
type SlotType int

const (
	// SlotTypeView carries a ViewID.
	SlotTypeView SlotType = iota
	// SlotTypeTextureView carries a *wgpu.TextureView.
	SlotTypeTextureView
	// SlotTypeBuffer carries a *wgpu.Buffer.
	SlotTypeBuffer
)

func (t SlotType) String() string {
	switch t {
	case SlotTypeView:
		return "view"
	case SlotTypeTextureView:
		return "texture_view"
	case SlotTypeBuffer:
		return "buffer"
	default:
		return fmt.Sprintf("slot_type(%d)", int(t))
	}
}

// SlotInfo declares a named input or output slot of a node.
type SlotInfo struct {
	Name string
	Type SlotType
}

// SlotValue is a value flowing through a slot. Only the field matching Type is set.
type SlotValue struct {
	Type        SlotType
	View        ViewID
	TextureView *wgpu.TextureView
	Buffer      *wgpu.Buffer
}

// ViewValue wraps a view id in a slot value.
func ViewValue(v ViewID) SlotValue {
	return SlotValue{Type: SlotTypeView, View: v}
}

// TextureViewValue wraps a texture view in a slot value.
func TextureViewValue(v *wgpu.TextureView) SlotValue {
	return SlotValue{Type: SlotTypeTextureView, TextureView: v}
}

// BufferValue wraps a buffer in a slot value.
func BufferValue(b *wgpu.Buffer) SlotValue {
	return SlotValue{Type: SlotTypeBuffer, Buffer: b}
}
