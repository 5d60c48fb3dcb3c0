package pipeline

import (
	"sync/atomic"

	"github.com/cogentcore/webgpu/wgpu"
)

// bindGroupLayoutCount generates stable ids for BindGroupLayout handles.
var bindGroupLayoutCount atomic.Uint64

// BindGroupLayout is an engine-side handle to a bind group layout. Descriptors reference
// layouts by handle so they stay comparable and hashable before any GPU object exists; the
// renderer backend creates the GPU layout on demand and stores it with SetRaw.
type BindGroupLayout struct {
	id      uint64
	label   string
	entries []wgpu.BindGroupLayoutEntry
	raw     atomic.Pointer[wgpu.BindGroupLayout]
}

// NewBindGroupLayout creates a layout handle with a process-unique id.
//
// Parameters:
//   - label: the debug label of the layout
//   - entries: the layout entries, in binding order
//
// Returns:
//   - *BindGroupLayout: the layout handle
func NewBindGroupLayout(label string, entries ...wgpu.BindGroupLayoutEntry) *BindGroupLayout {
	return &BindGroupLayout{
		id:      bindGroupLayoutCount.Add(1),
		label:   label,
		entries: entries,
	}
}

// ID returns the stable id of the layout.
func (l *BindGroupLayout) ID() uint64 {
	return l.id
}

// Label returns the debug label of the layout.
func (l *BindGroupLayout) Label() string {
	return l.label
}

// Entries returns the layout entries.
func (l *BindGroupLayout) Entries() []wgpu.BindGroupLayoutEntry {
	return l.entries
}

// Descriptor builds the wgpu descriptor used to create the GPU layout.
func (l *BindGroupLayout) Descriptor() *wgpu.BindGroupLayoutDescriptor {
	return &wgpu.BindGroupLayoutDescriptor{
		Label:   l.label,
		Entries: l.entries,
	}
}

// Raw returns the GPU layout, or nil until the backend has created it.
func (l *BindGroupLayout) Raw() *wgpu.BindGroupLayout {
	return l.raw.Load()
}

// SetRaw stores the GPU layout created by the backend.
//
// Parameters:
//   - raw: the created GPU layout
func (l *BindGroupLayout) SetRaw(raw *wgpu.BindGroupLayout) {
	l.raw.Store(raw)
}
