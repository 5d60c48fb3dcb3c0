// Package phase holds per-view lists of draw items prepared before the render graph runs.
package phase

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/graph"
)

// EntityID identifies the scene entity a draw item was built for.
type EntityID uint64

// Item is one draw in a render phase.
type Item interface {
	// Entity returns the entity the item draws.
	Entity() EntityID

	// Draw records the item into a pass.
	//
	// Parameters:
	//   - pass: the pass to record into
	//   - view: the view being rendered
	//
	// Returns:
	//   - error: an error that aborts the pass
	Draw(pass *graph.TrackedRenderPass, view graph.ViewID) error
}

// RenderPhase is the ordered list of items drawn for one view.
type RenderPhase[I Item] struct {
	items []I
}

// NewRenderPhase creates a phase holding items in the given order.
func NewRenderPhase[I Item](items ...I) *RenderPhase[I] {
	return &RenderPhase[I]{items: items}
}

// Add appends an item.
func (p *RenderPhase[I]) Add(item I) {
	p.items = append(p.items, item)
}

// Items returns the items in draw order.
func (p *RenderPhase[I]) Items() []I {
	return p.items
}

// Len returns the number of items.
func (p *RenderPhase[I]) Len() int {
	return len(p.items)
}

// Render draws every item exactly once, in order. It stops at the first failing item.
//
// Parameters:
//   - pass: the pass to record into
//   - view: the view being rendered
//
// Returns:
//   - error: the first item error, wrapped with the item's entity
func (p *RenderPhase[I]) Render(pass *graph.TrackedRenderPass, view graph.ViewID) error {
	for i, item := range p.items {
		if err := item.Draw(pass, view); err != nil {
			return fmt.Errorf("phase item %d (entity %d): %w", i, item.Entity(), err)
		}
	}
	return nil
}

// ViewPhases maps views to their phase for the current frame. Every Clear starts a new
// generation, so consumers can tell whether a snapshot is from the current frame.
//
// The zero value is an empty table. Safe for concurrent use.
type ViewPhases[I Item] struct {
	mu         sync.RWMutex
	phases     map[graph.ViewID]*RenderPhase[I]
	generation uint64
}

// NewViewPhases creates an empty table.
func NewViewPhases[I Item]() *ViewPhases[I] {
	return &ViewPhases[I]{phases: make(map[graph.ViewID]*RenderPhase[I])}
}

// Insert sets the phase of a view, replacing any previous one.
func (v *ViewPhases[I]) Insert(view graph.ViewID, phase *RenderPhase[I]) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.phases == nil {
		v.phases = make(map[graph.ViewID]*RenderPhase[I])
	}
	v.phases[view] = phase
}

// Replace swaps the whole table for phases and starts a new generation, so readers see
// either the previous frame's table or the complete new one.
//
// Parameters:
//   - phases: the new table, owned by the ViewPhases afterwards
func (v *ViewPhases[I]) Replace(phases map[graph.ViewID]*RenderPhase[I]) {
	if phases == nil {
		phases = make(map[graph.ViewID]*RenderPhase[I])
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.phases = phases
	v.generation++
}

// Lookup returns the phase of a view.
//
// Parameters:
//   - view: the view id
//
// Returns:
//   - *RenderPhase[I]: the phase
//   - bool: false if the view has no phase this frame
func (v *ViewPhases[I]) Lookup(view graph.ViewID) (*RenderPhase[I], bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	p, ok := v.phases[view]
	return p, ok
}

// Snapshot returns a copy of the table and its generation.
func (v *ViewPhases[I]) Snapshot() (map[graph.ViewID]*RenderPhase[I], uint64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[graph.ViewID]*RenderPhase[I], len(v.phases))
	for id, p := range v.phases {
		out[id] = p
	}
	return out, v.generation
}

// Clear removes every phase and starts a new generation.
func (v *ViewPhases[I]) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	clear(v.phases)
	v.generation++
}

// Generation returns the number of Clear calls so far.
func (v *ViewPhases[I]) Generation() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.generation
}
