package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-outline/engine/mesh"
)

// MeshSpecializer turns a specialization key and a mesh vertex layout into a pipeline
// descriptor. Implementations must be pure: equal inputs give equal descriptors, and
// Specialize may be called concurrently.
type MeshSpecializer interface {
	// Specialize builds the descriptor for a key and vertex layout.
	//
	// Parameters:
	//   - key: the view-dependent specialization key
	//   - layout: the vertex layout of the mesh being drawn
	//
	// Returns:
	//   - RenderPipelineDescriptor: the specialized descriptor
	//   - error: an error if the layout cannot be drawn by this pipeline
	Specialize(key MeshPipelineKey, layout *mesh.VertexBufferLayout) (RenderPipelineDescriptor, error)
}

// MeshSpecializerFunc adapts a function to the MeshSpecializer interface.
type MeshSpecializerFunc func(key MeshPipelineKey, layout *mesh.VertexBufferLayout) (RenderPipelineDescriptor, error)

// Specialize calls f(key, layout).
func (f MeshSpecializerFunc) Specialize(key MeshPipelineKey, layout *mesh.VertexBufferLayout) (RenderPipelineDescriptor, error) {
	return f(key, layout)
}

// specializedKey indexes memoized specializations. The layout hash narrows the search;
// candidates are confirmed with VertexBufferLayout.Equal.
type specializedKey struct {
	key        MeshPipelineKey
	layoutHash uint64
}

type specializedEntry struct {
	layout *mesh.VertexBufferLayout
	id     CachedID
}

// SpecializedMeshPipelines memoizes (key, vertex layout) -> CachedID on top of a
// MeshSpecializer, so each distinct combination is specialized and queued once.
// Failed specializations are not memoized.
//
// Safe for concurrent use. Uses RWMutex with double-check locking.
type SpecializedMeshPipelines struct {
	mu          sync.RWMutex
	specializer MeshSpecializer
	entries     map[specializedKey][]specializedEntry

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewSpecializedMeshPipelines creates a memo around a specializer.
//
// Parameters:
//   - specializer: the specializer producing descriptors
//
// Returns:
//   - *SpecializedMeshPipelines: the memo
func NewSpecializedMeshPipelines(specializer MeshSpecializer) *SpecializedMeshPipelines {
	return &SpecializedMeshPipelines{
		specializer: specializer,
		entries:     make(map[specializedKey][]specializedEntry),
	}
}

// Specialize returns the cached id for a key and layout, specializing and queueing the
// descriptor into cache on first use.
//
// Parameters:
//   - cache: the pipeline cache receiving new descriptors
//   - key: the specialization key
//   - layout: the mesh vertex layout
//
// Returns:
//   - CachedID: the id of the specialized pipeline
//   - error: the specializer's error, unchanged
func (s *SpecializedMeshPipelines) Specialize(cache *Cache, key MeshPipelineKey, layout *mesh.VertexBufferLayout) (CachedID, error) {
	k := specializedKey{key: key, layoutHash: layout.Hash()}

	s.mu.RLock()
	if id, ok := s.find(k, layout); ok {
		s.mu.RUnlock()
		s.hits.Add(1)
		return id, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.find(k, layout); ok {
		s.hits.Add(1)
		return id, nil
	}

	desc, err := s.specializer.Specialize(key, layout)
	if err != nil {
		return 0, err
	}
	id := cache.Queue(desc)
	s.entries[k] = append(s.entries[k], specializedEntry{layout: layout, id: id})
	s.misses.Add(1)
	return id, nil
}

// find looks up a memoized id. Caller must hold the lock.
func (s *SpecializedMeshPipelines) find(k specializedKey, layout *mesh.VertexBufferLayout) (CachedID, bool) {
	for _, e := range s.entries[k] {
		if e.layout.Equal(layout) {
			return e.id, true
		}
	}
	return 0, false
}

// Stats returns memo hits and misses.
func (s *SpecializedMeshPipelines) Stats() (hits, misses uint64) {
	return s.hits.Load(), s.misses.Load()
}
