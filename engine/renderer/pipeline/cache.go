package pipeline

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/Carmen-Shannon/oxy-outline/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// CachedID identifies a descriptor queued in a Cache.
type CachedID uint32

// PipelineState is the compilation state of a cached descriptor.
type PipelineState int

const (
	// PipelineStateQueued means the descriptor waits for the next Process call.
	PipelineStateQueued PipelineState = iota
	// PipelineStateReady means the GPU pipeline is available.
	PipelineStateReady
	// PipelineStateFailed means compilation failed; Err returns the cause.
	PipelineStateFailed
)

func (s PipelineState) String() string {
	switch s {
	case PipelineStateQueued:
		return "queued"
	case PipelineStateReady:
		return "ready"
	case PipelineStateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CompileFunc turns a queued descriptor into a GPU pipeline.
type CompileFunc func(id CachedID, desc RenderPipelineDescriptor) (*wgpu.RenderPipeline, error)

// cachedPipeline is one slot of the cache.
type cachedPipeline struct {
	desc     RenderPipelineDescriptor
	hash     uint64
	state    PipelineState
	pipeline Pipeline
	err      error
}

// Cache stores render pipeline descriptors and the pipelines compiled from them. Equal
// descriptors share one CachedID. Queueing never touches the GPU; Process compiles every
// queued descriptor with the given CompileFunc, typically once per frame on the render thread.
//
// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries []*cachedPipeline
	byHash  map[uint64][]CachedID
}

// NewCache creates an empty pipeline cache.
//
// Returns:
//   - *Cache: the cache
func NewCache() *Cache {
	return &Cache{byHash: make(map[uint64][]CachedID)}
}

// Queue returns the id of the descriptor, adding it in the queued state if no equal
// descriptor is cached yet.
//
// Parameters:
//   - desc: the descriptor to queue
//
// Returns:
//   - CachedID: the id of the descriptor
func (c *Cache) Queue(desc RenderPipelineDescriptor) CachedID {
	hash := desc.Hash()

	c.mu.RLock()
	if id, ok := c.lookup(hash, &desc); ok {
		c.mu.RUnlock()
		return id
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.lookup(hash, &desc); ok {
		return id
	}
	id := CachedID(len(c.entries))
	c.entries = append(c.entries, &cachedPipeline{desc: desc, hash: hash})
	c.byHash[hash] = append(c.byHash[hash], id)
	common.Logger().Debug("pipeline queued", "id", id, "label", desc.Label)
	return id
}

// lookup finds an equal descriptor. Caller must hold the lock.
func (c *Cache) lookup(hash uint64, desc *RenderPipelineDescriptor) (CachedID, bool) {
	for _, id := range c.byHash[hash] {
		if reflect.DeepEqual(&c.entries[id].desc, desc) {
			return id, true
		}
	}
	return 0, false
}

// Len returns the number of cached descriptors.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Descriptor returns the descriptor stored for an id.
//
// Parameters:
//   - id: the cache id
//
// Returns:
//   - RenderPipelineDescriptor: the descriptor
//   - bool: false if the id is unknown
func (c *Cache) Descriptor(id CachedID) (RenderPipelineDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if int(id) >= len(c.entries) {
		return RenderPipelineDescriptor{}, false
	}
	return c.entries[id].desc, true
}

// State returns the compilation state of an id. Unknown ids report PipelineStateFailed.
func (c *Cache) State(id CachedID) PipelineState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if int(id) >= len(c.entries) {
		return PipelineStateFailed
	}
	return c.entries[id].state
}

// Err returns the compilation error of a failed id, or nil.
func (c *Cache) Err(id CachedID) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if int(id) >= len(c.entries) {
		return fmt.Errorf("pipeline: unknown cached id %d", id)
	}
	return c.entries[id].err
}

// Pipeline returns the compiled pipeline for an id once it is ready.
//
// Parameters:
//   - id: the cache id
//
// Returns:
//   - Pipeline: the compiled pipeline
//   - bool: false while the id is queued, failed or unknown
func (c *Cache) Pipeline(id CachedID) (Pipeline, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if int(id) >= len(c.entries) || c.entries[id].state != PipelineStateReady {
		return nil, false
	}
	return c.entries[id].pipeline, true
}

// Pending returns the ids still waiting for compilation, in queue order.
func (c *Cache) Pending() []CachedID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var ids []CachedID
	for i, e := range c.entries {
		if e.state == PipelineStateQueued {
			ids = append(ids, CachedID(i))
		}
	}
	return ids
}

// Process compiles every queued descriptor. Failed descriptors move to the failed state
// and are not retried; the returned error joins every failure of this call.
//
// Parameters:
//   - compile: the function creating GPU pipelines
//
// Returns:
//   - error: the joined compilation errors, or nil
func (c *Cache) Process(compile CompileFunc) error {
	var errs []error
	for _, id := range c.Pending() {
		desc, _ := c.Descriptor(id)
		rp, err := compile(id, desc)

		c.mu.Lock()
		e := c.entries[id]
		if err != nil {
			e.state, e.err = PipelineStateFailed, err
			errs = append(errs, fmt.Errorf("pipeline %q (id %d): %w", desc.Label, id, err))
		} else {
			e.state = PipelineStateReady
			e.pipeline = NewPipeline(fmt.Sprintf("%s#%d", desc.Label, id),
				WithID(id), WithDescriptor(desc), WithRenderPipeline(rp))
		}
		c.mu.Unlock()

		if err != nil {
			common.Logger().Warn("pipeline compilation failed", "id", id, "label", desc.Label, "error", err)
		} else {
			common.Logger().Debug("pipeline ready", "id", id, "label", desc.Label)
		}
	}
	return errors.Join(errs...)
}

// Release releases every compiled GPU pipeline and empties the cache.
func (c *Cache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.pipeline != nil {
			e.pipeline.Release()
		}
	}
	c.entries = nil
	c.byHash = make(map[uint64][]CachedID)
}
