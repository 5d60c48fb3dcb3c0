package shader

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-outline/common"
	"github.com/gogpu/naga"
)

var (
	// ErrUnknownShader is returned when resolving a handle that was never registered.
	ErrUnknownShader = errors.New("shader: unknown handle")

	// ErrNoEntryPoint is returned when a source declares no entry point for the requested stage.
	ErrNoEntryPoint = errors.New("shader: no entry point for stage")
)

// CompileFunc validates pre-processed WGSL and returns its SPIR-V binary.
type CompileFunc func(wgsl string) ([]byte, error)

// moduleKey identifies one prepared module.
type moduleKey struct {
	handle Handle
	stage  Stage
	defs   string
}

// Request names a module to prepare with ResolveAll.
type Request struct {
	Handle Handle
	Stage  Stage
	Defs   Defs
}

// Registry owns shader sources and the modules prepared from them. Modules are prepared
// once per (handle, stage, defines) and shared read-only afterwards.
//
// Registry is safe for concurrent use. Lookups take a read lock. Preparation runs
// unlocked and the result is published under the write lock with a double check, so
// the first module stored for a key wins.
type Registry struct {
	mu      sync.RWMutex
	sources map[Handle]string
	modules map[moduleKey]*Module

	pp      PreProcessor
	compile CompileFunc

	workers  int
	poolOnce sync.Once
	pool     worker.DynamicWorkerPool

	hits   atomic.Uint64
	misses atomic.Uint64
}

// RegistryOption is a functional option used to configure a Registry during construction.
type RegistryOption func(*Registry)

// WithWorkers sets the number of workers ResolveAll prepares modules on.
//
// Parameters:
//   - n: the worker count, values below 1 are treated as 1
//
// Returns:
//   - RegistryOption: a function that sets the worker count
func WithWorkers(n int) RegistryOption {
	return func(r *Registry) {
		r.workers = max(n, 1)
	}
}

// WithCompiler replaces the WGSL validator. The default compiles to SPIR-V with naga.
//
// Parameters:
//   - compile: the function validating WGSL and returning SPIR-V
//
// Returns:
//   - RegistryOption: a function that sets the compiler
func WithCompiler(compile CompileFunc) RegistryOption {
	return func(r *Registry) {
		r.compile = compile
	}
}

// NewRegistry creates an empty shader registry.
//
// Parameters:
//   - options: functional options to configure the registry
//
// Returns:
//   - *Registry: the registry
func NewRegistry(options ...RegistryOption) *Registry {
	r := &Registry{
		sources: make(map[Handle]string),
		modules: make(map[moduleKey]*Module),
		pp:      NewPreProcessor(),
		compile: naga.Compile,
		workers: 4,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Register stores the WGSL source for a handle. Registering a handle again replaces its
// source and drops every module prepared from the previous one.
//
// Parameters:
//   - handle: the shader handle
//   - source: the raw WGSL source, with Oxy directives
func (r *Registry) Register(handle Handle, source string) {
	if handle == "" {
		panic("shader: Register requires a non-empty handle")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.sources[handle]; ok && old != source {
		for k := range r.modules {
			if k.handle == handle {
				delete(r.modules, k)
			}
		}
	}
	r.sources[handle] = source
}

// Resolve returns the module for a handle prepared for a stage and define list, preparing
// and caching it on first use.
//
// Parameters:
//   - handle: the shader handle
//   - stage: the pipeline stage
//   - defs: the defines the source is expanded with
//
// Returns:
//   - *Module: the prepared module
//   - error: ErrUnknownShader, ErrNoEntryPoint, or a pre-processing or validation error
func (r *Registry) Resolve(handle Handle, stage Stage, defs Defs) (*Module, error) {
	key := moduleKey{handle: handle, stage: stage, defs: defs.Key()}

	r.mu.RLock()
	if m, ok := r.modules[key]; ok {
		r.mu.RUnlock()
		r.hits.Add(1)
		return m, nil
	}
	source, ok := r.sources[handle]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownShader, handle)
	}

	// Prepared outside the lock so ResolveAll workers compile in parallel.
	m, err := r.prepare(handle, stage, defs, source)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.modules[key]; ok {
		r.hits.Add(1)
		return existing, nil
	}
	if r.sources[handle] == source {
		r.modules[key] = m
	}
	r.misses.Add(1)
	common.Logger().Debug("shader module prepared", "module", m.Label(), "spirv_bytes", len(m.SPIRV))
	return m, nil
}

// ResolveAll prepares a batch of modules concurrently on the registry's worker pool.
// The returned slice matches the order of requests. Every request is attempted; the
// returned error joins every failure.
//
// Parameters:
//   - requests: the modules to prepare
//
// Returns:
//   - []*Module: the prepared modules, nil where preparation failed
//   - error: the joined preparation errors, or nil
func (r *Registry) ResolveAll(requests []Request) ([]*Module, error) {
	r.poolOnce.Do(func() {
		r.pool = worker.NewDynamicWorkerPool(r.workers, 256, 1*time.Second)
	})

	modules := make([]*Module, len(requests))
	errs := make([]error, len(requests))

	// WaitGroup barrier: pool.Wait blocks until workers idle-exit.
	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		r.pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				modules[i], errs[i] = r.Resolve(req.Handle, req.Stage, req.Defs)
				return nil, nil
			},
		})
	}
	wg.Wait()
	return modules, errors.Join(errs...)
}

// Stats returns the number of Resolve calls served from the cache and the number
// that prepared a new module.
func (r *Registry) Stats() (hits, misses uint64) {
	return r.hits.Load(), r.misses.Load()
}

// prepare expands, parses and validates a source.
func (r *Registry) prepare(handle Handle, stage Stage, defs Defs, source string) (*Module, error) {
	processed, _, err := r.pp.Process(source, defs)
	if err != nil {
		return nil, fmt.Errorf("shader %s: pre-process: %w", handle, err)
	}
	entryPoints := parseEntryPoints(processed, stage)
	if len(entryPoints) == 0 {
		return nil, fmt.Errorf("%w %s in %q", ErrNoEntryPoint, stage, handle)
	}
	spirv, err := r.compile(processed)
	if err != nil {
		return nil, fmt.Errorf("shader %s: validate: %w", handle, err)
	}

	m := &Module{
		Handle:      handle,
		Stage:       stage,
		Defs:        defs,
		EntryPoints: entryPoints,
		Source:      processed,
		Bindings:    parseBindings(processed),
		SPIRV:       spirv,
	}
	if stage == StageVertex {
		m.VertexInputs = make(map[string][]VertexInput, len(entryPoints))
		for _, ep := range entryPoints {
			m.VertexInputs[ep] = parseVertexInputs(processed, ep)
		}
	}
	return m, nil
}
