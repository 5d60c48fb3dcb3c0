package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-outline/common"
	"github.com/Carmen-Shannon/oxy-outline/engine/mesh"
)

// LoaderBackendType identifies the model file format backend to use.
type LoaderBackendType int

const (
	// BackendTypeGLTF selects the glTF/GLB loader backend.
	BackendTypeGLTF LoaderBackendType = iota
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu        sync.RWMutex
	meshCache map[string][]*mesh.Mesh
	skinning  bool
	backend   loaderBackend
}

// Loader imports mesh geometry from model files and caches it by name. Each mesh keeps
// exactly the vertex attributes its file provides, so pipelines specialize on what is
// really there.
type Loader interface {
	// Load imports a model file, or returns the cached meshes for path.
	//
	// Parameters:
	//   - path: the file path to the model file
	//
	// Returns:
	//   - []*mesh.Mesh: one mesh per primitive
	//   - error: error if loading fails
	Load(path string) ([]*mesh.Mesh, error)

	// LoadReader imports a model from a stream and caches it under name.
	//
	// Parameters:
	//   - name: the cache key for the loaded meshes
	//   - r: the reader providing model data
	//   - isGLB: true if the reader provides GLB binary data
	//
	// Returns:
	//   - []*mesh.Mesh: one mesh per primitive
	//   - error: error if loading fails
	LoadReader(name string, r io.Reader, isGLB bool) ([]*mesh.Mesh, error)

	// Get returns cached meshes by name, or nil if none are cached.
	//
	// Parameters:
	//   - name: the cache key to look up
	//
	// Returns:
	//   - []*mesh.Mesh: the cached meshes or nil
	Get(name string) []*mesh.Mesh
}

var _ Loader = &loader{}

// NewLoader creates a Loader for the given backend.
//
// Parameters:
//   - backendType: the file format backend
//   - opts: a variadic list of LoaderBuilderOption functions
//
// Returns:
//   - Loader: the loader
//   - error: an error for an unknown backend type
func NewLoader(backendType LoaderBackendType, opts ...LoaderBuilderOption) (Loader, error) {
	l := &loader{
		meshCache: make(map[string][]*mesh.Mesh),
		skinning:  true,
	}
	for _, opt := range opts {
		opt(l)
	}

	switch backendType {
	case BackendTypeGLTF:
		l.backend = &gltfLoaderBackend{skinning: l.skinning}
	default:
		return nil, fmt.Errorf("loader: unsupported backend %d", backendType)
	}
	return l, nil
}

func (l *loader) Load(path string) ([]*mesh.Mesh, error) {
	if cached := l.Get(path); cached != nil {
		return cached, nil
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gltf", ".glb":
	default:
		return nil, fmt.Errorf("loader: unsupported file extension %q", ext)
	}

	meshes, err := l.backend.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", path, err)
	}
	l.store(path, meshes)
	return meshes, nil
}

func (l *loader) LoadReader(name string, r io.Reader, isGLB bool) ([]*mesh.Mesh, error) {
	if cached := l.Get(name); cached != nil {
		return cached, nil
	}
	meshes, err := l.backend.LoadReader(r, isGLB)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", name, err)
	}
	l.store(name, meshes)
	return meshes, nil
}

func (l *loader) Get(name string) []*mesh.Mesh {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.meshCache[name]
}

// store caches meshes under name. A concurrent load of the same name keeps the first result.
func (l *loader) store(name string, meshes []*mesh.Mesh) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.meshCache[name]; ok {
		return
	}
	l.meshCache[name] = meshes
	for _, m := range meshes {
		common.Logger().Info("mesh imported", "source", name, "mesh", m.Label,
			"vertices", m.VertexCount(), "indices", len(m.Indices), "layout", m.Layout.String())
	}
}
