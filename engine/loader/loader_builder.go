package loader

import "github.com/Carmen-Shannon/oxy-outline/engine/mesh"

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithMeshes pre-populates the mesh cache.
//
// Parameters:
//   - key: the cache key for the meshes
//   - meshes: the meshes to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the meshes option to a loader
func WithMeshes(key string, meshes []*mesh.Mesh) LoaderBuilderOption {
	return func(l *loader) {
		l.meshCache[key] = meshes
	}
}

// WithSkinning controls whether joint indices and weights are imported. Without them a
// skinned primitive imports as a static mesh in its bind pose. Enabled by default.
//
// Parameters:
//   - enabled: true to import JOINTS_0 and WEIGHTS_0
//
// Returns:
//   - LoaderBuilderOption: a function that applies the skinning option to a loader
func WithSkinning(enabled bool) LoaderBuilderOption {
	return func(l *loader) {
		l.skinning = enabled
	}
}
