package loader

import (
	"io"

	"github.com/Carmen-Shannon/oxy-outline/engine/mesh"
)

// loaderBackend loads meshes from one file format.
type loaderBackend interface {
	// Load imports every mesh primitive of the file at path.
	//
	// Parameters:
	//   - path: the file path to load
	//
	// Returns:
	//   - []*mesh.Mesh: one mesh per primitive
	//   - error: error if loading fails
	Load(path string) ([]*mesh.Mesh, error)

	// LoadReader imports every mesh primitive from a stream.
	//
	// Parameters:
	//   - r: the reader providing model data
	//   - isGLB: true if the reader provides GLB binary data
	//
	// Returns:
	//   - []*mesh.Mesh: one mesh per primitive
	//   - error: error if loading fails
	LoadReader(r io.Reader, isGLB bool) ([]*mesh.Mesh, error)
}

// gltfLoaderBackend is the loaderBackend for glTF and GLB files.
type gltfLoaderBackend struct {
	skinning bool
}

var _ loaderBackend = &gltfLoaderBackend{}

func (b *gltfLoaderBackend) Load(path string) ([]*mesh.Mesh, error) {
	f, err := parseGLTFFile(path)
	if err != nil {
		return nil, err
	}
	return extractMeshes(f, b.skinning)
}

func (b *gltfLoaderBackend) LoadReader(r io.Reader, isGLB bool) ([]*mesh.Mesh, error) {
	f, err := parseGLTFReader(r, isGLB)
	if err != nil {
		return nil, err
	}
	return extractMeshes(f, b.skinning)
}
