package bind_group_provider

import "github.com/cogentcore/webgpu/wgpu"

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithBindGroup sets the bind group for this provider.
//
// Parameters:
//   - bg: the bind group to set for this provider
//
// Returns:
//   - BindGroupProviderOption: a function that sets the bind group for this provider
func WithBindGroup(bg *wgpu.BindGroup) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.bindGroup = bg
	}
}

// WithBuffer sets a buffer for a specific binding index.
//
// Parameters:
//   - binding: the binding index for this buffer
//   - buf: the buffer to associate with this binding
//
// Returns:
//   - BindGroupProviderOption: a function that sets the buffer for the specified binding
func WithBuffer(binding int, buf *wgpu.Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.buffers[binding] = buf
	}
}

// WithGeometry sets pre-created vertex and index buffers, typically in tests or when several
// providers share one upload.
//
// Parameters:
//   - vertices: the vertex buffer
//   - vertexCount: the number of vertices in the buffer
//   - indices: the index buffer, or nil for non-indexed geometry
//   - indexCount: the number of indices in the buffer
//
// Returns:
//   - BindGroupProviderOption: a function that sets the geometry buffers
func WithGeometry(vertices *wgpu.Buffer, vertexCount uint32, indices *wgpu.Buffer, indexCount uint32) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.vertexBuffer, p.vertexCount = vertices, vertexCount
		p.indexBuffer, p.indexCount = indices, indexCount
	}
}
