package renderer

import (
	"github.com/Carmen-Shannon/oxy-outline/engine/mesh"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/graph"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// RendererBackendType identifies the GPU API a renderer drives.
type RendererBackendType int

const (
	// BackendTypeWGPU drives the GPU through wgpu-native.
	BackendTypeWGPU RendererBackendType = iota
)

func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	default:
		return "unknown"
	}
}

// MSAASampleCount is the number of samples per pixel for the main view.
type MSAASampleCount uint32

const (
	// MSAAOff renders one sample per pixel.
	MSAAOff MSAASampleCount = 1
	// MSAA4x renders four samples per pixel.
	MSAA4x MSAASampleCount = 4
)

// RendererBackend owns the device and queue and records one command encoder per frame.
// Render graph nodes open their passes on the backend through graph.RenderContext.
type RendererBackend interface {
	graph.RenderContext

	// Device returns the GPU device.
	Device() *wgpu.Device

	// Queue returns the GPU queue.
	Queue() *wgpu.Queue

	// InitBindGroupLayout creates the GPU layout for a layout handle if it has none yet.
	//
	// Parameters:
	//   - layout: the layout handle
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the GPU layout
	//   - error: an error if the layout could not be created
	InitBindGroupLayout(layout *pipeline.BindGroupLayout) (*wgpu.BindGroupLayout, error)

	// CreateRenderPipeline compiles a descriptor with its prepared shader modules.
	//
	// Parameters:
	//   - desc: the pipeline descriptor
	//   - vertex: the prepared vertex module
	//   - fragment: the prepared fragment module, or nil when desc has no fragment stage
	//
	// Returns:
	//   - *wgpu.RenderPipeline: the GPU pipeline
	//   - error: an error if any GPU object could not be created
	CreateRenderPipeline(desc pipeline.RenderPipelineDescriptor, vertex, fragment *shader.Module) (*wgpu.RenderPipeline, error)

	// InitMeshBuffers uploads a mesh's vertices and indices into the provider.
	//
	// Parameters:
	//   - provider: the provider receiving the buffers
	//   - m: the mesh to upload
	//
	// Returns:
	//   - error: an error if a buffer could not be created
	InitMeshBuffers(provider bind_group_provider.BindGroupProvider, m *mesh.Mesh) error

	// InitBindGroup creates the buffers and bind group described by layout.
	//
	// Parameters:
	//   - provider: the provider receiving the bind group
	//   - layout: the layout the bind group is created against
	//   - bufferSizeOverrides: buffer sizes keyed by binding, used in place of the minimum binding size
	//
	// Returns:
	//   - error: an error if a GPU object could not be created
	InitBindGroup(provider bind_group_provider.BindGroupProvider, layout *pipeline.BindGroupLayout, bufferSizeOverrides map[int]uint64) error

	// WriteBuffers uploads a batch of buffer writes.
	//
	// Parameters:
	//   - writes: the writes to upload
	WriteBuffers(writes []bind_group_provider.BufferWrite)

	// BeginFrame opens the frame's command encoder.
	//
	// Returns:
	//   - error: an error if a frame is already open or the encoder could not be created
	BeginFrame() error

	// EndFrame finishes the frame's command encoder and submits it.
	//
	// Returns:
	//   - error: an error if no frame is open or the encoder could not be finished
	EndFrame() error

	// ReadTexture copies a 2D texture into host memory and waits for the copy.
	//
	// Parameters:
	//   - tex: the texture to read, created with TextureUsageCopySrc
	//   - width: the texture width in texels
	//   - height: the texture height in texels
	//   - bytesPerTexel: the texel size of the texture format
	//
	// Returns:
	//   - []byte: the tightly packed texel rows
	//   - error: an error if the copy or the mapping failed
	ReadTexture(tex *wgpu.Texture, width, height, bytesPerTexel uint32) ([]byte, error)

	// Release releases the device and every object the backend created.
	Release()
}
