package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-outline/common"
	"github.com/Carmen-Shannon/oxy-outline/engine/mesh"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/graph"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-outline/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// copyBytesPerRowAlignment is the row pitch alignment required for texture to buffer copies.
const copyBytesPerRowAlignment = 256

var (
	// ErrFrameInProgress is returned by BeginFrame when the previous frame was not ended.
	ErrFrameInProgress = errors.New("renderer: previous frame not yet submitted")
	// ErrNoFrame is returned when a pass or EndFrame is requested outside a frame.
	ErrNoFrame = errors.New("renderer: no frame in progress")
)

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter

	// shaderModules holds one GPU module per prepared module, keyed by module label.
	shaderModules map[string]*wgpu.ShaderModule
	// bindGroupLayouts holds every GPU layout created for a layout handle, for Release.
	bindGroupLayouts []*wgpu.BindGroupLayout
	pipelineLayouts  []*wgpu.PipelineLayout

	// frameEncoder records every pass of the current frame.
	frameEncoder *wgpu.CommandEncoder
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

// newWGPURendererBackend requests an adapter and a device without a surface.
//
// Parameters:
//   - forceFallbackAdapter: request the software adapter
//   - limits: the device limits to require
//
// Returns:
//   - *wgpuRendererBackendImpl: the backend
//   - error: an error if no adapter or device could be acquired
func newWGPURendererBackend(forceFallbackAdapter bool, limits wgpu.Limits) (*wgpuRendererBackendImpl, error) {
	b := &wgpuRendererBackendImpl{
		mu:            &sync.Mutex{},
		instance:      wgpu.CreateInstance(nil),
		shaderModules: make(map[string]*wgpu.ShaderModule),
	}

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
	})
	if err != nil {
		b.instance.Release()
		return nil, fmt.Errorf("renderer: request adapter: %w", err)
	}
	b.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		a.Release()
		b.instance.Release()
		return nil, fmt.Errorf("renderer: request device: %w", err)
	}
	b.device = d
	b.queue = d.GetQueue()

	common.Logger().Info("renderer device ready", "fallback", forceFallbackAdapter)
	return b, nil
}

func (b *wgpuRendererBackendImpl) Device() *wgpu.Device {
	return b.device
}

func (b *wgpuRendererBackendImpl) Queue() *wgpu.Queue {
	return b.queue
}

func (b *wgpuRendererBackendImpl) InitBindGroupLayout(layout *pipeline.BindGroupLayout) (*wgpu.BindGroupLayout, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initBindGroupLayoutLocked(layout)
}

func (b *wgpuRendererBackendImpl) initBindGroupLayoutLocked(layout *pipeline.BindGroupLayout) (*wgpu.BindGroupLayout, error) {
	if raw := layout.Raw(); raw != nil {
		return raw, nil
	}
	raw, err := b.device.CreateBindGroupLayout(layout.Descriptor())
	if err != nil {
		return nil, fmt.Errorf("create bind group layout %q: %w", layout.Label(), err)
	}
	layout.SetRaw(raw)
	b.bindGroupLayouts = append(b.bindGroupLayouts, raw)
	return raw, nil
}

func (b *wgpuRendererBackendImpl) shaderModuleLocked(m *shader.Module) (*wgpu.ShaderModule, error) {
	if sm, ok := b.shaderModules[m.Label()]; ok {
		return sm, nil
	}
	sm, err := b.device.CreateShaderModule(m.Descriptor())
	if err != nil {
		return nil, fmt.Errorf("create shader module %s: %w", m.Label(), err)
	}
	b.shaderModules[m.Label()] = sm
	return sm, nil
}

func (b *wgpuRendererBackendImpl) CreateRenderPipeline(desc pipeline.RenderPipelineDescriptor, vertex, fragment *shader.Module) (*wgpu.RenderPipeline, error) {
	if vertex == nil {
		return nil, errors.New("a vertex module is required to create a render pipeline")
	}
	if desc.Fragment != nil && fragment == nil {
		return nil, errors.New("descriptor has a fragment stage but no fragment module was prepared")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	vs, err := b.shaderModuleLocked(vertex)
	if err != nil {
		return nil, err
	}

	bindGroupLayouts := make([]*wgpu.BindGroupLayout, len(desc.Layout))
	for g, l := range desc.Layout {
		raw, layoutErr := b.initBindGroupLayoutLocked(l)
		if layoutErr != nil {
			return nil, fmt.Errorf("group %d: %w", g, layoutErr)
		}
		bindGroupLayouts[g] = raw
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		return nil, err
	}
	b.pipelineLayouts = append(b.pipelineLayouts, pipelineLayout)

	gpuDesc := &wgpu.RenderPipelineDescriptor{
		Label:  desc.Label + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: desc.Vertex.EntryPoint,
			Buffers:    desc.Vertex.Buffers,
		},
		Primitive:    desc.Primitive,
		DepthStencil: desc.DepthStencil,
		Multisample:  desc.Multisample,
	}
	if desc.Fragment != nil {
		fs, fsErr := b.shaderModuleLocked(fragment)
		if fsErr != nil {
			return nil, fsErr
		}
		gpuDesc.Fragment = &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: desc.Fragment.EntryPoint,
			Targets:    desc.Fragment.Targets,
		}
	}

	return b.device.CreateRenderPipeline(gpuDesc)
}

func (b *wgpuRendererBackendImpl) InitMeshBuffers(provider bind_group_provider.BindGroupProvider, m *mesh.Mesh) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(m.VertexData) > 0 {
		buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label:            provider.Label() + " Vertex Buffer",
			Size:             uint64(len(m.VertexData)),
			Usage:            wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
			MappedAtCreation: false,
		})
		if err != nil {
			return err
		}
		b.queue.WriteBuffer(buf, 0, m.VertexData)
		provider.SetVertexBuffer(buf, uint32(m.VertexCount()))
	}

	if len(m.Indices) > 0 {
		indexData := mesh.MarshalIndices(m.Indices)
		buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label:            provider.Label() + " Index Buffer",
			Size:             uint64(len(indexData)),
			Usage:            wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
			MappedAtCreation: false,
		})
		if err != nil {
			return err
		}
		b.queue.WriteBuffer(buf, 0, indexData)
		provider.SetIndexBuffer(buf, uint32(len(m.Indices)))
	}

	return nil
}

func (b *wgpuRendererBackendImpl) InitBindGroup(provider bind_group_provider.BindGroupProvider, layout *pipeline.BindGroupLayout, bufferSizeOverrides map[int]uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := layout.Entries()
	if len(entries) == 0 {
		return nil
	}

	raw, err := b.initBindGroupLayoutLocked(layout)
	if err != nil {
		return err
	}

	bindGroupEntries := make([]wgpu.BindGroupEntry, len(entries))
	for i, entry := range entries {
		binding := int(entry.Binding)

		var usage wgpu.BufferUsage
		switch entry.Buffer.Type {
		case wgpu.BufferBindingTypeUniform:
			usage = wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
		case wgpu.BufferBindingTypeStorage, wgpu.BufferBindingTypeReadOnlyStorage:
			usage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
		default:
			return fmt.Errorf("binding %d of %q is not a buffer binding", binding, layout.Label())
		}

		buf := provider.Buffer(binding)
		if buf == nil {
			bufSize := entry.Buffer.MinBindingSize
			if overrideSize, ok := bufferSizeOverrides[binding]; ok {
				bufSize = overrideSize
			}
			var bufErr error
			buf, bufErr = b.device.CreateBuffer(&wgpu.BufferDescriptor{
				Label: fmt.Sprintf("%s Buffer %d", provider.Label(), binding),
				Size:  bufSize,
				Usage: usage,
			})
			if bufErr != nil {
				return bufErr
			}
			provider.SetBuffer(binding, buf)
		}

		size := uint64(wgpu.WholeSize)
		if entry.Buffer.HasDynamicOffset {
			// Dynamic offsets bind one slot of the shared buffer.
			size = entry.Buffer.MinBindingSize
		}
		bindGroupEntries[i] = wgpu.BindGroupEntry{
			Binding: entry.Binding,
			Buffer:  buf,
			Offset:  0,
			Size:    size,
		}
	}

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   provider.Label() + " Bind Group",
		Layout:  raw,
		Entries: bindGroupEntries,
	})
	if err != nil {
		return err
	}
	provider.SetBindGroup(bindGroup)

	return nil
}

func (b *wgpuRendererBackendImpl) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, w := range writes {
		buf := w.Provider.Buffer(w.Binding)
		if buf == nil {
			common.Logger().Warn("buffer write skipped, binding has no buffer",
				"provider", w.Provider.Label(), "binding", w.Binding)
			continue
		}
		b.queue.WriteBuffer(buf, w.Offset, w.Data)
	}
}

func (b *wgpuRendererBackendImpl) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder != nil {
		return ErrFrameInProgress
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	b.frameEncoder = encoder
	return nil
}

// BeginTrackedRenderPass opens a pass on the current frame's encoder.
func (b *wgpuRendererBackendImpl) BeginTrackedRenderPass(desc *wgpu.RenderPassDescriptor) (*graph.TrackedRenderPass, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return nil, ErrNoFrame
	}
	pass := b.frameEncoder.BeginRenderPass(desc)
	common.Logger().Debug("render pass begun", "label", desc.Label)
	return graph.NewTrackedRenderPass(pass), nil
}

func (b *wgpuRendererBackendImpl) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return ErrNoFrame
	}
	encoder := b.frameEncoder
	b.frameEncoder = nil
	defer encoder.Release()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("renderer: finish frame: %w", err)
	}
	defer commandBuffer.Release()

	b.queue.Submit(commandBuffer)
	return nil
}

// ReadTexture copies the first mip level of a 2D texture into host memory, blocking until
// the copy has completed. Rows are returned tightly packed.
//
// Parameters:
//   - tex: the texture to read, created with TextureUsageCopySrc
//   - width: the texture width in texels
//   - height: the texture height in texels
//   - bytesPerTexel: the texel size of the texture format
//
// Returns:
//   - []byte: width*height*bytesPerTexel bytes of texel data
//   - error: an error if the copy or the mapping failed
func (b *wgpuRendererBackendImpl) ReadTexture(tex *wgpu.Texture, width, height, bytesPerTexel uint32) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rowBytes := width * bytesPerTexel
	paddedRow := (rowBytes + copyBytesPerRowAlignment - 1) / copyBytesPerRowAlignment * copyBytesPerRowAlignment
	size := uint64(paddedRow) * uint64(height)

	staging, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Readback Buffer",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer staging.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	defer encoder.Release()

	err = encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyBuffer{
			Buffer: staging,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  paddedRow,
				RowsPerImage: height,
			},
		},
		&wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return nil, err
	}

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return nil, err
	}
	defer commandBuffer.Release()
	b.queue.Submit(commandBuffer)

	var status wgpu.BufferMapAsyncStatus
	if err := staging.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	}); err != nil {
		return nil, err
	}
	b.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("renderer: map readback buffer: status %v", status)
	}

	mapped := staging.GetMappedRange(0, uint(size))
	out := make([]byte, 0, rowBytes*height)
	for y := range height {
		start := y * paddedRow
		out = append(out, mapped[start:start+rowBytes]...)
	}
	staging.Unmap()

	return out, nil
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder != nil {
		b.frameEncoder.Release()
		b.frameEncoder = nil
	}
	for label, sm := range b.shaderModules {
		sm.Release()
		delete(b.shaderModules, label)
	}
	for _, pl := range b.pipelineLayouts {
		pl.Release()
	}
	b.pipelineLayouts = nil
	for _, l := range b.bindGroupLayouts {
		l.Release()
	}
	b.bindGroupLayouts = nil
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}
