package outline

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-outline/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// MaskTextures is the pair of views the mask node renders into: the 4x multisampled
// attachment and the single-sample texture it resolves into.
type MaskTextures struct {
	Multisample *wgpu.TextureView
	Output      *wgpu.TextureView
}

// Textures returns t, so a fixed pair can serve as a TextureSource.
func (t MaskTextures) Textures() MaskTextures {
	return t
}

// valid reports whether both views are set.
func (t MaskTextures) valid() bool {
	return t.Multisample != nil && t.Output != nil
}

// TextureSource provides the mask textures of the current frame.
type TextureSource interface {
	Textures() MaskTextures
}

// MultisampleTextureDescriptor describes the multisampled mask attachment.
//
// Parameters:
//   - width: the texture width in pixels
//   - height: the texture height in pixels
//
// Returns:
//   - *wgpu.TextureDescriptor: the descriptor
func MultisampleTextureDescriptor(width, height uint32) *wgpu.TextureDescriptor {
	return &wgpu.TextureDescriptor{
		Label: "outline_mask_multisample",
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   MaskSampleCount,
		Dimension:     wgpu.TextureDimension2D,
		Format:        MaskFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	}
}

// OutputTextureDescriptor describes the resolved mask texture read by downstream nodes.
//
// Parameters:
//   - width: the texture width in pixels
//   - height: the texture height in pixels
//
// Returns:
//   - *wgpu.TextureDescriptor: the descriptor
func OutputTextureDescriptor(width, height uint32) *wgpu.TextureDescriptor {
	return &wgpu.TextureDescriptor{
		Label: "outline_mask_output",
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        MaskFormat,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc,
	}
}

// Resources owns the mask textures and reallocates them when the target size changes.
type Resources struct {
	mu            sync.RWMutex
	width, height uint32
	multisample   *wgpu.Texture
	output        *wgpu.Texture
	textures      MaskTextures
}

var _ TextureSource = &Resources{}

// NewResources creates an empty resource holder. Call Resize before the first frame.
func NewResources() *Resources {
	return &Resources{}
}

// Resize allocates both mask textures for the given size, releasing the previous ones.
// Resizing to the current size does nothing.
//
// Parameters:
//   - device: the device to allocate on
//   - width: the target width in pixels
//   - height: the target height in pixels
//
// Returns:
//   - error: an error if a texture or view could not be created
func (r *Resources) Resize(device *wgpu.Device, width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("outline: invalid mask size %dx%d", width, height)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.textures.valid() && r.width == width && r.height == height {
		return nil
	}

	multisample, multisampleView, err := createTexture(device, MultisampleTextureDescriptor(width, height))
	if err != nil {
		return err
	}
	output, outputView, err := createTexture(device, OutputTextureDescriptor(width, height))
	if err != nil {
		multisampleView.Release()
		multisample.Release()
		return err
	}

	r.releaseLocked()
	r.width, r.height = width, height
	r.multisample, r.output = multisample, output
	r.textures = MaskTextures{Multisample: multisampleView, Output: outputView}
	common.Logger().Info("outline mask textures resized", "width", width, "height", height)
	return nil
}

func createTexture(device *wgpu.Device, desc *wgpu.TextureDescriptor) (*wgpu.Texture, *wgpu.TextureView, error) {
	tex, err := device.CreateTexture(desc)
	if err != nil {
		return nil, nil, fmt.Errorf("outline: create %s: %w", desc.Label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, nil, fmt.Errorf("outline: create %s view: %w", desc.Label, err)
	}
	return tex, view, nil
}

// Textures returns the current mask texture views.
func (r *Resources) Textures() MaskTextures {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textures
}

// OutputTexture returns the resolved mask texture, used for copies and readback.
func (r *Resources) OutputTexture() *wgpu.Texture {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.output
}

// Size returns the current mask size.
func (r *Resources) Size() (width, height uint32) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.width, r.height
}

// Release frees both textures.
func (r *Resources) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseLocked()
}

func (r *Resources) releaseLocked() {
	if r.textures.Multisample != nil {
		r.textures.Multisample.Release()
	}
	if r.textures.Output != nil {
		r.textures.Output.Release()
	}
	if r.multisample != nil {
		r.multisample.Release()
	}
	if r.output != nil {
		r.output.Release()
	}
	r.textures = MaskTextures{}
	r.multisample, r.output = nil, nil
	r.width, r.height = 0, 0
}
