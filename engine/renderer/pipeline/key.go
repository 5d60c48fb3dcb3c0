package pipeline

import (
	"fmt"
	"math/bits"

	"github.com/cogentcore/webgpu/wgpu"
)

// MeshPipelineKey is the specialization key of mesh pipelines: a bit set of the
// view-dependent state that changes pipeline shape. Equal keys always specialize to
// equal descriptors for the same vertex layout.
//
// Layout:
//   - bit 0: HDR target
//   - bits 1-3: primitive topology
//   - bits 26-31: log2 of the MSAA sample count
type MeshPipelineKey uint32

const (
	// MeshPipelineKeyHDR selects the HDR color target format.
	MeshPipelineKeyHDR MeshPipelineKey = 1 << 0

	topologyShift = 1
	topologyMask  = 0b111
	msaaShift     = 26
	msaaMask      = 0b111111
)

// NewMeshPipelineKey builds a key from an MSAA sample count and a primitive topology.
// Panics if samples is not a power of two.
//
// Parameters:
//   - samples: the MSAA sample count of the view (1 disables MSAA)
//   - topology: the primitive topology of the mesh
//
// Returns:
//   - MeshPipelineKey: the key
func NewMeshPipelineKey(samples uint32, topology wgpu.PrimitiveTopology) MeshPipelineKey {
	if samples == 0 || samples&(samples-1) != 0 {
		panic(fmt.Sprintf("pipeline: MSAA sample count %d is not a power of two", samples))
	}
	log2 := uint32(bits.TrailingZeros32(samples))
	return MeshPipelineKey((log2&msaaMask)<<msaaShift | (uint32(topology)&topologyMask)<<topologyShift)
}

// MSAASamples returns the MSAA sample count encoded in the key.
func (k MeshPipelineKey) MSAASamples() uint32 {
	return 1 << ((uint32(k) >> msaaShift) & msaaMask)
}

// PrimitiveTopology returns the primitive topology encoded in the key.
func (k MeshPipelineKey) PrimitiveTopology() wgpu.PrimitiveTopology {
	return wgpu.PrimitiveTopology((uint32(k) >> topologyShift) & topologyMask)
}

// HDR reports whether the key selects the HDR color target.
func (k MeshPipelineKey) HDR() bool {
	return k&MeshPipelineKeyHDR != 0
}

// With returns the key with the given flags set.
func (k MeshPipelineKey) With(flags MeshPipelineKey) MeshPipelineKey {
	return k | flags
}

func (k MeshPipelineKey) String() string {
	return fmt.Sprintf("MeshPipelineKey{msaa: %d, topology: %d, hdr: %t}", k.MSAASamples(), k.PrimitiveTopology(), k.HDR())
}
