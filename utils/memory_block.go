package utils

import (
	"fmt"
	"unsafe"

	"github.com/notargets/gocca"
)

// MemorySpace selects where a MemoryBlock's storage lives. Host blocks are
// backed by a Go slice, Device blocks by gocca device memory (OpenMP, CUDA
// or Serial backends).
type MemorySpace uint8

const (
	Host MemorySpace = iota
	Device
)

func (ms MemorySpace) String() string {
	switch ms {
	case Host:
		return "Host"
	case Device:
		return "Device"
	}
	return fmt.Sprintf("MemorySpace(%d)", uint8(ms))
}

// MemoryBlock is a dense N-dimensional float64 array addressed by composite
// indices with row-major stride arithmetic. The same block type backs both
// memory spaces so that table data loaded on the host can be pushed to the
// accelerator once and indexed identically on either side.
type MemoryBlock struct {
	space   MemorySpace
	extents []int
	strides []int
	size    int
	data    []float64 // Host space backing store
	mem     *gocca.OCCAMemory
	device  *gocca.OCCADevice
}

// NewMemoryBlock allocates a zeroed host block with the given extents.
func NewMemoryBlock(extents ...int) (mb *MemoryBlock) {
	mb = &MemoryBlock{space: Host}
	mb.Reinit(extents...)
	return
}

// NewMemoryBlockFromSlice wraps an existing host slice without copying; the
// extents must multiply out to the slice length. Useful for pushing gathered
// host data to a device block with DeepCopy.
func NewMemoryBlockFromSlice(data []float64, extents ...int) (mb *MemoryBlock) {
	mb = NewMemoryBlock(extents...)
	if mb.size != len(data) {
		panic(fmt.Sprintf("slice length %d does not match extents (size %d)",
			len(data), mb.size))
	}
	mb.data = data
	return
}

// NewDeviceMemoryBlock allocates a device block with the given extents. The
// contents are undefined until SetZero or a DeepCopy from a host block.
func NewDeviceMemoryBlock(device *gocca.OCCADevice, extents ...int) (mb *MemoryBlock) {
	if device == nil {
		panic("NewDeviceMemoryBlock requires a non-nil device")
	}
	mb = &MemoryBlock{space: Device, device: device}
	mb.Reinit(extents...)
	return
}

// Reinit resizes the block, discarding previous contents.
func (mb *MemoryBlock) Reinit(extents ...int) {
	if len(extents) == 0 {
		panic("MemoryBlock requires at least one extent")
	}
	size := 1
	for _, e := range extents {
		if e <= 0 {
			panic(fmt.Sprintf("invalid MemoryBlock extent %d", e))
		}
		size *= e
	}
	strides := make([]int, len(extents))
	strides[len(extents)-1] = 1
	for d := len(extents) - 2; d >= 0; d-- {
		strides[d] = strides[d+1] * extents[d+1]
	}
	mb.extents = extents
	mb.strides = strides
	mb.size = size
	switch mb.space {
	case Host:
		mb.data = make([]float64, size)
	case Device:
		if mb.mem != nil {
			mb.mem.Free()
		}
		mb.mem = mb.device.Malloc(int64(size*8), nil, nil)
	}
}

// SetZero overwrites every entry with zero. For device blocks this stages a
// zero buffer through the host.
func (mb *MemoryBlock) SetZero() {
	switch mb.space {
	case Host:
		for i := range mb.data {
			mb.data[i] = 0
		}
	case Device:
		zeros := make([]float64, mb.size)
		mb.mem.CopyFrom(unsafe.Pointer(&zeros[0]), int64(mb.size*8))
	}
}

func (mb *MemoryBlock) Space() MemorySpace { return mb.space }

func (mb *MemoryBlock) Size() int { return mb.size }

func (mb *MemoryBlock) Rank() int { return len(mb.extents) }

// Extent returns the length of dimension d.
func (mb *MemoryBlock) Extent(d int) int {
	if d < 0 || d >= len(mb.extents) {
		panic(fmt.Sprintf("extent dimension %d out of range for rank %d block",
			d, len(mb.extents)))
	}
	return mb.extents[d]
}

// Data exposes the host backing slice. Device blocks have no host slice;
// callers must DeepCopy to a host block first.
func (mb *MemoryBlock) Data() []float64 {
	if mb.space != Host {
		panic("Data() called on a Device block - DeepCopy to a Host block first")
	}
	return mb.data
}

// DeviceMemory exposes the gocca memory handle for kernel arguments.
func (mb *MemoryBlock) DeviceMemory() *gocca.OCCAMemory {
	if mb.space != Device {
		panic("DeviceMemory() called on a Host block")
	}
	return mb.mem
}

// Free releases device storage. Host blocks are garbage collected.
func (mb *MemoryBlock) Free() {
	if mb.space == Device && mb.mem != nil {
		mb.mem.Free()
		mb.mem = nil
	}
}

// DeepCopy copies src into dst, which must have equal sizes. Copies that
// cross memory spaces are synchronous: the transfer is complete on return.
func DeepCopy(dst, src *MemoryBlock) {
	if dst.size != src.size {
		panic(fmt.Sprintf("DeepCopy size mismatch: dst %d, src %d",
			dst.size, src.size))
	}
	bytes := int64(src.size * 8)
	switch {
	case dst.space == Host && src.space == Host:
		copy(dst.data, src.data)
	case dst.space == Device && src.space == Host:
		dst.mem.CopyFrom(unsafe.Pointer(&src.data[0]), bytes)
	case dst.space == Host && src.space == Device:
		src.mem.CopyTo(unsafe.Pointer(&dst.data[0]), bytes)
	default: // Device to Device, staged through the host
		staging := make([]float64, src.size)
		src.mem.CopyTo(unsafe.Pointer(&staging[0]), bytes)
		dst.mem.CopyFrom(unsafe.Pointer(&staging[0]), bytes)
	}
}

// BlockView provides indexed access to a host block's storage. Views are
// cheap value types meant to be captured by worker goroutines; concurrent
// writers must target disjoint entries.
type BlockView struct {
	data    []float64
	strides []int
}

// View returns an indexed view of a host block. Device blocks are indexed
// inside kernels, not from Go.
func (mb *MemoryBlock) View() BlockView {
	if mb.space != Host {
		panic("View() called on a Device block")
	}
	return BlockView{data: mb.data, strides: mb.strides}
}

func (v BlockView) offset(indices []int) (off int) {
	if len(indices) != len(v.strides) {
		panic(fmt.Sprintf("view indexed with %d indices, rank is %d",
			len(indices), len(v.strides)))
	}
	for d, i := range indices {
		off += i * v.strides[d]
	}
	return
}

func (v BlockView) At(indices ...int) float64 {
	return v.data[v.offset(indices)]
}

func (v BlockView) Set(val float64, indices ...int) {
	v.data[v.offset(indices)] = val
}

func (v BlockView) Add(val float64, indices ...int) {
	v.data[v.offset(indices)] += val
}
