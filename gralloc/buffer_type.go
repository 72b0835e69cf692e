package gralloc

import "fmt"

// PoolID identifies one of the pinned physical memory pools
type PoolID int32

const (
	// PoolMain is the general purpose pool used for textures
	PoolMain PoolID = iota
	// PoolGPU0 is the pool owned by the first GPU device
	PoolGPU0
	// PoolGPU1 is the pool owned by the second GPU device
	PoolGPU1

	poolCount
)

var poolIDNames = map[PoolID]string{
	PoolMain: "PoolMain",
	PoolGPU0: "PoolGPU0",
	PoolGPU1: "PoolGPU1",
}

func (p PoolID) String() string {
	name, ok := poolIDNames[p]
	if !ok {
		return fmt.Sprintf("PoolID(%d)", int32(p))
	}
	return name
}

// BufferType is the type tag carried by every Handle. It names the memory the buffer was
// carved from.
type BufferType int32

const (
	BufferTypeInvalid BufferType = iota
	// BufferTypePmem is a buffer in PoolMain
	BufferTypePmem
	// BufferTypeGPU0 is a buffer in PoolGPU0
	BufferTypeGPU0
	// BufferTypeGPU1 is a buffer in PoolGPU1
	BufferTypeGPU1
	// BufferTypeFramebuffer is a slot of the display surface
	BufferTypeFramebuffer
	// BufferTypeAshmem is an anonymous shared memory region outside of any pool
	BufferTypeAshmem
)

var bufferTypeNames = map[BufferType]string{
	BufferTypeInvalid:     "Invalid",
	BufferTypePmem:        "Pmem",
	BufferTypeGPU0:        "GPU0",
	BufferTypeGPU1:        "GPU1",
	BufferTypeFramebuffer: "Framebuffer",
	BufferTypeAshmem:      "Ashmem",
}

func (t BufferType) String() string {
	name, ok := bufferTypeNames[t]
	if !ok {
		return fmt.Sprintf("BufferType(%d)", int32(t))
	}
	return name
}

// Pool returns the pool a buffer of this type lives in. The second return value is false
// for types that do not belong to a pool.
func (t BufferType) Pool() (PoolID, bool) {
	switch t {
	case BufferTypePmem:
		return PoolMain, true
	case BufferTypeGPU0:
		return PoolGPU0, true
	case BufferTypeGPU1:
		return PoolGPU1, true
	}

	return 0, false
}

// BufferType returns the type tag carried by handles allocated from this pool
func (p PoolID) BufferType() BufferType {
	switch p {
	case PoolMain:
		return BufferTypePmem
	case PoolGPU0:
		return BufferTypeGPU0
	case PoolGPU1:
		return BufferTypeGPU1
	}

	return BufferTypeInvalid
}
