package gralloc

import (
	"sync/atomic"
	"unsafe"
)

// Region is a device range mapped into this process. It is owned by the Pool or framebuffer
// ring that mapped it and becomes invalid once unmapped.
type Region struct {
	data  []byte
	valid atomic.Bool
}

// NewRegion wraps bytes returned by a successful mapping
func NewRegion(data []byte) *Region {
	r := &Region{data: data}
	r.valid.Store(true)
	return r
}

// Bytes returns the mapped bytes, or nil once the region has been invalidated
func (r *Region) Bytes() []byte {
	if r == nil || !r.valid.Load() {
		return nil
	}
	return r.data
}

// Size is the length of the mapped range in bytes
func (r *Region) Size() int {
	if r == nil {
		return 0
	}
	return len(r.data)
}

// Valid reports whether the region is still mapped
func (r *Region) Valid() bool {
	return r != nil && r.valid.Load()
}

// Invalidate marks the region unmapped and returns the bytes the caller should release. Every
// Mapping into the region becomes invalid. Calling Invalidate again returns nil.
func (r *Region) Invalidate() []byte {
	if r == nil || !r.valid.CompareAndSwap(true, false) {
		return nil
	}
	return r.data
}

// Mapping is a process-local view of a handle's bytes inside a Region. It does not keep the
// region mapped; it is invalid when the region is gone, and it is never carried across
// process boundaries.
type Mapping struct {
	region *Region
	offset int
	size   int
}

func newMapping(region *Region, offset, size int) Mapping {
	if region == nil || offset < 0 || size < 0 || offset+size > region.Size() {
		return Mapping{}
	}
	return Mapping{region: region, offset: offset, size: size}
}

// Valid reports whether the mapping still refers to mapped memory
func (m Mapping) Valid() bool {
	return m.region.Valid()
}

// Bytes returns the handle's bytes, or nil when the mapping is invalid
func (m Mapping) Bytes() []byte {
	data := m.region.Bytes()
	if data == nil {
		return nil
	}
	return data[m.offset : m.offset+m.size : m.offset+m.size]
}

// Address returns the process-local virtual address of the mapping, or 0 when it is invalid
func (m Mapping) Address() uintptr {
	data := m.region.Bytes()
	if len(data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&data[0])) + uintptr(m.offset)
}
