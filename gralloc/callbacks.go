package gralloc

// AllocateBufferCallback is called after a buffer has been fully allocated and before its
// handle is returned
type AllocateBufferCallback func(
	allocator *Allocator,
	handle *Handle,
	userData interface{},
)

// FreeBufferCallback is called after a buffer's memory has been reclaimed and before its
// descriptor is closed
type FreeBufferCallback func(
	allocator *Allocator,
	handle *Handle,
	userData interface{},
)

// MemoryCallbackOptions lets a consumer register and unregister buffers with another
// subsystem as they are created and destroyed
type MemoryCallbackOptions struct {
	Allocate AllocateBufferCallback
	Free     FreeBufferCallback
	UserData interface{}
}

type memoryCallbacks struct {
	Callbacks *MemoryCallbackOptions
	Allocator *Allocator
}

func (c *memoryCallbacks) Allocate(handle *Handle) {
	if c.Callbacks != nil && c.Callbacks.Allocate != nil {
		c.Callbacks.Allocate(c.Allocator, handle, c.Callbacks.UserData)
	}
}

func (c *memoryCallbacks) Free(handle *Handle) {
	if c.Callbacks != nil && c.Callbacks.Free != nil {
		c.Callbacks.Free(c.Allocator, handle, c.Callbacks.UserData)
	}
}
