package gralloc

// PoolCreateInfo describes one pinned physical memory pool
type PoolCreateInfo struct {
	ID PoolID
	// Name appears in logs and statistics
	Name string
	// Path is passed to the Device when opening the pool
	Path string
	// Size is the capacity of the pool in bytes. It is rounded up to the page size.
	Size int
	// HardwareVisible pools resolve the physical address of their buffers
	HardwareVisible bool
}

const (
	defaultMainPoolSize int = 10 * 1024 * 1024
	defaultGPUPoolSize  int = 3 * 1024 * 1024
)

// DefaultPools is the pool layout used when CreateOptions.Pools is empty
var DefaultPools = []PoolCreateInfo{
	{
		ID:   PoolMain,
		Name: "pmem",
		Path: "/dev/pmem",
		Size: defaultMainPoolSize,
	},
	{
		ID:              PoolGPU0,
		Name:            "gpu0",
		Path:            "/dev/pmem_gpu0",
		Size:            defaultGPUPoolSize,
		HardwareVisible: true,
	},
	{
		ID:              PoolGPU1,
		Name:            "gpu1",
		Path:            "/dev/pmem_gpu1",
		Size:            defaultGPUPoolSize,
		HardwareVisible: true,
	},
}
