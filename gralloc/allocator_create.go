package gralloc

import (
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/gralloc/gralloc/internal/utils"
	"github.com/vkngwrapper/gralloc/memutils"
)

// CreateFlags indicate specific allocator behaviors to activate or deactivate
type CreateFlags int32

var allocatorCreateFlagsMapping = utils.NewFlagStringMapping[CreateFlags]()

func (f CreateFlags) Register(str string) {
	allocatorCreateFlagsMapping.Register(f, str)
}
func (f CreateFlags) String() string {
	return allocatorCreateFlagsMapping.FlagsToString(f)
}

const (
	// AllocatorCreateExternallySynchronized ensures that this allocator and all objects created from it
	// will not be synchronized internally. The consumer must guarantee they are used from only one
	// thread at a time or are synchronized by some other mechanism, but performance may improve because
	// internal mutexes are not used.
	AllocatorCreateExternallySynchronized CreateFlags = 1 << iota
)

func init() {
	AllocatorCreateExternallySynchronized.Register("AllocatorCreateExternallySynchronized")
}

// CreateOptions contains the collaborators and settings used to create an allocator
type CreateOptions struct {
	// Flags indicates specific allocator behaviors to activate or deactivate
	Flags CreateFlags
	// PageSize is the granularity of every pool allocation. It must be a power of two and defaults
	// to the host page size.
	PageSize int

	// Pools describes the pinned memory pools. DefaultPools is used when it is empty.
	Pools []PoolCreateInfo
	// DeviceContext is the pool that receives render and 2D buffers. It defaults to PoolGPU1.
	DeviceContext *PoolID

	// Device opens and maps pool memory. It is required whenever pools or a display are used.
	Device Device
	// SharedMemory backs buffers that do not belong in a pool. Such requests fail with
	// ErrResourceUnavailable when it is nil.
	SharedMemory SharedMemory
	// Display provides the framebuffer surface. Framebuffer requests fail with
	// ErrResourceUnavailable when it is nil.
	Display Display
	// Formats resolves pixel formats for AllocateImage. It defaults to DefaultFormats.
	Formats FormatResolver

	// MemoryCallbackOptions is an optional set of callbacks that will be executed when buffers are
	// created and destroyed by this allocator
	MemoryCallbackOptions *MemoryCallbackOptions
}

// New creates a new Allocator. No device is opened until the first buffer is requested.
//
// logger - The logger that will receive allocator diagnostics
//
// options - The collaborators and settings of the allocator
func New(logger *slog.Logger, options CreateOptions) (*Allocator, error) {
	useMutex := options.Flags&AllocatorCreateExternallySynchronized == 0

	allocator := &Allocator{
		useMutex:     useMutex,
		logger:       logger,
		createFlags:  options.Flags,
		device:       options.Device,
		sharedMemory: options.SharedMemory,
		formats:      options.Formats,
		pid:          os.Getpid(),
	}
	allocator.callbacks = memoryCallbacks{
		Callbacks: options.MemoryCallbackOptions,
		Allocator: allocator,
	}

	allocator.pageSize = options.PageSize
	if allocator.pageSize == 0 {
		allocator.pageSize = memutils.PageSize()
	}
	err := memutils.CheckPow2(allocator.pageSize, "CreateOptions.PageSize")
	if err != nil {
		return nil, errors.Mark(err, ErrInvalidArgument)
	}

	if allocator.formats == nil {
		allocator.formats = DefaultFormats
	}

	allocator.deviceContext = PoolGPU1
	if options.DeviceContext != nil {
		allocator.deviceContext = *options.DeviceContext
	}

	pools := options.Pools
	if len(pools) == 0 {
		pools = DefaultPools
	}

	for _, createInfo := range pools {
		if createInfo.ID < 0 || createInfo.ID >= poolCount {
			return nil, errors.Mark(errors.Newf("unknown pool id %s", createInfo.ID), ErrInvalidArgument)
		}
		if allocator.pools[createInfo.ID] != nil {
			return nil, errors.Mark(errors.Newf("pool %s was described more than once", createInfo.ID), ErrInvalidArgument)
		}
		if createInfo.Size < 1 {
			return nil, errors.Mark(errors.Newf("pool %s has a size of %d", createInfo.ID, createInfo.Size), ErrInvalidArgument)
		}
		if options.Device == nil {
			return nil, errors.Mark(errors.New("pools were described but no Device was provided"), ErrInvalidArgument)
		}

		pool := &Pool{}
		pool.init(logger, useMutex, options.Device, allocator.pageSize, allocator.pid, createInfo)
		allocator.pools[createInfo.ID] = pool
	}

	if allocator.deviceContext < 0 || allocator.deviceContext >= poolCount || allocator.pools[allocator.deviceContext] == nil {
		return nil, errors.Mark(errors.Newf("device context %s does not name a configured pool", allocator.deviceContext), ErrInvalidArgument)
	}

	if options.Display != nil && options.Device == nil {
		return nil, errors.Mark(errors.New("a Display was provided but no Device was provided"), ErrInvalidArgument)
	}
	allocator.framebuffer.init(logger, useMutex, options.Display, options.Device, allocator.pid)

	return allocator, nil
}
