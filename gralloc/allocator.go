package gralloc

import (
	"log/slog"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/gralloc/memutils"
)

const ashmemRegionName = "gralloc-buffer"

// Allocator hands out graphics buffers from pinned physical memory pools, the display surface,
// and anonymous shared memory
type Allocator struct {
	useMutex bool
	logger   *slog.Logger
	pid      int

	createFlags   CreateFlags
	pageSize      int
	deviceContext PoolID

	device       Device
	sharedMemory SharedMemory
	formats      FormatResolver
	callbacks    memoryCallbacks

	pools       [poolCount]*Pool
	framebuffer framebufferRing
}

// Pool returns the pool with the given id, or nil if it is not configured
func (a *Allocator) Pool(id PoolID) *Pool {
	if id < 0 || id >= poolCount {
		return nil
	}
	return a.pools[id]
}

// PageSize is the granularity every pool allocation is rounded up to
func (a *Allocator) PageSize() int {
	return a.pageSize
}

// Allocate creates a buffer of at least size bytes. The memory it is placed in depends on usage:
// framebuffer requests take a display slot, render and 2D buffers go to the device context's
// pool, textures go to the main pool, and everything else is anonymous shared memory.
func (a *Allocator) Allocate(size int, usage Usage) (*Handle, error) {
	a.logger.Debug("Allocator::Allocate",
		slog.Int("Size", size),
		slog.String("Usage", usage.String()),
	)

	if size < 1 {
		return nil, errors.Mark(errors.Newf("requested a buffer of %d bytes", size), ErrInvalidArgument)
	}
	if size > math.MaxInt-a.pageSize+1 {
		return nil, errors.Mark(errors.Newf("requested a buffer of %d bytes", size), ErrOutOfMemory)
	}

	var handle *Handle
	var err error
	if usage&UsageHWFramebuffer != 0 {
		handle, err = a.allocateFramebuffer(size, usage)
	} else {
		handle, err = a.allocateBuffer(size, usage)
	}
	if err != nil {
		a.logger.Debug("  Allocator::Allocate FAILED", slog.Any("error", err))
		return nil, err
	}

	a.callbacks.Allocate(handle)
	return handle, nil
}

// AllocateImage creates a buffer for a width x height image. Rows are padded to four bytes;
// the returned stride is the padded row length in pixels.
func (a *Allocator) AllocateImage(width, height int, format PixelFormat, usage Usage) (*Handle, int, error) {
	a.logger.Debug("Allocator::AllocateImage",
		slog.Int("Width", width),
		slog.Int("Height", height),
		slog.Int("Format", int(format)),
		slog.String("Usage", usage.String()),
	)

	if width < 1 || height < 1 {
		return nil, 0, errors.Mark(errors.Newf("requested a %dx%d image", width, height), ErrInvalidArgument)
	}

	bpp, err := a.formats.BytesPerPixel(format)
	if err != nil {
		return nil, 0, errors.Mark(err, ErrInvalidArgument)
	}
	if bpp < 1 {
		return nil, 0, errors.Mark(errors.Newf("pixel format %d has %d bytes per pixel", format, bpp), ErrInvalidArgument)
	}

	if width > (math.MaxInt-3)/bpp {
		return nil, 0, errors.Mark(errors.Newf("requested a %dx%d image", width, height), ErrOutOfMemory)
	}
	bytesPerRow := memutils.AlignUp(width*bpp, 4)
	if height > math.MaxInt/bytesPerRow {
		return nil, 0, errors.Mark(errors.Newf("requested a %dx%d image", width, height), ErrOutOfMemory)
	}

	handle, err := a.Allocate(bytesPerRow*height, usage)
	if err != nil {
		return nil, 0, err
	}

	return handle, bytesPerRow / bpp, nil
}

func (a *Allocator) selectPool(usage Usage) *Pool {
	if usage&(UsageHW2D|UsageHWRender) != 0 {
		return a.pools[a.deviceContext]
	}
	if usage&UsageHWTexture != 0 {
		return a.pools[PoolMain]
	}

	return nil
}

func (a *Allocator) allocateBuffer(size int, usage Usage) (*Handle, error) {
	size = memutils.RoundUpToPageSize(size, a.pageSize)

	pool := a.selectPool(usage)
	if pool == nil {
		return a.allocateShared(size)
	}

	handle, err := pool.allocate(size)
	if err != nil && errors.Is(err, errBackingUnavailable) && usage&UsageHW2D == 0 {
		a.logger.Debug("  Allocator::allocateBuffer falling back to shared memory",
			slog.String("pool", pool.Name()),
			slog.Any("error", err),
		)
		return a.allocateShared(size)
	}

	return handle, err
}

func (a *Allocator) allocateShared(size int) (*Handle, error) {
	if a.sharedMemory == nil {
		return nil, errors.Mark(errors.New("no shared memory provider was supplied to the allocator"), ErrResourceUnavailable)
	}

	fd, err := a.sharedMemory.CreateRegion(ashmemRegionName, size)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "could not create a %d byte shared memory region", size), ErrOutOfMemory)
	}

	return newHandle(fd, size, 0, BufferTypeAshmem, a.pid), nil
}

// allocateFramebuffer does not round size, since slots are sized by the display geometry
// rather than the page size.
func (a *Allocator) allocateFramebuffer(size int, usage Usage) (*Handle, error) {
	handle, delegate, bufferSize, err := a.framebuffer.acquire(size)
	if err != nil {
		return nil, err
	}
	if delegate {
		return a.allocateBuffer(bufferSize, (usage&^UsageHWFramebuffer)|UsageHW2D)
	}

	return handle, nil
}

// Import reconstructs a handle received from another process. The handle is validated and
// carries no mapping in this process.
func (a *Allocator) Import(b []byte) (*Handle, error) {
	a.logger.Debug("Allocator::Import", slog.Int("Bytes", len(b)))

	handle, err := DecodeHandle(b)
	if err != nil {
		a.logger.Debug("  Allocator::Import FAILED", slog.Any("error", err))
		return nil, err
	}

	return handle, nil
}

// Free releases a buffer. Its memory is returned to where it came from and zeroed, its
// descriptor is closed, and the handle is invalidated.
func (a *Allocator) Free(handle *Handle) error {
	a.logger.Debug("Allocator::Free")

	err := a.free(handle)
	if err != nil {
		a.logger.Debug("  Allocator::Free FAILED", slog.Any("error", err))
	}
	return err
}

func (a *Allocator) free(handle *Handle) error {
	err := handle.Validate()
	if err != nil {
		return err
	}

	poolID, isPoolType := handle.Type.Pool()

	switch {
	case handle.isFramebuffer():
		if handle.Type != BufferTypeFramebuffer || !handle.usesPmem() {
			return errors.Mark(errors.Newf("framebuffer handle has type tag %s and flags %s", handle.Type, handle.Flags), ErrInvalidHandle)
		}
		err = a.framebuffer.release(handle)
	case isPoolType || handle.usesPmem():
		if !isPoolType || !handle.usesPmem() || a.pools[poolID] == nil {
			return errors.Mark(errors.Newf("type tag %s is inconsistent with flags %s", handle.Type, handle.Flags), ErrInvalidHandle)
		}
		err = a.pools[poolID].free(handle)
	case handle.Type != BufferTypeAshmem:
		return errors.Mark(errors.Newf("unknown type tag %s", handle.Type), ErrInvalidHandle)
	case a.sharedMemory == nil:
		return errors.Mark(errors.New("shared memory handle freed by an allocator without a shared memory provider"), ErrInvalidHandle)
	}
	if err != nil {
		return err
	}

	a.callbacks.Free(handle)

	if handle.Type == BufferTypeAshmem {
		err = a.sharedMemory.Close(handle.FD)
	} else {
		err = a.device.Close(handle.FD)
	}
	if err != nil {
		a.logger.Warn("could not close a freed buffer descriptor",
			slog.Int("fd", handle.FD),
			slog.Any("error", err),
		)
	}

	handle.destroy()
	return nil
}

// Statistics summarizes every pool and the framebuffer ring
type Statistics struct {
	Total memutils.DetailedStatistics
	Pools [poolCount]memutils.DetailedStatistics

	FramebufferSlotsInUse int
	FramebufferSlots      int
}

// CalculateStatistics visits every pool region to fill stats
func (a *Allocator) CalculateStatistics(stats *Statistics) {
	a.logger.Debug("Allocator::CalculateStatistics")

	stats.Total.Clear()
	for id := range stats.Pools {
		stats.Pools[id].Clear()

		pool := a.pools[id]
		if pool == nil {
			continue
		}

		pool.addDetailedStatistics(&stats.Pools[id])
		stats.Total.AddDetailedStatistics(&stats.Pools[id])
	}

	stats.FramebufferSlotsInUse, stats.FramebufferSlots = a.framebuffer.slotsInUse()
}

// BuildStatsString returns a json document describing the allocator. When detailedMap is
// true every region of every pool is listed along with its live buffers.
func (a *Allocator) BuildStatsString(detailedMap bool) string {
	a.logger.Debug("Allocator::BuildStatsString")

	var stats Statistics
	a.CalculateStatistics(&stats)

	writer := jwriter.NewWriter()
	objState := writer.Object()

	totalObj := objState.Name("Total").Object()
	stats.Total.WriteJson(&totalObj)
	totalObj.End()

	poolsObj := objState.Name("Pools").Object()
	for id, pool := range a.pools {
		if pool == nil {
			continue
		}

		poolObj := poolsObj.Name(pool.Name()).Object()

		statsObj := poolObj.Name("Stats").Object()
		stats.Pools[id].WriteJson(&statsObj)
		statsObj.End()

		if detailedMap {
			mapObj := poolObj.Name("DetailedMap").Object()
			pool.printDetailedMap(&mapObj)
			mapObj.End()
		}

		poolObj.End()
	}
	poolsObj.End()

	fbObj := objState.Name("Framebuffer").Object()
	a.framebuffer.printDetailedMap(&fbObj)
	fbObj.End()

	objState.End()

	return string(writer.Bytes())
}

// Validate checks the bookkeeping of every pool
func (a *Allocator) Validate() error {
	a.logger.Debug("Allocator::Validate")

	for _, pool := range a.pools {
		if pool == nil {
			continue
		}

		err := pool.validate()
		if err != nil {
			return err
		}
	}

	inUse, total := a.framebuffer.slotsInUse()
	if inUse > total {
		return errors.Newf("%d framebuffer slots are in use, but the ring only has %d", inUse, total)
	}

	return nil
}

// Destroy unmaps every pool and the display surface. It fails if any buffer is still live;
// the unreleased buffers are logged and nothing is unmapped in the affected pool.
func (a *Allocator) Destroy() error {
	a.logger.Debug("Allocator::Destroy")

	var result error
	for _, pool := range a.pools {
		if pool == nil {
			continue
		}

		err := pool.destroy()
		if err != nil {
			result = errors.CombineErrors(result, err)
		}
	}

	err := a.framebuffer.destroy()
	if err != nil {
		result = errors.CombineErrors(result, err)
	}

	return result
}
