package gralloc

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/gralloc/gralloc/internal/utils"
	"github.com/vkngwrapper/gralloc/memutils"
	"github.com/vkngwrapper/gralloc/memutils/metadata"
)

// Pool is one pinned physical memory pool. Its device is opened and mapped the first time a
// buffer is requested from it.
type Pool struct {
	logger *slog.Logger
	mutex  utils.OptionalMutex
	device Device

	id              PoolID
	name            string
	path            string
	hardwareVisible bool
	pid             int

	metadata    metadata.BlockMetadata
	initialized bool
	master      *Master
	phys        uint64
	physValid   bool
}

func (p *Pool) init(
	logger *slog.Logger,
	useMutex bool,
	device Device,
	pageSize int,
	pid int,
	createInfo PoolCreateInfo,
) {
	if p.metadata != nil {
		panic("attempting to initialize a pool that is already in use")
	}
	memutils.DebugCheckPow2(pageSize, "pageSize")

	p.logger = logger
	p.mutex.UseMutex = useMutex
	p.device = device
	p.id = createInfo.ID
	p.name = createInfo.Name
	p.path = createInfo.Path
	p.hardwareVisible = createInfo.HardwareVisible
	p.pid = pid

	p.metadata = metadata.NewBestFitBlockMetadata(pageSize)
	p.metadata.Init(memutils.RoundUpToPageSize(createInfo.Size, pageSize))
}

func (p *Pool) ID() PoolID {
	return p.id
}

func (p *Pool) Name() string {
	return p.name
}

// Capacity is the number of bytes the pool can hand out
func (p *Pool) Capacity() int {
	return p.metadata.Size()
}

// Initialized reports whether the pool's device has been opened and mapped
func (p *Pool) Initialized() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.initialized
}

// PhysicalBase returns the physical address of the pool. The second return value is false
// when the pool is not hardware visible or the address could not be resolved.
func (p *Pool) PhysicalBase() (uint64, bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.phys, p.physValid
}

// ensureInitializedLocked opens and maps the pool device. The pool mutex must be held. A
// failed attempt leaves the pool uninitialized so the next request retries.
func (p *Pool) ensureInitializedLocked() error {
	if p.initialized {
		return nil
	}

	master, err := p.device.OpenMaster(p.id, p.path, p.metadata.Size())
	if err != nil {
		return errors.Mark(errors.Mark(
			errors.Wrapf(err, "could not open the backing device of pool %s", p.name),
			errBackingUnavailable), ErrResourceUnavailable)
	}
	if master == nil || master.Region.Size() < p.metadata.Size() {
		if master != nil {
			p.releaseMaster(master)
		}
		return errors.Mark(errors.Mark(
			errors.Newf("the backing device of pool %s mapped fewer than %d bytes", p.name, p.metadata.Size()),
			errBackingUnavailable), ErrResourceUnavailable)
	}

	p.master = master
	p.initialized = true

	if p.hardwareVisible {
		phys, err := p.device.PhysicalBase(master)
		if err != nil {
			p.logger.LogAttrs(context.Background(), slog.LevelWarn, "could not resolve the physical address of a pool",
				slog.String("pool", p.name),
				slog.Any("error", err),
			)
		} else {
			p.phys = phys
			p.physValid = true
		}
	}

	return nil
}

func (p *Pool) releaseMaster(master *Master) {
	err := p.device.Unmap(master.Region)
	if err != nil {
		p.logger.LogAttrs(context.Background(), slog.LevelWarn, "could not unmap a pool master",
			slog.String("pool", p.name),
			slog.Any("error", err),
		)
	}

	err = p.device.Close(master.FD)
	if err != nil {
		p.logger.LogAttrs(context.Background(), slog.LevelWarn, "could not close a pool master",
			slog.String("pool", p.name),
			slog.Any("error", err),
		)
	}
}

// allocate carves size bytes out of the pool and connects a fresh descriptor to them. size
// must already be rounded to the page size.
func (p *Pool) allocate(size int) (*Handle, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	err := p.ensureInitializedLocked()
	if err != nil {
		return nil, err
	}

	offset, err := p.metadata.Allocate(size, nil)
	if errors.Is(err, memutils.ErrOutOfMemory) {
		return nil, errors.Mark(errors.Wrapf(err, "pool %s", p.name), ErrOutOfMemory)
	} else if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "pool %s", p.name), ErrInvalidArgument)
	}

	fd, err := p.device.Open(p.id, p.path)
	if err != nil {
		p.rollbackLocked(offset, -1)
		return nil, errors.Mark(errors.Wrapf(err, "could not open a buffer descriptor in pool %s", p.name), ErrResourceUnavailable)
	}

	err = p.device.Connect(fd, p.master)
	if err == nil {
		err = p.device.MapRegion(fd, offset, size)
	}
	if err != nil {
		p.rollbackLocked(offset, fd)
		return nil, errors.Mark(errors.Mark(
			errors.Wrapf(err, "could not map %d bytes at offset %d of pool %s", size, offset, p.name),
			ErrDeviceIO), ErrResourceUnavailable)
	}

	handle := newHandle(fd, size, HandleFlagUsesPmem, p.id.BufferType(), p.pid)
	handle.Offset = offset
	handle.Base = newMapping(p.master.Region, offset, size)
	handle.LockState = LockStateMapped
	if p.physValid {
		handle.Phys = p.phys + uint64(offset)
	}

	err = p.metadata.SetAllocationUserData(offset, handle)
	if err != nil {
		panic(errors.Wrap(err, "a fresh pool reservation could not be found"))
	}

	return handle, nil
}

func (p *Pool) rollbackLocked(offset int, fd int) {
	err := p.metadata.Free(offset)
	if err != nil {
		panic(errors.Wrap(err, "a fresh pool reservation could not be rolled back"))
	}

	if fd < 0 {
		return
	}

	err = p.device.Close(fd)
	if err != nil {
		p.logger.LogAttrs(context.Background(), slog.LevelWarn, "could not close a buffer descriptor during rollback",
			slog.String("pool", p.name),
			slog.Int("fd", fd),
			slog.Any("error", err),
		)
	}
}

// free returns a handle's range to the pool and zeroes its contents. The handle may be a
// copy decoded from another process, so it is matched by offset and size.
func (p *Pool) free(handle *Handle) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.initialized {
		return errors.Mark(errors.Newf("pool %s has never handed out a buffer", p.name), ErrInvalidHandle)
	}

	size, err := p.metadata.AllocationSize(handle.Offset)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "pool %s", p.name), ErrInvalidHandle)
	}
	if size != handle.Size {
		return errors.Mark(errors.Newf("buffer at offset %d of pool %s is %d bytes, but the handle claims %d",
			handle.Offset, p.name, size, handle.Size), ErrInvalidHandle)
	}

	err = p.metadata.Free(handle.Offset)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "pool %s", p.name), ErrInvalidHandle)
	}

	data := p.master.Region.Bytes()
	if data != nil {
		clear(data[handle.Offset : handle.Offset+size])
	}

	return nil
}

// destroy unmaps the pool. It fails, without unmapping, if buffers remain.
func (p *Pool) destroy() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.metadata.IsEmpty() {
		err := p.metadata.VisitAllRegions(func(offset int, size int, userData any, free bool) error {
			if free {
				return nil
			}

			p.logUnreleasedMemory(offset, size, userData)
			return nil
		})
		if err != nil {
			p.logger.LogAttrs(context.Background(),
				slog.LevelError,
				"[UNRELEASED MEMORY] error while iterating unreleased memory",
				slog.Any("error", err))
		}

		return errors.Newf("pool %s still has %d buffers that were not freed", p.name, p.metadata.AllocationCount())
	}

	if p.initialized {
		p.releaseMaster(p.master)
		p.master = nil
		p.initialized = false
		p.phys = 0
		p.physValid = false
	}

	return nil
}

func (p *Pool) logUnreleasedMemory(offset, size int, userData any) {
	attrs := []slog.Attr{
		slog.String("pool", p.name),
		slog.Int("offset", offset),
		slog.Int("size", size),
	}

	handle, ok := userData.(*Handle)
	if ok && handle != nil {
		attrs = append(attrs,
			slog.String("type", handle.Type.String()),
			slog.Int("pid", int(handle.PID)),
		)
	}

	p.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed buffer", attrs...)
}

func (p *Pool) validate() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.initialized && (p.master == nil || p.master.Region.Size() < p.metadata.Size()) {
		return errors.Newf("pool %s is initialized without a master mapping", p.name)
	}

	err := p.metadata.VisitAllRegions(func(offset, size int, userData any, free bool) error {
		handle, isHandle := userData.(*Handle)
		if free && isHandle {
			return errors.Newf("a region at offset %d of pool %s is marked as free but contains a handle", offset, p.name)
		} else if !free && (!isHandle || handle == nil) {
			return errors.Newf("a region at offset %d of pool %s is marked as allocated but has no handle", offset, p.name)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return p.metadata.Validate()
}

func (p *Pool) addDetailedStatistics(stats *memutils.DetailedStatistics) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.metadata.AddDetailedStatistics(stats)
}

func (p *Pool) printDetailedMap(json *jwriter.ObjectState) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	json.Name("Name").String(p.name)
	json.Name("Initialized").Bool(p.initialized)
	json.Name("HardwareVisible").Bool(p.hardwareVisible)
	p.metadata.BlockJsonData(json)

	buffers := json.Name("Buffers").Array()
	defer buffers.End()

	_ = p.metadata.VisitAllRegions(func(offset, size int, userData any, free bool) error {
		handle, ok := userData.(*Handle)
		if free || !ok {
			return nil
		}

		obj := buffers.Object()
		handle.printParameters(&obj)
		obj.End()
		return nil
	})
}
