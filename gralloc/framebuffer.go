package gralloc

import (
	"context"
	"log/slog"
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/gralloc/gralloc/internal/utils"
)

const maxFramebufferSlots = 32

// framebufferRing hands out display-sized slots of the display surface. Bit i of bufferMask
// is set while slot i is held by a handle.
type framebufferRing struct {
	logger  *slog.Logger
	mutex   utils.OptionalMutex
	display Display
	device  Device
	pid     int

	surface    *Surface
	bufferSize int
	numBuffers int
	bufferMask uint32
}

func (r *framebufferRing) init(logger *slog.Logger, useMutex bool, display Display, device Device, pid int) {
	r.logger = logger
	r.mutex.UseMutex = useMutex
	r.display = display
	r.device = device
	r.pid = pid
}

func slotOffset(slot int, bufferSize int) int {
	return slot * bufferSize
}

// ensureMappedLocked maps the display surface the first time a slot is requested. The ring
// mutex must be held.
func (r *framebufferRing) ensureMappedLocked() error {
	if r.surface != nil {
		return nil
	}

	if r.display == nil {
		return errors.Mark(errors.New("no display was provided to the allocator"), ErrResourceUnavailable)
	}

	surface, err := r.display.MapSurface()
	if err != nil {
		return errors.Mark(errors.Wrap(err, "could not map the display surface"), ErrResourceUnavailable)
	}

	bufferSize := surface.LineLength * surface.YRes
	if surface.NumBuffers < 1 || surface.NumBuffers > maxFramebufferSlots || bufferSize < 1 ||
		surface.Region.Size() < bufferSize*surface.NumBuffers {
		r.releaseSurface(surface)
		return errors.Mark(errors.Newf("display surface of %d bytes cannot hold %d buffers of %dx%d bytes",
			surface.Region.Size(), surface.NumBuffers, surface.LineLength, surface.YRes), ErrResourceUnavailable)
	}

	r.surface = surface
	r.bufferSize = bufferSize
	r.numBuffers = surface.NumBuffers
	r.bufferMask = 0

	return nil
}

func (r *framebufferRing) releaseSurface(surface *Surface) {
	err := r.device.Unmap(surface.Region)
	if err != nil {
		r.logger.LogAttrs(context.Background(), slog.LevelWarn, "could not unmap the display surface",
			slog.Any("error", err),
		)
	}

	err = r.device.Close(surface.FD)
	if err != nil {
		r.logger.LogAttrs(context.Background(), slog.LevelWarn, "could not close the display surface",
			slog.Any("error", err),
		)
	}
}

// acquire claims the lowest free slot for a buffer of size bytes. When the display has a
// single buffer there is nothing to flip between; delegate is true and bufferSize is the size
// the caller should allocate from a pool instead.
func (r *framebufferRing) acquire(size int) (handle *Handle, delegate bool, bufferSize int, err error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	err = r.ensureMappedLocked()
	if err != nil {
		return nil, false, 0, err
	}

	if r.numBuffers == 1 {
		return nil, true, r.bufferSize, nil
	}

	if size > r.bufferSize {
		return nil, false, 0, errors.Mark(errors.Newf("requested %d bytes from a framebuffer with %d byte slots", size, r.bufferSize), ErrInvalidArgument)
	}

	if bits.OnesCount32(r.bufferMask) >= r.numBuffers {
		return nil, false, 0, errors.Mark(errors.Newf("all %d framebuffer slots are in use", r.numBuffers), ErrOutOfMemory)
	}

	slot := bits.TrailingZeros32(^r.bufferMask)
	offset := slotOffset(slot, r.bufferSize)

	fd, err := r.device.Dup(r.surface.FD)
	if err != nil {
		return nil, false, 0, errors.Mark(errors.Wrap(err, "could not duplicate the display surface descriptor"), ErrResourceUnavailable)
	}

	r.bufferMask |= 1 << slot

	handle = newHandle(fd, r.bufferSize, HandleFlagUsesPmem|HandleFlagFramebuffer, BufferTypeFramebuffer, r.pid)
	handle.Offset = offset
	handle.Base = newMapping(r.surface.Region, offset, r.bufferSize)
	if r.surface.Phys != 0 {
		handle.Phys = r.surface.Phys + uint64(offset)
	}

	return handle, false, r.bufferSize, nil
}

// release returns a handle's slot to the ring
func (r *framebufferRing) release(handle *Handle) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.surface == nil || r.numBuffers < 2 {
		return errors.Mark(errors.New("the framebuffer ring has no slots to release"), ErrInvalidHandle)
	}

	if handle.Offset < 0 || handle.Offset%r.bufferSize != 0 {
		return errors.Mark(errors.Newf("offset %d is not the start of a framebuffer slot", handle.Offset), ErrInvalidHandle)
	}

	slot := handle.Offset / r.bufferSize
	if slot >= r.numBuffers || r.bufferMask&(1<<slot) == 0 {
		return errors.Mark(errors.Newf("framebuffer slot %d is not in use", slot), ErrInvalidHandle)
	}

	r.bufferMask &^= 1 << slot
	return nil
}

// slotsInUse returns the number of occupied slots and the size of the ring
func (r *framebufferRing) slotsInUse() (inUse int, total int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return bits.OnesCount32(r.bufferMask), r.numBuffers
}

func (r *framebufferRing) destroy() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.surface == nil {
		return nil
	}

	if r.bufferMask != 0 {
		for slot := 0; slot < r.numBuffers; slot++ {
			if r.bufferMask&(1<<slot) == 0 {
				continue
			}
			r.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed framebuffer slot",
				slog.Int("offset", slotOffset(slot, r.bufferSize)),
				slog.Int("size", r.bufferSize),
				slog.String("type", BufferTypeFramebuffer.String()),
			)
		}
		return errors.Newf("%d framebuffer slots were not freed", bits.OnesCount32(r.bufferMask))
	}

	r.releaseSurface(r.surface)
	r.surface = nil
	r.bufferSize = 0
	r.numBuffers = 0

	return nil
}

func (r *framebufferRing) printDetailedMap(json *jwriter.ObjectState) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	json.Name("Mapped").Bool(r.surface != nil)
	json.Name("BufferSize").Int(r.bufferSize)
	json.Name("NumBuffers").Int(r.numBuffers)
	json.Name("SlotsInUse").Int(bits.OnesCount32(r.bufferMask))
}
