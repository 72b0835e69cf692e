//go:build linux

package pmem

import (
	"context"
	"log/slog"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/gralloc/gralloc"
	"github.com/vkngwrapper/gralloc/memutils"
	"golang.org/x/sys/unix"
)

// DefaultFramebufferPath is the fbdev node of the primary display
const DefaultFramebufferPath = "/dev/graphics/fb0"

// requestedBuffers is the number of display-sized buffers requested from the framebuffer for
// page flipping
const requestedBuffers = 2

// Display maps an fbdev framebuffer
type Display struct {
	logger *slog.Logger
	path   string
}

var _ gralloc.Display = &Display{}

func NewDisplay(logger *slog.Logger, path string) *Display {
	if path == "" {
		path = DefaultFramebufferPath
	}

	return &Display{
		logger: logger,
		path:   path,
	}
}

func (d *Display) MapSurface() (*gralloc.Surface, error) {
	fd, err := unix.Open(d.path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", d.path)
	}

	surface, err := d.mapSurface(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	return surface, nil
}

func (d *Display) mapSurface(fd int) (*gralloc.Surface, error) {
	var info fbVarScreenInfo
	err := ioctlPtr(fd, fbioGetVScreenInfo, unsafe.Pointer(&info))
	if err != nil {
		return nil, errors.Wrapf(err, "FBIOGET_VSCREENINFO on %s failed", d.path)
	}
	if info.YRes == 0 {
		return nil, errors.Newf("%s reports a display with no rows", d.path)
	}

	info.YResVirtual = info.YRes * requestedBuffers
	info.Activate = fbActivateNow | fbActivateForce
	err = ioctlPtr(fd, fbioPutVScreenInfo, unsafe.Pointer(&info))
	if err != nil {
		info.YResVirtual = info.YRes
		d.logger.LogAttrs(context.Background(), slog.LevelWarn, "framebuffer does not support page flipping",
			slog.String("path", d.path),
			slog.Any("error", err),
		)
	}

	var fix fbFixScreenInfo
	err = ioctlPtr(fd, fbioGetFScreenInfo, unsafe.Pointer(&fix))
	if err != nil {
		return nil, errors.Wrapf(err, "FBIOGET_FSCREENINFO on %s failed", d.path)
	}

	lineLength := int(fix.LineLength)
	numBuffers := int(info.YResVirtual / info.YRes)
	size := memutils.RoundUpToPageSize(lineLength*int(info.YResVirtual), memutils.PageSize())
	if lineLength == 0 || size > int(fix.SmemLen) {
		return nil, errors.Newf("%s has %d bytes of video memory, but %d are needed", d.path, fix.SmemLen, size)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(err, "could not map %d bytes of %s", size, d.path)
	}

	return &gralloc.Surface{
		FD:         fd,
		Region:     gralloc.NewRegion(data),
		Phys:       uint64(fix.SmemStart),
		LineLength: lineLength,
		YRes:       int(info.YRes),
		NumBuffers: numBuffers,
	}, nil
}
