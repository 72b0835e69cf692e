package gralloc

import (
	"github.com/cockroachdb/errors"
)

// Master is the first descriptor opened on a pool device. It owns the pool's mapping, and
// every buffer descriptor is connected to it.
type Master struct {
	FD     int
	Region *Region
}

// Surface is the mapped display memory carved into framebuffer slots
type Surface struct {
	FD     int
	Region *Region
	// Phys is the physical address of the first byte of the surface
	Phys uint64
	// LineLength is the number of bytes in one row of the display
	LineLength int
	// YRes is the number of visible rows
	YRes int
	// NumBuffers is the number of display-sized slots the surface holds
	NumBuffers int
}

//go:generate mockgen -source backing.go -destination internal/mocks/backing.go -package mocks Device,SharedMemory,Display

// Device opens, maps, and connects pinned physical memory pools
type Device interface {
	// OpenMaster opens the device backing a pool and maps size bytes of it
	OpenMaster(pool PoolID, path string, size int) (*Master, error)
	// PhysicalBase returns the physical address of the first byte of the master mapping
	PhysicalBase(master *Master) (uint64, error)
	// Open opens a fresh descriptor on the pool device
	Open(pool PoolID, path string) (int, error)
	// Connect attaches a descriptor to the master so it can be mapped into the master's range
	Connect(fd int, master *Master) error
	// MapRegion restricts a connected descriptor to [offset, offset+size) of the pool
	MapRegion(fd int, offset, size int) error
	// Dup duplicates a descriptor
	Dup(fd int) (int, error)
	// Close closes a descriptor
	Close(fd int) error
	// Unmap releases a mapping made by OpenMaster or by a Display
	Unmap(region *Region) error
}

// SharedMemory creates anonymous shared memory regions, used for buffers outside of any pool
type SharedMemory interface {
	CreateRegion(name string, size int) (int, error)
	Close(fd int) error
}

// Display maps the display surface
type Display interface {
	MapSurface() (*Surface, error)
}

// PixelFormat is a pixel layout identifier
type PixelFormat int32

const (
	PixelFormatRGBA8888 PixelFormat = 1
	PixelFormatRGBX8888 PixelFormat = 2
	PixelFormatRGB888   PixelFormat = 3
	PixelFormatRGB565   PixelFormat = 4
	PixelFormatBGRA8888 PixelFormat = 5
	PixelFormatRGBA5551 PixelFormat = 6
	PixelFormatRGBA4444 PixelFormat = 7
)

// FormatResolver computes the size of one pixel of a format
type FormatResolver interface {
	BytesPerPixel(format PixelFormat) (int, error)
}

// FormatTable is a FormatResolver backed by a fixed map
type FormatTable map[PixelFormat]int

func (t FormatTable) BytesPerPixel(format PixelFormat) (int, error) {
	bpp, ok := t[format]
	if !ok || bpp < 1 {
		return 0, errors.Mark(errors.Newf("unsupported pixel format %d", format), ErrInvalidArgument)
	}
	return bpp, nil
}

// DefaultFormats resolves the formats the display hardware supports
var DefaultFormats = FormatTable{
	PixelFormatRGBA8888: 4,
	PixelFormatRGBX8888: 4,
	PixelFormatBGRA8888: 4,
	PixelFormatRGB888:   3,
	PixelFormatRGB565:   2,
	PixelFormatRGBA5551: 2,
	PixelFormatRGBA4444: 2,
}
