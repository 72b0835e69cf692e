//go:build linux

package pmem

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/gralloc/gralloc"
	"golang.org/x/sys/unix"
)

// Device drives /dev/pmem* pools. Every descriptor it returns is opened close-on-exec.
type Device struct{}

var _ gralloc.Device = &Device{}

func NewDevice() *Device {
	return &Device{}
}

func (d *Device) OpenMaster(pool gralloc.PoolID, path string, size int) (*gralloc.Master, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s for pool %s", path, pool)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, errors.Wrapf(err, "could not map %d bytes of %s", size, path)
	}

	return &gralloc.Master{
		FD:     fd,
		Region: gralloc.NewRegion(data),
	}, nil
}

func (d *Device) PhysicalBase(master *gralloc.Master) (uint64, error) {
	var region pmemRegion
	err := ioctlPtr(master.FD, pmemGetPhys, unsafe.Pointer(&region))
	if err != nil {
		return 0, errors.Wrap(err, "PMEM_GET_PHYS failed")
	}

	return uint64(region.Offset), nil
}

func (d *Device) Open(pool gralloc.PoolID, path string) (int, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, errors.Wrapf(err, "could not open %s for pool %s", path, pool)
	}
	return fd, nil
}

func (d *Device) Connect(fd int, master *gralloc.Master) error {
	err := ioctlValue(fd, pmemConnect, uintptr(master.FD))
	if err != nil {
		return errors.Wrapf(err, "PMEM_CONNECT of fd %d to master fd %d failed", fd, master.FD)
	}
	return nil
}

func (d *Device) MapRegion(fd int, offset, size int) error {
	region := pmemRegion{
		Offset: uintptr(offset),
		Len:    uintptr(size),
	}
	err := ioctlPtr(fd, pmemMap, unsafe.Pointer(&region))
	if err != nil {
		return errors.Wrapf(err, "PMEM_MAP of %d bytes at offset %d failed", size, offset)
	}
	return nil
}

func (d *Device) Dup(fd int) (int, error) {
	dup, err := unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return -1, errors.Wrapf(err, "could not duplicate fd %d", fd)
	}
	return dup, nil
}

func (d *Device) Close(fd int) error {
	return errors.Wrapf(unix.Close(fd), "could not close fd %d", fd)
}

func (d *Device) Unmap(region *gralloc.Region) error {
	data := region.Invalidate()
	if data == nil {
		return nil
	}

	return errors.Wrap(unix.Munmap(data), "could not unmap region")
}
