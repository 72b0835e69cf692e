//go:build linux

package pmem

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/gralloc/gralloc"
	"golang.org/x/sys/unix"
)

// SharedMemory creates anonymous shared memory with memfd_create
type SharedMemory struct{}

var _ gralloc.SharedMemory = &SharedMemory{}

func NewSharedMemory() *SharedMemory {
	return &SharedMemory{}
}

func (s *SharedMemory) CreateRegion(name string, size int) (int, error) {
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return -1, errors.Wrap(err, "memfd_create failed")
	}

	err = unix.Ftruncate(fd, int64(size))
	if err != nil {
		_ = unix.Close(fd)
		return -1, errors.Wrapf(err, "could not size shared memory region to %d bytes", size)
	}

	// Buffers never change size once handed out
	_, err = unix.FcntlInt(uintptr(fd), unix.F_ADD_SEALS, unix.F_SEAL_SHRINK|unix.F_SEAL_GROW)
	if err != nil {
		_ = unix.Close(fd)
		return -1, errors.Wrap(err, "could not seal shared memory region")
	}

	return fd, nil
}

func (s *SharedMemory) Close(fd int) error {
	return errors.Wrapf(unix.Close(fd), "could not close fd %d", fd)
}
