package gralloc_test

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/gralloc/gralloc"
	"github.com/vkngwrapper/gralloc/gralloc/internal/mocks"
	"go.uber.org/mock/gomock"
)

const testPageSize = 4096

const testPhysBase uint64 = 0x10000000

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// poolBacking simulates pool devices with in-memory regions
type poolBacking struct {
	mutex   sync.Mutex
	nextFD  int
	masters map[gralloc.PoolID]*gralloc.Master
	closed  []int
}

func newPoolBacking() *poolBacking {
	return &poolBacking{
		nextFD:  100,
		masters: make(map[gralloc.PoolID]*gralloc.Master),
	}
}

func (b *poolBacking) openMaster(pool gralloc.PoolID, path string, size int) (*gralloc.Master, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	master := &gralloc.Master{
		FD:     10 + int(pool),
		Region: gralloc.NewRegion(make([]byte, size)),
	}
	b.masters[pool] = master
	return master, nil
}

func (b *poolBacking) open(pool gralloc.PoolID, path string) (int, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	fd := b.nextFD
	b.nextFD++
	return fd, nil
}

func (b *poolBacking) close(fd int) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.closed = append(b.closed, fd)
	return nil
}

func (b *poolBacking) master(pool gralloc.PoolID) *gralloc.Master {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.masters[pool]
}

func (b *poolBacking) closedFDs() []int {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return append([]int(nil), b.closed...)
}

// expectPoolDevice registers permissive expectations on device. Expectations registered
// before calling it take priority.
func expectPoolDevice(device *mocks.MockDevice, backing *poolBacking) {
	device.EXPECT().OpenMaster(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(backing.openMaster).AnyTimes()
	expectPoolIO(device, backing)
}

// expectPoolIO is expectPoolDevice without OpenMaster, for tests that count master opens
func expectPoolIO(device *mocks.MockDevice, backing *poolBacking) {
	device.EXPECT().PhysicalBase(gomock.Any()).Return(testPhysBase, nil).AnyTimes()
	device.EXPECT().Open(gomock.Any(), gomock.Any()).DoAndReturn(backing.open).AnyTimes()
	device.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	device.EXPECT().MapRegion(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	device.EXPECT().Close(gomock.Any()).DoAndReturn(backing.close).AnyTimes()
	device.EXPECT().Unmap(gomock.Any()).DoAndReturn(func(region *gralloc.Region) error {
		region.Invalidate()
		return nil
	}).AnyTimes()
}

func smallPools(size int) []gralloc.PoolCreateInfo {
	return []gralloc.PoolCreateInfo{
		{ID: gralloc.PoolMain, Name: "pmem", Path: "/dev/pmem", Size: size},
		{ID: gralloc.PoolGPU0, Name: "gpu0", Path: "/dev/pmem_gpu0", Size: size, HardwareVisible: true},
		{ID: gralloc.PoolGPU1, Name: "gpu1", Path: "/dev/pmem_gpu1", Size: size, HardwareVisible: true},
	}
}

func readyAllocator(t *testing.T, options gralloc.CreateOptions) *gralloc.Allocator {
	if options.PageSize == 0 {
		options.PageSize = testPageSize
	}

	allocator, err := gralloc.New(discardLogger(), options)
	require.NoError(t, err)

	return allocator
}
