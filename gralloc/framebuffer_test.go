package gralloc_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/gralloc/gralloc"
	"github.com/vkngwrapper/gralloc/gralloc/internal/mocks"
	"go.uber.org/mock/gomock"
)

const (
	testLineLength       = 4096
	testYRes             = 4
	testFramebufferSize  = testLineLength * testYRes
	testSurfaceFD        = 50
	testSurfacePhys      = uint64(0x20000000)
	testSurfaceDupFDBase = 60
)

func testSurface(numBuffers int) *gralloc.Surface {
	return testSurfaceWithGeometry(testLineLength, testYRes, numBuffers)
}

func testSurfaceWithGeometry(lineLength, yres, numBuffers int) *gralloc.Surface {
	return &gralloc.Surface{
		FD:         testSurfaceFD,
		Region:     gralloc.NewRegion(make([]byte, lineLength*yres*numBuffers)),
		Phys:       testSurfacePhys,
		LineLength: lineLength,
		YRes:       yres,
		NumBuffers: numBuffers,
	}
}

func expectSurfaceDup(device *mocks.MockDevice) {
	nextFD := testSurfaceDupFDBase
	device.EXPECT().Dup(testSurfaceFD).DoAndReturn(func(fd int) (int, error) {
		dup := nextFD
		nextFD++
		return dup, nil
	}).AnyTimes()
}

func TestFramebufferRing(t *testing.T) {
	ctrl := gomock.NewController(t)
	device := mocks.NewMockDevice(ctrl)
	display := mocks.NewMockDisplay(ctrl)
	display.EXPECT().MapSurface().Return(testSurface(2), nil).Times(1)
	expectSurfaceDup(device)
	device.EXPECT().Close(gomock.Any()).Return(nil).AnyTimes()

	allocator := readyAllocator(t, gralloc.CreateOptions{Device: device, Display: display})

	first, err := allocator.Allocate(testFramebufferSize, gralloc.UsageHWFramebuffer)
	require.NoError(t, err)
	require.Equal(t, gralloc.BufferTypeFramebuffer, first.Type)
	require.Equal(t, gralloc.HandleFlagFramebuffer|gralloc.HandleFlagUsesPmem, first.Flags)
	require.Equal(t, 0, first.Offset)
	require.Equal(t, testSurfacePhys, first.Phys)
	require.Equal(t, testSurfaceDupFDBase, first.FD)
	require.Len(t, first.Base.Bytes(), testFramebufferSize)

	second, err := allocator.Allocate(100, gralloc.UsageHWFramebuffer|gralloc.UsageHWRender)
	require.NoError(t, err)
	require.Equal(t, testFramebufferSize, second.Offset)
	require.Equal(t, testSurfacePhys+uint64(testFramebufferSize), second.Phys)

	_, err = allocator.Allocate(100, gralloc.UsageHWFramebuffer)
	require.True(t, errors.Is(err, gralloc.ErrOutOfMemory))

	var stats gralloc.Statistics
	allocator.CalculateStatistics(&stats)
	require.Equal(t, 2, stats.FramebufferSlotsInUse)
	require.Equal(t, 2, stats.FramebufferSlots)

	require.NoError(t, allocator.Free(first))

	third, err := allocator.Allocate(100, gralloc.UsageHWFramebuffer)
	require.NoError(t, err)
	require.Equal(t, 0, third.Offset)

	require.NoError(t, allocator.Free(second))
	require.NoError(t, allocator.Free(third))

	allocator.CalculateStatistics(&stats)
	require.Equal(t, 0, stats.FramebufferSlotsInUse)
}

func TestFramebufferReleaseRejectsForgedSlots(t *testing.T) {
	ctrl := gomock.NewController(t)
	device := mocks.NewMockDevice(ctrl)
	display := mocks.NewMockDisplay(ctrl)
	display.EXPECT().MapSurface().Return(testSurface(3), nil).Times(1)
	expectSurfaceDup(device)
	device.EXPECT().Close(gomock.Any()).Return(nil).AnyTimes()

	allocator := readyAllocator(t, gralloc.CreateOptions{Device: device, Display: display})

	handle, err := allocator.Allocate(testFramebufferSize, gralloc.UsageHWFramebuffer)
	require.NoError(t, err)

	misaligned := *handle
	misaligned.Offset = 100
	require.True(t, errors.Is(allocator.Free(&misaligned), gralloc.ErrInvalidHandle))

	unused := *handle
	unused.Offset = testFramebufferSize
	require.True(t, errors.Is(allocator.Free(&unused), gralloc.ErrInvalidHandle))

	outOfRange := *handle
	outOfRange.Offset = 3 * testFramebufferSize
	require.True(t, errors.Is(allocator.Free(&outOfRange), gralloc.ErrInvalidHandle))

	untyped := *handle
	untyped.Type = gralloc.BufferTypePmem
	require.True(t, errors.Is(allocator.Free(&untyped), gralloc.ErrInvalidHandle))

	require.NoError(t, allocator.Free(handle))
	require.True(t, errors.Is(allocator.Free(handle), gralloc.ErrInvalidHandle))
}

func TestFramebufferRejectsOversizedRequests(t *testing.T) {
	ctrl := gomock.NewController(t)
	device := mocks.NewMockDevice(ctrl)
	display := mocks.NewMockDisplay(ctrl)
	display.EXPECT().MapSurface().Return(testSurface(2), nil).Times(1)

	allocator := readyAllocator(t, gralloc.CreateOptions{Device: device, Display: display})

	_, err := allocator.Allocate(testFramebufferSize+1, gralloc.UsageHWFramebuffer)
	require.True(t, errors.Is(err, gralloc.ErrInvalidArgument))
}

func TestFramebufferSlotsNeedNotBePageSized(t *testing.T) {
	// 480x800 RGB565
	const lineLength = 960
	const yres = 800
	const slotSize = lineLength * yres
	require.NotZero(t, slotSize%testPageSize)

	ctrl := gomock.NewController(t)
	device := mocks.NewMockDevice(ctrl)
	display := mocks.NewMockDisplay(ctrl)
	display.EXPECT().MapSurface().Return(testSurfaceWithGeometry(lineLength, yres, 2), nil).Times(1)
	expectSurfaceDup(device)
	device.EXPECT().Close(gomock.Any()).Return(nil).AnyTimes()

	allocator := readyAllocator(t, gralloc.CreateOptions{Device: device, Display: display})

	screen, err := allocator.Allocate(slotSize, gralloc.UsageHWFramebuffer)
	require.NoError(t, err)
	require.Equal(t, gralloc.BufferTypeFramebuffer, screen.Type)
	require.Equal(t, 0, screen.Offset)
	require.Equal(t, slotSize, screen.Size)
	require.Len(t, screen.Base.Bytes(), slotSize)

	image, stride, err := allocator.AllocateImage(480, yres, gralloc.PixelFormatRGB565, gralloc.UsageHWFramebuffer)
	require.NoError(t, err)
	require.Equal(t, 480, stride)
	require.Equal(t, slotSize, image.Offset)
	require.Equal(t, testSurfacePhys+uint64(slotSize), image.Phys)

	require.NoError(t, allocator.Free(screen))

	_, err = allocator.Allocate(slotSize+1, gralloc.UsageHWFramebuffer)
	require.True(t, errors.Is(err, gralloc.ErrInvalidArgument))

	again, err := allocator.Allocate(slotSize, gralloc.UsageHWFramebuffer)
	require.NoError(t, err)
	require.Equal(t, 0, again.Offset)

	require.NoError(t, allocator.Free(again))
	require.NoError(t, allocator.Free(image))
}

func TestSingleBufferFramebufferUsesPool(t *testing.T) {
	ctrl := gomock.NewController(t)
	device := mocks.NewMockDevice(ctrl)
	display := mocks.NewMockDisplay(ctrl)
	backing := newPoolBacking()
	display.EXPECT().MapSurface().Return(testSurface(1), nil).Times(1)
	expectPoolDevice(device, backing)

	allocator := readyAllocator(t, gralloc.CreateOptions{Device: device, Display: display})

	handle, err := allocator.Allocate(100, gralloc.UsageHWFramebuffer)
	require.NoError(t, err)
	require.Equal(t, gralloc.BufferTypeGPU1, handle.Type)
	require.Equal(t, gralloc.HandleFlagUsesPmem, handle.Flags)
	require.Equal(t, testFramebufferSize, handle.Size)
	require.Equal(t, testPhysBase, handle.Phys)

	var stats gralloc.Statistics
	allocator.CalculateStatistics(&stats)
	require.Zero(t, stats.FramebufferSlotsInUse)
	require.Equal(t, 1, stats.FramebufferSlots)
	require.Equal(t, 1, stats.Pools[gralloc.PoolGPU1].AllocationCount)

	require.NoError(t, allocator.Free(handle))

	allocator.CalculateStatistics(&stats)
	require.Zero(t, stats.FramebufferSlotsInUse)
}

func TestFramebufferWithoutDisplay(t *testing.T) {
	ctrl := gomock.NewController(t)
	device := mocks.NewMockDevice(ctrl)

	allocator := readyAllocator(t, gralloc.CreateOptions{Device: device})

	_, err := allocator.Allocate(100, gralloc.UsageHWFramebuffer)
	require.True(t, errors.Is(err, gralloc.ErrResourceUnavailable))
}

func TestFramebufferBadSurfaceIsRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	device := mocks.NewMockDevice(ctrl)
	display := mocks.NewMockDisplay(ctrl)
	bad := testSurface(1)
	bad.NumBuffers = 0
	display.EXPECT().MapSurface().Return(nil, errors.New("ENODEV")).Times(1)
	display.EXPECT().MapSurface().Return(bad, nil).Times(1)
	display.EXPECT().MapSurface().Return(testSurface(2), nil).Times(1)
	device.EXPECT().Unmap(bad.Region).Return(nil).Times(1)
	device.EXPECT().Close(testSurfaceFD).Return(nil).Times(1)
	expectSurfaceDup(device)

	allocator := readyAllocator(t, gralloc.CreateOptions{Device: device, Display: display})

	_, err := allocator.Allocate(100, gralloc.UsageHWFramebuffer)
	require.True(t, errors.Is(err, gralloc.ErrResourceUnavailable))

	_, err = allocator.Allocate(100, gralloc.UsageHWFramebuffer)
	require.True(t, errors.Is(err, gralloc.ErrResourceUnavailable))

	handle, err := allocator.Allocate(100, gralloc.UsageHWFramebuffer)
	require.NoError(t, err)
	require.Equal(t, gralloc.BufferTypeFramebuffer, handle.Type)
}

func TestDestroyWithFramebufferSlots(t *testing.T) {
	ctrl := gomock.NewController(t)
	device := mocks.NewMockDevice(ctrl)
	display := mocks.NewMockDisplay(ctrl)
	surface := testSurface(2)
	display.EXPECT().MapSurface().Return(surface, nil).Times(1)
	expectSurfaceDup(device)
	device.EXPECT().Close(testSurfaceDupFDBase).Return(nil).Times(1)
	device.EXPECT().Unmap(surface.Region).Return(nil).Times(1)
	device.EXPECT().Close(testSurfaceFD).Return(nil).Times(1)

	allocator := readyAllocator(t, gralloc.CreateOptions{Device: device, Display: display})

	handle, err := allocator.Allocate(100, gralloc.UsageHWFramebuffer)
	require.NoError(t, err)

	require.Error(t, allocator.Destroy())

	require.NoError(t, allocator.Free(handle))
	require.NoError(t, allocator.Destroy())
}
