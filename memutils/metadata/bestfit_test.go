package metadata_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/gralloc/memutils"
	"github.com/vkngwrapper/gralloc/memutils/metadata"
)

func requireTiled(t *testing.T, m *metadata.BestFitBlockMetadata) {
	require.NoError(t, m.Validate())

	regions := m.Regions()
	require.NotEmpty(t, regions)

	nextOffset := 0
	for index, region := range regions {
		require.Equal(t, nextOffset, region.Offset)
		require.Greater(t, region.Size, 0)
		if index > 0 {
			require.False(t, region.Free && regions[index-1].Free, "adjacent free regions at %d", region.Offset)
		}
		nextOffset = region.End()
	}
	require.Equal(t, m.Size(), nextOffset)
}

func TestBestFitBasicAlloc(t *testing.T) {
	bestFit := metadata.NewBestFitBlockMetadata(1)
	bestFit.Init(1000)

	var stats memutils.DetailedStatistics
	stats.Clear()
	bestFit.AddDetailedStatistics(&stats)

	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			BlockCount:      1,
			BlockBytes:      1000,
			AllocationCount: 0,
			AllocationBytes: 0,
		},
		UnusedRangeCount:   1,
		AllocationSizeMin:  math.MaxInt,
		AllocationSizeMax:  0,
		UnusedRangeSizeMin: 1000,
		UnusedRangeSizeMax: 1000,
	}, stats)

	success, req, err := bestFit.CreateAllocationRequest(100)
	require.NoError(t, err)
	require.True(t, success)
	require.Equal(t, metadata.AllocationRequestBestFit, req.Type)

	err = bestFit.Alloc(req, "first")
	require.NoError(t, err)

	stats.Clear()
	bestFit.AddDetailedStatistics(&stats)

	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			BlockCount:      1,
			BlockBytes:      1000,
			AllocationCount: 1,
			AllocationBytes: 100,
		},
		UnusedRangeCount:   1,
		AllocationSizeMin:  100,
		AllocationSizeMax:  100,
		UnusedRangeSizeMin: 900,
		UnusedRangeSizeMax: 900,
	}, stats)

	userData, err := bestFit.AllocationUserData(req.Offset)
	require.NoError(t, err)
	require.Equal(t, "first", userData)

	err = bestFit.Free(req.Offset)
	require.NoError(t, err)
	requireTiled(t, bestFit)
	require.True(t, bestFit.IsEmpty())
	require.Equal(t, 1000, bestFit.SumFreeSize())
	require.Equal(t, 1, bestFit.FreeRegionsCount())
}

func TestBestFitChoosesSmallestSufficientRegion(t *testing.T) {
	bestFit := metadata.NewBestFitBlockMetadata(1)
	bestFit.Init(183)

	// 100 | spacer | 50 | spacer | 30 | spacer
	sizes := []int{100, 1, 50, 1, 30, 1}
	offsets := make([]int, len(sizes))
	for index, size := range sizes {
		offset, err := bestFit.Allocate(size, nil)
		require.NoError(t, err)
		offsets[index] = offset
	}
	require.Equal(t, []int{0, 100, 101, 151, 152, 182}, offsets)
	require.Equal(t, 0, bestFit.SumFreeSize())

	require.NoError(t, bestFit.Free(offsets[0]))
	require.NoError(t, bestFit.Free(offsets[2]))
	require.NoError(t, bestFit.Free(offsets[4]))
	requireTiled(t, bestFit)
	require.Equal(t, 3, bestFit.FreeRegionsCount())

	offset, err := bestFit.Allocate(40, nil)
	require.NoError(t, err)
	require.Equal(t, 101, offset)

	size, err := bestFit.AllocationSize(offset)
	require.NoError(t, err)
	require.Equal(t, 40, size)
	requireTiled(t, bestFit)
}

func TestBestFitTiesGoToLowestOffset(t *testing.T) {
	bestFit := metadata.NewBestFitBlockMetadata(16)
	bestFit.Init(16 * 5)

	var offsets []int
	for i := 0; i < 5; i++ {
		offset, err := bestFit.Allocate(16, nil)
		require.NoError(t, err)
		offsets = append(offsets, offset)
	}

	require.NoError(t, bestFit.Free(offsets[3]))
	require.NoError(t, bestFit.Free(offsets[1]))

	offset, err := bestFit.Allocate(10, nil)
	require.NoError(t, err)
	require.Equal(t, offsets[1], offset)
}

func TestBestFitRoundsToPageSize(t *testing.T) {
	bestFit := metadata.NewBestFitBlockMetadata(4096)
	bestFit.Init(4096 * 4)

	offset, err := bestFit.Allocate(1, nil)
	require.NoError(t, err)
	require.Equal(t, 0, offset)

	size, err := bestFit.AllocationSize(offset)
	require.NoError(t, err)
	require.Equal(t, 4096, size)

	second, err := bestFit.Allocate(4097, nil)
	require.NoError(t, err)
	require.Equal(t, 4096, second)
	require.Zero(t, second%4096)

	size, err = bestFit.AllocationSize(second)
	require.NoError(t, err)
	require.Equal(t, 8192, size)
	require.Equal(t, 4096, bestFit.SumFreeSize())
}

func TestBestFitRoundTripReusesOffset(t *testing.T) {
	bestFit := metadata.NewBestFitBlockMetadata(256)
	bestFit.Init(256 * 16)

	spacer, err := bestFit.Allocate(256, nil)
	require.NoError(t, err)

	offset, err := bestFit.Allocate(1000, nil)
	require.NoError(t, err)
	require.Zero(t, offset%256)
	require.NoError(t, bestFit.Free(offset))

	again, err := bestFit.Allocate(700, nil)
	require.NoError(t, err)
	require.Equal(t, offset, again)

	require.NoError(t, bestFit.Free(again))
	require.NoError(t, bestFit.Free(spacer))
	require.True(t, bestFit.IsEmpty())
	requireTiled(t, bestFit)
}

func TestBestFitExhaustion(t *testing.T) {
	bestFit := metadata.NewBestFitBlockMetadata(1024)
	bestFit.Init(1024)

	require.True(t, bestFit.MayHaveFreeBlock(1024))
	require.False(t, bestFit.MayHaveFreeBlock(1025))

	_, err := bestFit.Allocate(1025, nil)
	require.ErrorIs(t, err, memutils.ErrOutOfMemory)
	require.True(t, bestFit.IsEmpty())

	for _, size := range []int{math.MaxInt - 10, math.MaxInt} {
		require.False(t, bestFit.MayHaveFreeBlock(size))

		success, _, err := bestFit.CreateAllocationRequest(size)
		require.NoError(t, err)
		require.False(t, success)

		_, err = bestFit.Allocate(size, nil)
		require.ErrorIs(t, err, memutils.ErrOutOfMemory)
	}
	require.True(t, bestFit.IsEmpty())

	offset, err := bestFit.Allocate(600, nil)
	require.NoError(t, err)
	require.Equal(t, 0, offset)

	_, err = bestFit.Allocate(600, nil)
	require.ErrorIs(t, err, memutils.ErrOutOfMemory)

	success, _, err := bestFit.CreateAllocationRequest(1)
	require.NoError(t, err)
	require.False(t, success)
	requireTiled(t, bestFit)
}

func TestBestFitCoalescesNeighbours(t *testing.T) {
	bestFit := metadata.NewBestFitBlockMetadata(64)
	bestFit.Init(64 * 4)

	var offsets []int
	for i := 0; i < 4; i++ {
		offset, err := bestFit.Allocate(64, nil)
		require.NoError(t, err)
		offsets = append(offsets, offset)
	}

	require.NoError(t, bestFit.Free(offsets[1]))
	require.Equal(t, 1, bestFit.FreeRegionsCount())

	// Merges with the free region after it
	require.NoError(t, bestFit.Free(offsets[0]))
	require.Equal(t, 1, bestFit.FreeRegionsCount())
	requireTiled(t, bestFit)

	// Merges with the free region before it
	require.NoError(t, bestFit.Free(offsets[3]))
	require.Equal(t, 2, bestFit.FreeRegionsCount())

	// Merges in both directions
	require.NoError(t, bestFit.Free(offsets[2]))
	require.Equal(t, 1, bestFit.FreeRegionsCount())
	require.Equal(t, []metadata.Suballocation{{Offset: 0, Size: 256, Free: true}}, bestFit.Regions())
}

func TestBestFitInvalidFree(t *testing.T) {
	bestFit := metadata.NewBestFitBlockMetadata(8)
	bestFit.Init(64)

	err := bestFit.Free(0)
	require.ErrorIs(t, err, memutils.ErrInvalidOffset)

	offset, err := bestFit.Allocate(16, nil)
	require.NoError(t, err)

	err = bestFit.Free(offset + 8)
	require.ErrorIs(t, err, memutils.ErrInvalidOffset)

	require.NoError(t, bestFit.Free(offset))
	err = bestFit.Free(offset)
	require.ErrorIs(t, err, memutils.ErrInvalidOffset)

	_, err = bestFit.AllocationUserData(offset)
	require.ErrorIs(t, err, memutils.ErrInvalidOffset)
	requireTiled(t, bestFit)
}

func TestBestFitInvalidSize(t *testing.T) {
	bestFit := metadata.NewBestFitBlockMetadata(8)
	bestFit.Init(64)

	_, err := bestFit.Allocate(0, nil)
	require.ErrorIs(t, err, memutils.ErrInvalidSize)

	_, _, err = bestFit.CreateAllocationRequest(-5)
	require.ErrorIs(t, err, memutils.ErrInvalidSize)
}

func TestBestFitStaleRequest(t *testing.T) {
	bestFit := metadata.NewBestFitBlockMetadata(8)
	bestFit.Init(64)

	success, req, err := bestFit.CreateAllocationRequest(64)
	require.NoError(t, err)
	require.True(t, success)

	_, err = bestFit.Allocate(8, nil)
	require.NoError(t, err)

	err = bestFit.Alloc(req, nil)
	require.Error(t, err)
	requireTiled(t, bestFit)
	require.Equal(t, 1, bestFit.AllocationCount())
}

func TestBestFitClear(t *testing.T) {
	bestFit := metadata.NewBestFitBlockMetadata(8)
	bestFit.Init(64)

	for i := 0; i < 4; i++ {
		_, err := bestFit.Allocate(8, i)
		require.NoError(t, err)
	}

	bestFit.Clear()
	require.True(t, bestFit.IsEmpty())
	require.Equal(t, 64, bestFit.SumFreeSize())
	requireTiled(t, bestFit)
}

func TestBestFitVisitStopsOnError(t *testing.T) {
	bestFit := metadata.NewBestFitBlockMetadata(8)
	bestFit.Init(64)

	_, err := bestFit.Allocate(8, nil)
	require.NoError(t, err)

	stop := errors.New("stop")
	visited := 0
	err = bestFit.VisitAllRegions(func(offset int, size int, userData any, free bool) error {
		visited++
		return stop
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, 1, visited)
}

func TestBestFitRandomSequenceKeepsInvariants(t *testing.T) {
	bestFit := metadata.NewBestFitBlockMetadata(64)
	bestFit.Init(64 * 256)

	rng := rand.New(rand.NewSource(1234))
	live := map[int]int{}

	for step := 0; step < 2000; step++ {
		if len(live) == 0 || rng.Intn(3) > 0 {
			size := rng.Intn(64*12) + 1
			offset, err := bestFit.Allocate(size, step)
			if err != nil {
				require.ErrorIs(t, err, memutils.ErrOutOfMemory)
				continue
			}
			require.Zero(t, offset%64)
			_, exists := live[offset]
			require.False(t, exists)
			live[offset] = memutils.RoundUpToPageSize(size, 64)
		} else {
			for offset := range live {
				require.NoError(t, bestFit.Free(offset))
				delete(live, offset)
				break
			}
		}

		requireTiled(t, bestFit)
		require.Equal(t, len(live), bestFit.AllocationCount())

		allocated := 0
		for _, size := range live {
			allocated += size
		}
		require.Equal(t, bestFit.Size()-allocated, bestFit.SumFreeSize())
	}
}

func TestBestFitJson(t *testing.T) {
	bestFit := metadata.NewBestFitBlockMetadata(1024)
	bestFit.Init(4096)

	_, err := bestFit.Allocate(1024, nil)
	require.NoError(t, err)

	writer := jwriter.NewWriter()
	obj := writer.Object()
	bestFit.BlockJsonData(&obj)
	obj.End()

	require.NoError(t, writer.Error())
	require.JSONEq(t, `{
		"TotalBytes": 4096,
		"PageSize": 1024,
		"UnusedBytes": 3072,
		"Allocations": 1,
		"UnusedRanges": 1,
		"Suballocations": [
			{"Offset": 0, "Size": 1024, "Free": false},
			{"Offset": 1024, "Size": 3072, "Free": true}
		]
	}`, string(writer.Bytes()))
}

func TestBestFitRejectsBadPageSize(t *testing.T) {
	require.Panics(t, func() {
		metadata.NewBestFitBlockMetadata(3)
	})
}
