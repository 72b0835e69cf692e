package memutils

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestCheckPow2(t *testing.T) {
	require.NoError(t, CheckPow2(1, "one"))
	require.NoError(t, CheckPow2(uint(4096), "page"))

	for _, value := range []int{0, -4, 3, 4095} {
		err := CheckPow2(value, "value")
		require.Error(t, err)
		require.True(t, errors.Is(err, PowerOfTwoError))
	}
}

func TestAlignment(t *testing.T) {
	require.Equal(t, 0, AlignUp(0, 16))
	require.Equal(t, 16, AlignUp(1, 16))
	require.Equal(t, 16, AlignUp(16, 16))
	require.Equal(t, 32, AlignUp(17, 16))
	require.Equal(t, 16, AlignDown(31, 16))

	require.Equal(t, 4096, RoundUpToPageSize(1, 4096))
	require.Equal(t, 8192, RoundUpToPageSize(4097, 4096))
	require.Equal(t, 0, PageSize()&(PageSize()-1))
}

func TestDetailedStatistics(t *testing.T) {
	var stats DetailedStatistics
	stats.Clear()
	stats.BlockCount = 1
	stats.BlockBytes = 100

	stats.AddAllocation(30)
	stats.AddAllocation(10)
	stats.AddUnusedRange(60)

	require.Equal(t, 2, stats.AllocationCount)
	require.Equal(t, 40, stats.AllocationBytes)
	require.Equal(t, 60, stats.FreeBytes())
	require.Equal(t, 10, stats.AllocationSizeMin)
	require.Equal(t, 30, stats.AllocationSizeMax)

	var total DetailedStatistics
	total.Clear()
	total.AddDetailedStatistics(&stats)
	total.AddDetailedStatistics(&stats)
	require.Equal(t, 4, total.AllocationCount)
	require.Equal(t, 2, total.UnusedRangeCount)
	require.Equal(t, 60, total.UnusedRangeSizeMin)
}
