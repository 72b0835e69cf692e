package metadata

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/gralloc/memutils"
)

// BlockMetadata represents a single large, fixed-size range of memory within some system. It manages
// suballocations within the range, allowing allocations to be requested and freed, as well as
// enumerated and queried. Implementations are not safe for concurrent use: consumers are expected
// to hold their own lock around every call.
type BlockMetadata interface {
	// Init must be called before the BlockMetadata is used. It gives the implementation an opportunity
	// to ensure that metadata structures are prepared for allocations, as well as allows the consumer
	// to inform the implementation of the size in bytes of the block of memory it will be managing,
	// via the size parameter. The size is fixed from this point on.
	Init(size int)
	// Size retrieves the size in bytes that the block was initialized with
	Size() int
	// PageSize retrieves the granularity every allocation size is rounded up to
	PageSize() int

	// Validate performs internal consistency checks on the metadata. These checks may be expensive, depending
	// on the implementation. When the implementation is functioning correctly, it should not be possible
	// for this method to return an error, but this may assist in diagnosing issues with the implementation.
	Validate() error
	// AllocationCount returns the number of suballocations currently live in the implementation. This number
	// should generally be the number of successful allocations minus the number of successful frees.
	AllocationCount() int
	// FreeRegionsCount returns the number of unique regions of free memory in the block. Adjacent regions
	// of free memory are always merged, so this is also the number of free blocks.
	FreeRegionsCount() int
	// SumFreeSize returns the number of free bytes of memory in the block.
	SumFreeSize() int
	// MayHaveFreeBlock should return a heuristic indicating whether the block could possibly support a new
	// allocation of the provided size. False positives are ok, false negatives are not.
	MayHaveFreeBlock(size int) bool
	// IsEmpty will return true if this block has no live suballocations
	IsEmpty() bool

	// VisitAllRegions will call the provided callback once for each allocation and free region in
	// the block, in offset order. Returning an error from the callback stops the walk and returns that error.
	VisitAllRegions(handleRegion func(offset int, size int, userData any, free bool) error) error
	// Regions returns a snapshot of every region in the block, in offset order
	Regions() []Suballocation
	// AllocationSize returns the rounded size of the live allocation beginning at offset.
	AllocationSize(offset int) (int, error)
	// AllocationUserData returns the userdata value provided by the consumer for the live allocation
	// beginning at offset.
	AllocationUserData(offset int) (any, error)
	// SetAllocationUserData replaces the userdata value of the live allocation beginning at offset.
	SetAllocationUserData(offset int, userData any) error

	// AddDetailedStatistics sums this block's allocation statistics into the statistics currently present
	// in the provided memutils.DetailedStatistics object.
	AddDetailedStatistics(stats *memutils.DetailedStatistics)
	// AddStatistics sums this block's allocation statistics into the statistics currently present in the
	// provided memutils.Statistics object.
	AddStatistics(stats *memutils.Statistics)

	// Clear instantly frees all allocations
	Clear()
	// BlockJsonData populates a json object with information about this block
	BlockJsonData(json *jwriter.ObjectState)

	// CreateAllocationRequest retrieves an AllocationRequest object indicating where the implementation
	// would place an allocation of allocSize bytes. The boolean return is false when no free region is
	// large enough. That object can be passed to Alloc to commit the allocation.
	CreateAllocationRequest(allocSize int) (bool, AllocationRequest, error)
	// Alloc commits an AllocationRequest object, creating the suballocation within the block based
	// on the data described in the AllocationRequest. The implementation must return an error if the
	// allocation is no longer valid- i.e. the requested free region no longer exists, is not free,
	// or is no longer large enough to support the request.
	Alloc(request AllocationRequest, userData any) error
	// Allocate creates and commits an allocation request in one step, returning the offset of the
	// new suballocation or memutils.ErrOutOfMemory.
	Allocate(allocSize int, userData any) (int, error)

	// Free frees the suballocation beginning at offset, causing it to become a free region once again.
	// memutils.ErrInvalidOffset is returned if no live allocation begins at offset.
	Free(offset int) error
}

// BlockMetadataBase is a simple struct that provides a few shared utilities for BlockMetadata
// implementations in the memutils module.
type BlockMetadataBase struct {
	size     int
	pageSize int
}

// NewBlockMetadata creates a new BlockMetadataBase from a page size, which must be a power of two.
func NewBlockMetadata(pageSize int) BlockMetadataBase {
	err := memutils.CheckPow2(pageSize, "pageSize")
	if err != nil {
		panic(err)
	}

	return BlockMetadataBase{
		size:     0,
		pageSize: pageSize,
	}
}

// Init prepares this structure for allocations and sizes the block in bytes based on the parameter size.
func (m *BlockMetadataBase) Init(size int) {
	m.size = size
}

// Size returns the size of the block in bytes
func (m *BlockMetadataBase) Size() int { return m.size }

// PageSize returns the allocation granularity of the block in bytes
func (m *BlockMetadataBase) PageSize() int { return m.pageSize }

// BlockJsonData populates a json object with information about this block
func (m *BlockMetadataBase) BlockJsonData(json *jwriter.ObjectState, unusedBytes, allocationCount, unusedRangeCount int) {
	json.Name("TotalBytes").Int(m.Size())
	json.Name("PageSize").Int(m.PageSize())
	json.Name("UnusedBytes").Int(unusedBytes)
	json.Name("Allocations").Int(allocationCount)
	json.Name("UnusedRanges").Int(unusedRangeCount)
}
