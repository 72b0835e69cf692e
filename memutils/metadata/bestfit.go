package metadata

import (
	"sync"

	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/gralloc/memutils"
)

var bestFitBlockAllocator = sync.Pool{
	New: func() any {
		return &bestFitBlock{}
	},
}

type bestFitBlock struct {
	offset int
	size   int
	free   bool

	prev *bestFitBlock
	next *bestFitBlock

	userData any
}

func (b *bestFitBlock) end() int {
	return b.offset + b.size
}

// BestFitBlockMetadata is a BlockMetadata implementation that keeps every region of the block in a
// single offset-ordered list and serves each request from the smallest free region that can hold it.
// Ties go to the lowest offset, so placement is deterministic. Freed regions are merged with free
// neighbours immediately, so two adjacent free regions never exist.
type BestFitBlockMetadata struct {
	BlockMetadataBase

	allocCount      int
	blocksFreeCount int
	blocksFreeSize  int

	head      *bestFitBlock
	offsetKey *swiss.Map[int, *bestFitBlock]
}

var _ BlockMetadata = &BestFitBlockMetadata{}

// NewBestFitBlockMetadata creates an uninitialized BestFitBlockMetadata that rounds every allocation
// up to pageSize. Init must be called before use.
func NewBestFitBlockMetadata(pageSize int) *BestFitBlockMetadata {
	return &BestFitBlockMetadata{
		BlockMetadataBase: NewBlockMetadata(pageSize),
	}
}

func (m *BestFitBlockMetadata) allocateBlock(offset, size int) *bestFitBlock {
	b := bestFitBlockAllocator.Get().(*bestFitBlock)
	b.offset = offset
	b.size = size
	b.free = true
	b.prev = nil
	b.next = nil
	b.userData = nil
	m.offsetKey.Put(offset, b)
	return b
}

func (m *BestFitBlockMetadata) freeBlock(b *bestFitBlock) {
	m.offsetKey.Delete(b.offset)
	b.prev = nil
	b.next = nil
	b.userData = nil
	bestFitBlockAllocator.Put(b)
}

func (m *BestFitBlockMetadata) getAllocatedBlock(offset int) (*bestFitBlock, error) {
	block, ok := m.offsetKey.Get(offset)
	if !ok || block.free {
		return nil, errors.Wrapf(memutils.ErrInvalidOffset, "offset %d", offset)
	}
	return block, nil
}

func (m *BestFitBlockMetadata) Init(size int) {
	if size < 1 {
		panic("attempted to initialize best-fit metadata with a non-positive size")
	}

	m.BlockMetadataBase.Init(size)
	m.offsetKey = swiss.NewMap[int, *bestFitBlock](42)

	m.head = m.allocateBlock(0, size)
	m.allocCount = 0
	m.blocksFreeCount = 1
	m.blocksFreeSize = size
}

func (m *BestFitBlockMetadata) Validate() error {
	if m.head == nil {
		return errors.New("metadata has not been initialized")
	}

	if m.head.prev != nil {
		return errors.New("the first block in the physical chain has a previous block")
	}

	nextOffset := 0
	var allocCount, freeCount, freeSize, blockCount int
	prevFree := false

	for block := m.head; block != nil; block = block.next {
		blockCount++

		if block.offset != nextOffset {
			return errors.Errorf("block at offset %d does not begin where the previous block ended (%d)", block.offset, nextOffset)
		}

		if block.size < 1 {
			return errors.Errorf("block at offset %d has non-positive size %d", block.offset, block.size)
		}

		if block.next != nil && block.next.prev != block {
			return errors.Errorf("block at offset %d lists the block at offset %d as its next block, but the reverse reference is broken", block.offset, block.next.offset)
		}

		indexed, ok := m.offsetKey.Get(block.offset)
		if !ok || indexed != block {
			return errors.Errorf("block at offset %d is missing from the offset index", block.offset)
		}

		if block.free {
			if prevFree {
				return errors.Errorf("free block at offset %d directly follows another free block", block.offset)
			}
			freeCount++
			freeSize += block.size
		} else {
			allocCount++
		}

		prevFree = block.free
		nextOffset = block.end()
	}

	if nextOffset != m.size {
		return errors.Errorf("the full size of the metadata is %d, but the blocks only added up to %d", m.size, nextOffset)
	}

	if blockCount != m.offsetKey.Count() {
		return errors.Errorf("the offset index holds %d blocks, but the physical chain holds %d", m.offsetKey.Count(), blockCount)
	}

	if allocCount != m.allocCount {
		return errors.Errorf("the allocation count of the metadata is %d, but the taken blocks only added up to %d", m.allocCount, allocCount)
	}

	if freeCount != m.blocksFreeCount {
		return errors.Errorf("the free block count of the metadata is %d, but there were %d free blocks", m.blocksFreeCount, freeCount)
	}

	if freeSize != m.blocksFreeSize {
		return errors.Errorf("the free size of the metadata is %d, but the free blocks added up to %d", m.blocksFreeSize, freeSize)
	}

	return nil
}

func (m *BestFitBlockMetadata) AllocationCount() int {
	return m.allocCount
}

func (m *BestFitBlockMetadata) FreeRegionsCount() int {
	return m.blocksFreeCount
}

func (m *BestFitBlockMetadata) SumFreeSize() int {
	return m.blocksFreeSize
}

func (m *BestFitBlockMetadata) IsEmpty() bool {
	return m.allocCount == 0
}

func (m *BestFitBlockMetadata) MayHaveFreeBlock(size int) bool {
	if size > m.size {
		return false
	}

	return memutils.RoundUpToPageSize(size, m.pageSize) <= m.blocksFreeSize
}

func (m *BestFitBlockMetadata) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.BlockCount++
	stats.BlockBytes += m.size

	for block := m.head; block != nil; block = block.next {
		if block.free {
			stats.AddUnusedRange(block.size)
		} else {
			stats.AddAllocation(block.size)
		}
	}
}

func (m *BestFitBlockMetadata) AddStatistics(stats *memutils.Statistics) {
	stats.BlockCount++
	stats.AllocationCount += m.allocCount
	stats.BlockBytes += m.size
	stats.AllocationBytes += m.size - m.blocksFreeSize
}

func (m *BestFitBlockMetadata) CreateAllocationRequest(allocSize int) (bool, AllocationRequest, error) {
	var allocRequest AllocationRequest

	if allocSize < 1 {
		return false, allocRequest, errors.Wrapf(memutils.ErrInvalidSize, "requested %d bytes", allocSize)
	}

	memutils.DebugValidate(m)

	if allocSize > m.size {
		return false, allocRequest, nil
	}

	allocSize = memutils.RoundUpToPageSize(allocSize, m.pageSize)
	if allocSize <= 0 || allocSize > m.blocksFreeSize {
		return false, allocRequest, nil
	}

	var best *bestFitBlock
	for block := m.head; block != nil; block = block.next {
		if !block.free || block.size < allocSize {
			continue
		}

		// Strictly smaller only, so that equal sizes keep the lowest offset
		if best == nil || block.size < best.size {
			best = block
			if best.size == allocSize {
				break
			}
		}
	}

	if best == nil {
		return false, allocRequest, nil
	}

	allocRequest.Type = AllocationRequestBestFit
	allocRequest.Offset = best.offset
	allocRequest.Size = allocSize
	allocRequest.RegionSize = best.size
	return true, allocRequest, nil
}

func (m *BestFitBlockMetadata) Alloc(req AllocationRequest, userData any) error {
	if req.Type != AllocationRequestBestFit {
		return errors.New("allocation request was received by an incompatible metadata")
	}

	block, ok := m.offsetKey.Get(req.Offset)
	if !ok {
		return errors.Errorf("allocation request targets offset %d, which does not begin a region", req.Offset)
	}

	if !block.free {
		return errors.Errorf("allocation request targets the region at offset %d, which is no longer free", req.Offset)
	}

	if req.Size < 1 || req.Size > block.size || req.Size%m.pageSize != 0 {
		return errors.Errorf("allocation request of %d bytes cannot be placed in the %d-byte region at offset %d", req.Size, block.size, req.Offset)
	}

	if req.Size < block.size {
		remainder := m.allocateBlock(block.offset+req.Size, block.size-req.Size)
		remainder.prev = block
		remainder.next = block.next
		if block.next != nil {
			block.next.prev = remainder
		}
		block.next = remainder
		block.size = req.Size
		// The remainder replaces the original region in the free count
	} else {
		m.blocksFreeCount--
	}

	block.free = false
	block.userData = userData
	m.allocCount++
	m.blocksFreeSize -= req.Size

	memutils.DebugValidate(m)
	return nil
}

func (m *BestFitBlockMetadata) Allocate(allocSize int, userData any) (int, error) {
	success, req, err := m.CreateAllocationRequest(allocSize)
	if err != nil {
		return -1, err
	}

	if !success {
		return -1, errors.Wrapf(memutils.ErrOutOfMemory, "requested %d bytes with %d bytes free in %d regions", allocSize, m.blocksFreeSize, m.blocksFreeCount)
	}

	err = m.Alloc(req, userData)
	if err != nil {
		return -1, err
	}

	return req.Offset, nil
}

func (m *BestFitBlockMetadata) Free(offset int) error {
	block, err := m.getAllocatedBlock(offset)
	if err != nil {
		return err
	}

	block.free = true
	block.userData = nil
	m.allocCount--
	m.blocksFreeCount++
	m.blocksFreeSize += block.size

	if block.next != nil && block.next.free {
		m.mergeBlock(block, block.next)
	}

	if block.prev != nil && block.prev.free {
		m.mergeBlock(block.prev, block)
	}

	memutils.DebugValidate(m)
	return nil
}

// mergeBlock folds next into block; both must be free and physically adjacent
func (m *BestFitBlockMetadata) mergeBlock(block *bestFitBlock, next *bestFitBlock) {
	if block.next != next || !block.free || !next.free {
		panic("attempted to merge blocks that are not adjacent free blocks")
	}

	block.size += next.size
	block.next = next.next
	if next.next != nil {
		next.next.prev = block
	}

	m.blocksFreeCount--
	m.freeBlock(next)
}

func (m *BestFitBlockMetadata) VisitAllRegions(handleRegion func(offset int, size int, userData any, free bool) error) error {
	for block := m.head; block != nil; block = block.next {
		err := handleRegion(block.offset, block.size, block.userData, block.free)
		if err != nil {
			return err
		}
	}

	return nil
}

func (m *BestFitBlockMetadata) Regions() []Suballocation {
	regions := make([]Suballocation, 0, m.allocCount+m.blocksFreeCount)
	for block := m.head; block != nil; block = block.next {
		regions = append(regions, Suballocation{
			Offset:   block.offset,
			Size:     block.size,
			UserData: block.userData,
			Free:     block.free,
		})
	}
	return regions
}

func (m *BestFitBlockMetadata) AllocationSize(offset int) (int, error) {
	block, err := m.getAllocatedBlock(offset)
	if err != nil {
		return 0, err
	}

	return block.size, nil
}

func (m *BestFitBlockMetadata) AllocationUserData(offset int) (any, error) {
	block, err := m.getAllocatedBlock(offset)
	if err != nil {
		return nil, err
	}

	return block.userData, nil
}

func (m *BestFitBlockMetadata) SetAllocationUserData(offset int, userData any) error {
	block, err := m.getAllocatedBlock(offset)
	if err != nil {
		return err
	}

	block.userData = userData
	return nil
}

func (m *BestFitBlockMetadata) Clear() {
	for block := m.head; block != nil; {
		next := block.next
		m.freeBlock(block)
		block = next
	}

	m.head = m.allocateBlock(0, m.size)
	m.allocCount = 0
	m.blocksFreeCount = 1
	m.blocksFreeSize = m.size
}

func (m *BestFitBlockMetadata) BlockJsonData(json *jwriter.ObjectState) {
	m.BlockMetadataBase.BlockJsonData(json, m.blocksFreeSize, m.allocCount, m.blocksFreeCount)

	regions := json.Name("Suballocations").Array()
	defer regions.End()

	for block := m.head; block != nil; block = block.next {
		obj := regions.Object()
		obj.Name("Offset").Int(block.offset)
		obj.Name("Size").Int(block.size)
		obj.Name("Free").Bool(block.free)
		obj.End()
	}
}
