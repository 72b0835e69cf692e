package metadata

// AllocationRequestType is an enum that indicates the type of allocation that is being made.
// It is returned in AllocationRequest from CreateAllocationRequest
type AllocationRequestType uint32

const (
	// AllocationRequestBestFit indicates that the allocation request was sourced from
	// metadata.BestFitBlockMetadata
	AllocationRequestBestFit AllocationRequestType = iota
)

var allocationRequestMapping = map[AllocationRequestType]string{
	AllocationRequestBestFit: "BestFit",
}

func (t AllocationRequestType) String() string {
	str, ok := allocationRequestMapping[t]
	if !ok {
		return "unknown AllocationRequestType"
	}

	return str
}

// AllocationRequest is a type returned from BlockMetadata.CreateAllocationRequest which indicates where
// the metadata intends to allocate new memory. This allocation can be applied to the actual memory system consuming
// memutils, and then committed to the metadata with BlockMetadata.Alloc
type AllocationRequest struct {
	// Offset is the offset in bytes of the free region the allocation will be carved from. The
	// allocation always begins at the start of that region.
	Offset int
	// Size the total size of the allocation, rounded up to the block's page size
	Size int
	// RegionSize is the size of the free region at the time the request was created
	RegionSize int
	// Type identifies the sort of allocation this request represents (and can be used
	// to identify the BlockMetadata implementation used to generate this request).
	Type AllocationRequestType
}
