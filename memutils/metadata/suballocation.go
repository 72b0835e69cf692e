package metadata

// Suballocation is a snapshot of one region of a block
type Suballocation struct {
	Offset   int
	Size     int
	UserData any
	Free     bool
}

// End is the first offset past the region
func (s Suballocation) End() int {
	return s.Offset + s.Size
}
