package gralloc

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

const (
	// HandleMagic identifies a live buffer handle
	HandleMagic int32 = 0x3141592

	handleHeaderSize = 12
	handleNumFds     = 1
	// handleNumInts counts every integer after the descriptors: magic, flags, size, offset,
	// type, lock state, write owner, pid, and the two halves of the physical address
	handleNumInts = 10

	// HandleVersion is the shape tag of a handle: the size of the wire header
	HandleVersion int32 = handleHeaderSize
	// HandleWireSize is the number of bytes produced by Handle.MarshalBinary
	HandleWireSize = handleHeaderSize + 4*(handleNumFds+handleNumInts)
)

// LockState is the lock bitfield shared by every user of a buffer. The allocator only sets
// the mapped bit on pool buffers; consumers coordinate the rest.
type LockState uint32

const (
	LockStateWrite    LockState = 1 << 31
	LockStateMapped   LockState = 1 << 30
	LockStateReadMask LockState = 0x3FFFFFFF
)

func (s LockState) IsWriteLocked() bool { return s&LockStateWrite != 0 }
func (s LockState) IsMapped() bool      { return s&LockStateMapped != 0 }
func (s LockState) Readers() int        { return int(s & LockStateReadMask) }

// Handle is a self-describing reference to one allocated buffer. It can be serialized with
// MarshalBinary and reconstructed in another process with DecodeHandle.
type Handle struct {
	Version int32
	NumFds  int32
	NumInts int32

	FD    int
	Magic int32
	Flags HandleFlags
	// Size is the number of bytes reserved for the buffer, rounded up to the page size
	Size int
	// Offset is the byte offset of the buffer inside its pool or the display surface
	Offset int
	Type   BufferType
	// Base is the buffer's memory in this process. It is not serialized.
	Base Mapping
	// Phys is the physical address of the buffer, or 0 when it is not visible to hardware
	Phys       uint64
	LockState  LockState
	WriteOwner int32
	PID        int32
}

func newHandle(fd int, size int, flags HandleFlags, bufferType BufferType, pid int) *Handle {
	return &Handle{
		Version: HandleVersion,
		NumFds:  handleNumFds,
		NumInts: handleNumInts,
		FD:      fd,
		Magic:   HandleMagic,
		Flags:   flags,
		Size:    size,
		Type:    bufferType,
		PID:     int32(pid),
	}
}

// Validate reports whether h looks like a live buffer handle. It checks the shape of the
// handle before its magic, and never panics.
func (h *Handle) Validate() error {
	if h == nil {
		return errors.Mark(errors.New("nil buffer handle"), ErrInvalidHandle)
	}

	if h.Version != HandleVersion || h.NumFds != handleNumFds || h.NumInts != handleNumInts {
		return errors.Mark(errors.Newf("buffer handle has the wrong shape: version %d, %d fds, %d ints",
			h.Version, h.NumFds, h.NumInts), ErrInvalidHandle)
	}

	if h.Magic != HandleMagic {
		return errors.Mark(errors.Newf("buffer handle has bad magic %#x", h.Magic), ErrInvalidHandle)
	}

	return nil
}

func (h *Handle) isFramebuffer() bool { return h.Flags&HandleFlagFramebuffer != 0 }
func (h *Handle) usesPmem() bool      { return h.Flags&HandleFlagUsesPmem != 0 }

func (h *Handle) destroy() {
	h.Magic = 0
	h.Version = 0
	h.Base = Mapping{}
}

// MarshalBinary writes the handle's wire form. Base is not included.
func (h *Handle) MarshalBinary() ([]byte, error) {
	err := h.Validate()
	if err != nil {
		return nil, err
	}

	for _, field := range []int{h.FD, h.Size, h.Offset} {
		if field < math.MinInt32 || field > math.MaxInt32 {
			return nil, errors.Mark(errors.Newf("buffer handle field %d does not fit the wire format", field), ErrInvalidHandle)
		}
	}

	out := make([]byte, 0, HandleWireSize)
	for _, field := range []int32{
		h.Version,
		h.NumFds,
		h.NumInts,
		int32(h.FD),
		h.Magic,
		int32(h.Flags),
		int32(h.Size),
		int32(h.Offset),
		int32(h.Type),
		int32(h.LockState),
		h.WriteOwner,
		h.PID,
	} {
		out = binary.LittleEndian.AppendUint32(out, uint32(field))
	}
	out = binary.LittleEndian.AppendUint64(out, h.Phys)

	return out, nil
}

// DecodeHandle reconstructs a handle from its wire form. The bytes are validated before a
// Handle is built, so arbitrary input is safe. The decoded handle's Base is invalid.
func DecodeHandle(b []byte) (*Handle, error) {
	if len(b) < handleHeaderSize {
		return nil, errors.Mark(errors.Newf("buffer handle is %d bytes, too short for a header", len(b)), ErrInvalidHandle)
	}

	readInt := func(index int) int32 {
		return int32(binary.LittleEndian.Uint32(b[index*4:]))
	}

	version, numFds, numInts := readInt(0), readInt(1), readInt(2)
	if version != HandleVersion || numFds != handleNumFds || numInts != handleNumInts {
		return nil, errors.Mark(errors.Newf("buffer handle has the wrong shape: version %d, %d fds, %d ints",
			version, numFds, numInts), ErrInvalidHandle)
	}

	if len(b) != HandleWireSize {
		return nil, errors.Mark(errors.Newf("buffer handle is %d bytes, expected %d", len(b), HandleWireSize), ErrInvalidHandle)
	}

	h := &Handle{
		Version:    version,
		NumFds:     numFds,
		NumInts:    numInts,
		FD:         int(readInt(3)),
		Magic:      readInt(4),
		Flags:      HandleFlags(readInt(5)),
		Size:       int(readInt(6)),
		Offset:     int(readInt(7)),
		Type:       BufferType(readInt(8)),
		LockState:  LockState(uint32(readInt(9))),
		WriteOwner: readInt(10),
		PID:        readInt(11),
		Phys:       binary.LittleEndian.Uint64(b[48:]),
	}

	err := h.Validate()
	if err != nil {
		return nil, err
	}

	return h, nil
}

func (h *Handle) printParameters(json *jwriter.ObjectState) {
	json.Name("Type").String(h.Type.String())
	json.Name("Flags").String(h.Flags.String())
	json.Name("Size").Int(h.Size)
	json.Name("Offset").Int(h.Offset)
	if h.Phys != 0 {
		json.Name("Phys").String(fmt.Sprintf("%#x", h.Phys))
	}
	json.Name("PID").Int(int(h.PID))
}
