package gralloc

import "github.com/cockroachdb/errors"

// Every error returned by this package is marked with one of these sentinels; test for
// them with errors.Is.
var (
	// ErrInvalidArgument marks a malformed size, format, or usage combination. Nothing was allocated.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrOutOfMemory marks a request that could not be satisfied because a pool, the framebuffer
	// ring, or the anonymous shared memory allocator had no room for it. Retrying later or
	// requesting less may succeed.
	ErrOutOfMemory = errors.New("out of memory")
	// ErrResourceUnavailable marks a backing device that could not be opened or mapped
	ErrResourceUnavailable = errors.New("resource unavailable")
	// ErrInvalidHandle marks a handle that failed validation or does not match the allocator state
	ErrInvalidHandle = errors.New("invalid buffer handle")
	// ErrDeviceIO marks a connect or map failure after a pool reservation succeeded. The reservation
	// has always been rolled back by the time it is returned, and the error is marked
	// ErrResourceUnavailable as well.
	ErrDeviceIO = errors.New("device i/o failure")

	// errBackingUnavailable marks pool initialization failures, the only failures that permit
	// an anonymous shared memory fallback
	errBackingUnavailable = errors.New("pool backing unavailable")
)
