package memutils

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

// ErrOutOfMemory is returned by block metadata when no free region is large enough to satisfy a request.
// Requests are never partially satisfied and blocks are never grown.
var ErrOutOfMemory error = errors.New("no free region large enough for the requested size")

// ErrInvalidOffset is returned when freeing an offset at which no live allocation begins
var ErrInvalidOffset error = errors.New("no allocation begins at the provided offset")

// ErrInvalidSize is returned when an allocation of zero or negative size is requested
var ErrInvalidSize error = errors.New("allocation size must be a positive integer")
