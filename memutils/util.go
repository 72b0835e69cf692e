package memutils

import (
	"os"

	cerrors "github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

// Number is any integer type the alignment helpers accept
type Number interface {
	constraints.Integer
}

// CheckPow2 returns PowerOfTwoError, annotated with name, if number is not a power of two.
// Zero and negative values are rejected as well.
func CheckPow2[T Number](number T, name string) error {
	if number <= 0 || number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

func AlignUp(value int, alignment uint) int {
	return (value + int(alignment) - 1) & int(^(alignment - 1))
}

func AlignDown(value int, alignment uint) int {
	return value & int(^(alignment - 1))
}

// PageSize returns the page size of the host. Pool arenas round every allocation up to it.
func PageSize() int {
	return os.Getpagesize()
}

// RoundUpToPageSize rounds size up to the next multiple of pageSize, which must be a power of two.
func RoundUpToPageSize(size int, pageSize int) int {
	return AlignUp(size, uint(pageSize))
}
