package utils

import (
	"math/bits"
	"strings"
)

// FlagStringMapping renders bitflag values as a pipe-separated list of registered names
type FlagStringMapping[T ~int32 | ~uint32] struct {
	names map[T]string
}

func NewFlagStringMapping[T ~int32 | ~uint32]() FlagStringMapping[T] {
	return FlagStringMapping[T]{names: make(map[T]string)}
}

func (m FlagStringMapping[T]) Register(flag T, name string) {
	m.names[flag] = name
}

func (m FlagStringMapping[T]) FlagsToString(value T) string {
	if value == 0 {
		return "None"
	}

	var sb strings.Builder
	remaining := uint32(value)
	for remaining != 0 {
		bit := uint32(1) << bits.TrailingZeros32(remaining)
		remaining &^= bit

		if sb.Len() > 0 {
			sb.WriteRune('|')
		}

		name, ok := m.names[T(bit)]
		if !ok {
			sb.WriteString("Unknown")
			continue
		}
		sb.WriteString(name)
	}

	return sb.String()
}
