package interop

import (
	"fmt"
	"strings"

	"github.com/born-ml/gpustream/internal/native"
)

// Flags is the stream flag set. A usable set names at least one ordering.
type Flags uint32

// Stream flags.
const (
	InOrder Flags = 1 << iota
	OutOfOrder
)

// Valid reports whether f names an ordering.
func (f Flags) Valid() bool {
	return f&(InOrder|OutOfOrder) != 0
}

// Order returns the queue ordering for a self-created queue. In-order wins
// when both are set.
func (f Flags) Order() native.Order {
	if f&InOrder != 0 {
		return native.InOrder
	}
	return native.OutOfOrder
}

// String returns the flag names joined by "|".
func (f Flags) String() string {
	var parts []string
	if f&InOrder != 0 {
		parts = append(parts, "in-order")
	}
	if f&OutOfOrder != 0 {
		parts = append(parts, "out-of-order")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseFlags converts flag names ("in-order", "out-of-order") into Flags.
// An empty list yields an empty set, which Init rejects.
func ParseFlags(names []string) (Flags, error) {
	var f Flags
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "in-order", "in_order":
			f |= InOrder
		case "out-of-order", "out_of_order":
			f |= OutOfOrder
		default:
			return 0, fmt.Errorf("interop: unknown stream flag %q", name)
		}
	}
	return f, nil
}
