// Package native defines the backend-neutral vocabulary shared by every
// native runtime: identifiers for devices, contexts and streams, the
// execution queue abstraction, dependency events, and library handles.
//
// Identifiers are opaque comparable values. They are only ever compared for
// equality and never dereferenced outside the runtime that issued them.
package native

import "fmt"

// Kind is the device class an engine or device belongs to.
type Kind int

// Supported device kinds.
const (
	CPU Kind = iota
	GPU
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case CPU:
		return "cpu"
	case GPU:
		return "gpu"
	default:
		return "unknown"
	}
}

// ParseKind converts "cpu" or "gpu" into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "cpu":
		return CPU, nil
	case "gpu":
		return GPU, nil
	default:
		return CPU, fmt.Errorf("native: unknown device kind %q", s)
	}
}

// DeviceID identifies a native device.
type DeviceID uintptr

// ContextID identifies a native execution context.
type ContextID uintptr

// StreamID identifies a native execution stream.
type StreamID uintptr

// NoContext is the zero context, meaning no context is current.
const NoContext ContextID = 0

// NoStream is the zero stream. Handles report it before their first binding.
const NoStream StreamID = 0

// Device describes a native device.
type Device interface {
	// Native returns the backend's identifier for this device.
	Native() DeviceID
	// IsGPU reports whether the device has GPU capability.
	IsGPU() bool
	// Name returns a descriptive device name.
	Name() string
}

// Identity is the native (device, context, stream) triple behind a queue.
// It is ephemeral: extract it, compare it, drop it.
type Identity struct {
	Device  DeviceID
	Context ContextID
	Stream  StreamID
}

// IdentityOf extracts the native identity of q.
func IdentityOf(q Queue) Identity {
	return Identity{
		Device:  q.Device().Native(),
		Context: q.Context(),
		Stream:  q.Stream(),
	}
}

// String formats the identity for logs.
func (id Identity) String() string {
	return fmt.Sprintf("device=%#x context=%#x stream=%#x", uintptr(id.Device), uintptr(id.Context), uintptr(id.Stream))
}
