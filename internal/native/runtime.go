package native

import "errors"

// ErrReleased is returned by operations on a released queue, handle or runtime.
var ErrReleased = errors.New("native: object already released")

// HandleKind names the library a handle belongs to.
type HandleKind int

// Library handle kinds.
const (
	// BLAS is the linear-algebra library session.
	BLAS HandleKind = iota
	// DNN is the neural-primitive library session.
	DNN
)

// String returns the metric/log label for the handle kind.
func (k HandleKind) String() string {
	switch k {
	case BLAS:
		return "blas"
	case DNN:
		return "dnn"
	default:
		return "unknown"
	}
}

// Handle is a library session that associates submitted library calls with
// one native stream at a time.
type Handle interface {
	Kind() HandleKind
	// Stream returns the native stream the handle is currently bound to.
	Stream() (StreamID, error)
	// SetStream rebinds the handle. The right context must be current.
	SetStream(StreamID) error
	Destroy() error
}

// Capabilities describes what a runtime can do. Engines resolve it once at
// construction and never probe the runtime's concrete type afterwards.
type Capabilities struct {
	Backend string
	// ContextBinding reports whether the runtime has a notion of a current
	// context. Runtimes without one treat SetCurrentContext as bookkeeping.
	ContextBinding bool
	BLAS           bool
	DNN            bool
}

// Runtime is a native backend: device discovery, contexts, queues and
// library handles.
type Runtime interface {
	Name() string
	Capabilities() Capabilities

	Devices() ([]Device, error)
	// PrimaryContext returns the context engines on dev share.
	PrimaryContext(dev Device) (ContextID, error)

	CurrentContext() (ContextID, error)
	SetCurrentContext(ContextID) error

	CreateQueue(ctx ContextID, dev Device, order Order) (Queue, error)
	NewHandle(kind HandleKind) (Handle, error)

	Close() error
}
