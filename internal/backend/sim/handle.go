package sim

import (
	"errors"
	"sync"

	"github.com/born-ml/gpustream/internal/native"
)

// ErrNoCurrentContext is returned by SetStream when no context is current.
var ErrNoCurrentContext = errors.New("sim: no current context")

// Handle is a simulated library session. It counts every query and rebind
// so tests can assert on exactly how the interop layer used it.
type Handle struct {
	rt   *Runtime
	kind native.HandleKind

	mu           sync.Mutex
	stream       native.StreamID
	boundContext native.ContextID
	gets         int
	sets         int
	destroyed    bool
	failNextSet  error
}

// Kind returns the library the handle belongs to.
func (h *Handle) Kind() native.HandleKind { return h.kind }

// Stream returns the currently bound native stream.
func (h *Handle) Stream() (native.StreamID, error) {
	if err := h.rt.take(FaultHandleGet); err != nil {
		return native.NoStream, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.destroyed {
		return native.NoStream, native.ErrReleased
	}
	h.gets++
	return h.stream, nil
}

// SetStream binds the handle to stream. native.NoStream selects the
// default stream. Like real library handles it requires a current context,
// and it records which one that was.
func (h *Handle) SetStream(stream native.StreamID) error {
	if err := h.rt.take(FaultHandleSet); err != nil {
		return err
	}
	current, _ := h.rt.CurrentContext()
	if current == native.NoContext {
		return ErrNoCurrentContext
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.destroyed {
		return native.ErrReleased
	}
	if err := h.failNextSet; err != nil {
		h.failNextSet = nil
		return err
	}
	h.stream = stream
	h.boundContext = current
	h.sets++
	return nil
}

// FailNextSet makes the next SetStream on this handle return err.
func (h *Handle) FailNextSet(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failNextSet = err
}

// Destroy releases the handle.
func (h *Handle) Destroy() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.destroyed = true
	return nil
}

// Bound returns the bound stream without counting a query.
func (h *Handle) Bound() native.StreamID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stream
}

// BoundContext returns the context that was current during the last rebind.
func (h *Handle) BoundContext() native.ContextID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.boundContext
}

// Rebinds returns how many successful SetStream calls the handle received.
func (h *Handle) Rebinds() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sets
}

// Queries returns how many successful Stream calls the handle received.
func (h *Handle) Queries() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gets
}

// Destroyed reports whether Destroy was called.
func (h *Handle) Destroyed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.destroyed
}

// Compile-time check that Handle implements native.Handle.
var _ native.Handle = (*Handle)(nil)
