//go:build windows

package webgpu

import (
	"errors"
	"sync"

	"github.com/born-ml/gpustream/internal/native"
)

var errNoContext = errors.New("webgpu: no current context")

// Handle is a compute session (matmul or conv pipelines) that records which
// queue its dispatches go to.
type Handle struct {
	rt   *Runtime
	kind native.HandleKind

	mu        sync.Mutex
	stream    native.StreamID
	destroyed bool
}

// Kind returns the handle kind.
func (h *Handle) Kind() native.HandleKind { return h.kind }

// Stream returns the bound queue identifier.
func (h *Handle) Stream() (native.StreamID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return native.NoStream, native.ErrReleased
	}
	return h.stream, nil
}

// SetStream binds the session to a queue. The adapter context must be
// current.
func (h *Handle) SetStream(stream native.StreamID) error {
	if cur, _ := h.rt.CurrentContext(); cur != h.rt.contextID() {
		return errNoContext
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return native.ErrReleased
	}
	h.stream = stream
	return nil
}

// Destroy ends the session.
func (h *Handle) Destroy() error {
	h.destroy()
	return nil
}

func (h *Handle) destroy() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.destroyed = true
}

// Compile-time check that Handle implements native.Handle.
var _ native.Handle = (*Handle)(nil)
