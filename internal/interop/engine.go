package interop

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/born-ml/gpustream/internal/native"
	"github.com/sirupsen/logrus"
)

// ErrUnsupportedRuntime is returned by NewEngine when the runtime lacks a
// library the interop layer binds.
var ErrUnsupportedRuntime = errors.New("interop: runtime does not support BLAS and DNN interop")

// Engine owns a native device and context on one runtime, the engine-wide
// library handles, and the service stream.
type Engine struct {
	rt      native.Runtime
	caps    native.Capabilities
	kind    native.Kind
	device  native.Device
	context native.ContextID
	log     *logrus.Entry

	// Handle cache, created on first use and kept for the engine lifetime.
	handlesMu sync.Mutex
	handles   map[native.HandleKind]native.Handle

	// bindMu serializes handle rebinding across every stream of the engine.
	bindMu sync.Mutex

	serviceMu sync.Mutex
	service   *Stream

	// released is set once, under serviceMu, before the handles are destroyed.
	released atomic.Bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger. Streams derive their loggers from it.
func WithLogger(log *logrus.Entry) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEngine creates an engine of the given kind on dev. The runtime's
// capabilities are resolved here once; a runtime without BLAS or DNN
// support is rejected.
func NewEngine(rt native.Runtime, kind native.Kind, dev native.Device, opts ...EngineOption) (*Engine, error) {
	if rt == nil || dev == nil {
		return nil, invalidArgs("new engine", "runtime and device are required")
	}
	caps := rt.Capabilities()
	if !caps.BLAS || !caps.DNN {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRuntime, rt.Name())
	}
	if kind == native.GPU && !dev.IsGPU() {
		return nil, invalidArgs("new engine", "device %q is not a GPU", dev.Name())
	}

	ctx, err := rt.PrimaryContext(dev)
	if err != nil {
		return nil, runtimeErr("new engine", err)
	}

	discard := logrus.New()
	discard.SetOutput(io.Discard)

	e := &Engine{
		rt:      rt,
		caps:    caps,
		kind:    kind,
		device:  dev,
		context: ctx,
		log:     logrus.NewEntry(discard),
		handles: make(map[native.HandleKind]native.Handle, 2),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithFields(logrus.Fields{
		"backend": caps.Backend,
		"device":  dev.Name(),
	})
	return e, nil
}

// Kind returns the engine kind.
func (e *Engine) Kind() native.Kind { return e.kind }

// Device returns the engine's native device.
func (e *Engine) Device() native.Device { return e.device }

// Context returns the engine's native context.
func (e *Engine) Context() native.ContextID { return e.context }

// Runtime returns the runtime the engine was built on.
func (e *Engine) Runtime() native.Runtime { return e.rt }

// Capabilities returns the capabilities resolved at construction.
func (e *Engine) Capabilities() native.Capabilities { return e.caps }

// Logger returns the engine logger.
func (e *Engine) Logger() *logrus.Entry { return e.log }

// ServiceStream returns the engine's canonical in-order stream, creating
// it on first use. Its native stream is the identity every adopted queue is
// checked against. Creating it leaves the library handles alone; they are
// bound to it when it asks for them.
func (e *Engine) ServiceStream() (*Stream, error) {
	e.serviceMu.Lock()
	defer e.serviceMu.Unlock()

	if e.released.Load() {
		return nil, invalidArgs("service stream", "engine released")
	}
	if e.service != nil {
		return e.service, nil
	}

	s := NewStream(e, InOrder, nil)
	if err := s.attach(); err != nil {
		return nil, err
	}
	s.initialized = true
	e.service = s
	e.log.WithField("stream", fmt.Sprintf("%#x", uintptr(s.NativeStream()))).Debug("service stream created")
	return s, nil
}

// BLASHandle returns the cached linear-algebra handle.
func (e *Engine) BLASHandle() (native.Handle, error) {
	return e.handle(native.BLAS)
}

// DNNHandle returns the cached neural-primitive handle.
func (e *Engine) DNNHandle() (native.Handle, error) {
	return e.handle(native.DNN)
}

func (e *Engine) handle(kind native.HandleKind) (native.Handle, error) {
	e.handlesMu.Lock()
	defer e.handlesMu.Unlock()

	if e.released.Load() {
		return nil, invalidArgs("create "+kind.String()+" handle", "engine released")
	}
	if h, ok := e.handles[kind]; ok {
		return h, nil
	}
	var h native.Handle
	err := nativeCall("create "+kind.String()+" handle", func() error {
		var err error
		h, err = e.rt.NewHandle(kind)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.handles[kind] = h
	return h, nil
}

// Release releases the service stream and destroys the library handles.
// Streams built on the engine must be released first.
func (e *Engine) Release() error {
	e.serviceMu.Lock()
	if e.released.Swap(true) {
		e.serviceMu.Unlock()
		return nil
	}
	service := e.service
	e.service = nil
	e.serviceMu.Unlock()

	var errs []error
	if service != nil {
		errs = append(errs, service.Release())
	}

	e.handlesMu.Lock()
	defer e.handlesMu.Unlock()
	for kind, h := range e.handles {
		errs = append(errs, nativeCall("destroy "+kind.String()+" handle", h.Destroy))
		delete(e.handles, kind)
	}
	return errors.Join(errs...)
}
