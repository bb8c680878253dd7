// Package sim implements an in-process simulated native runtime.
//
// It hands out deterministic device, context and stream identifiers, tracks
// the current context, executes command groups on one worker goroutine per
// native stream, and records every handle binding so callers can observe
// exactly what the interop layer did. Faults can be injected into each
// native entry point.
package sim

import (
	"fmt"
	"sync"

	"github.com/born-ml/gpustream/internal/native"
)

// Fault names a native entry point that can be made to fail.
type Fault int

// Injectable faults. Each injected fault fires once.
const (
	FaultCreateQueue Fault = iota
	FaultSubmit
	FaultNewHandle
	FaultHandleGet
	FaultHandleSet
	FaultSetContext
)

// DeviceSpec describes a simulated device.
type DeviceSpec struct {
	Name string
	GPU  bool
}

// Device is a simulated native device.
type Device struct {
	id   native.DeviceID
	gpu  bool
	name string
}

// Native returns the device identifier.
func (d *Device) Native() native.DeviceID { return d.id }

// IsGPU reports whether the device is a GPU.
func (d *Device) IsGPU() bool { return d.gpu }

// Name returns the device name.
func (d *Device) Name() string { return d.name }

// Option configures a Runtime.
type Option func(*Runtime)

// WithDevices replaces the default device list.
func WithDevices(specs ...DeviceSpec) Option {
	return func(rt *Runtime) {
		rt.specs = specs
	}
}

// WithoutLibrary removes BLAS or DNN support from the runtime.
func WithoutLibrary(kind native.HandleKind) Option {
	return func(rt *Runtime) {
		switch kind {
		case native.BLAS:
			rt.caps.BLAS = false
		case native.DNN:
			rt.caps.DNN = false
		}
	}
}

// Runtime is the simulated native runtime. It is safe for concurrent use.
type Runtime struct {
	mu sync.Mutex

	specs   []DeviceSpec
	devices []*Device
	caps    native.Capabilities

	primary  map[native.DeviceID]native.ContextID
	contexts map[native.ContextID]native.DeviceID
	current  native.ContextID
	switches int

	streams map[native.StreamID]*worker
	handles []*Handle
	faults  map[Fault]error

	nextID uintptr
	closed bool
}

// New creates a simulated runtime. Without options it exposes one GPU and
// one CPU device.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		specs: []DeviceSpec{
			{Name: "sim-gpu0", GPU: true},
			{Name: "sim-cpu0", GPU: false},
		},
		caps: native.Capabilities{
			Backend:        "sim",
			ContextBinding: true,
			BLAS:           true,
			DNN:            true,
		},
		primary:  make(map[native.DeviceID]native.ContextID),
		contexts: make(map[native.ContextID]native.DeviceID),
		streams:  make(map[native.StreamID]*worker),
		faults:   make(map[Fault]error),
		nextID:   0x1000,
	}
	for _, opt := range opts {
		opt(rt)
	}
	for _, spec := range rt.specs {
		rt.devices = append(rt.devices, &Device{
			id:   native.DeviceID(rt.allocLocked()),
			gpu:  spec.GPU,
			name: spec.Name,
		})
	}
	return rt
}

// allocLocked returns a fresh non-zero identifier (must hold mu).
func (rt *Runtime) allocLocked() uintptr {
	id := rt.nextID
	rt.nextID += 0x10
	return id
}

// Name returns "sim".
func (rt *Runtime) Name() string { return "sim" }

// Capabilities returns the runtime capabilities.
func (rt *Runtime) Capabilities() native.Capabilities { return rt.caps }

// Devices returns the simulated devices in declaration order.
func (rt *Runtime) Devices() ([]native.Device, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.closed {
		return nil, native.ErrReleased
	}
	out := make([]native.Device, len(rt.devices))
	for i, d := range rt.devices {
		out[i] = d
	}
	return out, nil
}

// PrimaryContext returns the primary context for dev, creating it on first use.
func (rt *Runtime) PrimaryContext(dev native.Device) (native.ContextID, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := rt.checkDeviceLocked(dev); err != nil {
		return native.NoContext, err
	}
	if ctx, ok := rt.primary[dev.Native()]; ok {
		return ctx, nil
	}
	ctx := native.ContextID(rt.allocLocked())
	rt.primary[dev.Native()] = ctx
	rt.contexts[ctx] = dev.Native()
	return ctx, nil
}

// NewContext creates an additional, non-primary context on dev.
func (rt *Runtime) NewContext(dev native.Device) (native.ContextID, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := rt.checkDeviceLocked(dev); err != nil {
		return native.NoContext, err
	}
	ctx := native.ContextID(rt.allocLocked())
	rt.contexts[ctx] = dev.Native()
	return ctx, nil
}

func (rt *Runtime) checkDeviceLocked(dev native.Device) error {
	if rt.closed {
		return native.ErrReleased
	}
	for _, d := range rt.devices {
		if d.id == dev.Native() {
			return nil
		}
	}
	return fmt.Errorf("sim: unknown device %#x", uintptr(dev.Native()))
}

// CurrentContext returns the context current on the runtime.
func (rt *Runtime) CurrentContext() (native.ContextID, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.current, nil
}

// SetCurrentContext makes ctx current. native.NoContext clears it.
func (rt *Runtime) SetCurrentContext(ctx native.ContextID) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := rt.takeFaultLocked(FaultSetContext); err != nil {
		return err
	}
	if ctx != native.NoContext {
		if _, ok := rt.contexts[ctx]; !ok {
			return fmt.Errorf("sim: unknown context %#x", uintptr(ctx))
		}
	}
	if rt.current != ctx {
		rt.switches++
	}
	rt.current = ctx
	return nil
}

// ContextSwitches returns how many times the current context changed.
func (rt *Runtime) ContextSwitches() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.switches
}

// CreateQueue creates a queue with a brand-new native stream.
func (rt *Runtime) CreateQueue(ctx native.ContextID, dev native.Device, order native.Order) (native.Queue, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := rt.takeFaultLocked(FaultCreateQueue); err != nil {
		return nil, err
	}
	if err := rt.checkQueueArgsLocked(ctx, dev); err != nil {
		return nil, err
	}
	stream := native.StreamID(rt.allocLocked())
	w := newWorker()
	rt.streams[stream] = w
	return rt.newQueueLocked(ctx, dev, stream, order, w), nil
}

// WrapStream builds a queue over an existing native stream, the way an
// application hands a native stream it already owns to a managed queue.
// The context and device are taken as given and are not checked against
// the stream's origin.
func (rt *Runtime) WrapStream(ctx native.ContextID, dev native.Device, stream native.StreamID) (*Queue, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := rt.checkQueueArgsLocked(ctx, dev); err != nil {
		return nil, err
	}
	w, ok := rt.streams[stream]
	if !ok {
		return nil, fmt.Errorf("sim: unknown stream %#x", uintptr(stream))
	}
	return rt.newQueueLocked(ctx, dev, stream, native.InOrder, w), nil
}

func (rt *Runtime) checkQueueArgsLocked(ctx native.ContextID, dev native.Device) error {
	if err := rt.checkDeviceLocked(dev); err != nil {
		return err
	}
	if _, ok := rt.contexts[ctx]; !ok {
		return fmt.Errorf("sim: unknown context %#x", uintptr(ctx))
	}
	return nil
}

func (rt *Runtime) newQueueLocked(ctx native.ContextID, dev native.Device, stream native.StreamID, order native.Order, w *worker) *Queue {
	w.refs++
	return &Queue{
		rt:     rt,
		dev:    dev,
		ctx:    ctx,
		stream: stream,
		order:  order,
		w:      w,
	}
}

// releaseStream drops one queue reference on stream's worker.
func (rt *Runtime) releaseStream(stream native.StreamID) {
	rt.mu.Lock()
	w, ok := rt.streams[stream]
	last := false
	if ok {
		w.refs--
		if w.refs <= 0 {
			delete(rt.streams, stream)
			last = true
		}
	}
	rt.mu.Unlock()

	if last {
		w.stop()
	}
}

// LiveStreams returns the number of native streams with at least one queue.
func (rt *Runtime) LiveStreams() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.streams)
}

// NewHandle creates a library handle. Handles start bound to native.NoStream.
func (rt *Runtime) NewHandle(kind native.HandleKind) (native.Handle, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.closed {
		return nil, native.ErrReleased
	}
	if err := rt.takeFaultLocked(FaultNewHandle); err != nil {
		return nil, err
	}
	if (kind == native.BLAS && !rt.caps.BLAS) || (kind == native.DNN && !rt.caps.DNN) {
		return nil, fmt.Errorf("sim: %s library not available", kind)
	}
	h := &Handle{rt: rt, kind: kind}
	rt.handles = append(rt.handles, h)
	return h, nil
}

// Handles returns every handle of kind created so far.
func (rt *Runtime) Handles(kind native.HandleKind) []*Handle {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	var out []*Handle
	for _, h := range rt.handles {
		if h.kind == kind {
			out = append(out, h)
		}
	}
	return out
}

// Inject arms a one-shot fault: the next call to the matching entry point
// returns err.
func (rt *Runtime) Inject(f Fault, err error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.faults[f] = err
}

func (rt *Runtime) takeFaultLocked(f Fault) error {
	err, ok := rt.faults[f]
	if !ok {
		return nil
	}
	delete(rt.faults, f)
	return err
}

// take is takeFaultLocked for callers not holding mu.
func (rt *Runtime) take(f Fault) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.takeFaultLocked(f)
}

// Close stops every stream worker. Queues and handles fail afterwards.
func (rt *Runtime) Close() error {
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return nil
	}
	rt.closed = true
	workers := make([]*worker, 0, len(rt.streams))
	for id, w := range rt.streams {
		workers = append(workers, w)
		delete(rt.streams, id)
	}
	rt.mu.Unlock()

	for _, w := range workers {
		w.stop()
	}
	return nil
}

// Compile-time check that Runtime implements native.Runtime.
var _ native.Runtime = (*Runtime)(nil)
