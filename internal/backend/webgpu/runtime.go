//go:build windows

// Package webgpu implements a native runtime on WebGPU.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
//
// WebGPU maps onto the native vocabulary as follows: the adapter is the
// context, the device is the device, and the device's default queue is the
// one native stream. Every queue created on the runtime wraps that queue.
package webgpu

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/born-ml/gpustream/internal/native"
	"github.com/go-webgpu/webgpu/wgpu"
)

// Device is the WebGPU device as a native device.
type Device struct {
	device *wgpu.Device
	name   string
}

// Native returns the device identifier.
func (d *Device) Native() native.DeviceID {
	return native.DeviceID(uintptr(unsafe.Pointer(d.device)))
}

// IsGPU reports true: the runtime requests a high-performance adapter and
// never a fallback one.
func (d *Device) IsGPU() bool { return true }

// Name returns the device name.
func (d *Device) Name() string { return d.name }

// Runtime implements native.Runtime on a single WebGPU adapter and device.
type Runtime struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	dev      *Device

	mu      sync.Mutex
	current native.ContextID
	handles []*Handle
	closed  bool
}

// New creates a WebGPU runtime.
// Returns an error if WebGPU is not available or initialization fails.
func New() (rt *Runtime, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			rt = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance, instErr := wgpu.CreateInstance(nil)
	if instErr != nil {
		return nil, fmt.Errorf("webgpu: failed to create instance: %w", instErr)
	}
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", adapterErr)
	}

	device, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", deviceErr)
	}

	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to get queue")
	}

	return &Runtime{
		instance: instance,
		adapter:  adapter,
		device:   device,
		queue:    queue,
		dev:      &Device{device: device, name: "webgpu0"},
	}, nil
}

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() (available bool) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance, err := wgpu.CreateInstance(nil)
	if err != nil {
		return false
	}
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()

	return true
}

func (rt *Runtime) contextID() native.ContextID {
	return native.ContextID(uintptr(unsafe.Pointer(rt.adapter)))
}

func (rt *Runtime) streamID() native.StreamID {
	return native.StreamID(uintptr(unsafe.Pointer(rt.queue)))
}

// Name returns "webgpu".
func (rt *Runtime) Name() string { return "webgpu" }

// Capabilities reports BLAS and DNN sessions backed by the device queue.
// WebGPU has no current-context state; it is tracked as bookkeeping.
func (rt *Runtime) Capabilities() native.Capabilities {
	return native.Capabilities{
		Backend:        "webgpu",
		ContextBinding: false,
		BLAS:           true,
		DNN:            true,
	}
}

// Devices returns the runtime's single device.
func (rt *Runtime) Devices() ([]native.Device, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return nil, native.ErrReleased
	}
	return []native.Device{rt.dev}, nil
}

// PrimaryContext returns the adapter context for dev.
func (rt *Runtime) PrimaryContext(dev native.Device) (native.ContextID, error) {
	if dev.Native() != rt.dev.Native() {
		return native.NoContext, fmt.Errorf("webgpu: unknown device %#x", uintptr(dev.Native()))
	}
	return rt.contextID(), nil
}

// CurrentContext returns the context recorded as current.
func (rt *Runtime) CurrentContext() (native.ContextID, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.current, nil
}

// SetCurrentContext records ctx as current.
func (rt *Runtime) SetCurrentContext(ctx native.ContextID) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if ctx != native.NoContext && ctx != rt.contextID() {
		return fmt.Errorf("webgpu: unknown context %#x", uintptr(ctx))
	}
	rt.current = ctx
	return nil
}

// CreateQueue returns a queue over the device's default queue.
func (rt *Runtime) CreateQueue(ctx native.ContextID, dev native.Device, order native.Order) (native.Queue, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.closed {
		return nil, native.ErrReleased
	}
	if ctx != rt.contextID() || dev.Native() != rt.dev.Native() {
		return nil, fmt.Errorf("webgpu: context %#x and device %#x do not belong to this runtime", uintptr(ctx), uintptr(dev.Native()))
	}
	return &Queue{rt: rt, order: order}, nil
}

// NewHandle creates a library session bound to no stream.
func (rt *Runtime) NewHandle(kind native.HandleKind) (native.Handle, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.closed {
		return nil, native.ErrReleased
	}
	h := &Handle{rt: rt, kind: kind}
	rt.handles = append(rt.handles, h)
	return h, nil
}

// Close releases all WebGPU resources.
// Must be called when the runtime is no longer needed.
func (rt *Runtime) Close() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.closed {
		return nil
	}
	rt.closed = true

	for _, h := range rt.handles {
		h.destroy()
	}
	rt.handles = nil

	// Release WebGPU objects
	if rt.queue != nil {
		rt.queue.Release()
		rt.queue = nil
	}
	if rt.device != nil {
		rt.device.Release()
		rt.device = nil
	}
	if rt.adapter != nil {
		rt.adapter.Release()
		rt.adapter = nil
	}
	if rt.instance != nil {
		rt.instance.Release()
		rt.instance = nil
	}
	return nil
}

// Compile-time check that Runtime implements native.Runtime.
var _ native.Runtime = (*Runtime)(nil)
