//go:build windows

package webgpu

import (
	"context"
	"fmt"
	"sync"

	"github.com/born-ml/gpustream/internal/native"
	"github.com/go-webgpu/webgpu/wgpu"
)

// Queue submits command groups to the device's default queue. All queues
// of a runtime share that queue, so their work is ordered together.
type Queue struct {
	rt    *Runtime
	order native.Order

	mu       sync.Mutex
	encoder  *wgpu.CommandEncoder // non-nil only while a group is populating
	last     native.Event
	released bool
}

// Device returns the runtime's device.
func (q *Queue) Device() native.Device { return q.rt.dev }

// Context returns the adapter context.
func (q *Queue) Context() native.ContextID { return q.rt.contextID() }

// Stream returns the device queue's identifier.
func (q *Queue) Stream() native.StreamID { return q.rt.streamID() }

// Order returns the requested ordering. WebGPU executes in order regardless.
func (q *Queue) Order() native.Order { return q.order }

// Encoder returns the command encoder of the group being populated. It is
// only valid inside the populate callback and the group's operations.
func (q *Queue) Encoder() *wgpu.CommandEncoder {
	return q.encoder
}

// Submit encodes one command group and submits it as a single command
// buffer. Dependencies from other queues are awaited on the host first.
// The returned event completes once the buffer is handed to the device
// queue; Wait polls the device until that work has executed.
func (q *Queue) Submit(deps []native.Event, populate func(*native.CommandGroup) error) (native.Event, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.released {
		return nil, native.ErrReleased
	}
	if err := native.WaitAll(context.Background(), deps...); err != nil {
		return nil, fmt.Errorf("webgpu: dependency failed: %w", err)
	}

	encoder := q.rt.device.CreateCommandEncoder(nil)
	if encoder == nil {
		return nil, fmt.Errorf("webgpu: failed to create command encoder")
	}
	q.encoder = encoder
	defer func() {
		q.encoder = nil
		encoder.Release()
	}()

	cg := native.NewCommandGroup(q.Stream(), q.Context(), deps)
	if err := populate(cg); err != nil {
		return nil, err
	}
	for _, op := range cg.Ops() {
		if err := op.Run(); err != nil {
			return nil, fmt.Errorf("webgpu: %s: %w", op.Name, err)
		}
	}

	cmdBuffer := encoder.Finish(nil)
	if cmdBuffer == nil {
		return nil, fmt.Errorf("webgpu: failed to finish command buffer")
	}
	q.rt.queue.Submit(cmdBuffer)
	cmdBuffer.Release()

	ev := native.NewCompletion()
	ev.Complete(nil)
	q.last = ev
	return ev, nil
}

// Wait returns once the last submitted group completed and the device
// queue has drained, or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	last, released := q.last, q.released
	q.mu.Unlock()

	if err := native.WaitAll(ctx, last); err != nil {
		return err
	}
	if released || last == nil {
		return nil
	}
	for !q.rt.device.Poll(true) {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Release detaches the queue. The device queue itself belongs to the
// runtime and is released by Close.
func (q *Queue) Release() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.released = true
	return nil
}

// Compile-time check that Queue implements native.Queue.
var _ native.Queue = (*Queue)(nil)
