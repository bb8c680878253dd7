package native

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Order is the execution ordering a queue guarantees.
type Order int

// Queue orderings.
const (
	InOrder Order = iota
	OutOfOrder
)

// String returns a human-readable name for the order.
func (o Order) String() string {
	if o == OutOfOrder {
		return "out-of-order"
	}
	return "in-order"
}

// Queue is an execution channel through which work reaches a device.
//
// Device, Context and Stream return the native identity of the queue. They
// are observers: the queue keeps ownership of everything they name.
type Queue interface {
	Device() Device
	Context() ContextID
	Stream() StreamID
	Order() Order

	// Submit enqueues one unit of work. populate fills the command group with
	// native operations; it runs before Submit returns. The returned event
	// completes once every operation in the group has executed.
	Submit(deps []Event, populate func(*CommandGroup) error) (Event, error)

	// Wait blocks until all submitted work has completed or ctx is done.
	Wait(ctx context.Context) error

	// Release frees the queue. Calling it on a queue that is still shared is
	// the caller's bug.
	Release() error
}

// Event is the completion token of one submitted unit of work.
type Event interface {
	ID() uuid.UUID
	Done() <-chan struct{}
	Err() error
}

// Completion is the Event implementation runtimes hand out.
type Completion struct {
	id   uuid.UUID
	done chan struct{}
	once sync.Once
	err  error
}

// NewCompletion returns a pending completion with a fresh identifier.
func NewCompletion() *Completion {
	return &Completion{id: uuid.New(), done: make(chan struct{})}
}

// ID returns the unique identifier of the event.
func (c *Completion) ID() uuid.UUID { return c.id }

// Done is closed once the work finished.
func (c *Completion) Done() <-chan struct{} { return c.done }

// Err returns the execution error, valid after Done is closed.
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Complete marks the event finished. Only the first call has an effect.
func (c *Completion) Complete(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

// WaitAll blocks until every event completed, returning the first execution
// error encountered, or ctx.Err() if ctx ends first.
func WaitAll(ctx context.Context, events ...Event) error {
	var first error
	for _, ev := range events {
		if ev == nil {
			continue
		}
		select {
		case <-ev.Done():
			if err := ev.Err(); err != nil && first == nil {
				first = err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return first
}

// Op is one native operation recorded into a command group.
type Op struct {
	Name string
	Run  func() error
}

// CommandGroup collects the native operations of one unit of work together
// with the native stream and context they will run against.
type CommandGroup struct {
	stream  StreamID
	context ContextID
	deps    []Event
	ops     []Op
}

// NewCommandGroup creates a command group targeting the given stream and
// context, ordered after deps.
func NewCommandGroup(stream StreamID, ctx ContextID, deps []Event) *CommandGroup {
	return &CommandGroup{
		stream:  stream,
		context: ctx,
		deps:    append([]Event(nil), deps...),
	}
}

// NativeStream returns the stream the group's operations are enqueued on.
func (cg *CommandGroup) NativeStream() StreamID { return cg.stream }

// NativeContext returns the context the group's operations run in.
func (cg *CommandGroup) NativeContext() ContextID { return cg.context }

// DependsOn adds predecessors to the group.
func (cg *CommandGroup) DependsOn(events ...Event) {
	cg.deps = append(cg.deps, events...)
}

// Deps returns the group's predecessors.
func (cg *CommandGroup) Deps() []Event { return cg.deps }

// Enqueue records a native operation. Operations run in recording order.
func (cg *CommandGroup) Enqueue(name string, run func() error) {
	cg.ops = append(cg.ops, Op{Name: name, Run: run})
}

// Ops returns the recorded operations.
func (cg *CommandGroup) Ops() []Op { return cg.ops }
