package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/born-ml/gpustream/internal/native"
)

// Queue is a simulated execution queue over one native stream. Several
// queues may wrap the same stream; they then share its worker and its
// FIFO order.
type Queue struct {
	rt     *Runtime
	dev    native.Device
	ctx    native.ContextID
	stream native.StreamID
	order  native.Order
	w      *worker

	mu        sync.Mutex
	last      native.Event
	submitted int
	released  bool
}

// Device returns the queue's device.
func (q *Queue) Device() native.Device { return q.dev }

// Context returns the queue's native context.
func (q *Queue) Context() native.ContextID { return q.ctx }

// Stream returns the queue's native stream.
func (q *Queue) Stream() native.StreamID { return q.stream }

// Order returns the ordering the queue was created with. The simulated
// worker always executes in submission order, which satisfies both.
func (q *Queue) Order() native.Order { return q.order }

// Submit populates a command group and hands its operations to the stream
// worker. A populate error aborts the submission with nothing enqueued.
func (q *Queue) Submit(deps []native.Event, populate func(*native.CommandGroup) error) (native.Event, error) {
	q.mu.Lock()
	released := q.released
	q.mu.Unlock()
	if released {
		return nil, native.ErrReleased
	}
	if err := q.rt.take(FaultSubmit); err != nil {
		return nil, err
	}

	cg := native.NewCommandGroup(q.stream, q.ctx, deps)
	if err := populate(cg); err != nil {
		return nil, err
	}

	ev := native.NewCompletion()
	if err := q.w.push(job{deps: cg.Deps(), ops: cg.Ops(), ev: ev}); err != nil {
		return nil, err
	}

	q.mu.Lock()
	q.last = ev
	q.submitted++
	q.mu.Unlock()
	return ev, nil
}

// Submitted returns how many units of work were accepted by this queue.
func (q *Queue) Submitted() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.submitted
}

// Wait blocks until the last submitted unit completed.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	last := q.last
	q.mu.Unlock()
	return native.WaitAll(ctx, last)
}

// Release drops the queue's reference on its native stream. The stream is
// destroyed with its last queue.
func (q *Queue) Release() error {
	q.mu.Lock()
	if q.released {
		q.mu.Unlock()
		return nil
	}
	q.released = true
	q.mu.Unlock()

	q.rt.releaseStream(q.stream)
	return nil
}

// Compile-time check that Queue implements native.Queue.
var _ native.Queue = (*Queue)(nil)

type job struct {
	deps []native.Event
	ops  []native.Op
	ev   *native.Completion
}

// worker executes the jobs of one native stream in FIFO order.
type worker struct {
	refs int // guarded by Runtime.mu

	mu      sync.Mutex
	jobs    []job
	stopped bool

	wake     chan struct{}
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newWorker() *worker {
	w := &worker{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *worker) push(j job) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return native.ErrReleased
	}
	w.jobs = append(w.jobs, j)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

func (w *worker) run() {
	defer close(w.done)
	for {
		w.mu.Lock()
		if len(w.jobs) == 0 {
			stopped := w.stopped
			w.mu.Unlock()
			if stopped {
				return
			}
			select {
			case <-w.wake:
			case <-w.quit:
			}
			continue
		}
		j := w.jobs[0]
		w.jobs = w.jobs[1:]
		w.mu.Unlock()

		j.ev.Complete(execute(j))
	}
}

// stop drains pending jobs and waits for the worker goroutine to exit.
func (w *worker) stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()
		close(w.quit)
	})
	<-w.done
}

func execute(j job) (err error) {
	if depErr := native.WaitAll(context.Background(), j.deps...); depErr != nil {
		return fmt.Errorf("sim: dependency failed: %w", depErr)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sim: native operation panicked: %v", r)
		}
	}()
	for _, op := range j.ops {
		if opErr := op.Run(); opErr != nil {
			return fmt.Errorf("sim: %s: %w", op.Name, opErr)
		}
	}
	return nil
}
