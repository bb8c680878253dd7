package interop

import (
	"context"

	"github.com/born-ml/gpustream/internal/native"
)

// TaskBody populates a command group with native operations. It runs
// synchronously inside InteropTask and may read or replace the stream's
// dependencies, but must not submit another task to the same stream.
type TaskBody func(cg *native.CommandGroup) error

// InteropTask enqueues body as one unit of work on the stream's queue,
// ordered after the stream's current dependencies.
//
// On success the dependency chain is replaced by the new unit's completion
// event. On failure, including a panic raised by the body or the native
// queue, the chain is left as it was and a RuntimeError carrying the
// native message is returned.
func (s *Stream) InteropTask(body TaskBody) (err error) {
	defer func() {
		interopTasks.WithLabelValues(StatusOf(err).String()).Inc()
	}()

	if body == nil {
		return invalidArgs("interop task", "nil task body")
	}
	if !s.initialized {
		return invalidArgs("interop task", "stream not initialized")
	}

	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	deps := s.Deps()

	var ev native.Event
	err = nativeCall("interop task", func() error {
		var err error
		ev, err = s.queue.Submit(deps, func(cg *native.CommandGroup) error {
			return body(cg)
		})
		return err
	})
	if err != nil {
		s.log.WithError(err).Error("interop task failed")
		return err
	}

	s.mu.Lock()
	s.deps = []native.Event{ev}
	s.mu.Unlock()
	return nil
}

// Deps returns the stream's current dependency events.
func (s *Stream) Deps() []native.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]native.Event(nil), s.deps...)
}

// SetDeps replaces the stream's dependency events. The next interop task
// is ordered after them.
func (s *Stream) SetDeps(events ...native.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deps = append([]native.Event(nil), events...)
}

// Wait blocks until the queue has drained or ctx is done. The waiting
// itself is done by the queue.
func (s *Stream) Wait(ctx context.Context) error {
	if !s.initialized {
		return invalidArgs("wait", "stream not initialized")
	}
	return nativeCall("wait", func() error {
		return s.queue.Wait(ctx)
	})
}
