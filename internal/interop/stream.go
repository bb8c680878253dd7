package interop

import (
	"errors"
	"fmt"
	"sync"

	"github.com/born-ml/gpustream/internal/native"
	"github.com/sirupsen/logrus"
)

// Stream binds one execution queue to its engine. Construct it with
// NewStream, then call Init before using it.
type Stream struct {
	engine *Engine
	flags  Flags
	log    *logrus.Entry

	queue       native.Queue
	owned       bool
	initialized bool

	// submitMu serializes submissions. mu guards the dependency chain and
	// is never held while a task body runs.
	submitMu sync.Mutex
	mu       sync.Mutex
	deps     []native.Event
}

// NewStream creates an uninitialized stream on e. When q is nil, Init
// creates a queue the stream owns; otherwise Init validates and adopts q,
// and the caller keeps ownership of it.
func NewStream(e *Engine, flags Flags, q native.Queue) *Stream {
	return &Stream{
		engine: e,
		flags:  flags,
		queue:  q,
		log:    e.log,
	}
}

// Init attaches the stream. It checks the flags, creates or validates the
// queue, and then binds both library handles to the stream's native stream.
//
// All validation happens before any engine state is touched: a failed Init
// leaves the handles bound wherever they were. Calling Init again on an
// attached stream whose handles still point at it rebinds nothing.
func (s *Stream) Init() (err error) {
	defer func() {
		streamInits.WithLabelValues(StatusOf(err).String()).Inc()
	}()

	if err := s.attach(); err != nil {
		return err
	}
	if err := s.syncHandles(native.DNN, native.BLAS); err != nil {
		return err
	}
	s.initialized = true
	return nil
}

// attach checks the flags and creates or validates the queue. It never
// touches the library handles.
func (s *Stream) attach() error {
	if !s.flags.Valid() {
		return invalidArgs("init", "stream flags %s name no ordering", s.flags)
	}

	e := s.engine
	switch {
	case s.queue == nil:
		if e.released.Load() {
			return invalidArgs("init", "engine released")
		}
		var q native.Queue
		err := nativeCall("create queue", func() error {
			var err error
			q, err = e.rt.CreateQueue(e.context, e.device, s.flags.Order())
			return err
		})
		if err != nil {
			return err
		}
		s.queue, s.owned = q, true
		s.log = e.log.WithField("stream", streamLabel(q.Stream()))
		s.log.WithField("order", q.Order()).Debug("queue created")
	case !s.owned:
		if err := s.validateAdopted(); err != nil {
			s.log.WithError(err).Warn("queue adoption rejected")
			return err
		}
		s.log = e.log.WithField("stream", streamLabel(s.queue.Stream()))
	}
	return nil
}

// validateAdopted checks an externally supplied queue against the engine.
// It reads native state only.
func (s *Stream) validateAdopted() error {
	e := s.engine

	dev := s.queue.Device()
	if e.kind == native.GPU && !dev.IsGPU() {
		return invalidArgs("init", "queue device %q is not a GPU", dev.Name())
	}

	got := native.IdentityOf(s.queue)
	if got.Device != e.device.Native() {
		return invalidArgs("init", "queue device %#x does not match engine device %#x", uintptr(got.Device), uintptr(e.device.Native()))
	}
	if got.Context != e.context {
		return invalidArgs("init", "queue context %#x does not match engine context %#x", uintptr(got.Context), uintptr(e.context))
	}

	service, err := e.ServiceStream()
	if err != nil {
		return err
	}
	if want := service.NativeStream(); got.Stream != want {
		return invalidArgs("init", "queue stream %#x does not match engine stream %#x", uintptr(got.Stream), uintptr(want))
	}
	return nil
}

type binding struct {
	handle native.Handle
	prior  native.StreamID
}

// syncHandles binds the given engine handles to this stream's native
// stream with the engine context current. If a rebind fails, handles
// already rebound by this call are pointed back at their prior streams.
func (s *Stream) syncHandles(kinds ...native.HandleKind) (err error) {
	e := s.engine

	handles := make([]native.Handle, 0, len(kinds))
	for _, kind := range kinds {
		h, err := e.handle(kind)
		if err != nil {
			return err
		}
		handles = append(handles, h)
	}

	e.bindMu.Lock()
	defer e.bindMu.Unlock()

	guard, err := acquireContext(e)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := guard.Release(); relErr != nil && err == nil {
			err = relErr
		}
	}()

	target := s.queue.Stream()
	var rebound []binding
	for _, h := range handles {
		prior, changed, err := s.bind(h, target)
		if err != nil {
			return errors.Join(err, rollback(rebound))
		}
		if changed {
			rebound = append(rebound, binding{handle: h, prior: prior})
		}
	}
	return nil
}

// bind points h at target if it is bound elsewhere.
func (s *Stream) bind(h native.Handle, target native.StreamID) (prior native.StreamID, changed bool, err error) {
	kind := h.Kind().String()

	err = nativeCall("get "+kind+" stream", func() error {
		var err error
		prior, err = h.Stream()
		return err
	})
	if err != nil {
		return native.NoStream, false, err
	}
	if prior == target {
		return prior, false, nil
	}

	err = nativeCall("set "+kind+" stream", func() error {
		return h.SetStream(target)
	})
	if err != nil {
		return prior, false, err
	}

	handleRebinds.WithLabelValues(kind).Inc()
	s.log.WithFields(logrus.Fields{
		"handle": kind,
		"from":   streamLabel(prior),
	}).Debug("handle rebound")
	return prior, true, nil
}

func rollback(rebound []binding) error {
	var errs []error
	for i := len(rebound) - 1; i >= 0; i-- {
		b := rebound[i]
		errs = append(errs, nativeCall("restore "+b.handle.Kind().String()+" stream", func() error {
			return b.handle.SetStream(b.prior)
		}))
	}
	return errors.Join(errs...)
}

// BLASHandle returns the engine's linear-algebra handle bound to this stream.
func (s *Stream) BLASHandle() (native.Handle, error) {
	return s.syncedHandle(native.BLAS)
}

// DNNHandle returns the engine's neural-primitive handle bound to this stream.
func (s *Stream) DNNHandle() (native.Handle, error) {
	return s.syncedHandle(native.DNN)
}

func (s *Stream) syncedHandle(kind native.HandleKind) (native.Handle, error) {
	if !s.initialized {
		return nil, invalidArgs(kind.String()+" handle", "stream not initialized")
	}
	if err := s.syncHandles(kind); err != nil {
		return nil, err
	}
	return s.engine.handle(kind)
}

// NativeStream returns the native stream behind the stream's queue, or
// native.NoStream before a queue exists. The value is borrowed: the Stream
// keeps ownership and it is only meaningful while the Stream is alive.
func (s *Stream) NativeStream() native.StreamID {
	if s.queue == nil {
		return native.NoStream
	}
	return s.queue.Stream()
}

// NativeContext returns the native context behind the stream's queue, or
// native.NoContext before a queue exists. Borrowed, like NativeStream.
func (s *Stream) NativeContext() native.ContextID {
	if s.queue == nil {
		return native.NoContext
	}
	return s.queue.Context()
}

// Queue returns the stream's queue (nil before Init for self-created queues).
func (s *Stream) Queue() native.Queue { return s.queue }

// Engine returns the engine the stream belongs to.
func (s *Stream) Engine() *Engine { return s.engine }

// Flags returns the stream flags.
func (s *Stream) Flags() Flags { return s.flags }

// OwnsQueue reports whether the stream created, and will release, its queue.
func (s *Stream) OwnsQueue() bool { return s.owned }

// Initialized reports whether Init succeeded.
func (s *Stream) Initialized() bool { return s.initialized }

// Release releases the queue if the stream owns it. Adopted queues are
// left to their owner.
func (s *Stream) Release() error {
	s.initialized = false
	if !s.owned || s.queue == nil {
		return nil
	}
	q := s.queue
	s.queue, s.owned = nil, false
	return nativeCall("release queue", q.Release)
}

func streamLabel(id native.StreamID) string {
	return fmt.Sprintf("%#x", uintptr(id))
}
