// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package interop attaches execution streams to a compute engine and keeps
// the engine's BLAS and DNN library handles bound to the stream in use.
//
// Example:
//
//	import (
//	    "github.com/born-ml/gpustream/backend/sim"
//	    "github.com/born-ml/gpustream/interop"
//	)
//
//	func main() {
//	    rt := sim.New()
//	    defer rt.Close()
//
//	    devices, _ := rt.Devices()
//	    eng, err := interop.NewEngine(rt, interop.GPU, devices[0])
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer eng.Release()
//
//	    s := interop.NewStream(eng, interop.InOrder, nil)
//	    if err := s.Init(); err != nil {
//	        log.Fatal(err)
//	    }
//	    defer s.Release()
//	}
package interop

import (
	internalinterop "github.com/born-ml/gpustream/internal/interop"
	"github.com/born-ml/gpustream/internal/native"
)

// Engine is a compute engine on one device with its library handles.
type Engine = internalinterop.Engine

// EngineOption configures NewEngine.
type EngineOption = internalinterop.EngineOption

// Stream is an execution queue attached to an Engine.
type Stream = internalinterop.Stream

// TaskBody populates the command group of an interop task.
type TaskBody = internalinterop.TaskBody

// Flags selects the stream ordering.
type Flags = internalinterop.Flags

// Status is the outcome of a stream operation.
type Status = internalinterop.Status

// StatusError is the error type returned by stream operations.
type StatusError = internalinterop.StatusError

// Native runtime vocabulary.
type (
	Runtime      = native.Runtime
	Device       = native.Device
	Queue        = native.Queue
	Event        = native.Event
	Handle       = native.Handle
	CommandGroup = native.CommandGroup
	Kind         = native.Kind
	HandleKind   = native.HandleKind
	StreamID     = native.StreamID
	ContextID    = native.ContextID
)

// Stream flags.
const (
	InOrder    = internalinterop.InOrder
	OutOfOrder = internalinterop.OutOfOrder
)

// Engine kinds.
const (
	CPU = native.CPU
	GPU = native.GPU
)

// Library handle kinds.
const (
	BLAS = native.BLAS
	DNN  = native.DNN
)

// Status codes.
const (
	Success          = internalinterop.Success
	InvalidArguments = internalinterop.InvalidArguments
	RuntimeError     = internalinterop.RuntimeError
)

// Sentinel errors matched by errors.Is.
var (
	ErrInvalidArguments   = internalinterop.ErrInvalidArguments
	ErrRuntime            = internalinterop.ErrRuntime
	ErrUnsupportedRuntime = internalinterop.ErrUnsupportedRuntime
)

// NewEngine creates an engine of the given kind on dev.
func NewEngine(rt Runtime, kind Kind, dev Device, opts ...EngineOption) (*Engine, error) {
	return internalinterop.NewEngine(rt, kind, dev, opts...)
}

// WithLogger sets the engine's logger.
var WithLogger = internalinterop.WithLogger

// NewStream creates an uninitialized stream. A nil q makes Init create a
// queue the stream owns; a non-nil q is validated and adopted.
func NewStream(e *Engine, flags Flags, q Queue) *Stream {
	return internalinterop.NewStream(e, flags, q)
}

// StatusOf maps an error to its Status.
func StatusOf(err error) Status {
	return internalinterop.StatusOf(err)
}

// ParseFlags converts flag names into Flags.
func ParseFlags(names []string) (Flags, error) {
	return internalinterop.ParseFlags(names)
}
