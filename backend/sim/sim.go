// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package sim provides an in-process simulated native runtime.
//
// The simulated runtime hands out deterministic device, context, and
// stream identifiers, tracks the current context, and runs each native
// stream's work on its own worker goroutine. Faults can be injected to
// exercise native failure paths.
package sim

import (
	internalsim "github.com/born-ml/gpustream/internal/backend/sim"
	"github.com/born-ml/gpustream/internal/native"
)

// Runtime is the simulated native runtime.
type Runtime = internalsim.Runtime

// Queue is a simulated execution queue.
type Queue = internalsim.Queue

// Handle is a simulated library handle.
type Handle = internalsim.Handle

// DeviceSpec describes a simulated device.
type DeviceSpec = internalsim.DeviceSpec

// Option configures New.
type Option = internalsim.Option

// Fault selects a native call to fail.
type Fault = internalsim.Fault

// Injectable faults.
const (
	FaultCreateQueue = internalsim.FaultCreateQueue
	FaultSubmit      = internalsim.FaultSubmit
	FaultNewHandle   = internalsim.FaultNewHandle
	FaultHandleGet   = internalsim.FaultHandleGet
	FaultHandleSet   = internalsim.FaultHandleSet
	FaultSetContext  = internalsim.FaultSetContext
)

// Compile-time check that Runtime implements native.Runtime.
var _ native.Runtime = (*Runtime)(nil)

// New creates a simulated runtime. Without options it has one GPU and one
// CPU device.
func New(opts ...Option) *Runtime {
	return internalsim.New(opts...)
}

// WithDevices replaces the default devices.
func WithDevices(specs ...DeviceSpec) Option {
	return internalsim.WithDevices(specs...)
}

// WithoutLibrary drops support for one library handle kind.
func WithoutLibrary(kind native.HandleKind) Option {
	return internalsim.WithoutLibrary(kind)
}
