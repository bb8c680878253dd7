//go:build windows

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU native runtime.
//
// The adapter acts as the context and the device's default queue as the
// single native stream, so every stream attached to a WebGPU engine shares
// one queue.
//
// Example:
//
//	import (
//	    "github.com/born-ml/gpustream/backend/webgpu"
//	    "github.com/born-ml/gpustream/interop"
//	)
//
//	func main() {
//	    rt, err := webgpu.New()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer rt.Close()
//
//	    devices, _ := rt.Devices()
//	    eng, err := interop.NewEngine(rt, interop.GPU, devices[0])
//	}
package webgpu

import (
	internalwebgpu "github.com/born-ml/gpustream/internal/backend/webgpu"
	"github.com/born-ml/gpustream/internal/native"
)

// Runtime is the WebGPU native runtime.
type Runtime = internalwebgpu.Runtime

// Compile-time check that Runtime implements native.Runtime.
var _ native.Runtime = (*Runtime)(nil)

// New creates a WebGPU runtime on the high-performance adapter.
//
// Returns an error if WebGPU initialization fails (e.g., no compatible GPU).
func New() (*Runtime, error) {
	return internalwebgpu.New()
}

// IsAvailable checks if WebGPU is available on the current system.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
